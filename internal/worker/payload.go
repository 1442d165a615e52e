package worker

import (
	"fmt"
	"time"
)

// Хелперы извлечения полей payload. Payload приходит из JSON
// (HTTP API или MQ), поэтому числа — float64, а вложенные
// структуры — map[string]any.

func payloadString(payload map[string]any, key string) (string, bool) {
	v, ok := payload[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func payloadStringRequired(payload map[string]any, key string) (string, error) {
	s, ok := payloadString(payload, key)
	if !ok || s == "" {
		return "", NonRetryable(fmt.Errorf("payload field %q is required", key))
	}
	return s, nil
}

func payloadInt(payload map[string]any, key string, def int) int {
	v, ok := payload[key]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case int64:
		return int(n)
	default:
		return def
	}
}

// payloadDuration читает длительность: число трактуется как секунды,
// строка — как duration-литерал Go ("36h", "90m").
func payloadDuration(payload map[string]any, key string, def time.Duration) (time.Duration, error) {
	v, ok := payload[key]
	if !ok {
		return def, nil
	}
	switch d := v.(type) {
	case float64:
		return time.Duration(d * float64(time.Second)), nil
	case string:
		parsed, err := time.ParseDuration(d)
		if err != nil {
			return 0, NonRetryable(fmt.Errorf("payload field %q: invalid duration %q", key, d))
		}
		return parsed, nil
	default:
		return 0, NonRetryable(fmt.Errorf("payload field %q: unsupported type %T", key, v))
	}
}
