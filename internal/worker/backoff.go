package worker

import (
	"math/rand/v2"
	"time"
)

// Параметры retry по умолчанию.
const (
	defaultBaseRetryDelay = time.Second
	defaultMaxRetryDelay  = 30 * time.Second

	// jitterFraction — доля задержки, добавляемая случайно,
	// чтобы retry разных tasks не совпадали по времени.
	jitterFraction = 0.1
)

// backoffDelay вычисляет задержку перед retry:
// base * 2^attempt с верхней границей max, плюс jitter до 10%.
func backoffDelay(attempt int, base, max time.Duration) time.Duration {
	if base <= 0 {
		base = defaultBaseRetryDelay
	}
	if max <= 0 {
		max = defaultMaxRetryDelay
	}

	delay := base
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= max {
			delay = max
			break
		}
	}
	if delay > max {
		delay = max
	}

	jitter := time.Duration(rand.Int64N(int64(float64(delay)*jitterFraction) + 1))
	return delay + jitter
}
