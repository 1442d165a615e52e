package scheduler

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// cronParser — парсер cron-выражений (5 полей, стандартный формат).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// nextDue вычисляет следующее время постановки для entry.
func nextDue(e *Entry, from time.Time) (time.Time, error) {
	if e.CronExpr != "" {
		schedule, err := cronParser.Parse(e.CronExpr)
		if err != nil {
			return time.Time{}, fmt.Errorf("parse cron expression %q: %w", e.CronExpr, err)
		}
		return schedule.Next(from), nil
	}

	if e.Interval > 0 {
		return from.Add(e.Interval), nil
	}

	return time.Time{}, fmt.Errorf("entry has neither cron_expr nor interval")
}

// ValidateCronExpr проверяет валидность cron-выражения.
func ValidateCronExpr(cronExpr string) error {
	_, err := cronParser.Parse(cronExpr)
	if err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", cronExpr, err)
	}
	return nil
}
