package scheduler

import (
	"fmt"
	"testing"
	"time"

	"github.com/shaiso/mcp-worker/internal/domain"
	"github.com/shaiso/mcp-worker/internal/worker"
)

type fakeSubmitter struct {
	tasks     []*domain.Task
	submitErr error
}

func (s *fakeSubmitter) Submit(task *domain.Task) error {
	if s.submitErr != nil {
		return s.submitErr
	}
	s.tasks = append(s.tasks, task)
	return nil
}

func TestScheduler_IntervalEntry(t *testing.T) {
	submitter := &fakeSubmitter{}
	s, err := New(Config{
		Submitter: submitter,
		Entries: []Entry{
			{Name: "health-check", TaskType: "health_check", Interval: 30 * time.Second},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	start := time.Now()

	// До наступления due ничего не ставится
	s.Tick(start)
	if len(submitter.tasks) != 0 {
		t.Fatalf("expected no tasks before due, got %d", len(submitter.tasks))
	}

	s.Tick(start.Add(31 * time.Second))
	if len(submitter.tasks) != 1 {
		t.Fatalf("expected 1 task after interval, got %d", len(submitter.tasks))
	}
	if submitter.tasks[0].Type != "health_check" {
		t.Errorf("expected health_check task, got %s", submitter.tasks[0].Type)
	}

	// Следующий тик в том же интервале — без дубликата
	s.Tick(start.Add(32 * time.Second))
	if len(submitter.tasks) != 1 {
		t.Errorf("expected still 1 task, got %d", len(submitter.tasks))
	}

	s.Tick(start.Add(62 * time.Second))
	if len(submitter.tasks) != 2 {
		t.Errorf("expected 2 tasks after second interval, got %d", len(submitter.tasks))
	}
}

func TestScheduler_DeterministicTaskIDs(t *testing.T) {
	submitter := &fakeSubmitter{}
	s, err := New(Config{
		Submitter: submitter,
		Entries: []Entry{
			{Name: "data-cleanup", TaskType: "data_cleanup", Interval: time.Minute},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	s.Tick(time.Now().Add(2 * time.Minute))
	if len(submitter.tasks) != 1 {
		t.Fatalf("expected 1 task, got %d", len(submitter.tasks))
	}
	id := submitter.tasks[0].ID
	if id == "" {
		t.Fatal("expected deterministic id")
	}
	var unix int64
	if _, err := fmt.Sscanf(id, "data-cleanup-%d", &unix); err != nil {
		t.Errorf("id %q does not follow name-unix format: %v", id, err)
	}
}

func TestScheduler_DuplicateSkippedQuietly(t *testing.T) {
	submitter := &fakeSubmitter{submitErr: worker.ErrDuplicateTask}
	s, err := New(Config{
		Submitter: submitter,
		Entries: []Entry{
			{Name: "health-check", TaskType: "health_check", Interval: time.Second},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Дубликат (предыдущий запуск ещё in flight) не должен ломать тик
	s.Tick(time.Now().Add(2 * time.Second))
	if len(submitter.tasks) != 0 {
		t.Errorf("expected no tasks on duplicate, got %d", len(submitter.tasks))
	}
}

func TestScheduler_InvalidCron(t *testing.T) {
	_, err := New(Config{
		Submitter: &fakeSubmitter{},
		Entries: []Entry{
			{Name: "bad", TaskType: "data_cleanup", CronExpr: "not a cron"},
		},
	})
	if err == nil {
		t.Fatal("expected error for invalid cron expression")
	}
}

func TestScheduler_EntryWithoutSchedule(t *testing.T) {
	_, err := New(Config{
		Submitter: &fakeSubmitter{},
		Entries: []Entry{
			{Name: "empty", TaskType: "health_check"},
		},
	})
	if err == nil {
		t.Fatal("expected error for entry without interval or cron")
	}
}

func TestValidateCronExpr(t *testing.T) {
	if err := ValidateCronExpr("0 3 * * *"); err != nil {
		t.Errorf("valid expression rejected: %v", err)
	}
	if err := ValidateCronExpr("99 99 * * *"); err == nil {
		t.Error("invalid expression accepted")
	}
}

func TestCronNextDue(t *testing.T) {
	e := &Entry{Name: "nightly", CronExpr: "0 3 * * *"}
	from := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)

	next, err := nextDue(e, from)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := time.Date(2026, 2, 11, 3, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("expected %s, got %s", want, next)
	}
}
