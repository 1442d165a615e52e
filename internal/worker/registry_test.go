package worker

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/shaiso/mcp-worker/internal/domain"
)

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := NewRegistry()
	r.Register("noop", HandlerFunc(func(ctx context.Context, task *domain.Task) (*HandlerResult, error) {
		return nil, nil
	}))

	if !r.Has("noop") {
		t.Error("expected Has to report registered type")
	}
	if _, err := r.Get("noop"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	_, err := r.Get("missing")
	if !errors.Is(err, ErrUnknownTaskType) {
		t.Errorf("expected ErrUnknownTaskType, got %v", err)
	}
}

func TestRegistry_TypesSorted(t *testing.T) {
	r := NewRegistry()
	noop := HandlerFunc(func(ctx context.Context, task *domain.Task) (*HandlerResult, error) {
		return nil, nil
	})
	r.Register("vector_index", noop)
	r.Register("data_cleanup", noop)
	r.Register("health_check", noop)

	want := []string{"data_cleanup", "health_check", "vector_index"}
	if got := r.Types(); !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
	if r.Len() != 3 {
		t.Errorf("expected Len 3, got %d", r.Len())
	}
}

func TestNonRetryable(t *testing.T) {
	cause := errors.New("bad input")
	wrapped := NonRetryable(cause)

	if !IsNonRetryable(wrapped) {
		t.Error("expected wrapped error to be non-retryable")
	}
	if !errors.Is(wrapped, cause) {
		t.Error("expected wrapped error to unwrap to cause")
	}
	if IsNonRetryable(cause) {
		t.Error("plain error must be retryable")
	}
	if NonRetryable(nil) != nil {
		t.Error("NonRetryable(nil) must be nil")
	}
}
