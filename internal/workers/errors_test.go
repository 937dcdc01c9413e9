package workers_test

import (
	"errors"
	"strings"
	"testing"

	"gavel/internal/workers"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := workers.Wrap(workers.ErrWorker, "transcribe", "run", "failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, workers.ErrWorker) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"transcribe", "run", "failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestTimeoutIsWorkerError(t *testing.T) {
	err := workers.Wrap(workers.ErrTimeout, "transcribe", "run", "deadline", nil)
	if !errors.Is(err, workers.ErrTimeout) {
		t.Fatal("expected timeout marker")
	}
	if !errors.Is(err, workers.ErrWorker) {
		t.Fatal("timeout must classify as a worker error")
	}
	if !workers.IsRetryable(err) {
		t.Fatal("timeouts must be retryable")
	}
}

func TestConflictNotRetryable(t *testing.T) {
	err := workers.Wrap(workers.ErrConflict, "pipeline", "start", "already running", nil)
	if workers.IsRetryable(err) {
		t.Fatal("conflicts must not classify as retryable worker failures")
	}
}

func TestDescribeStripsMarkerPrefix(t *testing.T) {
	err := workers.Wrap(workers.ErrValidation, "schedule", "create", "empty trigger value", nil)
	details := workers.Describe(err)
	if details.Marker != workers.ErrValidation {
		t.Fatalf("unexpected marker: %v", details.Marker)
	}
	if strings.HasPrefix(details.Message, "validation error") {
		t.Fatalf("expected prefix stripped, got %q", details.Message)
	}
	if !strings.Contains(details.Message, "empty trigger value") {
		t.Fatalf("expected message retained, got %q", details.Message)
	}
}

func TestDescribeNil(t *testing.T) {
	details := workers.Describe(nil)
	if details.Marker != nil || details.Message != "" {
		t.Fatalf("expected zero details, got %+v", details)
	}
}
