package util

import (
	"context"
	"errors"
	"testing"
)

func TestRetrySucceedsAfterFailures(t *testing.T) {
	attempts := 0
	result, err := Retry(3, func() (string, error) {
		attempts++
		if attempts < 3 {
			return "", errors.New("transient")
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("Retry() error = %v", err)
	}
	if result != "ok" {
		t.Errorf("Retry() = %q, want %q", result, "ok")
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestRetryReturnsLastError(t *testing.T) {
	lastErr := errors.New("third failure")
	attempts := 0
	_, err := Retry(3, func() (int, error) {
		attempts++
		if attempts == 3 {
			return 0, lastErr
		}
		return 0, errors.New("earlier failure")
	})
	if !errors.Is(err, lastErr) {
		t.Errorf("Retry() error = %v, want %v", err, lastErr)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestRetryZeroTriesRunsOnce(t *testing.T) {
	attempts := 0
	_, err := Retry(0, func() (int, error) {
		attempts++
		return 0, errors.New("fail")
	})
	if err == nil {
		t.Fatal("Retry() expected error")
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}

func TestRetryErrStopsOnSuccess(t *testing.T) {
	attempts := 0
	err := RetryErr(5, func() error {
		attempts++
		if attempts == 2 {
			return nil
		}
		return errors.New("transient")
	})
	if err != nil {
		t.Fatalf("RetryErr() error = %v", err)
	}
	if attempts != 2 {
		t.Errorf("attempts = %d, want 2", attempts)
	}
}

func TestRetryErrWithContextCancellationNotRetried(t *testing.T) {
	attempts := 0
	err := RetryErrWithContext(context.Background(), 5, func(context.Context) error {
		attempts++
		return context.Canceled
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("RetryErrWithContext() error = %v, want context.Canceled", err)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}

func TestRetryErrWithContextDoneBeforeFirstAttempt(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	attempts := 0
	err := RetryErrWithContext(ctx, 3, func(context.Context) error {
		attempts++
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("RetryErrWithContext() error = %v, want context.Canceled", err)
	}
	if attempts != 0 {
		t.Errorf("attempts = %d, want 0", attempts)
	}
}

func TestRetryWithContextReturnsResult(t *testing.T) {
	attempts := 0
	result, err := RetryWithContext(context.Background(), 3, func(context.Context) (int, error) {
		attempts++
		if attempts < 2 {
			return 0, errors.New("transient")
		}
		return 42, nil
	})
	if err != nil {
		t.Fatalf("RetryWithContext() error = %v", err)
	}
	if result != 42 {
		t.Errorf("RetryWithContext() = %d, want 42", result)
	}
}
