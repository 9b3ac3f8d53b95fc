package common

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pfennig-app/pfennig/internal/service"
)

func fastRetry(attempts int) service.RetryOptions {
	return service.RetryOptions{
		MaxAttempts:  attempts,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestWithRetry_SucceedsFirstTry(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), func() error {
		calls++
		return nil
	}, fastRetry(3))

	if err != nil {
		t.Fatalf("WithRetry() error: %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestWithRetry_EventualSuccess(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	}, fastRetry(5))

	if err != nil {
		t.Fatalf("WithRetry() error: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestWithRetry_ExhaustsAttempts(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), func() error {
		calls++
		return errors.New("persistent")
	}, fastRetry(3))

	if !errors.Is(err, ErrMaxRetries) {
		t.Errorf("error = %v, want ErrMaxRetries", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestWithRetry_NonRetryableStopsImmediately(t *testing.T) {
	calls := 0
	fatal := &RetryableError{Err: errors.New("constraint violation"), Retryable: false}

	err := WithRetry(context.Background(), func() error {
		calls++
		return fatal
	}, fastRetry(5))

	if !errors.Is(err, fatal) {
		t.Errorf("error = %v, want the non-retryable error", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestWithRetry_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := WithRetry(ctx, func() error {
		return errors.New("transient")
	}, fastRetry(3))

	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestUserError(t *testing.T) {
	wrapped := errors.New("disk full")
	err := NewUserError("could not save the transaction", wrapped)

	if !errors.Is(err, wrapped) {
		t.Error("UserError does not unwrap to the cause")
	}
	want := "could not save the transaction: disk full"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
