package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastRetry(attempts int) RetryConfig {
	return RetryConfig{MaxAttempts: attempts, InitialBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond, Multiplier: 2}
}

func TestRetry(t *testing.T) {
	temporary := errors.New("temporary")
	permanent := errors.New("permanent")

	tests := []struct {
		name      string
		failures  int
		failWith  error
		attempts  int
		wantCalls int
		wantErr   error
	}{
		{"first attempt", 0, nil, 3, 1, nil},
		{"succeeds after retry", 2, temporary, 3, 3, nil},
		{"exhausted", 5, temporary, 3, 3, temporary},
		{"not retryable", 5, permanent, 3, 1, permanent},
		{"single attempt", 5, temporary, 1, 1, temporary},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := fastRetry(tt.attempts)
			cfg.RetryIf = func(err error) bool { return !errors.Is(err, permanent) }
			calls := 0
			got, err := Retry(context.Background(), cfg, func() (int, error) {
				calls++
				if calls <= tt.failures {
					return 0, tt.failWith
				}
				return calls, nil
			})
			if calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", calls, tt.wantCalls)
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr == nil && got != calls {
				t.Errorf("result = %d", got)
			}
		})
	}
}

func TestRetry_OnRetry(t *testing.T) {
	cfg := fastRetry(3)
	var attempts []int
	cfg.OnRetry = func(attempt int, _ error, _ time.Duration) { attempts = append(attempts, attempt) }
	_, _ = Retry(context.Background(), cfg, func() (struct{}, error) { return struct{}{}, errors.New("x") })
	if len(attempts) != 2 || attempts[0] != 1 || attempts[1] != 2 {
		t.Errorf("OnRetry attempts = %v", attempts)
	}
}

func TestRetry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := RetryConfig{MaxAttempts: 5, InitialBackoff: time.Hour, MaxBackoff: time.Hour}
	calls := 0
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	_, err := Retry(ctx, cfg, func() (int, error) {
		calls++
		return 0, errors.New("x")
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d", calls)
	}
}

func TestDefaultRetryIf(t *testing.T) {
	if DefaultRetryIf(context.Canceled) || DefaultRetryIf(context.DeadlineExceeded) {
		t.Error("context errors must not be retried")
	}
	if !DefaultRetryIf(errors.New("x")) {
		t.Error("plain errors should be retried")
	}
}

func TestBackoff(t *testing.T) {
	cfg := RetryConfig{InitialBackoff: 100 * time.Millisecond, MaxBackoff: time.Second, Multiplier: 2}
	want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 400 * time.Millisecond, 800 * time.Millisecond, time.Second}
	for i, w := range want {
		if got := Backoff(i+1, cfg); got != w {
			t.Errorf("attempt %d: %s, want %s", i+1, got, w)
		}
	}

	cfg.Jitter = 0.5
	for range 50 {
		if got := Backoff(1, cfg); got < 50*time.Millisecond || got > 150*time.Millisecond {
			t.Fatalf("jittered backoff out of range: %s", got)
		}
	}
}
