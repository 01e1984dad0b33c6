package retry

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func TestRetryer_Success(t *testing.T) {
	retryer, err := NewRetryer(EnableRetry(3, time.Millisecond))
	if err != nil {
		t.Fatalf("Failed to create retryer: %v", err)
	}

	calls := 0
	attempts, err := retryer.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return nil
	})
	if err != nil {
		t.Errorf("Expected no error, got: %v", err)
	}
	if attempts != 1 || calls != 1 {
		t.Errorf("Expected 1 attempt, got %d (calls %d)", attempts, calls)
	}
}

func TestRetryer_SuccessAfterRetries(t *testing.T) {
	config := EnableRetry(5, 5*time.Millisecond)
	config.Jitter = 0
	retryer, err := NewRetryer(config)
	if err != nil {
		t.Fatalf("Failed to create retryer: %v", err)
	}

	var seen []int
	retryer.config.OnRetry = func(attempt int, err error, delay time.Duration) {
		seen = append(seen, attempt)
	}

	start := time.Now()
	attempts, err := retryer.Do(context.Background(), func(ctx context.Context) error {
		if len(seen) < 2 {
			return errors.New("deadlock detected")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Expected success, got error: %v", err)
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts)
	}
	if len(seen) != 2 || seen[0] != 1 || seen[1] != 2 {
		t.Errorf("Unexpected OnRetry calls: %v", seen)
	}
	// 5ms + 10ms
	if time.Since(start) < 15*time.Millisecond {
		t.Errorf("Expected delays between retries")
	}
}

func TestRetryer_MaxAttemptsExceeded(t *testing.T) {
	retryer, _ := NewRetryer(EnableRetry(3, time.Millisecond))

	cause := errors.New("connection reset")
	attempts, err := retryer.Do(context.Background(), func(ctx context.Context) error {
		return cause
	})
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts)
	}
	if !errors.Is(err, ErrMaxAttempts) || !errors.Is(err, cause) {
		t.Errorf("Expected ErrMaxAttempts wrapping cause, got: %v", err)
	}
}

func TestRetryer_Disabled(t *testing.T) {
	retryer, _ := NewRetryer(DefaultConfig())

	calls := 0
	attempts, err := retryer.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return errors.New("boom")
	})
	if err == nil || calls != 1 || attempts != 1 {
		t.Errorf("Expected single failing call, got calls=%d attempts=%d err=%v", calls, attempts, err)
	}
}

func TestRetryer_RetryablePatterns(t *testing.T) {
	config := EnableRetry(5, time.Millisecond)
	config.RetryableErrors = []string{"deadlock", "timeout"}
	retryer, _ := NewRetryer(config)

	calls := 0
	_, err := retryer.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return errors.New("unique constraint violated")
	})
	if err == nil || calls != 1 {
		t.Errorf("Non-matching error must not be retried, calls=%d", calls)
	}

	calls = 0
	_, _ = retryer.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return errors.New("lock wait timeout exceeded")
	})
	if calls != 5 {
		t.Errorf("Matching error must be retried up to the limit, calls=%d", calls)
	}
}

func TestRetryer_Permanent(t *testing.T) {
	retryer, _ := NewRetryer(EnableRetry(5, time.Millisecond))

	calls := 0
	cause := errors.New("bad row")
	_, err := retryer.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return Permanent(cause)
	})
	if calls != 1 {
		t.Errorf("Permanent error retried %d times", calls)
	}
	if !errors.Is(err, cause) {
		t.Errorf("Expected cause in chain, got %v", err)
	}
	if Permanent(nil) != nil {
		t.Errorf("Permanent(nil) must be nil")
	}
}

func TestRetryer_ContextCancelled(t *testing.T) {
	retryer, _ := NewRetryer(EnableRetry(10, time.Second))

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	done := make(chan error, 1)
	go func() {
		_, err := retryer.Do(ctx, func(ctx context.Context) error {
			calls++
			return errors.New("temporary")
		})
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Retryer did not stop on cancellation")
	}
	if calls != 1 {
		t.Errorf("Expected 1 call before cancellation, got %d", calls)
	}
}

func TestCalculateDelay(t *testing.T) {
	tests := []struct {
		strategy BackoffStrategy
		attempt  int
		want     time.Duration
	}{
		{BackoffConstant, 1, 100 * time.Millisecond},
		{BackoffConstant, 4, 100 * time.Millisecond},
		{BackoffLinear, 3, 300 * time.Millisecond},
		{BackoffExponential, 1, 100 * time.Millisecond},
		{BackoffExponential, 3, 400 * time.Millisecond},
		{BackoffExponential, 10, time.Second},
	}

	for _, tt := range tests {
		config := EnableRetry(10, 100*time.Millisecond)
		config.BackoffStrategy = tt.strategy
		config.MaxDelay = time.Second
		config.Jitter = 0
		retryer, err := NewRetryer(config)
		if err != nil {
			t.Fatalf("NewRetryer: %v", err)
		}
		if got := retryer.calculateDelay(tt.attempt); got != tt.want {
			t.Errorf("%s attempt %d: got %v, want %v", tt.strategy, tt.attempt, got, tt.want)
		}
	}
}

func TestConfig_Validate(t *testing.T) {
	bad := []Config{
		{Enabled: true, MaxAttempts: 3, InitialDelay: time.Second, MaxDelay: time.Millisecond, BackoffStrategy: BackoffConstant},
		{Enabled: true, MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: time.Second, BackoffStrategy: "random"},
		{Enabled: true, MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: time.Second, BackoffStrategy: BackoffConstant, Jitter: 1.5},
		{Enabled: true, MaxAttempts: -1, InitialDelay: time.Millisecond, MaxDelay: time.Second, BackoffStrategy: BackoffConstant},
	}
	for i, c := range bad {
		if err := c.Validate(); err == nil {
			t.Errorf("config %d: expected validation error", i)
		}
	}

	disabled := Config{MaxAttempts: -1}
	if err := disabled.Validate(); err != nil {
		t.Errorf("Disabled config must validate, got %v", err)
	}
}

func TestConfig_YAML(t *testing.T) {
	data := []byte(`
enabled: true
max_attempts: 4
initial_delay: 250ms
max_delay: 5s
backoff: linear
retryable_errors: [deadlock, "connection refused"]
`)
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	config.SetDefaults()

	if err := config.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if config.MaxAttempts != 4 || config.InitialDelay != 250*time.Millisecond || config.MaxDelay != 5*time.Second {
		t.Errorf("Unexpected durations: %+v", config)
	}
	if config.BackoffStrategy != BackoffLinear || len(config.RetryableErrors) != 2 {
		t.Errorf("Unexpected backoff config: %+v", config)
	}
	if config.BackoffMultiplier != 2.0 {
		t.Errorf("Expected default multiplier, got %f", config.BackoffMultiplier)
	}
}

func TestRejectLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rejects", "job.jsonl")

	log, err := OpenRejectLog(path)
	if err != nil {
		t.Fatalf("OpenRejectLog: %v", err)
	}
	if err := log.Add(Reject{Line: 3, Column: 2, Value: "abc", Target: "integer32", Error: "invalid syntax", Row: []string{"x", "abc"}}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := log.Add(Reject{Line: 7, Error: "row shape mismatch"}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if log.Count() != 2 {
		t.Errorf("Expected count 2, got %d", log.Count())
	}
	if err := log.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := log.Close(); err != nil {
		t.Errorf("Second Close: %v", err)
	}

	// Дозапись при повторном открытии
	log, err = OpenRejectLog(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	_ = log.Add(Reject{Line: 9, Error: "again"})
	_ = log.Close()

	rejects, err := ReadRejects(path)
	if err != nil {
		t.Fatalf("ReadRejects: %v", err)
	}
	if len(rejects) != 3 {
		t.Fatalf("Expected 3 rejects, got %d", len(rejects))
	}
	if rejects[0].Value != "abc" || rejects[0].Column != 2 || rejects[0].Timestamp.IsZero() {
		t.Errorf("Unexpected first reject: %+v", rejects[0])
	}
	if rejects[2].Line != 9 {
		t.Errorf("Unexpected last reject: %+v", rejects[2])
	}
}

func TestRejectLog_CountOnly(t *testing.T) {
	log, err := OpenRejectLog("")
	if err != nil {
		t.Fatalf("OpenRejectLog: %v", err)
	}
	_ = log.Add(Reject{Line: 1, Error: "x"})
	if log.Count() != 1 {
		t.Errorf("Expected count 1, got %d", log.Count())
	}
	if err := log.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestRejectLog_ZeroValue(t *testing.T) {
	var log RejectLog
	if err := log.Add(Reject{Line: 1, Error: "x"}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if log.Count() != 1 {
		t.Errorf("Expected count 1, got %d", log.Count())
	}
	if err := log.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}
