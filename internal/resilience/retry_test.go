package resilience

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/adlead-cli/internal/config"
)

func fastPolicy(attempts int) Policy {
	return Policy{
		MaxAttempts:    attempts,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Multiplier:     2,
	}
}

func TestDo_SucceedsAfterTransientFailures(t *testing.T) {
	var calls int
	err := Do(context.Background(), fastPolicy(3), func(context.Context) error {
		calls++
		if calls < 3 {
			return &StatusError{Service: "searchapi", StatusCode: 503}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	var calls int
	var retried []int
	p := fastPolicy(3)
	p.OnRetry = func(attempt int, _ error) { retried = append(retried, attempt) }

	err := Do(context.Background(), p, func(context.Context) error {
		calls++
		return NewTransientError(errors.New("still down"))
	})
	require.Error(t, err)
	assert.Equal(t, "still down", err.Error())
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, retried)
}

func TestDo_PermanentErrorStopsImmediately(t *testing.T) {
	var calls int
	err := Do(context.Background(), fastPolicy(5), func(context.Context) error {
		calls++
		return &StatusError{Service: "meta", StatusCode: 401, Body: "bad token"}
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_CustomRetryable(t *testing.T) {
	sentinel := errors.New("custom")
	p := fastPolicy(2)
	p.Retryable = func(err error) bool { return errors.Is(err, sentinel) }

	var calls int
	_ = Do(context.Background(), p, func(context.Context) error {
		calls++
		return sentinel
	})
	assert.Equal(t, 2, calls)
}

func TestDo_ContextCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := Policy{MaxAttempts: 5, InitialBackoff: time.Hour, MaxBackoff: time.Hour}

	var calls int
	err := Do(ctx, p, func(context.Context) error {
		calls++
		cancel()
		return NewTransientError(errors.New("boom"))
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoVal_ReturnsValue(t *testing.T) {
	var calls int
	v, err := DoVal(context.Background(), fastPolicy(3), func(context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", NewTransientError(errors.New("flaky"))
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
}

func TestPolicyFrom(t *testing.T) {
	p := PolicyFrom(config.RetryConfig{MaxAttempts: 5, InitialBackoffMs: 100, MaxBackoffMs: 2000})
	assert.Equal(t, 5, p.MaxAttempts)
	assert.Equal(t, 100*time.Millisecond, p.InitialBackoff)
	assert.Equal(t, 2*time.Second, p.MaxBackoff)

	d := PolicyFrom(config.RetryConfig{})
	assert.Equal(t, DefaultPolicy().MaxAttempts, d.MaxAttempts)
	assert.Equal(t, DefaultPolicy().InitialBackoff, d.InitialBackoff)
}

func TestPolicy_Backoff(t *testing.T) {
	p := Policy{InitialBackoff: 100 * time.Millisecond, MaxBackoff: time.Second, Multiplier: 2}

	tests := []struct {
		attempt int
		hint    time.Duration
		want    time.Duration
	}{
		{1, 0, 100 * time.Millisecond},
		{2, 0, 200 * time.Millisecond},
		{3, 0, 400 * time.Millisecond},
		{5, 0, time.Second},
		{1, 700 * time.Millisecond, 700 * time.Millisecond},
		{1, time.Minute, time.Second},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("attempt_%d_hint_%s", tt.attempt, tt.hint), func(t *testing.T) {
			assert.Equal(t, tt.want, p.backoff(tt.attempt, tt.hint))
		})
	}
}

func TestPolicy_BackoffJitterBounds(t *testing.T) {
	p := Policy{InitialBackoff: 100 * time.Millisecond, MaxBackoff: time.Second, Multiplier: 2, Jitter: 0.5}
	for range 100 {
		d := p.backoff(1, 0)
		assert.GreaterOrEqual(t, d, 50*time.Millisecond)
		assert.LessOrEqual(t, d, 150*time.Millisecond)
	}
}
