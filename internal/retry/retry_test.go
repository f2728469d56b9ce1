package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingSleeper records requested waits without sleeping.
type recordingSleeper struct {
	waits []time.Duration
}

func (r *recordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	r.waits = append(r.waits, d)
	return ctx.Err()
}

func testPolicy(s *recordingSleeper) Policy {
	return Policy{
		MaxAttempts: 3,
		Backoff:     Exponential(time.Second),
		Sleep:       s.Sleep,
	}
}

func TestExponential(t *testing.T) {
	b := Exponential(time.Second)
	assert.Equal(t, time.Second, b(1))
	assert.Equal(t, 2*time.Second, b(2))
	assert.Equal(t, 4*time.Second, b(3))
	assert.Equal(t, time.Second, b(0))
}

func TestDo_SucceedsAfterFailures(t *testing.T) {
	s := &recordingSleeper{}
	calls := 0

	got, err := Do(context.Background(), testPolicy(s), func(_ context.Context, attempt int) (string, error) {
		calls++
		if attempt < 3 {
			return "", errors.New("transient")
		}
		return "answer", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "answer", got)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, s.waits)
}

func TestDo_Exhausted(t *testing.T) {
	s := &recordingSleeper{}
	last := errors.New("still failing")
	calls := 0

	_, err := Do(context.Background(), testPolicy(s), func(context.Context, int) (int, error) {
		calls++
		return 0, last
	})

	require.Error(t, err)
	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 3, exhausted.Attempts)
	assert.ErrorIs(t, err, last)
	assert.Equal(t, 3, calls)
	assert.Len(t, s.waits, 2, "no wait after the final attempt")
}

func TestDo_NonRetryable(t *testing.T) {
	s := &recordingSleeper{}
	fatal := errors.New("bad request")
	p := testPolicy(s)
	p.Retryable = func(err error) bool { return !errors.Is(err, fatal) }
	calls := 0

	_, err := Do(context.Background(), p, func(context.Context, int) (int, error) {
		calls++
		return 0, fatal
	})

	assert.Same(t, fatal, err)
	assert.Equal(t, 1, calls)
	assert.Empty(t, s.waits)
}

func TestDo_CanceledDuringWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	last := errors.New("upstream 503")
	calls := 0

	p := Policy{
		MaxAttempts: 3,
		Backoff:     Exponential(time.Hour),
		Sleep: func(ctx context.Context, d time.Duration) error {
			cancel()
			return ContextSleep(ctx, d)
		},
	}

	_, err := Do(ctx, p, func(context.Context, int) (int, error) {
		calls++
		return 0, last
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, err, last)
	assert.Equal(t, 1, calls)
}

func TestDo_AlreadyCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Do(ctx, Policy{MaxAttempts: 3}, func(context.Context, int) (int, error) {
		t.Fatal("fn must not run on a canceled context")
		return 0, nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDo_OnRetry(t *testing.T) {
	s := &recordingSleeper{}
	p := testPolicy(s)
	var seen []int
	p.OnRetry = func(attempt int, err error, wait time.Duration) {
		seen = append(seen, attempt)
		assert.Equal(t, Exponential(time.Second)(attempt), wait)
	}

	_, _ = Do(context.Background(), p, func(context.Context, int) (int, error) {
		return 0, errors.New("x")
	})
	assert.Equal(t, []int{1, 2}, seen)
}

func TestDo_ZeroPolicyRunsOnce(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), Policy{}, func(context.Context, int) (int, error) {
		calls++
		return 0, errors.New("x")
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestContextSleep(t *testing.T) {
	assert.NoError(t, ContextSleep(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, ContextSleep(ctx, time.Hour), context.Canceled)
}
