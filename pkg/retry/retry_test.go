package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fastPolicy = Policy{Attempts: 3, BaseDelay: time.Millisecond}

func TestDo_SucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	err := Do(context.Background(), "test", fastPolicy, func() error {
		calls++
		if calls < 3 {
			return errors.New("connection reset")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_StopsAfterMaxAttempts(t *testing.T) {
	calls := 0
	boom := errors.New("db unavailable")
	err := Do(context.Background(), "test", fastPolicy, func() error {
		calls++
		return boom
	})

	require.ErrorIs(t, err, boom)
	assert.Equal(t, 3, calls)
}

func TestDo_PermanentErrorIsNotRetried(t *testing.T) {
	calls := 0
	notFound := errors.New("not found")
	err := Do(context.Background(), "test", fastPolicy, func() error {
		calls++
		return Permanent(notFound)
	})

	require.ErrorIs(t, err, notFound)
	assert.Equal(t, 1, calls)
}

func TestDo_SingleAttemptPolicy(t *testing.T) {
	calls := 0
	err := Do(context.Background(), "test", Policy{Attempts: 1, BaseDelay: time.Millisecond}, func() error {
		calls++
		return errors.New("fail")
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_CancelledContextStopsRetrying(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Do(ctx, "test", Policy{Attempts: 5, BaseDelay: 50 * time.Millisecond}, func() error {
		calls++
		cancel()
		return errors.New("fail")
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestPermanent_Nil(t *testing.T) {
	assert.NoError(t, Permanent(nil))
}
