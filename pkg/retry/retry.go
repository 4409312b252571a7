// Package retry wraps read operations in a bounded exponential backoff.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/uara/dashboard/pkg/logger"
	"github.com/uara/dashboard/pkg/metrics"
)

// Policy bounds a retried operation. The wait before retry n (1-based) is
// BaseDelay * 2^n, so the defaults wait 200ms and then 400ms.
type Policy struct {
	Attempts  int
	BaseDelay time.Duration
}

// DefaultPolicy is three attempts starting from a 100ms base delay.
var DefaultPolicy = Policy{Attempts: 3, BaseDelay: 100 * time.Millisecond}

// Permanent marks err as not worth retrying. Do returns the wrapped error unchanged.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return backoff.Permanent(err)
}

// Do runs op until it succeeds, returns a Permanent error, exhausts the
// policy's attempts, or ctx is done. The last error is returned.
func Do(ctx context.Context, name string, p Policy, op func() error) error {
	if p.Attempts < 1 {
		p.Attempts = 1
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 2 * p.BaseDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = 2 * p.BaseDelay << uint(p.Attempts)
	b.MaxElapsedTime = 0

	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(p.Attempts-1)), ctx)

	notify := func(err error, wait time.Duration) {
		metrics.RecordReadRetry(name)
		logger.Global().Debug("retrying read",
			zap.String("operation", name),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	}

	return backoff.RetryNotify(op, policy, notify)
}
