// internal/ledger/retry.go
package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
)

// RetryPolicy bounds how long a backend replays conflicting units of work.
type RetryPolicy struct {
	MaxTries   uint
	MaxElapsed time.Duration
}

// DefaultRetryPolicy is used when a backend is given a zero policy.
var DefaultRetryPolicy = RetryPolicy{MaxTries: 10, MaxElapsed: 5 * time.Second}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxTries == 0 {
		p.MaxTries = DefaultRetryPolicy.MaxTries
	}
	if p.MaxElapsed == 0 {
		p.MaxElapsed = DefaultRetryPolicy.MaxElapsed
	}
	return p
}

// RetryOnConflict replays attempt while it fails with ErrConflict. Any other
// error ends the loop immediately and is returned unchanged.
func RetryOnConflict(ctx context.Context, policy RetryPolicy, logger *zap.Logger, attempt func() error) error {
	policy = policy.withDefaults()

	operation := func() (struct{}, error) {
		err := attempt()
		if err == nil || errors.Is(err, ErrConflict) {
			return struct{}{}, err
		}
		return struct{}{}, backoff.Permanent(err)
	}

	notify := func(err error, d time.Duration) {
		logger.Debug("Retrying ledger transaction",
			zap.Error(err),
			zap.Duration("backoff", d))
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 5 * time.Millisecond
	b.MaxInterval = 200 * time.Millisecond

	_, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(policy.MaxTries),
		backoff.WithMaxElapsedTime(policy.MaxElapsed),
		backoff.WithNotify(notify))
	return err
}
