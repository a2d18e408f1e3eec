package notifications

import (
	"context"
	"time"

	"github.com/angelmondragon/shopflow-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/shopflow-backend/pkg/errors"
)

// RetryPolicy bounds how hard the consumer tries a send before giving the
// message back to Pub/Sub.
type RetryPolicy struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// DefaultRetryPolicy is three attempts starting at 500ms.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:   3,
		InitialDelay:  500 * time.Millisecond,
		MaxDelay:      10 * time.Second,
		BackoffFactor: 2.0,
	}
}

// RetryPolicyFromConfig fills gaps in cfg with the defaults.
func RetryPolicyFromConfig(cfg config.NotificationsConfig) RetryPolicy {
	p := DefaultRetryPolicy()
	if cfg.SendAttempts > 0 {
		p.MaxAttempts = cfg.SendAttempts
	}
	if cfg.InitialBackoff > 0 {
		p.InitialDelay = cfg.InitialBackoff
	}
	if cfg.MaxBackoff > 0 {
		p.MaxDelay = cfg.MaxBackoff
	}
	if cfg.BackoffFactor >= 1 {
		p.BackoffFactor = cfg.BackoffFactor
	}
	return p
}

// delays returns the waits between consecutive attempts.
func (p RetryPolicy) delays() []time.Duration {
	if p.MaxAttempts <= 1 {
		return nil
	}
	out := make([]time.Duration, 0, p.MaxAttempts-1)
	delay := p.InitialDelay
	for i := 1; i < p.MaxAttempts; i++ {
		if p.MaxDelay > 0 && delay > p.MaxDelay {
			delay = p.MaxDelay
		}
		out = append(out, delay)
		delay = time.Duration(float64(delay) * p.BackoffFactor)
	}
	return out
}

// retryable is false for errors that will fail the same way every time.
func retryable(err error) bool {
	return !pkgerrors.HasCode(err, pkgerrors.CodeValidation)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
