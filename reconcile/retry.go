package reconcile

import (
	"context"
	"time"

	"github.com/fr33d0m21/pull/config"
	"github.com/sirupsen/logrus"
)

// RetryPolicy retries a failed write MaxRetries times, sleeping
// Backoff*attempt in between.
type RetryPolicy struct {
	MaxRetries int
	Backoff    time.Duration
}

func RetryPolicyFromEnv() RetryPolicy {
	retries, backoff := config.ProcessOrderRetry()
	return RetryPolicy{MaxRetries: retries, Backoff: backoff}
}

// Do runs fn until it succeeds, fails permanently, runs out of attempts or
// ctx is done. The last error is returned.
func (p RetryPolicy) Do(ctx context.Context, funcName string, fn func(attempt int) error) error {
	var err error
	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		if attempt > 0 {
			wait := p.Backoff * time.Duration(attempt)
			config.LogWarning(config.GetLogger(), "reconcile", funcName, "retrying after write failure", logrus.Fields{
				"attempt": attempt,
				"wait":    wait.String(),
				"error":   err.Error(),
			})
			if wait > 0 {
				timer := time.NewTimer(wait)
				select {
				case <-ctx.Done():
					timer.Stop()
					return err
				case <-timer.C:
				}
			}
		}
		err = fn(attempt)
		if err == nil || isPermanent(err) {
			return err
		}
		if ctx.Err() != nil {
			return err
		}
	}
	return err
}
