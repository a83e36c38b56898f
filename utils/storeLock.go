package utils

import (
	"context"
	"errors"
	"time"

	"github.com/bsm/redislock"
	"github.com/fr33d0m21/pull/config"
	"github.com/sirupsen/logrus"
)

var (
	ErrorLockUnavailable = errors.New("redis lock is not initialized")
	ErrorStoreBusy       = errors.New("store is busy, try again")
)

// StoreLock takes the redis lock <lockType>:<storeId>, retrying for about
// five seconds, and returns its release func. The lock lapses after ttl if
// the holder never releases it.
func StoreLock(ctx context.Context, storeId string, lockType string, ttl time.Duration, moduleName string, functionName string) (func(), error) {
	locker := config.GetRedisLock()
	if locker == nil {
		return nil, ErrorLockUnavailable
	}
	key := lockType + ":" + storeId
	lock, err := locker.Obtain(ctx, key, ttl, &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(200*time.Millisecond), 25),
	})
	if err != nil {
		config.LogError(config.GetLogger(), moduleName, functionName, "obtain "+key, storeId, err)
		if errors.Is(err, redislock.ErrNotObtained) {
			return nil, ErrorStoreBusy
		}
		return nil, err
	}
	return func() {
		if err := lock.Release(context.Background()); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			config.GetLogger().WithFields(logrus.Fields{"lock": key}).Warn("release: " + err.Error())
		}
	}, nil
}
