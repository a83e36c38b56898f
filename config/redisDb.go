package config

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"time"

	"github.com/bsm/redislock"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Redis holds sessions (Token:<t>, Tokens:<user>), cached profiles
// (User:<name>), per-store stats and the store locks. Every helper is a
// no-op while the client is not connected, so a cold cache only costs a
// database read.
var (
	rdb    *redis.Client
	locker *redislock.Client
)

func GetRedisDB() *redis.Client {
	return rdb
}

func GetRedisLock() *redislock.Client {
	return locker
}

// SetRedisDB installs an already connected client (tests, tooling).
func SetRedisDB(client *redis.Client) {
	rdb = client
	if client == nil {
		locker = nil
		return
	}
	locker = redislock.New(client)
}

// GetRedisObject decodes the JSON at key into dest; false when absent.
func GetRedisObject(ctx context.Context, key string, dest interface{}) (bool, error) {
	val, ok, err := GetRedisValue(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal([]byte(val), dest); err != nil {
		return false, err
	}
	return true, nil
}

func GetRedisValue(ctx context.Context, key string) (string, bool, error) {
	if rdb == nil {
		return "", false, nil
	}
	val, err := rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	} else if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func SetRedisObject(ctx context.Context, key string, obj interface{}, exp time.Duration) error {
	if rdb == nil {
		return nil
	}
	b, err := json.Marshal(obj)
	if err != nil {
		return err
	}
	return rdb.Set(ctx, key, b, exp).Err()
}

// AddSession records token -> username and adds token to the user's
// session set in one round trip. The set lives as long as its newest token.
func AddSession(ctx context.Context, username, token string, exp time.Duration) error {
	if rdb == nil {
		return errors.New("session store not ready")
	}
	_, err := rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, "Token:"+token, username, exp)
		pipe.SAdd(ctx, "Tokens:"+username, token)
		pipe.Expire(ctx, "Tokens:"+username, exp)
		return nil
	})
	return err
}

// RemoveSession drops one token of username.
func RemoveSession(ctx context.Context, username, token string) error {
	if rdb == nil {
		return nil
	}
	_, err := rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, "Token:"+token)
		pipe.SRem(ctx, "Tokens:"+username, token)
		return nil
	})
	return err
}

// SessionTokens lists the live tokens of username.
func SessionTokens(ctx context.Context, username string) ([]string, error) {
	if rdb == nil {
		return nil, nil
	}
	return rdb.SMembers(ctx, "Tokens:"+username).Result()
}

func RemoveRedisKey(ctx context.Context, keys ...string) error {
	if rdb == nil || len(keys) == 0 {
		return nil
	}
	return rdb.Del(ctx, keys...).Err()
}

func init() {
	godotenv.Load()
}

// ConnectRedisWithRetry blocks until REDIS_ADDRESS answers a PING, then
// installs the client and the lock client. Call it after the HTTP server is
// listening.
func ConnectRedisWithRetry() {
	addr := os.Getenv("REDIS_ADDRESS")
	if addr == "" {
		addr = "localhost:6379"
	}
	logger := GetLogger().WithField("addr", addr)

	for attempt := 1; ; attempt++ {
		client := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: os.Getenv("REDIS_PASSWORD"),
			PoolSize: IntFromEnv("REDIS_POOL_SIZE", 100),
		})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := client.Ping(ctx).Err()
		cancel()
		if err == nil {
			SetRedisDB(client)
			logger.WithField("attempt", attempt).Info("connected to redis")
			return
		}

		_ = client.Close()
		sleep := RetrySleep(attempt)
		logger.WithFields(logrus.Fields{
			"attempt": attempt,
			"retry":   sleep.String(),
		}).Warn("failed to connect redis: " + err.Error())
		time.Sleep(sleep)
	}
}
