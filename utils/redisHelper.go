package utils

import (
	"context"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"time"

	"github.com/fr33d0m21/pull/config"
)

// CACHE_LIFESPAN in hours, default 1.
func GetCacheLifespan() time.Duration {
	hours, err := strconv.Atoi(os.Getenv("CACHE_LIFESPAN"))
	if err != nil || hours <= 0 {
		hours = 1
	}
	return time.Duration(hours) * time.Hour
}

func GetTypeName[T any]() string {
	var v T
	return reflect.TypeOf(v).Name()
}

// CacheKey is "<Type>:<id>", e.g. Store:3f2a or Stats:<store id>.
func CacheKey[T any](id any) string {
	return GetTypeName[T]() + ":" + fmt.Sprint(id)
}

func CachePut[T any](ctx context.Context, obj *T, id any) error {
	return config.SetRedisObject(ctx, CacheKey[T](id), obj, GetCacheLifespan())
}

// CacheGet returns nil, nil on a miss.
func CacheGet[T any](ctx context.Context, id any) (*T, error) {
	var result T
	exists, err := config.GetRedisObject(ctx, CacheKey[T](id), &result)
	if err != nil || !exists {
		return nil, err
	}
	return &result, nil
}

func CacheDrop[T any](ctx context.Context, id any) error {
	return config.RemoveRedisKey(ctx, CacheKey[T](id))
}
