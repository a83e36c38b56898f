// Package appctx holds the request context keys shared by config, utils and
// the middlewares. It imports nothing from the module so any package can use it.
package appctx

import "context"

type ContextKey string

func (c ContextKey) String() string { return string(c) }

const (
	ContextKeyToken         ContextKey = "Token"
	ContextKeyStoreId       ContextKey = "StoreId"
	ContextKeyUsername      ContextKey = "Username"
	ContextKeyUserId        ContextKey = "UserId"
	ContextKeyCorrelationId ContextKey = "CorrelationId"

	// ContextKeySkipTenantScope turns the store_id guard off (CLI, seeding,
	// the reconcile repository which scopes every query itself).
	ContextKeySkipTenantScope ContextKey = "SkipTenantScope"
)

// Value returns the value under key when it has type T.
func Value[T any](ctx context.Context, key ContextKey) (T, bool) {
	v, ok := ctx.Value(key).(T)
	return v, ok
}

func GetString(ctx context.Context, key ContextKey) (string, bool) {
	return Value[string](ctx, key)
}

func GetBool(ctx context.Context, key ContextKey) (bool, bool) {
	return Value[bool](ctx, key)
}

func Set(ctx context.Context, key ContextKey, value any) context.Context {
	return context.WithValue(ctx, key, value)
}
