package config

import (
	"os"
	"strings"
	"time"
)

const (
	RowPolicyPermissive = "permissive"
	RowPolicyStrict     = "strict"

	CompletionPolicyLoose  = "loose"
	CompletionPolicyStrict = "strict"
)

// ParserRowPolicy decides what happens to rows missing sku/order-id.
//
// Set via env:
// - PARSER_ROW_POLICY=permissive (skip + warn, default) | strict (fail the file)
func ParserRowPolicy() string {
	if strings.EqualFold(strings.TrimSpace(os.Getenv("PARSER_ROW_POLICY")), RowPolicyStrict) {
		return RowPolicyStrict
	}
	return RowPolicyPermissive
}

// CompletionPolicy decides whether completing an order requires the received
// quantity to match the expected quantity.
//
// Set via env:
// - COMPLETION_POLICY=loose (default) | strict
func CompletionPolicy() string {
	if strings.EqualFold(strings.TrimSpace(os.Getenv("COMPLETION_POLICY")), CompletionPolicyStrict) {
		return CompletionPolicyStrict
	}
	return CompletionPolicyLoose
}

// OrderVersionCheck makes expectedVersion mandatory on order patches.
// Off by default: concurrent edits are last-write-wins.
//
// Set via env:
// - ORDER_VERSION_CHECK=true
func OrderVersionCheck() bool {
	return envBool("ORDER_VERSION_CHECK")
}

// ProcessOrderRetry returns the retry budget for persistence failures while
// processing an order. Backoff is linear: backoff * attempt.
//
// Set via env:
// - PROCESS_ORDER_MAX_RETRIES (default 2)
// - PROCESS_ORDER_RETRY_BACKOFF_MS (default 1000)
func ProcessOrderRetry() (int, time.Duration) {
	retries := IntFromEnv("PROCESS_ORDER_MAX_RETRIES", 2)
	if retries < 0 {
		retries = 0
	}
	backoffMs := IntFromEnv("PROCESS_ORDER_RETRY_BACKOFF_MS", 1000)
	if backoffMs < 0 {
		backoffMs = 0
	}
	return retries, time.Duration(backoffMs) * time.Millisecond
}

func envBool(key string) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}

// EnvBool exposes the truthy parser used for feature flags.
func EnvBool(key string) bool {
	return envBool(key)
}
