package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDatabaseDSN(t *testing.T) {
	t.Setenv("DB_USER", "pull")
	t.Setenv("DB_PASSWORD", "secret")
	t.Setenv("DB_HOST", "10.0.0.5")
	t.Setenv("DB_PORT", "3306")
	t.Setenv("DB_NAME", "pull")

	dsn := DatabaseDSN()
	assert.Contains(t, dsn, "pull:secret@tcp(10.0.0.5:3306)/pull?")
	assert.Contains(t, dsn, "parseTime=true")
	assert.Contains(t, dsn, "multiStatements=true")
	assert.Contains(t, dsn, "charset=utf8mb4")

	t.Setenv("DB_HOST", "/cloudsql/proj:region:db")
	assert.Contains(t, DatabaseDSN(), "@unix(/cloudsql/proj:region:db)/pull?")
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("X_INT", " 7 ")
	t.Setenv("X_BAD", "seven")
	assert.Equal(t, 7, IntFromEnv("X_INT", 1))
	assert.Equal(t, 1, IntFromEnv("X_BAD", 1))
	assert.Equal(t, 1, IntFromEnv("X_MISSING", 1))
	assert.Equal(t, 7*time.Second, SecondsFromEnv("X_INT", 1))

	assert.Equal(t, 2*time.Second, RetrySleep(1))
	assert.Equal(t, 16*time.Second, RetrySleep(4))
	assert.Equal(t, 30*time.Second, RetrySleep(9))
}

func TestPolicies(t *testing.T) {
	t.Setenv("PARSER_ROW_POLICY", "STRICT")
	t.Setenv("COMPLETION_POLICY", "whatever")
	t.Setenv("ORDER_VERSION_CHECK", "yes")
	t.Setenv("PROCESS_ORDER_MAX_RETRIES", "-3")
	t.Setenv("PROCESS_ORDER_RETRY_BACKOFF_MS", "250")

	assert.Equal(t, RowPolicyStrict, ParserRowPolicy())
	assert.Equal(t, CompletionPolicyLoose, CompletionPolicy())
	assert.True(t, OrderVersionCheck())
	retries, backoff := ProcessOrderRetry()
	assert.Equal(t, 0, retries)
	assert.Equal(t, 250*time.Millisecond, backoff)
}
