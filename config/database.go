package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	mysqlDriver "github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	db *gorm.DB
)

func GetDB() *gorm.DB {
	return db
}

// SetDB swaps the global handle. Used by tooling that opens its own connection.
func SetDB(conn *gorm.DB) {
	db = conn
}

func init() {
	godotenv.Load()
}

// DatabaseDSN builds the MySQL DSN from DB_USER, DB_PASSWORD, DB_HOST,
// DB_PORT and DB_NAME. A DB_HOST of "/cloudsql/<instance>" is dialed as a
// unix socket.
func DatabaseDSN() string {
	cfg := mysqlDriver.NewConfig()
	cfg.User = os.Getenv("DB_USER")
	cfg.Passwd = os.Getenv("DB_PASSWORD")
	cfg.DBName = os.Getenv("DB_NAME")
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	cfg.MultiStatements = true
	cfg.Params = map[string]string{"charset": "utf8mb4"}

	host := os.Getenv("DB_HOST")
	if strings.HasPrefix(host, "/cloudsql/") {
		cfg.Net = "unix"
		cfg.Addr = host
	} else {
		cfg.Net = "tcp"
		cfg.Addr = host + ":" + os.Getenv("DB_PORT")
	}
	return cfg.FormatDSN()
}

// ConnectDatabaseWithRetry blocks until MySQL accepts the DSN, then installs
// the tracing and store guard plugins and sets the global handle. Call it
// after the HTTP server is listening.
func ConnectDatabaseWithRetry() {
	log := GetLogger()
	dsn := DatabaseDSN()

	for attempt := 1; ; attempt++ {
		conn, err := gorm.Open(mysql.Open(dsn), &gorm.Config{Logger: gormLogger()})
		if err == nil {
			tunePool(conn)
			for _, plugin := range []gorm.Plugin{otelgorm.NewPlugin(), NewTenantGuardPlugin()} {
				if err := conn.Use(plugin); err != nil {
					log.WithField("plugin", plugin.Name()).Error("install gorm plugin: " + err.Error())
				}
			}
			db = conn
			log.WithField("attempt", attempt).Info("connected to database")
			return
		}

		sleep := RetrySleep(attempt)
		log.WithFields(logrus.Fields{
			"attempt": attempt,
			"retry":   sleep.String(),
		}).Warn("failed to connect database: " + err.Error())
		time.Sleep(sleep)
	}
}

// tunePool applies DB_MAX_OPEN_CONNS (50), DB_MAX_IDLE_CONNS (25),
// DB_CONN_MAX_LIFETIME_SECONDS (300) and DB_CONN_MAX_IDLE_TIME_SECONDS (60).
func tunePool(conn *gorm.DB) {
	sqlDB, err := conn.DB()
	if err != nil {
		return
	}
	if n := IntFromEnv("DB_MAX_OPEN_CONNS", 50); n > 0 {
		sqlDB.SetMaxOpenConns(n)
	}
	if n := IntFromEnv("DB_MAX_IDLE_CONNS", 25); n >= 0 {
		sqlDB.SetMaxIdleConns(n)
	}
	if d := SecondsFromEnv("DB_CONN_MAX_LIFETIME_SECONDS", 300); d > 0 {
		sqlDB.SetConnMaxLifetime(d)
	}
	if d := SecondsFromEnv("DB_CONN_MAX_IDLE_TIME_SECONDS", 60); d > 0 {
		sqlDB.SetConnMaxIdleTime(d)
	}
}

func IntFromEnv(key string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return def
	}
	return n
}

func SecondsFromEnv(key string, def int) time.Duration {
	return time.Duration(IntFromEnv(key, def)) * time.Second
}

// RetrySleep is the connect backoff: 2^attempt seconds, capped at 30s.
func RetrySleep(attempt int) time.Duration {
	sleep := time.Second << min(attempt, 5)
	if sleep > 30*time.Second {
		sleep = 30 * time.Second
	}
	return sleep
}

// gormLogger writes slow and failed statements through the app logger.
// GORM_LOG=info logs every statement.
func gormLogger() logger.Interface {
	level := logger.Warn
	if strings.EqualFold(os.Getenv("GORM_LOG"), "info") {
		level = logger.Info
	}
	return logger.New(GetLogger(), logger.Config{
		LogLevel:                  level,
		SlowThreshold:             time.Second,
		IgnoreRecordNotFoundError: true,
	})
}
