package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fr33d0m21/pull/config"
	"github.com/fr33d0m21/pull/middlewares"
	"github.com/fr33d0m21/pull/models"
	"github.com/fr33d0m21/pull/parser"
	"github.com/fr33d0m21/pull/reconcile"
	"github.com/fr33d0m21/pull/utils"
	"github.com/fr33d0m21/pull/workflow"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const defaultPort = "8080"

// newParser builds the upload parser from PARSER_SCHEMA_FILE and PARSER_ROW_POLICY.
func newParser(logger *logrus.Logger) *parser.Parser {
	schema := parser.DefaultSchema()
	if file := strings.TrimSpace(os.Getenv("PARSER_SCHEMA_FILE")); file != "" {
		loaded, err := parser.LoadSchema(file)
		if err != nil {
			config.LogError(logger, "server", "newParser", "load parser schema", file, err)
		} else {
			schema = loaded
		}
	}
	return parser.NewParser(schema, parser.Policy(config.ParserRowPolicy()))
}

func newReconcileService() *reconcile.Service {
	opts := reconcile.OptionsFromEnv()
	opts.Locker = reconcile.RedisLocker{TTL: 2 * time.Minute}
	opts.Cache = reconcile.RedisStatsCache{}
	// nil: the repository picks up the connection once it is established
	return reconcile.NewService(reconcile.NewGormRepository(nil), opts)
}

// correlationMiddleware tags the request with x-correlation-id, minting one
// when the caller sent none.
func correlationMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		cid := c.GetHeader("x-correlation-id")
		if cid == "" {
			cid = uuid.NewString()
		}
		c.Header("x-correlation-id", cid)
		c.Request = c.Request.WithContext(utils.SetCorrelationIdInContext(c.Request.Context(), cid))
		c.Next()
	}
}

// readinessGate answers 503 until the database and redis are connected.
func readinessGate() gin.HandlerFunc {
	return func(c *gin.Context) {
		switch {
		case c.Request.URL.Path == "/healthz":
			c.AbortWithStatus(http.StatusNoContent)
		case config.GetDB() == nil || config.GetRedisDB() == nil:
			c.AbortWithStatus(http.StatusServiceUnavailable)
		default:
			c.Next()
		}
	}
}

// corsConfig allows every origin outside production. In production only
// CORS_ALLOWED_ORIGINS is allowed, and nothing when it is empty.
func corsConfig() cors.Config {
	cfg := cors.DefaultConfig()
	if strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
		cfg.AllowOrigins = originList(os.Getenv("CORS_ALLOWED_ORIGINS"))
		if len(cfg.AllowOrigins) == 0 {
			cfg.AllowOriginFunc = func(string) bool { return false }
		}
	} else {
		cfg.AllowAllOrigins = true
	}
	cfg.AddAllowMethods("GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS")
	cfg.AddAllowHeaders("token", "Origin", "Content-Type", "Authorization", "Idempotency-Key", "x-correlation-id")
	cfg.AddExposeHeaders("Content-Length", "Content-Disposition", "x-correlation-id")
	cfg.AllowCredentials = !cfg.AllowAllOrigins
	return cfg
}

func originList(raw string) []string {
	var out []string
	for _, o := range strings.Split(raw, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// registerRoutes mounts the API. The session, auth and loader middlewares
// must already be installed on r.
func registerRoutes(r *gin.Engine, svc *reconcile.Service, p *parser.Parser, images *utils.ImageBucket) {
	photos := &unitImages{bucket: images, svc: svc}
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.POST("/auth/login", loginHandler())
	r.POST("/pubsub", pubsubPushHandler(svc))
	r.GET("/samples/:type", sampleHandler())

	authed := r.Group("/", middlewares.RequireUser())
	authed.POST("/auth/logout", logoutHandler())
	authed.GET("/me", meHandler())
	authed.PUT("/me/password", changePasswordHandler())

	users := authed.Group("/users", requirePermission(canManageUsers))
	users.GET("", listUsersHandler())
	users.POST("", createUserHandler())
	users.GET("/:id", getUserHandler())
	users.PUT("/:id", updateUserHandler())
	users.PUT("/:id/stores", setUserStoresHandler())

	authed.GET("/stores", listStoresHandler())
	authed.POST("/stores", requirePermission(canManageStores), createStoreHandler())

	view := authed.Group("/stores/:storeId", middlewares.StoreAccess(middlewares.AccessView))
	view.GET("", getStoreHandler())
	view.GET("/orders", listOrdersHandler(svc))
	view.GET("/orders/:id", getOrderHandler(svc))
	view.GET("/lookup/:code", lookupHandler(svc))
	view.GET("/queue", queueHandler(svc))
	view.GET("/queue/groups", trackingGroupsHandler(svc))
	view.GET("/stats", statsHandler(svc))
	view.GET("/summary", summaryHandler(svc))
	view.GET("/tracking", trackingHandler(svc))
	view.GET("/spreadsheets", spreadsheetsHandler(svc))
	view.GET("/completed", completedOrdersHandler(svc))
	view.GET("/export.xlsx", exportOrdersHandler(svc))
	view.GET("/images", photos.object())

	process := authed.Group("/stores/:storeId", middlewares.StoreAccess(middlewares.AccessProcess))
	process.PATCH("/orders/:id", patchOrderHandler(svc))
	process.PATCH("/lines", patchLineHandler(svc))
	process.POST("/images/sign", photos.sign())
	process.POST("/images/complete", photos.complete())
	process.DELETE("/images", photos.remove())

	manage := authed.Group("/stores/:storeId", middlewares.StoreAccess(middlewares.AccessManage))
	manage.PUT("", requirePermission(canManageStores), updateStoreHandler())
	manage.DELETE("", requirePermission(canManageStores), deleteStoreHandler(svc))
	manage.POST("/uploads", uploadHandler(svc, p))
	manage.DELETE("/orders", clearStoreHandler(svc))
	manage.POST("/refresh", refreshStoreHandler(svc))

	ops := manage.Group("/outbox", middlewares.RequireAdmin())
	ops.GET("", outboxCountsHandler())
	ops.POST("/requeue", requeueOutboxHandler())

	r.NoRoute(customNotFoundHandler)
}

func customNotFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
}

// errorLogger logs the errors handlers attached with c.Error.
func errorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if len(c.Errors) == 0 {
			return
		}
		cid, _ := utils.GetCorrelationIdFromContext(c.Request.Context())
		logger.WithFields(logrus.Fields{
			"path":           c.FullPath(),
			"status":         c.Writer.Status(),
			"correlation_id": cid,
		}).Error(c.Errors.String())
	}
}

func listenPort() string {
	for _, key := range []string{"API_PORT", "PORT"} {
		if p := os.Getenv(key); p != "" {
			return p
		}
	}
	return defaultPort
}

func newRouter(logger *logrus.Logger, svc *reconcile.Service) *gin.Engine {
	r := gin.New()
	r.Use(correlationMiddleware(), readinessGate(), cors.New(corsConfig()))
	r.Use(middlewares.SessionMiddleware(), middlewares.AuthMiddleware())
	if config.EnvBool("RATE_LIMIT_ENABLED") {
		r.Use(middlewares.RateLimit(
			int64(config.IntFromEnv("RATE_LIMIT_MAX_REQUESTS", 600)),
			config.SecondsFromEnv("RATE_LIMIT_WINDOW_SECONDS", 60),
		))
	}
	r.Use(middlewares.LoaderMiddleware(), errorLogger(logger), gin.Recovery())
	registerRoutes(r, svc, newParser(logger), utils.ImageBucketFromEnv())
	return r
}

func main() {
	logger := config.GetLogger()
	binding.EnableDecoderDisallowUnknownFields = true

	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	// Listen first; readinessGate holds requests until the stores connect.
	srv := &http.Server{Addr: ":" + listenPort(), Handler: newRouter(logger, newReconcileService())}
	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.ListenAndServe() }()

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	db := config.GetDB()

	if config.EnvBool("SKIP_MIGRATIONS") {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	} else {
		models.MigrateTable()
	}

	workers, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()
	if config.EnvBool("OUTBOX_DISPATCH_ENABLED") {
		go workflow.NewOutboxDispatcher(db, logger).Run(workers)
	}
	logger.WithFields(logrus.Fields{"addr": srv.Addr}).Info("[server.ready]")

	select {
	case <-sigCtx.Done():
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	stopWorkers()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}

	config.ClosePubSub()
	if rdb := config.GetRedisDB(); rdb != nil {
		_ = rdb.Close()
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
