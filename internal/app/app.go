package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/router-for-me/CandidatePortal/internal/analytics"
	"github.com/router-for-me/CandidatePortal/internal/config"
	"github.com/router-for-me/CandidatePortal/internal/db"
	"github.com/router-for-me/CandidatePortal/internal/gotrue"
	authapi "github.com/router-for-me/CandidatePortal/internal/http/api/auth"
	"github.com/router-for-me/CandidatePortal/internal/http/api/auth/handlers"
	"github.com/router-for-me/CandidatePortal/internal/ratelimit"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// shutdownTimeout bounds graceful shutdown of the HTTP server.
const shutdownTimeout = 5 * time.Second

// Dependencies are the components wired into the HTTP engine.
type Dependencies struct {
	DB         *gorm.DB
	Limiter    handlers.Limiter
	Provider   handlers.Provider
	Tracker    handlers.Tracker
	TestEvents *analytics.MemorySink
}

// Migrate opens the database and runs migrations.
func Migrate(ctx context.Context, cfg config.AppConfig) error {
	configPath := config.ResolveConfigPath(cfg.ConfigPath)
	dsn, err := config.LoadDatabaseDSN(configPath)
	if err != nil {
		return err
	}
	conn, err := db.Open(dsn)
	if err != nil {
		return err
	}
	defer closeDB(conn)
	if errMigrate := db.Migrate(conn.WithContext(ctx)); errMigrate != nil {
		return errMigrate
	}
	log.Info("migrations applied")
	return nil
}

// RunServer boots the portal API and blocks until ctx is cancelled.
func RunServer(ctx context.Context, cfg config.AppConfig) error {
	configPath := config.ResolveConfigPath(cfg.ConfigPath)

	listenAddr, err := config.LoadListenAddr(configPath)
	if err != nil {
		return err
	}
	gotrueCfg, err := config.LoadGoTrueConfig(configPath)
	if err != nil {
		return err
	}
	analyticsCfg, err := config.LoadAnalyticsConfig(configPath)
	if err != nil {
		return err
	}

	conn, err := openDatabase(configPath, analyticsCfg.Store == config.AnalyticsStoreDatabase)
	if err != nil {
		return err
	}
	if conn != nil {
		defer closeDB(conn)
	}

	sinks := []analytics.Sink{analytics.NewLogSink(nil)}
	if analyticsCfg.Store == config.AnalyticsStoreDatabase {
		sinks = append(sinks, analytics.NewGormSink(conn))
	}
	var testEvents *analytics.MemorySink
	if analyticsCfg.TestMode {
		testEvents = analytics.NewMemorySink()
		sinks = append(sinks, testEvents)
		log.Warn("analytics test mode enabled, events are exposed at /api/testing/analytics-events")
	}

	limiter := ratelimit.NewManager(nil, nil, nil)
	defer func() {
		if errClose := limiter.Close(); errClose != nil {
			log.WithError(errClose).Warn("rate limit: close shared store failed")
		}
	}()
	logRateLimitMode(ratelimit.LoadSettingsConfig())

	gin.SetMode(gin.ReleaseMode)
	engine := NewEngine(Dependencies{
		DB:         conn,
		Limiter:    limiter,
		Provider:   gotrue.NewClient(gotrueCfg.URL, gotrueCfg.AnonKey, nil),
		Tracker:    analytics.NewTracker(sinks...),
		TestEvents: testEvents,
	})

	srv := &http.Server{
		Addr:              listenAddr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if errShutdown := srv.Shutdown(shutdownCtx); errShutdown != nil {
			log.Errorf("server shutdown error: %v", errShutdown)
		}
	}()

	log.Infof("starting candidate portal on %s (config=%s)", listenAddr, configPath)
	if errListen := srv.ListenAndServe(); errListen != nil && !errors.Is(errListen, http.ErrServerClosed) {
		return errListen
	}
	return nil
}

// NewEngine builds the gin engine with every portal route registered.
func NewEngine(deps Dependencies) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(corsMiddleware())

	engine.GET("/healthz", healthz(deps.DB))
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	authapi.RegisterAuthRoutes(engine, deps.Limiter, deps.Provider, deps.Tracker, deps.TestEvents)

	engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": gin.H{"code": "NOT_FOUND", "message": "Not found."}})
	})
	return engine
}

// openDatabase connects and migrates when a DSN is configured. The database is
// optional unless required is set.
func openDatabase(configPath string, required bool) (*gorm.DB, error) {
	dsn, errDSN := config.LoadDatabaseDSN(configPath)
	if errDSN != nil {
		if required {
			return nil, fmt.Errorf("analytics database store: %w", errDSN)
		}
		log.WithError(errDSN).Info("no database configured, continuing without persistence")
		return nil, nil
	}
	if fields, errFields := dsnLogFields(dsn); errFields == nil {
		log.WithFields(fields).Info("opening database")
	}
	conn, err := db.Open(dsn)
	if err != nil {
		return nil, err
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		closeDB(conn)
		return nil, errMigrate
	}
	return conn, nil
}

func closeDB(conn *gorm.DB) {
	sqlDB, errDB := conn.DB()
	if errDB != nil {
		return
	}
	if errClose := sqlDB.Close(); errClose != nil {
		log.WithError(errClose).Warn("close database failed")
	}
}

// logRateLimitMode reports the resolved store without its secrets.
func logRateLimitMode(cfg ratelimit.SettingsConfig) {
	fields := log.Fields{"mode": cfg.Mode}
	if cfg.Mode == ratelimit.ModeShared {
		fields["backend"] = cfg.Backend
	}
	log.WithFields(fields).Info("auth rate limiting configured")
}

// healthz reports liveness and, when a database is attached, its reachability.
func healthz(conn *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if conn != nil {
			sqlDB, errDB := conn.DB()
			if errDB == nil {
				errDB = sqlDB.PingContext(c.Request.Context())
			}
			if errDB != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "database": "unreachable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

// corsMiddleware answers preflight requests for the portal web client.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
