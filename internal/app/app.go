package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rationable/api/internal/config"
	"github.com/rationable/api/internal/database"
	"github.com/rationable/api/internal/middleware"
	"github.com/rationable/api/internal/modules/processing/analysis"
	"github.com/rationable/api/internal/modules/storage/cache"
	pkgcron "github.com/rationable/api/internal/pkg/cron"
	jwtpkg "github.com/rationable/api/internal/pkg/jwt"
	pkgredis "github.com/rationable/api/internal/pkg/redis"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Cache namespaces. Each one is a separate Redis hash (or in-memory map) with its own bounds.
const (
	cacheDecisions = "decision"
	cacheEnrich    = "enrich"
	cacheGeo       = "geo"
)

// App holds all application dependencies.
type App struct {
	cfg      *config.AppConfig
	router   *gin.Engine
	db       *gorm.DB
	rc       *pkgredis.Client
	verifier *jwtpkg.Verifier
	caches   map[string]*cache.Cache
	runner   *analysis.TaskRunner
	logger   *zap.Logger
	cancel   context.CancelFunc
	sched    *pkgcron.Scheduler
}

// New initializes the application: config → DB → Redis → services → routes → cron.
func New(logger *zap.Logger, cfg *config.AppConfig) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := applyRuntimeSettings(cfg); err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.Auth.JWTSecret) == "" {
		logger.Warn("auth.jwt_secret is empty, every authenticated route will reject requests")
	}

	db, err := database.Connect(cfg, cfg.IsDev())
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}

	rc, err := pkgredis.Connect(cfg.Redis.URLValue())
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}

	if cfg.IsDev() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(logger))
	router.Use(cors.New(corsConfig(cfg)))

	ctx, cancel := context.WithCancel(context.Background())
	app := &App{
		cfg:      cfg,
		router:   router,
		db:       db,
		rc:       rc,
		verifier: jwtpkg.NewVerifier(cfg.Auth.JWTSecret),
		logger:   logger,
		cancel:   cancel,
		sched:    pkgcron.New(logger.Named("CronService")),
	}
	app.caches = map[string]*cache.Cache{
		cacheDecisions: app.newCache(cacheDecisions),
		cacheEnrich:    app.newCache(cacheEnrich),
		cacheGeo:       app.newCache(cacheGeo),
	}

	if err := app.registerRoutes(ctx); err != nil {
		cancel()
		_ = rc.Close()
		return nil, err
	}

	app.registerCronJobs()
	app.sched.Start(ctx)
	return app, nil
}

func (a *App) newCache(namespace string) *cache.Cache {
	var store cache.Store
	if a.cfg.Cache.Backend == "memory" {
		store = cache.NewMemoryStore()
	} else {
		store = cache.NewRedisStore(a.rc.Raw(), namespace)
	}
	return cache.New(store,
		cache.WithTTL(a.cfg.Cache.TTL),
		cache.WithMaxEntries(a.cfg.Cache.MaxEntries),
		cache.WithLogger(a.logger.Named("Cache").With(zap.String("namespace", namespace))),
	)
}

// Addr returns the listen address.
func (a *App) Addr() string { return fmt.Sprintf(":%d", a.cfg.Port) }

// Router returns the HTTP handler.
func (a *App) Router() http.Handler { return a.router }

// Shutdown stops background jobs and queued analyses, then releases Redis and the database.
func (a *App) Shutdown() {
	a.cancel()
	if a.runner != nil {
		a.runner.Close()
	}
	a.sched.Wait()
	if err := a.rc.Close(); err != nil {
		a.logger.Warn("close redis", zap.Error(err))
	}
	if sqlDB, err := a.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
