package app

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/rationable/api/internal/middleware"
	"github.com/rationable/api/internal/modules/content/comment"
	"github.com/rationable/api/internal/modules/content/decision"
	"github.com/rationable/api/internal/modules/content/settings"
	"github.com/rationable/api/internal/modules/content/template"
	"github.com/rationable/api/internal/modules/content/workspace"
	"github.com/rationable/api/internal/modules/gateway/forward"
	"github.com/rationable/api/internal/modules/geo"
	"github.com/rationable/api/internal/modules/processing/analysis"
	"github.com/rationable/api/internal/modules/processing/enrich"
	"github.com/rationable/api/internal/modules/processing/llm"
	"github.com/rationable/api/internal/modules/system/health"
	"github.com/rationable/api/internal/pkg/response"
	"github.com/rationable/api/internal/pkg/taskqueue"
	"go.uber.org/zap"
)

const (
	apiPrefix       = "/api/v1"
	functionsPrefix = "/functions/v1"
)

var appInfo = gin.H{
	"name":    "rationable-api",
	"version": "1.0.0",
}

func (a *App) registerRoutes(ctx context.Context) error {
	r := a.router
	cfg := a.cfg
	rc := a.rc
	authMW := middleware.Auth(a.verifier)
	optionalAuthMW := middleware.OptionalAuth(a.verifier)

	r.NoRoute(func(c *gin.Context) {
		response.NotFound(c)
	})
	r.NoMethod(func(c *gin.Context) {
		response.MethodNotAllowed(c)
	})
	r.GET("/", func(c *gin.Context) {
		response.OK(c, appInfo)
	})

	// Shared services
	llmRouter := llm.NewRouter(cfg.AI)
	clients, err := enrich.NewClients(ctx, cfg.Search)
	if err != nil {
		return fmt.Errorf("search clients: %w", err)
	}
	enrichLogger := a.logger.Named("EnrichService")
	enrichSvc := enrich.NewService(
		enrich.ImageChain(clients, cfg.Search.PlaceholderImage, enrichLogger),
		clients.Google,
		enrich.NewFavicons("", enrichLogger),
		a.caches[cacheEnrich],
		cfg.Cache.EnrichTTL,
		enrichLogger,
	)
	workspaceSvc := workspace.NewService(a.db)
	decisionSvc := decision.NewService(a.db, workspaceSvc)
	decisionSvc.OnRevoke(func(ctx context.Context, publicID string) {
		if err := middleware.PurgePublicPath(ctx, rc, apiPrefix+"/shared/"+publicID); err != nil {
			a.logger.Warn("purge shared decision cache failed", zap.String("public_id", publicID), zap.Error(err))
		}
	})
	settingsSvc := settings.NewService(a.db, rc, cfg.Search.RealtimeDailyLimit)
	locator := geo.NewLocator(cfg.Geo.Endpoint, a.caches[cacheGeo], cfg.Geo.TTL, a.logger.Named("GeoService"))

	orch := analysis.New(analysis.NewLLMGenerator(llmRouter),
		analysis.WithCache(a.caches[cacheDecisions]),
		analysis.WithEnricher(enrichSvc),
		analysis.WithStore(decisionSvc),
		analysis.WithCriteriaCount(cfg.Analysis.CriteriaCount),
		analysis.WithOptionCount(cfg.Analysis.OptionCount),
		analysis.WithRevealInterval(cfg.Analysis.RevealInterval),
		analysis.WithLogger(a.logger.Named("AnalysisService")),
	)
	a.runner = analysis.NewTaskRunner(orch, taskqueue.NewService(rc), 0, a.logger.Named("AnalysisTask"))

	analyzeLimit := middleware.RateLimit(rc, "analyze", cfg.RateLimit.Max, cfg.RateLimit.Window, a.logger)
	functionLimit := middleware.RateLimit(rc, "functions", cfg.RateLimit.Max, cfg.RateLimit.Window, a.logger)

	// Versioned API
	api := r.Group(apiPrefix)
	health.NewHandler(a.db, rc, a.sched).RegisterRoutes(api, authMW)
	geo.NewHandler(locator).RegisterRoutes(api)
	analysis.NewHandler(orch, a.runner, a.logger.Named("AnalysisHandler")).
		RegisterRoutes(api, authMW, optionalAuthMW, analyzeLimit)
	decision.NewHandler(decisionSvc).RegisterRoutes(api, authMW, middleware.PublicCache(rc, 0))

	// Collaborative writes reject duplicate submissions per user.
	writes := api.Group("", optionalAuthMW, middleware.Idempotence(rc))
	workspace.NewHandler(workspaceSvc).RegisterRoutes(writes, authMW)
	template.NewHandler(template.NewService(a.db)).RegisterRoutes(writes, authMW, optionalAuthMW)
	// Reaction toggles legitimately repeat a body.
	comment.NewHandler(comment.NewService(a.db, decisionSvc, cfg.Comments.BlockedKeywords)).RegisterRoutes(api, authMW)
	settings.NewHandler(settingsSvc).RegisterRoutes(api, authMW)

	// Serverless-style forwarders
	functions := r.Group(functionsPrefix)
	forward.NewHandler(llmRouter, clients, settingsSvc, locator, a.logger.Named("Functions")).
		RegisterRoutes(functions, authMW, functionLimit)

	return nil
}
