// Package health reports backing-store liveness and exposes the background job table.
package health

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rationable/api/internal/pkg/cron"
	"github.com/rationable/api/internal/pkg/response"
	"gorm.io/gorm"
)

const pingTimeout = 2 * time.Second

// Pinger is satisfied by the redis wrapper.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Jobs is the subset of *cron.Scheduler used by the job routes.
type Jobs interface {
	List() []cron.ListItem
	RunNow(ctx context.Context, name string) error
}

type Handler struct {
	db    *gorm.DB
	redis Pinger
	jobs  Jobs
}

func NewHandler(db *gorm.DB, redis Pinger, jobs Jobs) *Handler {
	return &Handler{db: db, redis: redis, jobs: jobs}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	rg.GET("/health", h.health)

	g := rg.Group("/health/cron", authMW)
	g.GET("", h.listJobs)
	g.POST("/run/:name", h.runJob)
}

func (h *Handler) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), pingTimeout)
	defer cancel()

	dbOK := false
	if h.db != nil {
		if sqlDB, err := h.db.DB(); err == nil {
			dbOK = sqlDB.PingContext(ctx) == nil
		}
	}
	redisOK := h.redis != nil && h.redis.Ping(ctx) == nil

	status, code := "ok", http.StatusOK
	if !dbOK || !redisOK {
		status, code = "degraded", http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"status":   status,
		"database": dbOK,
		"redis":    redisOK,
	})
}

func (h *Handler) listJobs(c *gin.Context) {
	items := h.jobs.List()
	sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })
	response.OK(c, items)
}

func (h *Handler) runJob(c *gin.Context) {
	if err := h.jobs.RunNow(c.Request.Context(), c.Param("name")); err != nil {
		response.UnprocessableEntity(c, err.Error())
		return
	}
	response.OK(c, gin.H{"message": "job finished"})
}
