package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/rationable/api/internal/middleware"
	"github.com/rationable/api/internal/modules/content/decision"
	"github.com/rationable/api/internal/modules/processing/llm"
	"github.com/rationable/api/internal/pkg/response"
)

type Handler struct {
	orch   *Orchestrator
	runner *TaskRunner
	logger *zap.Logger
}

func NewHandler(orch *Orchestrator, runner *TaskRunner, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{orch: orch, runner: runner, logger: logger}
}

// RegisterRoutes mounts the analysis endpoints. Anonymous callers may analyze; queued runs,
// task polling and reanalysis need a signed-in user. limit is applied to every route that
// triggers generation.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW, optionalAuthMW gin.HandlerFunc, limit ...gin.HandlerFunc) {
	rg.POST("/decisions/analyze/stream", chain(optionalAuthMW, limit, h.stream)...)
	rg.POST("/decisions/analyze", chain(optionalAuthMW, limit, h.analyze)...)
	rg.POST("/decisions/analyze/task", chain(authMW, limit, h.submit)...)
	rg.POST("/decisions/:id/reanalyze", chain(authMW, limit, h.reanalyze)...)
	rg.GET("/tasks/:id", authMW, h.getTask)
}

func chain(first gin.HandlerFunc, mid []gin.HandlerFunc, last gin.HandlerFunc) []gin.HandlerFunc {
	out := make([]gin.HandlerFunc, 0, len(mid)+2)
	out = append(out, first)
	out = append(out, mid...)
	return append(out, last)
}

func (h *Handler) bind(c *gin.Context) (Request, bool) {
	var req Request
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return req, false
	}
	req.OwnerID = middleware.CurrentUserID(c)
	if err := h.orch.Validate(req); err != nil {
		response.BadRequest(c, err.Error())
		return req, false
	}
	return req, true
}

func writeError(c *gin.Context, err error) {
	var pe *PhaseError
	if errors.As(err, &pe) && pe.Phase == PhaseIdle {
		response.BadRequest(c, pe.Err.Error())
		return
	}
	switch {
	case errors.Is(err, ErrEmptyDilemma), errors.Is(err, ErrDilemmaTooLong), errors.Is(err, ErrNoCriteria):
		response.BadRequest(c, err.Error())
	case errors.Is(err, decision.ErrNotFound), isNotFound(err):
		response.NotFoundMsg(c, err.Error())
	case errors.Is(err, decision.ErrForbidden), errors.Is(err, decision.ErrWorkspaceDenied):
		response.ForbiddenMsg(c, err.Error())
	case errors.Is(err, llm.ErrNoProvider), errors.Is(err, ErrNoStore):
		response.ServiceUnavailable(c, err.Error())
	case errors.Is(err, ErrNoOptions), errors.Is(err, llm.ErrInvalidJSON), errors.Is(err, llm.ErrEmptyResponse):
		response.UnprocessableEntity(c, err.Error())
	default:
		response.InternalError(c, err)
	}
}

// sseObserver writes every event as one SSE frame. Stream headers are sent with the first
// frame, so a request that fails before any event can still answer with a plain error.
func (h *Handler) sseObserver(c *gin.Context) Observer {
	var once sync.Once
	return ObserverFunc(func(e Event) {
		once.Do(func() {
			c.Header("Content-Type", "text/event-stream")
			c.Header("Cache-Control", "no-cache")
			c.Header("Connection", "keep-alive")
			c.Header("X-Accel-Buffering", "no")
			c.Status(http.StatusOK)
		})
		raw, err := json.Marshal(e)
		if err != nil {
			h.logger.Warn("encode analysis event", zap.Error(err))
			return
		}
		fmt.Fprintf(c.Writer, "data: %s\n\n", raw)
		c.Writer.Flush()
	})
}

func wantsStream(c *gin.Context) bool {
	return strings.Contains(c.GetHeader("Accept"), "text/event-stream")
}

// stream runs the analysis while the client is connected. Disconnecting cancels the run.
func (h *Handler) stream(c *gin.Context) {
	req, ok := h.bind(c)
	if !ok {
		return
	}
	_, _ = h.orch.Run(c.Request.Context(), req, h.sseObserver(c))
}

func (h *Handler) analyze(c *gin.Context) {
	req, ok := h.bind(c)
	if !ok {
		return
	}
	d, err := h.orch.Run(c.Request.Context(), req, nil)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		writeError(c, err)
		return
	}
	response.OK(c, d)
}

func (h *Handler) submit(c *gin.Context) {
	if h.runner == nil {
		response.ServiceUnavailable(c, "background analysis is disabled")
		return
	}
	req, ok := h.bind(c)
	if !ok {
		return
	}
	task, err := h.runner.Submit(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Accepted(c, gin.H{"task_id": task.ID, "status": task.Status})
}

func (h *Handler) getTask(c *gin.Context) {
	if h.runner == nil {
		response.NotFound(c)
		return
	}
	task, err := h.runner.Get(c.Request.Context(), c.Param("id"), middleware.CurrentUserID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	response.OK(c, task)
}

func (h *Handler) reanalyze(c *gin.Context) {
	var in ReanalyzeRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if len(normalizeCriteria(in.Criteria, maxCriteriaCount)) == 0 {
		response.BadRequest(c, ErrNoCriteria.Error())
		return
	}
	ctx := c.Request.Context()
	userID := middleware.CurrentUserID(c)
	if wantsStream(c) {
		_, err := h.orch.Reanalyze(ctx, userID, c.Param("id"), in, h.sseObserver(c))
		if err != nil && !c.Writer.Written() && !errors.Is(err, context.Canceled) {
			writeError(c, err)
		}
		return
	}
	d, err := h.orch.Reanalyze(ctx, userID, c.Param("id"), in, nil)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Created(c, d)
}
