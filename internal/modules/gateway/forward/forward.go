// Package forward serves the single-request pass-through functions the browser client
// calls instead of talking to third-party APIs with its own keys.
package forward

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/rationable/api/internal/middleware"
	"github.com/rationable/api/internal/models"
	"github.com/rationable/api/internal/modules/content/settings"
	"github.com/rationable/api/internal/modules/geo"
	"github.com/rationable/api/internal/modules/processing/enrich"
	"github.com/rationable/api/internal/modules/processing/llm"
	"github.com/rationable/api/internal/pkg/response"
)

// Router resolves the model behind a forward. *llm.Router satisfies it.
type Router interface {
	For(task llm.Task) (llm.Generator, error)
	ForModel(task llm.Task, model string) (llm.Generator, error)
}

// Quota meters real-time searches. *settings.Service satisfies it.
type Quota interface {
	ConsumeRealtime(ctx context.Context, userID string) (settings.Usage, error)
}

// Locator resolves a client IP. *geo.Locator satisfies it.
type Locator interface {
	Lookup(ctx context.Context, ip string) (*geo.Location, error)
}

type Handler struct {
	router  Router
	clients *enrich.Clients
	quota   Quota
	locator Locator
	logger  *zap.Logger
}

func NewHandler(router Router, clients *enrich.Clients, quota Quota, locator Locator, logger *zap.Logger) *Handler {
	if clients == nil {
		clients = &enrich.Clients{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{router: router, clients: clients, quota: quota, locator: locator, logger: logger}
}

// permissiveCORS lets any origin call the functions.
func permissiveCORS() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{http.MethodPost, http.MethodOptions},
		AllowHeaders:    []string{"Authorization", "Content-Type", "apikey", "x-client-info"},
		MaxAge:          12 * time.Hour,
	})
}

// RegisterRoutes mounts the functions on rg, normally /functions/v1. limit guards every
// function; realtime-search also needs a signed-in user.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc, limit ...gin.HandlerFunc) {
	g := rg.Group("", permissiveCORS())
	g.OPTIONS("/:name", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	with := func(last ...gin.HandlerFunc) []gin.HandlerFunc {
		out := make([]gin.HandlerFunc, 0, len(limit)+len(last))
		return append(append(out, limit...), last...)
	}
	g.POST("/openai", with(h.openai)...)
	g.POST("/unsplash", with(h.unsplash)...)
	g.POST("/google-search", with(h.googleSearch)...)
	g.POST("/huggingface-image", with(h.huggingFaceImage)...)
	g.POST("/realtime-search", append([]gin.HandlerFunc{authMW}, with(h.realtimeSearch)...)...)
}

func badRequest(c *gin.Context, msg string) {
	response.FunctionError(c, http.StatusBadRequest, msg)
}

func (h *Handler) fail(c *gin.Context, fn string, err error) {
	h.logger.Warn("forward failed", zap.String("function", fn), zap.Error(err))
	var ue *enrich.UpstreamError
	switch {
	case errors.Is(err, enrich.ErrNotConfigured), errors.Is(err, llm.ErrNoProvider):
		response.FunctionError(c, http.StatusInternalServerError, fn+" is not configured")
	case errors.As(err, &ue):
		response.FunctionError(c, http.StatusInternalServerError, ue.Error())
	default:
		response.FunctionError(c, http.StatusInternalServerError, err.Error())
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIRequest struct {
	Messages    []chatMessage `json:"messages"`
	Model       string        `json:"model"`
	Temperature *float64      `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

// toLLMRequest folds system messages into the system prompt and keeps the rest in order.
func toLLMRequest(in openAIRequest) (llm.Request, bool) {
	var (
		req    = llm.Request{Temperature: in.Temperature, MaxTokens: in.MaxTokens}
		system []string
	)
	for _, m := range in.Messages {
		content := strings.TrimSpace(m.Content)
		if content == "" {
			continue
		}
		switch strings.ToLower(m.Role) {
		case "system", "developer":
			system = append(system, content)
		case "assistant":
			req.Messages = append(req.Messages, llm.Message{Role: llm.RoleAssistant, Content: content})
		default:
			req.Messages = append(req.Messages, llm.Message{Role: llm.RoleUser, Content: content})
		}
	}
	req.System = strings.Join(system, "\n\n")
	return req, len(req.Messages) > 0
}

func (h *Handler) openai(c *gin.Context) {
	var in openAIRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid JSON body")
		return
	}
	req, ok := toLLMRequest(in)
	if !ok {
		badRequest(c, "messages are required")
		return
	}
	gen, err := h.router.ForModel(llm.TaskForward, in.Model)
	if err != nil {
		h.fail(c, "openai", err)
		return
	}
	content, err := gen.Generate(c.Request.Context(), req)
	if err != nil {
		h.fail(c, "openai", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"content": content, "model": gen.Model()})
}

type queryRequest struct {
	Query string `json:"query"`
	Type  string `json:"type"`
	Num   int    `json:"num"`
}

func bindQuery(c *gin.Context) (queryRequest, bool) {
	var in queryRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid JSON body")
		return in, false
	}
	in.Query = strings.TrimSpace(in.Query)
	if in.Query == "" {
		badRequest(c, "query is required")
		return in, false
	}
	return in, true
}

func (h *Handler) unsplash(c *gin.Context) {
	in, ok := bindQuery(c)
	if !ok {
		return
	}
	n := in.Num
	if n <= 0 || n > 30 {
		n = 10
	}
	images, err := h.clients.Unsplash.Search(c.Request.Context(), in.Query, n)
	if err != nil {
		h.fail(c, "unsplash", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"images": images})
}

func (h *Handler) googleSearch(c *gin.Context) {
	in, ok := bindQuery(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	switch strings.ToLower(strings.TrimSpace(in.Type)) {
	case "", "web":
		links, err := h.clients.Google.Web(ctx, in.Query, in.Num)
		if err != nil {
			h.fail(c, "google-search", err)
			return
		}
		if links == nil {
			links = []models.Link{}
		}
		c.JSON(http.StatusOK, gin.H{"items": links})
	case "image":
		images, err := h.clients.Google.Images(ctx, in.Query, in.Num)
		if err != nil {
			h.fail(c, "google-search", err)
			return
		}
		if images == nil {
			images = []models.ImageRef{}
		}
		c.JSON(http.StatusOK, gin.H{"items": images})
	default:
		badRequest(c, `type must be "web" or "image"`)
	}
}

func (h *Handler) huggingFaceImage(c *gin.Context) {
	var in struct {
		Prompt string `json:"prompt"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid JSON body")
		return
	}
	if strings.TrimSpace(in.Prompt) == "" {
		badRequest(c, "prompt is required")
		return
	}
	uri, err := h.clients.HuggingFace.Generate(c.Request.Context(), strings.TrimSpace(in.Prompt))
	if err != nil {
		h.fail(c, "huggingface-image", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"image": uri})
}

const realtimeSystemPrompt = `You answer with current, real-world information found by searching the web.
Be concise, prefer facts from the last few months, and cite sources as markdown links.`

func (h *Handler) realtimeSearch(c *gin.Context) {
	var in struct {
		Query    string `json:"query"`
		Location string `json:"location"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid JSON body")
		return
	}
	if in.Query = strings.TrimSpace(in.Query); in.Query == "" {
		badRequest(c, "query is required")
		return
	}
	ctx := c.Request.Context()

	gen, err := h.router.For(llm.TaskRealtime)
	if err != nil {
		h.fail(c, "realtime-search", err)
		return
	}

	var usage *settings.Usage
	if h.quota != nil {
		u, err := h.quota.ConsumeRealtime(ctx, middleware.CurrentUserID(c))
		switch {
		case errors.Is(err, settings.ErrRealtimeDisabled):
			response.FunctionError(c, http.StatusForbidden, err.Error())
			return
		case errors.Is(err, settings.ErrDailyLimit):
			response.FunctionError(c, http.StatusTooManyRequests, err.Error())
			return
		case err != nil:
			h.fail(c, "realtime-search", err)
			return
		}
		usage = &u
	}

	location := strings.TrimSpace(in.Location)
	if location == "" && h.locator != nil {
		if loc, err := h.locator.Lookup(ctx, c.ClientIP()); err == nil {
			location = loc.String()
		}
	}

	prompt := in.Query
	if location != "" {
		prompt += "\n\nThe user is located in " + location + "."
	}
	content, err := gen.Generate(ctx, llm.Prompt(realtimeSystemPrompt, prompt))
	if err != nil {
		h.fail(c, "realtime-search", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"content": content, "location": location, "usage": usage})
}
