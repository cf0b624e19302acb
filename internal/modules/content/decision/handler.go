package decision

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/rationable/api/internal/middleware"
	"github.com/rationable/api/internal/models"
	"github.com/rationable/api/internal/pkg/pagination"
	"github.com/rationable/api/internal/pkg/response"
)

type Handler struct{ svc *Service }

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

// RegisterRoutes mounts the owner routes behind authMW and the public share route behind
// publicMW.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc, publicMW ...gin.HandlerFunc) {
	g := rg.Group("/decisions", authMW)
	g.GET("", h.list)
	g.POST("", h.create)
	g.GET("/:id", h.get)
	g.DELETE("/:id", h.delete)
	g.GET("/:id/stats", h.stats)
	g.POST("/:id/share", h.share)
	g.DELETE("/:id/share", h.unshare)
	g.PATCH("/:id/workspace", h.move)

	rg.GET("/shared/:publicId", append(publicMW, h.getPublic)...)
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		response.NotFoundMsg(c, err.Error())
	case errors.Is(err, ErrForbidden), errors.Is(err, ErrWorkspaceDenied):
		response.ForbiddenMsg(c, err.Error())
	default:
		response.InternalError(c, err)
	}
}

type createDecisionDTO struct {
	Dilemma     string              `json:"dilemma"  binding:"required"`
	Emoji       string              `json:"emoji"`
	Mode        models.AnalysisMode `json:"mode"`
	Criteria    []models.Criterion  `json:"criteria"`
	Result      models.Result       `json:"result"`
	WorkspaceID *string             `json:"workspace_id"`
}

func (h *Handler) create(c *gin.Context) {
	var dto createDecisionDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if len(dto.Result.Breakdown) == 0 {
		response.UnprocessableEntity(c, "result.breakdown must not be empty")
		return
	}
	d := &models.DecisionModel{
		OwnerID:     middleware.CurrentUserID(c),
		WorkspaceID: dto.WorkspaceID,
		Dilemma:     strings.TrimSpace(dto.Dilemma),
		Emoji:       dto.Emoji,
		Mode:        dto.Mode,
		Criteria:    dto.Criteria,
		Result:      dto.Result,
	}
	if err := h.svc.Create(c.Request.Context(), d); err != nil {
		writeError(c, err)
		return
	}
	response.Created(c, decisionResponse{DecisionModel: d, Stats: ComputeStats(d.Result)})
}

func (h *Handler) list(c *gin.Context) {
	var workspaceID *string
	if ws := c.Query("workspace_id"); ws != "" {
		workspaceID = &ws
	}
	list, pag, err := h.svc.List(c.Request.Context(), middleware.CurrentUserID(c), workspaceID, c.Query("q"), pagination.FromContext(c))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Paged(c, list, pag)
}

func (h *Handler) get(c *gin.Context) {
	d, err := h.svc.Get(c.Request.Context(), c.Param("id"), middleware.CurrentUserID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	response.OK(c, decisionResponse{DecisionModel: d, Stats: ComputeStats(d.Result)})
}

func (h *Handler) stats(c *gin.Context) {
	d, err := h.svc.Get(c.Request.Context(), c.Param("id"), middleware.CurrentUserID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	response.OK(c, ComputeStats(d.Result))
}

func (h *Handler) delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("id"), middleware.CurrentUserID(c)); err != nil {
		writeError(c, err)
		return
	}
	response.NoContent(c)
}

func (h *Handler) share(c *gin.Context) {
	publicID, err := h.svc.Share(c.Request.Context(), c.Param("id"), middleware.CurrentUserID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	response.OK(c, ShareResponse{PublicID: publicID, Path: "/shared/" + publicID})
}

func (h *Handler) unshare(c *gin.Context) {
	if err := h.svc.Unshare(c.Request.Context(), c.Param("id"), middleware.CurrentUserID(c)); err != nil {
		writeError(c, err)
		return
	}
	response.NoContent(c)
}

func (h *Handler) move(c *gin.Context) {
	var dto MoveDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	d, err := h.svc.Move(c.Request.Context(), c.Param("id"), middleware.CurrentUserID(c), dto.WorkspaceID)
	if err != nil {
		writeError(c, err)
		return
	}
	response.OK(c, d)
}

func (h *Handler) getPublic(c *gin.Context) {
	d, err := h.svc.GetPublic(c.Request.Context(), c.Param("publicId"))
	if err != nil {
		writeError(c, err)
		return
	}
	response.OK(c, d)
}
