package template

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/rationable/api/internal/middleware"
	"github.com/rationable/api/internal/pkg/response"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW, optionalAuthMW gin.HandlerFunc) {
	g := rg.Group("/templates")
	g.GET("", optionalAuthMW, h.list)
	g.GET("/:id", optionalAuthMW, h.get)
	g.POST("/:id/instantiate", optionalAuthMW, h.instantiate)

	authed := g.Group("", authMW)
	authed.POST("", h.create)
	authed.PATCH("/:id", h.update)
	authed.DELETE("/:id", h.delete)
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		response.NotFoundMsg(c, err.Error())
	case errors.Is(err, ErrForbidden):
		response.ForbiddenMsg(c, err.Error())
	default:
		response.InternalError(c, err)
	}
}

func (h *Handler) list(c *gin.Context) {
	list, err := h.svc.List(c.Request.Context(), middleware.CurrentUserID(c), c.Query("category"))
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, list)
}

func (h *Handler) get(c *gin.Context) {
	t, err := h.svc.Get(c.Request.Context(), c.Param("id"), middleware.CurrentUserID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	response.OK(c, t)
}

func (h *Handler) instantiate(c *gin.Context) {
	inst, err := h.svc.Instantiate(c.Request.Context(), c.Param("id"), middleware.CurrentUserID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	response.OK(c, inst)
}

func (h *Handler) create(c *gin.Context) {
	var dto CreateTemplateDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	t, err := h.svc.Create(c.Request.Context(), middleware.CurrentUserID(c), &dto)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Created(c, t)
}

func (h *Handler) update(c *gin.Context) {
	var dto UpdateTemplateDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	t, err := h.svc.Update(c.Request.Context(), c.Param("id"), middleware.CurrentUserID(c), &dto)
	if err != nil {
		writeError(c, err)
		return
	}
	response.OK(c, t)
}

func (h *Handler) delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("id"), middleware.CurrentUserID(c)); err != nil {
		writeError(c, err)
		return
	}
	response.NoContent(c)
}
