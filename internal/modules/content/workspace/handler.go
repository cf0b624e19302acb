package workspace

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/rationable/api/internal/middleware"
	"github.com/rationable/api/internal/pkg/response"
)

type Handler struct{ svc *Service }

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	g := rg.Group("/workspaces", authMW)

	g.GET("", h.list)
	g.POST("", h.create)
	g.GET("/:id", h.get)
	g.PATCH("/:id", h.update)
	g.DELETE("/:id", h.delete)

	g.GET("/:id/members", h.members)
	g.POST("/:id/members", h.addMember)
	g.PATCH("/:id/members/:userId", h.updateMember)
	g.DELETE("/:id/members/:userId", h.removeMember)
}

// writeError maps service errors to responses.
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrNotMember):
		response.NotFoundMsg(c, err.Error())
	case errors.Is(err, ErrForbidden), errors.Is(err, ErrOwnerImmutable):
		response.ForbiddenMsg(c, err.Error())
	case errors.Is(err, ErrMemberExists):
		response.Conflict(c, err.Error())
	case errors.Is(err, ErrInvalidRole), errors.Is(err, errNameRequired):
		response.UnprocessableEntity(c, err.Error())
	default:
		response.InternalError(c, err)
	}
}

func (h *Handler) list(c *gin.Context) {
	list, err := h.svc.ListForUser(c.Request.Context(), middleware.CurrentUserID(c))
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, list)
}

func (h *Handler) create(c *gin.Context) {
	var dto CreateWorkspaceDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	ws, err := h.svc.Create(c.Request.Context(), middleware.CurrentUserID(c), &dto)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Created(c, ws)
}

func (h *Handler) get(c *gin.Context) {
	ws, err := h.svc.Get(c.Request.Context(), c.Param("id"), middleware.CurrentUserID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	response.OK(c, ws)
}

func (h *Handler) update(c *gin.Context) {
	var dto UpdateWorkspaceDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	ws, err := h.svc.Update(c.Request.Context(), c.Param("id"), middleware.CurrentUserID(c), &dto)
	if err != nil {
		writeError(c, err)
		return
	}
	response.OK(c, ws)
}

func (h *Handler) delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("id"), middleware.CurrentUserID(c)); err != nil {
		writeError(c, err)
		return
	}
	response.NoContent(c)
}

func (h *Handler) members(c *gin.Context) {
	list, err := h.svc.Members(c.Request.Context(), c.Param("id"), middleware.CurrentUserID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	response.OK(c, list)
}

func (h *Handler) addMember(c *gin.Context) {
	var dto AddMemberDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	m, err := h.svc.AddMember(c.Request.Context(), c.Param("id"), middleware.CurrentUserID(c), &dto)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Created(c, m)
}

func (h *Handler) updateMember(c *gin.Context) {
	var dto UpdateMemberDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	m, err := h.svc.UpdateMember(c.Request.Context(), c.Param("id"), middleware.CurrentUserID(c), c.Param("userId"), dto.Role)
	if err != nil {
		writeError(c, err)
		return
	}
	response.OK(c, m)
}

func (h *Handler) removeMember(c *gin.Context) {
	err := h.svc.RemoveMember(c.Request.Context(), c.Param("id"), middleware.CurrentUserID(c), c.Param("userId"))
	if err != nil {
		writeError(c, err)
		return
	}
	response.NoContent(c)
}
