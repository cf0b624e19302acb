package comment

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/rationable/api/internal/middleware"
	"github.com/rationable/api/internal/modules/content/decision"
	"github.com/rationable/api/internal/pkg/response"
)

type Handler struct{ svc *Service }

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	d := rg.Group("/decisions/:id/comments", authMW)
	d.GET("", h.list)
	d.POST("", h.create)

	g := rg.Group("/comments", authMW)
	g.POST("/:id/replies", h.reply)
	g.PATCH("/:id", h.update)
	g.DELETE("/:id", h.delete)
	g.POST("/:id/reactions", h.react)
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, decision.ErrNotFound):
		response.NotFoundMsg(c, err.Error())
	case errors.Is(err, ErrForbidden):
		response.ForbiddenMsg(c, err.Error())
	case errors.Is(err, ErrTooDeep), errors.Is(err, ErrEmptyText), errors.Is(err, ErrTextTooLong),
		errors.Is(err, ErrEmptyEmoji):
		response.BadRequest(c, err.Error())
	case errors.Is(err, ErrBlocked):
		response.UnprocessableEntity(c, err.Error())
	default:
		response.InternalError(c, err)
	}
}

func authorName(c *gin.Context, given string) string {
	if given != "" {
		return given
	}
	return middleware.CurrentEmail(c)
}

func (h *Handler) list(c *gin.Context) {
	userID := middleware.CurrentUserID(c)
	comments, err := h.svc.List(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]commentResponse, len(comments))
	for i := range comments {
		out[i] = toResponse(&comments[i], userID)
	}
	response.OK(c, out)
}

func (h *Handler) create(c *gin.Context) {
	var dto CreateCommentDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	dto.AuthorName = authorName(c, dto.AuthorName)
	userID := middleware.CurrentUserID(c)
	cm, err := h.svc.Create(c.Request.Context(), c.Param("id"), userID, &dto)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Created(c, toResponse(cm, userID))
}

func (h *Handler) reply(c *gin.Context) {
	var dto CreateCommentDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	dto.AuthorName = authorName(c, dto.AuthorName)
	userID := middleware.CurrentUserID(c)
	cm, err := h.svc.Reply(c.Request.Context(), c.Param("id"), userID, &dto)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Created(c, toResponse(cm, userID))
}

func (h *Handler) update(c *gin.Context) {
	var dto UpdateCommentDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	userID := middleware.CurrentUserID(c)
	cm, err := h.svc.Update(c.Request.Context(), c.Param("id"), userID, dto.Text)
	if err != nil {
		writeError(c, err)
		return
	}
	response.OK(c, toResponse(cm, userID))
}

func (h *Handler) delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("id"), middleware.CurrentUserID(c)); err != nil {
		writeError(c, err)
		return
	}
	response.NoContent(c)
}

func (h *Handler) react(c *gin.Context) {
	var dto ReactDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	userID := middleware.CurrentUserID(c)
	added, reactions, err := h.svc.ToggleReaction(c.Request.Context(), c.Param("id"), userID, dto.Emoji)
	if err != nil {
		writeError(c, err)
		return
	}
	response.OK(c, reactionResponse{Added: added, Reactions: summarize(reactions, userID)})
}
