package comment

import (
	"errors"
	"time"
)

const defaultMaxTextLength = 4000

var (
	ErrNotFound    = errors.New("comment not found")
	ErrForbidden   = errors.New("only the author can change this comment")
	ErrTooDeep     = errors.New("replies cannot be nested")
	ErrBlocked     = errors.New("comment contains blocked content")
	ErrEmptyText   = errors.New("comment text is required")
	ErrTextTooLong = errors.New("comment text is too long")
	ErrEmptyEmoji  = errors.New("emoji is required")
)

type CreateCommentDTO struct {
	Text       string `json:"text"        binding:"required"`
	AuthorName string `json:"author_name"`
}

type UpdateCommentDTO struct {
	Text string `json:"text" binding:"required"`
}

type ReactDTO struct {
	Emoji string `json:"emoji" binding:"required"`
}

// ReactionSummary counts one emoji on a comment.
type ReactionSummary struct {
	Emoji   string `json:"emoji"`
	Count   int    `json:"count"`
	Reacted bool   `json:"reacted"`
}

type commentResponse struct {
	ID         string            `json:"id"`
	DecisionID string            `json:"decision_id"`
	AuthorID   string            `json:"author_id"`
	AuthorName string            `json:"author_name"`
	Text       string            `json:"text"`
	HTML       string            `json:"html"`
	Mentions   []string          `json:"mentions"`
	ParentID   *string           `json:"parent_id"`
	Children   []commentResponse `json:"children"`
	Reactions  []ReactionSummary `json:"reactions"`
	EditedAt   *time.Time        `json:"edited_at"`
	Created    time.Time         `json:"created"`
	Modified   time.Time         `json:"modified"`
}

type reactionResponse struct {
	Added     bool              `json:"added"`
	Reactions []ReactionSummary `json:"reactions"`
}
