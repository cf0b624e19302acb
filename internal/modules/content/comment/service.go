package comment

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/rationable/api/internal/models"
	"github.com/rationable/api/internal/modules/processing/markdown"
)

// Decisions checks that a user may see a decision. *decision.Service satisfies it.
type Decisions interface {
	Get(ctx context.Context, id, userID string) (*models.DecisionModel, error)
}

type Service struct {
	db        *gorm.DB
	decisions Decisions
	blocked   []string
	maxLen    int
	now       func() time.Time
}

func NewService(db *gorm.DB, decisions Decisions, blockedKeywords []string) *Service {
	return &Service{db: db, decisions: decisions, blocked: blockedKeywords, maxLen: defaultMaxTextLength, now: time.Now}
}

func (s *Service) checkText(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyText
	}
	if utf8.RuneCountInString(text) > s.maxLen {
		return "", ErrTextTooLong
	}
	if isBlocked(text, s.blocked) {
		return "", ErrBlocked
	}
	return text, nil
}

func (s *Service) load(ctx context.Context, id string) (*models.CommentModel, error) {
	var c models.CommentModel
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// loadVisible returns the comment when userID may see its decision.
func (s *Service) loadVisible(ctx context.Context, id, userID string) (*models.CommentModel, error) {
	c, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.decisions.Get(ctx, c.DecisionID, userID); err != nil {
		return nil, ErrNotFound
	}
	return c, nil
}

func (s *Service) withThread(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Reactions").
		Preload("Children", func(tx *gorm.DB) *gorm.DB { return tx.Order("created_at ASC") }).
		Preload("Children.Reactions")
}

// List returns the top-level comments of a decision with their replies, oldest first.
func (s *Service) List(ctx context.Context, decisionID, userID string) ([]models.CommentModel, error) {
	if _, err := s.decisions.Get(ctx, decisionID, userID); err != nil {
		return nil, err
	}
	var out []models.CommentModel
	err := s.withThread(s.db.WithContext(ctx)).
		Where("decision_id = ? AND parent_id IS NULL", decisionID).
		Order("created_at ASC").
		Find(&out).Error
	return out, err
}

func (s *Service) create(ctx context.Context, c *models.CommentModel) error {
	c.Mentions = models.StringArray(markdown.Mentions(c.Text))
	return s.db.WithContext(ctx).Create(c).Error
}

// Create adds a top-level comment.
func (s *Service) Create(ctx context.Context, decisionID, userID string, dto *CreateCommentDTO) (*models.CommentModel, error) {
	if _, err := s.decisions.Get(ctx, decisionID, userID); err != nil {
		return nil, err
	}
	text, err := s.checkText(dto.Text)
	if err != nil {
		return nil, err
	}
	c := &models.CommentModel{
		DecisionID: decisionID,
		AuthorID:   userID,
		AuthorName: strings.TrimSpace(dto.AuthorName),
		Text:       text,
	}
	if err := s.create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Reply answers a top-level comment. Replies to replies are rejected.
func (s *Service) Reply(ctx context.Context, parentID, userID string, dto *CreateCommentDTO) (*models.CommentModel, error) {
	parent, err := s.loadVisible(ctx, parentID, userID)
	if err != nil {
		return nil, err
	}
	if parent.ParentID != nil {
		return nil, ErrTooDeep
	}
	text, err := s.checkText(dto.Text)
	if err != nil {
		return nil, err
	}
	c := &models.CommentModel{
		DecisionID: parent.DecisionID,
		AuthorID:   userID,
		AuthorName: strings.TrimSpace(dto.AuthorName),
		Text:       text,
		ParentID:   &parent.ID,
	}
	if err := s.create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Update rewrites the author's own comment and refreshes its mentions.
func (s *Service) Update(ctx context.Context, id, userID, text string) (*models.CommentModel, error) {
	c, err := s.loadVisible(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if c.AuthorID != userID {
		return nil, ErrForbidden
	}
	if text, err = s.checkText(text); err != nil {
		return nil, err
	}
	now := s.now()
	c.Text = text
	c.Mentions = models.StringArray(markdown.Mentions(text))
	c.EditedAt = &now
	err = s.db.WithContext(ctx).Model(c).Updates(map[string]interface{}{
		"text":      c.Text,
		"mentions":  c.Mentions,
		"edited_at": c.EditedAt,
	}).Error
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Delete removes the author's own comment together with its replies and reactions.
func (s *Service) Delete(ctx context.Context, id, userID string) error {
	c, err := s.loadVisible(ctx, id, userID)
	if err != nil {
		return err
	}
	if c.AuthorID != userID {
		return ErrForbidden
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ids := []string{c.ID}
		var replies []string
		if err := tx.Model(&models.CommentModel{}).Where("parent_id = ?", c.ID).Pluck("id", &replies).Error; err != nil {
			return err
		}
		ids = append(ids, replies...)
		if err := tx.Unscoped().Where("comment_id IN ?", ids).Delete(&models.ReactionModel{}).Error; err != nil {
			return err
		}
		return tx.Where("id IN ?", ids).Delete(&models.CommentModel{}).Error
	})
}

// ToggleReaction adds the user's emoji reaction, or removes it when already present. It
// reports whether the reaction now exists.
func (s *Service) ToggleReaction(ctx context.Context, commentID, userID, emoji string) (bool, []models.ReactionModel, error) {
	emoji = strings.TrimSpace(emoji)
	if emoji == "" {
		return false, nil, ErrEmptyEmoji
	}
	if _, err := s.loadVisible(ctx, commentID, userID); err != nil {
		return false, nil, err
	}

	var added bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.ReactionModel
		err := tx.Where("comment_id = ? AND user_id = ? AND emoji = ?", commentID, userID, emoji).First(&existing).Error
		switch {
		case err == nil:
			return tx.Unscoped().Delete(&existing).Error
		case errors.Is(err, gorm.ErrRecordNotFound):
			added = true
			return tx.Create(&models.ReactionModel{CommentID: commentID, UserID: userID, Emoji: emoji}).Error
		default:
			return err
		}
	})
	if err != nil {
		return false, nil, err
	}

	var all []models.ReactionModel
	if err := s.db.WithContext(ctx).Where("comment_id = ?", commentID).Find(&all).Error; err != nil {
		return added, nil, err
	}
	return added, all, nil
}
