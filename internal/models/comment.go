package models

import "time"

// CommentModel is a comment on a decision. Replies reference their parent; threads are one
// level deep.
type CommentModel struct {
	Base
	DecisionID string          `json:"decision_id"         gorm:"type:char(36);not null;index"`
	AuthorID   string          `json:"author_id"           gorm:"type:char(36);not null;index"`
	AuthorName string          `json:"author_name"         gorm:"type:varchar(191)"`
	Text       string          `json:"text"                gorm:"type:text;not null"`
	Mentions   StringArray     `json:"mentions"            gorm:"type:text"`
	ParentID   *string         `json:"parent_id"           gorm:"type:char(36);index"`
	Children   []CommentModel  `json:"children,omitempty"  gorm:"foreignKey:ParentID"`
	Reactions  []ReactionModel `json:"reactions,omitempty" gorm:"foreignKey:CommentID"`
	EditedAt   *time.Time      `json:"edited_at"`
}

func (CommentModel) TableName() string { return "comments" }

// ReactionModel is one emoji reaction. A user reacts at most once per emoji per comment.
type ReactionModel struct {
	Base
	CommentID string `json:"comment_id" gorm:"type:char(36);not null;uniqueIndex:idx_reaction"`
	UserID    string `json:"user_id"    gorm:"type:char(36);not null;uniqueIndex:idx_reaction"`
	Emoji     string `json:"emoji"      gorm:"type:varchar(32);not null;uniqueIndex:idx_reaction"`
}

func (ReactionModel) TableName() string { return "comment_reactions" }
