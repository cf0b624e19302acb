package models

import "time"

// AnalysisMode records how the criteria of a decision were obtained.
type AnalysisMode string

const (
	// ModeProgressive derives criteria from the dilemma.
	ModeProgressive AnalysisMode = "progressive"
	// ModeClassic uses criteria supplied by the user.
	ModeClassic AnalysisMode = "classic"
)

// Criterion is one named dimension options are evaluated against.
type Criterion struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Weight float64 `json:"weight,omitempty"`
}

// Link is a supporting web result attached to an option.
type Link struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet,omitempty"`
	Favicon string `json:"favicon,omitempty"`
}

// ImageRef is the visual picked for an option by the enrichment chain.
type ImageRef struct {
	URL    string `json:"url"`
	Thumb  string `json:"thumb,omitempty"`
	Alt    string `json:"alt,omitempty"`
	Author string `json:"author,omitempty"`
	Link   string `json:"link,omitempty"`
	Source string `json:"source"`
}

// BreakdownItem is one scored option.
type BreakdownItem struct {
	Option     string    `json:"option"`
	Pros       []string  `json:"pros"`
	Cons       []string  `json:"cons"`
	Score      int       `json:"score"`
	ImageQuery string    `json:"image_query,omitempty"`
	Image      *ImageRef `json:"image,omitempty"`
	Links      []Link    `json:"links,omitempty"`
}

// Result is what the options generation step returns.
type Result struct {
	Recommendation string          `json:"recommendation"`
	Description    string          `json:"description,omitempty"`
	Breakdown      []BreakdownItem `json:"breakdown"`
}

// DecisionModel is an analysed dilemma. Rows are written once the analysis completes and
// are never updated afterwards, except for minting a public share id.
type DecisionModel struct {
	Base
	OwnerID     string       `json:"owner_id"               gorm:"type:char(36);index"`
	WorkspaceID *string      `json:"workspace_id,omitempty" gorm:"type:char(36);index"`
	Dilemma     string       `json:"dilemma"                gorm:"type:text;not null"`
	Emoji       string       `json:"emoji"                  gorm:"type:varchar(32)"`
	Mode        AnalysisMode `json:"mode"                   gorm:"type:varchar(16);default:progressive"`
	Criteria    []Criterion  `json:"criteria"               gorm:"type:longtext;serializer:json"`
	Result      Result       `json:"result"                 gorm:"type:longtext;serializer:json"`
	PublicID    *string      `json:"public_id,omitempty"    gorm:"type:varchar(32);uniqueIndex"`
	SharedAt    *time.Time   `json:"shared_at,omitempty"`
	ParentID    *string      `json:"parent_id,omitempty"    gorm:"type:char(36);index"`
}

func (DecisionModel) TableName() string { return "decisions" }
