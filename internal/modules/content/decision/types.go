package decision

import (
	"context"
	"errors"

	"github.com/rationable/api/internal/models"
	"github.com/rationable/api/internal/modules/content/workspace"
)

var (
	ErrNotFound  = errors.New("decision not found")
	ErrForbidden = errors.New("not allowed to modify this decision")
	// ErrWorkspaceDenied is returned when filing a decision into a workspace the caller
	// cannot write to.
	ErrWorkspaceDenied = errors.New("cannot add decisions to this workspace")
)

// Workspaces is the part of the workspace service decisions depend on.
type Workspaces interface {
	RoleOf(ctx context.Context, workspaceID, userID string) (models.MemberRole, error)
}

var _ Workspaces = (*workspace.Service)(nil)

// PublicDecision is what an anonymous visitor of a share link receives.
type PublicDecision struct {
	ID             string             `json:"id"`
	PublicID       string             `json:"public_id"`
	Dilemma        string             `json:"dilemma"`
	Emoji          string             `json:"emoji"`
	Criteria       []models.Criterion `json:"criteria"`
	Result         models.Result      `json:"result"`
	Stats          Stats              `json:"stats"`
	HTML           string             `json:"html"`
	Recommendation string             `json:"recommendation_html"`
	Created        string             `json:"created"`
}

type decisionResponse struct {
	*models.DecisionModel
	Stats Stats `json:"stats"`
}

type ShareResponse struct {
	PublicID string `json:"public_id"`
	Path     string `json:"path"`
}

type MoveDTO struct {
	WorkspaceID *string `json:"workspace_id"`
}
