package workspace

import (
	"errors"

	"github.com/rationable/api/internal/models"
)

var (
	ErrNotFound       = errors.New("workspace not found")
	ErrForbidden      = errors.New("insufficient workspace role")
	ErrNotMember      = errors.New("not a workspace member")
	ErrMemberExists   = errors.New("user is already a member")
	ErrInvalidRole    = errors.New("invalid member role")
	ErrOwnerImmutable = errors.New("the workspace owner cannot be changed or removed")
	errNameRequired   = errors.New("name is required")
)

type CreateWorkspaceDTO struct {
	Name        string `json:"name"        binding:"required"`
	Description string `json:"description"`
}

type UpdateWorkspaceDTO struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

type AddMemberDTO struct {
	UserID string            `json:"user_id" binding:"required"`
	Role   models.MemberRole `json:"role"`
}

type UpdateMemberDTO struct {
	Role models.MemberRole `json:"role" binding:"required"`
}

// workspaceResponse adds the caller's role to a workspace.
type workspaceResponse struct {
	models.WorkspaceModel
	Role models.MemberRole `json:"role"`
}
