package workspace

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/rationable/api/internal/models"
)

type Service struct{ db *gorm.DB }

func NewService(db *gorm.DB) *Service { return &Service{db: db} }

// RoleOf returns userID's role in the workspace, or ErrNotMember.
func (s *Service) RoleOf(ctx context.Context, workspaceID, userID string) (models.MemberRole, error) {
	var m models.WorkspaceMemberModel
	err := s.db.WithContext(ctx).
		Where("workspace_id = ? AND user_id = ?", workspaceID, userID).
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrNotMember
	}
	if err != nil {
		return "", err
	}
	return m.Role, nil
}

// CanWrite reports whether userID may add or change content in the workspace.
func (s *Service) CanWrite(ctx context.Context, workspaceID, userID string) (bool, error) {
	role, err := s.RoleOf(ctx, workspaceID, userID)
	if errors.Is(err, ErrNotMember) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return role.CanWrite(), nil
}

func (s *Service) requireRole(ctx context.Context, workspaceID, userID string, allowed func(models.MemberRole) bool) (models.MemberRole, error) {
	role, err := s.RoleOf(ctx, workspaceID, userID)
	if errors.Is(err, ErrNotMember) {
		// Non-members cannot learn that the workspace exists.
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	if !allowed(role) {
		return role, ErrForbidden
	}
	return role, nil
}

func anyRole(models.MemberRole) bool      { return true }
func ownerOnly(r models.MemberRole) bool  { return r == models.RoleOwner }
func writerRole(r models.MemberRole) bool { return r.CanWrite() }

// Create makes a workspace owned by ownerID, who becomes its first member.
func (s *Service) Create(ctx context.Context, ownerID string, dto *CreateWorkspaceDTO) (*models.WorkspaceModel, error) {
	name := strings.TrimSpace(dto.Name)
	if name == "" {
		return nil, errNameRequired
	}
	ws := models.WorkspaceModel{
		Name:        name,
		Description: strings.TrimSpace(dto.Description),
		OwnerID:     ownerID,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&ws).Error; err != nil {
			return err
		}
		owner := models.WorkspaceMemberModel{WorkspaceID: ws.ID, UserID: ownerID, Role: models.RoleOwner}
		if err := tx.Create(&owner).Error; err != nil {
			return err
		}
		ws.Members = []models.WorkspaceMemberModel{owner}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &ws, nil
}

// ListForUser returns the workspaces userID belongs to with the user's role in each.
func (s *Service) ListForUser(ctx context.Context, userID string) ([]workspaceResponse, error) {
	var memberships []models.WorkspaceMemberModel
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Find(&memberships).Error; err != nil {
		return nil, err
	}
	if len(memberships) == 0 {
		return []workspaceResponse{}, nil
	}
	roles := make(map[string]models.MemberRole, len(memberships))
	ids := make([]string, 0, len(memberships))
	for _, m := range memberships {
		roles[m.WorkspaceID] = m.Role
		ids = append(ids, m.WorkspaceID)
	}

	var list []models.WorkspaceModel
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Order("created_at DESC").Find(&list).Error; err != nil {
		return nil, err
	}
	out := make([]workspaceResponse, 0, len(list))
	for _, ws := range list {
		out = append(out, workspaceResponse{WorkspaceModel: ws, Role: roles[ws.ID]})
	}
	return out, nil
}

// Get returns a workspace with its members. Only members can see it.
func (s *Service) Get(ctx context.Context, id, userID string) (*workspaceResponse, error) {
	role, err := s.requireRole(ctx, id, userID, anyRole)
	if err != nil {
		return nil, err
	}
	var ws models.WorkspaceModel
	err = s.db.WithContext(ctx).Preload("Members").First(&ws, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &workspaceResponse{WorkspaceModel: ws, Role: role}, nil
}

func (s *Service) Update(ctx context.Context, id, userID string, dto *UpdateWorkspaceDTO) (*workspaceResponse, error) {
	if _, err := s.requireRole(ctx, id, userID, writerRole); err != nil {
		return nil, err
	}
	updates := map[string]interface{}{}
	if dto.Name != nil {
		name := strings.TrimSpace(*dto.Name)
		if name == "" {
			return nil, errNameRequired
		}
		updates["name"] = name
	}
	if dto.Description != nil {
		updates["description"] = strings.TrimSpace(*dto.Description)
	}
	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(&models.WorkspaceModel{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return nil, err
		}
	}
	return s.Get(ctx, id, userID)
}

// Delete removes the workspace and its memberships. Decisions filed in it stay with their
// owners and lose the workspace reference.
func (s *Service) Delete(ctx context.Context, id, userID string) error {
	if _, err := s.requireRole(ctx, id, userID, ownerOnly); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Where("workspace_id = ?", id).Delete(&models.WorkspaceMemberModel{}).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.DecisionModel{}).Where("workspace_id = ?", id).Update("workspace_id", nil).Error; err != nil {
			return err
		}
		return tx.Delete(&models.WorkspaceModel{}, "id = ?", id).Error
	})
}

func (s *Service) Members(ctx context.Context, id, userID string) ([]models.WorkspaceMemberModel, error) {
	if _, err := s.requireRole(ctx, id, userID, anyRole); err != nil {
		return nil, err
	}
	var members []models.WorkspaceMemberModel
	err := s.db.WithContext(ctx).Where("workspace_id = ?", id).Order("created_at ASC").Find(&members).Error
	return members, err
}

// AddMember invites a user. Only the owner may add members, and nobody can be added as owner.
func (s *Service) AddMember(ctx context.Context, id, actorID string, dto *AddMemberDTO) (*models.WorkspaceMemberModel, error) {
	if _, err := s.requireRole(ctx, id, actorID, ownerOnly); err != nil {
		return nil, err
	}
	role := dto.Role
	if role == "" {
		role = models.RoleViewer
	}
	if !role.Valid() || role == models.RoleOwner {
		return nil, ErrInvalidRole
	}
	userID := strings.TrimSpace(dto.UserID)
	if _, err := s.RoleOf(ctx, id, userID); err == nil {
		return nil, ErrMemberExists
	} else if !errors.Is(err, ErrNotMember) {
		return nil, err
	}
	m := models.WorkspaceMemberModel{WorkspaceID: id, UserID: userID, Role: role}
	if err := s.db.WithContext(ctx).Create(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *Service) UpdateMember(ctx context.Context, id, actorID, userID string, role models.MemberRole) (*models.WorkspaceMemberModel, error) {
	if _, err := s.requireRole(ctx, id, actorID, ownerOnly); err != nil {
		return nil, err
	}
	if !role.Valid() || role == models.RoleOwner {
		return nil, ErrInvalidRole
	}
	current, err := s.RoleOf(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if current == models.RoleOwner {
		return nil, ErrOwnerImmutable
	}
	var m models.WorkspaceMemberModel
	db := s.db.WithContext(ctx)
	if err := db.Model(&m).Where("workspace_id = ? AND user_id = ?", id, userID).Update("role", role).Error; err != nil {
		return nil, err
	}
	if err := db.First(&m, "workspace_id = ? AND user_id = ?", id, userID).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// RemoveMember removes userID. The owner can remove anyone but themselves; members can
// remove themselves.
func (s *Service) RemoveMember(ctx context.Context, id, actorID, userID string) error {
	allowed := ownerOnly
	if actorID == userID {
		allowed = anyRole
	}
	if _, err := s.requireRole(ctx, id, actorID, allowed); err != nil {
		return err
	}
	role, err := s.RoleOf(ctx, id, userID)
	if err != nil {
		return err
	}
	if role == models.RoleOwner {
		return ErrOwnerImmutable
	}
	// Hard delete so the (workspace, user) unique index allows re-inviting.
	return s.db.WithContext(ctx).Unscoped().
		Where("workspace_id = ? AND user_id = ?", id, userID).
		Delete(&models.WorkspaceMemberModel{}).Error
}
