package decision

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rationable/api/internal/models"
	"github.com/rationable/api/internal/modules/processing/markdown"
	"github.com/rationable/api/internal/pkg/pagination"
	"github.com/rationable/api/internal/pkg/response"
)

const publicIDLength = 12

type Service struct {
	db       *gorm.DB
	ws       Workspaces
	now      func() time.Time
	onRevoke func(ctx context.Context, publicID string)
}

func NewService(db *gorm.DB, ws Workspaces) *Service {
	return &Service{db: db, ws: ws, now: time.Now}
}

// OnRevoke registers fn to run after a shared decision is unshared or deleted.
func (s *Service) OnRevoke(fn func(ctx context.Context, publicID string)) { s.onRevoke = fn }

func (s *Service) revoked(ctx context.Context, d *models.DecisionModel) {
	if s.onRevoke != nil && d.PublicID != nil && *d.PublicID != "" {
		s.onRevoke(ctx, *d.PublicID)
	}
}

// NewPublicID mints a share id: a random UUID without dashes, truncated.
func NewPublicID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:publicIDLength]
}

func (s *Service) checkWorkspaceWrite(ctx context.Context, workspaceID *string, userID string) error {
	if workspaceID == nil || *workspaceID == "" {
		return nil
	}
	role, err := s.ws.RoleOf(ctx, *workspaceID, userID)
	if err != nil || !role.CanWrite() {
		return ErrWorkspaceDenied
	}
	return nil
}

// Create stores a computed decision. The breakdown is ranked before it is written.
func (s *Service) Create(ctx context.Context, d *models.DecisionModel) error {
	if strings.TrimSpace(d.OwnerID) == "" {
		return ErrForbidden
	}
	if d.WorkspaceID != nil && *d.WorkspaceID == "" {
		d.WorkspaceID = nil
	}
	if err := s.checkWorkspaceWrite(ctx, d.WorkspaceID, d.OwnerID); err != nil {
		return err
	}
	if d.Mode == "" {
		d.Mode = models.ModeProgressive
	}
	Rank(&d.Result)
	return s.db.WithContext(ctx).Create(d).Error
}

func (s *Service) load(ctx context.Context, id string) (*models.DecisionModel, error) {
	var d models.DecisionModel
	err := s.db.WithContext(ctx).First(&d, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *Service) roleIn(ctx context.Context, d *models.DecisionModel, userID string) (models.MemberRole, bool) {
	if d.WorkspaceID == nil {
		return "", false
	}
	role, err := s.ws.RoleOf(ctx, *d.WorkspaceID, userID)
	return role, err == nil
}

// Get returns the decision when userID owns it or belongs to its workspace.
func (s *Service) Get(ctx context.Context, id, userID string) (*models.DecisionModel, error) {
	d, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if d.OwnerID == userID {
		return d, nil
	}
	if _, ok := s.roleIn(ctx, d, userID); ok {
		return d, nil
	}
	return nil, ErrNotFound
}

// List returns the caller's own decisions, or those of a workspace the caller belongs to,
// newest first. search filters on the dilemma text.
func (s *Service) List(ctx context.Context, userID string, workspaceID *string, search string, q pagination.Query) ([]models.DecisionModel, response.Pagination, error) {
	tx := s.db.WithContext(ctx).Model(&models.DecisionModel{}).Order("created_at DESC")
	if workspaceID != nil && *workspaceID != "" {
		if _, err := s.ws.RoleOf(ctx, *workspaceID, userID); err != nil {
			return nil, response.Pagination{}, ErrNotFound
		}
		tx = tx.Where("workspace_id = ?", *workspaceID)
	} else {
		tx = tx.Where("owner_id = ?", userID)
	}
	if term := strings.TrimSpace(search); term != "" {
		tx = tx.Where("LOWER(dilemma) LIKE ?", "%"+strings.ToLower(term)+"%")
	}

	var list []models.DecisionModel
	pag, err := pagination.Paginate(tx, q, &list)
	return list, pag, err
}

// Delete removes a decision. The owner and the owner of its workspace may delete it.
func (s *Service) Delete(ctx context.Context, id, userID string) error {
	d, err := s.Get(ctx, id, userID)
	if err != nil {
		return err
	}
	if d.OwnerID != userID {
		if role, _ := s.roleIn(ctx, d, userID); role != models.RoleOwner {
			return ErrForbidden
		}
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ids []string
		if err := tx.Model(&models.CommentModel{}).Where("decision_id = ?", id).Pluck("id", &ids).Error; err != nil {
			return err
		}
		if len(ids) > 0 {
			if err := tx.Unscoped().Where("comment_id IN ?", ids).Delete(&models.ReactionModel{}).Error; err != nil {
				return err
			}
			if err := tx.Where("decision_id = ?", id).Delete(&models.CommentModel{}).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&models.DecisionModel{}, "id = ?", id).Error
	})
	if err != nil {
		return err
	}
	s.revoked(ctx, d)
	return nil
}

// Move files the decision into a workspace, or back to the owner's private list when
// workspaceID is nil.
func (s *Service) Move(ctx context.Context, id, userID string, workspaceID *string) (*models.DecisionModel, error) {
	d, err := s.Get(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if d.OwnerID != userID {
		return nil, ErrForbidden
	}
	if workspaceID != nil && *workspaceID == "" {
		workspaceID = nil
	}
	if err := s.checkWorkspaceWrite(ctx, workspaceID, userID); err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(d).Update("workspace_id", workspaceID).Error; err != nil {
		return nil, err
	}
	d.WorkspaceID = workspaceID
	return d, nil
}

// Share mints a public id for the decision. Sharing an already shared decision returns the
// existing id.
func (s *Service) Share(ctx context.Context, id, userID string) (string, error) {
	d, err := s.Get(ctx, id, userID)
	if err != nil {
		return "", err
	}
	if d.OwnerID != userID {
		return "", ErrForbidden
	}
	if d.PublicID != nil && *d.PublicID != "" {
		return *d.PublicID, nil
	}

	publicID := NewPublicID()
	now := s.now()
	res := s.db.WithContext(ctx).Model(&models.DecisionModel{}).
		Where("id = ? AND public_id IS NULL", id).
		Updates(map[string]interface{}{"public_id": publicID, "shared_at": now})
	if res.Error != nil {
		return "", res.Error
	}
	if res.RowsAffected == 0 {
		// A concurrent share won; return its id.
		d, err = s.load(ctx, id)
		if err != nil {
			return "", err
		}
		if d.PublicID == nil {
			return "", ErrNotFound
		}
		return *d.PublicID, nil
	}
	return publicID, nil
}

// Unshare revokes the public id.
func (s *Service) Unshare(ctx context.Context, id, userID string) error {
	d, err := s.Get(ctx, id, userID)
	if err != nil {
		return err
	}
	if d.OwnerID != userID {
		return ErrForbidden
	}
	publicID := d.PublicID
	if err := s.db.WithContext(ctx).Model(d).Updates(map[string]interface{}{"public_id": nil, "shared_at": nil}).Error; err != nil {
		return err
	}
	d.PublicID = publicID
	s.revoked(ctx, d)
	return nil
}

// GetPublic resolves a share link.
func (s *Service) GetPublic(ctx context.Context, publicID string) (*PublicDecision, error) {
	publicID = strings.TrimSpace(publicID)
	if publicID == "" {
		return nil, ErrNotFound
	}
	var d models.DecisionModel
	err := s.db.WithContext(ctx).First(&d, "public_id = ?", publicID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	Rank(&d.Result)
	return &PublicDecision{
		ID:             d.ID,
		PublicID:       publicID,
		Dilemma:        d.Dilemma,
		Emoji:          d.Emoji,
		Criteria:       d.Criteria,
		Result:         d.Result,
		Stats:          ComputeStats(d.Result),
		HTML:           markdown.RenderDecision(&d),
		Recommendation: markdown.Render(d.Result.Recommendation),
		Created:        d.CreatedAt.UTC().Format(time.RFC3339),
	}, nil
}
