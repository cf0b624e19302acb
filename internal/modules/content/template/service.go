package template

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/rationable/api/internal/models"
)

var (
	ErrNotFound  = errors.New("template not found")
	ErrForbidden = errors.New("only the author can change this template")
)

type CreateTemplateDTO struct {
	Title    string             `json:"title"    binding:"required"`
	Dilemma  string             `json:"dilemma"  binding:"required"`
	Criteria []models.Criterion `json:"criteria"`
	Category string             `json:"category"`
	IsPublic bool               `json:"is_public"`
}

type UpdateTemplateDTO struct {
	Title    *string             `json:"title"`
	Dilemma  *string             `json:"dilemma"`
	Criteria *[]models.Criterion `json:"criteria"`
	Category *string             `json:"category"`
	IsPublic *bool               `json:"is_public"`
}

// Instance is a prefilled analysis request built from a template.
type Instance struct {
	TemplateID string             `json:"template_id"`
	Dilemma    string             `json:"dilemma"`
	Criteria   []models.Criterion `json:"criteria,omitempty"`
}

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// List returns public templates plus the caller's own, most used first. category filters
// when non-empty.
func (s *Service) List(ctx context.Context, userID, category string) ([]models.TemplateModel, error) {
	q := s.db.WithContext(ctx).Model(&models.TemplateModel{})
	if userID != "" {
		q = q.Where("is_public = ? OR author_id = ?", true, userID)
	} else {
		q = q.Where("is_public = ?", true)
	}
	if category = strings.TrimSpace(category); category != "" {
		q = q.Where("category = ?", category)
	}
	var out []models.TemplateModel
	return out, q.Order("uses DESC").Order("created_at ASC").Find(&out).Error
}

// Get returns a template visible to userID.
func (s *Service) Get(ctx context.Context, id, userID string) (*models.TemplateModel, error) {
	var t models.TemplateModel
	err := s.db.WithContext(ctx).First(&t, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if !t.IsPublic && t.AuthorID != userID {
		return nil, ErrNotFound
	}
	return &t, nil
}

func (s *Service) own(ctx context.Context, id, userID string) (*models.TemplateModel, error) {
	t, err := s.Get(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if t.AuthorID != userID {
		return nil, ErrForbidden
	}
	return t, nil
}

func (s *Service) Create(ctx context.Context, userID string, dto *CreateTemplateDTO) (*models.TemplateModel, error) {
	t := models.TemplateModel{
		Title:    strings.TrimSpace(dto.Title),
		Dilemma:  strings.TrimSpace(dto.Dilemma),
		Criteria: dto.Criteria,
		Category: strings.TrimSpace(dto.Category),
		IsPublic: dto.IsPublic,
		AuthorID: userID,
	}
	return &t, s.db.WithContext(ctx).Create(&t).Error
}

func (s *Service) Update(ctx context.Context, id, userID string, dto *UpdateTemplateDTO) (*models.TemplateModel, error) {
	t, err := s.own(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	var cols []string
	if dto.Title != nil {
		t.Title = strings.TrimSpace(*dto.Title)
		cols = append(cols, "title")
	}
	if dto.Dilemma != nil {
		t.Dilemma = strings.TrimSpace(*dto.Dilemma)
		cols = append(cols, "dilemma")
	}
	if dto.Criteria != nil {
		t.Criteria = *dto.Criteria
		cols = append(cols, "criteria")
	}
	if dto.Category != nil {
		t.Category = strings.TrimSpace(*dto.Category)
		cols = append(cols, "category")
	}
	if dto.IsPublic != nil {
		t.IsPublic = *dto.IsPublic
		cols = append(cols, "is_public")
	}
	if len(cols) == 0 {
		return t, nil
	}
	// Select keeps zero values such as is_public=false.
	if err := s.db.WithContext(ctx).Model(t).Select(cols).Updates(t).Error; err != nil {
		return nil, err
	}
	return t, nil
}

func (s *Service) Delete(ctx context.Context, id, userID string) error {
	t, err := s.own(ctx, id, userID)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Delete(t).Error
}

// Instantiate returns the analysis request a template describes and counts the use.
func (s *Service) Instantiate(ctx context.Context, id, userID string) (*Instance, error) {
	t, err := s.Get(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(t).UpdateColumn("uses", gorm.Expr("uses + ?", 1)).Error; err != nil {
		return nil, err
	}
	return &Instance{TemplateID: t.ID, Dilemma: t.Dilemma, Criteria: t.Criteria}, nil
}
