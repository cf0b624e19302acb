package template

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rationable/api/internal/database"
	"github.com/rationable/api/internal/models"
)

func newService(t *testing.T) *Service {
	t.Helper()
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "template.db"))
	require.NoError(t, err)
	return NewService(db)
}

func ptr[T any](v T) *T { return &v }

func TestListVisibility(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, "alice", &CreateTemplateDTO{Title: "Job offer", Dilemma: "Take the job?", Category: "career", IsPublic: true})
	require.NoError(t, err)
	_, err = svc.Create(ctx, "alice", &CreateTemplateDTO{Title: "Private", Dilemma: "Secret?"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, "bob", &CreateTemplateDTO{Title: "Bob's", Dilemma: "Bob?"})
	require.NoError(t, err)

	anon, err := svc.List(ctx, "", "")
	require.NoError(t, err)
	assert.Len(t, anon, 1)

	mine, err := svc.List(ctx, "alice", "")
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	career, err := svc.List(ctx, "bob", "career")
	require.NoError(t, err)
	require.Len(t, career, 1)
	assert.Equal(t, "Job offer", career[0].Title)
}

func TestUpdateDeleteOwnOnly(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	tpl, err := svc.Create(ctx, "alice", &CreateTemplateDTO{Title: "Job", Dilemma: "Take it?", IsPublic: true})
	require.NoError(t, err)

	_, err = svc.Update(ctx, tpl.ID, "bob", &UpdateTemplateDTO{Title: ptr("hijack")})
	assert.ErrorIs(t, err, ErrForbidden)

	updated, err := svc.Update(ctx, tpl.ID, "alice", &UpdateTemplateDTO{
		IsPublic: ptr(false),
		Criteria: &[]models.Criterion{{Name: "Salary", Weight: 2}},
	})
	require.NoError(t, err)
	assert.False(t, updated.IsPublic)

	got, err := svc.Get(ctx, tpl.ID, "alice")
	require.NoError(t, err)
	assert.False(t, got.IsPublic)
	assert.Equal(t, []models.Criterion{{Name: "Salary", Weight: 2}}, got.Criteria)

	_, err = svc.Get(ctx, tpl.ID, "bob")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, svc.Delete(ctx, tpl.ID, "bob"), ErrNotFound)
	require.NoError(t, svc.Delete(ctx, tpl.ID, "alice"))
	_, err = svc.Get(ctx, tpl.ID, "alice")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInstantiateCountsUses(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	tpl, err := svc.Create(ctx, "alice", &CreateTemplateDTO{
		Title: "Move", Dilemma: "Move cities?", IsPublic: true,
		Criteria: []models.Criterion{{Name: "Cost"}},
	})
	require.NoError(t, err)

	inst, err := svc.Instantiate(ctx, tpl.ID, "")
	require.NoError(t, err)
	assert.Equal(t, &Instance{TemplateID: tpl.ID, Dilemma: "Move cities?", Criteria: []models.Criterion{{Name: "Cost"}}}, inst)

	_, err = svc.Instantiate(ctx, tpl.ID, "bob")
	require.NoError(t, err)
	got, err := svc.Get(ctx, tpl.ID, "")
	require.NoError(t, err)
	assert.Equal(t, 2, got.Uses)
}
