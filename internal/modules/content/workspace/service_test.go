package workspace

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
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "ws.db"))
	require.NoError(t, err)
	return NewService(db)
}

func TestWorkspaceLifecycle(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)

	ws, err := svc.Create(ctx, "owner", &CreateWorkspaceDTO{Name: "  Family  "})
	require.NoError(t, err)
	assert.Equal(t, "Family", ws.Name)

	role, err := svc.RoleOf(ctx, ws.ID, "owner")
	require.NoError(t, err)
	assert.Equal(t, models.RoleOwner, role)

	_, err = svc.AddMember(ctx, ws.ID, "owner", &AddMemberDTO{UserID: "ed", Role: models.RoleEditor})
	require.NoError(t, err)
	_, err = svc.AddMember(ctx, ws.ID, "owner", &AddMemberDTO{UserID: "vi"})
	require.NoError(t, err)

	_, err = svc.AddMember(ctx, ws.ID, "owner", &AddMemberDTO{UserID: "vi"})
	assert.ErrorIs(t, err, ErrMemberExists)
	_, err = svc.AddMember(ctx, ws.ID, "owner", &AddMemberDTO{UserID: "x", Role: models.RoleOwner})
	assert.ErrorIs(t, err, ErrInvalidRole)
	_, err = svc.AddMember(ctx, ws.ID, "ed", &AddMemberDTO{UserID: "y"})
	assert.ErrorIs(t, err, ErrForbidden)

	list, err := svc.ListForUser(ctx, "vi")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, models.RoleViewer, list[0].Role)

	name := "Household"
	_, err = svc.Update(ctx, ws.ID, "vi", &UpdateWorkspaceDTO{Name: &name})
	assert.ErrorIs(t, err, ErrForbidden)
	got, err := svc.Update(ctx, ws.ID, "ed", &UpdateWorkspaceDTO{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Household", got.Name)
	assert.Len(t, got.Members, 3)

	_, err = svc.Get(ctx, ws.ID, "stranger")
	assert.ErrorIs(t, err, ErrNotFound)

	ok, err := svc.CanWrite(ctx, ws.ID, "vi")
	require.NoError(t, err)
	assert.False(t, ok)
	_, err = svc.UpdateMember(ctx, ws.ID, "owner", "vi", models.RoleEditor)
	require.NoError(t, err)
	ok, err = svc.CanWrite(ctx, ws.ID, "vi")
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = svc.UpdateMember(ctx, ws.ID, "owner", "owner", models.RoleViewer)
	assert.ErrorIs(t, err, ErrOwnerImmutable)
	assert.ErrorIs(t, svc.RemoveMember(ctx, ws.ID, "owner", "owner"), ErrOwnerImmutable)

	// members may leave, and can be invited again
	require.NoError(t, svc.RemoveMember(ctx, ws.ID, "vi", "vi"))
	_, err = svc.AddMember(ctx, ws.ID, "owner", &AddMemberDTO{UserID: "vi"})
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Delete(ctx, ws.ID, "ed"), ErrForbidden)
	require.NoError(t, svc.Delete(ctx, ws.ID, "owner"))
	_, err = svc.RoleOf(ctx, ws.ID, "ed")
	assert.ErrorIs(t, err, ErrNotMember)
}

func TestCreateRequiresName(t *testing.T) {
	_, err := newService(t).Create(context.Background(), "u", &CreateWorkspaceDTO{Name: "  "})
	assert.ErrorIs(t, err, errNameRequired)
}
