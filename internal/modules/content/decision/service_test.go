package decision

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/rationable/api/internal/database"
	"github.com/rationable/api/internal/models"
	"github.com/rationable/api/internal/modules/content/workspace"
	"github.com/rationable/api/internal/pkg/pagination"
)

func setup(t *testing.T) (*Service, *workspace.Service, *gorm.DB) {
	t.Helper()
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "decision.db"))
	require.NoError(t, err)
	ws := workspace.NewService(db)
	return NewService(db, ws), ws, db
}

func sample(owner string) *models.DecisionModel {
	return &models.DecisionModel{
		OwnerID:  owner,
		Dilemma:  "Rent or buy?",
		Emoji:    "🏠",
		Criteria: []models.Criterion{{ID: "c1", Name: "Cost", Weight: 1}},
		Result: models.Result{
			Recommendation: "Rent",
			Breakdown: []models.BreakdownItem{
				{Option: "Buy", Score: 60},
				{Option: "Rent", Score: 80},
			},
		},
	}
}

func TestCreateRanksAndGet(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := setup(t)

	d := sample("alice")
	require.NoError(t, svc.Create(ctx, d))
	assert.Equal(t, "Rent", d.Result.Breakdown[0].Option)
	assert.Equal(t, models.ModeProgressive, d.Mode)

	got, err := svc.Get(ctx, d.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, "Rent", got.Result.Breakdown[0].Option)

	_, err = svc.Get(ctx, d.ID, "mallory")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, svc.Create(ctx, sample("")), ErrForbidden)
}

func TestWorkspaceAccess(t *testing.T) {
	ctx := context.Background()
	svc, ws, _ := setup(t)

	space, err := ws.Create(ctx, "alice", &workspace.CreateWorkspaceDTO{Name: "Team"})
	require.NoError(t, err)
	_, err = ws.AddMember(ctx, space.ID, "alice", &workspace.AddMemberDTO{UserID: "bob", Role: models.RoleViewer})
	require.NoError(t, err)

	d := sample("alice")
	d.WorkspaceID = &space.ID
	require.NoError(t, svc.Create(ctx, d))

	_, err = svc.Get(ctx, d.ID, "bob")
	require.NoError(t, err, "workspace members can read")

	list, pag, err := svc.List(ctx, "bob", &space.ID, "", pagination.Clamp(1, 10))
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.EqualValues(t, 1, pag.Total)

	_, _, err = svc.List(ctx, "mallory", &space.ID, "", pagination.Clamp(1, 10))
	assert.ErrorIs(t, err, ErrNotFound)

	viewerDecision := sample("bob")
	viewerDecision.WorkspaceID = &space.ID
	assert.ErrorIs(t, svc.Create(ctx, viewerDecision), ErrWorkspaceDenied)

	assert.ErrorIs(t, svc.Delete(ctx, d.ID, "bob"), ErrForbidden)
	_, err = svc.Share(ctx, d.ID, "bob")
	assert.ErrorIs(t, err, ErrForbidden)

	moved, err := svc.Move(ctx, d.ID, "alice", nil)
	require.NoError(t, err)
	assert.Nil(t, moved.WorkspaceID)
	_, err = svc.Get(ctx, d.ID, "bob")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListSearch(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := setup(t)

	require.NoError(t, svc.Create(ctx, sample("alice")))
	other := sample("alice")
	other.Dilemma = "Which laptop to buy?"
	require.NoError(t, svc.Create(ctx, other))
	require.NoError(t, svc.Create(ctx, sample("bob")))

	all, _, err := svc.List(ctx, "alice", nil, "", pagination.Clamp(1, 10))
	require.NoError(t, err)
	assert.Len(t, all, 2)

	found, _, err := svc.List(ctx, "alice", nil, "LAPTOP", pagination.Clamp(1, 10))
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, other.ID, found[0].ID)
}

func TestShareIsIdempotent(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := setup(t)

	d := sample("alice")
	require.NoError(t, svc.Create(ctx, d))

	id1, err := svc.Share(ctx, d.ID, "alice")
	require.NoError(t, err)
	assert.Len(t, id1, publicIDLength)
	assert.NotContains(t, id1, "-")

	id2, err := svc.Share(ctx, d.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, id1, id2)

	pub, err := svc.GetPublic(ctx, id1)
	require.NoError(t, err)
	assert.Equal(t, "Rent or buy?", pub.Dilemma)
	assert.Equal(t, ConfidenceHigh, pub.Stats.Confidence)
	assert.Contains(t, pub.HTML, "<table>")
	assert.Contains(t, pub.Recommendation, "Rent")

	require.NoError(t, svc.Unshare(ctx, d.ID, "alice"))
	_, err = svc.GetPublic(ctx, id1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteRemovesComments(t *testing.T) {
	ctx := context.Background()
	svc, _, db := setup(t)

	d := sample("alice")
	require.NoError(t, svc.Create(ctx, d))
	c := models.CommentModel{DecisionID: d.ID, AuthorID: "alice", Text: "hmm"}
	require.NoError(t, db.Create(&c).Error)
	require.NoError(t, db.Create(&models.ReactionModel{CommentID: c.ID, UserID: "bob", Emoji: "👍"}).Error)

	require.NoError(t, svc.Delete(ctx, d.ID, "alice"))
	_, err := svc.Get(ctx, d.ID, "alice")
	assert.ErrorIs(t, err, ErrNotFound)

	var n int64
	require.NoError(t, db.Model(&models.ReactionModel{}).Count(&n).Error)
	assert.Zero(t, n)
	require.NoError(t, db.Model(&models.CommentModel{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestRevokeNotifiesPublicID(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := setup(t)
	var revoked []string
	svc.OnRevoke(func(_ context.Context, publicID string) { revoked = append(revoked, publicID) })

	unshared := sample("alice")
	require.NoError(t, svc.Create(ctx, unshared))
	first, err := svc.Share(ctx, unshared.ID, "alice")
	require.NoError(t, err)
	require.NoError(t, svc.Unshare(ctx, unshared.ID, "alice"))

	deleted := sample("alice")
	require.NoError(t, svc.Create(ctx, deleted))
	second, err := svc.Share(ctx, deleted.ID, "alice")
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, deleted.ID, "alice"))

	private := sample("alice")
	require.NoError(t, svc.Create(ctx, private))
	require.NoError(t, svc.Delete(ctx, private.ID, "alice"))

	assert.Equal(t, []string{first, second}, revoked)
}
