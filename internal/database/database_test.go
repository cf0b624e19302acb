package database

import (
	"path/filepath"
	"testing"

	"github.com/rationable/api/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenSQLite_MigratesAllModels(t *testing.T) {
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)

	for _, table := range []string{"decisions", "workspaces", "workspace_members", "comments", "comment_reactions", "templates", "user_settings"} {
		assert.True(t, db.Migrator().HasTable(table), table)
	}

	d := models.DecisionModel{
		OwnerID:  "u1",
		Dilemma:  "Tea or coffee?",
		Criteria: []models.Criterion{{ID: "c1", Name: "Taste"}},
		Result: models.Result{
			Recommendation: "Tea",
			Breakdown:      []models.BreakdownItem{{Option: "Tea", Score: 80, Pros: []string{"calm"}}},
		},
	}
	require.NoError(t, db.Create(&d).Error)
	assert.NotEmpty(t, d.ID)

	var loaded models.DecisionModel
	require.NoError(t, db.First(&loaded, "id = ?", d.ID).Error)
	assert.Equal(t, d.Criteria, loaded.Criteria)
	assert.Equal(t, "Tea", loaded.Result.Breakdown[0].Option)
}
