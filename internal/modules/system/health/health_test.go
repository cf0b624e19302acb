package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rationable/api/internal/database"
	"github.com/rationable/api/internal/pkg/cron"
)

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

type jobs struct{ ran []string }

func (j *jobs) List() []cron.ListItem {
	return []cron.ListItem{{Name: "sweep_cache"}, {Name: "cleanup_tasks"}}
}

func (j *jobs) RunNow(_ context.Context, name string) error {
	if name == "missing" {
		return errors.New(`job "missing" not found`)
	}
	j.ran = append(j.ran, name)
	return nil
}

func setup(t *testing.T, redisErr error) (*gin.Engine, *jobs) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db, err := database.OpenSQLite(":memory:")
	require.NoError(t, err)

	j := &jobs{}
	r := gin.New()
	NewHandler(db, pinger{err: redisErr}, j).RegisterRoutes(r.Group(""), func(c *gin.Context) { c.Next() })
	return r, j
}

func TestHealth(t *testing.T) {
	r, _ := setup(t, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, true, body["redis"])

	r, _ = setup(t, errors.New("down"))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "degraded")
}

func TestJobs(t *testing.T) {
	r, j := setup(t, nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/cron", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Less(t, strings.Index(w.Body.String(), "cleanup_tasks"), strings.Index(w.Body.String(), "sweep_cache"))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/health/cron/run/sweep_cache", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"sweep_cache"}, j.ran)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/health/cron/run/missing", nil))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}
