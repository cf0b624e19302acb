package settings

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rationable/api/internal/database"
	"github.com/rationable/api/internal/pkg/redis"
)

func newService(t *testing.T, limit int) (*Service, *miniredis.Miniredis) {
	t.Helper()
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "settings.db"))
	require.NoError(t, err)
	mr := miniredis.RunT(t)
	rc := redis.Wrap(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = rc.Close() })
	return NewService(db, rc, limit), mr
}

func TestGetDefaultsAndUpdate(t *testing.T) {
	svc, _ := newService(t, 2)
	ctx := context.Background()

	m, err := svc.Get(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, m.RealTimeSearch)
	assert.Equal(t, "en", m.Language)

	on, lang := true, "fr"
	_, err = svc.Update(ctx, "u1", &UpdateSettingsDTO{RealTimeSearch: &on, Language: &lang})
	require.NoError(t, err)

	m, err = svc.Get(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, m.RealTimeSearch)
	assert.Equal(t, "fr", m.Language)

	off := false
	_, err = svc.Update(ctx, "u1", &UpdateSettingsDTO{RealTimeSearch: &off})
	require.NoError(t, err)
	m, err = svc.Get(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, m.RealTimeSearch)
	assert.Equal(t, "fr", m.Language)
}

func TestConsumeRealtime(t *testing.T) {
	svc, mr := newService(t, 2)
	svc.now = func() time.Time { return time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC) }
	ctx := context.Background()

	_, err := svc.ConsumeRealtime(ctx, "u1")
	assert.ErrorIs(t, err, ErrRealtimeDisabled)

	on := true
	_, err = svc.Update(ctx, "u1", &UpdateSettingsDTO{RealTimeSearch: &on})
	require.NoError(t, err)

	u, err := svc.ConsumeRealtime(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, Usage{Used: 1, Limit: 2, Remaining: 1}, u)
	_, err = svc.ConsumeRealtime(ctx, "u1")
	require.NoError(t, err)
	u, err = svc.ConsumeRealtime(ctx, "u1")
	assert.ErrorIs(t, err, ErrDailyLimit)
	assert.Equal(t, int64(0), u.Remaining)

	assert.True(t, mr.Exists("rationable:realtime:u1:20250501"))
	assert.Greater(t, mr.TTL("rationable:realtime:u1:20250501"), time.Duration(0))

	// A new day starts a fresh counter.
	svc.now = func() time.Time { return time.Date(2025, 5, 2, 0, 0, 1, 0, time.UTC) }
	u, err = svc.Usage(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, Usage{Used: 0, Limit: 2, Remaining: 2}, u)
}
