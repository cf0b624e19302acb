package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rationable/api/internal/pkg/jwt"
	"github.com/rationable/api/internal/pkg/redis"
)

func init() { gin.SetMode(gin.TestMode) }

func newRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return redis.Wrap(rdb)
}

func do(r http.Handler, method, path string, body []byte, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	for k, v := range header {
		req.Header[k] = v
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuth(t *testing.T) {
	v := jwt.NewVerifier("secret")
	r := gin.New()
	r.GET("/me", Auth(v), func(c *gin.Context) {
		c.String(http.StatusOK, CurrentUserID(c)+"|"+CurrentEmail(c))
	})
	r.GET("/maybe", OptionalAuth(v), func(c *gin.Context) {
		c.String(http.StatusOK, CurrentUserID(c))
	})

	token, err := v.Sign("user-1", "a@example.com", time.Hour)
	require.NoError(t, err)

	w := do(r, http.MethodGet, "/me", nil, http.Header{"Authorization": {"Bearer " + token}})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "user-1|a@example.com", w.Body.String())

	w = do(r, http.MethodGet, "/me?token="+token, nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(r, http.MethodGet, "/me", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	other, err := jwt.NewVerifier("other").Sign("user-2", "", time.Hour)
	require.NoError(t, err)
	w = do(r, http.MethodGet, "/me", nil, http.Header{"Authorization": {"Bearer " + other}})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(r, http.MethodGet, "/maybe", nil, http.Header{"Authorization": {"Bearer " + other}})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String())
}

func TestNormalizeToken(t *testing.T) {
	assert.Equal(t, "abc", NormalizeToken("  Bearer abc "))
	assert.Equal(t, "abc", NormalizeToken("bearer abc"))
	assert.Equal(t, "abc", NormalizeToken("abc"))
	assert.Empty(t, NormalizeToken("  "))
}

func TestRateLimit(t *testing.T) {
	rc := newRedis(t)
	r := gin.New()
	r.POST("/f", RateLimit(rc, "functions", 2, time.Minute, zap.NewNop()), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	for i := 0; i < 2; i++ {
		w := do(r, http.MethodPost, "/f", nil, nil)
		require.Equal(t, http.StatusOK, w.Code)
	}
	w := do(r, http.MethodPost, "/f", nil, nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))
}

func TestRateLimitWithoutRedis(t *testing.T) {
	r := gin.New()
	r.GET("/f", RateLimit(nil, "x", 1, time.Second, nil), func(c *gin.Context) { c.Status(http.StatusOK) })
	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/f", nil, nil).Code)
	}
}

func TestIdempotence(t *testing.T) {
	rc := newRedis(t)
	calls := 0
	r := gin.New()
	r.POST("/c", Idempotence(rc), func(c *gin.Context) {
		calls++
		c.Status(http.StatusCreated)
	})
	r.POST("/fail", Idempotence(rc), func(c *gin.Context) {
		calls++
		c.Status(http.StatusBadRequest)
	})

	body := []byte(`{"text":"hi"}`)
	assert.Equal(t, http.StatusCreated, do(r, http.MethodPost, "/c", body, nil).Code)
	assert.Equal(t, http.StatusConflict, do(r, http.MethodPost, "/c", body, nil).Code)
	assert.Equal(t, http.StatusCreated, do(r, http.MethodPost, "/c", []byte(`{"text":"other"}`), nil).Code)

	hdr := http.Header{"Idempotency-Key": {"k1"}}
	assert.Equal(t, http.StatusCreated, do(r, http.MethodPost, "/c", []byte(`{"a":1}`), hdr).Code)
	assert.Equal(t, http.StatusConflict, do(r, http.MethodPost, "/c", []byte(`{"a":2}`), hdr).Code)

	// failures release the key
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPost, "/fail", body, nil).Code)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPost, "/fail", body, nil).Code)
	assert.Equal(t, 5, calls)
}

func TestIdempotenceSeparatesUsersAndRoutes(t *testing.T) {
	rc := newRedis(t)
	v := jwt.NewVerifier("secret")
	r := gin.New()
	created := func(c *gin.Context) { c.Status(http.StatusCreated) }
	writes := r.Group("", OptionalAuth(v), Idempotence(rc))
	writes.POST("/workspaces", Auth(v), created)
	writes.POST("/templates", Auth(v), created)

	alice, err := v.Sign("alice", "", time.Hour)
	require.NoError(t, err)
	bob, err := v.Sign("bob", "", time.Hour)
	require.NoError(t, err)
	asAlice := http.Header{"Authorization": {"Bearer " + alice}}
	asBob := http.Header{"Authorization": {"Bearer " + bob}}

	body := []byte(`{"name":"Team"}`)
	assert.Equal(t, http.StatusCreated, do(r, http.MethodPost, "/workspaces", body, asAlice).Code)
	assert.Equal(t, http.StatusCreated, do(r, http.MethodPost, "/workspaces", body, asBob).Code)
	assert.Equal(t, http.StatusConflict, do(r, http.MethodPost, "/workspaces", body, asAlice).Code)

	keyed := http.Header{"Authorization": {"Bearer " + alice}, "Idempotency-Key": {"k1"}}
	assert.Equal(t, http.StatusCreated, do(r, http.MethodPost, "/workspaces", []byte(`{"name":"A"}`), keyed).Code)
	assert.Equal(t, http.StatusCreated, do(r, http.MethodPost, "/templates", []byte(`{"name":"A"}`), keyed).Code)
	assert.Equal(t, http.StatusConflict, do(r, http.MethodPost, "/templates", []byte(`{"name":"B"}`), keyed).Code)
}

func TestPublicCache(t *testing.T) {
	rc := newRedis(t)
	calls := 0
	r := gin.New()
	r.GET("/shared/:id", PublicCache(rc, time.Minute), func(c *gin.Context) {
		calls++
		if c.Param("id") == "missing" {
			c.JSON(http.StatusNotFound, gin.H{"ok": 0})
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": c.Param("id")})
	})

	first := do(r, http.MethodGet, "/shared/abc", nil, nil)
	second := do(r, http.MethodGet, "/shared/abc", nil, nil)
	assert.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, "hit", second.Header().Get("X-Cache"))
	assert.Equal(t, 1, calls)

	do(r, http.MethodGet, "/shared/missing", nil, nil)
	do(r, http.MethodGet, "/shared/missing", nil, nil)
	assert.Equal(t, 3, calls)

	n, err := PurgePublicCache(t.Context(), rc)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	do(r, http.MethodGet, "/shared/abc", nil, nil)
	assert.Equal(t, 4, calls)
}

func TestPurgePublicPath(t *testing.T) {
	rc := newRedis(t)
	calls := 0
	r := gin.New()
	r.GET("/shared/:id", PublicCache(rc, time.Minute), func(c *gin.Context) {
		calls++
		c.JSON(http.StatusOK, gin.H{"id": c.Param("id")})
	})

	do(r, http.MethodGet, "/shared/abc", nil, nil)
	do(r, http.MethodGet, "/shared/abc?lang=en", nil, nil)
	do(r, http.MethodGet, "/shared/abcd", nil, nil)
	assert.Equal(t, 3, calls)

	require.NoError(t, PurgePublicPath(t.Context(), rc, "/shared/abc"))
	do(r, http.MethodGet, "/shared/abc", nil, nil)
	do(r, http.MethodGet, "/shared/abc?lang=en", nil, nil)
	assert.Equal(t, 5, calls)
	assert.Equal(t, "hit", do(r, http.MethodGet, "/shared/abcd", nil, nil).Header().Get("X-Cache"))
	assert.Equal(t, 5, calls)
}
