package geo

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rationable/api/internal/modules/storage/cache"
)

func TestLookupCaches(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "/8.8.8.8/json/", r.URL.Path)
		_, _ = io.WriteString(w, `{"ip":"8.8.8.8","city":"Mountain View","region":"California","country_name":"United States","country_code":"US"}`)
	}))
	defer srv.Close()

	l := NewLocator(srv.URL+"/%s/json/", cache.New(cache.NewMemoryStore()), 24*time.Hour, nil)
	for i := 0; i < 2; i++ {
		loc, err := l.Lookup(context.Background(), " 8.8.8.8 ")
		require.NoError(t, err)
		assert.Equal(t, "Mountain View, California, United States", loc.String())
		assert.Equal(t, "US", loc.CountryCode)
	}
	assert.EqualValues(t, 1, hits.Load())
}

func TestLookupAlternateFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"status":"success","country":"Germany","regionName":"Berlin","city":"Berlin"}`)
	}))
	defer srv.Close()

	loc, err := NewLocator(srv.URL+"/json/%s", nil, 0, nil).Lookup(context.Background(), "1.1.1.1")
	require.NoError(t, err)
	assert.Equal(t, Location{IP: "1.1.1.1", Country: "Germany", Region: "Berlin", City: "Berlin"}, *loc)
}

func TestLookupRejects(t *testing.T) {
	l := NewLocator("http://unused/%s", nil, 0, nil)
	_, err := l.Lookup(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrInvalidIP)
	for _, ip := range []string{"127.0.0.1", "10.1.2.3", "192.168.0.4", "::1"} {
		_, err = l.Lookup(context.Background(), ip)
		assert.ErrorIs(t, err, ErrPrivateIP, ip)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"error":true,"reason":"RateLimited"}`)
	}))
	defer srv.Close()
	_, err = NewLocator(srv.URL+"/%s", nil, 0, nil).Lookup(context.Background(), "8.8.4.4")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RateLimited")
}

func TestHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(NewLocator("http://unused/%s", nil, 0, nil)).RegisterRoutes(r.Group("/api/v1"))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/geo?ip=10.0.0.1", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "not publicly routable"))
}
