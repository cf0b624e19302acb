package middleware

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rationable/api/internal/pkg/redis"
)

const (
	PublicCachePrefix       = "rationable:public-cache:"
	defaultPublicCacheTTL   = 60 * time.Second
	defaultPublicCacheBytes = 1 << 20
)

type cachedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type,omitempty"`
	BodyBase64  string `json:"body_base64"`
}

type cacheBodyWriter struct {
	gin.ResponseWriter
	body     []byte
	max      int
	overflow bool
}

func (w *cacheBodyWriter) Write(data []byte) (int, error) {
	w.capture(data)
	return w.ResponseWriter.Write(data)
}

func (w *cacheBodyWriter) WriteString(s string) (int, error) {
	w.capture([]byte(s))
	return w.ResponseWriter.WriteString(s)
}

func (w *cacheBodyWriter) capture(data []byte) {
	if w.overflow || len(data) == 0 {
		return
	}
	if len(w.body)+len(data) > w.max {
		w.overflow = true
		w.body = nil
		return
	}
	w.body = append(w.body, data...)
}

// PublicCache caches successful anonymous GET responses in Redis for ttl. Revoking a share
// must call PurgePublicPath, or the old body lingers until expiry.
func PublicCache(rc *redis.Client, ttl time.Duration) gin.HandlerFunc {
	if ttl <= 0 {
		ttl = defaultPublicCacheTTL
	}
	maxAge := strconv.Itoa(int(ttl / time.Second))
	return func(c *gin.Context) {
		if rc == nil || c.Request.Method != http.MethodGet {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		key := PublicCachePrefix + c.Request.URL.RequestURI()
		if resp, body, ok := readCachedResponse(ctx, rc, key); ok {
			c.Header("X-Cache", "hit")
			c.Header("Cache-Control", "public, max-age="+maxAge)
			c.Data(resp.Status, resp.ContentType, body)
			c.Abort()
			return
		}

		buf := &cacheBodyWriter{ResponseWriter: c.Writer, max: defaultPublicCacheBytes}
		c.Writer = buf
		c.Next()

		if c.Writer.Status() != http.StatusOK || buf.overflow || len(buf.body) == 0 {
			return
		}
		if strings.Contains(strings.ToLower(c.Writer.Header().Get("Cache-Control")), "no-store") {
			return
		}
		raw, err := json.Marshal(cachedResponse{
			Status:      http.StatusOK,
			ContentType: c.Writer.Header().Get("Content-Type"),
			BodyBase64:  base64.StdEncoding.EncodeToString(buf.body),
		})
		if err != nil {
			return
		}
		_ = rc.Set(ctx, key, raw, ttl)
	}
}

// PurgePublicCache deletes every cached public response and returns the number removed.
func PurgePublicCache(ctx context.Context, rc *redis.Client) (int64, error) {
	if rc == nil {
		return 0, nil
	}
	rdb := rc.Raw()
	var (
		cursor  uint64
		deleted int64
	)
	for {
		keys, next, err := rdb.Scan(ctx, cursor, PublicCachePrefix+"*", 200).Result()
		if err != nil {
			return deleted, err
		}
		if len(keys) > 0 {
			n, err := rdb.Del(ctx, keys...).Result()
			if err != nil {
				return deleted, err
			}
			deleted += n
		}
		cursor = next
		if cursor == 0 {
			return deleted, nil
		}
	}
}

// PurgePublicPath drops the cached responses of one path, with or without a query string.
func PurgePublicPath(ctx context.Context, rc *redis.Client, path string) error {
	if rc == nil {
		return nil
	}
	rdb := rc.Raw()
	key := PublicCachePrefix + path
	if err := rdb.Del(ctx, key).Err(); err != nil {
		return err
	}
	var cursor uint64
	for {
		keys, next, err := rdb.Scan(ctx, cursor, key+`\?*`, 200).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := rdb.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		if cursor = next; cursor == 0 {
			return nil
		}
	}
}

func readCachedResponse(ctx context.Context, rc *redis.Client, key string) (cachedResponse, []byte, bool) {
	raw, err := rc.Get(ctx, key)
	if err != nil || raw == "" {
		return cachedResponse{}, nil, false
	}
	var resp cachedResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return cachedResponse{}, nil, false
	}
	body, err := base64.StdEncoding.DecodeString(resp.BodyBase64)
	if err != nil {
		return cachedResponse{}, nil, false
	}
	if resp.ContentType == "" {
		resp.ContentType = "application/json; charset=utf-8"
	}
	return resp, body, true
}
