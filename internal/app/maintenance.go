package app

import (
	"context"
	"fmt"

	"github.com/rationable/api/internal/config"
	"github.com/rationable/api/internal/middleware"
	"github.com/rationable/api/internal/modules/storage/cache"
	pkgredis "github.com/rationable/api/internal/pkg/redis"
)

// CacheNamespaces lists every namespace the server writes to.
var CacheNamespaces = []string{cacheDecisions, cacheEnrich, cacheGeo}

// PurgeCaches clears the given Redis-backed cache namespaces (all of them when none are named)
// along with the cached public share responses. It returns how many public responses were
// removed.
func PurgeCaches(ctx context.Context, cfg *config.AppConfig, namespaces ...string) (int64, error) {
	rc, err := pkgredis.Connect(cfg.Redis.URLValue())
	if err != nil {
		return 0, fmt.Errorf("redis: %w", err)
	}
	defer rc.Close()
	return purgeCaches(ctx, rc, namespaces...)
}

func purgeCaches(ctx context.Context, rc *pkgredis.Client, namespaces ...string) (int64, error) {
	if len(namespaces) == 0 {
		namespaces = CacheNamespaces
	}
	for _, ns := range namespaces {
		if !knownNamespace(ns) {
			return 0, fmt.Errorf("unknown cache namespace %q", ns)
		}
	}
	for _, ns := range namespaces {
		if err := cache.New(cache.NewRedisStore(rc.Raw(), ns)).Clear(ctx); err != nil {
			return 0, fmt.Errorf("clear %s: %w", ns, err)
		}
	}
	return middleware.PurgePublicCache(ctx, rc)
}

func knownNamespace(ns string) bool {
	for _, known := range CacheNamespaces {
		if ns == known {
			return true
		}
	}
	return false
}
