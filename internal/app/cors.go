package app

import (
	"net/url"
	"strings"

	"github.com/gin-contrib/cors"

	"github.com/rationable/api/internal/config"
)

// corsConfig allows every origin in development or when no patterns are configured.
// Functions callers reuse the same policy, so Idempotency-Key and the X-Cache marker are
// allowed here rather than per route.
func corsConfig(cfg *config.AppConfig) cors.Config {
	c := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept", "Idempotency-Key"},
		ExposeHeaders:    []string{"Content-Length", "X-Cache"},
		AllowCredentials: true,
	}
	if len(cfg.AllowedOrigins) == 0 || cfg.IsDev() {
		c.AllowOriginFunc = func(string) bool { return true }
		return c
	}
	c.AllowOriginFunc = originAllowed(cfg.AllowedOrigins)
	return c
}

// originAllowed matches an Origin header against host patterns. Patterns may be written as
// bare hosts ("rationable.app", "*.rationable.app", "localhost:*") or full origins.
func originAllowed(patterns []string) func(string) bool {
	hosts := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if h := strings.ToLower(originHost(p)); h != "" {
			hosts = append(hosts, h)
		}
	}
	return func(origin string) bool {
		host := strings.ToLower(originHost(origin))
		for _, pattern := range hosts {
			if matchOriginPattern(pattern, host) {
				return true
			}
		}
		return false
	}
}

// originHost returns the host[:port] of an origin, or the input when it has no scheme.
func originHost(origin string) string {
	origin = strings.TrimSpace(origin)
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return origin
	}
	return u.Host
}

func matchOriginPattern(pattern, host string) bool {
	switch {
	case pattern == host:
		return true
	case strings.HasPrefix(pattern, "*."):
		return strings.HasSuffix(host, pattern[1:])
	case strings.HasSuffix(pattern, ":*"):
		return strings.HasPrefix(host, pattern[:len(pattern)-1])
	}
	return false
}
