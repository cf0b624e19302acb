package config

import (
	"strings"
	"time"
)

func (c *AppConfig) normalize() {
	c.Env = normalizeEnv(c.Env)
	c.AllowedOrigins = trimList(c.AllowedOrigins)
	c.Comments.BlockedKeywords = trimList(c.Comments.BlockedKeywords)
	c.Database = normalizeDatabaseConfig(c.Database)
	c.Redis.URL = normalizeRedisRawURL(c.Redis.URL)
	c.Cache.Backend = strings.ToLower(strings.TrimSpace(c.Cache.Backend))

	for i := range c.AI.Providers {
		p := &c.AI.Providers[i]
		p.ID = strings.TrimSpace(p.ID)
		p.Type = normalizeProviderType(p.Type)
		p.APIKey = strings.TrimSpace(p.APIKey)
		p.Endpoint = strings.TrimRight(strings.TrimSpace(p.Endpoint), "/")
		if p.ID == "" {
			p.ID = p.Type
		}
	}

	if c.Analysis.OptionCount < 2 {
		c.Analysis.OptionCount = defaultOptionCount
	}
	if c.Analysis.RevealInterval < 0 {
		c.Analysis.RevealInterval = 0
	}
	c.Cache.TTL = positiveOr(c.Cache.TTL, defaultCacheTTL)
	c.Cache.EnrichTTL = positiveOr(c.Cache.EnrichTTL, defaultEnrichTTL)
	c.Geo.TTL = positiveOr(c.Geo.TTL, defaultGeoTTL)
	if strings.TrimSpace(c.Geo.Endpoint) == "" {
		c.Geo.Endpoint = defaultGeoEndpoint
	}
	if c.RateLimit.Max < 1 {
		c.RateLimit.Max = defaultRateLimitMax
	}
	c.RateLimit.Window = positiveOr(c.RateLimit.Window, defaultRateLimitWindow)
	if strings.TrimSpace(c.Search.PlaceholderImage) == "" {
		c.Search.PlaceholderImage = defaultPlaceholderImage
	}
	if strings.TrimSpace(c.Search.HuggingFaceModel) == "" {
		c.Search.HuggingFaceModel = defaultHuggingFaceModel
	}
}

func normalizeDatabaseConfig(cfg DatabaseConfig) DatabaseConfig {
	cfg.Driver = strings.ToLower(strings.TrimSpace(cfg.Driver))
	if cfg.Driver == "" {
		cfg.Driver = defaultDBDriver
	}
	cfg.DSN = strings.TrimSpace(cfg.DSN)
	cfg.Path = strings.TrimSpace(cfg.Path)
	if cfg.Driver == "sqlite" && cfg.Path == "" && cfg.DSN == "" {
		cfg.Path = defaultSQLitePath
	}
	cfg.Params = copyStringMap(cfg.Params)
	return cfg
}

func normalizeRedisRawURL(raw string) string {
	u := strings.TrimSpace(raw)
	if u == "" {
		return ""
	}
	if !strings.Contains(u, "://") {
		u = "redis://" + u
	}
	return u
}

// normalizeProviderType folds "OpenAI_Compatible", "openai compatible" and friends into one form.
func normalizeProviderType(raw string) string {
	t := strings.ToLower(strings.TrimSpace(raw))
	t = strings.ReplaceAll(t, "_", "-")
	t = strings.ReplaceAll(t, " ", "-")
	if t == "openaicompatible" {
		t = "openai-compatible"
	}
	return t
}

// trimList trims every item and drops the blank ones.
func trimList(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if v := strings.TrimSpace(item); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func normalizeEnv(env string) string {
	e := strings.ToLower(strings.TrimSpace(env))
	switch e {
	case "prod", "production":
		return "production"
	case "":
		return defaultEnv
	}
	return e
}

func positiveOr(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}

func copyStringMap(input map[string]string) map[string]string {
	if len(input) == 0 {
		return nil
	}
	out := make(map[string]string, len(input))
	for k, v := range input {
		out[k] = v
	}
	return out
}
