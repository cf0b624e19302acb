package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Load reads the YAML config at configPath over the built-in defaults and then applies
// environment overrides. A missing file is only tolerated for the default path, so that
// container deployments can run from the environment alone.
func Load(configPath string) (*AppConfig, error) {
	path := strings.TrimSpace(configPath)
	if path == "" {
		path = DefaultConfigPath
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := defaultAppConfig()
	content, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := decodeYAML(content, &cfg); err != nil {
			return nil, fmt.Errorf("parse config file %q: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist) && path == DefaultConfigPath:
	default:
		return nil, fmt.Errorf("read config file %q: %w", path, err)
	}

	cfg.applyEnvOverrides()
	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config %q: %w", path, err)
	}
	return &cfg, nil
}

// Parse decodes YAML content over the defaults without touching the environment.
func Parse(content []byte) (*AppConfig, error) {
	cfg := defaultAppConfig()
	if err := decodeYAML(content, &cfg); err != nil {
		return nil, err
	}
	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func decodeYAML(content []byte, cfg *AppConfig) error {
	if len(bytes.TrimSpace(content)) == 0 {
		return nil
	}
	decoder := yaml.NewDecoder(bytes.NewReader(content))
	decoder.KnownFields(true)
	return decoder.Decode(cfg)
}

func defaultAppConfig() AppConfig {
	return AppConfig{
		Port: defaultPort,
		Env:  defaultEnv,
		Database: DatabaseConfig{
			Driver:    defaultDBDriver,
			Host:      defaultDBHost,
			Port:      defaultDBPort,
			User:      defaultDBUser,
			Password:  defaultDBPassword,
			Name:      defaultDBName,
			Charset:   defaultDBCharset,
			ParseTime: true,
			Loc:       defaultDBLoc,
		},
		Redis: RedisConfig{
			Host: defaultRedisHost,
			Port: defaultRedisPort,
		},
		Search: SearchConfig{
			HuggingFaceModel:   defaultHuggingFaceModel,
			PlaceholderImage:   defaultPlaceholderImage,
			RealtimeDailyLimit: defaultRealtimeDailyLimit,
		},
		Analysis: AnalysisConfig{
			CriteriaCount:  defaultCriteriaCount,
			OptionCount:    defaultOptionCount,
			RevealInterval: defaultRevealInterval,
		},
		Cache: CacheConfig{
			Backend:    defaultCacheBackend,
			TTL:        defaultCacheTTL,
			EnrichTTL:  defaultEnrichTTL,
			MaxEntries: defaultCacheMaxEntries,
		},
		Geo: GeoConfig{
			Endpoint: defaultGeoEndpoint,
			TTL:      defaultGeoTTL,
		},
		RateLimit: RateLimit{
			Max:    defaultRateLimitMax,
			Window: defaultRateLimitWindow,
		},
	}
}

func (c *AppConfig) applyEnvOverrides() {
	if v := envValue("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Port = port
		}
	}
	if v := envValue("ENV"); v != "" {
		c.Env = v
	}
	if v := envValue("ALLOWED_ORIGINS"); v != "" {
		c.AllowedOrigins = strings.Split(v, ",")
	}
	if v := envValue("COMMENT_BLOCKED_KEYWORDS"); v != "" {
		c.Comments.BlockedKeywords = strings.Split(v, ",")
	}
	if v := envValue("DATABASE_DRIVER"); v != "" {
		c.Database.Driver = v
	}
	if v := envValue("DATABASE_DSN"); v != "" {
		c.Database.DSN = v
	}
	if v := envValue("DATABASE_PATH"); v != "" {
		c.Database.Path = v
	}
	if v := envValue("REDIS_URL"); v != "" {
		c.Redis.URL = v
	}
	if v := firstEnv(EnvPrefix+"JWT_SECRET", "SUPABASE_JWT_SECRET"); v != "" {
		c.Auth.JWTSecret = v
	}

	c.upsertProviderFromEnv("openai", "openai", "OPENAI_API_KEY")
	c.upsertProviderFromEnv("anthropic", "anthropic", "ANTHROPIC_API_KEY")
	c.upsertProviderFromEnv("gemini", "gemini", "GEMINI_API_KEY", "GOOGLE_GENAI_API_KEY")
	c.upsertProviderFromEnv("perplexity", "openai-compatible", "PERPLEXITY_API_KEY")

	if v := firstEnv("UNSPLASH_ACCESS_KEY"); v != "" {
		c.Search.UnsplashAccessKey = v
	}
	if v := firstEnv("GOOGLE_API_KEY", "GOOGLE_SEARCH_API_KEY"); v != "" {
		c.Search.GoogleAPIKey = v
	}
	if v := firstEnv("GOOGLE_CSE_ID", "GOOGLE_SEARCH_ENGINE_ID"); v != "" {
		c.Search.GoogleCX = v
	}
	if v := firstEnv("HUGGINGFACE_TOKEN", "HF_TOKEN"); v != "" {
		c.Search.HuggingFaceToken = v
	}
}

// upsertProviderFromEnv enables the provider with the given id, creating it when the YAML
// file did not declare one.
func (c *AppConfig) upsertProviderFromEnv(id, providerType string, keys ...string) {
	key := firstEnv(keys...)
	if key == "" {
		return
	}
	for i := range c.AI.Providers {
		if strings.EqualFold(c.AI.Providers[i].ID, id) {
			c.AI.Providers[i].APIKey = key
			c.AI.Providers[i].Enabled = true
			return
		}
	}
	provider := AIProvider{ID: id, Name: id, Type: providerType, APIKey: key, Enabled: true}
	if id == "perplexity" {
		provider.Endpoint = "https://api.perplexity.ai"
		provider.DefaultModel = "sonar"
		if c.AI.RealtimeModel == nil {
			c.AI.RealtimeModel = &AIModelAssignment{ProviderID: id}
		}
	}
	c.AI.Providers = append(c.AI.Providers, provider)
}

func (c *AppConfig) validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range, expected 1-65535", c.Port)
	}
	switch c.Database.Driver {
	case "mysql":
		if c.Database.DSN == "" && (c.Database.Port < 1 || c.Database.Port > 65535) {
			return fmt.Errorf("database.port %d out of range, expected 1-65535", c.Database.Port)
		}
	case "sqlite":
	default:
		return fmt.Errorf("database.driver %q unsupported, expected mysql or sqlite", c.Database.Driver)
	}
	if c.Redis.URL == "" && (c.Redis.Port < 1 || c.Redis.Port > 65535) {
		return fmt.Errorf("redis.port %d out of range, expected 1-65535", c.Redis.Port)
	}
	if c.Redis.DB < 0 {
		return fmt.Errorf("redis.db %d invalid, expected >= 0", c.Redis.DB)
	}
	switch c.Cache.Backend {
	case "redis", "memory":
	default:
		return fmt.Errorf("cache.backend %q unsupported, expected redis or memory", c.Cache.Backend)
	}
	if c.Cache.MaxEntries < 1 {
		return fmt.Errorf("cache.max_entries %d invalid, expected >= 1", c.Cache.MaxEntries)
	}
	if c.Analysis.CriteriaCount < minCriteriaCount || c.Analysis.CriteriaCount > maxCriteriaCount {
		return fmt.Errorf("analysis.criteria_count %d out of range, expected %d-%d",
			c.Analysis.CriteriaCount, minCriteriaCount, maxCriteriaCount)
	}
	return nil
}

// IsDev reports whether the server runs in development mode.
func (c *AppConfig) IsDev() bool { return c.Env == "development" }

// LogDir returns the resolved log directory.
func (c *AppConfig) LogDir() string {
	return ResolveRuntimePath(c.Paths.Logs, "logs")
}

func envValue(name string) string {
	return strings.TrimSpace(os.Getenv(EnvPrefix + name))
}

func firstEnv(names ...string) string {
	for _, name := range names {
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			return v
		}
	}
	return ""
}
