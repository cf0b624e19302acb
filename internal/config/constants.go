package config

import "time"

const (
	// DefaultConfigPath is used when --config is not provided.
	DefaultConfigPath = "config.yml"
	// EnvPrefix prefixes every environment override.
	EnvPrefix = "RATIONABLE_"

	defaultPort     = 8787
	defaultEnv      = "development"
	defaultDBDriver = "mysql"

	defaultDBHost     = "127.0.0.1"
	defaultDBPort     = 3306
	defaultDBUser     = "root"
	defaultDBPassword = "password"
	defaultDBName     = "rationable"
	defaultDBCharset  = "utf8mb4"
	defaultDBLoc      = "Local"
	defaultSQLitePath = "rationable.db"

	defaultRedisHost = "localhost"
	defaultRedisPort = 6379

	defaultCriteriaCount  = 5
	minCriteriaCount      = 3
	maxCriteriaCount      = 8
	defaultOptionCount    = 4
	defaultRevealInterval = 400 * time.Millisecond

	defaultCacheBackend    = "redis"
	defaultCacheTTL        = 24 * time.Hour
	defaultEnrichTTL       = 7 * 24 * time.Hour
	defaultCacheMaxEntries = 500

	defaultGeoEndpoint = "https://ipapi.co/%s/json/"
	defaultGeoTTL      = 24 * time.Hour

	defaultRealtimeDailyLimit = 20
	defaultPlaceholderImage   = "/placeholder.svg"
	defaultHuggingFaceModel   = "stabilityai/stable-diffusion-xl-base-1.0"

	defaultRateLimitMax    = 30
	defaultRateLimitWindow = time.Minute
)
