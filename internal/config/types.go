package config

import "time"

// AppConfig holds runtime startup configuration loaded from YAML and the environment.
type AppConfig struct {
	Port           int            `yaml:"port"`
	Env            string         `yaml:"env"` // "development" | "production"
	AllowedOrigins []string       `yaml:"allowed_origins"`
	Timezone       string         `yaml:"timezone"`
	Paths          PathsConfig    `yaml:"paths"`
	Database       DatabaseConfig `yaml:"database"`
	Redis          RedisConfig    `yaml:"redis"`
	Auth           AuthConfig     `yaml:"auth"`
	AI             AIConfig       `yaml:"ai"`
	Search         SearchConfig   `yaml:"search"`
	Analysis       AnalysisConfig `yaml:"analysis"`
	Cache          CacheConfig    `yaml:"cache"`
	Geo            GeoConfig      `yaml:"geo"`
	Comments       CommentsConfig `yaml:"comments"`
	RateLimit      RateLimit      `yaml:"rate_limit"`
}

type PathsConfig struct {
	Logs string `yaml:"logs"`
}

// DatabaseConfig selects the gorm dialector. Driver is "mysql" or "sqlite".
type DatabaseConfig struct {
	Driver    string            `yaml:"driver"`
	DSN       string            `yaml:"dsn"`
	Path      string            `yaml:"path"` // sqlite file, ":memory:" allowed
	Host      string            `yaml:"host"`
	Port      int               `yaml:"port"`
	User      string            `yaml:"user"`
	Password  string            `yaml:"password"`
	Name      string            `yaml:"name"`
	Charset   string            `yaml:"charset"`
	ParseTime bool              `yaml:"parse_time"`
	Loc       string            `yaml:"loc"`
	Params    map[string]string `yaml:"params"`
}

type RedisConfig struct {
	URL      string `yaml:"url"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	TLS      bool   `yaml:"tls"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

// AIConfig lists text-generation providers and which one serves each task.
type AIConfig struct {
	Providers     []AIProvider       `yaml:"providers"`
	EmojiModel    *AIModelAssignment `yaml:"emoji_model"`
	CriteriaModel *AIModelAssignment `yaml:"criteria_model"`
	OptionsModel  *AIModelAssignment `yaml:"options_model"`
	ForwardModel  *AIModelAssignment `yaml:"forward_model"`
	RealtimeModel *AIModelAssignment `yaml:"realtime_model"`
}

type AIProvider struct {
	ID           string `yaml:"id"`
	Name         string `yaml:"name"`
	Type         string `yaml:"type"` // openai | openai-compatible | anthropic | gemini
	APIKey       string `yaml:"api_key"`
	Endpoint     string `yaml:"endpoint"`
	DefaultModel string `yaml:"default_model"`
	Enabled      bool   `yaml:"enabled"`
}

type AIModelAssignment struct {
	ProviderID string `yaml:"provider_id"`
	Model      string `yaml:"model"`
}

type SearchConfig struct {
	UnsplashAccessKey  string `yaml:"unsplash_access_key"`
	UnsplashEndpoint   string `yaml:"unsplash_endpoint"`
	GoogleAPIKey       string `yaml:"google_api_key"`
	GoogleCX           string `yaml:"google_cx"`
	GoogleEndpoint     string `yaml:"google_endpoint"`
	HuggingFaceToken   string `yaml:"huggingface_token"`
	HuggingFaceModel   string `yaml:"huggingface_model"`
	HuggingFaceURL     string `yaml:"huggingface_url"`
	PlaceholderImage   string `yaml:"placeholder_image"`
	RealtimeDailyLimit int    `yaml:"realtime_daily_limit"`
}

type AnalysisConfig struct {
	CriteriaCount  int           `yaml:"criteria_count"`
	OptionCount    int           `yaml:"option_count"`
	RevealInterval time.Duration `yaml:"reveal_interval"`
}

type CacheConfig struct {
	Backend    string        `yaml:"backend"` // redis | memory
	TTL        time.Duration `yaml:"ttl"`
	EnrichTTL  time.Duration `yaml:"enrich_ttl"`
	MaxEntries int           `yaml:"max_entries"`
}

type GeoConfig struct {
	Endpoint string        `yaml:"endpoint"` // fmt pattern with one %s for the IP
	TTL      time.Duration `yaml:"ttl"`
}

// CommentsConfig extends the built-in comment block list.
type CommentsConfig struct {
	BlockedKeywords []string `yaml:"blocked_keywords"`
}

type RateLimit struct {
	Max    int           `yaml:"max"`
	Window time.Duration `yaml:"window"`
}
