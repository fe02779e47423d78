// Package config handles loading and validation of the service configuration
// from environment variables and optional YAML files.
package config

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/NomadCrew/nomad-crew-ocr/logger"
	"github.com/spf13/viper"
)

// Environment represents the application's running environment (development or production).
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvProduction  Environment = "production"

	minDPI     = 70
	maxDPI     = 1200
	minKeyLen  = 16
	defaultMiB = 1 << 20
)

var languageCodePattern = regexp.MustCompile(`^[a-z]{3}(_[a-z]+)?$`)

// ServerConfig holds server-specific configuration.
type ServerConfig struct {
	Environment    Environment `mapstructure:"ENVIRONMENT" yaml:"environment"`
	Port           string      `mapstructure:"PORT" yaml:"port"`
	AllowedOrigins []string    `mapstructure:"ALLOWED_ORIGINS" yaml:"allowed_origins"`
	Version        string      `mapstructure:"VERSION" yaml:"version"`
	MaxUploadBytes int64       `mapstructure:"MAX_UPLOAD_BYTES" yaml:"max_upload_bytes"`
	// TrustedProxies lists CIDR ranges of reverse proxies whose X-Forwarded-For
	// is honoured. Empty means the header is ignored.
	TrustedProxies        []string `mapstructure:"TRUSTED_PROXIES" yaml:"trusted_proxies"`
	RequestTimeoutSeconds int      `mapstructure:"REQUEST_TIMEOUT_SECONDS" yaml:"request_timeout_seconds"`
	// APIKey is the shared secret expected in X-API-Key. Empty disables the check.
	APIKey string `mapstructure:"API_KEY" yaml:"api_key"`
}

// RedisConfig holds Redis connection details.
type RedisConfig struct {
	Address      string `mapstructure:"ADDRESS" yaml:"address"`
	Password     string `mapstructure:"PASSWORD" yaml:"password"`
	DB           int    `mapstructure:"DB" yaml:"db"`
	UseTLS       bool   `mapstructure:"USE_TLS" yaml:"use_tls"`
	PoolSize     int    `mapstructure:"POOL_SIZE" yaml:"pool_size"`
	MinIdleConns int    `mapstructure:"MIN_IDLE_CONNS" yaml:"min_idle_conns"`
}

// OCRConfig configures the recognition worker pool.
type OCRConfig struct {
	WorkerCount int `mapstructure:"WORKER_COUNT" yaml:"worker_count"`
	// Languages is a '+' joined list of traineddata names, e.g. "fra+eng+deu".
	Languages         string `mapstructure:"LANGUAGES" yaml:"languages"`
	DPI               int    `mapstructure:"DPI" yaml:"dpi"`
	JobTimeoutSeconds int    `mapstructure:"JOB_TIMEOUT_SECONDS" yaml:"job_timeout_seconds"`
	DefaultLocale     string `mapstructure:"DEFAULT_LOCALE" yaml:"default_locale"`
	CharWhitelist     string `mapstructure:"CHAR_WHITELIST" yaml:"char_whitelist"`
	ProgressBuffer    int    `mapstructure:"PROGRESS_BUFFER" yaml:"progress_buffer"`
}

// LanguageList splits Languages into its individual codes.
func (c OCRConfig) LanguageList() []string {
	var langs []string
	for _, l := range strings.Split(c.Languages, "+") {
		if l = strings.TrimSpace(l); l != "" {
			langs = append(langs, l)
		}
	}
	return langs
}

func (c OCRConfig) JobTimeout() time.Duration {
	return time.Duration(c.JobTimeoutSeconds) * time.Second
}

// CacheConfig configures the content-addressed result cache.
type CacheConfig struct {
	Enabled            bool   `mapstructure:"ENABLED" yaml:"enabled"`
	TTLSeconds         int    `mapstructure:"TTL_SECONDS" yaml:"ttl_seconds"`
	KeyPrefix          string `mapstructure:"KEY_PREFIX" yaml:"key_prefix"`
	OperationTimeoutMs int    `mapstructure:"OPERATION_TIMEOUT_MS" yaml:"operation_timeout_ms"`
}

func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

func (c CacheConfig) OperationTimeout() time.Duration {
	return time.Duration(c.OperationTimeoutMs) * time.Millisecond
}

// RateLimitConfig holds configuration for the per-IP rate limiter on /process.
type RateLimitConfig struct {
	WindowSeconds int `mapstructure:"WINDOW_SECONDS" yaml:"window_seconds"`
	MaxRequests   int `mapstructure:"MAX_REQUESTS" yaml:"max_requests"`
}

// ArchiveConfig configures the optional R2/S3 archive of original uploads.
type ArchiveConfig struct {
	Enabled         bool   `mapstructure:"ENABLED" yaml:"enabled"`
	AccountID       string `mapstructure:"ACCOUNT_ID" yaml:"account_id"`
	Bucket          string `mapstructure:"BUCKET" yaml:"bucket"`
	AccessKeyID     string `mapstructure:"ACCESS_KEY_ID" yaml:"access_key_id"`
	SecretAccessKey string `mapstructure:"SECRET_ACCESS_KEY" yaml:"secret_access_key"`
	// Endpoint overrides the R2 endpoint derived from AccountID (S3, MinIO).
	Endpoint string `mapstructure:"ENDPOINT" yaml:"endpoint"`
}

// Config aggregates all application configuration sections.
type Config struct {
	Server    ServerConfig    `mapstructure:"SERVER" yaml:"server"`
	Redis     RedisConfig     `mapstructure:"REDIS" yaml:"redis"`
	OCR       OCRConfig       `mapstructure:"OCR" yaml:"ocr"`
	Cache     CacheConfig     `mapstructure:"CACHE" yaml:"cache"`
	RateLimit RateLimitConfig `mapstructure:"RATE_LIMIT" yaml:"rate_limit"`
	Archive   ArchiveConfig   `mapstructure:"ARCHIVE" yaml:"archive"`
}

// IsDevelopment returns true if the application is running in development environment.
func (c *Config) IsDevelopment() bool {
	return c.Server.Environment == EnvDevelopment
}

// IsProduction returns true if the application is running in production environment.
func (c *Config) IsProduction() bool {
	return c.Server.Environment == EnvProduction
}

// bindEnvVars binds multiple environment variables to config keys.
// Format: []{configKey, envVar}
func bindEnvVars(v *viper.Viper, bindings [][2]string) error {
	for _, b := range bindings {
		if err := v.BindEnv(b[0], b[1]); err != nil {
			return fmt.Errorf("failed to bind %s: %w", b[0], err)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER.ENVIRONMENT", EnvDevelopment)
	v.SetDefault("SERVER.PORT", "8080")
	v.SetDefault("SERVER.ALLOWED_ORIGINS", []string{"*"})
	v.SetDefault("SERVER.VERSION", "dev")
	v.SetDefault("SERVER.MAX_UPLOAD_BYTES", 50*defaultMiB)
	v.SetDefault("SERVER.TRUSTED_PROXIES", []string{})
	v.SetDefault("SERVER.REQUEST_TIMEOUT_SECONDS", 120)
	v.SetDefault("SERVER.API_KEY", "")
	v.SetDefault("REDIS.ADDRESS", "localhost:6379")
	v.SetDefault("REDIS.PASSWORD", "")
	v.SetDefault("REDIS.DB", 0)
	v.SetDefault("REDIS.USE_TLS", false)
	v.SetDefault("REDIS.POOL_SIZE", 10)
	v.SetDefault("REDIS.MIN_IDLE_CONNS", 2)
	v.SetDefault("OCR.WORKER_COUNT", 4)
	v.SetDefault("OCR.LANGUAGES", "fra+eng+deu")
	v.SetDefault("OCR.DPI", 300)
	v.SetDefault("OCR.JOB_TIMEOUT_SECONDS", 60)
	v.SetDefault("OCR.DEFAULT_LOCALE", "fr-CH")
	v.SetDefault("OCR.CHAR_WHITELIST", "")
	v.SetDefault("OCR.PROGRESS_BUFFER", 256)
	v.SetDefault("CACHE.ENABLED", true)
	v.SetDefault("CACHE.TTL_SECONDS", 6*60*60)
	v.SetDefault("CACHE.KEY_PREFIX", "ocr:result:")
	v.SetDefault("CACHE.OPERATION_TIMEOUT_MS", 500)
	v.SetDefault("RATE_LIMIT.WINDOW_SECONDS", 60)
	v.SetDefault("RATE_LIMIT.MAX_REQUESTS", 30)
	v.SetDefault("ARCHIVE.ENABLED", false)
}

var envBindings = [][2]string{
	// Server config
	{"SERVER.ENVIRONMENT", "ENVIRONMENT"},
	{"SERVER.PORT", "PORT"},
	{"SERVER.ALLOWED_ORIGINS", "ALLOWED_ORIGINS"},
	{"SERVER.VERSION", "VERSION"},
	{"SERVER.MAX_UPLOAD_BYTES", "MAX_UPLOAD_BYTES"},
	{"SERVER.TRUSTED_PROXIES", "TRUSTED_PROXIES"},
	{"SERVER.REQUEST_TIMEOUT_SECONDS", "REQUEST_TIMEOUT_SECONDS"},
	{"SERVER.API_KEY", "API_KEY"},
	// Redis config
	{"REDIS.ADDRESS", "REDIS_ADDRESS"},
	{"REDIS.PASSWORD", "REDIS_PASSWORD"},
	{"REDIS.DB", "REDIS_DB"},
	{"REDIS.USE_TLS", "REDIS_USE_TLS"},
	{"REDIS.POOL_SIZE", "REDIS_POOL_SIZE"},
	{"REDIS.MIN_IDLE_CONNS", "REDIS_MIN_IDLE_CONNS"},
	// OCR worker pool
	{"OCR.WORKER_COUNT", "OCR_WORKER_COUNT"},
	{"OCR.LANGUAGES", "OCR_LANGUAGES"},
	{"OCR.DPI", "OCR_DPI"},
	{"OCR.JOB_TIMEOUT_SECONDS", "OCR_JOB_TIMEOUT_SECONDS"},
	{"OCR.DEFAULT_LOCALE", "OCR_DEFAULT_LOCALE"},
	{"OCR.CHAR_WHITELIST", "OCR_CHAR_WHITELIST"},
	{"OCR.PROGRESS_BUFFER", "OCR_PROGRESS_BUFFER"},
	// Cache
	{"CACHE.ENABLED", "CACHE_ENABLED"},
	{"CACHE.TTL_SECONDS", "CACHE_TTL_SECONDS"},
	{"CACHE.KEY_PREFIX", "CACHE_KEY_PREFIX"},
	{"CACHE.OPERATION_TIMEOUT_MS", "CACHE_OPERATION_TIMEOUT_MS"},
	// Rate limit config
	{"RATE_LIMIT.WINDOW_SECONDS", "RATE_LIMIT_WINDOW_SECONDS"},
	{"RATE_LIMIT.MAX_REQUESTS", "RATE_LIMIT_MAX_REQUESTS"},
	// Archive
	{"ARCHIVE.ENABLED", "ARCHIVE_ENABLED"},
	{"ARCHIVE.ACCOUNT_ID", "ARCHIVE_ACCOUNT_ID"},
	{"ARCHIVE.BUCKET", "ARCHIVE_BUCKET"},
	{"ARCHIVE.ACCESS_KEY_ID", "ARCHIVE_ACCESS_KEY_ID"},
	{"ARCHIVE.SECRET_ACCESS_KEY", "ARCHIVE_SECRET_ACCESS_KEY"},
	{"ARCHIVE.ENDPOINT", "ARCHIVE_ENDPOINT"},
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() (*Config, error) {
	return load(viper.New())
}

func load(v *viper.Viper) (*Config, error) {
	log := logger.GetLogger()

	setDefaults(v)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := bindEnvVars(v, envBindings); err != nil {
		return nil, err
	}

	log.Infow("Configuration loaded",
		"environment", v.GetString("SERVER.ENVIRONMENT"),
		"server_port", v.GetString("SERVER.PORT"),
		"redis_address", v.GetString("REDIS.ADDRESS"),
		"ocr_workers", v.GetInt("OCR.WORKER_COUNT"),
		"ocr_languages", v.GetString("OCR.LANGUAGES"),
		"cache_enabled", v.GetBool("CACHE.ENABLED"),
		"archive_enabled", v.GetBool("ARCHIVE.ENABLED"),
	)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config unmarshal failed: %w", err)
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	log.Info("Configuration validated successfully")
	return &cfg, nil
}

// validateConfig checks if the loaded configuration values are valid.
func validateConfig(cfg *Config) error {
	log := logger.GetLogger()

	if cfg.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if cfg.Server.MaxUploadBytes <= 0 {
		return fmt.Errorf("max upload bytes must be positive")
	}
	if cfg.Server.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("request timeout must be positive")
	}
	if !containsWildcard(cfg.Server.AllowedOrigins) {
		for _, origin := range cfg.Server.AllowedOrigins {
			if _, err := url.ParseRequestURI(origin); err != nil {
				return fmt.Errorf("invalid allowed origin '%s': %w", origin, err)
			}
		}
	}
	if cfg.Server.APIKey == "" {
		if cfg.IsProduction() {
			log.Warn("API_KEY is not set in production; /process is unauthenticated")
		}
	} else if len(cfg.Server.APIKey) < minKeyLen {
		return fmt.Errorf("API key must be at least %d characters long", minKeyLen)
	}

	if cfg.Redis.Address == "" {
		return fmt.Errorf("redis address is required")
	}
	if cfg.Redis.Password == "" && cfg.Redis.UseTLS {
		log.Warn("Redis password is not set, but TLS is enabled. Ensure this is correct for your Redis provider.")
	}

	if err := validateOCRConfig(&cfg.OCR); err != nil {
		return err
	}

	if cfg.Cache.Enabled {
		if cfg.Cache.TTLSeconds <= 0 {
			return fmt.Errorf("cache TTL must be positive")
		}
		if cfg.Cache.OperationTimeoutMs <= 0 {
			return fmt.Errorf("cache operation timeout must be positive")
		}
	}

	if cfg.RateLimit.WindowSeconds <= 0 {
		return fmt.Errorf("rate limit window seconds must be positive")
	}
	if cfg.RateLimit.MaxRequests <= 0 {
		return fmt.Errorf("rate limit max requests must be positive")
	}

	return validateArchiveConfig(&cfg.Archive)
}

func validateOCRConfig(cfg *OCRConfig) error {
	if cfg.WorkerCount <= 0 {
		return fmt.Errorf("ocr worker count must be positive")
	}
	langs := cfg.LanguageList()
	if len(langs) == 0 {
		return fmt.Errorf("at least one ocr language is required")
	}
	for _, l := range langs {
		if !languageCodePattern.MatchString(l) {
			return fmt.Errorf("invalid ocr language '%s'", l)
		}
	}
	if cfg.DPI < minDPI || cfg.DPI > maxDPI {
		return fmt.Errorf("ocr dpi must be between %d and %d", minDPI, maxDPI)
	}
	if cfg.JobTimeoutSeconds <= 0 {
		return fmt.Errorf("ocr job timeout must be positive")
	}
	if cfg.DefaultLocale == "" {
		return fmt.Errorf("ocr default locale is required")
	}
	if cfg.ProgressBuffer < 0 {
		return fmt.Errorf("ocr progress buffer must not be negative")
	}
	return nil
}

func validateArchiveConfig(cfg *ArchiveConfig) error {
	if !cfg.Enabled {
		return nil
	}
	if cfg.Bucket == "" {
		return fmt.Errorf("archive bucket is required when archiving is enabled")
	}
	if cfg.AccountID == "" && cfg.Endpoint == "" {
		return fmt.Errorf("archive account id or endpoint is required")
	}
	if cfg.Endpoint != "" {
		if _, err := url.ParseRequestURI(cfg.Endpoint); err != nil {
			return fmt.Errorf("invalid archive endpoint: %w", err)
		}
	}
	if (cfg.AccessKeyID == "") != (cfg.SecretAccessKey == "") {
		return fmt.Errorf("archive access key id and secret must be set together")
	}
	return nil
}

// containsWildcard checks if the list of allowed origins contains the wildcard "*".
func containsWildcard(origins []string) bool {
	for _, origin := range origins {
		if origin == "*" {
			return true
		}
	}
	return false
}
