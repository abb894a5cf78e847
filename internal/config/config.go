package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

const ConfigPathEnvVar = "CONFIG_PATH"

var DefaultConfigPaths = []string{"config.yaml", "config.yml"}

type Config struct {
	Server         ServerConfig         `koanf:"server"`
	Sources        SourcesConfig        `koanf:"sources"`
	Storage        StorageConfig        `koanf:"storage"`
	Redis          RedisConfig          `koanf:"redis"`
	Recommendation RecommendationConfig `koanf:"recommendation"`
	Session        SessionConfig        `koanf:"session"`
	Log            LogConfig            `koanf:"log"`
}

type ServerConfig struct {
	Port          string `koanf:"port"`
	AllowedOrigin string `koanf:"allowed_origin"`
	// TrustProxy reads client addresses from X-Forwarded-For / X-Real-IP.
	TrustProxy bool `koanf:"trust_proxy"`
}

type SourcesConfig struct {
	Catalog        string `koanf:"catalog"`
	Rules          string `koanf:"rules"`
	TimeoutSeconds int    `koanf:"timeout_seconds"`
}

type StorageConfig struct {
	// Backend is one of memory, redis, badger, postgres.
	Backend      string `koanf:"backend"`
	BadgerDir    string `koanf:"badger_dir"`
	DatabaseURL  string `koanf:"database_url"`
	CartTTLHours int    `koanf:"cart_ttl_hours"`
}

type RedisConfig struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

type RecommendationConfig struct {
	CacheTTLSeconds int `koanf:"cache_ttl_seconds"`
	Limit           int `koanf:"limit"`
}

type SessionConfig struct {
	Secret   string `koanf:"secret"`
	TTLHours int    `koanf:"ttl_hours"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

var validBackends = map[string]bool{"memory": true, "redis": true, "badger": true, "postgres": true}

// envKeys maps supported environment variables to config paths.
var envKeys = map[string]string{
	"PORT":                       "server.port",
	"ALLOWED_ORIGIN":             "server.allowed_origin",
	"TRUST_PROXY":                "server.trust_proxy",
	"CATALOG_SOURCE":             "sources.catalog",
	"RULES_SOURCE":               "sources.rules",
	"SOURCE_TIMEOUT_SECONDS":     "sources.timeout_seconds",
	"STORAGE_BACKEND":            "storage.backend",
	"BADGER_DIR":                 "storage.badger_dir",
	"DATABASE_URL":               "storage.database_url",
	"CART_TTL_HOURS":             "storage.cart_ttl_hours",
	"REDIS_ADDR":                 "redis.addr",
	"REDIS_PASSWORD":             "redis.password",
	"REDIS_DB":                   "redis.db",
	"RECOMMENDATION_TTL_SECONDS": "recommendation.cache_ttl_seconds",
	"RECOMMENDATION_LIMIT":       "recommendation.limit",
	"SESSION_SECRET":             "session.secret",
	"SESSION_TTL_HOURS":          "session.ttl_hours",
	"LOG_LEVEL":                  "log.level",
	"LOG_FORMAT":                 "log.format",
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:          "8080",
			AllowedOrigin: "http://127.0.0.1:3000",
		},
		Sources: SourcesConfig{
			Catalog:        "data/products_with_price.csv",
			Rules:          "data/recommendation_rules.json",
			TimeoutSeconds: 15,
		},
		Storage: StorageConfig{
			Backend:      "memory",
			BadgerDir:    "data/carts",
			CartTTLHours: 72,
		},
		Recommendation: RecommendationConfig{
			CacheTTLSeconds: 20,
			Limit:           6,
		},
		Session: SessionConfig{
			TTLHours: 72,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load layers built-in defaults, an optional YAML file and environment
// variables, in that order of precedence (env wins).
func Load() (Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return Config{}, fmt.Errorf("load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransform), nil); err != nil {
		return Config{}, fmt.Errorf("load environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.normalize()
	return cfg, nil
}

func envTransform(key string) string {
	return envKeys[key]
}

func findConfigFile() string {
	if path := os.Getenv(ConfigPathEnvVar); path != "" {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

func (c *Config) normalize() {
	c.Storage.Backend = strings.ToLower(strings.TrimSpace(c.Storage.Backend))
	if c.Storage.Backend == "" {
		c.Storage.Backend = "memory"
	}
	c.Session.Secret = strings.TrimSpace(c.Session.Secret)
	if c.Sources.TimeoutSeconds < 1 {
		c.Sources.TimeoutSeconds = 15
	}
	if c.Recommendation.CacheTTLSeconds < 1 {
		c.Recommendation.CacheTTLSeconds = 20
	}
	if c.Recommendation.Limit < 1 {
		c.Recommendation.Limit = 6
	}
	if c.Session.TTLHours < 1 {
		c.Session.TTLHours = 72
	}
	if c.Storage.CartTTLHours < 0 {
		c.Storage.CartTTLHours = 0
	}
}

func (c Config) Validate() error {
	var errs []error
	if len(c.Session.Secret) < 32 {
		errs = append(errs, errors.New("SESSION_SECRET must be set and at least 32 characters"))
	}
	if !validBackends[c.Storage.Backend] {
		errs = append(errs, fmt.Errorf("unknown storage backend %q", c.Storage.Backend))
	}
	if c.Storage.Backend == "redis" && c.Redis.Addr == "" {
		errs = append(errs, errors.New("REDIS_ADDR is required for the redis storage backend"))
	}
	if c.Storage.Backend == "postgres" && c.Storage.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required for the postgres storage backend"))
	}
	if strings.TrimSpace(c.Sources.Catalog) == "" || strings.TrimSpace(c.Sources.Rules) == "" {
		errs = append(errs, errors.New("catalog and rule sources must be set"))
	}
	return errors.Join(errs...)
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Server.Port)
}

func (c Config) SourceTimeout() time.Duration {
	return time.Duration(c.Sources.TimeoutSeconds) * time.Second
}

func (c Config) RecommendationTTL() time.Duration {
	return time.Duration(c.Recommendation.CacheTTLSeconds) * time.Second
}

func (c Config) SessionTTL() time.Duration {
	return time.Duration(c.Session.TTLHours) * time.Hour
}

func (c Config) CartTTL() time.Duration {
	return time.Duration(c.Storage.CartTTLHours) * time.Hour
}
