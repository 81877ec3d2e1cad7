// Package config loads watcher settings from the environment, an optional
// .env file and an optional YAML file named by CONFIG_FILE.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"request-radar/common"
	"request-radar/internal/notify"
	"request-radar/internal/scheduler"
	"request-radar/internal/store"
)

// Configuration validation errors.
var (
	ErrMissingSessionCookie = errors.New("SESSION_COOKIE is required")
	ErrMissingUserAgent     = errors.New("USER_AGENT is required")
	ErrMissingMongoURI      = errors.New("MONGO_URI is required for the mongo store")
	ErrMissingPostgresDSN   = errors.New("PG_DSN is required for the postgres store")
	ErrMissingTelegramToken = errors.New("TELEGRAM_BOT_TOKEN is required unless NOTIFY_TELEGRAM=false")
	ErrMissingTelegramChat  = errors.New("TELEGRAM_CHAT_ID is required unless NOTIFY_TELEGRAM=false")
	ErrInvalidBaseURL       = errors.New("BASE_URL must be an absolute http(s) URL")
	ErrInvalidDelay         = errors.New("DETAIL_DELAY must be non-negative")
	ErrInvalidPreview       = errors.New("DESCRIPTION_PREVIEW must be at least 1")
	ErrInvalidRate          = errors.New("REQUEST_RPS must be non-negative")
)

// Defaults.
const (
	DefaultBaseURL          = "https://khamsat.com"
	DefaultListingPath      = "/community/requests"
	DefaultMongoDatabase    = "khamsat_requests"
	DefaultMongoCollection  = "projects_full"
	DefaultRedisAddr        = "localhost:6379"
	DefaultRedisPrefix      = "request:"
	DefaultSQLitePath       = "requests.sqlite"
	DefaultEventsTopic      = "request-radar.requests.new"
	DefaultMetricsAddr      = ":9090"
	DefaultDetailDelay      = 20 * time.Second
	DefaultStatusKeyPrefix  = "cycle:status:"
	DefaultStatusTTLSeconds = 7 * 24 * 60 * 60
)

// Config is the complete watcher configuration. It is built once at startup.
type Config struct {
	SessionCookie string
	UserAgent     string
	BaseURL       string
	ListingPath   string
	ProxyURL      string
	// RequestsPerSecond <= 0 disables the client-side limiter.
	RequestsPerSecond float64
	RespectRobots     bool

	Store store.Config

	NotifyTelegram     bool
	TelegramToken      string
	TelegramChatID     string
	DescriptionPreview int

	KafkaBroker      string
	KafkaEventsTopic string

	StatusRedisAddr string
	StatusKeyPrefix string
	StatusTTL       time.Duration

	Schedule    string
	DetailDelay time.Duration
	MetricsAddr string
}

// Load reads .env (if present), then CONFIG_FILE (if set), then the process
// environment, and validates the result. Environment values win over the file.
func Load() (Config, error) {
	cfg, err := FromEnv()
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// FromEnv gathers the same sources as Load without validating, for tools
// that need only part of the configuration.
func FromEnv() (Config, error) {
	_ = godotenv.Load()

	file, err := readFile(os.Getenv("CONFIG_FILE"))
	if err != nil {
		return Config{}, err
	}
	return fromSource(file.lookup), nil
}

// fileValues holds a flat YAML mapping whose keys are the lower-cased
// variable names, e.g. "detail_delay: 20s".
type fileValues map[string]string

func readFile(path string) (fileValues, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	values := fileValues{}
	if err := yaml.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return values, nil
}

func (f fileValues) lookup(key, fallback string) string {
	if v := common.GetEnv(key, ""); v != "" {
		return v
	}
	if v := strings.TrimSpace(f[strings.ToLower(key)]); v != "" {
		return v
	}
	return fallback
}

func fromSource(get func(key, fallback string) string) Config {
	return Config{
		SessionCookie:     get("SESSION_COOKIE", ""),
		UserAgent:         get("USER_AGENT", ""),
		BaseURL:           strings.TrimRight(get("BASE_URL", DefaultBaseURL), "/"),
		ListingPath:       get("LISTING_PATH", DefaultListingPath),
		ProxyURL:          get("PROXY_URL", ""),
		RequestsPerSecond: common.ParseFloat(get("REQUEST_RPS", ""), 0),
		RespectRobots:     common.ParseBool(get("RESPECT_ROBOTS_TXT", ""), false),

		Store: store.Config{
			Driver:          strings.ToLower(get("STORE_DRIVER", store.DriverMongo)),
			MongoURI:        get("MONGO_URI", ""),
			MongoDatabase:   get("MONGO_DB", DefaultMongoDatabase),
			MongoCollection: get("MONGO_COLLECTION", DefaultMongoCollection),
			RedisAddr:       get("REDIS_ADDR", DefaultRedisAddr),
			RedisPrefix:     get("REDIS_KEY_PREFIX", DefaultRedisPrefix),
			PostgresDSN:     get("PG_DSN", ""),
			PostgresSchema:  get("PG_SCHEMA", ""),
			SQLitePath:      get("SQLITE_PATH", DefaultSQLitePath),
		},

		NotifyTelegram:     common.ParseBool(get("NOTIFY_TELEGRAM", ""), true),
		TelegramToken:      get("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:     get("TELEGRAM_CHAT_ID", ""),
		DescriptionPreview: common.ParseInt(get("DESCRIPTION_PREVIEW", ""), notify.DefaultPreviewRunes),

		KafkaBroker:      get("KAFKA_BROKER", ""),
		KafkaEventsTopic: get("KAFKA_EVENTS_TOPIC", DefaultEventsTopic),

		StatusRedisAddr: get("STATUS_REDIS_ADDR", ""),
		StatusKeyPrefix: get("STATUS_KEY_PREFIX", DefaultStatusKeyPrefix),
		StatusTTL:       common.ParseDuration(get("STATUS_TTL", ""), DefaultStatusTTLSeconds*time.Second),

		Schedule:    get("CRON_SCHEDULE", scheduler.DefaultSchedule),
		DetailDelay: common.ParseDuration(get("DETAIL_DELAY", ""), DefaultDetailDelay),
		MetricsAddr: get("METRICS_ADDR", DefaultMetricsAddr),
	}
}

// Validate checks required values and ranges.
func (c Config) Validate() error {
	if c.SessionCookie == "" {
		return ErrMissingSessionCookie
	}
	if c.UserAgent == "" {
		return ErrMissingUserAgent
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrInvalidBaseURL
	}
	switch c.Store.Driver {
	case store.DriverMongo:
		if c.Store.MongoURI == "" {
			return ErrMissingMongoURI
		}
	case store.DriverPostgres:
		if c.Store.PostgresDSN == "" {
			return ErrMissingPostgresDSN
		}
	case store.DriverRedis, store.DriverSQLite, store.DriverMemory:
	default:
		return fmt.Errorf("%w: %q", store.ErrUnknownDriver, c.Store.Driver)
	}
	if c.NotifyTelegram {
		if c.TelegramToken == "" {
			return ErrMissingTelegramToken
		}
		if c.TelegramChatID == "" {
			return ErrMissingTelegramChat
		}
	}
	if c.DetailDelay < 0 {
		return ErrInvalidDelay
	}
	if c.DescriptionPreview < 1 {
		return ErrInvalidPreview
	}
	if c.RequestsPerSecond < 0 {
		return ErrInvalidRate
	}
	if _, err := scheduler.Parse(c.Schedule); err != nil {
		return err
	}
	return nil
}

// ListingURL is the absolute URL of the listing page.
func (c Config) ListingURL() string {
	path := c.ListingPath
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.BaseURL + path
}
