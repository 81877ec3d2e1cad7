package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"request-radar/internal/store"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("SESSION_COOKIE", "session=abc")
	t.Setenv("USER_AGENT", "Mozilla/5.0")
	t.Setenv("MONGO_URI", "mongodb://localhost:27017")
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:token")
	t.Setenv("TELEGRAM_CHAT_ID", "@requests")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Store.Driver != store.DriverMongo {
		t.Fatalf("expected mongo driver, got %q", cfg.Store.Driver)
	}
	if cfg.Store.MongoDatabase != DefaultMongoDatabase || cfg.Store.MongoCollection != DefaultMongoCollection {
		t.Fatalf("unexpected mongo names %+v", cfg.Store)
	}
	if cfg.DetailDelay != 20*time.Second {
		t.Fatalf("expected 20s delay, got %s", cfg.DetailDelay)
	}
	if cfg.Schedule != "*/20 * * * *" {
		t.Fatalf("unexpected schedule %q", cfg.Schedule)
	}
	if cfg.ListingURL() != "https://khamsat.com/community/requests" {
		t.Fatalf("unexpected listing url %q", cfg.ListingURL())
	}
	if !cfg.NotifyTelegram || cfg.DescriptionPreview != 300 {
		t.Fatalf("unexpected notify settings %+v", cfg)
	}
	if cfg.KafkaBroker != "" || cfg.KafkaEventsTopic != DefaultEventsTopic {
		t.Fatalf("unexpected kafka settings %q %q", cfg.KafkaBroker, cfg.KafkaEventsTopic)
	}
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("STORE_DRIVER", "SQLite")
	t.Setenv("SQLITE_PATH", "/tmp/r.sqlite")
	t.Setenv("DETAIL_DELAY", "5")
	t.Setenv("CRON_SCHEDULE", "@every 1m")
	t.Setenv("BASE_URL", "http://localhost:8080/")
	t.Setenv("LISTING_PATH", "requests")
	t.Setenv("REQUEST_RPS", "0.5")
	t.Setenv("RESPECT_ROBOTS_TXT", "yes")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Store.Driver != store.DriverSQLite || cfg.Store.SQLitePath != "/tmp/r.sqlite" {
		t.Fatalf("unexpected store %+v", cfg.Store)
	}
	if cfg.DetailDelay != 5*time.Second {
		t.Fatalf("expected bare integer as seconds, got %s", cfg.DetailDelay)
	}
	if cfg.ListingURL() != "http://localhost:8080/requests" {
		t.Fatalf("unexpected listing url %q", cfg.ListingURL())
	}
	if cfg.RequestsPerSecond != 0.5 || !cfg.RespectRobots {
		t.Fatalf("unexpected fetch settings %+v", cfg)
	}
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want error
	}{
		{name: "missing cookie", env: map[string]string{"SESSION_COOKIE": ""}, want: ErrMissingSessionCookie},
		{name: "missing user agent", env: map[string]string{"USER_AGENT": ""}, want: ErrMissingUserAgent},
		{name: "missing mongo uri", env: map[string]string{"MONGO_URI": ""}, want: ErrMissingMongoURI},
		{name: "missing pg dsn", env: map[string]string{"STORE_DRIVER": "postgres"}, want: ErrMissingPostgresDSN},
		{name: "unknown driver", env: map[string]string{"STORE_DRIVER": "cassandra"}, want: store.ErrUnknownDriver},
		{name: "missing token", env: map[string]string{"TELEGRAM_BOT_TOKEN": ""}, want: ErrMissingTelegramToken},
		{name: "missing chat", env: map[string]string{"TELEGRAM_CHAT_ID": ""}, want: ErrMissingTelegramChat},
		{name: "relative base url", env: map[string]string{"BASE_URL": "khamsat.com"}, want: ErrInvalidBaseURL},
		{name: "negative delay", env: map[string]string{"DETAIL_DELAY": "-1s"}, want: ErrInvalidDelay},
		{name: "zero preview", env: map[string]string{"DESCRIPTION_PREVIEW": "0"}, want: ErrInvalidPreview},
		{name: "negative rate", env: map[string]string{"REQUEST_RPS": "-2"}, want: ErrInvalidRate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequired(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := Load(); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestLoadInvalidSchedule(t *testing.T) {
	setRequired(t)
	t.Setenv("CRON_SCHEDULE", "every twenty minutes")
	if _, err := Load(); err == nil {
		t.Fatalf("expected schedule error")
	}
}

func TestTelegramOptional(t *testing.T) {
	setRequired(t)
	t.Setenv("NOTIFY_TELEGRAM", "false")
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	t.Setenv("TELEGRAM_CHAT_ID", "")
	t.Setenv("STORE_DRIVER", "memory")
	if _, err := Load(); err != nil {
		t.Fatalf("load: %v", err)
	}
}

func TestLoadFromFileWithEnvPrecedence(t *testing.T) {
	setRequired(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "watcher.yaml")
	content := "store_driver: redis\nredis_addr: redis:6379\ndetail_delay: 30s\ndescription_preview: 120\nrespect_robots_txt: true\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("DETAIL_DELAY", "10s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Store.Driver != store.DriverRedis || cfg.Store.RedisAddr != "redis:6379" {
		t.Fatalf("unexpected store %+v", cfg.Store)
	}
	if cfg.DetailDelay != 10*time.Second {
		t.Fatalf("environment should win over file, got %s", cfg.DetailDelay)
	}
	if cfg.DescriptionPreview != 120 || !cfg.RespectRobots {
		t.Fatalf("unexpected file values %+v", cfg)
	}
}

func TestLoadMissingFile(t *testing.T) {
	setRequired(t)
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}

func TestFromEnvSkipsValidation(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("SESSION_COOKIE", "")
	t.Setenv("STORE_DRIVER", "sqlite")
	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("from env: %v", err)
	}
	if cfg.Store.Driver != store.DriverSQLite {
		t.Fatalf("unexpected driver %q", cfg.Store.Driver)
	}
	if err := cfg.Validate(); !errors.Is(err, ErrMissingSessionCookie) {
		t.Fatalf("expected validation to fail, got %v", err)
	}
}
