// Package config provides centralized configuration for the bookwish server.
// All values are read from environment variables with sensible defaults.
package config

import (
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all server configuration values.
type Config struct {
	// Port is the HTTP server listen port.
	Port string `env:"PORT" env-default:"8080"`
	// DBPath is the path to the SQLite database file.
	DBPath string `env:"DB_PATH" env-default:"wishlist.db"`
	// WishlistFile is the legacy flat-file wishlist; migrated and removed at
	// boot when present.
	WishlistFile string `env:"WISHLIST_FILE" env-default:""`

	// LogLevel is debug, info, warn or error.
	LogLevel string `env:"LOG_LEVEL" env-default:"info"`
	// LogPretty switches to the human-readable console encoder.
	LogPretty bool `env:"LOG_PRETTY" env-default:"false"`

	Spotweb struct {
		// BaseURL is the Spotweb instance root, without trailing slash.
		BaseURL string `env:"SPOTWEB_BASE_URL"`
		APIKey  string `env:"SPOTWEB_APIKEY"`
		// Category is the newznab category id to search (7020 = ebooks).
		Category string `env:"SPOTWEB_CAT" env-default:"7020"`
	}

	Sab struct {
		// BaseURL is the SABnzbd instance root, without trailing slash.
		BaseURL string `env:"SAB_BASE_URL"`
		APIKey  string `env:"SAB_APIKEY"`
		// Category is the SABnzbd category for new jobs.
		Category string `env:"SAB_CATEGORY" env-default:"books"`
	}

	Worker struct {
		// Interval between timer-driven search cycles.
		Interval time.Duration `env:"SEARCH_INTERVAL" env-default:"15m"`
		// BatchSize bounds how many pending items one cycle processes.
		BatchSize int `env:"SEARCH_BATCH_SIZE" env-default:"50"`
		// SearchTimeout bounds each Spotweb call.
		SearchTimeout time.Duration `env:"SEARCH_TIMEOUT" env-default:"30s"`
		// SubmitTimeout bounds each SABnzbd call.
		SubmitTimeout time.Duration `env:"SUBMIT_TIMEOUT" env-default:"30s"`
		// ItemPause is the delay between items within a cycle.
		ItemPause time.Duration `env:"ITEM_PAUSE" env-default:"2s"`
		// LogRetention keeps this many activity log entries; 0 disables trimming.
		LogRetention int `env:"LOG_RETENTION" env-default:"1000"`
	}

	Email struct {
		Server  string `env:"EMAIL_IMAP_SERVER" env-default:"imap.gmail.com"`
		Port    int    `env:"EMAIL_IMAP_PORT" env-default:"993"`
		Address string `env:"EMAIL_ADDRESS"`
		// Password is an app password, not the account password.
		Password string `env:"EMAIL_PASSWORD"`
		Folder   string `env:"EMAIL_INBOX_FOLDER" env-default:"INBOX"`
		// AllowedSenders is a comma-separated whitelist; empty allows everyone.
		AllowedSenders []string      `env:"EMAIL_ALLOWED_SENDERS"`
		Interval       time.Duration `env:"EMAIL_CHECK_INTERVAL" env-default:"5m"`
	}
}

// Load reads configuration from environment variables, applying defaults.
func Load() (Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
