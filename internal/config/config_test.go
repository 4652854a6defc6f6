package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "wishlist.db", cfg.DBPath)
	assert.Equal(t, "7020", cfg.Spotweb.Category)
	assert.Equal(t, "books", cfg.Sab.Category)
	assert.Equal(t, 15*time.Minute, cfg.Worker.Interval)
	assert.Equal(t, 50, cfg.Worker.BatchSize)
	assert.Equal(t, 30*time.Second, cfg.Worker.SearchTimeout)
	assert.Equal(t, 1000, cfg.Worker.LogRetention)
	assert.Equal(t, "INBOX", cfg.Email.Folder)
	assert.Equal(t, 993, cfg.Email.Port)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("SPOTWEB_BASE_URL", "http://spotweb.local")
	t.Setenv("SEARCH_INTERVAL", "5m")
	t.Setenv("SEARCH_BATCH_SIZE", "10")
	t.Setenv("EMAIL_ALLOWED_SENDERS", "jan@thuis.nl,piet@thuis.nl")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "http://spotweb.local", cfg.Spotweb.BaseURL)
	assert.Equal(t, 5*time.Minute, cfg.Worker.Interval)
	assert.Equal(t, 10, cfg.Worker.BatchSize)
	assert.Equal(t, []string{"jan@thuis.nl", "piet@thuis.nl"}, cfg.Email.AllowedSenders)
}
