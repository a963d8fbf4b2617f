package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("valid config", func(t *testing.T) {
		configContent := `
webhook: https://discord.com/api/webhooks/123/token
database: /var/lib/feedhook/news.json
username: News Bot
avatar_url: https://example.com/bot.png
timeout: 45s
user_agent: custom-agent/2.0

feeds:
  - https://example.com/feed1.xml
  - url: https://example.com/feed2.xml
    username: Feed2 Bot
    include_summary: false
`
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "test-config.yml")
		err := os.WriteFile(configPath, []byte(configContent), 0o644)
		require.NoError(t, err)

		cfg, err := Load(configPath)
		require.NoError(t, err)
		require.NotNil(t, cfg)

		assert.Equal(t, "https://discord.com/api/webhooks/123/token", cfg.Webhook)
		assert.Equal(t, "/var/lib/feedhook/news.json", cfg.Database)
		assert.Equal(t, "News Bot", cfg.Username)
		assert.Equal(t, "https://example.com/bot.png", cfg.AvatarURL)
		assert.Equal(t, 45*time.Second, cfg.Timeout)
		assert.Equal(t, "custom-agent/2.0", cfg.UserAgent)

		require.Len(t, cfg.Feeds, 2)
		assert.Equal(t, "https://example.com/feed1.xml", cfg.Feeds[0].URL)
		assert.Empty(t, cfg.Feeds[0].Username)

		assert.Equal(t, "https://example.com/feed2.xml", cfg.Feeds[1].URL)
		assert.Equal(t, "Feed2 Bot", cfg.Feeds[1].Username)
		require.NotNil(t, cfg.Feeds[1].IncludeSummary)
		assert.False(t, *cfg.Feeds[1].IncludeSummary)
	})

	t.Run("defaults", func(t *testing.T) {
		configContent := `
webhook: https://hooks.example.com/abc

feeds:
  - https://example.com/feed.xml
`
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "test-config.yml")
		err := os.WriteFile(configPath, []byte(configContent), 0o644)
		require.NoError(t, err)

		cfg, err := Load(configPath)
		require.NoError(t, err)
		require.NotNil(t, cfg)

		assert.Equal(t, 30*time.Second, cfg.Timeout)
		assert.Equal(t, "feedhook/1.0", cfg.UserAgent)
		assert.Empty(t, cfg.Database) // optional, run is stateless without it
		assert.Nil(t, cfg.IncludeSummary)
		assert.Nil(t, cfg.IncludeImage)
	})

	t.Run("env expansion", func(t *testing.T) {
		t.Setenv("FEEDHOOK_TOKEN", "s3cr3t")
		configContent := `
webhook: https://discord.com/api/webhooks/123/$FEEDHOOK_TOKEN

feeds:
  - https://example.com/feed.xml
`
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "test-config.yml")
		err := os.WriteFile(configPath, []byte(configContent), 0o644)
		require.NoError(t, err)

		cfg, err := Load(configPath)
		require.NoError(t, err)
		assert.Equal(t, "https://discord.com/api/webhooks/123/s3cr3t", cfg.Webhook)
	})

	t.Run("file not found", func(t *testing.T) {
		cfg, err := Load("/non/existent/file.yml")
		require.Error(t, err)
		assert.Nil(t, cfg)
		assert.Contains(t, err.Error(), "read config file")
	})

	t.Run("invalid yaml", func(t *testing.T) {
		configContent := `
invalid yaml content
  with bad indentation
    and no structure
`
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "invalid.yml")
		err := os.WriteFile(configPath, []byte(configContent), 0o644)
		require.NoError(t, err)

		cfg, err := Load(configPath)
		require.Error(t, err)
		assert.Nil(t, cfg)
		assert.Contains(t, err.Error(), "parse config")
	})

	t.Run("missing webhook", func(t *testing.T) {
		configContent := `
feeds:
  - https://example.com/feed.xml
`
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "no-webhook.yml")
		err := os.WriteFile(configPath, []byte(configContent), 0o644)
		require.NoError(t, err)

		cfg, err := Load(configPath)
		require.Error(t, err)
		assert.Nil(t, cfg)
		assert.Contains(t, err.Error(), "webhook is required")
	})

	t.Run("webhook not http", func(t *testing.T) {
		configContent := `
webhook: ftp://example.com/hook

feeds:
  - https://example.com/feed.xml
`
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "bad-webhook.yml")
		err := os.WriteFile(configPath, []byte(configContent), 0o644)
		require.NoError(t, err)

		_, err = Load(configPath)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid URL")
	})

	t.Run("no feeds", func(t *testing.T) {
		configContent := `
webhook: https://hooks.example.com/abc
`
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "no-feeds.yml")
		err := os.WriteFile(configPath, []byte(configContent), 0o644)
		require.NoError(t, err)

		_, err = Load(configPath)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "at least one feed is required")
	})

	t.Run("bad feed url", func(t *testing.T) {
		configContent := `
webhook: https://hooks.example.com/abc

feeds:
  - https://example.com/good.xml
  - not-a-url
`
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "bad-feed.yml")
		err := os.WriteFile(configPath, []byte(configContent), 0o644)
		require.NoError(t, err)

		_, err = Load(configPath)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "feeds[1]")
	})

	t.Run("timeout too small", func(t *testing.T) {
		configContent := `
webhook: https://hooks.example.com/abc
timeout: 100ms

feeds:
  - https://example.com/feed.xml
`
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "small-timeout.yml")
		err := os.WriteFile(configPath, []byte(configContent), 0o644)
		require.NoError(t, err)

		_, err = Load(configPath)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "timeout must be at least 1 second")
	})
}

func TestConfig_FeedList(t *testing.T) {
	boolPtr := func(v bool) *bool { return &v }

	t.Run("group defaults applied", func(t *testing.T) {
		cfg := &Config{
			Webhook:   "https://hooks.example.com/abc",
			Username:  "Group Bot",
			AvatarURL: "https://example.com/group.png",
			Feeds: []FeedSpec{
				{URL: "https://example.com/feed1.xml"},
				{URL: "https://example.com/feed2.xml"},
			},
		}

		feeds := cfg.FeedList()
		require.Len(t, feeds, 2)
		for _, feed := range feeds {
			assert.Equal(t, "Group Bot", feed.Name)
			assert.Equal(t, "https://example.com/group.png", feed.Avatar)
			assert.True(t, feed.IncludeSummary)
			assert.True(t, feed.IncludeImage)
		}
		assert.Equal(t, "https://example.com/feed1.xml", feeds[0].URL)
		assert.Equal(t, "https://example.com/feed2.xml", feeds[1].URL)
	})

	t.Run("feed overrides win", func(t *testing.T) {
		cfg := &Config{
			Webhook:        "https://hooks.example.com/abc",
			Username:       "Group Bot",
			AvatarURL:      "https://example.com/group.png",
			IncludeSummary: boolPtr(true),
			IncludeImage:   boolPtr(true),
			Feeds: []FeedSpec{
				{
					URL:            "https://example.com/feed.xml",
					Username:       "Feed Bot",
					AvatarURL:      "https://example.com/feed.png",
					IncludeSummary: boolPtr(false),
					IncludeImage:   boolPtr(false),
				},
			},
		}

		feeds := cfg.FeedList()
		require.Len(t, feeds, 1)
		assert.Equal(t, "Feed Bot", feeds[0].Name)
		assert.Equal(t, "https://example.com/feed.png", feeds[0].Avatar)
		assert.False(t, feeds[0].IncludeSummary)
		assert.False(t, feeds[0].IncludeImage)
	})

	t.Run("group disables summary for all feeds", func(t *testing.T) {
		cfg := &Config{
			Webhook:        "https://hooks.example.com/abc",
			IncludeSummary: boolPtr(false),
			Feeds: []FeedSpec{
				{URL: "https://example.com/feed1.xml"},
				{URL: "https://example.com/feed2.xml", IncludeSummary: boolPtr(true)},
			},
		}

		feeds := cfg.FeedList()
		require.Len(t, feeds, 2)
		assert.False(t, feeds[0].IncludeSummary)
		assert.True(t, feeds[1].IncludeSummary) // explicit feed override beats group
		assert.True(t, feeds[0].IncludeImage)
	})
}
