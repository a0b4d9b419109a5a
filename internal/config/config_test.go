package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

const minimalConfig = `
[mastodon]
base_url = "https://example.social/"
access_token = "token"

[booru]
base_url = "https://booru.example"
`

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	require.Equal(t, "giffer", cfg.Bot.Name)
	require.Equal(t, 30*time.Second, cfg.Bot.PollIntervalDuration())
	require.Equal(t, "info", cfg.Bot.LogLevel)

	// Trailing slashes are stripped so URL joining stays simple.
	require.Equal(t, "https://example.social", cfg.Mastodon.BaseURL)
	require.Equal(t, 25*time.Second, cfg.Mastodon.CallTimeoutDuration())
	require.Equal(t, "public", cfg.Mastodon.NSFWVisibility)

	require.Equal(t, 20*time.Second, cfg.Limits.UserCooldownDuration())
	require.Equal(t, 1.0, cfg.Limits.GlobalRatePerSec)
	require.Equal(t, 3, cfg.Limits.GlobalBurst)
	require.Equal(t, 800, cfg.Limits.ProcessedCacheMax)

	require.Equal(t, int64(25*1024*1024), cfg.Media.MaxBytes)
	require.Equal(t, 40*time.Second, cfg.Media.DownloadTimeoutDuration())
	require.Equal(t, time.Minute, cfg.Media.ProcessMaxWaitDuration())

	require.Equal(t, "json", cfg.Storage.Type)
	require.Equal(t, "./giffer_state.json", cfg.Storage.Path)
}

func TestLoadExplicitValues(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
[bot]
name = "gif-replier"
poll_interval = "10s"
run_once = true
log_level = "debug"

[mastodon]
base_url = "https://example.social"
access_token = "token"
nsfw_visibility = "unlisted"

[booru]
base_url = "https://booru.example"
safe_filter_id = "100073"
nsfw_filter_id = "56027"

[limits]
user_cooldown = "5s"
global_rate_per_sec = 2.5
global_burst = 5

[storage]
type = "sqlite"
path = "/tmp/giffer.db"
`))
	require.NoError(t, err)

	require.Equal(t, "gif-replier", cfg.Bot.Name)
	require.True(t, cfg.Bot.RunOnce)
	require.Equal(t, 10*time.Second, cfg.Bot.PollIntervalDuration())
	require.Equal(t, "unlisted", cfg.Mastodon.NSFWVisibility)
	require.Equal(t, "100073", cfg.Booru.SafeFilterID)
	require.Equal(t, 2.5, cfg.Limits.GlobalRatePerSec)
	require.Equal(t, "sqlite", cfg.Storage.Type)
}

func TestLoadRequiresCredentials(t *testing.T) {
	_, err := Load(writeConfig(t, `
[booru]
base_url = "https://booru.example"
`))
	require.ErrorContains(t, err, "mastodon.base_url is required")

	_, err = Load(writeConfig(t, `
[mastodon]
base_url = "https://example.social"

[booru]
base_url = "https://booru.example"
`))
	require.ErrorContains(t, err, "access_token")
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("MASTODON_ACCESS_TOKEN", "env-token")
	t.Setenv("BOORU_API_KEY", "env-key")

	cfg, err := Load(writeConfig(t, `
[mastodon]
base_url = "https://example.social"
access_token = "file-token"

[booru]
base_url = "https://booru.example"
`))
	require.NoError(t, err)
	require.Equal(t, "env-token", cfg.Mastodon.AccessToken)
	require.Equal(t, "env-key", cfg.Booru.APIKey)
}

func TestLoadRejectsBadDuration(t *testing.T) {
	_, err := Load(writeConfig(t, minimalConfig+`
[bot]
poll_interval = "soon"
`))
	require.ErrorContains(t, err, "poll_interval")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.Error(t, err)
}
