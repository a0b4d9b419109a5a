package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Bot      BotConfig      `toml:"bot"`
	Mastodon MastodonConfig `toml:"mastodon"`
	Booru    BooruConfig    `toml:"booru"`
	Limits   LimitsConfig   `toml:"limits"`
	Media    MediaConfig    `toml:"media"`
	Storage  StorageConfig  `toml:"storage"`
}

type BotConfig struct {
	Name         string `toml:"name"`
	PollInterval string `toml:"poll_interval"`
	RunOnce      bool   `toml:"run_once"`
	LogLevel     string `toml:"log_level"`
}

type MastodonConfig struct {
	BaseURL        string `toml:"base_url"`
	AccessToken    string `toml:"access_token"`
	UserAgent      string `toml:"user_agent"`
	CallTimeout    string `toml:"call_timeout"`
	NSFWVisibility string `toml:"nsfw_visibility"`
}

type BooruConfig struct {
	BaseURL      string `toml:"base_url"`
	APIKey       string `toml:"api_key"`
	SafeFilterID string `toml:"safe_filter_id"`
	NSFWFilterID string `toml:"nsfw_filter_id"`
}

type LimitsConfig struct {
	UserCooldown      string  `toml:"user_cooldown"`
	GlobalRatePerSec  float64 `toml:"global_rate_per_sec"`
	GlobalBurst       int     `toml:"global_burst"`
	ProcessedCacheMax int     `toml:"processed_cache_max"`
}

type MediaConfig struct {
	MaxBytes        int64  `toml:"max_bytes"`
	DownloadTimeout string `toml:"download_timeout"`
	ProcessMaxWait  string `toml:"process_max_wait"`
	FFmpegPath      string `toml:"ffmpeg_path"`
}

type StorageConfig struct {
	Type string `toml:"type"`
	Path string `toml:"path"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyEnvOverrides(&config)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

// applyEnvOverrides lets secrets live outside the config file. A config.env
// loaded via godotenv in main lands here as well.
func applyEnvOverrides(config *Config) {
	if v := os.Getenv("MASTODON_ACCESS_TOKEN"); v != "" {
		config.Mastodon.AccessToken = v
	}
	if v := os.Getenv("MASTODON_BASE_URL"); v != "" {
		config.Mastodon.BaseURL = v
	}
	if v := os.Getenv("BOORU_API_KEY"); v != "" {
		config.Booru.APIKey = v
	}
}

func validateConfig(config *Config) error {
	if config.Bot.Name == "" {
		config.Bot.Name = "giffer"
	}

	if config.Bot.PollInterval == "" {
		config.Bot.PollInterval = "30s"
	}

	if _, err := time.ParseDuration(config.Bot.PollInterval); err != nil {
		return fmt.Errorf("invalid poll_interval: %w", err)
	}

	if config.Bot.LogLevel == "" {
		config.Bot.LogLevel = "info"
	}

	if config.Mastodon.BaseURL == "" {
		return fmt.Errorf("mastodon.base_url is required")
	}
	config.Mastodon.BaseURL = strings.TrimRight(config.Mastodon.BaseURL, "/")

	if config.Mastodon.AccessToken == "" {
		return fmt.Errorf("mastodon.access_token is required (config file or MASTODON_ACCESS_TOKEN)")
	}

	if config.Mastodon.UserAgent == "" {
		config.Mastodon.UserAgent = "giffer-bot/1.0"
	}

	if config.Mastodon.CallTimeout == "" {
		config.Mastodon.CallTimeout = "25s"
	}

	if _, err := time.ParseDuration(config.Mastodon.CallTimeout); err != nil {
		return fmt.Errorf("invalid call_timeout: %w", err)
	}

	if config.Mastodon.NSFWVisibility == "" {
		config.Mastodon.NSFWVisibility = "public"
	}

	if config.Booru.BaseURL == "" {
		return fmt.Errorf("booru.base_url is required")
	}
	config.Booru.BaseURL = strings.TrimRight(config.Booru.BaseURL, "/")

	if config.Limits.UserCooldown == "" {
		config.Limits.UserCooldown = "20s"
	}

	if _, err := time.ParseDuration(config.Limits.UserCooldown); err != nil {
		return fmt.Errorf("invalid user_cooldown: %w", err)
	}

	if config.Limits.GlobalRatePerSec <= 0 {
		config.Limits.GlobalRatePerSec = 1.0
	}

	if config.Limits.GlobalBurst <= 0 {
		config.Limits.GlobalBurst = 3
	}

	if config.Limits.ProcessedCacheMax <= 0 {
		config.Limits.ProcessedCacheMax = 800
	}

	if config.Media.MaxBytes <= 0 {
		config.Media.MaxBytes = 25 * 1024 * 1024
	}

	if config.Media.DownloadTimeout == "" {
		config.Media.DownloadTimeout = "40s"
	}

	if _, err := time.ParseDuration(config.Media.DownloadTimeout); err != nil {
		return fmt.Errorf("invalid download_timeout: %w", err)
	}

	if config.Media.ProcessMaxWait == "" {
		config.Media.ProcessMaxWait = "60s"
	}

	if _, err := time.ParseDuration(config.Media.ProcessMaxWait); err != nil {
		return fmt.Errorf("invalid process_max_wait: %w", err)
	}

	if config.Storage.Type == "" {
		config.Storage.Type = "json"
	}

	if config.Storage.Path == "" {
		config.Storage.Path = "./giffer_state.json"
	}

	return nil
}

func (c *BotConfig) PollIntervalDuration() time.Duration {
	d, _ := time.ParseDuration(c.PollInterval)
	return d
}

func (c *MastodonConfig) CallTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.CallTimeout)
	return d
}

func (c *LimitsConfig) UserCooldownDuration() time.Duration {
	d, _ := time.ParseDuration(c.UserCooldown)
	return d
}

func (c *MediaConfig) DownloadTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.DownloadTimeout)
	return d
}

func (c *MediaConfig) ProcessMaxWaitDuration() time.Duration {
	d, _ := time.ParseDuration(c.ProcessMaxWait)
	return d
}
