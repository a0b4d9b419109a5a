// Package boot wires configuration into a runnable bot.
package boot

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"giffer/internal/bot"
	"giffer/internal/booru"
	"giffer/internal/config"
	"giffer/internal/guard"
	"giffer/internal/mastodon"
	"giffer/internal/media"
	"giffer/internal/ratelimit"
	"giffer/internal/state"
)

const guardWorkers = 4

func Build(cfg *config.Config, apiClient *http.Client) (*bot.Bot, error) {
	store, err := state.New(cfg.Storage, cfg.Limits.ProcessedCacheMax)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize state store: %w", err)
	}

	g := guard.New(guardWorkers)
	cooldown := ratelimit.NewCooldown(cfg.Limits.UserCooldownDuration())
	bucket := ratelimit.NewBucket(cfg.Limits.GlobalRatePerSec, cfg.Limits.GlobalBurst)

	callTimeout := cfg.Mastodon.CallTimeoutDuration()

	feed := mastodon.NewClient(cfg.Mastodon.BaseURL, cfg.Mastodon.AccessToken, cfg.Mastodon.UserAgent, apiClient)
	searcher := booru.NewClient(cfg.Booru.BaseURL, cfg.Booru.APIKey, cfg.Booru.SafeFilterID, cfg.Booru.NSFWFilterID, cfg.Mastodon.UserAgent, apiClient)

	downloader := media.NewDownloader(
		&http.Client{Timeout: cfg.Media.DownloadTimeoutDuration()},
		cfg.Media.MaxBytes,
		cfg.Mastodon.UserAgent,
	)
	transcoder := media.NewFFmpeg(cfg.Media.FFmpegPath)

	// Uploads go through the guard so a hung upload resolves to an unknown
	// outcome instead of stalling the loop.
	upload := func(ctx context.Context, data []byte, mimeType, description string) (int64, error) {
		res := guard.Run(g, callTimeout, "mastodon.media_post("+mimeType+")", func() (int64, error) {
			return feed.UploadMedia(ctx, data, mimeType, description)
		})
		if !res.Succeeded() {
			return 0, res.Err
		}
		return res.Value, nil
	}

	uploader := media.NewFallback(downloader, transcoder, upload, mastodon.IsUnsupportedMedia)

	return bot.New(bot.Config{
		Name:         cfg.Bot.Name,
		PollInterval: cfg.Bot.PollIntervalDuration(),
		RunOnce:      cfg.Bot.RunOnce,
		CallTimeout:  callTimeout,
		// The search retry budget can outlast a single call timeout when
		// the backend keeps answering 429, so its guard gets headroom.
		SearchTimeout:  callTimeout + 10*time.Second,
		ProcessMaxWait: cfg.Media.ProcessMaxWaitDuration(),
		NSFWVisibility: cfg.Mastodon.NSFWVisibility,
		SourceBaseURL:  cfg.Booru.BaseURL,
	}, feed, searcher, uploader, store, cooldown, bucket, g), nil
}
