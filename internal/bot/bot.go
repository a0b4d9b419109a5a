// Package bot drives the event loop: poll mentions, dedup, rate-limit,
// resolve a GIF, upload with fallback, wait for processing, reply.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"giffer/internal/booru"
	"giffer/internal/guard"
	"giffer/internal/mastodon"
	"giffer/internal/media"
	"giffer/internal/ratelimit"
	"giffer/internal/state"
)

// Feed is the notification/reply surface of the social instance.
type Feed interface {
	Notifications(ctx context.Context, sinceID int64) ([]mastodon.Notification, error)
	Media(ctx context.Context, id int64) (*mastodon.Attachment, error)
	PostStatus(ctx context.Context, p mastodon.StatusParams) (*mastodon.Status, error)
}

// Searcher resolves a query into a candidate asset.
type Searcher interface {
	Search(ctx context.Context, tags []string, nsfw bool) (*booru.Image, error)
}

// Uploader runs the media upload fallback chain to a terminal result.
type Uploader interface {
	Run(ctx context.Context, urls []string, description string) (*media.Result, error)
}

type Config struct {
	Name           string
	PollInterval   time.Duration
	RunOnce        bool
	CallTimeout    time.Duration
	SearchTimeout  time.Duration
	ProcessMaxWait time.Duration
	NSFWVisibility string
	SourceBaseURL  string
}

type Bot struct {
	cfg      Config
	feed     Feed
	searcher Searcher
	uploader Uploader
	store    state.Store
	cooldown *ratelimit.Cooldown
	bucket   *ratelimit.Bucket
	guard    *guard.Guard

	mu      sync.RWMutex
	running bool
	stopCh  chan struct{}
	errorCh chan error
}

func New(cfg Config, feed Feed, searcher Searcher, uploader Uploader, store state.Store, cooldown *ratelimit.Cooldown, bucket *ratelimit.Bucket, g *guard.Guard) *Bot {
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 30 * time.Second
	}
	if cfg.CallTimeout == 0 {
		cfg.CallTimeout = 25 * time.Second
	}
	if cfg.SearchTimeout == 0 {
		cfg.SearchTimeout = cfg.CallTimeout
	}
	if cfg.ProcessMaxWait == 0 {
		cfg.ProcessMaxWait = time.Minute
	}
	if cfg.NSFWVisibility == "" {
		cfg.NSFWVisibility = "public"
	}

	return &Bot{
		cfg:      cfg,
		feed:     feed,
		searcher: searcher,
		uploader: uploader,
		store:    store,
		cooldown: cooldown,
		bucket:   bucket,
		guard:    g,
		stopCh:   make(chan struct{}),
		errorCh:  make(chan error, 10),
	}
}

func (b *Bot) Start(ctx context.Context) error {
	b.mu.Lock()
	if b.running {
		b.mu.Unlock()
		return fmt.Errorf("bot already running")
	}
	b.running = true
	b.mu.Unlock()

	slog.Info("Starting bot", "name", b.cfg.Name, "cursor", b.store.Cursor(), "poll_interval", b.cfg.PollInterval)

	if b.cfg.RunOnce {
		return b.runOnceMode(ctx)
	}

	return b.runContinuousMode(ctx)
}

func (b *Bot) runOnceMode(ctx context.Context) error {
	defer b.markStopped()

	if err := b.processCycle(ctx); err != nil && err != context.Canceled {
		return fmt.Errorf("poll cycle failed: %w", err)
	}
	return nil
}

func (b *Bot) runContinuousMode(ctx context.Context) error {
	defer b.markStopped()

	ticker := time.NewTicker(b.cfg.PollInterval)
	defer ticker.Stop()

	b.reportCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-b.stopCh:
			return nil
		case <-ticker.C:
			b.reportCycle(ctx)
		}
	}
}

// reportCycle runs one poll cycle; a failed cycle is reported and the loop
// tries again on the next tick.
func (b *Bot) reportCycle(ctx context.Context) {
	if err := b.processCycle(ctx); err != nil && err != context.Canceled {
		slog.Error("Poll cycle failed", "error", err)
		select {
		case b.errorCh <- err:
		default:
		}
	}
}

func (b *Bot) Stop(ctx context.Context) error {
	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		return nil
	}
	b.mu.Unlock()

	close(b.stopCh)

	if err := b.store.Close(); err != nil {
		return fmt.Errorf("failed to close state store: %w", err)
	}
	return nil
}

func (b *Bot) IsRunning() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.running
}

func (b *Bot) Errors() <-chan error {
	return b.errorCh
}

func (b *Bot) markStopped() {
	b.mu.Lock()
	b.running = false
	b.mu.Unlock()
}
