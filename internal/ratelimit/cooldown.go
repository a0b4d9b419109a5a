// Package ratelimit gates remote side effects: a per-actor cooldown window
// and a blocking global token bucket shared by every actor.
package ratelimit

import (
	"log/slog"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Cooldown denies repeat requests from the same actor inside a fixed window.
// Entries expire with the window, so the actor map cannot grow without bound.
type Cooldown struct {
	window  time.Duration
	entries *gocache.Cache
}

func NewCooldown(window time.Duration) *Cooldown {
	return &Cooldown{
		window:  window,
		entries: gocache.New(window, window/2),
	}
}

// Allow reports whether the actor may act now. Allowing arms the window in
// the same step; there is no separate commit.
func (c *Cooldown) Allow(actor string) bool {
	if err := c.entries.Add(actor, time.Now(), gocache.DefaultExpiration); err != nil {
		if _, expires, ok := c.entries.GetWithExpiration(actor); ok {
			slog.Info("Cooldown hit", "actor", actor, "wait", time.Until(expires).Round(100*time.Millisecond))
		}
		return false
	}
	return true
}
