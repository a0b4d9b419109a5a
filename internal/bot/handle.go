package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"giffer/internal/booru"
	"giffer/internal/guard"
	"giffer/internal/mastodon"
	"giffer/internal/media"
)

// media-ready polling schedule
const (
	readyInitialDelay = 600 * time.Millisecond
	readyMaxDelay     = 3 * time.Second
	readyBackoff      = 1.4
)

func (b *Bot) processCycle(ctx context.Context) error {
	since := b.store.Cursor()
	slog.Info("Polling mentions", "since_id", since)

	res := guard.Run(b.guard, b.cfg.CallTimeout, "mastodon.notifications", func() ([]mastodon.Notification, error) {
		return b.feed.Notifications(ctx, since)
	})
	if !res.Succeeded() {
		return res.Err
	}

	notifs := res.Value
	slog.Info("Got mention notifications", "count", len(notifs))

	// The instance returns newest first; process in ascending id order so
	// the cursor only ever moves forward.
	sort.Slice(notifs, func(i, j int) bool { return notifs[i].ID < notifs[j].ID })

	for i := range notifs {
		// One broken mention must never abort the rest of the batch.
		b.handleMention(ctx, &notifs[i])

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
	return nil
}

func (b *Bot) handleMention(ctx context.Context, n *mastodon.Notification) {
	// Persist the cursor for every fetched event before anything else, so a
	// crash never re-fetches it regardless of how processing goes.
	if n.ID > 0 {
		if err := b.store.AdvanceCursor(int64(n.ID)); err != nil {
			slog.Error("Failed to persist cursor", "notif_id", n.ID, "error", err)
		}
	}

	if n.Status == nil || n.Status.ID == 0 {
		return
	}
	statusID := int64(n.Status.ID)

	if b.store.IsProcessed(statusID) {
		slog.Info("Skipping already processed status", "status_id", statusID)
		return
	}

	// Mark before any remote side effect: a crash between here and the
	// reply silently skips this mention instead of replying twice.
	if err := b.store.MarkProcessed(statusID); err != nil {
		slog.Error("Failed to persist processed mark", "status_id", statusID, "error", err)
	}

	actor := n.Account.Acct
	if !b.cooldown.Allow(actor) {
		return
	}

	if err := b.bucket.Acquire(ctx); err != nil {
		return
	}

	query, nsfw := parseQuery(n.Status.Content)
	visibility := safeVisibility(n.Status.Visibility)
	slog.Info("Handling mention", "from", actor, "nsfw", nsfw, "query", query, "status_id", statusID)

	b.resolveAndReply(ctx, statusID, visibility, query, nsfw)
}

// resolveAndReply is everything past the gates: search, upload, readiness,
// reply. Every failure terminates in a single apology to the mention.
func (b *Bot) resolveAndReply(ctx context.Context, statusID int64, visibility, query string, nsfw bool) {
	img := b.search(ctx, query, nsfw)
	if img == nil {
		b.reply(ctx, statusID, fmt.Sprintf(msgNothingFound, orRandom(query)), visibility)
		return
	}

	alt := altText(img, query, nsfw)

	result, err := b.uploader.Run(ctx, img.RepresentationURLs(), alt)
	if err != nil {
		var tooLarge *media.TooLargeError
		if errors.As(err, &tooLarge) {
			b.reply(ctx, statusID, fmt.Sprintf(msgTooLarge, tooLarge), visibility)
			return
		}
		slog.Error("Upload fallback exhausted", "status_id", statusID, "error", err)
		b.reply(ctx, statusID, msgUploadFailed, visibility)
		return
	}

	slog.Info("Uploaded media", "media_id", result.MediaID, "mime", result.MIME)

	if !b.waitMediaReady(ctx, result.MediaID) {
		// Posting a reply that references unready media renders broken.
		b.reply(ctx, statusID, msgMediaNotReady, visibility)
		return
	}

	replyVisibility := visibility
	if nsfw {
		replyVisibility = safeVisibility(b.cfg.NSFWVisibility)
	}

	params := mastodon.StatusParams{
		Text:        replyText(query, img.SourceLink(b.cfg.SourceBaseURL), result.MIME, nsfw),
		InReplyToID: statusID,
		MediaIDs:    []int64{result.MediaID},
		Visibility:  replyVisibility,
	}
	if nsfw {
		params.Sensitive = true
		params.SpoilerText = "NSFW"
	}

	res := guard.Run(b.guard, b.cfg.CallTimeout, "mastodon.post(reply)", func() (*mastodon.Status, error) {
		return b.feed.PostStatus(ctx, params)
	})
	if res.Succeeded() {
		slog.Info("Posted reply", "status_id", statusID)
	} else {
		// Unknown outcome included: the reply may have landed, so no retry.
		slog.Error("Failed to post reply", "status_id", statusID, "outcome", res.Outcome, "error", res.Err)
	}
}

func (b *Bot) search(ctx context.Context, query string, nsfw bool) *booru.Image {
	tags := splitTags(query)
	res := guard.Run(b.guard, b.cfg.SearchTimeout, "booru.search", func() (*booru.Image, error) {
		return b.searcher.Search(ctx, tags, nsfw)
	})
	if !res.Succeeded() {
		return nil
	}
	return res.Value
}

// waitMediaReady polls the attachment until the instance finishes processing
// it, backing off geometrically up to a ceiling.
func (b *Bot) waitMediaReady(ctx context.Context, mediaID int64) bool {
	deadline := time.Now().Add(b.cfg.ProcessMaxWait)
	delay := readyInitialDelay

	for time.Now().Before(deadline) {
		res := guard.Run(b.guard, b.cfg.CallTimeout, "mastodon.media(get)", func() (*mastodon.Attachment, error) {
			return b.feed.Media(ctx, mediaID)
		})
		if res.Succeeded() && res.Value.Ready() {
			return true
		}

		select {
		case <-ctx.Done():
			return false
		case <-time.After(delay):
		}

		delay = time.Duration(float64(delay) * readyBackoff)
		if delay > readyMaxDelay {
			delay = readyMaxDelay
		}
	}
	return false
}

// reply posts an apology or notice; the outcome is logged and dropped, the
// mention is already marked processed either way.
func (b *Bot) reply(ctx context.Context, statusID int64, text, visibility string) {
	res := guard.Run(b.guard, b.cfg.CallTimeout, "mastodon.post(notice)", func() (*mastodon.Status, error) {
		return b.feed.PostStatus(ctx, mastodon.StatusParams{
			Text:        text,
			InReplyToID: statusID,
			Visibility:  visibility,
		})
	})
	if !res.Succeeded() {
		slog.Error("Failed to post notice", "status_id", statusID, "outcome", res.Outcome, "error", res.Err)
	}
}
