package media

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

const (
	MIMEGif = "image/gif"
	MIMEMp4 = "video/mp4"
)

// UploadFunc pushes bytes to the remote service and returns the media id.
// The bot wires this through the call guard, so a timeout surfaces here as
// an error of unknown remote outcome.
type UploadFunc func(ctx context.Context, data []byte, mimeType, description string) (int64, error)

// Result is the terminal success of the fallback chain.
type Result struct {
	MediaID int64
	MIME    string
}

// Fallback is the upload state machine. It walks representations largest to
// smallest in the primary format, and when the primary format is
// systematically rejected, transcodes the smallest downloadable
// representation and uploads that instead.
type Fallback struct {
	downloader *Downloader
	transcoder Transcoder
	upload     UploadFunc

	// isRejected classifies an upload error as "format rejected by the
	// remote", which is worth retrying with a smaller file. Anything else
	// aborts the representation loop.
	isRejected func(error) bool
}

func NewFallback(downloader *Downloader, transcoder Transcoder, upload UploadFunc, isRejected func(error) bool) *Fallback {
	return &Fallback{
		downloader: downloader,
		transcoder: transcoder,
		upload:     upload,
		isRejected: isRejected,
	}
}

// Run drives the chain to a terminal state: a Result on success, or the last
// failure for user-facing reporting.
func (f *Fallback) Run(ctx context.Context, urls []string, description string) (*Result, error) {
	if len(urls) == 0 {
		return nil, errors.New("no usable representations")
	}

	res, lastErr := f.tryPrimary(ctx, urls, description)
	if res != nil {
		return res, nil
	}

	slog.Info("Trying MP4 fallback")
	return f.runFallback(ctx, urls, description, lastErr)
}

func (f *Fallback) tryPrimary(ctx context.Context, urls []string, description string) (*Result, error) {
	var lastErr error

	for _, u := range urls {
		data, err := f.downloader.Fetch(ctx, u)
		if err != nil {
			// Smaller representations may still download fine or fit the
			// byte cap.
			lastErr = err
			continue
		}

		mediaID, err := f.upload(ctx, data, MIMEGif, description)
		if err == nil {
			return &Result{MediaID: mediaID, MIME: MIMEGif}, nil
		}
		lastErr = err

		if f.isRejected(err) {
			slog.Warn("GIF rejected by instance, trying smaller representation", "url", u, "error", err)
			continue
		}

		// Timeout or transport trouble: the same failure mode on another
		// file wastes the timeout budget.
		slog.Error("GIF upload failed hard", "error", err)
		break
	}

	return nil, lastErr
}

func (f *Fallback) runFallback(ctx context.Context, urls []string, description string, lastErr error) (*Result, error) {
	var gif []byte
	for i := len(urls) - 1; i >= 0; i-- {
		data, err := f.downloader.Fetch(ctx, urls[i])
		if err != nil {
			var tooLarge *TooLargeError
			if errors.As(err, &tooLarge) {
				// Smallest first: if this one is over the cap they all are.
				return nil, err
			}
			continue
		}
		gif = data
		break
	}
	if gif == nil {
		return nil, fmt.Errorf("no representation downloadable for transcode (last error: %w)", lastErr)
	}

	mp4, err := f.transcoder.Transcode(ctx, gif)
	if err != nil {
		return nil, fmt.Errorf("transcode failed: %w", err)
	}

	mediaID, err := f.upload(ctx, mp4, MIMEMp4, description)
	if err != nil {
		return nil, fmt.Errorf("fallback upload failed: %w", err)
	}
	return &Result{MediaID: mediaID, MIME: MIMEMp4}, nil
}
