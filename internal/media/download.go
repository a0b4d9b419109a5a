// Package media downloads candidate representations, transcodes GIF to MP4
// through ffmpeg, and drives the upload fallback chain.
package media

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

const downloadChunkSize = 64 * 1024

// TooLargeError marks an asset that exceeded the configured byte cap. It is
// a resource-limit condition, distinct from transport failures: the caller
// reports it to the user instead of retrying.
type TooLargeError struct {
	Limit int64
}

func (e *TooLargeError) Error() string {
	return fmt.Sprintf("file too large (> %d bytes)", e.Limit)
}

type Downloader struct {
	http      *http.Client
	maxBytes  int64
	userAgent string
}

func NewDownloader(httpClient *http.Client, maxBytes int64, userAgent string) *Downloader {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Downloader{
		http:      httpClient,
		maxBytes:  maxBytes,
		userAgent: userAgent,
	}
}

// Fetch streams the URL into memory, aborting as soon as the byte cap is
// crossed rather than buffering an arbitrarily large body.
func (d *Downloader) Fetch(ctx context.Context, url string) ([]byte, error) {
	slog.Info("Downloading", "url", url)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build download request: %w", err)
	}
	req.Header.Set("User-Agent", d.userAgent)

	resp, err := d.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("download HTTP %d", resp.StatusCode)
	}

	var data []byte
	buf := make([]byte, downloadChunkSize)
	for {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			if int64(len(data)+n) > d.maxBytes {
				return nil, &TooLargeError{Limit: d.maxBytes}
			}
			data = append(data, buf[:n]...)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("download read failed: %w", err)
		}
	}

	slog.Info("Downloaded", "bytes", len(data))
	return data, nil
}
