// Package mastodon is a minimal client for the handful of endpoints the bot
// needs: mention notifications, media upload and readiness, status posting.
// Upload and post are deliberately single-attempt; they are not idempotent
// and a blind retry risks a duplicate visible reply.
package mastodon

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
)

type Client struct {
	baseURL   string
	token     string
	userAgent string
	http      *http.Client
}

func NewClient(baseURL, token, userAgent string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		token:     token,
		userAgent: userAgent,
		http:      httpClient,
	}
}

// Notifications returns mention notifications newer than sinceID. Pass 0 to
// fetch from the beginning of the feed window.
func (c *Client) Notifications(ctx context.Context, sinceID int64) ([]Notification, error) {
	q := url.Values{}
	q.Set("types[]", "mention")
	if sinceID > 0 {
		q.Set("since_id", strconv.FormatInt(sinceID, 10))
	}

	var notifs []Notification
	if err := c.getJSON(ctx, "/api/v1/notifications?"+q.Encode(), &notifs); err != nil {
		return nil, err
	}
	return notifs, nil
}

// UploadMedia posts the bytes as a media attachment and returns its id.
func (c *Client) UploadMedia(ctx context.Context, data []byte, mimeType, description string) (int64, error) {
	slog.Info("Uploading media", "mime", mimeType, "bytes", len(data), "alt_len", len(description))

	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	hdr := textproto.MIMEHeader{}
	hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="giffer.%s"`, extFor(mimeType)))
	hdr.Set("Content-Type", mimeType)
	part, err := w.CreatePart(hdr)
	if err != nil {
		return 0, fmt.Errorf("failed to build upload form: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return 0, fmt.Errorf("failed to build upload form: %w", err)
	}
	if description != "" {
		if err := w.WriteField("description", description); err != nil {
			return 0, fmt.Errorf("failed to build upload form: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return 0, fmt.Errorf("failed to build upload form: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/api/v1/media", &body)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	var att Attachment
	if err := c.do(req, &att); err != nil {
		return 0, err
	}
	return int64(att.ID), nil
}

// Media fetches the current processing state of an uploaded attachment.
func (c *Client) Media(ctx context.Context, id int64) (*Attachment, error) {
	var att Attachment
	if err := c.getJSON(ctx, "/api/v1/media/"+strconv.FormatInt(id, 10), &att); err != nil {
		return nil, err
	}
	return &att, nil
}

// PostStatus publishes a status, optionally as a media reply.
func (c *Client) PostStatus(ctx context.Context, p StatusParams) (*Status, error) {
	form := url.Values{}
	form.Set("status", p.Text)
	if p.InReplyToID > 0 {
		form.Set("in_reply_to_id", strconv.FormatInt(p.InReplyToID, 10))
	}
	for _, id := range p.MediaIDs {
		form.Add("media_ids[]", strconv.FormatInt(id, 10))
	}
	if p.Visibility != "" {
		form.Set("visibility", p.Visibility)
	}
	if p.Sensitive {
		form.Set("sensitive", "true")
	}
	if p.SpoilerText != "" {
		form.Set("spoiler_text", p.SpoilerText)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/api/v1/statuses", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var status Status
	if err := c.do(req, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("User-Agent", c.userAgent)
	return req, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("mastodon request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read mastodon response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return &APIError{StatusCode: resp.StatusCode, Body: string(data)}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode mastodon response: %w", err)
	}
	return nil
}

func extFor(mimeType string) string {
	if mimeType == "video/mp4" {
		return "mp4"
	}
	return "gif"
}
