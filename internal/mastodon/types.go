package mastodon

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ID is a Mastodon entity id: a string on the wire, an integer in ordering
// semantics (notification ids are monotonically increasing per feed).
type ID int64

func (id *ID) UnmarshalJSON(data []byte) error {
	s := string(bytes.Trim(data, `"`))
	if s == "" || s == "null" {
		*id = 0
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid id %q: %w", s, err)
	}
	*id = ID(n)
	return nil
}

func (id ID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

type Account struct {
	Acct string `json:"acct"`
}

type Status struct {
	ID         ID      `json:"id"`
	Content    string  `json:"content"`
	Visibility string  `json:"visibility"`
	Account    Account `json:"account"`
}

type Notification struct {
	ID      ID      `json:"id"`
	Type    string  `json:"type"`
	Account Account `json:"account"`
	Status  *Status `json:"status"`
}

type Attachment struct {
	ID  ID     `json:"id"`
	URL string `json:"url"`
}

// Ready reports whether the server has finished processing the attachment;
// the URL stays empty until it has.
func (a *Attachment) Ready() bool {
	return a != nil && a.URL != ""
}

type StatusParams struct {
	Text        string
	InReplyToID int64
	MediaIDs    []int64
	Visibility  string
	Sensitive   bool
	SpoilerText string
}

// APIError is a non-2xx response from the instance.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	body := e.Body
	if len(body) > 200 {
		body = body[:200]
	}
	return fmt.Sprintf("mastodon: HTTP %d: %s", e.StatusCode, body)
}

// IsUnsupportedMedia reports whether err is the instance rejecting a media
// format (422 Unprocessable Entity on upload). This is the condition that
// sends the uploader to a smaller representation or the transcode fallback.
func IsUnsupportedMedia(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	if apiErr.StatusCode != 422 {
		return false
	}
	body := strings.ToLower(apiErr.Body)
	return strings.Contains(body, "supported") || strings.Contains(body, "gif") || body == ""
}
