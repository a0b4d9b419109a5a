package booru

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func gifImage(id int64, reps map[string]string) Image {
	return Image{
		ID:                  id,
		Format:              "gif",
		ThumbnailsGenerated: true,
		Representations:     reps,
		Tags:                []string{"safe", "animated", "gif", "dancing"},
	}
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewClient(srv.URL, "test-key", "100", "200", "test-agent", srv.Client())
	c.retryInterval = time.Millisecond
	c.pick = func(n int) int { return 0 }
	return c
}

func TestSearchReturnsCandidate(t *testing.T) {
	var query atomic.Value
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		query.Store(r.URL.Query().Get("q"))
		require.Equal(t, "100", r.URL.Query().Get("filter_id"))
		json.NewEncoder(w).Encode(searchResponse{Images: []Image{
			gifImage(1, map[string]string{"full": "http://cdn/full.gif"}),
		}})
	})

	img, err := c.Search(context.Background(), []string{"dancing"}, false)
	require.NoError(t, err)
	require.NotNil(t, img)
	require.EqualValues(t, 1, img.ID)
	require.Equal(t, "dancing, safe, animated, gif", query.Load())
}

func TestSearchNSFWDropsSafeTag(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "cuddling, animated, gif", r.URL.Query().Get("q"))
		require.Equal(t, "200", r.URL.Query().Get("filter_id"))
		json.NewEncoder(w).Encode(searchResponse{Images: nil})
	})

	img, err := c.Search(context.Background(), []string{"cuddling"}, true)
	require.NoError(t, err)
	require.Nil(t, img)
}

func TestSearchRetriesOn429(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		json.NewEncoder(w).Encode(searchResponse{Images: []Image{
			gifImage(5, map[string]string{"full": "http://cdn/5.gif"}),
		}})
	})

	img, err := c.Search(context.Background(), nil, false)
	require.NoError(t, err)
	require.NotNil(t, img)
	require.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestSearchGivesUpAfterFour429s(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := c.Search(context.Background(), nil, false)
	require.Error(t, err)
	require.EqualValues(t, 4, atomic.LoadInt32(&calls))
}

func TestSearchAbortsOnOtherHTTPErrors(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "bad key", http.StatusForbidden)
	})

	_, err := c.Search(context.Background(), nil, false)
	require.Error(t, err)
	require.EqualValues(t, 1, atomic.LoadInt32(&calls), "non-429 errors must not be retried")
}

func TestSearchFiltersUnusableResults(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(searchResponse{Images: []Image{
			{ID: 1, Format: "png", ThumbnailsGenerated: true, Representations: map[string]string{"full": "http://cdn/1.png"}},
			{ID: 2, Format: "gif", ThumbnailsGenerated: false, Representations: map[string]string{"full": "http://cdn/2.gif"}},
			{ID: 3, Format: "gif", ThumbnailsGenerated: true},
		}})
	})

	img, err := c.Search(context.Background(), nil, false)
	require.NoError(t, err)
	require.Nil(t, img, "no result should qualify")
}

func TestRepresentationURLsOrderedAndDeduped(t *testing.T) {
	img := gifImage(9, map[string]string{
		"thumb":  "http://cdn/small.gif",
		"small":  "http://cdn/small.gif",
		"medium": "ftp://cdn/medium.gif",
		"full":   "http://cdn/full.gif",
	})

	require.Equal(t, []string{"http://cdn/full.gif", "http://cdn/small.gif"}, img.RepresentationURLs())
}

func TestSourceLink(t *testing.T) {
	img := gifImage(9, nil)
	require.Equal(t, "https://example.org/images/9", img.SourceLink("https://example.org"))

	img.ViewURL = "https://cdn/img/9.gif"
	require.Equal(t, "https://cdn/img/9.gif", img.SourceLink("https://example.org"))
}
