package booru

import "strconv"

// Image is one search result. Representations map size names to download
// URLs; the server generates them largest to smallest.
type Image struct {
	ID                  int64             `json:"id"`
	Format              string            `json:"format"`
	ThumbnailsGenerated bool              `json:"thumbnails_generated"`
	Representations     map[string]string `json:"representations"`
	Tags                []string          `json:"tags"`
	ViewURL             string            `json:"view_url"`
}

// representation sizes in descending quality order
var repKeys = []string{"full", "large", "medium", "small", "thumb"}

// RepresentationURLs returns the usable download URLs, highest quality
// first, deduplicated.
func (img *Image) RepresentationURLs() []string {
	var out []string
	seen := make(map[string]struct{})
	for _, k := range repKeys {
		u := img.Representations[k]
		if len(u) < 4 || u[:4] != "http" {
			continue
		}
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}

// SourceLink is the user-facing origin URL for attribution in replies.
func (img *Image) SourceLink(baseURL string) string {
	if len(img.ViewURL) >= 4 && img.ViewURL[:4] == "http" {
		return img.ViewURL
	}
	return baseURL + "/images/" + strconv.FormatInt(img.ID, 10)
}

type searchResponse struct {
	Images []Image `json:"images"`
}
