package bot

import (
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"giffer/internal/booru"
	"giffer/internal/media"
)

var (
	stripPolicy = bluemonday.StrictPolicy()

	mentionPattern  = regexp.MustCompile(`(?i)@\s*[a-z0-9_]+(?:@[a-z0-9.\-]+)?`)
	nsfwPattern     = regexp.MustCompile(`\bnsfw\b`)
	spacePattern    = regexp.MustCompile(`\s+`)
	tagTokenPattern = regexp.MustCompile(`"([^"]+)"|(\S+)`)
)

func stripHTML(raw string) string {
	text := html.UnescapeString(stripPolicy.Sanitize(raw))
	return strings.TrimSpace(spacePattern.ReplaceAllString(text, " "))
}

// parseQuery turns mention HTML into a search query: tags minus the bot
// mention itself, with a standalone "nsfw" token pulled out as the safety
// switch.
func parseQuery(contentHTML string) (string, bool) {
	text := strings.ToLower(stripHTML(contentHTML))
	text = mentionPattern.ReplaceAllString(text, " ")
	text = strings.TrimSpace(spacePattern.ReplaceAllString(text, " "))

	isNSFW := nsfwPattern.MatchString(text)
	text = nsfwPattern.ReplaceAllString(text, " ")
	text = strings.TrimSpace(spacePattern.ReplaceAllString(text, " "))
	return text, isNSFW
}

// splitTags tokenizes the query into search tags. Quoted phrases stay
// together; "random"/"rnd" are placeholders for an empty query.
func splitTags(query string) []string {
	q := strings.TrimSpace(strings.ReplaceAll(query, ",", " "))
	if q == "" {
		return nil
	}

	var tags []string
	for _, m := range tagTokenPattern.FindAllStringSubmatch(q, -1) {
		t := m[1]
		if t == "" {
			t = m[2]
		}
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		switch strings.ToLower(t) {
		case "random", "rnd":
			continue
		}
		tags = append(tags, t)
	}
	return tags
}

var validVisibilities = map[string]struct{}{
	"public":   {},
	"unlisted": {},
	"private":  {},
	"direct":   {},
}

func safeVisibility(v string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	if _, ok := validVisibilities[v]; ok {
		return v
	}
	return "public"
}

// altTagBlocklist: rating and format tags add nothing to a description.
var altTagBlocklist = map[string]struct{}{
	"safe": {}, "questionable": {}, "explicit": {},
	"nsfw": {}, "sfw": {}, "animated": {}, "gif": {},
}

const (
	maxAltTags  = 20
	maxAltChars = 900
)

// altText builds attachment alt text from the candidate's tags, falling back
// to the query when the tag list is useless.
func altText(img *booru.Image, query string, nsfw bool) string {
	prefix := "Animated GIF"
	if nsfw {
		prefix = "NSFW animated GIF"
	}

	seen := make(map[string]struct{})
	var tags []string
	for _, t := range img.Tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, blocked := altTagBlocklist[t]; blocked {
			continue
		}
		t = strings.ReplaceAll(t, "_", " ")
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		tags = append(tags, t)
	}

	if len(tags) > 0 {
		if len(tags) > maxAltTags {
			tags = tags[:maxAltTags]
		}
		return truncate(prefix+": "+strings.Join(tags, ", "), maxAltChars)
	}
	if query != "" {
		return truncate(prefix+" (from query): "+query, maxAltChars)
	}
	return prefix
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func orRandom(query string) string {
	if query == "" {
		return "random"
	}
	return query
}

func replyText(query, sourceURL, mimeType string, nsfw bool) string {
	prefix := "GIF"
	if nsfw {
		prefix = "NSFW"
	}
	note := ""
	if mimeType == media.MIMEMp4 {
		note = "\n(converted to MP4 due to instance limits)"
	}
	return fmt.Sprintf("%s for query: `%s`%s\nSource: %s", prefix, orRandom(query), note, sourceURL)
}

const (
	msgNothingFound  = "Nothing found for query: `%s`"
	msgUploadFailed  = "Couldn't upload the media (the instance rejects GIF/video, or the network is misbehaving). Try another query."
	msgTooLarge      = "Can't fetch that one: %v"
	msgMediaNotReady = "The media uploaded, but the instance is taking too long to process it. Try again in a minute."
)
