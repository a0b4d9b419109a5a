package bot

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"giffer/internal/booru"
	"giffer/internal/media"
)

func TestParseQuery(t *testing.T) {
	tests := []struct {
		name  string
		html  string
		query string
		nsfw  bool
	}{
		{
			name:  "plain mention with tags",
			html:  `<p><span class="h-card"><a href="https://example.social/@giffer">@<span>giffer</span></a></span> fluttershy dancing</p>`,
			query: "fluttershy dancing",
		},
		{
			name:  "full handle stripped",
			html:  `@giffer@example.social rainbow dash`,
			query: "rainbow dash",
		},
		{
			name:  "nsfw token pulled out",
			html:  `@giffer nsfw rarity`,
			query: "rarity",
			nsfw:  true,
		},
		{
			name:  "nsfw only inside word is kept",
			html:  `@giffer nsfwish`,
			query: "nsfwish",
		},
		{
			name:  "empty query after mention",
			html:  `<p>@giffer</p>`,
			query: "",
		},
		{
			name:  "html entities decoded",
			html:  `@giffer pinkie &amp; friends`,
			query: "pinkie & friends",
		},
		{
			name:  "case normalized",
			html:  `@Giffer Twilight SPARKLE`,
			query: "twilight sparkle",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query, nsfw := parseQuery(tt.html)
			require.Equal(t, tt.query, query)
			require.Equal(t, tt.nsfw, nsfw)
		})
	}
}

func TestSplitTags(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"empty", "", nil},
		{"whitespace only", "   ", nil},
		{"space separated", "fluttershy dancing", []string{"fluttershy", "dancing"}},
		{"comma separated", "fluttershy, dancing", []string{"fluttershy", "dancing"}},
		{"quoted phrase", `"rainbow dash" flying`, []string{"rainbow dash", "flying"}},
		{"random placeholder dropped", "random", nil},
		{"rnd placeholder dropped", "rnd fluttershy", []string{"fluttershy"}},
		{"placeholder case insensitive", "RANDOM", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, splitTags(tt.query))
		})
	}
}

func TestSafeVisibility(t *testing.T) {
	require.Equal(t, "unlisted", safeVisibility("unlisted"))
	require.Equal(t, "direct", safeVisibility("  Direct "))
	require.Equal(t, "public", safeVisibility(""))
	require.Equal(t, "public", safeVisibility("everyone"))
}

func TestAltText(t *testing.T) {
	img := &booru.Image{
		Tags: []string{"safe", "animated", "gif", "fluttershy", "cute_pose", "Fluttershy"},
	}

	got := altText(img, "fluttershy", false)
	require.Equal(t, "Animated GIF: fluttershy, cute pose", got)

	got = altText(img, "fluttershy", true)
	require.True(t, strings.HasPrefix(got, "NSFW animated GIF:"))
}

func TestAltTextFallsBackToQuery(t *testing.T) {
	img := &booru.Image{Tags: []string{"safe", "gif"}}
	require.Equal(t, "Animated GIF (from query): ponies", altText(img, "ponies", false))
	require.Equal(t, "Animated GIF", altText(img, "", false))
}

func TestAltTextBounded(t *testing.T) {
	img := &booru.Image{}
	for i := 0; i < 50; i++ {
		img.Tags = append(img.Tags, strings.Repeat("x", 40)+string(rune('a'+i)))
	}
	got := altText(img, "", false)
	require.LessOrEqual(t, len(got), maxAltChars)
	require.LessOrEqual(t, strings.Count(got, ","), maxAltTags-1)
}

func TestReplyText(t *testing.T) {
	got := replyText("fluttershy", "https://booru.example/12345", media.MIMEGif, false)
	require.Equal(t, "GIF for query: `fluttershy`\nSource: https://booru.example/12345", got)

	got = replyText("", "https://booru.example/1", media.MIMEGif, false)
	require.Contains(t, got, "`random`")

	got = replyText("rarity", "https://booru.example/2", media.MIMEMp4, true)
	require.True(t, strings.HasPrefix(got, "NSFW for query:"))
	require.Contains(t, got, "converted to MP4")
}
