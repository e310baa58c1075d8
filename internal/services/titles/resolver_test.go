package titles

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/ternarybob/folio/internal/models"
)

func TestResolveKeepsMeaningfulUserTitle(t *testing.T) {
	got := Resolve("Weekend reading on databases", "https://example.com/a", "Some Chapter")
	assert.Equal(t, "Weekend reading on databases", got)
}

func TestResolveIgnoresURLShapedUserTitle(t *testing.T) {
	got := Resolve("https://example.com/article", "https://example.com/article", "A Deep Dive Into B-Trees")
	assert.Equal(t, "Issue — A Deep Dive Into B-Trees", got)
}

func TestResolveIgnoresPlaceholderUserTitle(t *testing.T) {
	got := Resolve("New Issue", "https://example.com/a", "A Deep Dive Into B-Trees")
	assert.Equal(t, "Issue — A Deep Dive Into B-Trees", got)

	got = Resolve("Issue — twitter.com", "https://example.com/a", "A Deep Dive Into B-Trees")
	assert.Equal(t, "Issue — A Deep Dive Into B-Trees", got)
}

func TestResolveTruncatesLongChapterTitle(t *testing.T) {
	long := strings.Repeat("very long title ", 10)
	got := Resolve("", "https://example.com/a", long)

	assert.True(t, strings.HasPrefix(got, "Issue — "))
	assert.True(t, strings.HasSuffix(got, "…"))
	assert.LessOrEqual(t, len([]rune(strings.TrimPrefix(got, "Issue — "))), 79)
}

func TestResolveSkipsDegradedChapterTitles(t *testing.T) {
	got := Resolve("", "https://example.com/a", models.TitleLinkUnavailable)
	assert.Equal(t, "Issue — example.com", got)

	got = Resolve("", "https://example.com/a", models.TitleBlockedURL)
	assert.Equal(t, "Issue — example.com", got)
}

func TestResolveShortPostHandle(t *testing.T) {
	got := Resolve("https://x.com/foo", "https://x.com/foo/status/123", models.TitleShortPostThread)
	assert.Equal(t, "Issue — @foo thread", got)
}

func TestResolveShortPostReservedSegment(t *testing.T) {
	got := Resolve("", "https://x.com/i/status/123", models.TitleShortPostThread)
	assert.Equal(t, "Issue — X thread", got)
}

func TestResolveHostFallback(t *testing.T) {
	got := Resolve("", "https://www.blog.example.org/post", "")
	assert.Equal(t, "Issue — blog.example.org", got)
}

func TestResolveDefaultsWhenNothingUsable(t *testing.T) {
	assert.Equal(t, "New Issue", Resolve("", "", ""))
}
