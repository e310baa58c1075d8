// -----------------------------------------------------------------------
// Title resolution - user title, first chapter, hostname derivation
// -----------------------------------------------------------------------

package titles

import (
	"net/url"
	"strings"

	"github.com/ternarybob/folio/internal/models"
	"github.com/ternarybob/folio/internal/services/extract"
)

const (
	defaultTitle     = "New Issue"
	maxChapterChars  = 78
	issueTitlePrefix = "Issue — "
)

// Chapter titles that carry no signal and must not become issue titles
var genericChapterTitles = map[string]struct{}{
	models.TitleBlockedURL:      {},
	models.TitleLinkUnavailable: {},
	models.TitleShortPostThread: {},
}

// Resolve picks the final issue title. A meaningful user-supplied title
// always wins; otherwise the first chapter's title, then the first link's
// hostname, then a literal default. Runs once after extraction.
func Resolve(userTitle, firstLinkURL, firstChapterTitle string) string {
	userTitle = strings.TrimSpace(userTitle)
	if userTitle != "" && !looksLikeURL(userTitle) && !isPlaceholder(userTitle) {
		return userTitle
	}

	if chapterTitle := usableChapterTitle(firstChapterTitle); chapterTitle != "" {
		return issueTitlePrefix + truncate(chapterTitle, maxChapterChars)
	}

	if fromHost := hostDerivedTitle(firstLinkURL); fromHost != "" {
		return fromHost
	}

	return defaultTitle
}

func usableChapterTitle(title string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return ""
	}
	if _, generic := genericChapterTitles[title]; generic {
		return ""
	}
	if strings.HasPrefix(title, "Post by @") {
		return ""
	}
	return title
}

func hostDerivedTitle(firstLinkURL string) string {
	u, err := url.Parse(firstLinkURL)
	if err != nil || u.Hostname() == "" {
		return ""
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")

	if host == "x.com" || host == "twitter.com" {
		if handle := extract.HandleFromURL(firstLinkURL); handle != "" {
			return issueTitlePrefix + "@" + handle + " thread"
		}
		return issueTitlePrefix + "X thread"
	}
	return issueTitlePrefix + host
}

// isPlaceholder reports whether a stored title is one the system itself
// generated, so a re-run may overwrite it.
func isPlaceholder(title string) bool {
	return title == defaultTitle || strings.HasPrefix(title, issueTitlePrefix)
}

func looksLikeURL(s string) bool {
	lower := strings.ToLower(s)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") || strings.HasPrefix(lower, "www.")
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return strings.TrimSpace(string(runes[:max])) + "…"
}
