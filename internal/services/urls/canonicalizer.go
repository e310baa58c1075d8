// -----------------------------------------------------------------------
// URL Canonicalizer - validation, tracking-param stripping, host policy
// -----------------------------------------------------------------------

package urls

import (
	"net/url"
	"strings"

	"github.com/ternarybob/folio/internal/models"
)

// Tracking query parameters stripped during canonicalization. Parameters
// with the utm_ prefix are stripped regardless of suffix.
var trackingParams = map[string]struct{}{
	"ref":     {},
	"ref_src": {},
	"fbclid":  {},
	"gclid":   {},
}

// shortPostHosts classify a URL as a short-post source.
var shortPostHosts = map[string]struct{}{
	"x.com":       {},
	"twitter.com": {},
}

// Canonicalize validates and normalizes a single raw URL. Returns the
// canonical string and true, or "" and false when the input is malformed,
// uses a non-http(s) scheme, or points at an unsafe host. Never raises:
// bad input is silently dropped by callers.
func Canonicalize(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	if !IsSafeHost(u.Hostname()) {
		return "", false
	}

	query := u.Query()
	for param := range query {
		if _, tracked := trackingParams[param]; tracked || strings.HasPrefix(param, "utm_") {
			query.Del(param)
		}
	}
	u.RawQuery = query.Encode()
	u.Fragment = ""
	u.RawFragment = ""

	return u.String(), true
}

// Normalize canonicalizes a batch of raw URLs, silently dropping invalid
// entries and deduplicating by canonical string while preserving
// first-seen order.
func Normalize(rawURLs []string) []string {
	seen := make(map[string]struct{}, len(rawURLs))
	var cleaned []string
	for _, raw := range rawURLs {
		canonical, ok := Canonicalize(raw)
		if !ok {
			continue
		}
		if _, dup := seen[canonical]; dup {
			continue
		}
		seen[canonical] = struct{}{}
		cleaned = append(cleaned, canonical)
	}
	return cleaned
}

// DetectSourceType classifies a canonical URL by hostname.
func DetectSourceType(canonical string) models.SourceType {
	u, err := url.Parse(canonical)
	if err != nil {
		return models.SourceTypeArticle
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	if _, ok := shortPostHosts[host]; ok {
		return models.SourceTypeShortPost
	}
	return models.SourceTypeArticle
}

// IsSafeHost rejects loopback, link-local, .local and private IPv4 hosts.
// Checked both at submission and again at execution time, since DNS and
// redirects can change between the two.
func IsSafeHost(hostname string) bool {
	host := strings.ToLower(hostname)
	if host == "" || host == "localhost" || strings.HasSuffix(host, ".local") {
		return false
	}

	parts := strings.Split(host, ".")
	if len(parts) != 4 {
		return true // not a dotted-quad literal
	}
	octets := make([]int, 4)
	for i, part := range parts {
		n, ok := parseOctet(part)
		if !ok {
			return true // not an IPv4 literal after all
		}
		octets[i] = n
	}

	switch {
	case octets[0] == 10:
		return false
	case octets[0] == 127:
		return false
	case octets[0] == 169 && octets[1] == 254:
		return false
	case octets[0] == 192 && octets[1] == 168:
		return false
	case octets[0] == 172 && octets[1] >= 16 && octets[1] <= 31:
		return false
	}
	return true
}

func parseOctet(s string) (int, bool) {
	if s == "" || len(s) > 3 {
		return 0, false
	}
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
		n = n*10 + int(r-'0')
	}
	if n > 255 {
		return 0, false
	}
	return n, true
}
