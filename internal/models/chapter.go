package models

// Chapter is the ephemeral, normalized result of extracting one link.
// Not persisted as a first-class entity: it is summarized into the link's
// ParsedSummary and merged into the rendered document.
type Chapter struct {
	Title      string
	Content    string // sanitized HTML fragment
	WordCount  int
	ImageCount int // capped at extraction time
	CodeCount  int
	PostCount  int // short-post units
	SourceURL  string
	Blocked    bool
	Failed     bool
}

// Degraded chapter titles substituted on failure or policy block.
const (
	TitleBlockedURL      = "Blocked URL"
	TitleLinkUnavailable = "Link unavailable"
	TitleShortPostThread = "X Thread"
)

// BlockedChapter is the placeholder substituted for links rejected by the
// host safety policy. Carries zero metrics.
func BlockedChapter(sourceURL string) Chapter {
	return Chapter{
		Title:     TitleBlockedURL,
		Content:   "<p>URL blocked for safety.</p>",
		SourceURL: sourceURL,
		Blocked:   true,
	}
}

// UnavailableChapter is the placeholder substituted on extraction failure.
func UnavailableChapter(sourceURL string) Chapter {
	return Chapter{
		Title:     TitleLinkUnavailable,
		Content:   "<p>We could not fetch this link. The Issue was generated without it.</p>",
		SourceURL: sourceURL,
		Failed:    true,
	}
}

// Summary converts a chapter into the persisted per-link record.
func (c Chapter) Summary() *ParsedSummary {
	return &ParsedSummary{
		Title:      c.Title,
		WordCount:  c.WordCount,
		ImageCount: c.ImageCount,
		CodeCount:  c.CodeCount,
		PostCount:  c.PostCount,
		SourceURL:  c.SourceURL,
		Blocked:    c.Blocked,
		Error:      c.Failed,
	}
}

// Metrics aggregates chapter counts for complexity scoring.
type Metrics struct {
	Words  int
	Images int
	Code   int
	Posts  int
}

// Add accumulates one chapter into the metrics. Order-independent, so the
// aggregate is identical regardless of extraction order.
func (m *Metrics) Add(c Chapter) {
	m.Words += c.WordCount
	m.Images += c.ImageCount
	m.Code += c.CodeCount
	m.Posts += c.PostCount
}

// AggregateMetrics sums all chapters of an issue.
func AggregateMetrics(chapters []Chapter) Metrics {
	var m Metrics
	for _, c := range chapters {
		m.Add(c)
	}
	return m
}
