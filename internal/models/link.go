package models

// SourceType classifies how a link is extracted.
type SourceType string

const (
	SourceTypeArticle   SourceType = "article"
	SourceTypeShortPost SourceType = "short_post"
)

// Link is one canonicalized input URL belonging to an issue. OrderIndex
// defines output ordering and is immutable once created; it must survive
// concurrent processing.
type Link struct {
	ID         string         `json:"id" badgerhold:"key"`
	IssueID    string         `json:"issue_id" badgerhold:"index"`
	URL        string         `json:"url"`
	SourceType SourceType     `json:"source_type"`
	OrderIndex int            `json:"order_index"`
	Parsed     *ParsedSummary `json:"parsed,omitempty"`
}

// ParsedSummary is the small per-link record written after extraction,
// regardless of job outcome. Used for inspection and debugging.
type ParsedSummary struct {
	Title      string `json:"title"`
	WordCount  int    `json:"word_count"`
	ImageCount int    `json:"image_count"`
	CodeCount  int    `json:"code_count"`
	PostCount  int    `json:"post_count"`
	SourceURL  string `json:"source_url"`
	Blocked    bool   `json:"blocked,omitempty"`
	Error      bool   `json:"error,omitempty"`
}
