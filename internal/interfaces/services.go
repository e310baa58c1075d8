package interfaces

import (
	"context"

	"github.com/ternarybob/folio/internal/models"
)

// Extractor turns a URL into a normalized chapter. Implementations may
// return an error only to signal that nothing usable was obtained; the
// scheduler converts errors into degraded chapters.
type Extractor interface {
	Extract(ctx context.Context, url string) (models.Chapter, error)
}

// MailService sends outbound notification email. Failures must be treated
// as fire-and-forget by callers.
type MailService interface {
	SendHTMLEmail(ctx context.Context, to, subject, htmlBody, textBody string) error
	IsConfigured() bool
}

// IssueProcessor runs one issue job to a terminal state.
type IssueProcessor interface {
	ProcessIssue(ctx context.Context, issueID string) error
}
