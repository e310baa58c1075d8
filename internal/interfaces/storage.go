package interfaces

import (
	"context"
	"errors"

	"github.com/ternarybob/folio/internal/models"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// IssueStorage persists issues and their asset records.
type IssueStorage interface {
	GetIssue(ctx context.Context, id string) (*models.Issue, error)
	SaveIssue(ctx context.Context, issue *models.Issue) error
	UpdateStatus(ctx context.Context, id string, status models.IssueStatus) error
	// UpdateResult writes a terminal status together with the computed score.
	UpdateResult(ctx context.Context, id string, status models.IssueStatus, score int) error
	UpdateTitle(ctx context.Context, id string, title string) error
	SaveAssets(ctx context.Context, record *models.AssetRecord) error
	GetAssets(ctx context.Context, issueID string) (*models.AssetRecord, error)
}

// LinkStorage persists issue links. Links are returned in order_index order.
type LinkStorage interface {
	GetLinks(ctx context.Context, issueID string) ([]*models.Link, error)
	SaveLinks(ctx context.Context, links []*models.Link) error
	SaveParsedSummary(ctx context.Context, linkID string, summary *models.ParsedSummary) error
}

// UserStorage persists user accounts and their credit state.
type UserStorage interface {
	GetUser(ctx context.Context, id string) (*models.UserAccount, error)
	SaveUser(ctx context.Context, user *models.UserAccount) error
}

// EventStorage persists audit events.
type EventStorage interface {
	SaveEvent(ctx context.Context, event *models.Event) error
	GetEventsByIssue(ctx context.Context, issueID string) ([]*models.Event, error)
	// PurgeOlderThan deletes events created before the cutoff and returns
	// the number removed.
	PurgeOlderThan(ctx context.Context, days int) (int, error)
}

// BlobStorage uploads artifact bytes under a slash-separated path with a
// content type, overwriting on conflict (e.g. "<issueID>/issue.pdf").
type BlobStorage interface {
	Upload(ctx context.Context, path, contentType string, data []byte) error
	Read(ctx context.Context, path string) ([]byte, error)
}
