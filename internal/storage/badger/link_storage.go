package badger

import (
	"context"
	"fmt"
	"sort"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/folio/internal/interfaces"
	"github.com/ternarybob/folio/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// LinkStorage implements interfaces.LinkStorage over Badger
type LinkStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

var _ interfaces.LinkStorage = (*LinkStorage)(nil)

// NewLinkStorage creates a new link storage instance
func NewLinkStorage(db *BadgerDB, logger arbor.ILogger) *LinkStorage {
	return &LinkStorage{db: db, logger: logger}
}

// GetLinks returns all links of an issue in order_index order
func (s *LinkStorage) GetLinks(ctx context.Context, issueID string) ([]*models.Link, error) {
	var links []*models.Link
	if err := s.db.Store().Find(&links, badgerhold.Where("IssueID").Eq(issueID).Index("IssueID")); err != nil {
		return nil, fmt.Errorf("failed to find links: %w", err)
	}
	sort.Slice(links, func(i, j int) bool {
		return links[i].OrderIndex < links[j].OrderIndex
	})
	return links, nil
}

// SaveLinks inserts or updates a batch of links
func (s *LinkStorage) SaveLinks(ctx context.Context, links []*models.Link) error {
	for _, link := range links {
		if err := s.db.Store().Upsert(link.ID, link); err != nil {
			return fmt.Errorf("failed to save link %s: %w", link.ID, err)
		}
	}
	return nil
}

// SaveParsedSummary writes the per-link extraction summary
func (s *LinkStorage) SaveParsedSummary(ctx context.Context, linkID string, summary *models.ParsedSummary) error {
	var link models.Link
	err := s.db.Store().Get(linkID, &link)
	if err == badgerhold.ErrNotFound {
		return interfaces.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to get link: %w", err)
	}
	link.Parsed = summary
	if err := s.db.Store().Upsert(linkID, &link); err != nil {
		return fmt.Errorf("failed to save parsed summary: %w", err)
	}
	return nil
}
