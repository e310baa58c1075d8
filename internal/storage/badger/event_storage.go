package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/folio/internal/interfaces"
	"github.com/ternarybob/folio/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// EventStorage implements interfaces.EventStorage over Badger
type EventStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

var _ interfaces.EventStorage = (*EventStorage)(nil)

// NewEventStorage creates a new event storage instance
func NewEventStorage(db *BadgerDB, logger arbor.ILogger) *EventStorage {
	return &EventStorage{db: db, logger: logger}
}

// SaveEvent persists an audit event
func (s *EventStorage) SaveEvent(ctx context.Context, event *models.Event) error {
	if err := s.db.Store().Insert(event.ID, event); err != nil {
		return fmt.Errorf("failed to save event: %w", err)
	}
	return nil
}

// GetEventsByIssue returns all audit events for an issue
func (s *EventStorage) GetEventsByIssue(ctx context.Context, issueID string) ([]*models.Event, error) {
	var events []*models.Event
	if err := s.db.Store().Find(&events, badgerhold.Where("IssueID").Eq(issueID).Index("IssueID")); err != nil {
		return nil, fmt.Errorf("failed to find events: %w", err)
	}
	return events, nil
}

// PurgeOlderThan deletes events created before the retention cutoff
func (s *EventStorage) PurgeOlderThan(ctx context.Context, days int) (int, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -days)

	var stale []*models.Event
	if err := s.db.Store().Find(&stale, badgerhold.Where("CreatedAt").Lt(cutoff)); err != nil {
		return 0, fmt.Errorf("failed to find stale events: %w", err)
	}

	for _, event := range stale {
		if err := s.db.Store().Delete(event.ID, &models.Event{}); err != nil {
			return 0, fmt.Errorf("failed to delete event %s: %w", event.ID, err)
		}
	}

	if len(stale) > 0 {
		s.logger.Info().Int("purged", len(stale)).Int("retention_days", days).Msg("Purged stale audit events")
	}
	return len(stale), nil
}
