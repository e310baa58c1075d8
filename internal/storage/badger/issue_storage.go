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

// IssueStorage implements interfaces.IssueStorage over Badger
type IssueStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

var _ interfaces.IssueStorage = (*IssueStorage)(nil)

// NewIssueStorage creates a new issue storage instance
func NewIssueStorage(db *BadgerDB, logger arbor.ILogger) *IssueStorage {
	return &IssueStorage{db: db, logger: logger}
}

// GetIssue retrieves an issue by ID
func (s *IssueStorage) GetIssue(ctx context.Context, id string) (*models.Issue, error) {
	var issue models.Issue
	err := s.db.Store().Get(id, &issue)
	if err == badgerhold.ErrNotFound {
		return nil, interfaces.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get issue: %w", err)
	}
	return &issue, nil
}

// SaveIssue inserts or updates an issue
func (s *IssueStorage) SaveIssue(ctx context.Context, issue *models.Issue) error {
	issue.UpdatedAt = time.Now().UTC()
	if err := s.db.Store().Upsert(issue.ID, issue); err != nil {
		return fmt.Errorf("failed to save issue: %w", err)
	}
	return nil
}

// UpdateStatus transitions the issue lifecycle status
func (s *IssueStorage) UpdateStatus(ctx context.Context, id string, status models.IssueStatus) error {
	issue, err := s.GetIssue(ctx, id)
	if err != nil {
		return err
	}
	issue.Status = status
	if err := s.SaveIssue(ctx, issue); err != nil {
		return err
	}
	s.logger.Debug().Str("issue_id", id).Str("status", string(status)).Msg("Issue status updated")
	return nil
}

// UpdateResult writes a terminal status together with the computed score
func (s *IssueStorage) UpdateResult(ctx context.Context, id string, status models.IssueStatus, score int) error {
	issue, err := s.GetIssue(ctx, id)
	if err != nil {
		return err
	}
	issue.Status = status
	issue.ComplexityScore = &score
	return s.SaveIssue(ctx, issue)
}

// UpdateTitle overwrites the issue title
func (s *IssueStorage) UpdateTitle(ctx context.Context, id string, title string) error {
	issue, err := s.GetIssue(ctx, id)
	if err != nil {
		return err
	}
	issue.Title = title
	return s.SaveIssue(ctx, issue)
}

// SaveAssets records the artifact locations for an issue
func (s *IssueStorage) SaveAssets(ctx context.Context, record *models.AssetRecord) error {
	record.UpdatedAt = time.Now().UTC()
	if err := s.db.Store().Upsert(record.IssueID, record); err != nil {
		return fmt.Errorf("failed to save asset record: %w", err)
	}
	return nil
}

// GetAssets retrieves the artifact locations for an issue
func (s *IssueStorage) GetAssets(ctx context.Context, issueID string) (*models.AssetRecord, error) {
	var record models.AssetRecord
	err := s.db.Store().Get(issueID, &record)
	if err == badgerhold.ErrNotFound {
		return nil, interfaces.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get asset record: %w", err)
	}
	return &record, nil
}
