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

// UserStorage implements interfaces.UserStorage over Badger
type UserStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

var _ interfaces.UserStorage = (*UserStorage)(nil)

// NewUserStorage creates a new user storage instance
func NewUserStorage(db *BadgerDB, logger arbor.ILogger) *UserStorage {
	return &UserStorage{db: db, logger: logger}
}

// GetUser retrieves a user account by ID
func (s *UserStorage) GetUser(ctx context.Context, id string) (*models.UserAccount, error) {
	var user models.UserAccount
	err := s.db.Store().Get(id, &user)
	if err == badgerhold.ErrNotFound {
		return nil, interfaces.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// SaveUser inserts or updates a user account
func (s *UserStorage) SaveUser(ctx context.Context, user *models.UserAccount) error {
	user.UpdatedAt = time.Now().UTC()
	if err := s.db.Store().Upsert(user.ID, user); err != nil {
		return fmt.Errorf("failed to save user: %w", err)
	}
	return nil
}
