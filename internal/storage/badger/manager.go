package badger

import (
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/folio/internal/common"
	"github.com/ternarybob/folio/internal/interfaces"
)

// Manager bundles all Badger-backed storage implementations behind their
// interfaces and owns the shared database connection.
type Manager struct {
	db     *BadgerDB
	Issues interfaces.IssueStorage
	Links  interfaces.LinkStorage
	Users  interfaces.UserStorage
	Events interfaces.EventStorage
}

// NewManager opens the database and constructs the storage set
func NewManager(logger arbor.ILogger, config *common.BadgerConfig) (*Manager, error) {
	db, err := NewBadgerDB(logger, config)
	if err != nil {
		return nil, err
	}

	return &Manager{
		db:     db,
		Issues: NewIssueStorage(db, logger),
		Links:  NewLinkStorage(db, logger),
		Users:  NewUserStorage(db, logger),
		Events: NewEventStorage(db, logger),
	}, nil
}

// DB exposes the underlying connection for components that need raw access
// (the job queue keeps its own record type).
func (m *Manager) DB() *BadgerDB {
	return m.db
}

// Close closes the shared database connection
func (m *Manager) Close() error {
	return m.db.Close()
}
