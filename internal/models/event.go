package models

import (
	"time"

	"github.com/google/uuid"
)

// Event types recorded at terminal pipeline transitions.
const (
	EventIssueCompleted = "issue_completed"
	EventIssueRejected  = "issue_rejected"
	EventIssueFailed    = "issue_failed"
)

// Event is an audit record attributed to a user when resolvable.
type Event struct {
	ID        string                 `json:"id" badgerhold:"key"`
	UserID    string                 `json:"user_id" badgerhold:"index"`
	IssueID   string                 `json:"issue_id" badgerhold:"index"`
	Type      string                 `json:"type"`
	Metadata  map[string]interface{} `json:"metadata"`
	CreatedAt time.Time              `json:"created_at"`
}

// NewEvent creates an audit event. UserID may be empty when the owning
// user could not be resolved.
func NewEvent(userID, issueID, eventType string, metadata map[string]interface{}) *Event {
	if metadata == nil {
		metadata = make(map[string]interface{})
	}
	return &Event{
		ID:        uuid.New().String(),
		UserID:    userID,
		IssueID:   issueID,
		Type:      eventType,
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
	}
}
