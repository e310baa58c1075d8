// -----------------------------------------------------------------------
// Issue - One issue-creation request tracked through a finite lifecycle
// -----------------------------------------------------------------------

package models

import (
	"time"

	"github.com/google/uuid"
)

// IssueStatus is the lifecycle state of an issue job.
// queued -> processing -> exactly one of ready | rejected | failed.
// rejected is a terminal-success outcome, not an error: the job was
// evaluated correctly and declined for insufficient credits.
type IssueStatus string

const (
	IssueStatusQueued     IssueStatus = "queued"
	IssueStatusProcessing IssueStatus = "processing"
	IssueStatusReady      IssueStatus = "ready"
	IssueStatusRejected   IssueStatus = "rejected"
	IssueStatusFailed     IssueStatus = "failed"
)

// IsTerminal returns true if the status is a terminal state.
func (s IssueStatus) IsTerminal() bool {
	return s == IssueStatusReady || s == IssueStatusRejected || s == IssueStatusFailed
}

// Theme selects the visual treatment of the rendered issue.
type Theme string

const (
	ThemeJournal   Theme = "journal"
	ThemeDeveloper Theme = "developer"
)

// Issue represents one issue-creation request. Created by the API layer,
// mutated only by the pipeline once dequeued.
type Issue struct {
	ID              string      `json:"id" badgerhold:"key"`
	UserID          string      `json:"user_id" badgerhold:"index"`
	Title           string      `json:"title"`
	Theme           Theme       `json:"theme"`
	Status          IssueStatus `json:"status"`
	ComplexityScore *int        `json:"complexity_score,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// NewIssue creates a queued issue for a user.
func NewIssue(userID, title string, theme Theme) *Issue {
	now := time.Now().UTC()
	return &Issue{
		ID:        uuid.New().String(),
		UserID:    userID,
		Title:     title,
		Theme:     theme,
		Status:    IssueStatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// AssetRecord holds the storage locations of the three rendered artifacts.
// Written once per successfully rendered issue; re-processing overwrites.
type AssetRecord struct {
	IssueID   string    `json:"issue_id" badgerhold:"key"`
	PDFPath   string    `json:"pdf_path"`
	HTMLPath  string    `json:"html_path"`
	CoverPath string    `json:"cover_path"`
	UpdatedAt time.Time `json:"updated_at"`
}
