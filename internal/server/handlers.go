// -----------------------------------------------------------------------
// Job handler - validates and enqueues issue processing requests
// -----------------------------------------------------------------------

package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/folio/internal/common"
	"github.com/ternarybob/folio/internal/interfaces"
	"github.com/ternarybob/folio/internal/queue"
)

// Enqueuer pushes a job message onto the processing queue
type Enqueuer interface {
	Enqueue(ctx context.Context, msg queue.Message) error
}

// EnqueueIssueRequest is the trigger payload
type EnqueueIssueRequest struct {
	IssueID string `json:"issue_id" validate:"required,uuid4"`
}

// JobHandler handles job-related API requests
type JobHandler struct {
	issues   interfaces.IssueStorage
	queue    Enqueuer
	validate *validator.Validate
	logger   arbor.ILogger
}

// NewJobHandler creates a new job handler
func NewJobHandler(issues interfaces.IssueStorage, enqueuer Enqueuer, logger arbor.ILogger) *JobHandler {
	return &JobHandler{
		issues:   issues,
		queue:    enqueuer,
		validate: validator.New(),
		logger:   logger,
	}
}

// EnqueueIssueHandler accepts an issue for processing
// POST /jobs/issue
func (h *JobHandler) EnqueueIssueHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req EnqueueIssueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, "issue_id must be a UUID")
		return
	}

	issue, err := h.issues.GetIssue(ctx, req.IssueID)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			writeError(w, http.StatusNotFound, "issue not found")
			return
		}
		h.logger.Error().Err(err).Str("issue_id", req.IssueID).Msg("Failed to load issue")
		writeError(w, http.StatusInternalServerError, "storage error")
		return
	}

	if issue.Status.IsTerminal() {
		writeError(w, http.StatusConflict, "issue already processed")
		return
	}

	if err := h.queue.Enqueue(ctx, queue.Message{IssueID: req.IssueID}); err != nil {
		h.logger.Error().Err(err).Str("issue_id", req.IssueID).Msg("Failed to enqueue issue")
		writeError(w, http.StatusInternalServerError, "enqueue failed")
		return
	}

	h.logger.Info().Str("issue_id", req.IssueID).Msg("Issue enqueued")
	writeJSON(w, http.StatusAccepted, map[string]string{
		"issue_id": req.IssueID,
		"status":   "queued",
	})
}

// HealthHandler reports liveness
// GET /health
func (h *JobHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": common.Version,
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
