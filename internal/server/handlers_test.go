package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/folio/internal/common"
	"github.com/ternarybob/folio/internal/interfaces"
	"github.com/ternarybob/folio/internal/models"
	"github.com/ternarybob/folio/internal/queue"
)

type fakeIssueStore struct {
	issues map[string]*models.Issue
}

func (s *fakeIssueStore) GetIssue(ctx context.Context, id string) (*models.Issue, error) {
	issue, ok := s.issues[id]
	if !ok {
		return nil, interfaces.ErrNotFound
	}
	return issue, nil
}

func (s *fakeIssueStore) SaveIssue(ctx context.Context, issue *models.Issue) error { return nil }
func (s *fakeIssueStore) UpdateStatus(ctx context.Context, id string, status models.IssueStatus) error {
	return nil
}
func (s *fakeIssueStore) UpdateResult(ctx context.Context, id string, status models.IssueStatus, score int) error {
	return nil
}
func (s *fakeIssueStore) UpdateTitle(ctx context.Context, id string, title string) error { return nil }
func (s *fakeIssueStore) SaveAssets(ctx context.Context, record *models.AssetRecord) error {
	return nil
}
func (s *fakeIssueStore) GetAssets(ctx context.Context, issueID string) (*models.AssetRecord, error) {
	return nil, interfaces.ErrNotFound
}

type fakeEnqueuer struct {
	enqueued []queue.Message
	err      error
}

func (e *fakeEnqueuer) Enqueue(ctx context.Context, msg queue.Message) error {
	if e.err != nil {
		return e.err
	}
	e.enqueued = append(e.enqueued, msg)
	return nil
}

func newTestServer(t *testing.T, store *fakeIssueStore, enqueuer *fakeEnqueuer) *httptest.Server {
	t.Helper()
	config := common.DefaultConfig()
	config.Server.SharedSecret = "test-secret"

	logger := common.GetLogger()
	handler := NewJobHandler(store, enqueuer, logger)
	s := New(config, handler, logger)

	ts := httptest.NewServer(s.withLogging(s.setupRoutes()))
	t.Cleanup(ts.Close)
	return ts
}

func postIssue(t *testing.T, ts *httptest.Server, secret, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, ts.URL+"/jobs/issue", bytes.NewBufferString(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if secret != "" {
		req.Header.Set("X-Worker-Secret", secret)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestEnqueueIssueAccepted(t *testing.T) {
	issue := models.NewIssue("user-1", "", models.ThemeJournal)
	store := &fakeIssueStore{issues: map[string]*models.Issue{issue.ID: issue}}
	enqueuer := &fakeEnqueuer{}
	ts := newTestServer(t, store, enqueuer)

	resp := postIssue(t, ts, "test-secret", fmt.Sprintf(`{"issue_id": %q}`, issue.ID))
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "queued", body["status"])

	require.Len(t, enqueuer.enqueued, 1)
	assert.Equal(t, issue.ID, enqueuer.enqueued[0].IssueID)
}

func TestEnqueueIssueRejectsBadSecret(t *testing.T) {
	issue := models.NewIssue("user-1", "", models.ThemeJournal)
	store := &fakeIssueStore{issues: map[string]*models.Issue{issue.ID: issue}}
	enqueuer := &fakeEnqueuer{}
	ts := newTestServer(t, store, enqueuer)

	resp := postIssue(t, ts, "wrong", fmt.Sprintf(`{"issue_id": %q}`, issue.ID))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Empty(t, enqueuer.enqueued)

	resp = postIssue(t, ts, "", fmt.Sprintf(`{"issue_id": %q}`, issue.ID))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestEnqueueIssueValidatesPayload(t *testing.T) {
	ts := newTestServer(t, &fakeIssueStore{issues: map[string]*models.Issue{}}, &fakeEnqueuer{})

	resp := postIssue(t, ts, "test-secret", `{"issue_id": "not-a-uuid"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = postIssue(t, ts, "test-secret", `{broken`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestEnqueueIssueUnknownIssue(t *testing.T) {
	ts := newTestServer(t, &fakeIssueStore{issues: map[string]*models.Issue{}}, &fakeEnqueuer{})

	missing := models.NewIssue("user-1", "", models.ThemeJournal)
	resp := postIssue(t, ts, "test-secret", fmt.Sprintf(`{"issue_id": %q}`, missing.ID))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestEnqueueIssueConflictWhenTerminal(t *testing.T) {
	issue := models.NewIssue("user-1", "", models.ThemeJournal)
	issue.Status = models.IssueStatusReady
	store := &fakeIssueStore{issues: map[string]*models.Issue{issue.ID: issue}}
	ts := newTestServer(t, store, &fakeEnqueuer{})

	resp := postIssue(t, ts, "test-secret", fmt.Sprintf(`{"issue_id": %q}`, issue.ID))
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestHealthEndpoint(t *testing.T) {
	ts := newTestServer(t, &fakeIssueStore{issues: map[string]*models.Issue{}}, &fakeEnqueuer{})

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}
