package pipeline

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/folio/internal/common"
	"github.com/ternarybob/folio/internal/interfaces"
	"github.com/ternarybob/folio/internal/models"
	"github.com/ternarybob/folio/internal/services/credits"
	"github.com/ternarybob/folio/internal/services/scheduler"
)

// ---- in-memory fakes ----

type fakeStore struct {
	mu      sync.Mutex
	issues  map[string]*models.Issue
	links   map[string][]*models.Link
	users   map[string]*models.UserAccount
	events  []*models.Event
	assets  map[string]*models.AssetRecord
	blobs   map[string][]byte
	parsed  map[string]*models.ParsedSummary
	failSet map[string]error // method name -> forced error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		issues:  make(map[string]*models.Issue),
		links:   make(map[string][]*models.Link),
		users:   make(map[string]*models.UserAccount),
		assets:  make(map[string]*models.AssetRecord),
		blobs:   make(map[string][]byte),
		parsed:  make(map[string]*models.ParsedSummary),
		failSet: make(map[string]error),
	}
}

func (s *fakeStore) GetIssue(ctx context.Context, id string) (*models.Issue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	issue, ok := s.issues[id]
	if !ok {
		return nil, interfaces.ErrNotFound
	}
	copied := *issue
	return &copied, nil
}

func (s *fakeStore) SaveIssue(ctx context.Context, issue *models.Issue) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *issue
	s.issues[issue.ID] = &copied
	return nil
}

func (s *fakeStore) UpdateStatus(ctx context.Context, id string, status models.IssueStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failSet["UpdateStatus"]; err != nil {
		return err
	}
	s.issues[id].Status = status
	return nil
}

func (s *fakeStore) UpdateResult(ctx context.Context, id string, status models.IssueStatus, score int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	issue := s.issues[id]
	issue.Status = status
	issue.ComplexityScore = &score
	return nil
}

func (s *fakeStore) UpdateTitle(ctx context.Context, id string, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.issues[id].Title = title
	return nil
}

func (s *fakeStore) SaveAssets(ctx context.Context, record *models.AssetRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assets[record.IssueID] = record
	return nil
}

func (s *fakeStore) GetAssets(ctx context.Context, issueID string) (*models.AssetRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.assets[issueID]
	if !ok {
		return nil, interfaces.ErrNotFound
	}
	return record, nil
}

func (s *fakeStore) GetLinks(ctx context.Context, issueID string) ([]*models.Link, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.links[issueID], nil
}

func (s *fakeStore) SaveLinks(ctx context.Context, links []*models.Link) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, link := range links {
		s.links[link.IssueID] = append(s.links[link.IssueID], link)
	}
	return nil
}

func (s *fakeStore) SaveParsedSummary(ctx context.Context, linkID string, summary *models.ParsedSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.parsed[linkID] = summary
	return nil
}

func (s *fakeStore) GetUser(ctx context.Context, id string) (*models.UserAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return nil, interfaces.ErrNotFound
	}
	copied := *user
	return &copied, nil
}

func (s *fakeStore) SaveUser(ctx context.Context, user *models.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *user
	s.users[user.ID] = &copied
	return nil
}

func (s *fakeStore) SaveEvent(ctx context.Context, event *models.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *fakeStore) GetEventsByIssue(ctx context.Context, issueID string) ([]*models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Event
	for _, event := range s.events {
		if event.IssueID == issueID {
			out = append(out, event)
		}
	}
	return out, nil
}

func (s *fakeStore) PurgeOlderThan(ctx context.Context, days int) (int, error) {
	return 0, nil
}

func (s *fakeStore) Upload(ctx context.Context, path, contentType string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failSet["Upload"]; err != nil {
		return err
	}
	s.blobs[path] = data
	return nil
}

func (s *fakeStore) Read(ctx context.Context, path string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.blobs[path]
	if !ok {
		return nil, interfaces.ErrNotFound
	}
	return data, nil
}

func (s *fakeStore) eventTypes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var types []string
	for _, event := range s.events {
		types = append(types, event.Type)
	}
	return types
}

// fakeRenderer avoids the browser entirely
type fakeRenderer struct {
	failPDF bool
}

func (r *fakeRenderer) BuildDocument(issue *models.Issue, chapters []models.Chapter) string {
	return fmt.Sprintf("<html><body><h1>%s</h1>(%d chapters)</body></html>", issue.Title, len(chapters))
}

func (r *fakeRenderer) RenderPDF(ctx context.Context, htmlDoc string, issue *models.Issue, chapters []models.Chapter) ([]byte, error) {
	if r.failPDF {
		return nil, fmt.Errorf("print backend unavailable")
	}
	return []byte("%PDF-fake"), nil
}

func (r *fakeRenderer) RenderCover(ctx context.Context, issue *models.Issue) ([]byte, error) {
	return []byte("png-fake"), nil
}

// wordyExtractor returns a fixed-size chapter per link
type wordyExtractor struct {
	wordsPerLink int
}

func (e *wordyExtractor) Extract(ctx context.Context, url string) (models.Chapter, error) {
	return models.Chapter{
		Title:     "Extracted Title",
		Content:   "<p>content</p>",
		WordCount: e.wordsPerLink,
		SourceURL: url,
	}, nil
}

// recordingMailer captures fire-and-forget sends
type recordingMailer struct {
	mu    sync.Mutex
	sent  []string
	ready chan struct{}
}

func newRecordingMailer() *recordingMailer {
	return &recordingMailer{ready: make(chan struct{}, 4)}
}

func (m *recordingMailer) IsConfigured() bool { return true }

func (m *recordingMailer) SendHTMLEmail(ctx context.Context, to, subject, htmlBody, textBody string) error {
	m.mu.Lock()
	m.sent = append(m.sent, subject)
	m.mu.Unlock()
	m.ready <- struct{}{}
	return nil
}

// ---- harness ----

type harness struct {
	store     *fakeStore
	processor *Processor
	mail      *recordingMailer
	renderer  *fakeRenderer
}

func newHarness(t *testing.T, wordsPerLink int) *harness {
	t.Helper()
	logger := common.GetLogger()
	store := newFakeStore()
	mail := newRecordingMailer()
	renderer := &fakeRenderer{}

	config := common.DefaultConfig()
	config.AppBaseURL = "https://folio.example.com"

	processor := NewProcessor(Deps{
		Issues:    store,
		Links:     store,
		Users:     store,
		Events:    store,
		Blobs:     store,
		Scheduler: scheduler.New(&wordyExtractor{wordsPerLink: wordsPerLink}, store, 4, logger),
		Ledger:    credits.NewLedger(store, 20, logger),
		Renderer:  renderer,
		Mail:      mail,
	}, config, logger)

	return &harness{store: store, processor: processor, mail: mail, renderer: renderer}
}

func (h *harness) seedIssue(t *testing.T, balance int, linkURLs ...string) *models.Issue {
	t.Helper()
	ctx := context.Background()

	reset := time.Now().UTC().Add(6 * time.Hour)
	require.NoError(t, h.store.SaveUser(ctx, &models.UserAccount{
		ID:             "user-1",
		Email:          "reader@example.com",
		DailyCredits:   balance,
		CreditsResetAt: &reset,
	}))

	issue := models.NewIssue("user-1", "", models.ThemeJournal)
	require.NoError(t, h.store.SaveIssue(ctx, issue))

	links := make([]*models.Link, len(linkURLs))
	for i, u := range linkURLs {
		links[i] = &models.Link{ID: fmt.Sprintf("link-%d", i), IssueID: issue.ID, URL: u, OrderIndex: i}
	}
	require.NoError(t, h.store.SaveLinks(ctx, links))
	return issue
}

// ---- tests ----

func TestProcessIssueHappyPath(t *testing.T) {
	h := newHarness(t, 900)
	issue := h.seedIssue(t, 20, "https://example.com/a", "https://example.com/b")

	require.NoError(t, h.processor.ProcessIssue(context.Background(), issue.ID))

	stored, err := h.store.GetIssue(context.Background(), issue.ID)
	require.NoError(t, err)
	assert.Equal(t, models.IssueStatusReady, stored.Status)
	require.NotNil(t, stored.ComplexityScore)
	// 1800 words total -> ceil(1800/500) = 4
	assert.Equal(t, 4, *stored.ComplexityScore)
	assert.Equal(t, "Issue — Extracted Title", stored.Title)

	// All three artifacts under the issue namespace
	for _, leaf := range []string{"issue.pdf", "issue.html", "cover.png"} {
		_, err := h.store.Read(context.Background(), issue.ID+"/"+leaf)
		assert.NoError(t, err, leaf)
	}
	record, err := h.store.GetAssets(context.Background(), issue.ID)
	require.NoError(t, err)
	assert.Equal(t, issue.ID+"/issue.pdf", record.PDFPath)

	// Credits debited once
	user, err := h.store.GetUser(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, 16, user.DailyCredits)

	assert.Equal(t, []string{models.EventIssueCompleted}, h.store.eventTypes())

	// Completion email goes out asynchronously
	select {
	case <-h.mail.ready:
	case <-time.After(2 * time.Second):
		t.Fatal("completion email was not sent")
	}
	h.mail.mu.Lock()
	defer h.mail.mu.Unlock()
	require.Len(t, h.mail.sent, 1)
	assert.Equal(t, "Your Issue is ready — Issue — Extracted Title", h.mail.sent[0])
}

func TestProcessIssueRejectedWithoutArtifactsOrDebit(t *testing.T) {
	h := newHarness(t, 5000) // 10 score per link
	issue := h.seedIssue(t, 3, "https://example.com/a")

	require.NoError(t, h.processor.ProcessIssue(context.Background(), issue.ID))

	stored, err := h.store.GetIssue(context.Background(), issue.ID)
	require.NoError(t, err)
	assert.Equal(t, models.IssueStatusRejected, stored.Status)
	require.NotNil(t, stored.ComplexityScore)
	assert.Equal(t, 10, *stored.ComplexityScore)

	assert.Empty(t, h.store.blobs)

	user, err := h.store.GetUser(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, 3, user.DailyCredits)

	assert.Equal(t, []string{models.EventIssueRejected}, h.store.eventTypes())
	h.mail.mu.Lock()
	defer h.mail.mu.Unlock()
	assert.Empty(t, h.mail.sent)
}

func TestProcessIssueSkipsTerminalIssue(t *testing.T) {
	h := newHarness(t, 100)
	issue := h.seedIssue(t, 20, "https://example.com/a")
	require.NoError(t, h.store.UpdateResult(context.Background(), issue.ID, models.IssueStatusReady, 1))

	require.NoError(t, h.processor.ProcessIssue(context.Background(), issue.ID))

	// No second debit, no new events
	user, err := h.store.GetUser(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, 20, user.DailyCredits)
	assert.Empty(t, h.store.eventTypes())
}

func TestProcessIssueMissingIssue(t *testing.T) {
	h := newHarness(t, 100)

	err := h.processor.ProcessIssue(context.Background(), "no-such-issue")
	require.Error(t, err)
	assert.Equal(t, []string{models.EventIssueFailed}, h.store.eventTypes())
}

func TestProcessIssueRenderFailureMarksFailed(t *testing.T) {
	h := newHarness(t, 100)
	h.renderer.failPDF = true
	issue := h.seedIssue(t, 20, "https://example.com/a")

	err := h.processor.ProcessIssue(context.Background(), issue.ID)
	require.Error(t, err)

	stored, err := h.store.GetIssue(context.Background(), issue.ID)
	require.NoError(t, err)
	assert.Equal(t, models.IssueStatusFailed, stored.Status)
	assert.Equal(t, []string{models.EventIssueFailed}, h.store.eventTypes())
	assert.Empty(t, h.store.blobs)
}

func TestNormalizeLinks(t *testing.T) {
	h := newHarness(t, 100)

	batch := []*models.Link{
		{ID: "l0", URL: "https://example.com/a?utm_source=x"},
		{ID: "l1", URL: "https://example.com/a"}, // duplicate after stripping
		{ID: "l2", URL: "not a url"},
		{ID: "l3", URL: "http://10.0.0.1/internal"}, // kept for a blocked chapter
		{ID: "l4", URL: "https://example.com/b"},
	}
	out := h.processor.normalizeLinks(batch)

	require.Len(t, out, 3)
	assert.Equal(t, "https://example.com/a", out[0].URL)
	assert.Equal(t, "http://10.0.0.1/internal", out[1].URL)
	assert.Equal(t, "https://example.com/b", out[2].URL)
}

func TestNormalizeLinksAppliesCap(t *testing.T) {
	h := newHarness(t, 100)

	batch := make([]*models.Link, 15)
	for i := range batch {
		batch[i] = &models.Link{ID: fmt.Sprintf("l%d", i), URL: fmt.Sprintf("https://example.com/%d", i)}
	}
	out := h.processor.normalizeLinks(batch)
	assert.Len(t, out, 10)
}

func TestProcessIssueUploadFailureMarksFailed(t *testing.T) {
	h := newHarness(t, 100)
	issue := h.seedIssue(t, 20, "https://example.com/a")
	h.store.failSet["Upload"] = fmt.Errorf("disk full")

	err := h.processor.ProcessIssue(context.Background(), issue.ID)
	require.Error(t, err)

	stored, err := h.store.GetIssue(context.Background(), issue.ID)
	require.NoError(t, err)
	assert.Equal(t, models.IssueStatusFailed, stored.Status)
}
