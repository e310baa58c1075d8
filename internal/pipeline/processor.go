// -----------------------------------------------------------------------
// Issue pipeline - extraction, scoring, credit evaluation, rendering
// Drives one issue from queued to exactly one terminal state
// -----------------------------------------------------------------------

package pipeline

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/folio/internal/common"
	"github.com/ternarybob/folio/internal/interfaces"
	"github.com/ternarybob/folio/internal/models"
	"github.com/ternarybob/folio/internal/services/credits"
	"github.com/ternarybob/folio/internal/services/mailer"
	"github.com/ternarybob/folio/internal/services/scheduler"
	"github.com/ternarybob/folio/internal/services/scoring"
	"github.com/ternarybob/folio/internal/services/titles"
	"github.com/ternarybob/folio/internal/services/urls"
)

// Fixed artifact leaf names under the per-issue blob namespace
const (
	artifactPDF   = "issue.pdf"
	artifactHTML  = "issue.html"
	artifactCover = "cover.png"
)

// DocumentRenderer produces the three artifacts of a ready issue
type DocumentRenderer interface {
	BuildDocument(issue *models.Issue, chapters []models.Chapter) string
	RenderPDF(ctx context.Context, htmlDoc string, issue *models.Issue, chapters []models.Chapter) ([]byte, error)
	RenderCover(ctx context.Context, issue *models.Issue) ([]byte, error)
}

// Processor runs one issue job to a terminal state. Safe to invoke
// concurrently for different issues; per-user credit evaluation is
// serialized inside the ledger.
type Processor struct {
	issues     interfaces.IssueStorage
	links      interfaces.LinkStorage
	users      interfaces.UserStorage
	events     interfaces.EventStorage
	blobs      interfaces.BlobStorage
	scheduler  *scheduler.Scheduler
	ledger     *credits.Ledger
	renderer   DocumentRenderer
	mail       interfaces.MailService
	appBaseURL string
	maxLinks   int
	logger     arbor.ILogger
}

var _ interfaces.IssueProcessor = (*Processor)(nil)

// Deps bundles the processor's collaborators
type Deps struct {
	Issues    interfaces.IssueStorage
	Links     interfaces.LinkStorage
	Users     interfaces.UserStorage
	Events    interfaces.EventStorage
	Blobs     interfaces.BlobStorage
	Scheduler *scheduler.Scheduler
	Ledger    *credits.Ledger
	Renderer  DocumentRenderer
	Mail      interfaces.MailService
}

// NewProcessor creates the issue processor
func NewProcessor(deps Deps, config *common.Config, logger arbor.ILogger) *Processor {
	return &Processor{
		issues:     deps.Issues,
		links:      deps.Links,
		users:      deps.Users,
		events:     deps.Events,
		blobs:      deps.Blobs,
		scheduler:  deps.Scheduler,
		ledger:     deps.Ledger,
		renderer:   deps.Renderer,
		mail:       deps.Mail,
		appBaseURL: config.AppBaseURL,
		maxLinks:   config.Extractor.MaxLinks,
		logger:     logger,
	}
}

// ProcessIssue runs the full pipeline for one issue. Per-link failures
// degrade to placeholder chapters; any failure after the processing
// transition marks the issue failed with an audit event rather than
// leaving it stuck.
func (p *Processor) ProcessIssue(ctx context.Context, issueID string) error {
	startTime := time.Now()

	issue, err := p.issues.GetIssue(ctx, issueID)
	if err != nil {
		// No issue row means no status to update; record what we can
		p.recordEvent(ctx, "", issueID, models.EventIssueFailed, map[string]interface{}{
			"error": fmt.Sprintf("issue not found: %v", err),
		})
		return fmt.Errorf("load issue %s: %w", issueID, err)
	}

	// At-least-once delivery can replay a finished job
	if issue.Status.IsTerminal() {
		p.logger.Info().
			Str("issue_id", issueID).
			Str("status", string(issue.Status)).
			Msg("Issue already terminal, skipping")
		return nil
	}

	if err := p.issues.UpdateStatus(ctx, issueID, models.IssueStatusProcessing); err != nil {
		return p.fail(ctx, issue, 0, fmt.Errorf("mark processing: %w", err))
	}

	batch, err := p.links.GetLinks(ctx, issueID)
	if err != nil {
		return p.fail(ctx, issue, 0, fmt.Errorf("load links: %w", err))
	}
	batch = p.normalizeLinks(batch)

	chapters := p.scheduler.ExtractAll(ctx, batch)
	score := scoring.ScoreChapters(chapters)

	p.logger.Info().
		Str("issue_id", issueID).
		Int("links", len(batch)).
		Int("score", score).
		Msg("Extraction complete")

	decision, err := p.ledger.Evaluate(ctx, issue.UserID, score)
	if err != nil {
		return p.fail(ctx, issue, score, fmt.Errorf("evaluate credits: %w", err))
	}
	if !decision.Accepted {
		return p.reject(ctx, issue, score, decision.Available)
	}

	if err := p.resolveTitle(ctx, issue, batch, chapters); err != nil {
		return p.fail(ctx, issue, score, err)
	}

	if err := p.renderAndStore(ctx, issue, chapters); err != nil {
		return p.fail(ctx, issue, score, err)
	}

	if err := p.issues.UpdateResult(ctx, issueID, models.IssueStatusReady, score); err != nil {
		return p.fail(ctx, issue, score, fmt.Errorf("mark ready: %w", err))
	}

	p.recordEvent(ctx, issue.UserID, issueID, models.EventIssueCompleted, map[string]interface{}{
		"score":             score,
		"credits_remaining": decision.Remaining,
		"chapters":          len(chapters),
	})

	p.notify(issue)

	p.logger.Info().
		Str("issue_id", issueID).
		Int("score", score).
		Dur("duration", time.Since(startTime)).
		Msg("Issue ready")
	return nil
}

// normalizeLinks canonicalizes stored URLs, silently dropping malformed
// entries and duplicates, and re-applies the per-issue link cap. Links
// rejected only by the host policy are kept as-is: the scheduler turns
// them into distinct blocked chapters instead of making them vanish.
func (p *Processor) normalizeLinks(batch []*models.Link) []*models.Link {
	seen := make(map[string]struct{}, len(batch))
	var out []*models.Link
	for _, link := range batch {
		key := link.URL
		if canonical, ok := urls.Canonicalize(link.URL); ok {
			link.URL = canonical
			key = canonical
		} else if !parseableHTTPURL(link.URL) {
			p.logger.Warn().
				Str("link_id", link.ID).
				Str("url", link.URL).
				Msg("Dropping malformed link")
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, link)
		if p.maxLinks > 0 && len(out) == p.maxLinks {
			break
		}
	}
	return out
}

func parseableHTTPURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	return err == nil && (u.Scheme == "http" || u.Scheme == "https")
}

// resolveTitle runs title resolution once after extraction and persists
// the result only when it changes the stored title.
func (p *Processor) resolveTitle(ctx context.Context, issue *models.Issue, batch []*models.Link, chapters []models.Chapter) error {
	firstLinkURL := ""
	if len(batch) > 0 {
		firstLinkURL = batch[0].URL
	}
	firstChapterTitle := ""
	if len(chapters) > 0 {
		firstChapterTitle = chapters[0].Title
	}

	resolved := titles.Resolve(issue.Title, firstLinkURL, firstChapterTitle)
	if resolved == issue.Title {
		return nil
	}
	if err := p.issues.UpdateTitle(ctx, issue.ID, resolved); err != nil {
		return fmt.Errorf("update title: %w", err)
	}
	issue.Title = resolved
	return nil
}

// renderAndStore produces and uploads all three artifacts, then the asset
// record. Any write failure here fails the job.
func (p *Processor) renderAndStore(ctx context.Context, issue *models.Issue, chapters []models.Chapter) error {
	htmlDoc := p.renderer.BuildDocument(issue, chapters)

	pdfData, err := p.renderer.RenderPDF(ctx, htmlDoc, issue, chapters)
	if err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}
	coverData, err := p.renderer.RenderCover(ctx, issue)
	if err != nil {
		return fmt.Errorf("render cover: %w", err)
	}

	pdfPath := issue.ID + "/" + artifactPDF
	htmlPath := issue.ID + "/" + artifactHTML
	coverPath := issue.ID + "/" + artifactCover

	if err := p.blobs.Upload(ctx, pdfPath, "application/pdf", pdfData); err != nil {
		return fmt.Errorf("upload pdf: %w", err)
	}
	if err := p.blobs.Upload(ctx, htmlPath, "text/html", []byte(htmlDoc)); err != nil {
		return fmt.Errorf("upload html: %w", err)
	}
	if err := p.blobs.Upload(ctx, coverPath, "image/png", coverData); err != nil {
		return fmt.Errorf("upload cover: %w", err)
	}

	record := &models.AssetRecord{
		IssueID:   issue.ID,
		PDFPath:   pdfPath,
		HTMLPath:  htmlPath,
		CoverPath: coverPath,
		UpdatedAt: time.Now().UTC(),
	}
	if err := p.issues.SaveAssets(ctx, record); err != nil {
		return fmt.Errorf("save asset record: %w", err)
	}
	return nil
}

// reject writes the rejected terminal state. Not an error outcome: the
// score is persisted so the caller can explain the rejection.
func (p *Processor) reject(ctx context.Context, issue *models.Issue, score, available int) error {
	if err := p.issues.UpdateResult(ctx, issue.ID, models.IssueStatusRejected, score); err != nil {
		return p.fail(ctx, issue, score, fmt.Errorf("mark rejected: %w", err))
	}
	p.recordEvent(ctx, issue.UserID, issue.ID, models.EventIssueRejected, map[string]interface{}{
		"score":             score,
		"credits_available": available,
	})
	p.logger.Info().
		Str("issue_id", issue.ID).
		Int("score", score).
		Int("available", available).
		Msg("Issue rejected for insufficient credits")
	return nil
}

// fail writes the failed terminal state and surfaces the original error
func (p *Processor) fail(ctx context.Context, issue *models.Issue, score int, cause error) error {
	p.logger.Error().Err(cause).
		Str("issue_id", issue.ID).
		Msg("Issue processing failed")

	if err := p.issues.UpdateResult(ctx, issue.ID, models.IssueStatusFailed, score); err != nil {
		p.logger.Error().Err(err).
			Str("issue_id", issue.ID).
			Msg("Failed to mark issue failed")
	}
	p.recordEvent(ctx, issue.UserID, issue.ID, models.EventIssueFailed, map[string]interface{}{
		"error": cause.Error(),
	})
	return cause
}

func (p *Processor) recordEvent(ctx context.Context, userID, issueID, eventType string, metadata map[string]interface{}) {
	if err := p.events.SaveEvent(ctx, models.NewEvent(userID, issueID, eventType, metadata)); err != nil {
		p.logger.Warn().Err(err).
			Str("issue_id", issueID).
			Str("type", eventType).
			Msg("Failed to record audit event")
	}
}

// notify sends the completion email fire-and-forget. A send failure never
// affects the job outcome.
func (p *Processor) notify(issue *models.Issue) {
	if p.mail == nil || !p.mail.IsConfigured() {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		user, err := p.users.GetUser(ctx, issue.UserID)
		if err != nil || user.Email == "" {
			return
		}

		notification := mailer.BuildReadyNotification(issue.Title, issue.ID, p.appBaseURL)
		if err := p.mail.SendHTMLEmail(ctx, user.Email, notification.Subject, notification.HTMLBody, notification.TextBody); err != nil {
			p.logger.Warn().Err(err).
				Str("issue_id", issue.ID).
				Msg("Failed to send completion email")
			return
		}
		p.logger.Info().
			Str("issue_id", issue.ID).
			Msg("Completion email sent")
	}()
}
