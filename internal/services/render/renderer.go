// -----------------------------------------------------------------------
// Document renderer - HTML, paginated PDF and cover image artifacts
// -----------------------------------------------------------------------

package render

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/folio/internal/models"
	"github.com/ternarybob/folio/internal/services/browser"
)

// A4 in inches for the print backend
const (
	paperWidthIn  = 8.27
	paperHeightIn = 11.69
)

const (
	renderTimeout = 30 * time.Second

	coverWidth  = 900
	coverHeight = 1200
	coverScale  = 2.0
)

// Renderer produces the three artifacts of a ready issue. The browser
// print path gives real pagination and styling; when it fails, a plain
// text PDF is generated instead so a ready issue always has all three
// artifacts.
type Renderer struct {
	browser *browser.Handle
	logger  arbor.ILogger
	tempDir string
	now     func() time.Time
}

// New creates a renderer bound to the shared browser handle
func New(handle *browser.Handle, logger arbor.ILogger) *Renderer {
	return &Renderer{
		browser: handle,
		logger:  logger,
		tempDir: os.TempDir(),
		now:     time.Now,
	}
}

// RenderPDF prints the document to paginated A4 PDF bytes and validates
// them. On browser or validation failure it falls back to the plain-text
// rendition.
func (r *Renderer) RenderPDF(ctx context.Context, htmlDoc string, issue *models.Issue, chapters []models.Chapter) ([]byte, error) {
	data, err := r.printToPDF(ctx, htmlDoc)
	if err == nil {
		if err = validatePDF(data); err == nil {
			return data, nil
		}
	}
	r.logger.Warn().Err(err).
		Str("issue_id", issue.ID).
		Msg("Browser PDF print failed, using plain-text fallback")

	return r.fallbackPDF(issue, chapters)
}

// printToPDF loads the document in a fresh tab and runs the print backend
func (r *Renderer) printToPDF(ctx context.Context, htmlDoc string) ([]byte, error) {
	tabCtx, cancel, err := r.browser.NewTab(ctx, renderTimeout)
	if err != nil {
		return nil, err
	}
	defer cancel()

	docPath, cleanup, err := r.writeTempDocument(htmlDoc)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	var data []byte
	err = chromedp.Run(tabCtx,
		chromedp.Navigate("file://"+docPath),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var printErr error
			data, _, printErr = page.PrintToPDF().
				WithPaperWidth(paperWidthIn).
				WithPaperHeight(paperHeightIn).
				WithPrintBackground(true).
				WithPreferCSSPageSize(true).
				Do(ctx)
			return printErr
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("print to pdf: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("print to pdf: empty output")
	}
	return data, nil
}

// RenderCover screenshots the standalone cover page as a PNG
func (r *Renderer) RenderCover(ctx context.Context, issue *models.Issue) ([]byte, error) {
	tabCtx, cancel, err := r.browser.NewTab(ctx, renderTimeout)
	if err != nil {
		return nil, err
	}
	defer cancel()

	docPath, cleanup, err := r.writeTempDocument(r.coverDocument(issue))
	if err != nil {
		return nil, err
	}
	defer cleanup()

	var data []byte
	err = chromedp.Run(tabCtx,
		chromedp.EmulateViewport(coverWidth, coverHeight, chromedp.EmulateScale(coverScale)),
		chromedp.Navigate("file://"+docPath),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.CaptureScreenshot(&data),
	)
	if err != nil {
		return nil, fmt.Errorf("capture cover: %w", err)
	}
	return data, nil
}

// writeTempDocument persists a document so the browser can load it over
// file:// rather than an oversized data URL.
func (r *Renderer) writeTempDocument(htmlDoc string) (string, func(), error) {
	docPath := filepath.Join(r.tempDir, fmt.Sprintf("folio-render-%s.html", uuid.New().String()))
	if err := os.WriteFile(docPath, []byte(htmlDoc), 0644); err != nil {
		return "", nil, fmt.Errorf("write render temp file: %w", err)
	}
	return docPath, func() { os.Remove(docPath) }, nil
}

// validatePDF runs a structural check over the printed bytes
func validatePDF(data []byte) error {
	conf := model.NewDefaultConfiguration()
	if err := api.Validate(bytes.NewReader(data), conf); err != nil {
		return fmt.Errorf("pdf validation: %w", err)
	}
	return nil
}
