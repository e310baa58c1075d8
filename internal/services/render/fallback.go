// -----------------------------------------------------------------------
// Plain-text PDF fallback - used when the browser print path fails
// -----------------------------------------------------------------------

package render

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-pdf/fpdf"
	"github.com/ternarybob/folio/internal/models"
)

// fallbackPDF renders the issue as unstyled text so a ready issue always
// ships a PDF artifact even without a working browser.
func (r *Renderer) fallbackPDF(issue *models.Issue, chapters []models.Chapter) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 20, 15)
	pdf.SetAutoPageBreak(true, 20)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	// Cover
	pdf.AddPage()
	pdf.Ln(60)
	pdf.SetFont("Arial", "B", 24)
	pdf.MultiCell(0, 12, tr(issue.Title), "", "L", false)
	pdf.Ln(4)
	pdf.SetFont("Arial", "", 12)
	pdf.MultiCell(0, 7, r.now().UTC().Format("January 2, 2006"), "", "L", false)

	// Contents
	pdf.AddPage()
	pdf.SetFont("Arial", "B", 16)
	pdf.MultiCell(0, 9, "Contents", "", "L", false)
	pdf.Ln(2)
	pdf.SetFont("Arial", "", 11)
	for i, chapter := range chapters {
		pdf.MultiCell(0, 6, tr(fmt.Sprintf("%d. %s", i+1, chapter.Title)), "", "L", false)
	}

	for i, chapter := range chapters {
		pdf.AddPage()
		pdf.SetFont("Arial", "B", 16)
		pdf.MultiCell(0, 9, tr(fmt.Sprintf("%d. %s", i+1, chapter.Title)), "", "L", false)
		pdf.SetFont("Arial", "I", 9)
		pdf.MultiCell(0, 5, tr("Source: "+chapter.SourceURL), "", "L", false)
		pdf.Ln(3)
		pdf.SetFont("Arial", "", 10)
		pdf.MultiCell(0, 5, tr(htmlToText(chapter.Content)), "", "L", false)
	}

	pdf.Ln(8)
	pdf.SetFont("Arial", "I", 8)
	pdf.MultiCell(0, 4, attributionFooter, "", "L", false)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("fallback pdf output: %w", err)
	}
	return buf.Bytes(), nil
}

// htmlToText flattens a sanitized fragment to readable paragraphs
func htmlToText(fragment string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return fragment
	}

	var parts []string
	doc.Find("body").Children().Each(func(_ int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		if text != "" {
			parts = append(parts, text)
		}
	})
	if len(parts) == 0 {
		return strings.TrimSpace(doc.Text())
	}
	return strings.Join(parts, "\n\n")
}
