// -----------------------------------------------------------------------
// HTML document assembly - cover, contents, chapters, attribution
// -----------------------------------------------------------------------

package render

import (
	"fmt"
	"html"
	"strings"

	"github.com/ternarybob/folio/internal/models"
)

const attributionFooter = "Personal use only. Sources are attributed to the original authors."

// Shared page layout; each major section gets its own A4 page
const baseCSS = `
@page { size: A4; margin: 18mm; }
body { margin: 0; line-height: 1.6; }
section { page-break-after: always; }
section:last-of-type { page-break-after: avoid; }
.cover { display: flex; flex-direction: column; justify-content: center; min-height: 80vh; }
.cover .eyebrow { text-transform: uppercase; letter-spacing: 0.2em; font-size: 0.9em; opacity: 0.7; }
.cover h1 { font-size: 2.4em; margin-bottom: 0.2em; }
.cover .date { font-size: 1.1em; opacity: 0.7; }
.toc ol { padding-left: 1.4em; }
.toc li { margin: 0.4em 0; }
.chapter h2 { font-size: 1.6em; margin-bottom: 0.2em; }
.source { font-size: 0.85em; opacity: 0.7; word-break: break-all; margin-bottom: 1.2em; }
.chapter img { max-width: 100%; height: auto; }
.chapter pre { padding: 0.8em; overflow-x: auto; border-radius: 4px; }
blockquote { border-left: 3px solid currentColor; margin-left: 0; padding-left: 1em; opacity: 0.9; }
footer { font-size: 0.8em; opacity: 0.6; margin-top: 2em; }
`

const journalCSS = `
body { font-family: Georgia, 'Times New Roman', serif; color: #1a1a1a; background: #ffffff; }
a { color: #1a5276; }
.chapter pre { background: #f6f8fa; }
`

const developerCSS = `
body { font-family: 'Helvetica Neue', Arial, sans-serif; color: #c0caf5; background: #1a1b26; }
a { color: #7aa2f7; }
h1, h2 { color: #e0e6ff; }
.chapter pre { background: #16161e; }
`

// BuildDocument assembles the single self-contained HTML document for an
// issue: cover page, table of contents, one section per chapter with a
// source attribution line, and the usage footer. Chapters arrive already
// ordered; code blocks are highlighted here so the PDF and HTML artifacts
// share identical markup.
func (r *Renderer) BuildDocument(issue *models.Issue, chapters []models.Chapter) string {
	theme := issue.Theme
	date := r.now().UTC().Format("January 2, 2006")

	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n")
	b.WriteString("<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&b, "<title>%s</title>\n", html.EscapeString(issue.Title))
	b.WriteString("<style>")
	b.WriteString(baseCSS)
	if theme == models.ThemeDeveloper {
		b.WriteString(developerCSS)
	} else {
		b.WriteString(journalCSS)
	}
	b.WriteString("</style>\n</head>\n<body>\n")

	// Cover
	b.WriteString("<section class=\"cover\">\n")
	b.WriteString("<div class=\"eyebrow\">Issue</div>\n")
	fmt.Fprintf(&b, "<h1>%s</h1>\n", html.EscapeString(issue.Title))
	fmt.Fprintf(&b, "<div class=\"date\">Curated &middot; %s</div>\n", date)
	b.WriteString("</section>\n")

	// Contents
	b.WriteString("<section class=\"toc\">\n<h2>Contents</h2>\n<ol>\n")
	for _, chapter := range chapters {
		fmt.Fprintf(&b, "<li>%s</li>\n", html.EscapeString(chapter.Title))
	}
	b.WriteString("</ol>\n</section>\n")

	// Chapters
	styleName := syntaxStyleFor(theme)
	for i, chapter := range chapters {
		b.WriteString("<section class=\"chapter\">\n")
		fmt.Fprintf(&b, "<h2>%d. %s</h2>\n", i+1, html.EscapeString(chapter.Title))
		fmt.Fprintf(&b, "<div class=\"source\">Source: <a href=\"%s\">%s</a></div>\n",
			html.EscapeString(chapter.SourceURL), html.EscapeString(chapter.SourceURL))
		b.WriteString(highlightCodeBlocks(chapter.Content, styleName, r.logger))
		b.WriteString("\n</section>\n")
	}

	fmt.Fprintf(&b, "<footer>%s</footer>\n", attributionFooter)
	b.WriteString("</body>\n</html>\n")
	return b.String()
}

// coverDocument is the standalone page screenshotted into cover.png
func (r *Renderer) coverDocument(issue *models.Issue) string {
	date := r.now().UTC().Format("January 2, 2006")

	background := "#ffffff"
	color := "#1a1a1a"
	accent := "#1a5276"
	font := "Georgia, 'Times New Roman', serif"
	if issue.Theme == models.ThemeDeveloper {
		background = "#1a1b26"
		color = "#c0caf5"
		accent = "#7aa2f7"
		font = "'Helvetica Neue', Arial, sans-serif"
	}

	return fmt.Sprintf(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<style>
html, body { margin: 0; width: 100%%; height: 100%%; }
body { font-family: %s; background: %s; color: %s;
  display: flex; flex-direction: column; justify-content: center; padding: 60px; box-sizing: border-box; }
.rule { width: 120px; height: 4px; background: %s; margin-bottom: 40px; }
.eyebrow { text-transform: uppercase; letter-spacing: 0.3em; font-size: 18px; opacity: 0.7; margin-bottom: 16px; }
h1 { font-size: 52px; line-height: 1.2; margin: 0 0 24px 0; }
.date { font-size: 22px; opacity: 0.7; }
</style>
</head>
<body>
<div class="rule"></div>
<div class="eyebrow">Issue</div>
<h1>%s</h1>
<div class="date">Curated &middot; %s</div>
</body>
</html>`, font, background, color, accent, html.EscapeString(issue.Title), date)
}
