// -----------------------------------------------------------------------
// Syntax highlighting - chroma pass over fenced code blocks
// -----------------------------------------------------------------------

package render

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/alecthomas/chroma/v2"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/folio/internal/models"
)

// Chroma style per issue theme
const (
	darkSyntaxStyle  = "tokyonight-night"
	lightSyntaxStyle = "github"
)

// syntaxStyleFor maps the issue theme to a chroma style name
func syntaxStyleFor(theme models.Theme) string {
	if theme == models.ThemeDeveloper {
		return darkSyntaxStyle
	}
	return lightSyntaxStyle
}

// highlightCodeBlocks rewrites every <pre><code class="language-X"> block
// with inline-styled highlighted markup. A block that fails to highlight
// is left as-is; one bad block never aborts the render.
func highlightCodeBlocks(fragment string, styleName string, logger arbor.ILogger) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return fragment
	}

	style := styles.Get(styleName)
	if style == nil {
		style = styles.Fallback
	}
	formatter := chromahtml.New(chromahtml.WithClasses(false))

	doc.Find("pre code").Each(func(_ int, code *goquery.Selection) {
		highlighted, err := highlightBlock(code, style, formatter)
		if err != nil {
			logger.Warn().Err(err).Msg("Skipping code block that failed to highlight")
			return
		}
		code.Parent().ReplaceWithHtml(highlighted)
	})

	out, err := doc.Find("body").Html()
	if err != nil {
		return fragment
	}
	return out
}

func highlightBlock(code *goquery.Selection, style *chroma.Style, formatter *chromahtml.Formatter) (string, error) {
	lexer := lexers.Get(languageOf(code))
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	iterator, err := lexer.Tokenise(nil, code.Text())
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := formatter.Format(&buf, style, iterator); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// languageOf pulls the language from a class like "language-go"
func languageOf(code *goquery.Selection) string {
	class, _ := code.Attr("class")
	for _, part := range strings.Fields(class) {
		if lang, ok := strings.CutPrefix(part, "language-"); ok {
			return lang
		}
	}
	return ""
}
