package extract

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// maxImagesPerChapter caps embedded images from a single source. Excess
// <img> nodes are truncated from the sanitized tree before counting.
const maxImagesPerChapter = 12

// Tags kept during sanitization. Everything else is either stripped
// entirely (scripts, forms and other active content) or unwrapped so its
// text survives.
var allowedTags = map[string]struct{}{
	"a": {}, "abbr": {}, "article": {}, "aside": {}, "b": {}, "blockquote": {},
	"br": {}, "caption": {}, "cite": {}, "code": {}, "dd": {}, "div": {},
	"dl": {}, "dt": {}, "em": {}, "figcaption": {}, "figure": {}, "h1": {},
	"h2": {}, "h3": {}, "h4": {}, "h5": {}, "h6": {}, "hr": {}, "i": {},
	"img": {}, "kbd": {}, "li": {}, "main": {}, "mark": {}, "ol": {},
	"p": {}, "pre": {}, "q": {}, "s": {}, "samp": {}, "section": {},
	"small": {}, "span": {}, "strong": {}, "sub": {}, "sup": {},
	"table": {}, "tbody": {}, "td": {}, "tfoot": {}, "th": {}, "thead": {},
	"time": {}, "tr": {}, "u": {}, "ul": {}, "var": {},
}

// Tags removed together with their content.
var droppedTags = map[string]struct{}{
	"script": {}, "style": {}, "noscript": {}, "iframe": {}, "object": {},
	"embed": {}, "form": {}, "input": {}, "button": {}, "select": {},
	"textarea": {}, "link": {}, "meta": {}, "svg": {}, "canvas": {},
	"audio": {}, "video": {},
}

// Attributes kept per tag.
var allowedAttrs = map[string]map[string]struct{}{
	"a":    {"href": {}, "name": {}, "target": {}, "rel": {}},
	"img":  {"src": {}, "alt": {}},
	"code": {"class": {}},
}

// SanitizedContent is an HTML fragment cleaned against the allow-list,
// with metrics recomputed from the sanitized tree so counts stay
// consistent with what is actually rendered.
type SanitizedContent struct {
	HTML       string
	WordCount  int
	ImageCount int
	CodeCount  int
}

// Sanitize cleans an untrusted HTML fragment and measures it.
func Sanitize(fragment string) (SanitizedContent, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return SanitizedContent{}, fmt.Errorf("failed to parse fragment: %w", err)
	}
	body := doc.Find("body")

	// Remove active content outright
	body.Find("*").Each(func(_ int, s *goquery.Selection) {
		tag := goquery.NodeName(s)
		if _, drop := droppedTags[tag]; drop {
			s.Remove()
		}
	})

	// Unwrap disallowed tags, keeping their children
	for {
		changed := false
		body.Find("*").Each(func(_ int, s *goquery.Selection) {
			tag := goquery.NodeName(s)
			if _, ok := allowedTags[tag]; ok {
				return
			}
			s.ReplaceWithSelection(s.Contents())
			changed = true
		})
		if !changed {
			break
		}
	}

	// Strip attributes not on the allow-list, and unsafe href/src values
	body.Find("*").Each(func(_ int, s *goquery.Selection) {
		node := s.Get(0)
		tag := goquery.NodeName(s)
		allowed := allowedAttrs[tag]

		kept := node.Attr[:0]
		for _, attr := range node.Attr {
			key := strings.ToLower(attr.Key)
			if strings.HasPrefix(key, "on") {
				continue
			}
			if _, ok := allowed[key]; !ok {
				continue
			}
			if (key == "href" || key == "src") && isUnsafeRef(attr.Val) {
				continue
			}
			kept = append(kept, attr)
		}
		node.Attr = kept
	})

	// Cap embedded images by truncating excess nodes before counting
	images := body.Find("img")
	images.Each(func(i int, s *goquery.Selection) {
		if i >= maxImagesPerChapter {
			s.Remove()
		}
	})
	imageCount := images.Length()
	if imageCount > maxImagesPerChapter {
		imageCount = maxImagesPerChapter
	}

	codeCount := body.Find("pre code").Length()
	wordCount := len(strings.Fields(body.Text()))

	html, err := body.Html()
	if err != nil {
		return SanitizedContent{}, fmt.Errorf("failed to serialize fragment: %w", err)
	}

	return SanitizedContent{
		HTML:       html,
		WordCount:  wordCount,
		ImageCount: imageCount,
		CodeCount:  codeCount,
	}, nil
}

func isUnsafeRef(val string) bool {
	v := strings.ToLower(strings.TrimSpace(val))
	return strings.HasPrefix(v, "javascript:") || strings.HasPrefix(v, "data:text/html") || strings.HasPrefix(v, "vbscript:")
}
