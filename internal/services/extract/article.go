// -----------------------------------------------------------------------
// Article extraction - fetch, readability pass, sanitize, measure
// -----------------------------------------------------------------------

package extract

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"codeberg.org/readeck/go-readability"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/folio/internal/common"
	"github.com/ternarybob/folio/internal/models"
)

// maxArticleBody bounds the response body read for a single article (5MB)
const maxArticleBody = 5 * 1024 * 1024

// ArticleExtractor turns a regular web page into a chapter. Network and
// HTTP failures are returned as errors for the caller to degrade; a page
// that fetches fine but yields no readable content produces a placeholder
// chapter instead, since that is a property of the page, not a fault.
type ArticleExtractor struct {
	client  *http.Client
	limiter *hostLimiter
	config  common.ExtractorConfig
	logger  arbor.ILogger
}

// NewArticleExtractor creates an article extractor
func NewArticleExtractor(config common.ExtractorConfig, limiter *hostLimiter, logger arbor.ILogger) *ArticleExtractor {
	return &ArticleExtractor{
		client: &http.Client{
			Timeout: config.ArticleTimeout + 2*time.Second,
		},
		limiter: limiter,
		config:  config,
		logger:  logger,
	}
}

// Extract fetches the page and produces a sanitized chapter
func (e *ArticleExtractor) Extract(ctx context.Context, rawURL string) (models.Chapter, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return models.Chapter{}, fmt.Errorf("invalid article url: %w", err)
	}

	fetchCtx, cancel := context.WithTimeout(ctx, e.config.ArticleTimeout)
	defer cancel()

	if err := e.limiter.wait(fetchCtx, parsed.Hostname()); err != nil {
		return models.Chapter{}, fmt.Errorf("rate limit wait: %w", err)
	}

	body, err := e.fetch(fetchCtx, rawURL)
	if err != nil {
		return models.Chapter{}, err
	}

	article, err := readability.FromReader(strings.NewReader(body), parsed)
	if err != nil || strings.TrimSpace(article.Content) == "" {
		e.logger.Warn().Str("url", rawURL).Msg("Readability produced no content")
		return unparsableChapter(rawURL, parsed.Hostname()), nil
	}

	sanitized, err := Sanitize(article.Content)
	if err != nil {
		return models.Chapter{}, fmt.Errorf("sanitize article: %w", err)
	}

	title := strings.TrimSpace(article.Title)
	if title == "" {
		title = parsed.Hostname()
	}

	return models.Chapter{
		Title:      title,
		Content:    sanitized.HTML,
		WordCount:  sanitized.WordCount,
		ImageCount: sanitized.ImageCount,
		CodeCount:  sanitized.CodeCount,
		SourceURL:  rawURL,
	}, nil
}

func (e *ArticleExtractor) fetch(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", e.config.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch article: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("fetch article: unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxArticleBody))
	if err != nil {
		return "", fmt.Errorf("read article body: %w", err)
	}
	return string(data), nil
}

// unparsableChapter stands in for a page that fetched but had no readable
// article content. Carries zero metrics so it does not inflate the score.
func unparsableChapter(sourceURL, hostname string) models.Chapter {
	return models.Chapter{
		Title:     hostname,
		Content:   "<p>Unable to parse this article.</p>",
		SourceURL: sourceURL,
	}
}
