// -----------------------------------------------------------------------
// Extraction service - dispatches links to the article or short-post path
// -----------------------------------------------------------------------

package extract

import (
	"context"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/folio/internal/common"
	"github.com/ternarybob/folio/internal/interfaces"
	"github.com/ternarybob/folio/internal/models"
	"github.com/ternarybob/folio/internal/services/browser"
	"github.com/ternarybob/folio/internal/services/urls"
)

// Service routes each link to the extractor matching its source type.
// Both extractors share one per-host rate limiter so parallel workers do
// not multiply the outbound request rate.
type Service struct {
	articles *ArticleExtractor
	posts    *ShortPostExtractor
	logger   arbor.ILogger
}

var _ interfaces.Extractor = (*Service)(nil)

// NewService creates the extraction service
func NewService(config common.ExtractorConfig, handle *browser.Handle, logger arbor.ILogger) *Service {
	limiter := newHostLimiter(config.RequestsPerHost)
	return &Service{
		articles: NewArticleExtractor(config, limiter, logger),
		posts:    NewShortPostExtractor(config, handle, limiter, logger),
		logger:   logger,
	}
}

// Extract produces a chapter for the given canonical URL
func (s *Service) Extract(ctx context.Context, rawURL string) (models.Chapter, error) {
	switch urls.DetectSourceType(rawURL) {
	case models.SourceTypeShortPost:
		return s.posts.Extract(ctx, rawURL)
	default:
		return s.articles.Extract(ctx, rawURL)
	}
}
