// -----------------------------------------------------------------------
// Extraction scheduler - bounded worker pool with index-ordered results
// -----------------------------------------------------------------------

package scheduler

import (
	"context"
	"net/url"
	"sync"
	"sync/atomic"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/folio/internal/interfaces"
	"github.com/ternarybob/folio/internal/models"
	"github.com/ternarybob/folio/internal/services/urls"
)

// Scheduler fans a link list out over a bounded pool of workers. Results
// land in preallocated slots by position, so the chapter sequence follows
// link order no matter which extraction finishes first. Per-link failures
// degrade to placeholder chapters; the batch itself never fails.
type Scheduler struct {
	extractor   interfaces.Extractor
	links       interfaces.LinkStorage
	concurrency int
	logger      arbor.ILogger
}

// New creates a scheduler with the given worker bound
func New(extractor interfaces.Extractor, links interfaces.LinkStorage, concurrency int, logger arbor.ILogger) *Scheduler {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Scheduler{
		extractor:   extractor,
		links:       links,
		concurrency: concurrency,
		logger:      logger,
	}
}

// ExtractAll processes every link exactly once and returns chapters in
// link order. The pool size is clamped to the number of links.
func (s *Scheduler) ExtractAll(ctx context.Context, batch []*models.Link) []models.Chapter {
	if len(batch) == 0 {
		return nil
	}

	workers := s.concurrency
	if workers > len(batch) {
		workers = len(batch)
	}

	chapters := make([]models.Chapter, len(batch))
	var cursor atomic.Int64
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				idx := int(cursor.Add(1)) - 1
				if idx >= len(batch) {
					return
				}
				chapters[idx] = s.processLink(ctx, batch[idx])
			}
		}()
	}
	wg.Wait()

	return chapters
}

// processLink runs the per-link pipeline: safety re-check, extraction,
// degradation on error, then the parsed-summary side effect.
func (s *Scheduler) processLink(ctx context.Context, link *models.Link) models.Chapter {
	chapter := s.extract(ctx, link)

	if err := s.links.SaveParsedSummary(ctx, link.ID, chapter.Summary()); err != nil {
		s.logger.Warn().Err(err).
			Str("link_id", link.ID).
			Msg("Failed to persist parsed summary")
	}
	return chapter
}

func (s *Scheduler) extract(ctx context.Context, link *models.Link) models.Chapter {
	// Host policy is re-checked at execution time: DNS and redirect
	// targets can change between submission and processing.
	if !hostAllowed(link.URL) {
		s.logger.Warn().
			Str("link_id", link.ID).
			Str("url", link.URL).
			Msg("Link blocked by host policy at execution time")
		return models.BlockedChapter(link.URL)
	}

	chapter, err := s.extractor.Extract(ctx, link.URL)
	if err != nil {
		s.logger.Warn().Err(err).
			Str("link_id", link.ID).
			Str("url", link.URL).
			Msg("Extraction failed, substituting degraded chapter")
		return models.UnavailableChapter(link.URL)
	}
	return chapter
}

func hostAllowed(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return urls.IsSafeHost(u.Hostname())
}
