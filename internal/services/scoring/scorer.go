// -----------------------------------------------------------------------
// Complexity scoring - aggregated chapter metrics to an integer cost
// -----------------------------------------------------------------------

package scoring

import "github.com/ternarybob/folio/internal/models"

const (
	wordsPerUnit = 500
	imageWeight  = 2
	imageCeiling = 12
	codeWeight   = 2
	codeCeiling  = 25
)

// Score converts aggregated metrics into the job's complexity cost. Word
// count dominates long reads; images and code blocks are weighted flatly
// but capped so a single heavy source cannot inflate the cost without
// bound; each short-post unit costs one.
func Score(m models.Metrics) int {
	score := ceilDiv(m.Words, wordsPerUnit)
	score += imageWeight * capAt(m.Images, imageCeiling)
	score += codeWeight * capAt(m.Code, codeCeiling)
	score += m.Posts
	return score
}

// ScoreChapters aggregates the chapters and scores the sum. Because the
// aggregate is a plain sum, the result is independent of chapter order.
func ScoreChapters(chapters []models.Chapter) int {
	return Score(models.AggregateMetrics(chapters))
}

func ceilDiv(n, d int) int {
	if n <= 0 {
		return 0
	}
	return (n + d - 1) / d
}

func capAt(n, ceiling int) int {
	if n < 0 {
		return 0
	}
	if n > ceiling {
		return ceiling
	}
	return n
}
