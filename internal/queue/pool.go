// -----------------------------------------------------------------------
// Worker pool - polls the queue and drives the issue processor
// -----------------------------------------------------------------------

package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/folio/internal/interfaces"
)

// Pool runs a fixed number of polling workers against the queue. A
// message is acknowledged only after the processor returns cleanly;
// otherwise the visibility timeout redelivers it and the processor's
// terminal-state check makes the replay a no-op.
type Pool struct {
	queue        *Queue
	processor    interfaces.IssueProcessor
	pollInterval time.Duration
	concurrency  int
	logger       arbor.ILogger

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

// NewPool creates a worker pool
func NewPool(queue *Queue, processor interfaces.IssueProcessor, pollInterval time.Duration, concurrency int, logger arbor.ILogger) *Pool {
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	if concurrency < 1 {
		concurrency = 1
	}
	return &Pool{
		queue:        queue,
		processor:    processor,
		pollInterval: pollInterval,
		concurrency:  concurrency,
		logger:       logger,
	}
}

// Start launches the workers. Idempotent until Stop.
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true

	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	for i := 0; i < p.concurrency; i++ {
		p.wg.Add(1)
		go p.worker(runCtx, i)
	}

	p.logger.Info().
		Int("concurrency", p.concurrency).
		Dur("poll_interval", p.pollInterval).
		Msg("Job workers started")
}

// Stop cancels the workers and waits for in-flight jobs to finish
func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	cancel := p.cancel
	p.mu.Unlock()

	cancel()
	p.wg.Wait()
	p.logger.Info().Msg("Job workers stopped")
}

func (p *Pool) worker(ctx context.Context, id int) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		msg, ack, err := p.queue.Receive(ctx)
		if err != nil {
			if !errors.Is(err, ErrNoMessage) {
				p.logger.Error().Err(err).Int("worker", id).Msg("Queue receive failed")
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(p.pollInterval):
			}
			continue
		}

		p.logger.Debug().
			Int("worker", id).
			Str("issue_id", msg.IssueID).
			Msg("Processing job")

		if err := p.processor.ProcessIssue(ctx, msg.IssueID); err != nil {
			// Leave the message unacked; the terminal-state check makes
			// the redelivery harmless.
			p.logger.Error().Err(err).
				Int("worker", id).
				Str("issue_id", msg.IssueID).
				Msg("Job processing failed")
			continue
		}

		if err := ack(); err != nil {
			p.logger.Warn().Err(err).
				Str("issue_id", msg.IssueID).
				Msg("Failed to acknowledge message")
		}
	}
}
