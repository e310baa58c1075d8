// -----------------------------------------------------------------------
// Shared headless browser handle
// Lazily started once, reused across extractions and jobs, torn down on
// process shutdown
// -----------------------------------------------------------------------

package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"
)

// Config holds browser startup options
type Config struct {
	UserAgent string
	Headless  bool
	NoSandbox bool
}

// Handle owns the process-wide browser instance. It is an explicitly owned
// resource passed to the components that need it, not a hidden global.
type Handle struct {
	config          Config
	logger          arbor.ILogger
	mu              sync.Mutex
	browserCtx      context.Context
	browserCancel   context.CancelFunc
	allocatorCancel context.CancelFunc
	started         bool
	closed          bool
}

// New creates an unstarted browser handle. The browser process launches on
// first Acquire.
func New(config Config, logger arbor.ILogger) *Handle {
	if config.UserAgent == "" {
		config.UserAgent = "FolioBot/1.0"
	}
	return &Handle{
		config: config,
		logger: logger,
	}
}

// Acquire returns the shared browser context, starting the browser if it
// has not been started yet. Callers derive their own timeout contexts and
// must not cancel the returned context.
func (h *Handle) Acquire(ctx context.Context) (context.Context, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, fmt.Errorf("browser handle is shut down")
	}
	if h.started {
		return h.browserCtx, nil
	}

	startTime := time.Now()
	opts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", h.config.Headless),
		chromedp.Flag("no-sandbox", h.config.NoSandbox),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(h.config.UserAgent),
	)

	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocatorCtx)

	// Startup test so a missing Chrome binary fails here, not mid-job
	testCtx, testCancel := context.WithTimeout(browserCtx, 30*time.Second)
	defer testCancel()
	if err := chromedp.Run(testCtx, chromedp.Navigate("about:blank")); err != nil {
		browserCancel()
		allocatorCancel()
		return nil, fmt.Errorf("browser failed startup test: %w", err)
	}

	h.browserCtx = browserCtx
	h.browserCancel = browserCancel
	h.allocatorCancel = allocatorCancel
	h.started = true

	h.logger.Info().
		Dur("startup_time", time.Since(startTime)).
		Bool("headless", h.config.Headless).
		Msg("Shared browser started")

	return h.browserCtx, nil
}

// NewTab derives a fresh tab context from the shared browser with the
// given timeout. The returned cancel closes the tab only.
func (h *Handle) NewTab(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc, error) {
	browserCtx, err := h.Acquire(ctx)
	if err != nil {
		return nil, nil, err
	}

	tabCtx, tabCancel := chromedp.NewContext(browserCtx)
	timeoutCtx, timeoutCancel := context.WithTimeout(tabCtx, timeout)

	cancel := func() {
		timeoutCancel()
		tabCancel()
	}
	return timeoutCtx, cancel, nil
}

// Shutdown tears the browser down. Safe to call multiple times and before
// the browser ever started.
func (h *Handle) Shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true

	if !h.started {
		return
	}

	h.logger.Info().Msg("Shutting down shared browser")
	if h.browserCancel != nil {
		h.browserCancel()
	}
	if h.allocatorCancel != nil {
		h.allocatorCancel()
	}
	h.started = false
}

// IsStarted reports whether the browser process is running
func (h *Handle) IsStarted() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.started && !h.closed
}
