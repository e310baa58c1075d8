package extract

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// hostLimiter throttles outbound fetches per destination host so a batch
// of links to the same site does not hammer it.
type hostLimiter struct {
	perSecond rate.Limit
	mu        sync.Mutex
	limiters  map[string]*rate.Limiter
}

func newHostLimiter(perSecond float64) *hostLimiter {
	if perSecond <= 0 {
		perSecond = 1
	}
	return &hostLimiter{
		perSecond: rate.Limit(perSecond),
		limiters:  make(map[string]*rate.Limiter),
	}
}

// wait blocks until the host's limiter admits one request or ctx is done
func (l *hostLimiter) wait(ctx context.Context, host string) error {
	l.mu.Lock()
	limiter, ok := l.limiters[host]
	if !ok {
		limiter = rate.NewLimiter(l.perSecond, 1)
		l.limiters[host] = limiter
	}
	l.mu.Unlock()

	return limiter.Wait(ctx)
}
