// -----------------------------------------------------------------------
// Credit ledger - daily-resetting per-user balance with serialized
// evaluation
// -----------------------------------------------------------------------

package credits

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/folio/internal/interfaces"
)

// Decision is the outcome of evaluating a job's cost against a balance
type Decision struct {
	Accepted  bool
	Remaining int // new balance after debit, when accepted
	Available int // balance left untouched, when rejected
}

// Ledger evaluates job cost against per-user daily balances. The
// read-modify-write against a user's balance is the one correctness
// critical race in the system, so every evaluation for a given user runs
// under that user's mutex.
type Ledger struct {
	users      interfaces.UserStorage
	dailyQuota int
	logger     arbor.ILogger
	now        func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewLedger creates a credit ledger backed by the user store
func NewLedger(users interfaces.UserStorage, dailyQuota int, logger arbor.ILogger) *Ledger {
	return &Ledger{
		users:      users,
		dailyQuota: dailyQuota,
		logger:     logger,
		now:        time.Now,
		locks:      make(map[string]*sync.Mutex),
	}
}

// Evaluate decides whether the user can afford cost. A due reset is
// persisted before the cost is considered, so the reset commits even when
// the job is then rejected. The balance is debited only on acceptance.
func (l *Ledger) Evaluate(ctx context.Context, userID string, cost int) (Decision, error) {
	lock := l.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	user, err := l.users.GetUser(ctx, userID)
	if err != nil {
		return Decision{}, fmt.Errorf("load user %s: %w", userID, err)
	}

	now := l.now().UTC()
	if user.CreditsResetAt == nil || !user.CreditsResetAt.After(now) {
		reset := nextUTCMidnight(now)
		user.DailyCredits = l.dailyQuota
		user.CreditsResetAt = &reset
		user.UpdatedAt = now
		if err := l.users.SaveUser(ctx, user); err != nil {
			return Decision{}, fmt.Errorf("persist credit reset for %s: %w", userID, err)
		}
		l.logger.Info().
			Str("user_id", userID).
			Str("reset_at", reset.Format(time.RFC3339)).
			Msg("Daily credits reset")
	}

	available := user.DailyCredits
	if cost > available {
		l.logger.Info().
			Str("user_id", userID).
			Int("cost", cost).
			Int("available", available).
			Msg("Job rejected by credit ledger")
		return Decision{Available: available}, nil
	}

	user.DailyCredits = available - cost
	user.UpdatedAt = now
	if err := l.users.SaveUser(ctx, user); err != nil {
		return Decision{}, fmt.Errorf("persist credit debit for %s: %w", userID, err)
	}

	return Decision{Accepted: true, Remaining: user.DailyCredits}, nil
}

func (l *Ledger) userLock(userID string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	lock, ok := l.locks[userID]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[userID] = lock
	}
	return lock
}

// nextUTCMidnight returns the first UTC midnight strictly after t
func nextUTCMidnight(t time.Time) time.Time {
	t = t.UTC()
	midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return midnight.AddDate(0, 0, 1)
}
