package credits

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/folio/internal/common"
	"github.com/ternarybob/folio/internal/interfaces"
	"github.com/ternarybob/folio/internal/models"
)

// memoryUserStore is a thread-safe in-memory UserStorage for ledger tests
type memoryUserStore struct {
	mu    sync.Mutex
	users map[string]models.UserAccount
	saves int
}

func newMemoryUserStore() *memoryUserStore {
	return &memoryUserStore{users: make(map[string]models.UserAccount)}
}

func (s *memoryUserStore) GetUser(ctx context.Context, id string) (*models.UserAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return nil, interfaces.ErrNotFound
	}
	copied := user
	return &copied, nil
}

func (s *memoryUserStore) SaveUser(ctx context.Context, user *models.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.ID] = *user
	s.saves++
	return nil
}

func (s *memoryUserStore) put(user models.UserAccount) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.ID] = user
}

func (s *memoryUserStore) balance(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users[id].DailyCredits
}

func newTestLedger(store *memoryUserStore, now time.Time) *Ledger {
	ledger := NewLedger(store, 20, common.GetLogger())
	ledger.now = func() time.Time { return now }
	return ledger
}

func TestEvaluateAcceptsAndDebits(t *testing.T) {
	now := time.Date(2025, 6, 10, 14, 0, 0, 0, time.UTC)
	reset := now.Add(10 * time.Hour)
	store := newMemoryUserStore()
	store.put(models.UserAccount{ID: "u1", DailyCredits: 20, CreditsResetAt: &reset})

	decision, err := newTestLedger(store, now).Evaluate(context.Background(), "u1", 12)
	require.NoError(t, err)

	assert.True(t, decision.Accepted)
	assert.Equal(t, 8, decision.Remaining)
	assert.Equal(t, 8, store.balance("u1"))
}

func TestEvaluateRejectsWithoutDebit(t *testing.T) {
	now := time.Date(2025, 6, 10, 14, 0, 0, 0, time.UTC)
	reset := now.Add(10 * time.Hour)
	store := newMemoryUserStore()
	store.put(models.UserAccount{ID: "u1", DailyCredits: 5, CreditsResetAt: &reset})

	decision, err := newTestLedger(store, now).Evaluate(context.Background(), "u1", 12)
	require.NoError(t, err)

	assert.False(t, decision.Accepted)
	assert.Equal(t, 5, decision.Available)
	assert.Equal(t, 5, store.balance("u1"))
	assert.Equal(t, 0, store.saves)
}

func TestEvaluateResetsPastBoundaryBeforeEvaluating(t *testing.T) {
	now := time.Date(2025, 6, 10, 14, 30, 0, 0, time.UTC)
	stale := now.Add(-2 * time.Hour)
	store := newMemoryUserStore()
	store.put(models.UserAccount{ID: "u1", DailyCredits: 0, CreditsResetAt: &stale})

	decision, err := newTestLedger(store, now).Evaluate(context.Background(), "u1", 12)
	require.NoError(t, err)

	assert.True(t, decision.Accepted)
	assert.Equal(t, 8, decision.Remaining)

	user, err := store.GetUser(context.Background(), "u1")
	require.NoError(t, err)
	require.NotNil(t, user.CreditsResetAt)
	assert.Equal(t, time.Date(2025, 6, 11, 0, 0, 0, 0, time.UTC), user.CreditsResetAt.UTC())
}

// A due reset must commit even when the job is then rejected.
func TestEvaluateResetPersistsOnRejection(t *testing.T) {
	now := time.Date(2025, 6, 10, 14, 30, 0, 0, time.UTC)
	store := newMemoryUserStore()
	store.put(models.UserAccount{ID: "u1", DailyCredits: 3, CreditsResetAt: nil})

	decision, err := newTestLedger(store, now).Evaluate(context.Background(), "u1", 99)
	require.NoError(t, err)

	assert.False(t, decision.Accepted)
	assert.Equal(t, 20, decision.Available)
	assert.Equal(t, 20, store.balance("u1"))

	user, err := store.GetUser(context.Background(), "u1")
	require.NoError(t, err)
	require.NotNil(t, user.CreditsResetAt)
	assert.True(t, user.CreditsResetAt.After(now))
}

func TestEvaluateResetAtExactBoundary(t *testing.T) {
	now := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	atBoundary := now
	store := newMemoryUserStore()
	store.put(models.UserAccount{ID: "u1", DailyCredits: 1, CreditsResetAt: &atBoundary})

	decision, err := newTestLedger(store, now).Evaluate(context.Background(), "u1", 2)
	require.NoError(t, err)

	// Timestamp equal to now counts as due, and the next boundary is
	// strictly after now.
	assert.True(t, decision.Accepted)
	user, _ := store.GetUser(context.Background(), "u1")
	assert.Equal(t, time.Date(2025, 6, 11, 0, 0, 0, 0, time.UTC), user.CreditsResetAt.UTC())
}

// Concurrent evaluations for one user must never double-spend.
func TestEvaluateSerializesPerUser(t *testing.T) {
	now := time.Date(2025, 6, 10, 14, 0, 0, 0, time.UTC)
	reset := now.Add(10 * time.Hour)
	store := newMemoryUserStore()
	store.put(models.UserAccount{ID: "u1", DailyCredits: 20, CreditsResetAt: &reset})

	ledger := newTestLedger(store, now)

	const jobs = 10
	accepted := make(chan bool, jobs)
	var wg sync.WaitGroup
	for i := 0; i < jobs; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			decision, err := ledger.Evaluate(context.Background(), "u1", 5)
			require.NoError(t, err)
			accepted <- decision.Accepted
		}()
	}
	wg.Wait()
	close(accepted)

	acceptedCount := 0
	for ok := range accepted {
		if ok {
			acceptedCount++
		}
	}
	assert.Equal(t, 4, acceptedCount)
	assert.Equal(t, 0, store.balance("u1"))
}
