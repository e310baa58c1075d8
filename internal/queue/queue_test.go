package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/folio/internal/common"
)

func newTestDB(t *testing.T) *badger.DB {
	t.Helper()
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil
	db, err := badger.Open(opts)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestQueue(t *testing.T, visibility time.Duration) *Queue {
	t.Helper()
	q, err := New(newTestDB(t), "issues", visibility, 3)
	require.NoError(t, err)
	return q
}

func TestQueueEnqueueReceiveAck(t *testing.T) {
	q := newTestQueue(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, Message{IssueID: "issue-1"}))

	msg, ack, err := q.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, "issue-1", msg.IssueID)

	require.NoError(t, ack())

	depth, err := q.Depth()
	require.NoError(t, err)
	assert.Equal(t, 0, depth)
}

func TestQueueEmptyReturnsErrNoMessage(t *testing.T) {
	q := newTestQueue(t, time.Minute)

	_, _, err := q.Receive(context.Background())
	assert.ErrorIs(t, err, ErrNoMessage)
}

func TestQueueDeliversInEnqueueOrder(t *testing.T) {
	q := newTestQueue(t, time.Minute)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, q.Enqueue(ctx, Message{IssueID: id}))
		time.Sleep(2 * time.Millisecond) // distinct visibility timestamps
	}

	var got []string
	for i := 0; i < 3; i++ {
		msg, ack, err := q.Receive(ctx)
		require.NoError(t, err)
		got = append(got, msg.IssueID)
		require.NoError(t, ack())
	}
	assert.Equal(t, []string{"a", "b", "c"}, got)
}

func TestQueueClaimedMessageIsHidden(t *testing.T) {
	q := newTestQueue(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, Message{IssueID: "issue-1"}))

	_, _, err := q.Receive(ctx)
	require.NoError(t, err)

	// Claimed but unacked: hidden for the visibility timeout
	_, _, err = q.Receive(ctx)
	assert.ErrorIs(t, err, ErrNoMessage)
}

func TestQueueUnackedMessageRedelivers(t *testing.T) {
	q := newTestQueue(t, 30*time.Millisecond)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, Message{IssueID: "issue-1"}))

	_, _, err := q.Receive(ctx)
	require.NoError(t, err)

	time.Sleep(60 * time.Millisecond)

	msg, ack, err := q.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, "issue-1", msg.IssueID)
	require.NoError(t, ack())
}

func TestQueueDropsPoisonMessages(t *testing.T) {
	q := newTestQueue(t, time.Millisecond)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, Message{IssueID: "poison"}))

	// Exhaust the delivery budget without acking
	for i := 0; i < 3; i++ {
		_, _, err := q.Receive(ctx)
		require.NoError(t, err)
		time.Sleep(5 * time.Millisecond)
	}

	_, _, err := q.Receive(ctx)
	assert.ErrorIs(t, err, ErrNoMessage)

	depth, err := q.Depth()
	require.NoError(t, err)
	assert.Equal(t, 0, depth)
}

// trackingProcessor records processed issue IDs
type trackingProcessor struct {
	mu        sync.Mutex
	processed []string
	done      chan struct{}
	want      int
}

func (p *trackingProcessor) ProcessIssue(ctx context.Context, issueID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.processed = append(p.processed, issueID)
	if len(p.processed) == p.want {
		close(p.done)
	}
	return nil
}

func TestPoolProcessesAndAcks(t *testing.T) {
	q := newTestQueue(t, time.Minute)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, q.Enqueue(ctx, Message{IssueID: id}))
	}

	processor := &trackingProcessor{done: make(chan struct{}), want: 3}
	pool := NewPool(q, processor, 10*time.Millisecond, 2, common.GetLogger())
	pool.Start(ctx)
	defer pool.Stop()

	select {
	case <-processor.done:
	case <-time.After(5 * time.Second):
		t.Fatal("pool did not process all messages")
	}

	pool.Stop()
	depth, err := q.Depth()
	require.NoError(t, err)
	assert.Equal(t, 0, depth)

	assert.ElementsMatch(t, []string{"a", "b", "c"}, processor.processed)
}
