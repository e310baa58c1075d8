// -----------------------------------------------------------------------
// Persistent job queue - Badger-backed with visibility timeouts
// At-least-once delivery; consumers must tolerate replays
// -----------------------------------------------------------------------

package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

// ErrNoMessage is returned when no message is ready for delivery
var ErrNoMessage = errors.New("no messages in queue")

// Message is the job payload: which issue to process
type Message struct {
	IssueID string `json:"issue_id"`
}

// storedMessage wraps a message with delivery bookkeeping
type storedMessage struct {
	ID           string    `json:"id"`
	Body         Message   `json:"body"`
	EnqueuedAt   time.Time `json:"enqueued_at"`
	VisibleAt    time.Time `json:"visible_at"`
	ReceiveCount int       `json:"receive_count"`
}

// Queue is a persistent FIFO-by-visibility queue on Badger. Messages are
// stored under a data key and indexed by visibility timestamp, so Receive
// scans only the index prefix in timestamp order.
type Queue struct {
	db                *badger.DB
	name              string
	visibilityTimeout time.Duration
	maxReceive        int
}

// New creates a queue on the shared database
func New(db *badger.DB, name string, visibilityTimeout time.Duration, maxReceive int) (*Queue, error) {
	if db == nil {
		return nil, errors.New("badger db is required")
	}
	if name == "" {
		return nil, errors.New("queue name is required")
	}
	if visibilityTimeout <= 0 {
		visibilityTimeout = 5 * time.Minute
	}
	if maxReceive <= 0 {
		maxReceive = 3
	}

	return &Queue{
		db:                db,
		name:              name,
		visibilityTimeout: visibilityTimeout,
		maxReceive:        maxReceive,
	}, nil
}

// Enqueue adds a message, immediately visible
func (q *Queue) Enqueue(ctx context.Context, msg Message) error {
	stored := storedMessage{
		ID:         uuid.New().String(),
		Body:       msg,
		EnqueuedAt: time.Now().UTC(),
		VisibleAt:  time.Now().UTC(),
	}

	data, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("failed to marshal queue message: %w", err)
	}

	return q.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(q.msgKey(stored.ID), data); err != nil {
			return err
		}
		return txn.Set(q.indexKey(stored.VisibleAt, stored.ID), []byte{})
	})
}

// Receive claims the next visible message and hides it for the visibility
// timeout. The returned ack deletes the message permanently; an unacked
// message reappears after the timeout, up to maxReceive deliveries.
func (q *Queue) Receive(ctx context.Context) (*Message, func() error, error) {
	var claimed storedMessage

	err := q.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		prefix := []byte(q.indexPrefix())
		it := txn.NewIterator(opts)
		defer it.Close()

		now := time.Now().UTC()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			indexKey := it.Item().KeyCopy(nil)
			visibleAt, id, err := q.parseIndexKey(indexKey)
			if err != nil {
				continue
			}
			if visibleAt.After(now) {
				// Index keys sort by timestamp, nothing later is ready
				break
			}

			item, err := txn.Get(q.msgKey(id))
			if err != nil {
				if errors.Is(err, badger.ErrKeyNotFound) {
					// Orphaned index entry
					if err := txn.Delete(indexKey); err != nil {
						return err
					}
					continue
				}
				return err
			}

			var stored storedMessage
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &stored)
			}); err != nil {
				return err
			}

			if stored.ReceiveCount >= q.maxReceive {
				// Poison message, drop it
				if err := txn.Delete(indexKey); err != nil {
					return err
				}
				if err := txn.Delete(q.msgKey(id)); err != nil {
					return err
				}
				continue
			}

			stored.ReceiveCount++
			stored.VisibleAt = now.Add(q.visibilityTimeout)

			data, err := json.Marshal(stored)
			if err != nil {
				return err
			}
			if err := txn.Set(q.msgKey(id), data); err != nil {
				return err
			}
			if err := txn.Delete(indexKey); err != nil {
				return err
			}
			if err := txn.Set(q.indexKey(stored.VisibleAt, id), []byte{}); err != nil {
				return err
			}

			claimed = stored
			return nil
		}
		return ErrNoMessage
	})
	if err != nil {
		return nil, nil, err
	}

	ack := func() error {
		return q.delete(claimed.ID)
	}
	return &claimed.Body, ack, nil
}

// Depth counts stored messages, visible or not
func (q *Queue) Depth() (int, error) {
	count := 0
	err := q.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		prefix := []byte(q.msgPrefix())
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}

func (q *Queue) delete(id string) error {
	return q.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(q.msgKey(id))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil // already deleted
			}
			return err
		}

		var stored storedMessage
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &stored)
		}); err != nil {
			return err
		}

		if err := txn.Delete(q.indexKey(stored.VisibleAt, id)); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return txn.Delete(q.msgKey(id))
	})
}

func (q *Queue) msgPrefix() string {
	return fmt.Sprintf("queue:%s:msg:", q.name)
}

func (q *Queue) msgKey(id string) []byte {
	return []byte(q.msgPrefix() + id)
}

func (q *Queue) indexPrefix() string {
	return fmt.Sprintf("queue:%s:index:", q.name)
}

// indexKey encodes the visibility timestamp so lexical order matches
// chronological order.
func (q *Queue) indexKey(visibleAt time.Time, id string) []byte {
	return []byte(fmt.Sprintf("%s%020d:%s", q.indexPrefix(), visibleAt.UnixNano(), id))
}

func (q *Queue) parseIndexKey(key []byte) (time.Time, string, error) {
	rest := strings.TrimPrefix(string(key), q.indexPrefix())
	parts := strings.SplitN(rest, ":", 2)
	if len(parts) != 2 {
		return time.Time{}, "", fmt.Errorf("malformed index key: %s", key)
	}
	var nanos int64
	if _, err := fmt.Sscanf(parts[0], "%d", &nanos); err != nil {
		return time.Time{}, "", fmt.Errorf("malformed index timestamp: %s", key)
	}
	return time.Unix(0, nanos).UTC(), parts[1], nil
}
