package queue

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/bkaradeniz/ragline/internal/task"
)

const (
	entryPrefix  = "queue:"
	sequenceName = "queue-seq"

	// pollInterval is how often a blocked Pop re-checks the queue.
	pollInterval = 250 * time.Millisecond
)

// BadgerQueue is a durable FIFO queue on badger. Entries are keyed by a
// monotonic sequence number so lexicographic iteration yields insertion
// order, and Pop deletes the entry in the transaction that reads it.
type BadgerQueue struct {
	db  *badger.DB
	seq *badger.Sequence
}

// NewBadgerQueue creates a queue on an open badger instance.
func NewBadgerQueue(db *badger.DB) (*BadgerQueue, error) {
	seq, err := db.GetSequence([]byte(sequenceName), 100)
	if err != nil {
		return nil, fmt.Errorf("queue sequence: %w", err)
	}
	return &BadgerQueue{db: db, seq: seq}, nil
}

func entryKey(n uint64) []byte {
	key := make([]byte, len(entryPrefix)+8)
	copy(key, entryPrefix)
	binary.BigEndian.PutUint64(key[len(entryPrefix):], n)
	return key
}

func (q *BadgerQueue) Push(ctx context.Context, msg *task.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	n, err := q.seq.Next()
	if err != nil {
		return fmt.Errorf("queue sequence: %w", err)
	}
	err = q.db.Update(func(txn *badger.Txn) error {
		return txn.Set(entryKey(n), data)
	})
	if err != nil {
		return fmt.Errorf("queue push: %w", err)
	}
	return nil
}

func (q *BadgerQueue) Pop(ctx context.Context, wait time.Duration) (*task.Message, error) {
	deadline := time.Now().Add(wait)
	for {
		msg, err := q.tryPop()
		if err != nil {
			return nil, err
		}
		if msg != nil {
			return msg, nil
		}
		if time.Now().After(deadline) {
			return nil, ErrEmpty
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

// tryPop removes and returns the head entry, or nil when the queue is
// empty. Read and delete happen in one transaction; if two workers race,
// badger's conflict detection makes the loser retry and see an empty or
// advanced queue.
func (q *BadgerQueue) tryPop() (*task.Message, error) {
	var msg *task.Message
	err := q.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		opts.Prefix = []byte(entryPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		it.Rewind()
		if !it.Valid() {
			return nil
		}
		item := it.Item()
		var decoded task.Message
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &decoded)
		}); err != nil {
			return err
		}
		if err := txn.Delete(item.KeyCopy(nil)); err != nil {
			return err
		}
		msg = &decoded
		return nil
	})
	if errors.Is(err, badger.ErrConflict) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("queue pop: %w", err)
	}
	return msg, nil
}

func (q *BadgerQueue) Len(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	count := 0
	err := q.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(entryPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}

// Close releases the sequence. The badger instance itself is owned by the
// caller.
func (q *BadgerQueue) Close() error {
	return q.seq.Release()
}

var _ Queue = (*BadgerQueue)(nil)
