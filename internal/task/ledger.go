package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// ErrNotFound reports a task id with no ledger entry.
var ErrNotFound = errors.New("task not found")

const recordPrefix = "task:"

// Ledger persists task records in badger. Status changes are validated
// against the transition table inside a single read-modify-write
// transaction, so an illegal transition can never be stored.
type Ledger struct {
	db     *badger.DB
	logger *slog.Logger
	now    func() time.Time
}

// NewLedger creates a ledger on an open badger instance.
func NewLedger(db *badger.DB, logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{
		db:     db,
		logger: logger.With("component", "ledger"),
		now:    time.Now,
	}
}

func recordKey(taskID string) []byte {
	return []byte(recordPrefix + taskID)
}

// Create stores a queued record for msg. Creating an already-known task
// returns the existing record unchanged.
func (l *Ledger) Create(ctx context.Context, msg Message) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}

	var rec *Record
	err := l.db.Update(func(txn *badger.Txn) error {
		existing, err := getRecord(txn, msg.TaskID)
		if err == nil {
			rec = existing
			return nil
		}
		if !errors.Is(err, ErrNotFound) {
			return err
		}
		rec = &Record{
			Message:   msg,
			Status:    StatusQueued,
			CreatedAt: l.now().UTC(),
		}
		return putRecord(txn, rec)
	})
	if err != nil {
		return nil, fmt.Errorf("create task %s: %w", msg.TaskID, err)
	}
	return rec, nil
}

// Get returns the record for taskID.
func (l *Ledger) Get(ctx context.Context, taskID string) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var rec *Record
	err := l.db.View(func(txn *badger.Txn) error {
		var err error
		rec, err = getRecord(txn, taskID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// MarkProcessing moves taskID from queued to processing and stamps StartedAt.
func (l *Ledger) MarkProcessing(ctx context.Context, taskID string) (*Record, error) {
	return l.transition(ctx, taskID, StatusProcessing, func(rec *Record) {
		rec.StartedAt = l.now().UTC()
	})
}

// MarkCompleted moves taskID to its terminal completed state.
func (l *Ledger) MarkCompleted(ctx context.Context, taskID string, chunksProcessed int) (*Record, error) {
	return l.transition(ctx, taskID, StatusCompleted, func(rec *Record) {
		rec.ChunksProcessed = chunksProcessed
		l.finish(rec)
	})
}

// MarkFailed moves taskID to its terminal failed state with an error
// description.
func (l *Ledger) MarkFailed(ctx context.Context, taskID string, cause error) (*Record, error) {
	return l.transition(ctx, taskID, StatusFailed, func(rec *Record) {
		if cause != nil {
			rec.Error = cause.Error()
		}
		l.finish(rec)
	})
}

func (l *Ledger) finish(rec *Record) {
	rec.FinishedAt = l.now().UTC()
	if !rec.StartedAt.IsZero() {
		rec.ElapsedMS = rec.FinishedAt.Sub(rec.StartedAt).Milliseconds()
	}
}

func (l *Ledger) transition(ctx context.Context, taskID string, next Status, mutate func(*Record)) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var rec *Record
	err := l.db.Update(func(txn *badger.Txn) error {
		var err error
		rec, err = getRecord(txn, taskID)
		if err != nil {
			return err
		}
		if !rec.Status.CanTransition(next) {
			return &ErrInvalidTransition{From: rec.Status, To: next}
		}
		rec.Status = next
		mutate(rec)
		return putRecord(txn, rec)
	})
	if err != nil {
		return nil, err
	}
	l.logger.Info("task status changed",
		"task_id", taskID,
		"tenant_id", rec.TenantID,
		"status", string(next),
	)
	return rec, nil
}

func getRecord(txn *badger.Txn, taskID string) (*Record, error) {
	item, err := txn.Get(recordKey(taskID))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%s: %w", taskID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	var rec Record
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &rec)
	}); err != nil {
		return nil, err
	}
	return &rec, nil
}

func putRecord(txn *badger.Txn, rec *Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return txn.Set(recordKey(rec.TaskID), data)
}
