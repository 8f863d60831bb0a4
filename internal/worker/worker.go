// Package worker consumes ingestion tasks and runs them through the
// extract → chunk → embed → upsert pipeline.
//
// One task is in flight per process; horizontal scale-out is more
// processes against the shared queue, relying on its atomic pop.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bkaradeniz/ragline/internal/callback"
	"github.com/bkaradeniz/ragline/internal/chunk"
	"github.com/bkaradeniz/ragline/internal/embed"
	"github.com/bkaradeniz/ragline/internal/extract"
	"github.com/bkaradeniz/ragline/internal/objstore"
	"github.com/bkaradeniz/ragline/internal/observability"
	"github.com/bkaradeniz/ragline/internal/queue"
	"github.com/bkaradeniz/ragline/internal/task"
	"github.com/bkaradeniz/ragline/internal/vector"
)

const (
	defaultTaskTimeout = 15 * time.Minute
	defaultPopWait     = 5 * time.Second
	callbackTimeout    = 30 * time.Second
)

// Config bounds the worker loop.
type Config struct {
	// TaskTimeout is the wall-clock ceiling per task (default 15m).
	TaskTimeout time.Duration
	// PopWait is how long one blocking pop waits before re-polling.
	PopWait time.Duration
	// Chunking carries the sliding-window parameters.
	Chunking chunk.Params
}

// Worker is the long-lived task consumer.
type Worker struct {
	cfg       Config
	queue     queue.Queue
	ledger    *task.Ledger
	objects   objstore.ObjectStore
	extractor *extract.Extractor
	embedder  embed.Embedder
	store     vector.Store
	notifier  *callback.Notifier
	logger    *slog.Logger
}

// New wires a worker. All collaborators are required except the notifier,
// which defaults to a fresh one.
func New(cfg Config, q queue.Queue, ledger *task.Ledger, objects objstore.ObjectStore,
	extractor *extract.Extractor, embedder embed.Embedder, store vector.Store,
	notifier *callback.Notifier, logger *slog.Logger) (*Worker, error) {

	switch {
	case q == nil:
		return nil, fmt.Errorf("queue required")
	case ledger == nil:
		return nil, fmt.Errorf("ledger required")
	case objects == nil:
		return nil, fmt.Errorf("object store required")
	case extractor == nil:
		return nil, fmt.Errorf("extractor required")
	case embedder == nil:
		return nil, fmt.Errorf("embedder required")
	case store == nil:
		return nil, fmt.Errorf("vector store required")
	}
	if notifier == nil {
		notifier = callback.NewNotifier()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = defaultTaskTimeout
	}
	if cfg.PopWait <= 0 {
		cfg.PopWait = defaultPopWait
	}
	if cfg.Chunking == (chunk.Params{}) {
		cfg.Chunking = chunk.DefaultParams()
	}

	return &Worker{
		cfg:       cfg,
		queue:     q,
		ledger:    ledger,
		objects:   objects,
		extractor: extractor,
		embedder:  embedder,
		store:     store,
		notifier:  notifier,
		logger:    logger.With("component", "worker"),
	}, nil
}

// Run consumes tasks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("worker started", "task_timeout", w.cfg.TaskTimeout.String())
	for {
		msg, err := w.queue.Pop(ctx, w.cfg.PopWait)
		if errors.Is(err, queue.ErrEmpty) {
			continue
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			w.logger.Info("worker stopping")
			return nil
		}
		if err != nil {
			w.logger.Error("queue pop failed", "err", err)
			select {
			case <-ctx.Done():
				w.logger.Info("worker stopping")
				return nil
			case <-time.After(w.cfg.PopWait):
			}
			continue
		}
		w.Process(ctx, msg)
	}
}

// Process runs one task to a terminal state and issues its callback.
// Failures are absorbed into the ledger; Process never panics the loop.
func (w *Worker) Process(ctx context.Context, msg *task.Message) {
	logger := w.logger.With("task_id", msg.TaskID, "tenant_id", msg.TenantID, "document_id", msg.DocumentID)

	// The destructive pop already consumed the message. Ledger writes
	// must survive run-context cancellation or the task vanishes without
	// a record.
	ledgerCtx := context.WithoutCancel(ctx)

	if _, err := w.ledger.Create(ledgerCtx, *msg); err != nil {
		logger.Error("ledger create failed, dropping task", "err", err)
		return
	}
	if _, err := w.ledger.MarkProcessing(ledgerCtx, msg.TaskID); err != nil {
		// Terminal or unknown record; never re-run a finished task.
		logger.Warn("task not in a runnable state, skipping", "err", err)
		return
	}

	taskCtx, cancel := context.WithTimeout(ctx, w.cfg.TaskTimeout)
	defer cancel()

	spanCtx, span := observability.StartTaskSpan(taskCtx, msg.TaskID, msg.TenantID, msg.DocumentID)
	chunks, err := w.runPipeline(spanCtx, msg)

	var rec *task.Record
	if err != nil {
		if errors.Is(taskCtx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("%w after %s: %v", ErrTaskTimeout, w.cfg.TaskTimeout, err)
		}
		observability.RecordError(span, err)
		logger.Error("task failed", "err", err)
		rec, err = w.ledger.MarkFailed(ledgerCtx, msg.TaskID, err)
	} else {
		logger.Info("task completed", "chunks_processed", chunks)
		rec, err = w.ledger.MarkCompleted(ledgerCtx, msg.TaskID, chunks)
	}
	if err != nil {
		span.End()
		logger.Error("ledger transition failed", "err", err)
		return
	}
	observability.RecordTaskResult(span, string(rec.Status), rec.ChunksProcessed, time.Duration(rec.ElapsedMS)*time.Millisecond)
	span.End()

	w.notify(ctx, rec, logger)
}

// notify delivers the terminal outcome. The ledger already holds the
// truth; a delivery failure is logged and forgotten.
func (w *Worker) notify(ctx context.Context, rec *task.Record, logger *slog.Logger) {
	if rec.CallbackURL == "" {
		return
	}
	cbCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), callbackTimeout)
	defer cancel()
	if err := w.notifier.Notify(cbCtx, rec); err != nil {
		logger.Warn("callback delivery failed", "callback_url", rec.CallbackURL, "err", err)
		return
	}
	logger.Info("callback delivered", "callback_url", rec.CallbackURL)
}

// runPipeline executes fetch → extract → chunk → embed → upsert and
// returns the number of persisted chunks. Fewer than one chunk is a
// content error.
func (w *Worker) runPipeline(ctx context.Context, msg *task.Message) (int, error) {
	data, err := w.fetch(ctx, msg)
	if err != nil {
		return 0, err
	}

	segments := w.extractSegments(ctx, msg, data)
	chunks := w.chunkSegments(ctx, msg, segments)
	if len(chunks) == 0 {
		return 0, ErrNoContent
	}

	if err := w.embedChunks(ctx, chunks); err != nil {
		return 0, fmt.Errorf("embed: %w", err)
	}

	if err := w.persist(ctx, msg.TenantID, chunks); err != nil {
		return 0, err
	}
	return len(chunks), nil
}

func (w *Worker) fetch(ctx context.Context, msg *task.Message) ([]byte, error) {
	ctx, span := observability.StartStageSpan(ctx, "fetch")
	defer span.End()
	data, err := w.objects.Get(ctx, msg.SourceBucket, msg.SourceKey)
	if err != nil {
		observability.RecordError(span, err)
		return nil, fmt.Errorf("fetch object: %w", err)
	}
	observability.RecordStageCount(span, len(data))
	return data, nil
}

func (w *Worker) extractSegments(ctx context.Context, msg *task.Message, data []byte) []extract.Segment {
	_, span := observability.StartStageSpan(ctx, "extract")
	defer span.End()
	segments := w.extractor.Extract(data, declaredType(msg))
	observability.RecordStageCount(span, len(segments))
	return segments
}

// declaredType prefers the explicit type, falling back to the filename
// extension.
func declaredType(msg *task.Message) string {
	if msg.DeclaredType != "" {
		return msg.DeclaredType
	}
	return msg.DeclaredFilename
}

// chunkSegments windows every segment, threading one monotonic chunk
// index across the whole document so storage order matches source order.
func (w *Worker) chunkSegments(ctx context.Context, msg *task.Message, segments []extract.Segment) []vector.Chunk {
	_, span := observability.StartStageSpan(ctx, "chunk")
	defer span.End()

	category := msg.Metadata["category"]
	var out []vector.Chunk
	index := 0
	for _, seg := range segments {
		for _, c := range chunk.Split(seg.Text, w.cfg.Chunking) {
			out = append(out, vector.Chunk{
				DocumentID: msg.DocumentID,
				TenantID:   msg.TenantID,
				Index:      index,
				Content:    c.Content,
				StartChar:  c.StartChar,
				EndChar:    c.EndChar,
				Page:       seg.Page,
				Method:     seg.Method,
				Category:   category,
			})
			index++
		}
	}
	observability.RecordStageCount(span, len(out))
	return out
}

func (w *Worker) embedChunks(ctx context.Context, chunks []vector.Chunk) error {
	ctx, span := observability.StartStageSpan(ctx, "embed")
	defer span.End()

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	vecs, err := w.embedder.Embed(ctx, texts)
	if err != nil {
		observability.RecordError(span, err)
		return err
	}
	if len(vecs) != len(chunks) {
		err := fmt.Errorf("embedding count mismatch: got %d, want %d", len(vecs), len(chunks))
		observability.RecordError(span, err)
		return err
	}
	for i := range chunks {
		chunks[i].Vector = vecs[i]
	}
	observability.RecordStageCount(span, len(vecs))
	return nil
}

func (w *Worker) persist(ctx context.Context, tenantID string, chunks []vector.Chunk) error {
	ctx, span := observability.StartStageSpan(ctx, "upsert")
	defer span.End()

	if err := w.store.EnsureCollection(ctx, tenantID); err != nil {
		observability.RecordError(span, err)
		return fmt.Errorf("ensure collection: %w", err)
	}
	if err := w.store.Upsert(ctx, tenantID, chunks); err != nil {
		observability.RecordError(span, err)
		return fmt.Errorf("upsert: %w", err)
	}
	observability.RecordStageCount(span, len(chunks))
	return nil
}
