package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/bkaradeniz/ragline/internal/callback"
	"github.com/bkaradeniz/ragline/internal/chunk"
	"github.com/bkaradeniz/ragline/internal/config"
	"github.com/bkaradeniz/ragline/internal/embed"
	"github.com/bkaradeniz/ragline/internal/extract"
	"github.com/bkaradeniz/ragline/internal/objstore"
	"github.com/bkaradeniz/ragline/internal/observability"
	"github.com/bkaradeniz/ragline/internal/queue"
	"github.com/bkaradeniz/ragline/internal/server"
	"github.com/bkaradeniz/ragline/internal/task"
	"github.com/bkaradeniz/ragline/internal/vector"
	"github.com/bkaradeniz/ragline/internal/vector/memory"
	"github.com/bkaradeniz/ragline/internal/vector/qdrant"
	"github.com/bkaradeniz/ragline/internal/worker"
)

func main() {
	configPath := "configs/ragline.yaml"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tp, err := observability.InitTracing(ctx, &observability.TracingConfig{
		ServiceName:    "ragline-worker",
		ServiceVersion: "0.1.0",
		Environment:    cfg.Tracing.Environment,
		OTLPEndpoint:   cfg.Tracing.OTLPEndpoint,
		SampleRate:     cfg.Tracing.SampleRate,
	})
	if err != nil {
		log.Fatalf("tracing: %v", err)
	}

	db, err := badger.Open(badger.DefaultOptions(cfg.Queue.Path).WithLogger(nil))
	if err != nil {
		log.Fatalf("badger open: %v", err)
	}

	q, err := queue.NewBadgerQueue(db)
	if err != nil {
		log.Fatalf("queue: %v", err)
	}
	ledger := task.NewLedger(db, logger)
	objects := objstore.NewFSStore(cfg.Objects.Root)

	client := embed.NewClient(cfg.Embedding.APIKey, cfg.Embedding.Model, cfg.Embedding.BaseURL)
	batcher, err := embed.NewBatcher(client, cfg.Embedding.BatchSize, cfg.Embedding.Concurrency)
	if err != nil {
		log.Fatalf("embedder: %v", err)
	}

	var store vector.Store
	switch strings.ToLower(cfg.Vector.Backend) {
	case "memory":
		store = memory.New()
	default:
		manager, err := qdrant.NewManager(ctx, qdrant.Config{
			Host:      cfg.Vector.Host,
			Port:      cfg.Vector.Port,
			Dimension: cfg.Vector.Dimension,
			Distance:  cfg.Vector.Distance,
		}, logger)
		if err != nil {
			log.Fatalf("vector store: %v", err)
		}
		if dim, err := embed.ProbeDimension(ctx, client); err != nil {
			logger.Warn("dimension probe failed, keeping configured dimension",
				"configured", cfg.Vector.Dimension,
				"error", err,
			)
		} else {
			manager.ReconcileDimension(dim)
		}
		store = manager
	}

	w, err := worker.New(worker.Config{
		TaskTimeout: cfg.Worker.TaskTimeout,
		PopWait:     cfg.Worker.PopWait,
		Chunking: chunk.Params{
			ChunkSize:    cfg.Worker.ChunkSize,
			Overlap:      cfg.Worker.Overlap,
			MinChunkSize: cfg.Worker.MinChunkSize,
		},
	}, q, ledger, objects, extract.New(logger), batcher, store, callback.NewNotifier(), logger)
	if err != nil {
		log.Fatalf("worker: %v", err)
	}

	srv := server.NewGracefulServer(nil, nil)
	srv.Health.RegisterCheck("queue", server.QueueHealthChecker(func(ctx context.Context) error {
		_, err := q.Len(ctx)
		return err
	}))
	srv.Health.RegisterCheck("embedding", server.EmbeddingHealthChecker(cfg.Embedding.Model, func(ctx context.Context) error {
		if cfg.Embedding.APIKey == "" {
			return fmt.Errorf("no API key configured")
		}
		return nil
	}))
	if manager, ok := store.(*qdrant.Manager); ok {
		srv.Health.RegisterCheck("vector-store", server.VectorStoreHealthChecker(manager.Ping))
	}

	workerDone := make(chan error, 1)
	go func() {
		workerDone <- w.Run(ctx)
	}()

	srv.Register(server.WorkerShutdownHook(func(hookCtx context.Context) error {
		cancel()
		select {
		case err := <-workerDone:
			return err
		case <-hookCtx.Done():
			return hookCtx.Err()
		}
	}))
	srv.Register(server.EmbedderShutdownHook(batcher.Release))
	srv.Register(server.VectorStoreShutdownHook(store.Close))
	srv.Register(server.QueueShutdownHook(q.Close))
	srv.Register(server.BadgerShutdownHook(db.Close))
	srv.Register(server.TracingShutdownHook(tp.Shutdown))

	if err := srv.Start(cfg.Worker.HealthAddr); err != nil {
		log.Fatalf("health server: %v", err)
	}

	logger.Info("worker started",
		"queue_path", cfg.Queue.Path,
		"vector_backend", cfg.Vector.Backend,
		"health_addr", cfg.Worker.HealthAddr,
	)

	srv.Wait()
	logger.Info("worker stopped")
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if strings.ToLower(cfg.Format) == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}
