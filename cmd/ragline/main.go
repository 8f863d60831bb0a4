package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/bkaradeniz/ragline/internal/config"
	"github.com/bkaradeniz/ragline/internal/embed"
	"github.com/bkaradeniz/ragline/internal/queue"
	"github.com/bkaradeniz/ragline/internal/retrieve"
	"github.com/bkaradeniz/ragline/internal/task"
	"github.com/bkaradeniz/ragline/internal/vector"
	"github.com/bkaradeniz/ragline/internal/vector/qdrant"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "ragline",
		Short: "Multi-tenant document ingestion and retrieval pipeline",
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "configs/ragline.yaml", "Config file path")

	var (
		tenantID    string
		documentID  string
		bucket      string
		key         string
		filename    string
		contentType string
		size        int64
		callbackURL string
		metaPairs   []string
	)

	enqueueCmd := &cobra.Command{
		Use:   "enqueue",
		Short: "Submit a document ingestion task",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEnqueue(configPath, task.Message{
				TaskID:           uuid.NewString(),
				TenantID:         tenantID,
				DocumentID:       documentID,
				SourceBucket:     bucket,
				SourceKey:        key,
				DeclaredFilename: filename,
				DeclaredType:     contentType,
				DeclaredSize:     size,
				CallbackURL:      callbackURL,
				Metadata:         parseMeta(metaPairs),
			})
		},
	}
	enqueueCmd.Flags().StringVar(&tenantID, "tenant", "", "Tenant ID")
	enqueueCmd.Flags().StringVar(&documentID, "doc", "", "Document ID")
	enqueueCmd.Flags().StringVar(&bucket, "bucket", "", "Source bucket")
	enqueueCmd.Flags().StringVar(&key, "key", "", "Source object key")
	enqueueCmd.Flags().StringVar(&filename, "filename", "", "Declared filename")
	enqueueCmd.Flags().StringVar(&contentType, "type", "", "Declared content type (txt, md, html, csv, docx)")
	enqueueCmd.Flags().Int64Var(&size, "size", 0, "Declared size in bytes")
	enqueueCmd.Flags().StringVar(&callbackURL, "callback", "", "Completion callback URL")
	enqueueCmd.Flags().StringArrayVar(&metaPairs, "meta", nil, "Metadata key=value pairs (repeatable)")
	_ = enqueueCmd.MarkFlagRequired("tenant")
	_ = enqueueCmd.MarkFlagRequired("doc")
	_ = enqueueCmd.MarkFlagRequired("bucket")
	_ = enqueueCmd.MarkFlagRequired("key")

	var taskID string
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show the ledger record for a task",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(configPath, taskID)
		},
	}
	statusCmd.Flags().StringVar(&taskID, "task", "", "Task ID")
	_ = statusCmd.MarkFlagRequired("task")

	var (
		query     string
		limit     int
		threshold float64
		filterDoc string
	)
	searchCmd := &cobra.Command{
		Use:   "search",
		Short: "Search a tenant's documents and build a retrieval context",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(configPath, tenantID, query, limit, threshold, filterDoc)
		},
	}
	searchCmd.Flags().StringVar(&tenantID, "tenant", "", "Tenant ID")
	searchCmd.Flags().StringVar(&query, "query", "", "Query text")
	searchCmd.Flags().IntVar(&limit, "limit", 0, "Maximum results (0 = config default)")
	searchCmd.Flags().Float64Var(&threshold, "threshold", 0, "Minimum similarity score")
	searchCmd.Flags().StringVar(&filterDoc, "doc", "", "Restrict to a single document")
	_ = searchCmd.MarkFlagRequired("tenant")
	_ = searchCmd.MarkFlagRequired("query")

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show collection statistics for a tenant",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(configPath, tenantID)
		},
	}
	statsCmd.Flags().StringVar(&tenantID, "tenant", "", "Tenant ID")
	_ = statsCmd.MarkFlagRequired("tenant")

	deleteDocCmd := &cobra.Command{
		Use:   "delete-doc",
		Short: "Delete every chunk of one document",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDeleteDoc(configPath, tenantID, documentID)
		},
	}
	deleteDocCmd.Flags().StringVar(&tenantID, "tenant", "", "Tenant ID")
	deleteDocCmd.Flags().StringVar(&documentID, "doc", "", "Document ID")
	_ = deleteDocCmd.MarkFlagRequired("tenant")
	_ = deleteDocCmd.MarkFlagRequired("doc")

	var confirm bool
	offboardCmd := &cobra.Command{
		Use:   "offboard",
		Short: "Drop a tenant's entire collection",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !confirm {
				return fmt.Errorf("offboarding drops all of tenant %q's data; re-run with --yes", tenantID)
			}
			return runOffboard(configPath, tenantID)
		},
	}
	offboardCmd.Flags().StringVar(&tenantID, "tenant", "", "Tenant ID")
	offboardCmd.Flags().BoolVar(&confirm, "yes", false, "Confirm deletion")
	_ = offboardCmd.MarkFlagRequired("tenant")

	rootCmd.AddCommand(enqueueCmd, statusCmd, searchCmd, statsCmd, deleteDocCmd, offboardCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func parseMeta(pairs []string) map[string]string {
	if len(pairs) == 0 {
		return nil
	}
	meta := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if ok {
			meta[k] = v
		}
	}
	return meta
}

// openLedgerDB opens the shared badger directory. The worker holds an
// exclusive lock while running, so ledger and queue commands are for
// out-of-band use.
func openLedgerDB(cfg *config.Config) (*badger.DB, error) {
	db, err := badger.Open(badger.DefaultOptions(cfg.Queue.Path).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("open queue store (is the worker running?): %w", err)
	}
	return db, nil
}

func openStore(ctx context.Context, cfg *config.Config) (vector.Store, error) {
	if strings.ToLower(cfg.Vector.Backend) == "memory" {
		return nil, fmt.Errorf("the memory backend lives inside the worker process; point the CLI at qdrant")
	}
	return qdrant.NewManager(ctx, qdrant.Config{
		Host:      cfg.Vector.Host,
		Port:      cfg.Vector.Port,
		Dimension: cfg.Vector.Dimension,
		Distance:  cfg.Vector.Distance,
	}, nil)
}

func runEnqueue(configPath string, msg task.Message) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := msg.Validate(); err != nil {
		return err
	}

	db, err := openLedgerDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	q, err := queue.NewBadgerQueue(db)
	if err != nil {
		return err
	}
	defer q.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := q.Push(ctx, &msg); err != nil {
		return fmt.Errorf("enqueue: %w", err)
	}

	fmt.Printf("Enqueued task %s (tenant=%s doc=%s)\n", msg.TaskID, msg.TenantID, msg.DocumentID)
	return nil
}

func runStatus(configPath, taskID string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	db, err := openLedgerDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	ledger := task.NewLedger(db, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	rec, err := ledger.Get(ctx, taskID)
	if err != nil {
		return err
	}

	data, _ := json.MarshalIndent(rec, "", "  ")
	fmt.Println(string(data))
	return nil
}

func runSearch(configPath, tenantID, query string, limit int, threshold float64, filterDoc string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	embedder := embed.NewClient(cfg.Embedding.APIKey, cfg.Embedding.Model, cfg.Embedding.BaseURL)
	builder := retrieve.NewBuilder(store, embedder, nil)

	params := retrieve.Params{
		MaxResults:      cfg.Retrieval.MaxResults,
		MaxContextChars: cfg.Retrieval.MaxContextChars,
		ScoreThreshold:  float32(cfg.Retrieval.ScoreThreshold),
		DocumentID:      filterDoc,
	}
	if limit > 0 {
		params.MaxResults = limit
	}
	if threshold > 0 {
		params.ScoreThreshold = float32(threshold)
	}

	result := builder.Retrieve(ctx, tenantID, query, params)

	if result.ResultsIncluded == 0 {
		fmt.Println("No results.")
		return nil
	}

	fmt.Printf("Context (%d results, confidence %.3f, documents: %s):\n\n",
		result.ResultsIncluded, result.Confidence, strings.Join(result.UsedDocumentIDs, ", "))
	fmt.Println(result.Text)
	return nil
}

func runStats(configPath, tenantID string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	stats, err := store.Stats(ctx, tenantID)
	if err != nil {
		return err
	}

	fmt.Printf("Tenant:    %s\n", tenantID)
	fmt.Printf("Chunks:    %d\n", stats.ChunkCount)
	fmt.Printf("Documents: %d\n", stats.DocCount)
	for _, id := range stats.DocumentIDs {
		fmt.Printf("  - %s\n", id)
	}
	return nil
}

func runDeleteDoc(configPath, tenantID, documentID string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	found, err := store.DeleteDocument(ctx, tenantID, documentID)
	if err != nil {
		return err
	}
	if !found {
		fmt.Printf("Document %s not found for tenant %s\n", documentID, tenantID)
		return nil
	}
	fmt.Printf("Deleted document %s for tenant %s\n", documentID, tenantID)
	return nil
}

func runOffboard(configPath, tenantID string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.DeleteCollection(ctx, tenantID); err != nil {
		return err
	}
	fmt.Printf("Offboarded tenant %s\n", tenantID)
	return nil
}
