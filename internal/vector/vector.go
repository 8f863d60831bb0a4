// Package vector defines the tenant-scoped vector storage contract.
package vector

import "context"

// Chunk is one embedded slice of a document's extracted text.
type Chunk struct {
	DocumentID string
	TenantID   string
	Index      int
	Content    string
	StartChar  int
	EndChar    int
	Page       int
	Method     string
	Category   string
	Vector     []float32
}

// RetrievalResult is a single match from a tenant-scoped similarity search.
type RetrievalResult struct {
	ChunkID    string
	DocumentID string
	Score      float32
	Content    string
	Metadata   map[string]string
}

// CollectionStats summarizes a tenant's collection contents.
type CollectionStats struct {
	ChunkCount  int
	DocCount    int
	DocumentIDs []string
}

// SearchParams bounds a tenant-scoped search.
type SearchParams struct {
	Query          []float32
	Limit          int
	ScoreThreshold float32
	// DocumentID restricts results to a single document when set.
	DocumentID string
}

// Store provides per-tenant vector storage and similarity search.
// Every read and write takes an explicit tenant; there is no code path
// that touches more than one tenant's data.
type Store interface {
	// EnsureCollection provisions the tenant's collection if absent.
	// An "already exists" outcome is success.
	EnsureCollection(ctx context.Context, tenantID string) error
	// Upsert writes chunks into the tenant's collection. Idempotent per
	// (tenant, document, index): re-ingestion overwrites, never duplicates.
	Upsert(ctx context.Context, tenantID string, chunks []Chunk) error
	// Search returns ranked results from the tenant's collection.
	Search(ctx context.Context, tenantID string, params SearchParams) ([]RetrievalResult, error)
	// DeleteDocument removes all chunks of one document. Zero matches is
	// reported via found=false, not an error.
	DeleteDocument(ctx context.Context, tenantID, documentID string) (found bool, err error)
	// DeleteCollection tears down the whole tenant space.
	DeleteCollection(ctx context.Context, tenantID string) error
	// Stats scans the tenant's collection and reports chunk and document counts.
	Stats(ctx context.Context, tenantID string) (*CollectionStats, error)
	// Close releases resources.
	Close() error
}
