// Package retrieve assembles bounded-size grounding context for chat.
package retrieve

import (
	"context"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/bkaradeniz/ragline/internal/embed"
	"github.com/bkaradeniz/ragline/internal/observability"
	"github.com/bkaradeniz/ragline/internal/vector"
)

const separator = "\n\n"

// Params bounds one retrieval.
type Params struct {
	MaxResults      int
	MaxContextChars int
	ScoreThreshold  float32
	// DocumentID restricts retrieval to one document when set.
	DocumentID string
}

// Context is the assembled grounding context for one query.
type Context struct {
	Text            string
	UsedDocumentIDs []string
	Confidence      float32
	ResultsIncluded int
}

// Builder runs tenant-scoped search and packs results under a character
// budget.
type Builder struct {
	store    vector.Store
	embedder embed.Embedder
	logger   *slog.Logger
}

// NewBuilder creates a Builder.
func NewBuilder(store vector.Store, embedder embed.Embedder, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{
		store:    store,
		embedder: embedder,
		logger:   logger.With("component", "retriever"),
	}
}

// Retrieve searches the tenant's collection and greedily appends result
// content in descending score order until the next whole chunk would
// exceed the budget. Chunks are never truncated mid-content. Any search
// or embedding failure yields an empty context so the chat flow can
// continue unaugmented.
func (b *Builder) Retrieve(ctx context.Context, tenantID, query string, params Params) *Context {
	if params.MaxResults <= 0 {
		params.MaxResults = 5
	}
	if params.MaxContextChars <= 0 {
		params.MaxContextChars = 4000
	}

	empty := &Context{}
	vecs, err := b.embedder.Embed(ctx, []string{query})
	if err != nil || len(vecs) == 0 {
		b.logger.Warn("query embedding failed, returning empty context",
			"tenant_id", tenantID, "err", err)
		return empty
	}

	searchCtx, span := observability.StartSearchSpan(ctx, tenantID, params.MaxResults)
	defer span.End()

	results, err := b.store.Search(searchCtx, tenantID, vector.SearchParams{
		Query:          vecs[0],
		Limit:          params.MaxResults,
		ScoreThreshold: params.ScoreThreshold,
		DocumentID:     params.DocumentID,
	})
	if err != nil {
		observability.RecordError(span, err)
		b.logger.Warn("search failed, returning empty context",
			"tenant_id", tenantID, "err", err)
		return empty
	}
	if len(results) == 0 {
		return empty
	}
	observability.RecordSearchResult(span, len(results), results[0].Score)

	return pack(results, params.MaxContextChars)
}

// pack fills the character budget with whole chunks in rank order.
func pack(results []vector.RetrievalResult, budget int) *Context {
	var (
		parts    []string
		docs     []string
		seenDocs = make(map[string]struct{})
		used     int
		scoreSum float32
	)
	for _, res := range results {
		cost := utf8.RuneCountInString(res.Content)
		if len(parts) > 0 {
			cost += len(separator)
		}
		if used+cost > budget {
			break
		}
		used += cost
		parts = append(parts, res.Content)
		scoreSum += res.Score
		if _, ok := seenDocs[res.DocumentID]; !ok && res.DocumentID != "" {
			seenDocs[res.DocumentID] = struct{}{}
			docs = append(docs, res.DocumentID)
		}
	}

	out := &Context{
		Text:            strings.Join(parts, separator),
		UsedDocumentIDs: docs,
		ResultsIncluded: len(parts),
	}
	if len(parts) > 0 {
		out.Confidence = scoreSum / float32(len(parts))
	}
	return out
}
