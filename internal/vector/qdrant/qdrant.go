// Package qdrant implements vector.Store on a Qdrant cluster, one
// collection per tenant.
package qdrant

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/bkaradeniz/ragline/internal/vector"
)

// Payload fields carried on every point. tenant_id, document_id and
// category get keyword indexes so filtered reads stay sub-linear.
const (
	fieldTenantID   = "tenant_id"
	fieldDocumentID = "document_id"
	fieldCategory   = "category"
	fieldContent    = "content"
	fieldChunkIndex = "chunk_index"
	fieldPage       = "page"
	fieldMethod     = "method"
	fieldStartChar  = "start_char"
	fieldEndChar    = "end_char"
)

const scrollPageSize = 256

// Config holds connection and collection parameters.
type Config struct {
	Host string
	Port int
	// Dimension is the configured vector size for new collections. It is
	// reconciled against the embedding model's actual output at startup.
	Dimension int
	// Distance is the metric for new collections: "cosine" (default),
	// "dot" or "euclid".
	Distance string
}

// Manager owns per-tenant collections on one Qdrant cluster.
type Manager struct {
	conn        *grpc.ClientConn
	collections pb.CollectionsClient
	points      pb.PointsClient
	dimension   uint64
	distance    pb.Distance
	logger      *slog.Logger
}

// NewManager connects to Qdrant.
func NewManager(ctx context.Context, cfg Config, logger *slog.Logger) (*Manager, error) {
	if logger == nil {
		logger = slog.Default()
	}
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("qdrant connect: %w", err)
	}
	return &Manager{
		conn:        conn,
		collections: pb.NewCollectionsClient(conn),
		points:      pb.NewPointsClient(conn),
		dimension:   uint64(cfg.Dimension),
		distance:    parseDistance(cfg.Distance),
		logger:      logger.With("component", "qdrant"),
	}, nil
}

func parseDistance(name string) pb.Distance {
	switch strings.ToLower(name) {
	case "", "cosine":
		return pb.Distance_Cosine
	case "dot":
		return pb.Distance_Dot
	case "euclid", "euclidean":
		return pb.Distance_Euclid
	default:
		return pb.Distance_Cosine
	}
}

// CollectionName is a pure function of the tenant id, stable across
// restarts. Characters outside [a-z0-9_-] are folded to '_'.
func CollectionName(tenantID string) string {
	var sb strings.Builder
	sb.WriteString("tenant_")
	for _, r := range strings.ToLower(tenantID) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '-':
			sb.WriteRune(r)
		default:
			sb.WriteByte('_')
		}
	}
	return sb.String()
}

// ReconcileDimension adopts the embedding model's actual output dimension
// for future collection creates. Existing collections keep the dimension
// they were created with.
func (m *Manager) ReconcileDimension(actual int) {
	if actual <= 0 || uint64(actual) == m.dimension {
		return
	}
	m.logger.Warn("embedding dimension differs from configured, adopting actual",
		"configured", m.dimension,
		"actual", actual,
	)
	m.dimension = uint64(actual)
}

// Ping verifies the cluster is reachable.
func (m *Manager) Ping(ctx context.Context) error {
	_, err := m.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return fmt.Errorf("qdrant ping: %w", err)
	}
	return nil
}

// EnsureCollection provisions the tenant's collection and its payload
// indexes. A concurrent create racing us returns AlreadyExists, which is
// success: provisioning is create-if-absent, not check-then-create.
func (m *Manager) EnsureCollection(ctx context.Context, tenantID string) error {
	if tenantID == "" {
		return fmt.Errorf("tenant id required")
	}
	name := CollectionName(tenantID)

	exists, err := m.collections.CollectionExists(ctx, &pb.CollectionExistsRequest{
		CollectionName: name,
	})
	if err != nil {
		return fmt.Errorf("check collection %s: %w", name, err)
	}
	if exists.GetResult().GetExists() {
		return nil
	}

	_, err = m.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: name,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     m.dimension,
					Distance: m.distance,
				},
			},
		},
	})
	if err != nil && status.Code(err) != codes.AlreadyExists {
		return fmt.Errorf("create collection %s: %w", name, err)
	}

	for _, field := range []string{fieldTenantID, fieldDocumentID, fieldCategory} {
		_, err := m.points.CreateFieldIndex(ctx, &pb.CreateFieldIndexCollection{
			CollectionName: name,
			FieldName:      field,
			FieldType:      pb.FieldType_FieldTypeKeyword.Enum(),
		})
		if err != nil && status.Code(err) != codes.AlreadyExists {
			return fmt.Errorf("index %s on %s: %w", field, name, err)
		}
	}

	m.logger.Info("collection provisioned", "tenant_id", tenantID, "collection", name)
	return nil
}

func (m *Manager) Upsert(ctx context.Context, tenantID string, chunks []vector.Chunk) error {
	if tenantID == "" {
		return fmt.Errorf("tenant id required")
	}
	if len(chunks) == 0 {
		return nil
	}

	points := make([]*pb.PointStruct, len(chunks))
	for i, c := range chunks {
		points[i] = &pb.PointStruct{
			Id: &pb.PointId{PointIdOptions: &pb.PointId_Uuid{
				Uuid: vector.ChunkID(tenantID, c.DocumentID, c.Index),
			}},
			Vectors: &pb.Vectors{VectorsOptions: &pb.Vectors_Vector{
				Vector: &pb.Vector{Data: c.Vector},
			}},
			Payload: chunkPayload(tenantID, c),
		}
	}

	wait := true
	_, err := m.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: CollectionName(tenantID),
		Points:         points,
		Wait:           &wait,
	})
	if err != nil {
		return fmt.Errorf("upsert %d chunks for tenant %s: %w", len(chunks), tenantID, err)
	}
	return nil
}

func chunkPayload(tenantID string, c vector.Chunk) map[string]*pb.Value {
	payload := map[string]*pb.Value{
		fieldTenantID:   stringValue(tenantID),
		fieldDocumentID: stringValue(c.DocumentID),
		fieldContent:    stringValue(c.Content),
		fieldChunkIndex: intValue(int64(c.Index)),
		fieldPage:       intValue(int64(c.Page)),
		fieldMethod:     stringValue(c.Method),
		fieldStartChar:  intValue(int64(c.StartChar)),
		fieldEndChar:    intValue(int64(c.EndChar)),
	}
	if c.Category != "" {
		payload[fieldCategory] = stringValue(c.Category)
	}
	return payload
}

func stringValue(s string) *pb.Value {
	return &pb.Value{Kind: &pb.Value_StringValue{StringValue: s}}
}

func intValue(n int64) *pb.Value {
	return &pb.Value{Kind: &pb.Value_IntegerValue{IntegerValue: n}}
}

// tenantFilter builds the mandatory tenant condition, optionally narrowed
// to one document. Every read and delete goes through this; there is no
// unfiltered code path.
func tenantFilter(tenantID, documentID string) *pb.Filter {
	must := []*pb.Condition{keywordCondition(fieldTenantID, tenantID)}
	if documentID != "" {
		must = append(must, keywordCondition(fieldDocumentID, documentID))
	}
	return &pb.Filter{Must: must}
}

func keywordCondition(field, value string) *pb.Condition {
	return &pb.Condition{ConditionOneOf: &pb.Condition_Field{Field: &pb.FieldCondition{
		Key:   field,
		Match: &pb.Match{MatchValue: &pb.Match_Keyword{Keyword: value}},
	}}}
}

func (m *Manager) Search(ctx context.Context, tenantID string, params vector.SearchParams) ([]vector.RetrievalResult, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("tenant id required")
	}
	limit := params.Limit
	if limit <= 0 {
		limit = 10
	}

	req := &pb.SearchPoints{
		CollectionName: CollectionName(tenantID),
		Vector:         params.Query,
		Limit:          uint64(limit),
		Filter:         tenantFilter(tenantID, params.DocumentID),
		WithPayload: &pb.WithPayloadSelector{
			SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true},
		},
	}
	if params.ScoreThreshold > 0 {
		threshold := params.ScoreThreshold
		req.ScoreThreshold = &threshold
	}

	resp, err := m.points.Search(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("search tenant %s: %w", tenantID, err)
	}

	results := make([]vector.RetrievalResult, 0, len(resp.GetResult()))
	for _, pt := range resp.GetResult() {
		results = append(results, scoredPointResult(pt))
	}
	return results, nil
}

func scoredPointResult(pt *pb.ScoredPoint) vector.RetrievalResult {
	res := vector.RetrievalResult{
		ChunkID:  pt.GetId().GetUuid(),
		Score:    clampScore(pt.GetScore()),
		Metadata: make(map[string]string),
	}
	for key, val := range pt.GetPayload() {
		switch key {
		case fieldContent:
			res.Content = val.GetStringValue()
		case fieldDocumentID:
			res.DocumentID = val.GetStringValue()
		case fieldTenantID:
			// Implied by the collection; not repeated in metadata.
		case fieldChunkIndex, fieldPage, fieldStartChar, fieldEndChar:
			res.Metadata[key] = fmt.Sprintf("%d", val.GetIntegerValue())
		default:
			res.Metadata[key] = val.GetStringValue()
		}
	}
	return res
}

// clampScore maps a similarity score into [0,1]. Cosine scores can dip
// marginally below zero for near-orthogonal vectors.
func clampScore(s float32) float32 {
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}

// DeleteDocument removes every chunk of documentID. Zero matching chunks
// is a normal outcome reported via found=false.
func (m *Manager) DeleteDocument(ctx context.Context, tenantID, documentID string) (bool, error) {
	if tenantID == "" {
		return false, fmt.Errorf("tenant id required")
	}
	// An empty document id would widen the filter to the whole tenant.
	if documentID == "" {
		return false, fmt.Errorf("document id required")
	}
	name := CollectionName(tenantID)
	filter := tenantFilter(tenantID, documentID)

	exact := true
	count, err := m.points.Count(ctx, &pb.CountPoints{
		CollectionName: name,
		Filter:         filter,
		Exact:          &exact,
	})
	if err != nil {
		return false, fmt.Errorf("count document %s: %w", documentID, err)
	}
	if count.GetResult().GetCount() == 0 {
		return false, nil
	}

	wait := true
	_, err = m.points.Delete(ctx, &pb.DeletePoints{
		CollectionName: name,
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Filter{Filter: filter},
		},
		Wait: &wait,
	})
	if err != nil {
		return false, fmt.Errorf("delete document %s: %w", documentID, err)
	}
	m.logger.Info("document chunks deleted",
		"tenant_id", tenantID,
		"document_id", documentID,
		"chunks", count.GetResult().GetCount(),
	)
	return true, nil
}

// DeleteCollection tears down the tenant's whole collection. Used for
// tenant offboarding; a missing collection is success.
func (m *Manager) DeleteCollection(ctx context.Context, tenantID string) error {
	if tenantID == "" {
		return fmt.Errorf("tenant id required")
	}
	name := CollectionName(tenantID)
	_, err := m.collections.Delete(ctx, &pb.DeleteCollection{CollectionName: name})
	if err != nil && status.Code(err) != codes.NotFound {
		return fmt.Errorf("delete collection %s: %w", name, err)
	}
	return nil
}

// Stats pages through the tenant's collection and aggregates chunk and
// document counts.
func (m *Manager) Stats(ctx context.Context, tenantID string) (*vector.CollectionStats, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("tenant id required")
	}
	name := CollectionName(tenantID)
	stats := &vector.CollectionStats{}
	docs := make(map[string]struct{})

	var offset *pb.PointId
	pageSize := uint32(scrollPageSize)
	for {
		resp, err := m.points.Scroll(ctx, &pb.ScrollPoints{
			CollectionName: name,
			Filter:         tenantFilter(tenantID, ""),
			Limit:          &pageSize,
			Offset:         offset,
			WithPayload: &pb.WithPayloadSelector{
				SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true},
			},
		})
		if err != nil {
			// A tenant that never ingested has no collection yet; that
			// is empty stats, not a failure.
			if status.Code(err) == codes.NotFound {
				return stats, nil
			}
			return nil, fmt.Errorf("stats scroll %s: %w", name, err)
		}
		for _, pt := range resp.GetResult() {
			stats.ChunkCount++
			if doc := pt.GetPayload()[fieldDocumentID].GetStringValue(); doc != "" {
				docs[doc] = struct{}{}
			}
		}
		offset = resp.GetNextPageOffset()
		if offset == nil {
			break
		}
	}

	for doc := range docs {
		stats.DocumentIDs = append(stats.DocumentIDs, doc)
	}
	stats.DocCount = len(docs)
	return stats, nil
}

func (m *Manager) Close() error {
	return m.conn.Close()
}

var _ vector.Store = (*Manager)(nil)
