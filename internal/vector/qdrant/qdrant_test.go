package qdrant

import (
	"context"
	"testing"

	pb "github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestCollectionName(t *testing.T) {
	cases := map[string]string{
		"acme":           "tenant_acme",
		"Acme Corp":      "tenant_acme_corp",
		"ACME-2":         "tenant_acme-2",
		"a.b/c":          "tenant_a_b_c",
		"under_score":    "tenant_under_score",
		"":               "tenant_",
		"müller GmbH":    "tenant_m_ller_gmbh",
		"tenant@example": "tenant_tenant_example",
	}
	for in, want := range cases {
		assert.Equal(t, want, CollectionName(in), "tenant %q", in)
	}
}

func TestCollectionNameStable(t *testing.T) {
	assert.Equal(t, CollectionName("Acme"), CollectionName("acme"))
}

func TestParseDistance(t *testing.T) {
	assert.Equal(t, pb.Distance_Cosine, parseDistance(""))
	assert.Equal(t, pb.Distance_Cosine, parseDistance("cosine"))
	assert.Equal(t, pb.Distance_Cosine, parseDistance("Cosine"))
	assert.Equal(t, pb.Distance_Dot, parseDistance("dot"))
	assert.Equal(t, pb.Distance_Euclid, parseDistance("euclid"))
	assert.Equal(t, pb.Distance_Euclid, parseDistance("euclidean"))
	assert.Equal(t, pb.Distance_Cosine, parseDistance("manhattan"))
}

func TestClampScore(t *testing.T) {
	assert.Equal(t, float32(0), clampScore(-0.001))
	assert.Equal(t, float32(0), clampScore(-1))
	assert.Equal(t, float32(0.5), clampScore(0.5))
	assert.Equal(t, float32(1), clampScore(1.0001))
}

func TestTenantFilterAlwaysPresent(t *testing.T) {
	f := tenantFilter("acme", "")
	require.Len(t, f.Must, 1)
	cond := f.Must[0].GetField()
	require.NotNil(t, cond)
	assert.Equal(t, fieldTenantID, cond.Key)
	assert.Equal(t, "acme", cond.Match.GetKeyword())
}

func TestTenantFilterWithDocument(t *testing.T) {
	f := tenantFilter("acme", "doc-7")
	require.Len(t, f.Must, 2)
	assert.Equal(t, fieldDocumentID, f.Must[1].GetField().Key)
	assert.Equal(t, "doc-7", f.Must[1].GetField().Match.GetKeyword())
}

func TestScoredPointResultPayloadMapping(t *testing.T) {
	pt := &pb.ScoredPoint{
		Id:    &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: "point-id"}},
		Score: 0.73,
		Payload: map[string]*pb.Value{
			fieldContent:    {Kind: &pb.Value_StringValue{StringValue: "chunk text"}},
			fieldDocumentID: {Kind: &pb.Value_StringValue{StringValue: "doc-1"}},
			fieldTenantID:   {Kind: &pb.Value_StringValue{StringValue: "acme"}},
			fieldChunkIndex: {Kind: &pb.Value_IntegerValue{IntegerValue: 3}},
			fieldPage:       {Kind: &pb.Value_IntegerValue{IntegerValue: 1}},
			fieldMethod:     {Kind: &pb.Value_StringValue{StringValue: "text"}},
		},
	}

	res := scoredPointResult(pt)
	assert.Equal(t, "point-id", res.ChunkID)
	assert.Equal(t, "doc-1", res.DocumentID)
	assert.Equal(t, "chunk text", res.Content)
	assert.InDelta(t, 0.73, float64(res.Score), 1e-6)
	assert.Equal(t, "3", res.Metadata[fieldChunkIndex])
	assert.Equal(t, "1", res.Metadata[fieldPage])
	assert.Equal(t, "text", res.Metadata[fieldMethod])
	assert.NotContains(t, res.Metadata, fieldTenantID)
}

// An empty document id must never widen the delete filter to the whole
// tenant collection. The guard fires before any RPC is issued.
func TestDeleteDocumentEmptyIDRejected(t *testing.T) {
	ctx := context.Background()
	m, err := NewManager(ctx, Config{Host: "localhost", Port: 6334}, nil)
	require.NoError(t, err)
	defer m.Close()

	found, err := m.DeleteDocument(ctx, "acme", "")
	assert.Error(t, err)
	assert.False(t, found)
	assert.Contains(t, err.Error(), "document id required")
}

type notFoundPoints struct {
	pb.PointsClient
}

func (notFoundPoints) Scroll(ctx context.Context, in *pb.ScrollPoints, opts ...grpc.CallOption) (*pb.ScrollResponse, error) {
	return nil, status.Error(codes.NotFound, "collection not found")
}

// A tenant that never ingested has no collection. Stats reports that as
// empty, matching the in-memory backend.
func TestStatsMissingCollectionIsEmpty(t *testing.T) {
	m := &Manager{points: notFoundPoints{}}

	stats, err := m.Stats(context.Background(), "brand-new")
	require.NoError(t, err)
	assert.Equal(t, 0, stats.ChunkCount)
	assert.Equal(t, 0, stats.DocCount)
	assert.Empty(t, stats.DocumentIDs)
}
