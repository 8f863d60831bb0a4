package vector

import (
	"fmt"

	"github.com/google/uuid"
)

// chunkNamespace scopes chunk point IDs so they cannot collide with IDs
// minted by other systems sharing the same qdrant cluster.
var chunkNamespace = uuid.MustParse("7f1d3c6a-92b4-4c0e-8f5a-1b2d9e4c7a03")

// ChunkID derives the stable point ID for a chunk. It is a pure function
// of (tenant, document, index), so re-ingesting a document overwrites its
// previous vectors instead of duplicating them.
func ChunkID(tenantID, documentID string, index int) string {
	name := fmt.Sprintf("%s/%s/%d", tenantID, documentID, index)
	return uuid.NewSHA1(chunkNamespace, []byte(name)).String()
}
