package match

// HNSW graph parameters for 512-dim face embeddings.
const (
	// HNSWMaxNeighbors (M) is the maximum number of neighbors per node.
	// Higher values improve recall but increase memory and build time.
	HNSWMaxNeighbors = 16

	// IndexKindHNSW is the only supported index kind. The field is persisted
	// so a future format change can be detected on load.
	IndexKindHNSW = "hnsw"
)
