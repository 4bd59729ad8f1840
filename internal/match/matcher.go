// Package match resolves query embeddings to enrolled identities. Two
// implementations share one interface: an exact linear scan over the
// enrollment store, and an HNSW-accelerated index for large populations.
package match

// Result is the outcome of matching one query embedding.
type Result struct {
	Name       string // matched display name, empty when Matched is false
	Confidence float64
	Matched    bool
}

// Matcher resolves a query embedding to an enrolled identity. queryQuality is
// the continuous quality score of the query face; implementations may use it
// to adjust the acceptance threshold, or ignore it. threshold is the caller's
// base acceptance threshold for this query.
type Matcher interface {
	Match(query []float32, queryQuality, threshold float64) Result
	Count() int
}
