package match

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/coder/hnsw"
	log "github.com/sirupsen/logrus"
)

// IndexConfig holds the indexed matcher's persisted configuration.
type IndexConfig struct {
	Threshold float64 `json:"similarity_threshold"`
	Dim       int     `json:"embedding_dim"`
	Kind      string  `json:"index_type"`
}

// StudentMatch is one search result from the indexed matcher.
type StudentMatch struct {
	StudentID  string // empty when no match
	Confidence float64
	IsMatch    bool
}

// Index is the accelerated matcher: an HNSW graph over one embedding per
// student, for deployments where a linear scan over the whole population is
// too slow. Graph node key i maps to studentIDs[i]; the two are kept strictly
// parallel. The underlying graph does not support single-row deletion, so any
// removal rebuilds the index from the surviving rows.
//
// Unlike the linear matcher, acceptance here is a plain threshold comparison
// with no per-sample quality weighting.
type Index struct {
	mu  sync.RWMutex
	cfg IndexConfig

	graph      *hnsw.Graph[int64]
	savedGraph *hnsw.SavedGraph[int64] // set when loaded from disk, until the first mutation

	studentIDs []string
	vectors    [][]float32
	metadata   map[string]map[string]string

	indexPath    string
	snapshotPath string
}

// NewIndex creates an empty indexed matcher. indexPath holds the serialized
// graph, snapshotPath the JSON snapshot with the parallel identifier arrays
// and configuration.
func NewIndex(cfg IndexConfig, indexPath, snapshotPath string) *Index {
	if cfg.Dim <= 0 {
		cfg.Dim = 512
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = 0.65
	}
	if cfg.Kind == "" {
		cfg.Kind = IndexKindHNSW
	}
	return &Index{
		cfg:          cfg,
		metadata:     make(map[string]map[string]string),
		indexPath:    indexPath,
		snapshotPath: snapshotPath,
	}
}

func newGraph() *hnsw.Graph[int64] {
	g := hnsw.NewGraph[int64]()
	g.M = HNSWMaxNeighbors
	g.Ml = 1.0 / float64(HNSWMaxNeighbors) // standard HNSW formula
	g.Distance = hnsw.CosineDistance
	return g
}

// Add registers a student embedding in the index. The embedding is
// L2-normalized before insertion. Returns false for a wrong-size embedding.
func (x *Index) Add(studentID string, embedding []float32, metadata map[string]string) bool {
	x.mu.Lock()
	defer x.mu.Unlock()

	if len(embedding) != x.cfg.Dim {
		log.Errorf("Invalid embedding size for %s: got %d, want %d", studentID, len(embedding), x.cfg.Dim)
		return false
	}

	emb := Normalize(embedding)

	// A graph loaded from disk cannot be appended to; materialize it first.
	if x.savedGraph != nil {
		x.rebuildLocked()
	}
	if x.graph == nil {
		x.graph = newGraph()
	}

	x.graph.Add(hnsw.MakeNode(int64(len(x.studentIDs)), emb))
	x.studentIDs = append(x.studentIDs, studentID)
	x.vectors = append(x.vectors, emb)
	if metadata == nil {
		metadata = map[string]string{}
	}
	x.metadata[studentID] = metadata

	log.Debugf("Added student %s to index (%d rows)", studentID, len(x.studentIDs))
	return true
}

// Search finds the k nearest students to the query embedding. The result
// always has k entries; positions beyond the available neighbors are
// no-match placeholders. IsMatch compares against the configured threshold.
func (x *Index) Search(query []float32, k int) []StudentMatch {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if k <= 0 {
		k = 1
	}
	results := make([]StudentMatch, 0, k)

	if len(x.studentIDs) == 0 {
		return append(results, make([]StudentMatch, k)...)
	}

	q := Normalize(query)

	var neighbors []hnsw.Node[int64]
	if x.savedGraph != nil {
		neighbors = x.savedGraph.Search(q, k)
	} else {
		neighbors = x.graph.Search(q, k)
	}

	for _, n := range neighbors {
		if n.Key < 0 || n.Key >= int64(len(x.studentIDs)) {
			results = append(results, StudentMatch{})
			continue
		}
		sim := CosineSimilarity(q, n.Value)
		m := StudentMatch{Confidence: sim, IsMatch: sim >= x.cfg.Threshold}
		if m.IsMatch {
			m.StudentID = x.studentIDs[n.Key]
		}
		results = append(results, m)
	}

	for len(results) < k {
		results = append(results, StudentMatch{})
	}
	return results
}

// nearest returns the closest student and its similarity. ok is false for an
// empty index or an out-of-range graph key.
func (x *Index) nearest(query []float32) (string, float64, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if len(x.studentIDs) == 0 {
		return "", 0, false
	}

	q := Normalize(query)
	var neighbors []hnsw.Node[int64]
	if x.savedGraph != nil {
		neighbors = x.savedGraph.Search(q, 1)
	} else {
		neighbors = x.graph.Search(q, 1)
	}
	if len(neighbors) == 0 {
		return "", 0, false
	}
	n := neighbors[0]
	if n.Key < 0 || n.Key >= int64(len(x.studentIDs)) {
		return "", 0, false
	}
	return x.studentIDs[n.Key], CosineSimilarity(q, n.Value), true
}

// Match implements the Matcher interface: a top-1 search with a plain
// threshold comparison. queryQuality is deliberately ignored in this path.
func (x *Index) Match(query []float32, _ float64, threshold float64) Result {
	if threshold <= 0 {
		threshold = x.Config().Threshold
	}

	id, sim, ok := x.nearest(query)
	if !ok {
		return Result{}
	}
	if sim < threshold {
		return Result{Confidence: sim}
	}
	return Result{Name: id, Confidence: sim, Matched: true}
}

// Count returns the number of indexed rows.
func (x *Index) Count() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.studentIDs)
}

// Metadata returns the metadata stored for a student, or nil.
func (x *Index) Metadata(studentID string) map[string]string {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.metadata[studentID]
}

// Remove drops every row for the given student and rebuilds the index from
// the survivors. Returns false when the student has no rows.
func (x *Index) Remove(studentID string) bool {
	x.mu.Lock()
	defer x.mu.Unlock()

	found := false
	ids := x.studentIDs[:0]
	vecs := x.vectors[:0]
	for i, id := range x.studentIDs {
		if id == studentID {
			found = true
			continue
		}
		ids = append(ids, id)
		vecs = append(vecs, x.vectors[i])
	}
	if !found {
		return false
	}

	x.studentIDs = ids
	x.vectors = vecs
	delete(x.metadata, studentID)
	x.rebuildLocked()

	log.Infof("Removed student %s, index rebuilt (%d rows)", studentID, len(x.studentIDs))
	return true
}

// rebuildLocked reconstructs the graph from the in-memory rows. Caller holds
// the write lock.
func (x *Index) rebuildLocked() {
	x.savedGraph = nil
	if len(x.studentIDs) == 0 {
		x.graph = nil
		return
	}

	g := newGraph()
	for i, vec := range x.vectors {
		g.Add(hnsw.MakeNode(int64(i), vec))
	}
	x.graph = g
}

// snapshot is the persisted metadata side of the index: the identifier and
// vector arrays parallel to the graph rows, per-student metadata, and the
// configuration the index was built with.
type snapshot struct {
	StudentIDs []string                     `json:"student_ids"`
	Vectors    [][]float32                  `json:"vectors"`
	Metadata   map[string]map[string]string `json:"metadata"`
	Config     IndexConfig                  `json:"config"`
}

// Save persists the graph and the snapshot. An empty index removes both
// files instead.
func (x *Index) Save() error {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if len(x.studentIDs) == 0 {
		_ = os.Remove(x.indexPath)
		_ = os.Remove(x.snapshotPath)
		return nil
	}

	if dir := filepath.Dir(x.indexPath); dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("creating index directory: %w", err)
		}
	}

	f, err := os.Create(x.indexPath)
	if err != nil {
		return fmt.Errorf("creating index file: %w", err)
	}
	if x.savedGraph != nil {
		err = x.savedGraph.Export(f)
	} else {
		err = x.graph.Export(f)
	}
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("exporting index graph: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing index file: %w", err)
	}

	snap := snapshot{
		StudentIDs: x.studentIDs,
		Vectors:    x.vectors,
		Metadata:   x.metadata,
		Config:     x.cfg,
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshaling index snapshot: %w", err)
	}
	if err := os.WriteFile(x.snapshotPath, raw, 0640); err != nil {
		return fmt.Errorf("writing index snapshot: %w", err)
	}

	log.Infof("Index saved (%d rows)", len(x.studentIDs))
	return nil
}

// Load restores the index from disk. Both the graph file and the snapshot
// must be present; when either is missing the index starts empty rather
// than trusting a partial state. Load failures are logged, not fatal.
func (x *Index) Load() error {
	x.mu.Lock()
	defer x.mu.Unlock()

	_, indexErr := os.Stat(x.indexPath)
	_, snapErr := os.Stat(x.snapshotPath)
	if os.IsNotExist(indexErr) || os.IsNotExist(snapErr) {
		if os.IsNotExist(indexErr) != os.IsNotExist(snapErr) {
			log.Warnf("Incomplete index state on disk (index=%v, snapshot=%v), starting empty",
				indexErr == nil, snapErr == nil)
		}
		return nil
	}

	raw, err := os.ReadFile(x.snapshotPath)
	if err != nil {
		log.Warnf("Failed to read index snapshot, starting empty: %v", err)
		return nil
	}
	var snap snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		log.Warnf("Failed to parse index snapshot, starting empty: %v", err)
		return nil
	}
	if len(snap.StudentIDs) != len(snap.Vectors) {
		log.Warnf("Index snapshot is inconsistent (%d ids, %d vectors), starting empty",
			len(snap.StudentIDs), len(snap.Vectors))
		return nil
	}

	saved, err := hnsw.LoadSavedGraph[int64](x.indexPath)
	if err != nil {
		log.Warnf("Failed to load index graph, starting empty: %v", err)
		return nil
	}

	x.savedGraph = saved
	x.graph = nil
	x.studentIDs = snap.StudentIDs
	x.vectors = snap.Vectors
	x.metadata = snap.Metadata
	if x.metadata == nil {
		x.metadata = make(map[string]map[string]string)
	}
	if snap.Config.Dim > 0 {
		x.cfg = snap.Config
	}

	log.Infof("Index loaded (%d rows)", len(x.studentIDs))
	return nil
}

// Clear empties the index and removes its files.
func (x *Index) Clear() {
	x.mu.Lock()
	x.studentIDs = nil
	x.vectors = nil
	x.metadata = make(map[string]map[string]string)
	x.graph = nil
	x.savedGraph = nil
	indexPath, snapshotPath := x.indexPath, x.snapshotPath
	x.mu.Unlock()

	_ = os.Remove(indexPath)
	_ = os.Remove(snapshotPath)
}

// Config returns the index configuration.
func (x *Index) Config() IndexConfig {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.cfg
}
