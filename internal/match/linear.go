package match

import (
	"sort"

	"github.com/mvanek/faceattend/internal/store"
)

// topSimilarities is how many of a person's best per-sample similarities are
// averaged into their match score. Averaging instead of taking the maximum
// guards against a single lucky comparison, while still rewarding people with
// several good samples.
const topSimilarities = 3

// Linear is the exact matcher: it compares the query against every stored
// sample of every person.
type Linear struct {
	store *store.Store
}

// NewLinear creates a linear-scan matcher over the given store.
func NewLinear(st *store.Store) *Linear {
	return &Linear{store: st}
}

// Match scores every enrolled person and accepts the best one if it clears
// the quality-adjusted threshold. Each stored sample's similarity is weighted
// by that sample's quality (0.7 + 0.3*quality); a person's score is the mean
// of their top 3 weighted similarities. The acceptance bar is
// threshold * (0.8 + 0.2*queryQuality): low-quality query faces must clear a
// relatively higher fraction of the bar.
func (m *Linear) Match(query []float32, queryQuality, threshold float64) Result {
	bestScore := 0.0
	bestName := ""

	for _, person := range m.store.People() {
		if len(person.Samples) == 0 {
			continue
		}

		sims := make([]float64, 0, len(person.Samples))
		for _, smp := range person.Samples {
			sim := CosineSimilarity(query, smp.Embedding)
			sims = append(sims, sim*(0.7+0.3*smp.Quality))
		}

		sort.Sort(sort.Reverse(sort.Float64Slice(sims)))
		n := topSimilarities
		if len(sims) < n {
			n = len(sims)
		}
		var sum float64
		for _, s := range sims[:n] {
			sum += s
		}
		score := sum / float64(n)

		if score > bestScore {
			bestScore = score
			bestName = person.Name
		}
	}

	adjusted := threshold * (0.8 + 0.2*queryQuality)
	if bestName == "" || bestScore < adjusted {
		return Result{Confidence: bestScore}
	}
	return Result{Name: bestName, Confidence: bestScore, Matched: true}
}

// Count returns the number of stored samples scanned per query.
func (m *Linear) Count() int {
	return m.store.Count()
}
