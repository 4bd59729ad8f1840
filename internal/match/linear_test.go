package match

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/mvanek/faceattend/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	return store.New(filepath.Join(t.TempDir(), "embeddings.json"), store.DefaultMaxSamplesPerPerson)
}

func TestLinearMatchEmptyStore(t *testing.T) {
	m := NewLinear(newTestStore(t))

	got := m.Match([]float32{1, 0, 0}, 1.0, 0.4)
	if got.Matched {
		t.Errorf("Match() on empty store = %+v, want no match", got)
	}
	if m.Count() != 0 {
		t.Errorf("Count() = %d, want 0", m.Count())
	}
}

func TestLinearMatchPicksClosestPerson(t *testing.T) {
	st := newTestStore(t)
	if err := st.Add("Alice", store.Sample{Embedding: []float32{1, 0, 0}, Quality: 1, DetScore: 1}); err != nil {
		t.Fatal(err)
	}
	if err := st.Add("Bob", store.Sample{Embedding: []float32{0, 1, 0}, Quality: 1, DetScore: 1}); err != nil {
		t.Fatal(err)
	}

	m := NewLinear(st)
	got := m.Match([]float32{0.95, 0.05, 0}, 1.0, 0.5)

	if !got.Matched {
		t.Fatalf("Match() = %+v, want a match", got)
	}
	if got.Name != "Alice" {
		t.Errorf("Match() picked %q, want Alice", got.Name)
	}
	if got.Confidence <= 0.9 {
		t.Errorf("confidence = %f, want > 0.9", got.Confidence)
	}
}

func TestLinearMatchQualityWeighting(t *testing.T) {
	st := newTestStore(t)
	// A perfect similarity with a zero-quality sample weighs 0.7.
	if err := st.Add("Alice", store.Sample{Embedding: []float32{1, 0, 0}, Quality: 0, DetScore: 1}); err != nil {
		t.Fatal(err)
	}

	m := NewLinear(st)
	got := m.Match([]float32{1, 0, 0}, 1.0, 0.5)

	if math.Abs(got.Confidence-0.7) > 1e-6 {
		t.Errorf("confidence = %f, want 0.7", got.Confidence)
	}
	if !got.Matched {
		t.Errorf("Match() = %+v, want a match at threshold 0.5", got)
	}
}

func TestLinearMatchThresholdAdjustment(t *testing.T) {
	st := newTestStore(t)
	if err := st.Add("Alice", store.Sample{Embedding: []float32{1, 0, 0}, Quality: 1, DetScore: 1}); err != nil {
		t.Fatal(err)
	}
	m := NewLinear(st)

	tests := []struct {
		name         string
		queryQuality float64
		threshold    float64
		wantMatch    bool
	}{
		// Weighted similarity is exactly 1.0 for an identical query.
		{"low quality relaxes threshold", 0.0, 1.0, true},    // adjusted 0.8
		{"high quality keeps threshold", 1.0, 1.0, true},     // adjusted 1.0
		{"threshold above reach", 1.0, 1.1, false},           // adjusted 1.1
		{"relaxation not enough", 0.0, 1.3, false},           // adjusted 1.04
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := m.Match([]float32{1, 0, 0}, tc.queryQuality, tc.threshold)
			if got.Matched != tc.wantMatch {
				t.Errorf("Match(quality=%f, threshold=%f).Matched = %v, want %v",
					tc.queryQuality, tc.threshold, got.Matched, tc.wantMatch)
			}
		})
	}
}

func TestLinearMatchTopSamplesAveraged(t *testing.T) {
	st := newTestStore(t)
	// Four samples for one person: only the best three count.
	samples := [][]float32{
		{1, 0, 0},
		{1, 0, 0},
		{1, 0, 0},
		{0, 1, 0},
	}
	for _, emb := range samples {
		if err := st.Add("Alice", store.Sample{Embedding: emb, Quality: 1, DetScore: 1}); err != nil {
			t.Fatal(err)
		}
	}

	m := NewLinear(st)
	got := m.Match([]float32{1, 0, 0}, 1.0, 0.5)

	// Top three weighted similarities are all 1.0; the orthogonal sample is
	// dropped, so the mean stays 1.0.
	if math.Abs(got.Confidence-1.0) > 1e-6 {
		t.Errorf("confidence = %f, want 1.0", got.Confidence)
	}
}
