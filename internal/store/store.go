// Package store keeps the per-person enrollment samples: quality-ranked face
// embeddings persisted as a single JSON document.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	log "github.com/sirupsen/logrus"
)

// DefaultMaxSamplesPerPerson is the enrollment cap when none is configured.
const DefaultMaxSamplesPerPerson = 20

// Sample is one enrolled face embedding with the scores it was captured with.
// The embedding is unit-norm and immutable once stored.
type Sample struct {
	Embedding []float32
	Quality   float64
	DetScore  float64
}

// Rank is the ordering key for enrollment samples. Higher ranks are kept when
// the per-person cap is exceeded.
func (s Sample) Rank() float64 {
	return s.Quality * s.DetScore
}

// Person is an enrolled identity with its samples sorted descending by rank.
type Person struct {
	Name    string // display name, first enrolled spelling
	Samples []Sample
}

// Store holds all enrolled persons and persists them to a JSON file after
// every mutation. Load failures degrade to an empty store; the host process
// must stay up even with a corrupt file on disk.
type Store struct {
	mu      sync.RWMutex
	path    string
	maxPer  int
	persons map[string]*Person // keyed by NormalizeName
}

// New creates a store persisting to path. maxPerPerson <= 0 selects the
// default cap.
func New(path string, maxPerPerson int) *Store {
	if maxPerPerson <= 0 {
		maxPerPerson = DefaultMaxSamplesPerPerson
	}
	return &Store{
		path:    path,
		maxPer:  maxPerPerson,
		persons: make(map[string]*Person),
	}
}

// Add appends a sample to the named person, re-ranks their samples and
// truncates to the cap, then persists the store. The person is created on
// first enrollment.
func (s *Store) Add(name string, sample Sample) error {
	s.mu.Lock()

	key := NormalizeName(name)
	p, ok := s.persons[key]
	if !ok {
		p = &Person{Name: name}
		s.persons[key] = p
	}

	p.Samples = append(p.Samples, sample)
	sortSamples(p.Samples)
	if len(p.Samples) > s.maxPer {
		// Eviction: lowest-ranked samples are silently dropped.
		p.Samples = p.Samples[:s.maxPer]
	}

	s.mu.Unlock()
	return s.Save()
}

// Delete removes the person and all their samples. Returns false when the
// person is not enrolled.
func (s *Store) Delete(name string) bool {
	s.mu.Lock()
	key := NormalizeName(name)
	_, ok := s.persons[key]
	if ok {
		delete(s.persons, key)
	}
	s.mu.Unlock()

	if !ok {
		return false
	}
	if err := s.Save(); err != nil {
		log.Errorf("Failed to persist store after deleting %s: %v", name, err)
	}
	return true
}

// Clear removes every enrolled person.
func (s *Store) Clear() {
	s.mu.Lock()
	s.persons = make(map[string]*Person)
	s.mu.Unlock()

	if err := s.Save(); err != nil {
		log.Errorf("Failed to persist store after clear: %v", err)
	}
}

// Samples returns a copy of the named person's samples, or nil when the
// person is not enrolled.
func (s *Store) Samples(name string) []Sample {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.persons[NormalizeName(name)]
	if !ok {
		return nil
	}
	out := make([]Sample, len(p.Samples))
	copy(out, p.Samples)
	return out
}

// People returns a snapshot of all enrolled persons.
func (s *Store) People() []Person {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Person, 0, len(s.persons))
	for _, p := range s.persons {
		cp := Person{Name: p.Name, Samples: make([]Sample, len(p.Samples))}
		copy(cp.Samples, p.Samples)
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Names returns the display names of all enrolled persons, sorted.
func (s *Store) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.persons))
	for _, p := range s.persons {
		names = append(names, p.Name)
	}
	sort.Strings(names)
	return names
}

// Count returns the total number of enrolled samples across all persons.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := 0
	for _, p := range s.persons {
		total += len(p.Samples)
	}
	return total
}

// PersonCount returns the number of enrolled persons.
func (s *Store) PersonCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.persons)
}

// Stats summarizes one person's enrollment samples.
type Stats struct {
	SampleCount int
	AvgQuality  float64
	MaxQuality  float64
	AvgDetScore float64
}

// PersonStats returns enrollment statistics for the named person. The second
// return value is false when the person is not enrolled.
func (s *Store) PersonStats(name string) (Stats, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.persons[NormalizeName(name)]
	if !ok || len(p.Samples) == 0 {
		return Stats{}, false
	}

	var st Stats
	st.SampleCount = len(p.Samples)
	for _, smp := range p.Samples {
		st.AvgQuality += smp.Quality
		st.AvgDetScore += smp.DetScore
		if smp.Quality > st.MaxQuality {
			st.MaxQuality = smp.Quality
		}
	}
	st.AvgQuality /= float64(st.SampleCount)
	st.AvgDetScore /= float64(st.SampleCount)
	return st, true
}

func sortSamples(samples []Sample) {
	sort.SliceStable(samples, func(i, j int) bool {
		return samples[i].Rank() > samples[j].Rank()
	})
}

// sampleJSON is the persisted form of a sample.
type sampleJSON struct {
	Embedding []float32 `json:"embedding"`
	Quality   float64   `json:"quality_score"`
	DetScore  float64   `json:"det_score"`
}

// Save writes the whole store to disk as a single JSON document keyed by
// display name. Not transactional: a crash mid-write can leave the file and
// the in-memory state diverged.
func (s *Store) Save() error {
	s.mu.RLock()
	data := make(map[string][]sampleJSON, len(s.persons))
	for _, p := range s.persons {
		rows := make([]sampleJSON, len(p.Samples))
		for i, smp := range p.Samples {
			rows[i] = sampleJSON{Embedding: smp.Embedding, Quality: smp.Quality, DetScore: smp.DetScore}
		}
		data[p.Name] = rows
	}
	s.mu.RUnlock()

	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshaling embeddings: %w", err)
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("creating data directory: %w", err)
		}
	}
	if err := os.WriteFile(s.path, raw, 0640); err != nil {
		return fmt.Errorf("writing embeddings file: %w", err)
	}
	return nil
}

// Load reads the persisted store. A missing file is an empty store; a
// corrupt file is logged and treated as empty rather than failing startup.
// The legacy format, where a person's value is a bare array of embeddings
// without scores, is still accepted (quality and detection default to 0.5).
func (s *Store) Load() error {
	raw, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		log.Warnf("Failed to read embeddings file %s, starting empty: %v", s.path, err)
		return nil
	}

	var data map[string][]json.RawMessage
	if err := json.Unmarshal(raw, &data); err != nil {
		log.Warnf("Failed to parse embeddings file %s, starting empty: %v", s.path, err)
		return nil
	}

	persons := make(map[string]*Person, len(data))
	for name, rows := range data {
		p := &Person{Name: name}
		for _, row := range rows {
			smp, err := decodeSample(row)
			if err != nil {
				log.Warnf("Skipping malformed sample for %s: %v", name, err)
				continue
			}
			p.Samples = append(p.Samples, smp)
		}
		sortSamples(p.Samples)
		persons[NormalizeName(name)] = p
	}

	s.mu.Lock()
	s.persons = persons
	s.mu.Unlock()

	log.Infof("Loaded %d persons from %s", len(persons), s.path)
	return nil
}

// decodeSample accepts both the current object format and the legacy bare
// embedding array.
func decodeSample(raw json.RawMessage) (Sample, error) {
	// Missing score fields default to 0.5, matching the legacy format.
	obj := sampleJSON{Quality: 0.5, DetScore: 0.5}
	if err := json.Unmarshal(raw, &obj); err == nil && len(obj.Embedding) > 0 {
		return Sample{Embedding: obj.Embedding, Quality: obj.Quality, DetScore: obj.DetScore}, nil
	}

	var legacy []float32
	if err := json.Unmarshal(raw, &legacy); err == nil && len(legacy) > 0 {
		return Sample{Embedding: legacy, Quality: 0.5, DetScore: 0.5}, nil
	}

	return Sample{}, fmt.Errorf("unrecognized sample encoding")
}
