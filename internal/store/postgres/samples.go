package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"github.com/mvanek/faceattend/internal/store"
)

// SampleRepository stores enrolled face samples in PostgreSQL.
type SampleRepository struct {
	pool *Pool
}

// NewSampleRepository creates a repository over the given pool.
func NewSampleRepository(pool *Pool) *SampleRepository {
	return &SampleRepository{pool: pool}
}

// SimilarSample is one row from a similarity search.
type SimilarSample struct {
	Person     string
	Similarity float64
	Quality    float64
}

// SaveSamples inserts all samples for person. Existing rows for the person
// are replaced, so a push mirrors the in-memory store.
func (r *SampleRepository) SaveSamples(ctx context.Context, person string, samples []store.Sample) error {
	tx, err := r.pool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM face_samples WHERE person = $1", person); err != nil {
		return fmt.Errorf("delete existing samples: %w", err)
	}

	const insert = `
		INSERT INTO face_samples (id, person, embedding, quality, det_score)
		VALUES ($1, $2, $3, $4, $5)
	`
	for _, s := range samples {
		_, err := tx.ExecContext(ctx, insert,
			uuid.New(), person, pgvector.NewVector(s.Embedding), s.Quality, s.DetScore)
		if err != nil {
			return fmt.Errorf("insert sample for %s: %w", person, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit samples for %s: %w", person, err)
	}
	return nil
}

// GetSamples returns every stored sample for person, best quality first.
func (r *SampleRepository) GetSamples(ctx context.Context, person string) ([]store.Sample, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT embedding, quality, det_score
		FROM face_samples
		WHERE person = $1
		ORDER BY quality * det_score DESC
	`, person)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var samples []store.Sample
	for rows.Next() {
		var vec pgvector.Vector
		var s store.Sample
		if err := rows.Scan(&vec, &s.Quality, &s.DetScore); err != nil {
			return nil, fmt.Errorf("scan sample: %w", err)
		}
		s.Embedding = vec.Slice()
		samples = append(samples, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate samples: %w", err)
	}
	return samples, nil
}

// People returns the distinct person names with stored samples.
func (r *SampleRepository) People(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, "SELECT DISTINCT person FROM face_samples ORDER BY person")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var people []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scan person: %w", err)
		}
		people = append(people, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate people: %w", err)
	}
	return people, nil
}

// DeletePerson removes every sample for person. Returns the number of rows
// removed.
func (r *SampleRepository) DeletePerson(ctx context.Context, person string) (int64, error) {
	result, err := r.pool.Exec(ctx, "DELETE FROM face_samples WHERE person = $1", person)
	if err != nil {
		return 0, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

// Count returns the total number of stored samples.
func (r *SampleRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM face_samples").Scan(&count); err != nil {
		return 0, fmt.Errorf("count samples: %w", err)
	}
	return count, nil
}

// FindSimilar runs a server-side cosine similarity search and returns the
// closest samples across all people.
func (r *SampleRepository) FindSimilar(ctx context.Context, embedding []float32, limit int) ([]SimilarSample, error) {
	if limit <= 0 {
		limit = 5
	}

	vec := pgvector.NewVector(embedding)
	rows, err := r.pool.Query(ctx, `
		SELECT person, 1 - (embedding <=> $1) AS similarity, quality
		FROM face_samples
		ORDER BY embedding <=> $1
		LIMIT $2
	`, vec, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var matches []SimilarSample
	for rows.Next() {
		var m SimilarSample
		if err := rows.Scan(&m.Person, &m.Similarity, &m.Quality); err != nil {
			return nil, fmt.Errorf("scan similar sample: %w", err)
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate similar samples: %w", err)
	}
	return matches, nil
}
