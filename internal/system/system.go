// Package system wires detection, quality assessment, the embedding store,
// matching and the attendance ledger into one recognition pipeline.
package system

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"sort"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	log "github.com/sirupsen/logrus"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/mvanek/faceattend/internal/attendance"
	"github.com/mvanek/faceattend/internal/config"
	"github.com/mvanek/faceattend/internal/detector"
	"github.com/mvanek/faceattend/internal/match"
	"github.com/mvanek/faceattend/internal/quality"
	"github.com/mvanek/faceattend/internal/store"
)

// FaceResult is the outcome for one detected face in a recognition pass.
type FaceResult struct {
	FaceIndex  int
	BBox       []float64
	Matched    bool
	Name       string
	Confidence float64
	DetScore   float64
	Quality    float64
}

// EnrollSummary aggregates a multi-image enrollment.
type EnrollSummary struct {
	Success         bool
	EnrolledCount   int
	TotalEmbeddings int
	AvgQuality      float64
}

// FaceSystem is the recognition pipeline.
type FaceSystem struct {
	detector detector.Detector
	filter   *quality.Filter
	store    *store.Store
	matcher  match.Matcher
	ledger   *attendance.Ledger

	matchThreshold float64
	minQuality     float64
}

// New assembles a pipeline from its parts. ledger may be nil when attendance
// logging is not wanted.
func New(cfg *config.Config, det detector.Detector, filter *quality.Filter, st *store.Store, m match.Matcher, ledger *attendance.Ledger) *FaceSystem {
	return &FaceSystem{
		detector:       det,
		filter:         filter,
		store:          st,
		matcher:        m,
		ledger:         ledger,
		matchThreshold: cfg.Recognition.MatchThreshold,
		minQuality:     cfg.Recognition.MinEmbeddingQuality,
	}
}

// decodeImage decodes the raw bytes for quality analysis. A decode failure
// is not fatal; crop-based checks simply see a nil image.
func decodeImage(data []byte) image.Image {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		log.Warnf("Failed to decode image for quality analysis: %v", err)
		return nil
	}
	return img
}

// assess runs the quality gate and score for one detected face.
func (s *FaceSystem) assess(img image.Image, face *detector.Face) (quality.Metrics, float64) {
	var crop image.Image
	width, height := 0, 0
	if img != nil {
		crop = quality.CropFace(img, face.BBox)
		bounds := img.Bounds()
		width, height = bounds.Dx(), bounds.Dy()
	}

	metrics := s.filter.Assess(quality.Face{
		Width:     face.Width(),
		Height:    face.Height(),
		Crop:      crop,
		Landmarks: face.Landmarks,
	})
	score := quality.Score(quality.ScoreInput{
		BBox:        face.BBox,
		DetScore:    face.DetScore,
		Landmarks:   face.Landmarks,
		Crop:        crop,
		ImageWidth:  width,
		ImageHeight: height,
	})
	return metrics, score
}

// enrollOne detects faces in one image and stores the best acceptable one
// for name. Returns the stored sample's quality when a sample was added.
func (s *FaceSystem) enrollOne(ctx context.Context, name string, imageData []byte) (bool, float64, error) {
	faces, err := s.detector.DetectAndExtract(ctx, imageData)
	if err != nil {
		return false, 0, fmt.Errorf("detecting faces: %w", err)
	}
	if len(faces) == 0 {
		log.Infof("No faces found for %s", name)
		return false, 0, nil
	}

	img := decodeImage(imageData)

	// Candidates must pass the gate and the minimum quality; the best of the
	// survivors by quality*detection rank is enrolled.
	bestIdx := -1
	bestScore := 0.0
	bestRank := -1.0
	for i := range faces {
		metrics, score := s.assess(img, &faces[i])
		if !metrics.Acceptable {
			log.Debugf("Face %d rejected for enrollment: %s", i, metrics)
			continue
		}
		if score < s.minQuality {
			log.Debugf("Face %d scored %.3f, below minimum %.3f", i, score, s.minQuality)
			continue
		}
		if rank := score * faces[i].DetScore; rank > bestRank {
			bestIdx, bestScore, bestRank = i, score, rank
		}
	}
	if bestIdx < 0 {
		log.Infof("No usable face for %s", name)
		return false, 0, nil
	}

	sample := store.Sample{
		Embedding: match.Normalize(faces[bestIdx].Embedding),
		Quality:   bestScore,
		DetScore:  faces[bestIdx].DetScore,
	}
	if err := s.store.Add(name, sample); err != nil {
		log.Errorf("Failed to store embedding for %s: %v", name, err)
		return false, 0, nil
	}

	log.Infof("Enrolled %s (quality %.3f)", name, bestScore)
	return true, bestScore, nil
}

// Enroll adds one face sample for name from a single image. Returns false
// when no acceptable face was found or the store could not be updated.
func (s *FaceSystem) Enroll(ctx context.Context, name string, imageData []byte) (bool, error) {
	ok, _, err := s.enrollOne(ctx, name, imageData)
	return ok, err
}

// EnrollMultiple enrolls name from a batch of images. Success requires at
// least one stored sample. Detector failures for individual images are
// logged and counted as misses rather than aborting the batch.
func (s *FaceSystem) EnrollMultiple(ctx context.Context, name string, images [][]byte) EnrollSummary {
	var summary EnrollSummary
	var qualitySum float64

	for i, data := range images {
		ok, q, err := s.enrollOne(ctx, name, data)
		if err != nil {
			log.Errorf("Enrollment image %d for %s failed: %v", i+1, name, err)
			continue
		}
		if ok {
			summary.EnrolledCount++
			qualitySum += q
		}
	}

	summary.Success = summary.EnrolledCount > 0
	summary.TotalEmbeddings = len(s.store.Samples(name))
	if summary.EnrolledCount > 0 {
		summary.AvgQuality = qualitySum / float64(summary.EnrolledCount)
	}
	return summary
}

// Recognize identifies every face in the image. Faces failing the quality
// gate are reported unmatched without consulting the matcher. When
// logAttendance is set, each match is recorded in the ledger.
func (s *FaceSystem) Recognize(ctx context.Context, imageData []byte, logAttendance bool) ([]FaceResult, error) {
	faces, err := s.detector.DetectAndExtract(ctx, imageData)
	if err != nil {
		return nil, fmt.Errorf("detecting faces: %w", err)
	}
	if len(faces) == 0 {
		return nil, nil
	}

	img := decodeImage(imageData)
	results := make([]FaceResult, 0, len(faces))

	for i := range faces {
		face := &faces[i]
		result := FaceResult{
			FaceIndex: i,
			BBox:      face.BBox,
			DetScore:  face.DetScore,
		}

		metrics, score := s.assess(img, face)
		result.Quality = score
		if !metrics.Acceptable {
			log.Debugf("Face %d skipped in recognition: %s", i, metrics)
			results = append(results, result)
			continue
		}

		m := s.matcher.Match(face.Embedding, score, s.matchThreshold)
		result.Matched = m.Matched
		result.Name = m.Name
		result.Confidence = m.Confidence

		if m.Matched && logAttendance && s.ledger != nil {
			if _, err := s.ledger.Log(m.Name, m.Confidence); err != nil {
				log.Errorf("Failed to log attendance for %s: %v", m.Name, err)
			}
		}

		results = append(results, result)
	}
	return results, nil
}

// Delete removes every stored sample for name. Returns false when the
// person is unknown.
func (s *FaceSystem) Delete(name string) bool {
	return s.store.Delete(name)
}

// Clear removes all enrolled people.
func (s *FaceSystem) Clear() {
	s.store.Clear()
}

// EnrolledNames returns the enrolled display names, sorted.
func (s *FaceSystem) EnrolledNames() []string {
	names := s.store.Names()
	sort.Strings(names)
	return names
}

// EnrolledCount returns the number of enrolled people.
func (s *FaceSystem) EnrolledCount() int {
	return s.store.PersonCount()
}

// SampleCount returns the total number of stored embeddings.
func (s *FaceSystem) SampleCount() int {
	return s.store.Count()
}

// PersonStats returns the stored-sample statistics for name.
func (s *FaceSystem) PersonStats(name string) (store.Stats, bool) {
	return s.store.PersonStats(name)
}

// Ledger exposes the attendance ledger, or nil when none is attached.
func (s *FaceSystem) Ledger() *attendance.Ledger {
	return s.ledger
}

// LogAttendance records attendance for name unless already logged today.
func (s *FaceSystem) LogAttendance(name string, confidence float64) (bool, error) {
	if s.ledger == nil {
		return false, nil
	}
	return s.ledger.Log(name, confidence)
}

// TodayAttendance returns the names logged today.
func (s *FaceSystem) TodayAttendance() ([]string, error) {
	if s.ledger == nil {
		return nil, nil
	}
	return s.ledger.Today()
}

// AttendanceStats returns ledger-wide counters.
func (s *FaceSystem) AttendanceStats() (attendance.Stats, error) {
	if s.ledger == nil {
		return attendance.Stats{}, nil
	}
	return s.ledger.Stats()
}
