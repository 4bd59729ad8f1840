// Package quality scores detected faces for enrollment and match suitability.
//
// It provides two independent assessments: a boolean gate (Filter) that
// rejects faces unsuitable for any downstream processing, and a continuous
// [0,1] score (Score) used to rank enrollment samples. The two use separate
// pose heuristics on purpose; they approximate different things and are not
// meant to agree.
package quality

import (
	"fmt"
	"image"
	"math"

	log "github.com/sirupsen/logrus"
)

// Face is the quality view of a detected face: its pixel size, the cropped
// face region, and the 5-point landmarks when the detector provided them.
type Face struct {
	Width     int
	Height    int
	Crop      image.Image // may be nil when the source image was unavailable
	Landmarks [][]float64 // [x, y] points: left eye, right eye, nose, mouth corners
}

// Metrics holds the boolean gate results for one face.
type Metrics struct {
	SizeOK       bool
	BlurScore    float64
	BrightnessOK bool
	PoseOK       bool
	Acceptable   bool
}

func (m Metrics) String() string {
	status := "PASS"
	if !m.Acceptable {
		status = "FAIL"
	}
	return fmt.Sprintf("Quality(%s, blur=%.1f, size=%t)", status, m.BlurScore, m.SizeOK)
}

// Filter rejects faces based on size, sharpness, brightness and pose.
type Filter struct {
	MinFaceSize   int
	BlurThreshold float64
	MaxYaw        float64
	MaxPitch      float64
	MinBrightness float64
	MaxBrightness float64
}

// NewFilter creates a filter with the default thresholds.
func NewFilter() *Filter {
	return &Filter{
		MinFaceSize:   60,
		BlurThreshold: 100.0,
		MaxYaw:        45.0,
		MaxPitch:      30.0,
		MinBrightness: 40,
		MaxBrightness: 220,
	}
}

// Assess evaluates one face against all gate checks. The checks are
// independent; Acceptable is their conjunction.
func (f *Filter) Assess(face Face) Metrics {
	sizeOK := face.Width >= f.MinFaceSize && face.Height >= f.MinFaceSize

	blur := BlurScore(face.Crop)

	brightnessOK := f.checkBrightness(face.Crop)

	poseOK := f.checkPose(face.Landmarks)

	return Metrics{
		SizeOK:       sizeOK,
		BlurScore:    blur,
		BrightnessOK: brightnessOK,
		PoseOK:       poseOK,
		Acceptable:   sizeOK && blur >= f.BlurThreshold && brightnessOK && poseOK,
	}
}

// Filter applies Assess to each face and keeps only acceptable ones,
// preserving input order.
func (f *Filter) Filter(faces []Face) []Face {
	if len(faces) == 0 {
		return nil
	}

	accepted := make([]Face, 0, len(faces))
	for _, face := range faces {
		metrics := f.Assess(face)
		if metrics.Acceptable {
			accepted = append(accepted, face)
		} else {
			log.Debugf("Rejected face: %s", metrics)
		}
	}

	log.Debugf("Quality filter: %d/%d faces accepted", len(accepted), len(faces))
	return accepted
}

// checkBrightness verifies the mean grayscale intensity is within range.
func (f *Filter) checkBrightness(img image.Image) bool {
	mean, ok := meanBrightness(img)
	if !ok {
		return false
	}
	return mean >= f.MinBrightness && mean <= f.MaxBrightness
}

// checkPose estimates yaw and pitch from the 5-point landmarks. Faces with
// missing or incomplete landmarks pass; the detector cannot always provide
// them and absence is not evidence of a bad pose.
func (f *Filter) checkPose(landmarks [][]float64) bool {
	if len(landmarks) < 5 {
		return true
	}

	leftEye, rightEye, nose := landmarks[0], landmarks[1], landmarks[2]
	if len(leftEye) < 2 || len(rightEye) < 2 || len(nose) < 2 {
		return true
	}

	eyeDistance := math.Hypot(rightEye[0]-leftEye[0], rightEye[1]-leftEye[1])
	eyeCenterX := (leftEye[0] + rightEye[0]) / 2
	eyeCenterY := (leftEye[1] + rightEye[1]) / 2

	// Rough estimates: nose offset from the eye center, scaled to degrees.
	yaw := math.Abs(nose[0]-eyeCenterX) / eyeDistance * 90
	pitch := math.Abs(nose[1]-eyeCenterY) / eyeDistance * 60

	return yaw <= f.MaxYaw && pitch <= f.MaxPitch
}
