package quality

import (
	"image"
	"math"
)

// ScoreInput carries everything the combined quality score needs about one
// detected face.
type ScoreInput struct {
	BBox        []float64 // [x1, y1, x2, y2] in pixels
	DetScore    float64
	Landmarks   [][]float64
	Crop        image.Image
	ImageWidth  int
	ImageHeight int
}

// Score computes the combined [0,1] quality score used to rank enrollment
// samples: 0.3*size + 0.3*detection + 0.2*pose + 0.2*sharpness. Each
// sub-score is normalized to [0,1] independently.
func Score(in ScoreInput) float64 {
	sizeScore := sizeScore(in.BBox, in.ImageWidth, in.ImageHeight)
	poseScore := symmetryPoseScore(in.Landmarks)
	sharpScore := math.Min(BlurScore(in.Crop)/500.0, 1.0)

	return 0.3*sizeScore + 0.3*in.DetScore + 0.2*poseScore + 0.2*sharpScore
}

// sizeScore rewards faces that occupy a larger share of the frame.
func sizeScore(bbox []float64, imageWidth, imageHeight int) float64 {
	if len(bbox) != 4 || imageWidth <= 0 || imageHeight <= 0 {
		return 0
	}
	faceArea := (bbox[2] - bbox[0]) * (bbox[3] - bbox[1])
	if faceArea <= 0 {
		return 0
	}
	imageArea := float64(imageWidth * imageHeight)
	return math.Min(faceArea/imageArea*20, 1.0)
}

// symmetryPoseScore estimates frontal-ness from eye symmetry. Frontal faces
// have level eyes; the larger the vertical eye offset relative to the eye
// distance, the lower the score. Insufficient landmarks default to 0.7.
func symmetryPoseScore(landmarks [][]float64) float64 {
	if len(landmarks) < 5 {
		return 0.7
	}
	leftEye, rightEye := landmarks[0], landmarks[1]
	if len(leftEye) < 2 || len(rightEye) < 2 {
		return 0.7
	}

	eyeYDiff := math.Abs(leftEye[1] - rightEye[1])
	eyeXDist := math.Abs(leftEye[0] - rightEye[0])
	if eyeXDist <= 0 {
		return 0.7
	}

	symmetry := 1.0 - math.Min(eyeYDiff/eyeXDist, 1.0)
	// Slightly below a perfect frontal score; symmetry alone cannot prove it.
	return symmetry * 0.9
}
