package quality

import (
	"image"
	"image/color"
	"math"
	"testing"
)

// checkerboard builds a sharp test image alternating between two gray levels.
func checkerboard(size int, dark, light uint8) image.Image {
	img := image.NewGray(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			v := dark
			if (x+y)%2 == 0 {
				v = light
			}
			img.SetGray(x, y, color.Gray{Y: v})
		}
	}
	return img
}

// flat builds a uniform test image with no high-frequency content.
func flat(size int, value uint8) image.Image {
	img := image.NewGray(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.SetGray(x, y, color.Gray{Y: value})
		}
	}
	return img
}

// frontal five-point landmarks with level eyes and a centered nose.
func frontalLandmarks() [][]float64 {
	return [][]float64{
		{40, 50}, {80, 50}, {60, 70}, {45, 90}, {75, 90},
	}
}

func TestAssess(t *testing.T) {
	f := NewFilter()
	sharp := checkerboard(100, 80, 160)

	tests := []struct {
		name string
		face Face
		want bool
	}{
		{
			"acceptable face",
			Face{Width: 100, Height: 100, Crop: sharp, Landmarks: frontalLandmarks()},
			true,
		},
		{
			"too small",
			Face{Width: 50, Height: 100, Crop: sharp},
			false,
		},
		{
			"blurry",
			Face{Width: 100, Height: 100, Crop: flat(100, 120)},
			false,
		},
		{
			"too dark",
			Face{Width: 100, Height: 100, Crop: checkerboard(100, 0, 40)},
			false,
		},
		{
			"too bright",
			Face{Width: 100, Height: 100, Crop: checkerboard(100, 215, 255)},
			false,
		},
		{
			"missing crop",
			Face{Width: 100, Height: 100},
			false,
		},
		{
			"missing landmarks pass the pose check",
			Face{Width: 100, Height: 100, Crop: sharp},
			true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := f.Assess(tc.face)
			if got.Acceptable != tc.want {
				t.Errorf("Assess() = %s, want acceptable=%t", got, tc.want)
			}
		})
	}
}

func TestAssessPose(t *testing.T) {
	f := NewFilter()
	sharp := checkerboard(100, 80, 160)

	// Nose far right of the eye center reads as a strong yaw.
	rotated := frontalLandmarks()
	rotated[2] = []float64{95, 60}

	got := f.Assess(Face{Width: 100, Height: 100, Crop: sharp, Landmarks: rotated})
	if got.PoseOK {
		t.Errorf("Assess() = %s, want pose rejection for a turned face", got)
	}

	// Partial landmarks cannot be judged and must pass.
	got = f.Assess(Face{Width: 100, Height: 100, Crop: sharp, Landmarks: [][]float64{{40, 50}, {80, 50}}})
	if !got.PoseOK {
		t.Errorf("Assess() = %s, want pose pass for partial landmarks", got)
	}
}

func TestFilterPreservesOrder(t *testing.T) {
	f := NewFilter()
	sharp := checkerboard(100, 80, 160)

	faces := []Face{
		{Width: 100, Height: 100, Crop: sharp},
		{Width: 30, Height: 30, Crop: sharp}, // rejected
		{Width: 120, Height: 120, Crop: sharp},
	}

	got := f.Filter(faces)
	if len(got) != 2 {
		t.Fatalf("Filter() kept %d faces, want 2", len(got))
	}
	if got[0].Width != 100 || got[1].Width != 120 {
		t.Errorf("Filter() reordered faces: %v", got)
	}
}

func TestBlurScore(t *testing.T) {
	if got := BlurScore(nil); got != 0 {
		t.Errorf("BlurScore(nil) = %f, want 0", got)
	}
	if got := BlurScore(flat(2, 120)); got != 0 {
		t.Errorf("BlurScore(2x2) = %f, want 0", got)
	}
	if got := BlurScore(flat(50, 120)); got != 0 {
		t.Errorf("BlurScore(flat) = %f, want 0", got)
	}
	if got := BlurScore(checkerboard(50, 80, 160)); got < 100 {
		t.Errorf("BlurScore(checkerboard) = %f, want >= 100", got)
	}
}

func TestCropFace(t *testing.T) {
	img := checkerboard(100, 80, 160)

	crop := CropFace(img, []float64{10, 20, 60, 90})
	if crop == nil {
		t.Fatal("CropFace() = nil for a valid bbox")
	}
	if b := crop.Bounds(); b.Dx() != 50 || b.Dy() != 70 {
		t.Errorf("crop size = %dx%d, want 50x70", b.Dx(), b.Dy())
	}

	// A bbox hanging over the edge is clamped, not rejected.
	crop = CropFace(img, []float64{-20, -20, 50, 50})
	if crop == nil {
		t.Fatal("CropFace() = nil for an out-of-bounds bbox")
	}
	if b := crop.Bounds(); b.Dx() != 50 || b.Dy() != 50 {
		t.Errorf("clamped crop size = %dx%d, want 50x50", b.Dx(), b.Dy())
	}

	if CropFace(img, []float64{60, 60, 10, 10}) != nil {
		t.Error("CropFace() accepted an inverted bbox")
	}
	if CropFace(nil, []float64{0, 0, 10, 10}) != nil {
		t.Error("CropFace() accepted a nil image")
	}
	if CropFace(img, []float64{0, 0, 10}) != nil {
		t.Error("CropFace() accepted a short bbox")
	}
}

func TestScore(t *testing.T) {
	// Full-frame bbox, perfect detection, no crop, no landmarks:
	// 0.3*1 + 0.3*1 + 0.2*0.7 + 0.2*0 = 0.74.
	got := Score(ScoreInput{
		BBox:        []float64{0, 0, 100, 100},
		DetScore:    1,
		ImageWidth:  100,
		ImageHeight: 100,
	})
	if math.Abs(got-0.74) > 1e-9 {
		t.Errorf("Score() = %f, want 0.74", got)
	}

	// Level eyes raise the pose component to 0.9.
	got = Score(ScoreInput{
		BBox:        []float64{0, 0, 100, 100},
		DetScore:    1,
		Landmarks:   frontalLandmarks(),
		ImageWidth:  100,
		ImageHeight: 100,
	})
	if math.Abs(got-0.78) > 1e-9 {
		t.Errorf("Score() = %f, want 0.78", got)
	}

	// A sharp crop adds the full sharpness component.
	got = Score(ScoreInput{
		BBox:        []float64{0, 0, 100, 100},
		DetScore:    1,
		Crop:        checkerboard(100, 80, 160),
		ImageWidth:  100,
		ImageHeight: 100,
	})
	if math.Abs(got-0.94) > 1e-9 {
		t.Errorf("Score() = %f, want 0.94", got)
	}
}

func TestScoreSmallFace(t *testing.T) {
	// A 10x10 face in a 100x100 frame: size component 100/10000*20 = 0.2.
	small := Score(ScoreInput{
		BBox:        []float64{0, 0, 10, 10},
		DetScore:    0.9,
		ImageWidth:  100,
		ImageHeight: 100,
	})
	large := Score(ScoreInput{
		BBox:        []float64{0, 0, 80, 80},
		DetScore:    0.9,
		ImageWidth:  100,
		ImageHeight: 100,
	})
	if small >= large {
		t.Errorf("small face scored %f, large %f; want small < large", small, large)
	}

	if got := Score(ScoreInput{DetScore: 1}); math.Abs(got-0.44) > 1e-9 {
		t.Errorf("Score() with no bbox = %f, want 0.44", got)
	}
}
