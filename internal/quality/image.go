package quality

import (
	"image"

	"golang.org/x/image/draw"
)

// toGrayscale converts an image to a 2D array of grayscale values (0-255),
// indexed [x][y].
func toGrayscale(img image.Image) [][]float64 {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	gray := make([][]float64, width)
	for x := 0; x < width; x++ {
		gray[x] = make([]float64, height)
		for y := 0; y < height; y++ {
			r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			// ITU-R BT.601 luma formula.
			luma := 0.299*float64(r>>8) + 0.587*float64(g>>8) + 0.114*float64(b>>8)
			gray[x][y] = luma
		}
	}

	return gray
}

// BlurScore computes the Laplacian variance of the image; higher means
// sharper. An empty or nil image scores 0 (fails any sharpness gate).
func BlurScore(img image.Image) float64 {
	if img == nil {
		return 0
	}
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	if width < 3 || height < 3 {
		return 0
	}

	gray := toGrayscale(img)

	// 4-neighbour Laplacian over interior pixels.
	n := (width - 2) * (height - 2)
	responses := make([]float64, 0, n)
	var sum float64
	for x := 1; x < width-1; x++ {
		for y := 1; y < height-1; y++ {
			v := gray[x-1][y] + gray[x+1][y] + gray[x][y-1] + gray[x][y+1] - 4*gray[x][y]
			responses = append(responses, v)
			sum += v
		}
	}

	mean := sum / float64(n)
	var variance float64
	for _, v := range responses {
		d := v - mean
		variance += d * d
	}
	return variance / float64(n)
}

// meanBrightness returns the mean grayscale intensity of the image.
// The second return value is false for nil or empty images.
func meanBrightness(img image.Image) (float64, bool) {
	if img == nil {
		return 0, false
	}
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	if width == 0 || height == 0 {
		return 0, false
	}

	gray := toGrayscale(img)
	var sum float64
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			sum += gray[x][y]
		}
	}
	return sum / float64(width*height), true
}

// CropFace extracts the face region from the image, clamping the bounding box
// to the image bounds. Returns nil when the clamped region is empty.
func CropFace(img image.Image, bbox []float64) image.Image {
	if img == nil || len(bbox) != 4 {
		return nil
	}

	bounds := img.Bounds()
	x1 := clamp(int(bbox[0]), bounds.Min.X, bounds.Max.X)
	y1 := clamp(int(bbox[1]), bounds.Min.Y, bounds.Max.Y)
	x2 := clamp(int(bbox[2]), bounds.Min.X, bounds.Max.X)
	y2 := clamp(int(bbox[3]), bounds.Min.Y, bounds.Max.Y)
	if x2 <= x1 || y2 <= y1 {
		return nil
	}

	rect := image.Rect(x1, y1, x2, y2)
	dst := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	draw.Copy(dst, image.Point{}, img, rect, draw.Src, nil)
	return dst
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
