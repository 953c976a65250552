package frames

import (
	"image"
	"math"
)

// Quality thresholds on the 0-255 luma scale. A frame whose mean luma is
// below minMeanLuma is near-black; one whose luma standard deviation is
// below minLumaStdDev is a blank or frozen frame.
const (
	minMeanLuma    = 16.0
	minLumaStdDev  = 4.0
	sampleStridePx = 4 // sample every 4th pixel in each dimension
)

// usable reports whether a decoded frame carries enough visual
// information to be worth sending to the vision model.
func usable(img image.Image) bool {
	mean, stddev := lumaStats(img)
	return mean >= minMeanLuma && stddev >= minLumaStdDev
}

// lumaStats computes the mean and standard deviation of the frame's luma
// channel, subsampled for speed.
func lumaStats(img image.Image) (mean, stddev float64) {
	bounds := img.Bounds()
	var sum, sumSq float64
	var n int

	for y := bounds.Min.Y; y < bounds.Max.Y; y += sampleStridePx {
		for x := bounds.Min.X; x < bounds.Max.X; x += sampleStridePx {
			r, g, b, _ := img.At(x, y).RGBA()
			// BT.601 luma from 16-bit channel values, scaled to 0-255
			luma := (0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)) / 257.0
			sum += luma
			sumSq += luma * luma
			n++
		}
	}

	if n == 0 {
		return 0, 0
	}
	mean = sum / float64(n)
	variance := sumSq/float64(n) - mean*mean
	if variance < 0 {
		variance = 0
	}
	return mean, math.Sqrt(variance)
}
