package scene

import (
	"math"
	"time"
)

// HistogramBins is the number of bins per RGB channel. 8 bins per channel
// (512 total) is coarse enough to ride out sensor noise on analog
// captures while still separating takes shot against different backdrops.
const HistogramBins = 8

const histogramSize = HistogramBins * HistogramBins * HistogramBins

// Descriptor is the per-frame signal the segmentation engine consumes: a
// normalized color histogram plus the frame's index and presentation
// time. Descriptors are immutable and scoped to one detection run.
type Descriptor struct {
	Index int
	Time  time.Duration
	Hist  [histogramSize]float64
}

// NewDescriptor computes a descriptor from packed rgb24 pixel data.
func NewDescriptor(index int, t time.Duration, rgb []byte) Descriptor {
	d := Descriptor{Index: index, Time: t}

	binSize := 256 / HistogramBins
	pixels := len(rgb) / 3

	for i := 0; i < pixels*3; i += 3 {
		rBin := int(rgb[i]) / binSize
		gBin := int(rgb[i+1]) / binSize
		bBin := int(rgb[i+2]) / binSize
		d.Hist[rBin*HistogramBins*HistogramBins+gBin*HistogramBins+bBin]++
	}

	if pixels > 0 {
		total := float64(pixels)
		for i := range d.Hist {
			d.Hist[i] /= total
		}
	}

	return d
}

// Dissimilarity is one minus the Pearson correlation of the two
// histograms: 0 for identical frames, growing with visual change.
// Symmetric in its arguments.
func Dissimilarity(a, b *Descriptor) float64 {
	return 1 - correlation(a, b)
}

// correlation computes the Pearson correlation coefficient between two
// histograms, matching OpenCV's HISTCMP_CORREL method.
func correlation(a, b *Descriptor) float64 {
	n := len(a.Hist)

	var mean1, mean2 float64
	for i := 0; i < n; i++ {
		mean1 += a.Hist[i]
		mean2 += b.Hist[i]
	}
	mean1 /= float64(n)
	mean2 /= float64(n)

	var numerator, denom1, denom2 float64
	for i := 0; i < n; i++ {
		d1 := a.Hist[i] - mean1
		d2 := b.Hist[i] - mean2
		numerator += d1 * d2
		denom1 += d1 * d1
		denom2 += d2 * d2
	}

	denom := math.Sqrt(denom1 * denom2)
	if denom < 1e-10 {
		// Both histograms essentially uniform, treat as identical
		return 1.0
	}

	return numerator / denom
}
