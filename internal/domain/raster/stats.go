package raster

import "math"

// LumaHistogram counts pixels per integer luma level.
func (im *Image) LumaHistogram() [256]int {
	var hist [256]int
	for i := 0; i < len(im.Pix); i += 3 {
		hist[Luma8(im.Pix[i], im.Pix[i+1], im.Pix[i+2])]++
	}
	return hist
}

// ChannelHistograms counts samples per level for R, G and B separately.
func (im *Image) ChannelHistograms() [3][256]int {
	var hist [3][256]int
	for i := 0; i < len(im.Pix); i += 3 {
		hist[0][im.Pix[i]]++
		hist[1][im.Pix[i+1]]++
		hist[2][im.Pix[i+2]]++
	}
	return hist
}

// MeanLuma is the average 601 luma. Zero for an empty image.
func (im *Image) MeanLuma() float64 {
	n := im.Len()
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < len(im.Pix); i += 3 {
		sum += Luma(im.Pix[i], im.Pix[i+1], im.Pix[i+2])
	}
	return sum / float64(n)
}

// LumaPercentile returns the smallest luma level L such that at least pct
// percent of pixels have luma <= L (nearest-rank).
func (im *Image) LumaPercentile(pct float64) int {
	n := im.Len()
	if n == 0 {
		return 0
	}
	hist := im.LumaHistogram()
	rank := int(math.Ceil(pct / 100 * float64(n)))
	if rank < 1 {
		rank = 1
	}
	seen := 0
	for level, count := range hist {
		seen += count
		if seen >= rank {
			return level
		}
	}
	return 255
}

// MaxSaturation returns the largest HSL saturation found in the image.
func (im *Image) MaxSaturation() float64 {
	var maxS float64
	for i := 0; i < len(im.Pix); i += 3 {
		if _, s, _ := RGBToHSL(im.Pix[i], im.Pix[i+1], im.Pix[i+2]); s > maxS {
			maxS = s
		}
	}
	return maxS
}
