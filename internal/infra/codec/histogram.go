package codec

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"

	"retouch/internal/domain/raster"
)

const (
	histogramWidth  = 512
	histogramHeight = 200
)

var (
	histogramBackground = color.NRGBA{R: 24, G: 24, B: 24, A: 0xff}
	histogramGrid       = color.NRGBA{R: 60, G: 60, B: 60, A: 0xff}
	histogramLuma       = color.NRGBA{R: 235, G: 235, B: 235, A: 0xff}
)

// Histogram plots the red, green and blue histograms as additive filled
// areas with the luma histogram drawn as a line on top. Counts are scaled to
// the tallest bin.
func Histogram(img *raster.Image) *raster.Image {
	canvas := imaging.New(histogramWidth, histogramHeight, histogramBackground)
	for _, x := range []int{histogramWidth / 4, histogramWidth / 2, 3 * histogramWidth / 4} {
		for y := 0; y < histogramHeight; y++ {
			canvas.SetNRGBA(x, y, histogramGrid)
		}
	}

	channels := img.ChannelHistograms()
	luma := img.LumaHistogram()
	peak := 1
	for _, hist := range append(channels[:], luma) {
		for _, count := range hist {
			peak = max(peak, count)
		}
	}

	barWidth := histogramWidth / 256
	for level := 0; level < 256; level++ {
		for c := 0; c < 3; c++ {
			top := histogramHeight - scaled(channels[c][level], peak)
			for x := level * barWidth; x < (level+1)*barWidth; x++ {
				for y := top; y < histogramHeight; y++ {
					addChannel(canvas, x, y, c)
				}
			}
		}
	}

	prevY := histogramHeight - 1 - scaled(luma[0], peak)
	for level := 0; level < 256; level++ {
		y := histogramHeight - 1 - scaled(luma[level], peak)
		if y < 0 {
			y = 0
		}
		lo, hi := min(prevY, y), max(prevY, y)
		for x := level * barWidth; x < (level+1)*barWidth; x++ {
			for yy := lo; yy <= hi; yy++ {
				canvas.SetNRGBA(x, yy, histogramLuma)
			}
		}
		prevY = y
	}
	return raster.FromImage(canvas)
}

func scaled(count, peak int) int {
	return count * (histogramHeight - 1) / peak
}

func addChannel(canvas *image.NRGBA, x, y, channel int) {
	offset := canvas.PixOffset(x, y) + channel
	v := int(canvas.Pix[offset]) + 150
	if v > 0xff {
		v = 0xff
	}
	canvas.Pix[offset] = uint8(v)
}
