package codec

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"

	"retouch/internal/domain/raster"
)

// SideBySide scales before and after to a common height (the smaller of the
// two) and places them left and right.
func SideBySide(before, after *raster.Image) *raster.Image {
	height := min(before.Height, after.Height)
	if height <= 0 {
		return raster.New(0, 0)
	}
	left := toHeight(before, height)
	right := toHeight(after, height)

	lw := left.Bounds().Dx()
	canvas := imaging.New(lw+right.Bounds().Dx(), height, color.NRGBA{A: 0xff})
	canvas = imaging.Paste(canvas, left, image.Pt(0, 0))
	canvas = imaging.Paste(canvas, right, image.Pt(lw, 0))
	return raster.FromImage(canvas)
}
