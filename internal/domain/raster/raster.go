// Package raster holds the in-memory image buffer shared by the adjustment
// library, the version store and the codec.
package raster

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
)

// Image is an 8-bit RGB raster stored row-major with three interleaved
// channels per pixel. Images handed out by the version store are treated as
// immutable; adjustments always allocate a new buffer.
type Image struct {
	Width  int
	Height int
	Pix    []uint8
}

// New allocates a black image.
func New(width, height int) *Image {
	if width < 0 || height < 0 {
		panic(fmt.Sprintf("raster: negative size %dx%d", width, height))
	}
	return &Image{Width: width, Height: height, Pix: make([]uint8, width*height*3)}
}

// Filled allocates an image where every pixel has the given colour.
func Filled(width, height int, r, g, b uint8) *Image {
	img := New(width, height)
	for i := 0; i < len(img.Pix); i += 3 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2] = r, g, b
	}
	return img
}

// FromImage converts any image.Image into an RGB raster. Alpha is dropped
// after compositing onto black, matching how the codec flattens PNGs.
func FromImage(src image.Image) *Image {
	bounds := src.Bounds()
	img := New(bounds.Dx(), bounds.Dy())
	i := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			c := color.NRGBAModel.Convert(src.At(x, y)).(color.NRGBA)
			if c.A == 0xff {
				img.Pix[i], img.Pix[i+1], img.Pix[i+2] = c.R, c.G, c.B
			} else {
				a := uint32(c.A)
				img.Pix[i] = uint8(uint32(c.R) * a / 0xff)
				img.Pix[i+1] = uint8(uint32(c.G) * a / 0xff)
				img.Pix[i+2] = uint8(uint32(c.B) * a / 0xff)
			}
			i += 3
		}
	}
	return img
}

// ToNRGBA returns an opaque image.NRGBA view for encoders and resamplers.
func (im *Image) ToNRGBA() *image.NRGBA {
	out := image.NewNRGBA(image.Rect(0, 0, im.Width, im.Height))
	for p, q := 0, 0; p < len(im.Pix); p, q = p+3, q+4 {
		out.Pix[q] = im.Pix[p]
		out.Pix[q+1] = im.Pix[p+1]
		out.Pix[q+2] = im.Pix[p+2]
		out.Pix[q+3] = 0xff
	}
	return out
}

// Clone returns a deep copy.
func (im *Image) Clone() *Image {
	pix := make([]uint8, len(im.Pix))
	copy(pix, im.Pix)
	return &Image{Width: im.Width, Height: im.Height, Pix: pix}
}

// Equal reports whether both rasters have the same size and bytes.
func (im *Image) Equal(other *Image) bool {
	if im == nil || other == nil {
		return im == other
	}
	return im.Width == other.Width && im.Height == other.Height && bytes.Equal(im.Pix, other.Pix)
}

// Len returns the number of pixels.
func (im *Image) Len() int {
	return im.Width * im.Height
}

// RGB returns the pixel at (x, y).
func (im *Image) RGB(x, y int) (r, g, b uint8) {
	i := (y*im.Width + x) * 3
	return im.Pix[i], im.Pix[i+1], im.Pix[i+2]
}

// SetRGB writes the pixel at (x, y).
func (im *Image) SetRGB(x, y int, r, g, b uint8) {
	i := (y*im.Width + x) * 3
	im.Pix[i], im.Pix[i+1], im.Pix[i+2] = r, g, b
}

// MapPixels returns a new image where every pixel is replaced by fn's result.
func (im *Image) MapPixels(fn func(r, g, b uint8) (uint8, uint8, uint8)) *Image {
	out := &Image{Width: im.Width, Height: im.Height, Pix: make([]uint8, len(im.Pix))}
	for i := 0; i < len(im.Pix); i += 3 {
		out.Pix[i], out.Pix[i+1], out.Pix[i+2] = fn(im.Pix[i], im.Pix[i+1], im.Pix[i+2])
	}
	return out
}

// MapChannels applies a per-channel lookup table to every sample.
func (im *Image) MapChannels(lut *[256]uint8) *Image {
	out := &Image{Width: im.Width, Height: im.Height, Pix: make([]uint8, len(im.Pix))}
	for i, v := range im.Pix {
		out.Pix[i] = lut[v]
	}
	return out
}
