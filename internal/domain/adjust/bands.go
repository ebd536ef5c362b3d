package adjust

import (
	"fmt"
	"math"
	"strings"

	"retouch/internal/domain/raster"
)

// Band is one of the eight named hue ranges.
type Band int

const (
	BandRed Band = iota
	BandOrange
	BandYellow
	BandGreen
	BandCyan
	BandBlue
	BandPurple
	BandMagenta
	bandCount
)

var bandNames = [bandCount]string{"red", "orange", "yellow", "green", "cyan", "blue", "purple", "magenta"}

var bandCentres = [bandCount]float64{0, 30, 60, 120, 180, 240, 270, 300}

// minBandSaturation excludes near-grey pixels whose hue is noise.
const minBandSaturation = 0.05

// Bands lists every band in catalogue order.
func Bands() []Band {
	out := make([]Band, bandCount)
	for i := range out {
		out[i] = Band(i)
	}
	return out
}

func (b Band) String() string {
	if b < 0 || b >= bandCount {
		return fmt.Sprintf("band(%d)", int(b))
	}
	return bandNames[b]
}

// ParseBand resolves a band by name.
func ParseBand(name string) (Band, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, candidate := range bandNames {
		if candidate == name {
			return Band(i), true
		}
	}
	return 0, false
}

// HSLShift is the hue/saturation/lightness triple for one band, each in
// [-100, 100].
type HSLShift struct {
	Hue        float64
	Saturation float64
	Lightness  float64
}

// IsZero reports whether the shift is the identity.
func (s HSLShift) IsZero() bool {
	return s.Hue == 0 && s.Saturation == 0 && s.Lightness == 0
}

// ColorBands holds one shift per band. The zero value changes nothing.
type ColorBands [bandCount]HSLShift

// Set assigns the shift for a band.
func (c *ColorBands) Set(b Band, shift HSLShift) {
	c[b] = shift
}

// IsZero reports whether every band is the identity.
func (c ColorBands) IsZero() bool {
	for _, shift := range c {
		if !shift.IsZero() {
			return false
		}
	}
	return true
}

// BandOf returns the band whose centre is nearest to hue. Ties go to the
// band listed first.
func BandOf(hue float64) Band {
	best := BandRed
	bestDist := math.Inf(1)
	for i, centre := range bandCentres {
		d := math.Abs(hue - centre)
		if d > 180 {
			d = 360 - d
		}
		if d < bestDist {
			best = Band(i)
			bestDist = d
		}
	}
	return best
}

// IndividualColor recolours only pixels whose hue falls in a band with a
// non-zero shift.
func (l *Library) IndividualColor(src *raster.Image, bands ColorBands) *raster.Image {
	if bands.IsZero() {
		return src.Clone()
	}
	return src.MapPixels(func(r, g, b uint8) (uint8, uint8, uint8) {
		h, s, lum := raster.RGBToHSL(r, g, b)
		if s <= minBandSaturation {
			return r, g, b
		}
		shift := bands[BandOf(h)]
		if shift.IsZero() {
			return r, g, b
		}
		h += 0.3 * shift.Hue
		s *= 1 + shift.Saturation/100
		if shift.Lightness > 0 {
			lum += shift.Lightness / 100 * (1 - lum)
		} else {
			lum *= 1 + shift.Lightness/100
		}
		return raster.HSLToRGB(h, s, lum)
	})
}
