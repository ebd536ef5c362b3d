package adjust

import (
	"math"

	"retouch/internal/domain/raster"
)

// Exposure applies a power-law curve: gamma = 1/(1+p) for p >= 0, else 1-p.
// Range [-5, 5].
func (l *Library) Exposure(src *raster.Image, p float64) *raster.Image {
	return src.MapChannels(l.lut(lutExposure, p, exposureLUT))
}

func exposureLUT(p float64) [256]uint8 {
	gamma := 1 - p
	if p >= 0 {
		gamma = 1 / (1 + p)
	}
	var table [256]uint8
	for i := range table {
		table[i] = raster.ClampRound(255 * math.Pow(float64(i)/255, gamma))
	}
	return table
}

// Saturation scales chroma about the pixel's luma: f = 1 + p/100.
// Range [-100, 100]; -100 yields grey.
func (l *Library) Saturation(src *raster.Image, p float64) *raster.Image {
	f := 1 + p/100
	return src.MapPixels(func(r, g, b uint8) (uint8, uint8, uint8) {
		lum := raster.Luma(r, g, b)
		scale := func(c uint8) uint8 {
			return raster.ClampRound(lum + f*(float64(c)-lum))
		}
		return scale(r), scale(g), scale(b)
	})
}

// ContrastMultiplier maps a slider value to the multiplier used by Contrast.
func (l *Library) ContrastMultiplier(p float64) float64 {
	if l.opts.ContrastMode == ContrastCalibrated {
		return 0.0036*p + 1.029
	}
	return 1 + p/100
}

// Contrast scales every sample about the rounded mean luma of the image.
// Range [-100, 100].
func (l *Library) Contrast(src *raster.Image, p float64) *raster.Image {
	f := l.ContrastMultiplier(p)
	mean := math.Round(src.MeanLuma())
	var table [256]uint8
	for i := range table {
		table[i] = raster.ClampRound(mean + f*(float64(i)-mean))
	}
	return src.MapChannels(&table)
}

// Tone shifts green against red and blue: G -= trunc(p*0.2). Positive values
// lean magenta, negative values lean green. Range [-150, 150].
func (l *Library) Tone(src *raster.Image, p float64) *raster.Image {
	d := int(p * 0.2)
	return src.MapPixels(func(r, g, b uint8) (uint8, uint8, uint8) {
		return r, raster.Clamp8(int(g) - d), b
	})
}

const (
	neutralKelvin = 6000
	minKelvin     = 2000
	maxKelvin     = 50000
)

// TemperaturePercent normalises a Kelvin value to a signed percentage
// distance from the 6000K neutral point.
func TemperaturePercent(kelvin float64) float64 {
	if kelvin >= neutralKelvin {
		return (kelvin - neutralKelvin) / (maxKelvin - neutralKelvin) * 100
	}
	return (kelvin - neutralKelvin) / (neutralKelvin - minKelvin) * 100
}

// Temperature warms or cools the image: R += delta, B -= delta with
// delta = trunc(pct*0.4). Range [2000, 50000] Kelvin.
func (l *Library) Temperature(src *raster.Image, kelvin float64) *raster.Image {
	delta := int(TemperaturePercent(kelvin) * 0.4)
	if delta == 0 {
		return src.Clone()
	}
	return src.MapPixels(func(r, g, b uint8) (uint8, uint8, uint8) {
		return raster.Clamp8(int(r) + delta), g, raster.Clamp8(int(b) - delta)
	})
}
