package adjust

import (
	"retouch/internal/domain/raster"
)

// The value-channel adjustments below are chains of masked steps on V. Each
// step tests the output of the previous one, not the original V, and samples
// saturate after every step.

const (
	shadowsLow  = 40
	shadowsMid  = 120
	highlightLo = 110
	highlightHi = 205
	whitesLow   = 110
	whitesHigh  = 255
)

// sliderStrength converts a [-100, 100] slider to the V delta used by the
// masked steps.
func sliderStrength(p float64) int {
	return int(p * 0.4)
}

func add(v, d int) int {
	return int(raster.Clamp8(v + d))
}

// Shadows lifts or deepens V below the mid threshold. Range [-100, 100].
func (l *Library) Shadows(src *raster.Image, p float64) *raster.Image {
	return mapValue(src, l.lut(lutShadows, float64(sliderStrength(p)), shadowsLUT))
}

func shadowsLUT(param float64) [256]uint8 {
	value := int(param)
	var table [256]uint8
	for i := range table {
		table[i] = uint8(shadowsStep(i, value))
	}
	return table
}

func shadowsStep(v, value int) int {
	if value < 0 {
		a := -value
		if v <= shadowsLow {
			v = add(v, a)
		}
		if v <= shadowsMid {
			v = add(v, -a)
		}
		if a > shadowsLow/2 {
			b := int(0.2 * float64(a))
			if v >= shadowsMid {
				v = add(v, -b)
			}
			if v <= b {
				v = b
			}
			if v <= shadowsLow {
				v = add(v, -b)
			}
		}
		return v
	}

	if v <= shadowsMid {
		v = add(v, value)
	}
	if v <= shadowsLow {
		v = add(v, -value)
	}
	if value > shadowsLow/2 {
		b := int(0.2 * float64(value))
		if v <= shadowsLow {
			v = add(v, b)
		}
		if v >= shadowsMid {
			v = add(v, b)
		}
	}
	return v
}

// Highlights mirrors Shadows between the mid and high thresholds, clamping
// at 255. Range [-100, 100].
func (l *Library) Highlights(src *raster.Image, p float64) *raster.Image {
	return mapValue(src, l.lut(lutHighlights, float64(sliderStrength(p)), highlightsLUT))
}

func highlightsLUT(param float64) [256]uint8 {
	value := int(param)
	var table [256]uint8
	for i := range table {
		table[i] = uint8(highlightsStep(i, value))
	}
	return table
}

func highlightsStep(v, value int) int {
	threshold := (highlightHi - highlightLo) / 8
	if value < 0 {
		a := -value
		if v <= highlightLo {
			v = add(v, a)
		}
		if v <= highlightHi {
			v = add(v, -a)
		}
		if a > threshold {
			strong := int(0.7 * float64(a))
			half := int(0.5 * float64(a))
			if v >= highlightHi {
				v = add(v, -strong)
			}
			if v <= strong {
				v = half
			}
			if v <= highlightLo {
				v = add(v, -half)
			}
		}
		return v
	}

	if v <= highlightHi {
		v = add(v, value)
	}
	if v <= highlightLo {
		v = add(v, -value)
	}
	if value > threshold {
		half := int(0.5 * float64(value))
		if v <= highlightLo {
			v = add(v, half)
		}
		if ceiling := 255 - half; v >= ceiling {
			v = ceiling
		}
		if v >= highlightHi {
			v = add(v, half)
		}
	}
	return v
}

// Whites moves V in the bright range. In threshold mode the fixed 110..255
// band is used; in percentile mode every pixel whose luma reaches the 95th
// percentile gets V += value. Range [-100, 100].
func (l *Library) Whites(src *raster.Image, p float64) *raster.Image {
	value := sliderStrength(p)
	if l.opts.WhitesMode == WhitesPercentile {
		return whitesPercentile(src, value)
	}
	return mapValue(src, l.lut(lutWhites, float64(value), whitesLUT))
}

func whitesLUT(param float64) [256]uint8 {
	value := int(param)
	var table [256]uint8
	for i := range table {
		table[i] = uint8(whitesStep(i, value))
	}
	return table
}

func whitesStep(v, value int) int {
	half := (whitesHigh - whitesLow) / 2
	if value < 0 {
		a := -value
		if v >= whitesLow {
			v = add(v, -a)
		}
		if a > half {
			b := int(0.2 * float64(a))
			if v < b {
				v = b
			}
			if v <= whitesLow {
				v = add(v, -b)
			}
		}
		return v
	}

	if ceiling := whitesHigh - value; v >= ceiling {
		v = ceiling
	}
	if v >= whitesLow {
		v = add(v, value)
	}
	if value >= half {
		if v <= whitesLow {
			v = add(v, int(0.2*float64(value)))
		}
	}
	return v
}

func whitesPercentile(src *raster.Image, value int) *raster.Image {
	if value == 0 {
		return src.Clone()
	}
	cut := src.LumaPercentile(95)
	return src.MapPixels(func(r, g, b uint8) (uint8, uint8, uint8) {
		if int(raster.Luma8(r, g, b)) < cut {
			return r, g, b
		}
		v := raster.Value(r, g, b)
		return raster.WithValue(r, g, b, raster.Clamp8(int(v)+value))
	})
}

// BlacksThreshold finds the shadow cut-off: half the luma level of the
// histogram's dominant peak in the lower half of the range.
func BlacksThreshold(src *raster.Image) int {
	hist := src.LumaHistogram()
	peak := 0
	for level := 1; level < 128; level++ {
		if hist[level] > hist[peak] {
			peak = level
		}
	}
	return int(float64(peak) * 0.5)
}

// Blacks multiplies every channel sample below the adaptive shadow threshold
// by 1 + p/100, truncating. Range [-100, 100].
func (l *Library) Blacks(src *raster.Image, p float64) *raster.Image {
	threshold := BlacksThreshold(src)
	f := 1 + p/100
	var table [256]uint8
	for i := range table {
		if i < threshold {
			table[i] = raster.Clamp8(int(float64(i) * f))
		} else {
			table[i] = uint8(i)
		}
	}
	return src.MapChannels(&table)
}
