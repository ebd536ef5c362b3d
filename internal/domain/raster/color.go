package raster

import "math"

// Clamp8 saturates an integer sample to [0, 255].
func Clamp8(v int) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}

// ClampRound rounds half away from zero and saturates to [0, 255].
func ClampRound(v float64) uint8 {
	return Clamp8(int(math.Round(v)))
}

// Luma is the ITU-R 601 weighted lightness.
func Luma(r, g, b uint8) float64 {
	return 0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)
}

// Luma8 is the integer 601 luma used for histograms.
func Luma8(r, g, b uint8) uint8 {
	return uint8((int(r)*299 + int(g)*587 + int(b)*114 + 500) / 1000)
}

// Value is the HSV value channel: the maximum of the three samples.
func Value(r, g, b uint8) uint8 {
	v := r
	if g > v {
		v = g
	}
	if b > v {
		v = b
	}
	return v
}

// WithValue rescales a pixel so its HSV value becomes target while hue and
// saturation are kept. A black pixel becomes neutral grey.
func WithValue(r, g, b uint8, target uint8) (uint8, uint8, uint8) {
	v := int(Value(r, g, b))
	if v == 0 {
		return target, target, target
	}
	t := int(target)
	scale := func(c uint8) uint8 {
		return Clamp8((int(c)*t + v/2) / v)
	}
	return scale(r), scale(g), scale(b)
}

// RGBToHSL converts to hue in degrees [0,360) and saturation/lightness in [0,1].
func RGBToHSL(r, g, b uint8) (h, s, l float64) {
	rf, gf, bf := float64(r)/255, float64(g)/255, float64(b)/255
	maxC := math.Max(rf, math.Max(gf, bf))
	minC := math.Min(rf, math.Min(gf, bf))
	l = (maxC + minC) / 2
	delta := maxC - minC
	if delta == 0 {
		return 0, 0, l
	}
	if l > 0.5 {
		s = delta / (2 - maxC - minC)
	} else {
		s = delta / (maxC + minC)
	}
	switch maxC {
	case rf:
		h = math.Mod((gf-bf)/delta, 6)
	case gf:
		h = (bf-rf)/delta + 2
	default:
		h = (rf-gf)/delta + 4
	}
	h *= 60
	if h < 0 {
		h += 360
	}
	return h, s, l
}

// HSLToRGB is the inverse of RGBToHSL. Hue is wrapped, s and l are clamped.
func HSLToRGB(h, s, l float64) (uint8, uint8, uint8) {
	h = math.Mod(h, 360)
	if h < 0 {
		h += 360
	}
	s = clampUnit(s)
	l = clampUnit(l)
	if s == 0 {
		v := ClampRound(l * 255)
		return v, v, v
	}
	c := (1 - math.Abs(2*l-1)) * s
	x := c * (1 - math.Abs(math.Mod(h/60, 2)-1))
	m := l - c/2

	var rf, gf, bf float64
	switch {
	case h < 60:
		rf, gf, bf = c, x, 0
	case h < 120:
		rf, gf, bf = x, c, 0
	case h < 180:
		rf, gf, bf = 0, c, x
	case h < 240:
		rf, gf, bf = 0, x, c
	case h < 300:
		rf, gf, bf = x, 0, c
	default:
		rf, gf, bf = c, 0, x
	}
	return ClampRound((rf + m) * 255), ClampRound((gf + m) * 255), ClampRound((bf + m) * 255)
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
