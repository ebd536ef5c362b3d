package adjust

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"retouch/internal/domain/raster"
)

func gradient() *raster.Image {
	img := raster.New(16, 16)
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			img.SetRGB(x, y, uint8(x*16), uint8(y*16), uint8((x+y)*8))
		}
	}
	return img
}

func allOperations(lib *Library) map[string]func(*raster.Image) *raster.Image {
	var bands ColorBands
	bands.Set(BandRed, HSLShift{Hue: 20, Saturation: -30, Lightness: 10})
	bands.Set(BandBlue, HSLShift{Lightness: -40})
	return map[string]func(*raster.Image) *raster.Image{
		"exposure":    func(img *raster.Image) *raster.Image { return lib.Exposure(img, 1.5) },
		"saturation":  func(img *raster.Image) *raster.Image { return lib.Saturation(img, 40) },
		"contrast":    func(img *raster.Image) *raster.Image { return lib.Contrast(img, -25) },
		"shadows":     func(img *raster.Image) *raster.Image { return lib.Shadows(img, -80) },
		"highlights":  func(img *raster.Image) *raster.Image { return lib.Highlights(img, 70) },
		"whites":      func(img *raster.Image) *raster.Image { return lib.Whites(img, 55) },
		"blacks":      func(img *raster.Image) *raster.Image { return lib.Blacks(img, -60) },
		"tone":        func(img *raster.Image) *raster.Image { return lib.Tone(img, 120) },
		"temperature": func(img *raster.Image) *raster.Image { return lib.Temperature(img, 3200) },
		"bands":       func(img *raster.Image) *raster.Image { return lib.IndividualColor(img, bands) },
	}
}

func TestOperationsAreDeterministicAndCopyOnWrite(t *testing.T) {
	lib := Default()
	for name, op := range allOperations(lib) {
		t.Run(name, func(t *testing.T) {
			src := gradient()
			before := src.Clone()

			first := op(src)
			second := op(src)

			require.True(t, first.Equal(second), "output must be byte-identical")
			require.True(t, src.Equal(before), "source must not be mutated")
			require.NotSame(t, src, first)
		})
	}
}

func TestNeutralParametersAreIdentity(t *testing.T) {
	lib := Default()
	src := gradient()

	assert.True(t, lib.Exposure(src, 0).Equal(src), "exposure")
	assert.True(t, lib.Contrast(src, 0).Equal(src), "contrast")
	assert.True(t, lib.Saturation(src, 0).Equal(src), "saturation")
	assert.True(t, lib.Shadows(src, 0).Equal(src), "shadows")
	assert.True(t, lib.Highlights(src, 0).Equal(src), "highlights")
	assert.True(t, lib.Whites(src, 0).Equal(src), "whites")
	assert.True(t, lib.Blacks(src, 0).Equal(src), "blacks")
	assert.True(t, lib.Tone(src, 0).Equal(src), "tone")
	assert.True(t, lib.Temperature(src, 6000).Equal(src), "temperature")
	assert.True(t, lib.IndividualColor(src, ColorBands{}).Equal(src), "bands")
}

func TestSaturationFullDesaturation(t *testing.T) {
	src := raster.Filled(2, 2, 200, 100, 50)
	out := Default().Saturation(src, -100)

	assert.Zero(t, out.MaxSaturation())
	r, g, b := out.RGB(0, 0)
	assert.Equal(t, [3]uint8{124, 124, 124}, [3]uint8{r, g, b})
}

func TestExposureCurve(t *testing.T) {
	src := raster.Filled(1, 1, 64, 0, 255)
	out := Default().Exposure(src, 1)
	r, g, b := out.RGB(0, 0)
	assert.Equal(t, [3]uint8{128, 0, 255}, [3]uint8{r, g, b})

	darker := Default().Exposure(src, -1)
	r, _, _ = darker.RGB(0, 0)
	assert.Less(t, r, uint8(64))
}

func TestContrastAboutMean(t *testing.T) {
	src := raster.New(2, 1)
	src.SetRGB(0, 0, 50, 50, 50)
	src.SetRGB(1, 0, 150, 150, 150)

	out := Default().Contrast(src, 100)
	r0, _, _ := out.RGB(0, 0)
	r1, _, _ := out.RGB(1, 0)
	assert.Equal(t, uint8(0), r0)
	assert.Equal(t, uint8(200), r1)

	calibrated, err := NewLibrary(Options{ContrastMode: ContrastCalibrated})
	require.NoError(t, err)
	assert.InDelta(t, 1.029, calibrated.ContrastMultiplier(0), 1e-9)
	assert.InDelta(t, 1.389, calibrated.ContrastMultiplier(100), 1e-9)
}

func TestShadowsSteps(t *testing.T) {
	assert.Equal(t, 70, shadowsStep(30, 40))
	assert.Equal(t, 8, shadowsStep(0, 40))
	assert.Equal(t, 208, shadowsStep(200, 40))
	assert.Equal(t, 22, shadowsStep(30, -40))
	assert.Equal(t, 80, shadowsStep(80, 0))
}

func TestHighlightsSteps(t *testing.T) {
	assert.Equal(t, 255, highlightsStep(250, 40))
	assert.Equal(t, 190, highlightsStep(150, 40))
	assert.Equal(t, 100, highlightsStep(100, 0))
}

func TestWhitesSteps(t *testing.T) {
	assert.Equal(t, 255, whitesStep(240, 40))
	assert.Equal(t, 150, whitesStep(110, 40))
	assert.Equal(t, 50, whitesStep(50, 40))
	assert.Equal(t, 200, whitesStep(240, -40))
}

func TestShadowsPreservesHue(t *testing.T) {
	src := raster.Filled(1, 1, 60, 30, 15)
	out := Default().Shadows(src, 100)
	r, g, b := out.RGB(0, 0)
	assert.Equal(t, uint8(100), r)
	assert.Equal(t, [3]uint8{100, 50, 25}, [3]uint8{r, g, b})
}

func TestWhitesPercentileOnlyTouchesBrightPixels(t *testing.T) {
	lib, err := NewLibrary(Options{WhitesMode: WhitesPercentile})
	require.NoError(t, err)

	src := raster.New(20, 1)
	for x := 0; x < 20; x++ {
		v := uint8(x * 10)
		src.SetRGB(x, 0, v, v, v)
	}
	out := lib.Whites(src, 50)

	r, _, _ := out.RGB(19, 0)
	assert.Equal(t, uint8(190+20), r)
	r, _, _ = out.RGB(5, 0)
	assert.Equal(t, uint8(50), r)
}

func TestBlacksAdaptiveThreshold(t *testing.T) {
	src := raster.Filled(10, 10, 100, 100, 100)
	src.SetRGB(0, 0, 20, 20, 20)
	require.Equal(t, 50, BlacksThreshold(src))

	out := Default().Blacks(src, -50)
	r, _, _ := out.RGB(0, 0)
	assert.Equal(t, uint8(10), r)
	r, _, _ = out.RGB(1, 1)
	assert.Equal(t, uint8(100), r)
}

func TestToneAndTemperature(t *testing.T) {
	src := raster.Filled(1, 1, 100, 100, 100)
	lib := Default()

	r, g, b := lib.Tone(src, 100).RGB(0, 0)
	assert.Equal(t, [3]uint8{100, 80, 100}, [3]uint8{r, g, b})

	r, g, b = lib.Temperature(src, 50000).RGB(0, 0)
	assert.Equal(t, [3]uint8{140, 100, 60}, [3]uint8{r, g, b})

	r, g, b = lib.Temperature(src, 2000).RGB(0, 0)
	assert.Equal(t, [3]uint8{60, 100, 140}, [3]uint8{r, g, b})

	assert.InDelta(t, 50.0, TemperaturePercent(28000), 1e-9)
}

func TestIndividualColorOnlyTouchesItsBand(t *testing.T) {
	src := raster.New(2, 1)
	src.SetRGB(0, 0, 255, 0, 0)
	src.SetRGB(1, 0, 0, 0, 255)

	var bands ColorBands
	bands.Set(BandRed, HSLShift{Saturation: -100})
	out := Default().IndividualColor(src, bands)

	r, g, b := out.RGB(0, 0)
	assert.Equal(t, [3]uint8{128, 128, 128}, [3]uint8{r, g, b})
	r, g, b = out.RGB(1, 0)
	assert.Equal(t, [3]uint8{0, 0, 255}, [3]uint8{r, g, b})
}

func TestBandOf(t *testing.T) {
	assert.Equal(t, BandRed, BandOf(350))
	assert.Equal(t, BandRed, BandOf(15))
	assert.Equal(t, BandOrange, BandOf(40))
	assert.Equal(t, BandGreen, BandOf(100))
	assert.Equal(t, BandPurple, BandOf(260))
	b, ok := ParseBand(" Magenta ")
	assert.True(t, ok)
	assert.Equal(t, BandMagenta, b)
}

func TestNewLibraryRejectsUnknownModes(t *testing.T) {
	_, err := NewLibrary(Options{ContrastMode: "steep"})
	require.Error(t, err)
	_, err = NewLibrary(Options{WhitesMode: "auto"})
	require.Error(t, err)
}
