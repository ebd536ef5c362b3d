package retouch

import (
	"context"

	"retouch/internal/domain/adjust"
	"retouch/internal/domain/agent/ports"
	"retouch/internal/domain/raster"
)

// Catalogue operation names.
const (
	OpExposure         = "adjust_exposure"
	OpSaturation       = "adjust_saturation"
	OpContrast         = "adjust_contrast"
	OpShadows          = "adjust_shadows"
	OpHighlights       = "adjust_highlights"
	OpWhites           = "adjust_whites"
	OpBlacks           = "adjust_blacks"
	OpTone             = "adjust_tone"
	OpColorTemperature = "adjust_color_temperature"
	OpIndividualColor  = "adjust_individual_color"
	OpUndoStep         = "undo_step"
)

// sliderTool applies one single-parameter library operation.
type sliderTool struct {
	BaseTool
	param string
	apply func(*raster.Image, float64) *raster.Image
}

type sliderSpec struct {
	name        string
	param       string
	description string
	paramDesc   string
	min, max    float64
	tags        []string
}

func newSlider(spec sliderSpec, apply func(*raster.Image, float64) *raster.Image) ports.ToolExecutor {
	return &sliderTool{
		BaseTool: NewBaseTool(
			ports.ToolDefinition{
				Name:        spec.name,
				Description: spec.description,
				Parameters: ports.ParameterSchema{
					Type: "object",
					Properties: map[string]ports.Property{
						spec.param: ports.Bounds(spec.paramDesc, spec.min, spec.max),
						"reason":   reasonProperty(),
					},
					Required: []string{spec.param, "reason"},
				},
			},
			ports.ToolMetadata{
				Name:     spec.name,
				Version:  "1.0.0",
				Category: ports.CategoryAdjustment,
				Tags:     append([]string{"adjustment"}, spec.tags...),
			},
		),
		param: spec.param,
		apply: apply,
	}
}

func (t *sliderTool) Execute(ctx context.Context, ws ports.Workspace, call ports.ToolCall) (*ports.ToolResult, error) {
	value, err := requireFloat(call, t.param)
	if err != nil {
		return nil, err
	}
	return commit(ctx, ws, call, func(img *raster.Image) *raster.Image {
		return t.apply(img, value)
	})
}

func NewExposure(lib *adjust.Library) ports.ToolExecutor {
	return newSlider(sliderSpec{
		name:        OpExposure,
		param:       "exposure_factor",
		description: "Brighten or darken the whole image with a gamma curve. Positive values brighten.",
		paramDesc:   "Exposure in stops, from -5 to 5. 0 leaves the image unchanged.",
		min:         -5, max: 5,
		tags: []string{"light"},
	}, lib.Exposure)
}

func NewSaturation(lib *adjust.Library) ports.ToolExecutor {
	return newSlider(sliderSpec{
		name:        OpSaturation,
		param:       "saturation_factor",
		description: "Scale colour intensity around each pixel's luminance. -100 removes all colour.",
		paramDesc:   "Saturation change from -100 to 100.",
		min:         -100, max: 100,
		tags: []string{"color"},
	}, lib.Saturation)
}

func NewContrast(lib *adjust.Library) ports.ToolExecutor {
	return newSlider(sliderSpec{
		name:        OpContrast,
		param:       "contrast_factor",
		description: "Stretch or compress tones around the image's mean brightness.",
		paramDesc:   "Contrast change from -100 to 100.",
		min:         -100, max: 100,
		tags: []string{"light"},
	}, lib.Contrast)
}

func NewShadows(lib *adjust.Library) ports.ToolExecutor {
	return newSlider(sliderSpec{
		name:        OpShadows,
		param:       "shadow_factor",
		description: "Lift or deepen the dark tones while leaving highlights alone.",
		paramDesc:   "Shadow change from -100 to 100.",
		min:         -100, max: 100,
		tags: []string{"light", "tonal"},
	}, lib.Shadows)
}

func NewHighlights(lib *adjust.Library) ports.ToolExecutor {
	return newSlider(sliderSpec{
		name:        OpHighlights,
		param:       "highlight_factor",
		description: "Recover or boost the bright tones while leaving shadows alone.",
		paramDesc:   "Highlight change from -100 to 100.",
		min:         -100, max: 100,
		tags: []string{"light", "tonal"},
	}, lib.Highlights)
}

func NewWhites(lib *adjust.Library) ports.ToolExecutor {
	return newSlider(sliderSpec{
		name:        OpWhites,
		param:       "white_factor",
		description: "Move the white point: adjusts only the brightest tones.",
		paramDesc:   "Whites change from -100 to 100.",
		min:         -100, max: 100,
		tags: []string{"light", "tonal"},
	}, lib.Whites)
}

func NewBlacks(lib *adjust.Library) ports.ToolExecutor {
	return newSlider(sliderSpec{
		name:        OpBlacks,
		param:       "black_factor",
		description: "Move the black point: scales pixels darker than the image's shadow peak.",
		paramDesc:   "Blacks change from -100 to 100.",
		min:         -100, max: 100,
		tags: []string{"light", "tonal"},
	}, lib.Blacks)
}

func NewTone(lib *adjust.Library) ports.ToolExecutor {
	return newSlider(sliderSpec{
		name:        OpTone,
		param:       "tone_factor",
		description: "Shift the green/magenta tint. Positive values reduce green.",
		paramDesc:   "Tint from -150 to 150.",
		min:         -150, max: 150,
		tags: []string{"color"},
	}, lib.Tone)
}

func NewColorTemperature(lib *adjust.Library) ports.ToolExecutor {
	return newSlider(sliderSpec{
		name:        OpColorTemperature,
		param:       "color_temperature",
		description: "Set white balance in Kelvin. 6000K is neutral; higher is warmer, lower is cooler.",
		paramDesc:   "Colour temperature from 2000 to 50000 Kelvin.",
		min:         2000, max: 50000,
		tags: []string{"color"},
	}, lib.Temperature)
}
