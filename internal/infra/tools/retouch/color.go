package retouch

import (
	"context"
	"fmt"

	"retouch/internal/domain/adjust"
	"retouch/internal/domain/agent/ports"
	"retouch/internal/domain/raster"
)

type individualColor struct {
	BaseTool
	lib *adjust.Library
}

func NewIndividualColor(lib *adjust.Library) ports.ToolExecutor {
	properties := map[string]ports.Property{"reason": reasonProperty()}
	for _, band := range adjust.Bands() {
		properties[band.String()] = ports.Property{
			Type:        "string",
			Description: fmt.Sprintf("[hue, saturation, lightness] shift for %s pixels, each from -100 to 100, e.g. \"[10, -20, 0]\".", band),
			Format:      ports.FormatHSLTriple,
		}
	}
	return &individualColor{
		BaseTool: NewBaseTool(
			ports.ToolDefinition{
				Name:        OpIndividualColor,
				Description: "Recolour pixels of selected hue bands. Omit a band to leave it unchanged.",
				Parameters: ports.ParameterSchema{
					Type:       "object",
					Properties: properties,
					Required:   []string{"reason"},
				},
			},
			ports.ToolMetadata{
				Name:     OpIndividualColor,
				Version:  "1.0.0",
				Category: ports.CategoryAdjustment,
				Tags:     []string{"adjustment", "color"},
			},
		),
		lib: lib,
	}
}

func (t *individualColor) Execute(ctx context.Context, ws ports.Workspace, call ports.ToolCall) (*ports.ToolResult, error) {
	bands := BandsFromArguments(call.Arguments)
	return commit(ctx, ws, call, func(img *raster.Image) *raster.Image {
		return t.lib.IndividualColor(img, bands)
	})
}

// BandsFromArguments collects the per-band triples present in args.
func BandsFromArguments(args map[string]any) adjust.ColorBands {
	var bands adjust.ColorBands
	for _, band := range adjust.Bands() {
		triple, ok := TripleArg(args, band.String())
		if !ok {
			continue
		}
		bands.Set(band, adjust.HSLShift{Hue: triple[0], Saturation: triple[1], Lightness: triple[2]})
	}
	return bands
}
