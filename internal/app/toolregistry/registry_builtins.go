package toolregistry

import (
	"retouch/internal/domain/adjust"
	"retouch/internal/domain/agent/ports"
	"retouch/internal/infra/tools/retouch"
)

// builtinTools is the catalogue in presentation order.
func builtinTools(lib *adjust.Library) []ports.ToolExecutor {
	return []ports.ToolExecutor{
		retouch.NewExposure(lib),
		retouch.NewSaturation(lib),
		retouch.NewContrast(lib),
		retouch.NewShadows(lib),
		retouch.NewHighlights(lib),
		retouch.NewWhites(lib),
		retouch.NewBlacks(lib),
		retouch.NewTone(lib),
		retouch.NewColorTemperature(lib),
		retouch.NewIndividualColor(lib),
		retouch.NewUndoStep(),
	}
}
