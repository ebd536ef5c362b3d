package ports

import (
	"context"

	"retouch/internal/domain/history"
	"retouch/internal/domain/raster"
)

// Journal receives everything a session appends so it can be persisted. All
// methods are called from the session's single goroutine.
type Journal interface {
	// ArtifactCommitted is called once per appended artifact, before the
	// version store accepts it. An error keeps the artifact out of the store.
	ArtifactCommitted(ctx context.Context, step int, artifact *history.Artifact) error
	// LogLine appends one processing-log line.
	LogLine(line string) error
	// Message appends one decision-maker-facing message to the transcript.
	Message(msg Message) error
}

// Renderer turns rasters into decision-maker attachments: the current image,
// a before/after composite, and a histogram plot.
type Renderer interface {
	Encode(name string, img *raster.Image) (Attachment, error)
	Comparison(name string, before, after *raster.Image) (Attachment, error)
	Histogram(name string, img *raster.Image) (Attachment, error)
}

// AutomationCall is a validated adjustment forwarded to an on-screen editor.
type AutomationCall struct {
	Operation string
	Values    map[string]float64
}

// Automation converts a validated value into device input on a third-party
// editor. It only ever receives arguments that passed validation.
type Automation interface {
	Perform(ctx context.Context, call AutomationCall) error
}
