package codec

import (
	"fmt"

	"retouch/internal/domain/agent/ports"
	"retouch/internal/domain/raster"
)

const mediaTypePNG = "image/png"

// Renderer produces PNG attachments for the decision-maker. Images larger
// than MaxEdge are scaled down before encoding.
type Renderer struct {
	MaxEdge int
}

var _ ports.Renderer = (*Renderer)(nil)

// NewRenderer returns a renderer capping attachments at maxEdge pixels; zero
// keeps full size.
func NewRenderer(maxEdge int) *Renderer {
	return &Renderer{MaxEdge: maxEdge}
}

// Encode renders the current image.
func (r *Renderer) Encode(name string, img *raster.Image) (ports.Attachment, error) {
	return r.attachment(name, FitLongEdge(img, r.MaxEdge))
}

// Comparison renders before (left) and after (right) at a common height.
func (r *Renderer) Comparison(name string, before, after *raster.Image) (ports.Attachment, error) {
	return r.attachment(name, FitLongEdge(SideBySide(before, after), 2*r.MaxEdge))
}

// Histogram renders the channel histogram plot of img.
func (r *Renderer) Histogram(name string, img *raster.Image) (ports.Attachment, error) {
	return r.attachment(name, Histogram(img))
}

func (r *Renderer) attachment(name string, img *raster.Image) (ports.Attachment, error) {
	data, err := EncodePNG(img)
	if err != nil {
		return ports.Attachment{}, fmt.Errorf("render %s: %w", name, err)
	}
	return ports.Attachment{Name: name, MediaType: mediaTypePNG, Data: data}, nil
}
