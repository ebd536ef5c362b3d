// Package codec converts between files, encoded bytes and rasters, and draws
// the derived images the decision-maker looks at.
package codec

import (
	"bytes"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"retouch/internal/domain/raster"
)

// SupportedExtensions lists the source formats Load understands.
var SupportedExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".bmp", ".tif", ".tiff", ".webp"}

// IsSupported reports whether path has a loadable image extension.
func IsSupported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, candidate := range SupportedExtensions {
		if ext == candidate {
			return true
		}
	}
	return false
}

// Load decodes an image file, applying its EXIF orientation.
func Load(path string) (*raster.Image, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return raster.FromImage(img), nil
}

// Decode reads an encoded image from data.
func Decode(data []byte) (*raster.Image, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return raster.FromImage(img), nil
}

// Save writes img in the format implied by the extension of path, creating
// parent directories.
func Save(path string, img *raster.Image) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	if err := imaging.Save(img.ToNRGBA(), path, imaging.JPEGQuality(95)); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}

// EncodePNG returns img as PNG bytes.
func EncodePNG(img *raster.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img.ToNRGBA(), imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// Preview downsamples img so its short edge is at most shortEdge. It returns
// img itself when no reduction is needed or shortEdge is not positive.
func Preview(img *raster.Image, shortEdge int) *raster.Image {
	if shortEdge <= 0 || img.Width == 0 || img.Height == 0 {
		return img
	}
	short := min(img.Width, img.Height)
	if short <= shortEdge {
		return img
	}
	if img.Width <= img.Height {
		return resize(img, shortEdge, 0)
	}
	return resize(img, 0, shortEdge)
}

// FitLongEdge scales img down so its long edge is at most longEdge.
func FitLongEdge(img *raster.Image, longEdge int) *raster.Image {
	if longEdge <= 0 || max(img.Width, img.Height) <= longEdge {
		return img
	}
	return raster.FromImage(imaging.Fit(img.ToNRGBA(), longEdge, longEdge, imaging.Lanczos))
}

func resize(img *raster.Image, width, height int) *raster.Image {
	return raster.FromImage(imaging.Resize(img.ToNRGBA(), width, height, imaging.Lanczos))
}

func toHeight(img *raster.Image, height int) image.Image {
	if img.Height == height {
		return img.ToNRGBA()
	}
	return imaging.Resize(img.ToNRGBA(), 0, height, imaging.Lanczos)
}
