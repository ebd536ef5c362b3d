// Package adjust implements the deterministic pixel adjustments offered to the
// decision-maker. Every function returns a new raster and never touches its
// source; parameters are not clamped here, only output samples are.
package adjust

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"retouch/internal/domain/raster"
)

// ContrastMode selects the slider-to-multiplier mapping for Contrast.
type ContrastMode string

const (
	// ContrastLinear maps p to 1 + p/100.
	ContrastLinear ContrastMode = "linear"
	// ContrastCalibrated maps p to 0.0036p + 1.029, fitted against the
	// desktop editor's slider.
	ContrastCalibrated ContrastMode = "calibrated"
)

// WhitesMode selects which pixels Whites touches.
type WhitesMode string

const (
	// WhitesThreshold adjusts V above fixed thresholds.
	WhitesThreshold WhitesMode = "threshold"
	// WhitesPercentile adjusts pixels at or above the 95th luma percentile.
	WhitesPercentile WhitesMode = "percentile"
)

const defaultLUTCacheSize = 512

// Options configures a Library.
type Options struct {
	ContrastMode ContrastMode
	WhitesMode   WhitesMode
	LUTCacheSize int
}

// DefaultOptions returns the canonical mappings.
func DefaultOptions() Options {
	return Options{
		ContrastMode: ContrastLinear,
		WhitesMode:   WhitesThreshold,
		LUTCacheSize: defaultLUTCacheSize,
	}
}

type lutKind uint8

const (
	lutExposure lutKind = iota
	lutShadows
	lutHighlights
	lutWhites
)

type lutKey struct {
	kind  lutKind
	param float64
}

// Library groups the adjustments with their shared lookup-table cache. It is
// safe for concurrent use; the cache only memoises pure functions of the
// parameter so results never depend on call order.
type Library struct {
	opts Options
	luts *lru.Cache[lutKey, *[256]uint8]
}

// NewLibrary builds a Library. Zero-valued options fall back to defaults.
func NewLibrary(opts Options) (*Library, error) {
	defaults := DefaultOptions()
	if opts.ContrastMode == "" {
		opts.ContrastMode = defaults.ContrastMode
	}
	if opts.WhitesMode == "" {
		opts.WhitesMode = defaults.WhitesMode
	}
	if opts.LUTCacheSize <= 0 {
		opts.LUTCacheSize = defaults.LUTCacheSize
	}
	switch opts.ContrastMode {
	case ContrastLinear, ContrastCalibrated:
	default:
		return nil, fmt.Errorf("unknown contrast mode %q", opts.ContrastMode)
	}
	switch opts.WhitesMode {
	case WhitesThreshold, WhitesPercentile:
	default:
		return nil, fmt.Errorf("unknown whites mode %q", opts.WhitesMode)
	}

	cache, err := lru.New[lutKey, *[256]uint8](opts.LUTCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create lut cache: %w", err)
	}
	return &Library{opts: opts, luts: cache}, nil
}

// Default returns a Library with canonical options.
func Default() *Library {
	lib, err := NewLibrary(DefaultOptions())
	if err != nil {
		panic(err)
	}
	return lib
}

// Options returns the effective options.
func (l *Library) Options() Options {
	return l.opts
}

func (l *Library) lut(kind lutKind, param float64, build func(float64) [256]uint8) *[256]uint8 {
	key := lutKey{kind: kind, param: param}
	if table, ok := l.luts.Get(key); ok {
		return table
	}
	table := build(param)
	l.luts.Add(key, &table)
	return &table
}

// mapValue rescales each pixel so its HSV value follows the table.
func mapValue(src *raster.Image, table *[256]uint8) *raster.Image {
	return src.MapPixels(func(r, g, b uint8) (uint8, uint8, uint8) {
		v := raster.Value(r, g, b)
		nv := table[v]
		if nv == v {
			return r, g, b
		}
		return raster.WithValue(r, g, b, nv)
	})
}
