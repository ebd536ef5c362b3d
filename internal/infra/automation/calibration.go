// Package automation turns validated adjustment values into pointer input on
// an on-screen editor, using a calibration map of slider positions.
package automation

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// ErrUncalibrated is returned when no control of a call is calibrated.
var ErrUncalibrated = errors.New("no calibrated control")

// Point is a screen position in logical (HiDPI-divided) pixels.
type Point struct {
	X int
	Y int
}

// Control is one calibrated slider. Left, Middle and Right are the physical
// pixel positions of Min, Neutral and Max.
type Control struct {
	Left    [2]float64 `yaml:"left"`
	Middle  [2]float64 `yaml:"middle"`
	Right   [2]float64 `yaml:"right"`
	Min     float64    `yaml:"min"`
	Max     float64    `yaml:"max"`
	Neutral float64    `yaml:"neutral"`
}

// Calibration maps control names to slider geometry. Bindings map an
// operation's argument keys to control names and extend DefaultBindings.
type Calibration struct {
	HiDPI    float64                      `yaml:"hidpi"`
	Controls map[string]Control           `yaml:"controls"`
	Bindings map[string]map[string]string `yaml:"bindings"`
}

// DefaultBindings routes catalogue arguments to conventional editor slider
// names. Per-band colour values use "<band>.<component>" keys and controls.
var DefaultBindings = map[string]map[string]string{
	"adjust_exposure":          {"exposure_factor": "Exposure"},
	"adjust_saturation":        {"saturation_factor": "Saturation"},
	"adjust_contrast":          {"contrast_factor": "Contrast"},
	"adjust_shadows":           {"shadow_factor": "Shadows"},
	"adjust_highlights":        {"highlight_factor": "Highlights"},
	"adjust_whites":            {"white_factor": "Whites"},
	"adjust_blacks":            {"black_factor": "Blacks"},
	"adjust_tone":              {"tone_factor": "Tint"},
	"adjust_color_temperature": {"color_temperature": "Temp"},
}

// LoadCalibration reads a YAML calibration map. ${VAR} references are
// expanded from the environment first.
func LoadCalibration(path string) (*Calibration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read calibration: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("calibration %s is empty", path)
	}
	var cal Calibration
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cal); err != nil {
		return nil, fmt.Errorf("parse calibration %s: %w", path, err)
	}
	if cal.HiDPI == 0 {
		cal.HiDPI = 1
	}
	if err := cal.Validate(); err != nil {
		return nil, fmt.Errorf("calibration %s: %w", path, err)
	}
	return &cal, nil
}

// Validate checks every control's geometry and value range.
func (c *Calibration) Validate() error {
	if c.HiDPI <= 0 {
		return fmt.Errorf("hidpi must be positive, got %v", c.HiDPI)
	}
	var errs []error
	for _, name := range c.ControlNames() {
		ctrl := c.Controls[name]
		if !(ctrl.Min < ctrl.Neutral && ctrl.Neutral < ctrl.Max) {
			errs = append(errs, fmt.Errorf("control %s: need min < neutral < max, got %v < %v < %v", name, ctrl.Min, ctrl.Neutral, ctrl.Max))
		}
		if !(ctrl.Left[0] <= ctrl.Middle[0] && ctrl.Middle[0] <= ctrl.Right[0]) {
			errs = append(errs, fmt.Errorf("control %s: left, middle and right must be ordered along x", name))
		}
	}
	return errors.Join(errs...)
}

// ControlNames returns the calibrated control names, sorted.
func (c *Calibration) ControlNames() []string {
	names := make([]string, 0, len(c.Controls))
	for name := range c.Controls {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Binding returns the control for an operation argument, consulting the
// calibration's own bindings before DefaultBindings.
func (c *Calibration) Binding(operation, key string) (string, bool) {
	if name, ok := c.Bindings[operation][key]; ok {
		return name, true
	}
	if name, ok := DefaultBindings[operation][key]; ok {
		return name, true
	}
	if operation == "adjust_individual_color" {
		return key, true
	}
	return "", false
}

// Position maps value onto the named slider. The mapping is piecewise linear
// on each side of the neutral point and the result is divided by HiDPI.
// Values outside the control's range are clamped.
func (c *Calibration) Position(control string, value float64) (Point, error) {
	ctrl, ok := c.Controls[control]
	if !ok {
		return Point{}, fmt.Errorf("%w: %s", ErrUncalibrated, control)
	}
	value = math.Max(ctrl.Min, math.Min(ctrl.Max, value))

	var x float64
	if value <= ctrl.Neutral {
		t := (value - ctrl.Min) / (ctrl.Neutral - ctrl.Min)
		x = ctrl.Left[0] + t*(ctrl.Middle[0]-ctrl.Left[0])
	} else {
		t := (value - ctrl.Neutral) / (ctrl.Max - ctrl.Neutral)
		x = ctrl.Middle[0] + t*(ctrl.Right[0]-ctrl.Middle[0])
	}
	return Point{X: int(x / c.HiDPI), Y: int(ctrl.Middle[1] / c.HiDPI)}, nil
}
