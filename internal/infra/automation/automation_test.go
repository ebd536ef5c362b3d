package automation

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"retouch/internal/domain/agent/ports"
	"retouch/internal/shared/logging"
)

const calibrationYAML = `
hidpi: 2
controls:
  Contrast:
    left: [100, 40]
    middle: [300, 40]
    right: [500, 40]
    min: -100
    max: 100
  Temp:
    left: [100, 80]
    middle: [200, 80]
    right: [600, 80]
    min: 2000
    neutral: 6000
    max: 50000
  green.saturation:
    left: [0, 120]
    middle: [100, 120]
    right: [200, 120]
    min: -100
    max: 100
`

func loadTestCalibration(t *testing.T) *Calibration {
	t.Helper()
	path := filepath.Join(t.TempDir(), "calibration.yaml")
	require.NoError(t, os.WriteFile(path, []byte(calibrationYAML), 0o600))
	cal, err := LoadCalibration(path)
	require.NoError(t, err)
	return cal
}

func TestPositionIsPiecewiseLinearAndHiDPIScaled(t *testing.T) {
	cal := loadTestCalibration(t)

	tests := []struct {
		control string
		value   float64
		want    Point
	}{
		{"Contrast", -100, Point{50, 20}},
		{"Contrast", 0, Point{150, 20}},
		{"Contrast", 50, Point{200, 20}},
		{"Contrast", 250, Point{250, 20}},
		{"Temp", 4000, Point{75, 40}},
		{"Temp", 28000, Point{200, 40}},
	}
	for _, tt := range tests {
		got, err := cal.Position(tt.control, tt.value)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "%s=%v", tt.control, tt.value)
	}

	_, err := cal.Position("Exposure", 1)
	assert.ErrorIs(t, err, ErrUncalibrated)
}

func TestValidateRejectsBadGeometry(t *testing.T) {
	cal := &Calibration{HiDPI: 1, Controls: map[string]Control{
		"Whites": {Left: [2]float64{300, 0}, Middle: [2]float64{200, 0}, Right: [2]float64{100, 0}, Min: -100, Max: 100},
		"Blacks": {Min: 10, Max: 100},
	}}
	err := cal.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Whites")
	assert.Contains(t, err.Error(), "Blacks")
}

func TestPerformDrivesCalibratedControls(t *testing.T) {
	driver := NewRecordingDriver()
	automation, err := New(loadTestCalibration(t), driver, WithLogger(logging.Nop()))
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, automation.Perform(ctx, ports.AutomationCall{
		Operation: "adjust_contrast",
		Values:    map[string]float64{"contrast_factor": 50},
	}))
	require.NoError(t, automation.Perform(ctx, ports.AutomationCall{
		Operation: "adjust_individual_color",
		Values:    map[string]float64{"green.hue": 5, "green.saturation": -100},
	}))

	events := driver.Events()
	require.Len(t, events, 4)
	assert.Equal(t, EventMove, events[0].Kind)
	assert.Equal(t, EventClick, events[1].Kind)
	assert.Equal(t, Point{200, 20}, events[1].Point)
	assert.Equal(t, Point{0, 60}, events[3].Point)

	err = automation.Perform(ctx, ports.AutomationCall{Operation: "adjust_exposure", Values: map[string]float64{"exposure_factor": 1}})
	assert.ErrorIs(t, err, ErrUncalibrated)
}

func TestPerformHonoursCancellation(t *testing.T) {
	driver := NewRecordingDriver()
	automation, err := New(loadTestCalibration(t), driver, WithLogger(logging.Nop()))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = automation.Perform(ctx, ports.AutomationCall{Operation: "adjust_contrast", Values: map[string]float64{"contrast_factor": 1}})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, driver.Events())
}

func TestCustomBindingsOverrideDefaults(t *testing.T) {
	cal := loadTestCalibration(t)
	cal.Bindings = map[string]map[string]string{"adjust_tone": {"tone_factor": "Contrast"}}

	name, ok := cal.Binding("adjust_tone", "tone_factor")
	require.True(t, ok)
	assert.Equal(t, "Contrast", name)

	name, ok = cal.Binding("adjust_exposure", "exposure_factor")
	require.True(t, ok)
	assert.Equal(t, "Exposure", name)

	_, ok = cal.Binding("adjust_exposure", "reason")
	assert.False(t, ok)
}
