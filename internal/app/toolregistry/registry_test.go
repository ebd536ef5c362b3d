package toolregistry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"retouch/internal/domain/agent/ports"
	"retouch/internal/infra/tools/retouch"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	registry, err := NewRegistry(Config{})
	require.NoError(t, err)
	return registry
}

func TestNewRegistryRegistersCatalogue(t *testing.T) {
	registry := newTestRegistry(t)

	assert.Equal(t, []string{
		retouch.OpExposure,
		retouch.OpSaturation,
		retouch.OpContrast,
		retouch.OpShadows,
		retouch.OpHighlights,
		retouch.OpWhites,
		retouch.OpBlacks,
		retouch.OpTone,
		retouch.OpColorTemperature,
		retouch.OpIndividualColor,
	}, registry.Names(ports.CategoryAdjustment))
	assert.Equal(t, []string{retouch.OpUndoStep}, registry.Names(ports.CategoryHistory))
	assert.Len(t, registry.List(), 11)
}

func TestRegistryGetUnknownOperation(t *testing.T) {
	registry := newTestRegistry(t)

	_, err := registry.Get("adjust_contrst")
	require.ErrorIs(t, err, ports.ErrUnknownOperation)
	assert.Contains(t, err.Error(), "adjust_contrst")
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	registry := newTestRegistry(t)
	require.Error(t, registry.Register(retouch.NewUndoStep()))
}

func TestRegistryListIsSortedAndShared(t *testing.T) {
	registry := newTestRegistry(t)
	defs := registry.List()
	for i := 1; i < len(defs); i++ {
		assert.Less(t, defs[i-1].Name, defs[i].Name)
	}
	again := registry.List()
	assert.Same(t, &defs[0], &again[0])
}

func TestRegistryDefinitionsKeepsOrder(t *testing.T) {
	registry := newTestRegistry(t)
	defs := registry.Definitions(retouch.OpUndoStep, "missing", retouch.OpExposure)
	require.Len(t, defs, 2)
	assert.Equal(t, retouch.OpUndoStep, defs[0].Name)
	assert.Equal(t, retouch.OpExposure, defs[1].Name)
}
