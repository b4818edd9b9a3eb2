package algorithms

import (
	"testing"

	"demarcation-eraser/internal/algorithms/mask"
	"demarcation-eraser/internal/algorithms/overlay"
	"demarcation-eraser/internal/algorithms/removal"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewManagerRegistersProcessors(t *testing.T) {
	m := NewManager(nil)

	assert.Equal(t, []string{overlay.Name, removal.Name, mask.Name}, m.GetAvailableAlgorithms())
}

func TestGetAlgorithmResolvesAliases(t *testing.T) {
	m := NewManager(nil)

	tests := map[string]string{
		"":                       removal.Name,
		"remove":                 removal.Name,
		"Mask":                   mask.Name,
		"overlay":                overlay.Name,
		removal.Name:             removal.Name,
		"Classification Overlay": overlay.Name,
	}

	for input, want := range tests {
		alg, err := m.GetAlgorithm(input)
		require.NoError(t, err, input)
		assert.Equal(t, want, alg.GetName(), input)
	}

	_, err := m.GetAlgorithm("2D Otsu")
	assert.Error(t, err)
}

func TestSetParametersValidatesMergedSet(t *testing.T) {
	m := NewManager(nil)

	// An even kernel is fine on its own while blur is off.
	require.NoError(t, m.SetParameters("mask", map[string]interface{}{"blur_kernel": 4}))

	err := m.SetParameters("mask", map[string]interface{}{"blur": true})
	assert.Error(t, err)
	assert.Equal(t, false, m.GetParameters("mask")["blur"])

	require.NoError(t, m.SetParameters("mask", map[string]interface{}{"blur": true, "blur_kernel": 5}))
	assert.Equal(t, map[string]interface{}{"blur": true, "blur_kernel": 5}, m.GetParameters(mask.Name))
}

func TestSetParameterValidates(t *testing.T) {
	m := NewManager(nil)

	require.NoError(t, m.SetParameters("remove", map[string]interface{}{"blur": true}))
	assert.Equal(t, true, m.GetParameters(removal.Name)["blur"])

	assert.Error(t, m.SetParameters("remove", map[string]interface{}{"blur_kernel": 4}))
	assert.Equal(t, 3, m.GetParameters("remove")["blur_kernel"])

	assert.Error(t, m.SetParameters("remove", map[string]interface{}{"unknown": 1}))
	assert.Error(t, m.SetParameters("nope", map[string]interface{}{"blur": true}))
}

func TestGetParametersReturnsCopy(t *testing.T) {
	m := NewManager(nil)

	params := m.GetParameters("remove")
	params["blur"] = true

	assert.Equal(t, false, m.GetParameters("remove")["blur"])
	assert.Empty(t, m.GetParameters("nope"))
}
