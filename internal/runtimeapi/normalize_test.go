package runtimeapi

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNormalizeSuccessPolymorphism: true | "true" | "1" | "yes"
// (case-insensitive) and the JSON number 1 normalise to true; anything else
// to false.
func TestNormalizeSuccessPolymorphism(t *testing.T) {
	truthy := []any{true, "true", "TRUE", "True", "1", "yes", "Yes", " true "}
	for _, v := range truthy {
		assert.True(t, normalizeSuccess(v), "expected %#v to normalise true", v)
	}

	falsy := []any{false, "false", "0", "no", "", nil, "maybe", float64(0)}
	for _, v := range falsy {
		assert.False(t, normalizeSuccess(v), "expected %#v to normalise false", v)
	}

	assert.True(t, normalizeSuccess(float64(1)))
}

// TestDecodeCharacteristicsAcceptsArrayForm: a plain JSON "characteristic-list
// serialisation drift" note: a plain JSON array must decode directly.
func TestDecodeCharacteristicsAcceptsArrayForm(t *testing.T) {
	raw := json.RawMessage(`[{"name":"remediation_state","value":"DETECTED"}]`)
	list, err := decodeCharacteristics(raw)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "remediation_state", list[0].Name)
	assert.Equal(t, "DETECTED", list[0].Value)
}

// TestDecodeCharacteristicsAcceptsStringEncodedForm covers the same note's
// other half: some runtime responses deliver characteristic as a
// JSON-encoded string rather than an array.
func TestDecodeCharacteristicsAcceptsStringEncodedForm(t *testing.T) {
	raw := json.RawMessage(`"[{\"name\":\"remediation_state\",\"value\":\"DETECTED\"}]"`)
	list, err := decodeCharacteristics(raw)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "remediation_state", list[0].Name)
}

func TestDecodeCharacteristicsHandlesEmpty(t *testing.T) {
	list, err := decodeCharacteristics(nil)
	require.NoError(t, err)
	assert.Nil(t, list)

	list, err = decodeCharacteristics(json.RawMessage(`""`))
	require.NoError(t, err)
	assert.Nil(t, list)
}

func TestCharacteristicValueIsCaseInsensitiveLookup(t *testing.T) {
	list := []Characteristic{{Name: "Remediation_State", Value: "DETECTED"}}
	assert.Equal(t, "DETECTED", characteristicValue(list, "remediation_state"))
	assert.Empty(t, characteristicValue(list, "missing"))
}
