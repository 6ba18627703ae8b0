package oe

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relay-bss/batchmender/internal/runtimeapi"
)

func voiceAttachment(fields map[string]string) map[string]any {
	attrs := make([]any, 0, len(fields))
	for name, value := range fields {
		attrs = append(attrs, map[string]any{"name": name, "value": value, "label": value})
	}
	return map[string]any{
		"NonCommercialProduct": []any{
			map[string]any{
				"Voice OE": map[string]any{
					"attributes": attrs,
				},
			},
		},
	}
}

func TestAnalyseVoiceAllPresentNoMissing(t *testing.T) {
	attachment := voiceAttachment(map[string]string{
		"ReservedNumber":        "12345",
		"ResourceSystemGroupID": "RSG1",
		"NumberStatus":          "Active",
		"PIC Email":             "pic@example.com", // alias spelling
	})
	missing := analyse(attachment, ServiceVoice)
	assert.Empty(t, missing)
}

func TestAnalyseVoiceMissingField(t *testing.T) {
	attachment := voiceAttachment(map[string]string{
		"ResourceSystemGroupID": "RSG1",
		"NumberStatus":          "Active",
		"PICEmail":              "pic@example.com",
	})
	missing := analyse(attachment, ServiceVoice)
	assert.Equal(t, []string{"ReservedNumber"}, missing)
}

func TestAnalyseIgnoresCommercialProduct(t *testing.T) {
	attachment := map[string]any{
		"CommercialProduct": []any{
			map[string]any{
				"Voice OE": map[string]any{
					"attributes": []any{
						map[string]any{"name": "ReservedNumber", "value": "12345"},
					},
				},
			},
		},
	}
	missing := analyse(attachment, ServiceVoice)
	assert.Contains(t, missing, "ReservedNumber")
}

func TestBuildPatchInstructionsDropsFieldsWithoutEnrichment(t *testing.T) {
	missing := []string{"ReservedNumber", "PICEmail"}
	instructions := buildPatchInstructions(missing, ServiceVoice, runtimeapi.Enrichment{ReservedNumber: "N1"})
	require.Len(t, instructions, 1)
	assert.Equal(t, "ReservedNumber", instructions[0].Name)
	assert.Equal(t, "N1", instructions[0].Value)
}

func TestBuildPatchInstructionsVoiceConstants(t *testing.T) {
	missing := []string{"ResourceSystemGroupID", "NumberStatus"}
	instructions := buildPatchInstructions(missing, ServiceVoice, runtimeapi.Enrichment{})
	require.Len(t, instructions, 2)
	byName := map[string]string{}
	for _, i := range instructions {
		byName[i.Name] = i.Value
	}
	assert.Equal(t, "Migrated", byName["ResourceSystemGroupID"])
	assert.Equal(t, "Reserved", byName["NumberStatus"])
}

func TestBuildPatchInstructionsBillingAccountUsesValueAsLabelFallback(t *testing.T) {
	instructions := buildPatchInstructions([]string{"BillingAccount"}, ServiceFibre, runtimeapi.Enrichment{BillingAccountID: "BA1"})
	require.Len(t, instructions, 1)
	assert.Equal(t, "BA1", instructions[0].Value)
	assert.Equal(t, "BA1", instructions[0].Label)
}

// TestApplyPatchEmptyInstructionsIsNoOp: applying no instructions returns a
// deep copy and patches nothing.
func TestApplyPatchEmptyInstructionsIsNoOp(t *testing.T) {
	attachment := voiceAttachment(map[string]string{"ReservedNumber": "12345"})
	result, patched := applyPatch(attachment, nil, ServiceVoice)
	assert.Empty(t, patched)
	assert.Equal(t, attachment, result)

	// Deep copy: mutating the result must not affect the original.
	ncp := result["NonCommercialProduct"].([]any)
	entry := ncp[0].(map[string]any)
	schema := entry["Voice OE"].(map[string]any)
	schema["attributes"] = []any{}
	origNCP := attachment["NonCommercialProduct"].([]any)
	origEntry := origNCP[0].(map[string]any)
	origSchema := origEntry["Voice OE"].(map[string]any)
	assert.NotEmpty(t, origSchema["attributes"])
}

// TestApplyPatchIdempotence: applying the same
// instructions twice patches nothing the second time.
func TestApplyPatchIdempotence(t *testing.T) {
	attachment := voiceAttachment(map[string]string{
		"ResourceSystemGroupID": "",
		"NumberStatus":          "",
	})
	instructions := buildPatchInstructions([]string{"ResourceSystemGroupID", "NumberStatus"}, ServiceVoice, runtimeapi.Enrichment{})

	first, patchedFirst := applyPatch(attachment, instructions, ServiceVoice)
	assert.ElementsMatch(t, []string{"ResourceSystemGroupID", "NumberStatus"}, patchedFirst)

	second, patchedSecond := applyPatch(first, instructions, ServiceVoice)
	assert.Empty(t, patchedSecond)
	assert.Equal(t, first, second)
}

// TestApplyPatchNeverOverwritesNonEmptyValue checks SET_IF_EMPTY
// correctness: a populated attribute survives any instruction set.
func TestApplyPatchNeverOverwritesNonEmptyValue(t *testing.T) {
	attachment := voiceAttachment(map[string]string{"ReservedNumber": "ORIGINAL"})
	instructions := []PatchInstruction{{Name: "ReservedNumber", Value: "NEW", Label: "NEW"}}

	result, patched := applyPatch(attachment, instructions, ServiceVoice)
	assert.Empty(t, patched)

	ncp := result["NonCommercialProduct"].([]any)
	entry := ncp[0].(map[string]any)
	schema := entry["Voice OE"].(map[string]any)
	attrs := schema["attributes"].([]any)
	found := false
	for _, a := range attrs {
		attr := a.(map[string]any)
		if attr["name"] == "ReservedNumber" {
			found = true
			assert.Equal(t, "ORIGINAL", attr["value"])
		}
	}
	assert.True(t, found)
}

func TestApplyPatchAppendsAttributeWhenAbsent(t *testing.T) {
	attachment := voiceAttachment(map[string]string{}) // empty attribute list
	instructions := []PatchInstruction{{Name: "ReservedNumber", Value: "N1", Label: "N1"}}

	result, patched := applyPatch(attachment, instructions, ServiceVoice)
	assert.Equal(t, []string{"ReservedNumber"}, patched)

	ncp := result["NonCommercialProduct"].([]any)
	entry := ncp[0].(map[string]any)
	schema := entry["Voice OE"].(map[string]any)
	attrs := schema["attributes"].([]any)
	require.Len(t, attrs, 1)
	attr := attrs[0].(map[string]any)
	assert.Equal(t, "ReservedNumber", attr["name"])
	assert.Equal(t, "N1", attr["value"])
}

func TestApplyPatchNoMatchingSchemaReturnsUnchanged(t *testing.T) {
	attachment := map[string]any{"NonCommercialProduct": []any{}}
	instructions := []PatchInstruction{{Name: "ReservedNumber", Value: "N1"}}
	result, patched := applyPatch(attachment, instructions, ServiceVoice)
	assert.Empty(t, patched)
	assert.Equal(t, attachment, result)
}

func TestDetectServiceTypeBySubstring(t *testing.T) {
	assert.Equal(t, ServiceVoice, detectServiceType("Residential Voice Line", nil))
	assert.Equal(t, ServiceFibre, detectServiceType("Business Fibre Service", nil))
	assert.Equal(t, ServiceESMS, detectServiceType("eSMS Gateway", nil))
	assert.Equal(t, ServiceESMS, detectServiceType("e-sms gateway", nil))
	assert.Equal(t, ServiceAccess, detectServiceType("Corporate Access Service", nil))
	assert.Equal(t, ServiceUnknown, detectServiceType("Mystery Product", map[string]any{}))
}

// TestDetectServiceTypeFallsBackToSchemaKeys: when the product definition
// name gives nothing away, the type is read from the schema keys nested
// inside NonCommercialProduct entries.
func TestDetectServiceTypeFallsBackToSchemaKeys(t *testing.T) {
	attachment := map[string]any{
		"NonCommercialProduct": []any{
			map[string]any{
				"Voice OE": map[string]any{
					"attributes": []any{
						map[string]any{"name": "ReservedNumber", "value": ""},
					},
				},
			},
		},
	}
	assert.Equal(t, ServiceVoice, detectServiceType("Unrelated Name", attachment))

	raw := `{"NonCommercialProduct":[{"Fibre Service OE":{"attributes":[]}}]}`
	var fibre map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &fibre))
	assert.Equal(t, ServiceFibre, detectServiceType("", fibre))

	// A schema-name substring at the top level is not a real attachment
	// shape and must not be treated as one.
	assert.Equal(t, ServiceUnknown, detectServiceType("", map[string]any{"Voice OE": map[string]any{}}))
}

func TestAttachmentJSONRoundTripsThroughAnalyse(t *testing.T) {
	raw := `{"NonCommercialProduct":[{"Fibre Service OE":{"attributes":[{"name":"Billing Account","value":""}]}}]}`
	var attachment map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &attachment))
	missing := analyse(attachment, ServiceFibre)
	assert.Equal(t, []string{"BillingAccount"}, missing)
}
