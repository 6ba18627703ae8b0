package oe

import (
	"encoding/json"
	"strings"

	"github.com/relay-bss/batchmender/internal/runtimeapi"
)

// PatchInstruction is one field the ANALYSE step decided to write.
type PatchInstruction struct {
	Name  string // canonical field name, e.g. "ReservedNumber"
	Value string
	Label string
}

// analyse returns the mandatory fields of serviceType that are absent from
// attachment, scanning only NonCommercialProduct entries. Pure: it
// never mutates attachment.
func analyse(attachment map[string]any, serviceType ServiceType) []string {
	var missing []string
	for _, field := range mandatoryFields[serviceType] {
		if !fieldPresent(attachment, field) {
			missing = append(missing, field)
		}
	}
	return missing
}

func fieldPresent(attachment map[string]any, field string) bool {
	aliases := fieldAliases[field]
	normalizedAliases := make(map[string]bool, len(aliases))
	for _, a := range aliases {
		normalizedAliases[normalizeAttrName(a)] = true
	}

	ncp, _ := attachment["NonCommercialProduct"].([]any)
	for _, entryAny := range ncp {
		entry, ok := entryAny.(map[string]any)
		if !ok {
			continue
		}
		for _, schemaAny := range entry {
			schema, ok := schemaAny.(map[string]any)
			if !ok {
				continue
			}
			attrs, _ := schema["attributes"].([]any)
			for _, attrAny := range attrs {
				attr, ok := attrAny.(map[string]any)
				if !ok {
					continue
				}
				name, _ := attr["name"].(string)
				if !normalizedAliases[normalizeAttrName(name)] {
					continue
				}
				value, _ := attr["value"].(string)
				if strings.TrimSpace(value) != "" {
					return true
				}
			}
		}
	}
	return false
}

// buildPatchInstructions computes the patch instructions for the missing
// fields given resolved enrichment data. A
// field whose required enrichment value is missing is simply dropped, not
// treated as an error.
func buildPatchInstructions(missing []string, serviceType ServiceType, enrichment runtimeapi.Enrichment) []PatchInstruction {
	missingSet := make(map[string]bool, len(missing))
	for _, m := range missing {
		missingSet[m] = true
	}

	var out []PatchInstruction
	if serviceType == ServiceVoice {
		if missingSet["ResourceSystemGroupID"] {
			out = append(out, PatchInstruction{Name: "ResourceSystemGroupID", Value: "Migrated", Label: "Migrated"})
		}
		if missingSet["NumberStatus"] {
			out = append(out, PatchInstruction{Name: "NumberStatus", Value: "Reserved", Label: "Reserved"})
		}
	}
	if missingSet["ReservedNumber"] && enrichment.ReservedNumber != "" {
		out = append(out, PatchInstruction{Name: "ReservedNumber", Value: enrichment.ReservedNumber, Label: enrichment.ReservedNumber})
	}
	if missingSet["PICEmail"] && enrichment.PICEmail != "" {
		out = append(out, PatchInstruction{Name: "PICEmail", Value: enrichment.PICEmail, Label: enrichment.PICEmail})
	}
	if missingSet["BillingAccount"] && enrichment.BillingAccountID != "" {
		label := enrichment.BillingAccountName
		if label == "" {
			label = enrichment.BillingAccountID
		}
		out = append(out, PatchInstruction{Name: "BillingAccount", Value: enrichment.BillingAccountID, Label: label})
	}
	if missingSet["eSMSUserName"] && enrichment.PICEmail != "" {
		out = append(out, PatchInstruction{Name: "eSMSUserName", Value: enrichment.PICEmail, Label: enrichment.PICEmail})
	}
	return out
}

// applyPatch is the pure SET_IF_EMPTY transform. It deep-copies
// attachment, locates the schema bound to serviceType, and for each
// instruction either skips an already-populated attribute, fills an empty
// one, or appends a new one. Calling it twice with the same instructions is
// idempotent: the second call patches nothing, because the first call's
// writes are no longer empty.
func applyPatch(attachment map[string]any, instructions []PatchInstruction, serviceType ServiceType) (map[string]any, []string) {
	newAttachment := deepCopy(attachment)
	if len(instructions) == 0 {
		return newAttachment, nil
	}

	substr := schemaSubstring[serviceType]
	ncp, _ := newAttachment["NonCommercialProduct"].([]any)
	var targetSchema map[string]any
	for _, entryAny := range ncp {
		entry, ok := entryAny.(map[string]any)
		if !ok {
			continue
		}
		for key, schemaAny := range entry {
			if !strings.Contains(key, substr) {
				continue
			}
			schema, ok := schemaAny.(map[string]any)
			if !ok {
				continue
			}
			targetSchema = schema
			break
		}
		if targetSchema != nil {
			break
		}
	}
	if targetSchema == nil {
		return newAttachment, nil
	}

	attrs, _ := targetSchema["attributes"].([]any)
	var patched []string

	for _, instr := range instructions {
		onDisk := instr.Name
		if mapped, ok := onDiskName[instr.Name]; ok {
			onDisk = mapped
		}
		normalizedTarget := normalizeAttrName(onDisk)

		var found map[string]any
		for _, attrAny := range attrs {
			attr, ok := attrAny.(map[string]any)
			if !ok {
				continue
			}
			name, _ := attr["name"].(string)
			if normalizeAttrName(name) == normalizedTarget {
				found = attr
				break
			}
		}

		if found != nil {
			value, _ := found["value"].(string)
			if strings.TrimSpace(value) != "" {
				continue // never overwrite a populated attribute
			}
			found["value"] = instr.Value
			found["label"] = instr.Label
			patched = append(patched, instr.Name)
			continue
		}

		attrs = append(attrs, map[string]any{
			"name":  onDisk,
			"value": instr.Value,
			"label": instr.Label,
		})
		patched = append(patched, instr.Name)
	}

	targetSchema["attributes"] = attrs
	return newAttachment, patched
}

// deepCopy round-trips v through JSON encoding, which is deterministic and
// side-effect free for the plain map/slice/scalar shapes OE attachments use.
func deepCopy(v map[string]any) map[string]any {
	b, err := json.Marshal(v)
	if err != nil {
		return map[string]any{}
	}
	var out map[string]any
	if err := json.Unmarshal(b, &out); err != nil {
		return map[string]any{}
	}
	return out
}
