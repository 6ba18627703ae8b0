package runtimeapi

import (
	"encoding/json"
	"strings"
)

// NormalizeSuccess is the exported form of normalizeSuccess, for callers
// outside this package that hold a raw `success` field of their own (e.g.
// OEServiceInfo.RawSuccess).
func NormalizeSuccess(v any) bool { return normalizeSuccess(v) }

// normalizeSuccess handles the runtime's polymorphic `success` field: it
// may arrive as a bool, as the JSON number 1, or as "true"/"1"/"yes" (any
// case); anything else normalises to false.
func normalizeSuccess(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "1", "yes":
			return true
		}
		return false
	case float64:
		return t == 1
	default:
		return false
	}
}

// decodeCharacteristics accepts either a JSON array of characteristics or a
// JSON-encoded string containing that array — some runtime responses deliver
// the characteristic list in the string-encoded form.
func decodeCharacteristics(raw json.RawMessage) ([]Characteristic, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	var list []Characteristic
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}

	var encoded string
	if err := json.Unmarshal(raw, &encoded); err != nil {
		return nil, err
	}
	if encoded == "" {
		return nil, nil
	}
	if err := json.Unmarshal([]byte(encoded), &list); err != nil {
		return nil, err
	}
	return list, nil
}

// Characteristic is a name/value pair carried on a problem ticket; the
// remediation state is stored as one such characteristic.
type Characteristic struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

func characteristicValue(list []Characteristic, name string) string {
	for _, c := range list {
		if strings.EqualFold(c.Name, name) {
			return c.Value
		}
	}
	return ""
}

func encodeCharacteristics(list []Characteristic) json.RawMessage {
	raw, err := json.Marshal(list)
	if err != nil {
		return json.RawMessage("[]")
	}
	return raw
}
