// ABOUTME: Opaque session metadata with shallow object merge
// ABOUTME: Non-object values replace whatever was stored
package player

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// mergeMetadata merges the keys of patch into base when both are JSON
// objects. Otherwise patch replaces base.
func mergeMetadata(base, patch json.RawMessage) (json.RawMessage, error) {
	if len(patch) > 0 && !json.Valid(patch) {
		return nil, fmt.Errorf("invalid metadata json")
	}

	baseObj, baseOK := asObject(base)
	patchObj, patchOK := asObject(patch)
	if !baseOK || !patchOK {
		return cloneRaw(patch), nil
	}

	for k, v := range patchObj {
		baseObj[k] = v
	}
	merged, err := json.Marshal(baseObj)
	if err != nil {
		return nil, fmt.Errorf("failed to encode merged metadata: %w", err)
	}
	return merged, nil
}

func asObject(raw json.RawMessage) (map[string]json.RawMessage, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, false
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return nil, false
	}
	if obj == nil {
		obj = map[string]json.RawMessage{}
	}
	return obj, true
}

func cloneRaw(raw json.RawMessage) json.RawMessage {
	if raw == nil {
		return nil
	}
	return append(json.RawMessage(nil), raw...)
}
