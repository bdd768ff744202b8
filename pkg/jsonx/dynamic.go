package jsonx

import json "github.com/goccy/go-json"

// ToDynamicJSON renders a Go value as an untyped JSON object. The value goes
// through a marshal/unmarshal round trip, so anything with custom JSON
// behavior keeps it. The top level of the result must be an object.
func ToDynamicJSON(val any) (map[string]any, error) {
	result := make(map[string]any)
	b, err := json.Marshal(val)
	if err != nil {
		return nil, err
	}
	if err = json.Unmarshal(b, &result); err != nil {
		return nil, err
	}
	return result, nil
}
