package process

import "encoding/json"

// marshalPayload encodes the mission payload the way it crosses into the
// container: as the PAYLOAD environment variable (spec.md §6).
func marshalPayload(payload map[string]any) (string, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
