package mission

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fullPayload() map[string]any {
	payload := map[string]any{}
	for _, key := range RequiredKeys {
		payload[key] = "x"
	}
	return payload
}

func TestValidate_AcceptsCompletePayload(t *testing.T) {
	assert.NoError(t, Validate(fullPayload()))
}

func TestValidate_ReportsEveryMissingKey(t *testing.T) {
	payload := fullPayload()
	delete(payload, "waypoints")
	delete(payload, "drone_id")

	err := Validate(payload)
	require.Error(t, err)

	var missingErr *MissingKeysError
	require.ErrorAs(t, err, &missingErr)
	assert.ElementsMatch(t, []string{"drone_id", "waypoints"}, missingErr.Missing)
}

func TestValidate_EmptyPayloadListsAllKeys(t *testing.T) {
	err := Validate(map[string]any{})
	require.Error(t, err)

	var missingErr *MissingKeysError
	require.ErrorAs(t, err, &missingErr)
	assert.Len(t, missingErr.Missing, len(RequiredKeys))
}
