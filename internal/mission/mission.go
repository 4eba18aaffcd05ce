// Package mission validates mission payload shape. It restores the
// structural key-presence check from original_source/Orchestrator/helpers.py
// (validate_mission / find_missing_keys), which spec.md places upstream of
// the core but which the distillation otherwise dropped entirely — exposed
// here as a small library function any entry surface can call.
package mission

import (
	"fmt"
	"sort"
)

// RequiredKeys are the keys spec.md §6 names as the mission payload's exact
// required set.
var RequiredKeys = []string{
	"waypoints",
	"operation_id",
	"group_id",
	"delivery_id",
	"control_area_id",
	"operation_reference_number",
	"drone_id",
	"drone_registration_number",
	"cvms_auth_token",
	"dis_auth_token",
	"dis_refresh_token",
	"thermal_model_timestep",
	"aeroacoustic_model_timestep",
	"drone_config_file",
	"g_acceleration",
	"initial_lon_lat_alt",
	"final_lon_lat_alt",
	"effective_start_time",
}

// MissingKeysError lists the required keys a payload failed to supply.
type MissingKeysError struct {
	Missing []string
}

func (e *MissingKeysError) Error() string {
	return fmt.Sprintf("missing keys: %v", e.Missing)
}

// Validate reports an error naming every required key absent from payload,
// mirroring helpers.py's validate_mission.
func Validate(payload map[string]any) error {
	var missing []string
	for _, key := range RequiredKeys {
		if _, ok := payload[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return &MissingKeysError{Missing: missing}
	}
	return nil
}
