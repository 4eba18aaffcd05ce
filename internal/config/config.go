// Package config loads orchestrator configuration, adapted from the
// teacher's pkg/config/app_config.go: a YAML UserConfig merged over
// built-in defaults (via imdario/mergo), plus a thin AppConfig carrying
// runtime-derived fields the YAML file never holds.
package config

import (
	"os"

	"github.com/imdario/mergo"
	yaml "github.com/jesseduffield/yaml"
)

// UserConfig holds the orchestrator options an operator may override via
// YAML. Field documentation mirrors the teacher's density for config
// structs: one or two lines per field.
type UserConfig struct {
	// MaxConcurrentProcesses caps how many Processes may be RUNNING at once
	// (spec.md invariant O2).
	MaxConcurrentProcesses int `yaml:"maxConcurrentProcesses,omitempty"`

	// NetworkName is the bridge network every mission container joins
	// (spec.md §4.1 step 2).
	NetworkName string `yaml:"networkName,omitempty"`

	// DeleteContainers mirrors the DELETE_CONTAINERS environment variable:
	// when true, containers are removed after they exit (spec.md §6).
	DeleteContainers bool `yaml:"deleteContainers,omitempty"`

	// StoreDSN is the sqlitestore database path. Empty means "use the
	// in-memory store".
	StoreDSN string `yaml:"storeDSN,omitempty"`
}

// GetDefaultConfig returns the orchestrator's built-in defaults, mirroring
// process_manager.py's max_concurrent_processes=8 default and spec.md
// §4.1's default network name.
func GetDefaultConfig() UserConfig {
	return UserConfig{
		MaxConcurrentProcesses: 8,
		NetworkName:            "caelus_orchestrator_default",
		DeleteContainers:       false,
		StoreDSN:               "",
	}
}

// AppConfig is the fully resolved configuration: defaults merged with an
// optional user YAML file, plus environment overrides, plus runtime
// identity fields — the same split as the teacher's AppConfig/UserConfig.
type AppConfig struct {
	Debug   bool
	Version string
	UserConfig
}

// Load resolves an AppConfig the way NewAppConfig does: load the YAML file
// at path (skipped if path is "" or the file does not exist; no file is
// created), merge it over the defaults, then apply environment overrides.
func Load(path string, debug bool, version string) (*AppConfig, error) {
	user := GetDefaultConfig()

	if path != "" {
		loaded, err := loadUserConfig(path, user)
		if err != nil {
			return nil, err
		}
		user = loaded
	}

	if os.Getenv("DELETE_CONTAINERS") == "True" {
		user.DeleteContainers = true
	}

	return &AppConfig{
		Debug:      debug || os.Getenv("DEBUG") == "TRUE",
		Version:    version,
		UserConfig: user,
	}, nil
}

func loadUserConfig(path string, base UserConfig) (UserConfig, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return base, nil
		}
		return base, err
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return base, err
	}

	var override UserConfig
	if err := yaml.Unmarshal(content, &override); err != nil {
		return base, err
	}

	if err := mergo.Merge(&base, override, mergo.WithOverride); err != nil {
		return base, err
	}
	return base, nil
}
