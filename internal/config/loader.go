package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds runtime parameters for the service.
// Zero values mean "unspecified" and will be replaced by defaults in main.
type Config struct {
	Addr        string `json:"addr" yaml:"addr" toml:"addr"`
	FormatsFile string `json:"formats_file" yaml:"formats_file" toml:"formats_file"`
	DicomRoot   string `json:"dicom_root" yaml:"dicom_root" toml:"dicom_root"`
	// HintTTLMinutes bounds how long format hints are remembered; 0 keeps
	// them for the process lifetime.
	HintTTLMinutes int `json:"hint_ttl_minutes" yaml:"hint_ttl_minutes" toml:"hint_ttl_minutes"`
	// Registration worker tunables.
	RegIterationCap int    `json:"reg_iteration_cap" yaml:"reg_iteration_cap" toml:"reg_iteration_cap"`
	RegNotifyBatch  int    `json:"reg_notify_batch" yaml:"reg_notify_batch" toml:"reg_notify_batch"`
	LogLevel        string `json:"log_level" yaml:"log_level" toml:"log_level"`
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}
