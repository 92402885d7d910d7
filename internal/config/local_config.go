package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// LocalOverride is the subset of .clinotect/config.yaml fields read
// directly from disk rather than through the viper-backed Settings
// surface: per-deployment tuning a human edits by hand, not settings
// that come from the environment.
type LocalOverride struct {
	StorageBackend string `yaml:"storage_backend"`
	SQLitePath     string `yaml:"sqlite_path"`
	DictionarySeed string `yaml:"dictionary_seed"`
}

// LoadLocalOverride reads .clinotect/config.yaml from dir. Returns an
// empty LocalOverride (not nil, not an error) if the file is missing or
// unparseable, since this file is optional.
func LoadLocalOverride(dir string) *LocalOverride {
	data, err := os.ReadFile(filepath.Join(dir, "config.yaml"))
	if err != nil {
		return &LocalOverride{}
	}
	var cfg LocalOverride
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return &LocalOverride{}
	}
	return &cfg
}
