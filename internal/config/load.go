package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Supported file formats.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
	FormatTOML = "toml"
)

// FormatOf picks the decoder for a path by extension; unknown extensions are
// read as JSON.
func FormatOf(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	case ".toml":
		return FormatTOML
	default:
		return FormatJSON
	}
}

// Load reads, decodes and validates the configuration at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", ErrInvalid, path, err)
	}

	cfg, err := Parse(data, FormatOf(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	log.Debugf("Config: loaded %d environment(s) from %s", len(cfg.Environments), path)
	return cfg, nil
}

// Parse decodes data in the given format, applies defaults and validates.
func Parse(data []byte, format string) (*Config, error) {
	cfg := DefaultConfig()

	var err error
	switch format {
	case FormatJSON:
		err = decodeJSON(data, cfg)
	case FormatYAML:
		err = yaml.Unmarshal(data, cfg)
	case FormatTOML:
		err = toml.Unmarshal(data, cfg)
	default:
		return nil, fmt.Errorf("%w: unsupported format %q", ErrInvalid, format)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: decoding %s: %v", ErrInvalid, format, err)
	}

	for i := range cfg.Environments {
		cfg.Environments[i].applyDefaults()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// decodeJSON accepts the full object form or a bare array of environments.
func decodeJSON(data []byte, cfg *Config) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		return json.Unmarshal(trimmed, &cfg.Environments)
	}
	return json.Unmarshal(trimmed, cfg)
}
