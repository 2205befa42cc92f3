package pawrun

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"dario.cat/mergo"
	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Config holds host-level configuration for a Runner
type Config struct {
	Debug           bool
	LogCategories   []LogCategory
	Output          io.Writer // target of print and rendered tables
	ErrOutput       io.Writer // target of diagnostics
	Host            Host
	RebuildRegistry bool // rebuild the command registry on every call
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	return &Config{
		Debug:     false,
		Output:    os.Stdout,
		ErrOutput: os.Stderr,
		Host:      NewProcessHost(""),
	}
}

// LoadSessionConfig reads a YAML or TOML session config file, chosen by
// extension, and lays it over the built-in defaults
func LoadSessionConfig(path string) (*SessionConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parseSessionConfig(data, filepath.Ext(path))
}

func parseSessionConfig(data []byte, ext string) (*SessionConfig, error) {
	var file SessionConfig
	switch strings.ToLower(ext) {
	case ".toml":
		if _, err := toml.NewDecoder(bytes.NewReader(data)).Decode(&file); err != nil {
			return nil, fmt.Errorf("parsing toml config: %w", err)
		}
	case ".yaml", ".yml", "":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&file); err != nil && err != io.EOF {
			return nil, fmt.Errorf("parsing yaml config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format '%s'", ext)
	}
	if err := file.Validate(); err != nil {
		return nil, err
	}
	cfg := DefaultSessionConfig()
	if err := mergo.Merge(cfg, file, mergo.WithOverride); err != nil {
		return nil, err
	}
	return cfg, nil
}
