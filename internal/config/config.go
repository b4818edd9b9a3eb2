package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"demarcation-eraser/internal/demarcation"

	"gopkg.in/yaml.v3"
)

var ErrInvalidConfig = errors.New("invalid config")

// Config is the YAML run configuration. Command-line flags override it.
type Config struct {
	LogLevel     string             `yaml:"log_level"`
	LogFormat    string             `yaml:"log_format"`
	Algorithm    string             `yaml:"algorithm"`
	Workers      int                `yaml:"workers"`
	Prefix       string             `yaml:"prefix"`
	OutputFormat string             `yaml:"output_format"`
	Demarcation  demarcation.Params `yaml:"demarcation"`
}

func Default() Config {
	return Config{
		LogLevel:    "info",
		LogFormat:   "console",
		Algorithm:   "remove",
		Prefix:      "res_otsu_",
		Demarcation: demarcation.DefaultParams(),
	}
}

// Load reads path over the defaults. Keys missing from the file keep their
// default value; unknown keys are rejected.
func Load(path string) (Config, error) {
	cfg := Default()

	f, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to open config: %w", err)
	}
	defer f.Close()

	decoder := yaml.NewDecoder(f)
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch strings.ToLower(c.LogFormat) {
	case "", "console", "json":
	default:
		return fmt.Errorf("%w: log_format must be console or json, got %q", ErrInvalidConfig, c.LogFormat)
	}

	switch strings.ToLower(c.LogLevel) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("%w: unknown log_level %q", ErrInvalidConfig, c.LogLevel)
	}

	if c.Workers < 0 {
		return fmt.Errorf("%w: workers must not be negative, got %d", ErrInvalidConfig, c.Workers)
	}

	if err := c.Demarcation.Validate(); err != nil {
		return fmt.Errorf("%w: demarcation: %w", ErrInvalidConfig, err)
	}
	return nil
}

// Params returns the demarcation settings as an algorithm parameter map.
func (c Config) Params() map[string]interface{} {
	return c.Demarcation.Map()
}

// ParseAssignments turns key=value pairs into a parameter map. Values are
// read as YAML scalars, so 5 is an int, 0.3 a float and true a bool.
func ParseAssignments(pairs []string) (map[string]interface{}, error) {
	values := make(map[string]interface{}, len(pairs))
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("%w: expected key=value, got %q", ErrInvalidConfig, pair)
		}

		var value interface{}
		if err := yaml.Unmarshal([]byte(raw), &value); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrInvalidConfig, key, err)
		}
		values[key] = value
	}
	return values, nil
}
