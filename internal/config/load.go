package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// Environment variables that override file values after parsing.
const (
	EnvBackendURL = "REHEARSE_BACKEND_URL"
	EnvLogLevel   = "REHEARSE_LOG_LEVEL"
)

// Loaded captures resolved config path, parsed values, and non-fatal warnings.
type Loaded struct {
	Path     string
	Config   Config
	Warnings []Warning
	Exists   bool
	// Overrides names the environment variables applied on top of the file.
	Overrides []string
}

// Load resolves, reads, parses, and validates the runtime configuration,
// then applies environment overrides.
func Load(explicitPath string) (Loaded, error) {
	resolvedPath, err := ResolvePath(explicitPath)
	if err != nil {
		return Loaded{}, err
	}

	loaded := Loaded{Path: resolvedPath}
	content, err := os.ReadFile(resolvedPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		loaded.Config = Default()
		loaded.Warnings = []Warning{{
			Message: fmt.Sprintf("config file %q not found; using defaults", resolvedPath),
		}}
	case err != nil:
		return Loaded{}, fmt.Errorf("read config %q: %w", resolvedPath, err)
	default:
		cfg, warnings, err := Parse(string(content), Default())
		if err != nil {
			return Loaded{}, fmt.Errorf("parse config %q: %w", resolvedPath, err)
		}
		loaded.Config, loaded.Warnings, loaded.Exists = cfg, warnings, true
	}

	overrides := applyEnv(&loaded.Config)
	if len(overrides) > 0 {
		if _, err := Validate(loaded.Config); err != nil {
			return Loaded{}, fmt.Errorf("apply %s: %w", strings.Join(overrides, ", "), err)
		}
		loaded.Overrides = overrides
	}
	return loaded, nil
}

func applyEnv(cfg *Config) []string {
	var applied []string
	if v := strings.TrimSpace(os.Getenv(EnvBackendURL)); v != "" {
		cfg.Backend.BaseURL = v
		applied = append(applied, EnvBackendURL)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.Log.Level = strings.ToLower(v)
		applied = append(applied, EnvLogLevel)
	}
	return applied
}
