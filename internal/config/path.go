package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// EnvConfigPath names a config file when --config is not given.
const EnvConfigPath = "REHEARSE_CONFIG"

const configFileName = "config.jsonc"

// ResolvePath picks the config location in this order: the --config flag,
// $REHEARSE_CONFIG, $XDG_CONFIG_HOME/rehearse, then ~/.config/rehearse.
// A leading ~ in explicit paths expands to the home directory.
func ResolvePath(explicit string) (string, error) {
	for _, candidate := range []string{explicit, os.Getenv(EnvConfigPath)} {
		if strings.TrimSpace(candidate) != "" {
			return expandPath(candidate), nil
		}
	}

	if xdg := strings.TrimSpace(os.Getenv("XDG_CONFIG_HOME")); xdg != "" {
		return filepath.Join(xdg, "rehearse", configFileName), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.New("unable to resolve user home for config fallback")
	}
	return filepath.Join(home, ".config", "rehearse", configFileName), nil
}
