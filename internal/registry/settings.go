package registry

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const settingsFilename = "settings.yml"

// AppToken returns the Semgrep app token, preferring the environment and
// falling back to the CLI's settings file (written by `semgrep login`).
// Returns "" if no token is configured anywhere.
func AppToken() string {
	if token := os.Getenv("SEMGREP_APP_TOKEN"); token != "" {
		return token
	}

	data, err := os.ReadFile(settingsPath())
	if err != nil {
		return ""
	}

	var settings struct {
		APIToken string `yaml:"api_token"`
	}
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return ""
	}
	return settings.APIToken
}

// settingsPath mirrors the CLI's settings location: an explicit override,
// else $XDG_CONFIG_HOME/.semgrep, else ~/.semgrep.
func settingsPath() string {
	if path := os.Getenv("SEMGREP_SETTINGS_FILE"); path != "" {
		return path
	}

	parent := os.Getenv("XDG_CONFIG_HOME")
	if parent == "" {
		if home, err := os.UserHomeDir(); err == nil {
			parent = home
		}
	}
	return filepath.Join(parent, ".semgrep", settingsFilename)
}
