package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ConfigDir returns the verve config directory path.
// Uses $XDG_CONFIG_HOME/verve if set, otherwise ~/.config/verve.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "verve")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "verve")
}

// WriteDefault writes a default config.toml rooted at dataDir and returns its
// path and what happened: "created" or "unchanged" when a config already
// exists.
func WriteDefault(dataDir string) (path, action string, err error) {
	dir := ConfigDir()
	path = filepath.Join(dir, "config.toml")

	if _, err := os.Stat(path); err == nil {
		return path, "unchanged", nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", fmt.Errorf("create config dir: %w", err)
	}

	data := CompressHome(dataDir)
	content := fmt.Sprintf(`data_dir = %[1]q

[stress]
# clicks per second above which clicking counts as raging
rage_threshold = 4.0
# inactivity before the learner counts as stalled
stall_ms = 20000
# mean pointer segment length (px) above which motion is jittery
jitter_px = 50.0
# direction reversals per segment above which motion is jittery
reversal_ratio = 0.3
click_span_ms = 2000

[controller]
mastery_streak = 5
initial_mode = "VERVE"
initial_level = 5

[forge]
enabled = false
timeout_seconds = 10
# openai (any OpenAI-compatible endpoint) or gemini
provider = "openai"
model = "grok-3-mini-fast"
api_key_env = "XAI_API_KEY"
base_url = "https://api.x.ai/v1"
rate_per_second = 0.5
burst = 2

[content]
default_zone = "Alpha"

[bank]
dir = %[2]q
watch = false

[profile]
path = %[3]q

[journal]
enabled = true
dir = %[4]q

[log]
level = "info"
format = "console"
`, data, data+"/bank", data+"/profile.db", data+"/journal")

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", "", fmt.Errorf("write config: %w", err)
	}

	return path, "created", nil
}

// CompressHome replaces $HOME prefix with ~/ for portable config values.
func CompressHome(path string) string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return path
	}
	if strings.HasPrefix(path, home+"/") {
		return "~/" + path[len(home)+1:]
	}
	if path == home {
		return "~"
	}
	return path
}
