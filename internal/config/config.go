package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/suykerbuyk/verve/internal/stress"
)

// Config holds all verve configuration.
type Config struct {
	DataDir string `toml:"data_dir"`

	Stress     StressConfig     `toml:"stress"`
	Controller ControllerConfig `toml:"controller"`
	Forge      ForgeConfig      `toml:"forge"`
	Content    ContentConfig    `toml:"content"`
	Bank       BankConfig       `toml:"bank"`
	Profile    ProfileConfig    `toml:"profile"`
	Journal    JournalConfig    `toml:"journal"`
	Log        LogConfig        `toml:"log"`
}

type StressConfig struct {
	RageThreshold   float64 `toml:"rage_threshold"`
	StallMillis     int     `toml:"stall_ms"`
	JitterPixels    float64 `toml:"jitter_px"`
	ReversalRatio   float64 `toml:"reversal_ratio"`
	ClickSpanMillis int     `toml:"click_span_ms"`
}

type ControllerConfig struct {
	MasteryStreak int    `toml:"mastery_streak"`
	InitialMode   string `toml:"initial_mode"`
	InitialLevel  int    `toml:"initial_level"`
}

type ForgeConfig struct {
	Enabled        bool    `toml:"enabled"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
	Provider       string  `toml:"provider"`
	Model          string  `toml:"model"`
	APIKeyEnv      string  `toml:"api_key_env"`
	BaseURL        string  `toml:"base_url"`
	RatePerSecond  float64 `toml:"rate_per_second"`
	Burst          int     `toml:"burst"`
}

type ContentConfig struct {
	DefaultZone string `toml:"default_zone"`
}

type BankConfig struct {
	Dir   string `toml:"dir"`
	Watch bool   `toml:"watch"`
}

type ProfileConfig struct {
	Path string `toml:"path"`
}

type JournalConfig struct {
	Enabled bool   `toml:"enabled"`
	Dir     string `toml:"dir"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // json or console
}

// DefaultConfig returns config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		DataDir: "~/.local/share/verve",
		Stress: StressConfig{
			RageThreshold:   4,
			StallMillis:     20000,
			JitterPixels:    50,
			ReversalRatio:   0.3,
			ClickSpanMillis: 2000,
		},
		Controller: ControllerConfig{
			MasteryStreak: 5,
			InitialMode:   "VERVE",
			InitialLevel:  5,
		},
		Forge: ForgeConfig{
			Enabled:        false,
			TimeoutSeconds: 10,
			Provider:       "openai",
			Model:          "grok-3-mini-fast",
			APIKeyEnv:      "XAI_API_KEY",
			BaseURL:        "https://api.x.ai/v1",
			RatePerSecond:  0.5,
			Burst:          2,
		},
		Content: ContentConfig{
			DefaultZone: "Alpha",
		},
		Bank: BankConfig{
			Dir:   "~/.local/share/verve/bank",
			Watch: false,
		},
		Profile: ProfileConfig{
			Path: "~/.local/share/verve/profile.db",
		},
		Journal: JournalConfig{
			Enabled: true,
			Dir:     "~/.local/share/verve/journal",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads config from the standard path, falling back to defaults.
func Load() (Config, error) {
	cfg := DefaultConfig()

	for _, p := range configPaths() {
		if _, err := os.Stat(p); err == nil {
			if _, err := toml.DecodeFile(p, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config %s: %w", p, err)
			}
			break
		}
	}

	cfg.DataDir = expandHome(cfg.DataDir)
	cfg.Bank.Dir = expandHome(cfg.Bank.Dir)
	cfg.Profile.Path = expandHome(cfg.Profile.Path)
	cfg.Journal.Dir = expandHome(cfg.Journal.Dir)

	return cfg, nil
}

// Path returns the config file Load would read, or the preferred location
// when none exists yet.
func Path() string {
	paths := configPaths()
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return filepath.Join(ConfigDir(), "config.toml")
}

func configPaths() []string {
	var paths []string

	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		paths = append(paths, filepath.Join(xdg, "verve", "config.toml"))
	}

	home, _ := os.UserHomeDir()
	if home != "" {
		paths = append(paths, filepath.Join(home, ".config", "verve", "config.toml"))
	}

	return paths
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}

// Thresholds converts the stress section. Non-positive values are left zero
// so the engine substitutes its defaults.
func (s StressConfig) Thresholds() stress.Thresholds {
	return stress.Thresholds{
		Rage:          s.RageThreshold,
		Stall:         time.Duration(s.StallMillis) * time.Millisecond,
		Jitter:        s.JitterPixels,
		ReversalRatio: s.ReversalRatio,
		ClickSpan:     time.Duration(s.ClickSpanMillis) * time.Millisecond,
	}
}

// Timeout is the per-request forge deadline.
func (f ForgeConfig) Timeout() time.Duration {
	if f.TimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(f.TimeoutSeconds) * time.Second
}

// APIKey reads the forge credential from the configured environment
// variable.
func (f ForgeConfig) APIKey() string {
	if f.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(f.APIKeyEnv)
}
