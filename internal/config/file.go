package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/BurntSushi/toml"
)

// fileConfig mirrors the optional TOML file. Credentials only come from the
// environment.
type fileConfig struct {
	Server     fileServer     `toml:"server"`
	Completion fileCompletion `toml:"completion"`
	Widget     fileWidget     `toml:"widget"`
	Log        fileLog        `toml:"log"`
}

type fileServer struct {
	Port           string   `toml:"port"`
	AllowedOrigins []string `toml:"allowed_origins"`
}

type fileCompletion struct {
	Provider       string `toml:"provider"`
	Endpoint       string `toml:"endpoint"`
	Model          string `toml:"model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

type fileWidget struct {
	ThinkingDelayMS *int   `toml:"thinking_delay_ms"`
	PlaceholderText string `toml:"placeholder"`
	FallbackText    string `toml:"fallback"`
	SubmitKey       string `toml:"submit_key"`
	DesktopMinWidth int    `toml:"desktop_min_width"`
	InputInitHeight int    `toml:"input_height"`
}

type fileLog struct {
	Level  string `toml:"level"`
	Pretty bool   `toml:"pretty"`
}

func readFile(path string) (fileConfig, error) {
	var cfg fileConfig
	if path == "" {
		return cfg, nil
	}

	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, fmt.Errorf("config file %s not found", path)
		}
		return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return cfg, fmt.Errorf("unknown keys in config file %s: %v", path, undecoded)
	}
	return cfg, nil
}
