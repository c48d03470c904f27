package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Engine    EngineConfig    `toml:"engine"`
	Logging   LoggingConfig   `toml:"logging"`
	Metrics   MetricsConfig   `toml:"metrics"`
	Scripting ScriptingConfig `toml:"scripting"`
}

type EngineConfig struct {
	TargetTickrate  int    `toml:"target_tickrate"`  // update ticks per second, 0 = unpaced
	TargetFramerate int    `toml:"target_framerate"` // headless render ticks per second, 0 = unpaced
	ResourcesDir    string `toml:"resources_dir"`
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "json" or "console"
}

type MetricsConfig struct {
	Enabled     bool   `toml:"enabled"`
	BindAddress string `toml:"bind_address"`
}

type ScriptingConfig struct {
	Modules []ScriptModule `toml:"modules"`
}

// ScriptModule declares a Lua-backed static module.
type ScriptModule struct {
	ID        string   `toml:"id"`
	Path      string   `toml:"path"`
	DependsOn []string `toml:"depends_on"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := Defaults()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadOrDefault is Load, except that a missing file yields the defaults.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Defaults(), nil
	}
	return Load(path)
}

func Defaults() *Config {
	return &Config{
		Engine: EngineConfig{
			TargetTickrate:  60,
			TargetFramerate: 60,
			ResourcesDir:    "resources",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Metrics: MetricsConfig{
			Enabled:     false,
			BindAddress: "127.0.0.1:9464",
		},
	}
}
