package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. RSTRLEN_LOG_LEVEL or
// RSTRLEN_WASM_MAX_INSTANCES.
const EnvPrefix = "RSTRLEN"

type Config struct {
	// Directories searched for libraries, in order.
	LibraryPaths []string `mapstructure:"library_paths"`
	// Logical name of the library used by default.
	Library string `mapstructure:"library"`
	// Backend used when the library has no manifest: native or wasm.
	Backend  string     `mapstructure:"backend"`
	LogLevel string     `mapstructure:"log_level"`
	Watch    bool       `mapstructure:"watch"`
	Wasm     WasmConfig `mapstructure:"wasm"`
}

// WasmConfig holds Wasm runtime configuration.
type WasmConfig struct {
	// Memory limit per module (in pages, 64KB each).
	MemoryPages uint32 `mapstructure:"memory_pages"`
	// Enable debug logging.
	Debug bool `mapstructure:"debug"`
	// Compilation cache directory.
	CacheDir string `mapstructure:"cache_dir"`
	// Maximum instances per library.
	MaxInstances int `mapstructure:"max_instances"`
	// Module execution timeout (seconds).
	ExecutionTimeout int `mapstructure:"execution_timeout"`
}

// Timeout returns the execution timeout as a duration.
func (w WasmConfig) Timeout() time.Duration {
	return time.Duration(w.ExecutionTimeout) * time.Second
}

func Load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetDefault("library_paths", []string{"./lib"})
	v.SetDefault("library", "rstrlen")
	v.SetDefault("backend", "native")
	v.SetDefault("log_level", "info")
	v.SetDefault("watch", false)

	// Wasm defaults
	v.SetDefault("wasm.memory_pages", 256) // 16MB
	v.SetDefault("wasm.debug", false)
	v.SetDefault("wasm.cache_dir", "")
	v.SetDefault("wasm.max_instances", 4)
	v.SetDefault("wasm.execution_timeout", 30)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks values viper cannot type-check.
func (c *Config) Validate() error {
	switch c.Backend {
	case "native", "wasm":
	default:
		return fmt.Errorf("invalid backend %q (must be one of: native, wasm)", c.Backend)
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log_level %q (must be one of: debug, info, warn, error)", c.LogLevel)
	}

	if c.Library == "" {
		return fmt.Errorf("library must not be empty")
	}

	if c.Wasm.MaxInstances < 1 {
		return fmt.Errorf("wasm.max_instances must be at least 1, got %d", c.Wasm.MaxInstances)
	}

	if c.Wasm.ExecutionTimeout < 0 {
		return fmt.Errorf("wasm.execution_timeout must not be negative, got %d", c.Wasm.ExecutionTimeout)
	}

	return nil
}
