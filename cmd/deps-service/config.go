package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/houzhh15/asr-gateway/pkg/dependency"
)

// Config is the deps-service configuration file.
type Config struct {
	Commands []CommandConfig `yaml:"commands"`
	Security SecurityConfig  `yaml:"security"`
}

// CommandConfig whitelists one binary.
type CommandConfig struct {
	Name          string        `yaml:"name"`
	BinaryPath    string        `yaml:"binary_path"`
	Timeout       time.Duration `yaml:"timeout"`
	MaxConcurrent int           `yaml:"max_concurrent"`
}

// SecurityConfig restricts what a request may touch.
type SecurityConfig struct {
	// SharedVolumePath is the directory shared with the ASR server. Absolute path arguments
	// must live under it.
	SharedVolumePath string        `yaml:"shared_volume_path"`
	MaxArgs          int           `yaml:"max_args"`
	AcquireTimeout   time.Duration `yaml:"acquire_timeout"`
	AuditLogPath     string        `yaml:"audit_log_path"`
}

// LoadConfig loads configuration from a YAML file and validates it.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if config.Security.MaxArgs == 0 {
		config.Security.MaxArgs = 64
	}
	if config.Security.AcquireTimeout == 0 {
		config.Security.AcquireTimeout = 30 * time.Second
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

// GetCommandConfig returns the whitelist entry for name.
func (c *Config) GetCommandConfig(name string) (*CommandConfig, error) {
	for i := range c.Commands {
		if c.Commands[i].Name == name {
			return &c.Commands[i], nil
		}
	}
	return nil, fmt.Errorf("command %s not found in whitelist", name)
}

// ExecutorConfig converts the whitelist into a local executor configuration.
func (c *Config) ExecutorConfig() dependency.ExecutorConfig {
	cfg := dependency.ExecutorConfig{
		Mode:             dependency.ModeLocal,
		OutputDir:        c.Security.SharedVolumePath,
		LocalBinaryPaths: make(map[string]string, len(c.Commands)),
	}
	for _, cmd := range c.Commands {
		cfg.LocalBinaryPaths[cmd.Name] = cmd.BinaryPath
		cfg.AllowedCommands = append(cfg.AllowedCommands, cmd.Name)
	}
	return cfg
}

func validateConfig(config *Config) error {
	if len(config.Commands) == 0 {
		return fmt.Errorf("commands array cannot be empty")
	}

	for i, cmd := range config.Commands {
		if cmd.Name == "" {
			return fmt.Errorf("command[%d]: name cannot be empty", i)
		}
		if cmd.BinaryPath == "" {
			return fmt.Errorf("command[%d] (%s): binary_path cannot be empty", i, cmd.Name)
		}
		if cmd.Timeout <= 0 {
			return fmt.Errorf("command[%d] (%s): timeout must be positive", i, cmd.Name)
		}
		if cmd.MaxConcurrent <= 0 {
			return fmt.Errorf("command[%d] (%s): max_concurrent must be greater than 0", i, cmd.Name)
		}
	}

	if config.Security.SharedVolumePath == "" {
		return fmt.Errorf("security.shared_volume_path cannot be empty")
	}
	if !filepath.IsAbs(config.Security.SharedVolumePath) {
		return fmt.Errorf("security.shared_volume_path must be absolute")
	}
	if config.Security.MaxArgs < 0 {
		return fmt.Errorf("security.max_args must be greater than 0")
	}

	return nil
}
