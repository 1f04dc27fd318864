package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config is the application configuration.
type Config struct {
	Executor ExecutorConfig `mapstructure:"executor" yaml:"executor"`
	Docker   DockerConfig   `mapstructure:"docker" yaml:"docker"`
	CloudVM  CloudVMConfig  `mapstructure:"cloudvm" yaml:"cloudvm"`
	Sandbox  SandboxConfig  `mapstructure:"sandbox" yaml:"sandbox"`
	Wasm     WasmConfig     `mapstructure:"wasm" yaml:"wasm"`
	Logging  LoggingConfig  `mapstructure:"logging" yaml:"logging"`
}

// ExecutorConfig selects the backend and sets evaluator limits.
type ExecutorConfig struct {
	// Kind is the backend: local, docker, cloudvm, sandboxapi, wasm.
	Kind               string   `mapstructure:"kind" yaml:"kind"`
	MaxOps             int64    `mapstructure:"max_ops" yaml:"max_ops"`
	MaxWhileIterations int64    `mapstructure:"max_while_iterations" yaml:"max_while_iterations"`
	AuthorizedImports  []string `mapstructure:"authorized_imports" yaml:"authorized_imports"`
	MaxLogBytes        int      `mapstructure:"max_log_bytes" yaml:"max_log_bytes"`
	ExecuteTimeoutSec  int      `mapstructure:"execute_timeout_sec" yaml:"execute_timeout_sec"`
}

// DockerConfig configures the container backend.
type DockerConfig struct {
	Image           string `mapstructure:"image" yaml:"image"`
	Port            int    `mapstructure:"port" yaml:"port"`
	Token           string `mapstructure:"token" yaml:"token"`
	GatewayURL      string `mapstructure:"gateway_url" yaml:"gateway_url"`
	StartTimeoutSec int    `mapstructure:"start_timeout_sec" yaml:"start_timeout_sec"`
}

// CloudVMConfig configures the micro-VM backend.
type CloudVMConfig struct {
	URL    string `mapstructure:"url" yaml:"url"`
	APIKey string `mapstructure:"api_key" yaml:"api_key"`
}

// SandboxConfig configures the REST sandbox SDK backend.
type SandboxConfig struct {
	URL    string `mapstructure:"url" yaml:"url"`
	APIKey string `mapstructure:"api_key" yaml:"api_key"`
}

// WasmConfig configures the WASM subprocess backend.
type WasmConfig struct {
	Command         string `mapstructure:"command" yaml:"command"`
	Port            int    `mapstructure:"port" yaml:"port"`
	BaseURL         string `mapstructure:"base_url" yaml:"base_url"`
	StartTimeoutSec int    `mapstructure:"start_timeout_sec" yaml:"start_timeout_sec"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Mode  string `mapstructure:"mode" yaml:"mode"`
	Level string `mapstructure:"level" yaml:"level"`
}

var supportedKinds = map[string]bool{
	"local":      true,
	"docker":     true,
	"cloudvm":    true,
	"sandboxapi": true,
	"wasm":       true,
}

// Load reads configuration from the named file (empty for defaults
// plus PYRITE_* environment variables only), validates it, and
// returns it.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PYRITE")
	v.AutomaticEnv()

	v.SetDefault("executor.kind", "local")
	v.SetDefault("executor.max_ops", 10_000_000)
	v.SetDefault("executor.max_while_iterations", 1_000_000)
	v.SetDefault("executor.authorized_imports", []string{"math"})
	v.SetDefault("executor.max_log_bytes", 50_000)
	v.SetDefault("executor.execute_timeout_sec", 60)

	v.SetDefault("docker.image", "pyrite-kernel:latest")
	v.SetDefault("docker.port", 8888)
	v.SetDefault("docker.start_timeout_sec", 30)

	v.SetDefault("wasm.command", "deno")
	v.SetDefault("wasm.port", 8642)
	v.SetDefault("wasm.start_timeout_sec", 60)

	v.SetDefault("logging.mode", "production")
	v.SetDefault("logging.level", "info")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return &cfg, nil
}

// Parse decodes raw YAML into a Config, fills defaults for unset
// fields, and validates it. It is the embed-friendly counterpart to
// Load for callers that carry their configuration as bytes.
func Parse(raw []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return &cfg, nil
}

// applyDefaults sets default values for optional fields.
func (c *Config) applyDefaults() {
	if c.Executor.Kind == "" {
		c.Executor.Kind = "local"
	}
	if c.Executor.MaxOps == 0 {
		c.Executor.MaxOps = 10_000_000
	}
	if c.Executor.MaxWhileIterations == 0 {
		c.Executor.MaxWhileIterations = 1_000_000
	}
	if c.Executor.AuthorizedImports == nil {
		c.Executor.AuthorizedImports = []string{"math"}
	}
	if c.Executor.MaxLogBytes == 0 {
		c.Executor.MaxLogBytes = 50_000
	}
	if c.Executor.ExecuteTimeoutSec == 0 {
		c.Executor.ExecuteTimeoutSec = 60
	}
	if c.Docker.Image == "" {
		c.Docker.Image = "pyrite-kernel:latest"
	}
	if c.Docker.Port == 0 {
		c.Docker.Port = 8888
	}
	if c.Docker.StartTimeoutSec == 0 {
		c.Docker.StartTimeoutSec = 30
	}
	if c.Wasm.Command == "" {
		c.Wasm.Command = "deno"
	}
	if c.Wasm.Port == 0 {
		c.Wasm.Port = 8642
	}
	if c.Wasm.StartTimeoutSec == 0 {
		c.Wasm.StartTimeoutSec = 60
	}
	if c.Logging.Mode == "" {
		c.Logging.Mode = "production"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

func (c *Config) validate() error {
	if !supportedKinds[c.Executor.Kind] {
		return fmt.Errorf("unsupported executor.kind: %s", c.Executor.Kind)
	}
	if c.Executor.MaxOps < 0 {
		return fmt.Errorf("executor.max_ops must not be negative, got: %d", c.Executor.MaxOps)
	}
	if c.Executor.MaxWhileIterations < 0 {
		return fmt.Errorf("executor.max_while_iterations must not be negative, got: %d", c.Executor.MaxWhileIterations)
	}
	switch c.Executor.Kind {
	case "cloudvm":
		if c.CloudVM.URL == "" {
			return fmt.Errorf("cloudvm.url is required for the cloudvm backend")
		}
	case "sandboxapi":
		if c.Sandbox.URL == "" {
			return fmt.Errorf("sandbox.url is required for the sandboxapi backend")
		}
	}
	return nil
}

// ExecuteTimeout returns the execute round-trip bound as a duration.
func (c *Config) ExecuteTimeout() time.Duration {
	return time.Duration(c.Executor.ExecuteTimeoutSec) * time.Second
}
