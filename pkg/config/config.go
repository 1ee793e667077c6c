// Package config loads the orchestrator configuration from a YAML file with
// environment overrides. The file is optional; every field has a default
// that matches the packaged browser build.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults for a stock install.
const (
	DefaultListenAddr = "localhost:8765"
	DefaultCDPURL     = "http://localhost:9222"
	DefaultModel      = "gpt-4.1"

	DefaultInterventionTimeout = 8 * time.Hour
	DefaultCheckpointInterval  = 500 * time.Millisecond

	DefaultMaxSteps    = 50
	DefaultMaxFailures = 3

	DefaultBindAttempts = 5
	DefaultBindBackoff  = 500 * time.Millisecond
	DefaultGracePeriod  = 2 * time.Second
)

// Config holds all orchestrator settings. It is constructed once at startup
// and passed down; nothing reads it as ambient global state.
type Config struct {
	// ListenAddr is the host:port the duplex channel server binds.
	ListenAddr string `yaml:"listen_addr"`

	// CDPURL is the DevTools endpoint of the running browser instance.
	CDPURL string `yaml:"cdp_url"`

	// Model is the chat model consulted by the automation agent.
	Model string `yaml:"model"`

	// OpenAIAPIKey is only ever taken from the environment, never the file.
	OpenAIAPIKey string `yaml:"-"`

	// InterventionTimeout bounds how long a task waits for a human response.
	InterventionTimeout time.Duration `yaml:"intervention_timeout"`

	// CheckpointInterval is how often the orchestrator's watchdog polls
	// the cancellation flag while a task runs, so a kill lands mid-step
	// and not only at the task's own checkpoints.
	CheckpointInterval time.Duration `yaml:"checkpoint_interval"`

	// MaxSteps caps the agent loop; MaxFailures is the consecutive-failure
	// threshold after which the agent gives up.
	MaxSteps    int `yaml:"max_steps"`
	MaxFailures int `yaml:"max_failures"`

	// BindAttempts and BindBackoff control listener acquisition after port
	// reclamation; GracePeriod is the wait after a graceful end_connection.
	BindAttempts int           `yaml:"bind_attempts"`
	BindBackoff  time.Duration `yaml:"bind_backoff"`
	GracePeriod  time.Duration `yaml:"grace_period"`
}

// DefaultPath returns the default config file location under the user home.
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".bill-browser", "config.yaml"), nil
}

// Load reads the config file at path, applies defaults for anything unset,
// and overlays environment variables. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
			}
		}
	}

	cfg.applyDefaults()
	cfg.applyEnv()
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		ListenAddr:          DefaultListenAddr,
		CDPURL:              DefaultCDPURL,
		Model:               DefaultModel,
		InterventionTimeout: DefaultInterventionTimeout,
		CheckpointInterval:  DefaultCheckpointInterval,
		MaxSteps:            DefaultMaxSteps,
		MaxFailures:         DefaultMaxFailures,
		BindAttempts:        DefaultBindAttempts,
		BindBackoff:         DefaultBindBackoff,
		GracePeriod:         DefaultGracePeriod,
	}
}

// applyDefaults fills zero values left by a partial YAML file.
func (c *Config) applyDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = DefaultListenAddr
	}
	if c.CDPURL == "" {
		c.CDPURL = DefaultCDPURL
	}
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if c.InterventionTimeout <= 0 {
		c.InterventionTimeout = DefaultInterventionTimeout
	}
	if c.CheckpointInterval <= 0 {
		c.CheckpointInterval = DefaultCheckpointInterval
	}
	if c.MaxSteps <= 0 {
		c.MaxSteps = DefaultMaxSteps
	}
	if c.MaxFailures <= 0 {
		c.MaxFailures = DefaultMaxFailures
	}
	if c.BindAttempts <= 0 {
		c.BindAttempts = DefaultBindAttempts
	}
	if c.BindBackoff <= 0 {
		c.BindBackoff = DefaultBindBackoff
	}
	if c.GracePeriod <= 0 {
		c.GracePeriod = DefaultGracePeriod
	}
}

func (c *Config) applyEnv() {
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		c.OpenAIAPIKey = v
	}
	if v := os.Getenv("BILL_LISTEN_ADDR"); v != "" {
		c.ListenAddr = v
	}
	if v := os.Getenv("BILL_CDP_URL"); v != "" {
		c.CDPURL = v
	}
}
