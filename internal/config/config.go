// Package config loads the YAML configuration file.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ayusman/vocalize/internal/capture"
	"github.com/ayusman/vocalize/internal/detector"
	"github.com/ayusman/vocalize/internal/gesture"
	"github.com/ayusman/vocalize/internal/pipeline"
	"github.com/ayusman/vocalize/internal/stability"
)

// Config holds all application configuration.
type Config struct {
	LogLevel   string                  `yaml:"log_level"`
	DataDir    string                  `yaml:"data_dir"`
	Camera     capture.Config          `yaml:"camera"`
	Activity   capture.ActivityConfig  `yaml:"activity"`
	Detector   detector.Config         `yaml:"detector"`
	Smoothing  detector.SmootherConfig `yaml:"smoothing"`
	Stability  stability.Config        `yaml:"stability"`
	Classifier ClassifierConfig        `yaml:"classifier"`
	Server     ServerConfig            `yaml:"server"`
	Plugins    PluginsConfig           `yaml:"plugins"`
	Tray       TrayConfig              `yaml:"tray"`
}

// ClassifierConfig holds rule table tuning.
type ClassifierConfig struct {
	Thresholds gesture.Thresholds `yaml:"thresholds"`
	Disabled   []string           `yaml:"disabled"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr      string `yaml:"addr"`
	StaticDir string `yaml:"static_dir"`
}

// PluginsConfig holds letter sink plugin settings.
type PluginsConfig struct {
	Dir     string        `yaml:"dir"`
	Timeout time.Duration `yaml:"timeout"`
}

// TrayConfig holds system tray settings.
type TrayConfig struct {
	Enabled bool `yaml:"enabled"`
}

// DefaultConfigDir returns the default config directory path.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "vocalize")
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// Default returns a Config with the shipped defaults.
func Default() *Config {
	home, _ := os.UserHomeDir()
	dataDir := filepath.Join(home, ".vocalize")

	return &Config{
		LogLevel:  "info",
		DataDir:   dataDir,
		Camera:    capture.DefaultConfig(),
		Activity:  capture.DefaultActivityConfig(),
		Detector:  detector.DefaultConfig(),
		Smoothing: detector.DefaultSmootherConfig(),
		Stability: stability.DefaultConfig(),
		Classifier: ClassifierConfig{
			Thresholds: gesture.DefaultThresholds(),
		},
		Server: ServerConfig{
			Addr: "127.0.0.1:8080",
		},
		Plugins: PluginsConfig{
			Dir:     filepath.Join(dataDir, "plugins"),
			Timeout: 5 * time.Second,
		},
		Tray: TrayConfig{
			Enabled: true,
		},
	}
}

// Load reads and parses a YAML config file. Missing fields keep their
// defaults. A leading ~ in data_dir, static_dir and plugins.dir is expanded.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.DataDir = expandTilde(cfg.DataDir)
	cfg.Server.StaticDir = expandTilde(cfg.Server.StaticDir)
	cfg.Plugins.Dir = expandTilde(cfg.Plugins.Dir)

	return cfg, nil
}

// LoadOrDefault loads path if it exists and returns the defaults otherwise.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Default(), nil
	}
	return Load(path)
}

// Validate checks the config for invalid values.
func (c *Config) Validate() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be debug, info, warn, or error, got %q", c.LogLevel)
	}

	if c.DataDir == "" {
		return fmt.Errorf("data_dir must not be empty")
	}
	if err := c.Camera.Validate(); err != nil {
		return fmt.Errorf("camera: %w", err)
	}
	if err := c.Activity.Validate(); err != nil {
		return fmt.Errorf("activity: %w", err)
	}
	if err := c.Detector.Validate(); err != nil {
		return fmt.Errorf("detector: %w", err)
	}
	if err := c.Stability.Validate(); err != nil {
		return fmt.Errorf("stability: %w", err)
	}
	if _, err := c.Classifier.DisabledLabels(); err != nil {
		return fmt.Errorf("classifier: %w", err)
	}
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr must not be empty")
	}
	if c.Plugins.Timeout <= 0 {
		return fmt.Errorf("plugins.timeout must be > 0")
	}

	return nil
}

// DisabledLabels parses the disabled letter list.
func (c ClassifierConfig) DisabledLabels() ([]gesture.Label, error) {
	labels := make([]gesture.Label, 0, len(c.Disabled))
	for _, s := range c.Disabled {
		l, ok := gesture.ParseLabel(strings.ToUpper(strings.TrimSpace(s)))
		if !ok {
			return nil, fmt.Errorf("disabled: unknown letter %q", s)
		}
		labels = append(labels, l)
	}
	return labels, nil
}

// Pipeline returns the driver settings.
func (c *Config) Pipeline() (pipeline.Config, error) {
	disabled, err := c.Classifier.DisabledLabels()
	if err != nil {
		return pipeline.Config{}, err
	}
	return pipeline.Config{
		Stability:  c.Stability,
		Thresholds: c.Classifier.Thresholds,
		Disabled:   disabled,
	}, nil
}

// SlogLevel returns the configured log level. Unknown values map to info.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// DBPath returns the SQLite database location inside DataDir.
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, "vocalize.db")
}

// expandTilde replaces a leading ~ with the user's home directory.
func expandTilde(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
