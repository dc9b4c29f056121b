// Package config provides the launcher settings file for lockview.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the launcher settings. Command-line flags override
// every field.
type Config struct {
	Repo         string        `yaml:"repo"`
	Branch       string        `yaml:"branch"`
	Dest         string        `yaml:"dest"`
	ViewerSubdir string        `yaml:"viewer_subdir"`
	APIURL       string        `yaml:"api_url"`
	Secrets      SecretsConfig `yaml:"secrets"`
	Notify       bool          `yaml:"notify"`
	Cleanup      bool          `yaml:"cleanup"`
	Logging      LoggingConfig `yaml:"logging"`
	History      HistoryConfig `yaml:"history"`
}

// HistoryConfig controls the launch history file. An empty Path means
// launches.jsonl next to the settings file.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// SecretsConfig locates the remote secrets document.
type SecretsConfig struct {
	Repo string `yaml:"repo"`
	Path string `yaml:"path"`
	Ref  string `yaml:"ref"`
}

// LoggingConfig configures logging behavior.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json, text
}

// DefaultAPIURL is the content and issue API root.
const DefaultAPIURL = "https://api.github.com"

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		ViewerSubdir: "viewer",
		APIURL:       DefaultAPIURL,
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		History: HistoryConfig{Enabled: true},
	}
}

// DefaultPath returns $XDG_CONFIG_HOME/lockview/config.yaml (or the
// platform equivalent).
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate config dir: %w", err)
	}
	return filepath.Join(dir, "lockview", "config.yaml"), nil
}

// DefaultDest returns the default checkout directory.
func DefaultDest() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "lockview_run")
	}
	return filepath.Join(home, ".local", "lockview_run")
}

// Load loads settings from path.
// Returns default config if the file doesn't exist.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse settings: %w", err)
	}
	if cfg.ViewerSubdir == "" {
		cfg.ViewerSubdir = "viewer"
	}
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}

	return cfg, nil
}

// Save writes settings to path.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Keys lists the settable keys in display order.
var Keys = []string{
	"repo", "branch", "dest", "viewer_subdir", "api_url",
	"secrets.repo", "secrets.path", "secrets.ref",
	"notify", "cleanup", "logging.level", "logging.format",
	"history.enabled", "history.path",
}

// Get returns the string form of key.
func (c *Config) Get(key string) (string, error) {
	switch key {
	case "repo":
		return c.Repo, nil
	case "branch":
		return c.Branch, nil
	case "dest":
		return c.Dest, nil
	case "viewer_subdir":
		return c.ViewerSubdir, nil
	case "api_url":
		return c.APIURL, nil
	case "secrets.repo":
		return c.Secrets.Repo, nil
	case "secrets.path":
		return c.Secrets.Path, nil
	case "secrets.ref":
		return c.Secrets.Ref, nil
	case "notify":
		return strconv.FormatBool(c.Notify), nil
	case "cleanup":
		return strconv.FormatBool(c.Cleanup), nil
	case "logging.level":
		return c.Logging.Level, nil
	case "logging.format":
		return c.Logging.Format, nil
	case "history.enabled":
		return strconv.FormatBool(c.History.Enabled), nil
	case "history.path":
		return c.History.Path, nil
	}
	return "", fmt.Errorf("unknown key %q (valid: %s)", key, strings.Join(Keys, ", "))
}

// Set assigns value to key.
func (c *Config) Set(key, value string) error {
	switch key {
	case "repo":
		c.Repo = value
	case "branch":
		c.Branch = value
	case "dest":
		c.Dest = value
	case "viewer_subdir":
		c.ViewerSubdir = value
	case "api_url":
		c.APIURL = strings.TrimRight(value, "/")
	case "secrets.repo":
		c.Secrets.Repo = value
	case "secrets.path":
		c.Secrets.Path = value
	case "secrets.ref":
		c.Secrets.Ref = value
	case "notify", "cleanup", "history.enabled":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%s must be true or false, got %q", key, value)
		}
		switch key {
		case "notify":
			c.Notify = b
		case "cleanup":
			c.Cleanup = b
		default:
			c.History.Enabled = b
		}
	case "history.path":
		c.History.Path = value
	case "logging.level":
		switch strings.ToLower(value) {
		case "debug", "info", "warn", "warning", "error":
			c.Logging.Level = strings.ToLower(value)
		default:
			return fmt.Errorf("invalid log level %q", value)
		}
	case "logging.format":
		if value != "json" && value != "text" {
			return fmt.Errorf("logging.format must be json or text, got %q", value)
		}
		c.Logging.Format = value
	default:
		return fmt.Errorf("unknown key %q (valid: %s)", key, strings.Join(Keys, ", "))
	}
	return nil
}
