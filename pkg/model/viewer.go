package model

import (
	"fmt"
)

// Recognized configuration keys, shared by the config file, the environment
// and the remote secrets document.
const (
	KeyPassword     = "PASSWORD"
	KeyDuration     = "DURATION"
	KeyASCIISeconds = "ASCII_SECONDS"
	KeyWhitelist    = "WHITELIST"
)

// RecognizedKeys lists the keys the window consumes, in file order.
var RecognizedKeys = []string{KeyPassword, KeyDuration, KeyASCIISeconds, KeyWhitelist}

// Default values applied beneath every other source.
const (
	DefaultDuration       = 30
	DefaultOverlaySeconds = 3
)

// ViewerConfig is the resolved window configuration. It is built once per
// run and has no setters.
type ViewerConfig struct {
	password       string
	duration       int
	overlaySeconds int
	whitelist      []string
	hasWhitelist   bool
}

// NewViewerConfig validates and copies its inputs. A nil whitelist means
// "absent"; an empty non-nil whitelist means "present but empty".
func NewViewerConfig(password string, duration, overlaySeconds int, whitelist []string) (*ViewerConfig, error) {
	if duration < 0 {
		return nil, fmt.Errorf("duration must be >= 0, got %d", duration)
	}
	if overlaySeconds < 0 {
		return nil, fmt.Errorf("overlay seconds must be >= 0, got %d", overlaySeconds)
	}
	cfg := &ViewerConfig{
		password:       password,
		duration:       duration,
		overlaySeconds: overlaySeconds,
	}
	if whitelist != nil {
		cfg.hasWhitelist = true
		cfg.whitelist = append([]string{}, whitelist...)
	}
	return cfg, nil
}

// Password returns the unlock password. Empty means timer-only.
func (c *ViewerConfig) Password() string { return c.password }

// Duration returns the lock time in seconds.
func (c *ViewerConfig) Duration() int { return c.duration }

// OverlaySeconds returns how long the overlay stays visible.
func (c *ViewerConfig) OverlaySeconds() int { return c.overlaySeconds }

// HasWhitelist reports whether a whitelist was configured at all.
func (c *ViewerConfig) HasWhitelist() bool { return c.hasWhitelist }

// Whitelist returns a copy of the advisory identity list.
func (c *ViewerConfig) Whitelist() []string {
	if !c.hasWhitelist {
		return nil
	}
	return append([]string{}, c.whitelist...)
}

// TimerOnly reports whether the window can only end by expiry.
func (c *ViewerConfig) TimerOnly() bool { return c.password == "" }

// Redacted returns a loggable view of the configuration.
func (c *ViewerConfig) Redacted() map[string]any {
	return map[string]any{
		"password_set":    c.password != "",
		"duration":        c.duration,
		"overlay_seconds": c.overlaySeconds,
		"whitelist_size":  len(c.whitelist),
	}
}
