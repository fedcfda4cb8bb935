// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// EnvironmentVariable names the variable [Load] reads the config path
// from.
const EnvironmentVariable = "HEARTH_CONFIG"

// Config is the hearth client configuration.
type Config struct {
	// Homeserver is the base URL of the Matrix homeserver.
	Homeserver string `yaml:"homeserver" json:"homeserver"`

	// UserID is the full Matrix user ID (@user:server). Required with
	// an access token, optional with a password login.
	UserID string `yaml:"user_id" json:"user_id"`

	// AccessTokenFile holds a pre-issued access token. Takes
	// precedence over Username and PasswordFile.
	AccessTokenFile string `yaml:"access_token_file" json:"access_token_file"`

	// Username and PasswordFile are used for password login.
	Username     string `yaml:"username" json:"username"`
	PasswordFile string `yaml:"password_file" json:"password_file"`

	Session SessionConfig `yaml:"session" json:"session"`
	UI      UIConfig      `yaml:"ui" json:"ui"`

	// StateFile is where the last position and scroll offsets are
	// persisted between runs. Empty disables persistence.
	StateFile string `yaml:"state_file" json:"state_file"`

	// LogFile receives JSON logs in addition to the status bar.
	LogFile string `yaml:"log_file" json:"log_file"`
}

// SessionConfig tunes the session client's paging and failure policy.
type SessionConfig struct {
	PageSize         int      `yaml:"page_size" json:"page_size"`
	Retention        int      `yaml:"retention" json:"retention"`
	RequestTimeout   Duration `yaml:"request_timeout" json:"request_timeout"`
	MaxAttempts      int      `yaml:"max_attempts" json:"max_attempts"`
	InitialBackoff   Duration `yaml:"initial_backoff" json:"initial_backoff"`
	MaxBackoff       Duration `yaml:"max_backoff" json:"max_backoff"`
	WriteRate        float64  `yaml:"write_rate" json:"write_rate"`
	WriteBurst       int      `yaml:"write_burst" json:"write_burst"`
	PresenceInterval Duration `yaml:"presence_interval" json:"presence_interval"`
}

// UIConfig holds display preferences and the default position used
// when no state file exists yet.
type UIConfig struct {
	Timestamps     bool   `yaml:"timestamps" json:"timestamps"`
	DefaultGuild   string `yaml:"default_guild" json:"default_guild"`
	DefaultChannel string `yaml:"default_channel" json:"default_channel"`
}

// Duration is a time.Duration written as a Go duration string.
type Duration time.Duration

// UnmarshalYAML parses a duration string such as "15s".
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return fmt.Errorf("line %d: duration must be a string: %w", node.Line, err)
	}
	parsed, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML writes the duration back as a string.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalJSON parses a duration string such as "15s".
func (d *Duration) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("duration must be a string: %w", err)
	}
	parsed, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Default returns a Config with the built-in defaults. Homeserver and
// credentials have no default.
func Default() *Config {
	return &Config{
		Session: SessionConfig{
			PageSize:         50,
			Retention:        500,
			RequestTimeout:   Duration(15 * time.Second),
			MaxAttempts:      4,
			InitialBackoff:   Duration(time.Second),
			MaxBackoff:       Duration(30 * time.Second),
			WriteRate:        5,
			WriteBurst:       5,
			PresenceInterval: Duration(time.Minute),
		},
		UI: UIConfig{
			Timestamps: true,
		},
		StateFile: "${XDG_STATE_HOME:-${HOME}/.local/state}/hearth/state.cbor",
	}
}

// Load loads configuration from the file named by HEARTH_CONFIG.
// It does not search any other location.
func Load() (*Config, error) {
	path := os.Getenv(EnvironmentVariable)
	if path == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of your hearth config file, "+
			"or pass --config", EnvironmentVariable)
	}
	return LoadFile(path)
}

// LoadFile loads configuration from path, applies defaults for unset
// fields, and expands variables in path fields. It does not validate.
func LoadFile(path string) (*Config, error) {
	config := Default()
	if err := config.loadFile(path); err != nil {
		return nil, fmt.Errorf("loading config from %s: %w", path, err)
	}
	config.expandVariables()
	return config, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		return json.Unmarshal(jsonc.ToJSON(data), c)
	}
	return yaml.Unmarshal(data, c)
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in paths.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME":           os.Getenv("HOME"),
		"XDG_STATE_HOME": os.Getenv("XDG_STATE_HOME"),
	}

	c.AccessTokenFile = expandVars(c.AccessTokenFile, vars)
	c.PasswordFile = expandVars(c.PasswordFile, vars)
	c.StateFile = expandVars(c.StateFile, vars)
	c.LogFile = expandVars(c.LogFile, vars)
}

// expandVars expands ${VAR} and ${VAR:-default} patterns. A default
// may itself contain one level of ${VAR}.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-((?:[^}$]|\$\{[^}]*\})*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		// Check provided vars first, then environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		if strings.Contains(defaultValue, "${") {
			return expandVars(defaultValue, vars)
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Homeserver == "" {
		errs = append(errs, fmt.Errorf("homeserver is required"))
	} else if !strings.HasPrefix(c.Homeserver, "http://") && !strings.HasPrefix(c.Homeserver, "https://") {
		errs = append(errs, fmt.Errorf("homeserver must be an http or https URL, got %q", c.Homeserver))
	}

	switch {
	case c.AccessTokenFile != "":
		if c.UserID == "" {
			errs = append(errs, fmt.Errorf("user_id is required with access_token_file"))
		}
	case c.Username != "":
		if c.PasswordFile == "" {
			errs = append(errs, fmt.Errorf("password_file is required with username"))
		}
	default:
		errs = append(errs, fmt.Errorf("credentials are required: set access_token_file, or username and password_file"))
	}

	if c.Session.PageSize <= 0 {
		errs = append(errs, fmt.Errorf("session.page_size must be positive"))
	}
	if c.Session.Retention <= 0 {
		errs = append(errs, fmt.Errorf("session.retention must be positive"))
	}
	if c.Session.MaxAttempts <= 0 {
		errs = append(errs, fmt.Errorf("session.max_attempts must be positive"))
	}
	if c.Session.RequestTimeout <= 0 {
		errs = append(errs, fmt.Errorf("session.request_timeout must be positive"))
	}
	if c.Session.InitialBackoff <= 0 {
		errs = append(errs, fmt.Errorf("session.initial_backoff must be positive"))
	}
	if c.Session.MaxBackoff < c.Session.InitialBackoff {
		errs = append(errs, fmt.Errorf("session.max_backoff must not be less than session.initial_backoff"))
	}
	if c.Session.WriteRate < 0 {
		errs = append(errs, fmt.Errorf("session.write_rate must not be negative"))
	}
	if c.Session.PresenceInterval < 0 {
		errs = append(errs, fmt.Errorf("session.presence_interval must not be negative"))
	}

	if c.UI.DefaultChannel != "" && c.UI.DefaultGuild == "" {
		errs = append(errs, fmt.Errorf("ui.default_channel requires ui.default_guild"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// AccessToken reads the token from AccessTokenFile. Returns "" with no
// error when no token file is configured.
func (c *Config) AccessToken() (string, error) {
	if c.AccessTokenFile == "" {
		return "", nil
	}
	return readSecret(c.AccessTokenFile)
}

// Password reads the password from PasswordFile.
func (c *Config) Password() (string, error) {
	if c.PasswordFile == "" {
		return "", nil
	}
	return readSecret(c.PasswordFile)
}

func readSecret(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading secret: %w", err)
	}
	secret := strings.TrimRight(string(data), "\r\n")
	if secret == "" {
		return "", fmt.Errorf("secret file %s is empty", path)
	}
	return secret, nil
}
