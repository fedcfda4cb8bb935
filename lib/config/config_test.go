// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Session.PageSize != 50 {
		t.Errorf("expected page_size=50, got %d", cfg.Session.PageSize)
	}
	if cfg.Session.RequestTimeout.Std() != 15*time.Second {
		t.Errorf("expected request_timeout=15s, got %s", cfg.Session.RequestTimeout.Std())
	}
	if !cfg.UI.Timestamps {
		t.Error("expected timestamps enabled by default")
	}
	if cfg.Homeserver != "" {
		t.Errorf("expected no default homeserver, got %q", cfg.Homeserver)
	}
}

func TestLoad_RequiresHearthConfig(t *testing.T) {
	t.Setenv(EnvironmentVariable, "")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error when HEARTH_CONFIG not set, got nil")
	}
	if !strings.HasPrefix(err.Error(), "HEARTH_CONFIG environment variable not set") {
		t.Errorf("unexpected error message: %q", err.Error())
	}
}

func TestLoad_WithHearthConfig(t *testing.T) {
	path := writeConfig(t, "hearth.yaml", `
homeserver: https://matrix.example.org
user_id: "@ada:example.org"
access_token_file: /run/secrets/token
session:
  page_size: 20
  request_timeout: 5s
  max_backoff: 2m
ui:
  timestamps: false
  default_guild: gophers
  default_channel: general
`)
	t.Setenv(EnvironmentVariable, path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Homeserver != "https://matrix.example.org" {
		t.Errorf("homeserver = %q", cfg.Homeserver)
	}
	if cfg.Session.PageSize != 20 {
		t.Errorf("page_size = %d, want 20", cfg.Session.PageSize)
	}
	if cfg.Session.RequestTimeout.Std() != 5*time.Second {
		t.Errorf("request_timeout = %s, want 5s", cfg.Session.RequestTimeout.Std())
	}
	if cfg.Session.MaxBackoff.Std() != 2*time.Minute {
		t.Errorf("max_backoff = %s, want 2m", cfg.Session.MaxBackoff.Std())
	}
	// Unset fields keep their defaults.
	if cfg.Session.MaxAttempts != 4 {
		t.Errorf("max_attempts = %d, want default 4", cfg.Session.MaxAttempts)
	}
	if cfg.UI.Timestamps {
		t.Error("expected timestamps disabled")
	}
	if cfg.UI.DefaultGuild != "gophers" || cfg.UI.DefaultChannel != "general" {
		t.Errorf("default position = %q/%q", cfg.UI.DefaultGuild, cfg.UI.DefaultChannel)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestLoadFile_JSONC(t *testing.T) {
	path := writeConfig(t, "hearth.jsonc", `{
	// Comments and trailing commas are fine here.
	"homeserver": "http://localhost:6167",
	"username": "ada",
	"password_file": "${HOME}/.hearth-password",
	"session": {
		"retention": 100,
		"presence_interval": "90s",
	},
}`)
	t.Setenv("HOME", "/home/ada")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() failed: %v", err)
	}
	if cfg.Username != "ada" {
		t.Errorf("username = %q", cfg.Username)
	}
	if cfg.PasswordFile != "/home/ada/.hearth-password" {
		t.Errorf("password_file = %q, want expanded HOME", cfg.PasswordFile)
	}
	if cfg.Session.Retention != 100 {
		t.Errorf("retention = %d, want 100", cfg.Session.Retention)
	}
	if cfg.Session.PresenceInterval.Std() != 90*time.Second {
		t.Errorf("presence_interval = %s, want 90s", cfg.Session.PresenceInterval.Std())
	}
}

func TestLoadFile_BadDuration(t *testing.T) {
	path := writeConfig(t, "hearth.yaml", `
session:
  request_timeout: 5
`)
	if _, err := LoadFile(path); err == nil {
		t.Fatal("expected error for duration without a unit")
	}
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected a not-exist error, got %v", err)
	}
}

func TestExpandVars(t *testing.T) {
	vars := map[string]string{
		"HOME":           "/home/ada",
		"XDG_STATE_HOME": "",
	}
	t.Setenv("XDG_STATE_HOME", "")
	t.Setenv("HEARTH_TEST_UNSET", "")

	tests := []struct {
		input    string
		expected string
	}{
		{"${HOME}/token", "/home/ada/token"},
		{"${HEARTH_TEST_UNSET:-/tmp}/log", "/tmp/log"},
		{"${XDG_STATE_HOME:-${HOME}/.local/state}/hearth", "/home/ada/.local/state/hearth"},
		{"/plain/path", "/plain/path"},
		{"${HEARTH_TEST_UNSET}", ""},
	}

	for _, test := range tests {
		t.Run(test.input, func(t *testing.T) {
			result := expandVars(test.input, vars)
			if result != test.expected {
				t.Errorf("expandVars(%q) = %q, want %q", test.input, result, test.expected)
			}
		})
	}
}

func TestExpandVars_PrefersProvidedState(t *testing.T) {
	vars := map[string]string{"XDG_STATE_HOME": "/state"}
	result := expandVars("${XDG_STATE_HOME:-/fallback}/hearth", vars)
	if result != "/state/hearth" {
		t.Errorf("got %q, want /state/hearth", result)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := Default()
		cfg.Homeserver = "https://matrix.example.org"
		cfg.UserID = "@ada:example.org"
		cfg.AccessTokenFile = "/token"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid token", func(*Config) {}, ""},
		{"valid password", func(c *Config) {
			c.AccessTokenFile = ""
			c.UserID = ""
			c.Username = "ada"
			c.PasswordFile = "/password"
		}, ""},
		{"missing homeserver", func(c *Config) { c.Homeserver = "" }, "homeserver is required"},
		{"bad homeserver", func(c *Config) { c.Homeserver = "matrix.example.org" }, "http or https"},
		{"no credentials", func(c *Config) { c.AccessTokenFile = "" }, "credentials are required"},
		{"token without user", func(c *Config) { c.UserID = "" }, "user_id is required"},
		{"username without password", func(c *Config) {
			c.AccessTokenFile = ""
			c.Username = "ada"
		}, "password_file is required"},
		{"zero page size", func(c *Config) { c.Session.PageSize = 0 }, "page_size"},
		{"backoff inverted", func(c *Config) {
			c.Session.MaxBackoff = Duration(time.Millisecond)
		}, "max_backoff"},
		{"channel without guild", func(c *Config) { c.UI.DefaultChannel = "general" }, "default_guild"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cfg := valid()
			test.mutate(cfg)
			err := cfg.Validate()
			if test.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() = nil, want error containing %q", test.wantErr)
			}
			if !strings.Contains(err.Error(), test.wantErr) {
				t.Errorf("Validate() = %v, want error containing %q", err, test.wantErr)
			}
		})
	}
}

func TestSecrets(t *testing.T) {
	dir := t.TempDir()
	tokenPath := filepath.Join(dir, "token")
	if err := os.WriteFile(tokenPath, []byte("syt_secret\n"), 0600); err != nil {
		t.Fatal(err)
	}
	emptyPath := filepath.Join(dir, "empty")
	if err := os.WriteFile(emptyPath, []byte("\n"), 0600); err != nil {
		t.Fatal(err)
	}

	cfg := Default()
	cfg.AccessTokenFile = tokenPath
	token, err := cfg.AccessToken()
	if err != nil {
		t.Fatalf("AccessToken() failed: %v", err)
	}
	if token != "syt_secret" {
		t.Errorf("token = %q, want trailing newline stripped", token)
	}

	cfg.PasswordFile = emptyPath
	if _, err := cfg.Password(); err == nil {
		t.Error("expected error for empty password file")
	}

	cfg.PasswordFile = ""
	password, err := cfg.Password()
	if err != nil || password != "" {
		t.Errorf("Password() with no file = %q, %v", password, err)
	}
}
