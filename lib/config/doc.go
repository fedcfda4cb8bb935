// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the hearth client configuration.
//
// Configuration is loaded from a single file named either by the
// HEARTH_CONFIG environment variable (via [Load]) or a --config flag
// (via [LoadFile]). There is no discovery and no search path. Files
// are YAML; a file ending in .json or .jsonc is parsed as JSON with
// comments and trailing commas allowed.
//
// Variable expansion is performed on path fields after loading:
// ${HOME}, ${XDG_STATE_HOME}, and ${VAR:-default} patterns are
// expanded. Durations are Go duration strings ("15s", "2m").
//
// Secrets never live in the file itself. The access token and the
// password are read from the files named by access_token_file and
// password_file when [Config.AccessToken] and [Config.Password] are
// called.
//
// This package depends on no other hearth packages.
package config
