// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LevelUp Contributors

// Package xdg provides XDG Base Directory paths for LevelUp tools.
package xdg

import (
	"os"
	"path/filepath"

	"github.com/samber/oops"
)

const appName = "levelup"

// ConfigDir returns the LevelUp config directory.
// Checks XDG_CONFIG_HOME first, falls back to ~/.config.
func ConfigDir() (string, error) {
	return dir("XDG_CONFIG_HOME", ".config")
}

// StateDir returns the LevelUp state directory, where short-lived material
// such as a pending PKCE verifier is kept between invocations.
// Checks XDG_STATE_HOME first, falls back to ~/.local/state.
func StateDir() (string, error) {
	return dir("XDG_STATE_HOME", filepath.Join(".local", "state"))
}

func dir(env, fallback string) (string, error) {
	base := os.Getenv(env)
	if base == "" {
		home := os.Getenv("HOME")
		if home == "" {
			return "", oops.With("env", env).Errorf("neither %s nor HOME is set", env)
		}
		base = filepath.Join(home, fallback)
	}
	return filepath.Join(base, appName), nil
}

// EnsureDir creates a directory and all parent directories if they don't exist.
// Directories are created with 0700 permissions.
func EnsureDir(path string) error {
	if err := os.MkdirAll(path, 0o700); err != nil {
		return oops.With("path", path).Wrapf(err, "failed to create directory")
	}
	return nil
}
