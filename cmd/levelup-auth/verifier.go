// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LevelUp Contributors

package main

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/samber/oops"

	"github.com/levelup/authflow/internal/xdg"
)

// verifierFile holds the PKCE verifier of the last recovery request so a
// later `recover` can exchange the emailed code.
const verifierFile = "pkce_verifier"

func loadVerifier(dir string) (string, error) {
	data, err := os.ReadFile(filepath.Join(dir, verifierFile)) //nolint:gosec // fixed name under the state dir
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", oops.With("dir", dir).Wrapf(err, "read code verifier")
	}
	return strings.TrimSpace(string(data)), nil
}

// saveVerifier stores verifier, or removes the file when it is empty.
func saveVerifier(dir, verifier string) error {
	path := filepath.Join(dir, verifierFile)
	if verifier == "" {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return oops.With("path", path).Wrapf(err, "remove code verifier")
		}
		return nil
	}
	if err := xdg.EnsureDir(dir); err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(verifier+"\n"), 0o600); err != nil {
		return oops.With("path", path).Wrapf(err, "write code verifier")
	}
	return nil
}
