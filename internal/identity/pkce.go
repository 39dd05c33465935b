// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LevelUp Contributors

package identity

import "golang.org/x/oauth2"

const challengeMethod = "s256"

func newVerifier() string {
	return oauth2.GenerateVerifier()
}

func challenge(verifier string) string {
	return oauth2.S256ChallengeFromVerifier(verifier)
}
