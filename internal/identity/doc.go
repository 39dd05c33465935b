// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LevelUp Contributors

// Package identity is the HTTP transport to the GoTrue identity service.
//
// Client implements auth.IdentityBackend. Recovery links use PKCE: the code
// verifier generated by RequestPasswordReset is held in memory and consumed
// by the next ExchangeCodeForSession. Exchanges, password updates and email
// sends are issued exactly once; token verification, sign-out and the health
// probe are retried with exponential backoff.
//
// Service failures are returned as *auth.BackendError wrapped with request
// context and no error code, so callers can attach their own.
package identity
