// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LevelUp Contributors

// Package auth orchestrates account recovery and confirmation links over a
// remote identity service.
//
// # Signals
//
// Links come back from the identity service carrying their parameters in
// the query string or the fragment. Classify reads both, key by key, and
// yields one of NONE, ERROR, RECOVERY_CODE or RECOVERY_TOKEN.
// StripSignalParams removes them so a reload cannot replay a link.
//
// # Recovery
//
// An Establisher turns a signal into a RecoverySession:
//   - RECOVERY_CODE - a single exchange call; codes are never retried
//   - RECOVERY_TOKEN - valid at once, verified in the background
//   - ERROR, NONE - invalid without contacting the service
//
// A CredentialUpdater applies the new password through a VALID session and
// signs the session out after a short delay, so the user has to log in with
// the new password.
//
// # Controller
//
// Controller is the root state machine over Mode. Remote calls run in the
// background and their results are dropped if the user has navigated away.
// Timers belong to a Scope that is closed whenever the view changes.
package auth
