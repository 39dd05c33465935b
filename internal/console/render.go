// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LevelUp Contributors

package console

import (
	"fmt"
	"slices"

	"github.com/levelup/authflow/internal/auth"
)

// Render prints what changed since the previous state. Use it as the flow's
// OnChange callback.
func (c *Console) Render(st auth.State) {
	c.mu.Lock()
	defer c.mu.Unlock()

	prev := c.last
	c.last = &st

	if prev == nil || prev.Mode != st.Mode || prev.FlowID != st.FlowID {
		c.writeLocked(modeBanner(st))
		if st.Mode == auth.ModeResetError && st.ErrorMessage != "" {
			c.writeLocked("! " + st.ErrorMessage)
		}
		if st.Mode == auth.ModeEmailConfirm && st.Email != "" {
			c.writeLocked(fmt.Sprintf("We sent a confirmation link to %s.", st.Email))
		}
		prev = &auth.State{Mode: st.Mode}
	}

	if recoveryBecameValid(prev, &st) {
		c.writeLocked("Recovery link verified. Choose a new password: password <new> <confirm>")
	}

	for _, field := range []auth.Field{auth.FieldNewPassword, auth.FieldConfirmPassword} {
		msgs := st.Form.FieldErrors[field]
		if len(msgs) == 0 || slices.Equal(msgs, prev.Form.FieldErrors[field]) {
			continue
		}
		for _, msg := range msgs {
			c.writeLocked(fmt.Sprintf("  %s: %s", field, msg))
		}
	}

	if st.Mode == auth.ModeEmailConfirm && prev.ResendRemaining > 0 && st.ResendRemaining == 0 {
		c.writeLocked("You can resend the confirmation email now: resend")
	}
}

func recoveryBecameValid(prev, st *auth.State) bool {
	if st.Recovery == nil || st.Recovery.Status != auth.RecoveryValid || st.PasswordUpdated {
		return false
	}
	return prev.Recovery == nil || prev.Recovery.Status != auth.RecoveryValid
}

func modeBanner(st auth.State) string {
	switch st.Mode {
	case auth.ModeRegister:
		return "== Create account ==  register <email> <password> <confirm> | login"
	case auth.ModeEmailConfirm:
		return "== Confirm your email ==  resend | login"
	case auth.ModeResetPassword:
		return "== Reset password ==  password <new> <confirm> | back"
	case auth.ModeResetError:
		return "== Recovery link problem ==  forgot <email> | back"
	default:
		return "== Sign in ==  login <email> <password> | register | forgot <email> | link <url>"
	}
}
