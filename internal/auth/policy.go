// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LevelUp Contributors

package auth

import "strings"

// Password policy configuration.
const (
	MinPasswordLength = 8

	// SpecialCharacters is the fixed set a password must draw at least one
	// character from.
	SpecialCharacters = `!@#$%^&*(),.?":{}|<>`
)

// Violation names a single password rule that a candidate failed.
type Violation string

// Password rule violations.
const (
	ViolationTooShort    Violation = "too_short"
	ViolationNoLowercase Violation = "no_lowercase"
	ViolationNoUppercase Violation = "no_uppercase"
	ViolationNoDigit     Violation = "no_digit"
	ViolationNoSpecial   Violation = "no_special"
)

// Message returns the user-facing text for the violation.
func (v Violation) Message() string {
	switch v {
	case ViolationTooShort:
		return "Password must be at least 8 characters long."
	case ViolationNoLowercase:
		return "Password must contain a lowercase letter."
	case ViolationNoUppercase:
		return "Password must contain an uppercase letter."
	case ViolationNoDigit:
		return "Password must contain a number."
	case ViolationNoSpecial:
		return "Password must contain a special character (" + SpecialCharacters + ")."
	default:
		return string(v)
	}
}

// ValidatePassword checks password against every rule and returns all the
// rules it fails, in a stable order. An empty result means the password is
// acceptable. Letter and digit classes are ASCII only.
func ValidatePassword(password string) []Violation {
	var hasLower, hasUpper, hasDigit, hasSpecial bool
	for _, r := range password {
		switch {
		case r >= 'a' && r <= 'z':
			hasLower = true
		case r >= 'A' && r <= 'Z':
			hasUpper = true
		case r >= '0' && r <= '9':
			hasDigit = true
		case strings.ContainsRune(SpecialCharacters, r):
			hasSpecial = true
		}
	}

	var violations []Violation
	if len([]rune(password)) < MinPasswordLength {
		violations = append(violations, ViolationTooShort)
	}
	if !hasLower {
		violations = append(violations, ViolationNoLowercase)
	}
	if !hasUpper {
		violations = append(violations, ViolationNoUppercase)
	}
	if !hasDigit {
		violations = append(violations, ViolationNoDigit)
	}
	if !hasSpecial {
		violations = append(violations, ViolationNoSpecial)
	}
	return violations
}

// ViolationMessages maps violations to their user-facing messages.
func ViolationMessages(violations []Violation) []string {
	messages := make([]string, 0, len(violations))
	for _, v := range violations {
		messages = append(messages, v.Message())
	}
	return messages
}
