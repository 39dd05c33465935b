// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LevelUp Contributors

package auth

import (
	"strings"

	"github.com/levelup/authflow/pkg/errutil"
)

// Error codes carried by oops errors and recovery causes.
const (
	CodeTokenMissing       = "RECOVERY_TOKEN_MISSING"
	CodeLinkExpired        = "RECOVERY_LINK_EXPIRED"
	CodeLinkInvalid        = "RECOVERY_LINK_INVALID"
	CodeAccessDenied       = "RECOVERY_ACCESS_DENIED"
	CodeExchangeFailed     = "RECOVERY_EXCHANGE_FAILED"
	CodeSessionNotValid    = "RECOVERY_SESSION_NOT_VALID"
	CodePasswordPolicy     = "PASSWORD_POLICY_VIOLATION"
	CodePasswordMismatch   = "PASSWORD_MISMATCH"
	CodeUpdateFailed       = "PASSWORD_UPDATE_FAILED"
	CodeSendFailed         = "EMAIL_SEND_FAILED"
	CodeCooldownActive     = "EMAIL_COOLDOWN_ACTIVE"
	CodeInvalidEmail       = "AUTH_INVALID_EMAIL"
	CodeSignInFailed       = "AUTH_SIGN_IN_FAILED"
	CodeSignUpFailed       = "AUTH_SIGN_UP_FAILED"
	CodeInvalidMode        = "AUTH_INVALID_MODE"
	CodeRequestInFlight    = "AUTH_REQUEST_IN_FLIGHT"
	errorCodeOTPExpired    = "otp_expired"
	errorCodeAccessDenied  = "access_denied"
	errorCodeFlowExpired   = "flow_state_expired"
	expiryMarker           = "expired"
	genericExchangeMessage = "We couldn't verify your recovery link. Please request a new one."
)

// CauseMessage returns the user-facing copy for a recovery cause.
func CauseMessage(code string) string {
	switch code {
	case CodeLinkExpired:
		return "This recovery link has expired. Links are valid for 1 hour; please request a new one."
	case CodeAccessDenied:
		return "Access to this recovery link was denied. Please request a new one."
	case CodeTokenMissing:
		return "No recovery code was found in this link. Open the link from your email again or request a new one."
	case CodeLinkInvalid:
		return "This recovery link is invalid or has already been used. Please request a new one."
	case CodeExchangeFailed:
		return genericExchangeMessage
	default:
		return ""
	}
}

// IsTerminalCause reports whether code ends the current recovery attempt. The
// only way forward from a terminal cause is a fresh link or the login screen.
func IsTerminalCause(code string) bool {
	switch code {
	case CodeTokenMissing, CodeLinkExpired, CodeLinkInvalid, CodeAccessDenied:
		return true
	default:
		return false
	}
}

// FailureCause returns the cause a signal resolves to when it cannot
// establish a recovery session. Expiry is checked first, then access denied;
// a link that never carried a code or token is TOKEN_MISSING, anything else
// is LINK_INVALID.
func FailureCause(sig Signal) string {
	if isExpiry(sig.ErrorCode, sig.ErrorDescription) {
		return CodeLinkExpired
	}
	if strings.EqualFold(sig.ErrorCode, errorCodeAccessDenied) || strings.EqualFold(sig.Error, errorCodeAccessDenied) {
		return CodeAccessDenied
	}
	if !sig.HasCredential() && !sig.HadCredential {
		return CodeTokenMissing
	}
	return CodeLinkInvalid
}

func isExpiry(errorCode, description string) bool {
	if strings.EqualFold(errorCode, errorCodeOTPExpired) || strings.EqualFold(errorCode, errorCodeFlowExpired) {
		return true
	}
	return strings.Contains(strings.ToLower(description), expiryMarker)
}

// ErrorCode returns the oops code of err, or "" if it has none.
func ErrorCode(err error) string {
	return errutil.CodeOf(err)
}
