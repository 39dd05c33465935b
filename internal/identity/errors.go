// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LevelUp Contributors

package identity

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/levelup/authflow/internal/auth"
)

// ErrorCodeVerifierMissing is reported when a code arrives without the
// verifier of the request that produced it.
const ErrorCodeVerifierMissing = "pkce_verifier_missing"

// errorBody covers both error shapes the service emits:
// {"code":400,"error_code":"...","msg":"..."} and
// {"error":"...","error_description":"..."}.
type errorBody struct {
	ErrorCode        string `json:"error_code"`
	Msg              string `json:"msg"`
	Message          string `json:"message"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func decodeError(status int, data []byte) *auth.BackendError {
	be := &auth.BackendError{Status: status}

	var body errorBody
	if err := json.Unmarshal(data, &body); err == nil {
		be.ErrorCode = firstNonEmpty(body.ErrorCode, body.Error)
		be.Message = firstNonEmpty(body.Msg, body.ErrorDescription, body.Message)
	}
	if be.Message == "" {
		be.Message = http.StatusText(status)
	}
	return be
}

func isRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var be *auth.BackendError
	if errors.As(err, &be) {
		return be.Status == http.StatusTooManyRequests || be.Status >= http.StatusInternalServerError
	}
	return true
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
