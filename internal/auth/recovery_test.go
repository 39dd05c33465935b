// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LevelUp Contributors

package auth_test

import (
	"context"
	"errors"
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/levelup/authflow/internal/auth"
	"github.com/levelup/authflow/internal/auth/mocks"
	"github.com/levelup/authflow/pkg/errutil"
)

func TestNewEstablisher_RequiresBackend(t *testing.T) {
	_, err := auth.NewEstablisher(nil, nil, nil)
	require.Error(t, err)
}

func TestEstablisher_RecoveryCode(t *testing.T) {
	ctx := context.Background()

	t.Run("successful exchange is valid", func(t *testing.T) {
		backend := mocks.NewMockIdentityBackend(t)
		session := &auth.Session{AccessToken: "access", RefreshToken: "refresh"}
		backend.On("ExchangeCodeForSession", mock.Anything, "abc123").Return(session, nil).Once()

		est, err := auth.NewEstablisher(backend, nil, nil)
		require.NoError(t, err)

		rs := est.Establish(ctx, auth.Classify("https://app.levelup.test/reset-password?code=abc123"))

		snap := rs.Snapshot()
		assert.Equal(t, auth.RecoveryValid, snap.Status)
		assert.Equal(t, auth.ProtocolCodeExchange, snap.Protocol)
		assert.Empty(t, snap.Cause)
		assert.Same(t, session, rs.Handle())
		assert.NoError(t, snap.Err())
		select {
		case <-rs.Resolved():
		default:
			t.Fatal("session not resolved")
		}
	})

	t.Run("backend failure surfaces the backend message", func(t *testing.T) {
		backend := mocks.NewMockIdentityBackend(t)
		backendErr := oops.Wrap(&auth.BackendError{Status: 400, ErrorCode: "bad_code_verifier", Message: "code challenge does not match previously saved code verifier"})
		backend.On("ExchangeCodeForSession", mock.Anything, "abc123").Return(nil, backendErr).Once()

		est, err := auth.NewEstablisher(backend, nil, nil)
		require.NoError(t, err)

		snap := est.Establish(ctx, auth.Signal{Kind: auth.SignalRecoveryCode, Code: "abc123"}).Snapshot()

		assert.Equal(t, auth.RecoveryInvalid, snap.Status)
		assert.Equal(t, auth.ProtocolCodeExchange, snap.Protocol)
		assert.Equal(t, auth.CodeExchangeFailed, snap.Cause)
		assert.Equal(t, "code challenge does not match previously saved code verifier", snap.Message)
		errutil.AssertErrorCode(t, snap.Err(), auth.CodeExchangeFailed)
	})

	t.Run("expired flow maps to link expired", func(t *testing.T) {
		backend := mocks.NewMockIdentityBackend(t)
		backendErr := &auth.BackendError{Status: 403, ErrorCode: "flow_state_expired", Message: "Flow state has expired"}
		backend.On("ExchangeCodeForSession", mock.Anything, "old").Return(nil, backendErr).Once()

		est, err := auth.NewEstablisher(backend, nil, nil)
		require.NoError(t, err)

		snap := est.Establish(ctx, auth.Signal{Kind: auth.SignalRecoveryCode, Code: "old"}).Snapshot()

		assert.Equal(t, auth.RecoveryInvalid, snap.Status)
		assert.Equal(t, auth.CodeLinkExpired, snap.Cause)
		assert.Equal(t, "Flow state has expired", snap.Message)
	})

	t.Run("network failure falls back to generic message", func(t *testing.T) {
		backend := mocks.NewMockIdentityBackend(t)
		backend.On("ExchangeCodeForSession", mock.Anything, "abc123").Return(nil, errors.New("connection refused")).Once()

		est, err := auth.NewEstablisher(backend, nil, nil)
		require.NoError(t, err)

		snap := est.Establish(ctx, auth.Signal{Kind: auth.SignalRecoveryCode, Code: "abc123"}).Snapshot()

		assert.Equal(t, auth.RecoveryInvalid, snap.Status)
		assert.Equal(t, auth.CodeExchangeFailed, snap.Cause)
		assert.Equal(t, auth.CauseMessage(auth.CodeExchangeFailed), snap.Message)
	})

	t.Run("empty session is invalid", func(t *testing.T) {
		backend := mocks.NewMockIdentityBackend(t)
		backend.On("ExchangeCodeForSession", mock.Anything, "abc123").Return(&auth.Session{}, nil).Once()

		est, err := auth.NewEstablisher(backend, nil, nil)
		require.NoError(t, err)

		rs := est.Establish(ctx, auth.Signal{Kind: auth.SignalRecoveryCode, Code: "abc123"})

		assert.Equal(t, auth.RecoveryInvalid, rs.Status())
		assert.Nil(t, rs.Handle())
	})

	t.Run("a code is exchanged at most once", func(t *testing.T) {
		backend := mocks.NewMockIdentityBackend(t)
		backend.On("ExchangeCodeForSession", mock.Anything, "abc123").
			Return(nil, &auth.BackendError{Status: 500, Message: "upstream unavailable"}).Once()

		est, err := auth.NewEstablisher(backend, nil, nil)
		require.NoError(t, err)
		sig := auth.Signal{Kind: auth.SignalRecoveryCode, Code: "abc123"}

		first := est.Establish(ctx, sig).Snapshot()
		second := est.Establish(ctx, sig).Snapshot()

		assert.Equal(t, auth.CodeExchangeFailed, first.Cause)
		assert.Equal(t, auth.RecoveryInvalid, second.Status)
		assert.Equal(t, auth.CodeLinkInvalid, second.Cause)
		backend.AssertNumberOfCalls(t, "ExchangeCodeForSession", 1)
	})
}

func TestEstablisher_RecoveryToken(t *testing.T) {
	ctx := context.Background()

	t.Run("valid immediately while verification runs", func(t *testing.T) {
		backend := mocks.NewMockIdentityBackend(t)
		release := make(chan struct{})
		backend.On("VerifyRecoveryToken", mock.Anything, "tok").
			Run(func(mock.Arguments) { <-release }).
			Return(nil).Once()

		est, err := auth.NewEstablisher(backend, nil, nil)
		require.NoError(t, err)

		rs := est.Establish(ctx, auth.Signal{Kind: auth.SignalRecoveryToken, Token: "tok", RefreshToken: "ref"})

		snap := rs.Snapshot()
		assert.Equal(t, auth.RecoveryValid, snap.Status)
		assert.Equal(t, auth.ProtocolLegacyToken, snap.Protocol)
		assert.Equal(t, &auth.Session{AccessToken: "tok", RefreshToken: "ref"}, rs.Handle())

		close(release)
		est.Wait()
	})

	t.Run("failed verification does not revert valid", func(t *testing.T) {
		backend := mocks.NewMockIdentityBackend(t)
		backend.On("VerifyRecoveryToken", mock.Anything, "tok").
			Return(&auth.BackendError{Status: 401, Message: "invalid JWT"}).Once()

		est, err := auth.NewEstablisher(backend, nil, nil)
		require.NoError(t, err)

		rs := est.Establish(ctx, auth.Signal{Kind: auth.SignalRecoveryToken, Token: "tok"})
		est.Wait()

		assert.Equal(t, auth.RecoveryValid, rs.Status())
	})
}

func TestEstablisher_WithoutCredential(t *testing.T) {
	tests := []struct {
		name      string
		url       string
		wantCause string
	}{
		{"otp expired in query", "https://app.levelup.test/reset-password?error=access_denied&error_code=otp_expired", auth.CodeLinkExpired},
		{"otp expired in fragment", "https://app.levelup.test/reset-password#error_code=otp_expired", auth.CodeLinkExpired},
		{"expiry in description", "https://app.levelup.test/#error=server_error&error_description=Link+has+expired", auth.CodeLinkExpired},
		{"access denied", "https://app.levelup.test/reset-password?error=access_denied", auth.CodeAccessDenied},
		{"access denied as error code", "https://app.levelup.test/reset-password?error_code=access_denied", auth.CodeAccessDenied},
		{"unknown error without credential", "https://app.levelup.test/reset-password?error=server_error&error_description=Unexpected+failure", auth.CodeTokenMissing},
		{"unknown error with code", "https://app.levelup.test/reset-password?error=server_error&code=abc", auth.CodeLinkInvalid},
		{"unknown error with token", "https://app.levelup.test/reset-password#error=server_error&access_token=tok&type=recovery", auth.CodeLinkInvalid},
		{"access denied wins over missing credential", "https://app.levelup.test/reset-password?error=access_denied&code=abc", auth.CodeAccessDenied},
		{"no signal", "https://app.levelup.test/reset-password", auth.CodeTokenMissing},
		{"access token without recovery type", "https://app.levelup.test/reset-password#access_token=tok", auth.CodeTokenMissing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := mocks.NewMockIdentityBackend(t)
			recorder := mocks.NewMockRecorder(t)
			recorder.On("RecordRecovery", "UNKNOWN", "INVALID").Return().Once()

			est, err := auth.NewEstablisher(backend, nil, recorder)
			require.NoError(t, err)

			snap := est.Establish(context.Background(), auth.Classify(tt.url)).Snapshot()

			assert.Equal(t, auth.RecoveryInvalid, snap.Status)
			assert.Equal(t, tt.wantCause, snap.Cause)
			assert.Equal(t, auth.CauseMessage(tt.wantCause), snap.Message)
			assert.True(t, auth.IsTerminalCause(snap.Cause))
			backend.AssertExpectations(t)
		})
	}
}

func TestCauseMessage(t *testing.T) {
	assert.Contains(t, auth.CauseMessage(auth.CodeLinkExpired), "1 hour")
	assert.NotEmpty(t, auth.CauseMessage(auth.CodeAccessDenied))
	assert.NotEmpty(t, auth.CauseMessage(auth.CodeTokenMissing))
	assert.NotEmpty(t, auth.CauseMessage(auth.CodeLinkInvalid))
	assert.Empty(t, auth.CauseMessage("SOMETHING_ELSE"))
	assert.False(t, auth.IsTerminalCause(auth.CodeExchangeFailed))
}
