// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LevelUp Contributors

package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Session is a handle on an identity-service session. Recovery sessions are
// narrow-purpose: they authorise the password update and are then signed out.
type Session struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	UserEmail    string
}

// IdentityBackend is the remote identity service the flow orchestrates.
// Implementations must be safe for concurrent use.
type IdentityBackend interface {
	// ExchangeCodeForSession trades a single-use link code for a session.
	ExchangeCodeForSession(ctx context.Context, code string) (*Session, error)

	// VerifyRecoveryToken checks that a legacy recovery token is usable.
	VerifyRecoveryToken(ctx context.Context, token string) error

	// UpdatePassword sets a new password for the session's user.
	UpdatePassword(ctx context.Context, session *Session, newPassword string) error

	// SignOut ends the session.
	SignOut(ctx context.Context, session *Session) error

	// ResendConfirmationEmail sends the sign-up confirmation email again.
	ResendConfirmationEmail(ctx context.Context, email string) error

	// RequestPasswordReset sends a recovery link to email.
	RequestPasswordReset(ctx context.Context, email string) error

	// SignUp registers a new account; the service emails a confirmation link.
	SignUp(ctx context.Context, email, password string) error

	// SignInWithPassword authenticates with email and password.
	SignInWithPassword(ctx context.Context, email, password string) (*Session, error)
}

// BackendError is a failure reported by the identity service. Transports wrap
// it so the flow can surface Message verbatim.
type BackendError struct {
	Status    int
	ErrorCode string
	Message   string
}

func (e *BackendError) Error() string {
	if e.ErrorCode != "" {
		return fmt.Sprintf("identity service: %s (%s, status %d)", e.Message, e.ErrorCode, e.Status)
	}
	return fmt.Sprintf("identity service: %s (status %d)", e.Message, e.Status)
}

// backendDetail extracts the service error code and message from err, if err
// carries a BackendError.
func backendDetail(err error) (code, message string) {
	var be *BackendError
	if errors.As(err, &be) {
		return be.ErrorCode, be.Message
	}
	return "", ""
}

// NoticeLevel is the severity of a user notice.
type NoticeLevel int

// Notice levels.
const (
	NoticeInfo NoticeLevel = iota
	NoticeSuccess
	NoticeWarning
	NoticeError
)

// Notifier surfaces transient notices and confirmations. The flow only ever
// talks to the Notifier it was handed.
type Notifier interface {
	// Notify shows a transient notice.
	Notify(level NoticeLevel, message string)

	// Confirm asks a yes/no question. The answer arrives on the returned
	// channel; a closed channel without a value counts as no.
	Confirm(ctx context.Context, prompt string) <-chan bool
}

// Location is the visible address the flow was opened with.
type Location interface {
	// Current returns the address as currently shown.
	Current() string

	// Replace swaps the shown address without creating a history entry.
	Replace(rawURL string)
}

// MemoryLocation is an in-process Location.
type MemoryLocation struct {
	mu      sync.Mutex
	current string
}

// NewMemoryLocation creates a MemoryLocation showing rawURL.
func NewMemoryLocation(rawURL string) *MemoryLocation {
	return &MemoryLocation{current: rawURL}
}

// Current returns the shown address.
func (l *MemoryLocation) Current() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current
}

// Replace swaps the shown address.
func (l *MemoryLocation) Replace(rawURL string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.current = rawURL
}

// Recorder receives flow outcomes for metrics.
type Recorder interface {
	RecordSignal(kind string)
	RecordRecovery(protocol, status string)
	RecordPasswordUpdate(result string)
	RecordEmail(kind, result string)
}

type nopRecorder struct{}

func (nopRecorder) RecordSignal(string)         {}
func (nopRecorder) RecordRecovery(_, _ string)  {}
func (nopRecorder) RecordPasswordUpdate(string) {}
func (nopRecorder) RecordEmail(_, _ string)     {}

type nopNotifier struct{}

func (nopNotifier) Notify(NoticeLevel, string) {}

func (nopNotifier) Confirm(context.Context, string) <-chan bool {
	ch := make(chan bool, 1)
	ch <- true
	return ch
}
