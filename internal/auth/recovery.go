// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LevelUp Contributors

package auth

import (
	"context"
	"log/slog"
	"sync"

	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("levelup/auth")

// RecoveryStatus is the state of a recovery session.
type RecoveryStatus int

// Recovery statuses. PENDING is the only non-terminal status.
const (
	RecoveryPending RecoveryStatus = iota
	RecoveryValid
	RecoveryInvalid
)

func (s RecoveryStatus) String() string {
	switch s {
	case RecoveryValid:
		return "VALID"
	case RecoveryInvalid:
		return "INVALID"
	default:
		return "PENDING"
	}
}

// RecoveryProtocol is the link protocol a recovery session was activated with.
type RecoveryProtocol int

// Recovery protocols.
const (
	ProtocolUnknown RecoveryProtocol = iota
	ProtocolCodeExchange
	ProtocolLegacyToken
)

func (p RecoveryProtocol) String() string {
	switch p {
	case ProtocolCodeExchange:
		return "CODE_EXCHANGE"
	case ProtocolLegacyToken:
		return "LEGACY_TOKEN"
	default:
		return "UNKNOWN"
	}
}

// RecoverySnapshot is a read-only view of a RecoverySession.
type RecoverySnapshot struct {
	Status   RecoveryStatus
	Protocol RecoveryProtocol
	Cause    string
	Message  string
}

// Err returns the failure of an INVALID session as an error carrying its
// cause code, or nil.
func (s RecoverySnapshot) Err() error {
	if s.Status != RecoveryInvalid {
		return nil
	}
	return oops.Code(s.Cause).
		With("protocol", s.Protocol.String()).
		Errorf("%s", s.Message)
}

// RecoverySession is the outcome of activating a recovery link. Its status
// moves from PENDING to VALID or INVALID exactly once.
type RecoverySession struct {
	mu       sync.RWMutex
	status   RecoveryStatus
	protocol RecoveryProtocol
	cause    string
	message  string
	handle   *Session
	resolved chan struct{}
}

func newRecoverySession(protocol RecoveryProtocol) *RecoverySession {
	return &RecoverySession{
		status:   RecoveryPending,
		protocol: protocol,
		resolved: make(chan struct{}),
	}
}

// Snapshot returns the current state.
func (r *RecoverySession) Snapshot() RecoverySnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return RecoverySnapshot{
		Status:   r.status,
		Protocol: r.protocol,
		Cause:    r.cause,
		Message:  r.message,
	}
}

// Status returns the current status.
func (r *RecoverySession) Status() RecoveryStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status
}

// Handle returns the session handle of a VALID session, or nil.
func (r *RecoverySession) Handle() *Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.status != RecoveryValid {
		return nil
	}
	return r.handle
}

// Resolved is closed once the session leaves PENDING.
func (r *RecoverySession) Resolved() <-chan struct{} {
	return r.resolved
}

func (r *RecoverySession) validate(handle *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status != RecoveryPending {
		return false
	}
	r.status = RecoveryValid
	r.handle = handle
	close(r.resolved)
	return true
}

func (r *RecoverySession) invalidate(cause, message string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status != RecoveryPending {
		return false
	}
	r.status = RecoveryInvalid
	r.cause = cause
	r.message = message
	close(r.resolved)
	return true
}

// Establisher turns a classified signal into a RecoverySession. Codes are
// single-use: each code is exchanged at most once per Establisher, and the
// exchange is never retried.
type Establisher struct {
	backend  IdentityBackend
	logger   *slog.Logger
	recorder Recorder

	mu        sync.Mutex
	attempted map[string]struct{}
	inflight  callTracker
}

// NewEstablisher creates an Establisher.
// Returns an error if backend is nil.
func NewEstablisher(backend IdentityBackend, logger *slog.Logger, recorder Recorder) (*Establisher, error) {
	if backend == nil {
		return nil, oops.Errorf("identity backend is required")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Establisher{
		backend:   backend,
		logger:    logger,
		recorder:  recorder,
		attempted: make(map[string]struct{}),
	}, nil
}

// Establish activates sig. For a code it blocks on the single exchange call;
// for a legacy token it returns a VALID session immediately and verifies the
// token in the background; for anything else it resolves INVALID without
// contacting the backend. The returned session is always resolved.
func (e *Establisher) Establish(ctx context.Context, sig Signal) *RecoverySession {
	ctx, span := tracer.Start(ctx, "recovery.establish",
		trace.WithAttributes(attribute.String("signal.kind", sig.Kind.String())),
	)
	defer span.End()

	var session *RecoverySession
	switch sig.Kind {
	case SignalRecoveryCode:
		session = e.establishCode(ctx, sig.Code)
	case SignalRecoveryToken:
		session = e.establishToken(ctx, sig)
	default:
		session = newRecoverySession(ProtocolUnknown)
		cause := FailureCause(sig)
		session.invalidate(cause, CauseMessage(cause))
		e.record(session)
	}

	snap := session.Snapshot()
	span.SetAttributes(
		attribute.String("recovery.protocol", snap.Protocol.String()),
		attribute.String("recovery.status", snap.Status.String()),
	)
	if snap.Cause != "" {
		span.SetAttributes(attribute.String("recovery.cause", snap.Cause))
	}
	return session
}

// Wait blocks until background verifications have finished.
func (e *Establisher) Wait() {
	e.inflight.Wait()
}

func (e *Establisher) establishCode(ctx context.Context, code string) *RecoverySession {
	session := newRecoverySession(ProtocolCodeExchange)

	if !e.claim(code) {
		e.logger.Warn("recovery code already attempted",
			"event", "recovery_code_replay",
			"protocol", ProtocolCodeExchange.String(),
		)
		session.invalidate(CodeLinkInvalid, CauseMessage(CodeLinkInvalid))
		e.record(session)
		return session
	}

	handle, err := e.backend.ExchangeCodeForSession(ctx, code)
	switch {
	case err != nil:
		errCode, message := backendDetail(err)
		cause := CodeExchangeFailed
		if isExpiry(errCode, message) {
			cause = CodeLinkExpired
		}
		if message == "" {
			message = CauseMessage(cause)
		}
		e.logger.Warn("recovery code exchange failed",
			"event", "recovery_exchange_failed",
			"cause", cause,
			"backend_code", errCode,
			"error", err.Error(),
		)
		session.invalidate(cause, message)
	case handle == nil || handle.AccessToken == "":
		e.logger.Warn("recovery code exchange returned no session",
			"event", "recovery_exchange_empty",
		)
		session.invalidate(CodeExchangeFailed, genericExchangeMessage)
	default:
		session.validate(handle)
	}

	e.record(session)
	return session
}

func (e *Establisher) establishToken(ctx context.Context, sig Signal) *RecoverySession {
	session := newRecoverySession(ProtocolLegacyToken)
	session.validate(&Session{
		AccessToken:  sig.Token,
		RefreshToken: sig.RefreshToken,
	})
	e.record(session)

	// The update call is the authoritative check; verification only logs.
	verifyCtx := context.WithoutCancel(ctx)
	e.inflight.Add(1)
	go func() {
		defer e.inflight.Done()
		if err := e.backend.VerifyRecoveryToken(verifyCtx, sig.Token); err != nil {
			e.logger.Warn("legacy recovery token verification failed",
				"event", "recovery_token_unverified",
				"protocol", ProtocolLegacyToken.String(),
				"error", err.Error(),
			)
		}
	}()

	return session
}

// claim marks code as attempted and reports whether this is the first attempt.
func (e *Establisher) claim(code string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, seen := e.attempted[code]; seen {
		return false
	}
	e.attempted[code] = struct{}{}
	return true
}

func (e *Establisher) record(session *RecoverySession) {
	snap := session.Snapshot()
	e.recorder.RecordRecovery(snap.Protocol.String(), snap.Status.String())
	e.logger.Info("recovery session resolved",
		"event", "recovery_resolved",
		"protocol", snap.Protocol.String(),
		"status", snap.Status.String(),
		"cause", snap.Cause,
	)
}
