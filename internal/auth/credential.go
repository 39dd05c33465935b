// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LevelUp Contributors

package auth

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/samber/oops"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// DefaultSignOutDelay is how long the success message stays up before the
// recovery session is signed out.
const DefaultSignOutDelay = 3 * time.Second

const genericUpdateMessage = "We couldn't update your password. Please try again."

// Field names a credential form input.
type Field string

// Credential form fields.
const (
	FieldNewPassword     Field = "new_password"
	FieldConfirmPassword Field = "confirm_password"
)

// CredentialForm is the new password pair entered by the user.
type CredentialForm struct {
	NewPassword     string
	ConfirmPassword string
	FieldErrors     map[Field][]string
	Submitted       bool
}

// CanSubmit reports whether the form may be sent to the backend.
func (f *CredentialForm) CanSubmit() bool {
	return len(f.FieldErrors) == 0 &&
		f.NewPassword != "" &&
		f.ConfirmPassword != "" &&
		f.NewPassword == f.ConfirmPassword
}

func (f *CredentialForm) setFieldError(field Field, messages ...string) {
	if f.FieldErrors == nil {
		f.FieldErrors = make(map[Field][]string)
	}
	f.FieldErrors[field] = append(f.FieldErrors[field], messages...)
}

// Validate replaces the form's field errors with the result of the local
// checks. Policy violations are reported before a mismatch is considered.
func (f *CredentialForm) Validate() error {
	f.FieldErrors = nil

	if violations := ValidatePassword(f.NewPassword); len(violations) > 0 {
		f.setFieldError(FieldNewPassword, ViolationMessages(violations)...)
		return oops.Code(CodePasswordPolicy).
			With("violations", violations).
			Errorf("password does not meet policy")
	}
	if f.ConfirmPassword != f.NewPassword {
		f.setFieldError(FieldConfirmPassword, "Passwords do not match.")
		return oops.Code(CodePasswordMismatch).Errorf("passwords do not match")
	}
	return nil
}

// CredentialUpdaterConfig configures a CredentialUpdater.
type CredentialUpdaterConfig struct {
	Backend      IdentityBackend
	Session      *RecoverySession
	Scope        *Scope
	SignOutDelay time.Duration
	Logger       *slog.Logger
	Recorder     Recorder

	// OnSignedOut runs after the forced sign-out, whatever its outcome.
	OnSignedOut func()
}

// CredentialUpdater applies a new password through a VALID recovery session
// and then forces re-authentication by signing the session out.
type CredentialUpdater struct {
	backend      IdentityBackend
	session      *RecoverySession
	scope        *Scope
	signOutDelay time.Duration
	logger       *slog.Logger
	recorder     Recorder
	onSignedOut  func()

	mu        sync.Mutex
	updated   bool
	signOut   Timer
	signOutMu sync.Once
}

// NewCredentialUpdater creates a CredentialUpdater.
// Returns an error if the backend, session or scope is missing.
func NewCredentialUpdater(cfg CredentialUpdaterConfig) (*CredentialUpdater, error) {
	if cfg.Backend == nil {
		return nil, oops.Errorf("identity backend is required")
	}
	if cfg.Session == nil {
		return nil, oops.Errorf("recovery session is required")
	}
	if cfg.Scope == nil {
		return nil, oops.Errorf("timer scope is required")
	}
	if cfg.SignOutDelay <= 0 {
		cfg.SignOutDelay = DefaultSignOutDelay
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Recorder == nil {
		cfg.Recorder = nopRecorder{}
	}
	return &CredentialUpdater{
		backend:      cfg.Backend,
		session:      cfg.Session,
		scope:        cfg.Scope,
		signOutDelay: cfg.SignOutDelay,
		logger:       cfg.Logger,
		recorder:     cfg.Recorder,
		onSignedOut:  cfg.OnSignedOut,
	}, nil
}

// Submit validates form and, if it passes, sends the new password. Local
// failures never reach the backend. On success the form is marked submitted
// and the sign-out is scheduled after the display delay. On backend failure
// the backend's message is attached to the new password field and the form
// stays editable.
func (u *CredentialUpdater) Submit(ctx context.Context, form *CredentialForm) error {
	if form == nil {
		return oops.Errorf("credential form is required")
	}

	u.mu.Lock()
	updated := u.updated
	u.mu.Unlock()

	handle := u.session.Handle()
	if updated || handle == nil {
		return oops.Code(CodeSessionNotValid).
			With("status", u.session.Status().String()).
			Errorf("recovery session is not valid")
	}

	if err := form.Validate(); err != nil {
		u.recorder.RecordPasswordUpdate("rejected")
		return err
	}

	protocol := u.session.Snapshot().Protocol.String()
	ctx, span := tracer.Start(ctx, "recovery.update_password")
	span.SetAttributes(attribute.String("recovery.protocol", protocol))
	defer span.End()

	if err := u.backend.UpdatePassword(ctx, handle, form.NewPassword); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "password update failed")
		_, message := backendDetail(err)
		if message == "" {
			message = genericUpdateMessage
		}
		form.setFieldError(FieldNewPassword, message)
		u.recorder.RecordPasswordUpdate("failure")
		u.logger.Warn("password update failed",
			"event", "password_update_failed",
			"protocol", protocol,
			"error", err.Error(),
		)
		return oops.Code(CodeUpdateFailed).
			With("protocol", protocol).
			Wrapf(err, "%s", message)
	}

	form.Submitted = true
	u.recorder.RecordPasswordUpdate("success")
	u.logger.Info("password updated",
		"event", "password_updated",
		"protocol", protocol,
	)

	u.mu.Lock()
	u.updated = true
	u.signOut = u.scope.AfterFunc(u.signOutDelay, func() {
		u.forceSignOut(context.WithoutCancel(ctx), handle)
	})
	u.mu.Unlock()
	return nil
}

// Updated reports whether the password has been changed.
func (u *CredentialUpdater) Updated() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.updated
}

// Close cancels a pending sign-out.
func (u *CredentialUpdater) Close() {
	u.mu.Lock()
	t := u.signOut
	u.mu.Unlock()
	if t != nil {
		t.Stop()
	}
}

// SignOutNow cancels the pending delay and signs the session out at once. It
// does nothing before a successful update or after the sign-out has run.
func (u *CredentialUpdater) SignOutNow(ctx context.Context) {
	u.mu.Lock()
	updated, t := u.updated, u.signOut
	u.mu.Unlock()
	if !updated {
		return
	}
	if t != nil {
		t.Stop()
	}
	if handle := u.session.Handle(); handle != nil {
		u.forceSignOut(ctx, handle)
	}
}

func (u *CredentialUpdater) forceSignOut(ctx context.Context, handle *Session) {
	u.signOutMu.Do(func() {
		if err := u.backend.SignOut(ctx, handle); err != nil {
			u.logger.Warn("forced sign-out failed",
				"event", "recovery_sign_out_failed",
				"error", err.Error(),
			)
		} else {
			u.logger.Info("recovery session signed out",
				"event", "recovery_signed_out",
			)
		}
		if u.onSignedOut != nil {
			u.onSignedOut()
		}
	})
}
