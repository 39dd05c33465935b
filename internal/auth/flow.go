// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LevelUp Contributors

package auth

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gobwas/glob"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// DefaultRecoveryPath is the route recovery links land on.
const DefaultRecoveryPath = "/reset-password"

// DefaultLinkValidity is how long the identity service honours an emailed
// link. It only feeds user-facing copy.
const DefaultLinkValidity = time.Hour

// Mode is the top-level state of the flow.
type Mode int

// Flow modes.
const (
	ModeLogin Mode = iota
	ModeRegister
	ModeEmailConfirm
	ModeResetPassword
	ModeResetError
)

func (m Mode) String() string {
	switch m {
	case ModeRegister:
		return "REGISTER"
	case ModeEmailConfirm:
		return "EMAIL_CONFIRM"
	case ModeResetPassword:
		return "RESET_PASSWORD"
	case ModeResetError:
		return "RESET_ERROR"
	default:
		return "LOGIN"
	}
}

// State is a snapshot of the controller for rendering.
type State struct {
	FlowID string
	Mode   Mode

	// Email is the address a confirmation was sent to (EMAIL_CONFIRM).
	Email string

	// Cause is the error code behind RESET_ERROR or an inline failure.
	Cause        string
	ErrorMessage string

	Recovery        *RecoverySnapshot
	Form            CredentialForm
	PasswordUpdated bool

	Busy            bool
	ResendRemaining int
	ResetRemaining  int
	Authenticated   bool
}

// ControllerConfig configures a Controller. Backend is required.
type ControllerConfig struct {
	Backend   IdentityBackend
	Notifier  Notifier
	Location  Location
	Logger    *slog.Logger
	Recorder  Recorder
	Scheduler Scheduler
	Now       func() time.Time

	ResendCooldown time.Duration
	ResetCooldown  time.Duration
	SignOutDelay   time.Duration
	LinkValidity   time.Duration

	// RecoveryPath marks links that were opened for recovery. Landing there
	// without a signal is a TOKEN_MISSING error rather than the login screen.
	RecoveryPath string

	// AllowedHosts are glob patterns for link hosts. Links from other hosts
	// are ignored. Empty allows every host.
	AllowedHosts []string

	// OnChange receives every new state, in order. It must not call back
	// into the controller's mutating methods.
	OnChange        func(State)
	OnAuthenticated func(*Session)
}

type notice struct {
	level   NoticeLevel
	message string
}

// Controller owns the flow mode and routes between login, registration,
// confirmation and password recovery. Remote calls run in the background;
// their results are dropped if the user has moved on by the time they land.
type Controller struct {
	backend         IdentityBackend
	notifier        Notifier
	location        Location
	logger          *slog.Logger
	recorder        Recorder
	scheduler       Scheduler
	signOutDelay    time.Duration
	linkValidity    time.Duration
	recoveryPath    string
	allowedHosts    []glob.Glob
	validate        *validator.Validate
	onChange        func(State)
	onAuthenticated func(*Session)

	establisher *Establisher
	resend      *CooldownLimiter
	reset       *CooldownLimiter

	inflight callTracker
	done     chan struct{}

	pubMu  sync.Mutex
	pubSeq uint64

	mu              sync.Mutex
	seq             uint64
	generation      uint64
	closed          bool
	flowID          string
	flowLogger      *slog.Logger
	scope           *Scope
	mode            Mode
	email           string
	cause           string
	message         string
	pending         RecoveryProtocol
	recovery        *RecoverySession
	updater         *CredentialUpdater
	form            CredentialForm
	busy            bool
	resendRemaining int
	resetRemaining  int
	authenticated   bool
}

// NewController creates a Controller in LOGIN mode. Call Mount to read the
// current location.
func NewController(cfg ControllerConfig) (*Controller, error) {
	if cfg.Backend == nil {
		return nil, oops.Errorf("identity backend is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Recorder == nil {
		cfg.Recorder = nopRecorder{}
	}
	if cfg.Notifier == nil {
		cfg.Notifier = nopNotifier{}
	}
	if cfg.Location == nil {
		cfg.Location = NewMemoryLocation("")
	}
	if cfg.Scheduler == nil {
		cfg.Scheduler = SystemScheduler{}
	}
	if cfg.RecoveryPath == "" {
		cfg.RecoveryPath = DefaultRecoveryPath
	}
	if cfg.LinkValidity <= 0 {
		cfg.LinkValidity = DefaultLinkValidity
	}

	hosts := make([]glob.Glob, 0, len(cfg.AllowedHosts))
	for _, pattern := range cfg.AllowedHosts {
		g, err := glob.Compile(strings.ToLower(pattern), '.')
		if err != nil {
			return nil, oops.With("pattern", pattern).Wrapf(err, "invalid allowed host pattern")
		}
		hosts = append(hosts, g)
	}

	establisher, err := NewEstablisher(cfg.Backend, cfg.Logger, cfg.Recorder)
	if err != nil {
		return nil, err
	}

	return &Controller{
		backend:         cfg.Backend,
		notifier:        cfg.Notifier,
		location:        cfg.Location,
		logger:          cfg.Logger,
		recorder:        cfg.Recorder,
		scheduler:       cfg.Scheduler,
		signOutDelay:    cfg.SignOutDelay,
		linkValidity:    cfg.LinkValidity,
		recoveryPath:    cfg.RecoveryPath,
		allowedHosts:    hosts,
		validate:        validator.New(validator.WithRequiredStructEnabled()),
		onChange:        cfg.OnChange,
		onAuthenticated: cfg.OnAuthenticated,
		establisher:     establisher,
		resend:          NewCooldownLimiter(cfg.ResendCooldown, cfg.Now),
		reset:           NewCooldownLimiter(cfg.ResetCooldown, cfg.Now),
		done:            make(chan struct{}),
		flowLogger:      cfg.Logger,
		scope:           NewScope(cfg.Scheduler),
	}, nil
}

// Mount reads the current location as a fresh page load. Signal parameters
// are removed from the location whatever the outcome. A recovery signal puts
// the flow in RESET_PASSWORD and starts establishment in the background.
func (c *Controller) Mount(ctx context.Context) error {
	rawURL := c.location.Current()
	sig := Classify(rawURL)

	var notices []notice
	if sig.Kind != SignalNone && !c.hostAllowed(rawURL) {
		c.logger.Warn("ignoring link from untrusted host",
			"event", "link_host_rejected",
			"signal", sig.Kind.String(),
		)
		notices = append(notices, notice{NoticeWarning, "This link was not issued for this application and has been ignored."})
		sig = Signal{}
	}
	c.recorder.RecordSignal(sig.Kind.String())

	if HasSignalParams(rawURL) {
		c.location.Replace(StripSignalParams(rawURL))
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return oops.Code(CodeInvalidMode).Errorf("controller is closed")
	}
	c.flowID = ulid.Make().String()
	c.flowLogger = c.logger.With("flow_id", c.flowID)
	c.authenticated = false
	c.flowLogger.Info("flow mounted",
		"event", "flow_mounted",
		"signal", sig.Kind.String(),
	)

	switch {
	case sig.Kind.IsRecovery():
		c.enterLocked(ModeResetPassword)
		c.busy = true
		c.pending = ProtocolCodeExchange
		if sig.Kind == SignalRecoveryToken {
			c.pending = ProtocolLegacyToken
		}
		c.startLocked(ctx, func(ctx context.Context, gen uint64) {
			c.finishEstablish(gen, c.establisher.Establish(ctx, sig))
		})
	case sig.Kind == SignalError || c.inRecoveryContext(rawURL):
		c.enterLocked(ModeResetError)
		c.recovery = c.establisher.Establish(ctx, sig)
		snap := c.recovery.Snapshot()
		c.cause = snap.Cause
		c.message = snap.Message
	default:
		c.enterLocked(ModeLogin)
	}
	c.unlockAndPublish(notices)
	return nil
}

// ShowRegister switches from LOGIN to REGISTER.
func (c *Controller) ShowRegister() error {
	return c.navigate(ModeRegister, ModeLogin)
}

// ShowLogin switches back to LOGIN from REGISTER or EMAIL_CONFIRM.
func (c *Controller) ShowLogin() error {
	return c.navigate(ModeLogin, ModeRegister, ModeEmailConfirm)
}

func (c *Controller) navigate(to Mode, from ...Mode) error {
	c.mu.Lock()
	if err := c.requireModeLocked(from...); err != nil {
		c.mu.Unlock()
		return err
	}
	c.enterLocked(to)
	c.unlockAndPublish(nil)
	return nil
}

// Login signs in with a password. On success the flow ends and
// OnAuthenticated receives the session.
func (c *Controller) Login(ctx context.Context, email, password string) error {
	if err := c.checkEmail(email); err != nil {
		return err
	}
	return c.launch(ctx, func() error {
		return c.beginLocked(ModeLogin)
	}, func(ctx context.Context, gen uint64) {
		session, err := c.backend.SignInWithPassword(ctx, email, password)
		var notices []notice
		applied := c.apply(gen, &notices, func() {
			c.busy = false
			if err != nil {
				c.cause = CodeSignInFailed
				c.message = messageOr(err, "Invalid email or password.")
				notices = append(notices, notice{NoticeError, c.message})
				c.flowLogger.Warn("sign in failed", "event", "sign_in_failed", "error", err.Error())
				return
			}
			c.authenticated = true
			c.scope.Close()
			notices = append(notices, notice{NoticeSuccess, "Signed in."})
			c.flowLogger.Info("signed in", "event", "signed_in")
		})
		if applied && err == nil && c.onAuthenticated != nil {
			c.onAuthenticated(session)
		}
	})
}

// Register creates an account. The address and password pair are checked
// locally first; on success the flow moves to EMAIL_CONFIRM and the resend
// cooldown starts.
func (c *Controller) Register(ctx context.Context, email, password, confirm string) error {
	if err := c.checkEmail(email); err != nil {
		return err
	}
	return c.launch(ctx, func() error {
		if err := c.requireModeLocked(ModeRegister); err != nil {
			return err
		}
		c.form = CredentialForm{NewPassword: password, ConfirmPassword: confirm}
		if err := c.form.Validate(); err != nil {
			return err
		}
		c.form = CredentialForm{}
		return c.beginLocked(ModeRegister)
	}, func(ctx context.Context, gen uint64) {
		err := c.backend.SignUp(ctx, email, password)
		c.recorder.RecordEmail("signup", resultLabel(err))
		if err == nil {
			c.resend.RecordSend()
		}
		var notices []notice
		c.apply(gen, &notices, func() {
			c.busy = false
			if err != nil {
				c.cause = CodeSignUpFailed
				c.message = messageOr(err, "We couldn't create your account. Please try again.")
				notices = append(notices, notice{NoticeError, c.message})
				c.flowLogger.Warn("sign up failed", "event", "sign_up_failed", "error", err.Error())
				return
			}
			c.enterLocked(ModeEmailConfirm)
			c.email = email
			notices = append(notices, notice{NoticeSuccess, "Check your inbox to confirm your email address."})
			c.flowLogger.Info("account registered", "event", "signed_up")
		})
	})
}

// ResendConfirmation sends the confirmation email again. A failed send does
// not start the cooldown.
func (c *Controller) ResendConfirmation(ctx context.Context) error {
	var email string
	return c.launch(ctx, func() error {
		if err := c.requireModeLocked(ModeEmailConfirm); err != nil {
			return err
		}
		if remaining := c.resend.RemainingSeconds(); remaining > 0 {
			return oops.Code(CodeCooldownActive).
				With("remaining_seconds", remaining).
				Errorf("please wait %d seconds before resending", remaining)
		}
		email = c.email
		return c.beginLocked(ModeEmailConfirm)
	}, func(ctx context.Context, gen uint64) {
		err := c.backend.ResendConfirmationEmail(ctx, email)
		c.recorder.RecordEmail("confirmation", resultLabel(err))
		if err == nil {
			c.resend.RecordSend()
		}
		var notices []notice
		c.apply(gen, &notices, func() {
			c.busy = false
			if err != nil {
				c.cause = CodeSendFailed
				c.message = messageOr(err, "We couldn't send the email. Please try again.")
				notices = append(notices, notice{NoticeError, c.message})
				c.flowLogger.Warn("confirmation resend failed",
					"event", "email_send_failed",
					"kind", "confirmation",
					"error", err.Error(),
				)
				return
			}
			c.startResendCountdownLocked()
			notices = append(notices, notice{NoticeSuccess, "Confirmation email sent."})
		})
	})
}

// RequestPasswordReset emails a recovery link. It is available from LOGIN,
// RESET_ERROR and a failed RESET_PASSWORD. The success notice is the same
// whether or not the address has an account.
func (c *Controller) RequestPasswordReset(ctx context.Context, email string) error {
	if err := c.checkEmail(email); err != nil {
		return err
	}
	return c.launch(ctx, func() error {
		if err := c.requireModeLocked(ModeLogin, ModeResetError, ModeResetPassword); err != nil {
			return err
		}
		if c.mode == ModeResetPassword && (c.recovery == nil || c.recovery.Status() == RecoveryValid) {
			return oops.Code(CodeInvalidMode).
				With("mode", c.mode.String()).
				Errorf("a recovery link is already active")
		}
		if remaining := c.reset.RemainingSeconds(); remaining > 0 {
			return oops.Code(CodeCooldownActive).
				With("remaining_seconds", remaining).
				Errorf("please wait %d seconds before requesting another link", remaining)
		}
		return c.beginLocked(c.mode)
	}, func(ctx context.Context, gen uint64) {
		err := c.backend.RequestPasswordReset(ctx, email)
		c.recorder.RecordEmail("recovery", resultLabel(err))
		if err == nil {
			c.reset.RecordSend()
		}
		var notices []notice
		c.apply(gen, &notices, func() {
			c.busy = false
			if err != nil {
				c.cause = CodeSendFailed
				c.message = messageOr(err, "We couldn't send the email. Please try again.")
				notices = append(notices, notice{NoticeError, c.message})
				c.flowLogger.Warn("recovery request failed",
					"event", "email_send_failed",
					"kind", "recovery",
					"error", err.Error(),
				)
				return
			}
			c.startResetCountdownLocked()
			notices = append(notices, notice{NoticeSuccess, fmt.Sprintf(
				"If an account exists for that address, a recovery link is on its way. Links are valid for %s.",
				humanDuration(c.linkValidity),
			)})
		})
	})
}

// SubmitNewPassword applies a new password through the active recovery
// session. Policy and mismatch failures are returned immediately without a
// network call.
func (c *Controller) SubmitNewPassword(ctx context.Context, newPassword, confirmPassword string) error {
	var updater *CredentialUpdater
	return c.launch(ctx, func() error {
		if err := c.requireModeLocked(ModeResetPassword); err != nil {
			return err
		}
		if c.updater == nil || c.updater.Updated() {
			status := RecoveryPending
			if c.recovery != nil {
				status = c.recovery.Status()
			}
			return oops.Code(CodeSessionNotValid).
				With("status", status.String()).
				Errorf("recovery session is not valid")
		}
		c.form = CredentialForm{NewPassword: newPassword, ConfirmPassword: confirmPassword}
		if err := c.form.Validate(); err != nil {
			return err
		}
		updater = c.updater
		return c.beginLocked(ModeResetPassword)
	}, func(ctx context.Context, gen uint64) {
		form := CredentialForm{NewPassword: newPassword, ConfirmPassword: confirmPassword}
		err := updater.Submit(ctx, &form)
		var notices []notice
		c.apply(gen, &notices, func() {
			c.busy = false
			c.form = form
			if err != nil {
				c.cause = ErrorCode(err)
				c.message = messageOr(err, genericUpdateMessage)
				notices = append(notices, notice{NoticeError, c.message})
				return
			}
			notices = append(notices, notice{NoticeSuccess, "Your password has been updated. Please sign in with your new password."})
		})
	})
}

// Back returns to LOGIN from any mode and strips leftover signal parameters.
// Leaving a recovery that has not set a password asks for confirmation first,
// since the link cannot be used again. Results still in flight are dropped.
func (c *Controller) Back(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return oops.Code(CodeInvalidMode).Errorf("controller is closed")
	}
	gen := c.generation
	updater := c.updater
	unfinished := c.mode == ModeResetPassword && updater != nil && !updater.Updated()
	c.inflight.Add(1)
	c.mu.Unlock()

	if !unfinished {
		if updater != nil && updater.Updated() {
			go func() {
				defer c.inflight.Done()
				updater.SignOutNow(context.WithoutCancel(ctx))
			}()
		} else {
			c.inflight.Done()
		}
		c.goBack(gen)
		return nil
	}

	answer := c.notifier.Confirm(ctx, "Leave without setting a new password? You will need a new recovery link.")
	go func() {
		defer c.inflight.Done()
		select {
		case yes, ok := <-answer:
			if ok && yes {
				c.goBack(gen)
			}
		case <-ctx.Done():
		case <-c.done:
		}
	}()
	return nil
}

func (c *Controller) goBack(gen uint64) {
	if current := c.location.Current(); HasSignalParams(current) {
		c.location.Replace(StripSignalParams(current))
	}
	c.apply(gen, nil, func() {
		c.enterLocked(ModeLogin)
		c.flowLogger.Info("returned to login", "event", "flow_back")
	})
}

// State returns a snapshot of the controller.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

// Close tears down the current view: pending timers are cancelled and any
// result still in flight is dropped. Close is safe to call more than once.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.generation++
	close(c.done)
	if c.updater != nil {
		c.updater.Close()
	}
	c.scope.Close()
}

// Wait blocks until no background call is in flight, including calls
// started while it waits.
func (c *Controller) Wait() {
	c.inflight.Wait()
	c.establisher.Wait()
}

func (c *Controller) finishEstablish(gen uint64, session *RecoverySession) {
	var notices []notice
	c.apply(gen, &notices, func() {
		c.busy = false
		c.recovery = session
		snap := session.Snapshot()
		if snap.Status == RecoveryValid {
			updater, err := NewCredentialUpdater(CredentialUpdaterConfig{
				Backend:      c.backend,
				Session:      session,
				Scope:        c.scope,
				SignOutDelay: c.signOutDelay,
				Logger:       c.flowLogger,
				Recorder:     c.recorder,
				OnSignedOut:  c.signedOutFunc(gen),
			})
			if err != nil {
				c.flowLogger.Error("credential updater unavailable", "event", "updater_init_failed", "error", err.Error())
				return
			}
			c.updater = updater
			return
		}
		if IsTerminalCause(snap.Cause) {
			c.enterLocked(ModeResetError)
			c.recovery = session
		} else {
			notices = append(notices, notice{NoticeError, snap.Message})
		}
		c.cause = snap.Cause
		c.message = snap.Message
	})
}

func (c *Controller) signedOutFunc(gen uint64) func() {
	return func() {
		var notices []notice
		c.apply(gen, &notices, func() {
			c.enterLocked(ModeLogin)
			notices = append(notices, notice{NoticeInfo, "Please sign in with your new password."})
		})
	}
}

// launch runs guard under the lock and, if it passes, op in the background
// with the current generation. The resulting state is published either way.
func (c *Controller) launch(ctx context.Context, guard func() error, op func(ctx context.Context, gen uint64)) error {
	c.mu.Lock()
	err := guard()
	if err == nil {
		c.startLocked(ctx, op)
	}
	c.unlockAndPublish(nil)
	return err
}

// apply runs fn under the lock if gen is still current and publishes the
// resulting state with any notices fn queued. It reports whether fn ran.
func (c *Controller) apply(gen uint64, notices *[]notice, fn func()) bool {
	c.mu.Lock()
	if c.closed || gen != c.generation {
		c.mu.Unlock()
		c.logger.Debug("dropping stale result", "event", "stale_result", "generation", gen)
		return false
	}
	fn()
	var pending []notice
	if notices != nil {
		pending = *notices
	}
	c.unlockAndPublish(pending)
	return true
}

func (c *Controller) startLocked(ctx context.Context, op func(ctx context.Context, gen uint64)) {
	gen := c.generation
	c.inflight.Add(1)
	go func() {
		defer c.inflight.Done()
		op(ctx, gen)
	}()
}

// unlockAndPublish snapshots the state, releases the lock and hands the
// snapshot to OnChange. Snapshots older than one already delivered are
// skipped so observers never see state go backwards.
func (c *Controller) unlockAndPublish(notices []notice) {
	c.seq++
	seq := c.seq
	st := c.stateLocked()
	c.mu.Unlock()

	if c.onChange != nil {
		c.pubMu.Lock()
		if seq > c.pubSeq {
			c.pubSeq = seq
			c.onChange(st)
		}
		c.pubMu.Unlock()
	}
	for _, n := range notices {
		c.notifier.Notify(n.level, n.message)
	}
}

// beginLocked marks the controller busy for a remote call made from mode.
func (c *Controller) beginLocked(mode Mode) error {
	if err := c.requireModeLocked(mode); err != nil {
		return err
	}
	if c.busy {
		return oops.Code(CodeRequestInFlight).
			With("mode", c.mode.String()).
			Errorf("a request is already in progress")
	}
	c.busy = true
	c.cause = ""
	c.message = ""
	return nil
}

func (c *Controller) requireModeLocked(modes ...Mode) error {
	if c.closed {
		return oops.Code(CodeInvalidMode).Errorf("controller is closed")
	}
	if c.authenticated {
		return oops.Code(CodeInvalidMode).Errorf("already signed in")
	}
	for _, m := range modes {
		if c.mode == m {
			return nil
		}
	}
	return oops.Code(CodeInvalidMode).
		With("mode", c.mode.String()).
		Errorf("not available in %s mode", c.mode)
}

// enterLocked tears down the current view and starts a fresh one in mode.
// Timers owned by the old view are cancelled and results still in flight
// for it will be dropped.
func (c *Controller) enterLocked(mode Mode) {
	if c.updater != nil {
		c.updater.Close()
	}
	c.scope.Close()

	c.generation++
	c.scope = NewScope(c.scheduler)
	c.mode = mode
	c.email = ""
	c.cause = ""
	c.message = ""
	c.pending = ProtocolUnknown
	c.recovery = nil
	c.updater = nil
	c.form = CredentialForm{}
	c.busy = false

	switch mode {
	case ModeEmailConfirm:
		c.startResendCountdownLocked()
	case ModeLogin, ModeResetError, ModeResetPassword:
		c.startResetCountdownLocked()
	}
}

func (c *Controller) startResendCountdownLocked() {
	gen := c.generation
	c.resendRemaining = c.resend.RemainingSeconds()
	c.resend.Countdown(c.scope, func(remaining int) {
		c.apply(gen, nil, func() { c.resendRemaining = remaining })
	})
}

func (c *Controller) startResetCountdownLocked() {
	gen := c.generation
	c.resetRemaining = c.reset.RemainingSeconds()
	c.reset.Countdown(c.scope, func(remaining int) {
		c.apply(gen, nil, func() { c.resetRemaining = remaining })
	})
}

func (c *Controller) stateLocked() State {
	st := State{
		FlowID:          c.flowID,
		Mode:            c.mode,
		Email:           c.email,
		Cause:           c.cause,
		ErrorMessage:    c.message,
		Form:            c.form,
		Busy:            c.busy,
		ResendRemaining: c.resendRemaining,
		ResetRemaining:  c.resetRemaining,
		Authenticated:   c.authenticated,
	}
	st.Form.FieldErrors = maps.Clone(c.form.FieldErrors)
	switch {
	case c.recovery != nil:
		snap := c.recovery.Snapshot()
		st.Recovery = &snap
	case c.pending != ProtocolUnknown:
		st.Recovery = &RecoverySnapshot{Status: RecoveryPending, Protocol: c.pending}
	}
	if c.updater != nil {
		st.PasswordUpdated = c.updater.Updated()
	}
	return st
}

func (c *Controller) checkEmail(email string) error {
	if err := c.validate.Var(email, "required,email"); err != nil {
		return oops.Code(CodeInvalidEmail).Wrapf(err, "enter a valid email address")
	}
	return nil
}

func (c *Controller) hostAllowed(rawURL string) bool {
	if len(c.allowedHosts) == 0 {
		return true
	}
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return true
	}
	for _, g := range c.allowedHosts {
		if g.Match(host) {
			return true
		}
	}
	return false
}

func (c *Controller) inRecoveryContext(rawURL string) bool {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return false
	}
	path := strings.TrimSuffix(u.Path, "/")
	return path != "" && strings.HasSuffix(path, strings.TrimSuffix(c.recoveryPath, "/"))
}

// messageOr returns the backend's message for err, or fallback.
func messageOr(err error, fallback string) string {
	if _, message := backendDetail(err); message != "" {
		return message
	}
	return fallback
}

func resultLabel(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}

// humanDuration renders whole hours or minutes for user-facing copy.
func humanDuration(d time.Duration) string {
	unit, n := "minute", int(d.Round(time.Minute)/time.Minute)
	if d >= time.Hour && d%time.Hour == 0 {
		unit, n = "hour", int(d/time.Hour)
	}
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
