// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LevelUp Contributors

// Package console is a line-oriented terminal view over the auth flow.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/samber/oops"

	"github.com/levelup/authflow/internal/auth"
)

// Flow is the controller surface the console drives.
type Flow interface {
	Mount(ctx context.Context) error
	ShowRegister() error
	ShowLogin() error
	Login(ctx context.Context, email, password string) error
	Register(ctx context.Context, email, password, confirm string) error
	ResendConfirmation(ctx context.Context) error
	RequestPasswordReset(ctx context.Context, email string) error
	SubmitNewPassword(ctx context.Context, newPassword, confirmPassword string) error
	Back(ctx context.Context) error
	State() auth.State
}

var _ Flow = (*auth.Controller)(nil)

// Console reads commands from a reader and renders flow state and notices to
// a writer. It is the flow's Notifier; pass Render as the flow's OnChange.
type Console struct {
	in       io.Reader
	out      io.Writer
	logger   *slog.Logger
	location auth.Location

	flow Flow

	mu      sync.Mutex
	pending chan bool
	last    *auth.State
}

var _ auth.Notifier = (*Console)(nil)

// New creates a Console. location is the address the flow reads on Mount.
func New(in io.Reader, out io.Writer, location auth.Location, logger *slog.Logger) *Console {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Console{
		in:       in,
		out:      out,
		logger:   logger,
		location: location,
	}
}

// Attach sets the flow the console drives. It must be called before Run.
func (c *Console) Attach(flow Flow) {
	c.flow = flow
}

// Run processes input lines until the input ends, the user quits or ctx is
// cancelled.
func (c *Console) Run(ctx context.Context) error {
	if c.flow == nil {
		return oops.Errorf("console has no flow attached")
	}
	defer c.Close()

	c.send("LevelUp account console. Type 'help' for commands.")

	lineCh := make(chan string)
	errCh := make(chan error, 1)
	done := make(chan struct{})
	defer close(done)

	go func() {
		reader := bufio.NewReader(c.in)
		for {
			line, err := reader.ReadString('\n')
			if line != "" {
				select {
				case lineCh <- strings.TrimSpace(line):
				case <-done:
					return
				}
			}
			if err != nil {
				errCh <- err
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case err := <-errCh:
			if !errors.Is(err, io.EOF) {
				c.logger.Debug("console read error", "error", err)
				return err
			}
			return nil

		case line := <-lineCh:
			if !c.Execute(ctx, line) {
				return nil
			}
		}
	}
}

// Notify prints a notice.
func (c *Console) Notify(level auth.NoticeLevel, message string) {
	c.send(levelPrefix(level) + message)
}

// Confirm prints prompt and returns the channel the next y/n answer is
// delivered on. An unanswered earlier prompt is answered no.
func (c *Console) Confirm(_ context.Context, prompt string) <-chan bool {
	answer := make(chan bool, 1)

	c.mu.Lock()
	if c.pending != nil {
		close(c.pending)
	}
	c.pending = answer
	c.writeLocked("? " + prompt + " [y/n]")
	c.mu.Unlock()

	return answer
}

// Close answers an open prompt with no.
func (c *Console) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending != nil {
		close(c.pending)
		c.pending = nil
	}
}

func (c *Console) answer(yes bool) {
	c.mu.Lock()
	ch := c.pending
	c.pending = nil
	if ch == nil {
		c.writeLocked("Nothing to confirm.")
	}
	c.mu.Unlock()

	if ch != nil {
		ch <- yes
		close(ch)
	}
}

func (c *Console) send(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writeLocked(msg)
}

func (c *Console) writeLocked(msg string) {
	if _, err := fmt.Fprintln(c.out, msg); err != nil {
		c.logger.Debug("failed to write to console", "error", err)
	}
}

func levelPrefix(level auth.NoticeLevel) string {
	switch level {
	case auth.NoticeSuccess:
		return "[ok] "
	case auth.NoticeWarning:
		return "[warn] "
	case auth.NoticeError:
		return "[error] "
	default:
		return "[info] "
	}
}
