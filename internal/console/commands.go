// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LevelUp Contributors

package console

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/levelup/authflow/internal/auth"
)

const helpText = `Commands:
  login [<email> <password>]                sign in, or return to the sign-in screen
  register [<email> <password> <confirm>]   create an account, or open the form
  resend                                    send the confirmation email again
  forgot <email>                            email a password recovery link
  link <url>                                open a link from an email
  password <new> <confirm>                  set a new password from a recovery link
  back                                      return to sign in
  y | n                                     answer a question
  status                                    show where you are
  quit                                      leave`

// parseCommand splits a line into a lower-cased command and its arguments.
func parseCommand(input string) (cmd string, args []string) {
	fields := strings.Fields(input)
	if len(fields) == 0 {
		return "", nil
	}
	return strings.ToLower(fields[0]), fields[1:]
}

// Execute runs one input line. It returns false once the user has quit.
func (c *Console) Execute(ctx context.Context, line string) bool {
	cmd, args := parseCommand(line)

	var err error
	switch cmd {
	case "":
	case "help", "?":
		c.send(helpText)
	case "login":
		err = c.handleLogin(ctx, args)
	case "register":
		err = c.handleRegister(ctx, args)
	case "resend":
		err = c.flow.ResendConfirmation(ctx)
	case "forgot":
		if len(args) != 1 {
			c.send("Usage: forgot <email>")
			break
		}
		err = c.flow.RequestPasswordReset(ctx, args[0])
	case "link":
		if len(args) != 1 {
			c.send("Usage: link <url>")
			break
		}
		c.location.Replace(args[0])
		err = c.flow.Mount(ctx)
	case "password":
		if len(args) != 2 {
			c.send("Usage: password <new> <confirm>")
			break
		}
		err = c.flow.SubmitNewPassword(ctx, args[0], args[1])
	case "back":
		err = c.flow.Back(ctx)
	case "y", "yes":
		c.answer(true)
	case "n", "no":
		c.answer(false)
	case "status":
		c.send(describeState(c.flow.State()))
	case "quit", "exit":
		c.send("Goodbye!")
		return false
	default:
		c.send("Unknown command: " + cmd)
	}

	if err != nil {
		c.logger.Debug("console command failed", "command", cmd, "code", auth.ErrorCode(err))
		if msg := userMessage(err); msg != "" {
			c.send("! " + msg)
		}
	}
	return true
}

func (c *Console) handleLogin(ctx context.Context, args []string) error {
	mode := c.flow.State().Mode
	if mode == auth.ModeRegister || mode == auth.ModeEmailConfirm {
		if err := c.flow.ShowLogin(); err != nil {
			return err
		}
	}
	switch len(args) {
	case 0:
		if mode == auth.ModeLogin {
			c.send("Usage: login <email> <password>")
		}
		return nil
	case 2:
		return c.flow.Login(ctx, args[0], args[1])
	default:
		c.send("Usage: login <email> <password>")
		return nil
	}
}

func (c *Console) handleRegister(ctx context.Context, args []string) error {
	if c.flow.State().Mode == auth.ModeLogin {
		if err := c.flow.ShowRegister(); err != nil {
			return err
		}
	}
	switch len(args) {
	case 0:
		return nil
	case 3:
		return c.flow.Register(ctx, args[0], args[1], args[2])
	default:
		c.send("Usage: register <email> <password> <confirm>")
		return nil
	}
}

// userMessage turns a flow error into a line for the user. Field-level
// failures are rendered from state and return "".
func userMessage(err error) string {
	switch auth.ErrorCode(err) {
	case auth.CodeInvalidEmail:
		return "Enter a valid email address."
	case auth.CodePasswordPolicy, auth.CodePasswordMismatch:
		return ""
	}
	msg := []rune(err.Error())
	if len(msg) == 0 {
		return ""
	}
	msg[0] = unicode.ToUpper(msg[0])
	return string(msg) + "."
}

func describeState(st auth.State) string {
	var b strings.Builder
	fmt.Fprintf(&b, "mode: %s", st.Mode)
	if st.FlowID != "" {
		fmt.Fprintf(&b, "\nflow: %s", st.FlowID)
	}
	if st.Email != "" {
		fmt.Fprintf(&b, "\nemail: %s", st.Email)
	}
	if st.Recovery != nil {
		fmt.Fprintf(&b, "\nrecovery: %s via %s", st.Recovery.Status, st.Recovery.Protocol)
	}
	if st.Cause != "" {
		fmt.Fprintf(&b, "\nerror: %s", st.Cause)
	}
	if st.Busy {
		b.WriteString("\nbusy: waiting for the identity service")
	}
	if st.ResendRemaining > 0 {
		fmt.Fprintf(&b, "\nresend available in %ds", st.ResendRemaining)
	}
	if st.ResetRemaining > 0 {
		fmt.Fprintf(&b, "\nrecovery email available in %ds", st.ResetRemaining)
	}
	return b.String()
}
