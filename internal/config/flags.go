// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LevelUp Contributors

package config

import (
	"github.com/spf13/pflag"
)

// flagKeys maps flag names to config keys.
var flagKeys = map[string]string{
	"identity-url":     "identity.url",
	"api-key":          "identity.api_key",
	"redirect-url":     "identity.redirect_url",
	"identity-timeout": "identity.timeout",
	"min-version":      "identity.min_version",
	"allowed-hosts":    "links.allowed_hosts",
	"recovery-path":    "links.recovery_path",
	"resend-cooldown":  "flow.resend_cooldown",
	"reset-cooldown":   "flow.reset_cooldown",
	"sign-out-delay":   "flow.sign_out_delay",
	"link-validity":    "flow.link_validity",
	"log-format":       "log.format",
	"log-level":        "log.level",
	"metrics-addr":     "metrics.addr",
}

// RegisterFlags adds a flag for every config key to fs. Flag defaults are
// the values of Default and only apply when the file leaves a key unset.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()

	fs.String("identity-url", d.Identity.URL, "identity service base URL")
	fs.String("api-key", d.Identity.APIKey, "identity service public API key")
	fs.String("redirect-url", d.Identity.RedirectURL, "where emailed links return the user")
	fs.Duration("identity-timeout", d.Identity.Timeout, "identity request timeout")
	fs.String("min-version", d.Identity.MinVersion, "required identity service version constraint")
	fs.StringSlice("allowed-hosts", d.Links.AllowedHosts, "glob patterns for accepted link hosts")
	fs.String("recovery-path", d.Links.RecoveryPath, "route recovery links land on")
	fs.Duration("resend-cooldown", d.Flow.ResendCooldown, "wait between confirmation emails")
	fs.Duration("reset-cooldown", d.Flow.ResetCooldown, "wait between recovery emails")
	fs.Duration("sign-out-delay", d.Flow.SignOutDelay, "delay before the recovery session is signed out")
	fs.Duration("link-validity", d.Flow.LinkValidity, "how long emailed links stay valid")
	fs.String("log-format", d.Log.Format, "log format (json or text)")
	fs.String("log-level", d.Log.Level, "log level (debug, info, warn, error)")
	fs.String("metrics-addr", d.Metrics.Addr, "metrics/health HTTP address (empty = disabled)")
}
