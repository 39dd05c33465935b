// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LevelUp Contributors

package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/levelup/authflow/internal/auth"
)

// LinkReport describes a classified link. Credentials are reported as
// present or absent, never echoed.
type LinkReport struct {
	Kind             string `json:"kind"`
	Cause            string `json:"cause,omitempty"`
	Message          string `json:"message,omitempty"`
	HasCode          bool   `json:"has_code"`
	HasToken         bool   `json:"has_token"`
	Error            string `json:"error,omitempty"`
	ErrorCode        string `json:"error_code,omitempty"`
	ErrorDescription string `json:"error_description,omitempty"`
	Stripped         string `json:"stripped"`
}

type classifyConfig struct {
	jsonOutput bool
}

func newClassifyCmd() *cobra.Command {
	cfg := &classifyConfig{}

	cmd := &cobra.Command{
		Use:   "classify <link>",
		Short: "Show what a link from an email carries",
		Long: `Classify a link without contacting the identity service. Prints the signal
kind, the failure cause a non-recovery link resolves to, and the link with
its signal parameters removed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			report := classifyLink(args[0])
			if cfg.jsonOutput {
				data, err := json.MarshalIndent(report, "", "  ")
				if err != nil {
					return oops.Wrapf(err, "failed to marshal link report")
				}
				cmd.Println(string(data))
				return nil
			}
			cmd.Println(formatLinkReport(report))
			return nil
		},
	}

	cmd.Flags().BoolVar(&cfg.jsonOutput, "json", false, "output the report as JSON")

	return cmd
}

func classifyLink(rawURL string) LinkReport {
	sig := auth.Classify(rawURL)
	report := LinkReport{
		Kind:             sig.Kind.String(),
		HasCode:          sig.Code != "",
		HasToken:         sig.Token != "",
		Error:            sig.Error,
		ErrorCode:        sig.ErrorCode,
		ErrorDescription: sig.ErrorDescription,
		Stripped:         auth.StripSignalParams(rawURL),
	}
	if !sig.Kind.IsRecovery() {
		report.Cause = auth.FailureCause(sig)
		report.Message = auth.CauseMessage(report.Cause)
	}
	return report
}

func formatLinkReport(r LinkReport) string {
	var buf strings.Builder
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)

	_, _ = fmt.Fprintf(w, "KIND\t%s\n", r.Kind)
	if r.Cause != "" {
		_, _ = fmt.Fprintf(w, "CAUSE\t%s\n", r.Cause)
		_, _ = fmt.Fprintf(w, "MESSAGE\t%s\n", r.Message)
	}
	_, _ = fmt.Fprintf(w, "CODE\t%s\n", presence(r.HasCode))
	_, _ = fmt.Fprintf(w, "TOKEN\t%s\n", presence(r.HasToken))
	if r.Error != "" || r.ErrorCode != "" {
		_, _ = fmt.Fprintf(w, "ERROR\t%s (%s)\n", r.Error, r.ErrorCode)
	}
	if r.ErrorDescription != "" {
		_, _ = fmt.Fprintf(w, "DESCRIPTION\t%s\n", r.ErrorDescription)
	}
	_, _ = fmt.Fprintf(w, "STRIPPED\t%s\n", r.Stripped)

	_ = w.Flush()
	return strings.TrimRight(buf.String(), "\n")
}

func presence(ok bool) string {
	if ok {
		return "present"
	}
	return "absent"
}
