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
)

// ServiceStatus holds the status of the identity service.
type ServiceStatus struct {
	URL        string `json:"url"`
	Healthy    bool   `json:"healthy"`
	Name       string `json:"name,omitempty"`
	Version    string `json:"version,omitempty"`
	Constraint string `json:"constraint,omitempty"`
	Supported  bool   `json:"supported"`
	Error      string `json:"error,omitempty"`
}

// statusConfig holds configuration for the status command.
type statusConfig struct {
	jsonOutput bool
}

// newStatusCmd creates the status subcommand with all flags configured.
func newStatusCmd() *cobra.Command {
	cfg := &statusConfig{}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show status of the identity service",
		Long: `Probe the identity service health endpoint and check its version against
identity.min_version.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd, cfg)
		},
	}

	cmd.Flags().BoolVar(&cfg.jsonOutput, "json", false, "output status as JSON")

	return cmd
}

// runStatus executes the status command. It fails when the service is
// unhealthy or unsupported, after printing the report.
func runStatus(cmd *cobra.Command, statusCfg *statusConfig) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	client, err := newIdentityClient(cfg)
	if err != nil {
		return err
	}

	status := ServiceStatus{
		URL:        cfg.Identity.URL,
		Constraint: cfg.Identity.MinVersion,
	}
	health, healthErr := client.Health(cmd.Context())
	if healthErr != nil {
		status.Error = healthErr.Error()
	} else {
		status.Healthy = true
		status.Name = health.Name
		status.Version = health.Version
		if _, err := client.CheckVersion(cmd.Context(), cfg.Identity.MinVersion); err != nil {
			status.Error = err.Error()
		} else {
			status.Supported = true
		}
	}

	var output string
	if statusCfg.jsonOutput {
		output, err = formatStatusJSON(status)
		if err != nil {
			return err
		}
	} else {
		output = formatStatusTable(status)
	}
	cmd.Println(output)

	if !status.Healthy || !status.Supported {
		return oops.With("url", status.URL).Errorf("identity service is not usable: %s", status.Error)
	}
	return nil
}

// formatStatusTable formats the status as a human-readable table.
func formatStatusTable(status ServiceStatus) string {
	var buf strings.Builder
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)

	health := "unhealthy"
	if status.Healthy {
		health = "healthy"
	}
	version := "-"
	if status.Version != "" {
		version = status.Version
	}
	required := "any"
	if status.Constraint != "" {
		required = status.Constraint
	}

	_, _ = fmt.Fprintf(w, "SERVICE\t%s\n", status.URL)
	_, _ = fmt.Fprintf(w, "HEALTH\t%s\n", health)
	_, _ = fmt.Fprintf(w, "VERSION\t%s\n", version)
	_, _ = fmt.Fprintf(w, "REQUIRED\t%s\n", required)
	if status.Error != "" {
		_, _ = fmt.Fprintf(w, "ERROR\t%s\n", status.Error)
	}

	_ = w.Flush()
	return strings.TrimRight(buf.String(), "\n")
}

// formatStatusJSON formats the status as JSON.
func formatStatusJSON(status ServiceStatus) (string, error) {
	data, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return "", oops.Wrapf(err, "failed to marshal status")
	}
	return string(data), nil
}
