// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LevelUp Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/levelup/authflow/internal/config"
)

// serviceName identifies this binary in logs.
const serviceName = "levelup-auth"

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the levelup-auth CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "levelup-auth",
		Short: "LevelUp account sign-in and recovery console",
		Long: `levelup-auth drives LevelUp account flows against the identity service:
sign in, registration with email confirmation, and password recovery from
emailed links.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (default: XDG_CONFIG_HOME/levelup/config.yaml)")
	config.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(newShellCmd())
	cmd.AddCommand(newRecoverCmd())
	cmd.AddCommand(newClassifyCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newConfigCmd())

	return cmd
}

// loadConfig loads configuration for cmd from --config and the flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	return config.Load(configFile, cmd.Flags())
}
