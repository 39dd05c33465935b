// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LevelUp Contributors

package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/levelup/authflow/internal/auth"
	"github.com/levelup/authflow/internal/config"
	"github.com/levelup/authflow/internal/console"
	"github.com/levelup/authflow/internal/identity"
	"github.com/levelup/authflow/internal/logging"
	"github.com/levelup/authflow/internal/observability"
	"github.com/levelup/authflow/internal/xdg"
	"github.com/levelup/authflow/pkg/errutil"
)

// sessionOptions holds what a console session starts from.
type sessionOptions struct {
	link         string
	codeVerifier string
}

func newShellCmd() *cobra.Command {
	opts := &sessionOptions{}

	return &cobra.Command{
		Use:   "shell [link]",
		Short: "Start an interactive account console",
		Long: `Start an interactive console for signing in, registering and recovering
a password. An optional link from an email is opened first.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				opts.link = args[0]
			}
			return runSession(cmd, opts)
		},
	}
}

func newRecoverCmd() *cobra.Command {
	opts := &sessionOptions{}

	cmd := &cobra.Command{
		Use:   "recover <link>",
		Short: "Open a password recovery link",
		Long: `Open a password recovery link from an email and set a new password.
Links that carry a code need the verifier of the request that sent them; it
is kept in the state directory by 'forgot' and can be overridden with
--code-verifier.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.link = args[0]
			return runSession(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.codeVerifier, "code-verifier", "", "PKCE verifier of the recovery request")

	return cmd
}

func runSession(cmd *cobra.Command, opts *sessionOptions) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger, err := logging.Setup(serviceName, version, logging.Options{
		Format: cfg.Log.Format,
		Level:  cfg.Log.Level,
		Writer: cmd.ErrOrStderr(),
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stateDir, err := xdg.StateDir()
	if err != nil {
		return err
	}
	verifier := opts.codeVerifier
	if verifier == "" {
		if verifier, err = loadVerifier(stateDir); err != nil {
			return err
		}
	}

	clientOpts := []identity.Option{identity.WithLogger(logger)}
	if verifier != "" {
		clientOpts = append(clientOpts, identity.WithCodeVerifier(verifier))
	}
	client, err := newIdentityClient(cfg, clientOpts...)
	if err != nil {
		return err
	}

	if cfg.Identity.MinVersion != "" {
		if _, err := client.CheckVersion(ctx, cfg.Identity.MinVersion); err != nil {
			if errutil.CodeOf(err) == identity.CodeVersionUnsupported {
				return err
			}
			errutil.Log(ctx, logger, slog.LevelWarn, "identity service version check failed", err)
		}
	}

	var recorder auth.Recorder
	if cfg.Metrics.Addr != "" {
		obs := observability.NewServer(cfg.Metrics.Addr, identityReadiness(client), observability.WithLogger(logger))
		obsErrCh, err := obs.Start()
		if err != nil {
			return oops.With("addr", cfg.Metrics.Addr).Wrapf(err, "failed to start observability server")
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := obs.Stop(shutdownCtx); err != nil {
				logger.Warn("error stopping observability server", "error", err)
			}
		}()
		go monitorServerErrors(logger, obsErrCh, "observability")
		recorder = obs.Metrics()
	}

	location := auth.NewMemoryLocation(opts.link)
	con := console.New(cmd.InOrStdin(), cmd.OutOrStdout(), location, logger)
	ctrl, err := auth.NewController(controllerConfig(cfg, client, con, location, logger, recorder))
	if err != nil {
		return err
	}
	con.Attach(ctrl)

	if err := ctrl.Mount(ctx); err != nil {
		ctrl.Close()
		return err
	}
	ctrl.Wait()

	runErr := con.Run(ctx)

	ctrl.Wait()
	if st := ctrl.State(); st.Mode == auth.ModeResetPassword && st.PasswordUpdated {
		// Leaving before the delayed sign-out fires still ends the session.
		if err := ctrl.Back(context.WithoutCancel(ctx)); err != nil {
			errutil.LogError(logger, "sign-out on exit failed", err)
		}
		ctrl.Wait()
	}
	ctrl.Close()
	ctrl.Wait()

	if err := saveVerifier(stateDir, client.CodeVerifier()); err != nil {
		errutil.LogError(logger, "failed to keep code verifier", err)
	}
	return runErr
}

func newIdentityClient(cfg *config.Config, opts ...identity.Option) (*identity.Client, error) {
	return identity.New(identity.Config{
		URL:         cfg.Identity.URL,
		APIKey:      cfg.Identity.APIKey,
		RedirectURL: cfg.Identity.RedirectURL,
		Timeout:     cfg.Identity.Timeout,
	}, opts...)
}

func controllerConfig(
	cfg *config.Config,
	backend auth.IdentityBackend,
	con *console.Console,
	location auth.Location,
	logger *slog.Logger,
	recorder auth.Recorder,
) auth.ControllerConfig {
	return auth.ControllerConfig{
		Backend:        backend,
		Notifier:       con,
		Location:       location,
		Logger:         logger,
		Recorder:       recorder,
		ResendCooldown: cfg.Flow.ResendCooldown,
		ResetCooldown:  cfg.Flow.ResetCooldown,
		SignOutDelay:   cfg.Flow.SignOutDelay,
		LinkValidity:   cfg.Flow.LinkValidity,
		RecoveryPath:   cfg.Links.RecoveryPath,
		AllowedHosts:   cfg.Links.AllowedHosts,
		OnChange:       con.Render,
		OnAuthenticated: func(s *auth.Session) {
			logger.Info("session established", "event", "authenticated", "email", s.UserEmail)
		},
	}
}

func identityReadiness(client *identity.Client) observability.ReadinessChecker {
	return func(ctx context.Context) error {
		_, err := client.Health(ctx)
		return err
	}
}

// monitorServerErrors logs errors from a background server until its error
// channel closes.
func monitorServerErrors(logger *slog.Logger, errCh <-chan error, name string) {
	for err := range errCh {
		logger.Error("server error", "server", name, "error", err)
	}
}
