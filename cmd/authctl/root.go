package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/tradevault/go-auth-client/authstate"
	"github.com/tradevault/go-auth-client/controller"
	"github.com/tradevault/go-auth-client/identity"
	"github.com/tradevault/go-auth-client/internal/config"
	"github.com/tradevault/go-auth-client/navigation"
	"github.com/tradevault/go-auth-client/notify"
	"github.com/tradevault/go-auth-client/routeguard"
	"github.com/tradevault/go-auth-client/storage"
)

func newRootCommand(cfg config.Config) *cobra.Command {
	root := &cobra.Command{
		Use:           "authctl",
		Short:         "Session controller client for the identity backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newLoginCommand(cfg),
		newSignupCommand(cfg),
		newLogoutCommand(cfg),
		newStatusCommand(cfg),
		newResetPasswordCommand(cfg),
		newChangePasswordCommand(cfg),
		newMagicLinkCommand(cfg),
		newWatchCommand(cfg),
	)
	return root
}

// buildController wires config → sealed storage → identity client →
// controller. Configuration problems surface here, before any command
// logic runs.
func buildController(cfg config.Config) (*controller.Controller, error) {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	if cfg.GetEnv() != "DEV" {
		logger = logger.Level(zerolog.WarnLevel)
	}

	store, err := storage.NewFileStore(cfg.GetDataFolder())
	if err != nil {
		return nil, err
	}

	client, err := identity.NewHTTPClient(identity.Config{
		BaseURL:          cfg.GetBackendURL(),
		APIKey:           cfg.GetBackendAPIKey(),
		OAuthClientID:    cfg.GetOAuthClientID(),
		OAuthRedirectURL: cfg.GetOAuthRedirectURL(),
		RefreshMargin:    cfg.GetSessionRefreshMargin(),
	}, store)
	if err != nil {
		return nil, err
	}

	return controller.New(controller.Deps{
		Identity: client,
		State:    authstate.NewStore(),
		Guard:    routeguard.New(),
		Nav:      navigation.NewMemoryNavigator(routeguard.RouteHome),
		Notifier: notify.NewLogNotifier(logger),
		Storage:  store,
	},
		controller.WithLogger(logger),
		controller.WithBootstrapTimeout(cfg.GetBootstrapTimeout()),
	)
}

func startController(cmd *cobra.Command, cfg config.Config) (*controller.Controller, error) {
	ctrl, err := buildController(cfg)
	if err != nil {
		return nil, err
	}
	if err := ctrl.Start(cmd.Context()); err != nil {
		ctrl.Close()
		return nil, err
	}
	return ctrl, nil
}

func newLoginCommand(cfg config.Config) *cobra.Command {
	var remember bool
	cmd := &cobra.Command{
		Use:   "login <email> <password>",
		Short: "Sign in with email and password",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctrl, err := startController(cmd, cfg)
			if err != nil {
				return err
			}
			defer ctrl.Close()

			if err := ctrl.SignIn(cmd.Context(), args[0], args[1], remember); err != nil {
				return err
			}
			fmt.Printf("Signed in as %s\n", ctrl.State().User.Email)
			return nil
		},
	}
	cmd.Flags().BoolVar(&remember, "remember", false, "persist a remember-me marker")
	return cmd
}

func newSignupCommand(cfg config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "signup <email> <password>",
		Short: "Register a new account",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctrl, err := startController(cmd, cfg)
			if err != nil {
				return err
			}
			defer ctrl.Close()

			result, err := ctrl.SignUp(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			if result.NeedsEmailVerification {
				fmt.Println("Account created. Check your email to verify the address before signing in.")
				return nil
			}
			fmt.Printf("Signed in as %s\n", args[0])
			return nil
		},
	}
}

func newLogoutCommand(cfg config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and clear the local session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctrl, err := startController(cmd, cfg)
			if err != nil {
				return err
			}
			defer ctrl.Close()
			return ctrl.SignOut(cmd.Context())
		},
	}
}

func newStatusCommand(cfg config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the current session state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctrl, err := startController(cmd, cfg)
			if err != nil {
				return err
			}
			defer ctrl.Close()

			state := ctrl.State()
			if !state.IsAuthenticated {
				fmt.Println("Not signed in")
				return nil
			}
			fmt.Printf("Signed in as %s (session expires %s)\n",
				state.User.Email, state.Session.ExpiresAt.Format("2006-01-02 15:04:05"))
			if ctrl.RememberMe() {
				fmt.Println("Remember-me marker present")
			}
			return nil
		},
	}
}

func newResetPasswordCommand(cfg config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "reset-password <email>",
		Short: "Request a password reset email",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctrl, err := buildController(cfg)
			if err != nil {
				return err
			}
			defer ctrl.Close()
			return ctrl.ResetPasswordRequest(cmd.Context(), args[0])
		},
	}
}

func newChangePasswordCommand(cfg config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "change-password <new-password>",
		Short: "Change the signed-in user's password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctrl, err := startController(cmd, cfg)
			if err != nil {
				return err
			}
			defer ctrl.Close()
			return ctrl.ChangePassword(cmd.Context(), args[0])
		},
	}
}

func newMagicLinkCommand(cfg config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "magic-link <email>",
		Short: "Request a one-time sign-in link by email",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctrl, err := buildController(cfg)
			if err != nil {
				return err
			}
			defer ctrl.Close()
			return ctrl.SignInWithMagic(cmd.Context(), args[0])
		},
	}
}

// newWatchCommand keeps the controller's event loop running and prints
// state changes until interrupted.
func newWatchCommand(cfg config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Run the session event loop and print state transitions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctrl, err := buildController(cfg)
			if err != nil {
				return err
			}
			defer ctrl.Close()

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			if err := ctrl.Start(ctx); err != nil {
				return err
			}

			watch, cancelWatch := ctrl.StateChanges()
			defer cancelWatch()

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

			fmt.Printf("Watching session state (phase %s). Ctrl-C to stop.\n", ctrl.Phase())
			for {
				select {
				case state := <-watch:
					fmt.Printf("state: authenticated=%t loading=%t\n",
						state.IsAuthenticated, state.IsLoading)
				case <-stop:
					return nil
				}
			}
		},
	}
}
