package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/tillsync/internal/model"
	"github.com/roach88/tillsync/internal/session"
)

// NewSessionCommand creates the session command group.
func NewSessionCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Manage the terminal's user sessions",
	}
	cmd.AddCommand(newSessionShowCommand(opts))
	cmd.AddCommand(newSessionSaveCommand(opts))
	cmd.AddCommand(newSessionRememberCommand(opts))
	cmd.AddCommand(newSessionLoginCommand(opts))
	cmd.AddCommand(newSessionActivateCommand(opts))
	cmd.AddCommand(newSessionSwitchCommand(opts))
	cmd.AddCommand(newSessionAcceptPolicyCommand(opts))
	cmd.AddCommand(newSessionLogoutCommand(opts))
	cmd.AddCommand(newSessionClearCommand(opts))
	return cmd
}

func sessionView(app *App) SessionView {
	view := SessionView{
		CurrentStoreID: app.cache.CurrentStoreID(),
		PendingOrders:  app.cache.PendingCount(),
		Reachable:      app.reach.IsReachable(),
	}
	if u, ok := app.cache.User(); ok {
		view.User = &u
	}
	return view
}

func newSessionShowCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the active session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, app *App) error {
				return opts.formatter(cmd).Success(sessionView(app))
			})
		},
	}
}

func saveMode(exclusive bool) session.SaveMode {
	if exclusive {
		return session.Exclusive
	}
	return session.Coexist
}

func newSessionSaveCommand(opts *RootOptions) *cobra.Command {
	var exclusive bool
	cmd := &cobra.Command{
		Use:   "save <user.json|->",
		Short: "Save a user profile as the logged-in session",
		Long: `Save a user profile as the logged-in session.

By default other sessions stay on the terminal, logged out. With
--exclusive every other session is removed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var u model.User
			if err := readJSON(cmd.InOrStdin(), args[0], &u); err != nil {
				return err
			}
			if err := model.Validate(u); err != nil {
				return invalidInput("invalid user: %v", err)
			}
			return withApp(cmd, opts, func(ctx context.Context, app *App) error {
				if err := app.cache.SaveSession(ctx, u, saveMode(exclusive)); err != nil {
					return classify("save session failed", err)
				}
				return opts.formatter(cmd).Success(sessionView(app))
			})
		},
	}
	cmd.Flags().BoolVar(&exclusive, "exclusive", false, "remove every other session")
	return cmd
}

func newSessionRememberCommand(opts *RootOptions) *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "remember <user.json|->",
		Short: "Store offline credentials for a user",
		Long: `Store a bcrypt hash of the password and a profile snapshot under the
user's reserved offline-auth setting, so the user can log in while the
remote is unreachable. Reserved settings survive session clear.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				return invalidInput("--password is required")
			}
			var u model.User
			if err := readJSON(cmd.InOrStdin(), args[0], &u); err != nil {
				return err
			}
			return withApp(cmd, opts, func(ctx context.Context, app *App) error {
				if err := app.offline.Remember(ctx, u, password); err != nil {
					return classify("remember failed", err)
				}
				return opts.formatter(cmd).Success(fmt.Sprintf("offline credentials stored for %s", u.ID))
			})
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "password to store (required)")
	return cmd
}

func newSessionLoginCommand(opts *RootOptions) *cobra.Command {
	var email, password string
	var coexist bool
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in with stored offline credentials",
		Long: `Authenticate against locally stored credentials and save the stored
profile as the session. The save is exclusive unless --coexist is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if email == "" || password == "" {
				return invalidInput("--email and --password are required")
			}
			return withApp(cmd, opts, func(ctx context.Context, app *App) error {
				u, err := app.offline.Authenticate(ctx, email, password)
				if err != nil {
					return classify("login failed", err)
				}
				if err := app.cache.SaveSession(ctx, u, saveMode(!coexist)); err != nil {
					return classify("save session failed", err)
				}
				return opts.formatter(cmd).Success(sessionView(app))
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	cmd.Flags().BoolVar(&coexist, "coexist", false, "keep other sessions on the terminal")
	return cmd
}

func newSessionActivateCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "activate <user-id>",
		Short: "Make an existing session the logged-in one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, app *App) error {
				if _, err := app.cache.SetActiveUser(ctx, args[0]); err != nil {
					return classify("activate failed", err)
				}
				return opts.formatter(cmd).Success(sessionView(app))
			})
		},
	}
}

func newSessionSwitchCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "switch <store-id>",
		Short: "Select another permitted store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, app *App) error {
				if err := app.cache.SwitchStore(ctx, args[0]); err != nil {
					if errors.Is(err, session.ErrStoreNotPermitted) {
						return invalidInput("%v", err)
					}
					return classify("switch failed", err)
				}
				return opts.formatter(cmd).Success(sessionView(app))
			})
		},
	}
}

func newSessionAcceptPolicyCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "accept-policy",
		Short: "Record policy acceptance for the active user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, app *App) error {
				if err := app.cache.AcceptPolicy(ctx); err != nil {
					return classify("accept policy failed", err)
				}
				return opts.formatter(cmd).Success(sessionView(app))
			})
		},
	}
}

func newSessionLogoutCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Log every session out",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, app *App) error {
				if err := app.cache.Logout(ctx); err != nil {
					return classify("logout failed", err)
				}
				return opts.formatter(cmd).Success("logged out")
			})
		},
	}
}

func newSessionClearCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Wipe local data except reserved settings",
		Long: `Remove sessions, products, orders, companies, stores and every setting
without a reserved prefix. Offline credentials and policy acceptance
remain.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, app *App) error {
				if err := app.cache.ClearAllExceptReservedSettings(ctx); err != nil {
					return classify("clear failed", err)
				}
				return opts.formatter(cmd).Success("local data cleared")
			})
		},
	}
}
