package cli

import (
	"context"

	"github.com/spf13/cobra"
)

// NewNotificationsCommand creates the notifications command group.
func NewNotificationsCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notifications",
		Short: "Read replicated store notifications",
	}

	var storeID string
	list := &cobra.Command{
		Use:   "list",
		Short: "List a store's notifications, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, app *App) error {
				id := storeID
				if id == "" {
					id = app.cache.CurrentStoreID()
				}
				if id == "" {
					return invalidInput("no store selected: pass --store or log in")
				}
				return opts.formatter(cmd).Success(NotificationList(app.store.NotificationsForStore(ctx, id)))
			})
		},
	}
	list.Flags().StringVar(&storeID, "store", "", "store id (defaults to the session's current store)")

	read := &cobra.Command{
		Use:   "read <notification-id>",
		Short: "Mark a notification read",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, app *App) error {
				if err := app.store.MarkNotificationRead(ctx, args[0]); err != nil {
					return classify("mark read failed", err)
				}
				return opts.formatter(cmd).Success("marked read")
			})
		},
	}

	cmd.AddCommand(list, read)
	return cmd
}
