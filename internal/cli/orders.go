package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/roach88/tillsync/internal/model"
)

// NewOrdersCommand creates the orders command group.
func NewOrdersCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "orders",
		Short: "Queue sales and reconcile them with the remote",
	}
	cmd.AddCommand(newOrdersQueueCommand(opts))
	cmd.AddCommand(newOrdersPendingCommand(opts))
	cmd.AddCommand(newOrdersReconcileCommand(opts))
	return cmd
}

func newOrdersQueueCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "queue <order.json|->",
		Short: "Record a sale locally",
		Long: `Record a completed sale in the local store as an unsynced order and
deduct its items from the oldest inventory batches. A logged-in session
is required.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var o model.Order
			if err := readJSON(cmd.InOrStdin(), args[0], &o); err != nil {
				return err
			}
			return withApp(cmd, opts, func(ctx context.Context, app *App) error {
				queued, err := app.cache.QueueOfflineOrder(ctx, o)
				if err != nil {
					return classify("queue failed", err)
				}
				return opts.formatter(cmd).Success(OrderView(queued))
			})
		},
	}
}

func newOrdersPendingCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "pending",
		Short: "List orders not yet pushed to the remote",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, app *App) error {
				return opts.formatter(cmd).Success(OrderList(app.cache.Pending()))
			})
		},
	}
}

func newOrdersReconcileCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Push pending orders once the remote is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, app *App) error {
				app.probe(ctx)
				result, err := app.cache.ReconcilePending(ctx)
				if err != nil {
					return classify("reconcile failed", err)
				}
				return opts.formatter(cmd).Success(ReconcileView(result))
			})
		},
	}
}
