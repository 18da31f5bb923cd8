package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/roach88/tillsync/internal/model"
)

// NewProductsCommand creates the products command group.
func NewProductsCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "products",
		Short: "Inspect and merge cached products",
	}
	cmd.AddCommand(newProductsMergeCommand(opts))
	cmd.AddCommand(newProductsListCommand(opts))
	cmd.AddCommand(newProductsRefreshCommand(opts))
	return cmd
}

func newProductsMergeCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "merge <products.json|->",
		Short: "Merge a JSON array of products into the store",
		Long: `Merge products into the local store.

A product whose id is already stored replaces it only when its lastUpdated
is newer. A product without an id match merges into the stored product
with the same store, barcode and name. Anything else is inserted.

Example:
  tillsync products merge ./products.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var products []model.Product
			if err := readJSON(cmd.InOrStdin(), args[0], &products); err != nil {
				return err
			}
			return withApp(cmd, opts, func(ctx context.Context, app *App) error {
				report, err := app.store.MergeProducts(ctx, products, nil)
				if err != nil {
					return classify("merge failed", err)
				}
				return opts.formatter(cmd).Success(MergeView(report))
			})
		},
	}
}

func newProductsListCommand(opts *RootOptions) *cobra.Command {
	var storeID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List cached products of a store",
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
				return opts.formatter(cmd).Success(ProductList(app.store.ProductsForStore(ctx, id)))
			})
		},
	}
	cmd.Flags().StringVar(&storeID, "store", "", "store id (defaults to the session's current store)")
	return cmd
}

func newProductsRefreshCommand(opts *RootOptions) *cobra.Command {
	var storeID string
	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Fetch a store's products from the remote and merge them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, app *App) error {
				if app.remote == nil {
					return invalidInput("no remote configured: set TILLSYNC_REMOTE_URL")
				}
				id := storeID
				if id == "" {
					id = app.cache.CurrentStoreID()
				}
				if id == "" {
					return invalidInput("no store selected: pass --store or log in")
				}
				report, err := app.cache.RefreshProducts(ctx, id)
				if err != nil {
					return classify("refresh failed", err)
				}
				return opts.formatter(cmd).Success(MergeView(report))
			})
		},
	}
	cmd.Flags().StringVar(&storeID, "store", "", "store id (defaults to the session's current store)")
	return cmd
}
