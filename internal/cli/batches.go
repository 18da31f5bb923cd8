package cli

import (
	"context"

	"github.com/spf13/cobra"
)

type batchFlags struct {
	product string
	store   string
	company string
}

func (f *batchFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.product, "product", "", "product id (required)")
	cmd.Flags().StringVar(&f.store, "store", "", "store id (defaults to the session's current store)")
	cmd.Flags().StringVar(&f.company, "company", "", "company id (required)")
	_ = cmd.MarkFlagRequired("product")
	_ = cmd.MarkFlagRequired("company")
}

func (f *batchFlags) storeID(app *App) (string, error) {
	if f.store != "" {
		return f.store, nil
	}
	if id := app.cache.CurrentStoreID(); id != "" {
		return id, nil
	}
	return "", invalidInput("no store selected: pass --store or log in")
}

// NewBatchesCommand creates the batches command group.
func NewBatchesCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batches",
		Short: "Inspect and consume FIFO inventory batches",
	}
	cmd.AddCommand(newBatchesFIFOCommand(opts))
	cmd.AddCommand(newBatchesDeductCommand(opts))
	return cmd
}

func newBatchesFIFOCommand(opts *RootOptions) *cobra.Command {
	var flags batchFlags
	cmd := &cobra.Command{
		Use:   "fifo",
		Short: "List a product's consumable batches, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, app *App) error {
				storeID, err := flags.storeID(app)
				if err != nil {
					return err
				}
				batches := app.store.FIFOBatches(ctx, flags.product, storeID, flags.company)
				return opts.formatter(cmd).Success(BatchList(batches))
			})
		},
	}
	flags.register(cmd)
	return cmd
}

func newBatchesDeductCommand(opts *RootOptions) *cobra.Command {
	var flags batchFlags
	var qty int64
	cmd := &cobra.Command{
		Use:   "deduct",
		Short: "Deduct stock from a product's oldest batches",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if qty <= 0 {
				return invalidInput("--qty must be positive")
			}
			return withApp(cmd, opts, func(ctx context.Context, app *App) error {
				storeID, err := flags.storeID(app)
				if err != nil {
					return err
				}
				d, err := app.store.DeductFIFO(ctx, flags.product, storeID, flags.company, qty, app.now())
				if err != nil {
					return classify("deduction failed", err)
				}
				return opts.formatter(cmd).Success(DeductionView(d))
			})
		},
	}
	flags.register(cmd)
	cmd.Flags().Int64Var(&qty, "qty", 0, "quantity to deduct (required)")
	_ = cmd.MarkFlagRequired("qty")
	return cmd
}
