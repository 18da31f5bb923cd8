package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// StoreStatus reports the store after initialization.
type StoreStatus struct {
	Path         string `json:"path"`
	Availability string `json:"availability"`
	Error        string `json:"error,omitempty"`
}

func (s StoreStatus) WriteText(w io.Writer) error {
	_, err := fmt.Fprintf(w, "store %s: %s\n", s.Path, s.Availability)
	if err == nil && s.Error != "" {
		_, err = fmt.Fprintf(w, "  %s\n", s.Error)
	}
	return err
}

// NewInitCommand creates the init command.
func NewInitCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create or upgrade the on-device store",
		Long: `Open the SQLite store, creating it and applying schema upgrades as
needed, and report its availability.

Exit codes:
  0 - Store available
  2 - Store unavailable (corrupted, locked, newer schema, ...)

Example:
  tillsync init --db ./till.db`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, app *App) error {
				status := StoreStatus{
					Path:         app.cfg.Store.Path,
					Availability: app.store.Availability().String(),
				}
				initErr := app.store.InitErr()
				if initErr != nil {
					status.Error = initErr.Error()
				}
				if err := opts.formatter(cmd).Success(status); err != nil {
					return err
				}
				if initErr != nil {
					return classify("store unavailable", initErr)
				}
				return nil
			})
		},
	}
}
