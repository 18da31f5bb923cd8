package cli

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/roach88/tillsync/internal/model"
	"github.com/roach88/tillsync/internal/session"
	"github.com/roach88/tillsync/internal/store"
)

func table(w io.Writer, header string, rows func(tw *tabwriter.Writer)) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, header)
	rows(tw)
	return tw.Flush()
}

func stamp(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}

// ProductList is the products list result.
type ProductList []model.Product

func (l ProductList) WriteText(w io.Writer) error {
	if len(l) == 0 {
		_, err := fmt.Fprintln(w, "No products.")
		return err
	}
	return table(w, "ID\tBARCODE\tNAME\tSTOCK\tPRICE\tLAST UPDATED", func(tw *tabwriter.Writer) {
		for _, p := range l {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
				p.ID, p.Barcode, p.ProductName, p.Stock, p.Price.StringFixed(2), stamp(p.LastUpdated))
		}
	})
}

// MergeView is the products merge result.
type MergeView store.MergeReport

func (r MergeView) WriteText(w io.Writer) error {
	_, err := fmt.Fprintf(w, "inserted %d, updated %d, merged %d, unchanged %d, skipped %d\n",
		r.Inserted, r.Updated, r.Merged, r.Unchanged, r.Skipped)
	return err
}

// BatchList is the batches fifo result.
type BatchList []model.InventoryBatch

func (l BatchList) WriteText(w io.Writer) error {
	if len(l) == 0 {
		_, err := fmt.Fprintln(w, "No consumable batches.")
		return err
	}
	return table(w, "ID\tQUANTITY\tCREATED", func(tw *tabwriter.Writer) {
		for _, b := range l {
			fmt.Fprintf(tw, "%s\t%d\t%s\n", b.ID, b.Quantity, stamp(b.CreatedAt))
		}
	})
}

// DeductionView is the batches deduct result.
type DeductionView store.Deduction

func (d DeductionView) WriteText(w io.Writer) error {
	err := table(w, "BATCH\tTAKEN\tREMAINING", func(tw *tabwriter.Writer) {
		for _, a := range d.Allocations {
			fmt.Fprintf(tw, "%s\t%d\t%d\n", a.BatchID, a.Quantity, a.Remaining)
		}
	})
	if err == nil && d.Shortfall > 0 {
		_, err = fmt.Fprintf(w, "shortfall: %d\n", d.Shortfall)
	}
	return err
}

// SessionView is the session show result.
type SessionView struct {
	User           *model.User `json:"user,omitempty"`
	CurrentStoreID string      `json:"currentStoreId,omitempty"`
	PendingOrders  int         `json:"pendingOrders"`
	Reachable      bool        `json:"reachable"`
}

func (s SessionView) WriteText(w io.Writer) error {
	if s.User == nil {
		_, err := fmt.Fprintln(w, "No active session.")
		return err
	}
	fmt.Fprintf(w, "user:      %s %s\n", s.User.ID, s.User.Email)
	fmt.Fprintf(w, "store:     %s\n", s.CurrentStoreID)
	fmt.Fprintf(w, "pending:   %d\n", s.PendingOrders)
	_, err := fmt.Fprintf(w, "reachable: %t\n", s.Reachable)
	return err
}

// OrderList is the orders pending result.
type OrderList []model.Order

func (l OrderList) WriteText(w io.Writer) error {
	if len(l) == 0 {
		_, err := fmt.Fprintln(w, "No pending orders.")
		return err
	}
	return table(w, "ID\tSTORE\tITEMS\tTOTAL\tTIMESTAMP\tOFFLINE", func(tw *tabwriter.Writer) {
		for _, o := range l {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%t\n",
				o.ID, o.StoreID, len(o.Items), o.Total.StringFixed(2), stamp(o.Timestamp), o.CreatedOffline)
		}
	})
}

// OrderView is the orders queue result.
type OrderView model.Order

func (o OrderView) WriteText(w io.Writer) error {
	_, err := fmt.Fprintf(w, "queued %s: %d item(s), total %s\n", o.ID, len(o.Items), o.Total.StringFixed(2))
	return err
}

// ReconcileView is the orders reconcile result.
type ReconcileView session.ReconcileResult

func (r ReconcileView) WriteText(w io.Writer) error {
	if r.Skipped {
		_, err := fmt.Fprintln(w, "remote unreachable, nothing pushed")
		return err
	}
	_, err := fmt.Fprintf(w, "attempted %d, synced %d, failed %d\n", r.Attempted, r.Synced, r.Failed)
	return err
}

// NotificationList is the notifications list result.
type NotificationList []model.Notification

func (l NotificationList) WriteText(w io.Writer) error {
	if len(l) == 0 {
		_, err := fmt.Fprintln(w, "No notifications.")
		return err
	}
	return table(w, "ID\tCREATED\tREAD\tTITLE", func(tw *tabwriter.Writer) {
		for _, n := range l {
			fmt.Fprintf(tw, "%s\t%s\t%t\t%s\n", n.ID, stamp(n.CreatedAt), n.Read, n.Title)
		}
	})
}
