package store

import (
	"context"
	"database/sql"
	"fmt"
	"slices"

	"github.com/roach88/tillsync/internal/model"
)

// UpsertNotification stores a replicated notification. A locally set read
// flag is kept; every other field comes from n. Applying the same n twice
// leaves the same stored record.
func (m *Manager) UpsertNotification(ctx context.Context, n model.Notification) error {
	_, err := m.withTx(ctx, func(tx *sql.Tx) error {
		cur, found, err := getDoc[model.Notification](ctx, tx, CollNotifications, n.ID)
		if err != nil {
			return err
		}
		if found && cur.Read {
			n.Read = true
		}
		return putDoc(ctx, tx, CollNotifications, n.ID, n)
	})
	if err != nil {
		return fmt.Errorf("upsert notification %s: %w", n.ID, err)
	}
	return nil
}

// MarkNotificationRead sets the read flag, the only local mutation of a
// notification. Unknown ids are ignored.
func (m *Manager) MarkNotificationRead(ctx context.Context, id string) error {
	_, err := m.withTx(ctx, func(tx *sql.Tx) error {
		n, found, err := getDoc[model.Notification](ctx, tx, CollNotifications, id)
		if err != nil || !found || n.Read {
			return err
		}
		n.Read = true
		return putDoc(ctx, tx, CollNotifications, id, n)
	})
	if err != nil {
		return fmt.Errorf("mark notification %s read: %w", id, err)
	}
	return nil
}

// NotificationsForStore returns a store's notifications, newest first.
func (m *Manager) NotificationsForStore(ctx context.Context, storeID string) []model.Notification {
	out := m.Notifications().ByIndex(ctx, "storeId", storeID)
	slices.SortStableFunc(out, func(a, b model.Notification) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out
}
