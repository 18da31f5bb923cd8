package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/roach88/tillsync/internal/model"
)

// GetSetting decodes the value stored under key into out. Returns false
// when the key is absent, undecodable, or the store is unavailable.
func (m *Manager) GetSetting(ctx context.Context, key string, out any) bool {
	s, ok := m.Settings().Get(ctx, key)
	if !ok {
		return false
	}
	if err := json.Unmarshal(s.Value, out); err != nil {
		m.log.Warn(m.log.WithField(ctx, "key", key), "undecodable setting", err)
		return false
	}
	return true
}

// PutSetting stores value under key as JSON.
func (m *Manager) PutSetting(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("put setting %s: %w", key, err)
	}
	return m.Settings().Put(ctx, model.Setting{Key: key, Value: raw})
}

// DeleteSetting removes key.
func (m *Manager) DeleteSetting(ctx context.Context, key string) error {
	return m.Settings().Delete(ctx, key)
}

// SettingsWithPrefix returns every setting whose key starts with prefix.
func (m *Manager) SettingsWithPrefix(ctx context.Context, prefix string) []model.Setting {
	var out []model.Setting
	for _, s := range m.Settings().All(ctx) {
		if strings.HasPrefix(s.Key, prefix) {
			out = append(out, s)
		}
	}
	return out
}

// ClearAllExceptReserved wipes sessions, products, orders, companies and
// stores, and every setting whose key has no reserved prefix, in one
// transaction. Reserved settings (offline authentication, policy
// acceptance) survive so a signed-out user can still authenticate offline.
func (m *Manager) ClearAllExceptReserved(ctx context.Context) error {
	_, err := m.withTx(ctx, func(tx *sql.Tx) error {
		for _, coll := range []string{CollSessions, CollProducts, CollOrders, CollCompanies, CollStores} {
			if _, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %q", coll)); err != nil {
				return fmt.Errorf("clear %s: %w", coll, err)
			}
		}
		where := make([]string, 0, len(model.ReservedPrefixes))
		args := make([]any, 0, len(model.ReservedPrefixes))
		for _, p := range model.ReservedPrefixes {
			// substr avoids LIKE wildcards in the prefix ('_' is one).
			where = append(where, "substr(key, 1, ?) <> ?")
			args = append(args, len(p), p)
		}
		_, err := deleteWhere(ctx, tx, CollSettings, strings.Join(where, " AND "), args...)
		return err
	})
	if err != nil {
		return fmt.Errorf("clear all: %w", err)
	}
	return nil
}
