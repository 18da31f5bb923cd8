package harness

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/roach88/tillsync/internal/model"
	"github.com/roach88/tillsync/internal/remote"
	"github.com/roach88/tillsync/internal/session"
)

type actionFunc func(ctx context.Context, h *Harness, args map[string]any) (any, error)

var actions = map[string]actionFunc{
	"session.save":       sessionSave,
	"session.activate":   sessionActivate,
	"session.logout":     sessionLogout,
	"session.clear":      sessionClear,
	"settings.put":       settingsPut,
	"products.merge":     productsMerge,
	"products.refresh":   productsRefresh,
	"batches.put":        batchesPut,
	"batches.fifo":       batchesFIFO,
	"batches.deduct":     batchesDeduct,
	"orders.queue":       ordersQueue,
	"orders.reconcile":   ordersReconcile,
	"network.observe":    networkObserve,
	"remote.read":        remoteRead,
	"remote.offline":     remoteOffline,
	"remote.seed":        remoteSeed,
	"remote.emit":        remoteEmit,
	"replication.start":  replicationStart,
	"replication.stop":   replicationStop,
	"notifications.read": notificationsRead,
}

func sessionSave(ctx context.Context, h *Harness, args map[string]any) (any, error) {
	var u model.User
	if err := argInto(args, "user", &u); err != nil {
		return nil, err
	}
	mode := session.Coexist
	switch m, _ := args["mode"].(string); m {
	case "", "coexist":
	case "exclusive":
		mode = session.Exclusive
	default:
		return nil, fmt.Errorf("unknown session mode %q", m)
	}
	if err := h.cache.SaveSession(ctx, u, mode); err != nil {
		return nil, err
	}
	saved, _ := h.cache.User()
	return saved, nil
}

func sessionActivate(ctx context.Context, h *Harness, args map[string]any) (any, error) {
	id, err := str(args, "id")
	if err != nil {
		return nil, err
	}
	return h.cache.SetActiveUser(ctx, id)
}

func sessionLogout(ctx context.Context, h *Harness, _ map[string]any) (any, error) {
	return nil, h.cache.Logout(ctx)
}

func sessionClear(ctx context.Context, h *Harness, _ map[string]any) (any, error) {
	return nil, h.cache.ClearAllExceptReservedSettings(ctx)
}

func settingsPut(ctx context.Context, h *Harness, args map[string]any) (any, error) {
	key, err := str(args, "key")
	if err != nil {
		return nil, err
	}
	return nil, h.store.PutSetting(ctx, key, args["value"])
}

func productsMerge(ctx context.Context, h *Harness, args map[string]any) (any, error) {
	var products []model.Product
	if err := argInto(args, "products", &products); err != nil {
		return nil, err
	}
	return h.store.MergeProducts(ctx, products, h.prodIDs)
}

func productsRefresh(ctx context.Context, h *Harness, args map[string]any) (any, error) {
	storeID, _ := args["storeId"].(string)
	return h.cache.RefreshProducts(ctx, storeID)
}

func batchesPut(ctx context.Context, h *Harness, args map[string]any) (any, error) {
	var batches []model.InventoryBatch
	if err := argInto(args, "batches", &batches); err != nil {
		return nil, err
	}
	n, err := h.store.UpdateBatches(ctx, batches)
	return map[string]any{"written": n}, err
}

type batchKey struct {
	ProductID string `json:"productId"`
	StoreID   string `json:"storeId"`
	CompanyID string `json:"companyId"`
	Quantity  int64  `json:"quantity"`
}

func batchesFIFO(ctx context.Context, h *Harness, args map[string]any) (any, error) {
	var k batchKey
	if err := decode(args, &k); err != nil {
		return nil, err
	}
	ids := []string{}
	for _, b := range h.store.FIFOBatches(ctx, k.ProductID, k.StoreID, k.CompanyID) {
		ids = append(ids, b.ID)
	}
	return map[string]any{"batches": ids}, nil
}

func batchesDeduct(ctx context.Context, h *Harness, args map[string]any) (any, error) {
	var k batchKey
	if err := decode(args, &k); err != nil {
		return nil, err
	}
	return h.store.DeductFIFO(ctx, k.ProductID, k.StoreID, k.CompanyID, k.Quantity, h.clock.Now())
}

func ordersQueue(ctx context.Context, h *Harness, args map[string]any) (any, error) {
	var o model.Order
	if err := argInto(args, "order", &o); err != nil {
		return nil, err
	}
	return h.cache.QueueOfflineOrder(ctx, o)
}

func ordersReconcile(ctx context.Context, h *Harness, _ map[string]any) (any, error) {
	return h.cache.ReconcilePending(ctx)
}

func networkObserve(ctx context.Context, h *Harness, args map[string]any) (any, error) {
	present, err := boolean(args, "present")
	if err != nil {
		return nil, err
	}
	h.reach.ObserveNetwork(ctx, present)
	return map[string]any{"reachable": h.reach.IsReachable()}, nil
}

func remoteRead(ctx context.Context, h *Harness, args map[string]any) (any, error) {
	fromCache, err := boolean(args, "fromCache")
	if err != nil {
		return nil, err
	}
	h.reach.ObserveRead(ctx, remote.ReadMeta{FromCache: fromCache})
	return map[string]any{"reachable": h.reach.IsReachable()}, nil
}

func remoteOffline(_ context.Context, h *Harness, args map[string]any) (any, error) {
	offline, err := boolean(args, "offline")
	if err != nil {
		return nil, err
	}
	h.remote.SetOffline(offline)
	return nil, nil
}

func remoteSeed(_ context.Context, h *Harness, args map[string]any) (any, error) {
	collection, err := str(args, "collection")
	if err != nil {
		return nil, err
	}
	id, err := str(args, "id")
	if err != nil {
		return nil, err
	}
	h.remote.Seed(collection, id, args["doc"])
	return nil, nil
}

func remoteEmit(_ context.Context, h *Harness, args map[string]any) (any, error) {
	collection, err := str(args, "collection")
	if err != nil {
		return nil, err
	}
	id, err := str(args, "id")
	if err != nil {
		return nil, err
	}
	kind, _ := args["type"].(string)
	if kind == "" {
		kind = string(remote.ChangeModified)
	}
	h.remote.Emit(collection, remote.ChangeType(kind), id, args["doc"])
	return nil, nil
}

func replicationStart(ctx context.Context, h *Harness, args map[string]any) (any, error) {
	storeID, err := str(args, "storeId")
	if err != nil {
		return nil, err
	}
	return nil, h.worker.Start(ctx, storeID)
}

func replicationStop(_ context.Context, h *Harness, _ map[string]any) (any, error) {
	h.worker.Stop()
	return nil, nil
}

func notificationsRead(ctx context.Context, h *Harness, args map[string]any) (any, error) {
	id, err := str(args, "id")
	if err != nil {
		return nil, err
	}
	return nil, h.store.MarkNotificationRead(ctx, id)
}

func str(args map[string]any, key string) (string, error) {
	v, ok := args[key].(string)
	if !ok || v == "" {
		return "", fmt.Errorf("argument %q: string required", key)
	}
	return v, nil
}

func boolean(args map[string]any, key string) (bool, error) {
	v, ok := args[key].(bool)
	if !ok {
		return false, fmt.Errorf("argument %q: bool required", key)
	}
	return v, nil
}

func argInto(args map[string]any, key string, out any) error {
	v, ok := args[key]
	if !ok {
		return fmt.Errorf("argument %q is required", key)
	}
	if err := decode(v, out); err != nil {
		return fmt.Errorf("argument %q: %w", key, err)
	}
	return nil
}

func decode(v any, out any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

// toGeneric converts a typed result into its JSON shape so traces and
// expectations see the same field names as the stored documents.
func toGeneric(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	var out any
	if err := decode(v, &out); err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	return out, nil
}
