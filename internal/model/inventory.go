package model

import "time"

// BatchStatus is the lifecycle state of an inventory batch.
type BatchStatus string

const (
	BatchActive   BatchStatus = "active"
	BatchInactive BatchStatus = "inactive"
	BatchExpired  BatchStatus = "expired"
)

// InventoryBatch is one lot of stock for a product in a store.
// Batches are depleted oldest CreatedAt first; CreatedAt is the promoted
// audit creation time.
type InventoryBatch struct {
	ID        string      `json:"id" validate:"required"`
	ProductID string      `json:"productId" validate:"required"`
	StoreID   string      `json:"storeId" validate:"required"`
	CompanyID string      `json:"companyId" validate:"required"`
	Quantity  int64       `json:"quantity" validate:"gte=0"`
	Status    BatchStatus `json:"status" validate:"oneof=active inactive expired"`
	ExpiresAt time.Time   `json:"expiresAt,omitzero"`
	Audit
}

// AuditFields implements Auditable.
func (b *InventoryBatch) AuditFields() *Audit { return &b.Audit }

// Consumable reports whether b can be drawn from.
func (b InventoryBatch) Consumable() bool {
	return b.Status == BatchActive && b.Quantity > 0
}
