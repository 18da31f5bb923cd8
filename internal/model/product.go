package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/unicode/norm"
)

// Product is a sellable item cached for one store.
//
// Two identities exist: the global ID, and the natural key
// (StoreID, Barcode, ProductName). Neither may repeat across the collection.
type Product struct {
	ID               string          `json:"id"`
	StoreID          string          `json:"storeId" validate:"required"`
	CompanyID        string          `json:"companyId,omitempty"`
	Barcode          string          `json:"barcode,omitempty"`
	ProductName      string          `json:"productName" validate:"required"`
	Category         string          `json:"category,omitempty"`
	Stock            int64           `json:"stock"`
	Price            decimal.Decimal `json:"price"`
	CostPrice        decimal.Decimal `json:"costPrice"`
	VATExempt        bool            `json:"vatExempt"`
	DiscountEligible bool            `json:"discountEligible"`
	LastUpdated      time.Time       `json:"lastUpdated,omitzero"`
	Audit
}

// AuditFields implements Auditable.
func (p *Product) AuditFields() *Audit { return &p.Audit }

// NaturalKey identifies the same physical product arriving from different
// source paths without a shared global id.
type NaturalKey struct {
	StoreID     string
	Barcode     string
	ProductName string
}

// NaturalKey returns p's natural key with each component NFC-normalized and
// trimmed, so visually identical names from different sources compare equal.
func (p Product) NaturalKey() NaturalKey {
	return NaturalKey{
		StoreID:     normalizeKeyPart(p.StoreID),
		Barcode:     normalizeKeyPart(p.Barcode),
		ProductName: normalizeKeyPart(p.ProductName),
	}
}

// Valid reports whether the key carries enough information to deduplicate on.
// A product without a store or name never matches by natural key.
func (k NaturalKey) Valid() bool {
	return k.StoreID != "" && k.ProductName != ""
}

func normalizeKeyPart(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// MergeInto overlays incoming onto existing for a natural-key match and returns
// the result. The existing id is kept. Text fields and timestamps that the
// incoming record leaves blank keep their existing value; numeric and boolean
// fields always come from the incoming record.
func MergeInto(existing, incoming Product) Product {
	out := existing
	out.StoreID = pick(incoming.StoreID, existing.StoreID)
	out.CompanyID = pick(incoming.CompanyID, existing.CompanyID)
	out.Barcode = pick(incoming.Barcode, existing.Barcode)
	out.ProductName = pick(incoming.ProductName, existing.ProductName)
	out.Category = pick(incoming.Category, existing.Category)
	out.Stock = incoming.Stock
	out.Price = incoming.Price
	out.CostPrice = incoming.CostPrice
	out.VATExempt = incoming.VATExempt
	out.DiscountEligible = incoming.DiscountEligible
	if !incoming.LastUpdated.IsZero() {
		out.LastUpdated = incoming.LastUpdated
	}
	if !incoming.UpdatedAt.IsZero() {
		out.UpdatedAt = incoming.UpdatedAt
		out.UpdatedBy = pick(incoming.UpdatedBy, existing.UpdatedBy)
	}
	return out
}

func pick(incoming, existing string) string {
	if incoming != "" {
		return incoming
	}
	return existing
}
