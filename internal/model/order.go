package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderItem is one line of a sale.
type OrderItem struct {
	ProductID   string          `json:"productId" validate:"required"`
	ProductName string          `json:"productName,omitempty"`
	Barcode     string          `json:"barcode,omitempty"`
	Quantity    int64           `json:"quantity" validate:"gt=0"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	Discount    decimal.Decimal `json:"discount"`
	VATExempt   bool            `json:"vatExempt,omitempty"`
}

// LineTotal is quantity times unit price less the line discount.
func (i OrderItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(i.Quantity)).Sub(i.Discount)
}

// Order is a completed sale. Immutable once Synced is true.
type Order struct {
	ID            string          `json:"id"`
	StoreID       string          `json:"storeId" validate:"required"`
	CompanyID     string          `json:"companyId,omitempty"`
	Items         []OrderItem     `json:"items" validate:"required,min=1,dive"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	Discount      decimal.Decimal `json:"discount"`
	VAT           decimal.Decimal `json:"vat"`
	Total         decimal.Decimal `json:"total"`
	PaymentMethod string          `json:"paymentMethod,omitempty"`
	Timestamp     time.Time       `json:"timestamp"`
	Synced        bool            `json:"synced"`
	SyncedAt      time.Time       `json:"syncedAt,omitzero"`
	Audit
}

// AuditFields implements Auditable.
func (o *Order) AuditFields() *Audit { return &o.Audit }

// ComputeTotals fills Subtotal and Total from the items when Total is unset.
// VAT is taken as given.
func (o *Order) ComputeTotals() {
	if !o.Total.IsZero() {
		return
	}
	sub := decimal.Zero
	for _, it := range o.Items {
		sub = sub.Add(it.LineTotal())
	}
	o.Subtotal = sub
	o.Total = sub.Sub(o.Discount).Add(o.VAT)
}
