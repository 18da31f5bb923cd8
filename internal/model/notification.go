package model

import "time"

// Notification is a replicated copy of a remote notification document.
// Read is the only field ever mutated locally.
type Notification struct {
	ID        string    `json:"id" validate:"required"`
	Type      string    `json:"type,omitempty"`
	Title     string    `json:"title,omitempty"`
	Message   string    `json:"message,omitempty"`
	StoreID   string    `json:"storeId"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"createdAt,omitzero"`
}
