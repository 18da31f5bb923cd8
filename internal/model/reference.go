package model

import "time"

// Company is a cached snapshot of remote reference data. Never authoritative.
type Company struct {
	ID       string    `json:"id" validate:"required"`
	Name     string    `json:"name,omitempty"`
	TaxID    string    `json:"taxId,omitempty"`
	Currency string    `json:"currency,omitempty"`
	LastSync time.Time `json:"lastSync,omitzero"`
}

// Store is a cached snapshot of a retail location.
type Store struct {
	ID        string    `json:"id" validate:"required"`
	CompanyID string    `json:"companyId" validate:"required"`
	Name      string    `json:"name,omitempty"`
	Address   string    `json:"address,omitempty"`
	LastSync  time.Time `json:"lastSync,omitzero"`
}
