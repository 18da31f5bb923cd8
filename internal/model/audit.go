package model

import "time"

// Audit carries the ownership and audit fields stamped onto records before
// they are persisted. See package enrich.
type Audit struct {
	CreatedBy       string    `json:"createdBy,omitempty"`
	UpdatedBy       string    `json:"updatedBy,omitempty"`
	CreatedAt       time.Time `json:"createdAt,omitzero"`
	UpdatedAt       time.Time `json:"updatedAt,omitzero"`
	CreatedOffline  bool      `json:"createdOffline,omitempty"`
	ModifiedOffline bool      `json:"modifiedOffline,omitempty"`
}

// Auditable is implemented by every record that accepts audit stamping.
type Auditable interface {
	AuditFields() *Audit
}
