package model

import "time"

// Permission grants a role within a company, optionally narrowed to one store.
type Permission struct {
	CompanyID string `json:"companyId" validate:"required"`
	RoleID    string `json:"roleId" validate:"required"`
	StoreID   string `json:"storeId,omitempty"`
	Status    string `json:"status,omitempty"`
}

// User is a session record keyed by identity id.
//
// At most one User across the whole store has IsLoggedIn set.
type User struct {
	ID               string       `json:"id" validate:"required"`
	Email            string       `json:"email,omitempty" validate:"omitempty,email"`
	DisplayName      string       `json:"displayName,omitempty"`
	Phone            string       `json:"phone,omitempty"`
	Permissions      []Permission `json:"permissions" validate:"dive"`
	CurrentStoreID   string       `json:"currentStoreId,omitempty"`
	IsLoggedIn       bool         `json:"isLoggedIn"`
	IsAgreedToPolicy bool         `json:"isAgreedToPolicy"`
	LastSync         time.Time    `json:"lastSync,omitzero"`
}

// HasStore reports whether any permission of u covers storeID. A permission
// without a store id covers every store of its company, but the caller cannot
// resolve company membership here, so only explicit store grants match.
func (u User) HasStore(storeID string) bool {
	for _, p := range u.Permissions {
		if p.StoreID == storeID {
			return true
		}
	}
	return false
}

// CompanyIDs returns the distinct company ids of u's permissions in first-seen order.
func (u User) CompanyIDs() []string {
	seen := make(map[string]bool, len(u.Permissions))
	ids := make([]string, 0, len(u.Permissions))
	for _, p := range u.Permissions {
		if p.CompanyID == "" || seen[p.CompanyID] {
			continue
		}
		seen[p.CompanyID] = true
		ids = append(ids, p.CompanyID)
	}
	return ids
}
