package model

import (
	"encoding/json"
	"strings"
)

// Reserved setting-key prefixes. Settings under these prefixes survive
// bulk-clear so a signed-out user can still authenticate offline.
const (
	OfflineAuthPrefix    = "offline_auth_"
	PolicyAcceptedPrefix = "policy_accepted_"
)

// ReservedPrefixes lists every prefix exempt from bulk-clear.
var ReservedPrefixes = []string{OfflineAuthPrefix, PolicyAcceptedPrefix}

// Setting is a generic key/value pair. Value holds arbitrary JSON.
type Setting struct {
	Key   string          `json:"key" validate:"required"`
	Value json.RawMessage `json:"value"`
}

// IsReservedKey reports whether key carries a reserved prefix.
func IsReservedKey(key string) bool {
	for _, p := range ReservedPrefixes {
		if strings.HasPrefix(key, p) {
			return true
		}
	}
	return false
}

// OfflineAuthKey is the setting key holding identityID's offline credentials.
func OfflineAuthKey(identityID string) string { return OfflineAuthPrefix + identityID }

// PolicyAcceptedKey is the setting key recording identityID's policy acceptance.
func PolicyAcceptedKey(identityID string) string { return PolicyAcceptedPrefix + identityID }
