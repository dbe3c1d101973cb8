package cache

import (
	"fmt"
	"strings"
)

// SnapshotKey is the key of the persisted session cache of one owner.
func SnapshotKey(ownerEmail string) string {
	return fmt.Sprintf("session:snapshot:%s", strings.ToLower(strings.TrimSpace(ownerEmail)))
}

// RateLimitKey is the request counter of one identity.
func RateLimitKey(identityKey string) string {
	return fmt.Sprintf("ratelimit:%s", identityKey)
}
