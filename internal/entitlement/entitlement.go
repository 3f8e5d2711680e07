// AngelaMos | 2026
// entitlement.go

// Package entitlement holds the owner subscription predicates. The access
// gate and the navigation state both call these and nothing else, so the
// enforced and the displayed rules cannot drift apart.
package entitlement

import (
	"time"

	"github.com/carterperez-dev/templates/portal-gateway/internal/principal"
)

// IsEntitled reports whether sub is an active subscription at now. A nil
// expiry never lapses; an expiry equal to now has lapsed.
func IsEntitled(sub *principal.Subscription, now time.Time) bool {
	if sub == nil {
		return false
	}
	if sub.ExpiresAt == nil {
		return true
	}
	return sub.ExpiresAt.After(now)
}

// HasCapacity reports whether another listing fits under max.
func HasCapacity(count, maxProperties int) bool {
	return count < maxProperties
}

// ReachedLimit is the negation of HasCapacity, kept for call sites that
// read better in the negative.
func ReachedLimit(count, maxProperties int) bool {
	return !HasCapacity(count, maxProperties)
}
