// AngelaMos | 2026
// entity.go

package principal

import (
	"time"
)

const (
	RoleAdmin    = "admin"
	RoleOwner    = "owner"
	RoleCustomer = "customer"
)

// Principal is the identity behind a session as reported by the remote
// /user endpoint. It lives for a single request.
type Principal struct {
	ID           string
	Name         string
	Email        string
	Role         string
	Subscription *Subscription
}

func (p *Principal) IsAdmin() bool {
	return p != nil && p.Role == RoleAdmin
}

func (p *Principal) IsOwner() bool {
	return p != nil && p.Role == RoleOwner
}

// Subscription is only reported for owners. A nil ExpiresAt is a plan
// that never lapses.
type Subscription struct {
	ID            int64
	PlanID        int64
	MaxProperties int
	ExpiresAt     *time.Time
	Plan          *Plan
}

type Plan struct {
	ID            int64   `json:"id"`
	Name          string  `json:"name"`
	Price         float64 `json:"price"`
	MaxProperties int     `json:"max_properties"`
	DurationDays  *int    `json:"duration_days"`
}
