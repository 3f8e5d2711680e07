// AngelaMos | 2026
// dto.go

package principal

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/carterperez-dev/templates/portal-gateway/internal/core"
)

// SessionEnvelope is the body of GET /user.
type SessionEnvelope struct {
	User *UserPayload `json:"user"`
}

type UserPayload struct {
	ID           FlexibleID           `json:"id"           validate:"required"`
	Name         string               `json:"name"`
	Email        string               `json:"email"`
	Role         string               `json:"role"         validate:"required,oneof=admin owner customer"`
	Subscription *SubscriptionPayload `json:"subscription"`
}

type SubscriptionPayload struct {
	ID            FlexibleID   `json:"id"`
	PlanID        FlexibleID   `json:"plan_id"`
	MaxProperties *int         `json:"max_properties" validate:"omitempty,min=0"`
	ExpiresAt     *string      `json:"expires_at"`
	Plan          *PlanPayload `json:"plan"`
}

type PlanPayload struct {
	ID            FlexibleID  `json:"id"`
	Name          string      `json:"name"`
	Price         json.Number `json:"price"`
	MaxProperties *int        `json:"max_properties" validate:"omitempty,min=0"`
	DurationDays  *int        `json:"duration_days"`
}

// FlexibleID accepts both numeric and string identifiers.
type FlexibleID string

func (f *FlexibleID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}

	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FlexibleID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*f = FlexibleID(n.String())
	return nil
}

func (f FlexibleID) Int64() int64 {
	n, err := strconv.ParseInt(string(f), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTimestamp(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", raw)
}

var validate = core.NewValidator()

// DecodeSession parses a /user body. A null or absent user yields
// core.ErrNoSession; anything that does not match the schema yields
// core.ErrMalformedResponse.
func DecodeSession(body []byte) (*Principal, error) {
	var env SessionEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode session: %w: %w", core.ErrMalformedResponse, err)
	}

	if env.User == nil {
		return nil, fmt.Errorf("decode session: %w", core.ErrNoSession)
	}

	return env.User.ToPrincipal()
}

func (u *UserPayload) ToPrincipal() (*Principal, error) {
	if err := validate.Struct(u); err != nil {
		return nil, fmt.Errorf(
			"decode session: %s: %w",
			core.FormatValidationError(err),
			core.ErrMalformedResponse,
		)
	}

	p := &Principal{
		ID:    string(u.ID),
		Name:  u.Name,
		Email: u.Email,
		Role:  u.Role,
	}

	if u.Subscription != nil {
		sub, err := u.Subscription.toSubscription()
		if err != nil {
			return nil, err
		}
		p.Subscription = sub
	}

	return p, nil
}

func (s *SubscriptionPayload) toSubscription() (*Subscription, error) {
	if err := validate.Struct(s); err != nil {
		return nil, fmt.Errorf(
			"decode subscription: %s: %w",
			core.FormatValidationError(err),
			core.ErrMalformedResponse,
		)
	}

	sub := &Subscription{
		ID:     s.ID.Int64(),
		PlanID: s.PlanID.Int64(),
	}

	if s.ExpiresAt != nil && strings.TrimSpace(*s.ExpiresAt) != "" {
		t, err := parseTimestamp(*s.ExpiresAt)
		if err != nil {
			return nil, fmt.Errorf(
				"decode subscription expires_at: %w: %w",
				core.ErrMalformedResponse,
				err,
			)
		}
		sub.ExpiresAt = &t
	}

	switch {
	case s.Plan != nil && s.Plan.MaxProperties != nil:
		sub.MaxProperties = *s.Plan.MaxProperties
	case s.MaxProperties != nil:
		sub.MaxProperties = *s.MaxProperties
	}

	if s.Plan != nil {
		plan, err := s.Plan.ToPlan()
		if err != nil {
			return nil, err
		}
		sub.Plan = plan
		if sub.PlanID == 0 {
			sub.PlanID = plan.ID
		}
	}

	return sub, nil
}

func (p *PlanPayload) ToPlan() (*Plan, error) {
	if err := validate.Struct(p); err != nil {
		return nil, fmt.Errorf(
			"decode plan: %s: %w",
			core.FormatValidationError(err),
			core.ErrMalformedResponse,
		)
	}

	plan := &Plan{
		ID:           p.ID.Int64(),
		Name:         p.Name,
		DurationDays: p.DurationDays,
	}

	if p.MaxProperties != nil {
		plan.MaxProperties = *p.MaxProperties
	}

	if p.Price != "" {
		price, err := p.Price.Float64()
		if err != nil {
			return nil, fmt.Errorf("decode plan price: %w: %w", core.ErrMalformedResponse, err)
		}
		plan.Price = price
	}

	return plan, nil
}
