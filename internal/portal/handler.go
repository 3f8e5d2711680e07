// AngelaMos | 2026
// handler.go

package portal

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/carterperez-dev/templates/portal-gateway/internal/backend"
	"github.com/carterperez-dev/templates/portal-gateway/internal/config"
	"github.com/carterperez-dev/templates/portal-gateway/internal/core"
	"github.com/carterperez-dev/templates/portal-gateway/internal/entitlement"
	"github.com/carterperez-dev/templates/portal-gateway/internal/middleware"
	"github.com/carterperez-dev/templates/portal-gateway/internal/principal"
)

type Upstream interface {
	CountProperties(ctx context.Context, creds backend.Credentials) (int, error)
	ListPlans(ctx context.Context, creds backend.Credentials) ([]principal.Plan, error)
}

type Handler struct {
	upstream Upstream
	routes   entitlement.OwnerRoutes
	logger   *slog.Logger
	now      func() time.Time
}

func NewHandler(upstream Upstream, routes config.RoutesConfig, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}

	return &Handler{
		upstream: upstream,
		routes:   OwnerRoutesFrom(routes),
		logger:   logger,
		now:      time.Now,
	}
}

// OwnerRoutesFrom derives the owner sidebar targets from the gate's route
// table so both always point at the same pages.
func OwnerRoutesFrom(routes config.RoutesConfig) entitlement.OwnerRoutes {
	return entitlement.OwnerRoutes{
		Dashboard:       routes.OwnerPrefix + "/dashboard",
		PropertyList:    routes.PropertyList,
		AddProperty:     routes.AddProperty,
		Subscription:    routes.Subscription,
		ContactMessages: routes.OwnerPrefix + "/contact-messages",
	}
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator, ownerOnly func(http.Handler) http.Handler,
) {
	r.Route("/portal", func(r chi.Router) {
		r.Use(authenticator)

		r.Get("/nav", h.GetNav)
		r.With(ownerOnly).Get("/plans", h.ListPlans)
	})
}

func (h *Handler) GetNav(w http.ResponseWriter, r *http.Request) {
	p := middleware.GetPrincipal(r.Context())
	if p == nil {
		core.Unauthorized(w, "")
		return
	}

	resp := NavResponse{Role: p.Role}

	switch {
	case p.IsAdmin():
		resp.Links = entitlement.AdminNav()
	case p.IsOwner():
		state := h.ownerNav(r.Context(), p)
		resp.Owner = &state
		resp.Links = state.Links
	default:
		resp.Links = []entitlement.NavLink{}
	}

	core.OK(w, resp)
}

// ownerNav only asks for the listing count when it could change the
// answer. A failed count disables the add link rather than the page.
func (h *Handler) ownerNav(ctx context.Context, p *principal.Principal) entitlement.NavState {
	now := h.now()

	if !entitlement.IsEntitled(p.Subscription, now) {
		return entitlement.OwnerNav(h.routes, p.Subscription, 0, now)
	}

	count, err := h.upstream.CountProperties(ctx, middleware.GetCredentials(ctx))
	if err != nil {
		h.logger.Warn("nav property count failed",
			"user_id", p.ID,
			"error", err,
		)
		count = p.Subscription.MaxProperties
	}

	return entitlement.OwnerNav(h.routes, p.Subscription, count, now)
}

func (h *Handler) ListPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := h.upstream.ListPlans(r.Context(), middleware.GetCredentials(r.Context()))
	if err != nil {
		switch {
		case errors.Is(err, core.ErrNoSession):
			core.JSONError(w, core.NoSessionError())
		case errors.Is(err, core.ErrUpstream), errors.Is(err, core.ErrMalformedResponse):
			core.BadGateway(w, err)
		default:
			core.InternalServerError(w, err)
		}
		return
	}

	core.OK(w, PlansResponse{Plans: plans, Current: currentPlanID(r.Context())})
}

func currentPlanID(ctx context.Context) *int64 {
	p := middleware.GetPrincipal(ctx)
	if p == nil || p.Subscription == nil || p.Subscription.PlanID == 0 {
		return nil
	}
	id := p.Subscription.PlanID
	return &id
}

type NavResponse struct {
	Role  string                `json:"role"`
	Owner *entitlement.NavState `json:"owner,omitempty"`
	Links []entitlement.NavLink `json:"links"`
}

type PlansResponse struct {
	Plans   []principal.Plan `json:"plans"`
	Current *int64           `json:"current_plan_id"`
}
