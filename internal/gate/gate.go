// AngelaMos | 2026
// gate.go

// Package gate decides, per navigation, whether a browser may reach a
// portal page or must be redirected elsewhere.
package gate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/carterperez-dev/templates/portal-gateway/internal/backend"
	"github.com/carterperez-dev/templates/portal-gateway/internal/config"
	"github.com/carterperez-dev/templates/portal-gateway/internal/core"
	"github.com/carterperez-dev/templates/portal-gateway/internal/entitlement"
	"github.com/carterperez-dev/templates/portal-gateway/internal/principal"
)

type State string

const (
	StateUnchecked       State = "Unchecked"
	StateUnauthenticated State = "Unauthenticated"
	StateWrongRole       State = "WrongRole"
	StateUnsubscribed    State = "Unsubscribed"
	StateOverLimit       State = "OverLimit"
	StateAllowed         State = "Allowed"
)

type Action string

const (
	ActionContinue Action = "continue"
	ActionRedirect Action = "redirect"
)

// Decision is the outcome of one gate evaluation. Location is set only
// when Action is ActionRedirect. Principal is set whenever the session
// was resolved.
type Decision struct {
	State     State
	Action    Action
	Location  string
	Principal *principal.Principal
}

func (d Decision) Allowed() bool {
	return d.Action == ActionContinue
}

type PrincipalFetcher interface {
	FetchPrincipal(ctx context.Context, creds backend.Credentials) (*principal.Principal, error)
}

type PropertyCounter interface {
	CountProperties(ctx context.Context, creds backend.Credentials) (int, error)
}

type DecisionObserver interface {
	ObserveGateDecision(state, action string)
}

type Gate struct {
	routes   config.RoutesConfig
	sessions PrincipalFetcher
	counter  PropertyCounter
	observer DecisionObserver
	logger   *slog.Logger
	now      func() time.Time
}

type Option func(*Gate)

func WithClock(now func() time.Time) Option {
	return func(g *Gate) {
		g.now = now
	}
}

func WithObserver(o DecisionObserver) Option {
	return func(g *Gate) {
		g.observer = o
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(g *Gate) {
		g.logger = l
	}
}

func New(
	routes config.RoutesConfig,
	sessions PrincipalFetcher,
	counter PropertyCounter,
	opts ...Option,
) *Gate {
	g := &Gate{
		routes:   routes,
		sessions: sessions,
		counter:  counter,
		logger:   slog.Default(),
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

// Protected reports whether path needs a session at all.
func (g *Gate) Protected(path string) bool {
	path = CanonicalPath(path)
	return strings.HasPrefix(path, g.routes.AdminPrefix) ||
		strings.HasPrefix(path, g.routes.OwnerPrefix)
}

// Decide runs the ordered checks for the canonical form of path. It never
// returns an error: every failure collapses into a redirect to the login
// page.
func (g *Gate) Decide(ctx context.Context, path string, creds backend.Credentials) (d Decision) {
	path = CanonicalPath(path)

	defer func() {
		if r := recover(); r != nil {
			g.logger.Error("gate panic",
				"path", path,
				"panic", fmt.Sprint(r),
			)
			d = g.toLogin(StateUnauthenticated, nil)
		}
		g.record(ctx, path, d)
	}()

	if !g.Protected(path) {
		return Decision{State: StateAllowed, Action: ActionContinue}
	}

	p, err := g.sessions.FetchPrincipal(ctx, creds)
	if err != nil || p == nil {
		switch {
		case errors.Is(err, core.ErrNoSession):
			g.logger.Debug("no active session", "path", path)
		case err != nil:
			core.SetSpanError(ctx, err)
			g.logger.Warn("session lookup failed",
				"path", path,
				"error", err,
			)
		}
		return g.toLogin(StateUnauthenticated, nil)
	}

	if strings.HasPrefix(path, g.routes.AdminPrefix) && !p.IsAdmin() {
		return g.toLogin(StateWrongRole, p)
	}

	if !strings.HasPrefix(path, g.routes.OwnerPrefix) {
		return allow(p)
	}

	if !p.IsOwner() {
		return g.toLogin(StateWrongRole, p)
	}

	if path == g.routes.Subscription {
		return allow(p)
	}

	if !entitlement.IsEntitled(p.Subscription, g.now()) {
		return Decision{
			State:     StateUnsubscribed,
			Action:    ActionRedirect,
			Location:  g.routes.Subscription,
			Principal: p,
		}
	}

	if path != g.routes.AddProperty {
		return allow(p)
	}

	count, err := g.counter.CountProperties(ctx, creds)
	if err != nil {
		core.SetSpanError(ctx, err)
		g.logger.Warn("property count lookup failed",
			"path", path,
			"user_id", p.ID,
			"error", err,
		)
		return g.toLogin(StateUnauthenticated, p)
	}

	if entitlement.ReachedLimit(count, p.Subscription.MaxProperties) {
		return Decision{
			State:     StateOverLimit,
			Action:    ActionRedirect,
			Location:  g.routes.PropertyList,
			Principal: p,
		}
	}

	return allow(p)
}

func allow(p *principal.Principal) Decision {
	return Decision{State: StateAllowed, Action: ActionContinue, Principal: p}
}

func (g *Gate) toLogin(state State, p *principal.Principal) Decision {
	return Decision{
		State:     state,
		Action:    ActionRedirect,
		Location:  g.routes.Login,
		Principal: p,
	}
}

func (g *Gate) record(ctx context.Context, path string, d Decision) {
	core.AddSpanEvent(ctx, "gate.decision",
		attribute.String("gate.state", string(d.State)),
		attribute.String("gate.action", string(d.Action)),
	)

	if g.observer != nil {
		g.observer.ObserveGateDecision(string(d.State), string(d.Action))
	}

	if d.Allowed() {
		g.logger.Debug("gate allowed", "path", path, "state", d.State)
		return
	}
	g.logger.Info("gate redirect",
		"path", path,
		"state", d.State,
		"location", d.Location,
	)
}
