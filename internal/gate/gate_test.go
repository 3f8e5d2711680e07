// AngelaMos | 2026
// gate_test.go

package gate

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/templates/portal-gateway/internal/backend"
	"github.com/carterperez-dev/templates/portal-gateway/internal/config"
	"github.com/carterperez-dev/templates/portal-gateway/internal/core"
	"github.com/carterperez-dev/templates/portal-gateway/internal/entitlement"
	"github.com/carterperez-dev/templates/portal-gateway/internal/middleware"
	"github.com/carterperez-dev/templates/portal-gateway/internal/principal"
)

type SessionsMock struct {
	mock.Mock
}

func (m *SessionsMock) FetchPrincipal(ctx context.Context, creds backend.Credentials) (*principal.Principal, error) {
	args := m.Called(ctx, creds)
	p, _ := args.Get(0).(*principal.Principal)
	return p, args.Error(1)
}

type CounterMock struct {
	mock.Mock
}

func (m *CounterMock) CountProperties(ctx context.Context, creds backend.Credentials) (int, error) {
	args := m.Called(ctx, creds)
	return args.Int(0), args.Error(1)
}

type ObserverMock struct {
	mock.Mock
}

func (m *ObserverMock) ObserveGateDecision(state, action string) {
	m.Called(state, action)
}

type panickingSessions struct{}

func (panickingSessions) FetchPrincipal(context.Context, backend.Credentials) (*principal.Principal, error) {
	panic("boom")
}

var (
	now   = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	creds = backend.Credentials{Cookie: "laravel_session=abc", XSRFToken: "tok"}
)

func testRoutes() config.RoutesConfig {
	return config.RoutesConfig{
		AdminPrefix:  "/admin",
		OwnerPrefix:  "/owner",
		Login:        "/login",
		Subscription: "/owner/subscription",
		AddProperty:  "/owner/properties/add",
		PropertyList: "/owner/properties",
	}
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func newGate(sessions PrincipalFetcher, counter PropertyCounter) *Gate {
	return New(testRoutes(), sessions, counter,
		WithClock(func() time.Time { return now }),
		WithLogger(newNoopLogger()),
	)
}

func owner(sub *principal.Subscription) *principal.Principal {
	return &principal.Principal{ID: "7", Role: principal.RoleOwner, Subscription: sub}
}

func activeSub(maxProperties int) *principal.Subscription {
	expires := now.Add(30 * 24 * time.Hour)
	return &principal.Subscription{PlanID: 1, MaxProperties: maxProperties, ExpiresAt: &expires}
}

func expiredSub() *principal.Subscription {
	expires := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return &principal.Subscription{PlanID: 1, MaxProperties: 5, ExpiresAt: &expires}
}

func TestPublicPathsNeverFetch(t *testing.T) {
	sessions := new(SessionsMock)
	counter := new(CounterMock)
	g := newGate(sessions, counter)

	for _, path := range []string{"/", "/properties/12", "/search", "/login", "/register", "/adm"} {
		d := g.Decide(context.Background(), path, creds)
		assert.Equal(t, StateAllowed, d.State, path)
		assert.True(t, d.Allowed(), path)
		assert.Nil(t, d.Principal, path)
	}

	sessions.AssertNotCalled(t, "FetchPrincipal", mock.Anything, mock.Anything)
	counter.AssertNotCalled(t, "CountProperties", mock.Anything, mock.Anything)
}

func TestDecide(t *testing.T) {
	tests := []struct {
		name         string
		path         string
		principal    *principal.Principal
		sessionErr   error
		count        int
		countErr     error
		expectCount  bool
		wantState    State
		wantLocation string
	}{
		{
			name:         "no session",
			path:         "/owner/dashboard",
			sessionErr:   core.ErrNoSession,
			wantState:    StateUnauthenticated,
			wantLocation: "/login",
		},
		{
			name:         "nil principal without error",
			path:         "/admin/dashboard",
			wantState:    StateUnauthenticated,
			wantLocation: "/login",
		},
		{
			name:         "upstream failure fails closed",
			path:         "/admin/dashboard",
			sessionErr:   core.ErrUpstream,
			wantState:    StateUnauthenticated,
			wantLocation: "/login",
		},
		{
			name:         "malformed session fails closed",
			path:         "/owner/properties",
			sessionErr:   core.ErrMalformedResponse,
			wantState:    StateUnauthenticated,
			wantLocation: "/login",
		},
		{
			name:      "admin on admin route",
			path:      "/admin/owners",
			principal: &principal.Principal{ID: "1", Role: principal.RoleAdmin},
			wantState: StateAllowed,
		},
		{
			name:         "owner on admin route",
			path:         "/admin/dashboard",
			principal:    owner(activeSub(5)),
			wantState:    StateWrongRole,
			wantLocation: "/login",
		},
		{
			name:         "customer on owner route",
			path:         "/owner/dashboard",
			principal:    &principal.Principal{ID: "3", Role: principal.RoleCustomer},
			wantState:    StateWrongRole,
			wantLocation: "/login",
		},
		{
			name:         "admin on owner route",
			path:         "/owner/dashboard",
			principal:    &principal.Principal{ID: "1", Role: principal.RoleAdmin},
			wantState:    StateWrongRole,
			wantLocation: "/login",
		},
		{
			name:      "subscription page exempt without subscription",
			path:      "/owner/subscription",
			principal: owner(nil),
			wantState: StateAllowed,
		},
		{
			name:      "subscription page exempt when expired",
			path:      "/owner/subscription",
			principal: owner(expiredSub()),
			wantState: StateAllowed,
		},
		{
			name:         "owner without subscription",
			path:         "/owner/dashboard",
			principal:    owner(nil),
			wantState:    StateUnsubscribed,
			wantLocation: "/owner/subscription",
		},
		{
			name:         "expired subscription on add property",
			path:         "/owner/properties/add",
			principal:    owner(expiredSub()),
			wantState:    StateUnsubscribed,
			wantLocation: "/owner/subscription",
		},
		{
			name:      "never expiring subscription",
			path:      "/owner/properties",
			principal: owner(&principal.Subscription{MaxProperties: 1}),
			wantState: StateAllowed,
		},
		{
			name:        "add property with capacity",
			path:        "/owner/properties/add",
			principal:   owner(activeSub(5)),
			count:       4,
			expectCount: true,
			wantState:   StateAllowed,
		},
		{
			name:         "add property at limit",
			path:         "/owner/properties/add",
			principal:    owner(activeSub(5)),
			count:        5,
			expectCount:  true,
			wantState:    StateOverLimit,
			wantLocation: "/owner/properties",
		},
		{
			name:         "add property with zero limit",
			path:         "/owner/properties/add",
			principal:    owner(&principal.Subscription{}),
			count:        0,
			expectCount:  true,
			wantState:    StateOverLimit,
			wantLocation: "/owner/properties",
		},
		{
			name:         "dot segments cannot skip the admin check",
			path:         "/x/../admin/dashboard",
			sessionErr:   core.ErrNoSession,
			wantState:    StateUnauthenticated,
			wantLocation: "/login",
		},
		{
			name:         "double slash is still the admin prefix",
			path:         "//admin/owners",
			principal:    owner(activeSub(5)),
			wantState:    StateWrongRole,
			wantLocation: "/login",
		},
		{
			name:         "dot segments cannot skip the limit check",
			path:         "/owner/x/../properties/add",
			principal:    owner(activeSub(5)),
			count:        5,
			expectCount:  true,
			wantState:    StateOverLimit,
			wantLocation: "/owner/properties",
		},
		{
			name:         "count failure fails closed",
			path:         "/owner/properties/add",
			principal:    owner(activeSub(5)),
			countErr:     errors.New("connection refused"),
			expectCount:  true,
			wantState:    StateUnauthenticated,
			wantLocation: "/login",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sessions := new(SessionsMock)
			counter := new(CounterMock)

			sessions.On("FetchPrincipal", mock.Anything, creds).Return(tt.principal, tt.sessionErr).Once()
			if tt.expectCount {
				counter.On("CountProperties", mock.Anything, creds).Return(tt.count, tt.countErr).Once()
			}

			d := newGate(sessions, counter).Decide(context.Background(), tt.path, creds)

			assert.Equal(t, tt.wantState, d.State)
			assert.Equal(t, tt.wantLocation, d.Location)
			if tt.wantLocation == "" {
				assert.Equal(t, ActionContinue, d.Action)
			} else {
				assert.Equal(t, ActionRedirect, d.Action)
			}

			sessions.AssertExpectations(t)
			counter.AssertExpectations(t)
			if !tt.expectCount {
				counter.AssertNotCalled(t, "CountProperties", mock.Anything, mock.Anything)
			}
		})
	}
}

func TestCanonicalPath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"/", "/"},
		{"", "/"},
		{"/owner/dashboard", "/owner/dashboard"},
		{"/owner/properties/", "/owner/properties/"},
		{"/x/../admin/dashboard", "/admin/dashboard"},
		{"/../admin/owners", "/admin/owners"},
		{"//admin", "/admin"},
		{"/owner/./properties//add", "/owner/properties/add"},
		{`/owner\properties\add`, "/owner/properties/add"},
		{"admin", "/admin"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, CanonicalPath(tt.in), tt.in)
	}
}

func TestProtectedUsesCanonicalPath(t *testing.T) {
	g := newGate(new(SessionsMock), new(CounterMock))

	assert.True(t, g.Protected("/x/../admin/dashboard"))
	assert.True(t, g.Protected("//owner"))
	assert.False(t, g.Protected("/admin/../properties"))
}

func TestNoSessionIsNotLoggedAsFailure(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantWarn bool
	}{
		{name: "logged out visitor", err: fmt.Errorf("fetch principal: %w", core.ErrNoSession)},
		{name: "backend down", err: fmt.Errorf("fetch principal: %w", core.ErrUpstream), wantWarn: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			sessions := new(SessionsMock)
			sessions.On("FetchPrincipal", mock.Anything, creds).Return(nil, tt.err)

			g := New(testRoutes(), sessions, new(CounterMock),
				WithLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))),
			)
			d := g.Decide(context.Background(), "/owner/dashboard", creds)

			assert.Equal(t, "/login", d.Location)
			assert.Equal(t, tt.wantWarn, strings.Contains(buf.String(), "level=WARN"))
		})
	}
}

func TestExpiredOwnerScenario(t *testing.T) {
	sessions := new(SessionsMock)
	counter := new(CounterMock)

	expires := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	p := owner(&principal.Subscription{PlanID: 2, MaxProperties: 5, ExpiresAt: &expires})
	sessions.On("FetchPrincipal", mock.Anything, creds).Return(p, nil)

	d := newGate(sessions, counter).Decide(context.Background(), "/owner/properties/add", creds)

	assert.Equal(t, StateUnsubscribed, d.State)
	assert.Equal(t, "/owner/subscription", d.Location)
	counter.AssertNotCalled(t, "CountProperties", mock.Anything, mock.Anything)
}

func TestDecideIsIdempotent(t *testing.T) {
	sessions := new(SessionsMock)
	counter := new(CounterMock)
	sessions.On("FetchPrincipal", mock.Anything, creds).Return(owner(activeSub(3)), nil)
	counter.On("CountProperties", mock.Anything, creds).Return(3, nil)

	g := newGate(sessions, counter)
	first := g.Decide(context.Background(), "/owner/properties/add", creds)
	second := g.Decide(context.Background(), "/owner/properties/add", creds)

	assert.Equal(t, first.State, second.State)
	assert.Equal(t, first.Location, second.Location)
}

func TestPanicRedirectsToLogin(t *testing.T) {
	g := newGate(panickingSessions{}, new(CounterMock))

	var d Decision
	require.NotPanics(t, func() {
		d = g.Decide(context.Background(), "/admin/dashboard", creds)
	})
	assert.Equal(t, ActionRedirect, d.Action)
	assert.Equal(t, "/login", d.Location)
}

func TestDecisionsAreObserved(t *testing.T) {
	sessions := new(SessionsMock)
	sessions.On("FetchPrincipal", mock.Anything, creds).Return(nil, core.ErrNoSession)

	obs := new(ObserverMock)
	obs.On("ObserveGateDecision", "Allowed", "continue").Once()
	obs.On("ObserveGateDecision", "Unauthenticated", "redirect").Once()

	g := New(testRoutes(), sessions, new(CounterMock),
		WithObserver(obs),
		WithLogger(newNoopLogger()),
	)

	g.Decide(context.Background(), "/", creds)
	g.Decide(context.Background(), "/owner/dashboard", creds)

	obs.AssertExpectations(t)
}

func TestGateAndNavAgree(t *testing.T) {
	tests := []struct {
		name  string
		sub   *principal.Subscription
		count int
	}{
		{name: "below limit", sub: activeSub(5), count: 2},
		{name: "at limit", sub: activeSub(5), count: 5},
		{name: "expired", sub: expiredSub(), count: 0},
		{name: "no subscription", sub: nil, count: 0},
		{name: "zero limit", sub: &principal.Subscription{}, count: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sessions := new(SessionsMock)
			counter := new(CounterMock)
			sessions.On("FetchPrincipal", mock.Anything, creds).Return(owner(tt.sub), nil)
			counter.On("CountProperties", mock.Anything, creds).Return(tt.count, nil).Maybe()

			g := newGate(sessions, counter)
			nav := entitlement.OwnerNav(entitlement.DefaultOwnerRoutes(), tt.sub, tt.count, now)

			dash := g.Decide(context.Background(), "/owner/dashboard", creds)
			add := g.Decide(context.Background(), "/owner/properties/add", creds)

			assert.Equal(t, nav.AllOwnerLinksEnabled, dash.Allowed())
			assert.Equal(t, nav.CanAddProperty, add.Allowed())
		})
	}
}

func TestMiddlewareRedirectsNonCanonicalPaths(t *testing.T) {
	tests := []struct {
		name         string
		target       string
		wantLocation string
	}{
		{"dot segments", "/x/../admin/dashboard", "/admin/dashboard"},
		{"encoded dot segments", "/%2e%2e/admin/owners", "/admin/owners"},
		{"double slash", "//admin", "/admin"},
		{"encoded slash", "/owner%2Fproperties/add", "/owner/properties/add"},
		{"query is kept", "/owner/x/../properties/add?draft=1", "/owner/properties/add?draft=1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sessions := new(SessionsMock)
			g := newGate(sessions, new(CounterMock))

			called := false
			next := http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true })

			rec := httptest.NewRecorder()
			g.Middleware(func(*http.Request) backend.Credentials { return creds })(next).
				ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.target, nil))

			assert.Equal(t, http.StatusFound, rec.Code)
			assert.Equal(t, tt.wantLocation, rec.Header().Get("Location"))
			assert.False(t, called)
			sessions.AssertNotCalled(t, "FetchPrincipal", mock.Anything, mock.Anything)
		})
	}
}

func TestMiddlewareGatesCanonicalTarget(t *testing.T) {
	sessions := new(SessionsMock)
	sessions.On("FetchPrincipal", mock.Anything, creds).Return(nil, core.ErrNoSession).Once()
	g := newGate(sessions, new(CounterMock))
	h := g.Middleware(func(*http.Request) backend.Credentials { return creds })(
		http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			t.Fatal("unauthenticated request reached the renderer")
		}),
	)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/%2e%2e/admin/owners", nil))
	require.Equal(t, http.StatusFound, rec.Code)

	follow := httptest.NewRecorder()
	h.ServeHTTP(follow, httptest.NewRequest(http.MethodGet, rec.Header().Get("Location"), nil))

	assert.Equal(t, http.StatusFound, follow.Code)
	assert.Equal(t, "/login", follow.Header().Get("Location"))
	sessions.AssertExpectations(t)
}

func TestMiddleware(t *testing.T) {
	credsOf := func(r *http.Request) backend.Credentials {
		return backend.Credentials{Cookie: r.Header.Get("Cookie"), XSRFToken: "tok"}
	}

	tests := []struct {
		name         string
		method       string
		path         string
		principal    *principal.Principal
		sessionErr   error
		wantStatus   int
		wantLocation string
		wantNext     bool
	}{
		{
			name:       "public page passes through",
			method:     http.MethodGet,
			path:       "/properties",
			wantStatus: http.StatusOK,
			wantNext:   true,
		},
		{
			name:         "no session redirects with 302",
			method:       http.MethodGet,
			path:         "/owner/dashboard",
			sessionErr:   core.ErrNoSession,
			wantStatus:   http.StatusFound,
			wantLocation: "/login",
		},
		{
			name:         "form post redirects with 303",
			method:       http.MethodPost,
			path:         "/admin/plans",
			principal:    owner(activeSub(1)),
			wantStatus:   http.StatusSeeOther,
			wantLocation: "/login",
		},
		{
			name:       "admin passes with principal headers",
			method:     http.MethodGet,
			path:       "/admin/dashboard",
			principal:  &principal.Principal{ID: "1", Role: principal.RoleAdmin},
			wantStatus: http.StatusOK,
			wantNext:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sessions := new(SessionsMock)
			sessions.On("FetchPrincipal", mock.Anything, mock.Anything).Return(tt.principal, tt.sessionErr).Maybe()

			g := newGate(sessions, new(CounterMock))

			called := false
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
				if tt.principal != nil {
					assert.Equal(t, tt.principal.ID, r.Header.Get(HeaderUserID))
					assert.Equal(t, tt.principal.Role, r.Header.Get(HeaderUserRole))
					assert.Equal(t, tt.principal, middleware.GetPrincipal(r.Context()))
				} else {
					assert.Empty(t, r.Header.Get(HeaderUserID))
					assert.Empty(t, r.Header.Get(HeaderUserRole))
				}
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(tt.method, tt.path, nil)
			req.Header.Set("Cookie", "laravel_session=abc")
			req.Header.Set(HeaderUserID, "999")
			req.Header.Set(HeaderUserRole, "admin")
			rec := httptest.NewRecorder()

			g.Middleware(credsOf)(next).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantLocation, rec.Header().Get("Location"))
			assert.Equal(t, tt.wantNext, called)
		})
	}
}
