// AngelaMos | 2026
// auth.go

package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/carterperez-dev/templates/portal-gateway/internal/backend"
	"github.com/carterperez-dev/templates/portal-gateway/internal/core"
	"github.com/carterperez-dev/templates/portal-gateway/internal/principal"
)

type contextKey string

const (
	RequestIDKey contextKey = "request_id"
	PrincipalKey contextKey = "principal"
	CredsKey     contextKey = "backend_credentials"
)

type SessionFetcher interface {
	FetchPrincipal(
		ctx context.Context,
		creds backend.Credentials,
	) (*principal.Principal, error)
}

// CredentialsFunc pulls the forwarded session material out of a request.
type CredentialsFunc func(r *http.Request) backend.Credentials

// Authenticator resolves the caller's session for JSON routes. Unlike the
// page gate it answers with an error envelope instead of redirecting.
func Authenticator(sessions SessionFetcher, credsOf CredentialsFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			creds := credsOf(r)

			if creds.Cookie == "" {
				core.JSONError(w, core.UnauthorizedError("missing session cookie"))
				return
			}

			p, err := sessions.FetchPrincipal(r.Context(), creds)
			if err != nil {
				handleAuthError(w, err)
				return
			}

			ctx := WithPrincipal(r.Context(), p)
			ctx = context.WithValue(ctx, CredsKey, creds)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func OptionalAuth(sessions SessionFetcher, credsOf CredentialsFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			creds := credsOf(r)
			ctx := context.WithValue(r.Context(), CredsKey, creds)

			if creds.Cookie != "" {
				if p, err := sessions.FetchPrincipal(ctx, creds); err == nil {
					ctx = WithPrincipal(ctx, p)
				}
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func RequireRole(roles ...string) func(http.Handler) http.Handler {
	roleSet := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		roleSet[role] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userRole := GetUserRole(r.Context())

			if userRole == "" {
				core.JSONError(
					w,
					core.UnauthorizedError("authentication required"),
				)
				return
			}

			if _, ok := roleSet[userRole]; !ok {
				core.JSONError(
					w,
					core.ForbiddenError("insufficient permissions"),
				)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func RequireAdmin(next http.Handler) http.Handler {
	return RequireRole(principal.RoleAdmin)(next)
}

func RequireOwner(next http.Handler) http.Handler {
	return RequireRole(principal.RoleOwner)(next)
}

func handleAuthError(w http.ResponseWriter, err error) {
	if core.IsAppError(err) {
		core.JSONError(w, err)
		return
	}

	switch {
	case errors.Is(err, core.ErrNoSession):
		core.JSONError(w, core.NoSessionError())
	case errors.Is(err, core.ErrMalformedResponse), errors.Is(err, core.ErrUpstream):
		core.BadGateway(w, err)
	default:
		core.JSONError(w, core.UnauthorizedError(""))
	}
}

func WithPrincipal(ctx context.Context, p *principal.Principal) context.Context {
	return context.WithValue(ctx, PrincipalKey, p)
}

func GetPrincipal(ctx context.Context) *principal.Principal {
	if p, ok := ctx.Value(PrincipalKey).(*principal.Principal); ok {
		return p
	}
	return nil
}

func GetCredentials(ctx context.Context) backend.Credentials {
	if c, ok := ctx.Value(CredsKey).(backend.Credentials); ok {
		return c
	}
	return backend.Credentials{}
}

func GetUserID(ctx context.Context) string {
	if p := GetPrincipal(ctx); p != nil {
		return p.ID
	}
	return ""
}

func GetUserRole(ctx context.Context) string {
	if p := GetPrincipal(ctx); p != nil {
		return p.Role
	}
	return ""
}
