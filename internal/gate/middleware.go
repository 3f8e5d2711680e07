// AngelaMos | 2026
// middleware.go

package gate

import (
	"net/http"

	"github.com/carterperez-dev/templates/portal-gateway/internal/backend"
	"github.com/carterperez-dev/templates/portal-gateway/internal/middleware"
)

const (
	HeaderUserID   = "X-Portal-User-Id"
	HeaderUserRole = "X-Portal-User-Role"
)

// Middleware enforces Decide on every navigation. Non-canonical paths are
// first redirected to their canonical form, so only paths the gate has
// judged reach next. Redirects are silent; the reason only reaches logs
// and metrics.
func (g *Gate) Middleware(credsOf func(*http.Request) backend.Credentials) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Header.Del(HeaderUserID)
			r.Header.Del(HeaderUserRole)

			if target, ok := canonicalTarget(r); !ok {
				g.logger.Info("gate canonical redirect",
					"path", r.URL.EscapedPath(),
					"location", target,
				)
				http.Redirect(w, r, target, redirectStatus(r.Method))
				return
			}

			d := g.Decide(r.Context(), r.URL.Path, credsOf(r))

			if !d.Allowed() {
				http.Redirect(w, r, d.Location, redirectStatus(r.Method))
				return
			}

			ctx := r.Context()
			if d.Principal != nil {
				ctx = middleware.WithPrincipal(ctx, d.Principal)
				r.Header.Set(HeaderUserID, d.Principal.ID)
				r.Header.Set(HeaderUserRole, d.Principal.Role)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func redirectStatus(method string) int {
	if method == http.MethodGet || method == http.MethodHead {
		return http.StatusFound
	}
	return http.StatusSeeOther
}
