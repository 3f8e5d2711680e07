// AngelaMos | 2026
// proxy.go

package web

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/carterperez-dev/templates/portal-gateway/internal/config"
)

// NewProxy forwards allowed navigations to the web renderer. The caller's
// Host is preserved so rendered absolute links keep pointing at the
// gateway.
func NewProxy(cfg config.FrontendConfig, logger *slog.Logger) (*httputil.ReverseProxy, error) {
	target, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse frontend url: %w", err)
	}
	if target.Scheme == "" || target.Host == "" {
		return nil, fmt.Errorf("frontend url %q must be absolute", cfg.URL)
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.SetXForwarded()
			pr.Out.Host = pr.In.Host
		},
		Transport:     otelhttp.NewTransport(http.DefaultTransport),
		FlushInterval: 100 * time.Millisecond,
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			logger.Error("frontend proxy failed",
				"path", r.URL.Path,
				"error", err,
			)
			http.Error(w, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)
		},
	}, nil
}
