// AngelaMos | 2026
// session.go

package backend

import (
	"context"
	"fmt"
	"net/http"

	"github.com/carterperez-dev/templates/portal-gateway/internal/core"
	"github.com/carterperez-dev/templates/portal-gateway/internal/principal"
)

const (
	endpointUser          = "/user"
	endpointPropertyCount = "/owner/properties/count"
)

// FetchPrincipal resolves the caller's session against GET /user.
// A rejected or empty session is reported as core.ErrNoSession.
func (c *Client) FetchPrincipal(ctx context.Context, creds Credentials) (*principal.Principal, error) {
	var body []byte
	err := c.do(ctx, request{
		method:   http.MethodGet,
		path:     endpointUser,
		endpoint: endpointUser,
		creds:    &creds,
	}, &body)
	if err != nil {
		return nil, fmt.Errorf("fetch principal: %w", err)
	}

	p, err := principal.DecodeSession(body)
	if err != nil {
		return nil, fmt.Errorf("fetch principal: %w", err)
	}

	return p, nil
}

// CountProperties returns how many listings the caller owns. A missing
// count field is read as zero.
func (c *Client) CountProperties(ctx context.Context, creds Credentials) (int, error) {
	var resp countResponse
	err := c.do(ctx, request{
		method:   http.MethodGet,
		path:     endpointPropertyCount,
		endpoint: endpointPropertyCount,
		creds:    &creds,
	}, &resp)
	if err != nil {
		return 0, fmt.Errorf("count properties: %w", err)
	}

	if resp.Count == nil {
		return 0, nil
	}
	if *resp.Count < 0 {
		return 0, fmt.Errorf("count properties: negative count: %w", core.ErrMalformedResponse)
	}

	return *resp.Count, nil
}
