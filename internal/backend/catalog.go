// AngelaMos | 2026
// catalog.go

package backend

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/carterperez-dev/templates/portal-gateway/internal/principal"
)

const (
	endpointProperties      = "/properties"
	endpointProperty        = "/properties/{id}"
	endpointSearch          = "/search-properties"
	endpointPropertyOptions = "/property-options"
	endpointContactOwner    = "/contact-owner"
	endpointPlans           = "/owner/plans"
)

func (c *Client) ListProperties(ctx context.Context) ([]Property, error) {
	var list PropertyList
	err := c.do(ctx, request{
		method:   http.MethodGet,
		path:     endpointProperties,
		endpoint: endpointProperties,
	}, &list)
	if err != nil {
		return nil, fmt.Errorf("list properties: %w", err)
	}
	return list, nil
}

func (c *Client) GetProperty(ctx context.Context, id string) (*Property, error) {
	var p Property
	err := c.do(ctx, request{
		method:   http.MethodGet,
		path:     "/properties/" + url.PathEscape(id),
		endpoint: endpointProperty,
	}, &p)
	if err != nil {
		return nil, fmt.Errorf("get property %s: %w", id, err)
	}
	return &p, nil
}

func (c *Client) SearchProperties(ctx context.Context, params SearchParams) ([]Property, error) {
	var list PropertyList
	err := c.do(ctx, request{
		method:   http.MethodGet,
		path:     endpointSearch,
		endpoint: endpointSearch,
		query:    params.Query(),
	}, &list)
	if err != nil {
		return nil, fmt.Errorf("search properties: %w", err)
	}
	return list, nil
}

func (c *Client) PropertyOptions(ctx context.Context) (*PropertyOptions, error) {
	var opts PropertyOptions
	err := c.do(ctx, request{
		method:   http.MethodGet,
		path:     endpointPropertyOptions,
		endpoint: endpointPropertyOptions,
	}, &opts)
	if err != nil {
		return nil, fmt.Errorf("property options: %w", err)
	}
	return &opts, nil
}

// ContactOwner forwards an inquiry with the caller's own session so the
// remote API can attribute it.
func (c *Client) ContactOwner(
	ctx context.Context,
	creds Credentials,
	req ContactRequest,
) (*ContactResponse, error) {
	var resp ContactResponse
	err := c.do(ctx, request{
		method:   http.MethodPost,
		path:     endpointContactOwner,
		endpoint: endpointContactOwner,
		creds:    &creds,
		body:     req,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("contact owner: %w", err)
	}
	if resp.Message == "" {
		resp.Message = "Submitted successfully."
	}
	return &resp, nil
}

func (c *Client) ListPlans(ctx context.Context, creds Credentials) ([]principal.Plan, error) {
	var payloads []principal.PlanPayload
	err := c.do(ctx, request{
		method:   http.MethodGet,
		path:     endpointPlans,
		endpoint: endpointPlans,
		creds:    &creds,
	}, &payloads)
	if err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}

	plans := make([]principal.Plan, 0, len(payloads))
	for i := range payloads {
		plan, err := payloads[i].ToPlan()
		if err != nil {
			return nil, fmt.Errorf("list plans: %w", err)
		}
		plans = append(plans, *plan)
	}
	return plans, nil
}

// Ping reports whether the remote API answers. Client errors such as an
// auth rejection still count as reachable.
func (c *Client) Ping(ctx context.Context) error {
	err := c.do(ctx, request{
		method:   http.MethodGet,
		path:     endpointPropertyOptions,
		endpoint: endpointPropertyOptions,
	}, nil)
	if err == nil {
		return nil
	}
	if se, ok := asStatus(err); ok && se.StatusCode < http.StatusInternalServerError {
		return nil
	}
	return fmt.Errorf("ping backend: %w", err)
}
