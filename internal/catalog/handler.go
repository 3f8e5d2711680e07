// AngelaMos | 2026
// handler.go

package catalog

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/carterperez-dev/templates/portal-gateway/internal/backend"
	"github.com/carterperez-dev/templates/portal-gateway/internal/core"
)

const maxInquiryBytes = 64 << 10

type Handler struct {
	service   *Service
	validator *validator.Validate
	credsOf   func(*http.Request) backend.Credentials
}

func NewHandler(service *Service, credsOf func(*http.Request) backend.Credentials) *Handler {
	return &Handler{
		service:   service,
		validator: core.NewValidator(),
		credsOf:   credsOf,
	}
}

// RegisterRoutes mounts the public catalogue. inquiryGuard wraps only the
// contact form, which is the one route that spends the caller's session.
func (h *Handler) RegisterRoutes(r chi.Router, inquiryGuard func(http.Handler) http.Handler) {
	r.Get("/properties", h.ListProperties)
	r.Get("/properties/{propertyID}", h.GetProperty)
	r.Get("/search", h.Search)
	r.Get("/property-options", h.PropertyOptions)
	r.With(inquiryGuard).Post("/contact-owner", h.ContactOwner)
}

func (h *Handler) ListProperties(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListProperties(r.Context())
	if err != nil {
		writeUpstreamError(w, err, "properties")
		return
	}

	core.OK(w, list)
}

func (h *Handler) GetProperty(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "propertyID")
	if _, err := strconv.ParseUint(id, 10, 64); err != nil {
		core.BadRequest(w, "property id must be a positive integer")
		return
	}

	p, err := h.service.GetProperty(r.Context(), id)
	if err != nil {
		writeUpstreamError(w, err, "property")
		return
	}

	core.OK(w, p)
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	params, err := parseSearchParams(r.URL.Query())
	if err != nil {
		core.BadRequest(w, err.Error())
		return
	}

	if err := h.validator.Struct(params); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	if !params.PriceRangeValid() {
		core.BadRequest(w, "max_price must not be less than min_price")
		return
	}

	list, err := h.service.Search(r.Context(), params)
	if err != nil {
		writeUpstreamError(w, err, "properties")
		return
	}

	core.OK(w, list)
}

func (h *Handler) PropertyOptions(w http.ResponseWriter, r *http.Request) {
	opts, err := h.service.PropertyOptions(r.Context())
	if err != nil {
		writeUpstreamError(w, err, "property options")
		return
	}

	core.OK(w, opts)
}

func (h *Handler) ContactOwner(w http.ResponseWriter, r *http.Request) {
	var req backend.ContactRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxInquiryBytes))
	if err := dec.Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	req.ClientName = strings.TrimSpace(req.ClientName)
	req.Email = strings.TrimSpace(req.Email)

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	resp, err := h.service.ContactOwner(r.Context(), h.credsOf(r), req)
	if err != nil {
		writeUpstreamError(w, err, "property")
		return
	}

	core.Created(w, resp)
}

func parseSearchParams(q url.Values) (backend.SearchParams, error) {
	params := backend.SearchParams{
		Type:      strings.TrimSpace(q.Get("type")),
		OfferType: strings.TrimSpace(q.Get("offer_type")),
		City:      strings.TrimSpace(q.Get("city")),
	}

	var err error
	if params.MinPrice, err = parsePrice(q, "min_price"); err != nil {
		return params, err
	}
	if params.MaxPrice, err = parsePrice(q, "max_price"); err != nil {
		return params, err
	}

	return params, nil
}

func parsePrice(q url.Values, name string) (*float64, error) {
	raw := strings.TrimSpace(q.Get(name))
	if raw == "" {
		return nil, nil
	}

	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, errors.New(name + " must be a number")
	}
	return &v, nil
}

func writeUpstreamError(w http.ResponseWriter, err error, resource string) {
	switch {
	case errors.Is(err, core.ErrNotFound):
		core.NotFound(w, resource)
	case errors.Is(err, core.ErrInvalidInput):
		core.BadRequest(w, "rejected by upstream")
	case errors.Is(err, core.ErrNoSession):
		core.JSONError(w, core.NoSessionError())
	case errors.Is(err, core.ErrUpstream), errors.Is(err, core.ErrMalformedResponse):
		core.BadGateway(w, err)
	default:
		core.InternalServerError(w, err)
	}
}
