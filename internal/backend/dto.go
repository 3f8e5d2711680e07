// AngelaMos | 2026
// dto.go

package backend

import (
	"bytes"
	"encoding/json"
	"net/url"
	"strconv"

	"github.com/carterperez-dev/templates/portal-gateway/internal/principal"
)

type Photo struct {
	ID       principal.FlexibleID `json:"id"`
	PhotoURL string               `json:"photo_url"`
}

type Owner struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type Property struct {
	ID           principal.FlexibleID `json:"id"`
	Title        string               `json:"title"`
	Description  string               `json:"description"`
	Price        principal.FlexibleID `json:"price"`
	Image        string               `json:"image,omitempty"`
	Area         json.Number          `json:"area"`
	Rooms        int                  `json:"rooms"`
	Bathrooms    int                  `json:"bathrooms"`
	Featured     bool                 `json:"featured"`
	PhotoGallery []Photo              `json:"photo_gallery,omitempty"`
	Owner        *Owner               `json:"owner,omitempty"`
	Address      string               `json:"address"`
	City         string               `json:"city"`
	Type         string               `json:"type"`
	OfferType    string               `json:"offer_type"`
}

// PropertyList decodes both a bare array and a {"data": [...]} page.
type PropertyList []Property

func (l *PropertyList) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '[' {
		var items []Property
		if err := json.Unmarshal(b, &items); err != nil {
			return err
		}
		*l = items
		return nil
	}

	var page struct {
		Data []Property `json:"data"`
	}
	if err := json.Unmarshal(b, &page); err != nil {
		return err
	}
	*l = page.Data
	return nil
}

type PriceRange struct {
	Label string   `json:"label"`
	Min   *float64 `json:"min"`
	Max   *float64 `json:"max"`
}

type PropertyOptions struct {
	Types       []string     `json:"types"`
	Offers      []string     `json:"offers"`
	Cities      []string     `json:"cities"`
	PriceRanges []PriceRange `json:"priceRanges"`
}

type SearchParams struct {
	Type      string   `json:"type"       validate:"omitempty,max=64"`
	OfferType string   `json:"offer_type" validate:"omitempty,max=64"`
	City      string   `json:"city"       validate:"omitempty,max=128"`
	MinPrice  *float64 `json:"min_price"  validate:"omitempty,min=0"`
	MaxPrice  *float64 `json:"max_price"  validate:"omitempty,min=0"`
}

// PriceRangeValid reports whether the bounds, when both present, are
// ordered.
func (p SearchParams) PriceRangeValid() bool {
	return p.MinPrice == nil || p.MaxPrice == nil || *p.MaxPrice >= *p.MinPrice
}

func (p SearchParams) Query() url.Values {
	q := url.Values{}
	if p.Type != "" {
		q.Set("type", p.Type)
	}
	if p.OfferType != "" {
		q.Set("offer_type", p.OfferType)
	}
	if p.City != "" {
		q.Set("city", p.City)
	}
	if p.MinPrice != nil {
		q.Set("min_price", strconv.FormatFloat(*p.MinPrice, 'f', -1, 64))
	}
	if p.MaxPrice != nil {
		q.Set("max_price", strconv.FormatFloat(*p.MaxPrice, 'f', -1, 64))
	}
	return q
}

type ContactRequest struct {
	ClientName    string `json:"client_name"              validate:"required,min=2,max=120"`
	Email         string `json:"email"                    validate:"required,email"`
	PhoneWhatsapp string `json:"phone_whatsapp,omitempty" validate:"omitempty,max=32"`
	Message       string `json:"message,omitempty"        validate:"omitempty,max=2000"`
	ProjectType   string `json:"project_type,omitempty"   validate:"omitempty,max=64"`
	LeadSource    string `json:"lead_source,omitempty"    validate:"omitempty,max=64"`
	PropertyID    int64  `json:"property_id"              validate:"required,gt=0"`
}

type ContactResponse struct {
	Status  string `json:"status,omitempty"`
	Message string `json:"message"`
}

type countResponse struct {
	Count *int `json:"count"`
}
