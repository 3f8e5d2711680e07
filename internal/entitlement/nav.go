// AngelaMos | 2026
// nav.go

package entitlement

import (
	"time"

	"github.com/carterperez-dev/templates/portal-gateway/internal/principal"
)

const (
	TooltipNotSubscribed = "Subscribe to a plan to unlock this section"
	TooltipLimitReached  = "You have reached the property limit of your plan"
)

type NavLink struct {
	Label    string    `json:"label"`
	Href     string    `json:"href"`
	Enabled  bool      `json:"enabled"`
	Tooltip  string    `json:"tooltip,omitempty"`
	Children []NavLink `json:"children,omitempty"`
}

type NavState struct {
	AllOwnerLinksEnabled bool       `json:"all_owner_links_enabled"`
	CanAddProperty       bool       `json:"can_add_property"`
	PropertyCount        int        `json:"property_count"`
	MaxProperties        int        `json:"max_properties"`
	ExpiresAt            *time.Time `json:"expires_at"`
	Links                []NavLink  `json:"links"`
}

type OwnerRoutes struct {
	Dashboard       string
	PropertyList    string
	AddProperty     string
	Subscription    string
	ContactMessages string
}

func DefaultOwnerRoutes() OwnerRoutes {
	return OwnerRoutes{
		Dashboard:       "/owner/dashboard",
		PropertyList:    "/owner/properties",
		AddProperty:     "/owner/properties/add",
		Subscription:    "/owner/subscription",
		ContactMessages: "/owner/contact-messages",
	}
}

// OwnerNav computes the owner sidebar. It is display state only; the
// gate re-derives the same answer on every navigation.
func OwnerNav(
	routes OwnerRoutes,
	sub *principal.Subscription,
	count int,
	now time.Time,
) NavState {
	subscribed := IsEntitled(sub, now)

	maxProperties := 0
	var expiresAt *time.Time
	if sub != nil {
		maxProperties = sub.MaxProperties
		expiresAt = sub.ExpiresAt
	}

	canAdd := subscribed && HasCapacity(count, maxProperties)

	gated := func(label, href string) NavLink {
		link := NavLink{Label: label, Href: href, Enabled: subscribed}
		if !subscribed {
			link.Tooltip = TooltipNotSubscribed
		}
		return link
	}

	addLink := gated("Add Property", routes.AddProperty)
	if subscribed && !canAdd {
		addLink.Enabled = false
		addLink.Tooltip = TooltipLimitReached
	}

	properties := gated("Properties", routes.PropertyList)
	properties.Children = []NavLink{
		gated("All Properties", routes.PropertyList),
		addLink,
	}

	return NavState{
		AllOwnerLinksEnabled: subscribed,
		CanAddProperty:       canAdd,
		PropertyCount:        count,
		MaxProperties:        maxProperties,
		ExpiresAt:            expiresAt,
		Links: []NavLink{
			gated("Dashboard", routes.Dashboard),
			properties,
			{Label: "Subscription", Href: routes.Subscription, Enabled: true},
			gated("Contact Messages", routes.ContactMessages),
		},
	}
}

// AdminNav is the admin sidebar. Admins are never entitlement-gated.
func AdminNav() []NavLink {
	return []NavLink{
		{Label: "Dashboard", Href: "/admin/dashboard", Enabled: true},
		{Label: "Manage Owners", Href: "/admin/owners", Enabled: true},
		{
			Label:   "Manage Properties",
			Href:    "/admin/properties",
			Enabled: true,
			Children: []NavLink{
				{Label: "All Properties", Href: "/admin/properties", Enabled: true},
				{Label: "Add Property", Href: "/admin/properties/add", Enabled: true},
			},
		},
		{Label: "Manage Plans", Href: "/admin/plans", Enabled: true},
	}
}
