package maps

import "recruitment_backend/internal/leads/domain"

// SiteLookupRequest is the free text a coordinator types while registering
// a site.
type SiteLookupRequest struct {
	Query string `form:"q" binding:"required,min=3,max=200"`
}

// SiteSuggestion is a place search hit already in the site_location shape a
// claim stores, coordinates included, so a registered site never waits for
// the geocode backfill. Location.ID is left for the caller to assign.
type SiteSuggestion struct {
	Label    string              `json:"label"`
	Location domain.SiteLocation `json:"siteLocation"`
}

type nominatimAddress struct {
	Amenity      string `json:"amenity"`
	Building     string `json:"building"`
	Road         string `json:"road"`
	HouseNumber  string `json:"house_number"`
	Postcode     string `json:"postcode"`
	City         string `json:"city"`
	Town         string `json:"town"`
	Village      string `json:"village"`
	Municipality string `json:"municipality"`
	Hamlet       string `json:"hamlet"`
	State        string `json:"state"`
	// ISO3166-2-lvl4 carries "US-TX" style codes.
	StateCode string `json:"ISO3166-2-lvl4"`
}

// nominatimResponse mirrors the relevant parts of the OSM search payload.
type nominatimResponse struct {
	DisplayName string           `json:"display_name"`
	Lat         string           `json:"lat"`
	Lon         string           `json:"lon"`
	Address     nominatimAddress `json:"address"`
}
