// Package maps geocodes postal codes and site addresses against a
// Nominatim compatible search API.
package maps

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"recruitment_backend/internal/leads/domain"
	"recruitment_backend/internal/leads/ranking"
	"recruitment_backend/platform/config"
	"recruitment_backend/platform/logger"
)

type Service struct {
	client       *http.Client
	baseURL      string
	userAgent    string
	countryCodes string
	log          *logger.Logger
}

func NewService(cfg config.GeocodeConfig, log *logger.Logger) *Service {
	return &Service{
		client:       &http.Client{Timeout: 5 * time.Second},
		baseURL:      cfg.GetGeocodeBaseURL(),
		userAgent:    cfg.GetGeocodeUserAgent(),
		countryCodes: cfg.GetGeocodeCountryCodes(),
		log:          log,
	}
}

// GeocodePostalCode returns the centroid of a postal code. It returns
// ranking.ErrNoResult when the code is unknown.
func (s *Service) GeocodePostalCode(ctx context.Context, postalCode string) (ranking.Coordinates, error) {
	params := url.Values{}
	params.Add("postalcode", strings.TrimSpace(postalCode))
	params.Add("limit", "1")
	return s.first(ctx, params)
}

// GeocodeSite resolves a site location from its street-level parts. Sites
// without a usable address return ranking.ErrNoResult.
func (s *Service) GeocodeSite(ctx context.Context, site domain.SiteLocation) (ranking.Coordinates, error) {
	if strings.TrimSpace(site.City) == "" && strings.TrimSpace(site.Zip) == "" {
		return ranking.Coordinates{}, ranking.ErrNoResult
	}
	params := url.Values{}
	params.Add("q", site.Address())
	params.Add("limit", "1")
	coords, err := s.first(ctx, params)
	if errors.Is(err, ranking.ErrNoResult) && strings.TrimSpace(site.Facility) != "" {
		// Facility names often confuse the search; retry on the locality.
		params.Set("q", domain.SiteLocation{City: site.City, State: site.State, Zip: site.Zip}.Address())
		return s.first(ctx, params)
	}
	return coords, err
}

// SuggestSites turns a free text query into candidate site locations.
// Hits without a locality or coordinates are dropped.
func (s *Service) SuggestSites(ctx context.Context, query string) ([]SiteSuggestion, error) {
	params := url.Values{}
	params.Add("q", query)
	params.Add("limit", "5")

	raw, err := s.search(ctx, params)
	if err != nil {
		return nil, err
	}

	suggestions := make([]SiteSuggestion, 0, len(raw))
	for _, r := range raw {
		suggestion, ok := buildSuggestion(r)
		if !ok {
			continue
		}
		suggestions = append(suggestions, suggestion)
	}
	return suggestions, nil
}

func (s *Service) first(ctx context.Context, params url.Values) (ranking.Coordinates, error) {
	raw, err := s.search(ctx, params)
	if err != nil {
		return ranking.Coordinates{}, err
	}
	for _, r := range raw {
		if coords, ok := parseCoordinates(r.Lat, r.Lon); ok {
			return coords, nil
		}
	}
	return ranking.Coordinates{}, ranking.ErrNoResult
}

func (s *Service) search(ctx context.Context, params url.Values) ([]nominatimResponse, error) {
	params.Set("format", "json")
	params.Set("addressdetails", "1")
	if s.countryCodes != "" {
		params.Set("countrycodes", s.countryCodes)
	}

	reqURL := fmt.Sprintf("%s?%s", s.baseURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		s.log.Error("nominatim request failed", "error", err)
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		s.log.Error("nominatim upstream error", "status", resp.StatusCode)
		return nil, fmt.Errorf("upstream api error: %d", resp.StatusCode)
	}

	var results []nominatimResponse
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		s.log.Error("failed to decode nominatim payload", "error", err)
		return nil, err
	}
	return results, nil
}

func parseCoordinates(lat, lon string) (ranking.Coordinates, bool) {
	la, err := strconv.ParseFloat(lat, 64)
	if err != nil {
		return ranking.Coordinates{}, false
	}
	lo, err := strconv.ParseFloat(lon, 64)
	if err != nil {
		return ranking.Coordinates{}, false
	}
	return ranking.Coordinates{Lat: la, Lon: lo}, true
}

func buildSuggestion(raw nominatimResponse) (SiteSuggestion, bool) {
	city := pickCity(raw.Address)
	if city == "" {
		return SiteSuggestion{}, false
	}
	coords, ok := parseCoordinates(raw.Lat, raw.Lon)
	if !ok {
		return SiteSuggestion{}, false
	}

	location := domain.SiteLocation{
		Facility: pickFacility(raw.Address),
		City:     city,
		State:    pickState(raw.Address),
		Zip:      raw.Address.Postcode,
		Lat:      &coords.Lat,
		Lon:      &coords.Lon,
	}
	return SiteSuggestion{Label: location.Address(), Location: location}, true
}

func pickFacility(address nominatimAddress) string {
	if address.Amenity != "" {
		return address.Amenity
	}
	if address.Building != "" {
		return address.Building
	}
	return strings.TrimSpace(address.HouseNumber + " " + address.Road)
}

func pickCity(address nominatimAddress) string {
	if address.City != "" {
		return address.City
	}
	if address.Town != "" {
		return address.Town
	}
	if address.Village != "" {
		return address.Village
	}
	if address.Municipality != "" {
		return address.Municipality
	}
	return address.Hamlet
}

// pickState prefers the two-letter code so it matches site records.
func pickState(address nominatimAddress) string {
	if _, code, ok := strings.Cut(address.StateCode, "-"); ok && code != "" {
		return code
	}
	return address.State
}
