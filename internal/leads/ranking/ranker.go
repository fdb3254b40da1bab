// Package ranking orders candidate sites by distance from a patient's
// postal code.
package ranking

import (
	"context"
	"errors"
	"math"
	"sort"
	"strings"
	"time"

	"recruitment_backend/internal/leads/domain"
	"recruitment_backend/platform/logger"
	"recruitment_backend/platform/metrics"
)

const (
	// EarthRadiusMiles is the mean Earth radius used by Haversine.
	EarthRadiusMiles = 3958.8
	// UnknownDistance sorts sites without coordinates after every real site.
	UnknownDistance = 9999.0

	defaultTimeout = 3 * time.Second
)

// ErrNoResult is returned by a Geocoder that found nothing for the code.
var ErrNoResult = errors.New("postal code not found")

type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Geocoder resolves a postal code to coordinates.
type Geocoder interface {
	GeocodePostalCode(ctx context.Context, postalCode string) (Coordinates, error)
}

// Ranked is a site with its distance from the origin in miles.
type Ranked struct {
	Location      domain.SiteLocation `json:"location"`
	DistanceMiles float64             `json:"distanceMiles"`
	// Known is false when the site has no stored coordinates.
	Known bool `json:"known"`
}

type Ranker struct {
	geocoder Geocoder
	timeout  time.Duration
	log      *logger.Logger
	metrics  *metrics.Metrics
}

// New creates a ranker. A zero timeout uses three seconds.
func New(geocoder Geocoder, timeout time.Duration, log *logger.Logger, m *metrics.Metrics) *Ranker {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Ranker{geocoder: geocoder, timeout: timeout, log: log, metrics: m}
}

// Rank returns locations nearest first. Without a postal code, or when the
// lookup fails or times out, the input order is returned unchanged. The
// input slice is never modified and no error is surfaced.
func (r *Ranker) Rank(ctx context.Context, locations []domain.SiteLocation, postalCode *string) []domain.SiteLocation {
	ranked, _ := r.RankWithDistances(ctx, locations, postalCode)
	out := make([]domain.SiteLocation, len(ranked))
	for i, item := range ranked {
		out[i] = item.Location
	}
	return out
}

// RankWithDistances is Rank with the computed distances. The bool is false
// when no ranking was applied and the order is the input order.
func (r *Ranker) RankWithDistances(ctx context.Context, locations []domain.SiteLocation, postalCode *string) ([]Ranked, bool) {
	unranked := make([]Ranked, len(locations))
	for i, loc := range locations {
		unranked[i] = Ranked{Location: loc, DistanceMiles: UnknownDistance}
	}

	if postalCode == nil || strings.TrimSpace(*postalCode) == "" || r.geocoder == nil || len(locations) == 0 {
		return unranked, false
	}
	code := strings.TrimSpace(*postalCode)

	origin, err := r.lookup(ctx, code)
	if err != nil {
		reason := "lookup_failed"
		if errors.Is(err, context.DeadlineExceeded) {
			reason = "timeout"
		}
		r.metrics.IncrementGeocodeFallback(reason)
		r.log.GeocodeFallback(code, err)
		return unranked, false
	}

	ranked := make([]Ranked, len(locations))
	for i, loc := range locations {
		ranked[i] = Ranked{Location: loc, DistanceMiles: UnknownDistance}
		if loc.HasCoordinates() {
			ranked[i].DistanceMiles = Haversine(origin, Coordinates{Lat: *loc.Lat, Lon: *loc.Lon})
			ranked[i].Known = true
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].DistanceMiles < ranked[j].DistanceMiles
	})
	return ranked, true
}

type lookupResult struct {
	coords Coordinates
	err    error
}

// lookup bounds the geocoder call even if the implementation ignores ctx.
func (r *Ranker) lookup(ctx context.Context, code string) (Coordinates, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	done := make(chan lookupResult, 1)
	go func() {
		coords, err := r.geocoder.GeocodePostalCode(ctx, code)
		done <- lookupResult{coords: coords, err: err}
	}()

	select {
	case res := <-done:
		r.metrics.ObserveGeocodeLatency(time.Since(start))
		return res.coords, res.err
	case <-ctx.Done():
		return Coordinates{}, ctx.Err()
	}
}

// Haversine returns the great-circle distance in miles.
func Haversine(a, b Coordinates) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * EarthRadiusMiles * math.Asin(math.Min(1, math.Sqrt(h)))
}
