package maps

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"recruitment_backend/internal/leads/ranking"
	"recruitment_backend/platform/logger"

	"github.com/redis/go-redis/v9"
)

const (
	postalKeyPrefix = "geocode:postal:"
	// missMarker caches a postal code the upstream does not know.
	missMarker = "-"
	missTTL    = time.Hour
)

// CachedGeocoder puts a Redis cache in front of a postal code geocoder.
// Cache failures fall through to the upstream.
type CachedGeocoder struct {
	next   ranking.Geocoder
	client *redis.Client
	ttl    time.Duration
	log    *logger.Logger
}

func NewCachedGeocoder(next ranking.Geocoder, client *redis.Client, ttl time.Duration, log *logger.Logger) *CachedGeocoder {
	if log == nil {
		log = logger.Discard()
	}
	return &CachedGeocoder{next: next, client: client, ttl: ttl, log: log}
}

func (c *CachedGeocoder) GeocodePostalCode(ctx context.Context, postalCode string) (ranking.Coordinates, error) {
	key := postalKeyPrefix + normalizePostal(postalCode)

	cached, err := c.client.Get(ctx, key).Result()
	switch {
	case err == nil:
		if cached == missMarker {
			return ranking.Coordinates{}, ranking.ErrNoResult
		}
		var coords ranking.Coordinates
		if jsonErr := json.Unmarshal([]byte(cached), &coords); jsonErr == nil {
			return coords, nil
		}
		c.log.Warn("discarding corrupt geocode cache entry", "key", key)
	case errors.Is(err, redis.Nil):
	default:
		c.log.Warn("geocode cache read failed", "error", err)
	}

	coords, err := c.next.GeocodePostalCode(ctx, postalCode)
	if errors.Is(err, ranking.ErrNoResult) {
		c.store(ctx, key, missMarker, missTTL)
		return ranking.Coordinates{}, err
	}
	if err != nil {
		return ranking.Coordinates{}, err
	}

	payload, _ := json.Marshal(coords)
	c.store(ctx, key, string(payload), c.ttl)
	return coords, nil
}

func (c *CachedGeocoder) store(ctx context.Context, key, value string, ttl time.Duration) {
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		c.log.Warn("geocode cache write failed", "error", err)
	}
}

func normalizePostal(code string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(code), " ", ""))
}
