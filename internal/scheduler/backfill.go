package scheduler

import (
	"context"
	"errors"
	"sync/atomic"

	"recruitment_backend/internal/leads/domain"
	"recruitment_backend/internal/leads/ranking"
	"recruitment_backend/platform/logger"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const (
	defaultBackfillBatch = 25
	backfillConcurrency  = 4
)

// SiteGeocoder resolves a site location to coordinates.
type SiteGeocoder interface {
	GeocodeSite(ctx context.Context, site domain.SiteLocation) (ranking.Coordinates, error)
}

// ClaimStore lists and updates site claims lacking coordinates.
type ClaimStore interface {
	ListClaimsMissingCoordinates(ctx context.Context, limit int) ([]domain.Claim, error)
	UpdateClaimCoordinates(ctx context.Context, claimID uuid.UUID, lat, lon float64) error
}

// Backfill geocodes sites whose coordinates are missing. Upstream calls are
// paced by limiter; a nil limiter allows one request per second.
type Backfill struct {
	store    ClaimStore
	geocoder SiteGeocoder
	limiter  *rate.Limiter
	log      *logger.Logger
}

func NewBackfill(store ClaimStore, geocoder SiteGeocoder, limiter *rate.Limiter, log *logger.Logger) *Backfill {
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Limit(1), 1)
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Backfill{store: store, geocoder: geocoder, limiter: limiter, log: log}
}

// RunBatch geocodes up to limit sites and returns how many were updated.
// Sites without a geocode result are skipped.
func (b *Backfill) RunBatch(ctx context.Context, limit int) (int, error) {
	if limit <= 0 {
		limit = defaultBackfillBatch
	}
	claims, err := b.store.ListClaimsMissingCoordinates(ctx, limit)
	if err != nil {
		return 0, err
	}

	var updated atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(backfillConcurrency)
	for _, claim := range claims {
		g.Go(func() error {
			if err := b.limiter.Wait(gctx); err != nil {
				return err
			}
			coords, err := b.geocoder.GeocodeSite(gctx, claim.Location)
			if errors.Is(err, ranking.ErrNoResult) {
				b.log.Info("no geocode result for site", "claimId", claim.ID, "locationId", claim.Location.ID)
				return nil
			}
			if err != nil {
				b.log.Warn("site geocode failed", "claimId", claim.ID, "error", err)
				return nil
			}
			if err := b.store.UpdateClaimCoordinates(gctx, claim.ID, coords.Lat, coords.Lon); err != nil {
				return err
			}
			updated.Add(1)
			return nil
		})
	}
	err = g.Wait()
	return int(updated.Load()), err
}

// RunAll repeats batches until a batch makes no progress.
func (b *Backfill) RunAll(ctx context.Context, batch int) (int, error) {
	total := 0
	for {
		n, err := b.RunBatch(ctx, batch)
		total += n
		if err != nil || n == 0 {
			return total, err
		}
	}
}
