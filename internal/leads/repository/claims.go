package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"recruitment_backend/internal/leads/domain"

	"github.com/google/uuid"
)

const claimColumns = `id, organization_id, trial_id, site_location, status, contacts, investigators, questions_override, created_at`

func scanClaim(row rowScanner) (domain.Claim, error) {
	var (
		claim            domain.Claim
		status           string
		rawLocation      []byte
		rawContacts      []byte
		rawInvestigators []byte
		rawOverride      []byte
	)
	err := row.Scan(
		&claim.ID,
		&claim.OrganizationID,
		&claim.TrialID,
		&rawLocation,
		&status,
		&rawContacts,
		&rawInvestigators,
		&rawOverride,
		&claim.CreatedAt,
	)
	if err != nil {
		return domain.Claim{}, err
	}
	claim.Status = domain.ClaimStatus(status)

	if err := json.Unmarshal(rawLocation, &claim.Location); err != nil {
		return domain.Claim{}, fmt.Errorf("decode site_location for claim %s: %w", claim.ID, err)
	}
	if claim.Contacts, err = unmarshalJSON[domain.Contact](rawContacts); err != nil {
		return domain.Claim{}, fmt.Errorf("decode contacts for claim %s: %w", claim.ID, err)
	}
	if claim.Investigators, err = unmarshalJSON[domain.Contact](rawInvestigators); err != nil {
		return domain.Claim{}, fmt.Errorf("decode investigators for claim %s: %w", claim.ID, err)
	}
	if claim.QuestionsOverride, err = unmarshalJSON[domain.Question](rawOverride); err != nil {
		return domain.Claim{}, fmt.Errorf("decode questions_override for claim %s: %w", claim.ID, err)
	}
	if err := domain.ValidateQuestions(claim.QuestionsOverride); err != nil {
		return domain.Claim{}, fmt.Errorf("claim %s: %w", claim.ID, err)
	}
	return claim, nil
}

func (r *Repository) listClaims(ctx context.Context, query string, args ...any) ([]domain.Claim, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.Claim, 0)
	for rows.Next() {
		claim, err := scanClaim(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, claim)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return items, nil
}

func (r *Repository) ListClaimsByTrial(ctx context.Context, trialID string) ([]domain.Claim, error) {
	return r.listClaims(ctx, `
		SELECT `+claimColumns+`
		FROM claimed_trials
		WHERE trial_id = $1
		ORDER BY created_at ASC
	`, trialID)
}

func (r *Repository) ListApprovedClaims(ctx context.Context) ([]domain.Claim, error) {
	return r.listClaims(ctx, `
		SELECT `+claimColumns+`
		FROM claimed_trials
		WHERE status = 'approved'
		ORDER BY trial_id ASC, created_at ASC
	`)
}

func (r *Repository) ListClaimsMissingCoordinates(ctx context.Context, limit int) ([]domain.Claim, error) {
	return r.listClaims(ctx, `
		SELECT `+claimColumns+`
		FROM claimed_trials
		WHERE site_location->'lat' IS NULL OR site_location->'lon' IS NULL
		ORDER BY created_at ASC
		LIMIT $1
	`, limit)
}

func (r *Repository) UpdateClaimCoordinates(ctx context.Context, claimID uuid.UUID, lat, lon float64) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE claimed_trials
		SET site_location = site_location || jsonb_build_object('lat', $2::float8, 'lon', $3::float8)
		WHERE id = $1
	`, claimID, lat, lon)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
