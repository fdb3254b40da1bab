package repository

import (
	"context"

	"recruitment_backend/internal/leads/domain"

	"github.com/google/uuid"
)

// Append inserts one audit row. The table rejects UPDATE and DELETE.
func (r *Repository) Append(ctx context.Context, entry domain.AuditEntry) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO audit_logs (id, lead_id, action, detail, performed_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, entry.ID, entry.LeadID, entry.Action, entry.Detail, entry.PerformedBy, entry.CreatedAt)
	return err
}

// ListByLead returns entries in append order.
func (r *Repository) ListByLead(ctx context.Context, leadID uuid.UUID) ([]domain.AuditEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, lead_id, action, detail, performed_by, created_at
		FROM audit_logs
		WHERE lead_id = $1
		ORDER BY created_at ASC
	`, leadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.AuditEntry, 0)
	for rows.Next() {
		var e domain.AuditEntry
		if err := rows.Scan(&e.ID, &e.LeadID, &e.Action, &e.Detail, &e.PerformedBy, &e.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return items, nil
}
