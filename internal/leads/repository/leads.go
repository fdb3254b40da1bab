package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"recruitment_backend/internal/leads/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const leadColumns = `
	l.id, l.trial_id, l.location_id, l.site_facility, l.site_city, l.site_state,
	l.name, l.email, l.phone, l.answers, l.question_snapshot, l.status,
	l.researcher_notes, l.created_at, l.updated_at,
	(SELECT count(*) FROM messages m
	  WHERE m.lead_id = l.id AND m.sender_role = 'patient' AND NOT m.is_read) AS unread_count`

func scanLead(row rowScanner) (domain.Lead, error) {
	var (
		lead        domain.Lead
		status      string
		rawAnswers  []byte
		rawSnapshot []byte
	)
	err := row.Scan(
		&lead.ID,
		&lead.TrialID,
		&lead.LocationID,
		&lead.SiteFacility,
		&lead.SiteCity,
		&lead.SiteState,
		&lead.Name,
		&lead.Email,
		&lead.Phone,
		&rawAnswers,
		&rawSnapshot,
		&status,
		&lead.ResearcherNotes,
		&lead.CreatedAt,
		&lead.UpdatedAt,
		&lead.UnreadCount,
	)
	if err != nil {
		return domain.Lead{}, err
	}
	lead.Status = domain.Status(status)

	if lead.Answers, err = unmarshalJSON[*string](rawAnswers); err != nil {
		return domain.Lead{}, fmt.Errorf("decode answers for lead %s: %w", lead.ID, err)
	}
	if lead.QuestionSnapshot, err = unmarshalJSON[domain.Question](rawSnapshot); err != nil {
		return domain.Lead{}, fmt.Errorf("decode question snapshot for lead %s: %w", lead.ID, err)
	}
	return lead, nil
}

func (r *Repository) CreateLead(ctx context.Context, lead domain.Lead) (domain.Lead, error) {
	answers, err := marshalJSON(lead.Answers)
	if err != nil {
		return domain.Lead{}, err
	}
	snapshot, err := marshalJSON(lead.QuestionSnapshot)
	if err != nil {
		return domain.Lead{}, err
	}

	row := r.pool.QueryRow(ctx, `
		WITH l AS (
			INSERT INTO leads (
				id, trial_id, location_id, site_facility, site_city, site_state,
				name, email, phone, answers, question_snapshot, status, researcher_notes
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			RETURNING *
		)
		SELECT `+leadColumns+` FROM l
	`, lead.ID, lead.TrialID, lead.LocationID, lead.SiteFacility, lead.SiteCity, lead.SiteState,
		lead.Name, lead.Email, lead.Phone, answers, snapshot, string(lead.Status), lead.ResearcherNotes)

	return scanLead(row)
}

func (r *Repository) GetLead(ctx context.Context, id uuid.UUID) (domain.Lead, error) {
	lead, err := scanLead(r.pool.QueryRow(ctx, `SELECT `+leadColumns+` FROM leads l WHERE l.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Lead{}, ErrNotFound
	}
	return lead, err
}

func (r *Repository) ListLeadsByTrial(ctx context.Context, trialID string) ([]domain.Lead, error) {
	return r.ListLeads(ctx, LeadQuery{TrialIDs: []string{trialID}})
}

func (r *Repository) ListLeads(ctx context.Context, query LeadQuery) ([]domain.Lead, error) {
	where := make([]string, 0, 3)
	args := make([]any, 0, 4)

	if len(query.TrialIDs) > 0 {
		args = append(args, query.TrialIDs)
		where = append(where, fmt.Sprintf("l.trial_id = ANY($%d)", len(args)))
	}
	if len(query.Statuses) > 0 {
		statuses := make([]string, len(query.Statuses))
		for i, s := range query.Statuses {
			statuses[i] = string(s)
		}
		args = append(args, statuses)
		where = append(where, fmt.Sprintf("l.status = ANY($%d)", len(args)))
	}
	if search := strings.TrimSpace(query.Search); search != "" {
		args = append(args, "%"+search+"%")
		n := len(args)
		where = append(where, fmt.Sprintf("(l.name ILIKE $%d OR l.email ILIKE $%d OR l.phone ILIKE $%d)", n, n, n))
	}

	sql := `SELECT ` + leadColumns + ` FROM leads l`
	if len(where) > 0 {
		sql += ` WHERE ` + strings.Join(where, " AND ")
	}
	sql += ` ORDER BY l.created_at DESC`
	if query.Limit > 0 {
		args = append(args, query.Limit)
		sql += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.Lead, 0)
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, lead)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return items, nil
}

// updateLead runs an UPDATE ... RETURNING for one lead and rescans it with
// the derived unread count.
func (r *Repository) updateLead(ctx context.Context, setClause string, id uuid.UUID, value any) (domain.Lead, error) {
	row := r.pool.QueryRow(ctx, `
		WITH l AS (
			UPDATE leads SET `+setClause+`, updated_at = now()
			WHERE id = $1
			RETURNING *
		)
		SELECT `+leadColumns+` FROM l
	`, id, value)

	lead, err := scanLead(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Lead{}, ErrNotFound
	}
	return lead, err
}

func (r *Repository) UpdateLeadStatus(ctx context.Context, id uuid.UUID, status domain.Status) (domain.Lead, error) {
	return r.updateLead(ctx, "status = $2", id, string(status))
}

func (r *Repository) UpdateLeadAnswers(ctx context.Context, id uuid.UUID, answers []*string) (domain.Lead, error) {
	raw, err := marshalJSON(answers)
	if err != nil {
		return domain.Lead{}, err
	}
	return r.updateLead(ctx, "answers = $2", id, raw)
}

func (r *Repository) UpdateLeadNotes(ctx context.Context, id uuid.UUID, notes string) (domain.Lead, error) {
	return r.updateLead(ctx, "researcher_notes = $2", id, notes)
}
