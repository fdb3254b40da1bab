package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"recruitment_backend/internal/leads/domain"

	"github.com/jackc/pgx/v5"
)

const trialColumns = `id, title, status, questions, central_contact, updated_at`

func scanTrial(row rowScanner) (domain.Trial, error) {
	var (
		trial        domain.Trial
		status       string
		rawQuestions []byte
		rawCentral   []byte
	)
	if err := row.Scan(&trial.ID, &trial.Title, &status, &rawQuestions, &rawCentral, &trial.UpdatedAt); err != nil {
		return domain.Trial{}, err
	}
	trial.Status = domain.TrialStatus(status)

	var err error
	if trial.Questions, err = unmarshalJSON[domain.Question](rawQuestions); err != nil {
		return domain.Trial{}, fmt.Errorf("decode questions for trial %s: %w", trial.ID, err)
	}
	if err := domain.ValidateQuestions(trial.Questions); err != nil {
		return domain.Trial{}, fmt.Errorf("trial %s: %w", trial.ID, err)
	}
	if len(rawCentral) > 0 && string(rawCentral) != "null" {
		var central domain.Contact
		if err := json.Unmarshal(rawCentral, &central); err != nil {
			return domain.Trial{}, fmt.Errorf("decode central_contact for trial %s: %w", trial.ID, err)
		}
		trial.CentralContact = &central
	}
	return trial, nil
}

func (r *Repository) GetTrial(ctx context.Context, id string) (domain.Trial, error) {
	trial, err := scanTrial(r.pool.QueryRow(ctx, `SELECT `+trialColumns+` FROM trials WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Trial{}, ErrNotFound
	}
	return trial, err
}

func (r *Repository) ListTrials(ctx context.Context) ([]domain.Trial, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+trialColumns+` FROM trials ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.Trial, 0)
	for rows.Next() {
		trial, err := scanTrial(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, trial)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return items, nil
}

// UpsertTrial writes the title, screener and central contact. Status is
// left untouched on existing rows.
func (r *Repository) UpsertTrial(ctx context.Context, trial domain.Trial) error {
	if err := domain.ValidateQuestions(trial.Questions); err != nil {
		return err
	}
	questions, err := marshalJSON(trial.Questions)
	if err != nil {
		return err
	}
	var central []byte
	if trial.CentralContact != nil {
		if central, err = json.Marshal(trial.CentralContact); err != nil {
			return err
		}
	}
	status := trial.Status
	if status == "" {
		status = domain.TrialRecruiting
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO trials (id, title, status, questions, central_contact)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET title = EXCLUDED.title,
			questions = EXCLUDED.questions,
			central_contact = EXCLUDED.central_contact,
			updated_at = now()
	`, trial.ID, trial.Title, string(status), questions, central)
	return err
}

func (r *Repository) SetTrialStatus(ctx context.Context, id string, status domain.TrialStatus) error {
	tag, err := r.pool.Exec(ctx, `UPDATE trials SET status = $2, updated_at = now() WHERE id = $1`, id, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
