package repository

import (
	"context"
	"time"

	"recruitment_backend/internal/leads/domain"

	"github.com/google/uuid"
)

func (r *Repository) InsertMessage(ctx context.Context, msg domain.Message) (domain.Message, error) {
	var (
		out  domain.Message
		role string
	)
	err := r.pool.QueryRow(ctx, `
		INSERT INTO messages (id, lead_id, sender_role, content, is_read)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, lead_id, sender_role, content, is_read, created_at
	`, msg.ID, msg.LeadID, string(msg.SenderRole), msg.Content, msg.IsRead).Scan(
		&out.ID,
		&out.LeadID,
		&role,
		&out.Content,
		&out.IsRead,
		&out.CreatedAt,
	)
	if err != nil {
		return domain.Message{}, err
	}
	out.SenderRole = domain.SenderRole(role)
	return out, nil
}

func (r *Repository) ListMessages(ctx context.Context, leadID uuid.UUID) ([]domain.Message, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, lead_id, sender_role, content, is_read, created_at
		FROM messages
		WHERE lead_id = $1
		ORDER BY created_at ASC, id ASC
	`, leadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.Message, 0)
	for rows.Next() {
		var (
			msg  domain.Message
			role string
		)
		if err := rows.Scan(&msg.ID, &msg.LeadID, &role, &msg.Content, &msg.IsRead, &msg.CreatedAt); err != nil {
			return nil, err
		}
		msg.SenderRole = domain.SenderRole(role)
		items = append(items, msg)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return items, nil
}

func (r *Repository) MarkMessagesRead(ctx context.Context, leadID uuid.UUID) (int64, time.Time, error) {
	var (
		n      int64
		readAt time.Time
	)
	err := r.pool.QueryRow(ctx, `
		WITH marked AS (
			UPDATE messages SET is_read = true
			WHERE lead_id = $1 AND sender_role = 'patient' AND NOT is_read
			RETURNING id
		), touched AS (
			UPDATE leads SET updated_at = now()
			WHERE id = $1 AND EXISTS (SELECT 1 FROM marked)
			RETURNING updated_at
		)
		SELECT (SELECT count(*) FROM marked), COALESCE((SELECT updated_at FROM touched), now())
	`, leadID).Scan(&n, &readAt)
	if err != nil {
		return 0, time.Time{}, err
	}
	return n, readAt, nil
}
