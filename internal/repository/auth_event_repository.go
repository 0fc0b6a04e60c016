package repository

import (
	"context"
	"time"

	"krishimitra/api/internal/models"
)

type AuthEventRepository struct {
	db DBTX
}

func NewAuthEventRepository(db DBTX) *AuthEventRepository {
	return &AuthEventRepository{db: db}
}

// Insert is idempotent on the event id so redelivered stream entries are
// harmless.
func (r *AuthEventRepository) Insert(ctx context.Context, event models.AuthEvent) error {
	const query = `
		INSERT INTO auth_events (
			id, event_type, user_id, username, client_ip, user_agent, occurred_at
		) VALUES (
			$1, $2, NULLIF($3, ''), NULLIF($4, ''), $5, $6, $7
		)
		ON CONFLICT (id) DO NOTHING
	`

	_, err := r.db.Exec(ctx, query,
		event.ID,
		string(event.Type),
		event.UserID,
		event.Username,
		event.ClientIP,
		event.UserAgent,
		event.OccurredAt,
	)
	if err != nil {
		return storageErr("insert auth event", err)
	}
	return nil
}

func (r *AuthEventRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	const query = `DELETE FROM auth_events WHERE occurred_at < $1`

	cmd, err := r.db.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, storageErr("delete auth events", err)
	}
	return cmd.RowsAffected(), nil
}
