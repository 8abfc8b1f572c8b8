package postgres

import (
	"context"

	"github.com/hongminglow/bountyboard/internal/models"
	"github.com/hongminglow/bountyboard/internal/storage"
	"github.com/jackc/pgx/v5"
)

const pushColumns = `id, user_id, endpoint, p256dh, auth, user_agent, created_at`

// UpsertPushSubscription stores a subscription, taking over the endpoint if it already exists.
func (s *Store) UpsertPushSubscription(ctx context.Context, sub models.PushSubscription) (models.PushSubscription, error) {
	query := `
		INSERT INTO push_subscriptions (user_id, endpoint, p256dh, auth, user_agent)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (endpoint) DO UPDATE SET
			user_id = EXCLUDED.user_id, p256dh = EXCLUDED.p256dh, auth = EXCLUDED.auth, user_agent = EXCLUDED.user_agent
		RETURNING ` + pushColumns
	return scanPush(s.pool.QueryRow(ctx, query, sub.UserID, sub.Endpoint, sub.P256dh, sub.Auth, sub.UserAgent))
}

// DeletePushSubscription removes the user's subscription for endpoint.
func (s *Store) DeletePushSubscription(ctx context.Context, userID int64, endpoint string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM push_subscriptions WHERE user_id = $1 AND endpoint = $2`, userID, endpoint)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// DeletePushEndpoint removes an endpoint the push service reported as gone.
func (s *Store) DeletePushEndpoint(ctx context.Context, endpoint string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM push_subscriptions WHERE endpoint = $1`, endpoint)
	return err
}

// ListPushSubscriptions returns the user's subscriptions.
func (s *Store) ListPushSubscriptions(ctx context.Context, userID int64) ([]models.PushSubscription, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+pushColumns+` FROM push_subscriptions WHERE user_id = $1 ORDER BY id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.PushSubscription
	for rows.Next() {
		sub, err := scanPush(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

func scanPush(row pgx.Row) (models.PushSubscription, error) {
	var sub models.PushSubscription
	if err := row.Scan(&sub.ID, &sub.UserID, &sub.Endpoint, &sub.P256dh, &sub.Auth, &sub.UserAgent, &sub.CreatedAt); err != nil {
		return models.PushSubscription{}, mapErr(err)
	}
	return sub, nil
}
