package postgres

import (
	"context"
	"time"

	"github.com/hongminglow/bountyboard/internal/models"
	"github.com/jackc/pgx/v5"
)

const userColumns = `id, username, email, phone, display_name, role, password_hash,
	stripe_account_id, payouts_enabled, digest_opt_in, last_digest_at, created_at`

// CreateUser inserts a new user row.
func (s *Store) CreateUser(ctx context.Context, user models.User) (models.User, error) {
	query := `
		INSERT INTO users (username, email, phone, display_name, role, password_hash, digest_opt_in)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + userColumns
	row := s.pool.QueryRow(ctx, query, user.Username, user.Email, user.Phone, user.DisplayName, user.Role, user.PasswordHash, user.DigestOptIn)
	return scanUser(row)
}

// GetUser fetches a user by id.
func (s *Store) GetUser(ctx context.Context, id int64) (models.User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// FindByUsernameOrEmail fetches the first user matching the identifier as username or email.
func (s *Store) FindByUsernameOrEmail(ctx context.Context, identifier string) (models.User, error) {
	const query = `SELECT ` + userColumns + `
		FROM users
		WHERE username = $1 OR lower(email) = lower($1)
		LIMIT 1`
	row := s.pool.QueryRow(ctx, query, identifier)
	return scanUser(row)
}

// UpdateProfile applies the non-nil profile fields.
func (s *Store) UpdateProfile(ctx context.Context, id int64, displayName *string, digestOptIn *bool) (models.User, error) {
	const query = `
		UPDATE users SET
			display_name = COALESCE($2, display_name),
			digest_opt_in = COALESCE($3, digest_opt_in)
		WHERE id = $1
		RETURNING ` + userColumns
	row := s.pool.QueryRow(ctx, query, id, displayName, digestOptIn)
	return scanUser(row)
}

// SetStripeAccount links a connect account to the user.
func (s *Store) SetStripeAccount(ctx context.Context, userID int64, accountID string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE users SET stripe_account_id = $2 WHERE id = $1`, userID, accountID)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return mapErr(pgx.ErrNoRows)
	}
	return nil
}

// SetPayoutsEnabled records the connect account's payout capability.
func (s *Store) SetPayoutsEnabled(ctx context.Context, accountID string, enabled bool) error {
	tag, err := s.pool.Exec(ctx, `UPDATE users SET payouts_enabled = $2 WHERE stripe_account_id = $1`, accountID, enabled)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return mapErr(pgx.ErrNoRows)
	}
	return nil
}

// ListDigestRecipients returns every user who opted into digests.
func (s *Store) ListDigestRecipients(ctx context.Context) ([]models.User, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+userColumns+` FROM users WHERE digest_opt_in ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// MarkDigestSent stamps the user's last digest time.
func (s *Store) MarkDigestSent(ctx context.Context, userID int64, at time.Time) error {
	_, err := s.pool.Exec(ctx, `UPDATE users SET last_digest_at = $2 WHERE id = $1`, userID, at)
	return mapErr(err)
}

func scanUser(row pgx.Row) (models.User, error) {
	var user models.User
	if err := row.Scan(&user.ID, &user.Username, &user.Email, &user.Phone, &user.DisplayName, &user.Role,
		&user.PasswordHash, &user.StripeAccountID, &user.PayoutsEnabled, &user.DigestOptIn,
		&user.LastDigestAt, &user.CreatedAt); err != nil {
		return models.User{}, mapErr(err)
	}
	return user, nil
}
