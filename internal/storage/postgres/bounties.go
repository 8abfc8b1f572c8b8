package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hongminglow/bountyboard/internal/models"
	"github.com/jackc/pgx/v5"
)

const bountyColumns = `id, client_id, freelancer_id, title, description, category, skills,
	budget_cents, currency, deadline, status, published_at, completed_at, cancelled_at,
	created_at, updated_at`

// CreateBounty inserts a bounty.
func (s *Store) CreateBounty(ctx context.Context, b models.Bounty) (models.Bounty, error) {
	query := `
		INSERT INTO bounties (client_id, title, description, category, skills, budget_cents, currency, deadline, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING ` + bountyColumns
	row := s.pool.QueryRow(ctx, query, b.ClientID, b.Title, b.Description, b.Category, nonNil(b.Skills),
		b.BudgetCents, b.Currency, b.Deadline, string(b.Status))
	return scanBounty(row)
}

// GetBounty fetches a bounty by id.
func (s *Store) GetBounty(ctx context.Context, id int64) (models.Bounty, error) {
	return getBounty(ctx, s.pool, id)
}

func getBounty(ctx context.Context, q querier, id int64) (models.Bounty, error) {
	return scanBounty(q.QueryRow(ctx, `SELECT `+bountyColumns+` FROM bounties WHERE id = $1`, id))
}

// ListBounties returns bounties matching filter, newest first.
func (s *Store) ListBounties(ctx context.Context, filter models.BountyFilter) ([]models.Bounty, error) {
	query, args := listBountiesQuery(filter)
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Bounty{}
	for rows.Next() {
		b, err := scanBounty(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func listBountiesQuery(filter models.BountyFilter) (string, []any) {
	var (
		where []string
		args  []any
	)
	add := func(clause string, arg any) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if filter.Status != "" {
		add("status = $%d", string(filter.Status))
	}
	if filter.Category != "" {
		add("category = $%d", filter.Category)
	}
	if filter.Query != "" {
		add(`(title ILIKE $%[1]d ESCAPE '\' OR description ILIKE $%[1]d ESCAPE '\')`, likePattern(filter.Query))
	}
	if filter.ClientID != 0 {
		add("client_id = $%d", filter.ClientID)
	}
	if filter.FreelancerID != 0 {
		add("freelancer_id = $%d", filter.FreelancerID)
	}
	if filter.Since != nil {
		add("published_at > $%d", *filter.Since)
	}

	query := `SELECT ` + bountyColumns + ` FROM bounties`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	args = append(args, filter.Limit, filter.Offset)
	query += fmt.Sprintf(` ORDER BY COALESCE(published_at, created_at) DESC, id DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))
	return query, args
}

// likePattern matches q as a literal substring under ESCAPE '\'.
func likePattern(q string) string {
	return "%" + likeEscaper.Replace(q) + "%"
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// UpdateBounty writes every mutable column, provided the stored status is still expect.
func (s *Store) UpdateBounty(ctx context.Context, b models.Bounty, expect models.BountyStatus) (models.Bounty, error) {
	return updateBounty(ctx, s.pool, b, expect)
}

func updateBounty(ctx context.Context, q querier, b models.Bounty, expect models.BountyStatus) (models.Bounty, error) {
	query := `
		UPDATE bounties SET
			freelancer_id = $3, title = $4, description = $5, category = $6, skills = $7,
			budget_cents = $8, currency = $9, deadline = $10, status = $11,
			published_at = $12, completed_at = $13, cancelled_at = $14, updated_at = NOW()
		WHERE id = $1 AND status = $2
		RETURNING ` + bountyColumns
	row := q.QueryRow(ctx, query, b.ID, string(expect), b.FreelancerID, b.Title, b.Description, b.Category,
		nonNil(b.Skills), b.BudgetCents, b.Currency, b.Deadline, string(b.Status),
		b.PublishedAt, b.CompletedAt, b.CancelledAt)
	updated, err := scanBounty(row)
	if err != nil {
		if errorsIsNotFound(err) {
			return models.Bounty{}, conflictOr(ctx, q, "bounties", b.ID)
		}
		return models.Bounty{}, err
	}
	return updated, nil
}

// CancelBounty cancels the bounty and rejects its pending applications.
func (s *Store) CancelBounty(ctx context.Context, id int64, expect models.BountyStatus, at time.Time) (models.Bounty, error) {
	var out models.Bounty
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		b, err := getBounty(ctx, tx, id)
		if err != nil {
			return err
		}
		b.Status = models.BountyCancelled
		b.CancelledAt = &at
		if out, err = updateBounty(ctx, tx, b, expect); err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `UPDATE applications SET status = 'rejected', updated_at = NOW()
			WHERE bounty_id = $1 AND status = 'pending'`, id)
		return err
	})
	return out, err
}

func scanBounty(row pgx.Row) (models.Bounty, error) {
	var b models.Bounty
	var status string
	if err := row.Scan(&b.ID, &b.ClientID, &b.FreelancerID, &b.Title, &b.Description, &b.Category, &b.Skills,
		&b.BudgetCents, &b.Currency, &b.Deadline, &status, &b.PublishedAt, &b.CompletedAt, &b.CancelledAt,
		&b.CreatedAt, &b.UpdatedAt); err != nil {
		return models.Bounty{}, mapErr(err)
	}
	b.Status = models.BountyStatus(status)
	return b, nil
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
