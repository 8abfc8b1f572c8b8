package postgres

import (
	"context"
	"time"

	"github.com/hongminglow/bountyboard/internal/models"
	"github.com/hongminglow/bountyboard/internal/storage"
	"github.com/jackc/pgx/v5"
)

const applicationColumns = `id, bounty_id, freelancer_id, cover_letter, proposed_cents, status, created_at, updated_at`

// CreateApplication inserts an application; a second one for the same bounty is ErrAlreadyExists.
func (s *Store) CreateApplication(ctx context.Context, a models.Application) (models.Application, error) {
	query := `
		INSERT INTO applications (bounty_id, freelancer_id, cover_letter, proposed_cents, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + applicationColumns
	return scanApplication(s.pool.QueryRow(ctx, query, a.BountyID, a.FreelancerID, a.CoverLetter, a.ProposedCents, string(a.Status)))
}

// GetApplication fetches an application by id.
func (s *Store) GetApplication(ctx context.Context, id int64) (models.Application, error) {
	return scanApplication(s.pool.QueryRow(ctx, `SELECT `+applicationColumns+` FROM applications WHERE id = $1`, id))
}

// ListApplications returns a bounty's applications, oldest first.
func (s *Store) ListApplications(ctx context.Context, bountyID int64) ([]models.Application, error) {
	return s.queryApplications(ctx, `SELECT `+applicationColumns+` FROM applications WHERE bounty_id = $1 ORDER BY id`, bountyID)
}

// ListPendingApplicationsForClient returns pending applications on the client's bounties created after since.
func (s *Store) ListPendingApplicationsForClient(ctx context.Context, clientID int64, since *time.Time) ([]models.Application, error) {
	const query = `
		SELECT a.id, a.bounty_id, a.freelancer_id, a.cover_letter, a.proposed_cents, a.status, a.created_at, a.updated_at
		FROM applications a
		JOIN bounties b ON b.id = a.bounty_id
		WHERE b.client_id = $1 AND a.status = 'pending' AND ($2::timestamptz IS NULL OR a.created_at > $2)
		ORDER BY a.id`
	return s.queryApplications(ctx, query, clientID, since)
}

func (s *Store) queryApplications(ctx context.Context, query string, args ...any) ([]models.Application, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Application{}
	for rows.Next() {
		a, err := scanApplication(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// UpdateApplicationStatus moves an application from one status to another.
func (s *Store) UpdateApplicationStatus(ctx context.Context, id int64, from, to models.ApplicationStatus) (models.Application, error) {
	return updateApplicationStatus(ctx, s.pool, id, from, to)
}

func updateApplicationStatus(ctx context.Context, q querier, id int64, from, to models.ApplicationStatus) (models.Application, error) {
	query := `UPDATE applications SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2
		RETURNING ` + applicationColumns
	a, err := scanApplication(q.QueryRow(ctx, query, id, string(from), string(to)))
	if errorsIsNotFound(err) {
		return models.Application{}, conflictOr(ctx, q, "applications", id)
	}
	return a, err
}

// AcceptApplication hires the applicant and opens escrow in one transaction.
func (s *Store) AcceptApplication(ctx context.Context, applicationID int64, payment models.Payment) (models.Application, models.Bounty, models.Payment, error) {
	var (
		app    models.Application
		bounty models.Bounty
		pay    models.Payment
	)
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		var err error
		if app, err = updateApplicationStatus(ctx, tx, applicationID, models.ApplicationPending, models.ApplicationAccepted); err != nil {
			return err
		}
		if _, err = tx.Exec(ctx, `UPDATE applications SET status = 'rejected', updated_at = NOW()
			WHERE bounty_id = $1 AND id <> $2 AND status = 'pending'`, app.BountyID, app.ID); err != nil {
			return err
		}

		if bounty, err = getBounty(ctx, tx, app.BountyID); err != nil {
			return err
		}
		if bounty.Status != models.BountyOpen {
			return storage.ErrConflict
		}
		freelancer := app.FreelancerID
		bounty.FreelancerID = &freelancer
		bounty.Status = models.BountyInProgress
		if bounty, err = updateBounty(ctx, tx, bounty, models.BountyOpen); err != nil {
			return err
		}

		payment.BountyID = bounty.ID
		payment.ClientID = bounty.ClientID
		payment.FreelancerID = freelancer
		pay, err = insertPayment(ctx, tx, payment)
		return err
	})
	if err != nil {
		return models.Application{}, models.Bounty{}, models.Payment{}, err
	}
	return app, bounty, pay, nil
}

func scanApplication(row pgx.Row) (models.Application, error) {
	var a models.Application
	var status string
	if err := row.Scan(&a.ID, &a.BountyID, &a.FreelancerID, &a.CoverLetter, &a.ProposedCents, &status, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return models.Application{}, mapErr(err)
	}
	a.Status = models.ApplicationStatus(status)
	return a, nil
}
