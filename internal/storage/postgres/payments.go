package postgres

import (
	"context"
	"time"

	"github.com/hongminglow/bountyboard/internal/models"
	"github.com/hongminglow/bountyboard/internal/storage"
	"github.com/jackc/pgx/v5"
)

const paymentColumns = `id, bounty_id, client_id, freelancer_id, amount_cents, fee_cents, currency,
	intent_id, client_secret, transfer_id, status, created_at, updated_at, released_at`

func insertPayment(ctx context.Context, q querier, p models.Payment) (models.Payment, error) {
	query := `
		INSERT INTO payments (bounty_id, client_id, freelancer_id, amount_cents, fee_cents, currency, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + paymentColumns
	return scanPayment(q.QueryRow(ctx, query, p.BountyID, p.ClientID, p.FreelancerID, p.AmountCents, p.FeeCents, p.Currency, string(p.Status)))
}

// GetPaymentByBounty fetches the escrow record for a bounty.
func (s *Store) GetPaymentByBounty(ctx context.Context, bountyID int64) (models.Payment, error) {
	return scanPayment(s.pool.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE bounty_id = $1`, bountyID))
}

// GetPaymentByIntent fetches the escrow record backed by a payment intent.
func (s *Store) GetPaymentByIntent(ctx context.Context, intentID string) (models.Payment, error) {
	return scanPayment(s.pool.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE intent_id = $1`, intentID))
}

// SetPaymentIntent attaches a provider payment intent to the escrow record.
func (s *Store) SetPaymentIntent(ctx context.Context, paymentID int64, intentID, clientSecret string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE payments SET intent_id = $2, client_secret = $3, updated_at = NOW() WHERE id = $1`,
		paymentID, intentID, clientSecret)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// UpdatePaymentStatus moves a payment to "to" when its current status is one of from.
func (s *Store) UpdatePaymentStatus(ctx context.Context, paymentID int64, from []models.PaymentStatus, to models.PaymentStatus) (models.Payment, error) {
	allowed := make([]string, len(from))
	for i, st := range from {
		allowed[i] = string(st)
	}
	query := `UPDATE payments SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = ANY($2)
		RETURNING ` + paymentColumns
	p, err := scanPayment(s.pool.QueryRow(ctx, query, paymentID, allowed, string(to)))
	if errorsIsNotFound(err) {
		return models.Payment{}, conflictOr(ctx, s.pool, "payments", paymentID)
	}
	return p, err
}

// ReleasePayment marks a held payment released and completes the bounty.
func (s *Store) ReleasePayment(ctx context.Context, paymentID int64, transferID string, at time.Time) (models.Payment, models.Bounty, error) {
	var (
		pay    models.Payment
		bounty models.Bounty
	)
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		query := `UPDATE payments SET status = 'released', transfer_id = $2, released_at = $3, updated_at = NOW()
			WHERE id = $1 AND status = 'held'
			RETURNING ` + paymentColumns
		var err error
		pay, err = scanPayment(tx.QueryRow(ctx, query, paymentID, transferID, at))
		if errorsIsNotFound(err) {
			return conflictOr(ctx, tx, "payments", paymentID)
		}
		if err != nil {
			return err
		}

		if bounty, err = getBounty(ctx, tx, pay.BountyID); err != nil {
			return err
		}
		bounty.Status = models.BountyCompleted
		bounty.CompletedAt = &at
		bounty, err = updateBounty(ctx, tx, bounty, models.BountyInProgress)
		return err
	})
	if err != nil {
		return models.Payment{}, models.Bounty{}, err
	}
	return pay, bounty, nil
}

// SetTransferByBounty records the provider transfer for a bounty's payment.
func (s *Store) SetTransferByBounty(ctx context.Context, bountyID int64, transferID string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE payments SET transfer_id = $2, updated_at = NOW() WHERE bounty_id = $1`, bountyID, transferID)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// RecordWebhookEvent stores a provider event id once.
func (s *Store) RecordWebhookEvent(ctx context.Context, ev models.WebhookEvent) error {
	tag, err := s.pool.Exec(ctx, `INSERT INTO webhook_events (id, type, received_at) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO NOTHING`, ev.ID, ev.Type, ev.ReceivedAt)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrAlreadyExists
	}
	return nil
}

// ForgetWebhookEvent deletes a recorded event id.
func (s *Store) ForgetWebhookEvent(ctx context.Context, id string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM webhook_events WHERE id = $1`, id); err != nil {
		return mapErr(err)
	}
	return nil
}

func scanPayment(row pgx.Row) (models.Payment, error) {
	var p models.Payment
	var status string
	if err := row.Scan(&p.ID, &p.BountyID, &p.ClientID, &p.FreelancerID, &p.AmountCents, &p.FeeCents, &p.Currency,
		&p.IntentID, &p.ClientSecret, &p.TransferID, &status, &p.CreatedAt, &p.UpdatedAt, &p.ReleasedAt); err != nil {
		return models.Payment{}, mapErr(err)
	}
	p.Status = models.PaymentStatus(status)
	return p, nil
}
