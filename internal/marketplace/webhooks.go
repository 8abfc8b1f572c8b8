package marketplace

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/hongminglow/bountyboard/internal/metrics"
	"github.com/hongminglow/bountyboard/internal/models"
	"github.com/hongminglow/bountyboard/internal/payments"
	"github.com/hongminglow/bountyboard/internal/storage"
)

// Webhook outcomes reported to metrics.
const (
	webhookApplied   = "applied"
	webhookDuplicate = "duplicate"
	webhookIgnored   = "ignored"
	webhookFailed    = "failed"
)

// HandleWebhook verifies and applies a payment-provider event. Events are
// recorded before they are applied, so a redelivery of a seen id is a no-op.
// A failed apply forgets the id again so the provider's retry is applied.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	ev, err := s.payments.ParseWebhook(payload, signature)
	if errors.Is(err, payments.ErrNotConfigured) {
		return unavailable("webhooks are not configured", err)
	}
	if err != nil {
		metrics.RecordWebhook("unknown", webhookFailed)
		return invalid("invalid webhook signature")
	}

	err = s.store.RecordWebhookEvent(ctx, models.WebhookEvent{ID: ev.ID, Type: ev.Type, ReceivedAt: s.now()})
	if errors.Is(err, storage.ErrAlreadyExists) {
		metrics.RecordWebhook(ev.Type, webhookDuplicate)
		return nil
	}
	if err != nil {
		return err
	}

	entry := s.log.WithFields(logrus.Fields{"event_id": ev.ID, "event_type": ev.Type})
	outcome, err := s.applyEvent(ctx, ev)
	if err != nil {
		metrics.RecordWebhook(ev.Type, webhookFailed)
		entry.WithError(err).Error("apply webhook event")
		if ferr := s.store.ForgetWebhookEvent(ctx, ev.ID); ferr != nil {
			entry.WithError(ferr).Error("forget failed webhook event")
		}
		return err
	}
	metrics.RecordWebhook(ev.Type, outcome)
	entry.WithField("outcome", outcome).Info("webhook event processed")
	return nil
}

func (s *Service) applyEvent(ctx context.Context, ev payments.Event) (string, error) {
	switch ev.Type {
	case payments.EventIntentAuthorized, payments.EventIntentSucceeded:
		pay, ok, err := s.paymentForIntent(ctx, ev.IntentID)
		if !ok || err != nil {
			return webhookIgnored, err
		}
		b, err := s.store.GetBounty(ctx, pay.BountyID)
		if err != nil {
			return "", err
		}
		if b.Status != models.BountyInProgress {
			return s.voidStrayAuthorization(ctx, pay, b)
		}
		held, err := s.store.UpdatePaymentStatus(ctx, pay.ID, []models.PaymentStatus{models.PaymentPending, models.PaymentFailed}, models.PaymentHeld)
		if errors.Is(err, storage.ErrConflict) {
			return webhookIgnored, nil
		}
		if err != nil {
			return "", err
		}
		metrics.RecordEscrow("hold", true)
		note := fmt.Sprintf("%s is now held in escrow.", formatMoney(held.AmountCents, held.Currency))
		s.notify(ctx, held.ClientID, pushNote("Escrow funded", note, held.BountyID))
		s.notify(ctx, held.FreelancerID, pushNote("Escrow funded", note+" You can start working.", held.BountyID))
		return webhookApplied, nil

	case payments.EventIntentFailed:
		pay, ok, err := s.paymentForIntent(ctx, ev.IntentID)
		if !ok || err != nil {
			return webhookIgnored, err
		}
		failed, err := s.store.UpdatePaymentStatus(ctx, pay.ID, []models.PaymentStatus{models.PaymentPending}, models.PaymentFailed)
		if errors.Is(err, storage.ErrConflict) {
			return webhookIgnored, nil
		}
		if err != nil {
			return "", err
		}
		metrics.RecordEscrow("hold", false)
		s.notify(ctx, failed.ClientID, pushNote("Payment failed", "Your escrow payment did not go through. Please try another card.", failed.BountyID))
		return webhookApplied, nil

	case payments.EventIntentCanceled:
		pay, ok, err := s.paymentForIntent(ctx, ev.IntentID)
		if !ok || err != nil {
			return webhookIgnored, err
		}
		_, err = s.store.UpdatePaymentStatus(ctx, pay.ID,
			[]models.PaymentStatus{models.PaymentPending, models.PaymentHeld, models.PaymentFailed}, models.PaymentRefunded)
		if errors.Is(err, storage.ErrConflict) {
			return webhookIgnored, nil
		}
		if err != nil {
			return "", err
		}
		return webhookApplied, nil

	case payments.EventAccountUpdated:
		if ev.AccountID == "" {
			return webhookIgnored, nil
		}
		err := s.store.SetPayoutsEnabled(ctx, ev.AccountID, ev.PayoutsEnabled)
		if errors.Is(err, storage.ErrNotFound) {
			return webhookIgnored, nil
		}
		if err != nil {
			return "", err
		}
		return webhookApplied, nil

	case payments.EventTransferCreated:
		bountyID, ok := bountyFromTransferGroup(ev.TransferGroup)
		if !ok || ev.TransferID == "" {
			return webhookIgnored, nil
		}
		err := s.store.SetTransferByBounty(ctx, bountyID, ev.TransferID)
		if errors.Is(err, storage.ErrNotFound) {
			return webhookIgnored, nil
		}
		if err != nil {
			return "", err
		}
		return webhookApplied, nil
	}
	return webhookIgnored, nil
}

// voidStrayAuthorization releases funds authorised after the bounty stopped
// accepting escrow, so they are never held against a closed bounty.
func (s *Service) voidStrayAuthorization(ctx context.Context, pay models.Payment, b models.Bounty) (string, error) {
	entry := s.log.WithFields(logrus.Fields{"bounty_id": b.ID, "payment_id": pay.ID, "bounty_status": b.Status})
	if pay.Status == models.PaymentReleased {
		return webhookIgnored, nil
	}
	if err := s.payments.CancelIntent(ctx, pay.IntentID); err != nil {
		metrics.RecordEscrow("refund", false)
		return "", fmt.Errorf("void authorisation on %s bounty: %w", strings.ToLower(string(b.Status)), err)
	}
	_, err := s.store.UpdatePaymentStatus(ctx, pay.ID,
		[]models.PaymentStatus{models.PaymentPending, models.PaymentFailed, models.PaymentHeld}, models.PaymentRefunded)
	if err != nil && !errors.Is(err, storage.ErrConflict) {
		return "", err
	}
	metrics.RecordEscrow("refund", true)
	entry.Warn("voided authorisation for a bounty that is not in progress")
	return webhookIgnored, nil
}

func (s *Service) paymentForIntent(ctx context.Context, intentID string) (models.Payment, bool, error) {
	if intentID == "" {
		return models.Payment{}, false, nil
	}
	pay, err := s.store.GetPaymentByIntent(ctx, intentID)
	if errors.Is(err, storage.ErrNotFound) {
		s.log.WithField("intent_id", intentID).Warn("webhook for unknown payment intent")
		return models.Payment{}, false, nil
	}
	if err != nil {
		return models.Payment{}, false, err
	}
	return pay, true, nil
}

func bountyFromTransferGroup(group string) (int64, bool) {
	raw, ok := strings.CutPrefix(group, "bounty-")
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
