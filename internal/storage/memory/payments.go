package memory

import (
	"context"
	"slices"
	"time"

	"github.com/hongminglow/bountyboard/internal/models"
	"github.com/hongminglow/bountyboard/internal/storage"
)

// GetPaymentByBounty implements storage.PaymentStore.
func (s *Store) GetPaymentByBounty(_ context.Context, bountyID int64) (models.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeErr("GetPaymentByBounty"); err != nil {
		return models.Payment{}, err
	}
	for _, p := range s.payments {
		if p.BountyID == bountyID {
			return p, nil
		}
	}
	return models.Payment{}, storage.ErrNotFound
}

// GetPaymentByIntent implements storage.PaymentStore.
func (s *Store) GetPaymentByIntent(_ context.Context, intentID string) (models.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.payments {
		if intentID != "" && p.IntentID == intentID {
			return p, nil
		}
	}
	return models.Payment{}, storage.ErrNotFound
}

// SetPaymentIntent implements storage.PaymentStore.
func (s *Store) SetPaymentIntent(_ context.Context, paymentID int64, intentID, clientSecret string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[paymentID]
	if !ok {
		return storage.ErrNotFound
	}
	p.IntentID, p.ClientSecret = intentID, clientSecret
	p.UpdatedAt = s.now()
	s.payments[paymentID] = p
	return nil
}

// UpdatePaymentStatus implements storage.PaymentStore.
func (s *Store) UpdatePaymentStatus(_ context.Context, paymentID int64, from []models.PaymentStatus, to models.PaymentStatus) (models.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeErr("UpdatePaymentStatus"); err != nil {
		return models.Payment{}, err
	}
	p, ok := s.payments[paymentID]
	if !ok {
		return models.Payment{}, storage.ErrNotFound
	}
	if !slices.Contains(from, p.Status) {
		return models.Payment{}, storage.ErrConflict
	}
	p.Status = to
	p.UpdatedAt = s.now()
	s.payments[paymentID] = p
	return p, nil
}

// ReleasePayment implements storage.PaymentStore.
func (s *Store) ReleasePayment(_ context.Context, paymentID int64, transferID string, at time.Time) (models.Payment, models.Bounty, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeErr("ReleasePayment"); err != nil {
		return models.Payment{}, models.Bounty{}, err
	}
	p, ok := s.payments[paymentID]
	if !ok {
		return models.Payment{}, models.Bounty{}, storage.ErrNotFound
	}
	b, ok := s.bounties[p.BountyID]
	if !ok {
		return models.Payment{}, models.Bounty{}, storage.ErrNotFound
	}
	if p.Status != models.PaymentHeld || b.Status != models.BountyInProgress {
		return models.Payment{}, models.Bounty{}, storage.ErrConflict
	}

	p.Status = models.PaymentReleased
	p.TransferID = transferID
	p.ReleasedAt = &at
	p.UpdatedAt = s.now()
	s.payments[paymentID] = p

	b.Status = models.BountyCompleted
	b.CompletedAt = &at
	b, _ = s.updateBounty(b, models.BountyInProgress)
	return p, b, nil
}

// SetTransferByBounty implements storage.PaymentStore.
func (s *Store) SetTransferByBounty(_ context.Context, bountyID int64, transferID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, p := range s.payments {
		if p.BountyID == bountyID {
			p.TransferID = transferID
			p.UpdatedAt = s.now()
			s.payments[id] = p
			return nil
		}
	}
	return storage.ErrNotFound
}

// RecordWebhookEvent implements storage.PaymentStore.
func (s *Store) RecordWebhookEvent(_ context.Context, ev models.WebhookEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, seen := s.events[ev.ID]; seen {
		return storage.ErrAlreadyExists
	}
	s.events[ev.ID] = ev
	return nil
}

// ForgetWebhookEvent implements storage.PaymentStore.
func (s *Store) ForgetWebhookEvent(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.events, id)
	return nil
}
