package memory

import (
	"context"
	"sort"
	"time"

	"github.com/hongminglow/bountyboard/internal/models"
	"github.com/hongminglow/bountyboard/internal/storage"
)

// CreateApplication implements storage.ApplicationStore.
func (s *Store) CreateApplication(_ context.Context, a models.Application) (models.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeErr("CreateApplication"); err != nil {
		return models.Application{}, err
	}
	for _, existing := range s.applications {
		if existing.BountyID == a.BountyID && existing.FreelancerID == a.FreelancerID {
			return models.Application{}, storage.ErrAlreadyExists
		}
	}
	now := s.now()
	a.ID = s.id()
	a.CreatedAt, a.UpdatedAt = now, now
	s.applications[a.ID] = a
	return a, nil
}

// GetApplication implements storage.ApplicationStore.
func (s *Store) GetApplication(_ context.Context, id int64) (models.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.applications[id]
	if !ok {
		return models.Application{}, storage.ErrNotFound
	}
	return a, nil
}

// ListApplications implements storage.ApplicationStore.
func (s *Store) ListApplications(_ context.Context, bountyID int64) ([]models.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filterApplications(func(a models.Application) bool { return a.BountyID == bountyID }), nil
}

// ListPendingApplicationsForClient implements storage.ApplicationStore.
func (s *Store) ListPendingApplicationsForClient(_ context.Context, clientID int64, since *time.Time) ([]models.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filterApplications(func(a models.Application) bool {
		b, ok := s.bounties[a.BountyID]
		return ok && b.ClientID == clientID && a.Status == models.ApplicationPending &&
			(since == nil || a.CreatedAt.After(*since))
	}), nil
}

func (s *Store) filterApplications(keep func(models.Application) bool) []models.Application {
	out := []models.Application{}
	for _, a := range s.applications {
		if keep(a) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// UpdateApplicationStatus implements storage.ApplicationStore.
func (s *Store) UpdateApplicationStatus(_ context.Context, id int64, from, to models.ApplicationStatus) (models.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.moveApplication(id, from, to)
}

func (s *Store) moveApplication(id int64, from, to models.ApplicationStatus) (models.Application, error) {
	a, ok := s.applications[id]
	if !ok {
		return models.Application{}, storage.ErrNotFound
	}
	if a.Status != from {
		return models.Application{}, storage.ErrConflict
	}
	a.Status = to
	a.UpdatedAt = s.now()
	s.applications[id] = a
	return a, nil
}

// AcceptApplication implements storage.ApplicationStore. Checks run before any
// mutation so a failure leaves the store untouched.
func (s *Store) AcceptApplication(_ context.Context, applicationID int64, payment models.Payment) (models.Application, models.Bounty, models.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeErr("AcceptApplication"); err != nil {
		return models.Application{}, models.Bounty{}, models.Payment{}, err
	}

	app, ok := s.applications[applicationID]
	if !ok {
		return models.Application{}, models.Bounty{}, models.Payment{}, storage.ErrNotFound
	}
	bounty, ok := s.bounties[app.BountyID]
	if !ok {
		return models.Application{}, models.Bounty{}, models.Payment{}, storage.ErrNotFound
	}
	if app.Status != models.ApplicationPending || bounty.Status != models.BountyOpen {
		return models.Application{}, models.Bounty{}, models.Payment{}, storage.ErrConflict
	}
	for _, p := range s.payments {
		if p.BountyID == bounty.ID {
			return models.Application{}, models.Bounty{}, models.Payment{}, storage.ErrAlreadyExists
		}
	}

	app, _ = s.moveApplication(applicationID, models.ApplicationPending, models.ApplicationAccepted)
	for id, other := range s.applications {
		if other.BountyID == bounty.ID && other.ID != app.ID && other.Status == models.ApplicationPending {
			other.Status = models.ApplicationRejected
			other.UpdatedAt = s.now()
			s.applications[id] = other
		}
	}

	freelancer := app.FreelancerID
	bounty.FreelancerID = &freelancer
	bounty.Status = models.BountyInProgress
	bounty, _ = s.updateBounty(bounty, models.BountyOpen)

	now := s.now()
	payment.ID = s.id()
	payment.BountyID = bounty.ID
	payment.ClientID = bounty.ClientID
	payment.FreelancerID = freelancer
	payment.CreatedAt, payment.UpdatedAt = now, now
	s.payments[payment.ID] = payment
	return app, bounty, payment, nil
}
