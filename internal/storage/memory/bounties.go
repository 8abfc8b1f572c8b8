package memory

import (
	"context"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/hongminglow/bountyboard/internal/models"
	"github.com/hongminglow/bountyboard/internal/storage"
)

// CreateBounty implements storage.BountyStore.
func (s *Store) CreateBounty(_ context.Context, b models.Bounty) (models.Bounty, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeErr("CreateBounty"); err != nil {
		return models.Bounty{}, err
	}
	now := s.now()
	b.ID = s.id()
	b.Skills = slices.Clone(b.Skills)
	b.CreatedAt, b.UpdatedAt = now, now
	s.bounties[b.ID] = b
	return b, nil
}

// GetBounty implements storage.BountyStore.
func (s *Store) GetBounty(_ context.Context, id int64) (models.Bounty, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeErr("GetBounty"); err != nil {
		return models.Bounty{}, err
	}
	b, ok := s.bounties[id]
	if !ok {
		return models.Bounty{}, storage.ErrNotFound
	}
	return b, nil
}

// ListBounties implements storage.BountyStore.
func (s *Store) ListBounties(_ context.Context, f models.BountyFilter) ([]models.Bounty, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeErr("ListBounties"); err != nil {
		return nil, err
	}
	q := strings.ToLower(f.Query)
	out := []models.Bounty{}
	for _, b := range s.bounties {
		switch {
		case f.Status != "" && b.Status != f.Status:
		case f.Category != "" && b.Category != f.Category:
		case q != "" && !strings.Contains(strings.ToLower(b.Title), q) && !strings.Contains(strings.ToLower(b.Description), q):
		case f.ClientID != 0 && b.ClientID != f.ClientID:
		case f.FreelancerID != 0 && !b.IsAssigned(f.FreelancerID):
		case f.Since != nil && (b.PublishedAt == nil || !b.PublishedAt.After(*f.Since)):
		default:
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		ti, tj := activity(out[i]), activity(out[j])
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return out[i].ID > out[j].ID
	})
	if f.Offset >= len(out) {
		return []models.Bounty{}, nil
	}
	out = out[f.Offset:]
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func activity(b models.Bounty) time.Time {
	if b.PublishedAt != nil {
		return *b.PublishedAt
	}
	return b.CreatedAt
}

// UpdateBounty implements storage.BountyStore.
func (s *Store) UpdateBounty(_ context.Context, b models.Bounty, expect models.BountyStatus) (models.Bounty, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeErr("UpdateBounty"); err != nil {
		return models.Bounty{}, err
	}
	return s.updateBounty(b, expect)
}

func (s *Store) updateBounty(b models.Bounty, expect models.BountyStatus) (models.Bounty, error) {
	cur, ok := s.bounties[b.ID]
	if !ok {
		return models.Bounty{}, storage.ErrNotFound
	}
	if cur.Status != expect {
		return models.Bounty{}, storage.ErrConflict
	}
	b.ClientID = cur.ClientID
	b.CreatedAt = cur.CreatedAt
	b.UpdatedAt = s.now()
	b.Skills = slices.Clone(b.Skills)
	s.bounties[b.ID] = b
	return b, nil
}

// CancelBounty implements storage.BountyStore.
func (s *Store) CancelBounty(_ context.Context, id int64, expect models.BountyStatus, at time.Time) (models.Bounty, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bounties[id]
	if !ok {
		return models.Bounty{}, storage.ErrNotFound
	}
	b.Status = models.BountyCancelled
	b.CancelledAt = &at
	out, err := s.updateBounty(b, expect)
	if err != nil {
		return models.Bounty{}, err
	}
	for aid, a := range s.applications {
		if a.BountyID == id && a.Status == models.ApplicationPending {
			a.Status = models.ApplicationRejected
			a.UpdatedAt = s.now()
			s.applications[aid] = a
		}
	}
	return out, nil
}
