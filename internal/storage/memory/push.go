package memory

import (
	"context"
	"sort"

	"github.com/hongminglow/bountyboard/internal/models"
	"github.com/hongminglow/bountyboard/internal/storage"
)

// UpsertPushSubscription implements storage.PushStore.
func (s *Store) UpsertPushSubscription(_ context.Context, sub models.PushSubscription) (models.PushSubscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.push[sub.Endpoint]; ok {
		sub.ID = existing.ID
		sub.CreatedAt = existing.CreatedAt
	} else {
		sub.ID = s.id()
		sub.CreatedAt = s.now()
	}
	s.push[sub.Endpoint] = sub
	return sub, nil
}

// DeletePushSubscription implements storage.PushStore.
func (s *Store) DeletePushSubscription(_ context.Context, userID int64, endpoint string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.push[endpoint]
	if !ok || sub.UserID != userID {
		return storage.ErrNotFound
	}
	delete(s.push, endpoint)
	return nil
}

// DeletePushEndpoint implements storage.PushStore.
func (s *Store) DeletePushEndpoint(_ context.Context, endpoint string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.push, endpoint)
	return nil
}

// ListPushSubscriptions implements storage.PushStore.
func (s *Store) ListPushSubscriptions(_ context.Context, userID int64) ([]models.PushSubscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.PushSubscription
	for _, sub := range s.push {
		if sub.UserID == userID {
			out = append(out, sub)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
