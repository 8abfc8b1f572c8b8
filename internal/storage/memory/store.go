package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hongminglow/bountyboard/internal/models"
	"github.com/hongminglow/bountyboard/internal/storage"
)

var _ storage.Store = (*Store)(nil)

// Store is an in-process storage.Store for local development and tests.
type Store struct {
	mu  sync.Mutex
	seq int64
	now func() time.Time

	users        map[int64]models.User
	bounties     map[int64]models.Bounty
	applications map[int64]models.Application
	submissions  map[int64]models.Submission
	payments     map[int64]models.Payment
	events       map[string]models.WebhookEvent
	threads      map[int64]models.MessageThread
	messages     map[int64]models.Message
	push         map[string]models.PushSubscription

	nextErr map[string]error
}

// New returns an empty store.
func New() *Store {
	return &Store{
		now:          time.Now,
		users:        make(map[int64]models.User),
		bounties:     make(map[int64]models.Bounty),
		applications: make(map[int64]models.Application),
		submissions:  make(map[int64]models.Submission),
		payments:     make(map[int64]models.Payment),
		events:       make(map[string]models.WebhookEvent),
		threads:      make(map[int64]models.MessageThread),
		messages:     make(map[int64]models.Message),
		push:         make(map[string]models.PushSubscription),
		nextErr:      make(map[string]error),
	}
}

// Close is a no-op.
func (s *Store) Close() {}

// SetErr makes the next call to op fail with err.
func (s *Store) SetErr(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextErr[op] = err
}

func (s *Store) takeErr(op string) error {
	if err, ok := s.nextErr[op]; ok {
		delete(s.nextErr, op)
		return err
	}
	return nil
}

func (s *Store) id() int64 {
	s.seq++
	return s.seq
}

// CreateUser implements storage.UserStore.
func (s *Store) CreateUser(_ context.Context, user models.User) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeErr("CreateUser"); err != nil {
		return models.User{}, err
	}
	for _, u := range s.users {
		if u.Username == user.Username || strings.EqualFold(u.Email, user.Email) {
			return models.User{}, storage.ErrAlreadyExists
		}
	}
	user.ID = s.id()
	user.CreatedAt = s.now()
	s.users[user.ID] = user
	return user, nil
}

// GetUser implements storage.UserStore.
func (s *Store) GetUser(_ context.Context, id int64) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeErr("GetUser"); err != nil {
		return models.User{}, err
	}
	u, ok := s.users[id]
	if !ok {
		return models.User{}, storage.ErrNotFound
	}
	return u, nil
}

// FindByUsernameOrEmail implements storage.UserStore.
func (s *Store) FindByUsernameOrEmail(_ context.Context, identifier string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Username == identifier || strings.EqualFold(u.Email, identifier) {
			return u, nil
		}
	}
	return models.User{}, storage.ErrNotFound
}

// UpdateProfile implements storage.UserStore.
func (s *Store) UpdateProfile(_ context.Context, id int64, displayName *string, digestOptIn *bool) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return models.User{}, storage.ErrNotFound
	}
	if displayName != nil {
		u.DisplayName = *displayName
	}
	if digestOptIn != nil {
		u.DigestOptIn = *digestOptIn
	}
	s.users[id] = u
	return u, nil
}

// SetStripeAccount implements storage.UserStore.
func (s *Store) SetStripeAccount(_ context.Context, userID int64, accountID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return storage.ErrNotFound
	}
	u.StripeAccountID = accountID
	s.users[userID] = u
	return nil
}

// SetPayoutsEnabled implements storage.UserStore.
func (s *Store) SetPayoutsEnabled(_ context.Context, accountID string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, u := range s.users {
		if accountID != "" && u.StripeAccountID == accountID {
			u.PayoutsEnabled = enabled
			s.users[id] = u
			return nil
		}
	}
	return storage.ErrNotFound
}

// ListDigestRecipients implements storage.UserStore.
func (s *Store) ListDigestRecipients(_ context.Context) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeErr("ListDigestRecipients"); err != nil {
		return nil, err
	}
	var out []models.User
	for _, u := range s.users {
		if u.DigestOptIn {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// MarkDigestSent implements storage.UserStore.
func (s *Store) MarkDigestSent(_ context.Context, userID int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return storage.ErrNotFound
	}
	u.LastDigestAt = &at
	s.users[userID] = u
	return nil
}
