package memory

import (
	"context"
	"sort"
	"time"

	"github.com/hongminglow/bountyboard/internal/models"
	"github.com/hongminglow/bountyboard/internal/storage"
)

func sameBounty(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// FindOrCreateThread implements storage.MessageStore.
func (s *Store) FindOrCreateThread(_ context.Context, bountyID *int64, a, b int64) (models.MessageThread, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	low, high := storage.OrderedPair(a, b)
	for _, t := range s.threads {
		if t.ParticipantA == low && t.ParticipantB == high && sameBounty(t.BountyID, bountyID) {
			return t, nil
		}
	}
	t := models.MessageThread{ID: s.id(), ParticipantA: low, ParticipantB: high, CreatedAt: s.now()}
	if bountyID != nil {
		id := *bountyID
		t.BountyID = &id
	}
	s.threads[t.ID] = t
	return t, nil
}

// GetThread implements storage.MessageStore.
func (s *Store) GetThread(_ context.Context, id int64) (models.MessageThread, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.threads[id]
	if !ok {
		return models.MessageThread{}, storage.ErrNotFound
	}
	return t, nil
}

// ListThreads implements storage.MessageStore.
func (s *Store) ListThreads(_ context.Context, userID int64) ([]models.MessageThread, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.MessageThread{}
	for _, t := range s.threads {
		if !t.HasParticipant(userID) {
			continue
		}
		for _, m := range s.messages {
			if m.ThreadID == t.ID && m.SenderID != userID && m.ReadAt == nil {
				t.UnreadCount++
			}
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return threadActivity(out[i]).After(threadActivity(out[j])) })
	return out, nil
}

func threadActivity(t models.MessageThread) time.Time {
	if t.LastMessageAt != nil {
		return *t.LastMessageAt
	}
	return t.CreatedAt
}

// CreateMessage implements storage.MessageStore.
func (s *Store) CreateMessage(_ context.Context, m models.Message) (models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeErr("CreateMessage"); err != nil {
		return models.Message{}, err
	}
	t, ok := s.threads[m.ThreadID]
	if !ok {
		return models.Message{}, storage.ErrNotFound
	}
	m.ID = s.id()
	m.CreatedAt = s.now()
	s.messages[m.ID] = m
	created := m.CreatedAt
	t.LastMessageAt = &created
	s.threads[t.ID] = t
	return m, nil
}

// ListMessages implements storage.MessageStore.
func (s *Store) ListMessages(_ context.Context, threadID int64, beforeID int64, limit int) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Message
	for _, m := range s.messages {
		if m.ThreadID == threadID && (beforeID == 0 || m.ID < beforeID) {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	if out == nil {
		out = []models.Message{}
	}
	return out, nil
}

// MarkThreadRead implements storage.MessageStore.
func (s *Store) MarkThreadRead(_ context.Context, threadID, readerID int64, at time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, m := range s.messages {
		if m.ThreadID == threadID && m.SenderID != readerID && m.ReadAt == nil {
			m.ReadAt = &at
			s.messages[id] = m
			n++
		}
	}
	return n, nil
}

// UnreadCount implements storage.MessageStore.
func (s *Store) UnreadCount(_ context.Context, userID int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, m := range s.messages {
		t, ok := s.threads[m.ThreadID]
		if ok && t.HasParticipant(userID) && m.SenderID != userID && m.ReadAt == nil {
			n++
		}
	}
	return n, nil
}
