package memory

import (
	"context"
	"slices"
	"sort"
	"time"

	"github.com/hongminglow/bountyboard/internal/models"
	"github.com/hongminglow/bountyboard/internal/storage"
)

// CreateSubmission implements storage.SubmissionStore.
func (s *Store) CreateSubmission(_ context.Context, sub models.Submission) (models.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub.ID = s.id()
	sub.Attachments = slices.Clone(sub.Attachments)
	sub.CreatedAt = s.now()
	s.submissions[sub.ID] = sub
	return sub, nil
}

// GetSubmission implements storage.SubmissionStore.
func (s *Store) GetSubmission(_ context.Context, id int64) (models.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.submissions[id]
	if !ok {
		return models.Submission{}, storage.ErrNotFound
	}
	return sub, nil
}

// ListSubmissions implements storage.SubmissionStore.
func (s *Store) ListSubmissions(_ context.Context, bountyID int64) ([]models.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bountySubmissions(bountyID), nil
}

func (s *Store) bountySubmissions(bountyID int64) []models.Submission {
	out := []models.Submission{}
	for _, sub := range s.submissions {
		if sub.BountyID == bountyID {
			out = append(out, sub)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

// LatestSubmission implements storage.SubmissionStore.
func (s *Store) LatestSubmission(_ context.Context, bountyID int64) (models.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	subs := s.bountySubmissions(bountyID)
	if len(subs) == 0 {
		return models.Submission{}, storage.ErrNotFound
	}
	return subs[0], nil
}

// ReviewSubmission implements storage.SubmissionStore.
func (s *Store) ReviewSubmission(_ context.Context, id int64, status models.SubmissionStatus, feedback string, at time.Time) (models.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.submissions[id]
	if !ok {
		return models.Submission{}, storage.ErrNotFound
	}
	if sub.Status != models.SubmissionPending {
		return models.Submission{}, storage.ErrConflict
	}
	sub.Status = status
	sub.Feedback = feedback
	sub.ReviewedAt = &at
	s.submissions[id] = sub
	return sub, nil
}
