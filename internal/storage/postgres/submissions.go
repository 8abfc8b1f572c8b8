package postgres

import (
	"context"
	"time"

	"github.com/hongminglow/bountyboard/internal/models"
	"github.com/jackc/pgx/v5"
)

const submissionColumns = `id, bounty_id, freelancer_id, notes, attachments, status, feedback, created_at, reviewed_at`

// CreateSubmission inserts delivered work.
func (s *Store) CreateSubmission(ctx context.Context, sub models.Submission) (models.Submission, error) {
	query := `
		INSERT INTO submissions (bounty_id, freelancer_id, notes, attachments, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + submissionColumns
	return scanSubmission(s.pool.QueryRow(ctx, query, sub.BountyID, sub.FreelancerID, sub.Notes, nonNil(sub.Attachments), string(sub.Status)))
}

// GetSubmission fetches a submission by id.
func (s *Store) GetSubmission(ctx context.Context, id int64) (models.Submission, error) {
	return scanSubmission(s.pool.QueryRow(ctx, `SELECT `+submissionColumns+` FROM submissions WHERE id = $1`, id))
}

// ListSubmissions returns a bounty's submissions, newest first.
func (s *Store) ListSubmissions(ctx context.Context, bountyID int64) ([]models.Submission, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+submissionColumns+` FROM submissions WHERE bounty_id = $1 ORDER BY id DESC`, bountyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Submission{}
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

// LatestSubmission returns the most recent submission for a bounty.
func (s *Store) LatestSubmission(ctx context.Context, bountyID int64) (models.Submission, error) {
	return scanSubmission(s.pool.QueryRow(ctx, `SELECT `+submissionColumns+` FROM submissions
		WHERE bounty_id = $1 ORDER BY id DESC LIMIT 1`, bountyID))
}

// ReviewSubmission records the client's decision on a pending submission.
func (s *Store) ReviewSubmission(ctx context.Context, id int64, status models.SubmissionStatus, feedback string, at time.Time) (models.Submission, error) {
	query := `UPDATE submissions SET status = $2, feedback = $3, reviewed_at = $4
		WHERE id = $1 AND status = 'pending'
		RETURNING ` + submissionColumns
	sub, err := scanSubmission(s.pool.QueryRow(ctx, query, id, string(status), feedback, at))
	if errorsIsNotFound(err) {
		return models.Submission{}, conflictOr(ctx, s.pool, "submissions", id)
	}
	return sub, err
}

func scanSubmission(row pgx.Row) (models.Submission, error) {
	var sub models.Submission
	var status string
	if err := row.Scan(&sub.ID, &sub.BountyID, &sub.FreelancerID, &sub.Notes, &sub.Attachments, &status,
		&sub.Feedback, &sub.CreatedAt, &sub.ReviewedAt); err != nil {
		return models.Submission{}, mapErr(err)
	}
	sub.Status = models.SubmissionStatus(status)
	return sub, nil
}
