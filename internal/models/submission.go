package models

import "time"

// SubmissionStatus tracks the client's review of delivered work.
type SubmissionStatus string

const (
	SubmissionPending           SubmissionStatus = "pending"
	SubmissionApproved          SubmissionStatus = "approved"
	SubmissionRevisionRequested SubmissionStatus = "revision_requested"
)

// Submission is a delivery of work against an in-progress bounty.
type Submission struct {
	ID           int64            `json:"id"`
	BountyID     int64            `json:"bounty_id"`
	FreelancerID int64            `json:"freelancer_id"`
	Notes        string           `json:"notes"`
	Attachments  []string         `json:"attachments"`
	Status       SubmissionStatus `json:"status"`
	Feedback     string           `json:"feedback,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	ReviewedAt   *time.Time       `json:"reviewed_at,omitempty"`
}
