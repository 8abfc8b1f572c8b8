package models

import "time"

// ApplicationStatus tracks a freelancer's application to a bounty.
type ApplicationStatus string

const (
	ApplicationPending   ApplicationStatus = "pending"
	ApplicationAccepted  ApplicationStatus = "accepted"
	ApplicationRejected  ApplicationStatus = "rejected"
	ApplicationWithdrawn ApplicationStatus = "withdrawn"
)

// Application is a freelancer's offer to work a bounty.
type Application struct {
	ID            int64             `json:"id"`
	BountyID      int64             `json:"bounty_id"`
	FreelancerID  int64             `json:"freelancer_id"`
	CoverLetter   string            `json:"cover_letter"`
	ProposedCents int64             `json:"proposed_cents"`
	Status        ApplicationStatus `json:"status"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}
