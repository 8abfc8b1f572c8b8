package models

import "time"

// BountyStatus is the lifecycle position of a bounty.
type BountyStatus string

const (
	BountyDraft      BountyStatus = "DRAFT"
	BountyOpen       BountyStatus = "OPEN"
	BountyInProgress BountyStatus = "IN_PROGRESS"
	BountyCompleted  BountyStatus = "COMPLETED"
	BountyCancelled  BountyStatus = "CANCELLED"
)

// Terminal reports whether no further transition is possible.
func (s BountyStatus) Terminal() bool {
	return s == BountyCompleted || s == BountyCancelled
}

// Valid reports whether s is a known status.
func (s BountyStatus) Valid() bool {
	switch s {
	case BountyDraft, BountyOpen, BountyInProgress, BountyCompleted, BountyCancelled:
		return true
	}
	return false
}

// Bounty is a client-posted project with a budget, deadline, and status.
type Bounty struct {
	ID           int64        `json:"id"`
	ClientID     int64        `json:"client_id"`
	FreelancerID *int64       `json:"freelancer_id,omitempty"`
	Title        string       `json:"title"`
	Description  string       `json:"description"`
	Category     string       `json:"category"`
	Skills       []string     `json:"skills"`
	BudgetCents  int64        `json:"budget_cents"`
	Currency     string       `json:"currency"`
	Deadline     *time.Time   `json:"deadline,omitempty"`
	Status       BountyStatus `json:"status"`
	PublishedAt  *time.Time   `json:"published_at,omitempty"`
	CompletedAt  *time.Time   `json:"completed_at,omitempty"`
	CancelledAt  *time.Time   `json:"cancelled_at,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// IsAssigned reports whether userID is the freelancer working the bounty.
func (b Bounty) IsAssigned(userID int64) bool {
	return b.FreelancerID != nil && *b.FreelancerID == userID
}

// BountyFilter narrows public bounty listings.
type BountyFilter struct {
	Status   BountyStatus
	Category string
	Query    string
	ClientID int64
	// FreelancerID matches bounties assigned to the freelancer.
	FreelancerID int64
	Since        *time.Time
	Limit        int
	Offset       int
}
