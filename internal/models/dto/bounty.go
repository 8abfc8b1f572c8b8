package dto

import (
	"time"

	"github.com/hongminglow/bountyboard/internal/models"
)

// BountyInput is the create/edit form for a bounty. Nil fields are left unchanged on edit.
type BountyInput struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	Category    *string    `json:"category"`
	Skills      []string   `json:"skills"`
	BudgetCents *int64     `json:"budget_cents"`
	Currency    *string    `json:"currency"`
	Deadline    *time.Time `json:"deadline"`
}

type BountyList struct {
	Bounties []models.Bounty `json:"bounties"`
	Limit    int             `json:"limit"`
	Offset   int             `json:"offset"`
}

type ApplyRequest struct {
	CoverLetter   string `json:"cover_letter"`
	ProposedCents int64  `json:"proposed_cents"`
}

// AcceptResponse is returned when a client hires a freelancer; ClientSecret funds escrow.
type AcceptResponse struct {
	Application  models.Application `json:"application"`
	Bounty       models.Bounty      `json:"bounty"`
	Payment      models.Payment     `json:"payment"`
	ClientSecret string             `json:"client_secret"`
}

type SubmitWorkRequest struct {
	Notes       string   `json:"notes"`
	Attachments []string `json:"attachments"`
}

type ReviewRequest struct {
	Decision string `json:"decision"`
	Feedback string `json:"feedback"`
}
