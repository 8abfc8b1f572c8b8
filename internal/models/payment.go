package models

import "time"

// PaymentStatus is the escrow position of a bounty's funds.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentHeld     PaymentStatus = "held"
	PaymentReleased PaymentStatus = "released"
	PaymentRefunded PaymentStatus = "refunded"
	PaymentFailed   PaymentStatus = "failed"
)

// Payment is the escrow record for a single bounty.
type Payment struct {
	ID           int64         `json:"id"`
	BountyID     int64         `json:"bounty_id"`
	ClientID     int64         `json:"client_id"`
	FreelancerID int64         `json:"freelancer_id"`
	AmountCents  int64         `json:"amount_cents"`
	FeeCents     int64         `json:"fee_cents"`
	Currency     string        `json:"currency"`
	IntentID     string        `json:"intent_id,omitempty"`
	ClientSecret string        `json:"client_secret,omitempty"`
	TransferID   string        `json:"transfer_id,omitempty"`
	Status       PaymentStatus `json:"status"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
	ReleasedAt   *time.Time    `json:"released_at,omitempty"`
}

// PayoutCents is what the freelancer receives after the platform fee.
func (p Payment) PayoutCents() int64 {
	return p.AmountCents - p.FeeCents
}

// WebhookEvent records a processed payment-provider event.
type WebhookEvent struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	ReceivedAt time.Time `json:"received_at"`
}
