package payments

import (
	"context"
	"errors"
)

// ErrNotConfigured is returned when no payment provider credentials are set.
var ErrNotConfigured = errors.New("payments are not configured")

// ErrAlreadyCaptured is returned by CaptureIntent when the intent's funds were
// captured by an earlier call.
var ErrAlreadyCaptured = errors.New("payment intent already captured")

// ErrInvalidSignature is returned for webhook payloads that fail verification.
var ErrInvalidSignature = errors.New("invalid webhook signature")

// Event types the marketplace reacts to.
const (
	EventIntentAuthorized = "payment_intent.amount_capturable_updated"
	EventIntentSucceeded  = "payment_intent.succeeded"
	EventIntentFailed     = "payment_intent.payment_failed"
	EventIntentCanceled   = "payment_intent.canceled"
	EventAccountUpdated   = "account.updated"
	EventTransferCreated  = "transfer.created"
)

// EscrowIntent describes funds a client places in escrow for a bounty.
type EscrowIntent struct {
	PaymentID     int64
	BountyID      int64
	AmountCents   int64
	Currency      string
	ReceiptEmail  string
	TransferGroup string
}

// Intent is a provider payment intent awaiting client confirmation.
type Intent struct {
	ID           string
	ClientSecret string
}

// TransferRequest moves released funds to a freelancer's connect account.
type TransferRequest struct {
	AmountCents    int64
	Currency       string
	Destination    string
	TransferGroup  string
	IdempotencyKey string
}

// Event is the provider-neutral subset of a webhook event.
type Event struct {
	ID             string
	Type           string
	IntentID       string
	AccountID      string
	PayoutsEnabled bool
	TransferID     string
	TransferGroup  string
}

// Provider is the escrow surface of the payment processor. Ledger, capture and
// transfer guarantees belong to the provider.
type Provider interface {
	CreateEscrowIntent(ctx context.Context, in EscrowIntent) (Intent, error)
	CaptureIntent(ctx context.Context, intentID, idempotencyKey string) error
	// CancelIntent returns escrowed funds: an uncaptured authorisation is voided
	// and captured funds are refunded. Cancelling twice is not an error.
	CancelIntent(ctx context.Context, intentID string) error
	Transfer(ctx context.Context, req TransferRequest) (string, error)
	CreateConnectAccount(ctx context.Context, email string) (string, error)
	OnboardingLink(ctx context.Context, accountID, refreshURL, returnURL string) (string, error)
	ParseWebhook(payload []byte, signature string) (Event, error)
}

// Fee returns the platform's cut of amount in basis points, rounded down.
func Fee(amountCents, bps int64) int64 {
	if amountCents <= 0 || bps <= 0 {
		return 0
	}
	return amountCents * bps / 10000
}

// Disabled is the Provider used when no credentials are configured.
type Disabled struct{}

var _ Provider = Disabled{}

func (Disabled) CreateEscrowIntent(context.Context, EscrowIntent) (Intent, error) {
	return Intent{}, ErrNotConfigured
}
func (Disabled) CaptureIntent(context.Context, string, string) error { return ErrNotConfigured }
func (Disabled) CancelIntent(context.Context, string) error          { return ErrNotConfigured }
func (Disabled) Transfer(context.Context, TransferRequest) (string, error) {
	return "", ErrNotConfigured
}
func (Disabled) CreateConnectAccount(context.Context, string) (string, error) {
	return "", ErrNotConfigured
}
func (Disabled) OnboardingLink(context.Context, string, string, string) (string, error) {
	return "", ErrNotConfigured
}
func (Disabled) ParseWebhook([]byte, string) (Event, error) { return Event{}, ErrNotConfigured }
