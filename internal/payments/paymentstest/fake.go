// Package paymentstest provides an in-memory payments.Provider for tests.
package paymentstest

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/hongminglow/bountyboard/internal/payments"
)

// Provider records calls and returns deterministic ids. Set the *Err fields to
// make matching calls fail. Like the real provider, capturing an intent twice
// reports payments.ErrAlreadyCaptured and cancelling a captured intent refunds it.
type Provider struct {
	mu sync.Mutex

	Intents   []payments.EscrowIntent
	Captured  []string
	Canceled  []string
	Refunded  []string
	Transfers []payments.TransferRequest
	Accounts  []string

	IntentErr   error
	CaptureErr  error
	TransferErr error
	CancelErr   error

	// Events is returned by ParseWebhook keyed by signature; unknown signatures fail.
	Events map[string]payments.Event
}

var _ payments.Provider = (*Provider)(nil)

// New returns an empty fake.
func New() *Provider {
	return &Provider{Events: make(map[string]payments.Event)}
}

func (p *Provider) CreateEscrowIntent(_ context.Context, in payments.EscrowIntent) (payments.Intent, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.IntentErr != nil {
		return payments.Intent{}, p.IntentErr
	}
	p.Intents = append(p.Intents, in)
	id := fmt.Sprintf("pi_%d", in.PaymentID)
	return payments.Intent{ID: id, ClientSecret: id + "_secret"}, nil
}

func (p *Provider) CaptureIntent(_ context.Context, intentID, _ string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.CaptureErr != nil {
		return p.CaptureErr
	}
	if slices.Contains(p.Captured, intentID) {
		return payments.ErrAlreadyCaptured
	}
	p.Captured = append(p.Captured, intentID)
	return nil
}

func (p *Provider) CancelIntent(_ context.Context, intentID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.CancelErr != nil {
		return p.CancelErr
	}
	if slices.Contains(p.Captured, intentID) {
		p.Refunded = append(p.Refunded, intentID)
		return nil
	}
	p.Canceled = append(p.Canceled, intentID)
	return nil
}

func (p *Provider) Transfer(_ context.Context, req payments.TransferRequest) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.TransferErr != nil {
		return "", p.TransferErr
	}
	p.Transfers = append(p.Transfers, req)
	return fmt.Sprintf("tr_%d", len(p.Transfers)), nil
}

func (p *Provider) CreateConnectAccount(_ context.Context, email string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Accounts = append(p.Accounts, email)
	return fmt.Sprintf("acct_%d", len(p.Accounts)), nil
}

func (p *Provider) OnboardingLink(_ context.Context, accountID, _, _ string) (string, error) {
	return "https://connect.example/onboard/" + accountID, nil
}

func (p *Provider) ParseWebhook(_ []byte, signature string) (payments.Event, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ev, ok := p.Events[signature]
	if !ok {
		return payments.Event{}, payments.ErrInvalidSignature
	}
	return ev, nil
}
