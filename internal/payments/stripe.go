package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
)

// Stripe implements Provider with manual-capture payment intents and
// Connect transfers.
type Stripe struct {
	api           *client.API
	webhookSecret string
}

var _ Provider = (*Stripe)(nil)

// NewStripe builds a provider from a secret key and webhook signing secret.
func NewStripe(secretKey, webhookSecret string) *Stripe {
	return newStripe(secretKey, webhookSecret, nil)
}

func newStripe(secretKey, webhookSecret string, backends *stripe.Backends) *Stripe {
	api := &client.API{}
	api.Init(secretKey, backends)
	return &Stripe{api: api, webhookSecret: webhookSecret}
}

// CreateEscrowIntent authorises the bounty amount without capturing it.
func (s *Stripe) CreateEscrowIntent(ctx context.Context, in EscrowIntent) (Intent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(in.AmountCents),
		Currency:      stripe.String(in.Currency),
		CaptureMethod: stripe.String(string(stripe.PaymentIntentCaptureMethodManual)),
		TransferGroup: stripe.String(in.TransferGroup),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	if in.ReceiptEmail != "" {
		params.ReceiptEmail = stripe.String(in.ReceiptEmail)
	}
	params.Context = ctx
	params.AddMetadata("bounty_id", strconv.FormatInt(in.BountyID, 10))
	params.AddMetadata("payment_id", strconv.FormatInt(in.PaymentID, 10))
	params.SetIdempotencyKey(fmt.Sprintf("escrow-intent-%d", in.PaymentID))

	pi, err := s.api.PaymentIntents.New(params)
	if err != nil {
		return Intent{}, fmt.Errorf("create payment intent: %w", err)
	}
	return Intent{ID: pi.ID, ClientSecret: pi.ClientSecret}, nil
}

// CaptureIntent captures previously authorised funds onto the platform balance.
func (s *Stripe) CaptureIntent(ctx context.Context, intentID, idempotencyKey string) error {
	params := &stripe.PaymentIntentCaptureParams{}
	params.Context = ctx
	params.SetIdempotencyKey(idempotencyKey)
	_, err := s.api.PaymentIntents.Capture(intentID, params)
	if err == nil {
		return nil
	}
	status, ok := s.unexpectedState(ctx, intentID, err)
	if ok && status == stripe.PaymentIntentStatusSucceeded {
		return ErrAlreadyCaptured
	}
	return fmt.Errorf("capture payment intent: %w", err)
}

// CancelIntent voids an uncaptured authorisation, or refunds the intent when
// its funds were already captured.
func (s *Stripe) CancelIntent(ctx context.Context, intentID string) error {
	params := &stripe.PaymentIntentCancelParams{}
	params.Context = ctx
	_, err := s.api.PaymentIntents.Cancel(intentID, params)
	if err == nil {
		return nil
	}
	status, ok := s.unexpectedState(ctx, intentID, err)
	switch {
	case ok && status == stripe.PaymentIntentStatusCanceled:
		return nil
	case ok && status == stripe.PaymentIntentStatusSucceeded:
		refund := &stripe.RefundParams{PaymentIntent: stripe.String(intentID)}
		refund.Context = ctx
		refund.SetIdempotencyKey("escrow-refund-" + intentID)
		if _, err := s.api.Refunds.New(refund); err != nil {
			return fmt.Errorf("refund captured payment intent: %w", err)
		}
		return nil
	}
	return fmt.Errorf("cancel payment intent: %w", err)
}

// unexpectedState reports the intent's current status when err says the
// intent was not in a state the call accepts.
func (s *Stripe) unexpectedState(ctx context.Context, intentID string, err error) (stripe.PaymentIntentStatus, bool) {
	var stripeErr *stripe.Error
	if !errors.As(err, &stripeErr) || stripeErr.Code != stripe.ErrorCodePaymentIntentUnexpectedState {
		return "", false
	}
	if stripeErr.PaymentIntent != nil && stripeErr.PaymentIntent.Status != "" {
		return stripeErr.PaymentIntent.Status, true
	}
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	pi, getErr := s.api.PaymentIntents.Get(intentID, params)
	if getErr != nil {
		return "", false
	}
	return pi.Status, true
}

// Transfer pays the freelancer's connect account.
func (s *Stripe) Transfer(ctx context.Context, req TransferRequest) (string, error) {
	params := &stripe.TransferParams{
		Amount:        stripe.Int64(req.AmountCents),
		Currency:      stripe.String(req.Currency),
		Destination:   stripe.String(req.Destination),
		TransferGroup: stripe.String(req.TransferGroup),
	}
	params.Context = ctx
	params.SetIdempotencyKey(req.IdempotencyKey)
	tr, err := s.api.Transfers.New(params)
	if err != nil {
		return "", fmt.Errorf("create transfer: %w", err)
	}
	return tr.ID, nil
}

// CreateConnectAccount opens an Express account able to receive transfers.
func (s *Stripe) CreateConnectAccount(ctx context.Context, email string) (string, error) {
	params := &stripe.AccountParams{
		Type:  stripe.String(string(stripe.AccountTypeExpress)),
		Email: stripe.String(email),
		Capabilities: &stripe.AccountCapabilitiesParams{
			Transfers: &stripe.AccountCapabilitiesTransfersParams{Requested: stripe.Bool(true)},
		},
	}
	params.Context = ctx
	acct, err := s.api.Accounts.New(params)
	if err != nil {
		return "", fmt.Errorf("create connect account: %w", err)
	}
	return acct.ID, nil
}

// OnboardingLink returns a hosted onboarding URL for the account.
func (s *Stripe) OnboardingLink(ctx context.Context, accountID, refreshURL, returnURL string) (string, error) {
	params := &stripe.AccountLinkParams{
		Account:    stripe.String(accountID),
		RefreshURL: stripe.String(refreshURL),
		ReturnURL:  stripe.String(returnURL),
		Type:       stripe.String(string(stripe.AccountLinkTypeAccountOnboarding)),
	}
	params.Context = ctx
	link, err := s.api.AccountLinks.New(params)
	if err != nil {
		return "", fmt.Errorf("create account link: %w", err)
	}
	return link.URL, nil
}

// ParseWebhook verifies the Stripe-Signature header and decodes the event object.
func (s *Stripe) ParseWebhook(payload []byte, signature string) (Event, error) {
	if s.webhookSecret == "" {
		return Event{}, ErrNotConfigured
	}
	ev, err := webhook.ConstructEventWithOptions(payload, signature, s.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	out := Event{ID: ev.ID, Type: string(ev.Type)}
	if ev.Data == nil {
		return out, nil
	}
	switch out.Type {
	case EventIntentAuthorized, EventIntentSucceeded, EventIntentFailed, EventIntentCanceled:
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(ev.Data.Raw, &pi); err != nil {
			return Event{}, fmt.Errorf("decode payment intent: %w", err)
		}
		out.IntentID = pi.ID
	case EventAccountUpdated:
		var acct stripe.Account
		if err := json.Unmarshal(ev.Data.Raw, &acct); err != nil {
			return Event{}, fmt.Errorf("decode account: %w", err)
		}
		out.AccountID = acct.ID
		out.PayoutsEnabled = acct.ChargesEnabled && acct.PayoutsEnabled
	case EventTransferCreated:
		var tr stripe.Transfer
		if err := json.Unmarshal(ev.Data.Raw, &tr); err != nil {
			return Event{}, fmt.Errorf("decode transfer: %w", err)
		}
		out.TransferID = tr.ID
		out.TransferGroup = tr.TransferGroup
	}
	return out, nil
}
