package payments

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
)

const testWebhookSecret = "whsec_test"

func signed(t *testing.T, payload string) (string, []byte) {
	t.Helper()
	sp := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   []byte(payload),
		Secret:    testWebhookSecret,
		Timestamp: time.Now(),
	})
	return sp.Header, sp.Payload
}

func TestParseWebhookPaymentIntent(t *testing.T) {
	p := NewStripe("sk_test", testWebhookSecret)
	header, body := signed(t, `{"id":"evt_1","object":"event","type":"payment_intent.amount_capturable_updated",
		"data":{"object":{"id":"pi_123","object":"payment_intent"}}}`)

	ev, err := p.ParseWebhook(body, header)
	require.NoError(t, err)
	assert.Equal(t, "evt_1", ev.ID)
	assert.Equal(t, EventIntentAuthorized, ev.Type)
	assert.Equal(t, "pi_123", ev.IntentID)
}

func TestParseWebhookAccountUpdated(t *testing.T) {
	p := NewStripe("sk_test", testWebhookSecret)
	header, body := signed(t, `{"id":"evt_2","object":"event","type":"account.updated",
		"data":{"object":{"id":"acct_9","object":"account","charges_enabled":true,"payouts_enabled":true}}}`)

	ev, err := p.ParseWebhook(body, header)
	require.NoError(t, err)
	assert.Equal(t, "acct_9", ev.AccountID)
	assert.True(t, ev.PayoutsEnabled)
}

func TestParseWebhookTransferCreated(t *testing.T) {
	p := NewStripe("sk_test", testWebhookSecret)
	header, body := signed(t, `{"id":"evt_3","object":"event","type":"transfer.created",
		"data":{"object":{"id":"tr_5","object":"transfer","transfer_group":"bounty-12"}}}`)

	ev, err := p.ParseWebhook(body, header)
	require.NoError(t, err)
	assert.Equal(t, "tr_5", ev.TransferID)
	assert.Equal(t, "bounty-12", ev.TransferGroup)
}

func TestParseWebhookRejectsBadSignature(t *testing.T) {
	p := NewStripe("sk_test", testWebhookSecret)
	_, body := signed(t, `{"id":"evt_4","object":"event","type":"account.updated","data":{"object":{}}}`)

	_, err := p.ParseWebhook(body, "t=1,v1=deadbeef")
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestParseWebhookWithoutSecret(t *testing.T) {
	_, err := NewStripe("sk_test", "").ParseWebhook([]byte(`{}`), "")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestFee(t *testing.T) {
	assert.Equal(t, int64(1000), Fee(10000, 1000))
	assert.Equal(t, int64(99), Fee(999, 1000))
	assert.Equal(t, int64(0), Fee(10000, 0))
	assert.Equal(t, int64(0), Fee(-5, 1000))
}

// stripeAPI serves canned JSON per "METHOD path" and records request paths.
type stripeAPI struct {
	mu       sync.Mutex
	routes   map[string]cannedResponse
	requests []string
	idemKeys map[string]string
}

type cannedResponse struct {
	status int
	body   string
}

func newStripeAPI(t *testing.T, routes map[string]cannedResponse) (*Stripe, *stripeAPI) {
	t.Helper()
	api := &stripeAPI{routes: routes, idemKeys: map[string]string{}}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Method + " " + r.URL.Path
		api.mu.Lock()
		api.requests = append(api.requests, key)
		api.idemKeys[key] = r.Header.Get("Idempotency-Key")
		resp, ok := api.routes[key]
		api.mu.Unlock()
		if !ok {
			resp = cannedResponse{http.StatusNotFound, `{"error":{"type":"invalid_request_error","message":"no route"}}`}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(resp.status)
		fmt.Fprint(w, resp.body)
	}))
	t.Cleanup(ts.Close)

	cfg := &stripe.BackendConfig{
		URL:               stripe.String(ts.URL),
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelNull},
	}
	backends := &stripe.Backends{
		API:     stripe.GetBackendWithConfig(stripe.APIBackend, cfg),
		Connect: stripe.GetBackendWithConfig(stripe.ConnectBackend, cfg),
		Uploads: stripe.GetBackendWithConfig(stripe.UploadsBackend, cfg),
	}
	return newStripe("sk_test", testWebhookSecret, backends), api
}

func unexpectedState(status string) cannedResponse {
	intent := ""
	if status != "" {
		intent = fmt.Sprintf(`,"payment_intent":{"id":"pi_1","object":"payment_intent","status":%q}`, status)
	}
	return cannedResponse{http.StatusBadRequest, fmt.Sprintf(`{"error":{"type":"invalid_request_error",
		"code":"payment_intent_unexpected_state","message":"unexpected state"%s}}`, intent)}
}

func TestCaptureIntentReportsAlreadyCaptured(t *testing.T) {
	p, _ := newStripeAPI(t, map[string]cannedResponse{
		"POST /v1/payment_intents/pi_1/capture": unexpectedState("succeeded"),
	})
	err := p.CaptureIntent(context.Background(), "pi_1", "escrow-capture-1")
	assert.ErrorIs(t, err, ErrAlreadyCaptured)
}

func TestCaptureIntentLooksUpStateWhenErrorOmitsIt(t *testing.T) {
	p, api := newStripeAPI(t, map[string]cannedResponse{
		"POST /v1/payment_intents/pi_1/capture": unexpectedState(""),
		"GET /v1/payment_intents/pi_1":          {http.StatusOK, `{"id":"pi_1","object":"payment_intent","status":"succeeded"}`},
	})
	err := p.CaptureIntent(context.Background(), "pi_1", "escrow-capture-1")
	assert.ErrorIs(t, err, ErrAlreadyCaptured)
	assert.Contains(t, api.requests, "GET /v1/payment_intents/pi_1")
}

func TestCaptureIntentOtherStatesStayErrors(t *testing.T) {
	p, _ := newStripeAPI(t, map[string]cannedResponse{
		"POST /v1/payment_intents/pi_1/capture": unexpectedState("requires_payment_method"),
	})
	err := p.CaptureIntent(context.Background(), "pi_1", "escrow-capture-1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrAlreadyCaptured)
}

func TestCancelIntentRefundsCapturedFunds(t *testing.T) {
	p, api := newStripeAPI(t, map[string]cannedResponse{
		"POST /v1/payment_intents/pi_1/cancel": unexpectedState("succeeded"),
		"POST /v1/refunds":                     {http.StatusOK, `{"id":"re_1","object":"refund","status":"succeeded"}`},
	})
	require.NoError(t, p.CancelIntent(context.Background(), "pi_1"))
	assert.Contains(t, api.requests, "POST /v1/refunds")
	assert.Equal(t, "escrow-refund-pi_1", api.idemKeys["POST /v1/refunds"])
}

func TestCancelIntentTwiceIsNotAnError(t *testing.T) {
	p, api := newStripeAPI(t, map[string]cannedResponse{
		"POST /v1/payment_intents/pi_1/cancel": unexpectedState("canceled"),
	})
	require.NoError(t, p.CancelIntent(context.Background(), "pi_1"))
	assert.NotContains(t, api.requests, "POST /v1/refunds")
}
