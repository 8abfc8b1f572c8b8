package marketplace

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hongminglow/bountyboard/internal/models"
	"github.com/hongminglow/bountyboard/internal/models/dto"
	"github.com/hongminglow/bountyboard/internal/payments"
)

func TestCancelBountyAfterFailedPaymentVoidsIntent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b, accepted := f.hire(t)
	intent := accepted.Payment.IntentID

	f.pay.Events["failed"] = payments.Event{ID: "evt_failed", Type: payments.EventIntentFailed, IntentID: intent}
	require.NoError(t, f.svc.HandleWebhook(ctx, nil, "failed"))

	_, err := f.svc.CancelBounty(ctx, f.client, b.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{intent}, f.pay.Canceled)

	pay, err := f.store.GetPaymentByBounty(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentRefunded, pay.Status)

	// the client retries the card after the bounty is gone
	f.pay.Events["late"] = payments.Event{ID: "evt_late", Type: payments.EventIntentAuthorized, IntentID: intent}
	require.NoError(t, f.svc.HandleWebhook(ctx, nil, "late"))

	pay, err = f.store.GetPaymentByBounty(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentRefunded, pay.Status)
	assert.NotContains(t, f.notifier.titlesFor(f.freelancer.UserID), "Escrow funded")
}

func TestAuthorizationForClosedBountyIsVoided(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b, accepted := f.hire(t)
	intent := accepted.Payment.IntentID

	// closed without going through the refund path
	_, err := f.store.CancelBounty(ctx, b.ID, models.BountyInProgress, time.Now())
	require.NoError(t, err)

	f.pay.Events["held"] = payments.Event{ID: "evt_held", Type: payments.EventIntentAuthorized, IntentID: intent}
	require.NoError(t, f.svc.HandleWebhook(ctx, nil, "held"))

	assert.Equal(t, []string{intent}, f.pay.Canceled)
	pay, err := f.store.GetPaymentByBounty(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentRefunded, pay.Status)
	assert.NotContains(t, f.notifier.titlesFor(f.client.UserID), "Escrow funded")
}

func TestAuthorizationVoidFailureIsRetried(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b, accepted := f.hire(t)
	_, err := f.store.CancelBounty(ctx, b.ID, models.BountyInProgress, time.Now())
	require.NoError(t, err)

	f.pay.CancelErr = errors.New("provider timeout")
	f.pay.Events["held"] = payments.Event{ID: "evt_held", Type: payments.EventIntentAuthorized, IntentID: accepted.Payment.IntentID}
	require.Error(t, f.svc.HandleWebhook(ctx, nil, "held"))

	f.pay.CancelErr = nil
	require.NoError(t, f.svc.HandleWebhook(ctx, nil, "held"))
	pay, err := f.store.GetPaymentByBounty(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentRefunded, pay.Status)
}

func TestWebhookRedeliveryAfterStoreFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b, accepted := f.hire(t)

	f.pay.Events["held"] = payments.Event{ID: "evt_held", Type: payments.EventIntentAuthorized, IntentID: accepted.Payment.IntentID}
	f.store.SetErr("UpdatePaymentStatus", errors.New("connection reset"))
	require.Error(t, f.svc.HandleWebhook(ctx, nil, "held"))

	pay, err := f.store.GetPaymentByBounty(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPending, pay.Status)

	require.NoError(t, f.svc.HandleWebhook(ctx, nil, "held"))
	pay, err = f.store.GetPaymentByBounty(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentHeld, pay.Status)
	assert.Contains(t, f.notifier.titlesFor(f.freelancer.UserID), "Escrow funded")
}

func TestReleasePaymentRetryAfterTransferFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.readyToRelease(t)

	f.pay.TransferErr = errors.New("account restricted")
	_, err := f.svc.ReleasePayment(ctx, f.client, b.ID)
	requireKind(t, err, KindUnavailable)
	require.Len(t, f.pay.Captured, 1)

	f.pay.TransferErr = nil
	released, err := f.svc.ReleasePayment(ctx, f.client, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentReleased, released.Status)
	assert.Len(t, f.pay.Captured, 1)
	assert.Len(t, f.pay.Transfers, 1)
}

func TestCancelAfterCaptureRefunds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.readyToRelease(t)
	pay, err := f.store.GetPaymentByBounty(ctx, b.ID)
	require.NoError(t, err)

	f.pay.TransferErr = errors.New("account restricted")
	_, err = f.svc.ReleasePayment(ctx, f.client, b.ID)
	requireKind(t, err, KindUnavailable)

	_, err = f.svc.CancelBounty(ctx, f.client, b.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{pay.IntentID}, f.pay.Refunded)
	assert.Empty(t, f.pay.Canceled)
}

func TestBountyMutationsInvalidateListings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	draft, err := f.svc.CreateBounty(ctx, f.client, validInput())
	require.NoError(t, err)
	list, err := f.svc.ListOpenBounties(ctx, "", "", 0, 0)
	require.NoError(t, err)
	assert.Empty(t, list.Bounties)
	assert.NotEmpty(t, f.cache.keys())

	_, err = f.svc.PublishBounty(ctx, f.client, draft.ID)
	require.NoError(t, err)
	assert.Empty(t, f.cache.keys())
	list, err = f.svc.ListOpenBounties(ctx, "", "", 0, 0)
	require.NoError(t, err)
	require.Len(t, list.Bounties, 1)

	got, err := f.svc.GetBounty(ctx, &f.client, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BountyOpen, got.Status)

	app, err := f.svc.Apply(ctx, f.freelancer, draft.ID, dto.ApplyRequest{CoverLetter: "I have built many landing pages before."})
	require.NoError(t, err)
	_, err = f.svc.AcceptApplication(ctx, f.client, app.ID)
	require.NoError(t, err)
	list, err = f.svc.ListOpenBounties(ctx, "", "", 0, 0)
	require.NoError(t, err)
	assert.Empty(t, list.Bounties)
	got, err = f.svc.GetBounty(ctx, nil, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BountyInProgress, got.Status)

	_, err = f.svc.CancelBounty(ctx, f.client, draft.ID)
	require.NoError(t, err)
	got, err = f.svc.GetBounty(ctx, nil, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BountyCancelled, got.Status)

	for _, pattern := range f.cache.deleted {
		assert.Equal(t, "bounties:*", pattern)
	}
	assert.Len(t, f.cache.deleted, 4)
}
