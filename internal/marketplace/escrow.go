package marketplace

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/hongminglow/bountyboard/internal/auth"
	"github.com/hongminglow/bountyboard/internal/email"
	"github.com/hongminglow/bountyboard/internal/metrics"
	"github.com/hongminglow/bountyboard/internal/models"
	"github.com/hongminglow/bountyboard/internal/models/dto"
	"github.com/hongminglow/bountyboard/internal/payments"
	"github.com/hongminglow/bountyboard/internal/storage"
)

// GetPayment returns a bounty's escrow record to its owner or assigned freelancer.
// The client secret is only shown to the owner.
func (s *Service) GetPayment(ctx context.Context, actor auth.Claims, bountyID int64) (models.Payment, error) {
	b, err := s.store.GetBounty(ctx, bountyID)
	if err != nil {
		return models.Payment{}, storeErr(err, "bounty")
	}
	if b.ClientID != actor.UserID && !b.IsAssigned(actor.UserID) {
		return models.Payment{}, forbidden("only the bounty owner or assigned freelancer can view the payment")
	}
	pay, err := s.store.GetPaymentByBounty(ctx, bountyID)
	if err != nil {
		return models.Payment{}, storeErr(err, "payment")
	}
	if b.ClientID != actor.UserID || pay.Status != models.PaymentPending {
		pay.ClientSecret = ""
	}
	return pay, nil
}

// FundEscrow returns the client secret needed to fund a pending payment,
// creating the provider intent if an earlier attempt failed.
func (s *Service) FundEscrow(ctx context.Context, actor auth.Claims, bountyID int64) (models.Payment, error) {
	b, err := s.ownedBounty(ctx, actor, bountyID)
	if err != nil {
		return models.Payment{}, err
	}
	if b.Status != models.BountyInProgress {
		return models.Payment{}, conflict("bounty is not in progress")
	}
	pay, err := s.store.GetPaymentByBounty(ctx, bountyID)
	if err != nil {
		return models.Payment{}, storeErr(err, "payment")
	}
	if pay.Status == models.PaymentFailed {
		// a failed intent accepts a new payment method with the same secret
		pay, err = s.store.UpdatePaymentStatus(ctx, pay.ID, []models.PaymentStatus{models.PaymentFailed}, models.PaymentPending)
		if err != nil {
			return models.Payment{}, storeErr(err, "payment")
		}
	}
	if pay.Status != models.PaymentPending {
		return models.Payment{}, conflict("escrow is already funded")
	}
	if pay.IntentID != "" {
		return pay, nil
	}
	funded, err := s.openEscrow(ctx, pay)
	if err != nil {
		if errors.Is(err, payments.ErrNotConfigured) {
			return models.Payment{}, unavailable("payments are currently unavailable", err)
		}
		return models.Payment{}, unavailable("could not start the payment, please try again", err)
	}
	return funded, nil
}

// ReleasePayment pays the freelancer for approved work. The guard chain runs
// in order and the first failing check decides the error; only then is the
// provider asked to capture and transfer.
func (s *Service) ReleasePayment(ctx context.Context, actor auth.Claims, bountyID int64) (models.Payment, error) {
	if actor.UserID == 0 {
		return models.Payment{}, &Error{Kind: KindUnauthorized, Message: "sign in to release payments"}
	}
	if actor.Role != models.RoleClient && actor.Role != models.RoleAdmin {
		return models.Payment{}, forbidden("only clients can release payments")
	}
	b, err := s.store.GetBounty(ctx, bountyID)
	if err != nil {
		return models.Payment{}, storeErr(err, "bounty")
	}
	if b.ClientID != actor.UserID {
		return models.Payment{}, forbidden("only the bounty owner can release payment")
	}
	pay, payErr := s.store.GetPaymentByBounty(ctx, bountyID)
	if payErr == nil && pay.Status == models.PaymentReleased {
		return models.Payment{}, conflict("payment already released")
	}
	if b.Status != models.BountyInProgress {
		return models.Payment{}, conflict("bounty is not in progress")
	}
	if payErr != nil {
		return models.Payment{}, storeErr(payErr, "payment")
	}
	if pay.Status != models.PaymentHeld {
		return models.Payment{}, conflict("escrow has not been funded")
	}
	latest, err := s.store.LatestSubmission(ctx, bountyID)
	if errors.Is(err, storage.ErrNotFound) || (err == nil && latest.Status != models.SubmissionApproved) {
		return models.Payment{}, conflict("approve the submitted work before releasing payment")
	}
	if err != nil {
		return models.Payment{}, err
	}
	freelancer, err := s.store.GetUser(ctx, pay.FreelancerID)
	if err != nil {
		return models.Payment{}, storeErr(err, "freelancer")
	}
	if freelancer.StripeAccountID == "" || !freelancer.PayoutsEnabled {
		return models.Payment{}, conflict("the freelancer has not finished payout setup")
	}

	entry := s.log.WithFields(logrus.Fields{"bounty_id": b.ID, "payment_id": pay.ID})
	// a retry after a failed transfer finds the intent already captured
	err = s.payments.CaptureIntent(ctx, pay.IntentID, fmt.Sprintf("escrow-capture-%d", pay.ID))
	if errors.Is(err, payments.ErrAlreadyCaptured) {
		entry.Info("escrow already captured, continuing with transfer")
		err = nil
	}
	if err != nil {
		metrics.RecordEscrow("release", false)
		entry.WithError(err).Error("capture escrow")
		return models.Payment{}, unavailable("the payment provider could not capture the funds, please try again", err)
	}
	transferID, err := s.payments.Transfer(ctx, payments.TransferRequest{
		AmountCents:    pay.PayoutCents(),
		Currency:       pay.Currency,
		Destination:    freelancer.StripeAccountID,
		TransferGroup:  transferGroup(b.ID),
		IdempotencyKey: fmt.Sprintf("escrow-transfer-%d", pay.ID),
	})
	if err != nil {
		metrics.RecordEscrow("release", false)
		entry.WithError(err).Error("transfer escrow")
		return models.Payment{}, unavailable("the payment provider could not transfer the funds, please try again", err)
	}

	released, completed, err := s.store.ReleasePayment(ctx, pay.ID, transferID, s.now())
	if errors.Is(err, storage.ErrConflict) {
		return models.Payment{}, conflict("payment already released")
	}
	if err != nil {
		entry.WithError(err).Error("record escrow release")
		return models.Payment{}, err
	}
	metrics.RecordEscrow("release", true)
	metrics.RecordBountyTransition(string(models.BountyCompleted))
	s.invalidateBounties(ctx)

	amount := formatMoney(released.PayoutCents(), released.Currency)
	s.notify(ctx, freelancer.ID, pushNote("Payment released", fmt.Sprintf("%s is on its way for %q.", amount, completed.Title), completed.ID))
	s.mail(ctx, freelancer.ID, "Payment released for "+completed.Title,
		fmt.Sprintf("# Payment released\n\n%s has been transferred to your payout account for **%s**.\n", amount, email.EscapeMarkdown(completed.Title)))
	return released, nil
}

// ConnectAccount ensures the freelancer has a payout account and returns an onboarding link.
func (s *Service) ConnectAccount(ctx context.Context, actor auth.Claims) (dto.ConnectResponse, error) {
	if actor.Role != models.RoleFreelancer {
		return dto.ConnectResponse{}, forbidden("only freelancers receive payouts")
	}
	user, err := s.store.GetUser(ctx, actor.UserID)
	if err != nil {
		return dto.ConnectResponse{}, storeErr(err, "user")
	}
	if user.StripeAccountID == "" {
		accountID, err := s.payments.CreateConnectAccount(ctx, user.Email)
		if err != nil {
			return dto.ConnectResponse{}, unavailable("could not create a payout account, please try again", err)
		}
		if err := s.store.SetStripeAccount(ctx, user.ID, accountID); err != nil {
			return dto.ConnectResponse{}, storeErr(err, "user")
		}
		user.StripeAccountID = accountID
	}
	if user.PayoutsEnabled {
		return dto.ConnectResponse{AccountID: user.StripeAccountID, PayoutsEnabled: true}, nil
	}
	link, err := s.payments.OnboardingLink(ctx, user.StripeAccountID,
		s.opts.AppBaseURL+"/settings/payouts?refresh=1", s.opts.AppBaseURL+"/settings/payouts?done=1")
	if err != nil {
		return dto.ConnectResponse{}, unavailable("could not start payout onboarding, please try again", err)
	}
	return dto.ConnectResponse{AccountID: user.StripeAccountID, OnboardingURL: link}, nil
}

// ConnectStatus reports the caller's payout account state.
func (s *Service) ConnectStatus(ctx context.Context, actor auth.Claims) (dto.ConnectResponse, error) {
	user, err := s.store.GetUser(ctx, actor.UserID)
	if err != nil {
		return dto.ConnectResponse{}, storeErr(err, "user")
	}
	return dto.ConnectResponse{AccountID: user.StripeAccountID, PayoutsEnabled: user.PayoutsEnabled}, nil
}
