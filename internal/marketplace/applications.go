package marketplace

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"github.com/hongminglow/bountyboard/internal/auth"
	"github.com/hongminglow/bountyboard/internal/email"
	"github.com/hongminglow/bountyboard/internal/metrics"
	"github.com/hongminglow/bountyboard/internal/models"
	"github.com/hongminglow/bountyboard/internal/models/dto"
	"github.com/hongminglow/bountyboard/internal/payments"
	"github.com/hongminglow/bountyboard/internal/storage"
)

// Apply records the caller's application to an OPEN bounty.
func (s *Service) Apply(ctx context.Context, actor auth.Claims, bountyID int64, req dto.ApplyRequest) (models.Application, error) {
	if actor.Role != models.RoleFreelancer {
		return models.Application{}, forbidden("only freelancers can apply")
	}
	b, err := s.store.GetBounty(ctx, bountyID)
	if err != nil {
		return models.Application{}, storeErr(err, "bounty")
	}
	if b.Status == models.BountyDraft {
		return models.Application{}, notFound("bounty not found")
	}
	if b.ClientID == actor.UserID {
		return models.Application{}, forbidden("you cannot apply to your own bounty")
	}
	if b.Status != models.BountyOpen {
		return models.Application{}, conflict("bounty is not accepting applications")
	}
	if b.Deadline != nil && !b.Deadline.After(s.now()) {
		return models.Application{}, conflict("bounty deadline has passed")
	}

	letter := strings.TrimSpace(req.CoverLetter)
	if n := utf8.RuneCountInString(letter); n < 20 || n > 5000 {
		return models.Application{}, invalid("cover letter must be between 20 and 5000 characters")
	}
	if req.ProposedCents != 0 && req.ProposedCents < minBudgetCents {
		return models.Application{}, invalid(fmt.Sprintf("proposed amount must be at least %d cents", minBudgetCents))
	}

	app, err := s.store.CreateApplication(ctx, models.Application{
		BountyID:      b.ID,
		FreelancerID:  actor.UserID,
		CoverLetter:   letter,
		ProposedCents: req.ProposedCents,
		Status:        models.ApplicationPending,
	})
	if errors.Is(err, storage.ErrAlreadyExists) {
		return models.Application{}, conflict("you have already applied to this bounty")
	}
	if err != nil {
		return models.Application{}, storeErr(err, "application")
	}
	s.notify(ctx, b.ClientID, pushNote("New application", fmt.Sprintf("%s applied to %q.", actor.Username, b.Title), b.ID))
	return app, nil
}

// ListApplications returns every application to the owner, or only the
// caller's own application to anyone else.
func (s *Service) ListApplications(ctx context.Context, actor auth.Claims, bountyID int64) ([]models.Application, error) {
	b, err := s.store.GetBounty(ctx, bountyID)
	if err != nil {
		return nil, storeErr(err, "bounty")
	}
	apps, err := s.store.ListApplications(ctx, bountyID)
	if err != nil {
		return nil, err
	}
	if b.ClientID == actor.UserID {
		return apps, nil
	}
	own := []models.Application{}
	for _, a := range apps {
		if a.FreelancerID == actor.UserID {
			own = append(own, a)
		}
	}
	return own, nil
}

// WithdrawApplication lets an applicant retract a pending application.
func (s *Service) WithdrawApplication(ctx context.Context, actor auth.Claims, applicationID int64) (models.Application, error) {
	app, err := s.store.GetApplication(ctx, applicationID)
	if err != nil {
		return models.Application{}, storeErr(err, "application")
	}
	if app.FreelancerID != actor.UserID {
		return models.Application{}, forbidden("only the applicant can withdraw an application")
	}
	if app.Status != models.ApplicationPending {
		return models.Application{}, conflict("only pending applications can be withdrawn")
	}
	out, err := s.store.UpdateApplicationStatus(ctx, app.ID, models.ApplicationPending, models.ApplicationWithdrawn)
	return out, storeErr(err, "application")
}

// RejectApplication lets the bounty owner decline a pending application.
func (s *Service) RejectApplication(ctx context.Context, actor auth.Claims, applicationID int64) (models.Application, error) {
	app, b, err := s.ownerApplication(ctx, actor, applicationID)
	if err != nil {
		return models.Application{}, err
	}
	if app.Status != models.ApplicationPending {
		return models.Application{}, conflict("only pending applications can be rejected")
	}
	out, err := s.store.UpdateApplicationStatus(ctx, app.ID, models.ApplicationPending, models.ApplicationRejected)
	if err != nil {
		return models.Application{}, storeErr(err, "application")
	}
	s.notify(ctx, app.FreelancerID, pushNote("Application update", fmt.Sprintf("Your application to %q was not selected.", b.Title), b.ID))
	return out, nil
}

// AcceptApplication hires the applicant: the bounty moves to IN_PROGRESS and an
// escrow payment is opened for the client to fund.
func (s *Service) AcceptApplication(ctx context.Context, actor auth.Claims, applicationID int64) (dto.AcceptResponse, error) {
	app, b, err := s.ownerApplication(ctx, actor, applicationID)
	if err != nil {
		return dto.AcceptResponse{}, err
	}
	if b.Status != models.BountyOpen {
		return dto.AcceptResponse{}, conflict("bounty is not open")
	}
	if app.Status != models.ApplicationPending {
		return dto.AcceptResponse{}, conflict("only pending applications can be accepted")
	}

	amount, fee := escrowAmount(b, app, s.opts.PlatformFeeBPS)
	app, b, pay, err := s.store.AcceptApplication(ctx, app.ID, models.Payment{
		AmountCents: amount,
		FeeCents:    fee,
		Currency:    b.Currency,
		Status:      models.PaymentPending,
	})
	if err != nil {
		return dto.AcceptResponse{}, storeErr(err, "application")
	}
	metrics.RecordBountyTransition(string(models.BountyInProgress))
	s.invalidateBounties(ctx)

	if funded, err := s.openEscrow(ctx, pay); err != nil {
		// the hire stands; the client can retry funding from the payment page
		s.log.WithFields(logrus.Fields{"bounty_id": b.ID, "payment_id": pay.ID}).WithError(err).Warn("open escrow intent")
	} else {
		pay = funded
	}

	s.notify(ctx, app.FreelancerID, pushNote("You're hired!", fmt.Sprintf("Your application to %q was accepted.", b.Title), b.ID))
	s.mail(ctx, app.FreelancerID, "You were hired for "+b.Title,
		fmt.Sprintf("# You're hired\n\nYour application to **%s** was accepted. The agreed amount is %s.\n\n[Open the bounty](%s%s)\n",
			email.EscapeMarkdown(b.Title), formatMoney(pay.AmountCents, pay.Currency), s.opts.AppBaseURL, bountyURL(b.ID)))

	return dto.AcceptResponse{Application: app, Bounty: b, Payment: pay, ClientSecret: pay.ClientSecret}, nil
}

// ownerApplication loads an application and its bounty, requiring the caller to own the bounty.
func (s *Service) ownerApplication(ctx context.Context, actor auth.Claims, applicationID int64) (models.Application, models.Bounty, error) {
	app, err := s.store.GetApplication(ctx, applicationID)
	if err != nil {
		return models.Application{}, models.Bounty{}, storeErr(err, "application")
	}
	b, err := s.store.GetBounty(ctx, app.BountyID)
	if err != nil {
		return models.Application{}, models.Bounty{}, storeErr(err, "bounty")
	}
	if b.ClientID != actor.UserID {
		return models.Application{}, models.Bounty{}, forbidden("only the bounty owner can do that")
	}
	return app, b, nil
}

// openEscrow creates the provider intent for a pending payment and stores it.
func (s *Service) openEscrow(ctx context.Context, pay models.Payment) (models.Payment, error) {
	client, err := s.store.GetUser(ctx, pay.ClientID)
	if err != nil {
		return pay, err
	}
	intent, err := s.payments.CreateEscrowIntent(ctx, payments.EscrowIntent{
		PaymentID:     pay.ID,
		BountyID:      pay.BountyID,
		AmountCents:   pay.AmountCents,
		Currency:      pay.Currency,
		ReceiptEmail:  client.Email,
		TransferGroup: transferGroup(pay.BountyID),
	})
	if err != nil {
		metrics.RecordEscrow("fund", false)
		return pay, err
	}
	if err := s.store.SetPaymentIntent(ctx, pay.ID, intent.ID, intent.ClientSecret); err != nil {
		return pay, err
	}
	metrics.RecordEscrow("fund", true)
	pay.IntentID, pay.ClientSecret = intent.ID, intent.ClientSecret
	return pay, nil
}

func transferGroup(bountyID int64) string {
	return fmt.Sprintf("bounty-%d", bountyID)
}
