package marketplace

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hongminglow/bountyboard/internal/auth"
	"github.com/hongminglow/bountyboard/internal/cache"
	"github.com/hongminglow/bountyboard/internal/email"
	"github.com/hongminglow/bountyboard/internal/metrics"
	"github.com/hongminglow/bountyboard/internal/models"
	"github.com/hongminglow/bountyboard/internal/models/dto"
	"github.com/hongminglow/bountyboard/internal/payments"
	"github.com/hongminglow/bountyboard/internal/storage"
)

const (
	minBudgetCents = 500
	maxSkills      = 10
	defaultLimit   = 20
	maxLimit       = 100
)

// CreateBounty stores a new DRAFT bounty owned by the caller.
func (s *Service) CreateBounty(ctx context.Context, actor auth.Claims, in dto.BountyInput) (models.Bounty, error) {
	if actor.Role != models.RoleClient && actor.Role != models.RoleAdmin {
		return models.Bounty{}, forbidden("only clients can post bounties")
	}
	b := models.Bounty{ClientID: actor.UserID, Status: models.BountyDraft, Currency: s.opts.Currency}
	applyInput(&b, in)
	if err := s.validateBounty(b, false); err != nil {
		return models.Bounty{}, err
	}

	created, err := s.store.CreateBounty(ctx, b)
	if err != nil {
		return models.Bounty{}, storeErr(err, "bounty")
	}
	metrics.RecordBountyTransition(string(models.BountyDraft))
	s.invalidateBounties(ctx)
	return created, nil
}

// UpdateBounty edits a DRAFT or OPEN bounty owned by the caller.
func (s *Service) UpdateBounty(ctx context.Context, actor auth.Claims, id int64, in dto.BountyInput) (models.Bounty, error) {
	b, err := s.ownedBounty(ctx, actor, id)
	if err != nil {
		return models.Bounty{}, err
	}
	if b.Status != models.BountyDraft && b.Status != models.BountyOpen {
		return models.Bounty{}, conflict("only draft or open bounties can be edited")
	}
	expect := b.Status
	applyInput(&b, in)
	if err := s.validateBounty(b, b.Status == models.BountyOpen); err != nil {
		return models.Bounty{}, err
	}

	updated, err := s.store.UpdateBounty(ctx, b, expect)
	if err != nil {
		return models.Bounty{}, storeErr(err, "bounty")
	}
	s.invalidateBounties(ctx)
	return updated, nil
}

// PublishBounty moves a DRAFT bounty to OPEN. Only the owner may publish.
func (s *Service) PublishBounty(ctx context.Context, actor auth.Claims, id int64) (models.Bounty, error) {
	b, err := s.ownedBounty(ctx, actor, id)
	if err != nil {
		return models.Bounty{}, err
	}
	if b.Status != models.BountyDraft {
		return models.Bounty{}, conflict("only draft bounties can be published")
	}
	if err := s.validateBounty(b, true); err != nil {
		return models.Bounty{}, err
	}

	now := s.now()
	b.Status = models.BountyOpen
	b.PublishedAt = &now
	updated, err := s.store.UpdateBounty(ctx, b, models.BountyDraft)
	if err != nil {
		return models.Bounty{}, storeErr(err, "bounty")
	}
	metrics.RecordBountyTransition(string(models.BountyOpen))
	s.invalidateBounties(ctx)
	return updated, nil
}

// CancelBounty withdraws a bounty that has not been paid out. Escrowed funds
// are returned through the payment provider before the bounty is cancelled.
func (s *Service) CancelBounty(ctx context.Context, actor auth.Claims, id int64) (models.Bounty, error) {
	b, err := s.ownedBounty(ctx, actor, id)
	if err != nil {
		return models.Bounty{}, err
	}
	if b.Status.Terminal() {
		return models.Bounty{}, conflict(fmt.Sprintf("bounty is already %s", strings.ToLower(string(b.Status))))
	}

	if b.Status == models.BountyInProgress {
		if err := s.refundEscrow(ctx, b.ID); err != nil {
			return models.Bounty{}, err
		}
	}

	cancelled, err := s.store.CancelBounty(ctx, b.ID, b.Status, s.now())
	if err != nil {
		return models.Bounty{}, storeErr(err, "bounty")
	}
	metrics.RecordBountyTransition(string(models.BountyCancelled))
	s.invalidateBounties(ctx)
	if cancelled.FreelancerID != nil {
		s.notify(ctx, *cancelled.FreelancerID, pushNote("Bounty cancelled", fmt.Sprintf("%q was cancelled by the client.", cancelled.Title), cancelled.ID))
		s.mail(ctx, *cancelled.FreelancerID, "Bounty cancelled: "+cancelled.Title,
			fmt.Sprintf("# Bounty cancelled\n\nThe client cancelled **%s**. Any escrowed funds have been returned to them.\n", email.EscapeMarkdown(cancelled.Title)))
	}
	return cancelled, nil
}

func (s *Service) refundEscrow(ctx context.Context, bountyID int64) error {
	pay, err := s.store.GetPaymentByBounty(ctx, bountyID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return storeErr(err, "payment")
	}
	switch pay.Status {
	case models.PaymentReleased:
		return conflict("payment already released")
	case models.PaymentRefunded:
		return nil
	}
	if pay.IntentID != "" {
		if err := s.payments.CancelIntent(ctx, pay.IntentID); err != nil {
			metrics.RecordEscrow("refund", false)
			return unavailable("could not return escrowed funds, please try again", err)
		}
	}
	if _, err := s.store.UpdatePaymentStatus(ctx, pay.ID,
		[]models.PaymentStatus{models.PaymentPending, models.PaymentHeld, models.PaymentFailed}, models.PaymentRefunded); err != nil {
		return storeErr(err, "payment")
	}
	metrics.RecordEscrow("refund", true)
	return nil
}

// GetBounty returns a bounty. Drafts are only visible to their owner.
func (s *Service) GetBounty(ctx context.Context, actor *auth.Claims, id int64) (models.Bounty, error) {
	key := fmt.Sprintf("bounties:detail:%d", id)
	var b models.Bounty
	if !cache.GetJSON(ctx, s.cache, key, &b) {
		var err error
		if b, err = s.store.GetBounty(ctx, id); err != nil {
			return models.Bounty{}, storeErr(err, "bounty")
		}
		if err := cache.SetJSON(ctx, s.cache, key, b, s.opts.CacheTTL); err != nil {
			s.log.WithError(err).Debug("cache bounty detail")
		}
	}
	if b.Status == models.BountyDraft && (actor == nil || actor.UserID != b.ClientID) {
		return models.Bounty{}, notFound("bounty not found")
	}
	return b, nil
}

// ListOpenBounties returns the public marketplace listing.
func (s *Service) ListOpenBounties(ctx context.Context, category, query string, limit, offset int) (dto.BountyList, error) {
	limit, offset = page(limit, offset)
	category = strings.TrimSpace(category)
	query = strings.TrimSpace(query)

	key := fmt.Sprintf("bounties:list:%s:%s:%d:%d", category, query, limit, offset)
	var out dto.BountyList
	if cache.GetJSON(ctx, s.cache, key, &out) {
		return out, nil
	}

	list, err := s.store.ListBounties(ctx, models.BountyFilter{
		Status:   models.BountyOpen,
		Category: category,
		Query:    query,
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		return dto.BountyList{}, err
	}
	out = dto.BountyList{Bounties: list, Limit: limit, Offset: offset}
	if err := cache.SetJSON(ctx, s.cache, key, out, s.opts.CacheTTL); err != nil {
		s.log.WithError(err).Debug("cache bounty list")
	}
	return out, nil
}

// ListMyBounties returns the client's own bounties or the freelancer's assigned ones.
func (s *Service) ListMyBounties(ctx context.Context, actor auth.Claims, status models.BountyStatus, limit, offset int) (dto.BountyList, error) {
	if status != "" && !status.Valid() {
		return dto.BountyList{}, invalid("unknown status")
	}
	limit, offset = page(limit, offset)
	filter := models.BountyFilter{Status: status, Limit: limit, Offset: offset}
	if actor.Role == models.RoleFreelancer {
		filter.FreelancerID = actor.UserID
	} else {
		filter.ClientID = actor.UserID
	}
	list, err := s.store.ListBounties(ctx, filter)
	if err != nil {
		return dto.BountyList{}, err
	}
	return dto.BountyList{Bounties: list, Limit: limit, Offset: offset}, nil
}

func (s *Service) ownedBounty(ctx context.Context, actor auth.Claims, id int64) (models.Bounty, error) {
	b, err := s.store.GetBounty(ctx, id)
	if err != nil {
		return models.Bounty{}, storeErr(err, "bounty")
	}
	if b.ClientID != actor.UserID {
		if b.Status == models.BountyDraft {
			return models.Bounty{}, notFound("bounty not found")
		}
		return models.Bounty{}, forbidden("only the bounty owner can do that")
	}
	return b, nil
}

func applyInput(b *models.Bounty, in dto.BountyInput) {
	if in.Title != nil {
		b.Title = strings.TrimSpace(*in.Title)
	}
	if in.Description != nil {
		b.Description = strings.TrimSpace(*in.Description)
	}
	if in.Category != nil {
		b.Category = strings.ToLower(strings.TrimSpace(*in.Category))
	}
	if in.Skills != nil {
		b.Skills = normalizeSkills(in.Skills)
	}
	if in.BudgetCents != nil {
		b.BudgetCents = *in.BudgetCents
	}
	if in.Currency != nil {
		b.Currency = strings.ToLower(strings.TrimSpace(*in.Currency))
	}
	if in.Deadline != nil {
		d := in.Deadline.UTC()
		b.Deadline = &d
	}
}

func normalizeSkills(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, skill := range in {
		skill = strings.ToLower(strings.TrimSpace(skill))
		if skill == "" || seen[skill] {
			continue
		}
		seen[skill] = true
		out = append(out, skill)
	}
	return out
}

// validateBounty checks form fields; publishing additionally needs a future deadline.
func (s *Service) validateBounty(b models.Bounty, publishing bool) error {
	if n := utf8.RuneCountInString(b.Title); n < 5 || n > 120 {
		return invalid("title must be between 5 and 120 characters")
	}
	if utf8.RuneCountInString(b.Description) < 20 {
		return invalid("description must be at least 20 characters")
	}
	if utf8.RuneCountInString(b.Category) > 40 {
		return invalid("category must be at most 40 characters")
	}
	if len(b.Skills) > maxSkills {
		return invalid(fmt.Sprintf("at most %d skills are allowed", maxSkills))
	}
	for _, skill := range b.Skills {
		if utf8.RuneCountInString(skill) > 30 {
			return invalid("skills must be at most 30 characters")
		}
	}
	if b.BudgetCents < minBudgetCents {
		return invalid(fmt.Sprintf("budget must be at least %d cents", minBudgetCents))
	}
	if len(b.Currency) != 3 {
		return invalid("currency must be a 3-letter ISO code")
	}
	now := s.now()
	if b.Deadline != nil && !b.Deadline.After(now) {
		return invalid("deadline must be in the future")
	}
	if publishing && b.Deadline == nil {
		return invalid("a deadline is required to publish")
	}
	if b.Deadline != nil && b.Deadline.After(now.Add(365*24*time.Hour)) {
		return invalid("deadline must be within a year")
	}
	return nil
}

func page(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// escrowAmount is what the client funds for an accepted application.
func escrowAmount(b models.Bounty, a models.Application, feeBPS int64) (amount, fee int64) {
	amount = a.ProposedCents
	if amount <= 0 {
		amount = b.BudgetCents
	}
	return amount, payments.Fee(amount, feeBPS)
}
