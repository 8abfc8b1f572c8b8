package marketplace

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/hongminglow/bountyboard/internal/auth"
	"github.com/hongminglow/bountyboard/internal/models"
	"github.com/hongminglow/bountyboard/internal/models/dto"
	"github.com/hongminglow/bountyboard/internal/storage"
	"github.com/hongminglow/bountyboard/internal/uploads"
)

const maxAttachments = 10

// Review decisions accepted by ReviewSubmission.
const (
	DecisionApprove = "approve"
	DecisionRevise  = "revise"
)

// SubmitWork records delivered work from the assigned freelancer.
func (s *Service) SubmitWork(ctx context.Context, actor auth.Claims, bountyID int64, req dto.SubmitWorkRequest) (models.Submission, error) {
	b, err := s.store.GetBounty(ctx, bountyID)
	if err != nil {
		return models.Submission{}, storeErr(err, "bounty")
	}
	if !b.IsAssigned(actor.UserID) {
		return models.Submission{}, forbidden("only the assigned freelancer can submit work")
	}
	if b.Status != models.BountyInProgress {
		return models.Submission{}, conflict("bounty is not in progress")
	}

	notes := strings.TrimSpace(req.Notes)
	if n := utf8.RuneCountInString(notes); n == 0 || n > 10000 {
		return models.Submission{}, invalid("notes are required and must be at most 10000 characters")
	}
	if len(req.Attachments) > maxAttachments {
		return models.Submission{}, invalid(fmt.Sprintf("at most %d attachments are allowed", maxAttachments))
	}
	for _, key := range req.Attachments {
		if !uploads.ValidKey(key) {
			return models.Submission{}, invalid("attachments must reference uploaded files")
		}
	}

	latest, err := s.store.LatestSubmission(ctx, bountyID)
	switch {
	case err == nil && latest.Status == models.SubmissionPending:
		return models.Submission{}, conflict("a submission is already awaiting review")
	case err == nil && latest.Status == models.SubmissionApproved:
		return models.Submission{}, conflict("work has already been approved")
	case err != nil && !errors.Is(err, storage.ErrNotFound):
		return models.Submission{}, err
	}

	sub, err := s.store.CreateSubmission(ctx, models.Submission{
		BountyID:     bountyID,
		FreelancerID: actor.UserID,
		Notes:        notes,
		Attachments:  req.Attachments,
		Status:       models.SubmissionPending,
	})
	if err != nil {
		return models.Submission{}, storeErr(err, "submission")
	}
	s.notify(ctx, b.ClientID, pushNote("Work submitted", fmt.Sprintf("New work was delivered for %q.", b.Title), b.ID))
	return sub, nil
}

// ListSubmissions returns a bounty's submissions to its owner or assigned freelancer.
func (s *Service) ListSubmissions(ctx context.Context, actor auth.Claims, bountyID int64) ([]models.Submission, error) {
	b, err := s.store.GetBounty(ctx, bountyID)
	if err != nil {
		return nil, storeErr(err, "bounty")
	}
	if b.ClientID != actor.UserID && !b.IsAssigned(actor.UserID) {
		return nil, forbidden("only the bounty owner or assigned freelancer can view submissions")
	}
	return s.store.ListSubmissions(ctx, bountyID)
}

// ReviewSubmission approves a pending submission or sends it back with feedback.
func (s *Service) ReviewSubmission(ctx context.Context, actor auth.Claims, submissionID int64, req dto.ReviewRequest) (models.Submission, error) {
	sub, err := s.store.GetSubmission(ctx, submissionID)
	if err != nil {
		return models.Submission{}, storeErr(err, "submission")
	}
	b, err := s.store.GetBounty(ctx, sub.BountyID)
	if err != nil {
		return models.Submission{}, storeErr(err, "bounty")
	}
	if b.ClientID != actor.UserID {
		return models.Submission{}, forbidden("only the bounty owner can review work")
	}
	if b.Status != models.BountyInProgress {
		return models.Submission{}, conflict("bounty is not in progress")
	}
	if sub.Status != models.SubmissionPending {
		return models.Submission{}, conflict("submission has already been reviewed")
	}

	feedback := strings.TrimSpace(req.Feedback)
	var status models.SubmissionStatus
	switch strings.ToLower(strings.TrimSpace(req.Decision)) {
	case DecisionApprove:
		status = models.SubmissionApproved
	case DecisionRevise:
		if feedback == "" {
			return models.Submission{}, invalid("feedback is required when requesting a revision")
		}
		status = models.SubmissionRevisionRequested
	default:
		return models.Submission{}, invalid("decision must be approve or revise")
	}
	if utf8.RuneCountInString(feedback) > 5000 {
		return models.Submission{}, invalid("feedback must be at most 5000 characters")
	}

	out, err := s.store.ReviewSubmission(ctx, sub.ID, status, feedback, s.now())
	if err != nil {
		return models.Submission{}, storeErr(err, "submission")
	}
	if status == models.SubmissionApproved {
		s.notify(ctx, sub.FreelancerID, pushNote("Work approved", fmt.Sprintf("Your work on %q was approved.", b.Title), b.ID))
	} else {
		s.notify(ctx, sub.FreelancerID, pushNote("Revision requested", fmt.Sprintf("The client asked for changes on %q.", b.Title), b.ID))
	}
	return out, nil
}

// AuthorizeAttachment checks that key belongs to a submission the caller may
// see. Callers outside the bounty get the same not-found as a missing key.
func (s *Service) AuthorizeAttachment(ctx context.Context, actor auth.Claims, submissionID int64, key string) error {
	sub, err := s.store.GetSubmission(ctx, submissionID)
	if err != nil {
		return storeErr(err, "submission")
	}
	b, err := s.store.GetBounty(ctx, sub.BountyID)
	if err != nil {
		return storeErr(err, "bounty")
	}
	if b.ClientID != actor.UserID && !b.IsAssigned(actor.UserID) {
		return notFound("attachment not found")
	}
	for _, a := range sub.Attachments {
		if a == key {
			return nil
		}
	}
	return notFound("attachment not found")
}
