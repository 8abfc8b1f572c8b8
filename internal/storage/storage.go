package storage

import (
	"context"
	"errors"
	"time"

	"github.com/hongminglow/bountyboard/internal/models"
)

// ErrNotFound indicates a record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrAlreadyExists indicates a uniqueness conflict.
var ErrAlreadyExists = errors.New("record already exists")

// ErrConflict indicates a conditional update lost to a concurrent change:
// the row was no longer in the expected state.
var ErrConflict = errors.New("record changed concurrently")

// UserStore captures persistence operations needed for accounts.
type UserStore interface {
	CreateUser(ctx context.Context, user models.User) (models.User, error)
	GetUser(ctx context.Context, id int64) (models.User, error)
	FindByUsernameOrEmail(ctx context.Context, identifier string) (models.User, error)
	UpdateProfile(ctx context.Context, id int64, displayName *string, digestOptIn *bool) (models.User, error)
	SetStripeAccount(ctx context.Context, userID int64, accountID string) error
	SetPayoutsEnabled(ctx context.Context, accountID string, enabled bool) error
	ListDigestRecipients(ctx context.Context) ([]models.User, error)
	MarkDigestSent(ctx context.Context, userID int64, at time.Time) error
}

// BountyStore persists bounties. UpdateBounty only applies when the stored
// status still equals expect, otherwise it returns ErrConflict.
type BountyStore interface {
	CreateBounty(ctx context.Context, b models.Bounty) (models.Bounty, error)
	GetBounty(ctx context.Context, id int64) (models.Bounty, error)
	ListBounties(ctx context.Context, filter models.BountyFilter) ([]models.Bounty, error)
	UpdateBounty(ctx context.Context, b models.Bounty, expect models.BountyStatus) (models.Bounty, error)
	// CancelBounty moves the bounty to CANCELLED and rejects pending applications.
	CancelBounty(ctx context.Context, id int64, expect models.BountyStatus, at time.Time) (models.Bounty, error)
}

// ApplicationStore persists freelancer applications.
type ApplicationStore interface {
	CreateApplication(ctx context.Context, a models.Application) (models.Application, error)
	GetApplication(ctx context.Context, id int64) (models.Application, error)
	ListApplications(ctx context.Context, bountyID int64) ([]models.Application, error)
	ListPendingApplicationsForClient(ctx context.Context, clientID int64, since *time.Time) ([]models.Application, error)
	UpdateApplicationStatus(ctx context.Context, id int64, from, to models.ApplicationStatus) (models.Application, error)
	// AcceptApplication hires the applicant: the application is accepted, other
	// pending ones rejected, the bounty assigned and moved to IN_PROGRESS and the
	// escrow payment row inserted, all in one transaction.
	AcceptApplication(ctx context.Context, applicationID int64, payment models.Payment) (models.Application, models.Bounty, models.Payment, error)
}

// SubmissionStore persists delivered work.
type SubmissionStore interface {
	CreateSubmission(ctx context.Context, s models.Submission) (models.Submission, error)
	GetSubmission(ctx context.Context, id int64) (models.Submission, error)
	ListSubmissions(ctx context.Context, bountyID int64) ([]models.Submission, error)
	LatestSubmission(ctx context.Context, bountyID int64) (models.Submission, error)
	ReviewSubmission(ctx context.Context, id int64, status models.SubmissionStatus, feedback string, at time.Time) (models.Submission, error)
}

// PaymentStore persists escrow state.
type PaymentStore interface {
	GetPaymentByBounty(ctx context.Context, bountyID int64) (models.Payment, error)
	GetPaymentByIntent(ctx context.Context, intentID string) (models.Payment, error)
	SetPaymentIntent(ctx context.Context, paymentID int64, intentID, clientSecret string) error
	UpdatePaymentStatus(ctx context.Context, paymentID int64, from []models.PaymentStatus, to models.PaymentStatus) (models.Payment, error)
	// ReleasePayment marks a held payment released and completes its bounty atomically.
	ReleasePayment(ctx context.Context, paymentID int64, transferID string, at time.Time) (models.Payment, models.Bounty, error)
	SetTransferByBounty(ctx context.Context, bountyID int64, transferID string) error
	// RecordWebhookEvent returns ErrAlreadyExists when the event was seen before.
	RecordWebhookEvent(ctx context.Context, ev models.WebhookEvent) error
	// ForgetWebhookEvent removes a recorded event so a redelivery is applied again.
	ForgetWebhookEvent(ctx context.Context, id string) error
}

// MessageStore persists threads and messages.
type MessageStore interface {
	FindOrCreateThread(ctx context.Context, bountyID *int64, a, b int64) (models.MessageThread, error)
	GetThread(ctx context.Context, id int64) (models.MessageThread, error)
	ListThreads(ctx context.Context, userID int64) ([]models.MessageThread, error)
	CreateMessage(ctx context.Context, m models.Message) (models.Message, error)
	ListMessages(ctx context.Context, threadID int64, beforeID int64, limit int) ([]models.Message, error)
	MarkThreadRead(ctx context.Context, threadID, readerID int64, at time.Time) (int64, error)
	UnreadCount(ctx context.Context, userID int64) (int, error)
}

// PushStore persists Web Push subscriptions.
type PushStore interface {
	UpsertPushSubscription(ctx context.Context, sub models.PushSubscription) (models.PushSubscription, error)
	DeletePushSubscription(ctx context.Context, userID int64, endpoint string) error
	DeletePushEndpoint(ctx context.Context, endpoint string) error
	ListPushSubscriptions(ctx context.Context, userID int64) ([]models.PushSubscription, error)
}

// Store is the full persistence surface of the marketplace.
type Store interface {
	UserStore
	BountyStore
	ApplicationStore
	SubmissionStore
	PaymentStore
	MessageStore
	PushStore
	Close()
}

// OrderedPair returns a and b with the lower id first, the canonical thread key.
func OrderedPair(a, b int64) (int64, int64) {
	if a > b {
		return b, a
	}
	return a, b
}
