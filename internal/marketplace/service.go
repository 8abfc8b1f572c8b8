package marketplace

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hongminglow/bountyboard/internal/auth"
	"github.com/hongminglow/bountyboard/internal/cache"
	"github.com/hongminglow/bountyboard/internal/email"
	"github.com/hongminglow/bountyboard/internal/models"
	"github.com/hongminglow/bountyboard/internal/payments"
	"github.com/hongminglow/bountyboard/internal/push"
	"github.com/hongminglow/bountyboard/internal/storage"
)

// Notifier relays push notifications to a user's devices.
type Notifier interface {
	Notify(ctx context.Context, userID int64, n push.Notification) error
}

// Publisher fans a new message out to realtime subscribers.
type Publisher interface {
	Publish(msg models.Message)
}

// Options tunes business rules.
type Options struct {
	Currency       string
	PlatformFeeBPS int64
	AppBaseURL     string
	CacheTTL       time.Duration
}

// Service implements the marketplace's actions: each method runs its guard
// checks, persists the result and fires notifications.
type Service struct {
	store     storage.Store
	payments  payments.Provider
	notifier  Notifier
	mailer    email.Mailer
	cache     cache.Cache
	publisher Publisher
	opts      Options
	log       *logrus.Logger
	now       func() time.Time
}

// Deps groups the collaborators of a Service.
type Deps struct {
	Store     storage.Store
	Payments  payments.Provider
	Notifier  Notifier
	Mailer    email.Mailer
	Cache     cache.Cache
	Publisher Publisher
	Log       *logrus.Logger
}

// New builds a Service. Nil optional collaborators are replaced with disabled ones.
func New(deps Deps, opts Options) *Service {
	s := &Service{
		store:     deps.Store,
		payments:  deps.Payments,
		notifier:  deps.Notifier,
		mailer:    deps.Mailer,
		cache:     deps.Cache,
		publisher: deps.Publisher,
		opts:      opts,
		log:       deps.Log,
		now:       time.Now,
	}
	if s.payments == nil {
		s.payments = payments.Disabled{}
	}
	if s.mailer == nil {
		s.mailer = email.Disabled{}
	}
	if s.cache == nil {
		s.cache = cache.Noop{}
	}
	if s.log == nil {
		s.log = logrus.StandardLogger()
	}
	if s.opts.Currency == "" {
		s.opts.Currency = "usd"
	}
	if s.opts.CacheTTL <= 0 {
		s.opts.CacheTTL = time.Minute
	}
	return s
}

// SetClock overrides the time source.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

func (s *Service) notify(ctx context.Context, userID int64, n push.Notification) {
	if s.notifier == nil {
		return
	}
	if n.URL != "" && s.opts.AppBaseURL != "" {
		n.URL = s.opts.AppBaseURL + n.URL
	}
	if err := s.notifier.Notify(ctx, userID, n); err != nil {
		s.log.WithFields(logrus.Fields{"user_id": userID, "title": n.Title}).WithError(err).Warn("push notification failed")
	}
}

func (s *Service) mail(ctx context.Context, userID int64, subject, body string) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		s.log.WithField("user_id", userID).WithError(err).Warn("load email recipient")
		return
	}
	if err := s.mailer.Send(ctx, email.Message{To: user.Email, Subject: subject, Body: body}); err != nil {
		s.log.WithFields(logrus.Fields{"user_id": userID, "subject": subject}).WithError(err).Warn("transactional email failed")
	}
}

func (s *Service) invalidateBounties(ctx context.Context) {
	if err := s.cache.DeletePattern(ctx, "bounties:*"); err != nil {
		s.log.WithError(err).Warn("invalidate bounty cache")
	}
}

// Me returns the caller's account.
func (s *Service) Me(ctx context.Context, actor auth.Claims) (models.User, error) {
	user, err := s.store.GetUser(ctx, actor.UserID)
	return user, storeErr(err, "user")
}

// UpdateProfile changes the caller's display name and digest preference.
func (s *Service) UpdateProfile(ctx context.Context, actor auth.Claims, displayName *string, digestOptIn *bool) (models.User, error) {
	if displayName != nil {
		if n := len([]rune(*displayName)); n > 80 {
			return models.User{}, invalid("display name must be at most 80 characters")
		}
	}
	user, err := s.store.UpdateProfile(ctx, actor.UserID, displayName, digestOptIn)
	return user, storeErr(err, "user")
}

func bountyURL(id int64) string { return fmt.Sprintf("/bounties/%d", id) }
