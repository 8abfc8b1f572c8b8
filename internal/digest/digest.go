// Package digest sends the periodic summary email: new bounties for
// freelancers, pending applications for clients and unread messages for both.
package digest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/hongminglow/bountyboard/internal/email"
	"github.com/hongminglow/bountyboard/internal/metrics"
	"github.com/hongminglow/bountyboard/internal/models"
	"github.com/hongminglow/bountyboard/internal/models/dto"
	"github.com/hongminglow/bountyboard/internal/storage"
)

const (
	maxBounties = 10
	// firstWindow bounds the first digest a user ever receives.
	firstWindow = 7 * 24 * time.Hour
)

// Job builds and sends one digest per opted-in user.
type Job struct {
	store   storage.Store
	mailer  email.Mailer
	baseURL string
	log     *logrus.Logger
	now     func() time.Time
}

// NewJob wires a digest job.
func NewJob(store storage.Store, mailer email.Mailer, baseURL string, log *logrus.Logger) *Job {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Job{store: store, mailer: mailer, baseURL: strings.TrimRight(baseURL, "/"), log: log, now: time.Now}
}

// Run sends the digest to every recipient with something new. A failure for one
// user is counted and logged; only a failure to list recipients aborts the run.
func (j *Job) Run(ctx context.Context) (dto.DigestResult, error) {
	var res dto.DigestResult
	users, err := j.store.ListDigestRecipients(ctx)
	if err != nil {
		return res, fmt.Errorf("list digest recipients: %w", err)
	}

	for _, u := range users {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		entry := j.log.WithField("user_id", u.ID)
		now := j.now()
		body, ok, err := j.compose(ctx, u, now)
		if err != nil {
			res.Failed++
			metrics.RecordDigest("failed")
			entry.WithError(err).Warn("compose digest")
			continue
		}
		if !ok {
			res.Skipped++
			metrics.RecordDigest("skipped")
			continue
		}
		if err := j.mailer.Send(ctx, email.Message{To: u.Email, Subject: "Your Bountyboard digest", Body: body}); err != nil {
			res.Failed++
			metrics.RecordDigest("failed")
			entry.WithError(err).Warn("send digest")
			continue
		}
		if err := j.store.MarkDigestSent(ctx, u.ID, now); err != nil {
			entry.WithError(err).Warn("mark digest sent")
		}
		res.Sent++
		metrics.RecordDigest("sent")
	}

	j.log.WithFields(logrus.Fields{"sent": res.Sent, "skipped": res.Skipped, "failed": res.Failed}).Info("digest run finished")
	return res, nil
}

// compose renders the Markdown body for u; ok is false when nothing is new.
func (j *Job) compose(ctx context.Context, u models.User, now time.Time) (string, bool, error) {
	since := now.Add(-firstWindow)
	if u.LastDigestAt != nil {
		since = *u.LastDigestAt
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Hi %s\n\nHere is what happened since your last digest.\n", email.EscapeMarkdown(u.Name()))
	items := 0

	switch {
	case u.IsFreelancer():
		bounties, err := j.store.ListBounties(ctx, models.BountyFilter{Status: models.BountyOpen, Since: &since, Limit: maxBounties})
		if err != nil {
			return "", false, err
		}
		if len(bounties) > 0 {
			b.WriteString("\n## New bounties\n\n")
			for _, bounty := range bounties {
				fmt.Fprintf(&b, "- [%s](%s/bounties/%d) %s\n", email.EscapeMarkdown(bounty.Title), j.baseURL, bounty.ID, money(bounty.BudgetCents, bounty.Currency))
			}
			items += len(bounties)
		}
	case u.IsClient():
		apps, err := j.store.ListPendingApplicationsForClient(ctx, u.ID, &since)
		if err != nil {
			return "", false, err
		}
		if len(apps) > 0 {
			perBounty := map[int64]int{}
			var order []int64
			for _, a := range apps {
				if perBounty[a.BountyID] == 0 {
					order = append(order, a.BountyID)
				}
				perBounty[a.BountyID]++
			}
			b.WriteString("\n## New applications\n\n")
			for _, id := range order {
				title := fmt.Sprintf("Bounty #%d", id)
				if bounty, err := j.store.GetBounty(ctx, id); err == nil {
					title = email.EscapeMarkdown(bounty.Title)
				}
				fmt.Fprintf(&b, "- [%s](%s/bounties/%d): %d pending\n", title, j.baseURL, id, perBounty[id])
			}
			items += len(apps)
		}
	}

	unread, err := j.store.UnreadCount(ctx, u.ID)
	if err != nil {
		return "", false, err
	}
	if unread > 0 {
		fmt.Fprintf(&b, "\n## Messages\n\nYou have %d unread message(s). [Open your inbox](%s/messages)\n", unread, j.baseURL)
		items += unread
	}

	if items == 0 {
		return "", false, nil
	}
	fmt.Fprintf(&b, "\n---\n\nYou can turn off these emails in [your settings](%s/settings).\n", j.baseURL)
	return b.String(), true, nil
}

func money(cents int64, currency string) string {
	return fmt.Sprintf("%d.%02d %s", cents/100, cents%100, strings.ToUpper(currency))
}

// Scheduler runs a Job on a cron schedule.
type Scheduler struct {
	cron *cron.Cron
	log  *logrus.Logger
}

// NewScheduler registers job under schedule, a standard five-field cron expression
// or a descriptor such as "@daily".
func NewScheduler(schedule string, job *Job, log *logrus.Logger) (*Scheduler, error) {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	_, err := c.AddFunc(schedule, func() {
		if _, err := job.Run(context.Background()); err != nil {
			log.WithError(err).Error("scheduled digest failed")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("digest schedule %q: %w", schedule, err)
	}
	return &Scheduler{cron: c, log: log}, nil
}

// Start begins running the schedule in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("digest scheduler started")
}

// Stop halts the schedule and waits for a running job until ctx expires.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}
