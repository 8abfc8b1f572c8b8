package marketplace

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/hongminglow/bountyboard/internal/auth"
	"github.com/hongminglow/bountyboard/internal/models"
	"github.com/hongminglow/bountyboard/internal/models/dto"
	"github.com/hongminglow/bountyboard/internal/push"
)

const (
	defaultMessageLimit = 50
	maxMessageLimit     = 100
	maxMessageRunes     = 4000
)

// StartThread returns the conversation between the caller and another user,
// creating it on first contact.
func (s *Service) StartThread(ctx context.Context, actor auth.Claims, req dto.StartThreadRequest) (models.MessageThread, error) {
	if req.ParticipantID <= 0 || req.ParticipantID == actor.UserID {
		return models.MessageThread{}, invalid("choose someone else to message")
	}
	if _, err := s.store.GetUser(ctx, req.ParticipantID); err != nil {
		return models.MessageThread{}, storeErr(err, "user")
	}
	if req.BountyID != nil {
		b, err := s.store.GetBounty(ctx, *req.BountyID)
		if err != nil {
			return models.MessageThread{}, storeErr(err, "bounty")
		}
		if b.Status == models.BountyDraft && b.ClientID != actor.UserID {
			return models.MessageThread{}, notFound("bounty not found")
		}
	}
	t, err := s.store.FindOrCreateThread(ctx, req.BountyID, actor.UserID, req.ParticipantID)
	return t, storeErr(err, "thread")
}

// ListThreads returns the caller's conversations, most recent activity first.
func (s *Service) ListThreads(ctx context.Context, actor auth.Claims) ([]models.MessageThread, error) {
	return s.store.ListThreads(ctx, actor.UserID)
}

// AuthorizeThread loads a thread the caller participates in.
func (s *Service) AuthorizeThread(ctx context.Context, actor auth.Claims, threadID int64) (models.MessageThread, error) {
	t, err := s.store.GetThread(ctx, threadID)
	if err != nil {
		return models.MessageThread{}, storeErr(err, "thread")
	}
	if !t.HasParticipant(actor.UserID) {
		return models.MessageThread{}, forbidden("you are not part of this conversation")
	}
	return t, nil
}

// ListMessages pages backwards through a thread; beforeID 0 starts at the newest.
func (s *Service) ListMessages(ctx context.Context, actor auth.Claims, threadID, beforeID int64, limit int) ([]models.Message, error) {
	if _, err := s.AuthorizeThread(ctx, actor, threadID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultMessageLimit
	}
	if limit > maxMessageLimit {
		limit = maxMessageLimit
	}
	return s.store.ListMessages(ctx, threadID, beforeID, limit)
}

// SendMessage posts to a thread, fans the message out to live subscribers and
// pushes a notification to the other participant.
func (s *Service) SendMessage(ctx context.Context, actor auth.Claims, threadID int64, req dto.SendMessageRequest) (models.Message, error) {
	t, err := s.AuthorizeThread(ctx, actor, threadID)
	if err != nil {
		return models.Message{}, err
	}
	body := strings.TrimSpace(req.Body)
	if n := utf8.RuneCountInString(body); n == 0 || n > maxMessageRunes {
		return models.Message{}, invalid(fmt.Sprintf("message must be between 1 and %d characters", maxMessageRunes))
	}
	msg, err := s.store.CreateMessage(ctx, models.Message{ThreadID: t.ID, SenderID: actor.UserID, Body: body})
	if err != nil {
		return models.Message{}, storeErr(err, "thread")
	}
	if s.publisher != nil {
		s.publisher.Publish(msg)
	}
	s.notify(ctx, t.Other(actor.UserID), push.Notification{
		Title: "New message from " + actor.Username,
		Body:  preview(body, 120),
		URL:   fmt.Sprintf("/messages/%d", t.ID),
		Tag:   fmt.Sprintf("thread-%d", t.ID),
	})
	return msg, nil
}

// MarkRead marks the other participant's messages in a thread as read and
// returns how many changed.
func (s *Service) MarkRead(ctx context.Context, actor auth.Claims, threadID int64) (int64, error) {
	if _, err := s.AuthorizeThread(ctx, actor, threadID); err != nil {
		return 0, err
	}
	return s.store.MarkThreadRead(ctx, threadID, actor.UserID, s.now())
}

// UnreadCount returns how many messages await the caller.
func (s *Service) UnreadCount(ctx context.Context, actor auth.Claims) (int, error) {
	return s.store.UnreadCount(ctx, actor.UserID)
}

func preview(body string, max int) string {
	if utf8.RuneCountInString(body) <= max {
		return body
	}
	r := []rune(body)
	return string(r[:max-1]) + "…"
}
