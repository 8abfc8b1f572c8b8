package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/sirupsen/logrus"

	"github.com/hongminglow/bountyboard/internal/metrics"
	"github.com/hongminglow/bountyboard/internal/models"
	"github.com/hongminglow/bountyboard/internal/storage"
)

// ErrGone means the push service no longer accepts the subscription.
var ErrGone = errors.New("push subscription expired")

// Notification is the JSON payload the service worker renders.
type Notification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	URL   string `json:"url,omitempty"`
	Tag   string `json:"tag,omitempty"`
}

// Sender delivers one encrypted payload to one subscription.
type Sender interface {
	Send(ctx context.Context, sub models.PushSubscription, payload []byte) error
}

// VAPIDSender signs requests with a VAPID key pair.
type VAPIDSender struct {
	publicKey  string
	privateKey string
	subscriber string
	client     *http.Client
}

// NewVAPIDSender builds a sender. subject is a mailto: or https: contact.
func NewVAPIDSender(publicKey, privateKey, subject string) *VAPIDSender {
	return &VAPIDSender{
		publicKey:  publicKey,
		privateKey: privateKey,
		subscriber: strings.TrimPrefix(subject, "mailto:"),
		client:     &http.Client{},
	}
}

// Send implements Sender.
func (s *VAPIDSender) Send(ctx context.Context, sub models.PushSubscription, payload []byte) error {
	resp, err := webpush.SendNotificationWithContext(ctx, payload, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys:     webpush.Keys{P256dh: sub.P256dh, Auth: sub.Auth},
	}, &webpush.Options{
		HTTPClient:      s.client,
		Subscriber:      s.subscriber,
		VAPIDPublicKey:  s.publicKey,
		VAPIDPrivateKey: s.privateKey,
		TTL:             3600,
		Urgency:         webpush.UrgencyNormal,
	})
	if err != nil {
		return fmt.Errorf("send push: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return ErrGone
	case resp.StatusCode >= 400:
		return fmt.Errorf("send push: status %d", resp.StatusCode)
	}
	return nil
}

// Notifier relays notifications to every subscription a user registered.
type Notifier struct {
	store  storage.PushStore
	sender Sender
	log    *logrus.Logger
}

// NewNotifier wires a notifier. A nil sender disables delivery.
func NewNotifier(store storage.PushStore, sender Sender, log *logrus.Logger) *Notifier {
	return &Notifier{store: store, sender: sender, log: log}
}

// Enabled reports whether a sender is configured.
func (n *Notifier) Enabled() bool { return n != nil && n.sender != nil }

// Notify delivers n to each of the user's subscriptions. Expired subscriptions
// are deleted; other failures are logged and joined into the returned error.
func (n *Notifier) Notify(ctx context.Context, userID int64, note Notification) error {
	if !n.Enabled() {
		return nil
	}
	subs, err := n.store.ListPushSubscriptions(ctx, userID)
	if err != nil {
		return fmt.Errorf("list push subscriptions: %w", err)
	}
	payload, err := json.Marshal(note)
	if err != nil {
		return err
	}

	var errs []error
	for _, sub := range subs {
		err := n.sender.Send(ctx, sub, payload)
		switch {
		case err == nil:
			metrics.RecordPush("delivered")
		case errors.Is(err, ErrGone):
			metrics.RecordPush("expired")
			if delErr := n.store.DeletePushEndpoint(ctx, sub.Endpoint); delErr != nil {
				errs = append(errs, delErr)
			}
		default:
			metrics.RecordPush("failed")
			n.log.WithFields(logrus.Fields{"user_id": userID, "subscription_id": sub.ID}).WithError(err).Warn("push delivery failed")
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
