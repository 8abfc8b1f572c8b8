package push

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hongminglow/bountyboard/internal/models"
	"github.com/hongminglow/bountyboard/internal/storage/memory"
)

type recordingSender struct {
	sent    map[string][]byte
	failFor map[string]error
}

func (r *recordingSender) Send(_ context.Context, sub models.PushSubscription, payload []byte) error {
	if err, ok := r.failFor[sub.Endpoint]; ok {
		return err
	}
	r.sent[sub.Endpoint] = payload
	return nil
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestNotifyFansOutAndPrunesGoneEndpoints(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	for _, ep := range []string{"https://push.example/a", "https://push.example/b", "https://push.example/c"} {
		_, err := store.UpsertPushSubscription(ctx, models.PushSubscription{UserID: 7, Endpoint: ep, P256dh: "k", Auth: "a"})
		require.NoError(t, err)
	}
	sender := &recordingSender{
		sent: map[string][]byte{},
		failFor: map[string]error{
			"https://push.example/b": ErrGone,
			"https://push.example/c": errors.New("boom"),
		},
	}
	n := NewNotifier(store, sender, quietLogger())

	err := n.Notify(ctx, 7, Notification{Title: "Hired", Body: "You got the bounty", URL: "/bounties/1"})
	require.Error(t, err)

	require.Contains(t, sender.sent, "https://push.example/a")
	var got Notification
	require.NoError(t, json.Unmarshal(sender.sent["https://push.example/a"], &got))
	assert.Equal(t, "Hired", got.Title)

	subs, err := store.ListPushSubscriptions(ctx, 7)
	require.NoError(t, err)
	endpoints := []string{}
	for _, s := range subs {
		endpoints = append(endpoints, s.Endpoint)
	}
	assert.ElementsMatch(t, []string{"https://push.example/a", "https://push.example/c"}, endpoints)
}

func TestNotifyWithoutSenderIsNoop(t *testing.T) {
	n := NewNotifier(memory.New(), nil, quietLogger())
	assert.False(t, n.Enabled())
	assert.NoError(t, n.Notify(context.Background(), 1, Notification{Title: "x"}))
}
