package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hongminglow/bountyboard/internal/models"
	"github.com/hongminglow/bountyboard/internal/realtime"
)

func (e testEnv) token(t *testing.T, name, role string) (string, models.User) {
	t.Helper()
	u, err := e.store.CreateUser(context.Background(), models.User{Username: name, Email: name + "@example.com", Role: role})
	require.NoError(t, err)
	token, err := e.tokens.Generate(u)
	require.NoError(t, err)
	return token, u
}

func postJSON(t *testing.T, url, token string, body any) (int, json.RawMessage) {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(raw))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp.StatusCode, env.Data
}

func TestThreadWebsocketThroughMiddleware(t *testing.T) {
	env := newTestEnv(t)
	ts := httptest.NewServer(env.srv.inner.Handler)
	defer ts.Close()

	clientToken, _ := env.token(t, "carol", models.RoleClient)
	freelancerToken, freelancer := env.token(t, "frank", models.RoleFreelancer)
	strangerToken, _ := env.token(t, "sam", models.RoleFreelancer)

	status, data := postJSON(t, ts.URL+"/threads", clientToken, map[string]any{"participant_id": freelancer.ID})
	require.Equal(t, http.StatusOK, status)
	var thread models.MessageThread
	require.NoError(t, json.Unmarshal(data, &thread))
	threadPath := "/threads/" + strconv.FormatInt(thread.ID, 10)
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + threadPath + "/ws"

	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, resp, err = websocket.DefaultDialer.Dial(wsURL+"?token="+strangerToken, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL+"?token="+freelancerToken, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return env.hub.Subscribers(thread.ID) == 1 }, time.Second, 10*time.Millisecond)

	status, _ = postJSON(t, ts.URL+threadPath+"/messages", clientToken, map[string]string{"body": "Can you start Monday?"})
	require.Equal(t, http.StatusCreated, status)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var frame realtime.Frame
	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, "message", frame.Type)
	require.NotNil(t, frame.Message)
	assert.Equal(t, "Can you start Monday?", frame.Message.Body)
	assert.Equal(t, thread.ID, frame.Message.ThreadID)
}
