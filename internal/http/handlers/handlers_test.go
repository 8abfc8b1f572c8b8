package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hongminglow/bountyboard/internal/auth"
	"github.com/hongminglow/bountyboard/internal/digest"
	"github.com/hongminglow/bountyboard/internal/email"
	"github.com/hongminglow/bountyboard/internal/marketplace"
	"github.com/hongminglow/bountyboard/internal/middleware"
	"github.com/hongminglow/bountyboard/internal/models"
	"github.com/hongminglow/bountyboard/internal/payments"
	"github.com/hongminglow/bountyboard/internal/payments/paymentstest"
	"github.com/hongminglow/bountyboard/internal/realtime"
	"github.com/hongminglow/bountyboard/internal/storage/memory"
	"github.com/hongminglow/bountyboard/internal/uploads"
)

type envelope struct {
	Success bool            `json:"success"`
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type memObjects struct{ objects map[string][]byte }

func (m *memObjects) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.objects[key] = b
	return nil
}

func (m *memObjects) PresignGet(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://files.example/" + key + "?sig=1", nil
}

type countingMailer struct{ sent int }

func (m *countingMailer) Send(context.Context, email.Message) error {
	m.sent++
	return nil
}

type testAPI struct {
	t       *testing.T
	server  *httptest.Server
	store   *memory.Store
	pay     *paymentstest.Provider
	objects *memObjects
	mailer  *countingMailer
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)

	store := memory.New()
	pay := paymentstest.New()
	mailer := &countingMailer{}
	hub := realtime.NewHub(log, nil)
	svc := marketplace.New(marketplace.Deps{Store: store, Payments: pay, Mailer: mailer, Publisher: hub, Log: log},
		marketplace.Options{PlatformFeeBPS: 1000})
	tokens := auth.NewTokenManager("test-secret", "bountyboard", time.Hour)
	objects := &memObjects{objects: map[string][]byte{}}

	r := mux.NewRouter()
	NewHealthHandler(time.Now()).Register(r)
	NewAuthHandler(store, tokens, svc).Register(r)
	NewBountyHandler(svc).Register(r)
	NewPaymentHandler(svc).Register(r)
	NewMessageHandler(svc, hub).Register(r)
	NewPushHandler(store, "BPublicKey").Register(r)
	NewCronHandler(digest.NewJob(store, mailer, "https://app.example", log), "cron-secret", true).Register(r)
	NewUploadHandler(objects, svc).Register(r)

	ts := httptest.NewServer(middleware.Authenticate(tokens, r, "/cron/", "/webhooks/"))
	t.Cleanup(ts.Close)
	return &testAPI{t: t, server: ts, store: store, pay: pay, objects: objects, mailer: mailer}
}

func (a *testAPI) do(method, path, token string, body any) (int, envelope) {
	a.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(a.t, err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, a.server.URL+path, reader)
	require.NoError(a.t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return a.send(req)
}

func (a *testAPI) send(req *http.Request) (int, envelope) {
	a.t.Helper()
	resp, err := http.DefaultClient.Do(req)
	require.NoError(a.t, err)
	defer resp.Body.Close()
	var env envelope
	require.NoError(a.t, json.NewDecoder(resp.Body).Decode(&env))
	return resp.StatusCode, env
}

func decode[T any](t *testing.T, env envelope) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(env.Data, &out))
	return out
}

func (a *testAPI) signup(username, role string) (string, models.User) {
	a.t.Helper()
	status, env := a.do(http.MethodPost, "/auth/register", "", map[string]string{
		"username": username,
		"email":    username + "@example.com",
		"password": "correct-horse",
		"role":     role,
	})
	require.Equal(a.t, http.StatusCreated, status, env.Message)

	status, env = a.do(http.MethodPost, "/auth/login", "", map[string]string{"identifier": username, "password": "correct-horse"})
	require.Equal(a.t, http.StatusOK, status, env.Message)
	var login struct {
		Token string      `json:"token"`
		User  models.User `json:"user"`
	}
	require.NoError(a.t, json.Unmarshal(env.Data, &login))
	return login.Token, login.User
}

func TestHealth(t *testing.T) {
	api := newTestAPI(t)
	status, env := api.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.True(t, env.Success)
	assert.Contains(t, string(env.Data), `"status":"ok"`)
}

func TestRegisterAndLogin(t *testing.T) {
	api := newTestAPI(t)

	status, env := api.do(http.MethodPost, "/auth/register", "", map[string]string{
		"username": "carol", "email": "carol@example.com", "password": "short", "role": "client",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.False(t, env.Success)

	status, _ = api.do(http.MethodPost, "/auth/register", "", map[string]string{
		"username": "carol", "email": "carol@example.com", "password": "correct-horse", "role": "admin",
	})
	assert.Equal(t, http.StatusBadRequest, status)

	token, user := api.signup("carol", models.RoleClient)
	assert.NotEmpty(t, token)
	assert.Equal(t, models.RoleClient, user.Role)
	assert.True(t, user.DigestOptIn)

	status, _ = api.do(http.MethodPost, "/auth/register", "", map[string]string{
		"username": "carol", "email": "carol@example.com", "password": "correct-horse", "role": "client",
	})
	assert.Equal(t, http.StatusConflict, status)

	status, _ = api.do(http.MethodPost, "/auth/login", "", map[string]string{"identifier": "carol", "password": "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = api.do(http.MethodGet, "/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, env = api.do(http.MethodPatch, "/me", token, map[string]any{"display_name": "  Carol C  ", "digest_opt_in": false})
	require.Equal(t, http.StatusOK, status, env.Message)
	me := decode[models.User](t, env)
	assert.Equal(t, "Carol C", me.DisplayName)
	assert.False(t, me.DigestOptIn)
}

func TestBountyFlowOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	clientToken, _ := api.signup("carol", models.RoleClient)
	freelancerToken, freelancer := api.signup("frank", models.RoleFreelancer)

	status, env := api.do(http.MethodPost, "/bounties", freelancerToken, map[string]any{})
	assert.Equal(t, http.StatusForbidden, status)

	status, env = api.do(http.MethodPost, "/bounties", clientToken, map[string]any{
		"title":        "Write API docs",
		"description":  "Document every endpoint of our public REST API.",
		"budget_cents": 30000,
		"deadline":     time.Now().Add(72 * time.Hour).Format(time.RFC3339),
	})
	require.Equal(t, http.StatusCreated, status, env.Message)
	bounty := decode[models.Bounty](t, env)
	base := "/bounties/" + strconv.FormatInt(bounty.ID, 10)

	status, _ = api.do(http.MethodGet, base, "", nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, env = api.do(http.MethodPost, base+"/publish", clientToken, nil)
	require.Equal(t, http.StatusOK, status, env.Message)

	status, env = api.do(http.MethodGet, "/bounties?q=api", "", nil)
	require.Equal(t, http.StatusOK, status)
	list := decode[struct {
		Bounties []models.Bounty `json:"bounties"`
	}](t, env)
	require.Len(t, list.Bounties, 1)

	status, env = api.do(http.MethodPost, base+"/applications", freelancerToken, map[string]any{
		"cover_letter": "I write clear docs and have shipped several API references.",
	})
	require.Equal(t, http.StatusCreated, status, env.Message)
	app := decode[models.Application](t, env)

	status, env = api.do(http.MethodPost, "/applications/"+strconv.FormatInt(app.ID, 10)+"/accept", clientToken, nil)
	require.Equal(t, http.StatusOK, status, env.Message)
	accepted := decode[struct {
		ClientSecret string         `json:"client_secret"`
		Payment      models.Payment `json:"payment"`
	}](t, env)
	assert.NotEmpty(t, accepted.ClientSecret)

	status, _ = api.do(http.MethodPost, base+"/payment/release", clientToken, nil)
	assert.Equal(t, http.StatusConflict, status)

	api.pay.Events["sig"] = payments.Event{ID: "evt_1", Type: payments.EventIntentAuthorized, IntentID: accepted.Payment.IntentID}
	req, err := http.NewRequest(http.MethodPost, api.server.URL+"/webhooks/stripe", strings.NewReader(`{}`))
	require.NoError(t, err)
	req.Header.Set("Stripe-Signature", "sig")
	status, _ = api.send(req)
	require.Equal(t, http.StatusOK, status)

	req, err = http.NewRequest(http.MethodPost, api.server.URL+"/webhooks/stripe", strings.NewReader(`{}`))
	require.NoError(t, err)
	req.Header.Set("Stripe-Signature", "forged")
	status, _ = api.send(req)
	assert.Equal(t, http.StatusBadRequest, status)

	key := api.upload(freelancerToken, "report.pdf", "application/pdf", []byte("%PDF-1.4"))
	status, env = api.do(http.MethodPost, base+"/submissions", freelancerToken, map[string]any{
		"notes":       "Docs are live on the staging portal.",
		"attachments": []string{key},
	})
	require.Equal(t, http.StatusCreated, status, env.Message)
	sub := decode[models.Submission](t, env)
	subPath := "/submissions/" + strconv.FormatInt(sub.ID, 10)

	status, env = api.do(http.MethodGet, "/uploads/url?key="+key+"&submission_id="+strconv.FormatInt(sub.ID, 10), clientToken, nil)
	require.Equal(t, http.StatusOK, status, env.Message)
	assert.Contains(t, string(env.Data), "https://files.example/"+key)

	status, env = api.do(http.MethodPost, subPath+"/review", clientToken, map[string]string{"decision": "approve"})
	require.Equal(t, http.StatusOK, status, env.Message)

	status, env = api.do(http.MethodPost, "/payments/connect", freelancerToken, nil)
	require.Equal(t, http.StatusOK, status, env.Message)
	conn := decode[struct {
		AccountID string `json:"account_id"`
	}](t, env)
	require.NoError(t, api.store.SetPayoutsEnabled(context.Background(), conn.AccountID, true))

	status, env = api.do(http.MethodPost, base+"/payment/release", clientToken, nil)
	require.Equal(t, http.StatusOK, status, env.Message)
	released := decode[models.Payment](t, env)
	assert.Equal(t, models.PaymentReleased, released.Status)
	assert.Equal(t, freelancer.ID, released.FreelancerID)

	status, env = api.do(http.MethodPost, base+"/payment/release", clientToken, nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "payment already released", env.Message)

	status, env = api.do(http.MethodGet, base, "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, models.BountyCompleted, decode[models.Bounty](t, env).Status)
}

func (a *testAPI) upload(token, name, contentType string, content []byte) string {
	a.t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="`+name+`"`)
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	require.NoError(a.t, err)
	_, err = part.Write(content)
	require.NoError(a.t, err)
	require.NoError(a.t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, a.server.URL+"/uploads", &buf)
	require.NoError(a.t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	status, env := a.send(req)
	require.Equal(a.t, http.StatusCreated, status, env.Message)
	var out struct {
		Key string `json:"key"`
	}
	require.NoError(a.t, json.Unmarshal(env.Data, &out))
	require.True(a.t, uploads.ValidKey(out.Key))
	return out.Key
}

func TestUploadRejectsUnsupportedTypes(t *testing.T) {
	api := newTestAPI(t)
	token, _ := api.signup("frank", models.RoleFreelancer)

	tests := []struct {
		name        string
		filename    string
		contentType string
		content     []byte
	}{
		{name: "executable", filename: "run.exe", contentType: "application/x-msdownload", content: []byte("MZ")},
		{name: "executable declared as pdf", filename: "invoice.pdf", contentType: "application/pdf", content: []byte("MZ\x90\x00\x03\x00")},
		{name: "html declared as text", filename: "notes.txt", contentType: "text/plain", content: []byte("<html><script>alert(1)</script>")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			mw := multipart.NewWriter(&buf)
			h := make(textproto.MIMEHeader)
			h.Set("Content-Disposition", `form-data; name="file"; filename="`+tt.filename+`"`)
			h.Set("Content-Type", tt.contentType)
			part, err := mw.CreatePart(h)
			require.NoError(t, err)
			_, _ = part.Write(tt.content)
			require.NoError(t, mw.Close())

			req, err := http.NewRequest(http.MethodPost, api.server.URL+"/uploads", &buf)
			require.NoError(t, err)
			req.Header.Set("Content-Type", mw.FormDataContentType())
			req.Header.Set("Authorization", "Bearer "+token)
			status, _ := api.send(req)
			assert.Equal(t, http.StatusUnsupportedMediaType, status)
		})
	}
	assert.Empty(t, api.objects.objects)
}

func TestUploadStoresWholeFile(t *testing.T) {
	api := newTestAPI(t)
	token, _ := api.signup("frank", models.RoleFreelancer)
	content := []byte("%PDF-1.4\n" + strings.Repeat("x", 2048))

	key := api.upload(token, "report.pdf", "application/pdf", content)
	assert.Equal(t, content, api.objects.objects[key])
}

func TestMessagingOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	clientToken, _ := api.signup("carol", models.RoleClient)
	freelancerToken, freelancer := api.signup("frank", models.RoleFreelancer)
	strangerToken, _ := api.signup("sam", models.RoleFreelancer)

	status, env := api.do(http.MethodPost, "/threads", clientToken, map[string]any{"participant_id": freelancer.ID})
	require.Equal(t, http.StatusOK, status, env.Message)
	thread := decode[models.MessageThread](t, env)
	path := "/threads/" + strconv.FormatInt(thread.ID, 10)

	status, env = api.do(http.MethodPost, path+"/messages", clientToken, map[string]string{"body": "Hello!"})
	require.Equal(t, http.StatusCreated, status, env.Message)

	status, _ = api.do(http.MethodGet, path+"/messages", strangerToken, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, env = api.do(http.MethodGet, "/threads/unread", freelancerToken, nil)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"unread":1}`, string(env.Data))

	status, env = api.do(http.MethodGet, path+"/messages?limit=10", freelancerToken, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, decode[[]models.Message](t, env), 1)

	status, env = api.do(http.MethodPost, path+"/read", freelancerToken, nil)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"marked":1}`, string(env.Data))
}

func TestPushSubscriptions(t *testing.T) {
	api := newTestAPI(t)
	token, user := api.signup("frank", models.RoleFreelancer)

	status, env := api.do(http.MethodGet, "/push/vapid-key", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"public_key":"BPublicKey"}`, string(env.Data))

	status, _ = api.do(http.MethodPost, "/push/subscriptions", token, map[string]any{"endpoint": "http://insecure.example"})
	assert.Equal(t, http.StatusBadRequest, status)

	sub := map[string]any{
		"endpoint": "https://push.example/abc",
		"keys":     map[string]string{"p256dh": "key", "auth": "secret"},
	}
	status, env = api.do(http.MethodPost, "/push/subscriptions", token, sub)
	require.Equal(t, http.StatusCreated, status, env.Message)

	subs, err := api.store.ListPushSubscriptions(context.Background(), user.ID)
	require.NoError(t, err)
	require.Len(t, subs, 1)

	status, _ = api.do(http.MethodDelete, "/push/subscriptions", token, map[string]string{"endpoint": "https://push.example/abc"})
	require.Equal(t, http.StatusOK, status)
	subs, err = api.store.ListPushSubscriptions(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Empty(t, subs)
}

func TestCronDigestRequiresSecret(t *testing.T) {
	api := newTestAPI(t)
	api.signup("frank", models.RoleFreelancer)

	status, _ := api.do(http.MethodPost, "/cron/digest", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	status, _ = api.do(http.MethodPost, "/cron/digest", "wrong", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, env := api.do(http.MethodPost, "/cron/digest", "cron-secret", nil)
	require.Equal(t, http.StatusOK, status, env.Message)
	assert.JSONEq(t, `{"sent":0,"skipped":1,"failed":0}`, string(env.Data))
}

func TestCronDigestUnconfigured(t *testing.T) {
	r := mux.NewRouter()
	NewCronHandler(nil, "", false).Register(r)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/cron/digest", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
