package server

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hongminglow/bountyboard/internal/auth"
	"github.com/hongminglow/bountyboard/internal/config"
	"github.com/hongminglow/bountyboard/internal/marketplace"
	"github.com/hongminglow/bountyboard/internal/middleware"
	"github.com/hongminglow/bountyboard/internal/realtime"
	"github.com/hongminglow/bountyboard/internal/storage/memory"
)

type testEnv struct {
	srv    *Server
	store  *memory.Store
	hub    *realtime.Hub
	tokens *auth.TokenManager
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)
	store := memory.New()
	hub := realtime.NewHub(log, nil)
	tokens := auth.NewTokenManager("secret", "bountyboard", time.Hour)
	cfg := config.Config{RateLimitRPS: 100, RateLimitBurst: 100, CORSOrigins: []string{"https://app.example"}}
	srv := New(cfg, Deps{
		Log:     log,
		Store:   store,
		Tokens:  tokens,
		Service: marketplace.New(marketplace.Deps{Store: store, Publisher: hub, Log: log}, marketplace.Options{}),
		Hub:     hub,
	})
	return testEnv{srv: srv, store: store, hub: hub, tokens: tokens}
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	return newTestEnv(t).srv
}

func TestServerChain(t *testing.T) {
	srv := newTestServer(t)
	h := srv.inner.Handler

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://app.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://app.example", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.NotEmpty(t, rec.Header().Get(middleware.RequestIDHeader))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"success":false,"code":404,"message":"route not found"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/health", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "bountyboard_http_requests_total")
}

func TestCronRouteBypassesTokenParsing(t *testing.T) {
	srv := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/cron/digest", nil)
	req.Header.Set("Authorization", "Bearer whatever")
	rec := httptest.NewRecorder()
	srv.inner.Handler.ServeHTTP(rec, req)
	// no CRON_SECRET configured
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
