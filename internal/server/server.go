package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/hongminglow/bountyboard/internal/auth"
	"github.com/hongminglow/bountyboard/internal/config"
	"github.com/hongminglow/bountyboard/internal/digest"
	"github.com/hongminglow/bountyboard/internal/http/handlers"
	"github.com/hongminglow/bountyboard/internal/http/respond"
	"github.com/hongminglow/bountyboard/internal/marketplace"
	"github.com/hongminglow/bountyboard/internal/metrics"
	"github.com/hongminglow/bountyboard/internal/middleware"
	"github.com/hongminglow/bountyboard/internal/realtime"
	"github.com/hongminglow/bountyboard/internal/storage"
	"github.com/hongminglow/bountyboard/internal/uploads"
)

// Deps are the collaborators the HTTP layer serves.
type Deps struct {
	Log         *logrus.Logger
	Store       storage.Store
	Tokens      *auth.TokenManager
	Service     *marketplace.Service
	Hub         *realtime.Hub
	Digest      *digest.Job
	Objects     uploads.ObjectStore
	MailEnabled bool
}

// Server wraps an http.Server with configured routes.
type Server struct {
	inner   *http.Server
	limiter *middleware.RateLimiter
	stop    chan struct{}
}

// New wires up middleware, routes, and returns a ready server.
func New(cfg config.Config, deps Deps) *Server {
	router := Router(cfg, deps)
	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)

	var handler http.Handler = limiter.Handler(router)
	handler = middleware.Authenticate(deps.Tokens, handler, "/cron/", "/webhooks/")
	handler = metrics.InstrumentHandler(handler)
	handler = middleware.Logging(deps.Log, handler)
	handler = middleware.CORS(cfg.CORSOrigins, handler)

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddress(),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	return &Server{inner: httpServer, limiter: limiter, stop: make(chan struct{})}
}

// Router registers every handler on a fresh router.
func Router(cfg config.Config, deps Deps) *mux.Router {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		respond.Error(w, http.StatusNotFound, "route not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		respond.Error(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	objects := deps.Objects
	if objects == nil {
		objects = uploads.Disabled{}
	}

	handlers.NewHealthHandler(time.Now()).Register(r)
	handlers.NewAuthHandler(deps.Store, deps.Tokens, deps.Service).Register(r)
	handlers.NewBountyHandler(deps.Service).Register(r)
	handlers.NewPaymentHandler(deps.Service).Register(r)
	handlers.NewMessageHandler(deps.Service, deps.Hub).Register(r)
	handlers.NewPushHandler(deps.Store, cfg.Push.VAPIDPublicKey).Register(r)
	handlers.NewCronHandler(deps.Digest, cfg.CronSecret, deps.MailEnabled).Register(r)
	handlers.NewUploadHandler(objects, deps.Service).Register(r)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	return r
}

// Start begins serving HTTP traffic.
func (s *Server) Start() error {
	s.limiter.StartCleanup(time.Minute, s.stop)
	return s.inner.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	close(s.stop)
	return s.inner.Shutdown(ctx)
}
