package handlers

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/mux"

	"github.com/hongminglow/bountyboard/internal/http/respond"
	"github.com/hongminglow/bountyboard/internal/logging"
	"github.com/hongminglow/bountyboard/internal/middleware"
	"github.com/hongminglow/bountyboard/internal/models"
	"github.com/hongminglow/bountyboard/internal/models/dto"
	"github.com/hongminglow/bountyboard/internal/storage"
)

// PushHandler manages Web Push subscriptions.
type PushHandler struct {
	store     storage.PushStore
	publicKey string
}

// NewPushHandler constructs the handler. An empty publicKey disables subscribing.
func NewPushHandler(store storage.PushStore, publicKey string) *PushHandler {
	return &PushHandler{store: store, publicKey: publicKey}
}

// Register attaches push routes to the router.
func (h *PushHandler) Register(r *mux.Router) {
	r.HandleFunc("/push/vapid-key", h.vapidKey).Methods(http.MethodGet)
	r.HandleFunc("/push/subscriptions", middleware.RequireAuth(h.subscribe)).Methods(http.MethodPost)
	r.HandleFunc("/push/subscriptions", middleware.RequireAuth(h.unsubscribe)).Methods(http.MethodDelete)
}

func (h *PushHandler) vapidKey(w http.ResponseWriter, r *http.Request) {
	if h.publicKey == "" {
		respond.Error(w, http.StatusServiceUnavailable, "push notifications are not configured")
		return
	}
	respond.JSON(w, http.StatusOK, "ok", map[string]string{"public_key": h.publicKey})
}

func (h *PushHandler) subscribe(w http.ResponseWriter, r *http.Request) {
	if h.publicKey == "" {
		respond.Error(w, http.StatusServiceUnavailable, "push notifications are not configured")
		return
	}
	var req dto.PushSubscriptionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !validEndpoint(req.Endpoint) || strings.TrimSpace(req.Keys.P256dh) == "" || strings.TrimSpace(req.Keys.Auth) == "" {
		respond.Error(w, http.StatusBadRequest, "endpoint and keys are required")
		return
	}
	sub, err := h.store.UpsertPushSubscription(r.Context(), models.PushSubscription{
		UserID:    caller(r).UserID,
		Endpoint:  req.Endpoint,
		P256dh:    strings.TrimSpace(req.Keys.P256dh),
		Auth:      strings.TrimSpace(req.Keys.Auth),
		UserAgent: truncate(r.UserAgent(), 255),
	})
	if err != nil {
		logging.FromContext(r.Context()).WithError(err).Error("store push subscription")
		respond.Error(w, http.StatusInternalServerError, "failed to save subscription")
		return
	}
	respond.JSON(w, http.StatusCreated, "subscribed", sub)
}

func (h *PushHandler) unsubscribe(w http.ResponseWriter, r *http.Request) {
	var req dto.PushUnsubscribeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Endpoint) == "" {
		respond.Error(w, http.StatusBadRequest, "endpoint is required")
		return
	}
	err := h.store.DeletePushSubscription(r.Context(), caller(r).UserID, req.Endpoint)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		logging.FromContext(r.Context()).WithError(err).Error("delete push subscription")
		respond.Error(w, http.StatusInternalServerError, "failed to remove subscription")
		return
	}
	respond.JSON(w, http.StatusOK, "unsubscribed", nil)
}

func validEndpoint(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	return err == nil && u.Scheme == "https" && u.Host != "" && len(raw) <= 2048
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
