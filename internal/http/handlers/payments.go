package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/hongminglow/bountyboard/internal/http/respond"
	"github.com/hongminglow/bountyboard/internal/marketplace"
	"github.com/hongminglow/bountyboard/internal/middleware"
)

const maxWebhookBody = 64 << 10

// PaymentHandler serves escrow, payout onboarding and the provider webhook.
type PaymentHandler struct {
	svc *marketplace.Service
}

// NewPaymentHandler constructs the handler.
func NewPaymentHandler(svc *marketplace.Service) *PaymentHandler {
	return &PaymentHandler{svc: svc}
}

// Register attaches payment routes to the router.
func (h *PaymentHandler) Register(r *mux.Router) {
	r.HandleFunc("/payments/connect", middleware.RequireAuth(h.connect)).Methods(http.MethodPost)
	r.HandleFunc("/payments/connect", middleware.RequireAuth(h.connectStatus)).Methods(http.MethodGet)
	r.HandleFunc("/bounties/{id:[0-9]+}/payment", middleware.RequireAuth(h.get)).Methods(http.MethodGet)
	r.HandleFunc("/bounties/{id:[0-9]+}/payment/fund", middleware.RequireAuth(h.fund)).Methods(http.MethodPost)
	r.HandleFunc("/bounties/{id:[0-9]+}/payment/release", middleware.RequireAuth(h.release)).Methods(http.MethodPost)
	r.HandleFunc("/webhooks/stripe", h.webhook).Methods(http.MethodPost)
}

func (h *PaymentHandler) connect(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.ConnectAccount(r.Context(), caller(r))
	if err != nil {
		respond.Fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, "ok", out)
}

func (h *PaymentHandler) connectStatus(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.ConnectStatus(r.Context(), caller(r))
	if err != nil {
		respond.Fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, "ok", out)
}

func (h *PaymentHandler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	pay, err := h.svc.GetPayment(r.Context(), caller(r), id)
	if err != nil {
		respond.Fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, "ok", pay)
}

func (h *PaymentHandler) fund(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	pay, err := h.svc.FundEscrow(r.Context(), caller(r), id)
	if err != nil {
		respond.Fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, "ok", pay)
}

func (h *PaymentHandler) release(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	pay, err := h.svc.ReleasePayment(r.Context(), caller(r), id)
	if err != nil {
		respond.Fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, "payment released", pay)
}

func (h *PaymentHandler) webhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respond.Error(w, http.StatusRequestEntityTooLarge, "payload too large")
			return
		}
		respond.Error(w, http.StatusBadRequest, "could not read payload")
		return
	}
	if err := h.svc.HandleWebhook(r.Context(), payload, r.Header.Get("Stripe-Signature")); err != nil {
		respond.Fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, "received", nil)
}
