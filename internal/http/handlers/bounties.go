package handlers

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/hongminglow/bountyboard/internal/auth"
	"github.com/hongminglow/bountyboard/internal/http/respond"
	"github.com/hongminglow/bountyboard/internal/marketplace"
	"github.com/hongminglow/bountyboard/internal/middleware"
	"github.com/hongminglow/bountyboard/internal/models"
	"github.com/hongminglow/bountyboard/internal/models/dto"
)

// BountyHandler serves the bounty lifecycle, applications and submissions.
type BountyHandler struct {
	svc *marketplace.Service
}

// NewBountyHandler constructs the handler.
func NewBountyHandler(svc *marketplace.Service) *BountyHandler {
	return &BountyHandler{svc: svc}
}

// Register attaches bounty routes to the router.
func (h *BountyHandler) Register(r *mux.Router) {
	r.HandleFunc("/bounties", h.list).Methods(http.MethodGet)
	r.HandleFunc("/bounties", middleware.RequireAuth(h.create)).Methods(http.MethodPost)
	r.HandleFunc("/bounties/mine", middleware.RequireAuth(h.mine)).Methods(http.MethodGet)
	r.HandleFunc("/bounties/{id:[0-9]+}", h.get).Methods(http.MethodGet)
	r.HandleFunc("/bounties/{id:[0-9]+}", middleware.RequireAuth(h.update)).Methods(http.MethodPatch)
	r.HandleFunc("/bounties/{id:[0-9]+}/publish", middleware.RequireAuth(h.publish)).Methods(http.MethodPost)
	r.HandleFunc("/bounties/{id:[0-9]+}/cancel", middleware.RequireAuth(h.cancel)).Methods(http.MethodPost)

	r.HandleFunc("/bounties/{id:[0-9]+}/applications", middleware.RequireAuth(h.apply)).Methods(http.MethodPost)
	r.HandleFunc("/bounties/{id:[0-9]+}/applications", middleware.RequireAuth(h.applications)).Methods(http.MethodGet)
	r.HandleFunc("/applications/{id:[0-9]+}/withdraw", middleware.RequireAuth(h.withdraw)).Methods(http.MethodPost)
	r.HandleFunc("/applications/{id:[0-9]+}/reject", middleware.RequireAuth(h.reject)).Methods(http.MethodPost)
	r.HandleFunc("/applications/{id:[0-9]+}/accept", middleware.RequireAuth(h.accept)).Methods(http.MethodPost)

	r.HandleFunc("/bounties/{id:[0-9]+}/submissions", middleware.RequireAuth(h.submit)).Methods(http.MethodPost)
	r.HandleFunc("/bounties/{id:[0-9]+}/submissions", middleware.RequireAuth(h.submissions)).Methods(http.MethodGet)
	r.HandleFunc("/submissions/{id:[0-9]+}/review", middleware.RequireAuth(h.review)).Methods(http.MethodPost)
}

func (h *BountyHandler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	out, err := h.svc.ListOpenBounties(r.Context(), q.Get("category"), q.Get("q"), queryInt(r, "limit"), queryInt(r, "offset"))
	if err != nil {
		respond.Fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, "ok", out)
}

func (h *BountyHandler) mine(w http.ResponseWriter, r *http.Request) {
	status := models.BountyStatus(strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("status"))))
	out, err := h.svc.ListMyBounties(r.Context(), caller(r), status, queryInt(r, "limit"), queryInt(r, "offset"))
	if err != nil {
		respond.Fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, "ok", out)
}

func (h *BountyHandler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var actor *auth.Claims
	if claims, ok := auth.FromContext(r.Context()); ok {
		actor = &claims
	}
	b, err := h.svc.GetBounty(r.Context(), actor, id)
	if err != nil {
		respond.Fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, "ok", b)
}

func (h *BountyHandler) create(w http.ResponseWriter, r *http.Request) {
	var in dto.BountyInput
	if !decodeJSON(w, r, &in) {
		return
	}
	b, err := h.svc.CreateBounty(r.Context(), caller(r), in)
	if err != nil {
		respond.Fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusCreated, "bounty created", b)
}

func (h *BountyHandler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var in dto.BountyInput
	if !decodeJSON(w, r, &in) {
		return
	}
	b, err := h.svc.UpdateBounty(r.Context(), caller(r), id, in)
	if err != nil {
		respond.Fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, "bounty updated", b)
}

func (h *BountyHandler) publish(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	b, err := h.svc.PublishBounty(r.Context(), caller(r), id)
	if err != nil {
		respond.Fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, "bounty published", b)
}

func (h *BountyHandler) cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	b, err := h.svc.CancelBounty(r.Context(), caller(r), id)
	if err != nil {
		respond.Fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, "bounty cancelled", b)
}

func (h *BountyHandler) apply(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req dto.ApplyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	app, err := h.svc.Apply(r.Context(), caller(r), id, req)
	if err != nil {
		respond.Fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusCreated, "application submitted", app)
}

func (h *BountyHandler) applications(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	apps, err := h.svc.ListApplications(r.Context(), caller(r), id)
	if err != nil {
		respond.Fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, "ok", apps)
}

func (h *BountyHandler) withdraw(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	app, err := h.svc.WithdrawApplication(r.Context(), caller(r), id)
	if err != nil {
		respond.Fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, "application withdrawn", app)
}

func (h *BountyHandler) reject(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	app, err := h.svc.RejectApplication(r.Context(), caller(r), id)
	if err != nil {
		respond.Fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, "application rejected", app)
}

func (h *BountyHandler) accept(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	out, err := h.svc.AcceptApplication(r.Context(), caller(r), id)
	if err != nil {
		respond.Fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, "freelancer hired", out)
}

func (h *BountyHandler) submit(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req dto.SubmitWorkRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	sub, err := h.svc.SubmitWork(r.Context(), caller(r), id, req)
	if err != nil {
		respond.Fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusCreated, "work submitted", sub)
}

func (h *BountyHandler) submissions(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	subs, err := h.svc.ListSubmissions(r.Context(), caller(r), id)
	if err != nil {
		respond.Fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, "ok", subs)
}

func (h *BountyHandler) review(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req dto.ReviewRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	sub, err := h.svc.ReviewSubmission(r.Context(), caller(r), id, req)
	if err != nil {
		respond.Fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, "submission reviewed", sub)
}
