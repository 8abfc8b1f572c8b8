package handlers

import (
	"crypto/subtle"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/hongminglow/bountyboard/internal/digest"
	"github.com/hongminglow/bountyboard/internal/http/respond"
	"github.com/hongminglow/bountyboard/internal/logging"
)

// CronHandler exposes scheduled jobs to an external trigger guarded by a shared secret.
type CronHandler struct {
	job         *digest.Job
	secret      string
	mailEnabled bool
}

// NewCronHandler constructs the handler.
func NewCronHandler(job *digest.Job, secret string, mailEnabled bool) *CronHandler {
	return &CronHandler{job: job, secret: secret, mailEnabled: mailEnabled}
}

// Register attaches cron routes to the router.
func (h *CronHandler) Register(r *mux.Router) {
	r.HandleFunc("/cron/digest", h.digest).Methods(http.MethodPost)
}

func (h *CronHandler) digest(w http.ResponseWriter, r *http.Request) {
	if h.secret == "" {
		respond.Error(w, http.StatusServiceUnavailable, "cron is not configured")
		return
	}
	want := "Bearer " + h.secret
	if subtle.ConstantTimeCompare([]byte(r.Header.Get("Authorization")), []byte(want)) != 1 {
		respond.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if !h.mailEnabled {
		respond.Error(w, http.StatusServiceUnavailable, "email is not configured")
		return
	}
	res, err := h.job.Run(r.Context())
	if err != nil {
		logging.FromContext(r.Context()).WithError(err).Error("digest run failed")
		respond.Error(w, http.StatusInternalServerError, "digest run failed")
		return
	}
	respond.JSON(w, http.StatusOK, "digest sent", res)
}
