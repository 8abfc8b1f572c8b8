package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/hongminglow/bountyboard/internal/http/respond"
	"github.com/hongminglow/bountyboard/internal/logging"
	"github.com/hongminglow/bountyboard/internal/marketplace"
	"github.com/hongminglow/bountyboard/internal/middleware"
	"github.com/hongminglow/bountyboard/internal/models/dto"
	"github.com/hongminglow/bountyboard/internal/realtime"
)

// MessageHandler serves threads, messages and the live thread socket.
type MessageHandler struct {
	svc *marketplace.Service
	hub *realtime.Hub
}

// NewMessageHandler constructs the handler.
func NewMessageHandler(svc *marketplace.Service, hub *realtime.Hub) *MessageHandler {
	return &MessageHandler{svc: svc, hub: hub}
}

// Register attaches messaging routes to the router.
func (h *MessageHandler) Register(r *mux.Router) {
	r.HandleFunc("/threads", middleware.RequireAuth(h.start)).Methods(http.MethodPost)
	r.HandleFunc("/threads", middleware.RequireAuth(h.list)).Methods(http.MethodGet)
	r.HandleFunc("/threads/unread", middleware.RequireAuth(h.unread)).Methods(http.MethodGet)
	r.HandleFunc("/threads/{id:[0-9]+}/messages", middleware.RequireAuth(h.messages)).Methods(http.MethodGet)
	r.HandleFunc("/threads/{id:[0-9]+}/messages", middleware.RequireAuth(h.send)).Methods(http.MethodPost)
	r.HandleFunc("/threads/{id:[0-9]+}/read", middleware.RequireAuth(h.read)).Methods(http.MethodPost)
	r.HandleFunc("/threads/{id:[0-9]+}/ws", middleware.RequireAuth(h.subscribe)).Methods(http.MethodGet)
}

func (h *MessageHandler) start(w http.ResponseWriter, r *http.Request) {
	var req dto.StartThreadRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	t, err := h.svc.StartThread(r.Context(), caller(r), req)
	if err != nil {
		respond.Fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, "ok", t)
}

func (h *MessageHandler) list(w http.ResponseWriter, r *http.Request) {
	threads, err := h.svc.ListThreads(r.Context(), caller(r))
	if err != nil {
		respond.Fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, "ok", threads)
}

func (h *MessageHandler) unread(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.UnreadCount(r.Context(), caller(r))
	if err != nil {
		respond.Fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, "ok", map[string]int{"unread": n})
}

func (h *MessageHandler) messages(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	msgs, err := h.svc.ListMessages(r.Context(), caller(r), id, queryInt64(r, "before"), queryInt(r, "limit"))
	if err != nil {
		respond.Fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, "ok", msgs)
}

func (h *MessageHandler) send(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req dto.SendMessageRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	msg, err := h.svc.SendMessage(r.Context(), caller(r), id, req)
	if err != nil {
		respond.Fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusCreated, "message sent", msg)
}

func (h *MessageHandler) read(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	n, err := h.svc.MarkRead(r.Context(), caller(r), id)
	if err != nil {
		respond.Fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, "ok", map[string]int64{"marked": n})
}

func (h *MessageHandler) subscribe(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if _, err := h.svc.AuthorizeThread(r.Context(), caller(r), id); err != nil {
		respond.Fail(w, r, err)
		return
	}
	// the upgrader has already answered the client when Serve fails
	if err := h.hub.Serve(w, r, id); err != nil {
		logging.FromContext(r.Context()).WithError(err).Debug("websocket upgrade failed")
	}
}
