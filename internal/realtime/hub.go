package realtime

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/hongminglow/bountyboard/internal/models"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 16
)

// Frame is the JSON envelope pushed to subscribers.
type Frame struct {
	Type    string          `json:"type"`
	Message *models.Message `json:"message,omitempty"`
}

// Hub fans new thread messages out to websocket subscribers of that thread.
type Hub struct {
	mu       sync.RWMutex
	threads  map[int64]map[*subscriber]struct{}
	upgrader websocket.Upgrader
	log      *logrus.Logger
}

type subscriber struct {
	conn *websocket.Conn
	send chan []byte
}

// NewHub creates a hub. checkOrigin may be nil to use the library default.
func NewHub(log *logrus.Logger, checkOrigin func(r *http.Request) bool) *Hub {
	return &Hub{
		threads: make(map[int64]map[*subscriber]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
		log: log,
	}
}

// Subscribers returns the number of live connections on a thread.
func (h *Hub) Subscribers(threadID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.threads[threadID])
}

// Publish delivers msg to every subscriber of its thread. Slow subscribers
// whose buffer is full are dropped.
func (h *Hub) Publish(msg models.Message) {
	raw, err := json.Marshal(Frame{Type: "message", Message: &msg})
	if err != nil {
		h.log.WithError(err).Error("encode realtime frame")
		return
	}

	h.mu.RLock()
	var slow []*subscriber
	for sub := range h.threads[msg.ThreadID] {
		select {
		case sub.send <- raw:
		default:
			slow = append(slow, sub)
		}
	}
	h.mu.RUnlock()

	for _, sub := range slow {
		h.remove(msg.ThreadID, sub)
	}
}

// Serve upgrades the request and streams the thread until the client leaves.
// Authorisation must be checked by the caller before Serve.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, threadID int64) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	sub := &subscriber{conn: conn, send: make(chan []byte, sendBuffer)}
	h.add(threadID, sub)

	go h.writeLoop(threadID, sub)
	h.readLoop(threadID, sub)
	return nil
}

func (h *Hub) add(threadID int64, sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.threads[threadID] == nil {
		h.threads[threadID] = make(map[*subscriber]struct{})
	}
	h.threads[threadID][sub] = struct{}{}
}

func (h *Hub) remove(threadID int64, sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs, ok := h.threads[threadID]
	if !ok {
		return
	}
	if _, ok := subs[sub]; !ok {
		return
	}
	delete(subs, sub)
	close(sub.send)
	if len(subs) == 0 {
		delete(h.threads, threadID)
	}
}

// readLoop only services control frames; clients post messages over HTTP.
func (h *Hub) readLoop(threadID int64, sub *subscriber) {
	defer func() {
		h.remove(threadID, sub)
		_ = sub.conn.Close()
	}()
	sub.conn.SetReadLimit(512)
	_ = sub.conn.SetReadDeadline(time.Now().Add(pongWait))
	sub.conn.SetPongHandler(func(string) error {
		return sub.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := sub.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.WithField("thread_id", threadID).WithError(err).Debug("websocket closed")
			}
			return
		}
	}
}

func (h *Hub) writeLoop(threadID int64, sub *subscriber) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = sub.conn.Close()
	}()
	for {
		select {
		case raw, ok := <-sub.send:
			_ = sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = sub.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := sub.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
				h.remove(threadID, sub)
				return
			}
		case <-ticker.C:
			_ = sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := sub.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.remove(threadID, sub)
				return
			}
		}
	}
}
