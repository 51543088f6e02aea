package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/vocalize/internal/gesture"
	"github.com/ayusman/vocalize/internal/pipeline"
)

const (
	// subscriberBuffer is how many events a slow client may lag behind
	// before further events are dropped for it.
	subscriberBuffer = 16
	writeWait        = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// Event types sent over /api/events.
const (
	EventLetter   = "letter"
	EventPresence = "presence"
)

// Event is one message on the event stream.
type Event struct {
	Type      string `json:"type"`
	Letter    string `json:"letter,omitempty"`
	Present   *bool  `json:"present,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

type subscriber struct {
	send chan []byte
}

// EventHub fans pipeline events out to WebSocket clients.
type EventHub struct {
	logger *slog.Logger

	mu      sync.Mutex
	clients map[*subscriber]struct{}
}

// NewEventHub creates an empty hub.
func NewEventHub(logger *slog.Logger) *EventHub {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventHub{
		logger:  logger,
		clients: make(map[*subscriber]struct{}),
	}
}

// Attach subscribes the hub to a driver's letter and presence events.
func (h *EventHub) Attach(d *pipeline.Driver) {
	d.OnLetter(h.PublishLetter)
	d.OnHandPresence(h.PublishPresence)
}

// PublishLetter broadcasts an emitted letter.
func (h *EventHub) PublishLetter(l gesture.Label) {
	h.publish(Event{Type: EventLetter, Letter: string(l)})
}

// PublishPresence broadcasts a hand presence change.
func (h *EventHub) PublishPresence(present bool) {
	h.publish(Event{Type: EventPresence, Present: &present})
}

// Clients returns the number of connected clients.
func (h *EventHub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// publish never blocks the caller, which runs on the frame path.
func (h *EventHub) publish(e Event) {
	e.Timestamp = time.Now().UnixMilli()
	msg, err := json.Marshal(e)
	if err != nil {
		h.logger.Error("encode event", "err", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.clients {
		select {
		case sub.send <- msg:
		default:
			h.logger.Debug("event dropped for slow client", "type", e.Type)
		}
	}
}

func (h *EventHub) subscribe() *subscriber {
	sub := &subscriber{send: make(chan []byte, subscriberBuffer)}
	h.mu.Lock()
	h.clients[sub] = struct{}{}
	h.mu.Unlock()
	return sub
}

func (h *EventHub) unsubscribe(sub *subscriber) {
	h.mu.Lock()
	delete(h.clients, sub)
	h.mu.Unlock()
}

// ServeHTTP upgrades the request and streams events until the client leaves.
func (h *EventHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	sub := h.subscribe()
	defer h.unsubscribe(sub)

	// Reads only detect the close; clients send nothing.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case msg := <-sub.send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				h.logger.Debug("websocket write failed", "err", err)
				return
			}
		case <-done:
			return
		case <-r.Context().Done():
			return
		}
	}
}
