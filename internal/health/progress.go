package health

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/scenario-risk/internal/metrics"
	"github.com/yourusername/scenario-risk/internal/simulation"
)

const (
	progressBuffer = 64
	writeWait      = 5 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
)

// ProgressMessage is the websocket payload for one chunk boundary
type ProgressMessage struct {
	Type          string    `json:"type"`
	ScenarioID    uuid.UUID `json:"scenarioId"`
	CompletedRuns int       `json:"completedRuns"`
	TotalRuns     int       `json:"totalRuns"`
	Fraction      float64   `json:"fraction"`
}

type progressClient struct {
	conn     *websocket.Conn
	send     chan []byte
	scenario uuid.UUID
	done     chan struct{}
}

// ProgressHub fans simulation progress out to websocket subscribers. Slow
// clients drop messages rather than stall a simulation.
type ProgressHub struct {
	upgrader websocket.Upgrader
	logger   *logrus.Logger
	mu       sync.RWMutex
	clients  map[*progressClient]struct{}
}

// NewProgressHub creates an empty hub
func NewProgressHub(logger *logrus.Logger) *ProgressHub {
	return &ProgressHub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger:  logger,
		clients: make(map[*progressClient]struct{}),
	}
}

// Broadcast sends progress to every subscriber. It is a simulation.ProgressFunc.
func (h *ProgressHub) Broadcast(p simulation.Progress) {
	payload, err := json.Marshal(ProgressMessage{
		Type:          "progress",
		ScenarioID:    p.ScenarioID,
		CompletedRuns: p.CompletedRuns,
		TotalRuns:     p.TotalRuns,
		Fraction:      p.Fraction(),
	})
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		if client.scenario != uuid.Nil && client.scenario != p.ScenarioID {
			continue
		}
		select {
		case client.send <- payload:
		default:
		}
	}
}

// Subscribers returns the number of connected clients
func (h *ProgressHub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request. An optional ?scenario=<uuid> filters
// messages to one scenario.
func (h *ProgressHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var filter uuid.UUID
	if raw := r.URL.Query().Get("scenario"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			http.Error(w, "invalid scenario id", http.StatusBadRequest)
			return
		}
		filter = id
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		if h.logger != nil {
			h.logger.WithError(err).Debug("Progress websocket upgrade failed")
		}
		return
	}

	client := &progressClient{
		conn:     conn,
		send:     make(chan []byte, progressBuffer),
		scenario: filter,
		done:     make(chan struct{}),
	}

	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()
	metrics.ProgressSubscribers.Inc()

	go h.writePump(client)
	go h.readPump(client)
}

func (h *ProgressHub) remove(client *progressClient) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.done)
		metrics.ProgressSubscribers.Dec()
	}
	h.mu.Unlock()
	client.conn.Close()
}

// readPump discards client messages and detects disconnects
func (h *ProgressHub) readPump(client *progressClient) {
	defer h.remove(client)

	client.conn.SetReadLimit(512)
	_ = client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		return client.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *ProgressHub) writePump(client *progressClient) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		h.remove(client)
	}()

	for {
		select {
		case message := <-client.send:
			_ = client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-client.done:
			return
		}
	}
}

// Close disconnects every subscriber
func (h *ProgressHub) Close() {
	h.mu.RLock()
	clients := make([]*progressClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		h.remove(c)
	}
}
