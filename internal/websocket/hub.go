package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"

	"github.com/estudioia/timeline-render/internal/model"
	"github.com/estudioia/timeline-render/internal/scheduler"
	"github.com/estudioia/timeline-render/pkg/response"
)

// Client represents a WebSocket client watching one job
type Client struct {
	JobID string
	Conn  *websocket.Conn
	Send  chan []byte
}

// Hub fans job events out to WebSocket clients
type Hub struct {
	// Clients grouped by job ID
	clients map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan *BroadcastMessage

	done chan struct{}

	mu  sync.RWMutex
	log *slog.Logger
}

// BroadcastMessage represents a message to broadcast
type BroadcastMessage struct {
	JobID   string
	Message []byte
}

// NewHub creates a new Hub
func NewHub(log *slog.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *BroadcastMessage, 256),
		done:       make(chan struct{}),
		log:        log.With(slog.String("component", "websocket")),
	}
}

// Run starts the hub's main loop and returns when ctx is done
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for jobID, clients := range h.clients {
				for client := range clients {
					close(client.Send)
				}
				delete(h.clients, jobID)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.JobID] == nil {
				h.clients[client.JobID] = make(map[*Client]bool)
			}
			h.clients[client.JobID][client] = true
			h.mu.Unlock()
			h.log.Debug("client registered", slog.String("job_id", client.JobID))

		case client := <-h.unregister:
			h.mu.Lock()
			h.removeLocked(client)
			h.mu.Unlock()
			h.log.Debug("client unregistered", slog.String("job_id", client.JobID))

		case msg := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients[msg.JobID] {
				select {
				case client.Send <- msg.Message:
				default:
					// slow client
					h.removeLocked(client)
				}
			}
			h.mu.Unlock()
		}
	}
}

func (h *Hub) removeLocked(client *Client) {
	clients, ok := h.clients[client.JobID]
	if !ok {
		return
	}
	if _, ok := clients[client]; ok {
		delete(clients, client)
		close(client.Send)
		if len(clients) == 0 {
			delete(h.clients, client.JobID)
		}
	}
}

// ClientCount returns the number of clients watching jobID
func (h *Hub) ClientCount(jobID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[jobID])
}

// Register adds a new client. It returns false once the hub has stopped.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes a client
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// EncodeEvent translates a job event into the matching client message
func EncodeEvent(ev model.ProgressEvent) ([]byte, error) {
	var msg interface{}
	switch ev.Type {
	case model.EventCompleted:
		msg = model.WSCompleteMessage{
			Type:      model.WSMessageTypeComplete,
			JobID:     ev.JobID,
			OutputURL: ev.OutputURL,
		}
	case model.EventFailed:
		msg = model.WSErrorMessage{
			Type:  model.WSMessageTypeError,
			JobID: ev.JobID,
			Error: model.WSError{Code: errorCode(ev.Error), Message: ev.Error},
		}
	default:
		msg = model.WSProgressMessage{
			Type:                      model.WSMessageTypeProgress,
			JobID:                     ev.JobID,
			Progress:                  ev.Percentage,
			Status:                    ev.Status,
			Frame:                     ev.Frame,
			TotalFrames:               ev.TotalFrames,
			EstimatedRemainingSeconds: ev.EstimatedRemainingSeconds,
		}
	}
	return json.Marshal(msg)
}

// BroadcastEvent sends ev to every client watching its job. Progress is
// dropped when the queue is full; terminal messages wait briefly.
func (h *Hub) BroadcastEvent(ev model.ProgressEvent) {
	data, err := EncodeEvent(ev)
	if err != nil {
		h.log.Error("failed to marshal message", slog.String("job_id", ev.JobID), slog.Any("error", err))
		return
	}

	msgOut := &BroadcastMessage{JobID: ev.JobID, Message: data}
	select {
	case h.broadcast <- msgOut:
		return
	default:
	}
	if !ev.IsTerminal() {
		h.log.Warn("broadcast queue full, dropping progress", slog.String("job_id", ev.JobID))
		return
	}

	timer := time.NewTimer(time.Second)
	defer timer.Stop()
	select {
	case h.broadcast <- msgOut:
	case <-h.done:
	case <-timer.C:
		h.log.Warn("broadcast queue full, dropping terminal message", slog.String("job_id", ev.JobID))
	}
}

// errorCode separates user cancellation from render failures
func errorCode(msg string) string {
	if msg == scheduler.CancelledMessage {
		return response.CodeRenderCancelled
	}
	return response.CodeRenderFailed
}

// HandleConnection serves one WebSocket connection until it closes
func (h *Hub) HandleConnection(c *websocket.Conn, jobID string) {
	client := &Client{
		JobID: jobID,
		Conn:  c,
		Send:  make(chan []byte, 256),
	}

	if !h.Register(client) {
		return
	}
	defer h.Unregister(client)

	// the writer goroutine is the only one writing to c
	pongs := make(chan struct{}, 1)
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case message, ok := <-client.Send:
				if !ok {
					c.WriteMessage(websocket.CloseMessage, []byte{})
					return
				}
				if err := c.WriteMessage(websocket.TextMessage, message); err != nil {
					return
				}

			case <-pongs:
				data, _ := json.Marshal(model.WSMessage{Type: model.WSMessageTypePong})
				if err := c.WriteMessage(websocket.TextMessage, data); err != nil {
					return
				}

			case <-ticker.C:
				if err := c.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	for {
		_, message, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.log.Warn("websocket error", slog.String("job_id", jobID), slog.Any("error", err))
			}
			break
		}

		var msg model.WSMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}

		if msg.Type == model.WSMessageTypePing {
			select {
			case pongs <- struct{}{}:
			default:
			}
		}
	}
}
