package websocket

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"

	"github.com/gunta/skypilot/internal/model"
	"github.com/gunta/skypilot/internal/service"
)

// TopicAll receives every message. Other topics are video IDs.
const TopicAll = "all"

// Client represents a WebSocket client
type Client struct {
	ID    string
	Topic string
	Conn  *websocket.Conn
	Send  chan []byte
}

// Hub maintains active WebSocket connections
type Hub struct {
	// Clients grouped by topic
	clients map[string]map[*Client]bool

	// Register requests
	register chan *Client

	// Unregister requests
	unregister chan *Client

	// Broadcast messages to topic subscribers
	broadcast chan *BroadcastMessage

	mu sync.RWMutex
}

// BroadcastMessage represents a message to broadcast. Messages with a JobID
// reach that job's topic as well as TopicAll.
type BroadcastMessage struct {
	JobID   string
	Message []byte
}

// NewHub creates a new Hub
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *BroadcastMessage, 256),
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.Topic] == nil {
				h.clients[client.Topic] = make(map[*Client]bool)
			}
			h.clients[client.Topic][client] = true
			h.mu.Unlock()
			log.Printf("[WS] Client %s subscribed to %s", client.ID, client.Topic)

		case client := <-h.unregister:
			h.mu.Lock()
			h.remove(client)
			h.mu.Unlock()
			log.Printf("[WS] Client %s left %s", client.ID, client.Topic)

		case msg := <-h.broadcast:
			h.mu.Lock()
			h.deliver(TopicAll, msg.Message)
			if msg.JobID != "" && msg.JobID != TopicAll {
				h.deliver(msg.JobID, msg.Message)
			}
			h.mu.Unlock()
		}
	}
}

func (h *Hub) deliver(topic string, message []byte) {
	for client := range h.clients[topic] {
		select {
		case client.Send <- message:
		default:
			// Slow consumer.
			h.remove(client)
		}
	}
}

func (h *Hub) remove(client *Client) {
	clients, ok := h.clients[client.Topic]
	if !ok {
		return
	}
	if _, ok := clients[client]; !ok {
		return
	}
	delete(clients, client)
	close(client.Send)
	if len(clients) == 0 {
		delete(h.clients, client.Topic)
	}
}

// Register adds a new client
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister removes a client
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// ClientCount returns the number of clients subscribed to topic
func (h *Hub) ClientCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[topic])
}

func (h *Hub) send(jobID string, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("[WS] Failed to marshal message: %v", err)
		return
	}

	// Callers run on the orchestrator goroutine, so never block here.
	select {
	case h.broadcast <- &BroadcastMessage{JobID: jobID, Message: data}:
	default:
		log.Printf("[WS] Broadcast queue full, dropping message for %q", jobID)
	}
}

// HandleEvent forwards an orchestrator event. It is meant to be passed to
// Orchestrator.Subscribe.
func (h *Hub) HandleEvent(ev service.Event) {
	switch ev.Type {
	case service.EventState:
		h.BroadcastState(ev.Snapshot)
	case service.EventTrack:
		if ev.Job != nil {
			h.BroadcastTrack(*ev.Job)
		}
	case service.EventOperation:
		h.BroadcastOperation(ev.Snapshot)
	}
}

// BroadcastState sends the orchestrator state to every client
func (h *Hub) BroadcastState(snap service.Snapshot) {
	h.send(TopicAll, model.WSStateMessage{
		Type:             model.WSMessageTypeState,
		State:            string(snap.State),
		OperationVersion: snap.OperationVersion,
		Error:            snap.Error,
	})
}

// BroadcastTrack sends a tracked job update to its subscribers
func (h *Hub) BroadcastTrack(job model.TrackedJob) {
	h.send(job.Video.ID, model.WSTrackMessage{
		Type:  model.WSMessageTypeTrack,
		JobID: job.Video.ID,
		Job:   job,
	})
}

// BroadcastOperation reports a finished operation, or its error
func (h *Hub) BroadcastOperation(snap service.Snapshot) {
	if snap.Error != "" {
		h.BroadcastError("", "OPERATION_FAILED", snap.Error)
		h.BroadcastState(snap)
		return
	}
	if snap.LastOperation == nil {
		return
	}
	h.send(TopicAll, model.WSOperationMessage{
		Type:             model.WSMessageTypeOperation,
		Kind:             snap.LastOperation.Kind(),
		OperationVersion: snap.OperationVersion,
		Result:           snap.LastOperation,
	})
	h.BroadcastState(snap)
}

// BroadcastRates announces a refreshed exchange rate table
func (h *Hub) BroadcastRates(rates *model.CurrencyRates) {
	if rates == nil {
		return
	}
	h.send(TopicAll, model.WSRatesMessage{
		Type:      model.WSMessageTypeRates,
		Base:      rates.Base,
		Count:     len(rates.Rates),
		FetchedAt: rates.FetchedAt.Unix(),
	})
}

// BroadcastError sends an error message to all subscribers of jobID
func (h *Hub) BroadcastError(jobID string, code, message string) {
	h.send(jobID, model.WSErrorMessage{
		Type:  model.WSMessageTypeError,
		JobID: jobID,
		Error: model.WSError{
			Code:    code,
			Message: message,
		},
	})
}

// HandleConnection handles a WebSocket connection
func (h *Hub) HandleConnection(c *websocket.Conn, topic string) {
	if topic == "" {
		topic = TopicAll
	}
	client := &Client{
		ID:    uuid.New().String(),
		Topic: topic,
		Conn:  c,
		Send:  make(chan []byte, 256),
	}

	h.Register(client)
	defer h.Unregister(client)

	// Start writer goroutine
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

			case <-ticker.C:
				// Send ping for keep-alive
				if err := c.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	// Reader loop
	for {
		_, message, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[WS] Client %s error: %v", client.ID, err)
			}
			break
		}

		var msg model.WSMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}

		if msg.Type == model.WSMessageTypePing {
			h.reply(client, model.WSMessage{Type: model.WSMessageTypePong})
		}
	}
}

// reply queues a direct answer unless the client is already gone.
func (h *Hub) reply(client *Client, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if !h.clients[client.Topic][client] {
		return
	}
	select {
	case client.Send <- data:
	default:
	}
}
