// Package feed streams recording_stored events to websocket listeners
package feed

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rx3lixir/voicebank/internal/domain"
)

type Hub struct {
	// Registered clients (only accessed by hub goroutine)
	clients map[*Client]bool

	broadcast  chan Message
	register   chan *Client
	unregister chan *Client

	shutdown chan struct{}
	done     chan struct{}

	connected prometheus.Gauge

	log *slog.Logger
}

// NewHub creates a hub, connected may be nil
func NewHub(connected prometheus.Gauge, log *slog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Message, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		shutdown:   make(chan struct{}),
		done:       make(chan struct{}),
		connected:  connected,
		log:        log,
	}
}

// Run is the main event loop, it handles all state changes sequentially
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case client := <-h.register:
			h.handleRegister(client)

		case client := <-h.unregister:
			h.handleUnregister(client)

		case message := <-h.broadcast:
			h.handleBroadcast(message)

		case <-h.shutdown:
			h.handleShutdown()
			return
		}
	}
}

func (h *Hub) handleRegister(client *Client) {
	h.clients[client] = true
	h.setGauge()

	h.log.Info("feed client registered",
		"contributor_id", client.contributorID,
		"total_clients", len(h.clients),
	)

	ack := Message{
		Type:      TypeConnected,
		Data:      ConnectedData{ContributorID: client.contributorID},
		Timestamp: time.Now().Unix(),
	}
	h.deliver(client, ack)
}

func (h *Hub) handleUnregister(client *Client) {
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
		h.setGauge()

		h.log.Info("feed client unregistered",
			"contributor_id", client.contributorID,
			"remaining_clients", len(h.clients),
		)
	}
}

func (h *Hub) handleBroadcast(message Message) {
	message.Timestamp = time.Now().Unix()
	for client := range h.clients {
		h.deliver(client, message)
	}
}

// deliver queues message for client and drops clients that fell behind
func (h *Hub) deliver(client *Client, message Message) {
	data, err := message.ToJSON()
	if err != nil {
		h.log.Error("failed to marshal message", "type", message.Type, "error", err)
		return
	}

	select {
	case client.send <- data:
	default:
		h.log.Warn("client buffer full, disconnecting",
			"contributor_id", client.contributorID,
		)
		h.handleUnregister(client)
	}
}

func (h *Hub) handleShutdown() {
	h.log.Info("shutting down feed hub", "clients", len(h.clients))

	for client := range h.clients {
		close(client.send)
	}
	h.clients = nil
	h.setGauge()
}

func (h *Hub) setGauge() {
	if h.connected != nil {
		h.connected.Set(float64(len(h.clients)))
	}
}

// Send queues a message for every client without blocking the caller
func (h *Hub) Send(message Message) {
	select {
	case h.broadcast <- message:
	default:
		h.log.Error("hub broadcast channel full, message dropped", "type", message.Type)
	}
}

// PublishStored announces a stored recording
func (h *Hub) PublishStored(rec domain.StoredRecording) {
	h.Send(Message{Type: TypeRecordingStored, Data: rec})
}

// Shutdown stops the loop and closes every client, it waits for Run to return
func (h *Hub) Shutdown() {
	select {
	case <-h.shutdown:
	default:
		close(h.shutdown)
	}
	<-h.done
}

// join registers client unless the hub already stopped
func (h *Hub) join(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) leave(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}
