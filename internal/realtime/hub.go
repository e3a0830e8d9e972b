package realtime

import (
	"encoding/json"
	"strings"
	"sync"

	"github.com/Mikami99/Gestion-Tickets-telepherique-API/internal/models"
	"github.com/Mikami99/Gestion-Tickets-telepherique-API/internal/store"

	"github.com/sirupsen/logrus"
)

const clientBuffer = 16

// Subscription narrows the events a client receives. An empty Status receives everything.
type Subscription struct {
	Status string
}

type Client struct {
	ID           string
	Send         chan []byte
	Subscription Subscription
}

type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	logger  logrus.FieldLogger
}

type SubscribeMessage struct {
	Action string `json:"action"`
	Status string `json:"status"`
}

// Message is what clients receive for every ticket change.
type Message struct {
	Type           string        `json:"type"`
	Ticket         models.Ticket `json:"ticket"`
	PreviousStatus string        `json:"previous_status,omitempty"`
}

func New(logger logrus.FieldLogger) *Hub {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Hub{
		clients: make(map[string]*Client),
		logger:  logger,
	}
}

func NewClient(id string) *Client {
	return &Client{ID: id, Send: make(chan []byte, clientBuffer)}
}

func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client.ID] = client
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client.ID]; !ok {
		return
	}
	delete(h.clients, client.ID)
	close(client.Send)
}

func (h *Hub) UpdateSubscription(client *Client, sub Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	client.Subscription = sub
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast sends payload to clients subscribed to any of statuses, or to everyone
// when no status is given. It never blocks; clients with a full buffer miss the message.
func (h *Hub) Broadcast(payload []byte, statuses ...string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		if !match(client.Subscription, statuses) {
			continue
		}
		select {
		case client.Send <- payload:
		default:
			h.logger.WithField("client_id", client.ID).Warn("drop message for slow client")
		}
	}
}

// Publish sends a ticket change to clients subscribed to its current or previous status,
// so a ticket leaving a status is seen by that status' subscribers.
func (h *Hub) Publish(eventType string, ticket models.Ticket, previousStatus string) {
	payload, err := json.Marshal(Message{Type: eventType, Ticket: ticket, PreviousStatus: previousStatus})
	if err != nil {
		h.logger.WithError(err).Warn("encode realtime message")
		return
	}
	h.Broadcast(payload, ticket.Status, previousStatus)
}

func match(sub Subscription, statuses []string) bool {
	if sub.Status == "" {
		return true
	}
	filtered := false
	for _, status := range statuses {
		if status == "" {
			continue
		}
		filtered = true
		if sub.Status == status {
			return true
		}
	}
	return !filtered
}

func ParseSubscribe(data []byte) (SubscribeMessage, bool) {
	var msg SubscribeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return SubscribeMessage{}, false
	}
	if msg.Action != "subscribe" && msg.Action != "unsubscribe" {
		return SubscribeMessage{}, false
	}
	msg.Status = strings.TrimSpace(msg.Status)
	if msg.Status == "all" {
		msg.Status = ""
	}
	if msg.Status != "" && !store.ValidStatus(msg.Status) {
		return SubscribeMessage{}, false
	}
	return msg, true
}
