package ws

import (
	"TextDesk/entity"
	"TextDesk/internal/lib/sl"
	"encoding/json"
	"log/slog"
	"sync"
)

const (
	EventNewMessage          = "new_message"
	EventConversationUpdated = "conversation_updated"
	EventConversationDeleted = "conversation_deleted"
	EventRead                = "read"
)

// ClientMessageHandler handles requests sent by admin clients over the socket.
type ClientMessageHandler interface {
	HandleMarkRead(username, key string) error
}

// Event is the envelope of every message pushed to admin clients.
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type messageEvent struct {
	Key     string         `json:"key"`
	Message entity.Message `json:"message"`
}

type keyEvent struct {
	Key      string `json:"key"`
	Username string `json:"username,omitempty"`
}

// Hub keeps the connected clients and fans events out to them.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan *Event
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
	handler    ClientMessageHandler
	log        *slog.Logger
}

func NewHub(log *slog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan *Event, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		log:        log.With(sl.Module("ws")),
	}
}

func (h *Hub) SetHandler(handler ClientMessageHandler) {
	h.handler = handler
}

// Run is the hub event loop; start it in its own goroutine.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.log.Debug("client connected", slog.String("username", client.username))

		case client := <-h.unregister:
			h.drop(client)

		case event := <-h.broadcast:
			data, err := json.Marshal(event)
			if err != nil {
				h.log.Error("marshal event", slog.String("type", event.Type), sl.Err(err))
				continue
			}
			h.deliver(data)
		}
	}
}

func (h *Hub) drop(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
}

// deliver writes data to every client; a client whose buffer is full is
// disconnected.
func (h *Hub) deliver(data []byte) {
	var slow []*Client
	h.mu.RLock()
	for client := range h.clients {
		select {
		case client.send <- data:
		default:
			slow = append(slow, client)
		}
	}
	h.mu.RUnlock()
	for _, client := range slow {
		h.log.Warn("dropping slow client", slog.String("username", client.username))
		h.drop(client)
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) publish(event *Event) {
	select {
	case h.broadcast <- event:
	default:
		h.log.Warn("broadcast queue full", slog.String("type", event.Type))
	}
}

func (h *Hub) BroadcastMessage(key string, msg entity.Message) {
	h.publish(&Event{Type: EventNewMessage, Data: messageEvent{Key: key, Message: msg}})
}

func (h *Hub) BroadcastConversation(summary entity.ConversationSummary) {
	h.publish(&Event{Type: EventConversationUpdated, Data: summary})
}

func (h *Hub) BroadcastDeleted(key string) {
	h.publish(&Event{Type: EventConversationDeleted, Data: keyEvent{Key: key}})
}

func (h *Hub) BroadcastRead(username, key string) {
	h.publish(&Event{Type: EventRead, Data: keyEvent{Key: key, Username: username}})
}

type clientEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// HandleClientMessage parses one frame received from a client and dispatches it.
func (h *Hub) HandleClientMessage(username string, raw []byte) {
	if h.handler == nil {
		return
	}

	var event clientEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		h.log.Warn("failed to parse client ws message", sl.Err(err))
		return
	}

	switch event.Type {
	case "mark_read":
		var data struct {
			Key string `json:"key"`
		}
		if err := json.Unmarshal(event.Data, &data); err != nil {
			h.log.Warn("failed to parse mark_read data", sl.Err(err))
			return
		}
		if data.Key == "" {
			return
		}
		if err := h.handler.HandleMarkRead(username, data.Key); err != nil {
			h.log.Error("failed to handle mark_read",
				slog.String("username", username),
				slog.String("key", data.Key),
				sl.Err(err),
			)
		}
	default:
		h.log.Debug("unknown client event", slog.String("type", event.Type))
	}
}
