package wshub

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"neurotrainer/internal/events"
)

// FeedMessage is the JSON structure sent to feed subscribers.
type FeedMessage struct {
	Type    string    `json:"t"`
	ID      string    `json:"id"`
	UserID  string    `json:"userId,omitempty"`
	Mode    string    `json:"mode,omitempty"`
	Correct bool      `json:"correct"`
	Score   int       `json:"score"`
	Tier    string    `json:"tier,omitempty"`
	Reason  string    `json:"reason,omitempty"`
	At      time.Time `json:"at"`
}

// Client represents a single WebSocket connection in the hub.
type Client struct {
	ID   string
	Conn *websocket.Conn
	Send chan []byte
}

func NewClient(conn *websocket.Conn) *Client {
	return &Client{
		ID:   uuid.NewString(),
		Conn: conn,
		Send: make(chan []byte, 32),
	}
}

// WritePump reads from the Send channel and writes to the WebSocket connection.
func (c *Client) WritePump(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-c.Send:
			if !ok {
				return
			}
			if err := c.Conn.Write(ctx, websocket.MessageText, msg); err != nil {
				return
			}
		}
	}
}

// Hub fans judged rounds out to feed connections.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]*Client),
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.ID] = c
}

// Unregister removes a client and closes its Send channel.
func (h *Hub) Unregister(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.clients[id]; ok {
		close(c.Send)
		delete(h.clients, id)
	}
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast sends msg to every client. Non-blocking: drops if a channel is full.
func (h *Hub) Broadcast(msg FeedMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Error().Str("component", "feed").Err(err).Msg("marshal feed message")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, c := range h.clients {
		select {
		case c.Send <- data:
		default:
		}
	}
}

// Pump forwards judged rounds from bus until ctx is done.
func (h *Hub) Pump(ctx context.Context, bus *events.Bus) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-bus.RoundsJudged:
			h.Broadcast(FeedMessage{
				Type:    "judged",
				ID:      uuid.NewString(),
				UserID:  ev.UserID,
				Mode:    ev.Mode,
				Correct: ev.Correct,
				Score:   ev.Score,
				Tier:    ev.Tier,
				Reason:  ev.Reason,
				At:      ev.At,
			})
		}
	}
}
