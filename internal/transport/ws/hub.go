package ws

import (
	"context"
	"fmt"
	"sync"

	"github.com/hhkuy/sums-qz/internal/domain"
)

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type textPayload struct {
	Text string `json:"text"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// Hub tracks live connections grouped by conversation and implements the
// outbound transport capability (app.Dispatcher): a text message or a
// question goes to every connection of the conversation.
type Hub struct {
	mu    sync.RWMutex
	conns map[string]map[*client]struct{}
}

func NewHub() *Hub {
	return &Hub{conns: make(map[string]map[*client]struct{})}
}

func (h *Hub) SendText(_ context.Context, conversationID, text string) error {
	return h.broadcast(conversationID, outboundMessage[textPayload]{Type: "message", Payload: textPayload{Text: text}})
}

func (h *Hub) SendQuestion(_ context.Context, conversationID string, q domain.OutboundQuestion) error {
	return h.broadcast(conversationID, outboundMessage[domain.OutboundQuestion]{Type: "question", Payload: q})
}

func (h *Hub) broadcast(conversationID string, msg any) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	clients := h.conns[conversationID]
	if len(clients) == 0 {
		return fmt.Errorf("no listeners for conversation %s", conversationID)
	}
	for c := range clients {
		c.enqueue(msg)
	}
	return nil
}

func (h *Hub) add(conversationID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conns[conversationID] == nil {
		h.conns[conversationID] = make(map[*client]struct{})
	}
	h.conns[conversationID][c] = struct{}{}
}

func (h *Hub) remove(conversationID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	clients := h.conns[conversationID]
	delete(clients, c)
	if len(clients) == 0 {
		delete(h.conns, conversationID)
	}
}

// client is one websocket connection with its buffered write queue.
type client struct {
	participantID string
	send          chan any
}

func newClient(participantID string) *client {
	return &client{participantID: participantID, send: make(chan any, 16)}
}

// enqueue never blocks; a slow reader loses oldest frames instead of
// stalling the whole conversation.
func (c *client) enqueue(msg any) {
	select {
	case c.send <- msg:
	default:
		select {
		case <-c.send:
		default:
		}
		select {
		case c.send <- msg:
		default:
		}
	}
}
