// Package realtime is the websocket gateway: one authenticated connection per
// device, private per-user channels, per-conversation rooms for typing
// indicators, and presence broadcasts.
package realtime

import (
	"encoding/json"
	"log/slog"
	"sync"
)

type envelope struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// Hub tracks live connections. A user may hold several connections at once;
// events addressed to a user go to all of them.
type Hub struct {
	log *slog.Logger

	mu      sync.RWMutex
	clients map[uint64]map[*Client]struct{}
	rooms   map[uint64]map[*Client]struct{}
	typing  map[uint64]map[uint64]struct{}
}

// NewHub creates an empty hub.
func NewHub(log *slog.Logger) *Hub {
	return &Hub{
		log:     log,
		clients: make(map[uint64]map[*Client]struct{}),
		rooms:   make(map[uint64]map[*Client]struct{}),
		typing:  make(map[uint64]map[uint64]struct{}),
	}
}

func (h *Hub) add(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns, ok := h.clients[c.userID]
	if !ok {
		conns = make(map[*Client]struct{})
		h.clients[c.userID] = conns
	}
	conns[c] = struct{}{}
}

// remove detaches the client from the user set and every room and closes its
// send channel. The close happens under the write lock while every delivery
// holds the read lock, so a send on a closed channel cannot happen. Reports
// whether this was the user's last connection.
func (h *Hub) remove(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if conns, ok := h.clients[c.userID]; ok {
		delete(conns, c)
		if len(conns) == 0 {
			delete(h.clients, c.userID)
		}
	}
	for id, members := range h.rooms {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, id)
		}
	}
	c.closed = true
	c.closeOnce.Do(func() { close(c.send) })

	_, stillOnline := h.clients[c.userID]
	return !stillOnline
}

// JoinRoom subscribes the client to a conversation's room events.
func (h *Hub) JoinRoom(c *Client, conversationID uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.rooms[conversationID]
	if !ok {
		members = make(map[*Client]struct{})
		h.rooms[conversationID] = members
	}
	members[c] = struct{}{}
}

// IsOnline reports whether the user has at least one live connection.
func (h *Hub) IsOnline(userID uint64) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID]) > 0
}

func marshal(event string, payload interface{}) []byte {
	raw, err := json.Marshal(envelope{Event: event, Data: payload})
	if err != nil {
		return nil
	}
	return raw
}

// deliver pushes raw onto the client's buffer without blocking; a full buffer
// drops the event. Callers must hold at least the read lock.
func (h *Hub) deliver(c *Client, raw []byte) {
	if raw == nil || c.closed {
		return
	}
	select {
	case c.send <- raw:
	default:
		h.log.Warn("websocket send buffer full, dropping event", "user_id", c.userID)
	}
}

// EmitToUser delivers an event to every connection of a user.
func (h *Hub) EmitToUser(userID uint64, event string, payload interface{}) {
	raw := marshal(event, payload)

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients[userID] {
		h.deliver(c, raw)
	}
}

// Broadcast delivers an event to every connected client.
func (h *Hub) Broadcast(event string, payload interface{}) {
	raw := marshal(event, payload)

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, conns := range h.clients {
		for c := range conns {
			h.deliver(c, raw)
		}
	}
}

// emitToRoom delivers an event to every member of a conversation room except
// the sender.
func (h *Hub) emitToRoom(conversationID uint64, event string, payload interface{}, except *Client) {
	raw := marshal(event, payload)

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.rooms[conversationID] {
		if c != except {
			h.deliver(c, raw)
		}
	}
}

// send delivers a raw frame to a single client.
func (h *Hub) send(c *Client, raw []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	h.deliver(c, raw)
}

// setTyping records the typing state and returns the conversation's full
// typing set afterwards, plus whether the state changed. Listeners receive
// the set, not the transition, so a dropped frame cannot desync them.
func (h *Hub) setTyping(conversationID, userID uint64, isTyping bool) ([]uint64, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.typing[conversationID]
	changed := false
	if isTyping {
		if !ok {
			set = make(map[uint64]struct{})
			h.typing[conversationID] = set
		}
		if _, already := set[userID]; !already {
			set[userID] = struct{}{}
			changed = true
		}
	} else if ok {
		if _, present := set[userID]; present {
			delete(set, userID)
			changed = true
			if len(set) == 0 {
				delete(h.typing, conversationID)
			}
		}
	}
	return typingSnapshot(set), changed
}

// purgeTyping clears the user from every typing set, returning the remaining
// set per affected conversation so disconnects can broadcast the stop.
func (h *Hub) purgeTyping(userID uint64) map[uint64][]uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()

	affected := make(map[uint64][]uint64)
	for convID, set := range h.typing {
		if _, ok := set[userID]; !ok {
			continue
		}
		delete(set, userID)
		if len(set) == 0 {
			delete(h.typing, convID)
		}
		affected[convID] = typingSnapshot(set)
	}
	return affected
}

// typingSnapshot copies a typing set into a slice that marshals as a JSON
// array, never null. Callers must hold the lock.
func typingSnapshot(set map[uint64]struct{}) []uint64 {
	ids := make([]uint64, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	return ids
}
