// Package hub tracks live websocket connections and fans out agent events.
package hub

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/familyconnect/familyconnect/internal/core"
	"github.com/familyconnect/familyconnect/internal/interagent"
	"github.com/familyconnect/familyconnect/internal/logging"
)

// Orchestrator is the message-processing surface the hub drives.
type Orchestrator interface {
	ProcessUserMessage(ctx context.Context, userID int64, agent core.AgentID, text string) (*interagent.UserMessageResult, error)
	DirectMessage(ctx context.Context, from, to core.AgentID, userID int64, text string, priority core.Priority) (*interagent.DirectMessageResult, error)
}

// Event is the JSON envelope traveling in both directions.
type Event struct {
	Type string `json:"type"`

	// user_message / direct_agent_message fields
	UserID    int64           `json:"userId,omitempty"`
	AgentID   core.AgentID    `json:"agentId,omitempty"`
	FromAgent core.AgentID    `json:"fromAgent,omitempty"`
	ToAgent   core.AgentID    `json:"toAgent,omitempty"`
	Message   string          `json:"message,omitempty"`
	Priority  core.Priority   `json:"priority,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

type connection struct {
	id string
	ws *websocket.Conn

	// Serializes writes: broadcasts and direct replies may race.
	writeMu sync.Mutex
}

func (c *connection) send(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.WriteJSON(v)
}

// Hub owns the connection registry. Connects, disconnects, and lazy cleanup
// during broadcast all mutate it under one lock; event processing for
// different connections proceeds concurrently.
type Hub struct {
	orchestrator Orchestrator
	upgrader     websocket.Upgrader

	mu    sync.RWMutex
	conns map[string]*connection

	log *logging.Logger
}

// New creates a hub around the orchestrator.
func New(orchestrator Orchestrator) *Hub {
	return &Hub{
		orchestrator: orchestrator,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		conns: make(map[string]*connection),
		log:   logging.Component("hub"),
	}
}

// HandleWS upgrades the request and runs the connection's read loop until
// the peer goes away.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed: %v", err)
		return
	}

	conn := &connection{id: uuid.New().String(), ws: ws}
	h.register(conn)
	defer h.unregister(conn.id)
	defer ws.Close()

	h.log.Debug("connection %s opened", conn.id)

	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			h.log.Debug("connection %s closed: %v", conn.id, err)
			return
		}
		h.dispatch(r.Context(), conn, raw)
	}
}

// ConnectionCount reports the number of open connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

func (h *Hub) register(c *connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[c.id] = c
}

func (h *Hub) unregister(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, id)
}

// dispatch routes one inbound event. Malformed payloads answer the origin
// with a single error event; unknown types are ignored.
func (h *Hub) dispatch(ctx context.Context, origin *connection, raw []byte) {
	var ev Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		h.sendError(origin, "malformed event")
		return
	}

	switch ev.Type {
	case "ping":
		if err := origin.send(map[string]string{"type": "pong"}); err != nil {
			h.unregister(origin.id)
		}
	case "user_message":
		h.handleUserMessage(ctx, origin, ev)
	case "direct_agent_message":
		h.handleDirectMessage(ctx, origin, ev)
	default:
		h.log.Debug("ignoring event type %q from %s", ev.Type, origin.id)
	}
}

func (h *Hub) handleUserMessage(ctx context.Context, origin *connection, ev Event) {
	if ev.Message == "" || !ev.AgentID.Valid() {
		h.sendError(origin, "malformed event")
		return
	}

	result, err := h.orchestrator.ProcessUserMessage(ctx, ev.UserID, ev.AgentID, ev.Message)
	if err != nil {
		h.sendError(origin, err.Error())
		return
	}

	if err := origin.send(map[string]any{
		"type":    "agent_response",
		"agentId": ev.AgentID,
		"userId":  ev.UserID,
		"reply":   result.Reply,
	}); err != nil {
		h.unregister(origin.id)
	}

	if result.AgentMessage != nil {
		h.broadcastExcept(origin.id, map[string]any{
			"type":          "agent_communication",
			"agentMessage":  result.AgentMessage,
			"agentResponse": result.AgentResponse,
		})
	}
}

func (h *Hub) handleDirectMessage(ctx context.Context, origin *connection, ev Event) {
	if ev.Message == "" || !ev.FromAgent.Valid() || !ev.ToAgent.Valid() {
		h.sendError(origin, "malformed event")
		return
	}

	result, err := h.orchestrator.DirectMessage(ctx, ev.FromAgent, ev.ToAgent, ev.UserID, ev.Message, ev.Priority)
	if err != nil {
		h.sendError(origin, err.Error())
		return
	}

	if err := origin.send(map[string]any{
		"type":          "direct_agent_response",
		"agentMessage":  result.AgentMessage,
		"agentResponse": result.AgentResponse,
	}); err != nil {
		h.unregister(origin.id)
	}

	h.broadcastExcept(origin.id, map[string]any{
		"type":         "agent_communication",
		"agentMessage": result.AgentMessage,
	})
}

func (h *Hub) sendError(origin *connection, msg string) {
	if err := origin.send(map[string]string{"type": "error", "message": msg}); err != nil {
		h.unregister(origin.id)
	}
}

// broadcastExcept fans an event out to every connection but the origin. A
// failed send removes that connection without aborting delivery to the rest.
func (h *Hub) broadcastExcept(originID string, v any) {
	h.mu.RLock()
	targets := make([]*connection, 0, len(h.conns))
	for id, c := range h.conns {
		if id != originID {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if err := c.send(v); err != nil {
			h.log.Debug("dropping connection %s: %v", c.id, err)
			h.unregister(c.id)
		}
	}
}

// BroadcastAll fans a global event out to every connection, origin
// included. Used for events not tied to one client, e.g. a new photo.
func (h *Hub) BroadcastAll(v any) {
	h.broadcastExcept("", v)
}

// NotifyNewPhoto announces a photo to every connected client.
func (h *Hub) NotifyNewPhoto(frameID int64, photo *core.FamilyPhoto) {
	h.BroadcastAll(map[string]any{
		"type":    "new_photo",
		"frameId": frameID,
		"photo":   photo,
	})
}
