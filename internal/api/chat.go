package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/familyconnect/familyconnect/internal/core"
)

type chatRequest struct {
	UserID  int64        `json:"userId"`
	AgentID core.AgentID `json:"agentId"`
	Message string       `json:"message"`
}

// handleChat runs the full orchestration flow for one user message.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.Message == "" {
		s.respondError(w, http.StatusBadRequest, "Message required")
		return
	}
	if !req.AgentID.Valid() {
		s.respondError(w, http.StatusBadRequest, "Unknown agent")
		return
	}

	result, err := s.service.ProcessUserMessage(r.Context(), req.UserID, req.AgentID, req.Message)
	if err != nil {
		s.respondError(w, s.statusFor(err), err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}

type directMessageRequest struct {
	FromAgent core.AgentID  `json:"fromAgent"`
	ToAgent   core.AgentID  `json:"toAgent"`
	UserID    int64         `json:"userId"`
	Message   string        `json:"message"`
	Priority  core.Priority `json:"priority,omitempty"`
}

// handleDirectAgentMessage routes an explicit agent-to-agent message.
func (s *Server) handleDirectAgentMessage(w http.ResponseWriter, r *http.Request) {
	var req directMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.Message == "" {
		s.respondError(w, http.StatusBadRequest, "Message required")
		return
	}

	result, err := s.service.DirectMessage(r.Context(), req.FromAgent, req.ToAgent, req.UserID, req.Message, req.Priority)
	if err != nil {
		s.respondError(w, s.statusFor(err), err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}

// handleGetAgentCommunications lists one user's inter-agent exchanges.
func (s *Server) handleGetAgentCommunications(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(r.URL.Query().Get("userId"), 10, 64)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "userId query parameter required")
		return
	}

	comms, err := s.service.Communications(r.Context(), userID)
	if err != nil {
		s.respondError(w, s.statusFor(err), err.Error())
		return
	}
	if comms == nil {
		comms = []core.InterAgentMessage{}
	}
	s.respondJSON(w, http.StatusOK, comms)
}

// handleAgentStatuses reports the supervised runtime states.
func (s *Server) handleAgentStatuses(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]any{
		"gateway": s.supervisor.UsingGateway(),
		"agents":  s.supervisor.StatusAll(r.Context()),
	})
}

// handleStartAgents spawns the local runtimes and waits for them to come up.
func (s *Server) handleStartAgents(w http.ResponseWriter, r *http.Request) {
	if err := s.supervisor.StartAll(); err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := s.supervisor.WaitUntilReady(r.Context()); err != nil {
		s.respondError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, s.supervisor.StatusAll(r.Context()))
}

// handleStopAgents kills the local runtimes.
func (s *Server) handleStopAgents(w http.ResponseWriter, r *http.Request) {
	s.supervisor.StopAll()
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}

type agentSendRequest struct {
	Message string `json:"message"`
	Context string `json:"context,omitempty"`
}

// handleAgentSend relays one message to a supervised runtime.
func (s *Server) handleAgentSend(w http.ResponseWriter, r *http.Request) {
	agentID := core.AgentID(chi.URLParam(r, "agentID"))
	if !agentID.Valid() {
		s.respondError(w, http.StatusNotFound, "Unknown agent")
		return
	}

	var req agentSendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Message == "" {
		s.respondError(w, http.StatusBadRequest, "Message required")
		return
	}

	reply, err := s.supervisor.Send(r.Context(), string(agentID), req.Message, req.Context)
	if err != nil {
		s.respondError(w, http.StatusBadGateway, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"response": reply})
}

type facilitateRequest struct {
	FromAgent core.AgentID `json:"fromAgent"`
	ToAgent   core.AgentID `json:"toAgent"`
	Message   string       `json:"message"`
	Context   string       `json:"context,omitempty"`
}

// handleFacilitate relays a message between two supervised runtimes.
func (s *Server) handleFacilitate(w http.ResponseWriter, r *http.Request) {
	var req facilitateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if !req.FromAgent.Valid() || !req.ToAgent.Valid() || req.Message == "" {
		s.respondError(w, http.StatusBadRequest, "From, to, and message required")
		return
	}

	fromReply, toReply, err := s.supervisor.Facilitate(r.Context(), string(req.FromAgent), string(req.ToAgent), req.Message, req.Context)
	if err != nil {
		s.respondError(w, http.StatusBadGateway, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{
		"fromResponse": fromReply,
		"toResponse":   toReply,
	})
}

// handleAgentMemory exposes one agent's memory snapshot.
func (s *Server) handleAgentMemory(w http.ResponseWriter, r *http.Request) {
	agentID := core.AgentID(chi.URLParam(r, "agentID"))
	if !agentID.Valid() {
		s.respondError(w, http.StatusNotFound, "Unknown agent")
		return
	}
	s.respondJSON(w, http.StatusOK, s.coordinator.Memory(agentID))
}
