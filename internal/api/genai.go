package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/familyconnect/familyconnect/internal/core"
	"github.com/familyconnect/familyconnect/internal/llm"
)

// The gateway-compatible surface lets an external agent ecosystem talk to a
// persona as if it were a hosted model. Token counts are whitespace-split
// word counts, not true subword tokenization.

type completionRequest struct {
	Model       string            `json:"model,omitempty"`
	Messages    []llm.ChatMessage `json:"messages"`
	Temperature float64           `json:"temperature,omitempty"`
	MaxTokens   int               `json:"max_tokens,omitempty"`
}

func (s *Server) handleChatCompletion(w http.ResponseWriter, r *http.Request) {
	agentID := core.AgentID(chi.URLParam(r, "agentID"))
	if !agentID.Valid() {
		s.respondError(w, http.StatusNotFound, "Unknown agent")
		return
	}

	var req completionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	var userText string
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == "user" {
			userText = req.Messages[i].Content
			break
		}
	}
	if userText == "" {
		s.respondError(w, http.StatusBadRequest, "No user message provided")
		return
	}

	reply, err := s.coordinator.GenerateResponse(r.Context(), agentID, userText, nil)
	if err != nil {
		s.respondError(w, s.statusFor(err), err.Error())
		return
	}

	var promptWords int
	for _, m := range req.Messages {
		promptWords += len(strings.Fields(m.Content))
	}
	completionWords := len(strings.Fields(reply.Message))

	model := req.Model
	if model == "" {
		model = string(agentID)
	}

	s.respondJSON(w, http.StatusOK, llm.ChatCompletionResponse{
		ID:      "chatcmpl-" + uuid.New().String(),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   model,
		Choices: []llm.ChatChoice{
			{
				Index:        0,
				Message:      llm.ChatMessage{Role: "assistant", Content: reply.Message},
				FinishReason: "stop",
			},
		},
		Usage: llm.ChatUsage{
			PromptTokens:     promptWords,
			CompletionTokens: completionWords,
			TotalTokens:      promptWords + completionWords,
		},
	})
}

func (s *Server) handleListModels(w http.ResponseWriter, r *http.Request) {
	type model struct {
		ID      string `json:"id"`
		Object  string `json:"object"`
		OwnedBy string `json:"owned_by"`
	}
	s.respondJSON(w, http.StatusOK, map[string]any{
		"object": "list",
		"data": []model{
			{ID: string(core.AgentGrace), Object: "model", OwnedBy: "familyconnect"},
			{ID: string(core.AgentAlex), Object: "model", OwnedBy: "familyconnect"},
		},
	})
}
