package interagent

import (
	"context"
	"fmt"

	"github.com/familyconnect/familyconnect/internal/agent"
	"github.com/familyconnect/familyconnect/internal/core"
	"github.com/familyconnect/familyconnect/internal/logging"
)

// ServiceStorage adds conversation persistence to the router's surface.
type ServiceStorage interface {
	Storage
	CreateConversation(ctx context.Context, conv core.Conversation) (*core.Conversation, error)
}

// UserMessageResult bundles everything one user message produced: the reply
// to the user plus, when a trigger fired, the cross-agent exchange.
type UserMessageResult struct {
	Reply          *core.StructuredReply      `json:"reply"`
	Conversation   *core.Conversation         `json:"conversation,omitempty"`
	Classification Classification             `json:"-"`
	AgentMessage   *core.InterAgentMessage    `json:"agentMessage,omitempty"`
	AgentResponse  *core.AgentResponseToAgent `json:"agentResponse,omitempty"`
}

// DirectMessageResult is the outcome of an explicit agent-to-agent message.
type DirectMessageResult struct {
	AgentMessage  *core.InterAgentMessage    `json:"agentMessage"`
	AgentResponse *core.AgentResponseToAgent `json:"agentResponse"`
}

// Service orchestrates the full user-message flow: reply generation,
// trigger classification, inter-agent routing, conversation persistence.
type Service struct {
	coordinator *agent.Coordinator
	router      *Router
	storage     ServiceStorage
	log         *logging.Logger
}

// NewService wires the orchestration flow together.
func NewService(coordinator *agent.Coordinator, router *Router, storage ServiceStorage) *Service {
	return &Service{
		coordinator: coordinator,
		router:      router,
		storage:     storage,
		log:         logging.Component("orchestrator"),
	}
}

// ProcessUserMessage runs the complete flow for one user message. The reply
// is always produced; a classification trigger additionally routes a
// message to the peer agent and collects its response.
func (s *Service) ProcessUserMessage(ctx context.Context, userID int64, agentID core.AgentID, text string) (*UserMessageResult, error) {
	if !agentID.Valid() {
		return nil, fmt.Errorf("%w: %s", core.ErrAgentNotFound, agentID)
	}
	user, err := s.storage.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	snapshot, err := s.snapshotFor(ctx, user)
	if err != nil {
		return nil, err
	}
	reply, err := s.coordinator.GenerateResponse(ctx, agentID, text, snapshot)
	if err != nil {
		return nil, err
	}

	conv, err := s.storage.CreateConversation(ctx, core.Conversation{
		UserID:         userID,
		AgentID:        agentID,
		Message:        text,
		Response:       reply.Message,
		EmotionalState: reply.EmotionalState,
	})
	if err != nil {
		return nil, fmt.Errorf("persist conversation: %w", err)
	}

	result := &UserMessageResult{Reply: reply, Conversation: conv}

	cls := Classify(agentID, text, reply.EmotionalState, reply.SuggestedActions)
	result.Classification = cls
	if !cls.Triggered {
		return result, nil
	}

	msgCtx := core.MessageContext{
		UserID:              userID,
		TriggerType:         cls.Type,
		Priority:            cls.Priority,
		OriginalUserMessage: text,
		EmotionalState:      reply.EmotionalState,
		SuggestedActions:    reply.SuggestedActions,
	}
	msg, err := s.router.SendAgentMessage(ctx, agentID, agentID.Peer(), msgCtx)
	if err != nil {
		s.log.Warn("inter-agent send failed: %v", err)
		return result, nil
	}
	result.AgentMessage = msg

	resp, err := s.router.ProcessAgentMessage(ctx, agentID.Peer(), *msg)
	if err != nil {
		s.log.Warn("inter-agent delivery failed: %v", err)
		return result, nil
	}
	result.AgentResponse = resp
	return result, nil
}

// DirectMessage routes an explicit agent-to-agent message, bypassing
// classification. Priority defaults to medium.
func (s *Service) DirectMessage(ctx context.Context, from, to core.AgentID, userID int64, text string, priority core.Priority) (*DirectMessageResult, error) {
	if !from.Valid() {
		return nil, fmt.Errorf("%w: %s", core.ErrAgentNotFound, from)
	}
	if !to.Valid() {
		return nil, fmt.Errorf("%w: %s", core.ErrAgentNotFound, to)
	}
	if priority == "" {
		priority = core.PriorityMedium
	}

	msgCtx := core.MessageContext{
		UserID:              userID,
		TriggerType:         core.TriggerDirectMessage,
		Priority:            priority,
		OriginalUserMessage: text,
	}
	msg, err := s.router.SendAgentMessage(ctx, from, to, msgCtx)
	if err != nil {
		return nil, err
	}
	resp, err := s.router.ProcessAgentMessage(ctx, to, *msg)
	if err != nil {
		return nil, err
	}
	return &DirectMessageResult{AgentMessage: msg, AgentResponse: resp}, nil
}

// Communications exposes the persisted exchanges for one user.
func (s *Service) Communications(ctx context.Context, userID int64) ([]core.InterAgentMessage, error) {
	return s.router.CommunicationsForUser(ctx, userID)
}

func (s *Service) snapshotFor(ctx context.Context, user *core.User) (*core.FamilySnapshot, error) {
	return s.router.buildSnapshot(ctx, user.ID)
}
