package interagent

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/familyconnect/familyconnect/internal/agent"
	"github.com/familyconnect/familyconnect/internal/core"
	"github.com/familyconnect/familyconnect/internal/logging"
)

// Storage is the persistence surface the router consumes. Implemented by
// the sqlite stores; tests substitute an in-memory fake.
type Storage interface {
	GetUser(ctx context.Context, id int64) (*core.User, error)
	GetFamilyConnections(ctx context.Context, userID int64) ([]core.FamilyConnection, error)
	GetConversations(ctx context.Context, userID int64, limit int) ([]core.Conversation, error)
	GetCareNotifications(ctx context.Context, userID int64) ([]core.CareNotification, error)
	CreateAgentCommunication(ctx context.Context, msg core.InterAgentMessage) error
	GetAgentCommunications(ctx context.Context) ([]core.InterAgentMessage, error)
}

// Router moves messages between the two personas: a send phase that
// generates and persists a communication, and a deliver phase that produces
// the receiving agent's response. The phases are independent calls; the
// normal caller sequences them and broadcasts both results.
type Router struct {
	coordinator *agent.Coordinator
	storage     Storage
	log         *logging.Logger
}

// NewRouter wires the reasoning coordinator to persistence.
func NewRouter(coordinator *agent.Coordinator, storage Storage) *Router {
	return &Router{
		coordinator: coordinator,
		storage:     storage,
		log:         logging.Component("interagent"),
	}
}

// SendAgentMessage generates a communication from one agent to the other,
// persists it, and returns the record. The context snapshot fed to the
// reasoning backends is rebuilt from persistence on every call.
func (r *Router) SendAgentMessage(ctx context.Context, from, to core.AgentID, msgCtx core.MessageContext) (*core.InterAgentMessage, error) {
	snapshot, err := r.buildSnapshot(ctx, msgCtx.UserID)
	if err != nil {
		return nil, err
	}

	comm, err := r.coordinator.GenerateCommunication(ctx, from, to, msgCtx, snapshot)
	if err != nil {
		return nil, err
	}
	if msgCtx.Priority == "" {
		msgCtx.Priority = comm.Priority
	}

	msg := core.InterAgentMessage{
		ID:        uuid.New().String(),
		FromAgent: from,
		ToAgent:   to,
		Message:   comm.Message,
		Context:   msgCtx,
		Timestamp: time.Now(),
	}
	if err := r.storage.CreateAgentCommunication(ctx, msg); err != nil {
		return nil, fmt.Errorf("persist agent communication: %w", err)
	}

	r.log.Info("%s -> %s [%s/%s]: %s", from, to, msgCtx.TriggerType, msgCtx.Priority, comm.Message)
	return &msg, nil
}

// ProcessAgentMessage produces the receiving agent's response to a message.
// The user context is rebuilt from persistence just as in the send phase.
// The follow-up and notification flags are derived from the message context
// alone so they hold even when the reply came from a template.
func (r *Router) ProcessAgentMessage(ctx context.Context, receiving core.AgentID, msg core.InterAgentMessage) (*core.AgentResponseToAgent, error) {
	snapshot, err := r.buildSnapshot(ctx, msg.Context.UserID)
	if err != nil {
		return nil, err
	}

	reply, err := r.coordinator.ReplyToAgentMessage(receiving, msg, snapshot)
	if err != nil {
		return nil, err
	}

	resp := &core.AgentResponseToAgent{
		Message:                reply,
		Actions:                actionsFor(receiving, msg.Context.TriggerType),
		FollowUpRequired:       msg.Context.Priority.RequiresFollowUp(),
		UserNotificationNeeded: msg.Context.TriggerType.RequiresUserNotification(),
	}
	if msg.Context.TriggerType == core.TriggerCareNeeded {
		resp.CareCoordination = &core.CareCoordination{
			AppointmentSuggested:     true,
			FamilyNotificationNeeded: true,
			UrgencyLevel:             msg.Context.Priority,
		}
	}
	return resp, nil
}

// CommunicationsForUser returns the persisted exchanges whose context names
// the given user, newest last. Filtering happens here, not in storage.
func (r *Router) CommunicationsForUser(ctx context.Context, userID int64) ([]core.InterAgentMessage, error) {
	all, err := r.storage.GetAgentCommunications(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]core.InterAgentMessage, 0, len(all))
	for _, m := range all {
		if m.Context.UserID == userID {
			out = append(out, m)
		}
	}
	return out, nil
}

// buildSnapshot assembles the point-in-time family context for reasoning.
func (r *Router) buildSnapshot(ctx context.Context, userID int64) (*core.FamilySnapshot, error) {
	user, err := r.storage.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	connections, err := r.storage.GetFamilyConnections(ctx, userID)
	if err != nil {
		return nil, err
	}
	conversations, err := r.storage.GetConversations(ctx, userID, 3)
	if err != nil {
		return nil, err
	}
	care, err := r.storage.GetCareNotifications(ctx, userID)
	if err != nil {
		return nil, err
	}

	snap := &core.FamilySnapshot{
		UserName:          user.Name,
		UserRole:          user.Role,
		Preferences:       user.Preferences,
		FamilyConnections: len(connections),
		CareNotifications: len(care),
	}
	for _, c := range conversations {
		snap.Conversations = append(snap.Conversations, core.ConversationSummary{
			Message:        c.Message,
			Response:       c.Response,
			EmotionalState: c.EmotionalState,
		})
	}
	if n := len(conversations); n > 0 {
		snap.RecentEmotionalState = conversations[n-1].EmotionalState
	}
	return snap, nil
}

// actionsFor lists the receiving agent's follow-through actions per trigger.
func actionsFor(receiving core.AgentID, trigger core.TriggerType) []string {
	switch {
	case receiving == core.AgentAlex && trigger == core.TriggerCareNeeded:
		return []string{"notify_family", "schedule_care_coordination"}
	case receiving == core.AgentAlex && trigger == core.TriggerUserConcern:
		return []string{"notify_family"}
	case receiving == core.AgentGrace && trigger == core.TriggerCareNeeded:
		return []string{"provide_reassurance"}
	case receiving == core.AgentGrace && trigger == core.TriggerFamilyUpdate:
		return []string{"share_family_update"}
	default:
		return []string{"acknowledge"}
	}
}
