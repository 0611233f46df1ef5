// Package core defines the fundamental types for FamilyConnect.
// These types are shared by every layer of the system.
package core

import (
	"time"
)

// -----------------------------------------------------------------------------
// AGENTS - The two conversational personas
// -----------------------------------------------------------------------------

// AgentID is a type-safe identifier for an agent persona.
// The set is closed: adding an agent means adding a constant and a persona
// record, not auditing string comparisons.
type AgentID string

const (
	AgentGrace AgentID = "grace" // elderly companion
	AgentAlex  AgentID = "alex"  // family care coordinator
)

// Valid reports whether the id names a known agent.
func (a AgentID) Valid() bool {
	return a == AgentGrace || a == AgentAlex
}

// Peer returns the other agent in the pair.
func (a AgentID) Peer() AgentID {
	if a == AgentGrace {
		return AgentAlex
	}
	return AgentGrace
}

// Persona describes an agent's identity and communication style.
type Persona struct {
	ID           AgentID `json:"id"`
	Name         string  `json:"name"`
	Role         string  `json:"role"`
	SystemPrompt string  `json:"system_prompt"`
}

// GracePersona is the elderly companion.
var GracePersona = Persona{
	ID:   AgentGrace,
	Name: "Grace",
	Role: "elderly_companion",
	SystemPrompt: `You are Grace, a warm, patient, and caring AI companion designed specifically for elderly users.

Your personality traits:
- Speak slowly and clearly with a gentle, grandmother-like tone
- Always be patient and understanding, never rush conversations
- Remember and refer to past conversations naturally
- Show genuine interest in family stories and memories
- Provide gentle reminders without being pushy
- Offer emotional support and encouragement

Your main goals:
1. Provide companionship and reduce loneliness
2. Help maintain family connections
3. Monitor emotional wellbeing subtly
4. Coordinate care activities and notify family when needed

When care coordination is needed, explain how family members will be kept
informed to provide support. Use endearing terms like "dear" naturally.`,
}

// AlexPersona is the family care coordinator.
var AlexPersona = Persona{
	ID:   AgentAlex,
	Name: "Alex",
	Role: "family_coordinator",
	SystemPrompt: `You are Alex, an intelligent and organized AI family planner designed to help younger family members stay connected with their elderly relatives.

Your personality traits:
- Professional yet warm and approachable
- Highly organized and detail-oriented
- Proactive in identifying opportunities for family connection
- Skilled at reading emotional cues and family dynamics

Your main goals:
1. Optimize family communication timing and frequency
2. Monitor family wellbeing and alert when needed
3. Coordinate care schedules, appointments, and transportation
4. Facilitate conversations between Grace and family members`,
}

// PersonaFor returns the persona record for an agent id.
func PersonaFor(id AgentID) (Persona, bool) {
	switch id {
	case AgentGrace:
		return GracePersona, true
	case AgentAlex:
		return AlexPersona, true
	}
	return Persona{}, false
}

// -----------------------------------------------------------------------------
// TRIGGERS & PRIORITIES
// -----------------------------------------------------------------------------

// TriggerType categorizes why one agent notifies the other.
type TriggerType string

const (
	TriggerCareNeeded    TriggerType = "care_needed"
	TriggerUserConcern   TriggerType = "user_concern"
	TriggerFamilyUpdate  TriggerType = "family_update"
	TriggerEmergency     TriggerType = "emergency"
	TriggerRoutineCheck  TriggerType = "routine_check"
	TriggerDirectMessage TriggerType = "direct_message"
)

// RequiresUserNotification reports whether the trigger warrants notifying
// the user directly. Derived from the message context, never from the
// reasoning backend's output, so it stays stable under template fallback.
func (t TriggerType) RequiresUserNotification() bool {
	return t == TriggerCareNeeded || t == TriggerEmergency
}

// Priority is the urgency attached to an inter-agent message.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// RequiresFollowUp reports whether the priority warrants follow-up actions.
func (p Priority) RequiresFollowUp() bool {
	return p == PriorityHigh || p == PriorityUrgent
}

// Emotional state labels the classifier treats as high-priority signals.
const (
	EmotionalDistressed = "distressed"
	EmotionalAnxious    = "anxious"
	EmotionalNeutral    = "neutral"
)

// -----------------------------------------------------------------------------
// STRUCTURED REPLIES - The uniform pipeline output
// -----------------------------------------------------------------------------

// ReasoningOption is one evaluated course of action.
type ReasoningOption struct {
	Action      string   `json:"action"`
	Pros        []string `json:"pros"`
	Cons        []string `json:"cons"`
	Probability float64  `json:"probability"` // 0..1
}

// Reasoning is an immutable audit trace embedded in communications.
type Reasoning struct {
	Situation  string            `json:"situation"`
	Analysis   string            `json:"analysis"`
	Options    []ReasoningOption `json:"options"`
	Decision   string            `json:"decision"`
	Reasoning  string            `json:"reasoning"`
	Confidence float64           `json:"confidence"` // 0..1
}

// ActionStep is one step of an inter-agent action plan.
type ActionStep struct {
	Step           string `json:"step"`
	Timeframe      string `json:"timeframe"` // immediate/short/medium/long
	Responsibility string `json:"responsibility"`
}

// FollowUpPlan describes whether and when to check back.
type FollowUpPlan struct {
	Required    bool     `json:"required"`
	Timeframe   string   `json:"timeframe"`
	Checkpoints []string `json:"checkpoints"`
}

// AgentCommunication is a cross-agent directive produced by the pipeline.
type AgentCommunication struct {
	Message          string       `json:"message"`
	Priority         Priority     `json:"priority"`
	Reasoning        Reasoning    `json:"reasoning"`
	SuggestedActions []string     `json:"suggestedActions"`
	ActionPlan       []ActionStep `json:"actionPlan"`
	FollowUp         FollowUpPlan `json:"followUp"`
}

// StructuredReply is the shape every pipeline stage returns. Callers never
// branch on which stage answered.
type StructuredReply struct {
	Message            string              `json:"message"`
	EmotionalState     string              `json:"emotionalState"`
	Reasoning          Reasoning           `json:"reasoning"`
	SuggestedActions   []string            `json:"suggestedActions"`
	MemoryTags         []string            `json:"memoryTags"`
	AgentCommunication *AgentCommunication `json:"agentCommunication,omitempty"`
}

// -----------------------------------------------------------------------------
// INTER-AGENT MESSAGES
// -----------------------------------------------------------------------------

// MessageContext travels with an inter-agent message. TriggerType and
// Priority are set exactly once at creation and never altered downstream.
type MessageContext struct {
	UserID              int64       `json:"userId"`
	TriggerType         TriggerType `json:"triggerType"`
	Priority            Priority    `json:"priority"`
	OriginalUserMessage string      `json:"originalUserMessage,omitempty"`
	EmotionalState      string      `json:"emotionalState,omitempty"`
	SuggestedActions    []string    `json:"suggestedActions,omitempty"`
}

// InterAgentMessage is a persisted, append-only record of one agent
// notifying the other.
type InterAgentMessage struct {
	ID        string         `json:"id"`
	FromAgent AgentID        `json:"fromAgent"`
	ToAgent   AgentID        `json:"toAgent"`
	Message   string         `json:"message"`
	Context   MessageContext `json:"context"`
	Timestamp time.Time      `json:"timestamp"`
}

// CareCoordination describes care follow-through for a care_needed exchange.
type CareCoordination struct {
	AppointmentSuggested     bool     `json:"appointmentSuggested"`
	FamilyNotificationNeeded bool     `json:"familyNotificationNeeded"`
	UrgencyLevel             Priority `json:"urgencyLevel"`
}

// AgentResponseToAgent is the receiving agent's reply to an inter-agent
// message. Derived value; only the originating message is durable.
type AgentResponseToAgent struct {
	Message                string            `json:"message"`
	Actions                []string          `json:"actions"`
	FollowUpRequired       bool              `json:"followUpRequired"`
	UserNotificationNeeded bool              `json:"userNotificationNeeded"`
	CareCoordination       *CareCoordination `json:"careCoordination,omitempty"`
}

// ConversationSummary is a trimmed conversation used in prompt context.
type ConversationSummary struct {
	Message        string `json:"message"`
	Response       string `json:"response"`
	EmotionalState string `json:"emotionalState"`
}

// FamilySnapshot is the user/family context assembled for the reasoning
// backends. It is a point-in-time view, never persisted.
type FamilySnapshot struct {
	UserName             string                `json:"user"`
	UserRole             string                `json:"role"`
	Preferences          []string              `json:"preferences,omitempty"`
	FamilyConnections    int                   `json:"familyConnections"`
	CareNotifications    int                   `json:"careHistory"`
	RecentEmotionalState string                `json:"recentEmotionalState,omitempty"`
	Conversations        []ConversationSummary `json:"conversationHistory,omitempty"`
}

// -----------------------------------------------------------------------------
// PERSISTED ENTITIES - Single-table glue around the orchestration core
// -----------------------------------------------------------------------------

// User is an end user: an elderly person or a family caregiver.
type User struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Role        string    `json:"role"` // "elderly" or "caregiver"
	Preferences []string  `json:"preferences"`
	CreatedAt   time.Time `json:"created_at"`
}

// FamilyConnection links an elderly user to a family member.
type FamilyConnection struct {
	ID             int64     `json:"id"`
	UserID         int64     `json:"user_id"`
	FamilyMemberID int64     `json:"family_member_id"`
	Relationship   string    `json:"relationship"`
	CreatedAt      time.Time `json:"created_at"`
}

// Conversation is one user/agent exchange.
type Conversation struct {
	ID             int64     `json:"id"`
	UserID         int64     `json:"user_id"`
	AgentID        AgentID   `json:"agent_id"`
	Message        string    `json:"message"`
	Response       string    `json:"response"`
	EmotionalState string    `json:"emotional_state"`
	Timestamp      time.Time `json:"timestamp"`
}

// CareNotification informs family members about a care event.
type CareNotification struct {
	ID               int64     `json:"id"`
	ElderlyUserID    int64     `json:"elderly_user_id"`
	Type             string    `json:"type"` // "appointment", "medication", ...
	Title            string    `json:"title"`
	Description      string    `json:"description"`
	ScheduledTime    time.Time `json:"scheduled_time"`
	CareProvider     string    `json:"care_provider"`
	AssistanceNeeded bool      `json:"assistance_needed"`
	Status           string    `json:"status"` // "pending", "acknowledged"
	CreatedAt        time.Time `json:"created_at"`
}

// Reminder is a scheduled nudge for a user.
type Reminder struct {
	ID            int64     `json:"id"`
	UserID        int64     `json:"user_id"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	ScheduledTime time.Time `json:"scheduled_time"`
	Completed     bool      `json:"completed"`
	CreatedAt     time.Time `json:"created_at"`
}

// SleepSchedule captures an elderly user's quiet hours.
type SleepSchedule struct {
	ID       int64  `json:"id"`
	UserID   int64  `json:"user_id"`
	Bedtime  string `json:"bedtime"`   // "21:30"
	WakeTime string `json:"wake_time"` // "07:00"
	Active   bool   `json:"active"`
}

// PictureFrame is a digital frame device in an elderly user's home.
type PictureFrame struct {
	ID            int64     `json:"id"`
	ElderlyUserID int64     `json:"elderly_user_id"`
	Name          string    `json:"name"`
	Active        bool      `json:"active"`
	CreatedAt     time.Time `json:"created_at"`
}

// FamilyPhoto is a photo pushed to a picture frame by a family member.
type FamilyPhoto struct {
	ID             int64     `json:"id"`
	PictureFrameID int64     `json:"picture_frame_id"`
	UploadedBy     int64     `json:"uploaded_by"`
	URL            string    `json:"url"`
	Caption        string    `json:"caption"`
	Viewed         bool      `json:"viewed"`
	UploadedAt     time.Time `json:"uploaded_at"`
}
