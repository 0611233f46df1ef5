package llm

import (
	"context"

	"github.com/familyconnect/familyconnect/internal/core"
	"github.com/familyconnect/familyconnect/internal/memory"
)

// ChatRequest is the uniform input for a user-facing reply.
type ChatRequest struct {
	Persona  core.Persona
	UserText string
	Memory   memory.AgentMemory
	Family   *core.FamilySnapshot
}

// CommRequest is the uniform input for an inter-agent communication.
type CommRequest struct {
	From       core.Persona
	To         core.Persona
	Context    core.MessageContext
	FromMemory memory.AgentMemory
	ToMemory   memory.AgentMemory
	Family     *core.FamilySnapshot
}

// Backend is one stage of the response pipeline. All stages produce output
// conforming to core.StructuredReply / core.AgentCommunication so callers
// never branch on which stage answered.
//
// Configured distinguishes configuration-time selection (an unconfigured
// stage is skipped, the expected path in constrained deployments) from
// failure fallback (a configured stage that errors advances the chain).
type Backend interface {
	Name() string
	Configured() bool
	Respond(ctx context.Context, req ChatRequest) (*core.StructuredReply, error)
	Communicate(ctx context.Context, req CommRequest) (*core.AgentCommunication, error)
}

// DefaultReasoning is the reasoning constant shared by every stage for
// replies that carry no backend-produced trace.
func DefaultReasoning() core.Reasoning {
	return core.Reasoning{
		Situation: "User interaction requiring response",
		Analysis:  "Standard conversational response needed",
		Options: []core.ReasoningOption{
			{
				Action:      "Provide supportive response",
				Pros:        []string{"Maintains engagement", "Shows care"},
				Cons:        []string{"May not address specific needs"},
				Probability: 0.8,
			},
		},
		Decision:   "Provide supportive response",
		Reasoning:  "Best option for maintaining positive interaction",
		Confidence: 0.7,
	}
}

// normalizeReply fills missing optional fields so stage output is uniform.
func normalizeReply(r *core.StructuredReply) *core.StructuredReply {
	if r.EmotionalState == "" {
		r.EmotionalState = core.EmotionalNeutral
	}
	if r.Reasoning.Decision == "" {
		r.Reasoning = DefaultReasoning()
	}
	if r.SuggestedActions == nil {
		r.SuggestedActions = []string{}
	}
	if r.MemoryTags == nil {
		r.MemoryTags = []string{}
	}
	return r
}

// normalizeComm fills missing optional fields of a communication.
func normalizeComm(c *core.AgentCommunication, fallbackPriority core.Priority) *core.AgentCommunication {
	if c.Priority == "" {
		c.Priority = fallbackPriority
	}
	if c.Priority == "" {
		c.Priority = core.PriorityMedium
	}
	if c.Reasoning.Decision == "" {
		c.Reasoning = DefaultReasoning()
	}
	if c.SuggestedActions == nil {
		c.SuggestedActions = []string{}
	}
	if c.ActionPlan == nil {
		c.ActionPlan = []core.ActionStep{}
	}
	return c
}
