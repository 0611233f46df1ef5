package llm

import (
	"context"
	"fmt"

	"github.com/familyconnect/familyconnect/internal/core"
)

// TemplateBackend is the terminal pipeline stage: pure deterministic replies
// keyed by agent identity and, for inter-agent messages, by trigger type.
// It is always configured and may not fail.
type TemplateBackend struct{}

// NewTemplateBackend creates the terminal template stage.
func NewTemplateBackend() *TemplateBackend {
	return &TemplateBackend{}
}

func (t *TemplateBackend) Name() string { return "template" }

func (t *TemplateBackend) Configured() bool { return true }

var fallbackMessages = map[core.AgentID]string{
	core.AgentGrace: "I'm here for you, dear. How can I help you today?",
	core.AgentAlex:  "I'm analyzing the situation and will coordinate the best response.",
}

func (t *TemplateBackend) Respond(ctx context.Context, req ChatRequest) (*core.StructuredReply, error) {
	msg, ok := fallbackMessages[req.Persona.ID]
	if !ok {
		msg = "I'm here to help."
	}
	return normalizeReply(&core.StructuredReply{
		Message:          msg,
		EmotionalState:   core.EmotionalNeutral,
		SuggestedActions: []string{"continue_conversation"},
		MemoryTags:       []string{"fallback_response"},
	}), nil
}

// interAgentTemplates is keyed by direction, then trigger type. An
// unrecognized trigger type falls through to a generic string.
var interAgentTemplates = map[string]map[core.TriggerType]string{
	"grace_to_alex": {
		core.TriggerCareNeeded:   "Alex, I'm concerned about our family member. They mentioned %s. Could you help coordinate care?",
		core.TriggerUserConcern:  "Alex, I noticed some emotional distress during our conversation. Family support might be helpful.",
		core.TriggerFamilyUpdate: "Alex, there's been a family interaction you should know about. They're asking about family connections.",
		core.TriggerRoutineCheck: "Alex, just a routine update - everything seems well during our conversation.",
	},
	"alex_to_grace": {
		core.TriggerCareNeeded:   "Grace, I've set up care coordination. Please reassure them that family support is in place.",
		core.TriggerUserConcern:  "Grace, I've notified the family about the concern. Please provide extra emotional support.",
		core.TriggerFamilyUpdate: "Grace, I've updated the family coordination. You can share this update with them.",
		core.TriggerRoutineCheck: "Grace, thanks for the update. Continue providing wonderful support.",
	},
}

func (t *TemplateBackend) Communicate(ctx context.Context, req CommRequest) (*core.AgentCommunication, error) {
	direction := fmt.Sprintf("%s_to_%s", req.From.ID, req.To.ID)

	var msg string
	if byTrigger, ok := interAgentTemplates[direction]; ok {
		msg = byTrigger[req.Context.TriggerType]
	}
	if msg == "" {
		msg = fmt.Sprintf("Message from %s to %s regarding %s", req.From.ID, req.To.ID, req.Context.TriggerType)
	} else if req.Context.TriggerType == core.TriggerCareNeeded && req.From.ID == core.AgentGrace {
		msg = fmt.Sprintf(msg, quoteOrGeneric(req.Context.OriginalUserMessage))
	}

	return normalizeComm(&core.AgentCommunication{
		Message:          msg,
		Priority:         req.Context.Priority,
		SuggestedActions: []string{string(req.To.ID) + "_follow_up"},
		FollowUp: core.FollowUpPlan{
			Required:    true,
			Timeframe:   "1 hour",
			Checkpoints: []string{"Check user status"},
		},
	}, req.Context.Priority), nil
}

// ReplyToMessage is the deterministic receiving-side reply, keyed by agent
// and trigger type.
func (t *TemplateBackend) ReplyToMessage(receiving core.AgentID, trigger core.TriggerType) string {
	responses := map[core.AgentID]map[core.TriggerType]string{
		core.AgentGrace: {
			core.TriggerCareNeeded:   "I'll provide extra comfort and reassurance. Thank you for coordinating the care.",
			core.TriggerUserConcern:  "I'll be especially attentive to their emotional needs and provide support.",
			core.TriggerFamilyUpdate: "I'll share this positive update to help them feel more connected.",
			core.TriggerRoutineCheck: "Thank you for the coordination. I'll continue our caring conversations.",
		},
		core.AgentAlex: {
			core.TriggerCareNeeded:   "I've initiated care coordination and will notify the family immediately.",
			core.TriggerUserConcern:  "I'm reaching out to family members to provide additional support.",
			core.TriggerFamilyUpdate: "I've updated the family coordination system with this information.",
			core.TriggerRoutineCheck: "Noted. I'll continue monitoring the family coordination aspects.",
		},
	}

	if byTrigger, ok := responses[receiving]; ok {
		if msg, ok := byTrigger[trigger]; ok {
			return msg
		}
	}
	return fmt.Sprintf("Acknowledged by %s", receiving)
}

func quoteOrGeneric(s string) string {
	if s == "" {
		return "a care concern"
	}
	return fmt.Sprintf("%q", s)
}
