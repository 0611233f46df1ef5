package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/familyconnect/familyconnect/internal/core"
	"github.com/familyconnect/familyconnect/internal/memory"
)

// PrimaryBackend is the memory-aware structured-reasoning stage. It requests
// a JSON-shaped reply; any transport error, malformed JSON, or timeout fails
// the stage without retrying.
type PrimaryBackend struct {
	client *Client
}

// NewPrimaryBackend creates the primary reasoning stage.
func NewPrimaryBackend(client *Client) *PrimaryBackend {
	return &PrimaryBackend{client: client}
}

func (p *PrimaryBackend) Name() string { return "primary" }

func (p *PrimaryBackend) Configured() bool { return p.client.IsConfigured() }

func (p *PrimaryBackend) Respond(ctx context.Context, req ChatRequest) (*core.StructuredReply, error) {
	system := buildMemoryAwarePrompt(req.Persona, req.Memory, req.Family)

	content, err := p.client.Chat(ctx, system, req.UserText, ChatOptions{
		Temperature: 0.7,
		MaxTokens:   1000,
		JSONObject:  true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrBackendUnavailable, err)
	}

	var reply core.StructuredReply
	if err := json.Unmarshal([]byte(content), &reply); err != nil {
		return nil, fmt.Errorf("%w: malformed reply: %v", core.ErrBackendUnavailable, err)
	}
	if reply.Message == "" {
		return nil, fmt.Errorf("%w: reply missing message", core.ErrBackendUnavailable)
	}

	return normalizeReply(&reply), nil
}

func (p *PrimaryBackend) Communicate(ctx context.Context, req CommRequest) (*core.AgentCommunication, error) {
	system := buildCoordinationPrompt(req)

	content, err := p.client.Chat(ctx, system,
		"Generate intelligent inter-agent communication with full reasoning",
		ChatOptions{
			Temperature: 0.8,
			MaxTokens:   1200,
			JSONObject:  true,
		})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrBackendUnavailable, err)
	}

	var comm core.AgentCommunication
	if err := json.Unmarshal([]byte(content), &comm); err != nil {
		return nil, fmt.Errorf("%w: malformed communication: %v", core.ErrBackendUnavailable, err)
	}
	if comm.Message == "" {
		return nil, fmt.Errorf("%w: communication missing message", core.ErrBackendUnavailable)
	}

	return normalizeComm(&comm, req.Context.Priority), nil
}

func buildMemoryAwarePrompt(persona core.Persona, mem memory.AgentMemory, family *core.FamilySnapshot) string {
	recent := mem.ShortTerm
	if len(recent) > 5 {
		recent = recent[len(recent)-5:]
	}
	recentJSON, _ := json.Marshal(recent)
	relationshipsJSON, _ := json.Marshal(mem.FamilyContext.Relationships)
	careNeedsJSON, _ := json.Marshal(mem.FamilyContext.CareNeeds)

	var familyStr string
	if family != nil {
		b, _ := json.Marshal(family)
		familyStr = string(b)
	}

	var b strings.Builder
	b.WriteString(persona.SystemPrompt)
	b.WriteString(`

ADVANCED CAPABILITIES:
- Deep reasoning and analysis
- Pattern recognition from past interactions
- Emotional intelligence and empathy
- Strategic planning and coordination

MEMORY CONTEXT:
Recent interactions: ` + string(recentJSON) + `
Family relationships: ` + string(relationshipsJSON) + `
Care patterns: ` + string(careNeedsJSON))

	if familyStr != "" {
		b.WriteString("\nFamily context: " + familyStr)
	}

	b.WriteString(`

RESPONSE REQUIREMENTS:
Provide a comprehensive response in JSON format:
{
  "message": "Your thoughtful response message",
  "emotionalState": "detected emotional state",
  "reasoning": {
    "situation": "What you understand about the situation",
    "analysis": "Your analysis of needs and context",
    "options": [{"action": "option", "pros": [], "cons": [], "probability": 0.8}],
    "decision": "Your chosen response approach",
    "reasoning": "Why you chose this approach",
    "confidence": 0.9
  },
  "suggestedActions": ["action1", "action2"],
  "memoryTags": ["tag1", "tag2"],
  "agentCommunication": {
    "message": "Message to other agent if needed",
    "priority": "low|medium|high|urgent",
    "reasoning": {},
    "suggestedActions": [],
    "actionPlan": [],
    "followUp": {}
  }
}`)
	return b.String()
}

func buildCoordinationPrompt(req CommRequest) string {
	fromRecent := req.FromMemory.ShortTerm
	if len(fromRecent) > 3 {
		fromRecent = fromRecent[len(fromRecent)-3:]
	}
	fromRecentJSON, _ := json.Marshal(fromRecent)
	toCareNeedsJSON, _ := json.Marshal(req.ToMemory.FamilyContext.CareNeeds)

	var familyStr string
	if req.Family != nil {
		b, _ := json.Marshal(req.Family)
		familyStr = string(b)
	}

	trigger := req.Context.TriggerType
	if trigger == "" {
		trigger = "general"
	}

	return fmt.Sprintf(`You are an advanced AI agent coordination system facilitating intelligent communication between two specialized family care agents.

AGENT PROFILES:
FROM: %s (%s)
Core mission: %s

TO: %s (%s)
Core mission: %s

CURRENT SITUATION:
- User interaction: %q
- Emotional state: %s
- Trigger type: %s
- Family context: %s

AGENT MEMORY CONTEXT:
%s recent interactions: %s
%s capabilities: %s

Generate sophisticated inter-agent communication with full reasoning as JSON:
{
  "message": "Professional message from %s to %s",
  "priority": "low|medium|high|urgent",
  "reasoning": {
    "situation": "Clear description of current situation",
    "analysis": "Deep analysis of context and implications",
    "options": [{"action": "Option 1", "pros": [], "cons": [], "probability": 0.8}],
    "decision": "Chosen course of action",
    "reasoning": "Why this decision was made",
    "confidence": 0.9
  },
  "suggestedActions": ["specific_action_1"],
  "actionPlan": [{"step": "First action step", "timeframe": "immediate", "responsibility": "grace|alex|family|user"}],
  "followUp": {"required": true, "timeframe": "24 hours", "checkpoints": ["checkpoint1"]}
}`,
		req.From.Name, req.From.Role, truncate(req.From.SystemPrompt, 300),
		req.To.Name, req.To.Role, truncate(req.To.SystemPrompt, 300),
		req.Context.OriginalUserMessage,
		req.Context.EmotionalState,
		trigger,
		familyStr,
		req.From.Name, fromRecentJSON,
		req.To.Name, toCareNeedsJSON,
		req.From.Name, req.To.Name)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
