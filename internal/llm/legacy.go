package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/familyconnect/familyconnect/internal/core"
)

// LegacyBackend targets an older OpenAI-compatible runtime that may not
// honor structured output. It sends a persona-only prompt and decodes
// leniently: non-JSON content becomes the message with defaults filled in.
type LegacyBackend struct {
	client *Client
}

// NewLegacyBackend creates the legacy fallback stage.
func NewLegacyBackend(client *Client) *LegacyBackend {
	return &LegacyBackend{client: client}
}

func (l *LegacyBackend) Name() string { return "legacy" }

func (l *LegacyBackend) Configured() bool { return l.client.IsConfigured() }

func (l *LegacyBackend) Respond(ctx context.Context, req ChatRequest) (*core.StructuredReply, error) {
	system := req.Persona.SystemPrompt + `

Respond in JSON format:
{
  "message": "Your response",
  "emotionalState": "detected emotional state",
  "suggestedActions": ["action1"],
  "memoryTags": ["tag1"]
}`

	content, err := l.client.Chat(ctx, system, req.UserText, ChatOptions{
		Temperature: 0.7,
		MaxTokens:   600,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrBackendUnavailable, err)
	}

	return decodeLenientReply(content), nil
}

func (l *LegacyBackend) Communicate(ctx context.Context, req CommRequest) (*core.AgentCommunication, error) {
	trigger := req.Context.TriggerType
	if trigger == "" {
		trigger = "general"
	}
	system := fmt.Sprintf(`You coordinate two family care agents. Write a short professional message from %s to %s about: %q (trigger: %s).

Respond in JSON format:
{"message": "the message", "priority": "low|medium|high|urgent", "suggestedActions": []}`,
		req.From.Name, req.To.Name, req.Context.OriginalUserMessage, trigger)

	content, err := l.client.Chat(ctx, system, "Generate the inter-agent message", ChatOptions{
		Temperature: 0.7,
		MaxTokens:   400,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrBackendUnavailable, err)
	}

	var comm core.AgentCommunication
	if err := json.Unmarshal([]byte(stripFence(content)), &comm); err != nil || comm.Message == "" {
		comm = core.AgentCommunication{Message: strings.TrimSpace(content)}
	}
	if comm.Message == "" {
		return nil, fmt.Errorf("%w: empty communication", core.ErrBackendUnavailable)
	}
	return normalizeComm(&comm, req.Context.Priority), nil
}

// decodeLenientReply accepts either the structured JSON shape or bare text.
func decodeLenientReply(content string) *core.StructuredReply {
	var reply core.StructuredReply
	if err := json.Unmarshal([]byte(stripFence(content)), &reply); err == nil && reply.Message != "" {
		return normalizeReply(&reply)
	}
	return normalizeReply(&core.StructuredReply{
		Message:    strings.TrimSpace(content),
		MemoryTags: []string{"legacy_response"},
	})
}

// stripFence removes a markdown code fence some runtimes wrap JSON in.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
