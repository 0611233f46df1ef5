// Package agent hosts the reasoning coordinator: the single owner of agent
// memory, driving the response pipeline for every user-facing reply and
// inter-agent communication.
package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/familyconnect/familyconnect/internal/core"
	"github.com/familyconnect/familyconnect/internal/llm"
	"github.com/familyconnect/familyconnect/internal/logging"
	"github.com/familyconnect/familyconnect/internal/memory"
)

// Coordinator generates replies for a persona and records every exchange in
// that persona's memory. Memory is written on every reply, including
// template fallbacks, so degraded service still accumulates context.
type Coordinator struct {
	pipeline *llm.Pipeline
	memory   *memory.Store
	log      *logging.Logger
}

// NewCoordinator wires the pipeline to the shared memory store.
func NewCoordinator(pipeline *llm.Pipeline, store *memory.Store) *Coordinator {
	return &Coordinator{
		pipeline: pipeline,
		memory:   store,
		log:      logging.Component("coordinator"),
	}
}

// GenerateResponse produces a structured reply from the given agent to a
// user message. The only error is an unknown agent identity.
func (c *Coordinator) GenerateResponse(ctx context.Context, agent core.AgentID, userText string, family *core.FamilySnapshot) (*core.StructuredReply, error) {
	persona, ok := core.PersonaFor(agent)
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrAgentNotFound, agent)
	}

	reply := c.pipeline.Respond(ctx, llm.ChatRequest{
		Persona:  persona,
		UserText: userText,
		Memory:   c.memory.Snapshot(agent),
		Family:   family,
	})

	c.memory.Record(agent, memory.Interaction{
		Text:             userText,
		Timestamp:        time.Now(),
		EmotionalContext: reply.EmotionalState,
		ActionsTaken:     reply.SuggestedActions,
	})
	for _, tag := range reply.MemoryTags {
		c.memory.ReinforcePattern(agent, tag, "medium")
	}

	return reply, nil
}

// GenerateCommunication produces an inter-agent message from one persona to
// the other. Both memories inform the exchange; the sender's records it.
func (c *Coordinator) GenerateCommunication(ctx context.Context, from, to core.AgentID, msgCtx core.MessageContext, family *core.FamilySnapshot) (*core.AgentCommunication, error) {
	fromPersona, ok := core.PersonaFor(from)
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrAgentNotFound, from)
	}
	toPersona, ok := core.PersonaFor(to)
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrAgentNotFound, to)
	}

	comm := c.pipeline.Communicate(ctx, llm.CommRequest{
		From:       fromPersona,
		To:         toPersona,
		Context:    msgCtx,
		FromMemory: c.memory.Snapshot(from),
		ToMemory:   c.memory.Snapshot(to),
		Family:     family,
	})

	c.memory.Record(from, memory.Interaction{
		Text:             fmt.Sprintf("Communicated with %s: %s", toPersona.Name, comm.Message),
		Timestamp:        time.Now(),
		EmotionalContext: "coordination",
		ActionsTaken:     comm.SuggestedActions,
	})

	return comm, nil
}

// ReplyToAgentMessage returns the deterministic acknowledgment the receiving
// agent gives for an incoming inter-agent message, and records the receipt.
// The family snapshot is the receiving side's rebuilt user context; its
// recent emotional state colors the memory entry when known.
func (c *Coordinator) ReplyToAgentMessage(receiving core.AgentID, msg core.InterAgentMessage, family *core.FamilySnapshot) (string, error) {
	if !receiving.Valid() {
		return "", fmt.Errorf("%w: %s", core.ErrAgentNotFound, receiving)
	}

	response := llm.NewTemplateBackend().ReplyToMessage(receiving, msg.Context.TriggerType)

	emotional := "coordination"
	if family != nil && family.RecentEmotionalState != "" {
		emotional = family.RecentEmotionalState
	}
	c.memory.Record(receiving, memory.Interaction{
		Text:             fmt.Sprintf("Received from %s: %s", msg.FromAgent, msg.Message),
		Timestamp:        time.Now(),
		EmotionalContext: emotional,
		ActionsTaken:     msg.Context.SuggestedActions,
	})
	if msg.Context.TriggerType == core.TriggerCareNeeded {
		c.memory.NoteCareNeed(receiving, memory.CareNeed{
			Type:      "reported_concern",
			Frequency: "as_needed",
			Priority:  string(msg.Context.Priority),
		})
	}

	return response, nil
}

// Memory exposes a read-only snapshot of one agent's memory.
func (c *Coordinator) Memory(agent core.AgentID) memory.AgentMemory {
	return c.memory.Snapshot(agent)
}
