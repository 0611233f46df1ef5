package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/familyconnect/familyconnect/internal/core"
)

type fakeBackend struct {
	name       string
	configured bool
	err        error
	calls      int
}

func (f *fakeBackend) Name() string     { return f.name }
func (f *fakeBackend) Configured() bool { return f.configured }

func (f *fakeBackend) Respond(ctx context.Context, req ChatRequest) (*core.StructuredReply, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return normalizeReply(&core.StructuredReply{Message: "from " + f.name}), nil
}

func (f *fakeBackend) Communicate(ctx context.Context, req CommRequest) (*core.AgentCommunication, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return normalizeComm(&core.AgentCommunication{Message: "comm from " + f.name}, req.Context.Priority), nil
}

func TestPipelineSkipsUnconfiguredStages(t *testing.T) {
	primary := &fakeBackend{name: "primary", configured: false}
	legacy := &fakeBackend{name: "legacy", configured: true}
	p := NewPipelineWith(primary, legacy, NewTemplateBackend())

	reply := p.Respond(context.Background(), ChatRequest{Persona: core.GracePersona, UserText: "hello"})
	if reply.Message != "from legacy" {
		t.Fatalf("expected legacy to answer, got %q", reply.Message)
	}
	if primary.calls != 0 {
		t.Errorf("unconfigured primary was called %d times", primary.calls)
	}
}

func TestPipelineAdvancesOnFailure(t *testing.T) {
	primary := &fakeBackend{name: "primary", configured: true, err: errors.New("timeout")}
	legacy := &fakeBackend{name: "legacy", configured: true}
	p := NewPipelineWith(primary, legacy, NewTemplateBackend())

	reply := p.Respond(context.Background(), ChatRequest{Persona: core.GracePersona, UserText: "hello"})
	if reply.Message != "from legacy" {
		t.Fatalf("expected fallback to legacy, got %q", reply.Message)
	}
	if primary.calls != 1 {
		t.Errorf("primary called %d times, want exactly 1 (no retry)", primary.calls)
	}
}

func TestPipelineAlwaysAnswers(t *testing.T) {
	primary := &fakeBackend{name: "primary", configured: true, err: errors.New("down")}
	legacy := &fakeBackend{name: "legacy", configured: true, err: errors.New("also down")}
	p := NewPipelineWith(primary, legacy, NewTemplateBackend())

	for _, persona := range []core.Persona{core.GracePersona, core.AlexPersona} {
		reply := p.Respond(context.Background(), ChatRequest{Persona: persona, UserText: "anything"})
		if reply.Message == "" {
			t.Fatalf("pipeline returned empty message for %s", persona.ID)
		}
		if reply.Reasoning.Decision == "" {
			t.Errorf("reply for %s missing reasoning", persona.ID)
		}
		if reply.SuggestedActions == nil || reply.MemoryTags == nil {
			t.Errorf("reply for %s has nil slices", persona.ID)
		}
	}
}

func TestPipelineTemplateMessages(t *testing.T) {
	p := NewPipelineWith(NewTemplateBackend())

	tests := []struct {
		persona core.Persona
		want    string
	}{
		{core.GracePersona, "I'm here for you, dear. How can I help you today?"},
		{core.AlexPersona, "I'm analyzing the situation and will coordinate the best response."},
	}
	for _, tt := range tests {
		reply := p.Respond(context.Background(), ChatRequest{Persona: tt.persona, UserText: "x"})
		if reply.Message != tt.want {
			t.Errorf("%s template = %q, want %q", tt.persona.ID, reply.Message, tt.want)
		}
	}
}

func TestPipelineCommunicateTotal(t *testing.T) {
	p := NewPipelineWith(
		&fakeBackend{name: "primary", configured: true, err: errors.New("down")},
		NewTemplateBackend(),
	)

	comm := p.Communicate(context.Background(), CommRequest{
		From: core.GracePersona,
		To:   core.AlexPersona,
		Context: core.MessageContext{
			TriggerType: core.TriggerUserConcern,
			Priority:    core.PriorityMedium,
		},
	})
	if comm.Message == "" {
		t.Fatal("communicate returned empty message")
	}
	if comm.Priority != core.PriorityMedium {
		t.Errorf("priority = %q, want medium", comm.Priority)
	}
	if !comm.FollowUp.Required {
		t.Error("template communication should require follow-up")
	}
}
