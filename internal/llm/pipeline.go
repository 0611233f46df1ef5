package llm

import (
	"context"

	"github.com/familyconnect/familyconnect/internal/config"
	"github.com/familyconnect/familyconnect/internal/core"
	"github.com/familyconnect/familyconnect/internal/logging"
)

// Pipeline runs backends in fixed order until one answers. Unconfigured
// stages are skipped silently; a failing stage advances to the next with a
// warning. The last stage is the template backend, which always answers, so
// both Respond and Communicate are total.
type Pipeline struct {
	backends []Backend
	log      *logging.Logger
}

// NewPipeline assembles primary -> legacy -> template from config.
func NewPipeline(cfg *config.Config) *Pipeline {
	primary := NewClient(ClientConfig{
		APIKey:  cfg.OpenAI.APIKey,
		BaseURL: cfg.OpenAI.BaseURL,
		Model:   cfg.OpenAI.Model,
	})
	legacy := NewClient(ClientConfig{
		APIKey:         cfg.Legacy.APIKey,
		BaseURL:        cfg.Legacy.BaseURL,
		Model:          cfg.Legacy.Model,
		AllowAnonymous: cfg.Legacy.BaseURL != "" && cfg.Legacy.BaseURL != config.Default().Legacy.BaseURL,
	})
	return NewPipelineWith(
		NewPrimaryBackend(primary),
		NewLegacyBackend(legacy),
		NewTemplateBackend(),
	)
}

// NewPipelineWith builds a pipeline from explicit stages, in order.
func NewPipelineWith(backends ...Backend) *Pipeline {
	return &Pipeline{
		backends: backends,
		log:      logging.Component("pipeline"),
	}
}

// Respond produces a structured reply for a user message. It never returns
// an error as long as the terminal template stage is present.
func (p *Pipeline) Respond(ctx context.Context, req ChatRequest) *core.StructuredReply {
	for _, b := range p.backends {
		if !b.Configured() {
			p.log.Debug("skipping unconfigured backend %s", b.Name())
			continue
		}
		reply, err := b.Respond(ctx, req)
		if err != nil {
			p.log.Warn("backend %s failed, falling back: %v", b.Name(), err)
			continue
		}
		if b.Name() != "template" {
			p.log.Debug("backend %s answered for %s", b.Name(), req.Persona.ID)
		}
		return reply
	}
	// Unreachable with a template stage; kept so custom pipelines degrade.
	p.log.Error("all backends exhausted for %s", req.Persona.ID)
	reply := &core.StructuredReply{Message: "I'm having trouble responding right now."}
	return normalizeReply(reply)
}

// Communicate produces an inter-agent communication. Total for the same
// reason Respond is.
func (p *Pipeline) Communicate(ctx context.Context, req CommRequest) *core.AgentCommunication {
	for _, b := range p.backends {
		if !b.Configured() {
			p.log.Debug("skipping unconfigured backend %s", b.Name())
			continue
		}
		comm, err := b.Communicate(ctx, req)
		if err != nil {
			p.log.Warn("backend %s failed, falling back: %v", b.Name(), err)
			continue
		}
		return comm
	}
	p.log.Error("all backends exhausted for %s -> %s", req.From.ID, req.To.ID)
	comm := &core.AgentCommunication{
		Message: "Coordination message could not be generated.",
	}
	return normalizeComm(comm, req.Context.Priority)
}
