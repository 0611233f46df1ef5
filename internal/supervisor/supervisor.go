// Package supervisor manages locally-hosted agent runtime processes: spawn,
// readiness polling, message delivery, and shutdown. It is only engaged when
// no managed reasoning gateway answers the start-up probe.
package supervisor

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/familyconnect/familyconnect/internal/config"
	"github.com/familyconnect/familyconnect/internal/core"
	"github.com/familyconnect/familyconnect/internal/logging"
)

// State of one supervised runtime.
type State string

const (
	StateStopped  State = "stopped"
	StateStarting State = "starting"
	StateRunning  State = "running"
	StateError    State = "error"
)

const (
	healthTimeout = 5 * time.Second
	chatTimeout   = 30 * time.Second

	// Readiness budget: pollAttempts rounds at pollInterval each.
	pollAttempts = 30
	pollInterval = 1 * time.Second
)

type process struct {
	mu    sync.Mutex
	cfg   config.AgentRuntime
	state State
	cmd   *exec.Cmd
}

func (p *process) setState(s State) {
	p.mu.Lock()
	defer p.mu.Unlock()
	// Stopped is terminal. The exit handler observes a kill as a Wait
	// error and must not resurrect a deliberately stopped process as
	// errored. Restarts go through Start, which holds the mutex directly.
	if p.state == StateStopped {
		return
	}
	p.state = s
}

func (p *process) getState() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Supervisor tracks zero or more local agent runtimes. The gateway decision
// is made once at start-up and holds for the supervisor's lifetime.
type Supervisor struct {
	mu         sync.Mutex
	procs      map[string]*process
	gatewayURL string
	useGateway bool

	// urlFor resolves an agent runtime's base URL; replaced in tests.
	urlFor func(config.AgentRuntime) string

	attempts int
	interval time.Duration

	healthClient *http.Client
	chatClient   *http.Client
	log          *logging.Logger
}

// New creates a supervisor for the configured runtimes.
func New(agents []config.AgentRuntime, gatewayURL string) *Supervisor {
	procs := make(map[string]*process, len(agents))
	for _, a := range agents {
		procs[a.AgentID] = &process{cfg: a, state: StateStopped}
	}
	return &Supervisor{
		procs:        procs,
		gatewayURL:   gatewayURL,
		urlFor:       func(a config.AgentRuntime) string { return fmt.Sprintf("http://localhost:%d", a.Port) },
		attempts:     pollAttempts,
		interval:     pollInterval,
		healthClient: &http.Client{Timeout: healthTimeout},
		chatClient:   &http.Client{Timeout: chatTimeout},
		log:          logging.Component("supervisor"),
	}
}

// ProbeGateway checks the managed gateway once. If it answers, every Send
// for the rest of this supervisor's lifetime is routed to it and no local
// process is consulted. The probe is never repeated.
func (s *Supervisor) ProbeGateway(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, "GET", s.gatewayURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := s.healthClient.Do(req)
	if err != nil {
		s.log.Info("gateway not reachable at %s, using local agent runtimes", s.gatewayURL)
		return false
	}
	resp.Body.Close()

	s.mu.Lock()
	s.useGateway = resp.StatusCode == http.StatusOK
	s.mu.Unlock()
	if s.useGateway {
		s.log.Info("managed gateway detected at %s", s.gatewayURL)
	}
	return s.useGateway
}

// UsingGateway reports the start-up routing decision.
func (s *Supervisor) UsingGateway() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.useGateway
}

// Start spawns one agent runtime. No-op when already running or starting.
func (s *Supervisor) Start(agentID string) error {
	p, ok := s.procs[agentID]
	if !ok {
		return fmt.Errorf("%w: %s", core.ErrAgentNotFound, agentID)
	}

	p.mu.Lock()
	if p.state == StateRunning || p.state == StateStarting {
		p.mu.Unlock()
		return nil
	}

	cmd := exec.Command("python3", p.cfg.Entrypoint)
	cmd.Env = append(os.Environ(), fmt.Sprintf("PORT=%d", p.cfg.Port))
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		p.mu.Unlock()
		return fmt.Errorf("start %s: %w", agentID, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		p.mu.Unlock()
		return fmt.Errorf("start %s: %w", agentID, err)
	}

	if err := cmd.Start(); err != nil {
		p.state = StateError
		p.mu.Unlock()
		return fmt.Errorf("start %s: %w", agentID, err)
	}
	p.cmd = cmd
	p.state = StateStarting
	p.mu.Unlock()

	s.log.Info("started %s (pid %d, port %d)", agentID, cmd.Process.Pid, p.cfg.Port)

	go s.captureOutput(agentID, stdout)
	go s.captureOutput(agentID, stderr)
	go func() {
		err := cmd.Wait()
		if err != nil {
			s.log.Warn("%s exited: %v", agentID, err)
			p.setState(StateError)
			return
		}
		p.setState(StateStopped)
	}()

	return nil
}

// StartAll spawns every configured runtime. First error wins; already
// started runtimes keep running.
func (s *Supervisor) StartAll() error {
	for id := range s.procs {
		if err := s.Start(id); err != nil {
			return err
		}
	}
	return nil
}

func (s *Supervisor) captureOutput(agentID string, r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		s.log.Debug("[%s] %s", agentID, scanner.Text())
	}
}

// WaitUntilReady polls every runtime's health endpoint at fixed intervals.
// Each round polls all agents so one slow agent does not starve another's
// readiness check. Fails with StartupTimeout once the attempt budget is
// exhausted with any agent still unresponsive.
func (s *Supervisor) WaitUntilReady(ctx context.Context) error {
	ready := make(map[string]bool, len(s.procs))

	for attempt := 0; attempt < s.attempts; attempt++ {
		for id, p := range s.procs {
			if ready[id] {
				continue
			}
			if s.healthy(ctx, p) {
				ready[id] = true
				p.setState(StateRunning)
				s.log.Info("%s is ready", id)
			}
		}
		if len(ready) == len(s.procs) {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.interval):
		}
	}

	for id := range s.procs {
		if !ready[id] {
			return fmt.Errorf("%w: %s not ready after %d attempts", core.ErrStartupTimeout, id, s.attempts)
		}
	}
	return nil
}

func (s *Supervisor) healthy(ctx context.Context, p *process) bool {
	req, err := http.NewRequestWithContext(ctx, "GET", s.urlFor(p.cfg)+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := s.healthClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

type chatRequest struct {
	Model    string        `json:"model,omitempty"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Send delivers a message to one agent runtime and returns its reply text.
// A non-empty situation is prepended as a system message so the runtime
// sees the coordination context. Requires the runtime to be running (or
// gateway mode). Never retries; the caller decides between retry and
// template fallback.
func (s *Supervisor) Send(ctx context.Context, agentID, message, situation string) (string, error) {
	var url string
	if s.UsingGateway() {
		url = s.gatewayURL + "/v1/chat/completions"
	} else {
		p, ok := s.procs[agentID]
		if !ok {
			return "", fmt.Errorf("%w: %s", core.ErrAgentNotFound, agentID)
		}
		if p.getState() != StateRunning {
			return "", fmt.Errorf("%w: %s is %s", core.ErrAgentNotRunning, agentID, p.getState())
		}
		url = s.urlFor(p.cfg) + "/v1/chat/completions"
	}

	messages := make([]chatMessage, 0, 2)
	if situation != "" {
		messages = append(messages, chatMessage{Role: "system", Content: situation})
	}
	messages = append(messages, chatMessage{Role: "user", Content: message})

	body, err := json.Marshal(chatRequest{
		Model:    agentID + "-agent",
		Messages: messages,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.chatClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", core.ErrAgentCommunication, agentID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: %s returned status %d", core.ErrAgentCommunication, agentID, resp.StatusCode)
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("%w: %s: %v", core.ErrAgentCommunication, agentID, err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("%w: %s returned no choices", core.ErrAgentCommunication, agentID)
	}
	return parsed.Choices[0].Message.Content, nil
}

// AgentStatus is the runtime's self-reported identity plus supervisor state.
type AgentStatus struct {
	AgentID string          `json:"agentId"`
	State   State           `json:"state"`
	Port    int             `json:"port"`
	Info    json.RawMessage `json:"info,omitempty"`
}

// Status reports one runtime's state, including its /agent/info payload
// when reachable.
func (s *Supervisor) Status(ctx context.Context, agentID string) (*AgentStatus, error) {
	p, ok := s.procs[agentID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrAgentNotFound, agentID)
	}

	status := &AgentStatus{
		AgentID: agentID,
		State:   p.getState(),
		Port:    p.cfg.Port,
	}

	req, err := http.NewRequestWithContext(ctx, "GET", s.urlFor(p.cfg)+"/agent/info", nil)
	if err != nil {
		return status, nil
	}
	resp, err := s.healthClient.Do(req)
	if err != nil {
		return status, nil
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusOK {
		status.Info, _ = io.ReadAll(resp.Body)
	}
	return status, nil
}

// StatusAll reports every runtime.
func (s *Supervisor) StatusAll(ctx context.Context) []*AgentStatus {
	out := make([]*AgentStatus, 0, len(s.procs))
	for id := range s.procs {
		st, err := s.Status(ctx, id)
		if err != nil {
			continue
		}
		out = append(out, st)
	}
	return out
}

// Facilitate relays a message through one agent and forwards its reply to
// the other, returning both replies. The situation travels with both legs.
func (s *Supervisor) Facilitate(ctx context.Context, from, to, message, situation string) (fromReply, toReply string, err error) {
	fromReply, err = s.Send(ctx, from, message, situation)
	if err != nil {
		return "", "", err
	}
	toReply, err = s.Send(ctx, to, fromReply, situation)
	if err != nil {
		return fromReply, "", err
	}
	return fromReply, toReply, nil
}

// StopAll signals every tracked process and marks it stopped immediately.
// Best effort: exit confirmation is handled by the async exit handler.
func (s *Supervisor) StopAll() {
	for id, p := range s.procs {
		p.mu.Lock()
		if p.cmd != nil && p.cmd.Process != nil && p.state != StateStopped {
			if err := p.cmd.Process.Kill(); err != nil {
				s.log.Warn("stopping %s: %v", id, err)
			}
		}
		p.state = StateStopped
		p.mu.Unlock()
	}
	s.log.Info("all agent runtimes stopped")
}
