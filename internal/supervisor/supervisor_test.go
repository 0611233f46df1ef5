package supervisor

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/familyconnect/familyconnect/internal/config"
	"github.com/familyconnect/familyconnect/internal/core"
)

func agentServer(t *testing.T, reply string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/agent/info", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"name": "test-agent"})
	})
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": reply}},
			},
		})
	})
	return httptest.NewServer(mux)
}

func newTestSupervisor(urls map[string]string) *Supervisor {
	var agents []config.AgentRuntime
	for id := range urls {
		agents = append(agents, config.AgentRuntime{AgentID: id, Port: 0})
	}
	s := New(agents, "http://localhost:1")
	s.urlFor = func(a config.AgentRuntime) string { return urls[a.AgentID] }
	s.attempts = 3
	s.interval = 10 * time.Millisecond
	return s
}

func TestWaitUntilReadyAllHealthy(t *testing.T) {
	grace := agentServer(t, "hello from grace")
	defer grace.Close()
	alex := agentServer(t, "hello from alex")
	defer alex.Close()

	s := newTestSupervisor(map[string]string{"grace": grace.URL, "alex": alex.URL})
	if err := s.WaitUntilReady(context.Background()); err != nil {
		t.Fatal(err)
	}
	for _, id := range []string{"grace", "alex"} {
		st, err := s.Status(context.Background(), id)
		if err != nil {
			t.Fatal(err)
		}
		if st.State != StateRunning {
			t.Errorf("%s state = %s, want running", id, st.State)
		}
	}
}

func TestWaitUntilReadyTimesOutOnOneSlowAgent(t *testing.T) {
	var graceProbes atomic.Int32
	countingGrace := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			graceProbes.Add(1)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer countingGrace.Close()

	// alex never responds.
	s := newTestSupervisor(map[string]string{
		"grace": countingGrace.URL,
		"alex":  "http://localhost:1",
	})

	err := s.WaitUntilReady(context.Background())
	if !errors.Is(err, core.ErrStartupTimeout) {
		t.Fatalf("err = %v, want ErrStartupTimeout", err)
	}
	// Full budget was spent; grace answered on the first round and was not
	// re-polled afterwards.
	if got := graceProbes.Load(); got != 1 {
		t.Errorf("grace probed %d times, want 1", got)
	}
	st, _ := s.Status(context.Background(), "grace")
	if st.State != StateRunning {
		t.Errorf("grace state = %s, want running despite overall timeout", st.State)
	}
}

func TestSendRequiresRunning(t *testing.T) {
	srv := agentServer(t, "ok")
	defer srv.Close()

	s := newTestSupervisor(map[string]string{"grace": srv.URL})

	_, err := s.Send(context.Background(), "grace", "hello", "")
	if !errors.Is(err, core.ErrAgentNotRunning) {
		t.Fatalf("err = %v, want ErrAgentNotRunning", err)
	}

	if err := s.WaitUntilReady(context.Background()); err != nil {
		t.Fatal(err)
	}
	reply, err := s.Send(context.Background(), "grace", "hello", "")
	if err != nil {
		t.Fatal(err)
	}
	if reply != "ok" {
		t.Errorf("reply = %q", reply)
	}
}

func TestSendUnknownAgent(t *testing.T) {
	s := newTestSupervisor(map[string]string{"grace": "http://localhost:1"})

	_, err := s.Send(context.Background(), "marvin", "hello", "")
	if !errors.Is(err, core.ErrAgentNotFound) {
		t.Fatalf("err = %v, want ErrAgentNotFound", err)
	}
}

func TestSendCommunicationError(t *testing.T) {
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer failing.Close()

	s := newTestSupervisor(map[string]string{"grace": failing.URL})
	if err := s.WaitUntilReady(context.Background()); err != nil {
		t.Fatal(err)
	}

	_, err := s.Send(context.Background(), "grace", "hello", "")
	if !errors.Is(err, core.ErrAgentCommunication) {
		t.Fatalf("err = %v, want ErrAgentCommunication", err)
	}
}

func TestGatewayModeBypassesLocalState(t *testing.T) {
	gateway := agentServer(t, "gateway reply")
	defer gateway.Close()

	s := newTestSupervisor(map[string]string{"grace": "http://localhost:1"})
	s.gatewayURL = gateway.URL

	if !s.ProbeGateway(context.Background()) {
		t.Fatal("gateway probe should succeed")
	}
	// grace was never started; gateway mode routes around it.
	reply, err := s.Send(context.Background(), "grace", "hello", "")
	if err != nil {
		t.Fatal(err)
	}
	if reply != "gateway reply" {
		t.Errorf("reply = %q", reply)
	}
}

func TestProbeGatewayUnreachable(t *testing.T) {
	s := newTestSupervisor(map[string]string{"grace": "http://localhost:1"})
	if s.ProbeGateway(context.Background()) {
		t.Fatal("probe against closed port should fail")
	}
	if s.UsingGateway() {
		t.Error("UsingGateway = true after failed probe")
	}
}

func TestFacilitateRelaysBothWays(t *testing.T) {
	grace := agentServer(t, "grace says hi")
	defer grace.Close()
	alex := agentServer(t, "alex acknowledges")
	defer alex.Close()

	s := newTestSupervisor(map[string]string{"grace": grace.URL, "alex": alex.URL})
	if err := s.WaitUntilReady(context.Background()); err != nil {
		t.Fatal(err)
	}

	fromReply, toReply, err := s.Facilitate(context.Background(), "grace", "alex", "start", "")
	if err != nil {
		t.Fatal(err)
	}
	if fromReply != "grace says hi" || toReply != "alex acknowledges" {
		t.Errorf("replies = %q, %q", fromReply, toReply)
	}
}

func TestSendWireShape(t *testing.T) {
	var got chatRequest
	capturing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": "ok"}},
			},
		})
	}))
	defer capturing.Close()

	s := newTestSupervisor(map[string]string{"grace": capturing.URL})
	if err := s.WaitUntilReady(context.Background()); err != nil {
		t.Fatal(err)
	}

	if _, err := s.Send(context.Background(), "grace", "how are you", "Margaret mentioned knee pain"); err != nil {
		t.Fatal(err)
	}
	if got.Model != "grace-agent" {
		t.Errorf("model = %q, want grace-agent", got.Model)
	}
	if len(got.Messages) != 2 ||
		got.Messages[0].Role != "system" || got.Messages[0].Content != "Margaret mentioned knee pain" ||
		got.Messages[1].Role != "user" || got.Messages[1].Content != "how are you" {
		t.Errorf("messages = %+v", got.Messages)
	}

	// Without a situation the system message is omitted.
	if _, err := s.Send(context.Background(), "grace", "hello", ""); err != nil {
		t.Fatal(err)
	}
	if len(got.Messages) != 1 || got.Messages[0].Role != "user" {
		t.Errorf("messages = %+v", got.Messages)
	}
}

func TestStopAllMarksStoppedImmediately(t *testing.T) {
	srv := agentServer(t, "ok")
	defer srv.Close()

	s := newTestSupervisor(map[string]string{"grace": srv.URL})
	if err := s.WaitUntilReady(context.Background()); err != nil {
		t.Fatal(err)
	}

	s.StopAll()
	st, _ := s.Status(context.Background(), "grace")
	if st.State != StateStopped {
		t.Errorf("state = %s, want stopped", st.State)
	}
	if _, err := s.Send(context.Background(), "grace", "hello", ""); !errors.Is(err, core.ErrAgentNotRunning) {
		t.Errorf("send after stop: err = %v, want ErrAgentNotRunning", err)
	}
}

// Spawns a real runtime so the async exit handler actually fires: the
// kill issued by StopAll makes Wait return an error, and that must not
// flip a stopped process to errored.
func TestStopAllStateSurvivesProcessExit(t *testing.T) {
	if _, err := exec.LookPath("python3"); err != nil {
		t.Skip("python3 not available")
	}

	script := filepath.Join(t.TempDir(), "agent.py")
	if err := os.WriteFile(script, []byte("import time\ntime.sleep(60)\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	s := New([]config.AgentRuntime{
		{AgentID: "grace", Port: 18801, Entrypoint: script},
	}, "http://localhost:1")
	if err := s.Start("grace"); err != nil {
		t.Fatal(err)
	}

	s.StopAll()

	// The exit handler runs shortly after the kill; the state must hold
	// stopped the whole way through.
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if st := s.procs["grace"].getState(); st != StateStopped {
			t.Fatalf("state after StopAll = %q, want %q", st, StateStopped)
		}
		time.Sleep(20 * time.Millisecond)
	}
}
