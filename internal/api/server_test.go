package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/familyconnect/familyconnect/internal/agent"
	"github.com/familyconnect/familyconnect/internal/core"
	"github.com/familyconnect/familyconnect/internal/hub"
	"github.com/familyconnect/familyconnect/internal/interagent"
	"github.com/familyconnect/familyconnect/internal/llm"
	"github.com/familyconnect/familyconnect/internal/memory"
	"github.com/familyconnect/familyconnect/internal/storage"
	"github.com/familyconnect/familyconnect/internal/supervisor"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()

	db, err := storage.Open(storage.Config{InMemory: true})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	stores := storage.NewStores(db)

	pipeline := llm.NewPipelineWith(llm.NewTemplateBackend())
	coordinator := agent.NewCoordinator(pipeline, memory.NewStore())
	router := interagent.NewRouter(coordinator, stores)
	service := interagent.NewService(coordinator, router, stores)

	s := New(Config{
		Host:        "localhost",
		Port:        0,
		Service:     service,
		Coordinator: coordinator,
		Stores:      stores,
		Hub:         hub.New(service),
		Supervisor:  supervisor.New(nil, "http://localhost:1"),
	})
	srv := httptest.NewServer(s.Router())
	t.Cleanup(srv.Close)
	return s, srv
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	b, _ := json.Marshal(body)
	resp, err := http.Post(url, "application/json", bytes.NewReader(b))
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatal(err)
	}
}

func createTestUser(t *testing.T, baseURL, name, email string) *core.User {
	t.Helper()
	resp := postJSON(t, baseURL+"/api/users", map[string]string{
		"name": name, "email": email, "role": "elderly",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create user status = %d", resp.StatusCode)
	}
	var user core.User
	decodeBody(t, resp, &user)
	return &user
}

func TestHealth(t *testing.T) {
	_, srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	var body map[string]any
	decodeBody(t, resp, &body)
	if body["status"] != "ok" {
		t.Errorf("status = %v", body["status"])
	}
}

func TestUserLifecycle(t *testing.T) {
	_, srv := newTestServer(t)

	user := createTestUser(t, srv.URL, "Margaret", "m@example.com")
	if user.ID == 0 {
		t.Fatal("no id assigned")
	}

	resp, err := http.Get(fmt.Sprintf("%s/api/users/%d", srv.URL, user.ID))
	if err != nil {
		t.Fatal(err)
	}
	var got core.User
	decodeBody(t, resp, &got)
	if got.Name != "Margaret" {
		t.Errorf("name = %q", got.Name)
	}

	resp, _ = http.Get(srv.URL + "/api/users/999")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("missing user status = %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestChatFlowWithCareTrigger(t *testing.T) {
	_, srv := newTestServer(t)
	user := createTestUser(t, srv.URL, "Margaret", "m@example.com")

	resp := postJSON(t, srv.URL+"/api/chat", map[string]any{
		"userId":  user.ID,
		"agentId": "grace",
		"message": "I have a doctor's appointment tomorrow and feel scared",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("chat status = %d", resp.StatusCode)
	}
	var result interagent.UserMessageResult
	decodeBody(t, resp, &result)

	if result.Reply == nil || result.Reply.Message == "" {
		t.Fatal("no reply")
	}
	if result.AgentMessage == nil {
		t.Fatal("care trigger did not route to alex")
	}
	if result.AgentResponse == nil || !result.AgentResponse.UserNotificationNeeded {
		t.Error("care response missing notification flag")
	}

	// The exchange is visible in the communications log.
	commResp, err := http.Get(fmt.Sprintf("%s/api/agent-communications?userId=%d", srv.URL, user.ID))
	if err != nil {
		t.Fatal(err)
	}
	var comms []core.InterAgentMessage
	decodeBody(t, commResp, &comms)
	if len(comms) != 1 {
		t.Fatalf("communications = %d, want 1", len(comms))
	}

	// And the conversation was persisted.
	convResp, _ := http.Get(fmt.Sprintf("%s/api/users/%d/conversations", srv.URL, user.ID))
	var convs []core.Conversation
	decodeBody(t, convResp, &convs)
	if len(convs) != 1 {
		t.Fatalf("conversations = %d, want 1", len(convs))
	}
}

func TestChatValidation(t *testing.T) {
	_, srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/chat", map[string]any{"userId": 1, "agentId": "grace"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("empty message status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = postJSON(t, srv.URL+"/api/chat", map[string]any{"userId": 1, "agentId": "hal", "message": "x"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("unknown agent status = %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestDirectAgentMessageEndpoint(t *testing.T) {
	_, srv := newTestServer(t)
	user := createTestUser(t, srv.URL, "Margaret", "m@example.com")

	resp := postJSON(t, srv.URL+"/api/agent-messages", map[string]any{
		"fromAgent": "alex",
		"toAgent":   "grace",
		"userId":    user.ID,
		"message":   "please check in this afternoon",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var result interagent.DirectMessageResult
	decodeBody(t, resp, &result)
	if result.AgentMessage == nil || result.AgentMessage.Context.TriggerType != core.TriggerDirectMessage {
		t.Errorf("result = %+v", result)
	}
}

func TestCareNotificationEndpoints(t *testing.T) {
	_, srv := newTestServer(t)
	user := createTestUser(t, srv.URL, "Margaret", "m@example.com")

	resp := postJSON(t, srv.URL+"/api/care-notifications", map[string]any{
		"elderly_user_id": user.ID,
		"type":            "appointment",
		"title":           "Cardiology checkup",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d", resp.StatusCode)
	}
	var n core.CareNotification
	decodeBody(t, resp, &n)

	resp = postJSON(t, fmt.Sprintf("%s/api/care-notifications/%d/acknowledge", srv.URL, n.ID), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("acknowledge status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	listResp, _ := http.Get(fmt.Sprintf("%s/api/users/%d/care-notifications", srv.URL, user.ID))
	var list []core.CareNotification
	decodeBody(t, listResp, &list)
	if len(list) != 1 || list[0].Status != "acknowledged" {
		t.Errorf("list = %+v", list)
	}
}

func TestPhotoUploadBroadcastsToWebsocket(t *testing.T) {
	s, srv := newTestServer(t)
	elderly := createTestUser(t, srv.URL, "Margaret", "m@example.com")
	daughter := createTestUser(t, srv.URL, "Sarah", "s@example.com")

	var frame core.PictureFrame
	resp := postJSON(t, srv.URL+"/api/picture-frames", map[string]any{
		"elderly_user_id": elderly.ID,
		"name":            "Living room",
	})
	decodeBody(t, resp, &frame)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	ws, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer ws.Close()

	deadline := time.Now().Add(2 * time.Second)
	for s.hub.ConnectionCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("websocket connection never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	resp = postJSON(t, fmt.Sprintf("%s/api/picture-frames/%d/photos", srv.URL, frame.ID), map[string]any{
		"uploaded_by": daughter.ID,
		"url":         "https://example.com/park.jpg",
		"caption":     "At the park",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("photo status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev map[string]any
	if err := ws.ReadJSON(&ev); err != nil {
		t.Fatal(err)
	}
	if ev["type"] != "new_photo" {
		t.Errorf("event type = %v, want new_photo", ev["type"])
	}
}

func TestChatCompletionSurface(t *testing.T) {
	_, srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/agents/grace/v1/chat/completions", map[string]any{
		"messages": []map[string]string{
			{"role": "system", "content": "be kind"},
			{"role": "user", "content": "hello there friend"},
		},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var body llm.ChatCompletionResponse
	decodeBody(t, resp, &body)

	if !strings.HasPrefix(body.ID, "chatcmpl-") {
		t.Errorf("id = %q", body.ID)
	}
	if body.Object != "chat.completion" {
		t.Errorf("object = %q", body.Object)
	}
	if len(body.Choices) != 1 || body.Choices[0].Message.Content == "" {
		t.Fatalf("choices = %+v", body.Choices)
	}
	// Whitespace-split word counts: "be kind" + "hello there friend" = 5.
	if body.Usage.PromptTokens != 5 {
		t.Errorf("prompt_tokens = %d, want 5", body.Usage.PromptTokens)
	}
	wantCompletion := len(strings.Fields(body.Choices[0].Message.Content))
	if body.Usage.CompletionTokens != wantCompletion {
		t.Errorf("completion_tokens = %d, want %d", body.Usage.CompletionTokens, wantCompletion)
	}
	if body.Usage.TotalTokens != body.Usage.PromptTokens+body.Usage.CompletionTokens {
		t.Error("total_tokens mismatch")
	}

	resp = postJSON(t, srv.URL+"/api/agents/hal/v1/chat/completions", map[string]any{
		"messages": []map[string]string{{"role": "user", "content": "open the doors"}},
	})
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown agent status = %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestListModels(t *testing.T) {
	_, srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/agents/v1/models")
	if err != nil {
		t.Fatal(err)
	}
	var body struct {
		Object string `json:"object"`
		Data   []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	decodeBody(t, resp, &body)
	if len(body.Data) != 2 {
		t.Fatalf("models = %+v", body.Data)
	}
	ids := map[string]bool{}
	for _, m := range body.Data {
		ids[m.ID] = true
	}
	if !ids["grace"] || !ids["alex"] {
		t.Errorf("model ids = %v", ids)
	}
}

func TestReminderEndpoints(t *testing.T) {
	_, srv := newTestServer(t)
	user := createTestUser(t, srv.URL, "Margaret", "m@example.com")

	var rem core.Reminder
	resp := postJSON(t, srv.URL+"/api/reminders", map[string]any{
		"user_id": user.ID,
		"title":   "Take medication",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d", resp.StatusCode)
	}
	decodeBody(t, resp, &rem)

	resp = postJSON(t, fmt.Sprintf("%s/api/reminders/%d/complete", srv.URL, rem.ID), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("complete status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	var pending []core.Reminder
	listResp, _ := http.Get(fmt.Sprintf("%s/api/users/%d/reminders?pending=true", srv.URL, user.ID))
	decodeBody(t, listResp, &pending)
	if len(pending) != 0 {
		t.Errorf("pending = %+v", pending)
	}
}

func TestAgentRuntimeEndpoints(t *testing.T) {
	_, srv := newTestServer(t)

	// No local runtimes configured: start returns immediately.
	resp := postJSON(t, srv.URL+"/api/agents/start", nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("start status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = postJSON(t, srv.URL+"/api/agents/stop", nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("stop status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Valid persona but no supervised process behind it.
	resp = postJSON(t, srv.URL+"/api/agents/grace/message", map[string]string{"message": "hello"})
	if resp.StatusCode != http.StatusBadGateway {
		t.Errorf("message status = %d, want 502", resp.StatusCode)
	}
	resp.Body.Close()

	resp = postJSON(t, srv.URL+"/api/agents/hal/message", map[string]string{"message": "hello"})
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown agent status = %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestAgentMemoryEndpoint(t *testing.T) {
	_, srv := newTestServer(t)
	user := createTestUser(t, srv.URL, "Margaret", "m@example.com")

	resp := postJSON(t, srv.URL+"/api/chat", map[string]any{
		"userId": user.ID, "agentId": "grace", "message": "good morning",
	})
	resp.Body.Close()

	memResp, err := http.Get(srv.URL + "/api/agents/grace/memory")
	if err != nil {
		t.Fatal(err)
	}
	var mem memory.AgentMemory
	decodeBody(t, memResp, &mem)
	if len(mem.ShortTerm) != 1 {
		t.Errorf("short-term entries = %d, want 1", len(mem.ShortTerm))
	}
}
