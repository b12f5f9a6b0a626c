// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jeranaias/loom-tui/internal/cloud"
	"github.com/jeranaias/loom-tui/internal/config"
	"github.com/jeranaias/loom-tui/internal/model"
	"github.com/jeranaias/loom-tui/internal/parts"
	"github.com/jeranaias/loom-tui/internal/request"
	"github.com/jeranaias/loom-tui/internal/tools"
)

// =============================================================================
// TEST HARNESS
// =============================================================================

func sseFrames(w http.ResponseWriter, frames ...string) {
	w.Header().Set("Content-Type", "text/event-stream")
	for _, f := range frames {
		io.WriteString(w, "data: "+f+"\n\n")
	}
	io.WriteString(w, "data: [DONE]\n\n")
}

func toolCallFrames(id, name, args string) []string {
	return []string{
		fmt.Sprintf(`{"choices":[{"delta":{"tool_calls":[{"index":0,"id":"%s","type":"function","function":{"name":"%s","arguments":""}}]}}]}`, id, name),
		fmt.Sprintf(`{"choices":[{"delta":{"tool_calls":[{"index":0,"function":{"arguments":%s}}]}}]}`, mustJSON(args)),
		`{"choices":[{"delta":{},"finish_reason":"tool_calls"}]}`,
	}
}

func mustJSON(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

type harness struct {
	runner   *Runner
	conv     *model.Conversation
	registry *tools.Registry
	requests *atomic.Int32
	bodies   chan []byte
}

func newHarness(t *testing.T, opts RunnerOptions, handler func(n int, w http.ResponseWriter, r *http.Request)) *harness {
	t.Helper()
	h := &harness{
		conv:     model.NewConversation(),
		registry: tools.NewRegistry(),
		requests: &atomic.Int32{},
		bodies:   make(chan []byte, 16),
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		h.bodies <- body
		handler(int(h.requests.Add(1)), w, r)
	}))
	t.Cleanup(srv.Close)

	client := cloud.NewClient(cloud.Options{
		BaseURL:           srv.URL,
		APIKey:            "test-key",
		RequestsPerMinute: 60000,
	})
	formatter := request.NewFormatter(config.NewCatalog(nil), h.registry)
	h.runner = NewRunner(client, formatter, h.registry, opts)
	return h
}

func (h *harness) registerEcho(t *testing.T) *atomic.Int32 {
	t.Helper()
	calls := &atomic.Int32{}
	h.registry.Register(&tools.Tool{
		Name:        "echo",
		Description: "Echoes its input back.",
		Parameters:  tools.ObjectParameters(map[string]tools.Property{"text": {Type: "string"}}),
		Executor: tools.ExecutorFunc(func(ctx context.Context, args map[string]any, history []*model.Message) (any, error) {
			calls.Add(1)
			text, _ := args["text"].(string)
			return "echo: " + text, nil
		}),
	})
	return calls
}

// =============================================================================
// TESTS
// =============================================================================

func TestRun_ContentOnly(t *testing.T) {
	h := newHarness(t, RunnerOptions{}, func(n int, w http.ResponseWriter, r *http.Request) {
		sseFrames(w,
			`{"choices":[{"delta":{"content":"Hel"}}]}`,
			`{"choices":[{"delta":{"content":"lo"}}],"usage":{"prompt_tokens":5,"completion_tokens":2,"total_tokens":7}}`,
		)
	})
	h.conv.AddUserMessage("hi")

	msg, err := h.runner.Run(context.Background(), h.conv, request.Options{Model: "m"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !msg.Complete {
		t.Error("message not complete")
	}
	if msg.Content != "Hello" {
		t.Errorf("Content = %q, want %q", msg.Content, "Hello")
	}
	if msg.TotalTokens != 7 {
		t.Errorf("TotalTokens = %d, want 7", msg.TotalTokens)
	}
	if msg.FirstTokenTime.IsZero() || msg.CompletionTime.IsZero() {
		t.Error("timing not finalized")
	}
	if got := h.conv.GetLastMessage(); got != msg {
		t.Error("assistant message not appended to conversation")
	}
	if n := h.requests.Load(); n != 1 {
		t.Errorf("requests = %d, want 1", n)
	}
}

func TestRun_ToolRoundThenAnswer(t *testing.T) {
	h := newHarness(t, RunnerOptions{}, func(n int, w http.ResponseWriter, r *http.Request) {
		if n == 1 {
			sseFrames(w, toolCallFrames("call-1", "echo", `{"text":"hi"}`)...)
			return
		}
		sseFrames(w, `{"choices":[{"delta":{"content":"done"}}]}`)
	})
	execs := h.registerEcho(t)
	h.conv.AddUserMessage("use the tool")

	msg, err := h.runner.Run(context.Background(), h.conv, request.Options{
		Model:     "m",
		ToolNames: []string{"echo"},
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if execs.Load() != 1 {
		t.Errorf("executor ran %d times, want 1", execs.Load())
	}
	if h.requests.Load() != 2 {
		t.Errorf("requests = %d, want 2", h.requests.Load())
	}

	if len(msg.ToolCalls) != 1 {
		t.Fatalf("len(ToolCalls) = %d, want 1", len(msg.ToolCalls))
	}
	tc := msg.ToolCalls[0]
	if !tc.HasResult {
		t.Error("tool call has no attached result")
	}
	if got, _ := tc.Result.(string); got != "echo: hi" {
		t.Errorf("Result = %v", tc.Result)
	}

	// Second-round request carries the tool result as a tool message.
	<-h.bodies
	var second cloud.CompletionRequest
	if err := json.Unmarshal(<-h.bodies, &second); err != nil {
		t.Fatalf("decode second request: %v", err)
	}
	var toolMsg *cloud.ChatMessage
	for i := range second.Messages {
		if second.Messages[i].Role == "tool" {
			toolMsg = &second.Messages[i]
		}
	}
	if toolMsg == nil {
		t.Fatal("second request has no tool message")
	}
	if toolMsg.ToolCallID != "call-1" || toolMsg.Name != "echo" {
		t.Errorf("tool message linkage = %+v", toolMsg)
	}
	if s, _ := toolMsg.Content.(string); !strings.Contains(s, "echo: hi") {
		t.Errorf("tool message content = %v", toolMsg.Content)
	}

	// Conversation gained the assistant turn plus one tool message.
	last := h.conv.GetLastMessage()
	if last.Role != model.RoleTool {
		t.Errorf("last conversation message role = %q, want tool", last.Role)
	}
}

func TestRun_SecondToolRoundReusesIndexZero(t *testing.T) {
	// Every response stream numbers its tool calls from zero; two
	// consecutive tool rounds must yield two distinct calls, not one
	// record with concatenated arguments.
	h := newHarness(t, RunnerOptions{}, func(n int, w http.ResponseWriter, r *http.Request) {
		switch n {
		case 1:
			sseFrames(w, toolCallFrames("call-1", "echo", `{"text":"round-1"}`)...)
		case 2:
			sseFrames(w, toolCallFrames("call-2", "echo", `{"text":"round-2"}`)...)
		default:
			sseFrames(w, `{"choices":[{"delta":{"content":"done"}}]}`)
		}
	})
	execs := h.registerEcho(t)
	h.conv.AddUserMessage("twice")

	msg, err := h.runner.Run(context.Background(), h.conv, request.Options{
		Model:     "m",
		ToolNames: []string{"echo"},
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if execs.Load() != 2 {
		t.Errorf("executor ran %d times, want 2", execs.Load())
	}
	if h.requests.Load() != 3 {
		t.Errorf("requests = %d, want 3", h.requests.Load())
	}

	if len(msg.ToolCalls) != 2 {
		t.Fatalf("len(ToolCalls) = %d, want 2", len(msg.ToolCalls))
	}
	first, second := msg.ToolCalls[0], msg.ToolCalls[1]
	if first.ID != "call-1" || first.ArgumentsText != `{"text":"round-1"}` {
		t.Errorf("first call = %+v, want call-1 with round-1 arguments", first)
	}
	if second.ID != "call-2" || second.ArgumentsText != `{"text":"round-2"}` {
		t.Errorf("second call = %+v, want call-2 with round-2 arguments", second)
	}
	for _, tc := range msg.ToolCalls {
		if !tc.HasResult {
			t.Errorf("call %s has no attached result", tc.ID)
		}
	}
}

func TestRun_MaxIterationsForcesTermination(t *testing.T) {
	h := newHarness(t, RunnerOptions{MaxIterations: 2}, func(n int, w http.ResponseWriter, r *http.Request) {
		sseFrames(w, toolCallFrames(fmt.Sprintf("call-%d", n), "echo", `{"text":"again"}`)...)
	})
	execs := h.registerEcho(t)
	h.conv.AddUserMessage("loop forever")

	msg, err := h.runner.Run(context.Background(), h.conv, request.Options{
		Model:     "m",
		ToolNames: []string{"echo"},
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !msg.Complete {
		t.Error("message not complete after budget exhaustion")
	}
	if execs.Load() != 2 {
		t.Errorf("tool execution rounds = %d, want exactly 2", execs.Load())
	}
	if h.requests.Load() != 2 {
		t.Errorf("requests = %d, want 2", h.requests.Load())
	}
}

func TestRun_UnknownToolSyntheticError(t *testing.T) {
	h := newHarness(t, RunnerOptions{}, func(n int, w http.ResponseWriter, r *http.Request) {
		if n == 1 {
			sseFrames(w, toolCallFrames("call-1", "nonexistent", `{}`)...)
			return
		}
		sseFrames(w, `{"choices":[{"delta":{"content":"ok"}}]}`)
	})
	h.registerEcho(t)
	h.conv.AddUserMessage("go")

	msg, err := h.runner.Run(context.Background(), h.conv, request.Options{
		Model:     "m",
		ToolNames: []string{"echo"},
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	tc := msg.ToolCalls[0]
	if !tc.HasResult {
		t.Fatal("unknown tool produced no result")
	}
	result, ok := tc.Result.(map[string]any)
	if !ok || result["error"] == nil {
		t.Errorf("Result = %v, want synthetic error object", tc.Result)
	}
	if h.requests.Load() != 2 {
		t.Errorf("requests = %d, want 2 (loop continues after unknown tool)", h.requests.Load())
	}
}

func TestRun_MalformedArgumentsFallBackToEmpty(t *testing.T) {
	h := newHarness(t, RunnerOptions{}, func(n int, w http.ResponseWriter, r *http.Request) {
		if n == 1 {
			sseFrames(w, toolCallFrames("call-1", "inspect", `{"broken`)...)
			return
		}
		sseFrames(w, `{"choices":[{"delta":{"content":"ok"}}]}`)
	})

	var gotArgs map[string]any
	h.registry.Register(&tools.Tool{
		Name:       "inspect",
		Parameters: tools.ObjectParameters(nil),
		Executor: tools.ExecutorFunc(func(ctx context.Context, args map[string]any, history []*model.Message) (any, error) {
			gotArgs = args
			return "seen", nil
		}),
	})
	h.conv.AddUserMessage("go")

	if _, err := h.runner.Run(context.Background(), h.conv, request.Options{
		Model:     "m",
		ToolNames: []string{"inspect"},
	}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if gotArgs == nil {
		t.Fatal("executor never ran")
	}
	if len(gotArgs) != 0 {
		t.Errorf("args = %v, want empty object", gotArgs)
	}
}

func TestRun_OneFailingToolDoesNotAbortSiblings(t *testing.T) {
	h := newHarness(t, RunnerOptions{}, func(n int, w http.ResponseWriter, r *http.Request) {
		if n == 1 {
			sseFrames(w,
				`{"choices":[{"delta":{"tool_calls":[{"index":0,"id":"call-a","type":"function","function":{"name":"fail","arguments":"{}"}}]}}]}`,
				`{"choices":[{"delta":{"tool_calls":[{"index":1,"id":"call-b","type":"function","function":{"name":"echo","arguments":"{\"text\":\"x\"}"}}]}}]}`,
				`{"choices":[{"delta":{},"finish_reason":"tool_calls"}]}`,
			)
			return
		}
		sseFrames(w, `{"choices":[{"delta":{"content":"ok"}}]}`)
	})
	execs := h.registerEcho(t)
	h.registry.Register(&tools.Tool{
		Name:       "fail",
		Parameters: tools.ObjectParameters(nil),
		Executor: tools.ExecutorFunc(func(ctx context.Context, args map[string]any, history []*model.Message) (any, error) {
			return nil, errors.New("boom")
		}),
	})
	h.conv.AddUserMessage("go")

	msg, err := h.runner.Run(context.Background(), h.conv, request.Options{
		Model:     "m",
		ToolNames: []string{"echo", "fail"},
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if execs.Load() != 1 {
		t.Errorf("sibling executor ran %d times, want 1", execs.Load())
	}

	byID := map[string]*parts.ToolCall{}
	for _, tc := range msg.ToolCalls {
		byID[tc.ID] = tc
	}
	failResult, _ := byID["call-a"].Result.(map[string]any)
	if failResult == nil || failResult["error"] != "boom" {
		t.Errorf("fail result = %v", byID["call-a"].Result)
	}
	if got, _ := byID["call-b"].Result.(string); got != "echo: x" {
		t.Errorf("sibling result = %v", byID["call-b"].Result)
	}
}

func TestRun_FatalAPIError(t *testing.T) {
	h := newHarness(t, RunnerOptions{}, func(n int, w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		io.WriteString(w, `{"error":{"message":"upstream exploded"}}`)
	})
	h.conv.AddUserMessage("hi")

	msg, err := h.runner.Run(context.Background(), h.conv, request.Options{Model: "m"})
	if err == nil {
		t.Fatal("Run() error = nil, want fatal API error")
	}
	if !msg.Complete {
		t.Error("message not complete after fatal error")
	}
	if msg.ErrorDetails == "" {
		t.Error("ErrorDetails empty")
	}
	if !strings.Contains(msg.Content, "Error:") {
		t.Errorf("Content = %q, want synthetic error fragment", msg.Content)
	}
}

func TestRun_CancelMidStream(t *testing.T) {
	released := make(chan struct{})
	h := newHarness(t, RunnerOptions{}, func(n int, w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, `data: {"choices":[{"delta":{"content":"partial"}}]}`+"\n\n")
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		<-r.Context().Done()
		close(released)
	})
	h.conv.AddUserMessage("hi")

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	msg, err := h.runner.Run(ctx, h.conv, request.Options{Model: "m"})
	if err != nil {
		t.Fatalf("Run() error = %v, cancellation must not surface as error", err)
	}
	if !msg.Complete {
		t.Error("message not complete after cancel")
	}
	if !strings.Contains(msg.Content, CanceledText) {
		t.Errorf("Content = %q, want canceled fragment", msg.Content)
	}
	if !strings.Contains(msg.Content, "partial") {
		t.Errorf("Content = %q, want partial content preserved", msg.Content)
	}

	select {
	case <-released:
	case <-time.After(2 * time.Second):
		t.Error("server handler never saw the cancel")
	}
}

func TestRun_CancelBeforeStart(t *testing.T) {
	h := newHarness(t, RunnerOptions{}, func(n int, w http.ResponseWriter, r *http.Request) {
		sseFrames(w, `{"choices":[{"delta":{"content":"never"}}]}`)
	})
	h.conv.AddUserMessage("hi")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	msg, err := h.runner.Run(ctx, h.conv, request.Options{Model: "m"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if msg.Content != CanceledText {
		t.Errorf("Content = %q, want %q", msg.Content, CanceledText)
	}
	if h.requests.Load() != 0 {
		t.Errorf("requests = %d, want 0", h.requests.Load())
	}
}

func TestRun_OnUpdateSnapshots(t *testing.T) {
	h := newHarness(t, RunnerOptions{
		OnUpdate: func(snapshot []parts.Part) {
			// Snapshots must be safe to retain; mutate to prove isolation.
			for i := range snapshot {
				snapshot[i].Text = "mutated"
			}
		},
	}, func(n int, w http.ResponseWriter, r *http.Request) {
		sseFrames(w, `{"choices":[{"delta":{"content":"real"}}]}`)
	})
	h.conv.AddUserMessage("hi")

	msg, err := h.runner.Run(context.Background(), h.conv, request.Options{Model: "m"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if msg.Content != "real" {
		t.Errorf("Content = %q, mutation leaked into builder", msg.Content)
	}
}

type failingPersister struct{}

func (failingPersister) SaveMessage(string, *model.Message) error {
	return errors.New("disk full")
}

func TestRun_PersistFailureSurfaces(t *testing.T) {
	h := newHarness(t, RunnerOptions{Persister: failingPersister{}}, func(n int, w http.ResponseWriter, r *http.Request) {
		sseFrames(w, `{"choices":[{"delta":{"content":"hi"}}]}`)
	})
	h.conv.AddUserMessage("hello")

	msg, err := h.runner.Run(context.Background(), h.conv, request.Options{Model: "m"})
	if err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Fatalf("Run() error = %v, want persistence failure", err)
	}
	// Persistence failure does not undo finalization.
	if !msg.Complete {
		t.Error("message not complete")
	}
	if msg.Content != "hi" {
		t.Errorf("Content = %q", msg.Content)
	}
}
