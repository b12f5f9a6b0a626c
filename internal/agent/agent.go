// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/jeranaias/loom-tui/internal/cloud"
	"github.com/jeranaias/loom-tui/internal/config"
	"github.com/jeranaias/loom-tui/internal/model"
	"github.com/jeranaias/loom-tui/internal/parts"
	"github.com/jeranaias/loom-tui/internal/request"
	"github.com/jeranaias/loom-tui/internal/stream"
	"github.com/jeranaias/loom-tui/internal/tools"
)

// =============================================================================
// CONSTANTS
// =============================================================================

// CanceledText is the terminal content fragment appended when a turn is
// interrupted by the user. Renderers key off this exact string.
const CanceledText = "stream canceled"

// =============================================================================
// RUNNER
// =============================================================================

// Streamer issues streaming completion requests. *cloud.Client satisfies it.
type Streamer interface {
	ChatStream(ctx context.Context, req *cloud.CompletionRequest) (*cloud.Stream, error)
}

// Persister receives finalized messages for storage.
type Persister interface {
	SaveMessage(conversationID string, msg *model.Message) error
}

// RunnerOptions configures a Runner beyond its required collaborators.
type RunnerOptions struct {
	// MaxIterations bounds tool-execution rounds per user turn.
	MaxIterations int

	// OnUpdate, when set, receives a fresh part snapshot after every
	// applied chunk. Called from the turn's goroutine only.
	OnUpdate func([]parts.Part)

	// Persister, when set, receives the assistant and tool messages at
	// turn finalization.
	Persister Persister
}

// Runner drives the multi-round tool-execution loop for a user turn:
// stream a response, execute any requested tools, feed results back, and
// repeat until the model stops requesting tools or the round budget runs
// out.
type Runner struct {
	streamer      Streamer
	formatter     *request.Formatter
	registry      *tools.Registry
	maxIterations int
	onUpdate      func([]parts.Part)
	persister     Persister
}

// NewRunner creates a runner. Collaborators are injected; the runner keeps
// no per-turn state and may be shared across turns (one turn at a time per
// conversation).
func NewRunner(s Streamer, f *request.Formatter, reg *tools.Registry, opts RunnerOptions) *Runner {
	maxIterations := opts.MaxIterations
	if maxIterations <= 0 {
		maxIterations = config.DefaultMaxToolIterations
	}
	return &Runner{
		streamer:      s,
		formatter:     f,
		registry:      reg,
		maxIterations: maxIterations,
		onUpdate:      opts.OnUpdate,
		persister:     opts.Persister,
	}
}

// =============================================================================
// TURN EXECUTION
// =============================================================================

// Run executes one complete user turn against the conversation. The
// conversation's last message is expected to be the new user input. The
// returned assistant message is always finalized (complete, timed,
// appended to the conversation, persisted) regardless of how the turn
// ended; a non-nil error reports a fatal API failure — whose details are
// also recorded on the message — or a persistence failure.
func (r *Runner) Run(ctx context.Context, conv *model.Conversation, opts request.Options) (msg *model.Message, err error) {
	msg = model.NewAssistantMessage()
	builder := parts.NewBuilder()
	timing := parts.NewTimingTracker()

	base := conv.History()
	var toolMsgs []*model.Message
	var errorDetails string

	defer func() {
		timing.Finalize()

		calls := builder.ToolCalls()
		cloned := make([]*parts.ToolCall, len(calls))
		for i, tc := range calls {
			cloned[i] = tc.Clone()
		}
		msg.SetParts(builder.Snapshot(), cloned, builder.FlatContent())
		msg.ApplyTiming(timing)
		msg.MarkComplete(errorDetails)

		conv.AddMessage(msg)
		for _, tm := range toolMsgs {
			conv.AddMessage(tm)
		}
		if r.persister != nil {
			if perr := r.persister.SaveMessage(conv.ID, msg); perr != nil {
				err = errors.Join(err, fmt.Errorf("persist assistant message: %w", perr))
			}
			for _, tm := range toolMsgs {
				if perr := r.persister.SaveMessage(conv.ID, tm); perr != nil {
					err = errors.Join(err, fmt.Errorf("persist tool message: %w", perr))
				}
			}
		}
		r.notify(builder)
	}()

	for iteration := 0; iteration < r.maxIterations; iteration++ {
		if ctx.Err() != nil {
			builder.Apply(stream.Chunk{Kind: stream.KindContent, Text: CanceledText})
			return msg, nil
		}

		req := r.formatter.Build(r.roundHistory(base, msg, builder, toolMsgs, iteration), opts)

		if err := r.consumeStream(ctx, req, builder, timing, msg); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				builder.Apply(stream.Chunk{Kind: stream.KindContent, Text: CanceledText})
				return msg, nil
			}
			errorDetails = err.Error()
			builder.Apply(stream.Chunk{Kind: stream.KindContent, Text: "Error: " + err.Error()})
			return msg, err
		}

		pending := pendingToolCalls(builder)
		if len(pending) == 0 || len(req.Tools) == 0 {
			return msg, nil
		}

		outcomes := r.executeTools(ctx, pending, base)
		for _, oc := range outcomes {
			builder.Apply(stream.Chunk{
				Kind:       stream.KindToolResult,
				ToolResult: &stream.ToolResult{ID: oc.call.ID, Result: oc.result},
			})
			toolMsgs = append(toolMsgs, model.NewToolMessage(oc.call.ID, oc.call.Name, serializeResult(oc.result)))
		}
		// The next response numbers its tool calls from index zero again;
		// seal this round's groups so its fragments open fresh entries.
		builder.SealToolCalls()
		r.notify(builder)
	}

	// Round budget exhausted while the model still wants tools.
	return msg, nil
}

// roundHistory assembles the message slice for one round's request. After
// the first round the in-progress assistant turn and accumulated tool
// results are appended so the model sees its own calls and their outputs.
func (r *Runner) roundHistory(base []*model.Message, msg *model.Message, builder *parts.Builder, toolMsgs []*model.Message, iteration int) []*model.Message {
	if iteration == 0 {
		return base
	}
	msg.SetParts(builder.Snapshot(), builder.ToolCalls(), builder.FlatContent())
	history := make([]*model.Message, 0, len(base)+1+len(toolMsgs))
	history = append(history, base...)
	history = append(history, msg)
	history = append(history, toolMsgs...)
	return history
}

// consumeStream folds one response stream into the builder. Chunks are
// applied strictly sequentially; ordering is a correctness property here.
func (r *Runner) consumeStream(ctx context.Context, req *cloud.CompletionRequest, builder *parts.Builder, timing *parts.TimingTracker, msg *model.Message) error {
	s, err := r.streamer.ChatStream(ctx, req)
	if err != nil {
		return err
	}
	defer s.Close()

	for {
		chunk, err := s.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			// A stalled read interrupted by cancel surfaces as a
			// transport error; report the cancellation instead.
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return err
		}

		if chunk.Kind == stream.KindUsage {
			msg.ApplyUsage(chunk.Usage)
		}
		timing.Observe(chunk)
		builder.Apply(chunk)
		r.notify(builder)
	}
}

func (r *Runner) notify(builder *parts.Builder) {
	if r.onUpdate != nil {
		r.onUpdate(builder.Snapshot())
	}
}

// pendingToolCalls returns the calls from the just-finished response that
// have no result yet. Calls from earlier rounds already carry results.
func pendingToolCalls(builder *parts.Builder) []*parts.ToolCall {
	var pending []*parts.ToolCall
	for _, tc := range builder.ToolCalls() {
		if !tc.HasResult {
			pending = append(pending, tc)
		}
	}
	return pending
}

// =============================================================================
// TOOL EXECUTION
// =============================================================================

type toolOutcome struct {
	call   *parts.ToolCall
	result any
}

// executeTools runs one round's tool calls concurrently. Results are
// collected positionally and attached by the caller in a single goroutine.
func (r *Runner) executeTools(ctx context.Context, calls []*parts.ToolCall, history []*model.Message) []toolOutcome {
	outcomes := make([]toolOutcome, len(calls))
	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		go func(i int, call *parts.ToolCall) {
			defer wg.Done()
			outcomes[i] = toolOutcome{call: call, result: r.executeOne(ctx, call, history)}
		}(i, call)
	}
	wg.Wait()
	return outcomes
}

// executeOne runs a single tool call. Every failure mode produces a
// synthetic error result so the model can react on the next round; nothing
// here aborts the sibling calls or the turn.
func (r *Runner) executeOne(ctx context.Context, call *parts.ToolCall, history []*model.Message) any {
	args := map[string]any{}
	if call.ArgumentsText != "" {
		if err := json.Unmarshal([]byte(call.ArgumentsText), &args); err != nil {
			// Malformed arguments degrade to an empty object.
			args = map[string]any{}
		}
	}

	tool := r.registry.Get(call.Name)
	if tool == nil {
		return map[string]any{"error": fmt.Sprintf("unknown tool: %s", call.Name)}
	}

	result, err := tool.Executor.Execute(ctx, args, history)
	if err != nil {
		return map[string]any{"error": err.Error()}
	}
	return result
}

// serializeResult renders a tool result for the next round's tool message.
func serializeResult(result any) string {
	switch v := result.(type) {
	case string:
		return truncateResult(v)
	case nil:
		return "null"
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return truncateResult(fmt.Sprintf("%v", v))
		}
		return truncateResult(string(data))
	}
}

func truncateResult(s string) string {
	if len(s) > tools.MaxToolOutput {
		return s[:tools.MaxToolOutput] + "\n[output truncated]"
	}
	return s
}
