// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package request

import (
	"fmt"
	"strings"

	"github.com/jeranaias/loom-tui/internal/cloud"
	"github.com/jeranaias/loom-tui/internal/config"
	"github.com/jeranaias/loom-tui/internal/model"
	"github.com/jeranaias/loom-tui/internal/parts"
	"github.com/jeranaias/loom-tui/internal/tools"
)

// =============================================================================
// CONSTANTS
// =============================================================================

// Reasoning re-serialization markers. An assistant turn's reasoning parts
// are sent back inside these delimiters so the boundary between thinking
// and answer text survives a round trip through plain message content.
const (
	ReasoningOpenMarker  = "<reasoning>"
	ReasoningCloseMarker = "</reasoning>"
)

// =============================================================================
// FORMATTER
// =============================================================================

// Options are the per-request knobs supplied by the caller.
type Options struct {
	// Model is the user-selected model id. The id actually sent may
	// differ when reasoning routing applies.
	Model string

	// ReasoningEffort requests reasoning ("low", "medium", "high");
	// empty disables it.
	ReasoningEffort string

	SystemPrompt string

	// ToolNames are the enabled tools for this request. Schemas are
	// attached only when non-empty and the model supports tool use.
	ToolNames []string

	Temperature *float64
	TopP        *float64
	Seed        *int
}

// Formatter turns conversation history into completion requests. The model
// catalog and tool registry are injected; the formatter holds no mutable
// state and is safe for concurrent use.
type Formatter struct {
	catalog  *config.Catalog
	registry *tools.Registry
}

// NewFormatter creates a formatter backed by the given catalog and registry.
func NewFormatter(catalog *config.Catalog, registry *tools.Registry) *Formatter {
	return &Formatter{catalog: catalog, registry: registry}
}

// Build produces the completion request for the given history. History is
// expected to already exclude incomplete assistant messages.
func (f *Formatter) Build(history []*model.Message, opts Options) *cloud.CompletionRequest {
	messages := make([]cloud.ChatMessage, 0, len(history)+1)

	if opts.SystemPrompt != "" {
		messages = append(messages, cloud.ChatMessage{
			Role:    "system",
			Content: opts.SystemPrompt,
		})
	}

	for _, m := range history {
		switch m.Role {
		case model.RoleUser:
			messages = append(messages, formatUserMessage(m))
		case model.RoleAssistant:
			messages = append(messages, formatAssistantMessage(m))
		case model.RoleTool:
			messages = append(messages, cloud.ChatMessage{
				Role:       "tool",
				Content:    m.Content,
				ToolCallID: m.ToolCallID,
				Name:       m.ToolName,
			})
		case model.RoleSystem:
			messages = append(messages, cloud.ChatMessage{
				Role:    "system",
				Content: m.Content,
			})
		}
	}

	req := &cloud.CompletionRequest{
		Model:       f.catalog.ResolveModelID(opts.Model, opts.ReasoningEffort),
		Messages:    messages,
		Temperature: opts.Temperature,
		TopP:        opts.TopP,
		Seed:        opts.Seed,
	}

	if opts.ReasoningEffort != "" {
		req.Reasoning = &cloud.ReasoningOptions{Effort: opts.ReasoningEffort}
	}

	if len(opts.ToolNames) > 0 && f.catalog.SupportsTools(opts.Model) {
		req.Tools = f.registry.SchemasByNames(opts.ToolNames)
	}

	return req
}

// =============================================================================
// USER MESSAGES
// =============================================================================

// formatUserMessage encodes a user turn. Attachments expand the content
// into a multi-part array; without them the content stays a plain string.
func formatUserMessage(m *model.Message) cloud.ChatMessage {
	if len(m.Attachments) == 0 {
		return cloud.ChatMessage{Role: "user", Content: m.Content}
	}

	content := make([]cloud.ContentPart, 0, len(m.Attachments)+1)
	content = append(content, cloud.TextPart(m.Content))

	for _, a := range m.Attachments {
		switch a.Kind {
		case model.AttachmentImage:
			// Data URL goes through verbatim.
			content = append(content, cloud.ImagePart(a.DataURL))
		case model.AttachmentDocument:
			content = append(content, cloud.ContentPart{
				Type: "file",
				File: &cloud.FilePart{
					Filename: a.Name,
					FileData: stripDataURLPrefix(a.DataURL),
				},
			})
		}
	}

	return cloud.ChatMessage{Role: "user", Content: content}
}

// stripDataURLPrefix returns the bare base64 payload of a data URL. Inputs
// without a data-URL prefix are returned unchanged.
func stripDataURLPrefix(dataURL string) string {
	if !strings.HasPrefix(dataURL, "data:") {
		return dataURL
	}
	if idx := strings.Index(dataURL, ","); idx >= 0 {
		return dataURL[idx+1:]
	}
	return dataURL
}

// =============================================================================
// ASSISTANT MESSAGES
// =============================================================================

// formatAssistantMessage re-serializes a recorded assistant turn. Parts are
// walked in order; the machine-readable tool-call records ride separately
// on the message's tool_calls field rather than being reconstructed from
// the tool_group parts.
func formatAssistantMessage(m *model.Message) cloud.ChatMessage {
	msg := cloud.ChatMessage{Role: "assistant"}

	if len(m.Parts) == 0 {
		msg.Content = m.Content
	} else {
		msg.Content = collapseContent(serializeParts(m.Parts))
	}

	if len(m.ToolCalls) > 0 {
		msg.ToolCalls = toolCallRecords(m.ToolCalls)
	}

	return msg
}

// serializeParts maps each part to wire content parts.
func serializeParts(ps []parts.Part) []cloud.ContentPart {
	out := make([]cloud.ContentPart, 0, len(ps))
	for i := range ps {
		p := &ps[i]
		switch p.Kind {
		case parts.PartReasoning:
			out = append(out, cloud.TextPart(ReasoningOpenMarker+"\n"+p.Text+"\n"+ReasoningCloseMarker))
		case parts.PartContent:
			out = append(out, cloud.TextPart(p.Text))
		case parts.PartImage:
			for _, img := range p.Images {
				out = append(out, cloud.ImagePart(img.URL))
			}
		case parts.PartToolGroup:
			out = append(out, cloud.TextPart(toolGroupSummary(p)))
		}
	}
	return out
}

// toolGroupSummary renders a tool group as a short textual note naming the
// tools and whether each produced a result. Raw arguments are deliberately
// omitted.
func toolGroupSummary(p *parts.Part) string {
	entries := make([]string, 0, len(p.Tools))
	for _, tc := range p.Tools {
		status := "pending"
		if tc.HasResult {
			status = "completed"
		}
		entries = append(entries, fmt.Sprintf("%s (%s)", tc.Name, status))
	}
	return "[tool calls: " + strings.Join(entries, ", ") + "]"
}

// collapseContent flattens an all-text content array into a single string
// to keep payloads small; any non-text part keeps the array form.
func collapseContent(content []cloud.ContentPart) any {
	for _, c := range content {
		if c.Type != "text" {
			return content
		}
	}
	texts := make([]string, 0, len(content))
	for _, c := range content {
		texts = append(texts, c.Text)
	}
	return strings.Join(texts, "\n")
}

// toolCallRecords converts accumulated tool calls to their wire form.
func toolCallRecords(calls []*parts.ToolCall) []cloud.ToolCallRecord {
	records := make([]cloud.ToolCallRecord, 0, len(calls))
	for _, tc := range calls {
		args := tc.ArgumentsText
		if args == "" {
			args = "{}"
		}
		kind := tc.Kind
		if kind == "" {
			kind = parts.DefaultToolKind
		}
		records = append(records, cloud.ToolCallRecord{
			ID:   tc.ID,
			Type: kind,
			Function: cloud.FunctionCall{
				Name:      tc.Name,
				Arguments: args,
			},
		})
	}
	return records
}

// =============================================================================
// MARKER PARSING
// =============================================================================

// SplitReasoning separates reasoning blocks from answer text in a
// re-serialized assistant string. It is the inverse of the marker wrapping
// applied by Build; text outside markers is returned as content.
func SplitReasoning(s string) (reasoning, content string) {
	var r, c strings.Builder
	rest := s
	for {
		open := strings.Index(rest, ReasoningOpenMarker)
		if open < 0 {
			c.WriteString(rest)
			break
		}
		c.WriteString(rest[:open])
		rest = rest[open+len(ReasoningOpenMarker):]

		end := strings.Index(rest, ReasoningCloseMarker)
		if end < 0 {
			r.WriteString(rest)
			break
		}
		r.WriteString(rest[:end])
		rest = rest[end+len(ReasoningCloseMarker):]
	}
	return strings.TrimSpace(r.String()), strings.TrimSpace(c.String())
}
