// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
package model

import (
	"time"

	"github.com/google/uuid"

	"github.com/jeranaias/loom-tui/internal/parts"
	"github.com/jeranaias/loom-tui/internal/stream"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Assistant"
	case RoleSystem:
		return "System"
	case RoleTool:
		return "Tool"
	default:
		return string(r)
	}
}

// =============================================================================
// ATTACHMENTS
// =============================================================================

// AttachmentKind distinguishes image attachments from document attachments.
type AttachmentKind string

const (
	AttachmentImage    AttachmentKind = "image"
	AttachmentDocument AttachmentKind = "document"
)

// Attachment is a file attached to a user message, carried as a data URL.
type Attachment struct {
	Kind    AttachmentKind `json:"kind"`
	Name    string         `json:"name"`
	DataURL string         `json:"data_url"`
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message represents a single message in a conversation.
//
// Assistant messages are built incrementally: the turn that creates one owns
// it exclusively until Complete is set, after which it is read-only.
type Message struct {
	// Identity
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Timestamp time.Time `json:"timestamp"`

	// Content is the legacy flattened view: the concatenation of all
	// content parts across time. Kept for consumers that do not
	// understand parts.
	Content string `json:"content"`

	// Parts is the reconstructed, ordered part sequence (assistant only).
	Parts []parts.Part `json:"parts,omitempty"`

	// ToolCalls is the flattened tool-call list derived from Parts,
	// recomputable at any time.
	ToolCalls []*parts.ToolCall `json:"tool_calls,omitempty"`

	// Attachments on user messages.
	Attachments []Attachment `json:"attachments,omitempty"`

	// Tool linkage for role "tool" messages.
	ToolCallID string `json:"tool_call_id,omitempty"`
	ToolName   string `json:"tool_name,omitempty"`

	// Lifecycle
	Complete     bool   `json:"complete"`
	ErrorDetails string `json:"error_details,omitempty"`

	// Timing (assistant messages)
	APICallTime         time.Time `json:"api_call_time,omitempty"`
	FirstTokenTime      time.Time `json:"first_token_time,omitempty"`
	CompletionTime      time.Time `json:"completion_time,omitempty"`
	ReasoningStartTime  time.Time `json:"reasoning_start_time,omitempty"`
	ReasoningEndTime    time.Time `json:"reasoning_end_time,omitempty"`
	ReasoningDurationMs int64     `json:"reasoning_duration_ms,omitempty"`

	// Token usage
	PromptTokens     int `json:"prompt_tokens,omitempty"`
	CompletionTokens int `json:"completion_tokens,omitempty"`
	TotalTokens      int `json:"total_tokens,omitempty"`
}

// NewMessage creates a new message with a generated ID.
func NewMessage(role Role, content string) *Message {
	return &Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
		Complete:  true,
	}
}

// NewUserMessage creates a new user message with optional attachments.
func NewUserMessage(content string, attachments ...Attachment) *Message {
	msg := NewMessage(RoleUser, content)
	msg.Attachments = attachments
	return msg
}

// NewAssistantMessage creates a new in-flight assistant message. It stays
// incomplete until the turn, including every tool round, terminates.
func NewAssistantMessage() *Message {
	return &Message{
		ID:          uuid.NewString(),
		Role:        RoleAssistant,
		Timestamp:   time.Now(),
		APICallTime: time.Now(),
	}
}

// NewSystemMessage creates a new system message.
func NewSystemMessage(content string) *Message {
	return NewMessage(RoleSystem, content)
}

// NewToolMessage creates a role "tool" message carrying one execution
// result for the next round's request.
func NewToolMessage(callID, toolName, content string) *Message {
	msg := NewMessage(RoleTool, content)
	msg.ToolCallID = callID
	msg.ToolName = toolName
	return msg
}

// =============================================================================
// MESSAGE METHODS
// =============================================================================

// SetParts installs the current reconstruction state: the part snapshot,
// the derived flattened tool-call list, and the legacy flat content.
func (m *Message) SetParts(snapshot []parts.Part, toolCalls []*parts.ToolCall, flatContent string) {
	m.Parts = snapshot
	m.ToolCalls = toolCalls
	m.Content = flatContent
}

// ApplyTiming copies tracker state onto the message's timing fields.
func (m *Message) ApplyTiming(t *parts.TimingTracker) {
	m.APICallTime = t.Start
	m.FirstTokenTime = t.FirstToken
	m.CompletionTime = t.Completion
	m.ReasoningStartTime = t.ReasoningStart
	m.ReasoningEndTime = t.ReasoningEnd
	m.ReasoningDurationMs = t.ReasoningDuration.Milliseconds()
}

// ApplyUsage accumulates token counters across rounds.
func (m *Message) ApplyUsage(u *stream.Usage) {
	if u == nil {
		return
	}
	m.PromptTokens += u.PromptTokens
	m.CompletionTokens += u.CompletionTokens
	m.TotalTokens += u.TotalTokens
}

// MarkComplete finalizes the message. An empty detail means a clean end.
func (m *Message) MarkComplete(errorDetails string) {
	m.Complete = true
	m.ErrorDetails = errorDetails
}

// HasToolCalls reports whether any tool calls were reconstructed.
func (m *Message) HasToolCalls() bool {
	return len(m.ToolCalls) > 0
}

// Preview returns a truncated preview of the message content.
// Uses rune-based truncation to handle Unicode correctly.
func (m *Message) Preview(maxLen int) string {
	runes := []rune(m.Content)
	if len(runes) <= maxLen {
		return m.Content
	}
	return string(runes[:maxLen-3]) + "..."
}

// IsEmpty returns true if the message has no content and no parts.
func (m *Message) IsEmpty() bool {
	return len(m.Content) == 0 && len(m.Parts) == 0
}

// EstimateTokens gives a rough estimate of token count.
// Uses the approximation of ~4 characters per token.
func (m *Message) EstimateTokens() int {
	return (len(m.Content) + 3) / 4
}

// TTFT returns the first-token latency, or zero when unknown.
func (m *Message) TTFT() time.Duration {
	if m.FirstTokenTime.IsZero() || m.APICallTime.IsZero() {
		return 0
	}
	return m.FirstTokenTime.Sub(m.APICallTime)
}
