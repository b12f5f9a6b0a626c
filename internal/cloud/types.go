// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"github.com/jeranaias/loom-tui/internal/stream"
	"github.com/jeranaias/loom-tui/internal/tools"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

// ChatMessage is one entry of the request message array. Content is either
// a plain string or a []ContentPart; the formatter collapses to a string
// whenever no non-text parts are present.
type ChatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`

	// ToolCalls carries the machine-readable tool-call record on
	// assistant turns.
	ToolCalls []ToolCallRecord `json:"tool_calls,omitempty"`

	// ToolCallID and Name link role "tool" messages to their call.
	ToolCallID string `json:"tool_call_id,omitempty"`
	Name       string `json:"name,omitempty"`
}

// ContentPart is one element of a multi-part message content array.
type ContentPart struct {
	Type     string        `json:"type"`
	Text     string        `json:"text,omitempty"`
	ImageURL *ImageURLPart `json:"image_url,omitempty"`
	File     *FilePart     `json:"file,omitempty"`
}

// ImageURLPart references an image by URL (or data URL).
type ImageURLPart struct {
	URL string `json:"url"`
}

// FilePart carries a document attachment as base64 payload.
type FilePart struct {
	Filename string `json:"filename"`
	FileData string `json:"file_data"`
}

// TextPart builds a text content part.
func TextPart(text string) ContentPart {
	return ContentPart{Type: "text", Text: text}
}

// ImagePart builds an image-reference content part.
func ImagePart(url string) ContentPart {
	return ContentPart{Type: "image_url", ImageURL: &ImageURLPart{URL: url}}
}

// ToolCallRecord is the wire form of one completed tool call on an
// assistant turn.
type ToolCallRecord struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function FunctionCall `json:"function"`
}

// FunctionCall is the function half of a tool call record.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ReasoningOptions requests reasoning from capable models.
type ReasoningOptions struct {
	Effort string `json:"effort,omitempty"`
}

// Plugin enables an endpoint-side plugin for the request.
type Plugin struct {
	ID string `json:"id"`
}

// CompletionRequest is the JSON request body for /chat/completions.
type CompletionRequest struct {
	Model       string            `json:"model"`
	Messages    []ChatMessage     `json:"messages"`
	Stream      bool              `json:"stream"`
	Tools       []tools.Schema    `json:"tools,omitempty"`
	ToolChoice  string            `json:"tool_choice,omitempty"`
	Temperature *float64          `json:"temperature,omitempty"`
	TopP        *float64          `json:"top_p,omitempty"`
	Seed        *int              `json:"seed,omitempty"`
	Reasoning   *ReasoningOptions `json:"reasoning,omitempty"`
	Plugins     []Plugin          `json:"plugins,omitempty"`
}

// =============================================================================
// NON-STREAMING RESPONSE
// =============================================================================

// CompletionResponse is the single-object (non-streaming) response shape.
type CompletionResponse struct {
	Choices []struct {
		Message struct {
			Content   string           `json:"content"`
			Reasoning string           `json:"reasoning"`
			ToolCalls []ToolCallRecord `json:"tool_calls"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *stream.Usage `json:"usage"`
}
