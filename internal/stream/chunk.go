// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import "encoding/json"

// =============================================================================
// CHUNK KINDS
// =============================================================================

// Kind discriminates the variants of a decoded stream chunk.
type Kind string

const (
	KindContent       Kind = "content"
	KindReasoning     Kind = "reasoning"
	KindToolCallDelta Kind = "tool_call_delta"
	KindToolResult    Kind = "tool_result"
	KindUsage         Kind = "usage"
	KindAnnotations   Kind = "annotations"
	KindImage         Kind = "image"
	KindError         Kind = "error"
	KindFinish        Kind = "finish"
)

// =============================================================================
// CHUNK TYPE
// =============================================================================

// Chunk is one decoded unit from the streaming protocol. Exactly one set of
// fields is populated, selected by Kind.
type Chunk struct {
	Kind Kind

	// Text fragment for content and reasoning chunks.
	Text string

	// ToolDelta for tool_call_delta chunks.
	ToolDelta *ToolDelta

	// ToolResult for tool_result chunks (synthesized locally by the agent
	// loop, never sent by the endpoint).
	ToolResult *ToolResult

	// Usage for usage chunks.
	Usage *Usage

	// Annotations for annotation chunks, kept opaque.
	Annotations []json.RawMessage

	// Image for image chunks. The URL is already normalized.
	Image *Image

	// Err for error chunks.
	Err *APIErrorDetail

	// FinishReason for finish chunks ("stop", "tool_calls", ...).
	FinishReason string
}

// ToolDelta is one fragment of an accumulating tool call. Index is the
// stream-local ordinal the fragments are keyed by; the other fields are
// populated only when the frame carried them.
type ToolDelta struct {
	Index     int
	ID        string
	Type      string
	Name      string
	Arguments string
}

// ToolResult carries the outcome of a locally executed tool call, matched
// back to its originating call by ID.
type ToolResult struct {
	ID     string
	Result any
}

// Usage carries token counters reported by the endpoint.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Image is one generated image reference.
type Image struct {
	URL           string
	RevisedPrompt string
}

// APIErrorDetail is the structured error object some endpoints embed in a
// frame instead of failing the HTTP request.
type APIErrorDetail struct {
	Code    any    `json:"code,omitempty"`
	Message string `json:"message"`
	Type    string `json:"type,omitempty"`
}

// =============================================================================
// WIRE FORMAT
// =============================================================================

// frame mirrors the JSON object carried by a single data frame.
type frame struct {
	Choices []struct {
		Delta struct {
			Content   *string         `json:"content"`
			Reasoning *string         `json:"reasoning"`
			ToolCalls []wireToolCall  `json:"tool_calls"`
			Images    []wireImage     `json:"images"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
		Index        int     `json:"index"`
	} `json:"choices"`
	Usage       *Usage            `json:"usage"`
	Annotations []json.RawMessage `json:"annotations"`
	Error       *APIErrorDetail   `json:"error"`
}

// wireToolCall is the tool-call fragment shape inside a delta.
type wireToolCall struct {
	Index    int    `json:"index"`
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

// wireImage tolerates the two nestings upstream APIs use for generated
// images: a bare {url} object and an {image_url: {url}} wrapper.
type wireImage struct {
	Type          string `json:"type"`
	URL           string `json:"url"`
	RevisedPrompt string `json:"revised_prompt"`
	ImageURL      *struct {
		URL string `json:"url"`
	} `json:"image_url"`
}

// normalizedURL returns the image URL regardless of which nesting was used.
func (w wireImage) normalizedURL() string {
	if w.ImageURL != nil && w.ImageURL.URL != "" {
		return w.ImageURL.URL
	}
	return w.URL
}
