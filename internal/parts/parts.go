// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package parts

// =============================================================================
// PART KINDS
// =============================================================================

// PartKind identifies the variant of a Part.
type PartKind string

const (
	PartContent   PartKind = "content"
	PartReasoning PartKind = "reasoning"
	PartToolGroup PartKind = "tool_group"
	PartImage     PartKind = "image"
)

// DefaultToolKind is assumed when a tool delta carries no type.
const DefaultToolKind = "function"

// =============================================================================
// PART TYPE
// =============================================================================

// Part is one persistent, ordered unit of a reconstructed message. The
// populated fields depend on Kind: Text for content and reasoning, ToolKind
// and Tools for tool groups, Images for image parts.
type Part struct {
	Kind PartKind `json:"kind"`

	Text string `json:"text,omitempty"`

	ToolKind string      `json:"tool_kind,omitempty"`
	Tools    []*ToolCall `json:"tools,omitempty"`

	Images []ImageRef `json:"images,omitempty"`

	// sealed marks a tool group whose round has finished executing. Delta
	// indices restart at zero with every response stream, so a sealed group
	// never accepts further fragments.
	sealed bool
}

// ImageRef is one generated image reference inside an image part.
type ImageRef struct {
	URL           string `json:"url"`
	RevisedPrompt string `json:"revised_prompt,omitempty"`
}

// =============================================================================
// TOOL CALL TYPE
// =============================================================================

// ToolCall is an accumulating tool invocation. Index is the stream-local
// ordinal used as the stable key while fragments arrive; ID is assigned once
// by the first fragment that carries it. ArgumentsText only ever grows.
type ToolCall struct {
	Index         int    `json:"index"`
	ID            string `json:"id,omitempty"`
	Kind          string `json:"kind"`
	Name          string `json:"name"`
	ArgumentsText string `json:"arguments_text"`

	Result    any  `json:"result,omitempty"`
	HasResult bool `json:"has_result,omitempty"`
}

// Clone returns a copy of the tool call. Result is shared, not deep-copied;
// results are treated as immutable once attached.
func (tc *ToolCall) Clone() *ToolCall {
	clone := *tc
	return &clone
}

// clonePart returns a structurally fresh copy of a part: new slice backing
// for Tools and Images so reactive consumers can diff against prior
// snapshots safely.
func clonePart(p *Part) Part {
	clone := *p
	if len(p.Tools) > 0 {
		clone.Tools = make([]*ToolCall, len(p.Tools))
		for i, tc := range p.Tools {
			clone.Tools[i] = tc.Clone()
		}
	}
	if len(p.Images) > 0 {
		clone.Images = append([]ImageRef(nil), p.Images...)
	}
	return clone
}

// ReconcileFlat repairs a persisted part sequence against its flat content.
// Some image-generation models report their text only through the flat
// content field, never as a content delta, so older records can hold images
// with no content part; the flat text is promoted to a content part at the
// front of the sequence. Sequences that already carry a content part, or no
// image at all, come back unchanged.
func ReconcileFlat(ps []Part, flat string) []Part {
	if flat == "" {
		return ps
	}
	hasImage := false
	for i := range ps {
		switch ps[i].Kind {
		case PartContent:
			return ps
		case PartImage:
			hasImage = true
		}
	}
	if !hasImage {
		return ps
	}
	return append([]Part{{Kind: PartContent, Text: flat}}, ps...)
}
