// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package parts

import (
	"sort"
	"strings"

	"github.com/jeranaias/loom-tui/internal/stream"
)

// reasoningNoneSentinel is emitted by some upstream APIs in place of an
// absent reasoning field and must be treated as empty.
const reasoningNoneSentinel = "None"

// =============================================================================
// BUILDER
// =============================================================================

// Builder folds chunks into the merged part sequence. Apply chunks strictly
// in arrival order from a single goroutine.
type Builder struct {
	parts []*Part

	// flatContent is the legacy flattened content view: the concatenation
	// of every content fragment seen, regardless of part boundaries.
	flatContent strings.Builder
}

// NewBuilder creates an empty Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Apply folds one chunk into the part sequence. Chunks the builder has no
// use for (usage, annotations, finish) are ignored here; they belong to
// other observers of the same sequence.
func (b *Builder) Apply(chunk stream.Chunk) {
	switch chunk.Kind {
	case stream.KindContent:
		b.applyContent(chunk.Text)
	case stream.KindReasoning:
		b.applyReasoning(chunk.Text)
	case stream.KindToolCallDelta:
		if chunk.ToolDelta != nil {
			b.applyToolDelta(*chunk.ToolDelta)
		}
	case stream.KindToolResult:
		if chunk.ToolResult != nil {
			b.applyToolResult(*chunk.ToolResult)
		}
	case stream.KindImage:
		if chunk.Image != nil {
			b.applyImage(*chunk.Image)
		}
	}
}

// last returns the final part, or nil when the sequence is empty.
func (b *Builder) last() *Part {
	if len(b.parts) == 0 {
		return nil
	}
	return b.parts[len(b.parts)-1]
}

// applyContent appends a content fragment, merging into a trailing content
// part. Empty fragments are no-ops.
func (b *Builder) applyContent(text string) {
	if text == "" {
		return
	}
	b.flatContent.WriteString(text)

	if p := b.last(); p != nil && p.Kind == PartContent {
		p.Text += text
		return
	}
	b.parts = append(b.parts, &Part{Kind: PartContent, Text: text})
}

// applyReasoning appends a reasoning fragment with the whitespace-prefix
// rule: when the accumulated reasoning so far is all whitespace and a real
// fragment arrives, the filler is replaced instead of kept.
func (b *Builder) applyReasoning(text string) {
	if text == "" || text == reasoningNoneSentinel {
		return
	}

	p := b.last()
	if p == nil || p.Kind != PartReasoning {
		b.parts = append(b.parts, &Part{Kind: PartReasoning, Text: text})
		return
	}

	if strings.TrimSpace(p.Text) == "" && strings.TrimSpace(text) != "" {
		p.Text = text
		return
	}
	p.Text += text
}

// applyToolDelta merges a tool-call fragment into the trailing tool group,
// opening a new group when the trailing part is not a matching open group.
func (b *Builder) applyToolDelta(delta stream.ToolDelta) {
	toolKind := delta.Type
	if toolKind == "" {
		toolKind = DefaultToolKind
	}

	group := b.last()
	if group == nil || group.Kind != PartToolGroup || group.ToolKind != toolKind || group.sealed {
		group = &Part{Kind: PartToolGroup, ToolKind: toolKind}
		b.parts = append(b.parts, group)
	}

	var tool *ToolCall
	for _, tc := range group.Tools {
		if tc.Index == delta.Index {
			tool = tc
			break
		}
	}
	if tool == nil {
		tool = &ToolCall{Index: delta.Index, Kind: toolKind}
		group.Tools = append(group.Tools, tool)
	}

	if tool.ID == "" && delta.ID != "" {
		tool.ID = delta.ID
	}
	if delta.Name != "" {
		tool.Name = delta.Name
	}
	tool.ArgumentsText += delta.Arguments
}

// applyToolResult attaches a result to its originating call by ID. The
// lookup spans every tool group, not just the trailing one: by the time a
// result arrives the originating group is often buried in history.
func (b *Builder) applyToolResult(result stream.ToolResult) {
	tool := b.FindToolByID(result.ID)
	if tool == nil || tool.HasResult {
		return
	}
	tool.Result = result.Result
	tool.HasResult = true
}

// SealToolCalls closes every tool group against further delta merges. Call
// it once a round's tools have executed: the next response stream numbers
// its calls from index zero again, and those fragments must open a fresh
// group rather than append into a finished call at the same index.
func (b *Builder) SealToolCalls() {
	for _, p := range b.parts {
		if p.Kind == PartToolGroup {
			p.sealed = true
		}
	}
}

// applyImage pushes an image into the trailing image part, opening one when
// needed.
func (b *Builder) applyImage(img stream.Image) {
	ref := ImageRef{URL: img.URL, RevisedPrompt: img.RevisedPrompt}
	if p := b.last(); p != nil && p.Kind == PartImage {
		p.Images = append(p.Images, ref)
		return
	}
	b.parts = append(b.parts, &Part{Kind: PartImage, Images: []ImageRef{ref}})
}

// =============================================================================
// DERIVED VIEWS
// =============================================================================

// FindToolByID locates a tool call anywhere in the part history.
func (b *Builder) FindToolByID(id string) *ToolCall {
	if id == "" {
		return nil
	}
	for _, p := range b.parts {
		if p.Kind != PartToolGroup {
			continue
		}
		for _, tc := range p.Tools {
			if tc.ID == id {
				return tc
			}
		}
	}
	return nil
}

// ToolCalls flattens every tool group's calls in part order, then index
// order, for consumers that predate the part model.
func (b *Builder) ToolCalls() []*ToolCall {
	var calls []*ToolCall
	for _, p := range b.parts {
		if p.Kind != PartToolGroup {
			continue
		}
		group := append([]*ToolCall(nil), p.Tools...)
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].Index < group[j].Index
		})
		calls = append(calls, group...)
	}
	return calls
}

// FlatContent returns the legacy flattened content view.
func (b *Builder) FlatContent() string {
	return b.flatContent.String()
}

// Snapshot returns a structurally fresh copy of the part sequence suitable
// for reactive rendering. The builder's own state is untouched.
func (b *Builder) Snapshot() []Part {
	snapshot := make([]Part, len(b.parts))
	for i, p := range b.parts {
		snapshot[i] = clonePart(p)
	}
	return snapshot
}

// Len returns the number of parts.
func (b *Builder) Len() int {
	return len(b.parts)
}
