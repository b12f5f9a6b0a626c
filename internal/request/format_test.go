// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package request

import (
	"strings"
	"testing"

	"github.com/jeranaias/loom-tui/internal/cloud"
	"github.com/jeranaias/loom-tui/internal/config"
	"github.com/jeranaias/loom-tui/internal/model"
	"github.com/jeranaias/loom-tui/internal/parts"
	"github.com/jeranaias/loom-tui/internal/tools"
)

func testFormatter(specs ...config.ModelSpec) *Formatter {
	registry := tools.NewRegistry()
	registry.Register(&tools.Tool{
		Name:        "get_time",
		Description: "Returns the current time.",
		Parameters:  tools.ObjectParameters(nil),
	})
	return NewFormatter(config.NewCatalog(specs), registry)
}

func TestBuild_SystemPromptFirst(t *testing.T) {
	f := testFormatter()
	req := f.Build([]*model.Message{
		model.NewUserMessage("hello"),
	}, Options{Model: "m", SystemPrompt: "be brief"})

	if len(req.Messages) != 2 {
		t.Fatalf("len(Messages) = %d, want 2", len(req.Messages))
	}
	if req.Messages[0].Role != "system" || req.Messages[0].Content != "be brief" {
		t.Errorf("first message = %+v, want system prompt", req.Messages[0])
	}
	if req.Messages[1].Content != "hello" {
		t.Errorf("user content = %v", req.Messages[1].Content)
	}
}

func TestBuild_UserAttachments(t *testing.T) {
	f := testFormatter()
	msg := model.NewUserMessage("look at these",
		model.Attachment{Kind: model.AttachmentImage, Name: "cat.png", DataURL: "data:image/png;base64,AAAA"},
		model.Attachment{Kind: model.AttachmentDocument, Name: "notes.pdf", DataURL: "data:application/pdf;base64,BBBB"},
	)

	req := f.Build([]*model.Message{msg}, Options{Model: "m"})
	content, ok := req.Messages[0].Content.([]cloud.ContentPart)
	if !ok {
		t.Fatalf("Content is %T, want []cloud.ContentPart", req.Messages[0].Content)
	}
	if len(content) != 3 {
		t.Fatalf("len(content) = %d, want 3", len(content))
	}
	if content[0].Type != "text" || content[0].Text != "look at these" {
		t.Errorf("part 0 = %+v", content[0])
	}
	if content[1].Type != "image_url" || content[1].ImageURL.URL != "data:image/png;base64,AAAA" {
		t.Errorf("image part = %+v, want data URL passed through verbatim", content[1])
	}
	if content[2].Type != "file" || content[2].File.Filename != "notes.pdf" || content[2].File.FileData != "BBBB" {
		t.Errorf("file part = %+v, want stripped base64 payload", content[2])
	}
}

func TestBuild_AssistantPartsCollapseToString(t *testing.T) {
	f := testFormatter()
	msg := model.NewAssistantMessage()
	msg.Parts = []parts.Part{
		{Kind: parts.PartReasoning, Text: "thinking about it"},
		{Kind: parts.PartContent, Text: "the answer is 4"},
	}
	msg.MarkComplete("")

	req := f.Build([]*model.Message{msg}, Options{Model: "m"})
	content, ok := req.Messages[0].Content.(string)
	if !ok {
		t.Fatalf("Content is %T, want collapsed string", req.Messages[0].Content)
	}
	if !strings.Contains(content, ReasoningOpenMarker) || !strings.Contains(content, ReasoningCloseMarker) {
		t.Errorf("content missing reasoning markers: %q", content)
	}
	if !strings.Contains(content, "the answer is 4") {
		t.Errorf("content missing answer text: %q", content)
	}
}

func TestBuild_AssistantImageKeepsPartArray(t *testing.T) {
	f := testFormatter()
	msg := model.NewAssistantMessage()
	msg.Parts = []parts.Part{
		{Kind: parts.PartContent, Text: "here you go"},
		{Kind: parts.PartImage, Images: []parts.ImageRef{{URL: "https://img.example/1.png"}}},
	}
	msg.MarkComplete("")

	req := f.Build([]*model.Message{msg}, Options{Model: "m"})
	content, ok := req.Messages[0].Content.([]cloud.ContentPart)
	if !ok {
		t.Fatalf("Content is %T, want part array when images present", req.Messages[0].Content)
	}
	if content[1].Type != "image_url" {
		t.Errorf("part 1 type = %q", content[1].Type)
	}
}

func TestBuild_ToolGroupSummaryAndRecords(t *testing.T) {
	f := testFormatter()
	msg := model.NewAssistantMessage()
	done := &parts.ToolCall{ID: "c1", Name: "get_time", ArgumentsText: `{"tz":"UTC"}`, HasResult: true}
	pending := &parts.ToolCall{ID: "c2", Name: "read_file"}
	msg.Parts = []parts.Part{
		{Kind: parts.PartToolGroup, ToolKind: "function", Tools: []*parts.ToolCall{done, pending}},
	}
	msg.ToolCalls = []*parts.ToolCall{done, pending}
	msg.MarkComplete("")

	req := f.Build([]*model.Message{msg}, Options{Model: "m"})
	content := req.Messages[0].Content.(string)
	if !strings.Contains(content, "get_time (completed)") || !strings.Contains(content, "read_file (pending)") {
		t.Errorf("tool summary = %q", content)
	}
	if strings.Contains(content, `"tz"`) {
		t.Errorf("summary leaked raw arguments: %q", content)
	}

	records := req.Messages[0].ToolCalls
	if len(records) != 2 {
		t.Fatalf("len(ToolCalls) = %d, want 2", len(records))
	}
	if records[0].Function.Arguments != `{"tz":"UTC"}` {
		t.Errorf("record 0 arguments = %q", records[0].Function.Arguments)
	}
	if records[1].Function.Arguments != "{}" {
		t.Errorf("record 1 arguments = %q, want empty object fallback", records[1].Function.Arguments)
	}
	if records[0].Type != "function" {
		t.Errorf("record 0 type = %q", records[0].Type)
	}
}

func TestBuild_ToolMessage(t *testing.T) {
	f := testFormatter()
	req := f.Build([]*model.Message{
		model.NewToolMessage("call-9", "get_time", `{"time":"12:00"}`),
	}, Options{Model: "m"})

	got := req.Messages[0]
	if got.Role != "tool" || got.ToolCallID != "call-9" || got.Name != "get_time" {
		t.Errorf("tool message = %+v", got)
	}
}

func TestBuild_ReasoningRouting(t *testing.T) {
	f := testFormatter(config.ModelSpec{
		ID:        "fast-model",
		Tools:     true,
		Reasoning: config.ReasoningCapability{Supported: true, RouteTo: "think-model"},
	})

	tests := []struct {
		name      string
		effort    string
		wantModel string
	}{
		{"no effort keeps selection", "", "fast-model"},
		{"effort routes", "high", "think-model"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := f.Build(nil, Options{Model: "fast-model", ReasoningEffort: tt.effort})
			if req.Model != tt.wantModel {
				t.Errorf("Model = %q, want %q", req.Model, tt.wantModel)
			}
			if tt.effort != "" && (req.Reasoning == nil || req.Reasoning.Effort != tt.effort) {
				t.Errorf("Reasoning = %+v", req.Reasoning)
			}
		})
	}
}

func TestBuild_ToolSchemas(t *testing.T) {
	f := testFormatter(config.ModelSpec{ID: "no-tools-model", Tools: false})

	req := f.Build(nil, Options{Model: "m", ToolNames: []string{"get_time"}})
	if len(req.Tools) != 1 || req.Tools[0].Function.Name != "get_time" {
		t.Errorf("Tools = %+v, want get_time schema", req.Tools)
	}

	req = f.Build(nil, Options{Model: "no-tools-model", ToolNames: []string{"get_time"}})
	if len(req.Tools) != 0 {
		t.Errorf("Tools = %+v, want none for tool-incapable model", req.Tools)
	}

	req = f.Build(nil, Options{Model: "m"})
	if len(req.Tools) != 0 {
		t.Errorf("Tools = %+v, want none when no tools enabled", req.Tools)
	}
}

func TestSplitReasoning_RoundTrip(t *testing.T) {
	f := testFormatter()
	msg := model.NewAssistantMessage()
	msg.Parts = []parts.Part{
		{Kind: parts.PartReasoning, Text: "step one, step two"},
		{Kind: parts.PartContent, Text: "final answer"},
	}
	msg.MarkComplete("")

	req := f.Build([]*model.Message{msg}, Options{Model: "m"})
	serialized := req.Messages[0].Content.(string)

	reasoning, content := SplitReasoning(serialized)
	if reasoning != "step one, step two" {
		t.Errorf("reasoning = %q", reasoning)
	}
	if content != "final answer" {
		t.Errorf("content = %q", content)
	}
}
