// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"os"
	"strings"
	"testing"

	"github.com/jeranaias/loom-tui/internal/model"
	"github.com/jeranaias/loom-tui/internal/parts"
)

func sampleConversation() *model.Conversation {
	conv := model.NewConversationWithModel("test-model")
	conv.AddUserMessage("What's in the file?")

	assistant := model.NewAssistantMessage()
	assistant.SetParts([]parts.Part{
		{Kind: parts.PartReasoning, Text: "need to read it first"},
		{Kind: parts.PartToolGroup, Tools: []*parts.ToolCall{
			{ID: "c1", Name: "read_file", ArgumentsText: `{"path":"a.txt"}`, Result: "hello", HasResult: true},
		}},
		{Kind: parts.PartContent, Text: "The file says hello."},
	}, nil, "The file says hello.")
	assistant.MarkComplete("")
	conv.AddMessage(assistant)
	return conv
}

func TestMarkdown_RendersParts(t *testing.T) {
	data, err := Markdown(sampleConversation())
	if err != nil {
		t.Fatalf("Markdown() error = %v", err)
	}
	out := string(data)

	for _, want := range []string{
		"## You",
		"What's in the file?",
		"> _need to read it first_",
		"**read_file**",
		"`hello`",
		"The file says hello.",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestMarkdown_EmptyConversation(t *testing.T) {
	if _, err := Markdown(model.NewConversation()); err == nil {
		t.Error("Markdown() on empty conversation should fail")
	}
}

func TestWriteMarkdown(t *testing.T) {
	dir := t.TempDir()
	path, err := WriteMarkdown(sampleConversation(), dir)
	if err != nil {
		t.Fatalf("WriteMarkdown() error = %v", err)
	}
	if !strings.HasSuffix(path, ".md") {
		t.Errorf("path = %q", path)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("exported file missing: %v", err)
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Hello World!", "hello-world"},
		{"///", "conversation"},
		{"A_B-C 1", "a-b-c-1"},
	}
	for _, tt := range tests {
		if got := sanitizeFilename(tt.in); got != tt.want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
