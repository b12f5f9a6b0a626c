// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export writes conversations to files for sharing. The Markdown
// form renders reconstructed parts (reasoning, tool calls, images) as
// readable sections; the JSON form is the full message records.
package export

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/jeranaias/loom-tui/internal/model"
	"github.com/jeranaias/loom-tui/internal/parts"
	"github.com/jeranaias/loom-tui/internal/util"
)

// =============================================================================
// FILE EXPORT
// =============================================================================

// WriteMarkdown exports the conversation as Markdown into dir and returns
// the written path.
func WriteMarkdown(conv *model.Conversation, dir string) (string, error) {
	data, err := Markdown(conv)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, exportFilename(conv, "md"))
	if err := util.AtomicWriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// WriteJSON exports the full conversation record as JSON into dir.
func WriteJSON(conv *model.Conversation, dir string) (string, error) {
	data, err := json.MarshalIndent(conv, "", "  ")
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, exportFilename(conv, "json"))
	if err := util.AtomicWriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func exportFilename(conv *model.Conversation, ext string) string {
	return fmt.Sprintf("%s-%s.%s",
		conv.CreatedAt.Format("2006-01-02"), sanitizeFilename(conv.GetTitle()), ext)
}

// sanitizeFilename keeps only characters safe across filesystems.
func sanitizeFilename(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ', r == '-', r == '_':
			b.WriteRune('-')
		}
	}
	name := strings.Trim(b.String(), "-")
	if name == "" {
		name = "conversation"
	}
	if len(name) > 60 {
		name = name[:60]
	}
	return name
}

// =============================================================================
// MARKDOWN RENDERING
// =============================================================================

// Markdown renders the conversation as a Markdown document.
func Markdown(conv *model.Conversation) ([]byte, error) {
	if conv == nil || len(conv.Messages) == 0 {
		return nil, fmt.Errorf("conversation is empty")
	}

	var sb strings.Builder
	sb.WriteString("---\n")
	fmt.Fprintf(&sb, "title: %s\n", conv.GetTitle())
	fmt.Fprintf(&sb, "model: %s\n", conv.Model)
	fmt.Fprintf(&sb, "date: %s\n", conv.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(&sb, "messages: %d\n", len(conv.Messages))
	fmt.Fprintf(&sb, "exported: %s\n", time.Now().Format(time.RFC3339))
	sb.WriteString("---\n\n")

	for _, msg := range conv.Messages {
		switch msg.Role {
		case model.RoleUser:
			sb.WriteString("## You\n\n")
			sb.WriteString(msg.Content)
			sb.WriteString("\n\n")
		case model.RoleAssistant:
			sb.WriteString("## Assistant\n\n")
			writeAssistant(&sb, msg)
		}
	}

	return []byte(sb.String()), nil
}

func writeAssistant(sb *strings.Builder, msg *model.Message) {
	if len(msg.Parts) == 0 {
		sb.WriteString(msg.Content)
		sb.WriteString("\n\n")
		return
	}

	for i := range msg.Parts {
		p := &msg.Parts[i]
		switch p.Kind {
		case parts.PartReasoning:
			sb.WriteString("> _")
			sb.WriteString(strings.ReplaceAll(strings.TrimSpace(p.Text), "\n", "\n> "))
			sb.WriteString("_\n\n")
		case parts.PartContent:
			sb.WriteString(p.Text)
			sb.WriteString("\n\n")
		case parts.PartToolGroup:
			for _, tc := range p.Tools {
				fmt.Fprintf(sb, "- **%s**(`%s`)", tc.Name, strings.TrimSpace(tc.ArgumentsText))
				if tc.HasResult {
					fmt.Fprintf(sb, " -> %s", formatResult(tc.Result))
				}
				sb.WriteString("\n")
			}
			sb.WriteString("\n")
		case parts.PartImage:
			for _, img := range p.Images {
				fmt.Fprintf(sb, "![image](%s)\n\n", img.URL)
			}
		}
	}

	if msg.ReasoningDurationMs > 0 {
		fmt.Fprintf(sb, "_reasoned for %s_\n\n", formatDuration(msg.ReasoningDurationMs))
	}
}

func formatResult(result any) string {
	s, ok := result.(string)
	if !ok {
		data, err := json.Marshal(result)
		if err != nil {
			return fmt.Sprintf("%v", result)
		}
		s = string(data)
	}
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) > 120 {
		s = s[:120] + "..."
	}
	return "`" + s + "`"
}

func formatDuration(ms int64) string {
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	return fmt.Sprintf("%.1fs", float64(ms)/1000)
}
