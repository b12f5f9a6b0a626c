// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/jeranaias/loom-tui/internal/model"
	"github.com/jeranaias/loom-tui/internal/parts"
)

// chromeHeight is the vertical space taken by header, input, and status
// bar around the transcript viewport.
const chromeHeight = 6

// View implements tea.Model.
func (m *Model) View() string {
	var b strings.Builder

	b.WriteString(m.theme.Header.Width(m.width).Render("loom — " + m.conversation.GetTitle()))
	b.WriteString("\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")

	if m.state == StateStreaming {
		b.WriteString(m.spinner.View() + " " + m.theme.Muted.Render("streaming (esc to cancel)"))
	} else {
		b.WriteString(m.input.View())
	}
	b.WriteString("\n")
	b.WriteString(m.statusBar())

	return b.String()
}

// statusBar renders the bottom line: model id, token usage, and timing for
// the latest assistant turn.
func (m *Model) statusBar() string {
	left := m.selected

	right := ""
	if last := m.conversation.GetLastAssistantMessage(); last != nil && last.Complete {
		if last.TotalTokens > 0 {
			right = fmt.Sprintf("%d tok", last.TotalTokens)
		}
		if ttft := last.TTFT(); ttft > 0 {
			if right != "" {
				right += " | "
			}
			right += fmt.Sprintf("ttft %dms", ttft.Milliseconds())
		}
	}
	if m.err != nil {
		right = m.theme.ErrorText.Render(runewidth.Truncate(m.err.Error(), 48, "..."))
	}

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	return m.theme.StatusBar.Width(m.width).Render(left + strings.Repeat(" ", gap) + right)
}

// =============================================================================
// TRANSCRIPT RENDERING
// =============================================================================

// renderTranscript renders all conversation messages plus the in-flight
// part snapshot.
func (m *Model) renderTranscript() string {
	var sections []string

	for _, msg := range m.conversation.Messages {
		switch msg.Role {
		case model.RoleUser:
			sections = append(sections,
				m.theme.UserLabel.Render("you")+"\n"+msg.Content)
		case model.RoleAssistant:
			sections = append(sections,
				m.theme.AssistantLabel.Render("assistant")+"\n"+m.renderParts(msg.Parts, msg.Content))
		case model.RoleTool:
			// Tool outputs already appear inside the assistant's
			// tool groups; skip the raw messages.
		}
	}

	if m.state == StateStreaming {
		sections = append(sections,
			m.theme.AssistantLabel.Render("assistant")+"\n"+m.renderParts(m.liveParts, ""))
	}

	return strings.Join(sections, "\n\n")
}

// renderParts renders a part sequence. The flat content is the fallback
// for messages recorded before parts existed.
func (m *Model) renderParts(ps []parts.Part, flat string) string {
	if len(ps) == 0 {
		return m.renderMarkdown(flat)
	}

	var blocks []string
	for i := range ps {
		p := &ps[i]
		switch p.Kind {
		case parts.PartContent:
			blocks = append(blocks, m.renderMarkdown(p.Text))
		case parts.PartReasoning:
			blocks = append(blocks, m.theme.Reasoning.Render(p.Text))
		case parts.PartToolGroup:
			blocks = append(blocks, m.renderToolGroup(p))
		case parts.PartImage:
			for _, img := range p.Images {
				blocks = append(blocks, m.theme.ImageRef.Render("[image] "+img.URL))
			}
		}
	}
	return strings.Join(blocks, "\n")
}

// renderToolGroup renders one tool group with per-call status.
func (m *Model) renderToolGroup(p *parts.Part) string {
	var lines []string
	for _, tc := range p.Tools {
		if tc.HasResult {
			lines = append(lines, m.theme.ToolDone.Render("[done] "+tc.Name))
		} else {
			lines = append(lines, m.theme.ToolPending.Render("[....] "+tc.Name))
		}
	}
	return m.theme.ToolLabel.Render("tools") + "\n" + strings.Join(lines, "\n")
}

// renderMarkdown renders markdown content for terminal display, falling
// back to the raw text when the renderer is unavailable.
func (m *Model) renderMarkdown(content string) string {
	if m.markdown == nil || content == "" {
		return content
	}
	out, err := m.markdown.Render(content)
	if err != nil {
		return content
	}
	return strings.TrimRight(out, "\n")
}
