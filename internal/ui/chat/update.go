// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/loom-tui/internal/export"
)

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = msg.Width
		m.viewport.Height = msg.Height - chromeHeight
		m.input.Width = msg.Width - 4
		m.refreshViewport()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case spinner.TickMsg:
		if m.state != StateStreaming {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case partsUpdateMsg:
		m.liveParts = msg.snapshot
		m.refreshViewport()
		return m, m.waitForUpdate()

	case ConfigReloadedMsg:
		m.deps.Config = msg.Config
		if m.state == StateIdle {
			m.selected = msg.Config.DefaultModel
		}
		return m, nil

	case turnDoneMsg:
		m.state = StateIdle
		m.turnCancel = nil
		m.liveParts = nil
		m.err = msg.err
		m.refreshViewport()
		if m.deps.Store != nil {
			if err := m.deps.Store.SaveConversation(m.conversation); err != nil {
				m.err = err
			}
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// handleKey routes keyboard input by state.
func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.cancelTurn()
		return m, tea.Quit

	case "esc":
		if m.state == StateStreaming {
			m.cancelTurn()
		}
		return m, nil

	case "enter":
		if m.state == StateStreaming {
			return m, nil
		}
		input := strings.TrimSpace(m.input.Value())
		if input == "" {
			return m, nil
		}
		m.input.Reset()
		cmd := m.startTurn(input)
		m.refreshViewport()
		return m, cmd

	case "ctrl+e":
		if m.state == StateIdle && !m.conversation.IsEmpty() {
			_, m.err = export.WriteMarkdown(m.conversation, ".")
		}
		return m, nil

	case "pgup":
		m.viewport.HalfViewUp()
		return m, nil

	case "pgdown":
		m.viewport.HalfViewDown()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// refreshViewport re-renders the transcript and keeps the view pinned to
// the bottom while streaming.
func (m *Model) refreshViewport() {
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
}
