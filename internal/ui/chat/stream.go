// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/loom-tui/internal/config"
	"github.com/jeranaias/loom-tui/internal/model"
	"github.com/jeranaias/loom-tui/internal/parts"
	"github.com/jeranaias/loom-tui/internal/request"
)

// =============================================================================
// TURN MESSAGES
// =============================================================================

// ConfigReloadedMsg delivers a freshly loaded config from the file
// watcher. The in-flight turn, if any, keeps its original settings.
type ConfigReloadedMsg struct {
	Config *config.Config
}

// partsUpdateMsg carries a fresh part snapshot from the running turn.
type partsUpdateMsg struct {
	snapshot []parts.Part
}

// turnDoneMsg signals the turn finished, however it ended.
type turnDoneMsg struct {
	msg *model.Message
	err error
}

// =============================================================================
// TURN LIFECYCLE
// =============================================================================

// startTurn launches the agent loop for the submitted input and returns the
// commands that pump its updates back into the program.
func (m *Model) startTurn(input string) tea.Cmd {
	m.conversation.AddUserMessage(input)
	m.state = StateStreaming
	m.liveParts = nil

	ctx, cancel := context.WithCancel(context.Background())
	m.turnCancel = cancel

	runner := m.deps.NewRunner(func(snapshot []parts.Part) {
		// Drop stale frames rather than block the turn goroutine.
		select {
		case m.updates <- snapshot:
		default:
		}
	})

	cfg := m.deps.Config
	opts := request.Options{
		Model:           m.selected,
		ReasoningEffort: cfg.ReasoningEffort,
		SystemPrompt:    cfg.SystemPrompt,
		Temperature:     cfg.Sampling.Temperature,
		TopP:            cfg.Sampling.TopP,
		Seed:            cfg.Sampling.Seed,
	}
	if cfg.Tools.Enabled {
		opts.ToolNames = cfg.Tools.Allowed
	}

	conv := m.conversation
	done := m.turnDone
	go func() {
		msg, err := runner.Run(ctx, conv, opts)
		cancel()
		done <- turnDoneMsg{msg: msg, err: err}
	}()

	return tea.Batch(m.spinner.Tick, m.waitForUpdate(), m.waitForDone())
}

// waitForUpdate blocks on the snapshot channel until the next frame.
func (m *Model) waitForUpdate() tea.Cmd {
	return func() tea.Msg {
		return partsUpdateMsg{snapshot: <-m.updates}
	}
}

// waitForDone blocks until the turn goroutine finishes.
func (m *Model) waitForDone() tea.Cmd {
	return func() tea.Msg {
		return <-m.turnDone
	}
}

// cancelTurn requests cooperative cancellation of the in-flight turn.
func (m *Model) cancelTurn() {
	if m.turnCancel != nil {
		m.turnCancel()
	}
}
