// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the chat view component for the TUI.
package chat

import (
	"context"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"github.com/jeranaias/loom-tui/internal/agent"
	"github.com/jeranaias/loom-tui/internal/config"
	"github.com/jeranaias/loom-tui/internal/model"
	"github.com/jeranaias/loom-tui/internal/parts"
	"github.com/jeranaias/loom-tui/internal/ui/styles"
)

// =============================================================================
// CHAT STATE
// =============================================================================

// State represents the current state of the chat view.
type State int

const (
	StateIdle State = iota
	StateStreaming
)

// ConversationStore is the slice of the storage layer the chat view needs.
// *storage.Store satisfies it.
type ConversationStore interface {
	SaveConversation(conv *model.Conversation) error
}

// Deps are the collaborators the chat view is built on.
type Deps struct {
	Config    *config.Config
	Store     ConversationStore
	NewRunner func(onUpdate func([]parts.Part)) *agent.Runner

	// Resume, when set, is a previously stored conversation to continue
	// instead of starting a fresh one.
	Resume *model.Conversation
}

// Model is the Bubble Tea model for the chat view.
type Model struct {
	deps  Deps
	theme *styles.Theme

	conversation *model.Conversation
	selected     string // model id

	// In-flight turn state.
	state      State
	liveParts  []parts.Part
	turnCancel context.CancelFunc
	updates    chan []parts.Part
	turnDone   chan turnDoneMsg

	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model
	markdown *glamour.TermRenderer

	width  int
	height int
	err    error
}

// New creates the chat view.
func New(deps Deps) *Model {
	theme := styles.NewTheme()

	ti := textinput.New()
	ti.Placeholder = "Type a message..."
	ti.Prompt = "> "
	ti.PromptStyle = theme.InputPrompt
	ti.CharLimit = 0
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Line

	vp := viewport.New(80, 20)

	md, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(78),
	)
	if err != nil {
		md = nil
	}

	conversation := deps.Resume
	selected := deps.Config.DefaultModel
	if conversation == nil {
		conversation = model.NewConversationWithModel(selected)
	} else if conversation.Model != "" {
		selected = conversation.Model
	}

	return &Model{
		deps:         deps,
		theme:        theme,
		conversation: conversation,
		selected:     selected,
		viewport:     vp,
		input:        ti,
		spinner:      sp,
		markdown:     md,
		updates:      make(chan []parts.Part, 8),
		turnDone:     make(chan turnDoneMsg, 1),
	}
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return textinput.Blink
}
