// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package styles provides the visual styling system for the loom TUI.
package styles

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// =============================================================================
// COLOR PALETTE
// =============================================================================

var (
	Purple  = lipgloss.AdaptiveColor{Light: "#7C3AED", Dark: "#A78BFA"}
	Cyan    = lipgloss.AdaptiveColor{Light: "#0891B2", Dark: "#22D3EE"}
	Emerald = lipgloss.AdaptiveColor{Light: "#059669", Dark: "#34D399"}
	Rose    = lipgloss.AdaptiveColor{Light: "#E11D48", Dark: "#FB7185"}
	Amber   = lipgloss.AdaptiveColor{Light: "#D97706", Dark: "#FBBF24"}

	TextPrimary   = lipgloss.AdaptiveColor{Light: "#1F2937", Dark: "#CDD6F4"}
	TextSecondary = lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#A6ADC8"}
	TextMuted     = lipgloss.AdaptiveColor{Light: "#9CA3AF", Dark: "#6C7086"}

	BorderDim = lipgloss.AdaptiveColor{Light: "#D4D4D4", Dark: "#45475A"}
)

// =============================================================================
// THEME
// =============================================================================

// Theme holds the styled components for the chat view.
type Theme struct {
	Header    lipgloss.Style
	StatusBar lipgloss.Style

	UserLabel      lipgloss.Style
	AssistantLabel lipgloss.Style
	ToolLabel      lipgloss.Style

	Reasoning   lipgloss.Style
	ToolPending lipgloss.Style
	ToolDone    lipgloss.Style
	ImageRef    lipgloss.Style
	ErrorText   lipgloss.Style
	Muted       lipgloss.Style

	InputPrompt lipgloss.Style
}

// NewTheme builds the theme, detecting the terminal's color capability.
// Terminals that report no color support get a monochrome theme driven by
// text attributes alone.
func NewTheme() *Theme {
	return newTheme(termenv.ColorProfile())
}

func newTheme(profile termenv.Profile) *Theme {
	if profile == termenv.Ascii {
		return monochromeTheme()
	}
	return &Theme{
		Header: lipgloss.NewStyle().
			Bold(true).
			Foreground(Purple).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(BorderDim),

		StatusBar: lipgloss.NewStyle().
			Foreground(TextSecondary).
			BorderStyle(lipgloss.NormalBorder()).
			BorderTop(true).
			BorderForeground(BorderDim),

		UserLabel:      lipgloss.NewStyle().Bold(true).Foreground(Cyan),
		AssistantLabel: lipgloss.NewStyle().Bold(true).Foreground(Purple),
		ToolLabel:      lipgloss.NewStyle().Bold(true).Foreground(Amber),

		Reasoning:   lipgloss.NewStyle().Foreground(TextMuted).Italic(true),
		ToolPending: lipgloss.NewStyle().Foreground(Amber),
		ToolDone:    lipgloss.NewStyle().Foreground(Emerald),
		ImageRef:    lipgloss.NewStyle().Foreground(Cyan).Underline(true),
		ErrorText:   lipgloss.NewStyle().Foreground(Rose),
		Muted:       lipgloss.NewStyle().Foreground(TextMuted),

		InputPrompt: lipgloss.NewStyle().Bold(true).Foreground(Emerald),
	}
}

func monochromeTheme() *Theme {
	return &Theme{
		Header: lipgloss.NewStyle().
			Bold(true).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true),

		StatusBar: lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderTop(true),

		UserLabel:      lipgloss.NewStyle().Bold(true),
		AssistantLabel: lipgloss.NewStyle().Bold(true),
		ToolLabel:      lipgloss.NewStyle().Bold(true),

		Reasoning:   lipgloss.NewStyle().Italic(true),
		ToolPending: lipgloss.NewStyle(),
		ToolDone:    lipgloss.NewStyle(),
		ImageRef:    lipgloss.NewStyle().Underline(true),
		ErrorText:   lipgloss.NewStyle().Bold(true),
		Muted:       lipgloss.NewStyle().Faint(true),

		InputPrompt: lipgloss.NewStyle().Bold(true),
	}
}
