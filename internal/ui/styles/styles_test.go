// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

func TestNewTheme_ColorCapableProfile(t *testing.T) {
	th := newTheme(termenv.TrueColor)
	if _, ok := th.ErrorText.GetForeground().(lipgloss.AdaptiveColor); !ok {
		t.Errorf("ErrorText foreground = %#v, want an adaptive color", th.ErrorText.GetForeground())
	}
	if !th.UserLabel.GetBold() {
		t.Error("UserLabel not bold")
	}
}

func TestNewTheme_AsciiFallsBackToMonochrome(t *testing.T) {
	th := newTheme(termenv.Ascii)
	if _, ok := th.ErrorText.GetForeground().(lipgloss.NoColor); !ok {
		t.Errorf("ErrorText foreground = %#v, want no color on an ascii terminal", th.ErrorText.GetForeground())
	}
	// Text attributes still carry the distinctions.
	if !th.Reasoning.GetItalic() {
		t.Error("Reasoning not italic")
	}
	if !th.ImageRef.GetUnderline() {
		t.Error("ImageRef not underlined")
	}
}
