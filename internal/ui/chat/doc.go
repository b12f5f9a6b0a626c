// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat is the interactive chat view: a transcript viewport fed by
// live part snapshots from the agent loop, a text input, and a status bar.
// Streaming updates arrive over a channel so the turn goroutine never
// touches Bubble Tea state directly.
package chat
