// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
//
// This package defines the core domain types used throughout the application
// for representing chat conversations and the messages reconstructed from
// completion streams.
//
// # Key Types
//
//   - Conversation: Container for a chat session with messages and metadata
//   - Message: Single message with role, content, parts, tool calls and timing
//   - Attachment: File attached to a user message as a data URL
//   - Role: Message role enumeration (user, assistant, system, tool)
//
// # Usage
//
// Create a new conversation and start a turn:
//
//	conv := model.NewConversation()
//	conv.AddUserMessage("Hello!")
//	msg := model.NewAssistantMessage()
//	// ... stream chunks into msg via the agent loop ...
//	msg.MarkComplete("")
//	conv.AddMessage(msg)
package model
