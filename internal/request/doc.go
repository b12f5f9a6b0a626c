// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package request builds completion endpoint payloads from conversation
// history: user attachments become multi-part content, recorded assistant
// parts are re-serialized with reasoning markers and tool summaries, and
// model ids are resolved through the catalog's reasoning routing.
package request
