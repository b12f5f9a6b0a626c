// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage persists conversations in sqlite. Messages round-trip
// through their JSON form, so reconstructed parts, tool calls, and timings
// survive a save/load cycle unchanged.
package storage
