// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package parts folds a stream of completion chunks into the ordered,
// merged part sequence that makes up a rendered assistant message.
//
// The central invariant: after every applied chunk, the part sequence never
// contains two adjacent parts of the same mergeable kind. Adjacent content
// parts are always merged, adjacent image parts are always merged, and
// adjacent tool groups are merged when their tool kind matches.
//
// # Key Types
//
//   - Builder: the incremental state machine (Apply one chunk at a time)
//   - Part: one persistent unit of the reconstructed message
//   - ToolCall: an accumulating tool invocation keyed by stream index
//   - TimingTracker: passive observer deriving latency facts from the same
//     chunk sequence
//
// The builder is single-threaded on purpose. Chunk order is a correctness
// property, so callers must apply chunks strictly in arrival order and must
// not share a Builder across goroutines.
package parts
