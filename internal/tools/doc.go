// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package tools provides the tool registry the agent loop executes against.
//
// A Tool pairs a JSON-schema description (sent to the completion endpoint)
// with an Executor that runs locally when the model requests the tool. The
// registry is an explicit collaborator: the agent loop looks tools up by
// name and never probes ambiguous shapes.
//
// # Key Types
//
//   - Registry: named tool lookup with schema export
//   - Tool: definition plus executor
//   - Executor: the execution interface, context-aware for cancellation
//
// # Usage
//
// Register tools and export their schemas for a request:
//
//	reg := tools.NewRegistry()
//	reg.RegisterBuiltins(".")
//	schemas := reg.SchemasByNames([]string{"read_file", "list_dir"})
package tools
