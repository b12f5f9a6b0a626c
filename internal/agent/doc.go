// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package agent drives a user turn end to end: it streams the model's
// response, folds chunks into the part sequence, executes requested tools,
// and feeds results back for further rounds until the model is done or the
// iteration budget runs out. Every exit path finalizes the assistant
// message the same way.
package agent
