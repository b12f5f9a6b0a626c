// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cloud provides the HTTP client for OpenAI-compatible completion
// endpoints.
//
// The client owns transport concerns only: authentication, connection
// pooling, request rate limiting, retry with backoff for non-streaming
// calls, and structured error mapping for non-2xx responses. What goes
// into the message array is the request formatter's business; what comes
// out of the stream is decoded by the stream package.
//
// # Key Types
//
//   - Client: pooled, rate-limited HTTP client
//   - CompletionRequest: the JSON request body
//   - Stream: an open streaming response (stream.Reader plus body close)
//   - APIStatusError: non-2xx responses with parsed error detail
package cloud
