// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stream decodes OpenAI-compatible SSE completion streams into
// typed chunks.
//
// A completion endpoint responds with a sequence of "data: " frames, each
// carrying a JSON delta object, terminated by a "[DONE]" sentinel. This
// package turns that byte stream into an ordered sequence of Chunk values
// that the parts builder and agent loop consume.
//
// # Key Types
//
//   - Chunk: one decoded incremental update (content, reasoning, tool call
//     delta, tool result, usage, annotations, image, error, finish)
//   - Reader: pull-based decoder over an io.Reader with partial-line
//     buffering and malformed-frame tolerance
//
// # Usage
//
// Read chunks until io.EOF:
//
//	r := stream.NewReader(resp.Body)
//	for {
//	    chunk, err := r.Next()
//	    if err == io.EOF {
//	        break
//	    }
//	    if err != nil {
//	        return err
//	    }
//	    builder.Apply(chunk)
//	}
package stream
