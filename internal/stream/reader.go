// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// =============================================================================
// STREAM ERRORS
// =============================================================================

// APIError is returned after an error chunk has been emitted; the stream is
// terminal once one is seen.
type APIError struct {
	Detail APIErrorDetail
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Detail.Type != "" {
		return fmt.Sprintf("api error (%s): %s", e.Detail.Type, e.Detail.Message)
	}
	return "api error: " + e.Detail.Message
}

// =============================================================================
// READER
// =============================================================================

// dataPrefix marks a data frame; doneSentinel terminates the stream.
var (
	dataPrefix   = []byte("data:")
	doneSentinel = []byte("[DONE]")
)

// Reader decodes an SSE completion stream into Chunks. It is a lazy,
// ordered, non-restartable sequence: call Next until it returns io.EOF.
//
// Partial lines are buffered across reads by the underlying bufio.Reader.
// Lines that are not data frames (blank lines, comments) are skipped, and
// data frames that fail to parse are dropped without ending the stream.
type Reader struct {
	reader *bufio.Reader

	// pending holds chunks decoded from the current frame that have not
	// been handed out yet; one frame can produce several chunks.
	pending []Chunk

	// done is set on [DONE], finish_reason "tool_calls", or EOF.
	done bool

	// err is the terminal failure raised after an error chunk.
	err error
}

// NewReader creates a Reader over an SSE response body.
func NewReader(r io.Reader) *Reader {
	return &Reader{reader: bufio.NewReader(r)}
}

// Next returns the next decoded chunk. It returns io.EOF on graceful end of
// stream, and the terminal error after an error chunk has been delivered.
func (r *Reader) Next() (Chunk, error) {
	for {
		if len(r.pending) > 0 {
			chunk := r.pending[0]
			r.pending = r.pending[1:]
			return chunk, nil
		}

		if r.err != nil {
			return Chunk{}, r.err
		}
		if r.done {
			return Chunk{}, io.EOF
		}

		line, err := r.reader.ReadBytes('\n')
		if err != nil {
			if err == io.EOF && len(bytes.TrimSpace(line)) > 0 {
				// Process a final unterminated line before ending.
				r.done = true
				r.decodeLine(line)
				continue
			}
			if err == io.EOF {
				r.done = true
				continue
			}
			return Chunk{}, err
		}

		r.decodeLine(line)
	}
}

// decodeLine parses one protocol line, appending any decoded chunks to the
// pending queue and updating terminal state.
func (r *Reader) decodeLine(line []byte) {
	line = bytes.TrimSpace(line)

	// Blank lines separate events; lines starting with ':' are comments.
	if len(line) == 0 || line[0] == ':' {
		return
	}
	if !bytes.HasPrefix(line, dataPrefix) {
		return
	}

	data := bytes.TrimSpace(line[len(dataPrefix):])
	if bytes.Equal(data, doneSentinel) {
		r.done = true
		return
	}

	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		// Noise or padding frame from the server; drop it.
		return
	}

	if f.Error != nil {
		detail := *f.Error
		r.pending = append(r.pending, Chunk{Kind: KindError, Err: &detail})
		r.err = &APIError{Detail: detail}
		return
	}

	if f.Usage != nil {
		usage := *f.Usage
		r.pending = append(r.pending, Chunk{Kind: KindUsage, Usage: &usage})
	}
	if len(f.Annotations) > 0 {
		r.pending = append(r.pending, Chunk{Kind: KindAnnotations, Annotations: f.Annotations})
	}

	if len(f.Choices) == 0 {
		return
	}
	delta := f.Choices[0].Delta

	if delta.Reasoning != nil && *delta.Reasoning != "" {
		r.pending = append(r.pending, Chunk{Kind: KindReasoning, Text: *delta.Reasoning})
	}
	if delta.Content != nil && *delta.Content != "" {
		r.pending = append(r.pending, Chunk{Kind: KindContent, Text: *delta.Content})
	}

	for _, tc := range delta.ToolCalls {
		r.pending = append(r.pending, Chunk{
			Kind: KindToolCallDelta,
			ToolDelta: &ToolDelta{
				Index:     tc.Index,
				ID:        tc.ID,
				Type:      tc.Type,
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			},
		})
	}

	for _, img := range delta.Images {
		url := img.normalizedURL()
		if url == "" {
			continue
		}
		r.pending = append(r.pending, Chunk{
			Kind:  KindImage,
			Image: &Image{URL: url, RevisedPrompt: img.RevisedPrompt},
		})
	}

	if fr := f.Choices[0].FinishReason; fr != nil && *fr != "" {
		r.pending = append(r.pending, Chunk{Kind: KindFinish, FinishReason: *fr})
		// The model intends to call tools: nothing further will arrive on
		// this call, and the frame's tool deltas are already queued.
		if *fr == "tool_calls" {
			r.done = true
		}
	}
}
