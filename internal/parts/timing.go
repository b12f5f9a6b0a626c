// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package parts

import (
	"time"

	"github.com/jeranaias/loom-tui/internal/stream"
)

// =============================================================================
// TIMING TRACKER
// =============================================================================

// TimingTracker derives latency facts from the chunk sequence as a passive
// side-channel: it observes the same chunks the Builder does but never
// affects builder state.
type TimingTracker struct {
	// Start is when the API call was issued.
	Start time.Time

	// FirstToken is when the first content or reasoning fragment arrived.
	FirstToken time.Time

	// ReasoningStart and ReasoningEnd bracket the reasoning phase.
	ReasoningStart time.Time
	ReasoningEnd   time.Time

	// Completion is set by Finalize.
	Completion time.Time

	// ReasoningDuration is computed by Finalize; zero when the model never
	// reasoned.
	ReasoningDuration time.Duration

	// now is overridable in tests.
	now func() time.Time
}

// NewTimingTracker creates a tracker with the API call time set to now.
func NewTimingTracker() *TimingTracker {
	t := &TimingTracker{now: time.Now}
	t.Start = t.now()
	return t
}

// Observe updates timing state for one chunk.
func (t *TimingTracker) Observe(chunk stream.Chunk) {
	switch chunk.Kind {
	case stream.KindContent:
		t.MarkFirstToken()
		t.EndReasoning()
	case stream.KindReasoning:
		t.MarkFirstToken()
		t.StartReasoning()
	}
}

// MarkFirstToken records the first token arrival; idempotent.
func (t *TimingTracker) MarkFirstToken() {
	if t.FirstToken.IsZero() {
		t.FirstToken = t.now()
	}
}

// StartReasoning records the start of the reasoning phase; idempotent.
func (t *TimingTracker) StartReasoning() {
	if t.ReasoningStart.IsZero() {
		t.ReasoningStart = t.now()
	}
}

// EndReasoning records the end of the reasoning phase the first time real
// content begins. A no-op unless reasoning actually started.
func (t *TimingTracker) EndReasoning() {
	if !t.ReasoningStart.IsZero() && t.ReasoningEnd.IsZero() {
		t.ReasoningEnd = t.now()
	}
}

// Finalize stamps the completion time and computes the reasoning duration.
// A turn aborted mid-reasoning has no recorded end, so the duration is
// taken as open-ended up to now.
func (t *TimingTracker) Finalize() {
	t.Completion = t.now()

	if t.ReasoningStart.IsZero() {
		return
	}
	end := t.ReasoningEnd
	if end.IsZero() {
		end = t.now()
	}
	t.ReasoningDuration = end.Sub(t.ReasoningStart)
}

// TTFT returns the first-token latency, or zero when no token arrived.
func (t *TimingTracker) TTFT() time.Duration {
	if t.FirstToken.IsZero() {
		return 0
	}
	return t.FirstToken.Sub(t.Start)
}
