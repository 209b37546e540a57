// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/stratuscode/orchestrator/internal/streamstate"
)

// tokenFlushWindow is the target coalescing window for token/reasoning
// appends — unbounded per-token writes to StreamingState would swamp the
// store, so every token/reasoning chunk is buffered locally and drained by
// at most one pending timer.
const tokenFlushWindow = 75 * time.Millisecond

// tokenFlusher coalesces onToken/onReasoning callbacks into a single
// pending timer that drains both buffers into the Live-Stream Store
// together, so a client never sees `reasoning` lag behind `content` by
// more than one flush window. ForceFlush is called before any tool-call
// mutation so ordering (tokens before the tool-call marker they preceded)
// is preserved, per the turn's ordering guarantee.
type tokenFlusher struct {
	mu        sync.Mutex
	content   string
	reasoning string
	timer     *time.Timer

	streams   streamstate.Store
	sessionID string
}

func newTokenFlusher(streams streamstate.Store, sessionID string) *tokenFlusher {
	return &tokenFlusher{streams: streams, sessionID: sessionID}
}

// addToken buffers a content token and schedules a flush if none is
// already pending.
func (f *tokenFlusher) addToken(ctx context.Context, text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.content += text
	f.scheduleLocked(ctx)
}

// addReasoning buffers a reasoning token and schedules a flush if none is
// already pending.
func (f *tokenFlusher) addReasoning(ctx context.Context, text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reasoning += text
	f.scheduleLocked(ctx)
}

func (f *tokenFlusher) scheduleLocked(ctx context.Context) {
	if f.timer != nil {
		return
	}
	f.timer = time.AfterFunc(tokenFlushWindow, func() { f.ForceFlush(ctx) })
}

// ForceFlush drains both buffers into the store immediately, cancelling
// any pending timer. Safe to call with nothing buffered (a no-op).
func (f *tokenFlusher) ForceFlush(ctx context.Context) {
	f.mu.Lock()
	content, reasoning := f.content, f.reasoning
	f.content, f.reasoning = "", ""
	if f.timer != nil {
		f.timer.Stop()
		f.timer = nil
	}
	f.mu.Unlock()

	if content != "" {
		_ = f.streams.AppendToken(ctx, f.sessionID, content)
	}
	if reasoning != "" {
		_ = f.streams.AppendReasoning(ctx, f.sessionID, reasoning)
	}
}

// stop cancels any pending timer without flushing — used once the turn
// has already force-flushed for the last time and is tearing down.
func (f *tokenFlusher) stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.timer != nil {
		f.timer.Stop()
		f.timer = nil
	}
}
