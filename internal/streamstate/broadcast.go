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

package streamstate

import (
	"sync"
	"sync/atomic"

	"github.com/r3labs/sse/v2"

	"github.com/stratuscode/orchestrator/internal/pubsub"
)

// Broadcaster fans a session's StreamingState subscription out to any
// number of SSE clients. One Broadcaster per session, created on first
// subscriber and torn down once the last one disconnects; this mirrors
// the per-topic subscriber map the product's internal message bus used
// for agent-to-agent fan-out, rebuilt here over pubsub.Event instead of a
// protobuf envelope, since an HTTP client has no use for that framing.
type Broadcaster struct {
	sessionID string
	server    *sse.Server

	mu        sync.Mutex
	listeners int64
}

// NewBroadcaster wraps an r3labs/sse stream for one session. The caller
// is expected to have already called store.Subscribe and be forwarding
// events into Publish from a goroutine scoped to the stream's lifetime.
func NewBroadcaster(sessionID string) *Broadcaster {
	server := sse.New()
	server.AutoReplay = false
	server.CreateStream(sessionID)
	return &Broadcaster{sessionID: sessionID, server: server}
}

// Publish sends the current StreamingState to every connected client as
// one SSE event. Events carry the whole row, not a diff: rows are small
// and clients are expected to replace their local copy wholesale, which
// sidesteps any need for the server to track per-client delivery state.
func (b *Broadcaster) Publish(event pubsub.Event[StreamingState], encoded []byte) {
	b.server.Publish(b.sessionID, &sse.Event{Data: encoded})
}

// Server returns the underlying r3labs/sse server, whose ServeHTTP is
// wired directly as the http.Handler for this session's live stream
// (e.g. GET /sessions/{id}/stream); the caller appends ?stream=sessionID
// per r3labs/sse's convention for routing a request to its stream.
func (b *Broadcaster) Server() *sse.Server {
	return b.server
}

// AddListener/RemoveListener track connected-client count so the caller
// can tear down the Broadcaster (and unsubscribe from the Store) once
// the last client disconnects, instead of leaking a goroutine per
// finished session.
func (b *Broadcaster) AddListener() int64    { return atomic.AddInt64(&b.listeners, 1) }
func (b *Broadcaster) RemoveListener() int64 { return atomic.AddInt64(&b.listeners, -1) }

// Close shuts down the underlying SSE server and its stream.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.server.RemoveStream(b.sessionID)
	b.server.Close()
}
