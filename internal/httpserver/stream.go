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

package httpserver

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/stratuscode/orchestrator/internal/streamstate"
)

// handleStream serves a session's StreamingState subscription as an SSE
// stream. One Broadcaster is shared across every connected client for a
// given session, created on the first subscriber and torn down once the
// last one disconnects, matching Broadcaster's own documented lifetime.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	b := s.acquireBroadcaster(id)
	b.AddListener()
	defer s.releaseBroadcaster(id, b)

	// r3labs/sse routes a request to its stream via a "stream" query
	// parameter; the public route doesn't carry one, so it's set here
	// rather than asking every client to know the broadcaster's internal
	// wiring.
	q := r.URL.Query()
	q.Set("stream", id)
	r.URL.RawQuery = q.Encode()

	b.Server().ServeHTTP(w, r)
}

// acquireBroadcaster returns the session's existing Broadcaster, or
// creates one and starts forwarding its Store subscription into it.
func (s *Server) acquireBroadcaster(sessionID string) *streamstate.Broadcaster {
	s.mu.Lock()
	defer s.mu.Unlock()

	if b, ok := s.broadcaster[sessionID]; ok {
		return b
	}

	b := streamstate.NewBroadcaster(sessionID)
	s.broadcaster[sessionID] = b

	ctx, cancel := context.WithCancel(context.Background())
	s.broadcasterCancel[sessionID] = cancel

	events := s.deps.Streams.Subscribe(ctx)
	go func() {
		for event := range events {
			// Subscribe is one global fan-out per store instance (see
			// internal/store/sql/hub.go), not filtered per session, so
			// every Broadcaster must drop events for sessions other than
			// its own rather than forwarding them to this client.
			if event.Payload.SessionID != sessionID {
				continue
			}
			encoded, err := json.Marshal(event.Payload)
			if err != nil {
				s.logger().Warn("stream: marshal StreamingState failed", zap.Error(err))
				continue
			}
			b.Publish(event, encoded)
		}
	}()

	return b
}

// releaseBroadcaster decrements the listener count and tears the
// Broadcaster down once the last client has disconnected.
func (s *Server) releaseBroadcaster(sessionID string, b *streamstate.Broadcaster) {
	if b.RemoveListener() > 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// A new listener may have arrived between RemoveListener and
	// acquiring the lock; only tear down if this is still the live one
	// with nobody attached.
	if current, ok := s.broadcaster[sessionID]; !ok || current != b {
		return
	}
	delete(s.broadcaster, sessionID)
	if cancel, ok := s.broadcasterCancel[sessionID]; ok {
		cancel()
		delete(s.broadcasterCancel, sessionID)
	}
	b.Close()
}
