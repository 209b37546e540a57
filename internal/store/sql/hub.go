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

package sql

import (
	"context"
	"sync"

	"github.com/stratuscode/orchestrator/internal/pubsub"
)

// hub is the fan-out primitive behind every store's Subscribe method: a
// database write publishes one pubsub.Event[T] which every live
// subscriber's channel receives. There is one hub per store instance, not
// one per entity, since a single SQL connection pool already serializes
// the writes a hub needs to observe.
type hub[T any] struct {
	mu   sync.Mutex
	subs map[chan pubsub.Event[T]]struct{}
}

func newHub[T any]() *hub[T] {
	return &hub[T]{subs: make(map[chan pubsub.Event[T]]struct{})}
}

// subscribe registers a new buffered channel and unregisters it once ctx
// is done, mirroring the broadcast-then-prune lifecycle the live-stream
// SSE broadcaster uses for its own listener set.
func (h *hub[T]) subscribe(ctx context.Context) <-chan pubsub.Event[T] {
	ch := make(chan pubsub.Event[T], 16)

	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.mu.Lock()
		delete(h.subs, ch)
		h.mu.Unlock()
		close(ch)
	}()

	return ch
}

// publish fans an event out to every live subscriber without blocking on
// a slow or abandoned one; a subscriber whose buffer is already full
// drops the event rather than stalling the writer that produced it.
func (h *hub[T]) publish(event pubsub.Event[T]) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- event:
		default:
		}
	}
}
