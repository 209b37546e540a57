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

package sandbox

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// FakeProvider is an in-memory Provider for tests. It lets a test force a
// sandbox Gone on the Nth RunCommand call via GoneAfter, and records every
// call it receives.
type FakeProvider struct {
	mu        sync.Mutex
	nextID    int64
	sandboxes map[string]bool
	snapshots map[string]string // snapshotID -> sandboxID that produced it

	RunCommandFunc func(ctx context.Context, sandboxID string, argv []string) (Result, error)

	// GoneAfter, if > 0, makes the GoneAfter-th call to RunCommand across
	// all sandboxes return a *GoneError instead of invoking RunCommandFunc.
	GoneAfter    int32
	commandCalls int32
}

// NewFakeProvider builds an empty FakeProvider.
func NewFakeProvider() *FakeProvider {
	return &FakeProvider{
		sandboxes: make(map[string]bool),
		snapshots: make(map[string]string),
	}
}

func (f *FakeProvider) newID(prefix string) string {
	id := atomic.AddInt64(&f.nextID, 1)
	return fmt.Sprintf("%s_%d", prefix, id)
}

func (f *FakeProvider) Create(ctx context.Context, owner, repo, branch string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.newID("sbx")
	f.sandboxes[id] = true
	return id, nil
}

func (f *FakeProvider) Get(ctx context.Context, sandboxID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.sandboxes[sandboxID] {
		return &GoneError{SandboxID: sandboxID}
	}
	return nil
}

func (f *FakeProvider) RunCommand(ctx context.Context, sandboxID string, argv []string, workingDir string, env map[string]string) (Result, error) {
	f.mu.Lock()
	exists := f.sandboxes[sandboxID]
	f.mu.Unlock()
	if !exists {
		return Result{}, &GoneError{SandboxID: sandboxID}
	}

	call := atomic.AddInt32(&f.commandCalls, 1)
	if f.GoneAfter > 0 && call == f.GoneAfter {
		return Result{}, &GoneError{SandboxID: sandboxID}
	}
	if f.RunCommandFunc != nil {
		return f.RunCommandFunc(ctx, sandboxID, argv)
	}
	return Result{Stdout: "ok", ExitCode: 0}, nil
}

func (f *FakeProvider) Snapshot(ctx context.Context, sandboxID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.sandboxes[sandboxID] {
		return "", &GoneError{SandboxID: sandboxID}
	}
	delete(f.sandboxes, sandboxID)
	id := f.newID("snap")
	f.snapshots[id] = sandboxID
	return id, nil
}

func (f *FakeProvider) Resume(ctx context.Context, snapshotID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.snapshots[snapshotID]; !ok {
		return "", &GoneError{SandboxID: snapshotID}
	}
	id := f.newID("sbx")
	f.sandboxes[id] = true
	return id, nil
}

func (f *FakeProvider) Stop(ctx context.Context, sandboxID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sandboxes, sandboxID)
	return nil
}

var _ Provider = (*FakeProvider)(nil)
