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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestManager_Acquire_FreshClone(t *testing.T) {
	provider := NewFakeProvider()
	mgr := NewManager(provider)

	id, err := mgr.Acquire(context.Background(), Handle{}, "acme", "widget", "main")
	require.NoError(t, err)
	require.NotEmpty(t, id)
}

func TestManager_Acquire_ResumeFromSnapshot(t *testing.T) {
	provider := NewFakeProvider()
	mgr := NewManager(provider)

	sandboxID, err := mgr.Acquire(context.Background(), Handle{}, "acme", "widget", "main")
	require.NoError(t, err)

	snapshotID, err := mgr.Release(context.Background(), sandboxID)
	require.NoError(t, err)

	resumed, err := mgr.Acquire(context.Background(), Handle{SnapshotID: snapshotID}, "acme", "widget", "main")
	require.NoError(t, err)
	require.NotEqual(t, sandboxID, resumed)
}

func TestManager_Acquire_ReconnectByID(t *testing.T) {
	provider := NewFakeProvider()
	mgr := NewManager(provider)

	sandboxID, err := mgr.Acquire(context.Background(), Handle{}, "acme", "widget", "main")
	require.NoError(t, err)

	reconnected, err := mgr.Acquire(context.Background(), Handle{SandboxID: sandboxID}, "acme", "widget", "main")
	require.NoError(t, err)
	require.Equal(t, sandboxID, reconnected)
}

func TestManager_Acquire_FallsBackToFreshCloneWhenGone(t *testing.T) {
	provider := NewFakeProvider()
	mgr := NewManager(provider)

	id, err := mgr.Acquire(context.Background(), Handle{SandboxID: "never-existed"}, "acme", "widget", "main")
	require.NoError(t, err)
	require.NotEmpty(t, id)
}

// TestManager_SafeExec_SingleRetryOnGone verifies the spec's REDESIGN FLAG
// fix: one Gone response triggers exactly one reacquire-and-retry, never a
// recursive re-entry into SafeExec.
func TestManager_SafeExec_SingleRetryOnGone(t *testing.T) {
	provider := NewFakeProvider()
	provider.GoneAfter = 1 // the very first RunCommand call reports Gone
	mgr := NewManager(provider)

	sandboxID, err := mgr.Acquire(context.Background(), Handle{}, "acme", "widget", "main")
	require.NoError(t, err)

	result, newSandboxID, err := mgr.SafeExec(context.Background(), sandboxID, "acme", "widget", "main", []string{"echo", "hi"}, "/workspace", nil)
	require.NoError(t, err)
	require.NotEqual(t, sandboxID, newSandboxID)
	require.Equal(t, "ok", result.Stdout)
}

// TestManager_SafeExec_TerminalOnSecondGone verifies that a second
// consecutive Gone (on the retry itself) surfaces as an error rather than
// looping forever, which is exactly the bug the non-recursive
// implementation avoids.
func TestManager_SafeExec_TerminalOnSecondGone(t *testing.T) {
	provider := NewFakeProvider()
	provider.GoneAfter = 1
	mgr := NewManager(provider)

	sandboxID, err := mgr.Acquire(context.Background(), Handle{}, "acme", "widget", "main")
	require.NoError(t, err)

	// Force every RunCommand call (including the retry) to report Gone
	// through RunCommandFunc.
	provider.RunCommandFunc = func(ctx context.Context, sandboxID string, argv []string) (Result, error) {
		return Result{}, &GoneError{SandboxID: sandboxID}
	}
	provider.GoneAfter = 0

	_, _, err = mgr.SafeExec(context.Background(), sandboxID, "acme", "widget", "main", []string{"echo", "hi"}, "/workspace", nil)
	require.Error(t, err)
}

func TestGoneError_IsGone(t *testing.T) {
	err := &GoneError{SandboxID: "sbx_1"}
	require.True(t, IsGone(err))
	require.False(t, IsGone(nil))
}
