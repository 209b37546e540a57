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

package tools

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stratuscode/orchestrator/internal/permission"
)

type stubTool struct {
	name     string
	category Category
	schema   *JSONSchema
	execute  func(ctx context.Context, params map[string]interface{}) (*Result, error)
	calls    int
}

func (s *stubTool) Name() string             { return s.name }
func (s *stubTool) Description() string      { return "stub" }
func (s *stubTool) Category() Category       { return s.category }
func (s *stubTool) InputSchema() *JSONSchema { return s.schema }
func (s *stubTool) Execute(ctx context.Context, params map[string]interface{}) (*Result, error) {
	s.calls++
	return s.execute(ctx, params)
}

func TestExecutor_Execute_ToolNotFound(t *testing.T) {
	exec := NewExecutor(NewRegistry(), nil)
	_, err := exec.Execute(context.Background(), "missing", nil, CallOptions{})
	require.Error(t, err)
}

func TestExecutor_Execute_RejectsInvalidParams(t *testing.T) {
	registry := NewRegistry()
	stub := &stubTool{
		name:     "needs_path",
		category: CategorySandbox,
		schema:   NewObjectSchema("params", map[string]*JSONSchema{"path": NewStringSchema("path")}, []string{"path"}),
		execute: func(ctx context.Context, params map[string]interface{}) (*Result, error) {
			return &Result{Success: true}, nil
		},
	}
	registry.Register(stub)
	exec := NewExecutor(registry, nil)

	result, err := exec.Execute(context.Background(), "needs_path", map[string]interface{}{}, CallOptions{})
	require.NoError(t, err)
	require.False(t, result.Success)
	require.Equal(t, "invalid_params", result.Error.Code)
	require.Zero(t, stub.calls)
}

func TestExecutor_Execute_RetriesRetryableFailureThenSucceeds(t *testing.T) {
	registry := NewRegistry()
	attempts := 0
	stub := &stubTool{
		name:     "flaky",
		category: CategorySandbox,
		schema:   NewObjectSchema("params", nil, nil),
		execute: func(ctx context.Context, params map[string]interface{}) (*Result, error) {
			attempts++
			if attempts < 2 {
				return &Result{Success: false, Error: &Error{Code: "transient", Retryable: true}}, nil
			}
			return &Result{Success: true, Data: "done"}, nil
		},
	}
	registry.Register(stub)
	exec := NewExecutor(registry, nil)

	result, err := exec.Execute(context.Background(), "flaky", map[string]interface{}{}, CallOptions{})
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Equal(t, 2, attempts)
}

func TestExecutor_Execute_GitToolNeedsConfirmation(t *testing.T) {
	registry := NewRegistry()
	stub := &stubTool{
		name:     "git_commit",
		category: CategoryGit,
		schema:   NewObjectSchema("params", nil, nil),
		execute: func(ctx context.Context, params map[string]interface{}) (*Result, error) {
			return &Result{Success: true}, nil
		},
	}
	registry.Register(stub)
	gate := permission.NewGate(nil, nil)
	exec := NewExecutor(registry, gate)

	result, err := exec.Execute(context.Background(), "git_commit", map[string]interface{}{}, CallOptions{})
	require.NoError(t, err)
	require.False(t, result.Success)
	require.True(t, result.NeedsConfirmation)
	require.Zero(t, stub.calls)

	result, err = exec.Execute(context.Background(), "git_commit", map[string]interface{}{}, CallOptions{Confirmed: true})
	require.NoError(t, err)
	require.True(t, result.Success)
}

func TestExecutor_Execute_TruncatesOversizedResult(t *testing.T) {
	registry := NewRegistry()
	big := make([]byte, maxResultBytes+1024)
	for i := range big {
		big[i] = 'a'
	}
	stub := &stubTool{
		name:     "chatty",
		category: CategorySandbox,
		schema:   NewObjectSchema("params", nil, nil),
		execute: func(ctx context.Context, params map[string]interface{}) (*Result, error) {
			return &Result{Success: true, Data: string(big)}, nil
		},
	}
	registry.Register(stub)
	exec := NewExecutor(registry, nil)

	result, err := exec.Execute(context.Background(), "chatty", map[string]interface{}{}, CallOptions{})
	require.NoError(t, err)
	truncated, ok := result.Data.(string)
	require.True(t, ok)
	require.Less(t, len(truncated), len(big))
}
