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

package builtin

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stratuscode/orchestrator/internal/sandbox"
)

// newTestContext builds a ctx wired to a FakeProvider-backed Manager,
// with fs a map of path -> current file content; RunCommandFunc emulates
// just enough of cat/bash/rg/find/ls for the builtin tools under test.
func newTestContext(t *testing.T, fs map[string]string) context.Context {
	t.Helper()
	provider := sandbox.NewFakeProvider()
	provider.RunCommandFunc = func(ctx context.Context, sandboxID string, argv []string) (sandbox.Result, error) {
		return fakeExec(fs, argv)
	}
	mgr := sandbox.NewManager(provider)
	sandboxID, err := mgr.Acquire(context.Background(), sandbox.Handle{}, "acme", "widget", "main")
	require.NoError(t, err)

	return WithSandboxContext(context.Background(), SandboxContext{
		Manager:    mgr,
		SandboxID:  sandboxID,
		Owner:      "acme",
		Repo:       "widget",
		Branch:     "stratuscode/session-1",
		WorkingDir: "/repo",
	})
}

// fakeExec is a minimal stand-in for a shell, enough to drive read/write/edit
// tests against the in-memory fs map without a real container.
func fakeExec(fs map[string]string, argv []string) (sandbox.Result, error) {
	switch {
	case len(argv) >= 2 && argv[0] == "cat":
		path := argv[len(argv)-1]
		content, ok := fs[path]
		if !ok {
			return sandbox.Result{Stderr: "no such file", ExitCode: 1}, nil
		}
		return sandbox.Result{Stdout: content, ExitCode: 0}, nil
	case len(argv) == 3 && argv[0] == "bash" && argv[1] == "-lc" && strings.HasPrefix(argv[2], "mkdir -p "):
		script := argv[2]
		// write_to_file emits exactly: mkdir -p <dir>\ncat <<'DELIM' > <path>\n<content>\nDELIM\n
		lines := strings.SplitN(script, "\n", 3)
		if len(lines) < 3 {
			return sandbox.Result{ExitCode: 1, Stderr: "malformed script"}, nil
		}
		catLine := lines[1]
		parts := strings.Fields(catLine)
		path := strings.Trim(parts[len(parts)-1], "'")
		delimStart := strings.Index(catLine, "<<'") + 3
		delimEnd := strings.Index(catLine[delimStart:], "'")
		delim := catLine[delimStart : delimStart+delimEnd]

		body := strings.TrimSuffix(lines[2], "\n")
		end := strings.LastIndex(body, "\n"+delim)
		if end < 0 {
			if body == delim {
				fs[path] = ""
				return sandbox.Result{ExitCode: 0}, nil
			}
			return sandbox.Result{ExitCode: 1, Stderr: "delimiter not found"}, nil
		}
		fs[path] = body[:end]
		return sandbox.Result{ExitCode: 0}, nil
	default:
		return sandbox.Result{ExitCode: 0}, nil
	}
}

func TestBashTool_RunsCommand(t *testing.T) {
	ctx := newTestContext(t, map[string]string{})
	tool := NewBashTool()

	result, err := tool.Execute(ctx, map[string]interface{}{"command": "echo hi"})
	require.NoError(t, err)
	require.True(t, result.Success)
}

func TestBashTool_RequiresCommand(t *testing.T) {
	ctx := newTestContext(t, map[string]string{})
	tool := NewBashTool()

	result, err := tool.Execute(ctx, map[string]interface{}{})
	require.NoError(t, err)
	require.False(t, result.Success)
	require.Equal(t, "invalid_params", result.Error.Code)
}

func TestReadTool_ReturnsLineNumberedContent(t *testing.T) {
	ctx := newTestContext(t, map[string]string{"main.go": "line1\nline2\nline3"})
	tool := NewReadTool()

	result, err := tool.Execute(ctx, map[string]interface{}{"path": "main.go"})
	require.NoError(t, err)
	require.True(t, result.Success)
	data := result.Data.(map[string]interface{})
	require.Equal(t, "1\tline1\n2\tline2\n3\tline3\n", data["content"])
}

func TestReadTool_RespectsOffsetAndLimit(t *testing.T) {
	ctx := newTestContext(t, map[string]string{"main.go": "a\nb\nc\nd"})
	tool := NewReadTool()

	result, err := tool.Execute(ctx, map[string]interface{}{"path": "main.go", "offset": float64(2), "limit": float64(2)})
	require.NoError(t, err)
	data := result.Data.(map[string]interface{})
	require.Equal(t, "2\tb\n3\tc\n", data["content"])
}

func TestWriteToFileTool_CreatesFile(t *testing.T) {
	fs := map[string]string{}
	ctx := newTestContext(t, fs)
	tool := NewWriteToFileTool()

	result, err := tool.Execute(ctx, map[string]interface{}{"path": "pkg/new.go", "content": "package pkg\n"})
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Equal(t, "package pkg\n", fs["pkg/new.go"])
}

func TestEditTool_RejectsAmbiguousMatch(t *testing.T) {
	fs := map[string]string{"main.go": "foo\nfoo\n"}
	ctx := newTestContext(t, fs)
	tool := NewEditTool()

	result, err := tool.Execute(ctx, map[string]interface{}{"path": "main.go", "old_string": "foo", "new_string": "bar"})
	require.NoError(t, err)
	require.False(t, result.Success)
	require.Equal(t, "edit_rejected", result.Error.Code)
}

func TestEditTool_ReplacesUniqueMatch(t *testing.T) {
	fs := map[string]string{"main.go": "foo\nbar\n"}
	ctx := newTestContext(t, fs)
	tool := NewEditTool()

	result, err := tool.Execute(ctx, map[string]interface{}{"path": "main.go", "old_string": "foo", "new_string": "baz"})
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Equal(t, "baz\nbar\n", fs["main.go"])
}

func TestEditTool_RejectsIdenticalStrings(t *testing.T) {
	fs := map[string]string{"main.go": "foo\n"}
	ctx := newTestContext(t, fs)
	tool := NewEditTool()

	result, err := tool.Execute(ctx, map[string]interface{}{"path": "main.go", "old_string": "foo", "new_string": "foo"})
	require.NoError(t, err)
	require.False(t, result.Success)
}

func TestMultiEditTool_AppliesAllOrNothing(t *testing.T) {
	fs := map[string]string{"main.go": "foo\nbar\n"}
	ctx := newTestContext(t, fs)
	tool := NewMultiEditTool()

	result, err := tool.Execute(ctx, map[string]interface{}{
		"path": "main.go",
		"edits": []interface{}{
			map[string]interface{}{"old_string": "foo", "new_string": "qux"},
			map[string]interface{}{"old_string": "missing", "new_string": "x"},
		},
	})
	require.NoError(t, err)
	require.False(t, result.Success)
	// the first edit must not have been persisted once the second failed
	require.Equal(t, "foo\nbar\n", fs["main.go"])
}
