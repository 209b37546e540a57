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

// Package builtin implements the filesystem/exec/web/git tool set, every
// call routed through a Sandbox Manager rather than the local filesystem —
// the agent's working tree lives inside a sandbox, never on the host
// running the orchestrator.
package builtin

import (
	"context"
	"fmt"
	"time"

	"github.com/stratuscode/orchestrator/internal/sandbox"
	"github.com/stratuscode/orchestrator/internal/tools"
)

const (
	defaultTimeoutSeconds = 60
	maxResultBytes        = 100 * 1024
)

// SandboxContext is threaded through every builtin tool call via
// context.Context; it carries the sandbox handle and repo coordinates the
// orchestrator resolved before building the tool registry.
type SandboxContext struct {
	Manager    *sandbox.Manager
	SandboxID  string
	Owner      string
	Repo       string
	Branch     string
	WorkingDir string
}

type sandboxContextKey struct{}

// WithSandboxContext attaches a SandboxContext to ctx.
func WithSandboxContext(ctx context.Context, sc SandboxContext) context.Context {
	return context.WithValue(ctx, sandboxContextKey{}, sc)
}

// sandboxContextFrom extracts the SandboxContext an orchestrator attached
// to ctx before dispatching a tool call.
func sandboxContextFrom(ctx context.Context) (SandboxContext, error) {
	sc, ok := ctx.Value(sandboxContextKey{}).(SandboxContext)
	if !ok {
		return SandboxContext{}, fmt.Errorf("builtin: no sandbox context on ctx")
	}
	return sc, nil
}

// runInSandbox executes argv in the turn's sandbox via SafeExec, truncating
// stdout/stderr to maxResultBytes before handing them back to the LLM.
func runInSandbox(ctx context.Context, argv []string, workingDir string) (sandbox.Result, error) {
	sc, err := sandboxContextFrom(ctx)
	if err != nil {
		return sandbox.Result{}, err
	}
	if workingDir == "" {
		workingDir = sc.WorkingDir
	}
	result, _, err := sc.Manager.SafeExec(ctx, sc.SandboxID, sc.Owner, sc.Repo, sc.Branch, argv, workingDir, nil)
	if err != nil {
		return sandbox.Result{}, err
	}
	result.Stdout = truncate(result.Stdout)
	result.Stderr = truncate(result.Stderr)
	return result, nil
}

func truncate(s string) string {
	if len(s) <= maxResultBytes {
		return s
	}
	return fmt.Sprintf("%s\n... [truncated %d bytes]", s[:maxResultBytes], len(s)-maxResultBytes)
}

// BashTool runs an arbitrary shell command inside the turn's sandbox.
type BashTool struct{}

func NewBashTool() *BashTool { return &BashTool{} }

func (t *BashTool) Name() string        { return "bash" }
func (t *BashTool) Category() tools.Category { return tools.CategorySandbox }
func (t *BashTool) Description() string {
	return "Runs a shell command inside the session sandbox and returns stdout/stderr/exit code."
}

func (t *BashTool) InputSchema() *tools.JSONSchema {
	return tools.NewObjectSchema("Parameters for bash", map[string]*tools.JSONSchema{
		"command":         tools.NewStringSchema("Shell command to run"),
		"working_dir":     tools.NewStringSchema("Working directory inside the sandbox (default: repo root)"),
		"timeout_seconds": {Type: "number", Description: "Max seconds to wait (default 60)"},
	}, []string{"command"})
}

func (t *BashTool) Execute(ctx context.Context, params map[string]interface{}) (*tools.Result, error) {
	command, _ := params["command"].(string)
	if command == "" {
		return &tools.Result{Success: false, Error: &tools.Error{Code: "invalid_params", Message: "command is required"}}, nil
	}
	workingDir, _ := params["working_dir"].(string)

	timeout := time.Duration(defaultTimeoutSeconds) * time.Second
	if ts, ok := params["timeout_seconds"].(float64); ok && ts > 0 {
		timeout = time.Duration(ts) * time.Second
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result, err := runInSandbox(runCtx, []string{"bash", "-lc", command}, workingDir)
	if err != nil {
		return &tools.Result{Success: false, Error: &tools.Error{Code: "execution_failed", Message: err.Error(), Retryable: sandbox.IsGone(err)}}, nil
	}
	return &tools.Result{
		Success: result.ExitCode == 0,
		Data: map[string]interface{}{
			"stdout":    result.Stdout,
			"stderr":    result.Stderr,
			"exit_code": result.ExitCode,
		},
	}, nil
}
