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
	"fmt"
	"strings"

	"github.com/stratuscode/orchestrator/internal/permission"
	"github.com/stratuscode/orchestrator/internal/sandbox"
	"github.com/stratuscode/orchestrator/internal/tools"
)

// needsConfirmationResult shapes the response payload for a git tool
// invoked without prior confirmation. The Executor's permission.Gate
// already performs the actual gate check (see executor.go); this is a
// second, belt-and-suspenders check so a git tool called directly — e.g.
// from a test — never executes unconfirmed.
func needsConfirmationResult(toolName string) *tools.Result {
	err := &permission.NeedsConfirmationError{Tool: toolName}
	return &tools.Result{
		Success:           false,
		NeedsConfirmation: true,
		Error:             &tools.Error{Code: "needs_confirmation", Message: err.Error()},
	}
}

// GitCommitTool stages and commits the working tree inside the sandbox.
type GitCommitTool struct{}

func NewGitCommitTool() *GitCommitTool { return &GitCommitTool{} }

func (t *GitCommitTool) Name() string             { return "git_commit" }
func (t *GitCommitTool) Category() tools.Category { return tools.CategoryGit }
func (t *GitCommitTool) Description() string {
	return "Stages all changes and commits them in the sandbox. Requires prior confirmation unless Alpha mode is enabled."
}

func (t *GitCommitTool) InputSchema() *tools.JSONSchema {
	return tools.NewObjectSchema("Parameters for git_commit", map[string]*tools.JSONSchema{
		"message":   tools.NewStringSchema("Commit message"),
		"confirmed": tools.NewBooleanSchema("Set true once the user has approved this commit"),
	}, []string{"message"})
}

func (t *GitCommitTool) Execute(ctx context.Context, params map[string]interface{}) (*tools.Result, error) {
	message, _ := params["message"].(string)
	if message == "" {
		return &tools.Result{Success: false, Error: &tools.Error{Code: "invalid_params", Message: "message is required"}}, nil
	}
	opts := tools.CallOptionsFromContext(ctx)
	if !opts.Confirmed && !opts.AlphaMode {
		return needsConfirmationResult(t.Name()), nil
	}

	script := fmt.Sprintf("git add -A && git commit -m %s", shellQuote(message))
	result, err := runInSandbox(ctx, []string{"bash", "-lc", script}, "")
	if err != nil {
		return &tools.Result{Success: false, Error: &tools.Error{Code: "execution_failed", Message: err.Error(), Retryable: sandbox.IsGone(err)}}, nil
	}
	if result.ExitCode != 0 {
		return &tools.Result{Success: false, Error: &tools.Error{Code: "commit_failed", Message: strings.TrimSpace(result.Stderr)}}, nil
	}
	return &tools.Result{Success: true, Data: map[string]interface{}{"output": strings.TrimSpace(result.Stdout)}}, nil
}

// GitPushTool pushes the session branch to origin, setting upstream.
type GitPushTool struct{}

func NewGitPushTool() *GitPushTool { return &GitPushTool{} }

func (t *GitPushTool) Name() string             { return "git_push" }
func (t *GitPushTool) Category() tools.Category { return tools.CategoryGit }
func (t *GitPushTool) Description() string {
	return "Pushes the session's branch to origin with -u. Requires prior confirmation unless Alpha mode is enabled."
}

func (t *GitPushTool) InputSchema() *tools.JSONSchema {
	return tools.NewObjectSchema("Parameters for git_push", map[string]*tools.JSONSchema{
		"confirmed": tools.NewBooleanSchema("Set true once the user has approved this push"),
	}, nil)
}

func (t *GitPushTool) Execute(ctx context.Context, params map[string]interface{}) (*tools.Result, error) {
	opts := tools.CallOptionsFromContext(ctx)
	if !opts.Confirmed && !opts.AlphaMode {
		return needsConfirmationResult(t.Name()), nil
	}
	sc, err := sandboxContextFrom(ctx)
	if err != nil {
		return &tools.Result{Success: false, Error: &tools.Error{Code: "execution_failed", Message: err.Error()}}, nil
	}
	if sc.Branch == "" {
		return &tools.Result{Success: false, Error: &tools.Error{Code: "invalid_state", Message: "no session branch is set on the sandbox context"}}, nil
	}

	script := fmt.Sprintf("git push -u origin %s", shellQuote(sc.Branch))
	result, err := runInSandbox(ctx, []string{"bash", "-lc", script}, "")
	if err != nil {
		return &tools.Result{Success: false, Error: &tools.Error{Code: "execution_failed", Message: err.Error(), Retryable: sandbox.IsGone(err)}}, nil
	}
	if result.ExitCode != 0 {
		return &tools.Result{Success: false, Error: &tools.Error{Code: "push_failed", Message: strings.TrimSpace(result.Stderr)}}, nil
	}
	return &tools.Result{Success: true, Data: map[string]interface{}{
		"branch": sc.Branch,
		"output": strings.TrimSpace(result.Stdout),
	}}, nil
}

// PRCreateTool opens a pull request for the session branch via the gh CLI.
type PRCreateTool struct{}

func NewPRCreateTool() *PRCreateTool { return &PRCreateTool{} }

func (t *PRCreateTool) Name() string             { return "pr_create" }
func (t *PRCreateTool) Category() tools.Category { return tools.CategoryGit }
func (t *PRCreateTool) Description() string {
	return "Opens a pull request for the session branch via gh. Requires prior confirmation unless Alpha mode is enabled."
}

func (t *PRCreateTool) InputSchema() *tools.JSONSchema {
	return tools.NewObjectSchema("Parameters for pr_create", map[string]*tools.JSONSchema{
		"title":     tools.NewStringSchema("Pull request title"),
		"body":      tools.NewStringSchema("Pull request description"),
		"confirmed": tools.NewBooleanSchema("Set true once the user has approved opening this PR"),
	}, []string{"title"})
}

func (t *PRCreateTool) Execute(ctx context.Context, params map[string]interface{}) (*tools.Result, error) {
	title, _ := params["title"].(string)
	if title == "" {
		return &tools.Result{Success: false, Error: &tools.Error{Code: "invalid_params", Message: "title is required"}}, nil
	}
	body, _ := params["body"].(string)
	opts := tools.CallOptionsFromContext(ctx)
	if !opts.Confirmed && !opts.AlphaMode {
		return needsConfirmationResult(t.Name()), nil
	}

	argv := []string{"gh", "pr", "create", "--title", title, "--body", body, "--fill-first"}
	result, err := runInSandbox(ctx, argv, "")
	if err != nil {
		return &tools.Result{Success: false, Error: &tools.Error{Code: "execution_failed", Message: err.Error(), Retryable: sandbox.IsGone(err)}}, nil
	}
	if result.ExitCode != 0 {
		return &tools.Result{Success: false, Error: &tools.Error{Code: "pr_create_failed", Message: strings.TrimSpace(result.Stderr)}}, nil
	}
	return &tools.Result{Success: true, Data: map[string]interface{}{"url": strings.TrimSpace(result.Stdout)}}, nil
}
