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

	"github.com/stratuscode/orchestrator/internal/sandbox"
	"github.com/stratuscode/orchestrator/internal/tools"
)

const globMaxResults = 100

var globExcludedDirs = []string{"node_modules", ".git", "dist", "build"}

// GlobTool finds files by name pattern inside the sandbox.
type GlobTool struct{}

func NewGlobTool() *GlobTool { return &GlobTool{} }

func (t *GlobTool) Name() string             { return "glob" }
func (t *GlobTool) Category() tools.Category { return tools.CategorySandbox }
func (t *GlobTool) Description() string {
	return "Finds files matching a glob pattern, skipping node_modules/.git/dist/build, capped at 100 results."
}

func (t *GlobTool) InputSchema() *tools.JSONSchema {
	return tools.NewObjectSchema("Parameters for glob", map[string]*tools.JSONSchema{
		"pattern": tools.NewStringSchema("Filename pattern, matched case-insensitively against each file's base name (e.g. *.go)"),
		"path":    tools.NewStringSchema("Directory to search from (default: repo root)"),
	}, []string{"pattern"})
}

func (t *GlobTool) Execute(ctx context.Context, params map[string]interface{}) (*tools.Result, error) {
	pattern, _ := params["pattern"].(string)
	if pattern == "" {
		return &tools.Result{Success: false, Error: &tools.Error{Code: "invalid_params", Message: "pattern is required"}}, nil
	}
	path, _ := params["path"].(string)
	if path == "" {
		path = "."
	}

	argv := []string{"find", path}
	for _, dir := range globExcludedDirs {
		argv = append(argv, "-not", "-path", "*/"+dir+"/*")
	}
	argv = append(argv, "-type", "f", "-iname", pattern)

	result, err := runInSandbox(ctx, argv, "")
	if err != nil {
		return &tools.Result{Success: false, Error: &tools.Error{Code: "execution_failed", Message: err.Error(), Retryable: sandbox.IsGone(err)}}, nil
	}
	if result.ExitCode != 0 {
		return &tools.Result{Success: false, Error: &tools.Error{Code: "glob_failed", Message: strings.TrimSpace(result.Stderr)}}, nil
	}

	var matches []string
	for _, line := range strings.Split(strings.TrimSpace(result.Stdout), "\n") {
		if line == "" {
			continue
		}
		matches = append(matches, line)
	}
	truncated := false
	if len(matches) > globMaxResults {
		matches = matches[:globMaxResults]
		truncated = true
	}

	return &tools.Result{Success: true, Data: map[string]interface{}{
		"matches":   matches,
		"count":     len(matches),
		"truncated": truncated,
	}}, nil
}
