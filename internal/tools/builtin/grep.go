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

// GrepTool searches file contents inside the sandbox via ripgrep,
// falling back to a file-list default and an optional line-output mode.
type GrepTool struct{}

func NewGrepTool() *GrepTool { return &GrepTool{} }

func (t *GrepTool) Name() string             { return "grep" }
func (t *GrepTool) Category() tools.Category { return tools.CategorySandbox }
func (t *GrepTool) Description() string {
	return "Searches file contents for a regex pattern. By default lists matching files; match_per_line returns matching lines with 2 lines of context."
}

func (t *GrepTool) InputSchema() *tools.JSONSchema {
	return tools.NewObjectSchema("Parameters for grep", map[string]*tools.JSONSchema{
		"pattern":         tools.NewStringSchema("Regex pattern to search for"),
		"path":            tools.NewStringSchema("Directory to search (default: repo root)"),
		"include":         tools.NewStringSchema("Glob of files to include (e.g. *.go); prefix with ! to exclude"),
		"match_per_line":  tools.NewBooleanSchema("Return matching lines with context instead of a file list (default false)"),
		"case_insensitive": tools.NewBooleanSchema("Case-insensitive search (default false)"),
	}, []string{"pattern"})
}

func (t *GrepTool) Execute(ctx context.Context, params map[string]interface{}) (*tools.Result, error) {
	pattern, _ := params["pattern"].(string)
	if pattern == "" {
		return &tools.Result{Success: false, Error: &tools.Error{Code: "invalid_params", Message: "pattern is required"}}, nil
	}
	path, _ := params["path"].(string)
	if path == "" {
		path = "."
	}
	include, _ := params["include"].(string)
	matchPerLine, _ := params["match_per_line"].(bool)
	caseInsensitive, _ := params["case_insensitive"].(bool)

	argv := []string{"rg", "--color", "never"}
	if caseInsensitive {
		argv = append(argv, "-i")
	}
	if matchPerLine {
		argv = append(argv, "-n", "-C", "2")
	} else {
		argv = append(argv, "-l")
	}
	if include != "" {
		if strings.HasPrefix(include, "!") {
			argv = append(argv, "--glob", "!"+strings.TrimPrefix(include, "!"))
		} else {
			argv = append(argv, "--glob", include)
		}
	}
	argv = append(argv, pattern, path)

	result, err := runInSandbox(ctx, argv, "")
	if err != nil {
		return &tools.Result{Success: false, Error: &tools.Error{Code: "execution_failed", Message: err.Error(), Retryable: sandbox.IsGone(err)}}, nil
	}
	// ripgrep exits 1 on "no matches", which is a successful empty result,
	// not a tool failure.
	if result.ExitCode != 0 && result.ExitCode != 1 {
		return &tools.Result{Success: false, Error: &tools.Error{Code: "grep_failed", Message: strings.TrimSpace(result.Stderr)}}, nil
	}

	return &tools.Result{Success: true, Data: map[string]interface{}{
		"output":  strings.TrimRight(result.Stdout, "\n"),
		"matched": result.ExitCode == 0,
	}}, nil
}
