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

// LsTool lists a directory's immediate contents inside the sandbox.
type LsTool struct{}

func NewLsTool() *LsTool { return &LsTool{} }

func (t *LsTool) Name() string             { return "ls" }
func (t *LsTool) Category() tools.Category { return tools.CategorySandbox }
func (t *LsTool) Description() string {
	return "Lists the contents of a directory in the sandbox."
}

func (t *LsTool) InputSchema() *tools.JSONSchema {
	return tools.NewObjectSchema("Parameters for ls", map[string]*tools.JSONSchema{
		"path": tools.NewStringSchema("Directory path (default: repo root)"),
	}, nil)
}

func (t *LsTool) Execute(ctx context.Context, params map[string]interface{}) (*tools.Result, error) {
	path, _ := params["path"].(string)
	if path == "" {
		path = "."
	}

	result, err := runInSandbox(ctx, []string{"ls", "-1Ap", path}, "")
	if err != nil {
		return &tools.Result{Success: false, Error: &tools.Error{Code: "execution_failed", Message: err.Error(), Retryable: sandbox.IsGone(err)}}, nil
	}
	if result.ExitCode != 0 {
		return &tools.Result{Success: false, Error: &tools.Error{Code: "ls_failed", Message: strings.TrimSpace(result.Stderr)}}, nil
	}

	var entries []string
	for _, line := range strings.Split(strings.TrimRight(result.Stdout, "\n"), "\n") {
		if line == "" {
			continue
		}
		entries = append(entries, line)
	}

	return &tools.Result{Success: true, Data: map[string]interface{}{
		"path":    path,
		"entries": entries,
	}}, nil
}
