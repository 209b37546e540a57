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
	"strconv"
	"strings"

	"github.com/stratuscode/orchestrator/internal/sandbox"
	"github.com/stratuscode/orchestrator/internal/tools"
)

// ReadTool reads a file from the sandbox with 1-indexed offset/limit,
// prefixing every returned line with its line number (cat -n style).
type ReadTool struct{}

func NewReadTool() *ReadTool { return &ReadTool{} }

func (t *ReadTool) Name() string             { return "read" }
func (t *ReadTool) Category() tools.Category { return tools.CategorySandbox }
func (t *ReadTool) Description() string {
	return "Reads a file from the sandbox, returning 1-indexed, line-numbered content. Supports offset/limit for large files."
}

func (t *ReadTool) InputSchema() *tools.JSONSchema {
	return tools.NewObjectSchema("Parameters for read", map[string]*tools.JSONSchema{
		"path":   tools.NewStringSchema("File path, relative to the repo root"),
		"offset": tools.NewNumberSchema("1-indexed line to start from (default 1)"),
		"limit":  tools.NewNumberSchema("Maximum number of lines to return (default 2000)"),
	}, []string{"path"})
}

func (t *ReadTool) Execute(ctx context.Context, params map[string]interface{}) (*tools.Result, error) {
	path, _ := params["path"].(string)
	if path == "" {
		return &tools.Result{Success: false, Error: &tools.Error{Code: "invalid_params", Message: "path is required"}}, nil
	}
	offset := 1
	if o, ok := params["offset"].(float64); ok && o > 0 {
		offset = int(o)
	}
	limit := 2000
	if l, ok := params["limit"].(float64); ok && l > 0 {
		limit = int(l)
	}

	result, err := runInSandbox(ctx, []string{"cat", path}, "")
	if err != nil {
		return &tools.Result{Success: false, Error: &tools.Error{Code: "execution_failed", Message: err.Error(), Retryable: sandbox.IsGone(err)}}, nil
	}
	if result.ExitCode != 0 {
		return &tools.Result{Success: false, Error: &tools.Error{Code: "read_failed", Message: strings.TrimSpace(result.Stderr)}}, nil
	}

	lines := strings.Split(result.Stdout, "\n")
	start := offset - 1
	if start > len(lines) {
		start = len(lines)
	}
	end := start + limit
	if end > len(lines) {
		end = len(lines)
	}
	window := lines[start:end]

	var b strings.Builder
	for i, line := range window {
		lineNum := start + i + 1
		b.WriteString(strconv.Itoa(lineNum))
		b.WriteByte('\t')
		b.WriteString(line)
		b.WriteByte('\n')
	}

	return &tools.Result{
		Success: true,
		Data: map[string]interface{}{
			"path":        path,
			"content":     b.String(),
			"total_lines": len(lines),
			"truncated":   end < len(lines),
		},
	}, nil
}
