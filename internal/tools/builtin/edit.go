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

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/stratuscode/orchestrator/internal/sandbox"
	"github.com/stratuscode/orchestrator/internal/tools"
)

// applyEdit performs one exact-substring replacement against content,
// returning the new content and a unified diff, or an error describing
// which of §4.4's edit invariants was violated.
func applyEdit(content, oldString, newString string, replaceAll bool) (string, string, error) {
	if oldString == newString {
		return "", "", fmt.Errorf("old_string and new_string are identical")
	}
	count := strings.Count(content, oldString)
	if count == 0 {
		return "", "", fmt.Errorf("old_string not found in file")
	}
	if count > 1 && !replaceAll {
		return "", "", fmt.Errorf("old_string is not unique (%d matches); pass replace_all=true or narrow the match", count)
	}

	var newContent string
	if replaceAll {
		newContent = strings.ReplaceAll(content, oldString, newString)
	} else {
		idx := strings.Index(content, oldString)
		newContent = content[:idx] + newString + content[idx+len(oldString):]
	}

	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(content, newContent, false)
	return newContent, dmp.DiffPrettyText(diffs), nil
}

func readFile(ctx context.Context, path string) (string, error) {
	result, err := runInSandbox(ctx, []string{"cat", path}, "")
	if err != nil {
		return "", err
	}
	if result.ExitCode != 0 {
		return "", fmt.Errorf("%s", strings.TrimSpace(result.Stderr))
	}
	return result.Stdout, nil
}

func writeFile(ctx context.Context, path, content string) error {
	_, err := (&WriteToFileTool{}).Execute(ctx, map[string]interface{}{"path": path, "content": content})
	return err
}

// EditTool performs a single exact-unique-substring replacement in a file.
type EditTool struct{}

func NewEditTool() *EditTool { return &EditTool{} }

func (t *EditTool) Name() string             { return "edit" }
func (t *EditTool) Category() tools.Category { return tools.CategorySandbox }
func (t *EditTool) Description() string {
	return "Replaces an exact, unique substring in a file. Fails if old_string is missing or ambiguous."
}

func (t *EditTool) InputSchema() *tools.JSONSchema {
	return tools.NewObjectSchema("Parameters for edit", map[string]*tools.JSONSchema{
		"path":        tools.NewStringSchema("File path, relative to the repo root"),
		"old_string":  tools.NewStringSchema("Exact substring to find"),
		"new_string":  tools.NewStringSchema("Replacement text"),
		"replace_all": tools.NewBooleanSchema("Replace every occurrence instead of requiring a unique match (default false)"),
	}, []string{"path", "old_string", "new_string"})
}

func (t *EditTool) Execute(ctx context.Context, params map[string]interface{}) (*tools.Result, error) {
	path, _ := params["path"].(string)
	oldString, _ := params["old_string"].(string)
	newString, _ := params["new_string"].(string)
	replaceAll, _ := params["replace_all"].(bool)
	if path == "" {
		return &tools.Result{Success: false, Error: &tools.Error{Code: "invalid_params", Message: "path is required"}}, nil
	}

	content, err := readFile(ctx, path)
	if err != nil {
		return &tools.Result{Success: false, Error: &tools.Error{Code: "read_failed", Message: err.Error(), Retryable: sandbox.IsGone(err)}}, nil
	}

	newContent, diff, err := applyEdit(content, oldString, newString, replaceAll)
	if err != nil {
		return &tools.Result{Success: false, Error: &tools.Error{Code: "edit_rejected", Message: err.Error()}}, nil
	}

	if err := writeFile(ctx, path, newContent); err != nil {
		return &tools.Result{Success: false, Error: &tools.Error{Code: "write_failed", Message: err.Error()}}, nil
	}

	return &tools.Result{Success: true, Data: map[string]interface{}{"path": path, "diff": diff}}, nil
}

// MultiEditTool applies a sequence of edits to one file, all-or-nothing.
type MultiEditTool struct{}

func NewMultiEditTool() *MultiEditTool { return &MultiEditTool{} }

func (t *MultiEditTool) Name() string             { return "multi_edit" }
func (t *MultiEditTool) Category() tools.Category { return tools.CategorySandbox }
func (t *MultiEditTool) Description() string {
	return "Applies a sequence of exact-substring edits to a single file as one all-or-nothing operation."
}

func (t *MultiEditTool) InputSchema() *tools.JSONSchema {
	edit := tools.NewObjectSchema("One edit step", map[string]*tools.JSONSchema{
		"old_string":  tools.NewStringSchema("Exact substring to find"),
		"new_string":  tools.NewStringSchema("Replacement text"),
		"replace_all": tools.NewBooleanSchema("Replace every occurrence for this step (default false)"),
	}, []string{"old_string", "new_string"})
	return tools.NewObjectSchema("Parameters for multi_edit", map[string]*tools.JSONSchema{
		"path":  tools.NewStringSchema("File path, relative to the repo root"),
		"edits": tools.NewArraySchema("Ordered list of edit steps, applied in sequence", edit),
	}, []string{"path", "edits"})
}

func (t *MultiEditTool) Execute(ctx context.Context, params map[string]interface{}) (*tools.Result, error) {
	path, _ := params["path"].(string)
	if path == "" {
		return &tools.Result{Success: false, Error: &tools.Error{Code: "invalid_params", Message: "path is required"}}, nil
	}
	rawEdits, _ := params["edits"].([]interface{})
	if len(rawEdits) == 0 {
		return &tools.Result{Success: false, Error: &tools.Error{Code: "invalid_params", Message: "edits must be a non-empty array"}}, nil
	}

	content, err := readFile(ctx, path)
	if err != nil {
		return &tools.Result{Success: false, Error: &tools.Error{Code: "read_failed", Message: err.Error(), Retryable: sandbox.IsGone(err)}}, nil
	}

	original := content
	var diffs []string
	for i, raw := range rawEdits {
		step, ok := raw.(map[string]interface{})
		if !ok {
			return &tools.Result{Success: false, Error: &tools.Error{Code: "invalid_params", Message: fmt.Sprintf("edit %d is not an object", i)}}, nil
		}
		oldString, _ := step["old_string"].(string)
		newString, _ := step["new_string"].(string)
		replaceAll, _ := step["replace_all"].(bool)

		next, diff, err := applyEdit(content, oldString, newString, replaceAll)
		if err != nil {
			return &tools.Result{Success: false, Error: &tools.Error{Code: "edit_rejected", Message: fmt.Sprintf("edit %d: %v (no edits applied)", i, err)}}, nil
		}
		content = next
		diffs = append(diffs, diff)
	}

	if content == original {
		return &tools.Result{Success: false, Error: &tools.Error{Code: "edit_rejected", Message: "edits resulted in no change"}}, nil
	}
	if err := writeFile(ctx, path, content); err != nil {
		return &tools.Result{Success: false, Error: &tools.Error{Code: "write_failed", Message: err.Error()}}, nil
	}

	return &tools.Result{Success: true, Data: map[string]interface{}{
		"path":       path,
		"edit_count": len(rawEdits),
		"diffs":      diffs,
	}}, nil
}
