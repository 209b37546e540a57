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
	"path/filepath"
	"strings"

	"github.com/MakeNowJust/heredoc"

	"github.com/stratuscode/orchestrator/internal/sandbox"
	"github.com/stratuscode/orchestrator/internal/tools"
)

// writeDelimiter is unlikely to collide with generated file content; a
// collision would truncate the heredoc body, so callers writing content
// that contains this exact token should prefer a different tool.
const writeDelimiter = "STRATUSCODE_EOF_bf3e2a"

// WriteToFileTool creates or overwrites a file inside the sandbox via
// mkdir -p + a quoted heredoc, avoiding any local-filesystem interaction.
type WriteToFileTool struct{}

func NewWriteToFileTool() *WriteToFileTool { return &WriteToFileTool{} }

func (t *WriteToFileTool) Name() string             { return "write_to_file" }
func (t *WriteToFileTool) Category() tools.Category { return tools.CategorySandbox }
func (t *WriteToFileTool) Description() string {
	return "Creates or overwrites a file in the sandbox, creating parent directories as needed."
}

func (t *WriteToFileTool) InputSchema() *tools.JSONSchema {
	return tools.NewObjectSchema("Parameters for write_to_file", map[string]*tools.JSONSchema{
		"path":    tools.NewStringSchema("File path, relative to the repo root"),
		"content": tools.NewStringSchema("Full file content"),
	}, []string{"path", "content"})
}

func (t *WriteToFileTool) Execute(ctx context.Context, params map[string]interface{}) (*tools.Result, error) {
	path, _ := params["path"].(string)
	content, _ := params["content"].(string)
	if path == "" {
		return &tools.Result{Success: false, Error: &tools.Error{Code: "invalid_params", Message: "path is required"}}, nil
	}
	if strings.Contains(content, writeDelimiter) {
		return &tools.Result{Success: false, Error: &tools.Error{Code: "invalid_content", Message: "content contains the internal heredoc delimiter"}}, nil
	}

	// Only the fixed header goes through Docf's dedent; content is
	// appended raw afterward so a caller's own leading whitespace is
	// never mistaken for the template's indentation and stripped.
	dir := filepath.Dir(path)
	header := heredoc.Docf(`
		mkdir -p %s
		cat <<'%s' > %s
	`, shellQuote(dir), writeDelimiter, shellQuote(path))
	script := header + content + "\n" + writeDelimiter + "\n"

	result, err := runInSandbox(ctx, []string{"bash", "-lc", script}, "")
	if err != nil {
		return &tools.Result{Success: false, Error: &tools.Error{Code: "execution_failed", Message: err.Error(), Retryable: sandbox.IsGone(err)}}, nil
	}
	if result.ExitCode != 0 {
		return &tools.Result{Success: false, Error: &tools.Error{Code: "write_failed", Message: strings.TrimSpace(result.Stderr)}}, nil
	}
	return &tools.Result{Success: true, Data: map[string]interface{}{
		"path":          path,
		"bytes_written": len(content),
	}}, nil
}
