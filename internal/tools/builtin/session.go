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

	"github.com/stratuscode/orchestrator/internal/todo"
	"github.com/stratuscode/orchestrator/internal/tools"
)

// sessionContextKey carries the session id a session-scoped tool needs to
// reach the right row in internal/todo.Store.
type sessionContextKey struct{}

func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, sessionID)
}

func sessionIDFrom(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(sessionContextKey{}).(string)
	return id, ok && id != ""
}

// TodoReadTool returns the session's current todo list.
type TodoReadTool struct {
	Store todo.Store
}

func NewTodoReadTool(store todo.Store) *TodoReadTool { return &TodoReadTool{Store: store} }

func (t *TodoReadTool) Name() string             { return "todoread" }
func (t *TodoReadTool) Category() tools.Category { return tools.CategorySession }
func (t *TodoReadTool) Description() string {
	return "Returns the session's current todo list."
}

func (t *TodoReadTool) InputSchema() *tools.JSONSchema {
	return tools.NewObjectSchema("Parameters for todoread", nil, nil)
}

func (t *TodoReadTool) Execute(ctx context.Context, params map[string]interface{}) (*tools.Result, error) {
	sessionID, ok := sessionIDFrom(ctx)
	if !ok {
		return &tools.Result{Success: false, Error: &tools.Error{Code: "invalid_state", Message: "no session id on context"}}, nil
	}
	todos, err := t.Store.List(ctx, sessionID)
	if err != nil {
		return &tools.Result{Success: false, Error: &tools.Error{Code: "read_failed", Message: err.Error(), Retryable: true}}, nil
	}
	return &tools.Result{Success: true, Data: map[string]interface{}{"todos": todos}}, nil
}

// TodoWriteTool replaces the session's entire todo list atomically.
type TodoWriteTool struct {
	Store todo.Store
}

func NewTodoWriteTool(store todo.Store) *TodoWriteTool { return &TodoWriteTool{Store: store} }

func (t *TodoWriteTool) Name() string             { return "todowrite" }
func (t *TodoWriteTool) Category() tools.Category { return tools.CategorySession }
func (t *TodoWriteTool) Description() string {
	return "Replaces the session's entire todo list. At most one todo may be in_progress."
}

func (t *TodoWriteTool) InputSchema() *tools.JSONSchema {
	item := tools.NewObjectSchema("One todo item", map[string]*tools.JSONSchema{
		"content":  tools.NewStringSchema("Task description"),
		"status":   tools.NewStringSchema("Task status").WithEnum("pending", "in_progress", "completed"),
		"priority": tools.NewStringSchema("Task priority").WithEnum("low", "medium", "high"),
	}, []string{"content", "status"})
	return tools.NewObjectSchema("Parameters for todowrite", map[string]*tools.JSONSchema{
		"todos": tools.NewArraySchema("The full replacement todo list", item),
	}, []string{"todos"})
}

func (t *TodoWriteTool) Execute(ctx context.Context, params map[string]interface{}) (*tools.Result, error) {
	sessionID, ok := sessionIDFrom(ctx)
	if !ok {
		return &tools.Result{Success: false, Error: &tools.Error{Code: "invalid_state", Message: "no session id on context"}}, nil
	}
	rawTodos, _ := params["todos"].([]interface{})

	todos := make([]todo.Todo, 0, len(rawTodos))
	for _, raw := range rawTodos {
		item, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		content, _ := item["content"].(string)
		status, _ := item["status"].(string)
		priority, _ := item["priority"].(string)
		todos = append(todos, todo.Todo{
			SessionID: sessionID,
			Content:   content,
			Status:    todo.Status(status),
			Priority:  todo.Priority(priority),
		})
	}

	if err := todo.Validate(todos); err != nil {
		return &tools.Result{Success: false, Error: &tools.Error{Code: "invalid_params", Message: err.Error()}}, nil
	}

	written, err := t.Store.WriteAll(ctx, sessionID, todos)
	if err != nil {
		return &tools.Result{Success: false, Error: &tools.Error{Code: "write_failed", Message: err.Error(), Retryable: true}}, nil
	}
	return &tools.Result{Success: true, Data: map[string]interface{}{"todos": written}}, nil
}
