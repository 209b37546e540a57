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

package orchestrator

import (
	"net/http"

	"github.com/stratuscode/orchestrator/internal/permission"
	"github.com/stratuscode/orchestrator/internal/session"
	"github.com/stratuscode/orchestrator/internal/streamstate"
	"github.com/stratuscode/orchestrator/internal/todo"
	"github.com/stratuscode/orchestrator/internal/tools"
	"github.com/stratuscode/orchestrator/internal/tools/builtin"
)

// buildRegistry registers every tool named in §4.4 against the stores and
// sandbox context this turn resolved. Rebuilt fresh per turn rather than
// shared across sessions — the rendezvous and session tools close over
// this specific session's id via ctx, but the sandbox/git tools close over
// no session state at all, so registering fresh is cheap and avoids any
// question of whether a Registry is safe to reuse across turns.
func buildRegistry(streams streamstate.Store, sessions session.Store, todos todo.Store, httpClient *http.Client) *tools.Registry {
	registry := tools.NewRegistry()

	registry.Register(builtin.NewBashTool())
	registry.Register(builtin.NewReadTool())
	registry.Register(builtin.NewWriteToFileTool())
	registry.Register(builtin.NewEditTool())
	registry.Register(builtin.NewMultiEditTool())
	registry.Register(builtin.NewGrepTool())
	registry.Register(builtin.NewGlobTool())
	registry.Register(builtin.NewLsTool())

	registry.Register(builtin.NewWebSearchTool(httpClient))
	registry.Register(builtin.NewWebFetchTool(httpClient))

	registry.Register(builtin.NewGitCommitTool())
	registry.Register(builtin.NewGitPushTool())
	registry.Register(builtin.NewPRCreateTool())

	registry.Register(builtin.NewTodoReadTool(todos))
	registry.Register(builtin.NewTodoWriteTool(todos))

	registry.Register(builtin.NewQuestionTool(streams, sessions))
	registry.Register(builtin.NewPlanExitTool(streams, sessions, todos))
	registry.Register(builtin.NewPlanEnterTool())

	return registry
}

// buildExecutor wraps registry in an Executor gated by a permission.Gate
// built from the operator's tool allow/deny list (config-driven, §2c).
func buildExecutor(registry *tools.Registry, allowedTools, disabledTools []string) *tools.Executor {
	gate := permission.NewGate(allowedTools, disabledTools)
	return tools.NewExecutor(registry, gate)
}
