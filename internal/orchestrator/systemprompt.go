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
	"encoding/json"
	"fmt"
	"strings"

	"github.com/stratuscode/orchestrator/internal/session"
	"github.com/stratuscode/orchestrator/internal/tools"
)

// agentDefinitions hold the fixed instructions for each operating mode;
// the rest of the system prompt (tool list, repository block,
// alpha_mode/permissions block) is assembled fresh per turn around it.
var agentDefinitions = map[session.AgentMode]string{
	session.ModeBuild: "You are an autonomous coding agent working directly in a cloned git " +
		"repository inside a sandboxed environment. Use the available tools to read, edit, and " +
		"run code. Commit and push only after the user has approved the change (or alpha mode is " +
		"enabled).",
	session.ModePlan: "You are in plan mode: propose an approach before making changes. You may " +
		"only write to the plan file. Record your task breakdown with todowrite, and end the turn " +
		"by calling plan_exit once the plan is ready for approval, or question if you need " +
		"clarification first.",
}

// planModeReminder is appended to the user's message when the turn starts
// (or continues) in plan mode, per step 4.
const planModeReminder = "\n\n(Reminder: you are in plan mode. Only the plan file may be written. " +
	"End this turn with plan_exit once ready for approval, or question if you need more information.)"

// buildModeReminder is appended once a prior turn approved a plan and
// switched the session into build mode, so the very next turn's prompt
// tells the agent it may now write freely.
const buildModeReminder = "\n\n(The plan was approved. You are now in build mode and may edit " +
	"files and run commands freely.)"

// composeUserContent applies step 4's plan/build-mode reminders to the raw
// user message.
func composeUserContent(message string, agentMode session.AgentMode, justSwitchedToBuild bool) string {
	if agentMode == session.ModePlan {
		return message + planModeReminder
	}
	if justSwitchedToBuild {
		return message + buildModeReminder
	}
	return message
}

// repositoryBlock renders the <repository> block naming the repo, its
// branches, and its remote, so the model always knows which tree it's
// working in without needing to call a tool to find out.
func repositoryBlock(owner, repo, baseBranch, sessionBranch, remoteURL string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<repository>\n")
	fmt.Fprintf(&b, "owner: %s\n", owner)
	fmt.Fprintf(&b, "repo: %s\n", repo)
	fmt.Fprintf(&b, "base_branch: %s\n", baseBranch)
	fmt.Fprintf(&b, "session_branch: %s\n", sessionBranch)
	fmt.Fprintf(&b, "remote: %s\n", remoteURL)
	fmt.Fprintf(&b, "</repository>")
	return b.String()
}

// alphaModeBlock and permissionsBlock are mutually exclusive: alpha mode
// tells the model destructive git tools run without asking first; the
// permissions block (default) tells it they require prior confirmation.
func alphaModeBlock() string {
	return "<alpha_mode>\nenabled: true\ngit_commit, git_push, and pr_create will run immediately " +
		"without asking the user to confirm.\n</alpha_mode>"
}

func permissionsBlock() string {
	return "<permissions>\ngit_commit, git_push, and pr_create each require the user's prior " +
		"confirmation (confirmed=true) before they will execute; calling one without it returns " +
		"needsConfirmation instead of running.\n</permissions>"
}

// toolListBlock renders each registered tool's name, description, and
// parameter schema, the way the model needs to see them described in the
// system prompt rather than through a separate tools-list call.
func toolListBlock(toolList []tools.Tool) string {
	var b strings.Builder
	b.WriteString("<tools>\n")
	for _, t := range toolList {
		fmt.Fprintf(&b, "- %s: %s\n", t.Name(), t.Description())
		if schema := t.InputSchema(); schema != nil {
			if raw, err := json.Marshal(schema); err == nil {
				fmt.Fprintf(&b, "  parameters: %s\n", raw)
			}
		}
	}
	b.WriteString("</tools>")
	return b.String()
}

// BuildSystemPrompt assembles step 6's full system prompt: the active
// agent definition, the tool list, the project directory, the repository
// block, and either the alpha_mode or permissions block.
func BuildSystemPrompt(agentMode session.AgentMode, toolList []tools.Tool, workingDir, owner, repo, baseBranch, sessionBranch, remoteURL string, alphaMode bool) string {
	def, ok := agentDefinitions[agentMode]
	if !ok {
		def = agentDefinitions[session.ModeBuild]
	}

	var permBlock string
	if alphaMode {
		permBlock = alphaModeBlock()
	} else {
		permBlock = permissionsBlock()
	}

	return strings.Join([]string{
		def,
		toolListBlock(toolList),
		fmt.Sprintf("Project directory: %s", workingDir),
		repositoryBlock(owner, repo, baseBranch, sessionBranch, remoteURL),
		permBlock,
	}, "\n\n")
}
