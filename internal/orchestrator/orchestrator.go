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

// Package orchestrator drives one complete agent turn: it acquires a
// sandbox, assembles context, streams an LLM response while dispatching
// tool calls against that sandbox, propagates progress to the Live-Stream
// Store, honors cooperative cancellation, and finalizes the turn with a
// resumable sandbox snapshot. It is the component every other package in
// this repository exists to serve.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/stratuscode/orchestrator/internal/agentstate"
	"github.com/stratuscode/orchestrator/internal/llmrouter"
	"github.com/stratuscode/orchestrator/internal/log"
	"github.com/stratuscode/orchestrator/internal/message"
	"github.com/stratuscode/orchestrator/internal/sandbox"
	"github.com/stratuscode/orchestrator/internal/session"
	"github.com/stratuscode/orchestrator/internal/streamstate"
	"github.com/stratuscode/orchestrator/internal/todo"
	"github.com/stratuscode/orchestrator/internal/tools/builtin"
)

// cancelPollInterval is step 8's side-channel poll: independent of the LLM
// stream itself, it checks Session.CancelRequested every ~2s and aborts
// the stream's context the instant it flips. A var rather than a const,
// like rendezvous.go's answerPollInterval, so tests can shrink it.
var cancelPollInterval = 2 * time.Second

// sessionBranchPrefix names the working branch cut for a session's first
// turn, e.g. stratuscode/<sessionId>.
const sessionBranchPrefix = "stratuscode/"

// contextWindowTable maps known model ids to their context window in
// tokens; an unlisted model defaults to defaultContextWindow. Feeds the
// (currently advisory) summarization threshold the caller may apply
// before a turn grows past what the model can see.
var contextWindowTable = map[string]int{
	"claude-opus-4-6":   200_000,
	"claude-sonnet-4-6": 200_000,
	"gpt-5":             272_000,
	"gpt-5-mini":        272_000,
	"gpt-5-codex":       272_000,
}

const defaultContextWindow = 128_000

// ContextWindowFor returns the known context window for modelID, or
// defaultContextWindow if it isn't in the table.
func ContextWindowFor(modelID string) int {
	if w, ok := contextWindowTable[modelID]; ok {
		return w
	}
	return defaultContextWindow
}

// Deps bundles every durable store and external collaborator RunTurn
// needs. Built once by the process entrypoint and shared across turns;
// nothing in it is turn-specific (that's TurnInput).
type Deps struct {
	Sessions    session.Store
	Streams     streamstate.Store
	Todos       todo.Store
	AgentStates agentstate.Store
	Messages    message.Store

	SandboxMgr *sandbox.Manager
	HTTPClient *http.Client

	LLMConfig    llmrouter.Config
	BedrockCreds llmrouter.BedrockCredentials
	CodexTokens  *llmrouter.CodexTokenCache

	GitHubToken string

	AllowedTools  []string
	DisabledTools []string

	// ProviderFactory overrides how RunTurn resolves a model id to a
	// Provider. Production wiring leaves this nil, in which case
	// resolveProvider calls llmrouter.ResolveRoute/NewProvider directly;
	// tests set it to return a scripted in-memory Provider instead of
	// exercising the routing table's credential checks.
	ProviderFactory func(ctx context.Context, model string) (llmrouter.Provider, error)

	// GitHubIdentityResolver overrides how acquireSandbox derives the
	// sandbox's git commit identity. Production wiring leaves this nil,
	// in which case acquireSandbox calls resolveGitIdentity against the
	// real GitHub API; tests set it to a scripted stub so RunTurn never
	// makes a real network call.
	GitHubIdentityResolver func(ctx context.Context, httpClient *http.Client, token string) (name, email string)
}

// Orchestrator drives turns against a fixed set of Deps.
type Orchestrator struct {
	deps Deps
}

// New builds an Orchestrator over deps.
func New(deps Deps) *Orchestrator {
	return &Orchestrator{deps: deps}
}

// TurnInput is RunTurn's public contract (§4.5). The caller has already
// cleared CancelRequested and set Status=running via Session Store's
// PrepareSend, opened the StreamingState, and persisted the user
// Message — RunTurn picks up from there.
type TurnInput struct {
	SessionID       string
	Message         string
	Model           string
	AlphaMode       bool
	ReasoningEffort string
	AgentMode       session.AgentMode // zero value means "keep the session's current mode"
}

// RunTurn drives one full turn to completion, following the 11-step
// procedure of §4.5. It never panics on a recoverable error: every
// failure path ends in a session finalize (idle or error), matching §7's
// "the session row's status and errorMessage are the complete error
// surface" contract. The one exception is MissingCredentialsError, raised
// synchronously before anything mutates durable state.
func (o *Orchestrator) RunTurn(ctx context.Context, in TurnInput) error {
	logger := log.With(zap.String("session_id", in.SessionID))

	sess, err := o.deps.Sessions.Get(ctx, in.SessionID)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	if in.AgentMode != "" {
		sess.Agent = in.AgentMode
	}
	if in.Model != "" {
		sess.Model = in.Model
	}

	// Step 1: resolve provider.
	provider, err := o.resolveProvider(ctx, sess.Model)
	if err != nil {
		return o.failMissingCredentials(ctx, sess, fmt.Sprintf("resolve provider for model %q: %v", sess.Model, err))
	}
	if o.deps.GitHubToken == "" {
		return o.failMissingCredentials(ctx, sess, "GITHUB_TOKEN is not configured")
	}

	// Step 2: acquire sandbox, ensure fresh origin remote.
	sandboxID, branchName, err := o.acquireSandbox(ctx, &sess)
	if err != nil {
		return o.finalizeError(ctx, sess, nil, nil, fmt.Errorf("acquire sandbox: %w", err))
	}
	sess.SandboxID = sandboxID
	sess.SnapshotID = ""
	sess.SessionBranch = branchName
	if err := o.deps.Sessions.Update(ctx, sess); err != nil {
		logger.Warn("persist acquired sandbox id", zap.Error(err))
	}

	// Step 3: load agent-state.
	agentState, err := o.deps.AgentStates.Get(ctx, in.SessionID)
	if err != nil {
		return o.finalizeError(ctx, sess, nil, nil, fmt.Errorf("load agent state: %w", err))
	}
	justSwitchedToBuild := agentState.AgentMode == session.ModePlan && sess.Agent == session.ModeBuild

	workingDir := "/workspace"

	// Step 4: compose message content, ensure plan file on demand.
	if sess.Agent == session.ModePlan {
		planPath := planFilePath(in.SessionID)
		if agentState.PlanFilePath == "" {
			if err := o.ensurePlanFile(ctx, sandboxID, sess, planPath); err != nil {
				logger.Warn("ensure plan file", zap.Error(err))
			}
			agentState.PlanFilePath = planPath
		}
	}
	userContent := composeUserContent(in.Message, sess.Agent, justSwitchedToBuild)

	// Step 5: build tool registry bound to this turn's sandbox.
	registry := buildRegistry(o.deps.Streams, o.deps.Sessions, o.deps.Todos, o.deps.HTTPClient)
	executor := buildExecutor(registry, o.deps.AllowedTools, o.deps.DisabledTools)
	toolList := registry.List()

	// Step 6: build system prompt.
	remoteURL := fmt.Sprintf("https://x-access-token:%s@github.com/%s/%s.git", o.deps.GitHubToken, sess.Owner, sess.Repo)
	systemPrompt := BuildSystemPrompt(sess.Agent, toolList, workingDir, sess.Owner, sess.Repo, sess.Branch, sess.SessionBranch, remoteURL, in.AlphaMode)

	history := sageMessagesToLLM(agentState.SageMessages)
	history = append(history, llmrouter.Message{Role: "user", Content: userContent})

	// Steps 7-8: run the LLM loop with the coalesced-flush callbacks and
	// the cancellation side channel. The sandbox/session values the
	// bash/read/write/git tools need are attached to runCtx, the same
	// context Executor.Execute receives via ProcessDirectly, so they're
	// visible on every tool call this turn makes.
	runCtx, cancelStream := context.WithCancel(ctx)
	defer cancelStream()

	sandboxCtx := builtin.SandboxContext{
		Manager:    o.deps.SandboxMgr,
		SandboxID:  sandboxID,
		Owner:      sess.Owner,
		Repo:       sess.Repo,
		Branch:     sess.SessionBranch,
		WorkingDir: workingDir,
	}
	runCtx = builtin.WithSandboxContext(runCtx, sandboxCtx)
	runCtx = builtin.WithSessionID(runCtx, in.SessionID)

	flusher := newTokenFlusher(o.deps.Streams, in.SessionID)
	defer flusher.stop()

	pollDone := make(chan struct{})
	go o.cancelPoller(runCtx, cancelStream, in.SessionID, pollDone)
	defer func() { <-pollDone }()

	turnState := &turnProgress{}
	cb := o.buildCallbacks(runCtx, in.SessionID, flusher, turnState, &sess)

	result, runErr := llmrouter.ProcessDirectly(runCtx, provider, systemPrompt, history, toolList, executor, in.AlphaMode, cb)
	flusher.ForceFlush(ctx)

	if turnState.modeSwitch != "" {
		sess.Agent = turnState.modeSwitch
	}
	agentState.AgentMode = sess.Agent

	switch {
	case runErr == nil:
		return o.finalizeSuccess(ctx, sess, agentState, result, turnState)
	case runErr == llmrouter.ErrCancelledByUser:
		return o.finalizeCancelled(ctx, sess, agentState, result, turnState)
	default:
		return o.finalizeError(ctx, sess, result, turnState, runErr)
	}
}

// resolveProvider implements step 1: route the model id, refreshing Codex
// OAuth tokens transparently via the CodexTokenCache attached to Deps.
// That one cache is shared by every turn this Orchestrator runs; it is
// not rebuilt per turn.
func (o *Orchestrator) resolveProvider(ctx context.Context, model string) (llmrouter.Provider, error) {
	if o.deps.ProviderFactory != nil {
		return o.deps.ProviderFactory(ctx, model)
	}
	route, err := llmrouter.ResolveRoute(model, o.deps.LLMConfig)
	if err != nil {
		return nil, err
	}
	return llmrouter.NewProvider(ctx, route, o.deps.BedrockCreds, o.deps.CodexTokens)
}

// acquireSandbox implements step 2: acquire via the Sandbox Manager, then
// unconditionally refresh the origin remote and ensure the session branch
// is checked out and git identity configured — regardless of which of
// resume/reconnect/fresh-clone path Acquire took, per §4.3 step 4.
func (o *Orchestrator) acquireSandbox(ctx context.Context, sess *session.Session) (sandboxID, branchName string, err error) {
	branchName = sess.SessionBranch
	if branchName == "" {
		branchName = sessionBranchPrefix + sess.ID
	}

	handle := sandbox.Handle{SandboxID: sess.SandboxID, SnapshotID: sess.SnapshotID}
	sandboxID, err = o.deps.SandboxMgr.Acquire(ctx, handle, sess.Owner, sess.Repo, sess.Branch)
	if err != nil {
		return "", "", err
	}

	remoteURL := fmt.Sprintf("https://x-access-token:%s@github.com/%s/%s.git", o.deps.GitHubToken, sess.Owner, sess.Repo)
	identityResolver := o.deps.GitHubIdentityResolver
	if identityResolver == nil {
		identityResolver = resolveGitIdentity
	}
	identityName, identityEmail := identityResolver(ctx, o.deps.HTTPClient, o.deps.GitHubToken)
	setupScript := fmt.Sprintf(
		"git remote set-url origin %s && (git checkout %s 2>/dev/null || git checkout -b %s) && git config user.name %s && git config user.email %s",
		shellQuote(remoteURL), shellQuote(branchName), shellQuote(branchName), shellQuote(identityName), shellQuote(identityEmail),
	)
	if _, _, err := o.deps.SandboxMgr.SafeExec(ctx, sandboxID, sess.Owner, sess.Repo, sess.Branch, []string{"bash", "-lc", setupScript}, "/workspace", nil); err != nil {
		return "", "", fmt.Errorf("post-acquire setup: %w", err)
	}
	return sandboxID, branchName, nil
}

// shellQuote single-quotes s for safe inclusion in a generated shell
// command line, the same convention the bash/git tools use.
func shellQuote(s string) string {
	return "'" + replaceAll(s, "'", `'\''`) + "'"
}

func replaceAll(s, old, new string) string {
	out := ""
	for i := 0; i < len(s); {
		if i+len(old) <= len(s) && s[i:i+len(old)] == old {
			out += new
			i += len(old)
			continue
		}
		out += string(s[i])
		i++
	}
	return out
}

// planFilePath is the fixed path §6 names for plan mode's single writable
// file.
func planFilePath(sessionID string) string {
	return fmt.Sprintf("/workspace/.stratuscode/plans/%s.md", sessionID)
}

// ensurePlanFile creates the plan file on demand via the sandbox.
func (o *Orchestrator) ensurePlanFile(ctx context.Context, sandboxID string, sess session.Session, path string) error {
	script := fmt.Sprintf("mkdir -p $(dirname %s) && touch %s", shellQuote(path), shellQuote(path))
	_, _, err := o.deps.SandboxMgr.SafeExec(ctx, sandboxID, sess.Owner, sess.Repo, sess.Branch, []string{"bash", "-lc", script}, "/workspace", nil)
	return err
}

// sageMessagesToLLM converts the persisted agent-state history into the
// wire-agnostic Message shape llmrouter.Provider.Stream expects.
func sageMessagesToLLM(sageMessages []agentstate.SageMessage) []llmrouter.Message {
	out := make([]llmrouter.Message, 0, len(sageMessages))
	for _, m := range sageMessages {
		out = append(out, llmrouter.Message{Role: m.Role, Content: m.Content})
	}
	return out
}

// turnProgress accumulates the state RunTurn's finalize steps need once
// the LLM loop has returned: the streamed text/reasoning so far (the only
// place a cancelled turn's partial output survives, since a cancelled
// provider.Stream call returns no usable Response) and whether a
// plan_enter/plan_exit tool call requested a mode switch. Whether a
// file-modifying tool ran is tracked on the session (HasChanges) instead.
type turnProgress struct {
	mu         sync.Mutex
	content    string
	reasoning  string
	modeSwitch session.AgentMode // empty if no switch was requested
}

func (p *turnProgress) addContent(s string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.content += s
}

func (p *turnProgress) addReasoning(s string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reasoning += s
}

func (p *turnProgress) snapshot() (content, reasoning string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.content, p.reasoning
}

// fileModifyingTools marks a turn as hasChanges the first time one of
// these runs successfully, per §4.5 step 7's onToolResult callback.
var fileModifyingTools = map[string]bool{
	"write_to_file": true,
	"edit":          true,
	"multi_edit":    true,
}

// buildCallbacks wires llmrouter.Callbacks to the Live-Stream Store and to
// the turn's cancellation/mode-switch bookkeeping, per §4.5 step 7.
// OnToolResult only carries a tool-call id, not the tool's name, so the
// names started in OnToolCallStart are kept in toolNames for that lookup.
func (o *Orchestrator) buildCallbacks(ctx context.Context, sessionID string, flusher *tokenFlusher, progress *turnProgress, sess *session.Session) llmrouter.Callbacks {
	toolNames := make(map[string]string)

	return llmrouter.Callbacks{
		OnToken: func(tok string) {
			progress.addContent(tok)
			flusher.addToken(ctx, tok)
		},
		OnReasoning: func(tok string) {
			progress.addReasoning(tok)
			flusher.addReasoning(ctx, tok)
		},
		OnToolCallStart: func(tc llmrouter.ToolCall) {
			flusher.ForceFlush(ctx)
			toolNames[tc.ID] = tc.Name
			argsJSON, _ := json.Marshal(tc.Input)
			_ = o.deps.Streams.AddToolCall(ctx, sessionID, tc.ID, tc.Name, string(argsJSON))
		},
		OnToolResult: func(toolCallID, result string, isError bool) {
			_ = o.deps.Streams.UpdateToolResult(ctx, sessionID, toolCallID, result)
			if !isError && !sess.HasChanges && fileModifyingTools[toolNames[toolCallID]] {
				_ = o.deps.Sessions.MarkHasChanges(ctx, sessionID)
				sess.HasChanges = true
			}
			switch toolNames[toolCallID] {
			case "plan_exit":
				if !isError {
					var exitResult struct {
						Approved bool `json:"approved"`
					}
					if json.Unmarshal([]byte(result), &exitResult) == nil && exitResult.Approved {
						progress.modeSwitch = session.ModeBuild
					}
				}
			case "plan_enter":
				if !isError {
					progress.modeSwitch = session.ModePlan
				}
			}
		},
	}
}

// cancelPoller implements step 8: every cancelPollInterval, check
// Session.CancelRequested; the instant it's true, cancel the turn's
// context (aborting the in-flight LLM stream) and stop polling.
func (o *Orchestrator) cancelPoller(ctx context.Context, cancel context.CancelFunc, sessionID string, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(cancelPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sess, err := o.deps.Sessions.Get(ctx, sessionID)
			if err != nil {
				continue
			}
			if sess.CancelRequested {
				cancel()
				return
			}
		}
	}
}
