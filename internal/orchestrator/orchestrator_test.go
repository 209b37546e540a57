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
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/stratuscode/orchestrator/internal/llmrouter"
	"github.com/stratuscode/orchestrator/internal/message"
	"github.com/stratuscode/orchestrator/internal/sandbox"
	"github.com/stratuscode/orchestrator/internal/session"
	"github.com/stratuscode/orchestrator/internal/todo"
	"github.com/stratuscode/orchestrator/internal/tools"
)

// testRig bundles one scenario's fakes and the Orchestrator wired over
// them, mirroring the teacher's own fixture-struct test style.
type testRig struct {
	sessions    *fakeSessions
	streams     *fakeStreams
	todos       *fakeTodos
	agentStates *fakeAgentStates
	messages    *fakeMessages
	sandboxes   *fakeSandboxProvider
	orch        *Orchestrator
}

func newTestRig(t *testing.T, provider llmrouter.Provider) *testRig {
	t.Helper()

	sess := session.Session{
		ID:     "sess-1",
		UserID: "user-1",
		Owner:  "acme",
		Repo:   "widgets",
		Branch: "main",
		Agent:  session.ModeBuild,
		Model:  "gpt-5",
		Status: session.StatusRunning,
	}

	rig := &testRig{
		sessions:    newFakeSessions(sess),
		streams:     newFakeStreams(),
		todos:       newFakeTodos(),
		agentStates: newFakeAgentStates(),
		messages:    newFakeMessages(),
		sandboxes:   newFakeSandboxProvider(),
	}

	rig.orch = New(Deps{
		Sessions:    rig.sessions,
		Streams:     rig.streams,
		Todos:       rig.todos,
		AgentStates: rig.agentStates,
		Messages:    rig.messages,
		SandboxMgr:  sandbox.NewManager(rig.sandboxes),
		GitHubToken: "ghp_test_token",
		ProviderFactory: func(ctx context.Context, model string) (llmrouter.Provider, error) {
			return provider, nil
		},
		GitHubIdentityResolver: func(ctx context.Context, httpClient *http.Client, token string) (string, string) {
			return "test-agent", "test-agent@users.noreply.github.com"
		},
	})

	return rig
}

func TestRunTurnHappyPathOneShotReply(t *testing.T) {
	provider := &scriptedOrchestratorProvider{responses: []llmrouter.Response{
		{Content: "Hi!", Usage: llmrouter.Usage{InputTokens: 5, OutputTokens: 2}},
	}}
	rig := newTestRig(t, provider)

	err := rig.orch.RunTurn(context.Background(), TurnInput{SessionID: "sess-1", Message: "hello"})
	require.NoError(t, err)

	sess, err := rig.sessions.Get(context.Background(), "sess-1")
	require.NoError(t, err)
	require.Equal(t, session.StatusIdle, sess.Status)
	require.Empty(t, sess.ErrorMessage)
	require.NotEmpty(t, sess.SnapshotID)
	require.Empty(t, sess.SandboxID)

	msgs := rig.messages.rows["sess-1"]
	require.Len(t, msgs, 1)
	require.Equal(t, "Hi!", msgs[0].Content)
	require.Len(t, msgs[0].Parts, 1)
	require.Equal(t, message.PartText, msgs[0].Parts[0].Kind)
	require.Equal(t, "Hi!", msgs[0].Parts[0].Text)

	state, _ := rig.streams.Get(context.Background(), "sess-1")
	require.False(t, state.IsStreaming)
}

func TestRunTurnOneToolCall(t *testing.T) {
	provider := &scriptedOrchestratorProvider{responses: []llmrouter.Response{
		{
			ToolCalls: []llmrouter.ToolCall{{ID: "call_1", Name: "ls", Input: map[string]interface{}{"path": "/work"}}},
		},
		{Content: "Here you go."},
	}}
	rig := newTestRig(t, provider)

	err := rig.orch.RunTurn(context.Background(), TurnInput{SessionID: "sess-1", Message: "list the root"})
	require.NoError(t, err)

	msgs := rig.messages.rows["sess-1"]
	require.Len(t, msgs, 1)
	parts := msgs[0].Parts
	require.Len(t, parts, 2)
	require.Equal(t, message.PartToolCall, parts[0].Kind)
	require.Equal(t, "ls", parts[0].ToolName)
	require.Equal(t, message.ToolCallCompleted, parts[0].ToolStatus)
	require.Contains(t, parts[0].ToolResult, "README.md")
	require.Equal(t, message.PartText, parts[1].Kind)
	require.Equal(t, "Here you go.", parts[1].Text)
}

func TestRunTurnCancellationMidStream(t *testing.T) {
	savedInterval := cancelPollInterval
	cancelPollInterval = 10 * time.Millisecond
	defer func() { cancelPollInterval = savedInterval }()

	provider := &cancellableProvider{content: "Working"}
	rig := newTestRig(t, provider)

	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = rig.sessions.SetCancelRequested(context.Background(), "sess-1", true)
	}()

	err := rig.orch.RunTurn(context.Background(), TurnInput{SessionID: "sess-1", Message: "go slow"})
	require.NoError(t, err)

	sess, _ := rig.sessions.Get(context.Background(), "sess-1")
	require.Equal(t, session.StatusIdle, sess.Status)
	require.Empty(t, sess.ErrorMessage)

	msgs := rig.messages.rows["sess-1"]
	require.Len(t, msgs, 1)
	require.True(t, strings.HasPrefix(msgs[0].Content, "Working") || msgs[0].Content == cancelledContentFallback)
}

func TestRunTurnSandboxGoneOnFirstLsRetriesOnce(t *testing.T) {
	provider := &scriptedOrchestratorProvider{responses: []llmrouter.Response{
		{ToolCalls: []llmrouter.ToolCall{{ID: "call_1", Name: "ls", Input: map[string]interface{}{"path": "/work"}}}},
		{Content: "done"},
	}}
	rig := newTestRig(t, provider)

	var lsCalls int
	rig.sandboxes.runCommand = func(argv []string, callNum int) (sandbox.Result, error) {
		if len(argv) > 0 && argv[0] == "ls" {
			lsCalls++
			if lsCalls == 1 {
				return sandbox.Result{}, &sandbox.GoneError{SandboxID: "whatever"}
			}
		}
		return sandbox.Result{Stdout: "README.md\nsrc\n", ExitCode: 0}, nil
	}

	err := rig.orch.RunTurn(context.Background(), TurnInput{SessionID: "sess-1", Message: "list the root"})
	require.NoError(t, err)
	require.Equal(t, 2, lsCalls)

	msgs := rig.messages.rows["sess-1"]
	require.Len(t, msgs, 1)
	require.Equal(t, message.PartToolCall, msgs[0].Parts[0].Kind)
	require.Equal(t, message.ToolCallCompleted, msgs[0].Parts[0].ToolStatus)
	require.Contains(t, msgs[0].Parts[0].ToolResult, "README.md")
}

func TestRunTurnPlanApprovalSwitchesToBuildMode(t *testing.T) {
	provider := &scriptedOrchestratorProvider{responses: []llmrouter.Response{
		{
			ToolCalls: []llmrouter.ToolCall{{
				ID:   "call_1",
				Name: "plan_exit",
				Input: map[string]interface{}{"summary": "build X"},
			}},
		},
		{Content: "Building now."},
	}}
	rig := newTestRig(t, provider)

	sess, _ := rig.sessions.Get(context.Background(), "sess-1")
	sess.Agent = session.ModePlan
	_ = rig.sessions.Update(context.Background(), sess)
	_, _ = rig.todos.WriteAll(context.Background(), "sess-1", []todo.Todo{
		{Content: "step 1", Status: todo.StatusPending},
		{Content: "step 2", Status: todo.StatusPending},
		{Content: "step 3", Status: todo.StatusPending},
	})

	go func() {
		for i := 0; i < 50; i++ {
			state, _ := rig.streams.Get(context.Background(), "sess-1")
			if state.PendingQuestion != "" {
				_ = rig.streams.AnswerQuestion(context.Background(), "sess-1", `{"answer":"Approve & Start Building"}`)
				return
			}
			time.Sleep(5 * time.Millisecond)
		}
	}()

	err := rig.orch.RunTurn(context.Background(), TurnInput{SessionID: "sess-1", Message: "ready?"})
	require.NoError(t, err)

	sess, _ = rig.sessions.Get(context.Background(), "sess-1")
	require.Equal(t, session.ModeBuild, sess.Agent)

	state, _ := rig.agentStates.Get(context.Background(), "sess-1")
	require.Equal(t, session.ModeBuild, state.AgentMode)
}

func TestRunTurnEditValidationFailureContinuesTurn(t *testing.T) {
	provider := &scriptedOrchestratorProvider{responses: []llmrouter.Response{
		{ToolCalls: []llmrouter.ToolCall{{
			ID:   "call_1",
			Name: "edit",
			Input: map[string]interface{}{
				"path":       "main.go",
				"old_string": "same",
				"new_string": "same",
			},
		}}},
		{Content: "Nothing to change."},
	}}
	rig := newTestRig(t, provider)

	err := rig.orch.RunTurn(context.Background(), TurnInput{SessionID: "sess-1", Message: "make a no-op edit"})
	require.NoError(t, err)

	msgs := rig.messages.rows["sess-1"]
	require.Len(t, msgs, 1)
	require.Equal(t, message.PartToolCall, msgs[0].Parts[0].Kind)
	require.Contains(t, msgs[0].Parts[0].ToolResult, "identical")

	sess, _ := rig.sessions.Get(context.Background(), "sess-1")
	require.Equal(t, session.StatusIdle, sess.Status)
}

// cancellableProvider streams one token then blocks on ctx.Done(),
// simulating an in-flight turn a client cancels mid-stream.
type cancellableProvider struct {
	content string
}

func (p *cancellableProvider) Name() string { return "cancellable" }

func (p *cancellableProvider) Stream(ctx context.Context, systemPrompt string, messages []llmrouter.Message, toolList []tools.Tool, cb llmrouter.Callbacks) (*llmrouter.Response, error) {
	if cb.OnToken != nil {
		cb.OnToken(p.content)
	}
	<-ctx.Done()
	return &llmrouter.Response{Content: p.content}, ctx.Err()
}
