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
	"fmt"
	"sync"
	"time"

	"github.com/stratuscode/orchestrator/internal/agentstate"
	"github.com/stratuscode/orchestrator/internal/llmrouter"
	"github.com/stratuscode/orchestrator/internal/message"
	"github.com/stratuscode/orchestrator/internal/pubsub"
	"github.com/stratuscode/orchestrator/internal/sandbox"
	"github.com/stratuscode/orchestrator/internal/session"
	"github.com/stratuscode/orchestrator/internal/streamstate"
	"github.com/stratuscode/orchestrator/internal/todo"
	"github.com/stratuscode/orchestrator/internal/tools"
)

// fakeSessions is an in-memory session.Store standing in for a real
// backend in every seed scenario test.
type fakeSessions struct {
	mu   sync.Mutex
	rows map[string]session.Session
}

func newFakeSessions(seed session.Session) *fakeSessions {
	return &fakeSessions{rows: map[string]session.Session{seed.ID: seed}}
}

func (f *fakeSessions) Create(ctx context.Context, s session.Session) (session.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[s.ID] = s
	return s, nil
}

func (f *fakeSessions) Get(ctx context.Context, id string) (session.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.rows[id]
	if !ok {
		return session.Session{}, fmt.Errorf("no such session: %s", id)
	}
	return s, nil
}

func (f *fakeSessions) List(ctx context.Context, userID string) ([]session.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []session.Session
	for _, s := range f.rows {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeSessions) Update(ctx context.Context, s session.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[s.ID] = s
	return nil
}

func (f *fakeSessions) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rows, id)
	return nil
}

func (f *fakeSessions) PrepareSend(ctx context.Context, id string, messagePreview string) (session.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.rows[id]
	s.CancelRequested = false
	s.Status = session.StatusRunning
	if s.Title == "" {
		s.Title = session.TruncatedPreview(messagePreview, 60)
	}
	f.rows[id] = s
	return s, nil
}

func (f *fakeSessions) MarkHasChanges(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.rows[id]
	s.HasChanges = true
	f.rows[id] = s
	return nil
}

func (f *fakeSessions) SetCancelRequested(ctx context.Context, id string, cancel bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.rows[id]
	s.CancelRequested = cancel
	f.rows[id] = s
	return nil
}

func (f *fakeSessions) ListStale(ctx context.Context, olderThan time.Time) ([]session.Session, error) {
	return nil, nil
}

func (f *fakeSessions) PurgeSessionData(ctx context.Context, id string) error { return nil }

func (f *fakeSessions) Subscribe(ctx context.Context) <-chan pubsub.Event[session.Session] {
	return make(chan pubsub.Event[session.Session])
}

// fakeStreams is an in-memory streamstate.Store.
type fakeStreams struct {
	mu    sync.Mutex
	state map[string]streamstate.StreamingState
}

func newFakeStreams() *fakeStreams {
	return &fakeStreams{state: map[string]streamstate.StreamingState{}}
}

func (f *fakeStreams) Get(ctx context.Context, sessionID string) (streamstate.StreamingState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state[sessionID], nil
}

func (f *fakeStreams) Start(ctx context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state[sessionID] = streamstate.StreamingState{SessionID: sessionID, IsStreaming: true}
	return nil
}

func (f *fakeStreams) AppendToken(ctx context.Context, sessionID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.state[sessionID]
	s.Content += text
	f.state[sessionID] = s
	return nil
}

func (f *fakeStreams) AppendReasoning(ctx context.Context, sessionID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.state[sessionID]
	s.Reasoning += text
	f.state[sessionID] = s
	return nil
}

func (f *fakeStreams) AddToolCall(ctx context.Context, sessionID, toolCallID, name, args string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.state[sessionID]
	s.ToolCalls = append(s.ToolCalls, streamstate.ToolCall{ID: toolCallID, Name: name, Args: args, Status: message.ToolCallRunning})
	f.state[sessionID] = s
	return nil
}

func (f *fakeStreams) UpdateToolResult(ctx context.Context, sessionID, toolCallID, result string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.state[sessionID]
	for i := range s.ToolCalls {
		if s.ToolCalls[i].ID == toolCallID {
			s.ToolCalls[i].Result = result
			s.ToolCalls[i].Status = message.ToolCallCompleted
		}
	}
	f.state[sessionID] = s
	return nil
}

func (f *fakeStreams) SetQuestion(ctx context.Context, sessionID, questionJSON string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.state[sessionID]
	s.PendingQuestion = questionJSON
	f.state[sessionID] = s
	return nil
}

func (f *fakeStreams) AnswerQuestion(ctx context.Context, sessionID, answerJSON string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.state[sessionID]
	s.PendingAnswer = answerJSON
	f.state[sessionID] = s
	return nil
}

func (f *fakeStreams) ClearQuestion(ctx context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.state[sessionID]
	s.PendingQuestion = ""
	s.PendingAnswer = ""
	f.state[sessionID] = s
	return nil
}

func (f *fakeStreams) Finish(ctx context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.state[sessionID]
	s.IsStreaming = false
	f.state[sessionID] = s
	return nil
}

func (f *fakeStreams) Subscribe(ctx context.Context) <-chan pubsub.Event[streamstate.StreamingState] {
	return make(chan pubsub.Event[streamstate.StreamingState])
}

// fakeTodos is an in-memory todo.Store.
type fakeTodos struct {
	mu   sync.Mutex
	rows map[string][]todo.Todo
}

func newFakeTodos() *fakeTodos { return &fakeTodos{rows: map[string][]todo.Todo{}} }

func (f *fakeTodos) List(ctx context.Context, sessionID string) ([]todo.Todo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rows[sessionID], nil
}

func (f *fakeTodos) WriteAll(ctx context.Context, sessionID string, todos []todo.Todo) ([]todo.Todo, error) {
	if err := todo.Validate(todos); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[sessionID] = todos
	return todos, nil
}

func (f *fakeTodos) Subscribe(ctx context.Context) <-chan pubsub.Event[[]todo.Todo] {
	return make(chan pubsub.Event[[]todo.Todo])
}

// fakeAgentStates is an in-memory agentstate.Store.
type fakeAgentStates struct {
	mu   sync.Mutex
	rows map[string]agentstate.AgentState
}

func newFakeAgentStates() *fakeAgentStates {
	return &fakeAgentStates{rows: map[string]agentstate.AgentState{}}
}

func (f *fakeAgentStates) Get(ctx context.Context, sessionID string) (agentstate.AgentState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rows[sessionID], nil
}

func (f *fakeAgentStates) Save(ctx context.Context, s agentstate.AgentState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[s.SessionID] = s
	return nil
}

func (f *fakeAgentStates) Subscribe(ctx context.Context) <-chan pubsub.Event[agentstate.AgentState] {
	return make(chan pubsub.Event[agentstate.AgentState])
}

// fakeMessages is an in-memory message.Store.
type fakeMessages struct {
	mu   sync.Mutex
	rows map[string][]message.Message
}

func newFakeMessages() *fakeMessages { return &fakeMessages{rows: map[string][]message.Message{}} }

func (f *fakeMessages) Append(ctx context.Context, m message.Message) (message.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[m.SessionID] = append(f.rows[m.SessionID], m)
	return m, nil
}

func (f *fakeMessages) List(ctx context.Context, sessionID string) ([]message.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rows[sessionID], nil
}

func (f *fakeMessages) Subscribe(ctx context.Context) <-chan pubsub.Event[message.Message] {
	return make(chan pubsub.Event[message.Message])
}

// fakeSandboxProvider is an in-memory sandbox.Provider. runCommand is
// swappable per test so a scenario can script a 410 Gone on the first
// call (scenario 4) or a fixed stdout otherwise.
type fakeSandboxProvider struct {
	mu        sync.Mutex
	nextID    int
	runCalls  int
	runCommand func(argv []string, callNum int) (sandbox.Result, error)
}

func newFakeSandboxProvider() *fakeSandboxProvider {
	return &fakeSandboxProvider{
		runCommand: func(argv []string, callNum int) (sandbox.Result, error) {
			return sandbox.Result{Stdout: "README.md\nsrc\n", ExitCode: 0}, nil
		},
	}
}

func (p *fakeSandboxProvider) Create(ctx context.Context, owner, repo, branch string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextID++
	return fmt.Sprintf("sandbox-%d", p.nextID), nil
}

func (p *fakeSandboxProvider) Get(ctx context.Context, sandboxID string) error { return nil }

func (p *fakeSandboxProvider) RunCommand(ctx context.Context, sandboxID string, argv []string, workingDir string, env map[string]string) (sandbox.Result, error) {
	p.mu.Lock()
	p.runCalls++
	call := p.runCalls
	fn := p.runCommand
	p.mu.Unlock()
	return fn(argv, call)
}

func (p *fakeSandboxProvider) Snapshot(ctx context.Context, sandboxID string) (string, error) {
	return "snap-1", nil
}

func (p *fakeSandboxProvider) Resume(ctx context.Context, snapshotID string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextID++
	return fmt.Sprintf("sandbox-%d", p.nextID), nil
}

func (p *fakeSandboxProvider) Stop(ctx context.Context, sandboxID string) error { return nil }

// scriptedOrchestratorProvider drives RunTurn through a fixed sequence of
// llmrouter.Response values, invoking cb along the way exactly as a real
// provider would.
type scriptedOrchestratorProvider struct {
	responses []llmrouter.Response
	calls     int
}

func (p *scriptedOrchestratorProvider) Name() string { return "scripted" }

func (p *scriptedOrchestratorProvider) Stream(ctx context.Context, systemPrompt string, messages []llmrouter.Message, toolList []tools.Tool, cb llmrouter.Callbacks) (*llmrouter.Response, error) {
	if p.calls >= len(p.responses) {
		return nil, fmt.Errorf("scriptedOrchestratorProvider: no more responses scripted")
	}
	resp := p.responses[p.calls]
	p.calls++
	if resp.Content != "" && cb.OnToken != nil {
		cb.OnToken(resp.Content)
	}
	for _, tc := range resp.ToolCalls {
		if cb.OnToolCallStart != nil {
			cb.OnToolCallStart(tc)
		}
	}
	return &resp, nil
}
