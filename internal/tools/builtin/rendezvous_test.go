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
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/stratuscode/orchestrator/internal/pubsub"
	"github.com/stratuscode/orchestrator/internal/session"
	"github.com/stratuscode/orchestrator/internal/streamstate"
	"github.com/stratuscode/orchestrator/internal/todo"
)

// fakeStreamStore is a minimal in-memory streamstate.Store sufficient to
// exercise the question/plan_exit rendezvous tools' poll loop.
type fakeStreamStore struct {
	mu     sync.Mutex
	states map[string]streamstate.StreamingState
}

func newFakeStreamStore() *fakeStreamStore {
	return &fakeStreamStore{states: map[string]streamstate.StreamingState{}}
}

func (f *fakeStreamStore) Get(ctx context.Context, sessionID string) (streamstate.StreamingState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.states[sessionID], nil
}
func (f *fakeStreamStore) Start(ctx context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states[sessionID] = streamstate.StreamingState{SessionID: sessionID}
	return nil
}
func (f *fakeStreamStore) AppendToken(ctx context.Context, sessionID, text string) error { return nil }
func (f *fakeStreamStore) AppendReasoning(ctx context.Context, sessionID, text string) error {
	return nil
}
func (f *fakeStreamStore) AddToolCall(ctx context.Context, sessionID, toolCallID, name, args string) error {
	return nil
}
func (f *fakeStreamStore) UpdateToolResult(ctx context.Context, sessionID, toolCallID, result string) error {
	return nil
}
func (f *fakeStreamStore) SetQuestion(ctx context.Context, sessionID, questionJSON string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	state := f.states[sessionID]
	state.SessionID = sessionID
	state.PendingQuestion = questionJSON
	f.states[sessionID] = state
	return nil
}
func (f *fakeStreamStore) AnswerQuestion(ctx context.Context, sessionID, answerJSON string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	state := f.states[sessionID]
	state.PendingAnswer = answerJSON
	f.states[sessionID] = state
	return nil
}
func (f *fakeStreamStore) ClearQuestion(ctx context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	state := f.states[sessionID]
	state.PendingQuestion = ""
	state.PendingAnswer = ""
	f.states[sessionID] = state
	return nil
}
func (f *fakeStreamStore) Finish(ctx context.Context, sessionID string) error { return nil }
func (f *fakeStreamStore) Subscribe(ctx context.Context) <-chan pubsub.Event[streamstate.StreamingState] {
	return make(chan pubsub.Event[streamstate.StreamingState])
}

// fakeSessionStore is a minimal in-memory session.Store exposing only
// Get/SetCancelRequested, the two methods the rendezvous tools need.
type fakeSessionStore struct {
	mu       sync.Mutex
	sessions map[string]session.Session
}

func newFakeSessionStore(id string) *fakeSessionStore {
	return &fakeSessionStore{sessions: map[string]session.Session{id: {ID: id}}}
}

func (f *fakeSessionStore) Create(ctx context.Context, s session.Session) (session.Session, error) {
	return s, nil
}
func (f *fakeSessionStore) Get(ctx context.Context, id string) (session.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sessions[id], nil
}
func (f *fakeSessionStore) List(ctx context.Context, userID string) ([]session.Session, error) {
	return nil, nil
}
func (f *fakeSessionStore) Update(ctx context.Context, s session.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[s.ID] = s
	return nil
}
func (f *fakeSessionStore) Delete(ctx context.Context, id string) error { return nil }
func (f *fakeSessionStore) PrepareSend(ctx context.Context, id string, messagePreview string) (session.Session, error) {
	return session.Session{}, nil
}
func (f *fakeSessionStore) MarkHasChanges(ctx context.Context, id string) error { return nil }
func (f *fakeSessionStore) SetCancelRequested(ctx context.Context, id string, cancel bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.sessions[id]
	s.CancelRequested = cancel
	f.sessions[id] = s
	return nil
}
func (f *fakeSessionStore) ListStale(ctx context.Context, olderThan time.Time) ([]session.Session, error) {
	return nil, nil
}
func (f *fakeSessionStore) PurgeSessionData(ctx context.Context, id string) error { return nil }
func (f *fakeSessionStore) Subscribe(ctx context.Context) <-chan pubsub.Event[session.Session] {
	return make(chan pubsub.Event[session.Session])
}

// fakeTodoStore is a minimal in-memory todo.Store.
type fakeTodoStore struct {
	mu    sync.Mutex
	todos map[string][]todo.Todo
}

func newFakeTodoStore() *fakeTodoStore { return &fakeTodoStore{todos: map[string][]todo.Todo{}} }

func (f *fakeTodoStore) List(ctx context.Context, sessionID string) ([]todo.Todo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.todos[sessionID], nil
}
func (f *fakeTodoStore) WriteAll(ctx context.Context, sessionID string, todos []todo.Todo) ([]todo.Todo, error) {
	if err := todo.Validate(todos); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.todos[sessionID] = todos
	return todos, nil
}
func (f *fakeTodoStore) Subscribe(ctx context.Context) <-chan pubsub.Event[[]todo.Todo] {
	return make(chan pubsub.Event[[]todo.Todo])
}

func init() {
	answerPollInterval = 5 * time.Millisecond
}

func TestQuestionTool_ReturnsAnswerOnceClientReplies(t *testing.T) {
	streams := newFakeStreamStore()
	sessions := newFakeSessionStore("sess-1")
	tool := NewQuestionTool(streams, sessions)
	ctx := WithSessionID(context.Background(), "sess-1")

	go func() {
		time.Sleep(10 * time.Millisecond)
		ans, _ := json.Marshal(map[string]string{"answer": "use sqlite"})
		_ = streams.AnswerQuestion(context.Background(), "sess-1", string(ans))
	}()

	result, err := tool.Execute(ctx, map[string]interface{}{"question": "which database?"})
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Equal(t, "use sqlite", result.Data.(map[string]interface{})["answer"])
}

func TestQuestionTool_CancelledByUser(t *testing.T) {
	streams := newFakeStreamStore()
	sessions := newFakeSessionStore("sess-2")
	tool := NewQuestionTool(streams, sessions)
	ctx := WithSessionID(context.Background(), "sess-2")

	go func() {
		time.Sleep(10 * time.Millisecond)
		_ = sessions.SetCancelRequested(context.Background(), "sess-2", true)
	}()

	result, err := tool.Execute(ctx, map[string]interface{}{"question": "which database?"})
	require.NoError(t, err)
	require.False(t, result.Success)
	require.Equal(t, "CancelledByUser", result.Error.Code)
}

func TestPlanExitTool_RefusesWithoutTodos(t *testing.T) {
	streams := newFakeStreamStore()
	sessions := newFakeSessionStore("sess-3")
	todos := newFakeTodoStore()
	tool := NewPlanExitTool(streams, sessions, todos)
	ctx := WithSessionID(context.Background(), "sess-3")

	result, err := tool.Execute(ctx, map[string]interface{}{"summary": "build the thing"})
	require.NoError(t, err)
	require.False(t, result.Success)
	require.Equal(t, "no_plan", result.Error.Code)
}

func TestPlanExitTool_ApprovedWhenTodosExist(t *testing.T) {
	streams := newFakeStreamStore()
	sessions := newFakeSessionStore("sess-4")
	todos := newFakeTodoStore()
	_, err := todos.WriteAll(context.Background(), "sess-4", []todo.Todo{{Content: "step 1", Status: todo.StatusPending}})
	require.NoError(t, err)
	tool := NewPlanExitTool(streams, sessions, todos)
	ctx := WithSessionID(context.Background(), "sess-4")

	go func() {
		time.Sleep(10 * time.Millisecond)
		ans, _ := json.Marshal(map[string]string{"answer": "Approve & Start Building"})
		_ = streams.AnswerQuestion(context.Background(), "sess-4", string(ans))
	}()

	result, err := tool.Execute(ctx, map[string]interface{}{"summary": "build the thing"})
	require.NoError(t, err)
	require.True(t, result.Success)
	require.True(t, result.Data.(map[string]interface{})["approved"].(bool))
}

func TestTodoWriteTool_RejectsMultipleInProgress(t *testing.T) {
	store := newFakeTodoStore()
	tool := NewTodoWriteTool(store)
	ctx := WithSessionID(context.Background(), "sess-5")

	result, err := tool.Execute(ctx, map[string]interface{}{
		"todos": []interface{}{
			map[string]interface{}{"content": "a", "status": "in_progress"},
			map[string]interface{}{"content": "b", "status": "in_progress"},
		},
	})
	require.NoError(t, err)
	require.False(t, result.Success)
}

func TestTodoReadWrite_RoundTrips(t *testing.T) {
	store := newFakeTodoStore()
	writeTool := NewTodoWriteTool(store)
	readTool := NewTodoReadTool(store)
	ctx := WithSessionID(context.Background(), "sess-6")

	_, err := writeTool.Execute(ctx, map[string]interface{}{
		"todos": []interface{}{map[string]interface{}{"content": "a", "status": "pending"}},
	})
	require.NoError(t, err)

	result, err := readTool.Execute(ctx, map[string]interface{}{})
	require.NoError(t, err)
	require.True(t, result.Success)
	got := result.Data.(map[string]interface{})["todos"].([]todo.Todo)
	require.Len(t, got, 1)
	require.Equal(t, "a", got[0].Content)
}
