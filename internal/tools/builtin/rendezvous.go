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
	"fmt"
	"time"

	"github.com/stratuscode/orchestrator/internal/session"
	"github.com/stratuscode/orchestrator/internal/streamstate"
	"github.com/stratuscode/orchestrator/internal/todo"
	"github.com/stratuscode/orchestrator/internal/tools"
)

// answerPollInterval is a var rather than a const so tests can shrink it.
var answerPollInterval = time.Second

// pendingQuestion is the shape written to StreamingState.PendingQuestion;
// "type" distinguishes an ordinary question from the plan_exit gate so a
// client can render the Approve/Request-Changes buttons appropriately.
type pendingQuestion struct {
	Type     string   `json:"type"`
	Question string   `json:"question"`
	Options  []string `json:"options,omitempty"`
}

type pendingAnswer struct {
	Answer string `json:"answer"`
}

// ErrCancelledByUser is returned when the session's CancelRequested flag
// flips while a rendezvous tool is waiting on an answer.
var ErrCancelledByUser = fmt.Errorf("CancelledByUser")

// waitForAnswer writes q to the session's StreamingState and polls for a
// reply, the way human_tool.go's ticker loop waits on its request store —
// here the store is the session's single live-stream row instead of a
// generic request table.
func waitForAnswer(ctx context.Context, streams streamstate.Store, sessions session.Store, sessionID string, q pendingQuestion) (string, error) {
	qJSON, err := json.Marshal(q)
	if err != nil {
		return "", err
	}
	if err := streams.SetQuestion(ctx, sessionID, string(qJSON)); err != nil {
		return "", err
	}

	ticker := time.NewTicker(answerPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
			sess, err := sessions.Get(ctx, sessionID)
			if err != nil {
				return "", err
			}
			if sess.CancelRequested {
				_ = streams.ClearQuestion(ctx, sessionID)
				return "", ErrCancelledByUser
			}

			state, err := streams.Get(ctx, sessionID)
			if err != nil {
				return "", err
			}
			if state.PendingAnswer == "" {
				continue
			}

			var ans pendingAnswer
			if err := json.Unmarshal([]byte(state.PendingAnswer), &ans); err != nil {
				ans.Answer = state.PendingAnswer
			}
			if err := streams.ClearQuestion(ctx, sessionID); err != nil {
				return "", err
			}
			return ans.Answer, nil
		}
	}
}

// QuestionTool asks the user a question and blocks until they answer or
// cancel the turn.
type QuestionTool struct {
	Streams  streamstate.Store
	Sessions session.Store
}

func NewQuestionTool(streams streamstate.Store, sessions session.Store) *QuestionTool {
	return &QuestionTool{Streams: streams, Sessions: sessions}
}

func (t *QuestionTool) Name() string             { return "question" }
func (t *QuestionTool) Category() tools.Category { return tools.CategoryRendezvous }
func (t *QuestionTool) Description() string {
	return "Asks the user a clarifying question and waits for their reply before continuing."
}

func (t *QuestionTool) InputSchema() *tools.JSONSchema {
	return tools.NewObjectSchema("Parameters for question", map[string]*tools.JSONSchema{
		"question": tools.NewStringSchema("The question to ask the user"),
		"options":  tools.NewArraySchema("Optional suggested answers to offer as quick replies", tools.NewStringSchema("One suggested answer")),
	}, []string{"question"})
}

func (t *QuestionTool) Execute(ctx context.Context, params map[string]interface{}) (*tools.Result, error) {
	sessionID, ok := sessionIDFrom(ctx)
	if !ok {
		return &tools.Result{Success: false, Error: &tools.Error{Code: "invalid_state", Message: "no session id on context"}}, nil
	}
	question, _ := params["question"].(string)
	if question == "" {
		return &tools.Result{Success: false, Error: &tools.Error{Code: "invalid_params", Message: "question is required"}}, nil
	}
	var options []string
	if raw, ok := params["options"].([]interface{}); ok {
		for _, o := range raw {
			if s, ok := o.(string); ok {
				options = append(options, s)
			}
		}
	}

	answer, err := waitForAnswer(ctx, t.Streams, t.Sessions, sessionID, pendingQuestion{Type: "question", Question: question, Options: options})
	if err != nil {
		if err == ErrCancelledByUser {
			return &tools.Result{Success: false, Error: &tools.Error{Code: "CancelledByUser", Message: "the user cancelled the turn before answering"}}, nil
		}
		return &tools.Result{Success: false, Error: &tools.Error{Code: "question_failed", Message: err.Error()}}, nil
	}
	return &tools.Result{Success: true, Data: map[string]interface{}{
		"answer":   answer,
		"question": question,
		"options":  options,
	}}, nil
}

// PlanExitTool presents the assembled plan for approval, refusing to run
// if the agent hasn't recorded any todos yet.
type PlanExitTool struct {
	Streams  streamstate.Store
	Sessions session.Store
	Todos    todo.Store
}

func NewPlanExitTool(streams streamstate.Store, sessions session.Store, todos todo.Store) *PlanExitTool {
	return &PlanExitTool{Streams: streams, Sessions: sessions, Todos: todos}
}

func (t *PlanExitTool) Name() string             { return "plan_exit" }
func (t *PlanExitTool) Category() tools.Category { return tools.CategoryRendezvous }
func (t *PlanExitTool) Description() string {
	return "Presents the plan for approval and waits for the user to approve or request changes. Requires at least one recorded todo."
}

func (t *PlanExitTool) InputSchema() *tools.JSONSchema {
	return tools.NewObjectSchema("Parameters for plan_exit", map[string]*tools.JSONSchema{
		"summary": tools.NewStringSchema("A summary of the plan to present for approval"),
	}, []string{"summary"})
}

func (t *PlanExitTool) Execute(ctx context.Context, params map[string]interface{}) (*tools.Result, error) {
	sessionID, ok := sessionIDFrom(ctx)
	if !ok {
		return &tools.Result{Success: false, Error: &tools.Error{Code: "invalid_state", Message: "no session id on context"}}, nil
	}
	summary, _ := params["summary"].(string)
	if summary == "" {
		return &tools.Result{Success: false, Error: &tools.Error{Code: "invalid_params", Message: "summary is required"}}, nil
	}

	todos, err := t.Todos.List(ctx, sessionID)
	if err != nil {
		return &tools.Result{Success: false, Error: &tools.Error{Code: "plan_exit_failed", Message: err.Error(), Retryable: true}}, nil
	}
	if len(todos) == 0 {
		return &tools.Result{Success: false, Error: &tools.Error{Code: "no_plan", Message: "plan_exit requires at least one recorded todo; call todowrite first"}}, nil
	}

	answer, err := waitForAnswer(ctx, t.Streams, t.Sessions, sessionID, pendingQuestion{
		Type:     "plan_exit",
		Question: summary,
		Options:  []string{"Approve & Start Building", "Request Changes"},
	})
	if err != nil {
		if err == ErrCancelledByUser {
			return &tools.Result{Success: false, Error: &tools.Error{Code: "CancelledByUser", Message: "the user cancelled the turn before approving the plan"}}, nil
		}
		return &tools.Result{Success: false, Error: &tools.Error{Code: "plan_exit_failed", Message: err.Error()}}, nil
	}

	return &tools.Result{Success: true, Data: map[string]interface{}{
		"approved": answer == "Approve & Start Building",
		"answer":   answer,
	}}, nil
}

// PlanEnterTool is a pure marker the agent calls to confirm it has
// switched into plan mode; it performs no I/O.
type PlanEnterTool struct{}

func NewPlanEnterTool() *PlanEnterTool { return &PlanEnterTool{} }

func (t *PlanEnterTool) Name() string             { return "plan_enter" }
func (t *PlanEnterTool) Category() tools.Category { return tools.CategoryRendezvous }
func (t *PlanEnterTool) Description() string {
	return "Marks the turn as having entered plan mode."
}

func (t *PlanEnterTool) InputSchema() *tools.JSONSchema {
	return tools.NewObjectSchema("Parameters for plan_enter", nil, nil)
}

func (t *PlanEnterTool) Execute(ctx context.Context, params map[string]interface{}) (*tools.Result, error) {
	return &tools.Result{Success: true, Data: map[string]interface{}{"entered": true, "mode": "plan"}}, nil
}
