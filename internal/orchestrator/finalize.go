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
	"encoding/json"

	"go.uber.org/zap"

	"github.com/stratuscode/orchestrator/internal/agentstate"
	"github.com/stratuscode/orchestrator/internal/llmrouter"
	"github.com/stratuscode/orchestrator/internal/log"
	"github.com/stratuscode/orchestrator/internal/message"
	"github.com/stratuscode/orchestrator/internal/session"
)

// cancelledContentFallback is what a cancelled turn's persisted Message
// shows when the model produced no text before the stream was aborted.
const cancelledContentFallback = "(cancelled)"

// lastMessagePreviewLen bounds Session.LastMessage, per its doc comment.
const lastMessagePreviewLen = 200

// composeParts builds a Message's Parts from the three pieces RunTurn
// already has in hand: a reasoning part (if any), each tool call in the
// order it was recorded, then the trailing text. It does not read back
// the Parts log the live-stream store keeps on StreamingState.
func composeParts(reasoning string, toolCalls []llmrouter.ToolCall, toolResults map[string]string, content string) []message.Part {
	var parts []message.Part
	if reasoning != "" {
		parts = append(parts, message.NewReasoningPart(reasoning))
	}
	for _, tc := range toolCalls {
		p := message.NewToolCallPart(tc.ID, tc.Name, argsToJSON(tc.Input))
		p.ToolStatus = message.ToolCallCompleted
		p.ToolResult = toolResults[tc.ID]
		parts = append(parts, p)
	}
	if content != "" {
		parts = append(parts, message.NewTextPart(content))
	}
	return parts
}

// allToolCalls walks the assistant-role entries ProcessDirectly appended
// to history, in order, collecting every tool call the turn made and its
// matching tool-role result — the only place that full ordering survives
// once the loop has returned.
func allToolCalls(history []llmrouter.Message) ([]llmrouter.ToolCall, map[string]string) {
	var calls []llmrouter.ToolCall
	results := make(map[string]string)
	for _, m := range history {
		if m.Role == "assistant" {
			calls = append(calls, m.ToolCalls...)
		}
		if m.Role == "tool" {
			results[m.ToolUseID] = m.ToolResult
		}
	}
	return calls, results
}

// tokenUsage prefers the engine-reported usage off result; if a provider
// never populated it (a malformed or partial stream), it falls back to
// llmrouter.EstimateTokens over the full turn history.
func tokenUsage(result *llmrouter.Result, history []llmrouter.Message) (input, output int64) {
	if result != nil && (result.Usage.InputTokens != 0 || result.Usage.OutputTokens != 0) {
		return int64(result.Usage.InputTokens), int64(result.Usage.OutputTokens)
	}
	return int64(llmrouter.EstimateTokens(history)), 0
}

// finalizeTurn is the shared tail of all three finalize paths (§4.5 steps
// 9-11): persist the assistant Message, save agent-state, roll token
// usage into the session, set status, then snapshot and release the
// sandbox. status/errMsg/content are the only things that differ across
// success/cancelled/error.
func (o *Orchestrator) finalizeTurn(ctx context.Context, sess session.Session, agentState agentstate.AgentState, result *llmrouter.Result, status session.Status, errMsg, content, reasoning string) error {
	logger := log.With(zap.String("session_id", sess.ID))

	var history []llmrouter.Message
	if result != nil {
		history = result.Messages
	}
	toolCalls, toolResults := allToolCalls(history)
	parts := composeParts(reasoning, toolCalls, toolResults, content)

	msg := message.Message{
		SessionID: sess.ID,
		Role:      message.RoleAssistant,
		Content:   content,
		Parts:     parts,
	}
	if _, err := o.deps.Messages.Append(ctx, msg); err != nil {
		logger.Error("persist assistant message", zap.Error(err))
	}

	// history begins with the prior agent-state messages RunTurn seeded
	// ProcessDirectly with (one entry each), so only what follows them is new.
	newSage := append([]agentstate.SageMessage(nil), agentState.SageMessages...)
	if n := len(agentState.SageMessages); len(history) > n {
		newSage = append(newSage, sageMessagesFromHistory(history[n:])...)
	}
	agentState.SageMessages = newSage
	if err := o.deps.AgentStates.Save(ctx, agentState); err != nil {
		logger.Error("persist agent state", zap.Error(err))
	}

	inputTok, outputTok := tokenUsage(result, history)
	sess.TokenUsage.Input += inputTok
	sess.TokenUsage.Output += outputTok
	sess.LastMessage = session.TruncatedPreview(content, lastMessagePreviewLen)
	sess.Status = status
	sess.ErrorMessage = errMsg
	sess.CancelRequested = false

	if err := o.deps.Streams.Finish(ctx, sess.ID); err != nil {
		logger.Warn("finish streaming state", zap.Error(err))
	}

	// Status flips to idle/error before the snapshot is taken so a client
	// polling the session sees the turn end promptly; the sandbox
	// snapshot below can take several seconds and must not gate that.
	if err := o.deps.Sessions.Update(ctx, sess); err != nil {
		logger.Error("persist session status", zap.Error(err))
	}

	if sess.SandboxID != "" {
		snapshotID, err := o.deps.SandboxMgr.Release(ctx, sess.SandboxID)
		if err != nil {
			logger.Warn("release sandbox", zap.Error(err))
		} else {
			sess.SnapshotID = snapshotID
			sess.SandboxID = ""
			if err := o.deps.Sessions.Update(ctx, sess); err != nil {
				logger.Error("persist snapshot id", zap.Error(err))
			}
		}
	}

	return nil
}

// sageMessagesFromHistory converts history entries into the persisted
// agent-state shape. finalizeTurn passes it only the part of
// ProcessDirectly's history after the prior agent-state messages: this
// turn's user message (as composeUserContent built it), then the
// assistant/tool turns appended during the loop.
func sageMessagesFromHistory(history []llmrouter.Message) []agentstate.SageMessage {
	var out []agentstate.SageMessage
	for _, m := range history {
		switch m.Role {
		case "assistant":
			out = append(out, agentstate.SageMessage{Role: "assistant", Content: m.Content})
		case "tool":
			out = append(out, agentstate.SageMessage{Role: "tool", Content: m.ToolResult})
		case "user":
			out = append(out, agentstate.SageMessage{Role: "user", Content: m.Content})
		}
	}
	return out
}

// finalizeSuccess implements step 9: the model produced a final answer
// with no more tool calls pending. The persisted text comes from
// turnProgress's accumulated stream rather than result.Content directly —
// they agree on a normal turn, but only the accumulator also covers the
// cancelled case below, so both paths read from the same place.
func (o *Orchestrator) finalizeSuccess(ctx context.Context, sess session.Session, agentState agentstate.AgentState, result *llmrouter.Result, progress *turnProgress) error {
	content, reasoning := progress.snapshot()
	if content == "" && result != nil {
		content = result.Content
	}
	if reasoning == "" && result != nil {
		reasoning = result.Thinking
	}
	return o.finalizeTurn(ctx, sess, agentState, result, session.StatusIdle, "", content, reasoning)
}

// finalizeCancelled implements step 10: ctx was cancelled mid-stream by
// the poller observing CancelRequested (a rendezvous tool reports a
// cancel as its tool Result and does not cancel ctx). Falls back to a
// fixed placeholder when no text had streamed yet.
func (o *Orchestrator) finalizeCancelled(ctx context.Context, sess session.Session, agentState agentstate.AgentState, result *llmrouter.Result, progress *turnProgress) error {
	content, reasoning := progress.snapshot()
	if content == "" {
		content = cancelledContentFallback
	}
	return o.finalizeTurn(ctx, sess, agentState, result, session.StatusIdle, "", content, reasoning)
}

// finalizeError implements step 11: "same as cancelled" per §4.5 — flush
// and persist whatever text/reasoning progress had already accumulated,
// only falling back to the fixed placeholder when nothing had streamed
// yet. progress is nil when the failure happened before the LLM loop
// ever ran (sandbox acquisition, agent-state load), in which case there
// is nothing to snapshot and the fallback always applies.
func (o *Orchestrator) finalizeError(ctx context.Context, sess session.Session, result *llmrouter.Result, progress *turnProgress, turnErr error) error {
	agentState, _ := o.deps.AgentStates.Get(ctx, sess.ID)
	content := cancelledContentFallback
	var reasoning string
	if progress != nil {
		content, reasoning = progress.snapshot()
		if content == "" {
			content = cancelledContentFallback
		}
	}
	if err := o.finalizeTurn(ctx, sess, agentState, result, session.StatusError, turnErr.Error(), content, reasoning); err != nil {
		return err
	}
	return turnErr
}

// failMissingCredentials implements the synchronous pre-turn credential
// check: nothing has mutated durable state yet beyond PrepareSend (done
// by the caller), so this only needs to set the session back to error.
func (o *Orchestrator) failMissingCredentials(ctx context.Context, sess session.Session, what string) error {
	err := &MissingCredentialsError{What: what}
	sess.Status = session.StatusError
	sess.ErrorMessage = err.Error()
	sess.CancelRequested = false
	if uerr := o.deps.Sessions.Update(ctx, sess); uerr != nil {
		log.With(zap.String("session_id", sess.ID)).Error("persist missing-credentials error", zap.Error(uerr))
	}
	return err
}

// argsToJSON stringifies a tool call's input map the same way
// llmrouter.ProcessDirectly's OnToolCallStart caller does, so the
// persisted Part matches what the Live-Stream Store showed live.
func argsToJSON(input map[string]interface{}) string {
	b, err := json.Marshal(input)
	if err != nil {
		return ""
	}
	return string(b)
}
