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
	"strings"

	"go.uber.org/zap"

	"github.com/stratuscode/orchestrator/internal/llmrouter"
	"github.com/stratuscode/orchestrator/internal/log"
	"github.com/stratuscode/orchestrator/internal/session"
)

// titlePromptCap bounds how much of the user's first message feeds the
// titling prompt, per §4.6.
const titlePromptCap = 500

// titleSystemPrompt asks for a short label, not a sentence — no tools are
// offered, so the model's reply is read back as plain text.
const titleSystemPrompt = "Summarize the user's request in five words or fewer, as a short title " +
	"with no trailing punctuation. Reply with the title only."

// GenerateTitle implements §4.6: a best-effort, fire-and-forget call that
// names a session from its first user message. It is only ever worth
// calling once, the first time a session sends a message; GenerateTitle
// itself does not check for that and will overwrite an existing title if
// called again. Nothing in this repository calls it: the send handler
// schedules RunTurn only, so a session keeps the title PrepareSend gave
// it. Every failure is swallowed: a stuck or wrong title is
// cosmetic, never worth failing the turn over.
func (o *Orchestrator) GenerateTitle(ctx context.Context, sess session.Session, firstMessage string) {
	logger := log.With(zap.String("session_id", sess.ID))

	prompt := firstMessage
	if r := []rune(prompt); len(r) > titlePromptCap {
		prompt = string(r[:titlePromptCap])
	}

	provider, err := o.resolveProvider(ctx, sess.Model)
	if err != nil {
		logger.Warn("title generation: resolve provider", zap.Error(err))
		return
	}

	resp, err := provider.Stream(ctx, titleSystemPrompt, []llmrouter.Message{{Role: "user", Content: prompt}}, nil, llmrouter.Callbacks{})
	if err != nil {
		logger.Warn("title generation: stream", zap.Error(err))
		return
	}

	title := strings.TrimSpace(resp.Content)
	title = strings.Trim(title, "\"'")
	if title == "" {
		return
	}

	sess.Title = title
	sess.TitleGenerated = true
	if err := o.deps.Sessions.Update(ctx, sess); err != nil {
		logger.Warn("title generation: persist", zap.Error(err))
	}
}
