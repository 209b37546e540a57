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

package llmrouter

import (
	"github.com/pkoukk/tiktoken-go"
)

// cl100k_base is the BPE Claude and GPT-4-family models both round-trip
// closely enough for an estimate; engine-reported usage always wins when
// the provider supplies it (see EstimateTokens callers).
const tiktokenEncoding = "cl100k_base"

// EstimateTokens approximates the token cost of messages when a provider
// doesn't report usage itself (the Codex and generic HTTP legs, and any
// Anthropic/Bedrock response missing a usage block).
func EstimateTokens(messages []Message) int {
	enc, err := tiktoken.GetEncoding(tiktokenEncoding)
	if err != nil {
		return estimateByLength(messages)
	}

	total := 0
	for _, m := range messages {
		total += len(enc.Encode(m.Content, nil, nil))
		for _, block := range m.ContentBlocks {
			total += len(enc.Encode(block.Text, nil, nil))
		}
		for _, tc := range m.ToolCalls {
			total += len(enc.Encode(tc.Name, nil, nil))
		}
		if m.ToolResult != "" {
			total += len(enc.Encode(m.ToolResult, nil, nil))
		}
	}
	return total
}

// estimateByLength is the fallback when the tiktoken BPE ranks can't be
// loaded (offline, no network to fetch the encoding data); ~4 bytes/token
// is the commonly cited rough ratio for English text.
func estimateByLength(messages []Message) int {
	total := 0
	for _, m := range messages {
		total += len(m.Content) / 4
	}
	return total
}
