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
	"context"
	"fmt"
)

// NewProvider builds the concrete Provider for route.Type. bedrockCreds is
// only consulted for the bedrock leg; codexTokens only for the codex leg.
func NewProvider(ctx context.Context, route Route, bedrockCreds BedrockCredentials, codexTokens *CodexTokenCache) (Provider, error) {
	switch route.Type {
	case RouteAnthropic:
		return NewAnthropicProvider(route), nil
	case RouteBedrock:
		return NewBedrockProvider(ctx, route, bedrockCreds)
	case RouteCodex:
		if codexTokens == nil {
			return nil, fmt.Errorf("codex route selected but no token cache was supplied")
		}
		return NewCodexProvider(route, codexTokens), nil
	case RouteOpenRouter, RouteOpenCodeZen, RouteOpenAI:
		return NewChatCompletionsProvider(route), nil
	default:
		return nil, fmt.Errorf("unhandled route type: %s", route.Type)
	}
}
