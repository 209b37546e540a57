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
	"time"

	"golang.org/x/oauth2"
)

// codexRefreshSkew matches step 1 of the turn orchestrator: refresh when
// the cached token expires within the next 60s rather than waiting for it
// to actually lapse mid-stream.
const codexRefreshSkew = 60 * time.Second

// CodexTokenConfig is the Codex OAuth material read from the environment
// (CODEX_ACCESS_TOKEN/CODEX_REFRESH_TOKEN/CODEX_ACCOUNT_ID) or the OS keyring.
type CodexTokenConfig struct {
	AccessToken  string
	RefreshToken string
	AccountID    string
	ExpiresAt    time.Time
	TokenURL     string
	ClientID     string
}

// CodexTokenCache wraps an oauth2.TokenSource that refreshes the Codex
// access token on demand. The serve command builds one at startup and
// passes it to its Orchestrator through Deps, so a token refreshed during
// one turn is reused by every later turn and session in that process.
type CodexTokenCache struct {
	source    oauth2.TokenSource
	accountID string
}

// NewCodexTokenCache builds a token cache seeded with cfg's current access
// and refresh tokens; Token() transparently refreshes via cfg.TokenURL once
// the cached token is within codexRefreshSkew of expiring.
func NewCodexTokenCache(ctx context.Context, cfg CodexTokenConfig) *CodexTokenCache {
	seed := &oauth2.Token{
		AccessToken:  cfg.AccessToken,
		RefreshToken: cfg.RefreshToken,
		Expiry:       cfg.ExpiresAt,
	}
	oauthCfg := &oauth2.Config{
		ClientID: cfg.ClientID,
		Endpoint: oauth2.Endpoint{TokenURL: cfg.TokenURL},
	}
	// ReuseTokenSourceWithExpiry treats a token within codexRefreshSkew of
	// expiry as already expired, forcing the refresh a plain ReuseTokenSource
	// would otherwise defer until the deadline actually passed.
	src := oauth2.ReuseTokenSourceWithExpiry(seed, oauthCfg.TokenSource(ctx, seed), codexRefreshSkew)
	return &CodexTokenCache{source: src, accountID: cfg.AccountID}
}

// Token returns the current access token, refreshing it first if needed.
func (c *CodexTokenCache) Token() (*oauth2.Token, error) {
	return c.source.Token()
}

// AccountID is sent as the ChatGPT-Account-Id header on Codex requests.
func (c *CodexTokenCache) AccountID() string {
	return c.accountID
}
