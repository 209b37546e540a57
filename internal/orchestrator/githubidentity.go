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
	"fmt"
	"net/http"
)

const githubAPIUserURL = "https://api.github.com/user"

// fallbackGitIdentityName/Email are used when the authenticated user's
// GitHub identity can't be resolved (API error, rate limit, offline
// test run) — acquiring a sandbox must not fail a turn just because the
// commit identity is temporarily unavailable.
const (
	fallbackGitIdentityName  = "stratuscode-agent"
	fallbackGitIdentityEmail = "stratuscode-agent@users.noreply.github.com"
)

// githubUser is the subset of GET /user this package needs.
type githubUser struct {
	ID    int64  `json:"id"`
	Login string `json:"login"`
}

// resolveGitIdentity looks up the GitHub account GitHubToken authenticates
// as and formats its commit identity per §4.3 step 3: the login as the
// name, and the numeric-id+login noreply form GitHub itself uses for
// commit email privacy (id+login@users.noreply.github.com). Falls back to
// a fixed service identity on any failure rather than aborting the turn.
func resolveGitIdentity(ctx context.Context, httpClient *http.Client, token string) (name, email string) {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, githubAPIUserURL, nil)
	if err != nil {
		return fallbackGitIdentityName, fallbackGitIdentityEmail
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return fallbackGitIdentityName, fallbackGitIdentityEmail
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fallbackGitIdentityName, fallbackGitIdentityEmail
	}

	var user githubUser
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil || user.Login == "" {
		return fallbackGitIdentityName, fallbackGitIdentityEmail
	}

	return user.Login, fmt.Sprintf("%d+%s@users.noreply.github.com", user.ID, user.Login)
}
