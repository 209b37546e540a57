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

// Package permission gates the destructive git tools (git_commit, git_push,
// pr_create) behind a per-turn Alpha mode flag and an operator-configured
// allow/deny list, the same shape used for the wider tool dispatch layer's
// YOLO/allowed/disabled checks.
package permission

import "fmt"

// NeedsConfirmationError is returned (never panicked/thrown) by a git tool
// when the caller omitted confirmed=true and Alpha mode is off. Tool
// dispatch renders it as {error, needsConfirmation:true} rather than an
// opaque failure, so the caller knows to resubmit with confirmation.
type NeedsConfirmationError struct {
	Tool string
}

func (e *NeedsConfirmationError) Error() string {
	return fmt.Sprintf("tool %q requires confirmed=true (or alpha mode) before it will execute", e.Tool)
}

// NeedsConfirmation reports whether an error is a NeedsConfirmationError.
func NeedsConfirmation(err error) bool {
	_, ok := err.(*NeedsConfirmationError)
	return ok
}

// Gate decides whether a destructive git tool call may proceed.
type Gate struct {
	allowedTools  map[string]bool
	disabledTools map[string]bool
}

// NewGate builds a Gate from an operator-configured allow/deny list
// (internal/config's tools section, as the serve command read it at
// startup).
func NewGate(allowedTools, disabledTools []string) *Gate {
	allowed := make(map[string]bool, len(allowedTools))
	for _, t := range allowedTools {
		allowed[t] = true
	}
	disabled := make(map[string]bool, len(disabledTools))
	for _, t := range disabledTools {
		disabled[t] = true
	}
	return &Gate{allowedTools: allowed, disabledTools: disabled}
}

// Check returns a NeedsConfirmationError unless the call is confirmed,
// alpha mode is enabled, or the tool is explicitly allow-listed. A
// disabled-listed tool is always refused, even under alpha mode.
func (g *Gate) Check(tool string, confirmed, alphaMode bool) error {
	if g.disabledTools[tool] {
		return fmt.Errorf("tool %q is disabled by configuration", tool)
	}
	if g.allowedTools[tool] || confirmed || alphaMode {
		return nil
	}
	return &NeedsConfirmationError{Tool: tool}
}
