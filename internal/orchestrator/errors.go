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

import "fmt"

// ValidationError wraps a tool-argument schema mismatch. Tool dispatch
// never raises this to the orchestrator — it's returned inside the tool
// call's own result — but RunTurn's callers may still want to recognize
// the shape when inspecting a stored result.
type ValidationError struct {
	Tool    string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: tool %q: %s", e.Tool, e.Message)
}

// TransientToolError marks a tool failure exhausted its retry budget
// (timeouts, connection resets, rate limits, busy) without ever succeeding.
type TransientToolError struct {
	Tool string
	Err  error
}

func (e *TransientToolError) Error() string {
	return fmt.Sprintf("transient failure in tool %q: %v", e.Tool, e.Err)
}

func (e *TransientToolError) Unwrap() error { return e.Err }

// SandboxGoneError surfaces a sandbox-gone condition that survived the
// Sandbox Manager's single built-in retry.
type SandboxGoneError struct {
	SandboxID string
	Err       error
}

func (e *SandboxGoneError) Error() string {
	return fmt.Sprintf("sandbox %q is gone and could not be recovered: %v", e.SandboxID, e.Err)
}

func (e *SandboxGoneError) Unwrap() error { return e.Err }

// FatalTurnError wraps any other error that escapes the LLM loop.
type FatalTurnError struct {
	Err error
}

func (e *FatalTurnError) Error() string {
	return fmt.Sprintf("turn failed: %v", e.Err)
}

func (e *FatalTurnError) Unwrap() error { return e.Err }

// MissingCredentialsError is raised synchronously at turn start when a
// required credential (GITHUB_TOKEN, sandbox credentials, a provider API
// key) is absent.
type MissingCredentialsError struct {
	What string
}

func (e *MissingCredentialsError) Error() string {
	return fmt.Sprintf("missing credentials: %s", e.What)
}
