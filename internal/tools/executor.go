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

package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/xeipuuv/gojsonschema"

	"github.com/stratuscode/orchestrator/internal/permission"
)

// maxResultBytes caps a Result's Data field once it's been stringified for
// the model, so one chatty tool can't blow out the context window.
const maxResultBytes = 100 * 1024

const (
	retryInitialInterval = 100 * time.Millisecond
	retryMultiplier      = 2
	retryMaxInterval     = 5 * time.Second
	retryMaxAttempts     = 3 // the initial attempt plus 2 retries
)

// CallOptions carries the per-call flags the orchestrator threads through
// every tool invocation: whether the caller already confirmed a destructive
// action, and whether the session is running in Alpha (auto-confirm) mode.
type CallOptions struct {
	Confirmed bool
	AlphaMode bool
}

type callOptionsKey struct{}

// WithCallOptions attaches opts to ctx so a tool's Execute can read back
// the confirmation state the Executor already checked, without threading a
// third parameter through every Tool.Execute signature. Exported so tests
// can exercise a confirmation-gated tool directly, without going through
// an Executor.
func WithCallOptions(ctx context.Context, opts CallOptions) context.Context {
	return context.WithValue(ctx, callOptionsKey{}, opts)
}

// CallOptionsFromContext reads the CallOptions an Executor attached to ctx.
// Tools that need to know whether they were invoked pre-confirmed (the git
// tools) call this instead of re-deriving confirmation state themselves.
func CallOptionsFromContext(ctx context.Context) CallOptions {
	opts, _ := ctx.Value(callOptionsKey{}).(CallOptions)
	return opts
}

// Executor runs a named tool from a Registry: it validates params against
// the tool's schema, gates CategoryGit tools behind a permission.Gate,
// retries retryable failures with backoff, and truncates oversized results.
type Executor struct {
	registry *Registry
	gate     *permission.Gate
}

// NewExecutor builds an Executor. gate may be nil, in which case the
// Executor makes no permission check of its own (useful for tests); the
// builtin git tools still refuse to run without Confirmed or AlphaMode in
// their CallOptions. Production wiring always supplies a Gate built from
// the operator's configuration.
func NewExecutor(registry *Registry, gate *permission.Gate) *Executor {
	return &Executor{registry: registry, gate: gate}
}

// Execute runs toolName with params, returning a Result even on failure —
// an error return is reserved for the tool genuinely not existing.
func (e *Executor) Execute(ctx context.Context, toolName string, params map[string]interface{}, opts CallOptions) (*Result, error) {
	tool, ok := e.registry.Get(toolName)
	if !ok {
		return nil, fmt.Errorf("tool not found: %s", toolName)
	}

	if err := validateParams(tool, params); err != nil {
		return &Result{Success: false, Error: &Error{Code: "invalid_params", Message: err.Error()}}, nil
	}

	if tool.Category() == CategoryGit && e.gate != nil {
		if err := e.gate.Check(toolName, opts.Confirmed, opts.AlphaMode); err != nil {
			if permission.NeedsConfirmation(err) {
				return &Result{Success: false, NeedsConfirmation: true, Error: &Error{Code: "needs_confirmation", Message: err.Error()}}, nil
			}
			return &Result{Success: false, Error: &Error{Code: "permission_denied", Message: err.Error()}}, nil
		}
	}

	ctx = WithCallOptions(ctx, opts)

	start := time.Now()
	result := e.executeWithRetry(ctx, tool, params)
	result.ExecutionTimeMs = time.Since(start).Milliseconds()
	truncateResult(result)
	return result, nil
}

// executeWithRetry runs tool.Execute, retrying a Result whose Error is
// marked Retryable (or a transport-level error from Execute itself) with
// exponential backoff.
func (e *Executor) executeWithRetry(ctx context.Context, tool Tool, params map[string]interface{}) *Result {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = retryInitialInterval
	eb.Multiplier = retryMultiplier
	eb.MaxInterval = retryMaxInterval

	result, err := backoff.Retry(ctx, func() (*Result, error) {
		r, execErr := tool.Execute(ctx, params)
		if execErr != nil {
			return &Result{Success: false, Error: &Error{Code: "execution_failed", Message: execErr.Error(), Retryable: true}}, errRetryable
		}
		if r == nil {
			r = &Result{Success: true}
		}
		if r.Error != nil && r.Error.Retryable {
			return r, errRetryable
		}
		return r, nil
	}, backoff.WithBackOff(eb), backoff.WithMaxTries(retryMaxAttempts))

	if err != nil && result == nil {
		return &Result{Success: false, Error: &Error{Code: "execution_failed", Message: err.Error(), Retryable: true}}
	}
	return result
}

// errRetryable is a sentinel marking a Result worth retrying; backoff.Retry
// only inspects whether the returned error is non-nil, so its text never
// surfaces.
var errRetryable = fmt.Errorf("retryable tool failure")

// validateParams checks params against tool's JSON schema before any
// execute attempt, per the dispatch contract: a bad call fails fast with a
// formatted error, never by invoking the tool body.
func validateParams(tool Tool, params map[string]interface{}) error {
	schema := tool.InputSchema()
	if schema == nil {
		return nil
	}
	schemaBytes, err := json.Marshal(schema)
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schemaBytes),
		gojsonschema.NewGoLoader(params),
	)
	if err != nil {
		return fmt.Errorf("validate params: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		b, _ := json.Marshal(msgs)
		return fmt.Errorf("invalid parameters: %s", b)
	}
	return nil
}

// truncateResult caps a Result's Data once stringified to JSON,
// replacing Data with the truncated string form so a chatty tool can't
// blow out the model's context window.
func truncateResult(result *Result) {
	if result == nil || result.Data == nil {
		return
	}
	b, err := json.Marshal(result.Data)
	if err != nil || len(b) <= maxResultBytes {
		return
	}
	result.Data = fmt.Sprintf("%s\n... [truncated %d bytes]", b[:maxResultBytes], len(b)-maxResultBytes)
}
