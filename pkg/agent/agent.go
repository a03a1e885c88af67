// Package agent implements the ReACT loop (spec §4.I): repeatedly calling a
// provider, executing any tool calls it asks for, and feeding the results
// back until the model produces a final answer or the iteration budget is
// exhausted.
//
// Grounded on the teacher's pkg/agent.ToolLoopAgent/ExecuteWithMessages
// (toolloop.go): the overall step-loop shape (build transcript, call the
// model, execute returned tool calls, append results, check a stop
// condition, repeat) is kept, generalized from the teacher's
// stop-condition-list machinery (StopWhen/StepCountIs) down to the spec's
// single max_iterations bound, and rebuilt around this module's own
// transcript/provider/registry types instead of the teacher's
// types.Message/provider.LanguageModel.
package agent

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/riveraxe/reactcore/pkg/arena"
	"github.com/riveraxe/reactcore/pkg/hooks"
	"github.com/riveraxe/reactcore/pkg/provider"
	"github.com/riveraxe/reactcore/pkg/registry"
	"github.com/riveraxe/reactcore/pkg/rterr"
	"github.com/riveraxe/reactcore/pkg/transcript"
)

// StopStatus reports why a run ended (spec §4.I).
type StopStatus string

const (
	StopSuccess       StopStatus = "success"
	StopMaxIterations StopStatus = "max_iterations"
	StopProviderError StopStatus = "provider_error"
	StopAborted       StopStatus = "aborted"
)

// Result is the outcome of one Run call (spec §4.I "Result{content,
// iterations, usage, stop_status}"). Content is copied into the agent's
// arena via arena.Strdup; the returned string itself does not alias arena
// memory.
type Result struct {
	Content    string
	Iterations int
	Usage      provider.Usage
	StopStatus StopStatus
}

// Config configures one Agent instance.
type Config struct {
	Instructions  string
	MaxIterations int
	Stream        bool
	ToolsSchema   string // overrides registry.Schema() when non-empty (rare; mostly for tests)
}

// Agent runs the ReACT loop over one transcript, one provider instance, and
// an optional tool registry.
type Agent struct {
	cfg      Config
	arena    *arena.Arena
	provider provider.Instance
	registry *registry.Registry
	t        *transcript.Transcript
}

// New creates an Agent over its own arena (spec §3 "Agent (private) ...
// max_iterations (≥1; default 10)"; spec §4.B "each Agent owns its own
// arena that outlives the agent's transcript"). a is exclusively owned by
// the returned Agent from this point on: no other code may allocate from it,
// and it is released only by Destroy. Session.NewAgent is the usual way to
// obtain one already wired into a session's teardown order.
func New(cfg Config, a *arena.Arena, inst provider.Instance, reg *registry.Registry) *Agent {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = 10
	}
	return &Agent{cfg: cfg, arena: a, provider: inst, registry: reg, t: &transcript.Transcript{}}
}

// Transcript exposes the agent's transcript, e.g. for hook inspection or
// for seeding a follow-up run with prior context.
func (a *Agent) Transcript() *transcript.Transcript { return a.t }

// Arena exposes the agent's own arena, e.g. for a caller that wants to
// confirm it is distinct from the session's (spec §4.B "each Agent owns
// its own arena").
func (a *Agent) Arena() *arena.Arena { return a.arena }

// Destroy releases the agent's own arena (spec §4.B teardown step 2:
// "destroy each agent (releases its arena)"). Strings already obtained from
// the arena, including the Content of a previously-returned Result, are
// independent copies (see arena.Strdup) and stay readable. The Agent must
// not be used after Destroy.
func (a *Agent) Destroy() {
	a.arena.Destroy()
}

// Run executes the ReACT loop for one user message, following the eight
// numbered steps of spec §4.I.
func (a *Agent) Run(ctx context.Context, message string) (*Result, error) {
	start := time.Now()
	runID := newRunID()
	var totalUsage provider.Usage

	// Step 2: seed the system instructions once, only on an empty transcript.
	if a.t.Len() == 0 && a.cfg.Instructions != "" {
		a.t.Append(transcript.MessageCreate(transcript.RoleSystem, transcript.TextBlock(a.cfg.Instructions)))
	}

	// Step 3
	a.t.Append(transcript.MessageCreate(transcript.RoleUser, transcript.TextBlock(message)))

	hooks.FireRunStart(ctx, hooks.RunInfo{RunID: runID, Message: message})

	// Step 4: build (and cache for this call) the tools schema.
	toolsSchema := a.cfg.ToolsSchema
	if toolsSchema == "" && a.registry != nil {
		schema, err := a.registry.Schema()
		if err != nil {
			return nil, rterr.Wrap(rterr.Backend, err, "build tools schema")
		}
		toolsSchema = schema
	}

	var finalContent string
	status := StopMaxIterations
	iterations := 0

	for iteration := 1; iteration <= a.cfg.MaxIterations; iteration++ {
		iterations = iteration
		hooks.FireIterStart(ctx, hooks.IterInfo{Iteration: iteration})

		hooks.FireLLMRequest(ctx, hooks.LLMRequestInfo{Transcript: a.t, ToolsSchema: toolsSchema})

		llmStart := time.Now()
		resp, err := a.invokeProvider(ctx, toolsSchema)
		duration := time.Since(llmStart)
		if err != nil {
			// Step "Failure": a provider error returns immediately without
			// appending anything for this turn — the Assistant message is
			// simply never committed, which is the rollback.
			hooks.FireRunEnd(ctx, hooks.RunInfo{
				RunID: runID, Message: message, Iterations: iterations, Usage: totalUsage,
				DurationNS: time.Since(start).Nanoseconds(), StopStatus: string(StopProviderError),
			})
			return nil, rterr.Wrap(rterr.Backend, err, "provider chat failed on iteration %d", iteration)
		}

		hooks.FireLLMResponse(ctx, hooks.LLMResponseInfo{Response: resp, Duration: duration.Nanoseconds()})

		totalUsage = totalUsage.Add(resp.Usage)

		toolUses := resp.ToolUses()
		if len(toolUses) > 0 {
			// Step 5f: commit the assistant turn (including any text alongside
			// the tool calls), then execute each tool call in order.
			assistantBlocks := make([]transcript.ContentBlock, len(resp.Blocks))
			copy(assistantBlocks, resp.Blocks)
			for i := range assistantBlocks {
				assistantBlocks[i] = internString(a.arena, assistantBlocks[i])
			}
			a.t.Append(transcript.MessageCreate(transcript.RoleAssistant, assistantBlocks...))

			for _, tu := range toolUses {
				hooks.FireToolStart(ctx, hooks.ToolInfo{Name: tu.ToolName, ArgsJSON: tu.InputJSON})

				var resultJSON string
				var toolErr error
				if a.registry != nil {
					resultJSON, toolErr = a.registry.Call(ctx, tu.ToolName, tu.InputJSON)
				} else {
					resultJSON, toolErr = "", rterr.New(rterr.NotInitialized, "no tool registry attached")
				}

				if toolErr != nil {
					resultJSON = toolErrorJSON(toolErr)
				}
				isErr := toolErr != nil || resultHasTopLevelError(resultJSON)

				hooks.FireToolEnd(ctx, hooks.ToolInfo{
					Name: tu.ToolName, ArgsJSON: tu.InputJSON, Result: resultJSON, Err: toolErr, IsError: isErr,
				})

				resultJSON = a.arena.Strdup(resultJSON)
				a.t.Append(transcript.MessageCreate(transcript.RoleTool,
					transcript.ToolResultBlock(tu.ToolUseID, resultJSON, isErr)))
			}

			hooks.FireIterEnd(ctx, hooks.IterInfo{Iteration: iteration})
			continue
		}

		// Step 5g: no tool calls — this is the final turn.
		text := a.arena.Strdup(resp.TextOnly())
		a.t.Append(transcript.MessageCreate(transcript.RoleAssistant, transcript.TextBlock(text)))
		finalContent = text
		status = StopSuccess
		hooks.FireIterEnd(ctx, hooks.IterInfo{Iteration: iteration})
		break
	}

	hooks.FireRunEnd(ctx, hooks.RunInfo{
		RunID: runID, Message: message, Iterations: iterations, Usage: totalUsage,
		DurationNS: time.Since(start).Nanoseconds(), StopStatus: string(status),
	})

	return &Result{
		Content:    finalContent,
		Iterations: iterations,
		Usage:      totalUsage,
		StopStatus: status,
	}, nil
}

func (a *Agent) invokeProvider(ctx context.Context, toolsSchema string) (*provider.ChatResponse, error) {
	if a.cfg.Stream {
		return a.provider.ChatStream(ctx, a.t, toolsSchema, nil)
	}
	return a.provider.Chat(ctx, a.t, toolsSchema)
}

// internString copies a block's string payloads into the arena, matching
// spec §4.I step 5f "copy them into the arena."
func internString(a *arena.Arena, b transcript.ContentBlock) transcript.ContentBlock {
	b.Text = a.Strdup(b.Text)
	b.Signature = a.Strdup(b.Signature)
	b.Data = a.Strdup(b.Data)
	b.ToolUseID = a.Strdup(b.ToolUseID)
	b.ToolName = a.Strdup(b.ToolName)
	b.InputJSON = a.Strdup(b.InputJSON)
	return b
}

// resultHasTopLevelError implements the stricter is-error rule spec §9
// recommends in place of the reference's substring-scan heuristic: a
// result is an error only if its top-level JSON object has an "error" key,
// so a legitimate field like "error_count" never misclassifies a
// successful call (spec E6).
func resultHasTopLevelError(resultJSON string) bool {
	var decoded map[string]json.RawMessage
	if err := json.Unmarshal([]byte(resultJSON), &decoded); err != nil {
		return false
	}
	_, ok := decoded["error"]
	return ok
}

func toolErrorJSON(err error) string {
	b, marshalErr := json.Marshal(map[string]string{"error": err.Error()})
	if marshalErr != nil {
		return `{"error":"tool call failed"}`
	}
	return string(b)
}

// newRunID mirrors the teacher's run-ID tagging (toolloop.go's
// runIDKey/uuid.New()); threaded through RunInfo.RunID so an observer can
// correlate on_run_start with its matching on_run_end across concurrently
// running agents.
func newRunID() string { return uuid.NewString() }
