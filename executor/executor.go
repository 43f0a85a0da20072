// Package executor turns a persisted plan into an execution schedule and
// runs it: steps with no unmet prerequisites form a batch, batches run
// strictly in sequence, and steps within a batch run concurrently up to a
// configurable limit. Grounded on the original Python
// a2a_graph.plan_executor.PlanExecutor (Kahn's-algorithm batching,
// started/completed SUMMARY events per step), reworked onto Go's
// goroutine/semaphore concurrency model per the component design.
package executor

import (
	"context"
	"encoding/json"
	"sort"

	"golang.org/x/sync/semaphore"

	"github.com/chuk-ai/toolgraph/graph"
	"github.com/chuk-ai/toolgraph/orcerr"
	"github.com/chuk-ai/toolgraph/session"
)

// ToolCallRequest is the normalized shape an executor hands to the tool
// processor for a single PLAN_LINK edge target.
type ToolCallRequest struct {
	ID        string
	Name      string
	Arguments json.RawMessage
}

// ToolCallFunc dispatches one tool call, with parentEventID set to the
// owning step's "started" SUMMARY event id. In production the orchestrator
// adapts toolproc.Processor.ProcessOne to this signature; a test double
// suffices here.
type ToolCallFunc func(ctx context.Context, req ToolCallRequest, parentEventID string) error

// Options configures an Executor.
type Options struct {
	// Concurrency bounds how many steps in a single batch run at once.
	// Defaults to 3 when <= 0.
	Concurrency int
	// ProceedOnPartialFailure controls whether the executor continues to
	// the next batch when one or more steps in the current batch failed.
	// The zero value (false) stops after such a batch; config.Default()
	// sets it to true.
	ProceedOnPartialFailure bool
}

// Executor runs the plan steps recorded in a graph.Store.
type Executor struct {
	store graph.Store
	opts  Options
}

// New constructs an Executor over store.
func New(store graph.Store, opts Options) *Executor {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 3
	}
	return &Executor{store: store, opts: opts}
}

// StepResult records the outcome of one step's execution.
type StepResult struct {
	StepID string
	Err    error
}

// planSteps returns the PLAN_STEP children of planID, sorted by hierarchical
// index.
func (e *Executor) planSteps(planID string) []graph.Node {
	edges := e.store.GetEdges(planID, "", graph.EdgeParentChild)
	seen := make(map[string]bool, len(edges))
	steps := make([]graph.Node, 0, len(edges))
	for _, edge := range edges {
		if seen[edge.Dst] {
			continue
		}
		n, ok := e.store.GetNode(edge.Dst)
		if !ok || n.Kind != graph.KindPlanStep {
			continue
		}
		seen[edge.Dst] = true
		steps = append(steps, n)
	}
	sort.Slice(steps, func(i, j int) bool {
		return indexOf(steps[i]) < indexOf(steps[j])
	})
	return steps
}

func indexOf(n graph.Node) string {
	if idx, ok := n.Attrs["index"].(string); ok {
		return idx
	}
	return ""
}

// Schedule computes the execution batches for planID: each batch is a slice
// of step ids that can run in parallel, ordered by hierarchical index. Fails
// with *CyclicPlan if the STEP_ORDER subgraph has a cycle — including the
// case where zero steps are initially ready, since any finite, non-empty,
// acyclic dependency graph always has at least one zero-dependency root.
func (e *Executor) Schedule(planID string) ([][]string, error) {
	steps := e.planSteps(planID)
	if len(steps) == 0 {
		return nil, nil
	}

	dependencies := make(map[string]map[string]bool, len(steps))
	dependents := make(map[string][]string, len(steps))
	for _, s := range steps {
		dependencies[s.ID] = make(map[string]bool)
	}
	for _, s := range steps {
		for _, edge := range e.store.GetEdges(s.ID, "", graph.EdgeStepOrder) {
			if _, ok := dependencies[edge.Dst]; !ok {
				continue // dependency points outside this plan's steps; ignore
			}
			dependencies[edge.Dst][s.ID] = true
			dependents[s.ID] = append(dependents[s.ID], edge.Dst)
		}
	}

	var ready []string
	for _, s := range steps {
		if len(dependencies[s.ID]) == 0 {
			ready = append(ready, s.ID)
		}
	}
	sortByIndex(ready, steps)

	var batches [][]string
	scheduled := 0
	for len(ready) > 0 {
		batches = append(batches, ready)
		scheduled += len(ready)

		var next []string
		for _, sid := range ready {
			for _, dependent := range dependents[sid] {
				delete(dependencies[dependent], sid)
				if len(dependencies[dependent]) == 0 {
					next = append(next, dependent)
				}
			}
		}
		sortByIndex(next, steps)
		ready = next
	}

	if scheduled != len(steps) {
		return nil, orcerr.New(orcerr.CodeCyclicPlan, "plan step dependency graph contains a cycle")
	}
	return batches, nil
}

func sortByIndex(ids []string, steps []graph.Node) {
	order := make(map[string]string, len(steps))
	for _, s := range steps {
		order[s.ID] = indexOf(s)
	}
	sort.Slice(ids, func(i, j int) bool { return order[ids[i]] < order[ids[j]] })
}

// Execute runs every batch for planID in sequence, dispatching each step's
// PLAN_LINK tool calls through processToolCall. runEventID is the parent
// event (typically a SUMMARY marking the plan run) under which each step's
// started/completed events are nested. It returns every step's result across
// every batch that ran, even when it returns early or with an error, so
// callers can inspect how much of the plan actually completed.
func (e *Executor) Execute(ctx context.Context, sess *session.Session, planID, runEventID string, processToolCall ToolCallFunc) ([]StepResult, error) {
	batches, err := e.Schedule(planID)
	if err != nil {
		return nil, err
	}

	var all []StepResult
	for _, batch := range batches {
		results := e.ExecuteBatch(ctx, sess, batch, runEventID, processToolCall)
		all = append(all, results...)

		var failed bool
		for _, r := range results {
			if r.Err != nil {
				failed = true
			}
		}
		if failed && !e.opts.ProceedOnPartialFailure {
			return all, orcerr.New(orcerr.CodeToolExecutionFailed, "batch contained a failed step; proceed-on-partial-failure is disabled")
		}
		if ctx.Err() != nil {
			return all, orcerr.Wrap(orcerr.CodeCancelled, "plan execution cancelled", ctx.Err())
		}
	}
	return all, nil
}

// ExecuteBatch runs a single batch of step ids concurrently up to the
// configured concurrency limit, returning each step's result. Exposed so
// callers (the orchestrator) can run one batch at a time, inspect results,
// attach follow-up steps, and later call Execute again to finish the rest;
// executeStep's "executed" marker on each TOOL_CALL node makes a later
// Execute call over the same plan safe to repeat.
func (e *Executor) ExecuteBatch(ctx context.Context, sess *session.Session, batch []string, runEventID string, processToolCall ToolCallFunc) []StepResult {
	sem := semaphore.NewWeighted(int64(e.opts.Concurrency))
	results := make([]StepResult, len(batch))
	done := make(chan struct{}, len(batch))

	for i, stepID := range batch {
		i, stepID := i, stepID
		if err := sem.Acquire(ctx, 1); err != nil {
			results[i] = StepResult{StepID: stepID, Err: orcerr.Wrap(orcerr.CodeCancelled, "acquire step slot", err)}
			done <- struct{}{}
			continue
		}
		go func() {
			defer sem.Release(1)
			defer func() { done <- struct{}{} }()
			results[i] = StepResult{StepID: stepID, Err: e.executeStep(ctx, sess, stepID, runEventID, processToolCall)}
		}()
	}
	for range batch {
		<-done
	}
	return results
}

func (e *Executor) executeStep(ctx context.Context, sess *session.Session, stepID, parentEventID string, processToolCall ToolCallFunc) error {
	stepNode, ok := e.store.GetNode(stepID)
	if !ok || stepNode.Kind != graph.KindPlanStep {
		return orcerr.Newf(orcerr.CodeInvalidReference, "invalid plan step %q", stepID)
	}
	description, _ := stepNode.Attrs["description"].(string)

	startEvt := session.NewEvent(session.SourceSystem, session.TypeSummary, map[string]any{
		"step_id":     stepID,
		"description": description,
		"status":      "started",
	}).WithParent(parentEventID)
	sess.AddEvent(startEvt)

	toolEdges := e.store.GetEdges(stepID, "", graph.EdgePlanLink)
	var stepErr error
	executed := 0
	for _, edge := range toolEdges {
		toolNode, ok := e.store.GetNode(edge.Dst)
		if !ok || toolNode.Kind != graph.KindToolCall {
			continue
		}
		if done, _ := toolNode.Attrs["executed"].(bool); done {
			// Already dispatched by a prior Execute call on this plan; a
			// re-entrant Execute only dispatches steps whose outputs are
			// still absent.
			continue
		}
		name, _ := toolNode.Attrs["name"].(string)
		var args json.RawMessage
		if raw, ok := toolNode.Attrs["args"]; ok {
			if encoded, err := json.Marshal(raw); err == nil {
				args = encoded
			}
		}
		req := ToolCallRequest{ID: toolNode.ID, Name: name, Arguments: args}
		callErr := processToolCall(ctx, req, startEvt.ID)
		if callErr == nil {
			merged := graph.Attrs{}
			for k, v := range toolNode.Attrs {
				merged[k] = v
			}
			merged["executed"] = true
			_ = e.store.UpdateNode(toolNode.ID, merged)
		} else if stepErr == nil {
			stepErr = callErr
		}
		executed++
	}

	status := "completed"
	if stepErr != nil {
		status = "failed"
	}
	sess.AddEvent(session.NewEvent(session.SourceSystem, session.TypeSummary, map[string]any{
		"step_id":        stepID,
		"status":         status,
		"tools_executed": executed,
	}).WithParent(parentEventID))

	return stepErr
}
