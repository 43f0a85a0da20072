// Package orchestrator drives the end-to-end loop: take a user goal, ask the
// LLM for a plan, validate and persist it, execute it through the plan
// executor and tool processor, optionally extend the plan with follow-up
// steps once early evidence is in, and produce a closing summary. Grounded
// on the component design's "Orchestrator Loop" and, for its re-planning
// shape, the original a2a_graph examples that drive a PlanExecutor from a
// planner-produced plan and react to intermediate tool results.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/chuk-ai/toolgraph/executor"
	"github.com/chuk-ai/toolgraph/graph"
	"github.com/chuk-ai/toolgraph/llm"
	"github.com/chuk-ai/toolgraph/orcerr"
	"github.com/chuk-ai/toolgraph/plan"
	"github.com/chuk-ai/toolgraph/promptbuilder"
	"github.com/chuk-ai/toolgraph/session"
	"github.com/chuk-ai/toolgraph/toolproc"
)

// planningSystemPrompt instructs the LLM planner to emit PlanSpec-shaped
// JSON and nothing else.
const planningSystemPrompt = `You are a planning assistant. Respond with a single JSON object of the form:
{"title": string, "steps": [{"title": string, "tool": string, "args": object, "depends_on": [int]}]}
depends_on entries are the 1-based position of an earlier step this step requires. Use an empty string for "tool" on reasoning-only steps that call no tool. Respond with the JSON object only, no surrounding prose.`

// searchFollowUpPrompt asks the LLM whether a search-like step's result
// warrants further steps, and if so to emit them in the same PlanStepSpec
// shape.
const searchFollowUpPrompt = `The step above just produced new data. If it warrants additional follow-up steps, respond with a JSON object {"steps": [...]} using the same step shape as before (depends_on may be omitted; the follow-up steps depend on the originating step implicitly). If no follow-up is warranted, respond with {"steps": []}.`

// Options configures an Orchestrator.
type Options struct {
	// Strategy selects the prompt-building strategy used to reconstruct
	// conversation context before each LLM call. Defaults to
	// promptbuilder.StrategyConversation.
	Strategy promptbuilder.Strategy
	// TokenBudget, if > 0, truncates the built prompt via
	// promptbuilder.Truncate before every LLM call.
	TokenBudget int
	// AllowList is the tool allow-list every planned step's tool and
	// arguments are validated against.
	AllowList AllowList
}

func (o Options) withDefaults() Options {
	if o.Strategy == "" {
		o.Strategy = promptbuilder.StrategyConversation
	}
	return o
}

// Orchestrator wires the plan DSL, executor, tool processor, and prompt
// builder into the single goal -> plan -> execute -> re-plan -> summarize
// loop.
type Orchestrator struct {
	graphStore graph.Store
	processor  *toolproc.Processor
	exec       *executor.Executor
	builder    *promptbuilder.Builder
	callback   llm.Callback
	opts       Options
}

// New constructs an Orchestrator. graphStore backs every plan authored by
// Run; processor and exec carry out tool dispatch and batch scheduling;
// promptStore (may be nil) lets the hierarchical prompt strategy walk
// ancestor sessions; callback is the LLM entry point used for both planning
// and summarization.
func New(graphStore graph.Store, processor *toolproc.Processor, exec *executor.Executor, promptStore session.Store, callback llm.Callback, opts Options) *Orchestrator {
	return &Orchestrator{
		graphStore: graphStore,
		processor:  processor,
		exec:       exec,
		builder:    promptbuilder.New(promptStore),
		callback:   callback,
		opts:       opts.withDefaults(),
	}
}

// Run executes one full orchestration cycle for goal against sess, returning
// the closing one-sentence summary.
func (o *Orchestrator) Run(ctx context.Context, sess *session.Session, goal string) (string, error) {
	sess.AddEvent(session.NewEvent(session.SourceUser, session.TypeMessage, goal))

	run := session.NewRun()
	sess.AddRun(run)
	run.Transition(session.RunRunning)

	spec, err := o.plan(ctx, sess)
	if err != nil {
		run.Transition(session.RunFailed)
		return "", err
	}
	if err := ValidatePlan(spec, o.opts.AllowList); err != nil {
		run.Transition(session.RunFailed)
		return "", err
	}

	builder, err := o.persistPlan(spec)
	if err != nil {
		run.Transition(session.RunFailed)
		return "", err
	}

	runEvt := session.NewEvent(session.SourceSystem, session.TypeSummary, map[string]any{
		"plan_id": builder.ID(),
		"title":   spec.Title,
		"status":  "executing",
	})
	sess.AddEvent(runEvt)

	processToolCall := o.toolCallFunc(sess)

	batches, err := o.exec.Schedule(builder.ID())
	if err != nil {
		run.Transition(session.RunFailed)
		return "", err
	}

	if len(batches) > 0 {
		firstBatch := o.exec.ExecuteBatch(ctx, sess, batches[0], runEvt.ID, processToolCall)
		o.reviewForFollowUp(ctx, sess, builder, firstBatch)
	}

	// Execute re-runs the whole plan (including the first batch, which is a
	// no-op for steps it already completed, since executeStep skips any
	// TOOL_CALL already marked "executed") so its return value is the
	// authoritative, final outcome for every step in the plan.
	allResults, err := o.exec.Execute(ctx, sess, builder.ID(), runEvt.ID, processToolCall)
	if err != nil {
		if ctx.Err() != nil {
			run.Transition(session.RunCancelled)
		} else {
			run.Transition(session.RunFailed)
		}
		return "", err
	}

	if allFailed(allResults) {
		failMsg := fmt.Sprintf("all %d tool call(s) in plan %q failed", len(allResults), builder.ID())
		sess.AddEvent(session.NewEvent(session.SourceSystem, session.TypeSummary, map[string]any{
			"plan_id": builder.ID(),
			"error":   failMsg,
			"status":  "failed",
		}))
		run.Transition(session.RunFailed)
		return "", orcerr.New(orcerr.CodeToolExecutionFailed, failMsg)
	}

	summary, err := o.summarize(ctx, sess)
	if err != nil {
		run.Transition(session.RunFailed)
		return "", err
	}
	sess.AddEvent(session.NewEvent(session.SourceSystem, session.TypeSummary, summary))
	run.Transition(session.RunCompleted)
	return summary, nil
}

// allFailed reports whether results is non-empty and every step in it
// failed, i.e. no tool call in the plan produced a usable result.
func allFailed(results []executor.StepResult) bool {
	if len(results) == 0 {
		return false
	}
	for _, r := range results {
		if r.Err == nil {
			return false
		}
	}
	return true
}

func (o *Orchestrator) toolCallFunc(sess *session.Session) executor.ToolCallFunc {
	return func(ctx context.Context, req executor.ToolCallRequest, parentEventID string) error {
		result := o.processor.ProcessOne(ctx, sess, toolproc.ToolCallRequest{
			ID:   req.ID,
			Name: req.Name,
			Args: req.Arguments,
		}, parentEventID)
		if result.Error != "" {
			return orcerr.New(orcerr.CodeToolExecutionFailed, result.Error)
		}
		return nil
	}
}

// plan asks the LLM planner for a PlanSpec given the conversation so far.
func (o *Orchestrator) plan(ctx context.Context, sess *session.Session) (PlanSpec, error) {
	messages, err := o.promptMessages(ctx, sess, planningSystemPrompt)
	if err != nil {
		return PlanSpec{}, err
	}
	assistant, err := o.callback(ctx, messages)
	if err != nil {
		return PlanSpec{}, orcerr.Wrap(orcerr.CodeInvalidArgs, "planning callback failed", err)
	}
	if assistant.Content == nil {
		return PlanSpec{}, orcerr.New(orcerr.CodeInvalidArgs, "planner returned no content")
	}
	var spec PlanSpec
	if err := json.Unmarshal([]byte(*assistant.Content), &spec); err != nil {
		return PlanSpec{}, orcerr.Wrap(orcerr.CodeInvalidArgs, "planner response is not valid plan JSON", err)
	}
	return spec, nil
}

func (o *Orchestrator) promptMessages(ctx context.Context, sess *session.Session, systemPrompt string) ([]llm.Message, error) {
	messages, err := o.builder.Build(ctx, sess, o.opts.Strategy)
	if err != nil {
		return nil, err
	}
	out := make([]llm.Message, 0, len(messages)+1)
	out = append(out, llm.Message{Role: llm.RoleSystem, Content: systemPrompt})
	out = append(out, messages...)
	if o.opts.TokenBudget > 0 {
		out = promptbuilder.Truncate(out, o.opts.TokenBudget, nil)
	}
	return out, nil
}

// persistPlan builds the flat plan.Builder tree for spec: every step is a
// top-level sibling (the planner's depends_on references are the only
// structure), attaching a TOOL_CALL node per step that names a tool.
func (o *Orchestrator) persistPlan(spec PlanSpec) (*plan.Builder, error) {
	b := plan.New(spec.Title, o.graphStore)
	for _, step := range spec.Steps {
		b.Step(step.Title, dependsOnIndices(step.DependsOn)...).Up()
	}
	if _, err := b.Save(); err != nil {
		return nil, err
	}

	for i, step := range spec.Steps {
		if step.Tool == "" {
			continue
		}
		idx := fmt.Sprintf("%d", i+1)
		var args any
		if len(step.Args) > 0 {
			if err := json.Unmarshal(step.Args, &args); err != nil {
				return nil, orcerr.Wrap(orcerr.CodeInvalidArgs, fmt.Sprintf("step %d args", i+1), err)
			}
		}
		if _, err := b.AttachToolCall(idx, step.Tool, args); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// reviewForFollowUp asks the LLM, for every search-like step that succeeded
// in the first batch, whether further steps are warranted, and attaches any
// returned sub-steps under the originating step.
func (o *Orchestrator) reviewForFollowUp(ctx context.Context, sess *session.Session, b *plan.Builder, results []executor.StepResult) {
	for _, r := range results {
		if r.Err != nil {
			continue
		}
		node, ok := o.graphStore.GetNode(r.StepID)
		if !ok {
			continue
		}
		description, _ := node.Attrs["description"].(string)
		index, _ := node.Attrs["index"].(string)
		if !isSearchLike(description) {
			continue
		}

		followUps, err := o.askForFollowUps(ctx, sess, description)
		if err != nil || len(followUps) == 0 {
			continue
		}
		for _, step := range followUps {
			childIdx, err := b.AddStep(step.Title, index)
			if err != nil {
				continue
			}
			if step.Tool != "" {
				var args any
				if len(step.Args) > 0 {
					_ = json.Unmarshal(step.Args, &args)
				}
				_, _ = b.AttachToolCall(childIdx, step.Tool, args)
			}
		}
	}
}

func isSearchLike(description string) bool {
	return strings.Contains(strings.ToLower(description), "search")
}

func (o *Orchestrator) askForFollowUps(ctx context.Context, sess *session.Session, stepDescription string) ([]PlanStepSpec, error) {
	messages, err := o.promptMessages(ctx, sess, searchFollowUpPrompt+"\n\nOriginating step: "+stepDescription)
	if err != nil {
		return nil, err
	}
	assistant, err := o.callback(ctx, messages)
	if err != nil || assistant.Content == nil {
		return nil, err
	}
	var wrapper struct {
		Steps []PlanStepSpec `json:"steps"`
	}
	if err := json.Unmarshal([]byte(*assistant.Content), &wrapper); err != nil {
		return nil, nil
	}
	return wrapper.Steps, nil
}

// summarize asks the LLM for a one-sentence closing summary of the
// conversation so far.
func (o *Orchestrator) summarize(ctx context.Context, sess *session.Session) (string, error) {
	messages, err := o.promptMessages(ctx, sess, "Summarize the outcome of this conversation in one sentence.")
	if err != nil {
		return "", err
	}
	assistant, err := o.callback(ctx, messages)
	if err != nil {
		return "", orcerr.Wrap(orcerr.CodeInvalidArgs, "summarization callback failed", err)
	}
	if assistant.Content == nil {
		return "", orcerr.New(orcerr.CodeInvalidArgs, "summarizer returned no content")
	}
	return *assistant.Content, nil
}
