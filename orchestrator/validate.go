package orchestrator

import (
	"encoding/json"
	"fmt"

	"github.com/chuk-ai/toolgraph/orcerr"
	"github.com/chuk-ai/toolgraph/registry"
)

// PlanStepSpec is one step of the JSON plan the LLM planner produces.
// DependsOn entries are either the 1-based ordinal position of an earlier
// step in Steps, or an already-assigned hierarchical index string; both
// normalize to the same dotted-index scheme plan.Builder understands.
type PlanStepSpec struct {
	Title     string          `json:"title"`
	Tool      string          `json:"tool"`
	Args      json.RawMessage `json:"args,omitempty"`
	DependsOn []any           `json:"depends_on,omitempty"`
}

// PlanSpec is the top-level JSON plan shape produced by the LLM planner.
type PlanSpec struct {
	Title string         `json:"title"`
	Steps []PlanStepSpec `json:"steps"`
}

// AllowList maps an allowed tool name to its arguments schema. A tool absent
// from the list is rejected; a tool present with a nil schema is allowed
// with any argument shape.
type AllowList map[string]*registry.Schema

// ValidatePlan rejects unknown tools and arguments that fail the matching
// tool's schema. It returns the first violation found.
func ValidatePlan(spec PlanSpec, allow AllowList) error {
	if len(spec.Steps) == 0 {
		return orcerr.New(orcerr.CodeInvalidArgs, "plan has no steps")
	}
	for i, step := range spec.Steps {
		if step.Tool == "" {
			continue // reasoning-only step; no tool call to validate
		}
		schema, ok := allow[step.Tool]
		if !ok {
			return orcerr.Newf(orcerr.CodeUnknownTool, "step %d (%q): tool %q is not in the allow-list", i+1, step.Title, step.Tool)
		}
		if schema == nil {
			continue
		}
		var args any
		if len(step.Args) > 0 {
			if err := json.Unmarshal(step.Args, &args); err != nil {
				return orcerr.Wrap(orcerr.CodeInvalidArgs, fmt.Sprintf("step %d (%q): args is not valid JSON", i+1, step.Title), err)
			}
		}
		if err := schema.Validate(args); err != nil {
			return orcerr.Wrap(orcerr.CodeInvalidArgs, fmt.Sprintf("step %d (%q): args failed schema validation", i+1, step.Title), err)
		}
	}
	return nil
}

func dependsOnIndices(dependsOn []any) []string {
	out := make([]string, 0, len(dependsOn))
	for _, d := range dependsOn {
		out = append(out, fmt.Sprintf("%v", normalizeDependency(d)))
	}
	return out
}

// normalizeDependency collapses a JSON-decoded depends_on entry (a
// float64 for a JSON number, or a string) into the integer or string form
// plan.Builder's hierarchical indices use.
func normalizeDependency(d any) any {
	if f, ok := d.(float64); ok {
		return int(f)
	}
	return d
}
