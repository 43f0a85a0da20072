// Package graph implements the typed, in-memory node/edge store that backs
// plans, sessions, and tool-call records. It is the authoritative structure
// for a plan's shape: nodes are immutable after creation except for their
// attribute bag (replaced wholesale via UpdateNode), and edges are typed,
// directed links between node ids.
package graph

// NodeKind discriminates the kind of entity a GraphNode represents.
type NodeKind string

const (
	KindSession   NodeKind = "SESSION"
	KindUserMsg   NodeKind = "USER_MSG"
	KindAssistMsg NodeKind = "ASSIST_MSG"
	KindPlan      NodeKind = "PLAN"
	KindPlanStep  NodeKind = "PLAN_STEP"
	KindToolCall  NodeKind = "TOOL_CALL"
	KindTaskRun   NodeKind = "TASK_RUN"
	KindSummary   NodeKind = "SUMMARY"
)

// EdgeKind discriminates the kind of relationship a GraphEdge represents.
type EdgeKind string

const (
	// EdgeParentChild encodes hierarchy (e.g. plan -> step, step -> sub-step).
	EdgeParentChild EdgeKind = "PARENT_CHILD"
	// EdgeNext encodes temporal ordering between sibling nodes.
	EdgeNext EdgeKind = "NEXT"
	// EdgePlanLink links a PLAN_STEP to the TOOL_CALL nodes it owns.
	EdgePlanLink EdgeKind = "PLAN_LINK"
	// EdgeStepOrder encodes a dependency: STEP_ORDER(a->b) means b depends on a.
	EdgeStepOrder EdgeKind = "STEP_ORDER"
	// EdgeCustom is an escape hatch for caller-defined relationships.
	EdgeCustom EdgeKind = "CUSTOM"
)

// Attrs is the kind-specific attribute bag carried by a node. It is replaced
// wholesale on UpdateNode; individual keys are never mutated in place by the
// store itself (callers read-modify-write).
type Attrs map[string]any

// Node is an immutable-after-creation entity in the plan/session graph. Its
// Kind never changes; its Attrs may be replaced via Store.UpdateNode.
type Node struct {
	ID    string
	Kind  NodeKind
	Attrs Attrs
}

// Clone returns a deep-enough copy of the node (the Attrs map itself is
// copied; values inside it are not). Used by the store to avoid aliasing
// internal state with caller-held references.
func (n Node) Clone() Node {
	cp := Node{ID: n.ID, Kind: n.Kind}
	if n.Attrs != nil {
		cp.Attrs = make(Attrs, len(n.Attrs))
		for k, v := range n.Attrs {
			cp.Attrs[k] = v
		}
	}
	return cp
}

// Edge is a directed, typed link between two node ids.
type Edge struct {
	ID   string
	Kind EdgeKind
	Src  string
	Dst  string
}
