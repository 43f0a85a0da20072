// Package plan implements the author-facing plan DSL: a fluent builder that
// hides the low-level graph primitives behind step()/up() cursor movement
// and assigns stable, human-readable hierarchical indices ("1", "1.2",
// "1.2.1") on save. Grounded on the original Python a2a_graph.planner.Plan
// facade, reworked into Go's builder-returns-self idiom.
package plan

import (
	"fmt"
	"sort"
	"strings"

	"github.com/chuk-ai/toolgraph/graph"
	"github.com/chuk-ai/toolgraph/internal/ids"
	"github.com/chuk-ai/toolgraph/orcerr"
)

// step is the builder's internal mutable node. Only after Save (or AddStep)
// does a step get persisted into the graph store.
type step struct {
	id       string
	title    string
	parent   *step
	after    []string // dependency hierarchical indices
	index    string
	children []*step
}

// Builder is the plan authoring façade. The zero value is not usable; use
// New. Not safe for concurrent use by multiple goroutines.
type Builder struct {
	title string
	id    string
	store graph.Store

	root   *step
	cursor *step

	indexMap map[string]*step
	saved    bool
}

// New constructs a Builder with a generated plan id, backed by store.
func New(title string, store graph.Store) *Builder {
	root := &step{title: "[ROOT]"}
	return &Builder{
		title:    title,
		id:       ids.Plan(),
		store:    store,
		root:     root,
		cursor:   root,
		indexMap: make(map[string]*step),
	}
}

// ID returns the plan's node id (stable from construction, independent of
// Save).
func (b *Builder) ID() string { return b.id }

// Step adds a child step under the cursor and descends into it, so a
// following Step call nests under this one. after lists dependency
// hierarchical indices resolved at Save time.
func (b *Builder) Step(title string, after ...string) *Builder {
	child := &step{title: title, parent: b.cursor, after: append([]string(nil), after...)}
	b.cursor.children = append(b.cursor.children, child)
	b.cursor = child
	return b
}

// Up moves the cursor to its parent. A no-op at the root.
func (b *Builder) Up() *Builder {
	if b.cursor.parent != nil {
		b.cursor = b.cursor.parent
	}
	return b
}

// assignIndices performs the depth-first numbering described in the
// component design: root children are "1", "2", ...; the k-th child of step
// "1.2" is "1.2.k".
func (b *Builder) assignIndices() {
	if len(b.indexMap) > 0 {
		return
	}
	var walk func(parent *step, prefix string)
	walk = func(parent *step, prefix string) {
		for i, child := range parent.children {
			idx := fmt.Sprintf("%d", i+1)
			if prefix != "" {
				idx = prefix + "." + idx
			}
			child.index = idx
			b.indexMap[idx] = child
			walk(child, idx)
		}
	}
	walk(b.root, "")
}

// Save assigns hierarchical indices (if not already assigned) and persists
// the plan node, every step node, plan→step and parent→step PARENT_CHILD
// edges, and STEP_ORDER edges for every resolved dependency. Returns the
// plan node's id.
func (b *Builder) Save() (string, error) {
	b.assignIndices()

	if _, err := b.store.AddNode(graph.Node{
		ID:    b.id,
		Kind:  graph.KindPlan,
		Attrs: graph.Attrs{"title": b.title},
	}); err != nil {
		return "", err
	}

	ordered := b.orderedSteps()
	for _, st := range ordered {
		if err := b.persistStepNode(st); err != nil {
			return "", err
		}
	}
	for _, st := range ordered {
		if err := b.persistStepEdges(st); err != nil {
			return "", err
		}
	}
	for _, st := range ordered {
		if err := b.persistDependencies(st); err != nil {
			return "", err
		}
	}

	b.saved = true
	return b.id, nil
}

// AddStep adds a step after Save, attaching it under parentIndex ("" means
// the plan root) and persisting it immediately: the step node, its
// plan→step and parent→step edges, and STEP_ORDER edges for after. Returns
// the newly assigned hierarchical index.
func (b *Builder) AddStep(title string, parentIndex string, after ...string) (string, error) {
	b.assignIndices()

	parent := b.root
	if parentIndex != "" {
		p, ok := b.indexMap[parentIndex]
		if !ok {
			return "", orcerr.Newf(orcerr.CodeInvalidReference, "parent index %q does not exist", parentIndex)
		}
		parent = p
	}

	idx := fmt.Sprintf("%d", len(parent.children)+1)
	if parent.index != "" {
		idx = parent.index + "." + idx
	}

	st := &step{title: title, parent: parent, after: append([]string(nil), after...), index: idx}
	parent.children = append(parent.children, st)
	b.indexMap[idx] = st

	if err := b.persistStepNode(st); err != nil {
		return "", err
	}
	if err := b.persistStepEdges(st); err != nil {
		return "", err
	}
	if err := b.persistDependencies(st); err != nil {
		return "", err
	}
	return idx, nil
}

func (b *Builder) persistStepNode(st *step) error {
	st.id = ids.Step()
	_, err := b.store.AddNode(graph.Node{
		ID:   st.id,
		Kind: graph.KindPlanStep,
		Attrs: graph.Attrs{
			"description": st.title,
			"index":       st.index,
		},
	})
	return err
}

func (b *Builder) persistStepEdges(st *step) error {
	if _, err := b.store.AddEdge(graph.Edge{ID: ids.Edge(), Kind: graph.EdgeParentChild, Src: b.id, Dst: st.id}); err != nil {
		return err
	}
	if st.parent != b.root {
		if _, err := b.store.AddEdge(graph.Edge{ID: ids.Edge(), Kind: graph.EdgeParentChild, Src: st.parent.id, Dst: st.id}); err != nil {
			return err
		}
	}
	return nil
}

func (b *Builder) persistDependencies(st *step) error {
	for _, depIdx := range st.after {
		dep, ok := b.indexMap[depIdx]
		if !ok {
			return orcerr.Newf(orcerr.CodeUnresolvedDependency, "step %s depends on unresolved index %q", st.index, depIdx)
		}
		if _, err := b.store.AddEdge(graph.Edge{ID: ids.Edge(), Kind: graph.EdgeStepOrder, Src: dep.id, Dst: st.id}); err != nil {
			return err
		}
	}
	return nil
}

// StepID returns the graph node id of the step assigned the given
// hierarchical index, or ok=false if index is unknown. The step must already
// be persisted (via Save or AddStep) for the returned id to be usable.
func (b *Builder) StepID(index string) (id string, ok bool) {
	b.assignIndices()
	st, found := b.indexMap[index]
	if !found || st.id == "" {
		return "", false
	}
	return st.id, true
}

// AttachToolCall creates a TOOL_CALL node carrying name/args and links it to
// the step at index via PLAN_LINK, so the executor dispatches it as part of
// that step. The step must already be persisted.
func (b *Builder) AttachToolCall(index, name string, args any) (string, error) {
	stepID, ok := b.StepID(index)
	if !ok {
		return "", orcerr.Newf(orcerr.CodeInvalidReference, "step index %q does not exist", index)
	}
	node, err := b.store.AddNode(graph.Node{
		Kind:  graph.KindToolCall,
		Attrs: graph.Attrs{"name": name, "args": args},
	})
	if err != nil {
		return "", err
	}
	if _, err := b.store.AddEdge(graph.Edge{ID: ids.Edge(), Kind: graph.EdgePlanLink, Src: stepID, Dst: node.ID}); err != nil {
		return "", err
	}
	return node.ID, nil
}

// orderedSteps returns every step in the builder sorted by hierarchical
// index, so Save's node/edge persistence is deterministic across calls.
func (b *Builder) orderedSteps() []*step {
	out := make([]*step, 0, len(b.indexMap))
	for _, st := range b.indexMap {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return lessHierarchical(out[i].index, out[j].index) })
	return out
}

// lessHierarchical orders dotted hierarchical indices numerically per
// segment ("1.2" < "1.10"), not lexicographically.
func lessHierarchical(a, b string) bool {
	as := strings.Split(a, ".")
	bs := strings.Split(b, ".")
	for i := 0; i < len(as) && i < len(bs); i++ {
		if as[i] != bs[i] {
			return segmentLess(as[i], bs[i])
		}
	}
	return len(as) < len(bs)
}

func segmentLess(a, b string) bool {
	if len(a) != len(b) {
		return len(a) < len(b)
	}
	return a < b
}

// Outline renders a numbered, human-readable summary of the plan, intended
// for LLM prompts and debugging.
func (b *Builder) Outline() string {
	b.assignIndices()
	var sb strings.Builder
	fmt.Fprintf(&sb, "Plan: %s (id: %s)\n", b.title, b.id)

	var walk func(parent *step)
	walk = func(parent *step) {
		for _, ch := range parent.children {
			dep := ""
			if len(ch.after) > 0 {
				dep = fmt.Sprintf("  depends on %v", ch.after)
			}
			fmt.Fprintf(&sb, "  %-6s %-35s%s\n", ch.index, ch.title, dep)
			walk(ch)
		}
	}
	walk(b.root)
	return sb.String()
}
