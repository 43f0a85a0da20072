package plan_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chuk-ai/toolgraph/graph"
	"github.com/chuk-ai/toolgraph/orcerr"
	"github.com/chuk-ai/toolgraph/plan"
)

func TestSaveAssignsDepthFirstHierarchicalIndices(t *testing.T) {
	store := graph.NewInMemoryStore()
	b := plan.New("Demo", store)
	b.Step("Check weather").
		Step("Look at forecast").
		Up().
		Up().
		Step("Do calculation").
		Up().
		Step("Compile", "1", "2")

	planID, err := b.Save()
	require.NoError(t, err)
	require.NotEmpty(t, planID)

	children := store.GetEdges(planID, "", graph.EdgeParentChild)
	require.Len(t, children, 4)

	var compileStep graph.Node
	for _, e := range children {
		n, ok := store.GetNode(e.Dst)
		require.True(t, ok)
		if n.Attrs["index"] == "3" {
			compileStep = n
		}
	}
	require.Equal(t, "Compile", compileStep.Attrs["description"])

	deps := store.GetEdges("", compileStep.ID, graph.EdgeStepOrder)
	require.Len(t, deps, 2)
}

func TestSavePersistsNestedParentChildEdge(t *testing.T) {
	store := graph.NewInMemoryStore()
	b := plan.New("Nested", store)
	b.Step("Outer").Step("Inner").Up().Up()

	planID, err := b.Save()
	require.NoError(t, err)

	rootChildren := store.GetEdges(planID, "", graph.EdgeParentChild)
	require.Len(t, rootChildren, 2) // outer + inner, both linked to plan root

	var outerID string
	for _, e := range rootChildren {
		n, _ := store.GetNode(e.Dst)
		if n.Attrs["index"] == "1" {
			outerID = n.ID
		}
	}
	require.NotEmpty(t, outerID)

	nested := store.GetEdges(outerID, "", graph.EdgeParentChild)
	require.Len(t, nested, 1, "inner step must also be linked from its immediate parent")
}

func TestAddStepAfterSaveAssignsNextIndexAndPersistsImmediately(t *testing.T) {
	store := graph.NewInMemoryStore()
	b := plan.New("Demo", store)
	b.Step("First")
	planID, err := b.Save()
	require.NoError(t, err)

	idx, err := b.AddStep("Second", "")
	require.NoError(t, err)
	require.Equal(t, "2", idx)

	children := store.GetEdges(planID, "", graph.EdgeParentChild)
	require.Len(t, children, 2)
}

func TestAddStepUnknownParentFailsWithInvalidReference(t *testing.T) {
	store := graph.NewInMemoryStore()
	b := plan.New("Demo", store)
	b.Step("First")
	_, err := b.Save()
	require.NoError(t, err)

	_, err = b.AddStep("Orphan", "9.9")
	require.ErrorIs(t, err, orcerr.ErrInvalidReference)
}

func TestUnresolvedDependencyFailsAtSave(t *testing.T) {
	store := graph.NewInMemoryStore()
	b := plan.New("Demo", store)
	b.Step("Only step", "99")

	_, err := b.Save()
	require.ErrorIs(t, err, orcerr.ErrUnresolvedDependency)
}

func TestAttachToolCallLinksToolCallNodeToStep(t *testing.T) {
	store := graph.NewInMemoryStore()
	b := plan.New("Demo", store)
	b.Step("Check weather")
	_, err := b.Save()
	require.NoError(t, err)

	stepID, ok := b.StepID("1")
	require.True(t, ok)

	toolNodeID, err := b.AttachToolCall("1", "get_weather", map[string]any{"location": "NYC"})
	require.NoError(t, err)
	require.NotEmpty(t, toolNodeID)

	links := store.GetEdges(stepID, "", graph.EdgePlanLink)
	require.Len(t, links, 1)
	require.Equal(t, toolNodeID, links[0].Dst)

	node, ok := store.GetNode(toolNodeID)
	require.True(t, ok)
	require.Equal(t, graph.KindToolCall, node.Kind)
	require.Equal(t, "get_weather", node.Attrs["name"])
}

func TestAttachToolCallUnknownIndexFailsWithInvalidReference(t *testing.T) {
	store := graph.NewInMemoryStore()
	b := plan.New("Demo", store)
	b.Step("Only step")
	_, err := b.Save()
	require.NoError(t, err)

	_, err = b.AttachToolCall("9.9", "whatever", nil)
	require.ErrorIs(t, err, orcerr.ErrInvalidReference)
}

func TestOutlineListsStepsWithDependencies(t *testing.T) {
	store := graph.NewInMemoryStore()
	b := plan.New("Demo", store)
	b.Step("A").Up().Step("B", "1")

	out := b.Outline()
	require.Contains(t, out, "Demo")
	require.Contains(t, out, "depends on [1]")
}
