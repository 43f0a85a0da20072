package graph_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chuk-ai/toolgraph/graph"
)

func TestAddNodeGeneratesID(t *testing.T) {
	s := graph.NewInMemoryStore()
	n, err := s.AddNode(graph.Node{Kind: graph.KindPlan, Attrs: graph.Attrs{"title": "Demo"}})
	require.NoError(t, err)
	require.NotEmpty(t, n.ID)
	require.Equal(t, graph.KindPlan, n.Kind)

	got, ok := s.GetNode(n.ID)
	require.True(t, ok)
	require.Equal(t, "Demo", got.Attrs["title"])
}

func TestAddNodeRejectsDuplicateID(t *testing.T) {
	s := graph.NewInMemoryStore()
	n, err := s.AddNode(graph.Node{ID: "plan-1", Kind: graph.KindPlan})
	require.NoError(t, err)
	_, err = s.AddNode(n)
	require.Error(t, err)
}

func TestUpdateNodePreservesIDAndKind(t *testing.T) {
	s := graph.NewInMemoryStore()
	n, err := s.AddNode(graph.Node{Kind: graph.KindToolCall, Attrs: graph.Attrs{"name": "echo"}})
	require.NoError(t, err)

	err = s.UpdateNode(n.ID, graph.Attrs{"name": "echo", "result": map[string]any{"ok": true}})
	require.NoError(t, err)

	got, ok := s.GetNode(n.ID)
	require.True(t, ok)
	require.Equal(t, n.ID, got.ID)
	require.Equal(t, graph.KindToolCall, got.Kind)
	require.Equal(t, map[string]any{"ok": true}, got.Attrs["result"])
}

func TestUpdateNodeMissingFails(t *testing.T) {
	s := graph.NewInMemoryStore()
	err := s.UpdateNode("missing", graph.Attrs{})
	require.Error(t, err)
}

func TestAddEdgeRequiresExistingEndpoints(t *testing.T) {
	s := graph.NewInMemoryStore()
	a, _ := s.AddNode(graph.Node{Kind: graph.KindPlan})
	_, err := s.AddEdge(graph.Edge{Kind: graph.EdgeParentChild, Src: a.ID, Dst: "missing"})
	require.Error(t, err)
}

func TestGetEdgesFiltersByKindSrcDst(t *testing.T) {
	s := graph.NewInMemoryStore()
	plan, _ := s.AddNode(graph.Node{Kind: graph.KindPlan})
	s1, _ := s.AddNode(graph.Node{Kind: graph.KindPlanStep})
	s2, _ := s.AddNode(graph.Node{Kind: graph.KindPlanStep})

	_, err := s.AddEdge(graph.Edge{Kind: graph.EdgeParentChild, Src: plan.ID, Dst: s1.ID})
	require.NoError(t, err)
	_, err = s.AddEdge(graph.Edge{Kind: graph.EdgeParentChild, Src: plan.ID, Dst: s2.ID})
	require.NoError(t, err)
	_, err = s.AddEdge(graph.Edge{Kind: graph.EdgeStepOrder, Src: s1.ID, Dst: s2.ID})
	require.NoError(t, err)

	children := s.GetEdges(plan.ID, "", graph.EdgeParentChild)
	require.Len(t, children, 2)

	deps := s.GetEdges("", s2.ID, graph.EdgeStepOrder)
	require.Len(t, deps, 1)
	require.Equal(t, s1.ID, deps[0].Src)

	all := s.GetEdges("", "", "")
	require.Len(t, all, 3)
}
