package graph

import (
	"testing"

	"github.com/chorusdev/chorus/internal/task"
	"github.com/stretchr/testify/require"
)

func TestBuild_TopologicalOrder(t *testing.T) {
	t.Parallel()
	tasks := []task.Task{
		{Name: "c", DependsOn: []string{"a", "b"}},
		{Name: "a"},
		{Name: "b", DependsOn: []string{"a"}},
	}

	dag, err := Build(tasks)
	require.NoError(t, err)

	order := dag.Order()
	pos := map[string]int{}
	for i, n := range order {
		pos[n] = i
	}
	require.Less(t, pos["a"], pos["b"])
	require.Less(t, pos["b"], pos["c"])
}

func TestBuild_Simplification(t *testing.T) {
	t.Parallel()
	tasks := []task.Task{
		{Name: "a"},
		{Name: "b", DependsOn: []string{"a"}},
		{Name: "c", DependsOn: []string{"a", "b"}},
	}

	dag, err := Build(tasks)
	require.NoError(t, err)

	c, ok := dag.Task("c")
	require.True(t, ok)
	require.Equal(t, []string{"b"}, c.DependsOn, "a is transitively implied by b and should be dropped")
}

func TestBuild_UnknownDependency(t *testing.T) {
	t.Parallel()
	_, err := Build([]task.Task{{Name: "a", DependsOn: []string{"missing"}}})
	require.ErrorIs(t, err, ErrUnknownDependency)
}

func TestBuild_SelfDependency(t *testing.T) {
	t.Parallel()
	_, err := Build([]task.Task{{Name: "a", DependsOn: []string{"a"}}})
	require.ErrorIs(t, err, ErrSelfDependency)
}

func TestBuild_Cycle(t *testing.T) {
	t.Parallel()
	_, err := Build([]task.Task{
		{Name: "a", DependsOn: []string{"b"}},
		{Name: "b", DependsOn: []string{"a"}},
	})
	require.ErrorIs(t, err, ErrCycle)
	require.Contains(t, err.Error(), "a")
	require.Contains(t, err.Error(), "b")
}

func TestDAG_Downstream(t *testing.T) {
	t.Parallel()
	dag, err := Build([]task.Task{
		{Name: "a"},
		{Name: "b", DependsOn: []string{"a"}},
		{Name: "c", DependsOn: []string{"a"}},
	})
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"b", "c"}, dag.Downstream("a"))
}

func TestDAG_BuildOrder_IsReverseOfOrder(t *testing.T) {
	t.Parallel()
	dag, err := Build([]task.Task{
		{Name: "a"},
		{Name: "b", DependsOn: []string{"a"}},
	})
	require.NoError(t, err)

	order := dag.Order()
	buildOrder := dag.BuildOrder()
	require.Len(t, buildOrder, len(order))
	for i, name := range order {
		require.Equal(t, name, buildOrder[len(buildOrder)-1-i])
	}
}

func TestDAG_Filter_UnknownTask(t *testing.T) {
	t.Parallel()
	dag, err := Build([]task.Task{{Name: "a"}})
	require.NoError(t, err)

	_, err = dag.Filter([]string{"nope"})
	require.ErrorIs(t, err, ErrUnknownTask)
	require.Contains(t, err.Error(), "a")
}

func TestDAG_Filter_IncludesTransitiveDeps(t *testing.T) {
	t.Parallel()
	dag, err := Build([]task.Task{
		{Name: "a"},
		{Name: "b", DependsOn: []string{"a"}},
		{Name: "c", DependsOn: []string{"b"}},
		{Name: "unrelated"},
	})
	require.NoError(t, err)

	filtered, err := dag.Filter([]string{"c"})
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"a", "b", "c"}, filtered.Names())
}
