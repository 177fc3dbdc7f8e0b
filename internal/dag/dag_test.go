package dag

import (
	"errors"
	"testing"

	"github.com/leapstack-labs/leapflow/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pipeline builds the listings model graph:
//
//	stg_listings ─┬─> dim_listings ──> agg_neighbourhood_metrics
//	              └─> fact_reviews <── stg_reviews
//	stg_full_moon_dates ──> mart_fullmoon_reviews <── fact_reviews
func pipeline(t *testing.T) *Graph {
	t.Helper()
	g := NewGraph()
	for _, id := range []string{
		"stg_listings", "stg_reviews", "stg_full_moon_dates",
		"dim_listings", "fact_reviews", "agg_neighbourhood_metrics", "mart_fullmoon_reviews",
	} {
		g.AddNode(id)
	}
	for _, e := range [][2]string{
		{"stg_listings", "dim_listings"},
		{"stg_listings", "fact_reviews"},
		{"stg_reviews", "fact_reviews"},
		{"dim_listings", "agg_neighbourhood_metrics"},
		{"fact_reviews", "mart_fullmoon_reviews"},
		{"stg_full_moon_dates", "mart_fullmoon_reviews"},
	} {
		require.NoError(t, g.AddEdge(e[0], e[1]))
	}
	return g
}

func graphOf(t *testing.T, nodes []string, edges ...[2]string) *Graph {
	t.Helper()
	g := NewGraph()
	for _, n := range nodes {
		g.AddNode(n)
	}
	for _, e := range edges {
		require.NoError(t, g.AddEdge(e[0], e[1]))
	}
	return g
}

func TestGraph_Counts(t *testing.T) {
	g := pipeline(t)
	assert.Equal(t, 7, g.NodeCount())
	assert.Equal(t, 6, g.EdgeCount())
	assert.True(t, g.Has("dim_listings"))
	assert.False(t, g.Has("listings"))

	g.AddNode("dim_listings")
	assert.Equal(t, 7, g.NodeCount(), "re-adding a node is a no-op")

	require.NoError(t, g.AddEdge("stg_listings", "dim_listings"))
	assert.Equal(t, 6, g.EdgeCount(), "duplicate edges are ignored")
}

func TestGraph_AddEdgeErrors(t *testing.T) {
	g := graphOf(t, []string{"a"})

	assert.ErrorContains(t, g.AddEdge("missing", "a"), `parent node "missing"`)
	assert.ErrorContains(t, g.AddEdge("a", "missing"), `child node "missing"`)

	var cycleErr *core.CycleError
	require.True(t, errors.As(g.AddEdge("a", "a"), &cycleErr))
	assert.Equal(t, []string{"a"}, cycleErr.Models)
}

func TestGraph_ParentsAndChildren(t *testing.T) {
	g := pipeline(t)

	assert.Equal(t, []string{"stg_listings", "stg_reviews"}, g.Parents("fact_reviews"))
	assert.Equal(t, []string{"dim_listings", "fact_reviews"}, g.Children("stg_listings"))
	assert.Empty(t, g.Parents("stg_listings"))
	assert.Empty(t, g.Children("mart_fullmoon_reviews"))
	assert.Nil(t, g.Parents("unknown"))
}

func TestGraph_Sort(t *testing.T) {
	tests := []struct {
		name string
		g    func(t *testing.T) *Graph
		want []string
	}{
		{
			name: "pipeline",
			g:    pipeline,
			want: []string{
				"stg_listings", "stg_reviews", "stg_full_moon_dates",
				"dim_listings", "fact_reviews", "agg_neighbourhood_metrics", "mart_fullmoon_reviews",
			},
		},
		{
			name: "ties follow insertion not name",
			g: func(t *testing.T) *Graph {
				return graphOf(t, []string{"zeta", "alpha", "mid"}, [2]string{"zeta", "mid"})
			},
			want: []string{"zeta", "alpha", "mid"},
		},
		{
			name: "ready child outranks later root",
			g: func(t *testing.T) *Graph {
				// c outranks b, so it runs as soon as a is done
				return graphOf(t, []string{"a", "c", "b"}, [2]string{"a", "c"})
			},
			want: []string{"a", "c", "b"},
		},
		{
			name: "dependent inserted first",
			g: func(t *testing.T) *Graph {
				return graphOf(t, []string{"child", "parent"}, [2]string{"parent", "child"})
			},
			want: []string{"parent", "child"},
		},
		{
			name: "empty",
			g:    func(*testing.T) *Graph { return NewGraph() },
			want: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.g(t).Sort()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGraph_SortRespectsEveryEdge(t *testing.T) {
	g := pipeline(t)
	order, err := g.Sort()
	require.NoError(t, err)

	pos := make(map[string]int, len(order))
	for i, id := range order {
		pos[id] = i
	}
	for _, id := range g.Nodes() {
		for _, p := range g.Parents(id) {
			assert.Less(t, pos[p], pos[id], "%s must precede %s", p, id)
		}
	}
}

func TestGraph_SortCycle(t *testing.T) {
	g := graphOf(t, []string{"ok", "b", "a", "tail"},
		[2]string{"ok", "a"},
		[2]string{"a", "b"},
		[2]string{"b", "a"},
		[2]string{"b", "tail"},
	)

	_, err := g.Sort()
	var cycleErr *core.CycleError
	require.True(t, errors.As(err, &cycleErr))
	assert.Equal(t, []string{"a", "b"}, cycleErr.Models, "only nodes on the cycle are named")
}

func TestGraph_Levels(t *testing.T) {
	levels, err := pipeline(t).Levels()
	require.NoError(t, err)

	assert.Equal(t, [][]string{
		{"stg_listings", "stg_reviews", "stg_full_moon_dates"},
		{"dim_listings", "fact_reviews"},
		{"agg_neighbourhood_metrics", "mart_fullmoon_reviews"},
	}, levels)

	empty, err := NewGraph().Levels()
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestGraph_LevelsUseDeepestParent(t *testing.T) {
	g := graphOf(t, []string{"a", "b", "c"},
		[2]string{"a", "b"},
		[2]string{"b", "c"},
		[2]string{"a", "c"},
	)
	levels, err := g.Levels()
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"a"}, {"b"}, {"c"}}, levels)
}

func TestGraph_UpstreamAndDownstream(t *testing.T) {
	g := pipeline(t)

	assert.Equal(t,
		[]string{"stg_listings", "stg_reviews", "stg_full_moon_dates", "fact_reviews"},
		g.Upstream("mart_fullmoon_reviews"))
	assert.Equal(t,
		[]string{"dim_listings", "fact_reviews", "agg_neighbourhood_metrics", "mart_fullmoon_reviews"},
		g.Downstream("stg_listings"))
	assert.Empty(t, g.Downstream("agg_neighbourhood_metrics"))
	assert.Empty(t, g.Upstream("stg_reviews"))
	assert.Nil(t, g.Downstream("unknown"))
}

func TestGraph_NodesIsACopy(t *testing.T) {
	g := pipeline(t)
	nodes := g.Nodes()
	nodes[0] = "mutated"
	assert.Equal(t, "stg_listings", g.Nodes()[0])
}
