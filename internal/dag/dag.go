// Package dag orders models by their dependencies.
//
// Nodes are ranked by insertion: whenever an operation has a free choice
// between nodes it takes the lowest rank, so every result is deterministic.
package dag

import (
	"container/heap"
	"fmt"
	"slices"
	"sort"

	"github.com/leapstack-labs/leapflow/pkg/core"
)

// Graph is a directed graph of named nodes. An edge runs from a dependency
// (parent) to its dependent (child).
type Graph struct {
	ids      []string
	rank     map[string]int
	children [][]int
	parents  [][]int
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{rank: make(map[string]int)}
}

// AddNode adds id. Adding an existing node is a no-op.
func (g *Graph) AddNode(id string) {
	if _, ok := g.rank[id]; ok {
		return
	}
	g.rank[id] = len(g.ids)
	g.ids = append(g.ids, id)
	g.children = append(g.children, nil)
	g.parents = append(g.parents, nil)
}

// AddEdge records that child depends on parent. Duplicate edges are ignored;
// a self-loop is reported as a *core.CycleError.
func (g *Graph) AddEdge(parent, child string) error {
	p, ok := g.rank[parent]
	if !ok {
		return fmt.Errorf("parent node %q does not exist", parent)
	}
	c, ok := g.rank[child]
	if !ok {
		return fmt.Errorf("child node %q does not exist", child)
	}
	if p == c {
		return &core.CycleError{Models: []string{parent}}
	}
	if !slices.Contains(g.children[p], c) {
		g.children[p] = append(g.children[p], c)
		g.parents[c] = append(g.parents[c], p)
	}
	return nil
}

// Has reports whether id is a node.
func (g *Graph) Has(id string) bool {
	_, ok := g.rank[id]
	return ok
}

// Nodes returns every node in insertion order.
func (g *Graph) Nodes() []string {
	return slices.Clone(g.ids)
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int {
	return len(g.ids)
}

// EdgeCount returns the number of edges.
func (g *Graph) EdgeCount() int {
	n := 0
	for _, c := range g.children {
		n += len(c)
	}
	return n
}

// Parents returns the direct dependencies of id in edge insertion order.
func (g *Graph) Parents(id string) []string {
	r, ok := g.rank[id]
	if !ok {
		return nil
	}
	return g.names(g.parents[r])
}

// Children returns the direct dependents of id in edge insertion order.
func (g *Graph) Children(id string) []string {
	r, ok := g.rank[id]
	if !ok {
		return nil
	}
	return g.names(g.children[r])
}

// Upstream returns the transitive dependencies of id in insertion order.
func (g *Graph) Upstream(id string) []string {
	return g.closure(id, g.parents)
}

// Downstream returns the transitive dependents of id in insertion order.
func (g *Graph) Downstream(id string) []string {
	return g.closure(id, g.children)
}

func (g *Graph) closure(id string, adj [][]int) []string {
	start, ok := g.rank[id]
	if !ok {
		return nil
	}
	seen := make([]bool, len(g.ids))
	stack := slices.Clone(adj[start])
	for len(stack) > 0 {
		r := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[r] || r == start {
			continue
		}
		seen[r] = true
		stack = append(stack, adj[r]...)
	}

	var out []string
	for r, ok := range seen {
		if ok {
			out = append(out, g.ids[r])
		}
	}
	return out
}

// Sort returns every node with each one after all of its parents (Kahn's
// algorithm). Among nodes ready together the lowest rank goes first. A cycle
// yields a *core.CycleError naming the nodes on it.
func (g *Graph) Sort() ([]string, error) {
	indegree := make([]int, len(g.ids))
	ready := &rankHeap{}
	for r := range g.ids {
		indegree[r] = len(g.parents[r])
		if indegree[r] == 0 {
			*ready = append(*ready, r)
		}
	}
	heap.Init(ready)

	out := make([]string, 0, len(g.ids))
	for ready.Len() > 0 {
		r := heap.Pop(ready).(int)
		out = append(out, g.ids[r])
		for _, c := range g.children[r] {
			indegree[c]--
			if indegree[c] == 0 {
				heap.Push(ready, c)
			}
		}
	}

	if len(out) != len(g.ids) {
		return nil, &core.CycleError{Models: g.cyclic()}
	}
	return out, nil
}

// Levels groups nodes by depth: level 0 has no parents and every other node
// sits one level below its deepest parent. Nodes of one level are independent
// of each other. Each level is in insertion order.
func (g *Graph) Levels() ([][]string, error) {
	order, err := g.Sort()
	if err != nil {
		return nil, err
	}

	depth := make([]int, len(g.ids))
	maxDepth := -1
	for _, id := range order {
		r := g.rank[id]
		for _, p := range g.parents[r] {
			depth[r] = max(depth[r], depth[p]+1)
		}
		maxDepth = max(maxDepth, depth[r])
	}

	levels := make([][]string, maxDepth+1)
	for r, id := range g.ids {
		levels[depth[r]] = append(levels[depth[r]], id)
	}
	return levels, nil
}

// cyclic returns the sorted members of every strongly connected component
// larger than one node (Tarjan). AddEdge rejects self-loops.
func (g *Graph) cyclic() []string {
	const unvisited = -1
	index := make([]int, len(g.ids))
	low := make([]int, len(g.ids))
	onStack := make([]bool, len(g.ids))
	for i := range index {
		index[i] = unvisited
	}

	var (
		next  int
		stack []int
		out   []string
		visit func(r int)
	)
	visit = func(r int) {
		index[r], low[r] = next, next
		next++
		stack = append(stack, r)
		onStack[r] = true

		for _, c := range g.children[r] {
			switch {
			case index[c] == unvisited:
				visit(c)
				low[r] = min(low[r], low[c])
			case onStack[c]:
				low[r] = min(low[r], index[c])
			}
		}

		if low[r] != index[r] {
			return
		}
		var component []int
		for {
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			onStack[top] = false
			component = append(component, top)
			if top == r {
				break
			}
		}
		if len(component) > 1 {
			out = append(out, g.names(component)...)
		}
	}

	for r := range g.ids {
		if index[r] == unvisited {
			visit(r)
		}
	}
	sort.Strings(out)
	return out
}

func (g *Graph) names(ranks []int) []string {
	if len(ranks) == 0 {
		return nil
	}
	out := make([]string, len(ranks))
	for i, r := range ranks {
		out[i] = g.ids[r]
	}
	return out
}

// rankHeap is a min-heap of node ranks.
type rankHeap []int

func (h rankHeap) Len() int           { return len(h) }
func (h rankHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h rankHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *rankHeap) Push(x any)        { *h = append(*h, x.(int)) }
func (h *rankHeap) Pop() any {
	old := *h
	x := old[len(old)-1]
	*h = old[:len(old)-1]
	return x
}
