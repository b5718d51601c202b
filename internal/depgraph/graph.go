// Package depgraph holds the dependency graph algorithms used over plan
// tasks: candidate edge filtering, topological ordering, cycle isolation and
// execution layering.
//
// All functions are pure. They take the node list and an edge list and return
// new slices; nothing is mutated while it is being traversed. Node order is
// significant: whenever the algorithms must choose between equally valid
// answers they prefer the node that appears first, so results are
// deterministic for a given input.
package depgraph

import (
	"fmt"
	"sort"
	"strings"
)

// Edge is a directed dependency: From must complete before To may start.
type Edge struct {
	From string `json:"from" yaml:"from" toml:"from"`
	To   string `json:"to" yaml:"to" toml:"to"`
}

func (e Edge) String() string {
	return e.From + "->" + e.To
}

// RejectReason explains why a candidate edge was dropped by Filter.
type RejectReason string

const (
	RejectUnknownEndpoint RejectReason = "unknown endpoint"
	RejectSelfLoop        RejectReason = "self-loop"
	RejectDuplicate       RejectReason = "duplicate"
)

// Rejection is a candidate edge that did not survive filtering.
type Rejection struct {
	Edge   Edge
	Reason RejectReason
}

// CycleError is returned by TopoSort when the graph is not a DAG.
type CycleError struct {
	// Remaining lists the nodes Kahn's algorithm could not release, in node order.
	Remaining []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle among %d tasks: %s", len(e.Remaining), strings.Join(e.Remaining, ", "))
}

// index maps each node to its position in the caller's ordering.
func index(nodes []string) map[string]int {
	idx := make(map[string]int, len(nodes))
	for i, n := range nodes {
		if _, ok := idx[n]; !ok {
			idx[n] = i
		}
	}
	return idx
}

// Filter drops candidates whose endpoints are not both nodes, self-loops, and
// repeats of an edge already accepted. Accepted edges keep candidate order.
func Filter(nodes []string, candidates []Edge) ([]Edge, []Rejection) {
	idx := index(nodes)
	seen := make(map[Edge]bool, len(candidates))
	kept := make([]Edge, 0, len(candidates))
	var rejected []Rejection

	for _, e := range candidates {
		_, fromOK := idx[e.From]
		_, toOK := idx[e.To]
		switch {
		case !fromOK || !toOK:
			rejected = append(rejected, Rejection{Edge: e, Reason: RejectUnknownEndpoint})
		case e.From == e.To:
			rejected = append(rejected, Rejection{Edge: e, Reason: RejectSelfLoop})
		case seen[e]:
			rejected = append(rejected, Rejection{Edge: e, Reason: RejectDuplicate})
		default:
			seen[e] = true
			kept = append(kept, e)
		}
	}
	return kept, rejected
}

// adjacency builds successor lists in node order. Edges with unknown
// endpoints are ignored.
func adjacency(nodes []string, edges []Edge) (map[string][]string, map[string]int) {
	idx := index(nodes)
	succ := make(map[string][]string, len(nodes))
	indeg := make(map[string]int, len(nodes))
	for _, n := range nodes {
		indeg[n] = 0
	}
	for _, e := range edges {
		if _, ok := idx[e.From]; !ok {
			continue
		}
		if _, ok := idx[e.To]; !ok {
			continue
		}
		succ[e.From] = append(succ[e.From], e.To)
		indeg[e.To]++
	}
	for n := range succ {
		s := succ[n]
		sort.SliceStable(s, func(i, j int) bool { return idx[s[i]] < idx[s[j]] })
	}
	return succ, indeg
}

// TopoSort orders nodes so every edge points forward, using Kahn's
// algorithm. Among ready nodes the earliest in the input goes first. A
// cycle yields a *CycleError naming the nodes that were never released.
func TopoSort(nodes []string, edges []Edge) ([]string, error) {
	idx := index(nodes)
	succ, indeg := adjacency(nodes, edges)

	var ready []string
	for i, n := range nodes {
		if indeg[n] == 0 && idx[n] == i {
			ready = append(ready, n)
		}
	}

	order := make([]string, 0, len(nodes))
	for len(ready) > 0 {
		sort.SliceStable(ready, func(i, j int) bool { return idx[ready[i]] < idx[ready[j]] })
		n := ready[0]
		ready = ready[1:]
		order = append(order, n)
		for _, m := range succ[n] {
			indeg[m]--
			if indeg[m] == 0 {
				ready = append(ready, m)
			}
		}
	}

	if len(order) < len(idx) {
		released := make(map[string]bool, len(order))
		for _, n := range order {
			released[n] = true
		}
		var remaining []string
		for _, n := range nodes {
			if !released[n] {
				remaining = append(remaining, n)
				released[n] = true
			}
		}
		return nil, &CycleError{Remaining: remaining}
	}
	return order, nil
}

// Layers groups nodes into execution waves: every node's predecessors sit in
// earlier layers. Nodes inside a layer keep input order.
func Layers(nodes []string, edges []Edge) ([][]string, error) {
	order, err := TopoSort(nodes, edges)
	if err != nil || len(order) == 0 {
		return nil, err
	}
	idx := index(nodes)
	depth := make(map[string]int, len(order))
	succ, _ := adjacency(nodes, edges)
	maxDepth := 0
	for _, n := range order {
		for _, m := range succ[n] {
			if depth[n]+1 > depth[m] {
				depth[m] = depth[n] + 1
			}
		}
		if depth[n] > maxDepth {
			maxDepth = depth[n]
		}
	}

	layers := make([][]string, maxDepth+1)
	for _, n := range order {
		layers[depth[n]] = append(layers[depth[n]], n)
	}
	for _, l := range layers {
		sort.SliceStable(l, func(i, j int) bool { return idx[l[i]] < idx[l[j]] })
	}
	return layers, nil
}
