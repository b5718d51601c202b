package depgraph

import (
	"testing"

	"pgregory.net/rapid"
)

// genGraph draws a node list T1..Tn and arbitrary candidate edges, including
// unknown endpoints and self-loops.
func genGraph(t *rapid.T) ([]string, []Edge) {
	n := rapid.IntRange(0, 12).Draw(t, "n")
	nodes := make([]string, n)
	pool := make([]string, 0, n+2)
	for i := range nodes {
		nodes[i] = "T" + string(rune('A'+i))
		pool = append(pool, nodes[i])
	}
	pool = append(pool, "T?", "")

	m := rapid.IntRange(0, 30).Draw(t, "m")
	edges := make([]Edge, m)
	for i := range edges {
		edges[i] = Edge{
			From: rapid.SampledFrom(pool).Draw(t, "from"),
			To:   rapid.SampledFrom(pool).Draw(t, "to"),
		}
	}
	return nodes, edges
}

func TestFilterThenBreakCyclesAlwaysYieldsDAG(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		nodes, candidates := genGraph(t)

		kept, _ := Filter(nodes, candidates)
		final, dropped, sets := BreakCycles(nodes, kept)

		if !acyclic(nodes, final) {
			t.Fatalf("result still cyclic: nodes=%v edges=%v", nodes, final)
		}
		if len(final)+len(dropped) != len(kept) {
			t.Fatalf("edges lost: kept=%d final=%d dropped=%d", len(kept), len(final), len(dropped))
		}
		if len(sets) == 0 && len(dropped) != 0 {
			t.Fatalf("dropped edges without a cyclic set")
		}
		if acyclic(nodes, kept) && len(dropped) != 0 {
			t.Fatalf("acyclic input lost edges: %v", dropped)
		}
	})
}

func TestFilterOutputIsClean(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		nodes, candidates := genGraph(t)
		known := make(map[string]bool, len(nodes))
		for _, n := range nodes {
			known[n] = true
		}

		kept, rejected := Filter(nodes, candidates)
		seen := make(map[Edge]bool)
		for _, e := range kept {
			if !known[e.From] || !known[e.To] {
				t.Fatalf("unknown endpoint kept: %v", e)
			}
			if e.From == e.To {
				t.Fatalf("self-loop kept: %v", e)
			}
			if seen[e] {
				t.Fatalf("duplicate kept: %v", e)
			}
			seen[e] = true
		}
		if len(kept)+len(rejected) != len(candidates) {
			t.Fatalf("candidates unaccounted for")
		}
	})
}

func TestTopoOrderRespectsEveryEdge(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		nodes, candidates := genGraph(t)
		kept, _ := Filter(nodes, candidates)
		dag, _, _ := BreakCycles(nodes, kept)

		order, err := TopoSort(nodes, dag)
		if err != nil {
			t.Fatalf("topo sort failed on DAG: %v", err)
		}
		if len(order) != len(nodes) {
			t.Fatalf("order has %d nodes, want %d", len(order), len(nodes))
		}
		pos := make(map[string]int, len(order))
		for i, n := range order {
			pos[n] = i
		}
		for _, e := range dag {
			if pos[e.From] >= pos[e.To] {
				t.Fatalf("edge %v points backwards in %v", e, order)
			}
		}
	})
}
