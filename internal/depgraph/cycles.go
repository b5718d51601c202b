package depgraph

import "sort"

// CyclicSets returns the strongly connected components that contain a
// cycle, each listed in node order, and the sets ordered by their first
// member. Every edge of every cycle lies inside exactly one of these sets.
func CyclicSets(nodes []string, edges []Edge) [][]string {
	idx := index(nodes)
	succ, _ := adjacency(nodes, edges)

	selfLoop := make(map[string]bool)
	for _, e := range edges {
		if e.From == e.To {
			selfLoop[e.From] = true
		}
	}

	// Tarjan's algorithm, iterative so deep chains cannot exhaust the stack.
	var (
		counter int
		order   = make(map[string]int, len(nodes))
		low     = make(map[string]int, len(nodes))
		onStack = make(map[string]bool, len(nodes))
		stack   []string
		sets    [][]string
	)

	type frame struct {
		node string
		next int
	}

	for _, root := range nodes {
		if _, visited := order[root]; visited {
			continue
		}
		call := []frame{{node: root}}
		order[root], low[root] = counter, counter
		counter++
		stack = append(stack, root)
		onStack[root] = true

		for len(call) > 0 {
			top := &call[len(call)-1]
			if top.next < len(succ[top.node]) {
				m := succ[top.node][top.next]
				top.next++
				if _, visited := order[m]; !visited {
					order[m], low[m] = counter, counter
					counter++
					stack = append(stack, m)
					onStack[m] = true
					call = append(call, frame{node: m})
				} else if onStack[m] && order[m] < low[top.node] {
					low[top.node] = order[m]
				}
				continue
			}

			n := top.node
			call = call[:len(call)-1]
			if len(call) > 0 {
				parent := call[len(call)-1].node
				if low[n] < low[parent] {
					low[parent] = low[n]
				}
			}
			if low[n] != order[n] {
				continue
			}

			var comp []string
			for {
				m := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[m] = false
				comp = append(comp, m)
				if m == n {
					break
				}
			}
			if len(comp) > 1 || selfLoop[n] {
				sort.SliceStable(comp, func(i, j int) bool { return idx[comp[i]] < idx[comp[j]] })
				sets = append(sets, comp)
			}
		}
	}

	sort.SliceStable(sets, func(i, j int) bool { return idx[sets[i][0]] < idx[sets[j][0]] })
	return sets
}

// EdgesWithin splits edges into those whose endpoints share a cyclic set and
// the rest. Input order is preserved in both results.
func EdgesWithin(edges []Edge, sets [][]string) (inside, outside []Edge) {
	member := make(map[string]int)
	for i, set := range sets {
		for _, n := range set {
			member[n] = i + 1
		}
	}
	for _, e := range edges {
		if a, b := member[e.From], member[e.To]; a != 0 && a == b {
			inside = append(inside, e)
			continue
		}
		outside = append(outside, e)
	}
	return inside, outside
}

// BreakCycles removes every edge that lies inside a cyclic set. Edges
// between different components are kept; the condensation of any digraph
// is acyclic, so the result is always a DAG.
func BreakCycles(nodes []string, edges []Edge) (kept, dropped []Edge, sets [][]string) {
	sets = CyclicSets(nodes, edges)
	if len(sets) == 0 {
		return edges, nil, nil
	}
	dropped, kept = EdgesWithin(edges, sets)
	return kept, dropped, sets
}
