package compiler

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/framesched/internal/harness"
)

// AnalyzeWaits reports groups of processes whose wait_for steps point at
// each other.
//
// The scheduler refuses a wait that would close a cycle at runtime, so such
// a scenario never deadlocks; it just does not wait where the author
// probably expected it to. Cycles are therefore warnings. Self-waits are
// reported by Lint and skipped here.
//
// The algorithm:
//  1. Build a process -> awaited process graph from wait_for steps
//  2. Use Tarjan's algorithm to find strongly connected components
//  3. Report each component with more than one process
//
// A DAG (no cycles) returns an empty warning list.
func AnalyzeWaits(sc *harness.Scenario) []Warning {
	graph, order := buildWaitGraph(sc)

	var warnings []Warning
	for _, scc := range tarjanSCC(graph, order) {
		if len(scc) < 2 {
			continue
		}
		path := reconstructCyclePath(scc, graph)
		warnings = append(warnings, Warning{
			Code:    WarnWaitCycle,
			Message: fmt.Sprintf("wait cycle: %s; the closing wait is refused", strings.Join(path, " → ")),
			Path:    path,
		})
	}
	return warnings
}

// waitGraph maps a process name to the processes it waits for.
type waitGraph map[string][]string

// buildWaitGraph returns the graph and its nodes in declaration order so
// that results do not depend on map iteration.
func buildWaitGraph(sc *harness.Scenario) (waitGraph, []string) {
	graph := make(waitGraph, len(sc.Processes))
	order := make([]string, 0, len(sc.Processes))
	for _, p := range sc.Processes {
		if _, seen := graph[p.Name]; !seen {
			graph[p.Name] = []string{}
			order = append(order, p.Name)
		}
		for _, st := range p.Steps {
			if st.Op == harness.OpWaitFor && st.Target != p.Name && !slices.Contains(graph[p.Name], st.Target) {
				graph[p.Name] = append(graph[p.Name], st.Target)
			}
		}
	}
	return graph, order
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
func tarjanSCC(graph waitGraph, order []string) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range graph[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		// v is a root node: pop the stack into a component
		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			slices.Reverse(scc)
			sccs = append(sccs, scc)
		}
	}

	for _, node := range order {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}
	return sccs
}

// reconstructCyclePath follows edges inside scc from its first member until
// it returns there.
func reconstructCyclePath(scc []string, graph waitGraph) []string {
	if len(scc) == 0 {
		return []string{}
	}

	members := make(map[string]bool, len(scc))
	for _, node := range scc {
		members[node] = true
	}

	start := scc[0]
	current := start
	path := []string{current}
	visited := make(map[string]bool)

	for {
		visited[current] = true

		var next string
		for _, neighbor := range graph[current] {
			if members[neighbor] && (!visited[neighbor] || neighbor == start) {
				next = neighbor
				break
			}
		}
		if next == "" {
			break
		}

		path = append(path, next)
		if next == start {
			break
		}
		current = next
	}
	return path
}
