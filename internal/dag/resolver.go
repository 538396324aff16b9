// Package dag provides dependency resolution for pipeline execution plans.
// It supports topological ordering and cycle detection with full cycle
// path reconstruction.
package dag

import (
	"fmt"
	"strings"
)

// CircularDependencyError reports a dependency cycle. Cycle is the ordered
// node list ending where it began, e.g. [a, b, c, a].
type CircularDependencyError struct {
	Cycle []string
}

func (e *CircularDependencyError) Error() string {
	return "Circular dependency detected: " + strings.Join(e.Cycle, " -> ")
}

// Resolver holds a directed dependency graph: node id -> ids it depends
// on. The adjacency map is the only persistent state; traversal state is
// passed explicitly through the DFS, so a Resolver is safe to use from
// multiple goroutines for concurrent resolutions of the same graph once
// edge insertion has finished.
type Resolver struct {
	dependencies map[string][]string
	order        []string // node ids in first-seen order, for determinism
}

// NewResolver creates an empty Resolver.
func NewResolver() *Resolver {
	return &Resolver{dependencies: make(map[string][]string)}
}

// AddDependency records that pipeline depends on dependsOn. Edges are
// append-only; duplicates are allowed and harmless.
func (r *Resolver) AddDependency(pipeline, dependsOn string) {
	r.touch(pipeline)
	r.touch(dependsOn)
	r.dependencies[pipeline] = append(r.dependencies[pipeline], dependsOn)
}

// AddNode registers a node with no edges yet. Nodes referenced by
// AddDependency are registered implicitly.
func (r *Resolver) AddNode(id string) {
	r.touch(id)
}

func (r *Resolver) touch(id string) {
	if _, ok := r.dependencies[id]; !ok {
		r.dependencies[id] = nil
		r.order = append(r.order, id)
	}
}

// Dependencies returns the direct dependencies of a node.
func (r *Resolver) Dependencies(id string) []string {
	return r.dependencies[id]
}

// NodeCount returns the number of known nodes.
func (r *Resolver) NodeCount() int {
	return len(r.dependencies)
}

// visitState carries DFS traversal state through one resolution.
type visitState struct {
	visited map[string]bool // finished nodes
	temp    map[string]bool // in-progress nodes (cycle sentinel)
	order   []string
}

func newVisitState() *visitState {
	return &visitState{
		visited: make(map[string]bool),
		temp:    make(map[string]bool),
	}
}

// Resolve performs a DFS from start and returns an execution order in
// which every dependency precedes its dependents. A node currently in
// progress encountered again signals a cycle, returned as a
// *CircularDependencyError with the reconstructed path.
func (r *Resolver) Resolve(start string) ([]string, error) {
	st := newVisitState()
	if err := r.visit(start, st); err != nil {
		return nil, err
	}
	return st.order, nil
}

// ResolveAll resolves every known node, in first-insertion order, into a
// single topological order covering the whole graph.
func (r *Resolver) ResolveAll() ([]string, error) {
	st := newVisitState()
	for _, id := range r.order {
		if err := r.visit(id, st); err != nil {
			return nil, err
		}
	}
	return st.order, nil
}

func (r *Resolver) visit(id string, st *visitState) error {
	if st.visited[id] {
		return nil
	}
	if st.temp[id] {
		return &CircularDependencyError{Cycle: r.findCycle(id, st)}
	}

	st.temp[id] = true
	for _, dep := range r.dependencies[id] {
		if err := r.visit(dep, st); err != nil {
			return err
		}
	}
	st.temp[id] = false
	st.visited[id] = true
	// Nodes land in finish order, so every dependency precedes its
	// dependents in the returned slice.
	st.order = append(st.order, id)
	return nil
}

// findCycle walks forward from start following edges whose targets are
// still in progress until it returns to start. Multi-edge branching is
// handled by picking the first in-progress neighbor found.
func (r *Resolver) findCycle(start string, st *visitState) []string {
	cycle := []string{start}
	cur := start
	for {
		next := ""
		for _, dep := range r.dependencies[cur] {
			if dep == start || st.temp[dep] {
				next = dep
				break
			}
		}
		if next == "" {
			break
		}
		cycle = append(cycle, next)
		if next == start {
			break
		}
		cur = next
	}
	return cycle
}

// VerifyOrder checks that order is a valid topological order of the
// graph: every dependency appears before its dependents. Used by
// diagnostics and tests.
func (r *Resolver) VerifyOrder(order []string) error {
	index := make(map[string]int, len(order))
	for i, id := range order {
		index[id] = i
	}
	for node, deps := range r.dependencies {
		ni, ok := index[node]
		if !ok {
			continue
		}
		for _, dep := range deps {
			di, ok := index[dep]
			if !ok {
				return fmt.Errorf("dependency %q of %q missing from order", dep, node)
			}
			if di >= ni {
				return fmt.Errorf("dependency %q does not precede %q", dep, node)
			}
		}
	}
	return nil
}
