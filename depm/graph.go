package depm

import (
	"fmt"
	"sort"
)

// DefGraph is the linked program handed to the back end: an ordered sequence
// of definitions.  Invariant: every definition name is unique within the
// sequence.
type DefGraph []*Defn

// Environment is a read-only mapping from global name to definition.  It is
// derived once from the post-lowering definition graph and used by emitters to
// resolve cross-references; it must never be mutated afterward.
type Environment map[string]*Defn

// CheckUnique validates the unique-name invariant of the graph.  The linker
// upholds this invariant by construction, so a violation here means the bundle
// handed to the back end is corrupt.
func (g DefGraph) CheckUnique() error {
	seen := make(map[string]struct{}, len(g))

	for _, defn := range g {
		if _, ok := seen[defn.Name]; ok {
			return fmt.Errorf("duplicate definition of `%s` in linked graph", defn.Name)
		}

		seen[defn.Name] = struct{}{}
	}

	return nil
}

// Sorted returns a copy of the graph sorted by canonical definition name.
func (g DefGraph) Sorted() DefGraph {
	sorted := make(DefGraph, len(g))
	copy(sorted, g)

	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Name < sorted[j].Name
	})

	return sorted
}

// Environment builds the name-to-definition environment of the graph.
func (g DefGraph) Environment() Environment {
	env := make(Environment, len(g))

	for _, defn := range g {
		env[defn.Name] = defn
	}

	return env
}
