package depm

import (
	"strings"

	"quillc/mir"
)

// RootPackageID is the sentinel package identifier assigned to definitions
// whose top-level owner has no enclosing package.
const RootPackageID = "_root"

// Enumeration of definition kinds.
const (
	DKFunc   = iota // A function or method definition.
	DKGlobal        // A global variable or constant definition.
	DKType          // A named type definition.
)

// Defn represents one named unit of linked program content: a method, global,
// or type belonging to exactly one top-level owner.  Names are globally unique
// within a linked program and totally ordered by their canonical string form;
// that ordering is what every deterministic sort in the back end uses.
type Defn struct {
	// Name is the canonical global name of the definition, eg.
	// `collections.List.append(item)`.
	Name string

	// Owner is the qualified name of the definition's top-level owner, eg.
	// `collections.List`.  Nested and local owners have already been collapsed
	// into their enclosing top-level owner by the linker.
	Owner string

	// Kind is one of the enumerated definition kinds.
	Kind int

	// Def is the definition's content.
	Def mir.Def
}

// PackageID returns the package identifier the definition belongs to: the
// qualified name of its owner minus the owner's own (final) segment.  An owner
// with no package maps to RootPackageID.
func (d *Defn) PackageID() string {
	if ndx := strings.LastIndexByte(d.Owner, '.'); ndx > 0 {
		return d.Owner[:ndx]
	}

	return RootPackageID
}
