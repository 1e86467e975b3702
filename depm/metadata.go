package depm

import (
	"sort"

	lltypes "github.com/llir/llvm/ir/types"

	"quillc/mir"
	"quillc/util"
)

// LinkResult carries the linked definition graph together with the
// dynamic-dispatch facts the linker discovered: for each dynamic method
// signature, the owners that provide an implementation.
type LinkResult struct {
	// Graph is the full linked definition graph.
	Graph DefGraph

	// DynImpls maps a dynamic method signature to the sorted list of owner
	// names implementing it.
	DynImpls map[string][]string
}

// Metadata is the set of read-only derived facts attached to a linked program:
// the link result itself, the synthesized reflective proxy stubs, and the
// target pointer width.  It is computed once before lowering and never mutated
// afterward; every parallel stage of the driver reads it freely.
type Metadata struct {
	// Link is the link result the metadata was derived from.
	Link *LinkResult

	// ProxyDefs is the list of synthesized reflective proxy stubs, sorted by
	// name.  The driver prepends these to the graph before lowering.
	ProxyDefs []*Defn

	// Is32Bit indicates whether the target pointer width is 32 bits.
	Is32Bit bool

	// WordType is the concrete integer type the target word lowers to.
	WordType lltypes.Type
}

// proxySuffix is appended to a dynamic signature to form its proxy stub name.
const proxySuffix = "$proxy"

// BuildMetadata computes the metadata for a linked program.  `proxySet` is the
// set of dynamic signatures that require reflective proxies; signatures with
// no recorded implementation are skipped since there is nothing to forward to.
func BuildMetadata(link *LinkResult, proxySet []string, is32 bool) *Metadata {
	md := &Metadata{
		Link:    link,
		Is32Bit: is32,
	}

	if is32 {
		md.WordType = lltypes.I32
	} else {
		md.WordType = lltypes.I64
	}

	// sort the proxy set so the synthesized stub order never depends on the
	// caller's set ordering
	sortedSet := make([]string, len(proxySet))
	copy(sortedSet, proxySet)
	sort.Strings(sortedSet)

	var seen []string
	for _, sig := range sortedSet {
		// a signature listed twice still gets only one stub
		if util.Contains(seen, sig) {
			continue
		}
		seen = append(seen, sig)

		impls := link.DynImpls[sig]
		if len(impls) == 0 {
			continue
		}

		md.ProxyDefs = append(md.ProxyDefs, newProxyStub(sig, impls[0]))
	}

	return md
}

// newProxyStub synthesizes the reflective proxy stub for a dynamic signature.
// The stub is a word-to-word function attributed to the first implementing
// owner; its body is filled in by the runtime's dispatch table at link time.
func newProxyStub(sig, owner string) *Defn {
	name := sig + proxySuffix

	return &Defn{
		Name:  name,
		Owner: owner,
		Kind:  DKFunc,
		Def: &mir.FuncDef{
			Name:       name,
			Params:     []mir.FuncParam{{Name: "receiver", Type: mir.Word}},
			ReturnType: mir.Word,
			Pub:        true,
			Extern:     true,
		},
	}
}
