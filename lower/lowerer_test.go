package lower

import (
	"testing"

	lltypes "github.com/llir/llvm/ir/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quillc/depm"
	"quillc/mir"
)

func testMetadata(is32 bool) *depm.Metadata {
	return depm.BuildMetadata(&depm.LinkResult{}, nil, is32)
}

func TestLowerGroupConcretizesWord(t *testing.T) {
	group := []*depm.Defn{
		{
			Name:  "num.inc",
			Owner: "num.Ops",
			Kind:  depm.DKFunc,
			Def: &mir.FuncDef{
				Name:       "num.inc",
				Params:     []mir.FuncParam{{Name: "x", Type: mir.Word}},
				ReturnType: mir.Word,
				Pub:        true,
			},
		},
	}

	lowered := LowerGroup(group, testMetadata(false))
	require.Len(t, lowered, 1)

	fn := lowered[0].Def.(*mir.FuncDef)
	assert.Equal(t, lltypes.I64, fn.ReturnType)
	assert.Equal(t, lltypes.I64, fn.Params[0].Type)

	lowered = LowerGroup(group, testMetadata(true))
	fn = lowered[0].Def.(*mir.FuncDef)
	assert.Equal(t, lltypes.I32, fn.ReturnType)
	assert.Equal(t, lltypes.I32, fn.Params[0].Type)
}

func TestLowerGroupIsPure(t *testing.T) {
	fields := []lltypes.Type{mir.Word, lltypes.NewPointer(mir.Word)}
	group := []*depm.Defn{
		{
			Name:  "mem.Block",
			Owner: "mem.Block",
			Kind:  depm.DKType,
			Def:   &mir.TypeDef{Name: "mem.Block", Pub: true, Fields: fields},
		},
	}

	lowered := LowerGroup(group, testMetadata(false))

	// the input definitions are untouched
	assert.Same(t, mir.Word, fields[0])
	assert.Same(t, mir.Word, fields[1].(*lltypes.PointerType).ElemType)

	// the result is fresh and fully concrete
	td := lowered[0].Def.(*mir.TypeDef)
	assert.NotSame(t, group[0].Def, lowered[0].Def)
	assert.Equal(t, lltypes.I64, td.Fields[0])
	assert.Equal(t, lltypes.I64, td.Fields[1].(*lltypes.PointerType).ElemType)
}

func TestLowerGroupLeavesNamedRefsAlone(t *testing.T) {
	ref := mir.NewTypeRef("geo.Point")
	group := []*depm.Defn{
		{
			Name:  "geo.unit",
			Owner: "geo.Vectors",
			Kind:  depm.DKGlobal,
			Def:   &mir.GlobalDef{Name: "geo.unit", Type: ref, Pub: true},
		},
	}

	lowered := LowerGroup(group, testMetadata(false))

	glob := lowered[0].Def.(*mir.GlobalDef)
	assert.Same(t, ref, glob.Type)
}

func TestLowerGroupSharesUnchangedTypes(t *testing.T) {
	ptr := lltypes.NewPointer(lltypes.I8)
	group := []*depm.Defn{
		{
			Name:  "io.stdout",
			Owner: "io.Streams",
			Kind:  depm.DKGlobal,
			Def:   &mir.GlobalDef{Name: "io.stdout", Type: ptr},
		},
	}

	lowered := LowerGroup(group, testMetadata(false))

	// types containing no placeholder come through without rebuilding
	glob := lowered[0].Def.(*mir.GlobalDef)
	assert.Same(t, ptr, glob.Type)
}
