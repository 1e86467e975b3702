package depm

import (
	"testing"

	lltypes "github.com/llir/llvm/ir/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quillc/mir"
)

func TestBuildMetadataWordType(t *testing.T) {
	link := &LinkResult{}

	md := BuildMetadata(link, nil, false)
	assert.False(t, md.Is32Bit)
	assert.Equal(t, lltypes.I64, md.WordType)

	md = BuildMetadata(link, nil, true)
	assert.True(t, md.Is32Bit)
	assert.Equal(t, lltypes.I32, md.WordType)
}

func TestBuildMetadataProxySynthesis(t *testing.T) {
	link := &LinkResult{
		DynImpls: map[string][]string{
			"app.Widget.draw": {"app.Button", "app.Label"},
			"app.Widget.size": {"app.Button"},
		},
	}

	// `app.Widget.hide` has no implementation, so no stub is synthesized, and
	// the duplicate `app.Widget.draw` entry yields only one stub
	md := BuildMetadata(link, []string{"app.Widget.size", "app.Widget.draw", "app.Widget.hide", "app.Widget.draw"}, false)

	require.Len(t, md.ProxyDefs, 2)

	// stubs come out sorted by signature regardless of proxy set order
	assert.Equal(t, "app.Widget.draw$proxy", md.ProxyDefs[0].Name)
	assert.Equal(t, "app.Widget.size$proxy", md.ProxyDefs[1].Name)

	// each stub is attributed to the first implementing owner
	assert.Equal(t, "app.Button", md.ProxyDefs[0].Owner)

	fn := md.ProxyDefs[0].Def.(*mir.FuncDef)
	assert.True(t, fn.Extern)
	assert.Same(t, mir.Word, fn.ReturnType)
}
