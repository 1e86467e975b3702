package mir

import (
	"fmt"
	"strings"

	lltypes "github.com/llir/llvm/ir/types"
)

// Word is the placeholder integer type standing for the target word size.  The
// front end and linker use it wherever a pointer-sized integer is meant; the
// lowering stage replaces every occurrence with a concrete integer type for
// the configured target.  Identity matters here: the placeholder is detected
// by pointer comparison against this value.
var Word lltypes.Type = &lltypes.IntType{TypeName: "word", BitSize: 64}

// NewTypeRef returns a reference to a named type definition.  References
// carry only the name: the emitter resolves them against the generation
// environment when the unit containing them is serialized.
func NewTypeRef(name string) lltypes.Type {
	return &lltypes.StructType{TypeName: name}
}

// RefName returns the referenced type name if the given type is a named type
// reference, and ok=false otherwise.
func RefName(t lltypes.Type) (string, bool) {
	if st, ok := t.(*lltypes.StructType); ok && st.TypeName != "" {
		return st.TypeName, true
	}

	return "", false
}

// TypeRepr returns the canonical textual representation of a definition type.
// This representation is what gets fingerprinted, so it must be stable across
// runs and distinct for semantically distinct types.
func TypeRepr(t lltypes.Type) string {
	if t == Word {
		return "word"
	}

	switch v := t.(type) {
	case *lltypes.VoidType:
		return "void"
	case *lltypes.IntType:
		return fmt.Sprintf("i%d", v.BitSize)
	case *lltypes.FloatType:
		if v.Kind == lltypes.FloatKindFloat {
			return "f32"
		}

		return "f64"
	case *lltypes.PointerType:
		return "*" + TypeRepr(v.ElemType)
	case *lltypes.StructType:
		if v.TypeName != "" {
			return "%" + v.TypeName
		}

		fieldReprs := make([]string, len(v.Fields))
		for i, field := range v.Fields {
			fieldReprs[i] = TypeRepr(field)
		}

		return "{" + strings.Join(fieldReprs, ", ") + "}"
	default:
		return t.String()
	}
}
