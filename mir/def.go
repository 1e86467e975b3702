package mir

import (
	"fmt"
	"strings"

	lltypes "github.com/llir/llvm/ir/types"
)

// Def represents the lowered content of a single named definition.  It is a
// simplified and organized representation of the language: by the time a Def
// reaches the back end, all language-level sugar has been eliminated and only
// entities with a direct LLVM rendering remain.
type Def interface {
	// DefName returns the canonical global name of the definition.
	DefName() string

	// Public returns whether the definition is visible outside its unit.
	Public() bool

	// Repr returns the full canonical textual representation of the
	// definition.  Two definitions are semantically identical for caching
	// purposes exactly when their representations are byte-identical.
	Repr() string
}

// -----------------------------------------------------------------------------

// FuncParam represents a function parameter.
type FuncParam struct {
	Name string
	Type lltypes.Type
}

// FuncDef represents a function definition.
type FuncDef struct {
	Name       string
	Params     []FuncParam
	ReturnType lltypes.Type
	Pub        bool

	// Extern marks a declaration-only function resolved by a later link step.
	Extern bool

	// RetValue is the constant return value of the function body.  If it is
	// `nil` and the function is not external, the body returns the zero value
	// of the return type.
	RetValue *int64
}

func (f *FuncDef) DefName() string {
	return f.Name
}

func (f *FuncDef) Public() bool {
	return f.Pub
}

func (f *FuncDef) Repr() string {
	sb := strings.Builder{}

	writeVisibility(&sb, f.Pub)

	if f.Extern {
		sb.WriteString("extern ")
	}

	sb.WriteString("func @")
	sb.WriteString(f.Name)
	sb.WriteRune('(')

	for i, param := range f.Params {
		if i > 0 {
			sb.WriteString(", ")
		}

		sb.WriteString(TypeRepr(param.Type))
	}

	sb.WriteString(") ")
	sb.WriteString(TypeRepr(f.ReturnType))

	if !f.Extern {
		if f.RetValue != nil {
			sb.WriteString(fmt.Sprintf(" = ret %d", *f.RetValue))
		} else {
			sb.WriteString(" = ret zero")
		}
	}

	return sb.String()
}

// -----------------------------------------------------------------------------

// GlobalDef represents a global variable or constant definition.
type GlobalDef struct {
	Name string
	Type lltypes.Type
	Pub  bool

	// Const marks the global as immutable after initialization.
	Const bool

	// HasInit indicates whether InitValue is meaningful.  Globals without an
	// initializer start at the zero value of their type.
	HasInit   bool
	InitValue int64
}

func (g *GlobalDef) DefName() string {
	return g.Name
}

func (g *GlobalDef) Public() bool {
	return g.Pub
}

func (g *GlobalDef) Repr() string {
	sb := strings.Builder{}

	writeVisibility(&sb, g.Pub)

	if g.Const {
		sb.WriteString("const ")
	}

	sb.WriteString("global @")
	sb.WriteString(g.Name)
	sb.WriteRune(' ')
	sb.WriteString(TypeRepr(g.Type))

	if g.HasInit {
		sb.WriteString(fmt.Sprintf(" = %d", g.InitValue))
	} else {
		sb.WriteString(" = zero")
	}

	return sb.String()
}

// -----------------------------------------------------------------------------

// TypeDef represents a named structure type definition.
type TypeDef struct {
	Name   string
	Pub    bool
	Fields []lltypes.Type
}

func (t *TypeDef) DefName() string {
	return t.Name
}

func (t *TypeDef) Public() bool {
	return t.Pub
}

func (t *TypeDef) Repr() string {
	sb := strings.Builder{}

	writeVisibility(&sb, t.Pub)

	sb.WriteString("type @")
	sb.WriteString(t.Name)
	sb.WriteString(" = ")
	sb.WriteString(TypeRepr(&lltypes.StructType{Fields: t.Fields}))

	return sb.String()
}

// -----------------------------------------------------------------------------

// writeVisibility writes the visibility prefix of a definition representation.
func writeVisibility(sb *strings.Builder, pub bool) {
	if pub {
		sb.WriteString("pub ")
	} else {
		sb.WriteString("priv ")
	}
}
