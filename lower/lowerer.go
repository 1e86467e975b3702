// Package lower implements the target lowering stage of the back end: a pure,
// per-owner-group transformation that eliminates every target-generic
// construct from the definition graph before partitioning and emission.  The
// driver invokes it once per owner group, in parallel; groups are independent
// and the only cross-group information a group may consult is the read-only
// metadata computed up front.
package lower

import (
	lltypes "github.com/llir/llvm/ir/types"

	"quillc/depm"
	"quillc/mir"
	"quillc/util"
)

// Lowerer is the construct responsible for lowering one group of definitions.
type Lowerer struct {
	// md is the read-only program metadata.
	md *depm.Metadata
}

// LowerGroup lowers a group of definitions sharing one top-level owner.  It is
// pure: the input definitions are never mutated and the result is a fresh
// sequence of the same length and names.
func LowerGroup(group []*depm.Defn, md *depm.Metadata) []*depm.Defn {
	l := &Lowerer{md: md}

	return util.Map(group, l.lowerDefn)
}

// lowerDefn lowers a single definition, returning a fresh definition.
func (l *Lowerer) lowerDefn(defn *depm.Defn) *depm.Defn {
	lowered := &depm.Defn{
		Name:  defn.Name,
		Owner: defn.Owner,
		Kind:  defn.Kind,
	}

	switch v := defn.Def.(type) {
	case *mir.FuncDef:
		fn := &mir.FuncDef{
			Name:       v.Name,
			ReturnType: l.lowerType(v.ReturnType),
			Pub:        v.Pub,
			Extern:     v.Extern,
			RetValue:   v.RetValue,
		}

		fn.Params = util.Map(v.Params, func(param mir.FuncParam) mir.FuncParam {
			return mir.FuncParam{Name: param.Name, Type: l.lowerType(param.Type)}
		})

		lowered.Def = fn
	case *mir.GlobalDef:
		lowered.Def = &mir.GlobalDef{
			Name:      v.Name,
			Type:      l.lowerType(v.Type),
			Pub:       v.Pub,
			Const:     v.Const,
			HasInit:   v.HasInit,
			InitValue: v.InitValue,
		}
	case *mir.TypeDef:
		lowered.Def = &mir.TypeDef{
			Name:   v.Name,
			Pub:    v.Pub,
			Fields: util.Map(v.Fields, l.lowerType),
		}
	}

	return lowered
}

// lowerType replaces every occurrence of the target word placeholder in a type
// with the concrete word type of the target.  Types containing no placeholder
// are returned unchanged.
func (l *Lowerer) lowerType(t lltypes.Type) lltypes.Type {
	if t == mir.Word {
		return l.md.WordType
	}

	switch v := t.(type) {
	case *lltypes.PointerType:
		if elem := l.lowerType(v.ElemType); elem != v.ElemType {
			return lltypes.NewPointer(elem)
		}
	case *lltypes.StructType:
		// named references carry no structure of their own to lower
		if v.TypeName != "" {
			return t
		}

		changed := false
		fields := make([]lltypes.Type, len(v.Fields))

		for i, field := range v.Fields {
			fields[i] = l.lowerType(field)
			changed = changed || fields[i] != field
		}

		if changed {
			return lltypes.NewStruct(fields...)
		}
	}

	return t
}
