// Package generate implements the unit emitter: it serializes one sorted
// compilation unit of lowered definitions into a single textual LLVM IR
// module.  LLVM IR is produced with `llir/llvm` rather than native bindings so
// the back end stays a pure Go program; the resulting `.ll` files are handed
// to the downstream toolchain (`opt`/`llc`) by the outer build orchestrator.
package generate

import (
	"bufio"
	"os"
	"path/filepath"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	lltypes "github.com/llir/llvm/ir/types"
	"github.com/pkg/errors"

	"quillc/depm"
	"quillc/mir"
)

// Generator is responsible for converting one compilation unit into an LLVM
// module.  Generators for different units are fully independent and can be run
// concurrently.
type Generator struct {
	// unitID is the identifier of the unit being generated.
	unitID string

	// env is the read-only name-to-definition environment of the whole
	// post-lowering program, used to resolve cross-unit type references.
	env depm.Environment

	// abi is the target ABI variant selected for this run.
	abi ABI

	// mod is the LLVM module being generated.
	mod *ir.Module

	// typeDefs maps resolved type definition names to their LLVM types within
	// this module.
	typeDefs map[string]lltypes.Type
}

// EmitUnit serializes a compilation unit into one LLVM IR file named after the
// unit id inside outDir and returns the path of the written file.  The caller
// is responsible for passing the unit's definitions already sorted by
// canonical name: byte-identical sorted input yields byte-identical output.
func EmitUnit(unitID string, env depm.Environment, defs []*depm.Defn, outDir string, abi ABI) (string, error) {
	g := &Generator{
		unitID:   unitID,
		env:      env,
		abi:      abi,
		mod:      ir.NewModule(),
		typeDefs: make(map[string]lltypes.Type),
	}

	for _, defn := range defs {
		if err := g.genDefn(defn); err != nil {
			return "", err
		}
	}

	outputPath := filepath.Join(outDir, unitID+".ll")
	if err := g.writeModule(outputPath); err != nil {
		return "", err
	}

	return outputPath, nil
}

// -----------------------------------------------------------------------------

// genDefn generates a single definition into the module.
func (g *Generator) genDefn(defn *depm.Defn) error {
	switch v := defn.Def.(type) {
	case *mir.FuncDef:
		return g.genFunc(v)
	case *mir.GlobalDef:
		return g.genGlobal(v)
	case *mir.TypeDef:
		_, err := g.resolveTypeDef(v.Name)
		return err
	default:
		return errors.Errorf("unit %s: definition `%s` has no content", g.unitID, defn.Name)
	}
}

// genFunc generates an LLVM function definition or declaration.
func (g *Generator) genFunc(fn *mir.FuncDef) error {
	var params []*ir.Param
	for _, param := range fn.Params {
		paramType, err := g.convType(param.Type)
		if err != nil {
			return err
		}

		params = append(params, ir.NewParam(param.Name, paramType))
	}

	retType, err := g.convType(fn.ReturnType)
	if err != nil {
		return err
	}

	llvmFunc := g.mod.NewFunc(fn.Name, retType, params...)

	// set linkage based on visibility
	if fn.Pub || fn.Extern {
		llvmFunc.Linkage = enum.LinkageExternal
		llvmFunc.CallingConv = g.abi.callingConv()
	} else {
		llvmFunc.Linkage = enum.LinkageInternal
	}

	// declarations have no body
	if fn.Extern {
		return nil
	}

	entry := llvmFunc.NewBlock("entry")

	if _, ok := retType.(*lltypes.VoidType); ok {
		entry.NewRet(nil)
		return nil
	}

	if intType, ok := retType.(*lltypes.IntType); ok && fn.RetValue != nil {
		entry.NewRet(constant.NewInt(intType, *fn.RetValue))
		return nil
	}

	entry.NewRet(g.zeroValue(retType))
	return nil
}

// genGlobal generates an LLVM global definition.
func (g *Generator) genGlobal(glob *mir.GlobalDef) error {
	globType, err := g.convType(glob.Type)
	if err != nil {
		return err
	}

	var init constant.Constant
	if intType, ok := globType.(*lltypes.IntType); ok && glob.HasInit {
		init = constant.NewInt(intType, glob.InitValue)
	} else {
		init = g.zeroValue(globType)
	}

	llvmGlobal := g.mod.NewGlobalDef(glob.Name, init)
	llvmGlobal.Immutable = glob.Const

	if glob.Pub {
		llvmGlobal.Linkage = enum.LinkageExternal
	} else {
		llvmGlobal.Linkage = enum.LinkageInternal
	}

	return nil
}

// resolveTypeDef resolves a named type definition into this module, creating
// the LLVM type definition on first use.  Units referencing a type defined in
// another unit repeat its definition locally: each LLVM module must be
// self-contained.
func (g *Generator) resolveTypeDef(name string) (lltypes.Type, error) {
	if resolved, ok := g.typeDefs[name]; ok {
		return resolved, nil
	}

	defn, ok := g.env[name]
	if !ok {
		return nil, errors.Errorf("unit %s: unresolved type reference `%s`", g.unitID, name)
	}

	td, ok := defn.Def.(*mir.TypeDef)
	if !ok {
		return nil, errors.Errorf("unit %s: `%s` referenced as a type but is not one", g.unitID, name)
	}

	// reserve the name first so self-referential types terminate
	structType := &lltypes.StructType{}
	g.typeDefs[name] = structType

	for _, field := range td.Fields {
		fieldType, err := g.convType(field)
		if err != nil {
			return nil, err
		}

		structType.Fields = append(structType.Fields, fieldType)
	}

	g.mod.NewTypeDef(name, structType)
	return structType, nil
}

// convType converts a definition type into the LLVM type used in this module,
// resolving named references through the environment.
func (g *Generator) convType(t lltypes.Type) (lltypes.Type, error) {
	// the lowering stage must have eliminated every word placeholder
	if t == mir.Word {
		return nil, errors.Errorf("unit %s: unlowered word type reached emission", g.unitID)
	}

	if refName, ok := mir.RefName(t); ok {
		return g.resolveTypeDef(refName)
	}

	switch v := t.(type) {
	case *lltypes.PointerType:
		elemType, err := g.convType(v.ElemType)
		if err != nil {
			return nil, err
		}

		return lltypes.NewPointer(elemType), nil
	case *lltypes.StructType:
		fields := make([]lltypes.Type, len(v.Fields))
		for i, field := range v.Fields {
			fieldType, err := g.convType(field)
			if err != nil {
				return nil, err
			}

			fields[i] = fieldType
		}

		return lltypes.NewStruct(fields...), nil
	default:
		return t, nil
	}
}

// zeroValue returns the zero constant of an LLVM type.
func (g *Generator) zeroValue(t lltypes.Type) constant.Constant {
	switch v := t.(type) {
	case *lltypes.IntType:
		return constant.NewInt(v, 0)
	case *lltypes.FloatType:
		return constant.NewFloat(v, 0)
	case *lltypes.PointerType:
		return constant.NewNull(v)
	default:
		return constant.NewZeroInitializer(t)
	}
}

// -----------------------------------------------------------------------------

// writeModule writes the generated module's LLVM IR text to the given path.
func (g *Generator) writeModule(outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return errors.Wrapf(err, "failed to create output file for unit %s", g.unitID)
	}
	defer file.Close()

	w := bufio.NewWriter(file)
	if _, err := g.mod.WriteTo(w); err != nil {
		return errors.Wrapf(err, "failed to write output for unit %s", g.unitID)
	}

	return w.Flush()
}
