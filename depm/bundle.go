package depm

import (
	"encoding/binary"
	"io"
	"sort"

	lltypes "github.com/llir/llvm/ir/types"
	"github.com/pkg/errors"

	"quillc/mir"
)

// The linked bundle is the hand-off format between the linker and the back
// end: a compact little-endian binary serialization of a LinkResult.  The
// format round-trips losslessly so the back end can run in a separate process
// invocation from the front end.

// bundleMagic identifies a linked bundle file.
var bundleMagic = [4]byte{'Q', 'L', 'N', 'K'}

// bundleVersion is the current bundle format version.  Readers reject any
// other version outright.
const bundleVersion uint32 = 1

// Flag bits used in definition encodings.
const (
	flagPublic = 1 << iota
	flagExtern
	flagHasValue
)

// Type encoding tags.
const (
	typeTagVoid = iota
	typeTagWord
	typeTagInt
	typeTagFloat
	typeTagDouble
	typeTagPointer
	typeTagStruct
	typeTagNamed
)

// -----------------------------------------------------------------------------

// WriteBundle serializes a link result to the given writer.
func WriteBundle(w io.Writer, link *LinkResult) error {
	bw := &bundleWriter{w: w}

	bw.writeRaw(bundleMagic)
	bw.writeU32(bundleVersion)

	bw.writeU32(uint32(len(link.Graph)))
	for _, defn := range link.Graph {
		bw.writeDefn(defn)
	}

	// sort the dynamic-dispatch table so the bundle bytes never depend on map
	// iteration order
	sigs := make([]string, 0, len(link.DynImpls))
	for sig := range link.DynImpls {
		sigs = append(sigs, sig)
	}
	sort.Strings(sigs)

	bw.writeU32(uint32(len(sigs)))
	for _, sig := range sigs {
		bw.writeString(sig)

		impls := link.DynImpls[sig]
		bw.writeU32(uint32(len(impls)))
		for _, impl := range impls {
			bw.writeString(impl)
		}
	}

	return errors.Wrap(bw.err, "failed to write linked bundle")
}

// ReadBundle deserializes a link result from the given reader.
func ReadBundle(r io.Reader) (*LinkResult, error) {
	br := &bundleReader{r: r}

	var magic [4]byte
	br.readRaw(&magic)
	if br.err == nil && magic != bundleMagic {
		return nil, errors.New("not a linked bundle: bad magic")
	}

	if version := br.readU32(); br.err == nil && version != bundleVersion {
		return nil, errors.Errorf("unsupported bundle version: %d", version)
	}

	numDefs := br.readU32()
	graph := make(DefGraph, 0, numDefs)
	for i := uint32(0); i < numDefs && br.err == nil; i++ {
		graph = append(graph, br.readDefn())
	}

	numSigs := br.readU32()
	dynImpls := make(map[string][]string, numSigs)
	for i := uint32(0); i < numSigs && br.err == nil; i++ {
		sig := br.readString()

		numImpls := br.readU32()
		impls := make([]string, 0, numImpls)
		for j := uint32(0); j < numImpls && br.err == nil; j++ {
			impls = append(impls, br.readString())
		}

		dynImpls[sig] = impls
	}

	if br.err != nil {
		return nil, errors.Wrap(br.err, "failed to read linked bundle")
	}

	return &LinkResult{Graph: graph, DynImpls: dynImpls}, nil
}

// -----------------------------------------------------------------------------

// bundleWriter wraps an io.Writer with little-endian primitives and a sticky
// error so encoding logic doesn't drown in error checks.
type bundleWriter struct {
	w   io.Writer
	err error
}

func (bw *bundleWriter) writeRaw(v interface{}) {
	if bw.err == nil {
		bw.err = binary.Write(bw.w, binary.LittleEndian, v)
	}
}

func (bw *bundleWriter) writeU32(v uint32) {
	bw.writeRaw(v)
}

func (bw *bundleWriter) writeString(s string) {
	bw.writeU32(uint32(len(s)))
	bw.writeRaw([]byte(s))
}

func (bw *bundleWriter) writeDefn(defn *Defn) {
	bw.writeRaw(uint8(defn.Kind))
	bw.writeString(defn.Name)
	bw.writeString(defn.Owner)

	switch v := defn.Def.(type) {
	case *mir.FuncDef:
		var flags uint8
		if v.Pub {
			flags |= flagPublic
		}
		if v.Extern {
			flags |= flagExtern
		}
		if v.RetValue != nil {
			flags |= flagHasValue
		}
		bw.writeRaw(flags)

		bw.writeU32(uint32(len(v.Params)))
		for _, param := range v.Params {
			bw.writeString(param.Name)
			bw.writeType(param.Type)
		}

		bw.writeType(v.ReturnType)

		if v.RetValue != nil {
			bw.writeRaw(*v.RetValue)
		}
	case *mir.GlobalDef:
		var flags uint8
		if v.Pub {
			flags |= flagPublic
		}
		if v.Const {
			flags |= flagExtern
		}
		if v.HasInit {
			flags |= flagHasValue
		}
		bw.writeRaw(flags)

		bw.writeType(v.Type)

		if v.HasInit {
			bw.writeRaw(v.InitValue)
		}
	case *mir.TypeDef:
		var flags uint8
		if v.Pub {
			flags |= flagPublic
		}
		bw.writeRaw(flags)

		bw.writeU32(uint32(len(v.Fields)))
		for _, field := range v.Fields {
			bw.writeType(field)
		}
	default:
		bw.err = errors.Errorf("unencodable definition content for `%s`", defn.Name)
	}
}

func (bw *bundleWriter) writeType(t lltypes.Type) {
	if t == mir.Word {
		bw.writeRaw(uint8(typeTagWord))
		return
	}

	switch v := t.(type) {
	case *lltypes.VoidType:
		bw.writeRaw(uint8(typeTagVoid))
	case *lltypes.IntType:
		bw.writeRaw(uint8(typeTagInt))
		bw.writeU32(uint32(v.BitSize))
	case *lltypes.FloatType:
		if v.Kind == lltypes.FloatKindFloat {
			bw.writeRaw(uint8(typeTagFloat))
		} else {
			bw.writeRaw(uint8(typeTagDouble))
		}
	case *lltypes.PointerType:
		bw.writeRaw(uint8(typeTagPointer))
		bw.writeType(v.ElemType)
	case *lltypes.StructType:
		if v.TypeName != "" {
			bw.writeRaw(uint8(typeTagNamed))
			bw.writeString(v.TypeName)
			return
		}

		bw.writeRaw(uint8(typeTagStruct))
		bw.writeU32(uint32(len(v.Fields)))
		for _, field := range v.Fields {
			bw.writeType(field)
		}
	default:
		bw.err = errors.Errorf("unencodable type: %s", mir.TypeRepr(t))
	}
}

// -----------------------------------------------------------------------------

// bundleReader is the decoding counterpart of bundleWriter.
type bundleReader struct {
	r   io.Reader
	err error
}

func (br *bundleReader) readRaw(v interface{}) {
	if br.err == nil {
		br.err = binary.Read(br.r, binary.LittleEndian, v)
	}
}

func (br *bundleReader) readU8() uint8 {
	var v uint8
	br.readRaw(&v)
	return v
}

func (br *bundleReader) readU32() uint32 {
	var v uint32
	br.readRaw(&v)
	return v
}

func (br *bundleReader) readI64() int64 {
	var v int64
	br.readRaw(&v)
	return v
}

func (br *bundleReader) readString() string {
	length := br.readU32()
	if br.err != nil {
		return ""
	}

	buff := make([]byte, length)
	if _, err := io.ReadFull(br.r, buff); err != nil {
		br.err = err
		return ""
	}

	return string(buff)
}

func (br *bundleReader) readDefn() *Defn {
	defn := &Defn{
		Kind:  int(br.readU8()),
		Name:  br.readString(),
		Owner: br.readString(),
	}

	switch defn.Kind {
	case DKFunc:
		flags := br.readU8()

		fn := &mir.FuncDef{
			Name:   defn.Name,
			Pub:    flags&flagPublic != 0,
			Extern: flags&flagExtern != 0,
		}

		numParams := br.readU32()
		for i := uint32(0); i < numParams && br.err == nil; i++ {
			fn.Params = append(fn.Params, mir.FuncParam{
				Name: br.readString(),
				Type: br.readType(),
			})
		}

		fn.ReturnType = br.readType()

		if flags&flagHasValue != 0 {
			rv := br.readI64()
			fn.RetValue = &rv
		}

		defn.Def = fn
	case DKGlobal:
		flags := br.readU8()

		glob := &mir.GlobalDef{
			Name:  defn.Name,
			Pub:   flags&flagPublic != 0,
			Const: flags&flagExtern != 0,
			Type:  br.readType(),
		}

		if flags&flagHasValue != 0 {
			glob.HasInit = true
			glob.InitValue = br.readI64()
		}

		defn.Def = glob
	case DKType:
		flags := br.readU8()

		td := &mir.TypeDef{
			Name: defn.Name,
			Pub:  flags&flagPublic != 0,
		}

		numFields := br.readU32()
		for i := uint32(0); i < numFields && br.err == nil; i++ {
			td.Fields = append(td.Fields, br.readType())
		}

		defn.Def = td
	default:
		br.err = errors.Errorf("unknown definition kind: %d", defn.Kind)
	}

	return defn
}

func (br *bundleReader) readType() lltypes.Type {
	switch tag := br.readU8(); tag {
	case typeTagVoid:
		return lltypes.Void
	case typeTagWord:
		return mir.Word
	case typeTagInt:
		return lltypes.NewInt(uint64(br.readU32()))
	case typeTagFloat:
		return lltypes.Float
	case typeTagDouble:
		return lltypes.Double
	case typeTagPointer:
		return lltypes.NewPointer(br.readType())
	case typeTagStruct:
		numFields := br.readU32()
		fields := make([]lltypes.Type, 0, numFields)
		for i := uint32(0); i < numFields && br.err == nil; i++ {
			fields = append(fields, br.readType())
		}

		return lltypes.NewStruct(fields...)
	case typeTagNamed:
		return mir.NewTypeRef(br.readString())
	default:
		if br.err == nil {
			br.err = errors.Errorf("unknown type tag: %d", tag)
		}

		return lltypes.Void
	}
}
