// Package binary serializes ir modules to a compact, lossless binary form.
//
// A blob is the magic "CIR1" followed by a snappy-compressed protobuf wire
// message. The message is written with protowire directly; there is no
// .proto schema. Values, control instructions and functions are referred to
// by their position in definition order, so the layout of a blob follows the
// layout of the module.
package binary

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// Magic prefixes every blob.
const Magic = "CIR1"

// ErrBadMagic is returned by Decode for data that is not a module blob.
var ErrBadMagic = errors.New("binary: missing CIR1 magic")

// Field numbers of the module message.
const (
	moduleTypes        protowire.Number = 1
	moduleConstants    protowire.Number = 2
	moduleRoot         protowire.Number = 3
	moduleFunctions    protowire.Number = 4
	moduleCapabilities protowire.Number = 5
)

// Field numbers of a type.
const (
	typeKind    protowire.Number = 1
	typeArgs    protowire.Number = 2
	typeName    protowire.Number = 3
	typeMembers protowire.Number = 4
	typeFormat  protowire.Number = 5
)

const (
	memberName  protowire.Number = 1
	memberType  protowire.Number = 2
	memberAttrs protowire.Number = 3
)

const (
	attrLocation   protowire.Number = 1
	attrIndex      protowire.Number = 2
	attrBuiltin    protowire.Number = 3
	attrInterpKind protowire.Number = 4
	attrInterpSamp protowire.Number = 5
	attrInvariant  protowire.Number = 6
	attrHasInterp  protowire.Number = 7
)

// Field numbers of a constant.
const (
	constKind  protowire.Number = 1
	constType  protowire.Number = 2
	constBits  protowire.Number = 3
	constElems protowire.Number = 4
	constCount protowire.Number = 5
)

// Field numbers of a function.
const (
	fnName          protowire.Number = 1
	fnReturnType    protowire.Number = 2
	fnStage         protowire.Number = 3
	fnWorkgroupSize protowire.Number = 4
	fnReturnAttrs   protowire.Number = 5
	fnParams        protowire.Number = 6
	fnBlock         protowire.Number = 7
)

// Field numbers of a value definition: a parameter or a result.
const (
	valueType    protowire.Number = 1
	valueName    protowire.Number = 2
	valueAttrs   protowire.Number = 3
	valueBinding protowire.Number = 4
)

const (
	blockParams       protowire.Number = 1
	blockInstructions protowire.Number = 2
)

// Field numbers of an instruction.
const (
	instOp       protowire.Number = 1
	instResults  protowire.Number = 2
	instOperands protowire.Number = 3
	instSubOp    protowire.Number = 4
	instTarget   protowire.Number = 5
	instIndices  protowire.Number = 6
	instBlocks   protowire.Number = 7
	instCases    protowire.Number = 8
	instBinding  protowire.Number = 9
	instAttrs    protowire.Number = 10
	instNumNext  protowire.Number = 11
)

const (
	caseSelectors protowire.Number = 1
	caseBlock     protowire.Number = 2
)

type typeKindCode uint64

const (
	kindVoid typeKindCode = iota
	kindScalar
	kindVector
	kindMatrix
	kindArray
	kindStruct
	kindPointer
	kindReference
	kindAtomic
	kindSampler
	kindSampledTexture
	kindStorageTexture
	kindTuple
)

type constKindCode uint64

const (
	constScalar constKindCode = iota
	constSplat
	constComposite
)

type opcode uint64

const (
	opBinary opcode = iota
	opUnary
	opLoad
	opStore
	opLoadVectorElement
	opStoreVectorElement
	opAccess
	opVar
	opLet
	opUserCall
	opBuiltinCall
	opConvert
	opConstruct
	opBitcast
	opSwizzle
	opDiscard
	opIf
	opLoop
	opSwitch
	opReturn
	opExitIf
	opExitLoop
	opExitSwitch
	opContinue
	opNextIteration
	opBreakIf
	opUnreachable
)

// Operands are packed into one varint: the low two bits select the kind and
// the rest is an index into the matching table.
const (
	operandNil uint64 = iota
	operandValue
	operandConstant
	operandUndef
)

func packOperand(kind, index uint64) uint64 { return index<<2 | kind }

func unpackOperand(v uint64) (kind, index uint64) { return v & 3, v >> 2 }

// field is one decoded field of a message. Varint fields carry v, length
// delimited fields carry b.
type field struct {
	num protowire.Number
	typ protowire.Type
	v   uint64
	b   []byte
}

// fields calls fn for every field of the message b, in order. Fields of
// other wire types are skipped.
func fields(b []byte, fn func(f field) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
		f := field{num: num, typ: typ}
		switch typ {
		case protowire.VarintType:
			f.v, n = protowire.ConsumeVarint(b)
		case protowire.BytesType:
			f.b, n = protowire.ConsumeBytes(b)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
		if typ != protowire.VarintType && typ != protowire.BytesType {
			continue
		}
		if err := fn(f); err != nil {
			return err
		}
	}
	return nil
}

// packed decodes a packed repeated varint field.
func packed(b []byte) ([]uint64, error) {
	var out []uint64
	for len(b) > 0 {
		v, n := protowire.ConsumeVarint(b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		out = append(out, v)
		b = b[n:]
	}
	return out, nil
}

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendBytes(b []byte, num protowire.Number, v []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

func appendString(b []byte, num protowire.Number, v string) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}

func appendPacked(b []byte, num protowire.Number, vs []uint64) []byte {
	if len(vs) == 0 {
		return b
	}
	var inner []byte
	for _, v := range vs {
		inner = protowire.AppendVarint(inner, v)
	}
	return appendBytes(b, num, inner)
}

func appendBool(b []byte, num protowire.Number, v bool) []byte {
	if !v {
		return b
	}
	return appendVarint(b, num, 1)
}

func corrupt(format string, args ...any) error {
	return fmt.Errorf("binary: corrupt module: "+format, args...)
}
