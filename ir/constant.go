package ir

import (
	"math"
	"strconv"
	"strings"
)

// ConstValue is an interned, immutable constant. Constants obtained from the
// same ConstantManager are equal exactly when they are the same pointer.
type ConstValue interface {
	Type() Type
	// Index returns the i'th element of a composite constant.
	Index(i int) ConstValue
	// AllZero reports whether every element is a zero value.
	AllZero() bool
	// AnyZero reports whether any element is a zero value.
	AnyZero() bool
	String() string
	constValue()
}

// ScalarValue is a bool, integer or floating-point constant. The value is
// stored as raw bits: bools as 0 or 1, integers as two's complement and
// floats as their IEEE-754 encoding widened to float64.
type ScalarValue struct {
	typ  *Scalar
	bits uint64
}

// Splat is a composite constant whose elements are all the same value.
type Splat struct {
	typ   Type
	Elem  ConstValue
	Count int
}

// Composite is a composite constant with individually specified elements.
type Composite struct {
	typ   Type
	Elems []ConstValue
}

func (*ScalarValue) constValue() {}
func (*Splat) constValue()       {}
func (*Composite) constValue()   {}

func (c *ScalarValue) Type() Type { return c.typ }
func (c *Splat) Type() Type       { return c.typ }
func (c *Composite) Type() Type   { return c.typ }

func (c *ScalarValue) Index(int) ConstValue { return nil }
func (c *Splat) Index(int) ConstValue       { return c.Elem }

func (c *Composite) Index(i int) ConstValue {
	if i < 0 || i >= len(c.Elems) {
		return nil
	}
	return c.Elems[i]
}

func (c *ScalarValue) AllZero() bool { return c.bits == 0 }
func (c *ScalarValue) AnyZero() bool { return c.bits == 0 }
func (c *Splat) AllZero() bool       { return c.Elem.AllZero() }
func (c *Splat) AnyZero() bool       { return c.Elem.AnyZero() }

func (c *Composite) AllZero() bool {
	for _, e := range c.Elems {
		if !e.AllZero() {
			return false
		}
	}
	return true
}

func (c *Composite) AnyZero() bool {
	for _, e := range c.Elems {
		if e.AnyZero() {
			return true
		}
	}
	return false
}

// Bool returns the value of a bool constant.
func (c *ScalarValue) Bool() bool { return c.bits != 0 }

// Int returns the value of an i32 constant.
func (c *ScalarValue) Int() int32 { return int32(c.bits) }

// Uint returns the value of a u32 constant.
func (c *ScalarValue) Uint() uint32 { return uint32(c.bits) }

// Float returns the value of an f32 or f16 constant.
func (c *ScalarValue) Float() float64 { return math.Float64frombits(c.bits) }

// Bits returns the raw payload.
func (c *ScalarValue) Bits() uint64 { return c.bits }

// AsUint64 returns an integer or bool constant as an unsigned value, clamping
// negative i32 values to zero.
func (c *ScalarValue) AsUint64() uint64 {
	switch c.typ.Kind {
	case ScalarI32:
		if c.Int() < 0 {
			return 0
		}
		return uint64(c.Int())
	case ScalarF32, ScalarF16:
		f := c.Float()
		if f < 0 {
			return 0
		}
		return uint64(f)
	}
	return c.bits
}

func (c *ScalarValue) String() string {
	switch c.typ.Kind {
	case ScalarBool:
		return strconv.FormatBool(c.Bool())
	case ScalarI32:
		return strconv.FormatInt(int64(c.Int()), 10) + "i"
	case ScalarU32:
		return strconv.FormatUint(uint64(c.Uint()), 10) + "u"
	case ScalarF32:
		return formatFloat(c.Float(), 32) + "f"
	case ScalarF16:
		return formatFloat(c.Float(), 32) + "h"
	}
	return "?"
}

func formatFloat(f float64, bits int) string {
	s := strconv.FormatFloat(f, 'f', -1, bits)
	if !strings.ContainsAny(s, ".eIN") {
		s += ".0"
	}
	return s
}

func (c *Splat) String() string {
	return c.typ.String() + "(" + c.Elem.String() + ")"
}

func (c *Composite) String() string {
	parts := make([]string, len(c.Elems))
	for i, e := range c.Elems {
		parts[i] = e.String()
	}
	return c.typ.String() + "(" + strings.Join(parts, ", ") + ")"
}

// ConstantManager interns constant values.
type ConstantManager struct {
	types  *TypeManager
	values map[string]ConstValue
	order  []ConstValue
}

// NewConstantManager creates a constant manager whose types come from types.
func NewConstantManager(types *TypeManager) *ConstantManager {
	return &ConstantManager{types: types, values: make(map[string]ConstValue)}
}

func (m *ConstantManager) intern(key string, create func() ConstValue) ConstValue {
	if v, ok := m.values[key]; ok {
		return v
	}
	v := create()
	m.values[key] = v
	m.order = append(m.order, v)
	return v
}

func (m *ConstantManager) scalar(t *Scalar, bits uint64) *ScalarValue {
	key := t.String() + ":" + strconv.FormatUint(bits, 16)
	return m.intern(key, func() ConstValue { return &ScalarValue{typ: t, bits: bits} }).(*ScalarValue)
}

// Bool returns the bool constant b.
func (m *ConstantManager) Bool(b bool) *ScalarValue {
	var bits uint64
	if b {
		bits = 1
	}
	return m.scalar(m.types.Bool(), bits)
}

// I32 returns the i32 constant v.
func (m *ConstantManager) I32(v int32) *ScalarValue {
	return m.scalar(m.types.I32(), uint64(uint32(v)))
}

// U32 returns the u32 constant v.
func (m *ConstantManager) U32(v uint32) *ScalarValue {
	return m.scalar(m.types.U32(), uint64(v))
}

// F32 returns the f32 constant v.
func (m *ConstantManager) F32(v float32) *ScalarValue {
	return m.scalar(m.types.F32(), math.Float64bits(float64(v)))
}

// F16 returns the f16 constant v. The value is stored at f32 precision.
func (m *ConstantManager) F16(v float32) *ScalarValue {
	return m.scalar(m.types.F16(), math.Float64bits(float64(v)))
}

// ScalarFromBits returns the scalar constant of type t with the raw payload
// bits, as returned by ScalarValue.Bits.
func (m *ConstantManager) ScalarFromBits(t *Scalar, bits uint64) *ScalarValue {
	return m.scalar(t, bits)
}

// Splat returns the composite of type t whose count elements are all elem.
func (m *ConstantManager) Splat(t Type, elem ConstValue, count int) *Splat {
	key := "splat:" + t.String() + ":" + strconv.Itoa(count) + ":" + constKey(elem)
	return m.intern(key, func() ConstValue { return &Splat{typ: t, Elem: elem, Count: count} }).(*Splat)
}

// Composite returns the composite of type t with the given elements. If all
// elements are the same value, the equivalent Splat is returned.
func (m *ConstantManager) Composite(t Type, elems []ConstValue) ConstValue {
	if len(elems) > 0 {
		same := true
		for _, e := range elems[1:] {
			if e != elems[0] {
				same = false
				break
			}
		}
		if same {
			if _, isStruct := t.(*Struct); !isStruct {
				return m.Splat(t, elems[0], len(elems))
			}
		}
	}
	keys := make([]string, len(elems))
	for i, e := range elems {
		keys[i] = constKey(e)
	}
	key := "composite:" + t.String() + "(" + strings.Join(keys, ",") + ")"
	return m.intern(key, func() ConstValue {
		return &Composite{typ: t, Elems: append([]ConstValue(nil), elems...)}
	})
}

// Zero returns the zero value of t.
//
//nolint:gocyclo // one case per constructible type
func (m *ConstantManager) Zero(t Type) ConstValue {
	switch t := t.(type) {
	case *Scalar:
		return m.scalar(t, 0)
	case *Vector:
		return m.Splat(t, m.scalar(t.Elem, 0), int(t.Width))
	case *Matrix:
		return m.Splat(t, m.Zero(m.types.Vec(t.Elem, t.Rows)), int(t.Columns))
	case *Array:
		if t.Count == 0 {
			Panicf("zero value of runtime-sized array")
		}
		return m.Splat(t, m.Zero(t.Elem), int(t.Count))
	case *Struct:
		elems := make([]ConstValue, len(t.Members))
		for i, mem := range t.Members {
			elems[i] = m.Zero(mem.Type)
		}
		return m.Composite(t, elems)
	case *Atomic:
		return m.scalar(t.Elem, 0)
	}
	Panicf("no zero value for type %s", t)
	return nil
}

// All returns every interned constant in creation order.
func (m *ConstantManager) All() []ConstValue { return m.order }

// Owns reports whether c was interned by this manager.
func (m *ConstantManager) Owns(c ConstValue) bool {
	v, ok := m.values[constKey(c)]
	return ok && v == c
}

func constKey(c ConstValue) string {
	switch c := c.(type) {
	case *ScalarValue:
		return c.typ.String() + ":" + strconv.FormatUint(c.bits, 16)
	case *Splat:
		return "splat:" + c.typ.String() + ":" + strconv.Itoa(c.Count) + ":" + constKey(c.Elem)
	case *Composite:
		keys := make([]string, len(c.Elems))
		for i, e := range c.Elems {
			keys[i] = constKey(e)
		}
		return "composite:" + c.typ.String() + "(" + strings.Join(keys, ",") + ")"
	}
	return ""
}
