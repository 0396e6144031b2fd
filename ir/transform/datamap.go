package transform

import (
	"reflect"

	"github.com/gogpu/coreir/ir"
)

// DataMap holds at most one value per Go type. Passes read their options
// from the inputs map and publish side results in the outputs map.
//
// The zero value is an empty map ready to use.
type DataMap struct {
	values map[reflect.Type]any
}

// NewDataMap returns an empty DataMap.
func NewDataMap() *DataMap {
	return &DataMap{values: make(map[reflect.Type]any)}
}

func keyOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// Add stores v under its static type T, replacing any previous value.
func Add[T any](dm *DataMap, v T) {
	if dm == nil {
		ir.Panicf("adding %s to a nil data map", keyOf[T]())
	}
	if dm.values == nil {
		dm.values = make(map[reflect.Type]any)
	}
	dm.values[keyOf[T]()] = v
}

// Get returns the value stored under T.
func Get[T any](dm *DataMap) (T, bool) {
	var zero T
	if dm == nil {
		return zero, false
	}
	v, ok := dm.values[keyOf[T]()]
	if !ok {
		return zero, false
	}
	return v.(T), true
}

// MustGet returns the value stored under T. A missing value is an internal
// compiler error.
func MustGet[T any](dm *DataMap) T {
	v, ok := Get[T](dm)
	if !ok {
		ir.Panicf("data map has no %s", keyOf[T]())
	}
	return v
}

// Has reports whether a value is stored under T.
func Has[T any](dm *DataMap) bool {
	if dm == nil {
		return false
	}
	_, ok := dm.values[keyOf[T]()]
	return ok
}

// Len returns the number of stored values.
func (dm *DataMap) Len() int {
	if dm == nil {
		return 0
	}
	return len(dm.values)
}

// Clone returns a shallow copy of dm.
func (dm *DataMap) Clone() *DataMap {
	out := NewDataMap()
	if dm != nil {
		for k, v := range dm.values {
			out.values[k] = v
		}
	}
	return out
}
