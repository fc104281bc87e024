package ggmf

import (
	"fmt"
	"math"
)

// ValueType tags a metadata value on the wire.
type ValueType uint32

const (
	ValueUint8   ValueType = 0
	ValueInt8    ValueType = 1
	ValueUint16  ValueType = 2
	ValueInt16   ValueType = 3
	ValueUint32  ValueType = 4
	ValueInt32   ValueType = 5
	ValueFloat32 ValueType = 6
	ValueBool    ValueType = 7
	ValueString  ValueType = 8
	ValueArray   ValueType = 9
	ValueUint64  ValueType = 10
	ValueInt64   ValueType = 11
	ValueFloat64 ValueType = 12
)

func (t ValueType) String() string {
	switch t {
	case ValueUint8:
		return "u8"
	case ValueInt8:
		return "i8"
	case ValueUint16:
		return "u16"
	case ValueInt16:
		return "i16"
	case ValueUint32:
		return "u32"
	case ValueInt32:
		return "i32"
	case ValueUint64:
		return "u64"
	case ValueInt64:
		return "i64"
	case ValueFloat32:
		return "f32"
	case ValueFloat64:
		return "f64"
	case ValueBool:
		return "bool"
	case ValueString:
		return "string"
	case ValueArray:
		return "array"
	default:
		return fmt.Sprintf("type(%d)", uint32(t))
	}
}

func (t ValueType) valid() bool { return t <= ValueFloat64 }

// ParseValueType maps a name produced by ValueType.String back to its id.
func ParseValueType(name string) (ValueType, bool) {
	for t := ValueUint8; t <= ValueFloat64; t++ {
		if t.String() == name {
			return t, true
		}
	}
	return 0, false
}

// ArrayValue is the payload of a ValueArray. Values hold the Go type matching
// ElemType (for nested arrays, ArrayValue).
type ArrayValue struct {
	ElemType ValueType
	Values   []any
}

// Value is one typed metadata value. Value holds uint8, int8, uint16, int16,
// uint32, int32, uint64, int64, float32, float64, bool, string or ArrayValue
// according to Type.
type Value struct {
	Type  ValueType
	Value any
}

// Metadata maps unique keys to typed values.
type Metadata map[string]Value

func Uint8(v uint8) Value     { return Value{ValueUint8, v} }
func Int8(v int8) Value       { return Value{ValueInt8, v} }
func Uint16(v uint16) Value   { return Value{ValueUint16, v} }
func Int16(v int16) Value     { return Value{ValueInt16, v} }
func Uint32(v uint32) Value   { return Value{ValueUint32, v} }
func Int32(v int32) Value     { return Value{ValueInt32, v} }
func Uint64(v uint64) Value   { return Value{ValueUint64, v} }
func Int64(v int64) Value     { return Value{ValueInt64, v} }
func Float32(v float32) Value { return Value{ValueFloat32, v} }
func Float64(v float64) Value { return Value{ValueFloat64, v} }
func Bool(v bool) Value       { return Value{ValueBool, v} }
func String(v string) Value   { return Value{ValueString, v} }

// Array builds an array value. Each element must match elem.
func Array(elem ValueType, values ...any) Value {
	return Value{ValueArray, ArrayValue{ElemType: elem, Values: values}}
}

// Strings builds a string array.
func Strings(values ...string) Value {
	out := make([]any, len(values))
	for i, s := range values {
		out[i] = s
	}
	return Array(ValueString, out...)
}

// AsUint64 converts any non-negative integer value.
func (v Value) AsUint64() (uint64, bool) {
	switch t := v.Value.(type) {
	case uint8:
		return uint64(t), true
	case uint16:
		return uint64(t), true
	case uint32:
		return uint64(t), true
	case uint64:
		return t, true
	case int8, int16, int32, int64:
		i, _ := v.AsInt64()
		if i < 0 {
			return 0, false
		}
		return uint64(i), true
	default:
		return 0, false
	}
}

// AsInt64 converts any integer value that fits in an int64.
func (v Value) AsInt64() (int64, bool) {
	switch t := v.Value.(type) {
	case int8:
		return int64(t), true
	case int16:
		return int64(t), true
	case int32:
		return int64(t), true
	case int64:
		return t, true
	case uint8:
		return int64(t), true
	case uint16:
		return int64(t), true
	case uint32:
		return int64(t), true
	case uint64:
		if t > math.MaxInt64 {
			return 0, false
		}
		return int64(t), true
	default:
		return 0, false
	}
}

func (v Value) AsFloat64() (float64, bool) {
	switch t := v.Value.(type) {
	case float32:
		return float64(t), true
	case float64:
		return t, true
	}
	if i, ok := v.AsInt64(); ok {
		return float64(i), true
	}
	return 0, false
}

func (v Value) AsString() (string, bool) {
	s, ok := v.Value.(string)
	return s, ok
}

func (v Value) AsBool() (bool, bool) {
	b, ok := v.Value.(bool)
	return b, ok
}

func (v Value) AsArray() (ArrayValue, bool) {
	a, ok := v.Value.(ArrayValue)
	return a, ok
}

// checkGoType reports whether x has the Go type that t encodes to.
func checkGoType(t ValueType, x any) bool {
	switch t {
	case ValueUint8:
		_, ok := x.(uint8)
		return ok
	case ValueInt8:
		_, ok := x.(int8)
		return ok
	case ValueUint16:
		_, ok := x.(uint16)
		return ok
	case ValueInt16:
		_, ok := x.(int16)
		return ok
	case ValueUint32:
		_, ok := x.(uint32)
		return ok
	case ValueInt32:
		_, ok := x.(int32)
		return ok
	case ValueUint64:
		_, ok := x.(uint64)
		return ok
	case ValueInt64:
		_, ok := x.(int64)
		return ok
	case ValueFloat32:
		_, ok := x.(float32)
		return ok
	case ValueFloat64:
		_, ok := x.(float64)
		return ok
	case ValueBool:
		_, ok := x.(bool)
		return ok
	case ValueString:
		_, ok := x.(string)
		return ok
	case ValueArray:
		_, ok := x.(ArrayValue)
		return ok
	default:
		return false
	}
}
