// Package jsonmeta converts GGMF metadata to and from a typed JSON form that
// survives a round trip without losing integer width or float precision.
// Non-finite floats are written as the strings "NaN", "+Inf" and "-Inf"; NaN
// payload bits are not kept.
package jsonmeta

import (
	"fmt"
	"math"

	"github.com/goccy/go-json"

	"github.com/logicossoftware/go-ggmf"
)

// Value is a typed metadata value. Arrays carry their element type in Elem;
// nested arrays hold a list of Value.
type Value struct {
	Type  string          `json:"type"`
	Elem  string          `json:"elem,omitempty"`
	Value json.RawMessage `json:"value"`
}

// FromMetadata converts every key of md.
func FromMetadata(md ggmf.Metadata) (map[string]Value, error) {
	out := make(map[string]Value, len(md))
	for _, k := range md.Keys() {
		v, err := FromValue(md[k])
		if err != nil {
			return nil, fmt.Errorf("metadata %q: %w", k, err)
		}
		out[k] = v
	}
	return out, nil
}

// ToMetadata is the inverse of FromMetadata.
func ToMetadata(in map[string]Value) (ggmf.Metadata, error) {
	md := make(ggmf.Metadata, len(in))
	for k, mv := range in {
		v, err := ToValue(mv)
		if err != nil {
			return nil, fmt.Errorf("metadata %q: %w", k, err)
		}
		md[k] = v
	}
	return md, nil
}

func FromValue(v ggmf.Value) (Value, error) {
	mv := Value{Type: v.Type.String()}
	payload := floatJSON(v.Value)
	if arr, ok := v.AsArray(); ok {
		mv.Elem = arr.ElemType.String()
		if arr.ElemType == ggmf.ValueArray {
			items := make([]Value, len(arr.Values))
			for i, item := range arr.Values {
				nested, err := FromValue(ggmf.Value{Type: ggmf.ValueArray, Value: item})
				if err != nil {
					return Value{}, err
				}
				items[i] = nested
			}
			payload = items
		} else {
			items := make([]any, len(arr.Values))
			for i, item := range arr.Values {
				items[i] = floatJSON(item)
			}
			payload = items
		}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Value{}, err
	}
	mv.Value = raw
	return mv, nil
}

func ToValue(mv Value) (ggmf.Value, error) {
	typ, ok := ggmf.ParseValueType(mv.Type)
	if !ok {
		return ggmf.Value{}, fmt.Errorf("unknown value type %q", mv.Type)
	}
	if typ != ggmf.ValueArray {
		x, err := decodeScalar(typ, mv.Value)
		if err != nil {
			return ggmf.Value{}, err
		}
		return ggmf.Value{Type: typ, Value: x}, nil
	}

	elem, ok := ggmf.ParseValueType(mv.Elem)
	if !ok {
		return ggmf.Value{}, fmt.Errorf("unknown array element type %q", mv.Elem)
	}
	var values []any
	if elem == ggmf.ValueArray {
		var items []Value
		if err := json.Unmarshal(mv.Value, &items); err != nil {
			return ggmf.Value{}, err
		}
		for _, item := range items {
			nested, err := ToValue(item)
			if err != nil {
				return ggmf.Value{}, err
			}
			arr, ok := nested.AsArray()
			if !ok {
				return ggmf.Value{}, fmt.Errorf("nested element of type %s is not an array", item.Type)
			}
			values = append(values, arr)
		}
	} else {
		var raws []json.RawMessage
		if err := json.Unmarshal(mv.Value, &raws); err != nil {
			return ggmf.Value{}, err
		}
		for _, raw := range raws {
			x, err := decodeScalar(elem, raw)
			if err != nil {
				return ggmf.Value{}, err
			}
			values = append(values, x)
		}
	}
	return ggmf.Array(elem, values...), nil
}

func decodeScalar(typ ggmf.ValueType, raw json.RawMessage) (any, error) {
	switch typ {
	case ggmf.ValueUint8:
		return scalar[uint8](raw)
	case ggmf.ValueInt8:
		return scalar[int8](raw)
	case ggmf.ValueUint16:
		return scalar[uint16](raw)
	case ggmf.ValueInt16:
		return scalar[int16](raw)
	case ggmf.ValueUint32:
		return scalar[uint32](raw)
	case ggmf.ValueInt32:
		return scalar[int32](raw)
	case ggmf.ValueUint64:
		return scalar[uint64](raw)
	case ggmf.ValueInt64:
		return scalar[int64](raw)
	case ggmf.ValueFloat32:
		return floatScalar[float32](raw)
	case ggmf.ValueFloat64:
		return floatScalar[float64](raw)
	case ggmf.ValueBool:
		return scalar[bool](raw)
	case ggmf.ValueString:
		return scalar[string](raw)
	default:
		return nil, fmt.Errorf("value type %s is not a scalar", typ)
	}
}

func scalar[T any](raw json.RawMessage) (any, error) {
	var x T
	if err := json.Unmarshal(raw, &x); err != nil {
		return nil, err
	}
	return x, nil
}

// floatJSON replaces a non-finite float32 or float64 with its string name.
// Anything else is returned unchanged.
func floatJSON(x any) any {
	var f float64
	switch v := x.(type) {
	case float32:
		f = float64(v)
	case float64:
		f = v
	default:
		return x
	}
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "+Inf"
	case math.IsInf(f, -1):
		return "-Inf"
	}
	return x
}

func floatScalar[T float32 | float64](raw json.RawMessage) (any, error) {
	var name string
	if err := json.Unmarshal(raw, &name); err != nil {
		return scalar[T](raw)
	}
	switch name {
	case "NaN":
		return T(math.NaN()), nil
	case "+Inf", "Inf":
		return T(math.Inf(1)), nil
	case "-Inf":
		return T(math.Inf(-1)), nil
	}
	return nil, fmt.Errorf("float value %q is not a number", name)
}
