package ggmf

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/logicossoftware/go-ggmf/binio"
)

// Keys returns the metadata keys in sorted order.
func (m Metadata) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Uint64 looks up an integer value.
func (m Metadata) Uint64(key string) (uint64, bool) {
	v, ok := m[key]
	if !ok {
		return 0, false
	}
	return v.AsUint64()
}

// String looks up a string value.
func (m Metadata) String(key string) (string, bool) {
	v, ok := m[key]
	if !ok {
		return "", false
	}
	return v.AsString()
}

func encodeMetadata(m Metadata, l Limits) ([]byte, error) {
	if len(m) > l.MaxMetadataKeys {
		return nil, fmt.Errorf("%w: %d metadata keys", ErrLimitExceeded, len(m))
	}
	var buf bytes.Buffer
	if err := binio.WriteU32(&buf, uint32(len(m))); err != nil {
		return nil, err
	}
	for _, k := range m.Keys() {
		v := m[k]
		if err := binio.WriteString(&buf, k); err != nil {
			return nil, err
		}
		if err := binio.WriteU32(&buf, uint32(v.Type)); err != nil {
			return nil, err
		}
		if err := writeValue(&buf, v.Type, v.Value, l, 0); err != nil {
			return nil, fmt.Errorf("metadata %q: %w", k, err)
		}
	}
	return buf.Bytes(), nil
}

func writeValue(w io.Writer, t ValueType, x any, l Limits, depth int) error {
	if !checkGoType(t, x) {
		return fmt.Errorf("%w: value %T does not match type %s", ErrValidation, x, t)
	}
	switch t {
	case ValueUint8:
		return binio.WriteU8(w, x.(uint8))
	case ValueInt8:
		return binio.WriteI8(w, x.(int8))
	case ValueUint16:
		return binio.WriteU16(w, x.(uint16))
	case ValueInt16:
		return binio.WriteI16(w, x.(int16))
	case ValueUint32:
		return binio.WriteU32(w, x.(uint32))
	case ValueInt32:
		return binio.WriteI32(w, x.(int32))
	case ValueUint64:
		return binio.WriteU64(w, x.(uint64))
	case ValueInt64:
		return binio.WriteI64(w, x.(int64))
	case ValueFloat32:
		return binio.WriteF32(w, x.(float32))
	case ValueFloat64:
		return binio.WriteF64(w, x.(float64))
	case ValueBool:
		return binio.WriteBool(w, x.(bool))
	case ValueString:
		s := x.(string)
		if uint64(len(s)) > l.MaxStringLen {
			return fmt.Errorf("%w: string of %d bytes", ErrLimitExceeded, len(s))
		}
		return binio.WriteString(w, s)
	case ValueArray:
		arr := x.(ArrayValue)
		if depth >= l.MaxArrayDepth {
			return fmt.Errorf("%w: arrays nested deeper than %d", ErrLimitExceeded, l.MaxArrayDepth)
		}
		if uint64(len(arr.Values)) > l.MaxArrayLen {
			return fmt.Errorf("%w: array of %d values", ErrLimitExceeded, len(arr.Values))
		}
		if !arr.ElemType.valid() {
			return fmt.Errorf("%w: unsupported array element type %d", ErrValidation, uint32(arr.ElemType))
		}
		if err := binio.WriteU32(w, uint32(arr.ElemType)); err != nil {
			return err
		}
		if err := binio.WriteU64(w, uint64(len(arr.Values))); err != nil {
			return err
		}
		for i, e := range arr.Values {
			if err := writeValue(w, arr.ElemType, e, l, depth+1); err != nil {
				return fmt.Errorf("element %d: %w", i, err)
			}
		}
		return nil
	default:
		return fmt.Errorf("%w: unsupported value type %d", ErrValidation, uint32(t))
	}
}

func decodeMetadata(payload []byte, l Limits) (Metadata, error) {
	r := bytes.NewReader(payload)
	count, err := binio.ReadU32(r)
	if err != nil {
		return nil, fmt.Errorf("metadata count: %w", err)
	}
	if int64(count) > int64(l.MaxMetadataKeys) {
		return nil, fmt.Errorf("%w: %d metadata keys", ErrLimitExceeded, count)
	}
	m := make(Metadata, count)
	for i := range count {
		key, err := readString(r, l)
		if err != nil {
			return nil, fmt.Errorf("metadata key %d: %w", i, err)
		}
		if err := validateName(key); err != nil {
			return nil, fmt.Errorf("%w: metadata key %d: %v", ErrInvalidPayload, i, err)
		}
		if _, dup := m[key]; dup {
			return nil, fmt.Errorf("%w: duplicate metadata key %q", ErrInvalidPayload, key)
		}
		t, err := binio.ReadU32(r)
		if err != nil {
			return nil, fmt.Errorf("metadata %q type: %w", key, err)
		}
		x, err := readValue(r, ValueType(t), l, 0)
		if err != nil {
			return nil, fmt.Errorf("metadata %q: %w", key, err)
		}
		m[key] = Value{Type: ValueType(t), Value: x}
	}
	if r.Len() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes after metadata", ErrInvalidPayload, r.Len())
	}
	return m, nil
}

func readString(r io.Reader, l Limits) (string, error) {
	s, err := binio.ReadStringMax(r, l.MaxStringLen)
	if errors.Is(err, binio.ErrTooLong) {
		return "", fmt.Errorf("%w: %w", ErrLimitExceeded, err)
	}
	return s, err
}

func readValue(r *bytes.Reader, t ValueType, l Limits, depth int) (any, error) {
	switch t {
	case ValueUint8:
		return binio.ReadU8(r)
	case ValueInt8:
		return binio.ReadI8(r)
	case ValueUint16:
		return binio.ReadU16(r)
	case ValueInt16:
		return binio.ReadI16(r)
	case ValueUint32:
		return binio.ReadU32(r)
	case ValueInt32:
		return binio.ReadI32(r)
	case ValueUint64:
		return binio.ReadU64(r)
	case ValueInt64:
		return binio.ReadI64(r)
	case ValueFloat32:
		return binio.ReadF32(r)
	case ValueFloat64:
		return binio.ReadF64(r)
	case ValueBool:
		return binio.ReadBool(r)
	case ValueString:
		return readString(r, l)
	case ValueArray:
		if depth >= l.MaxArrayDepth {
			return nil, fmt.Errorf("%w: arrays nested deeper than %d", ErrLimitExceeded, l.MaxArrayDepth)
		}
		et, err := binio.ReadU32(r)
		if err != nil {
			return nil, err
		}
		elem := ValueType(et)
		if !elem.valid() {
			return nil, fmt.Errorf("%w: unknown array element type %d", ErrInvalidPayload, et)
		}
		n, err := binio.ReadU64(r)
		if err != nil {
			return nil, err
		}
		if n > l.MaxArrayLen {
			return nil, fmt.Errorf("%w: array of %d values", ErrLimitExceeded, n)
		}
		// Every element takes at least one byte.
		if n > uint64(r.Len()) {
			return nil, fmt.Errorf("%w: array of %d values: %w", ErrUnexpectedEOF, n, io.ErrUnexpectedEOF)
		}
		values := make([]any, 0, n)
		for i := range n {
			v, err := readValue(r, elem, l, depth+1)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", i, err)
			}
			values = append(values, v)
		}
		return ArrayValue{ElemType: elem, Values: values}, nil
	default:
		return nil, fmt.Errorf("%w: unknown value type %d", ErrInvalidPayload, uint32(t))
	}
}
