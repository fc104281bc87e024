package ggmf

import (
	"bytes"
	"fmt"

	"github.com/logicossoftware/go-ggmf/binio"
)

// minEntryRecord is the smallest possible entry record: empty name length,
// type, dim count and flags.
const minEntryRecord = 8 + 4 + 4 + 4

func encodeTable(entries []Entry, explicitOffsets bool) ([]byte, error) {
	var buf bytes.Buffer
	if err := binio.WriteU32(&buf, uint32(len(entries))); err != nil {
		return nil, err
	}
	var flags uint32
	if explicitOffsets {
		flags |= entryFlagExplicitOffset
	}
	for _, e := range entries {
		if err := binio.WriteString(&buf, e.Name); err != nil {
			return nil, err
		}
		if err := binio.WriteU32(&buf, uint32(e.Type)); err != nil {
			return nil, err
		}
		if err := binio.WriteU32(&buf, uint32(len(e.Shape))); err != nil {
			return nil, err
		}
		for _, d := range e.Shape {
			if err := binio.WriteU64(&buf, d); err != nil {
				return nil, err
			}
		}
		if err := binio.WriteU32(&buf, flags); err != nil {
			return nil, err
		}
		if explicitOffsets {
			if err := binio.WriteU64(&buf, e.Offset); err != nil {
				return nil, err
			}
		}
	}
	return buf.Bytes(), nil
}

func decodeTable(payload []byte, align uint64, l Limits) ([]Entry, error) {
	r := bytes.NewReader(payload)
	count, err := binio.ReadU32(r)
	if err != nil {
		return nil, fmt.Errorf("entry count: %w", err)
	}
	if int64(count) > int64(l.MaxEntries) {
		return nil, fmt.Errorf("%w: %d entries", ErrLimitExceeded, count)
	}
	entries := make([]Entry, 0, min(int(count), r.Len()/minEntryRecord))
	var prevEnd uint64
	for i := range count {
		e, err := readEntry(r, l)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		flags, err := binio.ReadU32(r)
		if err != nil {
			return nil, fmt.Errorf("entry %q flags: %w", e.Name, err)
		}
		if flags&^entryFlagExplicitOffset != 0 {
			return nil, fmt.Errorf("%w: entry %q has unknown flags %#x", ErrInvalidPayload, e.Name, flags)
		}
		if flags&entryFlagExplicitOffset != 0 {
			if e.Offset, err = binio.ReadU64(r); err != nil {
				return nil, fmt.Errorf("entry %q offset: %w", e.Name, err)
			}
		} else {
			e.Offset = binio.AlignUp(prevEnd, align)
		}
		prevEnd = e.End()
		entries = append(entries, e)
	}
	if r.Len() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes after entry table", ErrInvalidPayload, r.Len())
	}
	return entries, nil
}

// readEntry reads the name, type and shape of one record.
func readEntry(r *bytes.Reader, l Limits) (Entry, error) {
	name, err := readString(r, l)
	if err != nil {
		return Entry{}, fmt.Errorf("name: %w", err)
	}
	t, err := binio.ReadU32(r)
	if err != nil {
		return Entry{}, fmt.Errorf("entry %q type: %w", name, err)
	}
	ndims, err := binio.ReadU32(r)
	if err != nil {
		return Entry{}, fmt.Errorf("entry %q dims: %w", name, err)
	}
	if int64(ndims) > int64(l.MaxDims) {
		return Entry{}, fmt.Errorf("%w: entry %q has %d dims", ErrLimitExceeded, name, ndims)
	}
	shape := make([]uint64, ndims)
	for d := range ndims {
		if shape[d], err = binio.ReadU64(r); err != nil {
			return Entry{}, fmt.Errorf("entry %q dim %d: %w", name, d, err)
		}
	}
	e := Entry{Name: name, Type: ElementType(t), Shape: shape}
	if e.Size, err = e.Type.ByteSize(shape); err != nil {
		return Entry{}, fmt.Errorf("entry %q: %w", name, err)
	}
	if e.Size > l.MaxEntryDataSize {
		return Entry{}, fmt.Errorf("%w: entry %q holds %d bytes", ErrLimitExceeded, name, e.Size)
	}
	return e, nil
}
