package ggmf

import (
	"fmt"
	"math/bits"
	"slices"

	"github.com/logicossoftware/go-ggmf/binio"
)

const (
	VersionV1 uint32 = 1

	// DefaultAlignment is used when a Document leaves Alignment at zero.
	DefaultAlignment uint32 = 32

	fixedHeaderSizeV1 = 16
)

// Magic is the 4-byte GGMF file signature.
var Magic = [4]byte{'G', 'G', 'M', 'F'}

const (
	// HeaderFlagChecksums marks a file that ends with a CSUM section.
	HeaderFlagChecksums uint32 = 0x0001

	headerFlagsKnown = HeaderFlagChecksums
)

// SectionTag identifies a section frame.
type SectionTag [4]byte

var (
	TagMetadata  = SectionTag{'M', 'E', 'T', 'A'}
	TagTensors   = SectionTag{'T', 'E', 'N', 'S'}
	TagChecksums = SectionTag{'C', 'S', 'U', 'M'}
)

func (t SectionTag) String() string { return fmt.Sprintf("%q", string(t[:])) }

type Compression uint32

const (
	CompNone Compression = 0x0
	CompZIP  Compression = 0x1
	CompZSTD Compression = 0x2
	CompLZ4  Compression = 0x3
	CompBR   Compression = 0x4
	CompS2   Compression = 0x5
)

func (c Compression) String() string {
	switch c {
	case CompNone:
		return "none"
	case CompZIP:
		return "zip"
	case CompZSTD:
		return "zstd"
	case CompLZ4:
		return "lz4"
	case CompBR:
		return "br"
	case CompS2:
		return "s2"
	default:
		return "unknown"
	}
}

// ParseCompression maps the names returned by String back to values.
func ParseCompression(name string) (Compression, bool) {
	for c := CompNone; c <= CompS2; c++ {
		if c.String() == name {
			return c, true
		}
	}
	return 0, false
}

const (
	sectionFlagCompressionMask    uint32 = 0x000F
	sectionFlagHasUncompressedLen uint32 = 0x0010

	entryFlagExplicitOffset uint32 = 0x0001
)

// Entry describes one tensor. Offset is relative to the start of the data
// region and Size is the payload length in bytes.
type Entry struct {
	Name   string
	Type   ElementType
	Shape  []uint64
	Offset uint64
	Size   uint64
}

// End is the first byte past the entry's payload, relative to the data region.
func (e Entry) End() uint64 { return e.Offset + e.Size }

// Elements is the product of the shape.
func (e Entry) Elements() uint64 {
	n := uint64(1)
	for _, d := range e.Shape {
		n *= d
	}
	return n
}

// Document is the decoded form of a GGMF file.
//
// Entries are kept in file order. Flags, DataOffset, DataSize and
// HeaderDigest are filled in by Decode and ignored by Encode.
type Document struct {
	Version   uint32
	Alignment uint32
	Metadata  Metadata
	Entries   []Entry

	Flags uint32
	// DataOffset is the absolute position of the data region.
	DataOffset uint64
	// DataSize is the length of the data region including trailing padding.
	DataSize uint64
	// HeaderDigest is the xxHash64 of every byte before the data region.
	HeaderDigest uint64
}

// NewDocument returns an empty version 1 document with default alignment.
func NewDocument() *Document {
	return &Document{
		Version:   VersionV1,
		Alignment: DefaultAlignment,
		Metadata:  Metadata{},
	}
}

func (d *Document) alignment() uint64 {
	if d.Alignment == 0 {
		return uint64(DefaultAlignment)
	}
	return uint64(d.Alignment)
}

// Entry looks up an entry by name.
func (d *Document) Entry(name string) (Entry, error) {
	i := d.index(name)
	if i < 0 {
		return Entry{}, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return d.Entries[i], nil
}

func (d *Document) index(name string) int {
	return slices.IndexFunc(d.Entries, func(e Entry) bool { return e.Name == name })
}

// Names returns entry names in file order.
func (d *Document) Names() []string {
	out := make([]string, len(d.Entries))
	for i, e := range d.Entries {
		out[i] = e.Name
	}
	return out
}

// AddEntry appends an entry placed at the aligned end of the previous one.
func (d *Document) AddEntry(name string, typ ElementType, shape ...uint64) (Entry, error) {
	if name == "" {
		return Entry{}, fmt.Errorf("%w: entry name is empty", ErrValidation)
	}
	if d.index(name) >= 0 {
		return Entry{}, fmt.Errorf("%w: duplicate entry %q", ErrValidation, name)
	}
	size, err := typ.ByteSize(shape)
	if err != nil {
		return Entry{}, fmt.Errorf("entry %q: %w", name, err)
	}
	var off uint64
	if n := len(d.Entries); n > 0 {
		off = binio.AlignUp(d.Entries[n-1].End(), d.alignment())
	}
	e := Entry{Name: name, Type: typ, Shape: slices.Clone(shape), Offset: off, Size: size}
	d.Entries = append(d.Entries, e)
	return e, nil
}

// layout assigns sizes from shapes and packs offsets in file order.
func (d *Document) layout() error {
	align := d.alignment()
	var cur uint64
	for i := range d.Entries {
		e := &d.Entries[i]
		size, err := e.Type.ByteSize(e.Shape)
		if err != nil {
			return fmt.Errorf("entry %q: %w", e.Name, err)
		}
		if e.Size != 0 && e.Size != size {
			return fmt.Errorf("%w: entry %q declares %d bytes, shape needs %d", ErrValidation, e.Name, e.Size, size)
		}
		e.Size = size
		e.Offset = binio.AlignUp(cur, align)
		next, carry := bits.Add64(e.Offset, size, 0)
		if carry != 0 {
			return fmt.Errorf("%w: data region overflows", ErrLimitExceeded)
		}
		cur = next
	}
	return nil
}

// dataExtent is the aligned end of the furthest payload.
func (d *Document) dataExtent() uint64 {
	var end uint64
	for _, e := range d.Entries {
		end = max(end, e.End())
	}
	return binio.AlignUp(end, d.alignment())
}
