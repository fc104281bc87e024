package ggmf

import (
	"fmt"
	"math/bits"
)

// ElementType is a ggml tensor type id.
type ElementType uint32

const (
	TypeF32  ElementType = 0
	TypeF16  ElementType = 1
	TypeQ4_0 ElementType = 2
	TypeQ4_1 ElementType = 3
	TypeQ5_0 ElementType = 6
	TypeQ5_1 ElementType = 7
	TypeQ8_0 ElementType = 8
	TypeQ8_1 ElementType = 9
	TypeQ2_K ElementType = 10
	TypeQ3_K ElementType = 11
	TypeQ4_K ElementType = 12
	TypeQ5_K ElementType = 13
	TypeQ6_K ElementType = 14
	TypeQ8_K ElementType = 15
	TypeI8   ElementType = 24
	TypeI16  ElementType = 25
	TypeI32  ElementType = 26
	TypeI64  ElementType = 27
	TypeF64  ElementType = 28
	TypeBF16 ElementType = 30
)

type typeTraits struct {
	name      string
	blockSize uint64 // elements per block
	typeSize  uint64 // bytes per block
}

var elementTraits = map[ElementType]typeTraits{
	TypeF32:  {"F32", 1, 4},
	TypeF16:  {"F16", 1, 2},
	TypeQ4_0: {"Q4_0", 32, 18},
	TypeQ4_1: {"Q4_1", 32, 20},
	TypeQ5_0: {"Q5_0", 32, 22},
	TypeQ5_1: {"Q5_1", 32, 24},
	TypeQ8_0: {"Q8_0", 32, 34},
	TypeQ8_1: {"Q8_1", 32, 36},
	TypeQ2_K: {"Q2_K", 256, 84},
	TypeQ3_K: {"Q3_K", 256, 110},
	TypeQ4_K: {"Q4_K", 256, 144},
	TypeQ5_K: {"Q5_K", 256, 176},
	TypeQ6_K: {"Q6_K", 256, 210},
	TypeQ8_K: {"Q8_K", 256, 292},
	TypeI8:   {"I8", 1, 1},
	TypeI16:  {"I16", 1, 2},
	TypeI32:  {"I32", 1, 4},
	TypeI64:  {"I64", 1, 8},
	TypeF64:  {"F64", 1, 8},
	TypeBF16: {"BF16", 1, 2},
}

func (t ElementType) String() string {
	if tr, ok := elementTraits[t]; ok {
		return tr.name
	}
	return fmt.Sprintf("type(%d)", uint32(t))
}

// Known reports whether t has a defined block layout.
func (t ElementType) Known() bool {
	_, ok := elementTraits[t]
	return ok
}

// BlockSize is the number of elements encoded per block.
func (t ElementType) BlockSize() uint64 { return elementTraits[t].blockSize }

// TypeSize is the number of bytes per block.
func (t ElementType) TypeSize() uint64 { return elementTraits[t].typeSize }

// ParseElementType maps a name such as "F32" or "Q4_K" back to its id.
func ParseElementType(name string) (ElementType, bool) {
	for t, tr := range elementTraits {
		if tr.name == name {
			return t, true
		}
	}
	return 0, false
}

// ByteSize returns the payload size of a tensor of type t with the given
// shape. It fails for unknown types, zero dimensions, element counts that do
// not fill whole blocks, and sizes that overflow uint64.
func (t ElementType) ByteSize(shape []uint64) (uint64, error) {
	tr, ok := elementTraits[t]
	if !ok {
		return 0, fmt.Errorf("%w: unknown element type %d", ErrValidation, uint32(t))
	}
	n := uint64(1)
	for i, d := range shape {
		if d == 0 {
			return 0, fmt.Errorf("%w: dimension %d is zero", ErrValidation, i)
		}
		hi, lo := bits.Mul64(n, d)
		if hi != 0 {
			return 0, fmt.Errorf("%w: element count overflows", ErrValidation)
		}
		n = lo
	}
	if n%tr.blockSize != 0 {
		return 0, fmt.Errorf("%w: %d elements is not a multiple of %s block size %d", ErrValidation, n, tr.name, tr.blockSize)
	}
	hi, size := bits.Mul64(n/tr.blockSize, tr.typeSize)
	if hi != 0 {
		return 0, fmt.Errorf("%w: byte size overflows", ErrValidation)
	}
	return size, nil
}
