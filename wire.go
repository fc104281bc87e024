package ggmf

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/logicossoftware/go-ggmf/binio"
)

const sectionHeaderSize = 16

type fixedHeaderV1 struct {
	Magic     [4]byte
	Version   uint32
	Alignment uint32
	Flags     uint32
}

type sectionHeaderV1 struct {
	Tag    SectionTag
	Flags  uint32
	Length uint64
}

func readFixedHeader(r io.Reader) (fixedHeaderV1, error) {
	var buf [fixedHeaderSizeV1]byte
	if err := binio.ReadFull(r, buf[:]); err != nil {
		return fixedHeaderV1{}, err
	}
	var h fixedHeaderV1
	copy(h.Magic[:], buf[0:4])
	h.Version = binary.LittleEndian.Uint32(buf[4:8])
	h.Alignment = binary.LittleEndian.Uint32(buf[8:12])
	h.Flags = binary.LittleEndian.Uint32(buf[12:16])
	return h, nil
}

func writeFixedHeader(w io.Writer, h fixedHeaderV1) error {
	var buf [fixedHeaderSizeV1]byte
	copy(buf[0:4], h.Magic[:])
	binary.LittleEndian.PutUint32(buf[4:8], h.Version)
	binary.LittleEndian.PutUint32(buf[8:12], h.Alignment)
	binary.LittleEndian.PutUint32(buf[12:16], h.Flags)
	return binio.WriteFull(w, buf[:])
}

func validateFixedHeader(h fixedHeaderV1) error {
	if h.Magic != Magic {
		return fmt.Errorf("%w: %q", ErrBadMagic, string(h.Magic[:]))
	}
	if h.Version != VersionV1 {
		return fmt.Errorf("%w: %d", ErrUnsupportedVersion, h.Version)
	}
	if !validAlignment(h.Alignment) {
		return fmt.Errorf("%w: alignment %d is not a power of two", ErrInvalidHeader, h.Alignment)
	}
	if h.Flags&^headerFlagsKnown != 0 {
		return fmt.Errorf("%w: unknown flags %#x", ErrInvalidHeader, h.Flags)
	}
	return nil
}

func validAlignment(a uint32) bool {
	return a != 0 && a&(a-1) == 0
}

func readSectionHeader(r io.Reader) (sectionHeaderV1, error) {
	var buf [sectionHeaderSize]byte
	if err := binio.ReadFull(r, buf[:]); err != nil {
		return sectionHeaderV1{}, err
	}
	var sh sectionHeaderV1
	copy(sh.Tag[:], buf[0:4])
	sh.Flags = binary.LittleEndian.Uint32(buf[4:8])
	sh.Length = binary.LittleEndian.Uint64(buf[8:16])
	return sh, nil
}

func writeSectionHeader(w io.Writer, sh sectionHeaderV1) error {
	var buf [sectionHeaderSize]byte
	copy(buf[0:4], sh.Tag[:])
	binary.LittleEndian.PutUint32(buf[4:8], sh.Flags)
	binary.LittleEndian.PutUint64(buf[8:16], sh.Length)
	return binio.WriteFull(w, buf[:])
}

func (sh sectionHeaderV1) compression() Compression {
	return Compression(sh.Flags & sectionFlagCompressionMask)
}

func (sh sectionHeaderV1) hasUncompressedLen() bool {
	return (sh.Flags & sectionFlagHasUncompressedLen) != 0
}

func validateSectionHeader(sh sectionHeaderV1, expected SectionTag) error {
	if sh.Tag != expected {
		return fmt.Errorf("%w: expected tag %s got %s", ErrMalformedSection, expected, sh.Tag)
	}
	if sh.Flags&^(sectionFlagCompressionMask|sectionFlagHasUncompressedLen) != 0 {
		return fmt.Errorf("%w: unknown flags %#x", ErrMalformedSection, sh.Flags)
	}
	comp := sh.compression()
	switch comp {
	case CompNone, CompZIP, CompZSTD, CompLZ4, CompBR, CompS2:
	default:
		return fmt.Errorf("%w: unknown compression %d", ErrMalformedSection, comp)
	}
	if comp == CompNone {
		if sh.hasUncompressedLen() {
			return fmt.Errorf("%w: COMP_NONE must not set HAS_UNCOMPRESSED_LEN", ErrMalformedSection)
		}
	} else {
		if !sh.hasUncompressedLen() {
			return fmt.Errorf("%w: compressed payload must set HAS_UNCOMPRESSED_LEN", ErrMalformedSection)
		}
	}
	return nil
}
