package ggmf

import (
	"fmt"

	"github.com/logicossoftware/go-ggmf/binio"
)

// sectionBounds caps what a single section frame may claim.
type sectionBounds struct {
	// streamSize is the total stream length, or 0 when unknown.
	streamSize      uint64
	maxStored       uint64
	maxUncompressed uint64
}

// readSection reads one frame with the expected tag, returns its
// decompressed payload and leaves r at the next alignment boundary.
func readSection(r *binio.Reader, tag SectionTag, align uint64, b sectionBounds) ([]byte, sectionHeaderV1, error) {
	sh, err := readSectionHeader(r)
	if err != nil {
		return nil, sh, fmt.Errorf("section %s header: %w", tag, err)
	}
	if err := validateSectionHeader(sh, tag); err != nil {
		return nil, sh, err
	}
	if b.streamSize > 0 {
		var remaining uint64
		if off := r.Offset(); off < b.streamSize {
			remaining = b.streamSize - off
		}
		if sh.Length > remaining {
			return nil, sh, fmt.Errorf("%w: section %s declares %d bytes, %d remain", ErrMalformedSection, tag, sh.Length, remaining)
		}
	}
	if sh.Length > b.maxStored {
		return nil, sh, fmt.Errorf("%w: section %s length %d", ErrLimitExceeded, tag, sh.Length)
	}
	stored, err := binio.ReadBytes(r, int(sh.Length))
	if err != nil {
		return nil, sh, fmt.Errorf("section %s payload: %w", tag, err)
	}
	if _, err := r.Align(align); err != nil {
		return nil, sh, fmt.Errorf("section %s padding: %w", tag, err)
	}
	payload, err := decompressPayload(sh.compression(), sh.Flags, stored, b.maxUncompressed)
	if err != nil {
		return nil, sh, fmt.Errorf("section %s: %w", tag, err)
	}
	return payload, sh, nil
}

// writeSection emits a frame, its payload and zero padding up to align. It
// returns the number of padding bytes written.
func writeSection(w *binio.Writer, tag SectionTag, comp Compression, payload []byte, align uint64) (uint64, error) {
	flags, stored, err := compressPayload(comp, payload)
	if err != nil {
		return 0, fmt.Errorf("section %s: %w", tag, err)
	}
	sh := sectionHeaderV1{Tag: tag, Flags: flags, Length: uint64(len(stored))}
	if err := writeSectionHeader(w, sh); err != nil {
		return 0, fmt.Errorf("section %s header: %w", tag, err)
	}
	if err := binio.WriteFull(w, stored); err != nil {
		return 0, fmt.Errorf("section %s payload: %w", tag, err)
	}
	pad, err := w.Pad(align)
	if err != nil {
		return 0, fmt.Errorf("section %s padding: %w", tag, err)
	}
	return pad, nil
}

// sectionSize is the on-disk size of a frame including padding, assuming it
// starts at an aligned position.
func sectionSize(payloadLen, align uint64) uint64 {
	return binio.AlignUp(sectionHeaderSize+payloadLen, align)
}
