package ggmf

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/zeebo/xxh3"

	"github.com/logicossoftware/go-ggmf/binio"
)

// checksumSectionSize is the on-disk size of a CSUM trailer for n entries.
func checksumSectionSize(n int, align uint64) uint64 {
	return sectionSize(4+8*uint64(n), align)
}

func encodeChecksums(sums []uint64) []byte {
	b := make([]byte, 0, 4+8*len(sums))
	b = binary.LittleEndian.AppendUint32(b, uint32(len(sums)))
	for _, s := range sums {
		b = binary.LittleEndian.AppendUint64(b, s)
	}
	return b
}

func decodeChecksums(payload []byte, n int) ([]uint64, error) {
	r := bytes.NewReader(payload)
	count, err := binio.ReadU32(r)
	if err != nil {
		return nil, fmt.Errorf("checksum count: %w", err)
	}
	if int64(count) != int64(n) {
		return nil, fmt.Errorf("%w: %d checksums for %d entries", ErrInvalidPayload, count, n)
	}
	sums := make([]uint64, n)
	for i := range sums {
		if sums[i], err = binio.ReadU64(r); err != nil {
			return nil, fmt.Errorf("checksum %d: %w", i, err)
		}
	}
	if r.Len() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes after checksums", ErrInvalidPayload, r.Len())
	}
	return sums, nil
}

// Checksums reads the CSUM trailer that follows the data region and returns
// the stored xxh3 hash of every entry, in file order.
func (d *Document) Checksums(ra io.ReaderAt) ([]uint64, error) {
	if !d.HasChecksums() {
		return nil, ErrNoChecksums
	}
	align := d.alignment()
	start := d.DataOffset + d.DataSize
	size := checksumSectionSize(len(d.Entries), align)
	sr := io.NewSectionReader(ra, int64(start), int64(size))
	br := binio.NewReader(sr, start)
	bounds := sectionBounds{
		streamSize:      start + size,
		maxStored:       size,
		maxUncompressed: size,
	}
	payload, sh, err := readSection(br, TagChecksums, align, bounds)
	if err != nil {
		return nil, err
	}
	if sh.compression() != CompNone {
		return nil, fmt.Errorf("%w: CSUM section must not be compressed", ErrMalformedSection)
	}
	return decodeChecksums(payload, len(d.Entries))
}

// Verify hashes every payload and compares it with the CSUM trailer. It
// returns ErrNoChecksums when the file was written without one.
func Verify(ra io.ReaderAt, doc *Document) error {
	sums, err := doc.Checksums(ra)
	if err != nil {
		return err
	}
	h := xxh3.New()
	for i, e := range doc.Entries {
		sr, err := doc.SectionReader(ra, e.Name)
		if err != nil {
			return err
		}
		h.Reset()
		n, err := io.Copy(h, sr)
		if err != nil {
			return fmt.Errorf("entry %q: %w", e.Name, err)
		}
		if uint64(n) != e.Size {
			return fmt.Errorf("%w: entry %q: %w", ErrUnexpectedEOF, e.Name, io.ErrUnexpectedEOF)
		}
		if got := h.Sum64(); got != sums[i] {
			return fmt.Errorf("%w: entry %q has %#016x, want %#016x", ErrChecksumMismatch, e.Name, got, sums[i])
		}
	}
	return nil
}
