package ggmf

import (
	"fmt"
	"io"
	"slices"

	"github.com/cespare/xxhash/v2"
	"github.com/zeebo/xxh3"

	"github.com/logicossoftware/go-ggmf/binio"
)

// DataFunc writes the payload of e to w. It must write exactly e.Size bytes.
type DataFunc func(e Entry, w io.Writer) error

// Function variables for testing injection.
var (
	encodeMetadataFn = encodeMetadata
	encodeTableFn    = encodeTable
)

// Encode writes doc to w using the GGMF v1 layout, calling data once per entry
// in file order to produce its payload.
//
// The document is validated before anything is written. On success Encode
// updates doc in place: entry sizes are derived from their shapes, offsets are
// packed at the configured alignment, and Flags, DataOffset, DataSize and
// HeaderDigest describe the file just written. On error doc is left as it was.
//
// By default, Encode will:
//   - Leave the META and TENS sections uncompressed
//   - Store an explicit offset in every entry record
//   - Omit the CSUM trailer
//
// Use WriteOption functions to customize this behavior:
//   - WithMetadataCompression(comp), WithTableCompression(comp)
//   - WithExplicitOffsets(false): let readers derive offsets
//   - WithChecksums(true): append xxh3 hashes of every payload
//   - WithAlignment(a): override doc.Alignment
//
// Encode returns ErrSizeMismatch if data writes a different number of bytes
// than an entry declares.
func Encode(w io.Writer, doc *Document, data DataFunc, opts ...WriteOption) error {
	cfg := writeConfig{
		limits:          defaultLimits(),
		metaCompression: CompNone,
		tableCompress:   CompNone,
		explicitOffsets: true,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg.limits = cfg.limits.withDefaults()
	log := cfg.logger
	if log == nil {
		log = discardLogger
	}
	if doc == nil {
		return fmt.Errorf("%w: document is nil", ErrValidation)
	}
	out := *doc
	out.Entries = slices.Clone(doc.Entries)
	if cfg.alignment != 0 {
		out.Alignment = cfg.alignment
	}
	if out.Alignment == 0 {
		out.Alignment = DefaultAlignment
	}

	if err := validateDocument(&out, cfg.limits); err != nil {
		return err
	}
	if err := out.layout(); err != nil {
		return err
	}
	if data == nil && len(out.Entries) > 0 {
		return fmt.Errorf("%w: no data callback for %d entries", ErrValidation, len(out.Entries))
	}

	metaBytes, err := encodeMetadataFn(out.Metadata, cfg.limits)
	if err != nil {
		return err
	}
	tableBytes, err := encodeTableFn(out.Entries, cfg.explicitOffsets)
	if err != nil {
		return err
	}

	var flags uint32
	if cfg.checksums {
		flags |= HeaderFlagChecksums
	}
	align := out.alignment()

	digest := xxhash.New()
	hw := binio.NewWriter(io.MultiWriter(w, digest), 0)
	h := fixedHeaderV1{Magic: Magic, Version: VersionV1, Alignment: out.Alignment, Flags: flags}
	if err := writeFixedHeader(hw, h); err != nil {
		return fmt.Errorf("fixed header: %w", err)
	}
	if _, err := writeSection(hw, TagMetadata, cfg.metaCompression, metaBytes, align); err != nil {
		return err
	}
	log.Debug("ggmf: section", "tag", TagMetadata, "raw", len(metaBytes), "compression", cfg.metaCompression)
	if _, err := writeSection(hw, TagTensors, cfg.tableCompress, tableBytes, align); err != nil {
		return err
	}
	log.Debug("ggmf: section", "tag", TagTensors, "raw", len(tableBytes), "compression", cfg.tableCompress)

	dataStart := hw.Offset()
	bw := binio.NewWriter(w, dataStart)
	var sums []uint64
	var hasher *xxh3.Hasher
	if cfg.checksums {
		sums = make([]uint64, 0, len(out.Entries))
		hasher = xxh3.New()
	}
	for _, e := range out.Entries {
		cw := &countingWriter{w: bw, h: hasher}
		if hasher != nil {
			hasher.Reset()
		}
		if err := data(e, cw); err != nil {
			return fmt.Errorf("entry %q: %w", e.Name, err)
		}
		if cw.n != e.Size {
			return fmt.Errorf("%w: entry %q wrote %d bytes, declared %d", ErrSizeMismatch, e.Name, cw.n, e.Size)
		}
		if _, err := bw.Pad(align); err != nil {
			return fmt.Errorf("entry %q padding: %w", e.Name, err)
		}
		if hasher != nil {
			sums = append(sums, hasher.Sum64())
		}
		log.Debug("ggmf: entry", "name", e.Name, "type", e.Type, "offset", e.Offset, "size", e.Size)
	}
	if cfg.checksums {
		if _, err := writeSection(bw, TagChecksums, CompNone, encodeChecksums(sums), align); err != nil {
			return err
		}
		log.Debug("ggmf: section", "tag", TagChecksums, "entries", len(sums))
	}

	out.Version = VersionV1
	out.Flags = flags
	out.DataOffset = dataStart
	out.DataSize = out.dataExtent()
	out.HeaderDigest = digest.Sum64()
	*doc = out
	return nil
}

// EncodeBytes is Encode with payloads taken from a map keyed by entry name.
func EncodeBytes(w io.Writer, doc *Document, payloads map[string][]byte, opts ...WriteOption) error {
	return Encode(w, doc, func(e Entry, w io.Writer) error {
		p, ok := payloads[e.Name]
		if !ok {
			return fmt.Errorf("%w: no payload for %q", ErrNotFound, e.Name)
		}
		return binio.WriteFull(w, p)
	}, opts...)
}

// countingWriter counts and optionally hashes the bytes a DataFunc writes.
type countingWriter struct {
	w io.Writer
	h *xxh3.Hasher
	n uint64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += uint64(n)
	if c.h != nil {
		_, _ = c.h.Write(p[:n])
	}
	if err == nil && n < len(p) {
		err = io.ErrShortWrite
	}
	if err != nil {
		return n, fmt.Errorf("%w: %w", ErrWriteFailure, err)
	}
	return n, nil
}
