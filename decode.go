package ggmf

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/bits"

	"github.com/cespare/xxhash/v2"

	"github.com/logicossoftware/go-ggmf/binio"
)

// Decode reads the header of a GGMF file from r.
//
// The decoding process:
//  1. Reads and validates the 16-byte fixed header
//  2. Reads the META section into Metadata
//  3. Reads the TENS section into Entries, deriving implicit offsets
//  4. Validates entries and checks the data region against the stream size
//
// Payloads are not loaded. On success r is positioned at the start of the
// data region (Document.DataOffset), so ReadPayloads can continue from it.
//
// The stream size is taken from WithStreamSize, or from r itself when it is
// an io.Seeker or has a Size() int64 method. When it is known, Decode returns
// ErrTruncatedFile if the entry table points past the end. When it is not,
// truncation surfaces as ErrUnexpectedEOF once the payloads are read.
//
// Every byte consumed is hashed into Document.HeaderDigest and copied to the
// WithMirror writer if one is set.
func Decode(r io.Reader, opts ...ReadOption) (*Document, error) {
	cfg := readConfig{limits: defaultLimits()}
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg.limits = cfg.limits.withDefaults()
	if cfg.logger == nil {
		cfg.logger = discardLogger
	}
	if cfg.streamSize == 0 {
		size, err := streamSize(r)
		if err != nil {
			return nil, err
		}
		cfg.streamSize = size
	}

	digest := xxhash.New()
	var sink io.Writer = digest
	if cfg.mirror != nil {
		sink = io.MultiWriter(digest, cfg.mirror)
	}
	br := binio.NewReader(binio.NewTeeReader(r, sink), 0)

	doc, err := decodeHeader(br, cfg)
	if err != nil {
		return nil, err
	}
	doc.HeaderDigest = digest.Sum64()
	return doc, nil
}

func decodeHeader(br *binio.Reader, cfg readConfig) (*Document, error) {
	log := cfg.logger
	h, err := readFixedHeader(br)
	if err != nil {
		return nil, fmt.Errorf("fixed header: %w", err)
	}
	if err := validateFixedHeader(h); err != nil {
		return nil, err
	}
	align := uint64(h.Alignment)
	log.Debug("ggmf: fixed header", "version", h.Version, "alignment", h.Alignment, "flags", h.Flags)

	bounds := cfg.limits.sectionBounds(cfg.streamSize)
	metaPayload, metaSec, err := readSection(br, TagMetadata, align, bounds)
	if err != nil {
		return nil, err
	}
	metadata, err := decodeMetadata(metaPayload, cfg.limits)
	if err != nil {
		return nil, err
	}
	log.Debug("ggmf: section", "tag", TagMetadata, "stored", metaSec.Length, "compression", metaSec.compression(), "keys", len(metadata))

	tablePayload, tableSec, err := readSection(br, TagTensors, align, bounds)
	if err != nil {
		return nil, err
	}
	entries, err := decodeTable(tablePayload, align, cfg.limits)
	if err != nil {
		return nil, err
	}
	log.Debug("ggmf: section", "tag", TagTensors, "stored", tableSec.Length, "compression", tableSec.compression(), "entries", len(entries))

	if err := validateEntries(entries, align); err != nil {
		return nil, err
	}

	doc := &Document{
		Version:    h.Version,
		Alignment:  h.Alignment,
		Metadata:   metadata,
		Entries:    entries,
		Flags:      h.Flags,
		DataOffset: br.Offset(),
	}
	doc.DataSize = doc.dataExtent()

	extent, carry := bits.Add64(doc.DataOffset, doc.DataSize, 0)
	if doc.HasChecksums() {
		var c uint64
		extent, c = bits.Add64(extent, checksumSectionSize(len(entries), align), 0)
		carry |= c
	}
	if carry != 0 {
		return nil, fmt.Errorf("%w: data region overflows", ErrInvalidPayload)
	}
	if cfg.streamSize > 0 && extent > cfg.streamSize {
		return nil, fmt.Errorf("%w: file needs %d bytes, stream has %d", ErrTruncatedFile, extent, cfg.streamSize)
	}

	if log.Enabled(context.Background(), slog.LevelDebug) {
		for _, e := range entries {
			log.Debug("ggmf: entry", "name", e.Name, "type", e.Type, "shape", e.Shape, "offset", e.Offset, "size", e.Size)
		}
	}
	return doc, nil
}

// HasChecksums reports whether the file carries a CSUM trailer.
func (d *Document) HasChecksums() bool {
	return d.Flags&HeaderFlagChecksums != 0
}

type sizer interface {
	Size() int64
}

// streamSize reports how many bytes remain in r, or 0 when r cannot tell.
func streamSize(r io.Reader) (uint64, error) {
	switch s := r.(type) {
	case io.Seeker:
		cur, err := s.Seek(0, io.SeekCurrent)
		if err != nil {
			return 0, nil
		}
		end, err := s.Seek(0, io.SeekEnd)
		if err != nil {
			return 0, err
		}
		if _, err := s.Seek(cur, io.SeekStart); err != nil {
			return 0, err
		}
		if end <= cur {
			return 0, nil
		}
		return uint64(end - cur), nil
	case sizer:
		if n := s.Size(); n > 0 {
			return uint64(n), nil
		}
	}
	return 0, nil
}
