package ggmf

import (
	"io"
	"log/slog"
)

type readConfig struct {
	limits     Limits
	streamSize uint64
	mirror     io.Writer
	logger     *slog.Logger
}

type ReadOption func(*readConfig)

func WithReadLimits(l Limits) ReadOption {
	return func(c *readConfig) { c.limits = l }
}

// WithStreamSize declares the total length of the stream so Decode can bound
// sections and detect truncated data regions on readers that cannot seek.
func WithStreamSize(n int64) ReadOption {
	return func(c *readConfig) {
		if n > 0 {
			c.streamSize = uint64(n)
		}
	}
}

// WithMirror copies every byte Decode consumes to w.
func WithMirror(w io.Writer) ReadOption {
	return func(c *readConfig) { c.mirror = w }
}

// WithReadLogger enables debug records for each decoded section and entry.
func WithReadLogger(l *slog.Logger) ReadOption {
	return func(c *readConfig) { c.logger = l }
}

type writeConfig struct {
	limits          Limits
	metaCompression Compression
	tableCompress   Compression
	explicitOffsets bool
	checksums       bool
	alignment       uint32
	logger          *slog.Logger
	readOpts        []ReadOption
}

type WriteOption func(*writeConfig)

func WithWriteLimits(l Limits) WriteOption {
	return func(c *writeConfig) { c.limits = l }
}

func WithMetadataCompression(comp Compression) WriteOption {
	return func(c *writeConfig) { c.metaCompression = comp }
}

func WithTableCompression(comp Compression) WriteOption {
	return func(c *writeConfig) { c.tableCompress = comp }
}

// WithExplicitOffsets controls whether each entry record stores its data
// offset. When false, readers derive offsets from the previous entry.
func WithExplicitOffsets(v bool) WriteOption {
	return func(c *writeConfig) { c.explicitOffsets = v }
}

// WithChecksums appends a CSUM section holding the xxh3 hash of every payload.
func WithChecksums(v bool) WriteOption {
	return func(c *writeConfig) { c.checksums = v }
}

// WithAlignment overrides Document.Alignment for this write.
func WithAlignment(a uint32) WriteOption {
	return func(c *writeConfig) { c.alignment = a }
}

// WithWriteLogger enables debug records for each written section and entry.
func WithWriteLogger(l *slog.Logger) WriteOption {
	return func(c *writeConfig) { c.logger = l }
}

// WithTranscodeRead sets the options Transcode decodes its source with.
// Encode ignores them.
func WithTranscodeRead(opts ...ReadOption) WriteOption {
	return func(c *writeConfig) { c.readOpts = append(c.readOpts, opts...) }
}

// discardLogger drops everything; used when no logger is configured.
var discardLogger = slog.New(slog.DiscardHandler)
