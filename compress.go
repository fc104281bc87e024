package ggmf

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// zipEntryName is the single member of a ZIP-compressed section.
const zipEntryName = "section.bin"

// Function variables for testing injection.
var (
	newZstdWriter = func() (*zstd.Encoder, error) { return zstd.NewWriter(nil) }
	newZstdReader = func() (*zstd.Decoder, error) { return zstd.NewReader(nil) }
	zipCreate     = func(zw *zip.Writer, name string) (io.Writer, error) { return zw.Create(name) }
	zipClose      = func(zw *zip.Writer) error { return zw.Close() }
	zipOpen       = func(zf *zip.File) (io.ReadCloser, error) { return zf.Open() }
	readAll       = io.ReadAll
	lz4Close      = func(w *lz4.Writer) error { return w.Close() }
	brotliClose   = func(w *brotli.Writer) error { return w.Close() }
	brotliWrite   = func(w *brotli.Writer, p []byte) (int, error) { return w.Write(p) }
)

// codec packs and unpacks one compression scheme. unpack receives the
// declared uncompressed length and must not produce more than that.
type codec struct {
	pack   func(raw []byte) ([]byte, error)
	unpack func(stored []byte, n uint64) ([]byte, error)
}

var codecs = map[Compression]codec{
	CompZIP:  {zipCompress, zipDecompress},
	CompZSTD: {zstdCompress, zstdDecompress},
	CompLZ4:  {lz4Compress, lz4Decompress},
	CompBR:   {brotliCompress, brotliDecompress},
	CompS2:   {s2Compress, s2Decompress},
}

// compressPayload returns the section flags and stored bytes for raw. Every
// compressed payload is prefixed with its uncompressed length as a u64.
func compressPayload(comp Compression, raw []byte) (uint32, []byte, error) {
	if comp == CompNone {
		return uint32(CompNone), raw, nil
	}
	c, ok := codecs[comp]
	if !ok {
		return 0, nil, fmt.Errorf("%w: unknown compression %d", ErrValidation, comp)
	}
	packed, err := c.pack(raw)
	if err != nil {
		return 0, nil, fmt.Errorf("%s: %w", comp, err)
	}
	stored := make([]byte, 8, 8+len(packed))
	binary.LittleEndian.PutUint64(stored, uint64(len(raw)))
	stored = append(stored, packed...)
	return uint32(comp) | sectionFlagHasUncompressedLen, stored, nil
}

// decompressPayload reverses compressPayload, refusing to inflate past
// maxUncompressed.
func decompressPayload(comp Compression, flags uint32, stored []byte, maxUncompressed uint64) ([]byte, error) {
	hasLen := flags&sectionFlagHasUncompressedLen != 0
	if comp == CompNone {
		if hasLen {
			return nil, fmt.Errorf("%w: uncompressed section carries a length prefix", ErrInvalidPayload)
		}
		return stored, nil
	}
	c, ok := codecs[comp]
	if !ok {
		return nil, fmt.Errorf("%w: unknown compression %d", ErrInvalidPayload, comp)
	}
	if !hasLen {
		return nil, fmt.Errorf("%w: compressed section lacks a length prefix", ErrInvalidPayload)
	}
	if len(stored) < 8 {
		return nil, fmt.Errorf("%w: %d bytes cannot hold a length prefix", ErrInvalidPayload, len(stored))
	}
	n := binary.LittleEndian.Uint64(stored)
	if n > maxUncompressed {
		return nil, fmt.Errorf("%w: section inflates to %d bytes", ErrLimitExceeded, n)
	}
	out, err := c.unpack(stored[8:], n)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidPayload, comp, err)
	}
	if uint64(len(out)) != n {
		return nil, fmt.Errorf("%w: %s inflated to %d bytes, prefix says %d", ErrInvalidPayload, comp, len(out), n)
	}
	return out, nil
}

// inflateLimited reads at most n+1 bytes from r so that overlong streams are
// caught without unbounded allocation.
func inflateLimited(r io.Reader, n uint64, name string) ([]byte, error) {
	b, err := readAll(io.LimitReader(r, int64(n)+1))
	if err != nil {
		return nil, err
	}
	if uint64(len(b)) > n {
		return nil, fmt.Errorf("%s stream longer than %d bytes", name, n)
	}
	return b, nil
}

func zipCompress(raw []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zipCreate(zw, zipEntryName)
	if err == nil {
		_, err = w.Write(raw)
	}
	if cerr := zipClose(zw); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// zipDecompress accepts only an archive holding exactly one regular file
// named zipEntryName of the declared size.
func zipDecompress(stored []byte, n uint64) ([]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(stored), int64(len(stored)))
	if err != nil {
		return nil, err
	}
	if len(zr.File) != 1 {
		return nil, fmt.Errorf("zip holds %d entries, want 1", len(zr.File))
	}
	zf := zr.File[0]
	switch {
	case zf.Name != zipEntryName:
		return nil, fmt.Errorf("zip entry is %q, want %q", zf.Name, zipEntryName)
	case zf.FileInfo().IsDir():
		return nil, fmt.Errorf("zip entry %q is a directory", zf.Name)
	case zf.UncompressedSize64 != n:
		return nil, fmt.Errorf("zip entry holds %d bytes, want %d", zf.UncompressedSize64, n)
	}
	rc, err := zipOpen(zf)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return inflateLimited(rc, n, "zip")
}

func zstdCompress(raw []byte) ([]byte, error) {
	enc, err := newZstdWriter()
	if err != nil {
		return nil, err
	}
	defer enc.Close()
	return enc.EncodeAll(raw, nil), nil
}

func zstdDecompress(stored []byte, n uint64) ([]byte, error) {
	dec, err := newZstdReader()
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	if err := dec.Reset(bytes.NewReader(stored)); err != nil {
		return nil, err
	}
	return inflateLimited(dec, n, "zstd")
}

func lz4Compress(raw []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := lz4.NewWriter(&buf)
	_, err := zw.Write(raw)
	if cerr := lz4Close(zw); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func lz4Decompress(stored []byte, n uint64) ([]byte, error) {
	return inflateLimited(lz4.NewReader(bytes.NewReader(stored)), n, "lz4")
}

func brotliCompress(raw []byte) ([]byte, error) {
	var buf bytes.Buffer
	bw := brotli.NewWriter(&buf)
	_, err := brotliWrite(bw, raw)
	if cerr := brotliClose(bw); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func brotliDecompress(stored []byte, n uint64) ([]byte, error) {
	return inflateLimited(brotli.NewReader(bytes.NewReader(stored)), n, "brotli")
}

func s2Compress(raw []byte) ([]byte, error) {
	return s2.Encode(nil, raw), nil
}

// s2Decompress checks the block's declared length before decoding it.
func s2Decompress(stored []byte, n uint64) ([]byte, error) {
	dl, err := s2.DecodedLen(stored)
	if err != nil {
		return nil, err
	}
	if uint64(dl) > n {
		return nil, fmt.Errorf("s2 block decodes to %d bytes, want at most %d", dl, n)
	}
	return s2.Decode(nil, stored)
}
