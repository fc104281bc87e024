package ggmf

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"testing"

	"github.com/logicossoftware/go-ggmf/binio"
)

// rawFile assembles a header by hand so tests can store entry records that
// Encode would never produce. dataLen zero bytes follow the TENS section.
func rawFile(t *testing.T, align uint32, flags uint32, meta Metadata, entries []Entry, dataLen int) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := binio.NewWriter(&buf, 0)
	if err := writeFixedHeader(w, fixedHeaderV1{Magic: Magic, Version: VersionV1, Alignment: align, Flags: flags}); err != nil {
		t.Fatal(err)
	}
	mb, err := encodeMetadata(meta, defaultLimits())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := writeSection(w, TagMetadata, CompNone, mb, uint64(align)); err != nil {
		t.Fatal(err)
	}
	tb, err := encodeTable(entries, true)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := writeSection(w, TagTensors, CompNone, tb, uint64(align)); err != nil {
		t.Fatal(err)
	}
	buf.Write(make([]byte, dataLen))
	return buf.Bytes()
}

// onlyReader hides Seek and Size so Decode cannot learn the stream length.
type onlyReader struct{ r io.Reader }

func (o onlyReader) Read(p []byte) (int, error) { return o.r.Read(p) }

func TestDecode_InvalidMagic(t *testing.T) {
	_, _, file := encodeSample(t)
	b := bytes.Clone(file)
	b[0] = 'X'
	_, err := Decode(bytes.NewReader(b))
	if !errors.Is(err, ErrBadMagic) {
		t.Fatalf("expected ErrBadMagic, got %v", err)
	}
}

func TestDecode_UnsupportedVersion(t *testing.T) {
	_, _, file := encodeSample(t)
	b := bytes.Clone(file)
	binary.LittleEndian.PutUint32(b[4:8], 2)
	_, err := Decode(bytes.NewReader(b))
	if !errors.Is(err, ErrUnsupportedVersion) {
		t.Fatalf("expected ErrUnsupportedVersion, got %v", err)
	}
}

func TestDecode_InvalidHeaderFields(t *testing.T) {
	_, _, file := encodeSample(t)
	cases := map[string]func(b []byte){
		"alignment zero":   func(b []byte) { binary.LittleEndian.PutUint32(b[8:12], 0) },
		"alignment not 2^": func(b []byte) { binary.LittleEndian.PutUint32(b[8:12], 24) },
		"unknown flags":    func(b []byte) { binary.LittleEndian.PutUint32(b[12:16], 0x80) },
	}
	for name, patch := range cases {
		t.Run(name, func(t *testing.T) {
			b := bytes.Clone(file)
			patch(b)
			_, err := Decode(bytes.NewReader(b))
			if !errors.Is(err, ErrInvalidHeader) {
				t.Fatalf("expected ErrInvalidHeader, got %v", err)
			}
		})
	}
}

func TestDecode_ShortHeader(t *testing.T) {
	_, _, file := encodeSample(t)
	for _, n := range []int{0, 3, 15, 20} {
		_, err := Decode(bytes.NewReader(file[:n]))
		if !errors.Is(err, ErrUnexpectedEOF) {
			t.Fatalf("n=%d: expected ErrUnexpectedEOF, got %v", n, err)
		}
	}
}

func TestDecode_MalformedSection(t *testing.T) {
	_, _, file := encodeSample(t)
	cases := map[string]func(b []byte){
		"wrong tag":             func(b []byte) { copy(b[16:20], "DATA") },
		"unknown flags":         func(b []byte) { binary.LittleEndian.PutUint32(b[20:24], 0x100) },
		"unknown compression":   func(b []byte) { binary.LittleEndian.PutUint32(b[20:24], 0x7|sectionFlagHasUncompressedLen) },
		"length prefix missing": func(b []byte) { binary.LittleEndian.PutUint32(b[20:24], uint32(CompZSTD)) },
		"prefix without codec":  func(b []byte) { binary.LittleEndian.PutUint32(b[20:24], sectionFlagHasUncompressedLen) },
		"length past end":       func(b []byte) { binary.LittleEndian.PutUint64(b[24:32], uint64(len(b))) },
	}
	for name, patch := range cases {
		t.Run(name, func(t *testing.T) {
			b := bytes.Clone(file)
			patch(b)
			_, err := Decode(bytes.NewReader(b))
			if !errors.Is(err, ErrMalformedSection) {
				t.Fatalf("expected ErrMalformedSection, got %v", err)
			}
		})
	}
}

func TestDecode_TruncatedDataRegion(t *testing.T) {
	doc := NewDocument()
	if _, err := doc.AddEntry("blob", TypeI8, 100); err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := EncodeBytes(&buf, doc, map[string][]byte{"blob": make([]byte, 100)}); err != nil {
		t.Fatal(err)
	}
	file := buf.Bytes()

	half := file[:doc.DataOffset+50]
	if _, err := Decode(bytes.NewReader(half)); !errors.Is(err, ErrTruncatedFile) {
		t.Fatalf("expected ErrTruncatedFile, got %v", err)
	}
	// The last payload is padded too, so a single missing byte is detected.
	short := file[:len(file)-1]
	if _, err := Decode(bytes.NewReader(short)); !errors.Is(err, ErrTruncatedFile) {
		t.Fatalf("expected ErrTruncatedFile, got %v", err)
	}
	// Explicit size on a reader that cannot report one.
	_, err := Decode(onlyReader{bytes.NewReader(half)}, WithStreamSize(int64(len(half))))
	if !errors.Is(err, ErrTruncatedFile) {
		t.Fatalf("expected ErrTruncatedFile, got %v", err)
	}
}

func TestDecode_UnknownSizeDefersTruncation(t *testing.T) {
	doc := NewDocument()
	if _, err := doc.AddEntry("blob", TypeI8, 100); err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := EncodeBytes(&buf, doc, map[string][]byte{"blob": make([]byte, 100)}); err != nil {
		t.Fatal(err)
	}
	r := onlyReader{bytes.NewReader(buf.Bytes()[:doc.DataOffset+50])}
	got, err := Decode(r)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	err = ReadPayloads(r, got, func(Entry, []byte) error { return nil })
	if !errors.Is(err, ErrUnexpectedEOF) {
		t.Fatalf("expected ErrUnexpectedEOF, got %v", err)
	}
}

func TestDecode_TruncatedChecksumTrailer(t *testing.T) {
	_, _, file := encodeSample(t, WithChecksums(true))
	_, err := Decode(bytes.NewReader(file[:len(file)-4]))
	if !errors.Is(err, ErrTruncatedFile) {
		t.Fatalf("expected ErrTruncatedFile, got %v", err)
	}
}

func TestDecode_InvalidEntryTable(t *testing.T) {
	cases := []struct {
		name    string
		entries []Entry
		target  error
	}{
		{"overlap", []Entry{
			{Name: "a", Type: TypeF32, Shape: []uint64{16}, Offset: 0},
			{Name: "b", Type: TypeF32, Shape: []uint64{16}, Offset: 32},
		}, ErrInvalidPayload},
		{"misaligned", []Entry{
			{Name: "a", Type: TypeF32, Shape: []uint64{1}, Offset: 4},
		}, ErrInvalidPayload},
		{"duplicate", []Entry{
			{Name: "a", Type: TypeF32, Shape: []uint64{1}, Offset: 0},
			{Name: "a", Type: TypeF32, Shape: []uint64{1}, Offset: 32},
		}, ErrInvalidPayload},
		{"empty name", []Entry{
			{Name: "", Type: TypeF32, Shape: []uint64{1}},
		}, ErrInvalidPayload},
		{"unknown type", []Entry{
			{Name: "a", Type: ElementType(99), Shape: []uint64{1}},
		}, ErrValidation},
		{"partial block", []Entry{
			{Name: "a", Type: TypeQ8_0, Shape: []uint64{33}},
		}, ErrValidation},
		{"extent overflow", []Entry{
			{Name: "a", Type: TypeI8, Shape: []uint64{64}, Offset: ^uint64(0) &^ 31},
		}, ErrInvalidPayload},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := rawFile(t, 32, 0, Metadata{}, tc.entries, 256)
			_, err := Decode(bytes.NewReader(b))
			if !errors.Is(err, tc.target) {
				t.Fatalf("expected %v, got %v", tc.target, err)
			}
		})
	}
}

func TestDecode_OutOfOrderOffsets(t *testing.T) {
	entries := []Entry{
		{Name: "late", Type: TypeI8, Shape: []uint64{8}, Offset: 32},
		{Name: "early", Type: TypeI8, Shape: []uint64{8}, Offset: 0},
	}
	b := rawFile(t, 32, 0, Metadata{}, entries, 64)
	doc, err := Decode(bytes.NewReader(b))
	if err != nil {
		t.Fatal(err)
	}
	if doc.DataSize != 64 {
		t.Fatalf("data size %d", doc.DataSize)
	}
	if doc.Names()[0] != "late" {
		t.Fatalf("file order lost: %v", doc.Names())
	}
}

func TestDecode_TrailingPayloadBytes(t *testing.T) {
	// META holding a valid empty map plus one stray byte.
	var buf bytes.Buffer
	w := binio.NewWriter(&buf, 0)
	_ = writeFixedHeader(w, fixedHeaderV1{Magic: Magic, Version: VersionV1, Alignment: 32})
	_, _ = writeSection(w, TagMetadata, CompNone, []byte{0, 0, 0, 0, 9}, 32)
	_, _ = writeSection(w, TagTensors, CompNone, []byte{0, 0, 0, 0}, 32)
	_, err := Decode(bytes.NewReader(buf.Bytes()))
	if !errors.Is(err, ErrInvalidPayload) {
		t.Fatalf("expected ErrInvalidPayload, got %v", err)
	}
}

func TestDecode_Limits(t *testing.T) {
	_, _, file := encodeSample(t)
	cases := map[string]Limits{
		"entries":  {MaxEntries: 2},
		"keys":     {MaxMetadataKeys: 3},
		"dims":     {MaxDims: 1},
		"string":   {MaxStringLen: 4},
		"array":    {MaxArrayLen: 2},
		"section":  {MaxSectionLen: 16},
		"datasize": {MaxEntryDataSize: 40},
	}
	for name, l := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(bytes.NewReader(file), WithReadLimits(l))
			if !errors.Is(err, ErrLimitExceeded) {
				t.Fatalf("expected ErrLimitExceeded, got %v", err)
			}
		})
	}
}

func TestDecode_UncompressedLimit(t *testing.T) {
	_, _, file := encodeSample(t, WithMetadataCompression(CompZSTD))
	_, err := Decode(bytes.NewReader(file), WithReadLimits(Limits{MaxUncompressed: 32}))
	if !errors.Is(err, ErrLimitExceeded) {
		t.Fatalf("expected ErrLimitExceeded, got %v", err)
	}
}

func TestDecode_ArrayDepthLimit(t *testing.T) {
	doc := NewDocument()
	inner := Array(ValueUint8, uint8(1))
	doc.Metadata["nested"] = Array(ValueArray, inner.Value)
	var buf bytes.Buffer
	if err := Encode(&buf, doc, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := Decode(bytes.NewReader(buf.Bytes())); err != nil {
		t.Fatal(err)
	}
	_, err := Decode(bytes.NewReader(buf.Bytes()), WithReadLimits(Limits{MaxArrayDepth: 1}))
	if !errors.Is(err, ErrLimitExceeded) {
		t.Fatalf("expected ErrLimitExceeded, got %v", err)
	}
}

func TestDecode_MirrorFailure(t *testing.T) {
	_, _, file := encodeSample(t)
	_, err := Decode(bytes.NewReader(file), WithMirror(errWriter{}))
	if !errors.Is(err, ErrWriteFailure) {
		t.Fatalf("expected ErrWriteFailure, got %v", err)
	}
}
