// Package ggmf implements GGMF, a chunked, self-describing container for
// tensor files in the style of GGML/GGUF model weights.
//
// A GGMF file stores a typed metadata map and an ordered table of named
// entries, each with an element type, a shape and a byte range in an aligned
// data region. Readers can decode the header, then load payloads lazily
// through an io.ReaderAt or stream them in file order.
//
// # File Format Overview
//
// A GGMF file consists of:
//   - A 16-byte fixed header with magic bytes, version, alignment and flags
//   - A META section holding the metadata map
//   - A TENS section holding the entry table
//   - The data region, with every payload starting on an alignment boundary
//   - An optional CSUM section with the xxh3 hash of every payload
//
// Sections are framed by a 4-byte tag, a flags word and a 64-bit length, and
// are padded to the alignment. META and TENS may be compressed with ZIP,
// Zstandard, LZ4, Brotli or S2. All integers are little-endian.
//
// # Basic Usage
//
// To write a file:
//
//	doc := ggmf.NewDocument()
//	doc.Metadata["general.name"] = ggmf.String("tiny")
//	doc.AddEntry("w", ggmf.TypeF32, 2, 3)
//	f, _ := os.Create("model.ggmf")
//	defer f.Close()
//	err := ggmf.EncodeBytes(f, doc, map[string][]byte{"w": weights})
//
// To read it back:
//
//	f, _ := os.Open("model.ggmf")
//	defer f.Close()
//	doc, err := ggmf.Decode(f)
//	w, err := doc.ReadEntry(f, "w")
//
// # Security Considerations
//
// Every length read from a file is bounded by [Limits] before memory is
// allocated, and decompressed sections are capped. When the stream size is
// known, entries pointing past the end are rejected with [ErrTruncatedFile]
// before any payload is touched.
package ggmf
