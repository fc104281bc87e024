package ggmf

type Limits struct {
	MaxSectionLen    uint64 // stored payload length as it appears in the file
	MaxUncompressed  uint64 // section payload after decompression
	MaxMetadataKeys  int
	MaxEntries       int
	MaxDims          int
	MaxStringLen     uint64
	MaxArrayLen      uint64
	MaxArrayDepth    int
	MaxEntryDataSize uint64
}

func defaultLimits() Limits {
	return Limits{
		MaxSectionLen:    1 << 30, // 1 GiB stored section cap
		MaxUncompressed:  1 << 30, // 1 GiB
		MaxMetadataKeys:  1 << 16,
		MaxEntries:       1 << 20,
		MaxDims:          8,
		MaxStringLen:     16 << 20, // 16 MiB
		MaxArrayLen:      1 << 24,
		MaxArrayDepth:    4,
		MaxEntryDataSize: 256 << 30, // 256 GiB
	}
}

func (l Limits) withDefaults() Limits {
	d := defaultLimits()
	if l.MaxSectionLen == 0 {
		l.MaxSectionLen = d.MaxSectionLen
	}
	if l.MaxUncompressed == 0 {
		l.MaxUncompressed = d.MaxUncompressed
	}
	if l.MaxMetadataKeys == 0 {
		l.MaxMetadataKeys = d.MaxMetadataKeys
	}
	if l.MaxEntries == 0 {
		l.MaxEntries = d.MaxEntries
	}
	if l.MaxDims == 0 {
		l.MaxDims = d.MaxDims
	}
	if l.MaxStringLen == 0 {
		l.MaxStringLen = d.MaxStringLen
	}
	if l.MaxArrayLen == 0 {
		l.MaxArrayLen = d.MaxArrayLen
	}
	if l.MaxArrayDepth == 0 {
		l.MaxArrayDepth = d.MaxArrayDepth
	}
	if l.MaxEntryDataSize == 0 {
		l.MaxEntryDataSize = d.MaxEntryDataSize
	}
	return l
}

func (l Limits) sectionBounds(streamSize uint64) sectionBounds {
	return sectionBounds{
		streamSize:      streamSize,
		maxStored:       l.MaxSectionLen,
		maxUncompressed: l.MaxUncompressed,
	}
}
