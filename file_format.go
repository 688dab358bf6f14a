package filemask

// Sidecar record layout. Offsets are part of the on-disk format and must not
// change between releases.
//
//	0    16  masked password digest (ownership tag)
//	16   1   name flag
//	17   1   header flag
//	18   1   content flag
//	19   13  reserved
//	32   256 masked encode map
//	288  32  header payload (substituted original header)
//	320  n   name payload (substituted original name)
const (
	TagOffset = 0
	TagSize   = DigestSize

	FlagsOffset = 16
	FlagCount   = 3

	MapOffset = 32

	HeaderPayloadOffset = MapOffset + EncodeMapSize
	HeaderSize          = 32

	NamePayloadOffset = HeaderPayloadOffset + HeaderSize

	// MinSidecarSize is the length of an initialized record
	MinSidecarSize = HeaderPayloadOffset

	flagSet   = byte(0x01)
	flagClear = byte(0x00)
)

// Flags holds the three encode flags of a sidecar, indexed by EncodeType
type Flags [FlagCount]bool

// Has reports whether the flag for t is set
func (f Flags) Has(t EncodeType) bool {
	return f[t.flagIndex()]
}

// Empty reports whether no flag is set
func (f Flags) Empty() bool {
	return !f[0] && !f[1] && !f[2]
}

// Set returns the encode types whose flag is set, in flag order
func (f Flags) Set() []EncodeType {
	var out []EncodeType
	for i, v := range f {
		if v {
			out = append(out, EncodeType(i))
		}
	}
	return out
}

func decodeFlags(b []byte) Flags {
	var f Flags
	for i := 0; i < FlagCount && i < len(b); i++ {
		f[i] = b[i] == flagSet
	}
	return f
}

// payloadOffset returns the sidecar offset of the payload kept for t.
// Content encoding keeps no payload.
func payloadOffset(t EncodeType) (int64, bool) {
	switch t {
	case EncodeHeader:
		return HeaderPayloadOffset, true
	case EncodeName:
		return NamePayloadOffset, true
	}
	return 0, false
}
