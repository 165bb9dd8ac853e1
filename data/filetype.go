package data

// FileType holds the five type flags a 9P2000 entity can carry. They are
// packed into the high byte of a 32-bit mode word and, standalone, into the
// type byte of a Qid.
type FileType struct {
	IsDir        bool `json:"is_dir"`
	IsAppendOnly bool `json:"is_append_only"`
	IsExclusive  bool `json:"is_exclusive"`
	IsAuth       bool `json:"is_auth"`
	IsTemporary  bool `json:"is_temporary"`
}

// Type flag positions within the high byte of a mode word.
// Bit 4 (bit 28 of the full word) is skipped for historical reasons and must
// stay zero; bits 1 and 0 are unused.
const (
	typeDir        uint8 = 0b10000000
	typeAppendOnly uint8 = 0b01000000
	typeExclusive  uint8 = 0b00100000
	typeAuth       uint8 = 0b00001000
	typeTemporary  uint8 = 0b00000100

	// TypeMask covers the five defined flag bits.
	TypeMask uint8 = typeDir | typeAppendOnly | typeExclusive | typeAuth | typeTemporary
)

// FileTypeFromBits decodes the type byte of a mode word or Qid.
// The reserved and unused bits are ignored. Decoding never fails.
func FileTypeFromBits(b uint8) FileType {
	return FileType{
		IsDir:        b&typeDir != 0,
		IsAppendOnly: b&typeAppendOnly != 0,
		IsExclusive:  b&typeExclusive != 0,
		IsAuth:       b&typeAuth != 0,
		IsTemporary:  b&typeTemporary != 0,
	}
}

// Bits encodes t into a type byte. The reserved and unused bits are always
// zero.
func (t FileType) Bits() uint8 {
	var b uint8

	if t.IsDir {
		b |= typeDir
	}
	if t.IsAppendOnly {
		b |= typeAppendOnly
	}
	if t.IsExclusive {
		b |= typeExclusive
	}
	if t.IsAuth {
		b |= typeAuth
	}
	if t.IsTemporary {
		b |= typeTemporary
	}

	return b
}

// IsRegular reports whether t describes a plain file: no type flags set.
func (t FileType) IsRegular() bool {
	return t == FileType{}
}
