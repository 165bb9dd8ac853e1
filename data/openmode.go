package data

import "fmt"

// OpenSubMode is the I/O type requested by an open: the low two bits of the
// open mode byte.
type OpenSubMode uint8

// Submode values per open(5).
const (
	OpenRead OpenSubMode = iota
	OpenWrite
	OpenReadWrite
	OpenExecute
)

// Open mode flag bits, independent of the submode.
const (
	// OpenTrunc requests truncation on open. Requires write permission;
	// silently skipped when the file is append-only.
	OpenTrunc uint8 = 0x10

	// OpenRClose requests removal of the file when the fid is clunked.
	// Requires write permission in the parent directory.
	OpenRClose uint8 = 0x40
)

// OpenMode is a decoded open request: the I/O submode plus the truncate and
// remove-on-close flags.
type OpenMode struct {
	Sub      OpenSubMode `json:"sub"`
	Truncate bool        `json:"truncate"`
	RClose   bool        `json:"rclose"`
}

// OpenSubModeFromBits decodes the submode field of an open mode byte.
// Masking to two bits always yields a defined value today, but the operation
// stays fallible so stricter validation can be added without changing the
// signature; an out-of-domain value reports ErrInvalidEncoding.
func OpenSubModeFromBits(bits uint8) (OpenSubMode, error) {
	sub := OpenSubMode(bits & 0b00000011)
	switch sub {
	case OpenRead, OpenWrite, OpenReadWrite, OpenExecute:
		return sub, nil
	default:
		return 0, fmt.Errorf("%w: open submode %#02x", ErrInvalidEncoding, bits)
	}
}

// OpenModeFromBits decodes a full open mode byte.
func OpenModeFromBits(fields uint8) (OpenMode, error) {
	sub, err := OpenSubModeFromBits(fields)
	if err != nil {
		return OpenMode{}, err
	}

	return OpenMode{
		Sub:      sub,
		Truncate: fields&OpenTrunc != 0,
		RClose:   fields&OpenRClose != 0,
	}, nil
}

// Bits encodes m back into an open mode byte.
func (m OpenMode) Bits() uint8 {
	b := uint8(m.Sub) & 0b00000011

	if m.Truncate {
		b |= OpenTrunc
	}
	if m.RClose {
		b |= OpenRClose
	}

	return b
}

// NeedsRead reports whether the submode requires read permission.
func (s OpenSubMode) NeedsRead() bool {
	return s == OpenRead || s == OpenReadWrite
}

// NeedsWrite reports whether the submode requires write permission.
func (s OpenSubMode) NeedsWrite() bool {
	return s == OpenWrite || s == OpenReadWrite
}

// NeedsExecute reports whether the submode requires execute permission.
func (s OpenSubMode) NeedsExecute() bool {
	return s == OpenExecute
}

func (s OpenSubMode) String() string {
	switch s {
	case OpenRead:
		return "read"
	case OpenWrite:
		return "write"
	case OpenReadWrite:
		return "rdwr"
	case OpenExecute:
		return "exec"
	default:
		return "unknown"
	}
}
