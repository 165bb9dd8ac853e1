package data

// FileMode combines the permission bits and the type flags of a 9P2000 mode
// word. Permissions occupy bits 0-8, the file-type byte occupies bits 24-31.
type FileMode struct {
	Permissions Permissions `json:"permissions"`
	FileType    FileType    `json:"file_type"`
}

// ModeMask covers every bit of a mode word this codec is defined over:
// the type byte and the nine permission bits. Bits outside the mask do not
// round-trip.
const ModeMask uint32 = uint32(TypeMask)<<24 | PermMask

// FileModeFromBits decodes a full 32-bit mode word by composing the
// permission and file-type codecs. Decoding never fails.
func FileModeFromBits(bits uint32) FileMode {
	return FileMode{
		Permissions: PermissionsFromBits(bits),
		FileType:    FileTypeFromBits(uint8(bits >> 24)),
	}
}

// Bits encodes m back into a 32-bit mode word.
func (m FileMode) Bits() uint32 {
	return m.Permissions.Bits() | uint32(m.FileType.Bits())<<24
}

// String returns a textual representation of the mode in ls -l form,
// with the 9P type flags ahead of the permission bits.
// Example: "drwxr-xr-x" for a directory with 755 permissions.
func (m FileMode) String() string {
	const flags = "dalxAt" // dir, append, lock (excl), skipped, auth, temp
	var buf [16]byte
	w := 0

	t := m.FileType.Bits()
	for i, c := range flags {
		if t&(1<<uint(7-i)) != 0 {
			buf[w] = byte(c)
			w++
		}
	}

	if w == 0 {
		buf[w] = '-'
		w++
	}

	perm := m.Permissions.String()
	copy(buf[w:], perm)
	w += len(perm)

	return string(buf[:w])
}
