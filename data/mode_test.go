package data

import "testing"

func TestFileMode_RoundTripDefinedBits(t *testing.T) {
	// Only the defined bits round-trip: the type byte (minus reserved and
	// unused positions) and the nine permission bits.
	inputs := []uint32{
		0x00000000,
		0x800001FF,
		0x80000755 & 0xFFFFFFFF,
		0xC0000644,
		0x200001B6,
		0xFFFFFFFF,
		0x08000124,
		0x040007FF,
	}

	for _, bits := range inputs {
		m := FileModeFromBits(bits)
		if got, want := m.Bits(), bits&ModeMask; got != want {
			t.Errorf("round trip %#08x: got %#08x, want %#08x", bits, got, want)
		}
	}
}

func TestFileMode_TypeByteSweep(t *testing.T) {
	for tb := 0; tb < 256; tb++ {
		bits := uint32(tb)<<24 | 0o644
		m := FileModeFromBits(bits)
		if got, want := m.Bits(), bits&ModeMask; got != want {
			t.Errorf("type byte %#02x: got %#08x, want %#08x", tb, got, want)
		}
	}
}

func TestFileMode_Composition(t *testing.T) {
	m := FileModeFromBits(0x80000755 | 0o755)

	if !m.FileType.IsDir {
		t.Error("directory bit lost in composition")
	}
	if m.Permissions.Bits() != 0o755 {
		t.Errorf("permission bits lost: %#o", m.Permissions.Bits())
	}
}

func TestFileMode_String(t *testing.T) {
	dir := FileMode{
		Permissions: PermissionsFromBits(0o755),
		FileType:    FileType{IsDir: true},
	}
	if got := dir.String(); got != "drwxr-xr-x" {
		t.Errorf("expected drwxr-xr-x, got %s", got)
	}

	plain := FileMode{Permissions: PermissionsFromBits(0o644)}
	if got := plain.String(); got != "-rw-r--r--" {
		t.Errorf("expected -rw-r--r--, got %s", got)
	}
}
