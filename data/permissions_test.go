package data

import "testing"

func TestPermissions_RoundTrip(t *testing.T) {
	// Every 9-bit input must survive decode/encode unchanged.
	for bits := uint32(0); bits < 512; bits++ {
		p := PermissionsFromBits(bits)
		if got := p.Bits(); got != bits {
			t.Errorf("round trip %#o: got %#o", bits, got)
		}
	}
}

func TestPermissions_HighBitsIgnored(t *testing.T) {
	// Bits above the permission range are not part of the codec's domain.
	p := PermissionsFromBits(0xFFFFFE00 | 0o640)
	if got := p.Bits(); got != 0o640 {
		t.Errorf("expected %#o, got %#o", 0o640, got)
	}
}

func TestPermissions_Decode(t *testing.T) {
	p := PermissionsFromBits(0o754)

	if !p.Owner.Read || !p.Owner.Write || !p.Owner.Execute {
		t.Errorf("owner bits wrong for 0o754: %+v", p.Owner)
	}
	if !p.Group.Read || p.Group.Write || !p.Group.Execute {
		t.Errorf("group bits wrong for 0o754: %+v", p.Group)
	}
	if !p.Other.Read || p.Other.Write || p.Other.Execute {
		t.Errorf("other bits wrong for 0o754: %+v", p.Other)
	}
}

func TestPermissions_Class(t *testing.T) {
	p := PermissionsFromBits(0o740)

	if got := p.Class(true, false); !got.Write {
		t.Errorf("owner class should be writable: %+v", got)
	}
	if got := p.Class(false, true); got.Write || !got.Read {
		t.Errorf("group class should be read-only: %+v", got)
	}
	if got := p.Class(false, false); got.Read || got.Write || got.Execute {
		t.Errorf("other class should be empty: %+v", got)
	}
}

func TestEffectivePermissions(t *testing.T) {
	cases := []struct {
		name      string
		requested uint32
		parent    uint32
		isDir     bool
		expected  uint32
	}{
		// A 0o755 directory strips the group/other write bits a file asks
		// for, but the owner part of 0o666 stays.
		{"file under 755", 0o777, 0o755, false, 0o755},
		{"dir under 755", 0o777, 0o755, true, 0o755},
		{"file under 700", 0o666, 0o700, false, 0o600},
		{"dir under 770", 0o777, 0o770, true, 0o770},
		{"open parent", 0o644, 0o777, false, 0o644},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := EffectivePermissions(
				PermissionsFromBits(c.requested),
				PermissionsFromBits(c.parent),
				c.isDir,
			)
			if got.Bits() != c.expected {
				t.Errorf("expected %#o, got %#o", c.expected, got.Bits())
			}
		})
	}
}

func TestPermissions_String(t *testing.T) {
	if got := PermissionsFromBits(0o754).String(); got != "rwxr-xr--" {
		t.Errorf("expected rwxr-xr--, got %s", got)
	}
}
