package data

// IndividualPermissions holds the read, write and execute bits for a single
// principal class (owner, group or other).
type IndividualPermissions struct {
	Read    bool `json:"read"`
	Write   bool `json:"write"`
	Execute bool `json:"execute"`
}

// Permissions represents the low 9 bits of a 9P2000 mode word in standard
// rwxrwxrwx ordering, owner most significant.
type Permissions struct {
	Owner IndividualPermissions `json:"owner"`
	Group IndividualPermissions `json:"group"`
	Other IndividualPermissions `json:"other"`
}

// Permission bit masks within a 32-bit mode word.
// Each principal class occupies one octal digit.
const (
	bitOtherExecute uint32 = 1 << iota
	bitOtherWrite
	bitOtherRead
	bitGroupExecute
	bitGroupWrite
	bitGroupRead
	bitOwnerExecute
	bitOwnerWrite
	bitOwnerRead

	// PermMask covers every bit this codec is defined over.
	PermMask uint32 = 0o777
)

// PermissionsFromBits decodes the low 9 bits of a mode word.
// Bits above the permission range are not part of this codec's domain
// and are ignored. Decoding never fails.
func PermissionsFromBits(bits uint32) Permissions {
	return Permissions{
		Owner: IndividualPermissions{
			Read:    bits&bitOwnerRead != 0,
			Write:   bits&bitOwnerWrite != 0,
			Execute: bits&bitOwnerExecute != 0,
		},
		Group: IndividualPermissions{
			Read:    bits&bitGroupRead != 0,
			Write:   bits&bitGroupWrite != 0,
			Execute: bits&bitGroupExecute != 0,
		},
		Other: IndividualPermissions{
			Read:    bits&bitOtherRead != 0,
			Write:   bits&bitOtherWrite != 0,
			Execute: bits&bitOtherExecute != 0,
		},
	}
}

// Bits encodes p back into the low 9 bits of a mode word.
func (p Permissions) Bits() uint32 {
	var b uint32

	if p.Owner.Read {
		b |= bitOwnerRead
	}
	if p.Owner.Write {
		b |= bitOwnerWrite
	}
	if p.Owner.Execute {
		b |= bitOwnerExecute
	}

	if p.Group.Read {
		b |= bitGroupRead
	}
	if p.Group.Write {
		b |= bitGroupWrite
	}
	if p.Group.Execute {
		b |= bitGroupExecute
	}

	if p.Other.Read {
		b |= bitOtherRead
	}
	if p.Other.Write {
		b |= bitOtherWrite
	}
	if p.Other.Execute {
		b |= bitOtherExecute
	}

	return b
}

// Class selects the permission set that applies to a principal:
// the owner set if the acting user is the owner, the group set if the
// acting user belongs to the entity's group, otherwise the other set.
func (p Permissions) Class(isOwner, inGroup bool) IndividualPermissions {
	switch {
	case isOwner:
		return p.Owner
	case inGroup:
		return p.Group
	default:
		return p.Other
	}
}

// EffectivePermissions computes the permissions of a newly created entity
// per create(5): the requested bits are masked down to what the containing
// directory allows.
//
//	perm & (~0666 | (dir.perm & 0666))   for files
//	perm & (~0777 | (dir.perm & 0777))   for directories
func EffectivePermissions(requested, parent Permissions, isDir bool) Permissions {
	mask := uint32(0o666)
	if isDir {
		mask = 0o777
	}

	bits := requested.Bits() & (^mask | (parent.Bits() & mask))
	return PermissionsFromBits(bits)
}

// String renders p in rwxrwxrwx form.
func (p Permissions) String() string {
	const rwx = "rwxrwxrwx"
	var buf [9]byte

	bits := p.Bits()
	for i := range buf {
		if bits&(1<<uint(8-i)) != 0 {
			buf[i] = rwx[i]
		} else {
			buf[i] = '-'
		}
	}

	return string(buf[:])
}
