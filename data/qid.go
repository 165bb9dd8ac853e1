package data

import (
	"encoding/binary"
	"fmt"
)

// QidSize is the wire size of a qid: type byte, version and path.
const QidSize = 1 + 4 + 8

// Qid is the server's unique identification for a file: two files on the
// same server hierarchy are the same if and only if their qids are equal.
// A client may hold multiple fids pointing to a single file and hence to a
// single qid.
type Qid struct {
	// Type carries the same flags as the high byte of the file's mode word.
	Type FileType `json:"type"`

	// Version is incremented every time the file is modified.
	Version uint32 `json:"version"`

	// Path is unique among all files in the hierarchy for the lifetime of
	// the object it names. A file deleted and recreated under the same name
	// must receive a different path.
	Path uint64 `json:"path"`
}

// MarshalBinary encodes q into its 13-byte little-endian wire form.
func (q Qid) MarshalBinary() ([]byte, error) {
	buf := make([]byte, QidSize)
	buf[0] = q.Type.Bits()
	binary.LittleEndian.PutUint32(buf[1:], q.Version)
	binary.LittleEndian.PutUint64(buf[5:], q.Path)
	return buf, nil
}

// UnmarshalBinary decodes a 13-byte wire qid.
func (q *Qid) UnmarshalBinary(buf []byte) error {
	if len(buf) != QidSize {
		return fmt.Errorf("%w: qid length %d", ErrInvalidEncoding, len(buf))
	}

	q.Type = FileTypeFromBits(buf[0])
	q.Version = binary.LittleEndian.Uint32(buf[1:])
	q.Path = binary.LittleEndian.Uint64(buf[5:])
	return nil
}

func (q Qid) String() string {
	return fmt.Sprintf("qid(%#02x v%d %#x)", q.Type.Bits(), q.Version, q.Path)
}
