package data

import (
	"bytes"
	"errors"
	"testing"
)

func TestQid_Equality(t *testing.T) {
	base := Qid{Type: FileType{IsDir: true}, Version: 3, Path: 42}

	same := Qid{Type: FileType{IsDir: true}, Version: 3, Path: 42}
	if base != same {
		t.Error("identical qids must compare equal")
	}

	cases := map[string]Qid{
		"type":    {Type: FileType{}, Version: 3, Path: 42},
		"version": {Type: FileType{IsDir: true}, Version: 4, Path: 42},
		"path":    {Type: FileType{IsDir: true}, Version: 3, Path: 43},
	}
	for name, other := range cases {
		if base == other {
			t.Errorf("qids differing in %s must compare unequal", name)
		}
	}
}

func TestQid_BinaryRoundTrip(t *testing.T) {
	q := Qid{
		Type:    FileType{IsAppendOnly: true, IsExclusive: true},
		Version: 0xDEADBEEF,
		Path:    0x0102030405060708,
	}

	buf, err := q.MarshalBinary()
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if len(buf) != QidSize {
		t.Fatalf("expected %d bytes, got %d", QidSize, len(buf))
	}

	// Little-endian layout: type byte, version, path.
	expected := []byte{0x60, 0xEF, 0xBE, 0xAD, 0xDE, 0x08, 0x07, 0x06, 0x05, 0x04, 0x03, 0x02, 0x01}
	if !bytes.Equal(buf, expected) {
		t.Fatalf("wire form mismatch:\n got  %x\n want %x", buf, expected)
	}

	var back Qid
	if err := back.UnmarshalBinary(buf); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if back != q {
		t.Errorf("round trip mismatch: got %+v, want %+v", back, q)
	}
}

func TestQid_UnmarshalBadLength(t *testing.T) {
	var q Qid
	err := q.UnmarshalBinary([]byte{1, 2, 3})
	if !errors.Is(err, ErrInvalidEncoding) {
		t.Errorf("expected ErrInvalidEncoding, got %v", err)
	}
}
