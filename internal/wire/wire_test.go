package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"testing"
)

func mustDecodeEntry(t *testing.T, b []byte) (uint32, []byte) {
	t.Helper()
	v, p, err := DecodeEntry(b)
	if err != nil {
		t.Fatalf("DecodeEntry error: %v", err)
	}
	return v, p
}

func TestEntryRTEmptyAndNonEmpty(t *testing.T) {
	cases := []struct {
		version uint32
		payload []byte
	}{
		{1, nil},
		{42, []byte("hello")},
		{math.MaxUint32, []byte{0, 1, 2, 3, 4}},
	}
	for _, tc := range cases {
		enc := EncodeEntry(tc.version, tc.payload)
		v, p := mustDecodeEntry(t, enc)
		if v != tc.version {
			t.Fatalf("version mismatch: got %d want %d", v, tc.version)
		}
		if !bytes.Equal(p, tc.payload) {
			t.Fatalf("payload mismatch: got %x want %x", p, tc.payload)
		}
	}
}

func TestEntryRejectsTrailingBytes(t *testing.T) {
	enc := EncodeEntry(7, []byte("x"))
	enc = append(enc, 0xDE, 0xAD)
	if _, _, err := DecodeEntry(enc); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt on trailing bytes, got %v", err)
	}
	if _, err := PeekVersion(enc); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("expected PeekVersion to reject trailing bytes, got %v", err)
	}
}

func TestEntryCorruptHeadersAndLengths(t *testing.T) {
	enc := EncodeEntry(1, []byte("abc"))

	badMagic := append([]byte(nil), enc...)
	badMagic[0] = 'X'
	if _, _, err := DecodeEntry(badMagic); err == nil {
		t.Fatalf("expected error on bad magic")
	}

	badFormat := append([]byte(nil), enc...)
	badFormat[4] = format + 1
	if _, _, err := DecodeEntry(badFormat); err == nil {
		t.Fatalf("expected error on bad format")
	}

	badKind := append([]byte(nil), enc...)
	badKind[5] = kindCounter
	if _, _, err := DecodeEntry(badKind); err == nil {
		t.Fatalf("expected error on bad kind")
	}

	// plen is at offset 10..13 (4 magic +1 format +1 kind +4 version)
	tooLong := append([]byte(nil), enc...)
	binary.BigEndian.PutUint32(tooLong[10:14], uint32(len("abc")+1))
	if _, _, err := DecodeEntry(tooLong); err == nil {
		t.Fatalf("expected error on plen beyond buffer")
	}

	trunc := enc[:len(enc)-1]
	if _, _, err := DecodeEntry(trunc); err == nil {
		t.Fatalf("expected error on truncated buffer")
	}

	for _, foreign := range [][]byte{nil, []byte("not-wire-format"), []byte(`{"version":1}`)} {
		if _, _, err := DecodeEntry(foreign); !errors.Is(err, ErrCorrupt) {
			t.Fatalf("expected ErrCorrupt for %q, got %v", foreign, err)
		}
	}
}

func TestPeekVersionMatchesDecode(t *testing.T) {
	enc := EncodeEntry(99, []byte("payload"))
	v, err := PeekVersion(enc)
	if err != nil {
		t.Fatalf("PeekVersion: %v", err)
	}
	dv, _ := mustDecodeEntry(t, enc)
	if v != dv || v != 99 {
		t.Fatalf("peek=%d decode=%d want 99", v, dv)
	}
}

func TestEntryZeroCopyPayload(t *testing.T) {
	enc := EncodeEntry(1, []byte("Z"))
	_, p := mustDecodeEntry(t, enc)
	p[0] = 'Q'
	_, p2 := mustDecodeEntry(t, enc)
	if p2[0] != 'Q' {
		t.Fatalf("expected zero-copy slice into enc buffer")
	}
}

func TestCounterRoundTripAndStrictness(t *testing.T) {
	for _, n := range []uint64{0, 1, 3, math.MaxUint64} {
		got, err := DecodeCounter(EncodeCounter(n))
		if err != nil || got != n {
			t.Fatalf("counter %d: got %d err %v", n, got, err)
		}
	}

	enc := EncodeCounter(5)
	if _, err := DecodeCounter(append(enc, 0)); err == nil {
		t.Fatalf("expected error on trailing byte")
	}
	if _, err := DecodeCounter(enc[:len(enc)-1]); err == nil {
		t.Fatalf("expected error on truncated counter")
	}
	if _, err := DecodeCounter(EncodeEntry(5, nil)); err == nil {
		t.Fatalf("entry bytes must not decode as a counter")
	}
	if _, _, err := DecodeEntry(enc); err == nil {
		t.Fatalf("counter bytes must not decode as an entry")
	}
}
