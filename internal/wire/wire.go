package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
)

const (
	format      byte = 1
	kindEntry   byte = 1
	kindCounter byte = 2

	entryHeader   = 4 + 1 + 1 + 4 + 4
	counterLength = 4 + 1 + 1 + 8
	versionOffset = 6
)

var (
	ErrCorrupt = errors.New("rwcache: corrupt entry")
	magic4     = [...]byte{'R', 'W', 'C', 'E'}
)

func hasHeader(b []byte, kind byte) bool {
	return len(b) >= 6 && bytes.Equal(b[:4], magic4[:]) && b[4] == format && b[5] == kind
}

// Entry: magic(4) | format(1) | kind(1=entry) | version(u32 be) | plen(u32 be) | payload(plen)
func EncodeEntry(version uint32, payload []byte) []byte {
	var buf bytes.Buffer
	buf.Grow(entryHeader + len(payload))

	buf.Write(magic4[:])
	buf.WriteByte(format)
	buf.WriteByte(kindEntry)

	var u4 [4]byte
	binary.BigEndian.PutUint32(u4[:], version)
	buf.Write(u4[:])

	binary.BigEndian.PutUint32(u4[:], uint32(len(payload)))
	buf.Write(u4[:])

	buf.Write(payload)
	return buf.Bytes()
}

// DecodeEntry returns a payload slice aliasing b.
func DecodeEntry(b []byte) (version uint32, payload []byte, err error) {
	if len(b) < entryHeader || !hasHeader(b, kindEntry) {
		return 0, nil, ErrCorrupt
	}

	off := versionOffset
	version = binary.BigEndian.Uint32(b[off : off+4])
	off += 4

	plen := int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4
	if plen < 0 || plen != len(b)-off { // exact framing, no trailing bytes
		return 0, nil, ErrCorrupt
	}

	return version, b[off : off+plen], nil
}

// PeekVersion reads only the version field of an entry. It validates the header
// and the declared length so foreign bytes are still rejected.
func PeekVersion(b []byte) (uint32, error) {
	if len(b) < entryHeader || !hasHeader(b, kindEntry) {
		return 0, ErrCorrupt
	}
	plen := int(binary.BigEndian.Uint32(b[versionOffset+4 : entryHeader]))
	if plen < 0 || plen != len(b)-entryHeader {
		return 0, ErrCorrupt
	}
	return binary.BigEndian.Uint32(b[versionOffset : versionOffset+4]), nil
}

// Counter: magic(4) | format(1) | kind(2=counter) | count(u64 be)
func EncodeCounter(n uint64) []byte {
	out := make([]byte, counterLength)
	copy(out, magic4[:])
	out[4] = format
	out[5] = kindCounter
	binary.BigEndian.PutUint64(out[6:], n)
	return out
}

func DecodeCounter(b []byte) (uint64, error) {
	if len(b) != counterLength || !hasHeader(b, kindCounter) {
		return 0, ErrCorrupt
	}
	return binary.BigEndian.Uint64(b[6:]), nil
}
