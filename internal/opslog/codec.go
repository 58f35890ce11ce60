package opslog

import (
	"encoding/binary"
	"encoding/json"
	"hash/crc32"
	"time"
)

// Entry encoding: varint headerLen | header | payload | crc32c(header|payload)
// with header = be8(atMs) | kind bytes.

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

func encodeEntry(atMs int64, kind string, payload []byte) []byte {
	header := make([]byte, 8+len(kind))
	binary.BigEndian.PutUint64(header[:8], uint64(atMs))
	copy(header[8:], kind)

	out := make([]byte, 0, 10+len(header)+len(payload)+4)
	var tmp [10]byte
	n := binary.PutUvarint(tmp[:], uint64(len(header)))
	out = append(out, tmp[:n]...)
	out = append(out, header...)
	out = append(out, payload...)

	crc := crc32.Update(0, castagnoli, header)
	crc = crc32.Update(crc, castagnoli, payload)
	var crcb [4]byte
	binary.BigEndian.PutUint32(crcb[:], crc)
	return append(out, crcb[:]...)
}

func decodeEntry(seq uint64, b []byte) (Entry, bool) {
	if len(b) < 1+8+4 {
		return Entry{}, false
	}
	hlen, n := binary.Uvarint(b)
	if n <= 0 || int(hlen) < 8 || n+int(hlen)+4 > len(b) {
		return Entry{}, false
	}
	header := b[n : n+int(hlen)]
	payload := b[n+int(hlen) : len(b)-4]
	expect := binary.BigEndian.Uint32(b[len(b)-4:])
	crc := crc32.Update(0, castagnoli, header)
	crc = crc32.Update(crc, castagnoli, payload)
	if crc != expect {
		return Entry{}, false
	}
	return Entry{
		Seq:    seq,
		At:     time.UnixMilli(int64(binary.BigEndian.Uint64(header[:8]))).UTC(),
		Kind:   string(header[8:]),
		Detail: json.RawMessage(append([]byte(nil), payload...)),
	}, true
}

// entryTimestampMs extracts the write timestamp without decoding the payload.
func entryTimestampMs(b []byte) (int64, bool) {
	hlen, n := binary.Uvarint(b)
	if n <= 0 || hlen < 8 || n+8 > len(b) {
		return 0, false
	}
	return int64(binary.BigEndian.Uint64(b[n : n+8])), true
}
