package sequenced

import (
	"encoding/binary"
	"hash/crc32"

	"github.com/google/uuid"
)

// Item is an immutable sequenced record. Data is an opaque serialized payload;
// Topic names its decodable type.
type Item struct {
	SequenceID uuid.UUID
	Position   uint64
	Topic      string
	Data       []byte
}

// Record encoding: varint topicLen | topic | data | crc32c(topic|data)

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// EncodeRecord serializes topic and data with a trailing checksum.
func EncodeRecord(topic string, data []byte) []byte {
	out := make([]byte, 0, 10+len(topic)+len(data)+4)
	var tmp [10]byte
	n := binary.PutUvarint(tmp[:], uint64(len(topic)))
	out = append(out, tmp[:n]...)
	out = append(out, topic...)
	out = append(out, data...)

	crc := crc32.Update(0, castagnoli, []byte(topic))
	crc = crc32.Update(crc, castagnoli, data)
	var crcb [4]byte
	binary.BigEndian.PutUint32(crcb[:], crc)
	out = append(out, crcb[:]...)
	return out
}

// DecodeRecord parses an encoded record, verifying its checksum.
func DecodeRecord(b []byte) (topic string, data []byte, ok bool) {
	if len(b) < 1+4 {
		return "", nil, false
	}
	tlen, n := binary.Uvarint(b)
	if n <= 0 || tlen > uint64(len(b)) {
		// a huge tlen would go negative through int() below
		return "", nil, false
	}
	if n+int(tlen)+4 > len(b) {
		return "", nil, false
	}
	topicB := b[n : n+int(tlen)]
	dataB := b[n+int(tlen) : len(b)-4]
	expect := binary.BigEndian.Uint32(b[len(b)-4:])
	crc := crc32.Update(0, castagnoli, topicB)
	crc = crc32.Update(crc, castagnoli, dataB)
	if crc != expect {
		return "", nil, false
	}
	return string(topicB), append([]byte(nil), dataB...), true
}
