// Package record defines the alignment record model: the fixed envelope, the
// variable-length payload, and the composite sort key used for coordinate
// ordering.
package record

import "encoding/binary"

const (
	// EnvelopeSize is the fixed size of a record envelope, both on the wire
	// and inside the cache arena: RefID(4) + Pos(4) + Flags(4) + DataLen(4).
	EnvelopeSize = 16

	// UnmappedRefID marks a record that is not placed on any reference.
	UnmappedRefID int32 = -1
)

// Record is one alignment record: a fixed envelope plus an opaque payload.
// The payload is never interpreted by this module.
type Record struct {
	RefID int32
	Pos   int32
	Flags uint32
	Data  []byte
}

// Key builds the 64-bit composite sort key for a (reference, position) pair.
// The reference id is reinterpreted as unsigned, so unmapped records
// (RefID == -1) order after every mapped reference.
func Key(refID, pos int32) uint64 {
	return uint64(uint32(refID))<<32 | uint64(uint32(pos))
}

// SortKey returns the record's composite sort key.
func (r *Record) SortKey() uint64 {
	return Key(r.RefID, r.Pos)
}

// Mapped reports whether the record is placed on a reference.
func (r *Record) Mapped() bool {
	return r.RefID != UnmappedRefID
}

// Size returns the number of bytes the record occupies before alignment
// padding: the envelope plus the payload.
func (r *Record) Size() int {
	return EnvelopeSize + len(r.Data)
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	c := &Record{
		RefID: r.RefID,
		Pos:   r.Pos,
		Flags: r.Flags,
	}
	if len(r.Data) > 0 {
		c.Data = append([]byte(nil), r.Data...)
	}
	return c
}

// EncodeEnvelope writes the record's envelope into dst, which must be at
// least EnvelopeSize bytes long.
func EncodeEnvelope(dst []byte, r *Record) {
	binary.LittleEndian.PutUint32(dst[0:4], uint32(r.RefID))
	binary.LittleEndian.PutUint32(dst[4:8], uint32(r.Pos))
	binary.LittleEndian.PutUint32(dst[8:12], r.Flags)
	binary.LittleEndian.PutUint32(dst[12:16], uint32(len(r.Data)))
}

// DecodeEnvelope reads an envelope from src, which must be at least
// EnvelopeSize bytes long, and returns the payload length it declares.
func DecodeEnvelope(src []byte, r *Record) uint32 {
	r.RefID = int32(binary.LittleEndian.Uint32(src[0:4]))
	r.Pos = int32(binary.LittleEndian.Uint32(src[4:8]))
	r.Flags = binary.LittleEndian.Uint32(src[8:12])
	return binary.LittleEndian.Uint32(src[12:16])
}
