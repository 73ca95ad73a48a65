// Package header defines the schema/metadata block shared by every record in
// one logical output. The header is written once at the front of each run
// file and of the final output; all runs merged together must carry
// byte-identical headers.
package header

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Sort-order markers carried in the header.
const (
	SortOrderUnsorted   = "unsorted"
	SortOrderCoordinate = "coordinate"
)

// ErrInvalidHeader is returned when a header block cannot be decoded
var ErrInvalidHeader = errors.New("invalid header block")

// maxBlockSize bounds a serialized header block. Reference catalogs are
// small; anything beyond this is a corrupt stream.
const maxBlockSize = 1 << 26

// Reference is one entry of the reference catalog: a named grouping target
// with a known length.
type Reference struct {
	Name   string
	Length int64
}

// Header holds the output metadata: free-form text lines, the sort-order
// marker, and the reference catalog records are grouped by.
type Header struct {
	Text       string
	SortOrder  string
	References []Reference
}

// Clone returns a deep copy of the header.
func (h *Header) Clone() *Header {
	c := &Header{
		Text:      h.Text,
		SortOrder: h.SortOrder,
	}
	if len(h.References) > 0 {
		c.References = append([]Reference(nil), h.References...)
	}
	return c
}

// Mapped reports whether the header carries a reference catalog, i.e.
// whether records are positionally mapped and the output can be indexed.
func (h *Header) Mapped() bool {
	return len(h.References) > 0
}

// Equal reports whether two headers are byte-identical when encoded.
func (h *Header) Equal(other *Header) bool {
	return bytes.Equal(h.Encode(), other.Encode())
}

// Encode serializes the header to a byte slice.
func (h *Header) Encode() []byte {
	var buf bytes.Buffer

	writeString := func(s string) {
		var n [4]byte
		binary.LittleEndian.PutUint32(n[:], uint32(len(s)))
		buf.Write(n[:])
		buf.WriteString(s)
	}

	writeString(h.SortOrder)
	writeString(h.Text)

	var n [4]byte
	binary.LittleEndian.PutUint32(n[:], uint32(len(h.References)))
	buf.Write(n[:])

	for _, ref := range h.References {
		writeString(ref.Name)
		var l [8]byte
		binary.LittleEndian.PutUint64(l[:], uint64(ref.Length))
		buf.Write(l[:])
	}

	return buf.Bytes()
}

// Decode deserializes a header from a byte slice.
func Decode(data []byte) (*Header, error) {
	pos := 0

	readString := func() (string, error) {
		if pos+4 > len(data) {
			return "", fmt.Errorf("%w: truncated string length", ErrInvalidHeader)
		}
		n := int(binary.LittleEndian.Uint32(data[pos : pos+4]))
		pos += 4
		if pos+n > len(data) {
			return "", fmt.Errorf("%w: truncated string body", ErrInvalidHeader)
		}
		s := string(data[pos : pos+n])
		pos += n
		return s, nil
	}

	h := &Header{}
	var err error
	if h.SortOrder, err = readString(); err != nil {
		return nil, err
	}
	if h.Text, err = readString(); err != nil {
		return nil, err
	}

	if pos+4 > len(data) {
		return nil, fmt.Errorf("%w: truncated reference count", ErrInvalidHeader)
	}
	refCount := int(binary.LittleEndian.Uint32(data[pos : pos+4]))
	pos += 4

	for i := 0; i < refCount; i++ {
		var ref Reference
		if ref.Name, err = readString(); err != nil {
			return nil, err
		}
		if pos+8 > len(data) {
			return nil, fmt.Errorf("%w: truncated reference length", ErrInvalidHeader)
		}
		ref.Length = int64(binary.LittleEndian.Uint64(data[pos : pos+8]))
		pos += 8
		h.References = append(h.References, ref)
	}

	if pos != len(data) {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrInvalidHeader, len(data)-pos)
	}
	return h, nil
}

// WriteBlock writes the header as a length-prefixed block to w.
func WriteBlock(w io.Writer, h *Header) error {
	encoded := h.Encode()

	var n [4]byte
	binary.LittleEndian.PutUint32(n[:], uint32(len(encoded)))
	if _, err := w.Write(n[:]); err != nil {
		return fmt.Errorf("failed to write header block length: %w", err)
	}
	if _, err := w.Write(encoded); err != nil {
		return fmt.Errorf("failed to write header block: %w", err)
	}
	return nil
}

// ReadBlock reads a length-prefixed header block from w.
func ReadBlock(r io.Reader) (*Header, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, fmt.Errorf("failed to read header block length: %w", err)
	}

	blockLen := binary.LittleEndian.Uint32(lenBuf[:])
	if blockLen > maxBlockSize {
		return nil, fmt.Errorf("%w: declared block length %d", ErrInvalidHeader, blockLen)
	}

	encoded := make([]byte, blockLen)
	if _, err := io.ReadFull(r, encoded); err != nil {
		return nil, fmt.Errorf("failed to read header block: %w", err)
	}
	return Decode(encoded)
}
