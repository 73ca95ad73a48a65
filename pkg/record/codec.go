package record

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/cespare/xxhash/v2"
)

var (
	// ErrInvalidFrame is returned when a record frame is structurally invalid
	ErrInvalidFrame = errors.New("invalid record frame")

	// ErrChecksum is returned when a record frame fails checksum verification
	ErrChecksum = errors.New("record checksum mismatch")
)

// MaxFrameSize bounds a single record frame. A declared length beyond this
// indicates a corrupt or misaligned stream rather than a real record.
const MaxFrameSize = 1 << 30

// Frame layout:
//
//	frameLen  uint32  (EnvelopeSize + payload length)
//	envelope  [EnvelopeSize]byte
//	payload   [frameLen - EnvelopeSize]byte
//	checksum  uint64  (xxhash64 over envelope + payload)

// Write serializes one record frame to w.
func Write(w io.Writer, r *Record) error {
	frameLen := uint32(EnvelopeSize + len(r.Data))

	var head [4 + EnvelopeSize]byte
	binary.LittleEndian.PutUint32(head[0:4], frameLen)
	EncodeEnvelope(head[4:], r)

	digest := xxhash.New()
	digest.Write(head[4:])
	digest.Write(r.Data)

	if _, err := w.Write(head[:]); err != nil {
		return fmt.Errorf("failed to write record envelope: %w", err)
	}
	if len(r.Data) > 0 {
		if _, err := w.Write(r.Data); err != nil {
			return fmt.Errorf("failed to write record payload: %w", err)
		}
	}

	var sum [8]byte
	binary.LittleEndian.PutUint64(sum[:], digest.Sum64())
	if _, err := w.Write(sum[:]); err != nil {
		return fmt.Errorf("failed to write record checksum: %w", err)
	}
	return nil
}

// Read deserializes one record frame from r into rec, reusing rec.Data when
// it has sufficient capacity. It returns io.EOF when the stream ends cleanly
// on a frame boundary; an EOF inside a frame is reported as corruption.
func Read(r io.Reader, rec *Record) error {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		if err == io.EOF {
			return io.EOF
		}
		return fmt.Errorf("failed to read record frame length: %w", err)
	}

	frameLen := binary.LittleEndian.Uint32(lenBuf[:])
	if frameLen < EnvelopeSize || frameLen > MaxFrameSize {
		return fmt.Errorf("%w: declared length %d", ErrInvalidFrame, frameLen)
	}

	var envelope [EnvelopeSize]byte
	if _, err := io.ReadFull(r, envelope[:]); err != nil {
		return fmt.Errorf("failed to read record envelope: %w", err)
	}

	dataLen := DecodeEnvelope(envelope[:], rec)
	if dataLen != frameLen-EnvelopeSize {
		return fmt.Errorf("%w: envelope declares %d payload bytes, frame holds %d",
			ErrInvalidFrame, dataLen, frameLen-EnvelopeSize)
	}

	if cap(rec.Data) < int(dataLen) {
		rec.Data = make([]byte, dataLen)
	} else {
		rec.Data = rec.Data[:dataLen]
	}
	if dataLen > 0 {
		if _, err := io.ReadFull(r, rec.Data); err != nil {
			return fmt.Errorf("failed to read record payload: %w", err)
		}
	}

	var sum [8]byte
	if _, err := io.ReadFull(r, sum[:]); err != nil {
		return fmt.Errorf("failed to read record checksum: %w", err)
	}

	digest := xxhash.New()
	digest.Write(envelope[:])
	digest.Write(rec.Data)
	if digest.Sum64() != binary.LittleEndian.Uint64(sum[:]) {
		return ErrChecksum
	}
	return nil
}
