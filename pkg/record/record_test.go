package record

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

func TestKeyOrdering(t *testing.T) {
	tests := []struct {
		name         string
		refID1, pos1 int32
		refID2, pos2 int32
	}{
		{"same ref, increasing pos", 0, 10, 0, 20},
		{"increasing ref", 0, 1000, 1, 0},
		{"mapped before unmapped", 100, 0, UnmappedRefID, 0},
		{"high mapped ref before unmapped", 1<<31 - 2, 0, UnmappedRefID, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k1 := Key(tt.refID1, tt.pos1)
			k2 := Key(tt.refID2, tt.pos2)
			if k1 >= k2 {
				t.Errorf("Key(%d, %d) = %d, expected less than Key(%d, %d) = %d",
					tt.refID1, tt.pos1, k1, tt.refID2, tt.pos2, k2)
			}
		})
	}
}

func TestSortKeyComposition(t *testing.T) {
	r := &Record{RefID: 3, Pos: 7}
	expected := uint64(3)<<32 | 7
	if got := r.SortKey(); got != expected {
		t.Errorf("SortKey() = %d, expected %d", got, expected)
	}
}

func TestEnvelopeRoundTrip(t *testing.T) {
	r := &Record{RefID: -1, Pos: 42, Flags: 0xBEEF, Data: []byte("payload")}

	var buf [EnvelopeSize]byte
	EncodeEnvelope(buf[:], r)

	var decoded Record
	dataLen := DecodeEnvelope(buf[:], &decoded)

	if decoded.RefID != r.RefID || decoded.Pos != r.Pos || decoded.Flags != r.Flags {
		t.Errorf("decoded envelope %+v does not match original %+v", decoded, *r)
	}
	if dataLen != uint32(len(r.Data)) {
		t.Errorf("decoded payload length %d, expected %d", dataLen, len(r.Data))
	}
}

func TestCodecRoundTrip(t *testing.T) {
	records := []*Record{
		{RefID: 0, Pos: 1, Flags: 4, Data: []byte("first")},
		{RefID: 1, Pos: 100, Data: bytes.Repeat([]byte{0xAB}, 1000)},
		{RefID: UnmappedRefID, Pos: 0, Data: nil},
	}

	var buf bytes.Buffer
	for _, r := range records {
		if err := Write(&buf, r); err != nil {
			t.Fatalf("Failed to write record: %v", err)
		}
	}

	var rec Record
	for i, want := range records {
		if err := Read(&buf, &rec); err != nil {
			t.Fatalf("Failed to read record %d: %v", i, err)
		}
		if rec.RefID != want.RefID || rec.Pos != want.Pos || rec.Flags != want.Flags {
			t.Errorf("record %d envelope mismatch: got %+v, want %+v", i, rec, *want)
		}
		if !bytes.Equal(rec.Data, want.Data) {
			t.Errorf("record %d payload mismatch", i)
		}
	}

	if err := Read(&buf, &rec); err != io.EOF {
		t.Errorf("expected io.EOF at end of stream, got %v", err)
	}
}

func TestCodecChecksumDetection(t *testing.T) {
	var buf bytes.Buffer
	r := &Record{RefID: 2, Pos: 3, Data: []byte("checksummed")}
	if err := Write(&buf, r); err != nil {
		t.Fatalf("Failed to write record: %v", err)
	}

	// Flip one payload byte.
	corrupted := buf.Bytes()
	corrupted[4+EnvelopeSize] ^= 0xFF

	var rec Record
	err := Read(bytes.NewReader(corrupted), &rec)
	if !errors.Is(err, ErrChecksum) {
		t.Errorf("expected ErrChecksum, got %v", err)
	}
}

func TestCodecRejectsBogusFrameLength(t *testing.T) {
	// A frame declaring less than the envelope size is structurally invalid.
	data := []byte{1, 0, 0, 0}
	var rec Record
	err := Read(bytes.NewReader(data), &rec)
	if !errors.Is(err, ErrInvalidFrame) {
		t.Errorf("expected ErrInvalidFrame, got %v", err)
	}
}

func TestClone(t *testing.T) {
	r := &Record{RefID: 1, Pos: 2, Flags: 3, Data: []byte("abc")}
	c := r.Clone()

	c.Data[0] = 'z'
	if r.Data[0] != 'a' {
		t.Error("Clone did not deep-copy the payload")
	}
}
