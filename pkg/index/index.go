// Package index builds and loads the positional index that accompanies a
// coordinate-sorted output file. The index maps each reference id to the
// ordinal range of its records, so consumers can skip straight to one
// reference without scanning the whole file.
package index

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/cespare/xxhash/v2"

	"github.com/alnfile/alnfile/pkg/record"
	"github.com/alnfile/alnfile/pkg/run"
)

const (
	// IndexMagic identifies a positional index file
	IndexMagic = uint64(0x3158444926464E4C)

	// CurrentVersion is the current index format version
	CurrentVersion = uint32(1)

	// entrySize is the encoded size of one reference entry:
	// refID(4) + firstRecord(8) + numRecords(8).
	entrySize = 20

	headerSize   = 16 // magic(8) + version(4) + numEntries(4)
	checksumSize = 8
)

var (
	// ErrInvalidIndex is returned when an index file fails validation
	ErrInvalidIndex = errors.New("invalid index file")
)

// Entry describes the records of one reference id: the ordinal of the first
// record and how many follow it. Records of one reference are contiguous in
// a coordinate-sorted file.
type Entry struct {
	RefID       int32
	FirstRecord uint64
	NumRecords  uint64
}

// Index is the decoded positional index.
type Index struct {
	Entries []Entry
}

// Path returns the index path for a data file.
func Path(dataPath string) string {
	return dataPath + ".idx"
}

// Lookup returns the entry for a reference id.
func (ix *Index) Lookup(refID int32) (Entry, bool) {
	for _, e := range ix.Entries {
		if e.RefID == refID {
			return e, true
		}
	}
	return Entry{}, false
}

// Build scans the coordinate-sorted file at dataPath and writes its
// positional index next to it. It returns the index path.
func Build(dataPath string, threads int) (string, error) {
	reader, err := run.OpenReader(dataPath, threads)
	if err != nil {
		return "", err
	}
	defer reader.Close()

	var entries []Entry
	var rec record.Record
	var ordinal uint64
	for {
		err := reader.Next(&rec)
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}

		if n := len(entries); n > 0 && entries[n-1].RefID == rec.RefID {
			entries[n-1].NumRecords++
		} else {
			entries = append(entries, Entry{
				RefID:       rec.RefID,
				FirstRecord: ordinal,
				NumRecords:  1,
			})
		}
		ordinal++
	}

	idxPath := Path(dataPath)
	if err := writeFile(idxPath, entries); err != nil {
		return "", err
	}
	return idxPath, nil
}

func writeFile(path string, entries []Entry) error {
	body := make([]byte, headerSize+len(entries)*entrySize)
	binary.LittleEndian.PutUint64(body[0:8], IndexMagic)
	binary.LittleEndian.PutUint32(body[8:12], CurrentVersion)
	binary.LittleEndian.PutUint32(body[12:16], uint32(len(entries)))

	pos := headerSize
	for _, e := range entries {
		binary.LittleEndian.PutUint32(body[pos:pos+4], uint32(e.RefID))
		binary.LittleEndian.PutUint64(body[pos+4:pos+12], e.FirstRecord)
		binary.LittleEndian.PutUint64(body[pos+12:pos+20], e.NumRecords)
		pos += entrySize
	}

	var sum [checksumSize]byte
	binary.LittleEndian.PutUint64(sum[:], xxhash.Sum64(body))

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create index file: %w", err)
	}
	if _, err := file.Write(body); err != nil {
		file.Close()
		return fmt.Errorf("failed to write index file: %w", err)
	}
	if _, err := file.Write(sum[:]); err != nil {
		file.Close()
		return fmt.Errorf("failed to write index checksum: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close index file: %w", err)
	}
	return nil
}

// Load reads and validates an index file.
func Load(path string) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read index file: %w", err)
	}
	if len(data) < headerSize+checksumSize {
		return nil, fmt.Errorf("%w: file too small (%d bytes)", ErrInvalidIndex, len(data))
	}

	body, sum := data[:len(data)-checksumSize], data[len(data)-checksumSize:]
	if xxhash.Sum64(body) != binary.LittleEndian.Uint64(sum) {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrInvalidIndex)
	}

	if binary.LittleEndian.Uint64(body[0:8]) != IndexMagic {
		return nil, fmt.Errorf("%w: bad magic", ErrInvalidIndex)
	}
	if v := binary.LittleEndian.Uint32(body[8:12]); v != CurrentVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrInvalidIndex, v)
	}

	numEntries := int(binary.LittleEndian.Uint32(body[12:16]))
	if len(body) != headerSize+numEntries*entrySize {
		return nil, fmt.Errorf("%w: body length %d does not match %d entries",
			ErrInvalidIndex, len(body), numEntries)
	}

	ix := &Index{Entries: make([]Entry, 0, numEntries)}
	pos := headerSize
	for i := 0; i < numEntries; i++ {
		ix.Entries = append(ix.Entries, Entry{
			RefID:       int32(binary.LittleEndian.Uint32(body[pos : pos+4])),
			FirstRecord: binary.LittleEndian.Uint64(body[pos+4 : pos+12]),
			NumRecords:  binary.LittleEndian.Uint64(body[pos+12 : pos+20]),
		})
		pos += entrySize
	}
	return ix, nil
}
