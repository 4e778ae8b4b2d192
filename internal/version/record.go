// Package version implements the versioned page layer: a
// master datafile plus a version log and a sync log per logical file,
// giving every transaction a consistent snapshot view of pages it did
// not itself modify.
package version

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"

	"github.com/golang/snappy"

	"github.com/doquedb/sydcore/internal/buffer"
)

// logMagic/logVersion identify the version-log file format.
const (
	logMagic       = "SYDVLOG\x00"
	logVersion     = uint32(1)
	logFileHdrSize = 32

	// recHdrSize is the fixed portion of a version-log record, preceding
	// the (possibly snappy-compressed) page pre-image.
	//   [0:8]   Timestamp  uint64 LE
	//   [8:12]  PageID     uint32 LE
	//   [12:16] DataLen    uint32 LE (length of the *compressed* payload)
	//   [16:20] RecordCRC  uint32 LE (over header-with-zeroed-CRC + data)
	recHdrSize = 20
)

var crcTable = crc32.MakeTable(crc32.Castagnoli)

// logRecord is one version-log entry: the pre-image of a page as of the
// instant it was about to be overwritten.
type logRecord struct {
	Timestamp buffer.Timestamp
	PageID    buffer.PageID
	Data      []byte // page payload, uncompressed
}

func marshalLogRecord(rec *logRecord) []byte {
	compressed := snappy.Encode(nil, rec.Data)
	buf := make([]byte, recHdrSize+len(compressed))
	binary.LittleEndian.PutUint64(buf[0:8], uint64(rec.Timestamp))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(rec.PageID))
	binary.LittleEndian.PutUint32(buf[12:16], uint32(len(compressed)))
	copy(buf[recHdrSize:], compressed)

	h := crc32.New(crcTable)
	h.Write(buf[:16])
	h.Write([]byte{0, 0, 0, 0})
	h.Write(buf[recHdrSize:])
	binary.LittleEndian.PutUint32(buf[16:20], h.Sum32())
	return buf
}

func unmarshalLogRecord(r io.Reader) (*logRecord, error) {
	var hdr [recHdrSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}
	ts := buffer.Timestamp(binary.LittleEndian.Uint64(hdr[0:8]))
	pid := buffer.PageID(binary.LittleEndian.Uint32(hdr[8:12]))
	dataLen := int(binary.LittleEndian.Uint32(hdr[12:16]))
	storedCRC := binary.LittleEndian.Uint32(hdr[16:20])

	compressed := make([]byte, dataLen)
	if dataLen > 0 {
		if _, err := io.ReadFull(r, compressed); err != nil {
			return nil, fmt.Errorf("version: read record payload: %w", err)
		}
	}

	h := crc32.New(crcTable)
	h.Write(hdr[:16])
	h.Write([]byte{0, 0, 0, 0})
	h.Write(compressed)
	if h.Sum32() != storedCRC {
		return nil, fmt.Errorf("version: record CRC mismatch at page %d ts %d", pid, ts)
	}

	data, err := snappy.Decode(nil, compressed)
	if err != nil {
		return nil, fmt.Errorf("version: decompress record: %w", err)
	}
	return &logRecord{Timestamp: ts, PageID: pid, Data: data}, nil
}
