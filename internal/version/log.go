package version

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/doquedb/sydcore/internal/buffer"
)

// VersionLog is the append-only file of page pre-images a File writes to
// before overwriting a master page that another transaction may still
// need to see. Records carry a fixed header, a CRC and a
// snappy-compressed page pre-image (see record.go).
type VersionLog struct {
	mu       sync.Mutex
	f        *os.File
	path     string
	writePos int64
}

// OpenVersionLog opens or creates the version log at path.
func OpenVersionLog(path string) (*VersionLog, error) {
	exists := true
	if _, err := os.Stat(path); os.IsNotExist(err) {
		exists = false
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("version: open version log: %w", err)
	}

	vl := &VersionLog{f: f, path: path}
	if exists {
		if err := vl.validateHeader(); err != nil {
			f.Close()
			return nil, err
		}
	} else if err := vl.writeHeader(); err != nil {
		f.Close()
		return nil, err
	}

	end, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("version: seek log end: %w", err)
	}
	vl.writePos = end
	return vl, nil
}

func (vl *VersionLog) writeHeader() error {
	var hdr [logFileHdrSize]byte
	copy(hdr[0:8], logMagic)
	binary.LittleEndian.PutUint32(hdr[8:12], logVersion)
	if _, err := vl.f.WriteAt(hdr[:], 0); err != nil {
		return fmt.Errorf("version: write log header: %w", err)
	}
	return vl.f.Sync()
}

func (vl *VersionLog) validateHeader() error {
	var hdr [logFileHdrSize]byte
	n, err := vl.f.ReadAt(hdr[:], 0)
	if err != nil && err != io.EOF {
		return fmt.Errorf("version: read log header: %w", err)
	}
	if n < logFileHdrSize {
		return fmt.Errorf("version: log header too short: %d bytes", n)
	}
	if string(hdr[0:8]) != logMagic {
		return fmt.Errorf("version: bad log magic")
	}
	ver := binary.LittleEndian.Uint32(hdr[8:12])
	if ver != logVersion {
		return fmt.Errorf("version: unsupported log version %d", ver)
	}
	return nil
}

// Append writes a pre-image record and returns its byte offset (used by
// File as the version pointer stored alongside the master page).
func (vl *VersionLog) Append(ts buffer.Timestamp, id buffer.PageID, data []byte) (int64, error) {
	vl.mu.Lock()
	defer vl.mu.Unlock()

	rec := &logRecord{Timestamp: ts, PageID: id, Data: data}
	buf := marshalLogRecord(rec)
	off := vl.writePos
	n, err := vl.f.WriteAt(buf, off)
	if err != nil {
		return 0, fmt.Errorf("version: append log record: %w", err)
	}
	vl.writePos += int64(n)
	return off, nil
}

// ReadAt reads and verifies the record starting at byte offset off.
func (vl *VersionLog) ReadAt(off int64) (*logRecord, error) {
	vl.mu.Lock()
	defer vl.mu.Unlock()
	return unmarshalLogRecord(io.NewSectionReader(vl.f, off, vl.writePos-off))
}

// ReadAll streams every record from the log in file order, invoking fn
// with each record's file offset and decoded content. Used by recover
// and by sync's reclaim scan.
func (vl *VersionLog) ReadAll(fn func(offset int64, rec *logRecord) error) error {
	vl.mu.Lock()
	defer vl.mu.Unlock()

	if _, err := vl.f.Seek(logFileHdrSize, io.SeekStart); err != nil {
		return fmt.Errorf("version: seek log start: %w", err)
	}
	off := int64(logFileHdrSize)
	for {
		rec, err := unmarshalLogRecord(vl.f)
		if err != nil {
			break // EOF or corrupt tail: keep what was readable
		}
		pos, err := vl.f.Seek(0, io.SeekCurrent)
		if err != nil {
			return fmt.Errorf("version: tell log position: %w", err)
		}
		if err := fn(off, rec); err != nil {
			return err
		}
		off = pos
	}
	return nil
}

// Truncate resets the log to just its header, used once sync() confirms
// every retained pre-image has been reclaimed.
func (vl *VersionLog) Truncate() error {
	vl.mu.Lock()
	defer vl.mu.Unlock()
	if err := vl.f.Truncate(logFileHdrSize); err != nil {
		return fmt.Errorf("version: truncate log: %w", err)
	}
	vl.writePos = logFileHdrSize
	return vl.f.Sync()
}

// Close closes the underlying file.
func (vl *VersionLog) Close() error {
	vl.mu.Lock()
	defer vl.mu.Unlock()
	return vl.f.Close()
}
