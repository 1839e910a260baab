package journal

import (
	"encoding/binary"
	"fmt"
	"os"
)

// LSNFile is the single small record, rewritten after every checkpoint,
// that tells recovery how far it has already durably progressed so
// already-applied sections can be skipped. CheckBytes is the bitwise
// complement of LSN: a write torn mid-flight leaves the pair
// inconsistent, which Get detects.
type LSNFile struct {
	Ver        uint32
	Reserved2  uint32
	LSN        uint64
	CheckBytes uint64
	Reserved   [8]uint64 // forward compatibility
}

// NewLSNFile returns a record holding lsn with matching checkbytes.
func NewLSNFile(lsn uint64) LSNFile {
	var l LSNFile
	l.Set(lsn)
	return l
}

// Set stores lsn and its derived checkbytes together.
func (l *LSNFile) Set(lsn uint64) {
	l.LSN = lsn
	l.CheckBytes = ^lsn
}

// Get returns the stored lsn, or ErrUntrustedLSN when the checkbytes
// do not match, meaning the record was not reliably written. The
// caller must then fall back to scanning from the earliest retained
// journal file instead of trusting the value.
func (l *LSNFile) Get() (uint64, error) {
	if l.CheckBytes != ^l.LSN {
		return 0, ErrUntrustedLSN
	}
	return l.LSN, nil
}

// Encode returns the packed record.
func (l *LSNFile) Encode() []byte {
	buf := make([]byte, LSNRecordSize)
	binary.LittleEndian.PutUint32(buf[0:], l.Ver)
	binary.LittleEndian.PutUint32(buf[4:], l.Reserved2)
	binary.LittleEndian.PutUint64(buf[8:], l.LSN)
	binary.LittleEndian.PutUint64(buf[16:], l.CheckBytes)
	for i, v := range l.Reserved {
		binary.LittleEndian.PutUint64(buf[24+8*i:], v)
	}
	return buf
}

func DecodeLSNFile(src []byte) (LSNFile, error) {
	var l LSNFile
	if len(src) < LSNRecordSize {
		return l, ShortReadError("lsn record")
	}
	l.Ver = binary.LittleEndian.Uint32(src[0:])
	l.Reserved2 = binary.LittleEndian.Uint32(src[4:])
	l.LSN = binary.LittleEndian.Uint64(src[8:])
	l.CheckBytes = binary.LittleEndian.Uint64(src[16:])
	for i := range l.Reserved {
		l.Reserved[i] = binary.LittleEndian.Uint64(src[24+8*i:])
	}
	return l, nil
}

// WriteLSNFile rewrites path with the given lsn as one write of the
// entire record followed by a sync, keeping the torn-write window as
// small as a single I/O allows.
func WriteLSNFile(path string, lsn uint64) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open lsn file: %w", err)
	}
	l := NewLSNFile(lsn)
	if _, err := f.WriteAt(l.Encode(), 0); err != nil {
		f.Close()
		return fmt.Errorf("write lsn file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("sync lsn file: %w", err)
	}
	return f.Close()
}

// ReadLSNFile reads path and returns the stored lsn. ErrUntrustedLSN
// means the record was torn and recovery must assume a conservative
// start point.
func ReadLSNFile(path string) (uint64, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read lsn file: %w", err)
	}
	l, err := DecodeLSNFile(buf)
	if err != nil {
		return 0, err
	}
	return l.Get()
}
