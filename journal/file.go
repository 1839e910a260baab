package journal

import (
	"fmt"
	"io"
	"math/rand"
	"os"
	"strconv"
	"strings"
	"time"
)

// LSNFileName is the name of the lsn record file within the journal
// directory.
const LSNFileName = "lsn"

const journalFilePrefix = "j._"

// JournalFileName returns the name of the n-th journal file, "j._<n>".
func JournalFileName(n int) string {
	return journalFilePrefix + strconv.Itoa(n)
}

// ParseJournalFileName extracts the sequence number from a journal
// file name, reporting false for names that are not journal files.
func ParseJournalFileName(name string) (int, bool) {
	rest, ok := strings.CutPrefix(name, journalFilePrefix)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// NewJHeader stamps a header for a freshly created or recycled journal
// file at path: current version, creation timestamp and path for human
// inspection, and a new non-zero fileId that every section written
// into the file must carry.
func NewJHeader(path string) JHeader {
	h := JHeader{
		Magic:   headerMagic,
		Version: CurrentVersion,
		FileID:  newFileID(),
		Txt2:    headerTxt2,
	}
	copy(h.TS[:], time.Now().UTC().Format("2006-01-02T15:04:05Z"))
	copy(h.DBPath[:], path)
	return h
}

// newFileID generates a fileId unique per physical file instance.
// Uniqueness across recycled files is what matters, not secrecy.
func newFileID() uint64 {
	for {
		id := uint64(time.Now().UnixNano()) ^ rand.Uint64()
		if id != 0 {
			return id
		}
	}
}

// CreateJournalFile creates path and writes a fresh header as one
// aligned block. The returned header's FileID binds every section
// subsequently written into the file.
func CreateJournalFile(path string) (JHeader, error) {
	h := NewJHeader(path)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return JHeader{}, fmt.Errorf("create journal file: %w", err)
	}
	if _, err := f.Write(h.Encode()); err != nil {
		f.Close()
		return JHeader{}, fmt.Errorf("write journal header: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return JHeader{}, fmt.Errorf("sync journal header: %w", err)
	}
	return h, f.Close()
}

// ReadJHeader reads and validates the file header at the start of r,
// leaving r positioned at the first section. A structural failure is
// reported as BadHeaderError; a valid header with an unsupported
// version as VersionError, with the decoded header still returned for
// diagnostics.
func ReadJHeader(r io.Reader) (JHeader, error) {
	buf := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return JHeader{}, ShortReadError("file header")
	}
	h, err := DecodeJHeader(buf)
	if err != nil {
		return JHeader{}, err
	}
	if !h.Valid() {
		return h, BadHeaderError("bad magic or trailing tag, or zero fileId")
	}
	if !h.VersionOK() {
		return h, VersionError{Version: h.Version}
	}
	return h, nil
}
