package journal

import (
	"errors"
	"fmt"
)

// ErrUntrustedLSN is returned when an LSN record's checkbytes do not
// match its lsn, meaning the record was torn mid-write. The caller must
// fall back to a conservative recovery start point instead of trusting
// the stored value.
var ErrUntrustedLSN = errors.New("journal: lsn checkbytes mismatch, stored lsn is untrusted")

// ShortReadError indicates a structure could not be fully read. The
// string names the structure that was being decoded.
type ShortReadError string

func (e ShortReadError) Error() string {
	return fmt.Sprintf("journal: %s: unexpectedly short read", string(e))
}

// BadHeaderError indicates a journal file header failed structural
// validation (magic, trailing tag, or zero fileId). The file is
// unreadable; this is never silently skipped.
type BadHeaderError string

func (e BadHeaderError) Error() string {
	return fmt.Sprintf("journal: invalid file header: %s", string(e))
}

// VersionError indicates a structurally valid header with an
// unsupported format version.
type VersionError struct {
	Version uint16
}

func (e VersionError) Error() string {
	return fmt.Sprintf("journal: unsupported journal file version %#x (current %#x)", e.Version, CurrentVersion)
}

// BadSectionError indicates a section failed a structural check
// (length, footer sentinel or magic) before any checksum comparison.
type BadSectionError string

func (e BadSectionError) Error() string {
	return fmt.Sprintf("journal: malformed section: %s", string(e))
}

// ChecksumError indicates a section's recomputed digest does not match
// its footer. The entire section must be discarded; no entry from it
// may be applied.
type ChecksumError struct {
	SeqNumber uint64
}

func (e ChecksumError) Error() string {
	return fmt.Sprintf("journal: section seq=%d checksum mismatch", e.SeqNumber)
}

// FileIDMismatchError indicates a section carries a fileId different
// from its containing file's header, i.e. the bytes belong to a
// previous use of a recycled file.
type FileIDMismatchError struct {
	Got, Want uint64
}

func (e FileIDMismatchError) Error() string {
	return fmt.Sprintf("journal: section fileId %#x does not match file header fileId %#x", e.Got, e.Want)
}

// UnknownOpcodeError indicates an entry tag in the reserved opcode
// range that this implementation does not recognize.
type UnknownOpcodeError uint32

func (e UnknownOpcodeError) Error() string {
	return fmt.Sprintf("journal: unknown entry opcode %#x", uint32(e))
}
