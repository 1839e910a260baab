package journal

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
)

// SectionScanner reads group-commit sections sequentially from a
// journal file positioned just past its 8 KiB header, verifying each
// one before handing it out. It is the read-side primitive driven by
// the recovery process: on the first section that fails verification
// the scan stops, because nothing after an incompletely written
// section is durably complete either.
type SectionScanner struct {
	r       io.Reader
	fileID  uint64
	section []byte
	hdr     JSectHeader
	err     error
	eof     bool
}

// NewSectionScanner scans sections from r, rejecting any whose fileId
// does not match the containing file's header fileId.
func NewSectionScanner(r io.Reader, fileID uint64) *SectionScanner {
	return &SectionScanner{r: r, fileID: fileID}
}

// Next advances to the next verified section. It returns false at the
// end of the durable data: clean end of file, a zeroed (never written)
// region of a preallocated file, or any verification failure, which is
// then reported by Err.
func (s *SectionScanner) Next() bool {
	if s.err != nil || s.eof {
		return false
	}
	var hdrBuf [SectHeaderSize]byte
	if _, err := io.ReadFull(s.r, hdrBuf[:]); err != nil {
		s.eof = true
		if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
			s.err = err
		}
		return false
	}
	h, err := DecodeJSectHeader(hdrBuf[:])
	if err != nil {
		s.err = err
		return false
	}
	if h.Len == 0 {
		// zero-filled preallocated space past the last section
		s.eof = true
		return false
	}
	if h.Len < SectHeaderSize+SectFooterSize {
		s.err = BadSectionError("stored length smaller than header plus footer")
		return false
	}
	// sanity bound before the length sizes a buffer
	if h.Len > MaxSectionSize {
		s.err = BadSectionError("stored length exceeds maximum section size")
		return false
	}
	section := make([]byte, h.Len)
	copy(section, hdrBuf[:])
	if _, err := io.ReadFull(s.r, section[SectHeaderSize:]); err != nil {
		s.err = ShortReadError("section body")
		return false
	}
	if err := VerifySection(section, s.fileID); err != nil {
		s.err = err
		return false
	}
	s.hdr = h
	s.section = section
	return true
}

// Err returns the reason the scan stopped, or nil for a clean end.
// Checksum and structural errors are section-scoped: everything
// yielded before the failure is still internally consistent.
func (s *SectionScanner) Err() error { return s.err }

// Header returns the current section's header.
func (s *SectionScanner) Header() JSectHeader { return s.hdr }

// Section returns the current section's bytes, header and footer
// included. Valid until the next call to Next.
func (s *SectionScanner) Section() []byte { return s.section }

// Entries returns an iterator over the current section's entries.
func (s *SectionScanner) Entries() *EntryIterator {
	return NewEntryIterator(s.section[SectHeaderSize : len(s.section)-SectFooterSize])
}

// Entry is one decoded journal entry with its db context already
// resolved: DB is the database the entry targets, honoring both
// JDbContext markers and the per-entry local-db override.
type Entry struct {
	Kind EntryKind
	DB   string

	// EntryWrite fields
	Ref     FileRef
	Ofs     uint32
	Payload []byte

	// EntryFileCreated: created file path and preallocated size.
	// EntryDropDb: the dropped database name is in DB.
	Path     string
	FileSize uint64
}

// EntryIterator walks the entry bytes of one verified section. Db
// context markers are consumed internally and reflected in each
// returned Entry's DB field.
type EntryIterator struct {
	data []byte
	pos  int
	db   string
}

// NewEntryIterator iterates entryData, the section bytes between
// header and footer. The section must already have been verified.
func NewEntryIterator(entryData []byte) *EntryIterator {
	return &EntryIterator{data: entryData}
}

// Next returns the next entry, or io.EOF after the last one. Any
// other error means the section bytes are malformed despite a valid
// digest, which indicates a writer bug rather than a torn write.
func (it *EntryIterator) Next() (Entry, error) {
	for it.pos < len(it.data) {
		if len(it.data)-it.pos < 4 {
			return Entry{}, ShortReadError("entry tag")
		}
		raw := binary.LittleEndian.Uint32(it.data[it.pos:])
		tag, err := DecodeTag(raw)
		if err != nil {
			return Entry{}, err
		}
		switch tag.Kind {
		case EntryDbContext:
			name, n, err := it.cstring(it.pos + 4)
			if err != nil {
				return Entry{}, err
			}
			it.db = name
			it.pos += 4 + n
			continue

		case EntryWrite:
			if len(it.data)-it.pos < EntryHeaderSize+int(tag.Len) {
				return Entry{}, ShortReadError("write entry")
			}
			e, err := DecodeJEntry(it.data[it.pos:])
			if err != nil {
				return Entry{}, err
			}
			payload := it.data[it.pos+EntryHeaderSize : it.pos+EntryHeaderSize+int(tag.Len)]
			it.pos += EntryHeaderSize + int(tag.Len)
			db := it.db
			if e.IsLocalDbContext() {
				db = "local"
			}
			return Entry{
				Kind:    EntryWrite,
				DB:      db,
				Ref:     UnpackFileNo(e.FileNo),
				Ofs:     e.Ofs,
				Payload: payload,
			}, nil

		case EntryFileCreated:
			if len(it.data)-it.pos < 12 {
				return Entry{}, ShortReadError("file-created entry")
			}
			size := binary.LittleEndian.Uint64(it.data[it.pos+4:])
			path, n, err := it.cstring(it.pos + 12)
			if err != nil {
				return Entry{}, err
			}
			it.pos += 12 + n
			return Entry{Kind: EntryFileCreated, DB: it.db, Path: path, FileSize: size}, nil

		case EntryDropDb:
			name, n, err := it.cstring(it.pos + 4)
			if err != nil {
				return Entry{}, err
			}
			it.pos += 4 + n
			return Entry{Kind: EntryDropDb, DB: name}, nil

		case EntryFooter:
			// the footer lives outside the entry range of a verified
			// section
			return Entry{}, BadSectionError("footer sentinel inside entry data")
		}
	}
	return Entry{}, io.EOF
}

// cstring reads a NUL-terminated string starting at ofs, returning the
// string and the number of bytes consumed including the terminator.
func (it *EntryIterator) cstring(ofs int) (string, int, error) {
	if ofs > len(it.data) {
		return "", 0, ShortReadError("string")
	}
	i := bytes.IndexByte(it.data[ofs:], 0)
	if i < 0 {
		return "", 0, ShortReadError("string terminator")
	}
	return string(it.data[ofs : ofs+i]), i + 1, nil
}
