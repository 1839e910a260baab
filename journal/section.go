package journal

import "github.com/jpmec/mongo-nonx86/journal/bufalign"

// SectionBuilder assembles one group-commit section into an aligned
// builder:
//
//	[JSectHeader][JDbContext/JEntry...][JSectFooter]
//
// The header is written as a placeholder first and its len field
// patched by Finish, after the footer digest has been computed; the
// digest therefore covers exactly the entry bytes and nothing that
// changes after hashing.
//
// A SectionBuilder is single-writer, like the AlignedBuilder it wraps.
type SectionBuilder struct {
	b      *bufalign.AlignedBuilder
	hdrOfs int
	hdr    JSectHeader
	done   bool
}

// NewSectionBuilder starts a section at the builder's current position
// with the given sequence number and owning file id.
func NewSectionBuilder(b *bufalign.AlignedBuilder, seqNumber, fileID uint64) *SectionBuilder {
	s := &SectionBuilder{
		b:   b,
		hdr: JSectHeader{SeqNumber: seqNumber, FileID: fileID},
	}
	s.hdrOfs = b.Skip(SectHeaderSize)
	return s
}

// AddDbContext scopes all following entries, until the next context
// marker, to the named database.
func (s *SectionBuilder) AddDbContext(name string) error {
	return JDbContext{Name: name}.AppendTo(s.b)
}

// AddWrite appends an ordinary write entry: payload bytes to be
// written at ofs within the file identified by ref and the db context
// in effect during replay.
func (s *SectionBuilder) AddWrite(ref FileRef, ofs uint32, payload []byte) error {
	if len(payload) > MaxPayloadSize {
		return BadSectionError("write payload exceeds maximum document size")
	}
	e := JEntry{
		LenOrOpcode: uint32(len(payload)),
		Ofs:         ofs,
		FileNo:      ref.Pack(),
	}
	e.AppendTo(s.b)
	s.b.AppendBytes(payload)
	return nil
}

// AddFileCreated records that a data file of the given preallocated
// size was created at path. Recovery re-creates the file before
// applying writes that target it.
func (s *SectionBuilder) AddFileCreated(path string, size uint64) error {
	s.b.AppendUint32(OpCodeFileCreated)
	s.b.AppendUint64(size)
	return s.b.AppendString(path, true)
}

// AddDropDb records that the named database was dropped.
func (s *SectionBuilder) AddDropDb(name string) error {
	s.b.AppendUint32(OpCodeDropDb)
	return s.b.AppendString(name, true)
}

// Finish computes the footer digest over the entry bytes, appends the
// footer, patches the section header's len field and returns the
// completed section. The returned slice aliases the builder and is
// valid until the builder grows or is reset.
func (s *SectionBuilder) Finish() []byte {
	if s.done {
		return s.b.AtOfs(s.hdrOfs)
	}
	f := NewJSectFooter(s.b.AtOfs(s.hdrOfs + SectHeaderSize))
	f.AppendTo(s.b)
	s.hdr.Len = uint32(s.b.Len() - s.hdrOfs)
	s.hdr.Encode(s.b.AtOfs(s.hdrOfs))
	s.done = true
	return s.b.AtOfs(s.hdrOfs)
}

// VerifySection checks a stored section for internal consistency:
// structural fields, the fileId binding against the containing file's
// header, and the footer digest recomputed over the entry bytes. Any
// failure means the whole section must be discarded; this is the
// atomicity boundary that protects against torn writes crossing a
// crash.
func VerifySection(section []byte, fileID uint64) error {
	if len(section) < SectHeaderSize+SectFooterSize {
		return ShortReadError("section")
	}
	h, err := DecodeJSectHeader(section)
	if err != nil {
		return err
	}
	if int(h.Len) != len(section) {
		return BadSectionError("stored length does not match section bounds")
	}
	if h.FileID != fileID {
		return FileIDMismatchError{Got: h.FileID, Want: fileID}
	}
	f, err := DecodeJSectFooter(section[len(section)-SectFooterSize:])
	if err != nil {
		return err
	}
	if f.Sentinel != OpCodeFooter || f.Magic != footerMagic {
		return BadSectionError("footer sentinel or magic invalid")
	}
	if !f.CheckHash(section[SectHeaderSize : len(section)-SectFooterSize]) {
		return ChecksumError{SeqNumber: h.SeqNumber}
	}
	return nil
}
