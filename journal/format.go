// Package journal defines the on-disk binary framing of the durability
// journal (write-ahead log): the per-file header, the repeating
// section header / entry / footer triad that makes a group commit an
// atomic, checksum-verified unit, and the small LSN file that records
// recovery progress.
//
// Every multi-byte field is little-endian at a fixed byte offset; no
// structure depends on host endianness or struct layout. Encoding and
// decoding are pure in-memory operations; file I/O is owned by the
// caller except for the small convenience helpers in file.go and
// lsn.go.
package journal

import (
	"bytes"
	"crypto/md5"
	"encoding/binary"

	"github.com/jpmec/mongo-nonx86/journal/bufalign"
)

const (
	// HeaderSize is the size of the journal file header: exactly one
	// aligned block.
	HeaderSize = 8192

	// CurrentVersion is the journal format version. The value is
	// ASCII-readable ("GA" little-endian) so the header stays legible
	// under head/less; incrementing it is forward-safe.
	CurrentVersion = 0x4147

	// SectHeaderSize is the fixed size of JSectHeader.
	SectHeaderSize = 20

	// SectFooterSize is the fixed size of JSectFooter.
	SectFooterSize = 32

	// EntryHeaderSize is the fixed part of a JEntry, before payload.
	EntryHeaderSize = 12

	// LSNRecordSize is the encoded size of LSNFile.
	LSNRecordSize = 88

	// MaxPayloadSize bounds a single write entry's payload (the
	// engine's maximum document size).
	MaxPayloadSize = bufalign.MaxAppendSize

	// MaxSectionSize bounds one group-commit section. Writers flush
	// well below this; a stored length beyond it is corruption and
	// readers reject it before sizing any buffer from it.
	MaxSectionSize = 256 * 1024 * 1024
)

// Fixed byte offsets within the 8 KiB file header. The newlines keep
// the header legible as plain text.
const (
	hdrOfsMagic   = 0
	hdrOfsVersion = 2
	hdrOfsTS      = 5
	hdrOfsDBPath  = 26
	hdrOfsFileID  = 156
	hdrOfsTxt2    = HeaderSize - 2

	hdrTSLen     = 20
	hdrDBPathLen = 128
)

var (
	headerMagic = [2]byte{'j', '\n'}
	headerTxt2  = [2]byte{'\n', '\n'}
	footerMagic = [4]byte{'\n', '\n', '\n', '\n'}
)

// JHeader is the header written once at the start of each journal
// file. TS and DBPath are ASCII diagnostics for human inspection only;
// FileID is the correctness-relevant field, binding every section in
// the file to this physical file instance.
type JHeader struct {
	Magic   [2]byte
	Version uint16
	TS      [20]byte  // ascii creation timestamp, diagnostic only
	DBPath  [128]byte // path of this file, diagnostic only
	FileID  uint64
	Txt2    [2]byte
}

// Valid reports whether the header is structurally sound: magic and
// trailing tag correct and fileId non-zero. Version is deliberately
// not part of validity; see VersionOK.
func (h *JHeader) Valid() bool {
	return h.Magic == headerMagic && h.Txt2 == headerTxt2 && h.FileID != 0
}

// VersionOK reports whether the file was written with the format
// version this implementation supports.
func (h *JHeader) VersionOK() bool {
	return h.Version == CurrentVersion
}

// Encode returns the packed 8 KiB header block.
func (h *JHeader) Encode() []byte {
	buf := make([]byte, HeaderSize)
	copy(buf[hdrOfsMagic:], h.Magic[:])
	binary.LittleEndian.PutUint16(buf[hdrOfsVersion:], h.Version)
	buf[hdrOfsTS-1] = '\n'
	copy(buf[hdrOfsTS:], h.TS[:])
	buf[hdrOfsDBPath-1] = '\n'
	copy(buf[hdrOfsDBPath:], h.DBPath[:])
	buf[hdrOfsDBPath+hdrDBPathLen] = '\n'
	buf[hdrOfsDBPath+hdrDBPathLen+1] = '\n'
	binary.LittleEndian.PutUint64(buf[hdrOfsFileID:], h.FileID)
	copy(buf[hdrOfsTxt2:], h.Txt2[:])
	return buf
}

// AppendTo writes the packed header into b.
func (h *JHeader) AppendTo(b *bufalign.AlignedBuilder) {
	b.AppendBytes(h.Encode())
}

// DecodeJHeader decodes a file header without validating it; use
// Valid and VersionOK on the result.
func DecodeJHeader(src []byte) (JHeader, error) {
	var h JHeader
	if len(src) < HeaderSize {
		return h, ShortReadError("file header")
	}
	copy(h.Magic[:], src[hdrOfsMagic:])
	h.Version = binary.LittleEndian.Uint16(src[hdrOfsVersion:])
	copy(h.TS[:], src[hdrOfsTS:])
	copy(h.DBPath[:], src[hdrOfsDBPath:])
	h.FileID = binary.LittleEndian.Uint64(src[hdrOfsFileID:])
	copy(h.Txt2[:], src[hdrOfsTxt2:])
	return h, nil
}

// JSectHeader frames one group-commit section. Len is the byte length
// of the whole section including header and footer; it is patched in
// after the section is assembled, which is why the footer's digest
// must exclude it.
type JSectHeader struct {
	Len       uint32
	SeqNumber uint64
	FileID    uint64 // must match the owning file's JHeader.FileID
}

// Encode writes the packed header into dst, which must hold at least
// SectHeaderSize bytes.
func (h JSectHeader) Encode(dst []byte) {
	binary.LittleEndian.PutUint32(dst[0:], h.Len)
	binary.LittleEndian.PutUint64(dst[4:], h.SeqNumber)
	binary.LittleEndian.PutUint64(dst[12:], h.FileID)
}

// AppendTo writes the packed header into b.
func (h JSectHeader) AppendTo(b *bufalign.AlignedBuilder) {
	b.AppendUint32(h.Len)
	b.AppendUint64(h.SeqNumber)
	b.AppendUint64(h.FileID)
}

func DecodeJSectHeader(src []byte) (JSectHeader, error) {
	var h JSectHeader
	if len(src) < SectHeaderSize {
		return h, ShortReadError("section header")
	}
	h.Len = binary.LittleEndian.Uint32(src[0:])
	h.SeqNumber = binary.LittleEndian.Uint64(src[4:])
	h.FileID = binary.LittleEndian.Uint64(src[12:])
	return h, nil
}

// JSectFooter closes a group-commit section. Hash is the key field:
// the 128-bit MD5 digest over the section's entry bytes, i.e.
// everything after the section header and before the footer itself.
type JSectFooter struct {
	Sentinel uint32 // OpCodeFooter
	Hash     [16]byte
	Reserved uint64
	Magic    [4]byte // "\n\n\n\n"
}

// NewJSectFooter computes the footer for a section whose entry bytes
// (post-header, pre-footer) are entryData.
func NewJSectFooter(entryData []byte) JSectFooter {
	return JSectFooter{
		Sentinel: OpCodeFooter,
		Hash:     md5.Sum(entryData),
		Magic:    footerMagic,
	}
}

// CheckHash recomputes the digest over entryData and compares it to
// the stored hash. A mismatch means the section is incomplete or
// corrupted and must be discarded in its entirety.
func (f *JSectFooter) CheckHash(entryData []byte) bool {
	current := md5.Sum(entryData)
	return bytes.Equal(f.Hash[:], current[:])
}

// Encode writes the packed footer into dst, which must hold at least
// SectFooterSize bytes.
func (f *JSectFooter) Encode(dst []byte) {
	binary.LittleEndian.PutUint32(dst[0:], f.Sentinel)
	copy(dst[4:], f.Hash[:])
	binary.LittleEndian.PutUint64(dst[20:], f.Reserved)
	copy(dst[28:], f.Magic[:])
}

// AppendTo writes the packed footer into b.
func (f *JSectFooter) AppendTo(b *bufalign.AlignedBuilder) {
	b.AppendUint32(f.Sentinel)
	b.AppendBytes(f.Hash[:])
	b.AppendUint64(f.Reserved)
	b.AppendBytes(f.Magic[:])
}

func DecodeJSectFooter(src []byte) (JSectFooter, error) {
	var f JSectFooter
	if len(src) < SectFooterSize {
		return f, ShortReadError("section footer")
	}
	f.Sentinel = binary.LittleEndian.Uint32(src[0:])
	copy(f.Hash[:], src[4:])
	f.Reserved = binary.LittleEndian.Uint64(src[20:])
	copy(f.Magic[:], src[28:])
	return f, nil
}

// JDbContext declares "the entries that follow target this database"
// until superseded by the next context marker, letting individual
// entries omit the database name.
type JDbContext struct {
	Name string
}

// AppendTo writes the sentinel and the NUL-terminated database name.
// It reports the name-too-large error from the builder, so it does not
// satisfy bufalign.Appender.
func (c JDbContext) AppendTo(b *bufalign.AlignedBuilder) error {
	b.AppendUint32(OpCodeDbContext)
	return b.AppendString(c.Name, true)
}
