package journal

import (
	"encoding/binary"
	"math"
	"strconv"

	"github.com/jpmec/mongo-nonx86/journal/bufalign"
)

// Entry opcodes. The leading 32-bit field of an entry is a tagged
// union: any value below OpCodeMin is the payload length of an
// ordinary write; the values at the top of the range are control
// records.
const (
	OpCodeFooter      uint32 = 0xffffffff
	OpCodeDbContext   uint32 = 0xfffffffe
	OpCodeFileCreated uint32 = 0xfffffffd
	OpCodeDropDb      uint32 = 0xfffffffc
	OpCodeMin         uint32 = 0xfffff000
)

// Sentinel and mask for the fileNo field.
const (
	// DotNsSuffix in the low bits means the entry targets the ".ns"
	// file rather than a numbered data file.
	DotNsSuffix int32 = 0x7fffffff

	// localDbBit, when set, means the entry targets the "local"
	// database, overriding the current db context. It must be masked
	// off before the rest of the field is read as a file number.
	localDbBit int32 = math.MinInt32
)

// EntryKind is the decoded discriminant of the opcode/length union.
// Downstream logic switches on it instead of comparing raw integers.
type EntryKind int

const (
	EntryWrite EntryKind = iota
	EntryFooter
	EntryDbContext
	EntryFileCreated
	EntryDropDb
)

// EntryTag is the result of decoding an entry's leading field. Len is
// meaningful only when Kind is EntryWrite.
type EntryTag struct {
	Kind EntryKind
	Len  uint32
}

// DecodeTag decodes the raw leading field of an entry once, so no
// caller needs to inspect the numeric opcode range directly.
func DecodeTag(raw uint32) (EntryTag, error) {
	if raw < OpCodeMin {
		return EntryTag{Kind: EntryWrite, Len: raw}, nil
	}
	switch raw {
	case OpCodeFooter:
		return EntryTag{Kind: EntryFooter}, nil
	case OpCodeDbContext:
		return EntryTag{Kind: EntryDbContext}, nil
	case OpCodeFileCreated:
		return EntryTag{Kind: EntryFileCreated}, nil
	case OpCodeDropDb:
		return EntryTag{Kind: EntryDropDb}, nil
	default:
		return EntryTag{}, UnknownOpcodeError(raw)
	}
}

// JEntry is the fixed part of one write operation within a section.
// The payload bytes follow immediately; their length is LenOrOpcode
// when it denotes an ordinary write. Either the entire section is
// applied or nothing: the footer digest is checked before any entry is
// acted on during recovery.
type JEntry struct {
	LenOrOpcode uint32
	Ofs         uint32 // byte offset in the target file for replay
	FileNo      int32  // low bits file number or DotNsSuffix; high bit "local" db
}

// GetFileNo returns the file number with the local-db bit masked off.
func (e JEntry) GetFileNo() int32 { return e.FileNo &^ localDbBit }

// SetFileNo overwrites the field, clearing any local-db bit.
func (e *JEntry) SetFileNo(f int32) { e.FileNo = f }

// IsNsSuffix reports whether the entry targets the ".ns" file.
func (e JEntry) IsNsSuffix() bool { return e.GetFileNo() == DotNsSuffix }

func (e *JEntry) SetLocalDbContextBit()   { e.FileNo |= localDbBit }
func (e *JEntry) ClearLocalDbContextBit() { e.FileNo = e.GetFileNo() }
func (e JEntry) IsLocalDbContext() bool   { return e.FileNo&localDbBit != 0 }

// FileSuffix renders a file number as the data file name suffix.
func FileSuffix(fileNo int32) string {
	if fileNo == DotNsSuffix {
		return "ns"
	}
	return strconv.FormatInt(int64(fileNo), 10)
}

// AppendTo writes the packed fixed part into b.
func (e JEntry) AppendTo(b *bufalign.AlignedBuilder) {
	b.AppendUint32(e.LenOrOpcode)
	b.AppendUint32(e.Ofs)
	b.AppendInt32(e.FileNo)
}

func DecodeJEntry(src []byte) (JEntry, error) {
	var e JEntry
	if len(src) < EntryHeaderSize {
		return e, ShortReadError("entry header")
	}
	e.LenOrOpcode = binary.LittleEndian.Uint32(src[0:])
	e.Ofs = binary.LittleEndian.Uint32(src[4:])
	e.FileNo = int32(binary.LittleEndian.Uint32(src[8:]))
	return e, nil
}

// FileRef is the API-boundary form of the packed fileNo field, so
// callers never manipulate the raw bit pattern.
type FileRef struct {
	Number  int32 // data file number, or DotNsSuffix for the ".ns" file
	LocalDb bool  // target the "local" database, overriding db context
}

// NsFileRef refers to the ".ns" file of the current database.
func NsFileRef() FileRef { return FileRef{Number: DotNsSuffix} }

// Pack encodes the reference into the on-disk fileNo field.
func (r FileRef) Pack() int32 {
	v := r.Number &^ localDbBit
	if r.LocalDb {
		v |= localDbBit
	}
	return v
}

// UnpackFileNo decodes a raw fileNo field into its two components.
func UnpackFileNo(raw int32) FileRef {
	return FileRef{Number: raw &^ localDbBit, LocalDb: raw&localDbBit != 0}
}
