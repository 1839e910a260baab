package journal_test

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jpmec/mongo-nonx86/journal"
	"github.com/jpmec/mongo-nonx86/journal/bufalign"
)

// buildJournalFile composes a complete journal file image: header,
// two sections, then a zero-filled tail like a preallocated file.
func buildJournalFile(t *testing.T) ([]byte, journal.JHeader) {
	t.Helper()
	h := journal.NewJHeader("/data/db/journal/j._0")

	var file bytes.Buffer
	file.Write(h.Encode())

	b := bufalign.NewAlignedBuilder(bufalign.Alignment)

	s1 := journal.NewSectionBuilder(b, 1, h.FileID)
	assert.Nil(t, s1.AddDbContext("test"))
	assert.Nil(t, s1.AddWrite(journal.FileRef{Number: 0}, 0, []byte("abc")))
	file.Write(s1.Finish())

	b.Reset()
	s2 := journal.NewSectionBuilder(b, 2, h.FileID)
	assert.Nil(t, s2.AddWrite(journal.FileRef{Number: 1, LocalDb: true}, 4096, []byte("defg")))
	assert.Nil(t, s2.AddFileCreated("/data/db/test.1", 1<<27))
	assert.Nil(t, s2.AddDropDb("olddb"))
	file.Write(s2.Finish())

	file.Write(make([]byte, 8192)) // unwritten preallocated space

	return file.Bytes(), h
}

func TestScannerReadsAllSections(t *testing.T) {
	fileBytes, want := buildJournalFile(t)

	r := bytes.NewReader(fileBytes)
	h, err := journal.ReadJHeader(r)
	assert.Nil(t, err)
	assert.Equal(t, want.FileID, h.FileID)

	sc := journal.NewSectionScanner(r, h.FileID)

	assert.True(t, sc.Next())
	assert.Equal(t, uint64(1), sc.Header().SeqNumber)
	it := sc.Entries()
	e, err := it.Next()
	assert.Nil(t, err)
	assert.Equal(t, journal.EntryWrite, e.Kind)
	assert.Equal(t, "test", e.DB)
	assert.Equal(t, []byte("abc"), e.Payload)
	assert.Equal(t, uint32(0), e.Ofs)
	_, err = it.Next()
	assert.Equal(t, io.EOF, err)

	assert.True(t, sc.Next())
	assert.Equal(t, uint64(2), sc.Header().SeqNumber)
	it = sc.Entries()

	e, err = it.Next()
	assert.Nil(t, err)
	assert.Equal(t, journal.EntryWrite, e.Kind)
	assert.Equal(t, "local", e.DB) // per-entry override beats db context
	assert.True(t, e.Ref.LocalDb)
	assert.Equal(t, int32(1), e.Ref.Number)
	assert.Equal(t, uint32(4096), e.Ofs)
	assert.Equal(t, []byte("defg"), e.Payload)

	e, err = it.Next()
	assert.Nil(t, err)
	assert.Equal(t, journal.EntryFileCreated, e.Kind)
	assert.Equal(t, "/data/db/test.1", e.Path)
	assert.Equal(t, uint64(1<<27), e.FileSize)

	e, err = it.Next()
	assert.Nil(t, err)
	assert.Equal(t, journal.EntryDropDb, e.Kind)
	assert.Equal(t, "olddb", e.DB)

	_, err = it.Next()
	assert.Equal(t, io.EOF, err)

	// the zero-filled tail terminates the scan cleanly
	assert.False(t, sc.Next())
	assert.Nil(t, sc.Err())
}

func TestScannerStopsAtCorruptSection(t *testing.T) {
	fileBytes, h := buildJournalFile(t)

	// locate the second section and corrupt one of its entry bytes
	firstLen := sectionLenAt(t, fileBytes, journal.HeaderSize)
	secondOfs := journal.HeaderSize + firstLen
	fileBytes[secondOfs+journal.SectHeaderSize] ^= 0x01

	r := bytes.NewReader(fileBytes[journal.HeaderSize:])
	sc := journal.NewSectionScanner(r, h.FileID)

	assert.True(t, sc.Next())
	assert.Equal(t, uint64(1), sc.Header().SeqNumber)

	assert.False(t, sc.Next())
	var cerr journal.ChecksumError
	assert.ErrorAs(t, sc.Err(), &cerr)
	assert.Equal(t, uint64(2), cerr.SeqNumber)
}

func TestScannerRejectsForeignFileID(t *testing.T) {
	fileBytes, h := buildJournalFile(t)
	r := bytes.NewReader(fileBytes[journal.HeaderSize:])

	// a recycled file: sections carry the previous incarnation's id
	sc := journal.NewSectionScanner(r, h.FileID+1)
	assert.False(t, sc.Next())
	var merr journal.FileIDMismatchError
	assert.ErrorAs(t, sc.Err(), &merr)
}

func TestScannerTruncatedSection(t *testing.T) {
	fileBytes, h := buildJournalFile(t)
	firstLen := sectionLenAt(t, fileBytes, journal.HeaderSize)

	// cut the file mid-section, as a crash during the flush would
	truncated := fileBytes[journal.HeaderSize : journal.HeaderSize+firstLen-10]
	sc := journal.NewSectionScanner(bytes.NewReader(truncated), h.FileID)
	assert.False(t, sc.Next())
	var serr journal.ShortReadError
	assert.ErrorAs(t, sc.Err(), &serr)
}

func TestScannerRejectsOversizeLength(t *testing.T) {
	// a garbage length field must be rejected up front, not used to
	// size the section buffer
	hdr := journal.JSectHeader{Len: 0xffffffff, SeqNumber: 1, FileID: 7}
	buf := make([]byte, journal.SectHeaderSize)
	hdr.Encode(buf)

	sc := journal.NewSectionScanner(bytes.NewReader(buf), 7)
	assert.False(t, sc.Next())
	var berr journal.BadSectionError
	assert.ErrorAs(t, sc.Err(), &berr)
}

func sectionLenAt(t *testing.T, fileBytes []byte, ofs int) int {
	t.Helper()
	h, err := journal.DecodeJSectHeader(fileBytes[ofs:])
	assert.Nil(t, err)
	return int(h.Len)
}
