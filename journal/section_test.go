package journal_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jpmec/mongo-nonx86/journal"
	"github.com/jpmec/mongo-nonx86/journal/bufalign"
)

// buildSection assembles the end-to-end reference section: fileId 7,
// seq 1, db context "test", one three-byte write at offset 0 of file 0.
func buildSection(t *testing.T) []byte {
	t.Helper()
	b := bufalign.NewAlignedBuilder(bufalign.Alignment)
	s := journal.NewSectionBuilder(b, 1, 7)
	assert.Nil(t, s.AddDbContext("test"))
	assert.Nil(t, s.AddWrite(journal.FileRef{Number: 0}, 0, []byte("abc")))
	sect := s.Finish()

	// detach from the builder so tests can mutate freely
	out := make([]byte, len(sect))
	copy(out, sect)
	return out
}

func TestSectionEndToEnd(t *testing.T) {
	sect := buildSection(t)
	assert.Nil(t, journal.VerifySection(sect, 7))

	h, err := journal.DecodeJSectHeader(sect)
	assert.Nil(t, err)
	assert.Equal(t, uint32(len(sect)), h.Len)
	assert.Equal(t, uint64(1), h.SeqNumber)
	assert.Equal(t, uint64(7), h.FileID)

	// corrupt one payload byte: verify fails, stored len still bounds
	// the section
	corrupt := make([]byte, len(sect))
	copy(corrupt, sect)
	corrupt[len(corrupt)-journal.SectFooterSize-1] ^= 0x01
	err = journal.VerifySection(corrupt, 7)
	assert.NotNil(t, err)
	var cerr journal.ChecksumError
	assert.ErrorAs(t, err, &cerr)
	assert.Equal(t, uint64(1), cerr.SeqNumber)

	h2, err := journal.DecodeJSectHeader(corrupt)
	assert.Nil(t, err)
	assert.Equal(t, uint32(len(corrupt)), h2.Len)
}

func TestVerifyFileIDBinding(t *testing.T) {
	sect := buildSection(t)
	// checksum is fine, but the section belongs to another file
	err := journal.VerifySection(sect, 8)
	var merr journal.FileIDMismatchError
	assert.ErrorAs(t, err, &merr)
	assert.Equal(t, uint64(7), merr.Got)
	assert.Equal(t, uint64(8), merr.Want)
}

func TestChecksumCoversEveryPostHeaderByte(t *testing.T) {
	sect := buildSection(t)
	for i := journal.SectHeaderSize; i < len(sect)-journal.SectFooterSize; i++ {
		corrupt := make([]byte, len(sect))
		copy(corrupt, sect)
		corrupt[i] ^= 0x01
		assert.NotNil(t, journal.VerifySection(corrupt, 7), "flipped bit in byte %d went undetected", i)
	}
}

func TestVerifyStructuralFailures(t *testing.T) {
	sect := buildSection(t)

	short := sect[:journal.SectHeaderSize+journal.SectFooterSize-1]
	assert.NotNil(t, journal.VerifySection(short, 7))

	badLen := make([]byte, len(sect))
	copy(badLen, sect)
	badLen[0] ^= 0x01
	var serr journal.BadSectionError
	assert.ErrorAs(t, journal.VerifySection(badLen, 7), &serr)

	badSentinel := make([]byte, len(sect))
	copy(badSentinel, sect)
	badSentinel[len(badSentinel)-journal.SectFooterSize] = 0
	assert.ErrorAs(t, journal.VerifySection(badSentinel, 7), &serr)
}

func TestTwoSectionsInOneBuilder(t *testing.T) {
	b := bufalign.NewAlignedBuilder(bufalign.Alignment)

	s1 := journal.NewSectionBuilder(b, 1, 7)
	assert.Nil(t, s1.AddWrite(journal.FileRef{Number: 0}, 0, []byte("first")))
	s1.Finish()
	split := b.Len()

	s2 := journal.NewSectionBuilder(b, 2, 7)
	assert.Nil(t, s2.AddWrite(journal.FileRef{Number: 1}, 16, []byte("second")))
	s2.Finish()

	buf := b.Bytes()
	assert.Nil(t, journal.VerifySection(buf[:split], 7))
	assert.Nil(t, journal.VerifySection(buf[split:], 7))

	h2, err := journal.DecodeJSectHeader(buf[split:])
	assert.Nil(t, err)
	assert.Equal(t, uint64(2), h2.SeqNumber)
}

func TestAddWriteOversizePayload(t *testing.T) {
	b := bufalign.NewAlignedBuilder(bufalign.Alignment)
	s := journal.NewSectionBuilder(b, 1, 7)
	err := s.AddWrite(journal.FileRef{}, 0, make([]byte, journal.MaxPayloadSize+1))
	assert.NotNil(t, err)
}

func TestBuilderReuseAfterReset(t *testing.T) {
	b := bufalign.NewAlignedBuilder(bufalign.Alignment)

	s := journal.NewSectionBuilder(b, 1, 7)
	assert.Nil(t, s.AddWrite(journal.FileRef{}, 0, []byte("abc")))
	first := s.Finish()
	firstCopy := make([]byte, len(first))
	copy(firstCopy, first)

	b.Reset()
	s = journal.NewSectionBuilder(b, 2, 7)
	assert.Nil(t, s.AddWrite(journal.FileRef{}, 0, []byte("xyz")))
	second := s.Finish()

	assert.Nil(t, journal.VerifySection(firstCopy, 7))
	assert.Nil(t, journal.VerifySection(second, 7))
	assert.Equal(t, len(firstCopy), len(second))
}
