// Package bufalign implements a page-aligned growable byte buffer used
// to assemble one group-commit section in memory before it is handed to
// an I/O layer that requires block-aligned (direct/unbuffered) writes.
// A builder is single-writer: one goroutine owns it while a section is
// being assembled.
package bufalign

import (
	"encoding/binary"
	"fmt"
	"math"
	"unsafe"
)

const (
	// Alignment is the block size every allocation is rounded to. It
	// matches the journal file header size so a header or section can
	// be written with a single aligned I/O.
	Alignment = 8192

	// MaxAppendSize bounds a single string or byte-slice append. It is
	// the maximum document size of the storage engine; anything larger
	// is a contract violation by the caller.
	MaxAppendSize = 16 * 1024 * 1024

	// sizeCap is the allocation size Reset shrinks back to once the
	// backing block has grown past it, so one oversized section does
	// not pin peak memory for the life of the process.
	sizeCap = 128 * 1024 * 1024
)

// AlignedBuilder accumulates typed appends into one contiguous
// Alignment-aligned block, growing as needed. All fixed-width values
// are encoded little-endian regardless of host architecture.
//
// Growth reallocates the backing block, so byte slices obtained from
// Bytes or AtOfs are invalidated by any later append or Reset. Integer
// offsets (from Len or Skip) are the stable handles; re-derive slices
// from them at use time.
type AlignedBuilder struct {
	alloc []byte // raw allocation; data is an aligned window into it
	data  []byte
	used  int
}

// NewAlignedBuilder allocates an aligned block of at least initSize
// bytes, rounded up to a multiple of Alignment.
func NewAlignedBuilder(initSize int) *AlignedBuilder {
	a := &AlignedBuilder{}
	a.alloc, a.data = alignedAlloc(roundUpToAlignment(initSize))
	return a
}

func roundUpToAlignment(n int) int {
	if n < Alignment {
		return Alignment
	}
	if rem := n % Alignment; rem != 0 {
		n += Alignment - rem
	}
	return n
}

// alignedAlloc over-allocates by one Alignment and slices to the first
// aligned address. size must already be a multiple of Alignment. An
// allocation failure panics via the runtime, which is the correct
// outcome for a durability subsystem that cannot buffer its writes.
func alignedAlloc(size int) (alloc, data []byte) {
	alloc = make([]byte, size+Alignment)
	ofs := 0
	if rem := int(uintptr(unsafe.Pointer(&alloc[0])) % Alignment); rem != 0 {
		ofs = Alignment - rem
	}
	return alloc, alloc[ofs : ofs+size : ofs+size]
}

// Len returns the in-use length in bytes.
func (a *AlignedBuilder) Len() int { return a.used }

// Size returns the allocated size, always a multiple of Alignment.
func (a *AlignedBuilder) Size() int { return len(a.data) }

// Bytes returns the in-use portion of the buffer. Valid only until the
// next append or Reset.
func (a *AlignedBuilder) Bytes() []byte { return a.data[:a.used] }

// AtOfs returns the in-use bytes starting at ofs. Valid only until the
// next append or Reset.
func (a *AlignedBuilder) AtOfs(ofs int) []byte { return a.data[ofs:a.used] }

// Reset empties the buffer for reuse. The backing allocation is kept
// unless it has grown past the 128 MiB cap, in which case it is shrunk
// back to the cap.
func (a *AlignedBuilder) Reset() {
	a.used = 0
	if len(a.data) > sizeCap {
		a.realloc(sizeCap)
	}
}

// Skip grows the in-use length by n bytes without writing them and
// returns the offset of the reserved region. Used for fields whose
// value is only known after the rest of a section is built.
func (a *AlignedBuilder) Skip(n int) int { return a.grow(n) }

// grow extends the in-use length by n, reallocating first if the
// current block is too small, and returns the pre-grow offset.
func (a *AlignedBuilder) grow(n int) int {
	ofs := a.used
	if a.used+n > len(a.data) {
		a.growReallocate(a.used + n)
	}
	a.used += n
	return ofs
}

func (a *AlignedBuilder) growReallocate(need int) {
	newSize := len(a.data) * 2
	for newSize < need {
		newSize *= 2
	}
	a.realloc(roundUpToAlignment(newSize))
}

// realloc moves the in-use bytes to a fresh aligned block. a.used
// never exceeds the current allocation when this is called: grow
// reallocates before extending it, and Reset shrinks with used == 0.
func (a *AlignedBuilder) realloc(newSize int) {
	alloc, data := alignedAlloc(newSize)
	copy(data, a.data[:a.used])
	a.alloc, a.data = alloc, data
}

func (a *AlignedBuilder) AppendByte(v byte) {
	ofs := a.grow(1)
	a.data[ofs] = v
}

func (a *AlignedBuilder) AppendBool(v bool) {
	if v {
		a.AppendByte(1)
	} else {
		a.AppendByte(0)
	}
}

func (a *AlignedBuilder) AppendUint16(v uint16) {
	ofs := a.grow(2)
	binary.LittleEndian.PutUint16(a.data[ofs:], v)
}

func (a *AlignedBuilder) AppendUint32(v uint32) {
	ofs := a.grow(4)
	binary.LittleEndian.PutUint32(a.data[ofs:], v)
}

func (a *AlignedBuilder) AppendInt32(v int32) {
	a.AppendUint32(uint32(v))
}

func (a *AlignedBuilder) AppendUint64(v uint64) {
	ofs := a.grow(8)
	binary.LittleEndian.PutUint64(a.data[ofs:], v)
}

func (a *AlignedBuilder) AppendInt64(v int64) {
	a.AppendUint64(uint64(v))
}

func (a *AlignedBuilder) AppendFloat64(v float64) {
	a.AppendUint64(math.Float64bits(v))
}

// AppendBytes appends src verbatim.
func (a *AlignedBuilder) AppendBytes(src []byte) {
	ofs := a.grow(len(src))
	copy(a.data[ofs:], src)
}

// Appender is implemented by fixed-layout records that write their
// packed little-endian encoding into a builder.
type Appender interface {
	AppendTo(a *AlignedBuilder)
}

// AppendStruct appends the packed encoding of s.
func (a *AlignedBuilder) AppendStruct(s Appender) { s.AppendTo(a) }

// AppendString appends the bytes of s, plus a NUL terminator when
// includeNUL is set. Appends at or beyond MaxAppendSize are refused.
func (a *AlignedBuilder) AppendString(s string, includeNUL bool) error {
	n := len(s)
	if includeNUL {
		n++
	}
	if n >= MaxAppendSize {
		return fmt.Errorf("bufalign: string append of %d bytes exceeds maximum of %d", n, MaxAppendSize)
	}
	ofs := a.grow(n)
	copy(a.data[ofs:], s)
	if includeNUL {
		a.data[ofs+n-1] = 0
	}
	return nil
}
