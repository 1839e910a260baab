package bufalign

import "sync"

// BuilderPool pools AlignedBuilder instances so a group-commit
// coordinator can assemble the next section while the previous one is
// still being flushed (double-buffering), without reallocating aligned
// blocks on the hot path.
type BuilderPool struct {
	initSize int
	pool     sync.Pool
}

// NewBuilderPool creates a pool whose builders start at initSize bytes.
func NewBuilderPool(initSize int) *BuilderPool {
	p := &BuilderPool{initSize: initSize}
	p.pool.New = func() interface{} {
		return NewAlignedBuilder(p.initSize)
	}
	return p
}

// Get returns an empty builder from the pool.
func (p *BuilderPool) Get() *AlignedBuilder {
	return p.pool.Get().(*AlignedBuilder)
}

// Put resets b and returns it to the pool. The caller must not use b
// afterwards.
func (p *BuilderPool) Put(b *AlignedBuilder) {
	b.Reset()
	p.pool.Put(b)
}
