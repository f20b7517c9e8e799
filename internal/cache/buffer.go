package cache

import (
	"container/list"

	"github.com/deploymenttheory/go-minixfs/internal/interfaces"
	"github.com/deploymenttheory/go-minixfs/internal/types"
)

// buffer is one cache slot. All state is guarded by the owning cache's mutex.
type buffer struct {
	cache *LRUCache
	dev   types.DevT
	block types.BlockNr
	data  []byte

	count    int // references held by clients
	mapped   int // outstanding Map calls
	dirty    bool
	uptodate bool

	element *list.Element // position on the free list while unreferenced
}

var _ interfaces.Buffer = (*buffer)(nil)

func (b *buffer) Dev() types.DevT      { return b.dev }
func (b *buffer) Block() types.BlockNr { return b.block }

func (b *buffer) Map() []byte {
	b.cache.mu.Lock()
	defer b.cache.mu.Unlock()
	b.mapped++
	return b.data
}

func (b *buffer) Unmap() {
	b.cache.mu.Lock()
	defer b.cache.mu.Unlock()
	if b.mapped > 0 {
		b.mapped--
	}
}

// Mapped reports whether any Map is outstanding.
func (b *buffer) Mapped() bool {
	b.cache.mu.Lock()
	defer b.cache.mu.Unlock()
	return b.mapped > 0
}

// MarkDirty also marks the buffer uptodate.
func (b *buffer) MarkDirty() {
	b.cache.mu.Lock()
	defer b.cache.mu.Unlock()
	b.dirty = true
	b.uptodate = true
}

func (b *buffer) MarkUptodate() {
	b.cache.mu.Lock()
	defer b.cache.mu.Unlock()
	b.uptodate = true
}

func (b *buffer) Dirty() bool {
	b.cache.mu.Lock()
	defer b.cache.mu.Unlock()
	return b.dirty
}

func (b *buffer) Uptodate() bool {
	b.cache.mu.Lock()
	defer b.cache.mu.Unlock()
	return b.uptodate
}
