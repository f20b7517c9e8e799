package bitmap

import (
	"errors"
	"fmt"
	"sync"

	"github.com/deploymenttheory/go-minixfs/internal/interfaces"
	"github.com/deploymenttheory/go-minixfs/internal/types"
)

var (
	// ErrNoSpace is returned when no zone or inode number is free
	ErrNoSpace = errors.New("no space left on device")

	// ErrNotInDataZone is returned when freeing a block outside the data area
	ErrNotInDataZone = errors.New("block not in data zone")

	// ErrAlreadyFree is returned when freeing a zone or inode that is not allocated
	ErrAlreadyFree = errors.New("bit already cleared")
)

// Geometry is the part of the superblock the allocator needs
type Geometry struct {
	Ninodes       uint16
	Nzones        uint16
	FirstDataZone uint16
}

// AllocatorConfig wires an Allocator to a mounted volume
type AllocatorConfig struct {
	Store    *Store
	Cache    interfaces.BufferCache
	Dev      types.DevT
	Geometry Geometry
	// Lock serializes bitmap changes; normally the superblock lock
	Lock sync.Locker
	// Changed is called after every successful allocation or free
	Changed func()
	Log     interfaces.Logger
}

// Allocator implements interfaces.BitAllocator over a Store. Zone bit j
// stands for block FirstDataZone+j-1; inode bit j stands for inode j.
type Allocator struct {
	store   *Store
	cache   interfaces.BufferCache
	dev     types.DevT
	geo     Geometry
	lock    sync.Locker
	changed func()
	log     interfaces.Logger
}

var _ interfaces.BitAllocator = (*Allocator)(nil)

// NewAllocator creates an allocator for a loaded store
func NewAllocator(cfg AllocatorConfig) *Allocator {
	a := &Allocator{
		store:   cfg.Store,
		cache:   cfg.Cache,
		dev:     cfg.Dev,
		geo:     cfg.Geometry,
		lock:    cfg.Lock,
		changed: cfg.Changed,
		log:     cfg.Log,
	}
	if a.lock == nil {
		a.lock = &sync.Mutex{}
	}
	return a
}

func (a *Allocator) zoneBits() uint32 {
	if a.geo.Nzones < a.geo.FirstDataZone {
		return 0
	}
	return uint32(a.geo.Nzones-a.geo.FirstDataZone) + 1
}

func (a *Allocator) inodeBits() uint32 {
	return uint32(a.geo.Ninodes) + 1
}

func (a *Allocator) notify() {
	if a.changed != nil {
		a.changed()
	}
}

func (a *Allocator) logf(format string, v ...any) {
	if a.log != nil {
		a.log.Printf(format, v...)
	}
}

// NewBlock implements interfaces.BitAllocator
func (a *Allocator) NewBlock() (types.BlockNr, error) {
	a.lock.Lock()
	bit, ok := a.store.Zones().FirstZero(a.zoneBits())
	if !ok || bit == 0 {
		a.lock.Unlock()
		return 0, ErrNoSpace
	}
	if _, err := a.store.Zones().Set(bit); err != nil {
		a.lock.Unlock()
		return 0, err
	}
	a.lock.Unlock()

	block := types.BlockNr(uint32(bit) + uint32(a.geo.FirstDataZone) - 1)

	buf, err := a.cache.Getblk(a.dev, block)
	if err != nil {
		a.lock.Lock()
		a.store.Zones().Clear(bit)
		a.lock.Unlock()
		a.logf("new_block: cannot get block %d on %s: %v", block, a.cache.DeviceName(a.dev), err)
		return 0, fmt.Errorf("failed to get new block %d: %w", block, err)
	}
	data := buf.Map()
	clear(data)
	buf.MarkUptodate()
	buf.MarkDirty()
	buf.Unmap()
	a.cache.Release(buf)

	a.notify()
	return block, nil
}

// FreeBlock implements interfaces.BitAllocator
func (a *Allocator) FreeBlock(block types.BlockNr) error {
	if uint16(block) < a.geo.FirstDataZone || uint16(block) >= a.geo.Nzones {
		a.logf("trying to free block %d not in datazone on %s", block, a.cache.DeviceName(a.dev))
		return fmt.Errorf("%w: block %d", ErrNotInDataZone, block)
	}

	bit := uint32(block) - uint32(a.geo.FirstDataZone) + 1

	a.lock.Lock()
	was, err := a.store.Zones().Clear(bit)
	a.lock.Unlock()
	if err != nil {
		return err
	}
	if !was {
		a.logf("free_block (%s:%d): bit already cleared", a.cache.DeviceName(a.dev), block)
		return fmt.Errorf("%w: block %d", ErrAlreadyFree, block)
	}

	a.notify()
	return nil
}

// NewInode implements interfaces.BitAllocator
func (a *Allocator) NewInode() (types.Ino, error) {
	a.lock.Lock()
	bit, ok := a.store.Inodes().FirstZero(a.inodeBits())
	if !ok || bit == 0 {
		a.lock.Unlock()
		return 0, ErrNoSpace
	}
	if _, err := a.store.Inodes().Set(bit); err != nil {
		a.lock.Unlock()
		return 0, err
	}
	a.lock.Unlock()

	a.notify()
	return types.Ino(bit), nil
}

// FreeInode implements interfaces.BitAllocator
func (a *Allocator) FreeInode(ino types.Ino) error {
	if ino < 1 || uint16(ino) > a.geo.Ninodes {
		a.logf("free_inode: inode %d out of range on %s", ino, a.cache.DeviceName(a.dev))
		return fmt.Errorf("inode %d out of range 1..%d", ino, a.geo.Ninodes)
	}

	a.lock.Lock()
	was, err := a.store.Inodes().Clear(uint32(ino))
	a.lock.Unlock()
	if err != nil {
		return err
	}
	if !was {
		a.logf("free_inode: bit %d already cleared on %s", ino, a.cache.DeviceName(a.dev))
		return fmt.Errorf("%w: inode %d", ErrAlreadyFree, ino)
	}

	a.notify()
	return nil
}

// CountFreeBlocks implements interfaces.BitAllocator
func (a *Allocator) CountFreeBlocks() uint32 {
	a.lock.Lock()
	defer a.lock.Unlock()
	return a.store.Zones().CountZero(a.zoneBits())
}

// CountFreeInodes implements interfaces.BitAllocator
func (a *Allocator) CountFreeInodes() uint32 {
	a.lock.Lock()
	defer a.lock.Unlock()
	return a.store.Inodes().CountZero(a.inodeBits())
}
