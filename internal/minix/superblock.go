// Package minix implements the MINIX V1 filesystem core: the superblock
// lifecycle, the inode codec and the logical-to-physical block mapper. It
// sits on a shared buffer cache and leaves directories, permissions and
// inode identity to its callers.
package minix

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/deploymenttheory/go-minixfs/internal/bitmap"
	"github.com/deploymenttheory/go-minixfs/internal/interfaces"
	"github.com/deploymenttheory/go-minixfs/internal/logging"
	"github.com/deploymenttheory/go-minixfs/internal/parsers/inodes"
	"github.com/deploymenttheory/go-minixfs/internal/parsers/superblock"
	"github.com/deploymenttheory/go-minixfs/internal/types"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// AllocatorFactory builds the bit allocator for a volume once its bitmaps are loaded
type AllocatorFactory func(sb *Superblock, store *bitmap.Store) interfaces.BitAllocator

// Option configures a Superblock
type Option func(*Superblock)

// WithLogger sets the destination of diagnostics
func WithLogger(l interfaces.Logger) Option {
	return func(sb *Superblock) { sb.log = l }
}

// WithDebugLogger sets the destination of diagnostics suppressed by silent mounts
func WithDebugLogger(l interfaces.Logger) Option {
	return func(sb *Superblock) { sb.debug = l }
}

// WithAllocator replaces the bitmap allocator
func WithAllocator(f AllocatorFactory) Option {
	return func(sb *Superblock) { sb.newAllocator = f }
}

// WithClock sets the time source for inode timestamps
func WithClock(now func() time.Time) Option {
	return func(sb *Superblock) { sb.now = now }
}

// MountOptions are the per-mount flags
type MountOptions struct {
	ReadOnly bool
	// Silent moves the format mismatch diagnostic to the debug logger
	Silent bool
	// Data is accepted for interface compatibility and ignored
	Data string
}

// Statfs describes a mounted volume
type Statfs struct {
	Type        uint16 `json:"type" yaml:"type"`
	BlockSize   uint32 `json:"block_size" yaml:"block_size"`
	Blocks      uint32 `json:"blocks" yaml:"blocks"`
	FreeBlocks  uint32 `json:"free_blocks" yaml:"free_blocks"`
	AvailBlocks uint32 `json:"avail_blocks" yaml:"avail_blocks"`
	Files       uint32 `json:"files" yaml:"files"`
	FreeFiles   uint32 `json:"free_files" yaml:"free_files"`
	NameLen     uint32 `json:"name_len" yaml:"name_len"`
}

// Superblock is the in-memory state of one mounted volume. The mutex is a
// single coarse lock over the mount state, the superblock buffer and the
// bitmaps.
type Superblock struct {
	mu sync.Mutex

	cache  interfaces.BufferCache
	target types.DevT // device to mount
	dev    types.DevT // bound device, NoDev when unmounted

	id         uuid.UUID
	sbh        interfaces.Buffer
	raw        types.SuperblockT
	mountState uint16
	readOnly   bool
	dirty      atomic.Bool

	store  *bitmap.Store
	alloc  interfaces.BitAllocator
	itable *inodeTable
	root   *Inode

	log          interfaces.Logger
	debug        interfaces.Logger
	newAllocator AllocatorFactory
	now          func() time.Time
}

// NewSuperblock prepares an unmounted superblock for dev
func NewSuperblock(cache interfaces.BufferCache, dev types.DevT, opts ...Option) *Superblock {
	sb := &Superblock{
		cache:        cache,
		target:       dev,
		dev:          types.NoDev,
		log:          logging.Warn(logrus.StandardLogger(), "minix: "),
		debug:        logging.Debug(logrus.StandardLogger(), "minix: "),
		newAllocator: NewBitmapAllocator,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(sb)
	}
	return sb
}

// NewBitmapAllocator is the default AllocatorFactory
func NewBitmapAllocator(sb *Superblock, store *bitmap.Store) interfaces.BitAllocator {
	return bitmap.NewAllocator(bitmap.AllocatorConfig{
		Store: store,
		Cache: sb.cache,
		Dev:   sb.target,
		Geometry: bitmap.Geometry{
			Ninodes:       sb.raw.Ninodes,
			Nzones:        sb.raw.Nzones,
			FirstDataZone: sb.raw.FirstDataZone,
		},
		Lock:    &sb.mu,
		Changed: func() { sb.dirty.Store(true) },
		Log:     sb.log,
	})
}

// Mount reads and validates the superblock, loads both bitmaps and the
// root inode. On failure nothing stays referenced and the superblock is
// left unbound.
func (sb *Superblock) Mount(opts MountOptions) error {
	if inodes.RecordSize() != types.InodeRecordSize {
		panic(fmt.Sprintf("bad inode size %d", inodes.RecordSize()))
	}

	sb.mu.Lock()
	if sb.dev != types.NoDev {
		sb.mu.Unlock()
		return fmt.Errorf("device %s: %w", sb.cache.DeviceName(sb.target), ErrMounted)
	}
	dev := sb.target
	name := sb.cache.DeviceName(dev)

	bh, err := sb.cache.Bread(dev, types.SuperblockBlock)
	if err != nil {
		sb.dev = types.NoDev
		sb.mu.Unlock()
		sb.log.Printf("unable to read superblock of %s", name)
		return fmt.Errorf("failed to read superblock: %w", err)
	}

	raw, err := superblock.Parse(bh.Map(), binary.LittleEndian)
	bh.Unmap()
	if err == nil {
		err = superblock.Validate(raw)
	}
	if err != nil {
		sb.dev = types.NoDev
		sb.mu.Unlock()
		sb.cache.Release(bh)
		if opts.Silent {
			sb.debug.Printf("VFS: dev %s is not minixfs", name)
		} else {
			sb.log.Printf("VFS: dev %s is not minixfs", name)
		}
		return err
	}

	if err := checkGeometry(raw); err != nil {
		sb.dev = types.NoDev
		sb.mu.Unlock()
		sb.cache.Release(bh)
		sb.log.Printf("bad superblock on %s: %v", name, err)
		return err
	}

	store, err := bitmap.Load(sb.cache, dev, raw.ImapBlocks, raw.ZmapBlocks)
	if err != nil {
		sb.dev = types.NoDev
		sb.mu.Unlock()
		sb.cache.Release(bh)
		sb.log.Printf("bad superblock or bitmaps on %s", name)
		return err
	}
	store.ReserveZero()

	sb.sbh = bh
	sb.raw = *raw
	sb.mountState = raw.State
	sb.readOnly = opts.ReadOnly
	sb.store = store
	sb.alloc = sb.newAllocator(sb, store)
	sb.itable = newInodeTable()

	// Enough is set up to read an inode
	sb.dev = dev
	sb.mu.Unlock()

	root, err := sb.Iget(types.RootIno)
	if err != nil {
		sb.mu.Lock()
		sb.releaseLocked()
		sb.mu.Unlock()
		sb.log.Printf("get root inode failed on %s", name)
		return fmt.Errorf("failed to load root inode: %w", err)
	}
	sb.root = root

	sb.mu.Lock()
	if !sb.readOnly {
		sb.raw.State &^= types.StateValid
		sb.commitLocked()
		sb.dirty.Store(true)
	}
	sb.id = uuid.New()
	state := sb.mountState
	sb.mu.Unlock()

	sb.warnState("mounting", state)
	return nil
}

// checkGeometry rejects layouts the mapper and allocator cannot work with.
func checkGeometry(raw *types.SuperblockT) error {
	if raw.Ninodes == 0 {
		return fmt.Errorf("%w: no inodes", ErrBadSuperblock)
	}
	itableEnd := uint32(raw.InodeTableBlock()) +
		(uint32(raw.Ninodes)+types.InodesPerBlock-1)/types.InodesPerBlock
	if uint32(raw.FirstDataZone) < itableEnd {
		return fmt.Errorf("%w: first data zone %d inside inode table ending at %d", ErrBadSuperblock, raw.FirstDataZone, itableEnd)
	}
	if raw.FirstDataZone >= raw.Nzones {
		return fmt.Errorf("%w: first data zone %d beyond %d zones", ErrBadSuperblock, raw.FirstDataZone, raw.Nzones)
	}
	return nil
}

func (sb *Superblock) warnState(action string, state uint16) {
	name := sb.cache.DeviceName(sb.target)
	if state&types.StateValid == 0 {
		sb.log.Printf("%s unchecked file system on %s, running fsck is recommended", action, name)
	} else if state&types.StateError != 0 {
		sb.log.Printf("%s file system with errors on %s, running fsck is recommended", action, name)
	}
}

// commitLocked encodes the cached superblock into its buffer and marks it
// dirty. Must be called with mu locked
func (sb *Superblock) commitLocked() {
	data := sb.sbh.Map()
	_ = superblock.Encode(data, &sb.raw, binary.LittleEndian)
	sb.sbh.MarkDirty()
	sb.sbh.Unmap()
}

// releaseLocked drops the bitmaps and the superblock buffer and unbinds
// the device. Must be called with mu locked
func (sb *Superblock) releaseLocked() {
	sb.dev = types.NoDev
	if sb.store != nil {
		sb.store.ReleaseAll()
		sb.store = nil
	}
	if sb.sbh != nil {
		sb.cache.Release(sb.sbh)
		sb.sbh = nil
	}
	sb.alloc = nil
	sb.itable = nil
	sb.root = nil
}

// Unmount writes back dirty inodes, restores the recorded mount state on a
// read-write mount and releases every buffer the mount holds. Released
// buffers are flushed to the device before returning.
func (sb *Superblock) Unmount() error {
	if sb.Dev() == types.NoDev {
		return ErrNotMounted
	}

	errs := sb.itable.drain(sb)

	sb.mu.Lock()
	dev := sb.dev
	if !sb.readOnly {
		sb.raw.State = sb.mountState
		sb.commitLocked()
	}
	sb.releaseLocked()
	sb.mu.Unlock()

	if err := sb.cache.Flush(dev); err != nil {
		errs = append(errs, fmt.Errorf("failed to flush %s: %w", sb.cache.DeviceName(dev), err))
	}
	return errors.Join(errs...)
}

// Remount switches between read-only and read-write. Going read-only
// persists the recorded mount state synchronously unless the disk is
// already marked valid or the recorded state was never valid, in which
// case only the flag changes. Going read-write records the disk state and
// clears its valid bit.
func (sb *Superblock) Remount(readOnly bool) error {
	sb.mu.Lock()
	if sb.dev == types.NoDev {
		sb.mu.Unlock()
		return ErrNotMounted
	}
	if readOnly == sb.readOnly {
		sb.mu.Unlock()
		return nil
	}

	if readOnly {
		if sb.raw.State&types.StateValid != 0 || sb.mountState&types.StateValid == 0 {
			sb.readOnly = true
			sb.mu.Unlock()
			return nil
		}
		// Mounting a read-write volume read-only
		sb.raw.State = sb.mountState
		sb.commitLocked()
		sb.dirty.Store(false)
		if err := sb.cache.WriteSync(sb.sbh); err != nil {
			sb.mu.Unlock()
			sb.log.Printf("unable to write superblock of %s: %v", sb.cache.DeviceName(sb.dev), err)
			return fmt.Errorf("failed to write superblock: %w", err)
		}
		sb.readOnly = true
	} else {
		// Mounting a read-only volume read-write
		sb.mountState = sb.raw.State
		sb.raw.State &^= types.StateValid
		sb.commitLocked()
		sb.dirty.Store(true)
		sb.readOnly = false
	}
	state := sb.mountState
	sb.mu.Unlock()

	sb.warnState("remounting", state)
	return nil
}

// WriteSuper commits the superblock at a sync point. A read-write volume
// keeps its valid bit cleared on disk while mounted.
func (sb *Superblock) WriteSuper() {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	if sb.dev == types.NoDev {
		return
	}
	if !sb.readOnly {
		if sb.raw.State&types.StateValid != 0 {
			sb.raw.State &^= types.StateValid
		}
		sb.commitLocked()
	}
	sb.dirty.Store(false)
}

// Sync writes back dirty inodes, commits the superblock and flushes the
// device
func (sb *Superblock) Sync() error {
	if sb.Dev() == types.NoDev {
		return ErrNotMounted
	}
	errs := sb.itable.sync(sb)
	sb.WriteSuper()
	if err := sb.cache.Flush(sb.Dev()); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// SetMountState replaces the state recorded at mount time; it is written
// to disk on unmount or on a remount to read-only
func (sb *Superblock) SetMountState(state uint16) error {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	if sb.dev == types.NoDev {
		return ErrNotMounted
	}
	if sb.readOnly {
		return ErrReadOnly
	}
	sb.mountState = state
	sb.dirty.Store(true)
	return nil
}

// Statfs reports volume usage
func (sb *Superblock) Statfs() (*Statfs, error) {
	sb.mu.Lock()
	if sb.dev == types.NoDev {
		sb.mu.Unlock()
		return nil, ErrNotMounted
	}
	raw := sb.raw
	alloc := sb.alloc
	sb.mu.Unlock()

	free := alloc.CountFreeBlocks()
	return &Statfs{
		Type:        raw.Magic,
		BlockSize:   types.BlockSize,
		Blocks:      uint32(raw.Nzones-raw.FirstDataZone) << raw.LogZoneSize,
		FreeBlocks:  free,
		AvailBlocks: free,
		Files:       uint32(raw.Ninodes),
		FreeFiles:   alloc.CountFreeInodes(),
		NameLen:     types.NameLen,
	}, nil
}

// Dev returns the bound device, or types.NoDev when not mounted
func (sb *Superblock) Dev() types.DevT {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	return sb.dev
}

// DeviceName returns the diagnostic name of the superblock's device
func (sb *Superblock) DeviceName() string {
	return sb.cache.DeviceName(sb.target)
}

// ReadOnly reports whether the volume is mounted read-only
func (sb *Superblock) ReadOnly() bool {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	return sb.readOnly
}

// Dirty reports whether allocation state changed since the last commit
func (sb *Superblock) Dirty() bool {
	return sb.dirty.Load()
}

// MountState returns the state recorded when the volume was mounted
func (sb *Superblock) MountState() uint16 {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	return sb.mountState
}

// Geometry returns a copy of the cached superblock record
func (sb *Superblock) Geometry() types.SuperblockT {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	return sb.raw
}

// Root returns the root directory inode
func (sb *Superblock) Root() *Inode {
	return sb.root
}

// ID returns the identity assigned to the current mount
func (sb *Superblock) ID() uuid.UUID {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	return sb.id
}

// Allocator returns the bit allocator of the mounted volume
func (sb *Superblock) Allocator() interfaces.BitAllocator {
	return sb.alloc
}

// Cache returns the buffer cache the volume lives in
func (sb *Superblock) Cache() interfaces.BufferCache {
	return sb.cache
}

func (sb *Superblock) timestamp() uint32 {
	return uint32(sb.now().Unix())
}
