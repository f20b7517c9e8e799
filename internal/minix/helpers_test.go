package minix

import (
	"bytes"
	"encoding/binary"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/deploymenttheory/go-minixfs/internal/bitmap"
	"github.com/deploymenttheory/go-minixfs/internal/cache"
	"github.com/deploymenttheory/go-minixfs/internal/device"
	"github.com/deploymenttheory/go-minixfs/internal/interfaces"
	"github.com/deploymenttheory/go-minixfs/internal/mkfs"
	"github.com/deploymenttheory/go-minixfs/internal/parsers/superblock"
	"github.com/deploymenttheory/go-minixfs/internal/types"
	"github.com/stretchr/testify/require"
)

const testDev = types.DevT(0x0300)

var testTime = time.Unix(1700000000, 0)

// recordingCache records which blocks are read through Bread.
type recordingCache struct {
	*cache.LRUCache

	mu      sync.Mutex
	breads  []types.BlockNr
	getblks []types.BlockNr
}

func (r *recordingCache) Bread(dev types.DevT, block types.BlockNr) (interfaces.Buffer, error) {
	r.mu.Lock()
	r.breads = append(r.breads, block)
	r.mu.Unlock()
	return r.LRUCache.Bread(dev, block)
}

func (r *recordingCache) Getblk(dev types.DevT, block types.BlockNr) (interfaces.Buffer, error) {
	r.mu.Lock()
	r.getblks = append(r.getblks, block)
	r.mu.Unlock()
	return r.LRUCache.Getblk(dev, block)
}

func (r *recordingCache) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.breads = nil
	r.getblks = nil
}

func (r *recordingCache) reads() []types.BlockNr {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]types.BlockNr(nil), r.breads...)
}

func (r *recordingCache) outstanding() int {
	return r.Statistics().Outstanding
}

// limitedAllocator grants a fixed number of blocks and then reports no space.
type limitedAllocator struct {
	interfaces.BitAllocator
	remaining int
}

func (a *limitedAllocator) NewBlock() (types.BlockNr, error) {
	if a.remaining <= 0 {
		return 0, ErrNoSpace
	}
	a.remaining--
	return a.BitAllocator.NewBlock()
}

func withBlockLimit(n int) Option {
	return WithAllocator(func(sb *Superblock, store *bitmap.Store) interfaces.BitAllocator {
		return &limitedAllocator{BitAllocator: NewBitmapAllocator(sb, store), remaining: n}
	})
}

type fixture struct {
	dev   *device.MemoryDevice
	cache *recordingCache
	sb    *Superblock
	geo   *types.SuperblockT
	logs  *bytes.Buffer
	debug *bytes.Buffer
}

// newImage formats an in-memory volume.
func newImage(t *testing.T, blocks uint32) (*device.MemoryDevice, *types.SuperblockT) {
	t.Helper()
	dev := device.NewMemoryDevice("hda", blocks)
	geo, err := mkfs.Format(dev, mkfs.Options{Time: testTime})
	require.NoError(t, err)
	return dev, geo
}

// newFixture attaches dev to a fresh cache without mounting it.
func newFixture(t *testing.T, dev *device.MemoryDevice, opts ...Option) *fixture {
	t.Helper()
	lru := cache.NewLRUCache(64)
	require.NoError(t, lru.Attach(testDev, dev))

	f := &fixture{
		dev:   dev,
		cache: &recordingCache{LRUCache: lru},
		logs:  &bytes.Buffer{},
		debug: &bytes.Buffer{},
	}
	all := append([]Option{
		WithLogger(log.New(f.logs, "", 0)),
		WithDebugLogger(log.New(f.debug, "", 0)),
		WithClock(func() time.Time { return testTime.Add(time.Hour) }),
	}, opts...)
	f.sb = NewSuperblock(f.cache, testDev, all...)
	return f
}

// mountImage formats a volume of the given size and mounts it.
func mountImage(t *testing.T, blocks uint32, readOnly bool, opts ...Option) *fixture {
	t.Helper()
	dev, geo := newImage(t, blocks)
	f := newFixture(t, dev, opts...)
	f.geo = geo
	require.NoError(t, f.sb.Mount(MountOptions{ReadOnly: readOnly}))
	return f
}

// patchSuperblock rewrites the on-disk superblock of an unmounted device.
func patchSuperblock(t *testing.T, dev *device.MemoryDevice, patch func(*types.SuperblockT)) {
	t.Helper()
	block := dev.Block(types.SuperblockBlock)
	raw, err := superblock.Parse(block, binary.LittleEndian)
	require.NoError(t, err)
	patch(raw)
	require.NoError(t, superblock.Encode(block, raw, binary.LittleEndian))
	require.NoError(t, dev.WriteBlock(types.SuperblockBlock, block))
}

func diskSuperblock(t *testing.T, dev *device.MemoryDevice) *types.SuperblockT {
	t.Helper()
	raw, err := superblock.Parse(dev.Block(types.SuperblockBlock), binary.LittleEndian)
	require.NoError(t, err)
	return raw
}

// newFileInode allocates an inode number and returns an empty regular file.
func newFileInode(t *testing.T, sb *Superblock) *Inode {
	t.Helper()
	ino, err := sb.Allocator().NewInode()
	require.NoError(t, err)
	return &Inode{
		Ino:    ino,
		Mode:   types.ModeRegular | 0644,
		Nlinks: 1,
		Data:   &ZoneMap{},
		Ops:    FileOperations,
		sb:     sb,
	}
}

// writeIndirect stores pointer entries into a block on the device.
func writeIndirect(t *testing.T, dev *device.MemoryDevice, block types.BlockNr, entries map[int]types.BlockNr) {
	t.Helper()
	data := make([]byte, types.BlockSize)
	for i, z := range entries {
		binary.LittleEndian.PutUint16(data[2*i:], uint16(z))
	}
	require.NoError(t, dev.WriteBlock(block, data))
}

func indirectEntry(t *testing.T, dev *device.MemoryDevice, block types.BlockNr, index int) types.BlockNr {
	t.Helper()
	return types.BlockNr(binary.LittleEndian.Uint16(dev.Block(block)[2*index:]))
}
