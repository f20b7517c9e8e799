package minix

import (
	"testing"

	"github.com/deploymenttheory/go-minixfs/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIgetSharesInodes(t *testing.T) {
	f := mountImage(t, 64, false)

	a, err := f.sb.Iget(types.RootIno)
	require.NoError(t, err)
	assert.Same(t, f.sb.Root(), a)

	f.cache.reset()
	b, err := f.sb.Iget(types.RootIno)
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.Empty(t, f.cache.reads(), "second reference does not read the disk")

	require.NoError(t, f.sb.Iput(a))
	require.NoError(t, f.sb.Iput(b))
}

func TestIgetOutOfRange(t *testing.T) {
	f := mountImage(t, 64, false)
	_, err := f.sb.Iget(0)
	assert.ErrorIs(t, err, ErrBadInodeNumber)
}

func TestIputWritesBackOnLastReference(t *testing.T) {
	dev, geo := newImage(t, 64)
	writeRawInode(t, dev, geo, 2, &types.InodeT{Mode: types.ModeRegular | 0644, Nlinks: 1})
	f := newFixture(t, dev)
	require.NoError(t, f.sb.Mount(MountOptions{}))

	ip, err := f.sb.Iget(2)
	require.NoError(t, err)
	_, err = f.sb.Iget(2)
	require.NoError(t, err)

	ip.UID = 77
	ip.MarkDirty()

	require.NoError(t, f.sb.Iput(ip))
	assert.True(t, ip.Dirty(), "still referenced")

	require.NoError(t, f.sb.Iput(ip))
	assert.False(t, ip.Dirty())

	require.NoError(t, f.cache.Flush(testDev))
	assert.Equal(t, uint16(77), readRawInode(t, dev, geo, 2).UID)
}

func TestIputReleasesUnlinkedInode(t *testing.T) {
	dev, geo := newImage(t, 64)
	writeRawInode(t, dev, geo, 2, &types.InodeT{Mode: types.ModeRegular | 0644, Nlinks: 1})
	f := newFixture(t, dev)
	require.NoError(t, f.sb.Mount(MountOptions{}))
	alloc := f.sb.Allocator()

	// mkfs only marks the root inode in use
	_, err := f.sb.Allocator().NewInode()
	require.NoError(t, err)
	freeInodes := alloc.CountFreeInodes()
	freeBlocks := alloc.CountFreeBlocks()

	ip, err := f.sb.Iget(2)
	require.NoError(t, err)
	_, err = WriteAt(ip, []byte("doomed"), 0)
	require.NoError(t, err)

	ip.Nlinks = 0
	require.NoError(t, f.sb.Iput(ip))

	assert.Equal(t, freeInodes+1, alloc.CountFreeInodes())
	assert.Equal(t, freeBlocks, alloc.CountFreeBlocks())
}

func TestUnmountWritesBackRoot(t *testing.T) {
	f := mountImage(t, 64, false)
	f.sb.Root().Size = 48
	f.sb.Root().MarkDirty()

	require.NoError(t, f.sb.Unmount())
	assert.Equal(t, uint32(48), readRawInode(t, f.dev, f.geo, types.RootIno).Size)
}
