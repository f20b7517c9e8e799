package minix

import (
	"testing"

	"github.com/deploymenttheory/go-minixfs/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBmapDirectZonesNeedNoIO(t *testing.T) {
	f := mountImage(t, 64, true)
	ip := &Inode{Ino: 2, Mode: types.ModeRegular, Ops: FileOperations, sb: f.sb,
		Data: &ZoneMap{10, 11, 12, 13, 14, 15, 16, 0, 0}}

	f.cache.reset()
	reads := f.dev.Statistics().BlocksRead
	for i := 0; i < types.NrDirectZones; i++ {
		got, err := Bmap(ip, types.LogicalBlock(i), false)
		require.NoError(t, err)
		assert.Equal(t, types.BlockNr(10+i), got)
	}
	assert.Empty(t, f.cache.reads())
	assert.Empty(t, f.cache.getblks)
	assert.Equal(t, reads, f.dev.Statistics().BlocksRead)
}

func TestBmapIndirectTiers(t *testing.T) {
	dev, _ := newImage(t, 64)
	const (
		single = types.BlockNr(20)
		double = types.BlockNr(21)
		inner0 = types.BlockNr(22)
		inner3 = types.BlockNr(23)
	)
	writeIndirect(t, dev, single, map[int]types.BlockNr{0: 30, 1: 31, 511: 32})
	writeIndirect(t, dev, double, map[int]types.BlockNr{0: inner0, 3: inner3})
	writeIndirect(t, dev, inner0, map[int]types.BlockNr{0: 40, 511: 41})
	writeIndirect(t, dev, inner3, map[int]types.BlockNr{5: 42})

	f := newFixture(t, dev)
	require.NoError(t, f.sb.Mount(MountOptions{ReadOnly: true}))
	ip := &Inode{Ino: 2, Mode: types.ModeRegular, Ops: FileOperations, sb: f.sb,
		Data: &ZoneMap{1, 2, 3, 4, 5, 6, 7, single, double}}

	tests := []struct {
		name  string
		block types.LogicalBlock
		want  types.BlockNr
		reads []types.BlockNr
	}{
		{"first single-indirect slot", 7, 30, []types.BlockNr{single}},
		{"second single-indirect slot", 8, 31, []types.BlockNr{single}},
		{"last single-indirect slot", 518, 32, []types.BlockNr{single}},
		{"first double-indirect slot", 519, 40, []types.BlockNr{double, inner0}},
		{"end of first inner block", 519 + 511, 41, []types.BlockNr{double, inner0}},
		{"fourth inner block", 519 + 3*512 + 5, 42, []types.BlockNr{double, inner3}},
		{"hole in inner block", 519 + 3*512 + 6, 0, []types.BlockNr{double, inner3}},
		{"hole in double-indirect block", 519 + 2*512, 0, []types.BlockNr{double}},
		{"hole in single-indirect block", 100, 0, []types.BlockNr{single}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f.cache.reset()
			got, err := Bmap(ip, tt.block, false)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.reads, f.cache.reads())
			assert.Equal(t, 3, f.cache.outstanding(), "indirect buffers are released")
		})
	}
}

func TestBmapMissingIndirectBlock(t *testing.T) {
	f := mountImage(t, 64, true)
	ip := &Inode{Ino: 2, Mode: types.ModeRegular, Ops: FileOperations, sb: f.sb, Data: &ZoneMap{}}

	f.cache.reset()
	for _, block := range []types.LogicalBlock{0, 7, 518, 519, types.MaxFileBlocks - 1} {
		got, err := Bmap(ip, block, false)
		require.NoError(t, err)
		assert.Zero(t, got)
	}
	assert.Empty(t, f.cache.reads())
	assert.False(t, ip.Dirty())
}

func TestBmapAllocationIsIdempotent(t *testing.T) {
	f := mountImage(t, 64, false)
	alloc := f.sb.Allocator()
	ip := newFileInode(t, f.sb)
	free := alloc.CountFreeBlocks()

	first, err := Bmap(ip, 3, true)
	require.NoError(t, err)
	assert.NotZero(t, first)
	assert.Equal(t, free-1, alloc.CountFreeBlocks())
	assert.True(t, ip.Dirty())
	assert.Equal(t, uint32(testTime.Unix()+3600), ip.Mtime)
	assert.Equal(t, ip.Mtime, ip.Ctime)

	second, err := Bmap(ip, 3, true)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, free-1, alloc.CountFreeBlocks())

	zones, _ := ip.Zones()
	assert.Equal(t, first, zones[3])
}

func TestBmapAllocatesIndirectChain(t *testing.T) {
	f := mountImage(t, 64, false)
	alloc := f.sb.Allocator()
	ip := newFileInode(t, f.sb)
	free := alloc.CountFreeBlocks()

	data, err := Bmap(ip, 519, true)
	require.NoError(t, err)
	assert.Equal(t, free-3, alloc.CountFreeBlocks(), "double-indirect, single-indirect and data block")

	zones, _ := ip.Zones()
	dind := zones[types.DoubleIndirectZone]
	require.NotZero(t, dind)
	assert.Zero(t, zones[types.IndirectZone])

	again, err := Bmap(ip, 519, false)
	require.NoError(t, err)
	assert.Equal(t, data, again)

	require.NoError(t, f.cache.Flush(testDev))
	ind := indirectEntry(t, f.dev, dind, 0)
	require.NotZero(t, ind)
	assert.Equal(t, data, indirectEntry(t, f.dev, ind, 0))
	assert.Equal(t, 3, f.cache.outstanding())

	single, err := Bmap(ip, 7, true)
	require.NoError(t, err)
	assert.Equal(t, free-5, alloc.CountFreeBlocks())
	require.NoError(t, f.cache.Flush(testDev))
	assert.Equal(t, single, indirectEntry(t, f.dev, zones[types.IndirectZone], 0))
}

func TestBmapLeavesIntermediateBlocksOnFailure(t *testing.T) {
	// Two grants cover the double- and single-indirect blocks; the data
	// block allocation fails.
	f := mountImage(t, 64, false, withBlockLimit(2))
	alloc := f.sb.Allocator()
	ip := newFileInode(t, f.sb)
	free := alloc.CountFreeBlocks()

	got, err := Bmap(ip, 519, true)
	assert.Zero(t, got)
	require.ErrorIs(t, err, ErrNoSpace)

	zones, _ := ip.Zones()
	assert.NotZero(t, zones[types.DoubleIndirectZone], "double-indirect block is not rolled back")
	assert.Equal(t, free-2, alloc.CountFreeBlocks())

	got, err = Bmap(ip, 519, false)
	require.NoError(t, err)
	assert.Zero(t, got)
	assert.Equal(t, 3, f.cache.outstanding())
}

func TestBmapNoSpaceForDirectZone(t *testing.T) {
	f := mountImage(t, 64, false, withBlockLimit(0))
	ip := newFileInode(t, f.sb)

	got, err := Bmap(ip, 0, true)
	assert.Zero(t, got)
	assert.ErrorIs(t, err, ErrNoSpace)
	assert.False(t, ip.Dirty())

	zones, _ := ip.Zones()
	assert.Equal(t, ZoneMap{}, *zones)
}

func TestBmapErrors(t *testing.T) {
	f := mountImage(t, 64, true)
	file := &Inode{Ino: 2, Mode: types.ModeRegular, Ops: FileOperations, sb: f.sb, Data: &ZoneMap{}}
	chr := &Inode{Ino: 3, Mode: types.ModeCharDev, Ops: ChrdevOperations, sb: f.sb, Data: DeviceNumber(0x0401)}

	_, err := Bmap(file, types.MaxFileBlocks, false)
	assert.ErrorIs(t, err, ErrFileTooBig)

	_, err = Bmap(file, 0, true)
	assert.ErrorIs(t, err, ErrReadOnly)

	_, err = Bmap(chr, 0, false)
	assert.ErrorIs(t, err, ErrNotMapped)
}

func TestGetblkAndBread(t *testing.T) {
	dev, _ := newImage(t, 64)
	payload := make([]byte, types.BlockSize)
	copy(payload, "hello")
	require.NoError(t, dev.WriteBlock(30, payload))

	f := newFixture(t, dev)
	require.NoError(t, f.sb.Mount(MountOptions{ReadOnly: true}))
	ip := &Inode{Ino: 2, Mode: types.ModeRegular, Ops: FileOperations, sb: f.sb, Data: &ZoneMap{30}}

	bh, err := Getblk(ip, 0, false)
	require.NoError(t, err)
	require.NotNil(t, bh)
	assert.Equal(t, types.BlockNr(30), bh.Block())
	assert.False(t, bh.Uptodate())
	f.cache.Release(bh)

	bh, err = Bread(ip, 0, false)
	require.NoError(t, err)
	require.NotNil(t, bh)
	assert.True(t, bh.Uptodate())
	assert.Equal(t, "hello", string(bh.Map()[:5]))
	bh.Unmap()
	f.cache.Release(bh)

	bh, err = Bread(ip, 1, false)
	require.NoError(t, err)
	assert.Nil(t, bh, "holes have no buffer")

	chr := &Inode{Ino: 3, Mode: types.ModeCharDev, Ops: ChrdevOperations, sb: f.sb, Data: DeviceNumber(0x0401)}
	_, err = Getblk(chr, 0, false)
	assert.ErrorIs(t, err, ErrNotMapped)

	fifo := &Inode{Ino: 4, Mode: types.ModeFifo, Ops: OperationsFor(types.ModeFifo), sb: f.sb, Data: &ZoneMap{}}
	_, err = Bread(fifo, 0, false)
	assert.ErrorIs(t, err, ErrNotMapped)

	assert.Equal(t, 3, f.cache.outstanding())
}
