package mkfs

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/deploymenttheory/go-minixfs/internal/device"
	"github.com/deploymenttheory/go-minixfs/internal/parsers/inodes"
	"github.com/deploymenttheory/go-minixfs/internal/parsers/superblock"
	"github.com/deploymenttheory/go-minixfs/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLayout(t *testing.T) {
	tests := []struct {
		name      string
		blocks    uint32
		inodes    uint32
		wantInode uint16
		wantImap  uint16
		wantZmap  uint16
		wantFirst uint16
	}{
		{"small volume", 64, 0, 32, 1, 1, 5},
		{"explicit inodes rounded up", 360, 40, 64, 1, 1, 6},
		{"floppy", 1440, 0, 480, 1, 1, 19},
		{"two zone map blocks", 10000, 3000, 3008, 1, 2, 99},
		{"largest volume", MaxBlocks, 0, 21856, 3, 8, 696},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sb, err := Layout(tt.blocks, tt.inodes)
			require.NoError(t, err)
			assert.Equal(t, tt.wantInode, sb.Ninodes)
			assert.Equal(t, uint16(tt.blocks), sb.Nzones)
			assert.Equal(t, tt.wantImap, sb.ImapBlocks)
			assert.Equal(t, tt.wantZmap, sb.ZmapBlocks)
			assert.Equal(t, tt.wantFirst, sb.FirstDataZone)
			assert.Equal(t, types.SuperMagic, sb.Magic)
			assert.Equal(t, types.StateValid, sb.State)
		})
	}
}

func TestLayoutLimits(t *testing.T) {
	_, err := Layout(MaxBlocks+1, 0)
	assert.ErrorIs(t, err, ErrVolumeTooLarge)

	_, err = Layout(5, 0)
	assert.ErrorIs(t, err, ErrVolumeTooSmall)
}

func TestFormat(t *testing.T) {
	dev := device.NewMemoryDevice("hda", 128)
	stamp := time.Unix(1700000000, 0)

	sb, err := Format(dev, Options{Time: stamp})
	require.NoError(t, err)
	assert.Equal(t, uint16(128), sb.Nzones)

	onDisk, err := superblock.Parse(dev.Block(types.SuperblockBlock), binary.LittleEndian)
	require.NoError(t, err)
	require.NoError(t, superblock.Validate(onDisk))
	assert.Equal(t, *sb, *onDisk)

	imap := dev.Block(types.FirstBitmapBlock)
	assert.Equal(t, byte(0x03), imap[0], "bit 0 reserved, bit 1 root")
	inodeLimit := uint32(sb.Ninodes) + 1
	assert.NotZero(t, imap[inodeLimit/8]&(1<<(inodeLimit%8)), "bits past ninodes are set")

	zmap := dev.Block(types.FirstBitmapBlock + types.BlockNr(sb.ImapBlocks))
	assert.Equal(t, byte(0x03), zmap[0])
	zoneLimit := uint32(sb.Nzones-sb.FirstDataZone) + 1
	assert.Zero(t, zmap[(zoneLimit-1)/8]&(1<<((zoneLimit-1)%8)), "last zone is free")
	assert.NotZero(t, zmap[zoneLimit/8]&(1<<(zoneLimit%8)), "bits past the volume are set")

	itable := dev.Block(sb.InodeBlock(types.RootIno))
	slot, err := inodes.Slot(itable, types.RootIno)
	require.NoError(t, err)
	root, err := inodes.Parse(slot, binary.LittleEndian)
	require.NoError(t, err)
	assert.Equal(t, RootMode, root.Mode)
	assert.Equal(t, uint8(2), root.Nlinks)
	assert.Equal(t, uint32(32), root.Size)
	assert.Equal(t, uint32(stamp.Unix()), root.Mtime)
	assert.Equal(t, sb.FirstDataZone, root.Zone[0])
	for i := 1; i < types.NrZones; i++ {
		assert.Zero(t, root.Zone[i])
	}

	dir := dev.Block(types.BlockNr(sb.FirstDataZone))
	assert.Equal(t, uint16(1), binary.LittleEndian.Uint16(dir[0:2]))
	assert.Equal(t, ".", string(dir[2:3]))
	assert.Zero(t, dir[3])
	assert.Equal(t, uint16(1), binary.LittleEndian.Uint16(dir[16:18]))
	assert.Equal(t, "..", string(dir[18:20]))
}

func TestFormatRespectsDeviceSize(t *testing.T) {
	dev := device.NewMemoryDevice("hda", 32)

	_, err := Format(dev, Options{Blocks: 64})
	assert.ErrorIs(t, err, ErrVolumeTooSmall)
	assert.Equal(t, int64(0), dev.Statistics().BlocksWritten)
}
