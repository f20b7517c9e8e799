package inodes

import (
	"encoding/binary"
	"testing"

	"github.com/deploymenttheory/go-minixfs/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestInodeData() []byte {
	data := make([]byte, types.InodeRecordSize)
	binary.LittleEndian.PutUint16(data[0:2], types.ModeRegular|0644)
	binary.LittleEndian.PutUint16(data[2:4], 1000)
	binary.LittleEndian.PutUint32(data[4:8], 4096)
	binary.LittleEndian.PutUint32(data[8:12], 1700000000)
	data[12] = 50 // gid
	data[13] = 1  // links
	for i := 0; i < types.NrZones; i++ {
		binary.LittleEndian.PutUint16(data[14+2*i:], uint16(100+i))
	}
	return data
}

func TestRecordSize(t *testing.T) {
	assert.Equal(t, types.InodeRecordSize, RecordSize())
}

func TestParse(t *testing.T) {
	t.Run("insufficient data", func(t *testing.T) {
		raw, err := Parse(make([]byte, 31), binary.LittleEndian)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "insufficient data for inode record")
		assert.Nil(t, raw)
	})

	t.Run("valid data", func(t *testing.T) {
		raw, err := Parse(createTestInodeData(), binary.LittleEndian)
		require.NoError(t, err)
		assert.Equal(t, types.ModeRegular|0644, raw.Mode)
		assert.Equal(t, uint16(1000), raw.UID)
		assert.Equal(t, uint32(4096), raw.Size)
		assert.Equal(t, uint32(1700000000), raw.Mtime)
		assert.Equal(t, uint8(50), raw.GID)
		assert.Equal(t, uint8(1), raw.Nlinks)
		for i := 0; i < types.NrZones; i++ {
			assert.Equal(t, uint16(100+i), raw.Zone[i])
		}
	})
}

func TestEncodeReproducesRecord(t *testing.T) {
	data := createTestInodeData()
	raw, err := Parse(data, binary.LittleEndian)
	require.NoError(t, err)

	out := make([]byte, types.InodeRecordSize)
	require.NoError(t, Encode(out, raw, binary.LittleEndian))
	assert.Equal(t, data, out)
}

func TestSlot(t *testing.T) {
	block := make([]byte, types.BlockSize)

	first, err := Slot(block, 1)
	require.NoError(t, err)
	assert.Len(t, first, types.InodeRecordSize)

	first[0] = 0xAA
	assert.Equal(t, byte(0xAA), block[0])

	last, err := Slot(block, types.InodesPerBlock)
	require.NoError(t, err)
	last[0] = 0xBB
	assert.Equal(t, byte(0xBB), block[types.BlockSize-types.InodeRecordSize])

	// inode 33 wraps to the first slot of the next block
	wrapped, err := Slot(block, types.InodesPerBlock+1)
	require.NoError(t, err)
	assert.Equal(t, byte(0xAA), wrapped[0])

	_, err = Slot(make([]byte, 16), 2)
	assert.Error(t, err)
}
