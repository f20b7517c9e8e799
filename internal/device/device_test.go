package device

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/deploymenttheory/go-minixfs/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func filledBlock(b byte) []byte {
	buf := make([]byte, types.BlockSize)
	for i := range buf {
		buf[i] = b
	}
	return buf
}

func TestMemoryDeviceReadWrite(t *testing.T) {
	dev := NewMemoryDevice("ram0", 4)
	assert.Equal(t, uint32(4), dev.BlockCount())
	assert.Equal(t, "ram0", dev.Name())

	require.NoError(t, dev.WriteBlock(2, filledBlock(0x5A)))

	buf := make([]byte, types.BlockSize)
	require.NoError(t, dev.ReadBlock(2, buf))
	assert.Equal(t, filledBlock(0x5A), buf)
	assert.Equal(t, filledBlock(0x5A), dev.Block(2))

	stats := dev.Statistics()
	assert.Equal(t, int64(1), stats.BlocksRead)
	assert.Equal(t, int64(1), stats.BlocksWritten)
}

func TestMemoryDeviceErrors(t *testing.T) {
	dev := NewMemoryDevice("ram0", 4)
	buf := make([]byte, types.BlockSize)

	t.Run("read past end", func(t *testing.T) {
		err := dev.ReadBlock(4, buf)
		assert.ErrorIs(t, err, ErrShortRead)
	})

	t.Run("injected failure", func(t *testing.T) {
		boom := errors.New("media error")
		dev.FailRead(1, boom)
		assert.ErrorIs(t, dev.ReadBlock(1, buf), boom)
		dev.FailRead(1, nil)
		assert.NoError(t, dev.ReadBlock(1, buf))
	})

	t.Run("read-only", func(t *testing.T) {
		dev.SetReadOnly(true)
		defer dev.SetReadOnly(false)
		assert.ErrorIs(t, dev.WriteBlock(0, buf), ErrReadOnlyDevice)
	})

	t.Run("truncate", func(t *testing.T) {
		dev.Truncate(2)
		assert.Equal(t, uint32(2), dev.BlockCount())
		assert.ErrorIs(t, dev.ReadBlock(2, buf), ErrShortRead)
	})
}

func TestFileDevice(t *testing.T) {
	path := filepath.Join(t.TempDir(), "disk.img")

	created, err := CreateImage(path, 8)
	require.NoError(t, err)
	require.NoError(t, created.WriteBlock(3, filledBlock(0x11)))
	require.NoError(t, created.Close())

	dev, err := OpenImage(path, 0, true)
	require.NoError(t, err)
	defer dev.Close()

	assert.Equal(t, uint32(8), dev.BlockCount())
	assert.True(t, dev.ReadOnly())

	buf := make([]byte, types.BlockSize)
	require.NoError(t, dev.ReadBlock(3, buf))
	assert.Equal(t, filledBlock(0x11), buf)

	assert.ErrorIs(t, dev.ReadBlock(8, buf), ErrShortRead)
	assert.ErrorIs(t, dev.WriteBlock(0, buf), ErrReadOnlyDevice)
	assert.Equal(t, int64(1), dev.Statistics().BlocksRead)
}

func TestFileDeviceOffset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "part.img")
	image := make([]byte, 512+4*types.BlockSize)
	copy(image[512+types.BlockSize:], filledBlock(0x77))
	require.NoError(t, os.WriteFile(path, image, 0o644))

	dev, err := OpenImage(path, 512, false)
	require.NoError(t, err)
	defer dev.Close()

	assert.Equal(t, uint32(4), dev.BlockCount())

	buf := make([]byte, types.BlockSize)
	require.NoError(t, dev.ReadBlock(1, buf))
	assert.Equal(t, filledBlock(0x77), buf)

	_, err = OpenImage(path, int64(len(image)+1), true)
	assert.Error(t, err)
}
