package minix

import (
	"bytes"
	"io"
	"testing"

	"github.com/deploymenttheory/go-minixfs/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pattern(n int) []byte {
	p := make([]byte, n)
	for i := range p {
		p[i] = byte(i*7 + i/251)
	}
	return p
}

func TestWriteAtThenRead(t *testing.T) {
	f := mountImage(t, 256, false)
	ip := newFileInode(t, f.sb)

	// Crosses from the last direct zone into the single-indirect tier
	data := pattern(3000)
	off := int64(7*types.BlockSize - 100)

	n, err := WriteAt(ip, data, off)
	require.NoError(t, err)
	assert.Equal(t, len(data), n)
	assert.Equal(t, uint32(off)+3000, ip.Size)
	assert.True(t, ip.Dirty())

	r := NewFileReader(ip)
	got := make([]byte, len(data))
	n, err = r.ReadAt(got, off)
	require.NoError(t, err)
	assert.Equal(t, len(data), n)
	assert.Equal(t, data, got)

	// Everything before the write is a hole
	zones, _ := ip.Zones()
	for i := 0; i < 6; i++ {
		assert.Zero(t, zones[i])
	}
	head := make([]byte, 100)
	_, err = r.ReadAt(head, 0)
	require.NoError(t, err)
	assert.Equal(t, make([]byte, 100), head)

	assert.Equal(t, 3, f.cache.outstanding())
}

func TestFileReaderEOF(t *testing.T) {
	f := mountImage(t, 64, false)
	ip := newFileInode(t, f.sb)
	_, err := WriteAt(ip, []byte("0123456789"), 0)
	require.NoError(t, err)

	r := NewFileReader(ip)
	assert.Equal(t, int64(10), r.Size())

	buf := make([]byte, 16)
	n, err := r.ReadAt(buf, 4)
	assert.Equal(t, 6, n)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, "456789", string(buf[:n]))

	n, err = r.ReadAt(buf, 10)
	assert.Zero(t, n)
	assert.ErrorIs(t, err, io.EOF)

	_, err = r.ReadAt(buf, -1)
	assert.Error(t, err)

	all, err := io.ReadAll(NewFileReader(ip))
	require.NoError(t, err)
	assert.Equal(t, "0123456789", string(all))
}

func TestWriteAtOverwrite(t *testing.T) {
	f := mountImage(t, 64, false)
	ip := newFileInode(t, f.sb)
	alloc := f.sb.Allocator()

	_, err := WriteAt(ip, bytes.Repeat([]byte{'a'}, 2*types.BlockSize), 0)
	require.NoError(t, err)
	free := alloc.CountFreeBlocks()

	_, err = WriteAt(ip, []byte("bb"), 1023)
	require.NoError(t, err)
	assert.Equal(t, free, alloc.CountFreeBlocks())
	assert.Equal(t, uint32(2*types.BlockSize), ip.Size)

	got := make([]byte, 4)
	_, err = NewFileReader(ip).ReadAt(got, 1022)
	require.NoError(t, err)
	assert.Equal(t, "abba", string(got))
}

func TestWriteAtPersists(t *testing.T) {
	f := mountImage(t, 64, false)
	ip := newFileInode(t, f.sb)

	_, err := WriteAt(ip, []byte("persisted"), 0)
	require.NoError(t, err)
	bh, err := f.sb.WriteInode(ip)
	require.NoError(t, err)
	f.cache.Release(bh)
	require.NoError(t, f.sb.Unmount())

	g := newFixture(t, f.dev)
	require.NoError(t, g.sb.Mount(MountOptions{ReadOnly: true}))
	reread, err := g.sb.Iget(ip.Ino)
	require.NoError(t, err)

	all, err := io.ReadAll(NewFileReader(reread))
	require.NoError(t, err)
	assert.Equal(t, "persisted", string(all))
}

func TestWriteAtErrors(t *testing.T) {
	f := mountImage(t, 64, false, withBlockLimit(1))
	ip := newFileInode(t, f.sb)

	n, err := WriteAt(ip, make([]byte, 2*types.BlockSize), 0)
	assert.Equal(t, types.BlockSize, n)
	assert.ErrorIs(t, err, ErrNoSpace)
	assert.Equal(t, uint32(types.BlockSize), ip.Size)

	_, err = WriteAt(ip, []byte{1}, MaxFileSize)
	assert.ErrorIs(t, err, ErrFileTooBig)

	_, err = WriteAt(ip, []byte{1}, -1)
	assert.Error(t, err)

	ro := mountImage(t, 64, true)
	_, err = WriteAt(&Inode{Ino: 2, Data: &ZoneMap{}, Ops: FileOperations, sb: ro.sb}, []byte{1}, 0)
	assert.ErrorIs(t, err, ErrReadOnly)
}
