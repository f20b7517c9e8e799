// File: internal/interfaces/buffer_cache.go
package interfaces

import "github.com/deploymenttheory/go-minixfs/internal/types"

// Buffer is a cached block. A buffer is held from acquisition until it is
// released back to its cache; its payload is only addressable between Map
// and Unmap.
type Buffer interface {
	// Dev returns the device the buffer belongs to
	Dev() types.DevT

	// Block returns the block number the buffer holds
	Block() types.BlockNr

	// Map makes the payload addressable and returns it
	Map() []byte

	// Unmap revokes addressability granted by the matching Map
	Unmap()

	// MarkDirty schedules the buffer for write-back
	MarkDirty()

	// MarkUptodate records that the payload is valid without reading it
	MarkUptodate()

	// Dirty reports whether the buffer has unwritten changes
	Dirty() bool

	// Uptodate reports whether the payload reflects the device contents
	Uptodate() bool
}

// BufferCache provides acquire/read/dirty/release primitives over block devices
type BufferCache interface {
	DeviceNamer

	// Getblk acquires the buffer for a block without reading it
	Getblk(dev types.DevT, block types.BlockNr) (Buffer, error)

	// Readbuf loads the buffer contents from the device unless already uptodate
	Readbuf(buf Buffer) error

	// Bread acquires and reads a block; the buffer is released on failure
	Bread(dev types.DevT, block types.BlockNr) (Buffer, error)

	// Release drops one reference to the buffer
	Release(buf Buffer)

	// WriteSync writes a dirty buffer to the device immediately
	WriteSync(buf Buffer) error

	// Flush writes every dirty buffer of the device
	Flush(dev types.DevT) error
}
