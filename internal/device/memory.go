package device

import (
	"fmt"
	"sync"

	"github.com/deploymenttheory/go-minixfs/internal/interfaces"
	"github.com/deploymenttheory/go-minixfs/internal/types"
)

// MemoryDevice is a volume held entirely in memory. It counts transfers and
// can be told to fail reads of chosen blocks.
type MemoryDevice struct {
	mu       sync.Mutex
	name     string
	buf      []byte
	readOnly bool
	failRead map[types.BlockNr]error
	stats    DeviceStatistics
}

var _ interfaces.BlockDevice = (*MemoryDevice)(nil)

// NewMemoryDevice creates a zero-filled device of the given size in blocks
func NewMemoryDevice(name string, blocks uint32) *MemoryDevice {
	return &MemoryDevice{
		name:     name,
		buf:      make([]byte, int(blocks)*types.BlockSize),
		failRead: map[types.BlockNr]error{},
	}
}

// NewMemoryDeviceFromBytes wraps a copy of an existing image
func NewMemoryDeviceFromBytes(name string, image []byte) *MemoryDevice {
	buf := make([]byte, len(image)/types.BlockSize*types.BlockSize)
	copy(buf, image)
	return &MemoryDevice{
		name:     name,
		buf:      buf,
		failRead: map[types.BlockNr]error{},
	}
}

// ReadBlock implements interfaces.BlockDevice
func (d *MemoryDevice) ReadBlock(n types.BlockNr, buf []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err, ok := d.failRead[n]; ok {
		return fmt.Errorf("failed to read block %d of %s: %w", n, d.name, err)
	}

	pos := int(n) * types.BlockSize
	if pos+types.BlockSize > len(d.buf) {
		return fmt.Errorf("%w: block %d of %s: device has %d blocks", ErrShortRead, n, d.name, len(d.buf)/types.BlockSize)
	}
	copy(buf[:types.BlockSize], d.buf[pos:pos+types.BlockSize])
	d.stats.BlocksRead++
	return nil
}

// WriteBlock implements interfaces.BlockDevice
func (d *MemoryDevice) WriteBlock(n types.BlockNr, buf []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.readOnly {
		return fmt.Errorf("block %d of %s: %w", n, d.name, ErrReadOnlyDevice)
	}

	pos := int(n) * types.BlockSize
	if pos+types.BlockSize > len(d.buf) {
		return fmt.Errorf("block %d beyond end of %s", n, d.name)
	}
	copy(d.buf[pos:pos+types.BlockSize], buf[:types.BlockSize])
	d.stats.BlocksWritten++
	return nil
}

// BlockCount implements interfaces.BlockDevice
func (d *MemoryDevice) BlockCount() uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return uint32(len(d.buf) / types.BlockSize)
}

// Name implements interfaces.BlockDevice
func (d *MemoryDevice) Name() string {
	return d.name
}

// Close implements io.Closer
func (d *MemoryDevice) Close() error {
	return nil
}

// SetReadOnly makes subsequent writes fail
func (d *MemoryDevice) SetReadOnly(readOnly bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.readOnly = readOnly
}

// FailRead makes every read of block n return err; a nil err clears it
func (d *MemoryDevice) FailRead(n types.BlockNr, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err == nil {
		delete(d.failRead, n)
		return
	}
	d.failRead[n] = err
}

// Truncate shrinks the device to the given number of blocks
func (d *MemoryDevice) Truncate(blocks uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if size := int(blocks) * types.BlockSize; size < len(d.buf) {
		d.buf = d.buf[:size]
	}
}

// Bytes returns a copy of the whole image
func (d *MemoryDevice) Bytes() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]byte, len(d.buf))
	copy(out, d.buf)
	return out
}

// Block returns a copy of one block
func (d *MemoryDevice) Block(n types.BlockNr) []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]byte, types.BlockSize)
	pos := int(n) * types.BlockSize
	if pos+types.BlockSize <= len(d.buf) {
		copy(out, d.buf[pos:pos+types.BlockSize])
	}
	return out
}

// Statistics returns a snapshot of the transfer counters
func (d *MemoryDevice) Statistics() DeviceStatistics {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stats
}
