package device

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/deploymenttheory/go-minixfs/internal/interfaces"
	"github.com/deploymenttheory/go-minixfs/internal/types"
)

var (
	// ErrShortRead is returned when a block lies (partly) past the end of the image
	ErrShortRead = errors.New("short read")

	// ErrReadOnlyDevice is returned when writing to a device opened read-only
	ErrReadOnlyDevice = errors.New("device is read-only")
)

// FileDevice provides block access to a filesystem image stored in a file,
// optionally starting at a byte offset inside a larger disk image
type FileDevice struct {
	file     *os.File
	size     int64
	offset   int64 // Offset to the filesystem within the image
	readOnly bool
	mu       sync.Mutex
	stats    DeviceStatistics
}

var _ interfaces.BlockDevice = (*FileDevice)(nil)

// DeviceStatistics tracks block transfers on a device
type DeviceStatistics struct {
	BlocksRead    int64
	BlocksWritten int64
}

// OpenImage opens an image file. A negative or out-of-range offset is rejected.
func OpenImage(path string, offset int64, readOnly bool) (*FileDevice, error) {
	flag := os.O_RDWR
	if readOnly {
		flag = os.O_RDONLY
	}

	file, err := os.OpenFile(path, flag, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open image file: %w", err)
	}

	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to stat image file: %w", err)
	}

	if offset < 0 || offset > stat.Size() {
		file.Close()
		return nil, fmt.Errorf("image offset %d outside file of %d bytes", offset, stat.Size())
	}

	return &FileDevice{
		file:     file,
		size:     stat.Size(),
		offset:   offset,
		readOnly: readOnly,
	}, nil
}

// ReadBlock implements interfaces.BlockDevice
func (d *FileDevice) ReadBlock(n types.BlockNr, buf []byte) error {
	if len(buf) < types.BlockSize {
		return fmt.Errorf("buffer too small for block: %d bytes", len(buf))
	}

	pos := d.offset + int64(n)*types.BlockSize
	got, err := d.file.ReadAt(buf[:types.BlockSize], pos)
	if err != nil && err != io.EOF {
		return fmt.Errorf("failed to read block %d of %s: %w", n, d.Name(), err)
	}
	if got < types.BlockSize {
		return fmt.Errorf("%w: block %d of %s: got %d bytes", ErrShortRead, n, d.Name(), got)
	}

	d.mu.Lock()
	d.stats.BlocksRead++
	d.mu.Unlock()
	return nil
}

// WriteBlock implements interfaces.BlockDevice
func (d *FileDevice) WriteBlock(n types.BlockNr, buf []byte) error {
	if d.readOnly {
		return fmt.Errorf("block %d of %s: %w", n, d.Name(), ErrReadOnlyDevice)
	}
	if len(buf) < types.BlockSize {
		return fmt.Errorf("buffer too small for block: %d bytes", len(buf))
	}

	pos := d.offset + int64(n)*types.BlockSize
	if _, err := d.file.WriteAt(buf[:types.BlockSize], pos); err != nil {
		return fmt.Errorf("failed to write block %d of %s: %w", n, d.Name(), err)
	}

	d.mu.Lock()
	d.stats.BlocksWritten++
	if end := pos + types.BlockSize; end > d.size {
		d.size = end
	}
	d.mu.Unlock()
	return nil
}

// BlockCount implements interfaces.BlockDevice
func (d *FileDevice) BlockCount() uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return uint32((d.size - d.offset) / types.BlockSize)
}

// Name implements interfaces.BlockDevice
func (d *FileDevice) Name() string {
	return d.file.Name()
}

// ReadOnly reports whether the image was opened without write access
func (d *FileDevice) ReadOnly() bool {
	return d.readOnly
}

// Statistics returns a snapshot of the transfer counters
func (d *FileDevice) Statistics() DeviceStatistics {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stats
}

// Close syncs a writable image and closes the file
func (d *FileDevice) Close() error {
	if !d.readOnly {
		if err := d.file.Sync(); err != nil {
			d.file.Close()
			return fmt.Errorf("failed to sync image file: %w", err)
		}
	}
	return d.file.Close()
}

// CreateImage creates (or truncates) an image file of the given size in blocks
func CreateImage(path string, blocks uint32) (*FileDevice, error) {
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to create image file: %w", err)
	}

	size := int64(blocks) * types.BlockSize
	if err := file.Truncate(size); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to size image file: %w", err)
	}

	return &FileDevice{file: file, size: size}, nil
}
