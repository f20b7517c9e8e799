// File: internal/interfaces/block_device.go
package interfaces

import (
	"io"

	"github.com/deploymenttheory/go-minixfs/internal/types"
)

// BlockDevice provides whole-block access to a volume image
type BlockDevice interface {
	// ReadBlock fills buf with the contents of block n
	ReadBlock(n types.BlockNr, buf []byte) error

	// WriteBlock writes buf to block n
	WriteBlock(n types.BlockNr, buf []byte) error

	// BlockCount returns the number of whole blocks on the device
	BlockCount() uint32

	// Name returns a human readable name used in diagnostics
	Name() string

	io.Closer
}

// DeviceNamer resolves a device number to a name for diagnostics
type DeviceNamer interface {
	// DeviceName returns the name of dev, or its packed number if unknown
	DeviceName(dev types.DevT) string
}
