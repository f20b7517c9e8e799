package inodes

import (
	"encoding/binary"
	"fmt"

	"github.com/deploymenttheory/go-minixfs/internal/types"
)

// RecordSize returns the encoded size of types.InodeT as laid out by
// encoding/binary. The driver refuses to run unless it equals
// types.InodeRecordSize.
func RecordSize() int {
	return binary.Size(types.InodeT{})
}

// Parse decodes one inode record from the start of data.
func Parse(data []byte, endian binary.ByteOrder) (*types.InodeT, error) {
	if len(data) < types.InodeRecordSize {
		return nil, fmt.Errorf("insufficient data for inode record: %d bytes", len(data))
	}

	raw := &types.InodeT{}
	raw.Mode = endian.Uint16(data[0:2])
	raw.UID = endian.Uint16(data[2:4])
	raw.Size = endian.Uint32(data[4:8])
	raw.Mtime = endian.Uint32(data[8:12])
	raw.GID = data[12]
	raw.Nlinks = data[13]
	for i := 0; i < types.NrZones; i++ {
		off := 14 + 2*i
		raw.Zone[i] = endian.Uint16(data[off : off+2])
	}

	return raw, nil
}

// Encode writes one inode record into the start of data.
func Encode(data []byte, raw *types.InodeT, endian binary.ByteOrder) error {
	if len(data) < types.InodeRecordSize {
		return fmt.Errorf("insufficient data for inode record: %d bytes", len(data))
	}

	endian.PutUint16(data[0:2], raw.Mode)
	endian.PutUint16(data[2:4], raw.UID)
	endian.PutUint32(data[4:8], raw.Size)
	endian.PutUint32(data[8:12], raw.Mtime)
	data[12] = raw.GID
	data[13] = raw.Nlinks
	for i := 0; i < types.NrZones; i++ {
		off := 14 + 2*i
		endian.PutUint16(data[off:off+2], raw.Zone[i])
	}

	return nil
}

// Slot returns the slice of an inode-table block holding the given inode.
func Slot(block []byte, ino types.Ino) ([]byte, error) {
	off := types.InodeOffset(ino)
	if off+types.InodeRecordSize > len(block) {
		return nil, fmt.Errorf("inode %d record at offset %d exceeds block of %d bytes", ino, off, len(block))
	}
	return block[off : off+types.InodeRecordSize], nil
}
