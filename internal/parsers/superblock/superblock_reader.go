package superblock

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/deploymenttheory/go-minixfs/internal/types"
)

// ErrBadMagic is returned when the superblock does not carry the V1 magic.
var ErrBadMagic = errors.New("not a minix V1 filesystem")

// Parse decodes the superblock record at the start of data. It checks only
// that enough bytes are present; use Validate to check the magic.
func Parse(data []byte, endian binary.ByteOrder) (*types.SuperblockT, error) {
	if len(data) < types.SuperblockSize {
		return nil, fmt.Errorf("data too small for superblock: %d bytes", len(data))
	}

	sb := &types.SuperblockT{}
	sb.Ninodes = endian.Uint16(data[0:2])
	sb.Nzones = endian.Uint16(data[2:4])
	sb.ImapBlocks = endian.Uint16(data[4:6])
	sb.ZmapBlocks = endian.Uint16(data[6:8])
	sb.FirstDataZone = endian.Uint16(data[8:10])
	sb.LogZoneSize = endian.Uint16(data[10:12])
	sb.MaxSize = endian.Uint32(data[12:16])
	sb.Magic = endian.Uint16(data[16:18])
	sb.State = endian.Uint16(data[18:20])

	return sb, nil
}

// Encode writes the superblock record into the start of data. Bytes past
// the record are left untouched.
func Encode(data []byte, sb *types.SuperblockT, endian binary.ByteOrder) error {
	if len(data) < types.SuperblockSize {
		return fmt.Errorf("data too small for superblock: %d bytes", len(data))
	}

	endian.PutUint16(data[0:2], sb.Ninodes)
	endian.PutUint16(data[2:4], sb.Nzones)
	endian.PutUint16(data[4:6], sb.ImapBlocks)
	endian.PutUint16(data[6:8], sb.ZmapBlocks)
	endian.PutUint16(data[8:10], sb.FirstDataZone)
	endian.PutUint16(data[10:12], sb.LogZoneSize)
	endian.PutUint32(data[12:16], sb.MaxSize)
	endian.PutUint16(data[16:18], sb.Magic)
	endian.PutUint16(data[18:20], sb.State)

	return nil
}

// Validate checks the magic number.
func Validate(sb *types.SuperblockT) error {
	if sb.Magic != types.SuperMagic {
		return fmt.Errorf("%w: magic 0x%04X, want 0x%04X", ErrBadMagic, sb.Magic, types.SuperMagic)
	}
	return nil
}

// MaxFileSize is the largest file size the zone layout can address.
func MaxFileSize() uint32 {
	return uint32(types.MaxFileBlocks) * types.BlockSize
}
