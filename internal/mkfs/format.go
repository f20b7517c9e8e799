// Package mkfs lays out empty V1 filesystems on block devices.
package mkfs

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/deploymenttheory/go-minixfs/internal/interfaces"
	"github.com/deploymenttheory/go-minixfs/internal/parsers/inodes"
	"github.com/deploymenttheory/go-minixfs/internal/parsers/superblock"
	"github.com/deploymenttheory/go-minixfs/internal/types"
)

// MaxBlocks is the largest volume 16-bit zone numbers can describe.
const MaxBlocks = 1<<16 - 1

// RootMode is the mode of a freshly created root directory.
const RootMode = types.ModeDir | 0755

var (
	// ErrVolumeTooSmall is returned when the metadata leaves no data zone for the root directory
	ErrVolumeTooSmall = errors.New("volume too small")

	// ErrVolumeTooLarge is returned for more blocks or inodes than 16 bits can address
	ErrVolumeTooLarge = errors.New("volume too large")
)

// Options controls the layout of a new filesystem
type Options struct {
	// Blocks is the volume size; zero uses the whole device
	Blocks uint32
	// Inodes is the inode count; zero picks one inode per three blocks
	Inodes uint32
	// Time stamps the root directory; zero uses the current time
	Time time.Time
}

// Layout computes the superblock for a volume without writing anything
func Layout(blocks, ninodes uint32) (*types.SuperblockT, error) {
	if blocks > MaxBlocks {
		return nil, fmt.Errorf("%w: %d blocks, limit %d", ErrVolumeTooLarge, blocks, MaxBlocks)
	}
	if ninodes == 0 {
		ninodes = blocks / 3
	}
	// Fill the last inode table block.
	ninodes = (ninodes + types.InodesPerBlock - 1) / types.InodesPerBlock * types.InodesPerBlock
	if ninodes == 0 {
		ninodes = types.InodesPerBlock
	}
	if ninodes > MaxBlocks {
		ninodes = MaxBlocks / types.InodesPerBlock * types.InodesPerBlock
	}

	imap := ceilDiv(ninodes+1, types.BitsPerBlock)
	zmap := ceilDiv(blocks+1, types.BitsPerBlock)
	itable := ceilDiv(ninodes, types.InodesPerBlock)
	firstData := uint32(types.FirstBitmapBlock) + imap + zmap + itable

	if firstData >= blocks {
		return nil, fmt.Errorf("%w: %d blocks, metadata needs %d plus one data zone", ErrVolumeTooSmall, blocks, firstData)
	}

	return &types.SuperblockT{
		Ninodes:       uint16(ninodes),
		Nzones:        uint16(blocks),
		ImapBlocks:    uint16(imap),
		ZmapBlocks:    uint16(zmap),
		FirstDataZone: uint16(firstData),
		LogZoneSize:   0,
		MaxSize:       superblock.MaxFileSize(),
		Magic:         types.SuperMagic,
		State:         types.StateValid,
	}, nil
}

// Format writes an empty filesystem with a root directory to dev and
// returns its superblock
func Format(dev interfaces.BlockDevice, opts Options) (*types.SuperblockT, error) {
	blocks := opts.Blocks
	if blocks == 0 {
		blocks = dev.BlockCount()
		if blocks > MaxBlocks {
			blocks = MaxBlocks
		}
	}
	if blocks > dev.BlockCount() {
		return nil, fmt.Errorf("%w: %s holds %d blocks, asked for %d", ErrVolumeTooSmall, dev.Name(), dev.BlockCount(), blocks)
	}

	sb, err := Layout(blocks, opts.Inodes)
	if err != nil {
		return nil, err
	}

	stamp := opts.Time
	if stamp.IsZero() {
		stamp = time.Now()
	}

	block := make([]byte, types.BlockSize)

	// Boot block and every metadata block start out zeroed
	for n := uint32(0); n <= uint32(sb.FirstDataZone); n++ {
		if err := dev.WriteBlock(types.BlockNr(n), block); err != nil {
			return nil, fmt.Errorf("failed to clear block %d: %w", n, err)
		}
	}

	if err := superblock.Encode(block, sb, binary.LittleEndian); err != nil {
		return nil, err
	}
	if err := dev.WriteBlock(types.SuperblockBlock, block); err != nil {
		return nil, fmt.Errorf("failed to write superblock: %w", err)
	}

	// Inode bits 0 and 1 (root) are taken, as is everything past ninodes
	next := types.FirstBitmapBlock
	next, err = writeBitmap(dev, next, sb.ImapBlocks, 2, uint32(sb.Ninodes)+1)
	if err != nil {
		return nil, fmt.Errorf("failed to write inode map: %w", err)
	}

	// Zone bit 1 is the root directory block
	zoneBits := uint32(sb.Nzones-sb.FirstDataZone) + 1
	if _, err := writeBitmap(dev, next, sb.ZmapBlocks, 2, zoneBits); err != nil {
		return nil, fmt.Errorf("failed to write zone map: %w", err)
	}

	rootZone := types.BlockNr(sb.FirstDataZone)
	root := &types.InodeT{
		Mode:   RootMode,
		Size:   2 * types.DirEntrySize,
		Mtime:  uint32(stamp.Unix()),
		Nlinks: 2,
	}
	root.Zone[0] = uint16(rootZone)

	clear(block)
	slot, err := inodes.Slot(block, types.RootIno)
	if err != nil {
		return nil, err
	}
	if err := inodes.Encode(slot, root, binary.LittleEndian); err != nil {
		return nil, err
	}
	if err := dev.WriteBlock(sb.InodeBlock(types.RootIno), block); err != nil {
		return nil, fmt.Errorf("failed to write root inode: %w", err)
	}

	clear(block)
	putDirEntry(block[0:], types.RootIno, ".")
	putDirEntry(block[types.DirEntrySize:], types.RootIno, "..")
	if err := dev.WriteBlock(rootZone, block); err != nil {
		return nil, fmt.Errorf("failed to write root directory: %w", err)
	}

	return sb, nil
}

// writeBitmap writes count bitmap blocks starting at first. Bits below used
// and bits at or beyond limit are set.
func writeBitmap(dev interfaces.BlockDevice, first types.BlockNr, count uint16, used, limit uint32) (types.BlockNr, error) {
	block := make([]byte, types.BlockSize)
	for i := uint16(0); i < count; i++ {
		clear(block)
		base := uint32(i) * types.BitsPerBlock
		for bit := uint32(0); bit < types.BitsPerBlock; bit++ {
			n := base + bit
			if n < used || n >= limit {
				block[bit/8] |= 1 << (bit % 8)
			}
		}
		if err := dev.WriteBlock(first, block); err != nil {
			return first, fmt.Errorf("block %d: %w", first, err)
		}
		first++
	}
	return first, nil
}

func putDirEntry(data []byte, ino types.Ino, name string) {
	binary.LittleEndian.PutUint16(data[0:2], uint16(ino))
	copy(data[2:2+types.NameLen], name)
}

func ceilDiv(a, b uint32) uint32 {
	return (a + b - 1) / b
}
