package minix

import (
	"encoding/binary"
	"fmt"

	"github.com/deploymenttheory/go-minixfs/internal/interfaces"
	"github.com/deploymenttheory/go-minixfs/internal/types"
)

// Bmap resolves logical block of ip to a physical block. Blocks 0-6 are
// direct, 7-518 go through the single-indirect block and the rest through
// the double-indirect block. A hole resolves to 0 unless create is set, in
// which case missing zones and indirect entries are allocated on the way.
// Indirect blocks allocated before a later allocation fails stay allocated.
func Bmap(ip *Inode, block types.LogicalBlock, create bool) (types.BlockNr, error) {
	sb := ip.sb
	zones, ok := ip.Zones()
	if !ok {
		return 0, sb.inodeError("bmap", ip.Ino, ErrNotMapped)
	}
	if block >= types.MaxFileBlocks {
		return 0, sb.inodeError("bmap", ip.Ino, fmt.Errorf("%w: block %d", ErrFileTooBig, block))
	}
	if create && sb.ReadOnly() {
		return 0, sb.inodeError("bmap", ip.Ino, ErrReadOnly)
	}

	if block < types.NrDirectZones {
		return ip.mapZone(zones, int(block), create)
	}
	block -= types.NrDirectZones

	var (
		ind types.BlockNr
		err error
	)
	if block < types.ZonesPerIndirect {
		ind, err = ip.mapZone(zones, types.IndirectZone, create)
	} else {
		// Double indirection: find the single-indirect block first
		block -= types.ZonesPerIndirect
		var dind types.BlockNr
		dind, err = ip.mapZone(zones, types.DoubleIndirectZone, create)
		if err != nil || dind == 0 {
			return 0, err
		}
		ind, err = ip.mapIndirect(dind, int(block>>types.IndirectShift), create)
	}
	if err != nil || ind == 0 {
		return 0, err
	}

	return ip.mapIndirect(ind, int(block&types.IndirectMask), create)
}

// mapZone resolves one of the inode's own zone slots.
func (ip *Inode) mapZone(zones *ZoneMap, slot int, create bool) (types.BlockNr, error) {
	if create && zones[slot] == 0 {
		block, err := ip.sb.newBlock()
		if err != nil {
			return 0, ip.sb.inodeError("bmap", ip.Ino, err)
		}
		zones[slot] = block
		ip.Touch()
	}
	return zones[slot], nil
}

// mapIndirect resolves entry index of indirect block ind. The indirect
// buffer is released before returning.
func (ip *Inode) mapIndirect(ind types.BlockNr, index int, create bool) (types.BlockNr, error) {
	sb := ip.sb
	bh, err := sb.cache.Bread(sb.Dev(), ind)
	if err != nil {
		sb.log.Printf("unable to read indirect block %d of inode %d on %s", ind, ip.Ino, sb.DeviceName())
		return 0, sb.inodeError("bmap", ip.Ino, err)
	}
	defer sb.cache.Release(bh)

	data := bh.Map()
	defer bh.Unmap()

	entry := data[2*index : 2*index+2]
	block := types.BlockNr(binary.LittleEndian.Uint16(entry))
	if create && block == 0 {
		block, err = sb.newBlock()
		if err != nil {
			return 0, sb.inodeError("bmap", ip.Ino, err)
		}
		binary.LittleEndian.PutUint16(entry, uint16(block))
		bh.MarkDirty()
	}
	return block, nil
}

func (sb *Superblock) newBlock() (types.BlockNr, error) {
	alloc := sb.Allocator()
	if alloc == nil {
		return 0, ErrNotMounted
	}
	return alloc.NewBlock()
}

// Getblk returns the buffer for logical block of ip without reading it. A
// hole that is not created yields a nil buffer and no error.
func Getblk(ip *Inode, block types.LogicalBlock, create bool) (interfaces.Buffer, error) {
	if ip.Ops == nil || ip.Ops.Bmap == nil {
		return nil, ip.sb.inodeError("getblk", ip.Ino, ErrNotMapped)
	}
	nr, err := ip.Ops.Bmap(ip, block, create)
	if err != nil || nr == 0 {
		return nil, err
	}
	return ip.sb.cache.Getblk(ip.sb.Dev(), nr)
}

// Bread is Getblk followed by a read of the buffer contents
func Bread(ip *Inode, block types.LogicalBlock, create bool) (interfaces.Buffer, error) {
	bh, err := Getblk(ip, block, create)
	if err != nil || bh == nil {
		return nil, err
	}
	if err := ip.sb.cache.Readbuf(bh); err != nil {
		ip.sb.cache.Release(bh)
		return nil, err
	}
	return bh, nil
}
