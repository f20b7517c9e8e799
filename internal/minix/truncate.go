package minix

import (
	"encoding/binary"
	"errors"

	"github.com/deploymenttheory/go-minixfs/internal/types"
)

// Truncate frees every data and indirect block of ip lying beyond ip.Size.
// Freed pointers are cleared; an indirect block is freed once none of its
// entries is kept. Freeing continues past individual failures.
func Truncate(ip *Inode) error {
	sb := ip.sb
	zones, ok := ip.Zones()
	if !ok {
		return sb.inodeError("truncate", ip.Ino, ErrNotMapped)
	}
	if sb.ReadOnly() {
		return sb.inodeError("truncate", ip.Ino, ErrReadOnly)
	}

	keep := uint32(types.MaxFileBlocks)
	if blocks := (uint64(ip.Size) + types.BlockSize - 1) / types.BlockSize; blocks < types.MaxFileBlocks {
		keep = uint32(blocks)
	}
	var errs []error

	for i := keep; i < types.NrDirectZones; i++ {
		if zones[i] == 0 {
			continue
		}
		if err := sb.freeBlock(zones[i]); err != nil {
			errs = append(errs, err)
		}
		zones[i] = 0
	}

	if zones[types.IndirectZone] != 0 {
		empty, err := ip.truncateIndirect(zones[types.IndirectZone], clampKeep(keep, types.NrDirectZones))
		if err != nil {
			errs = append(errs, err)
		}
		if empty {
			if err := sb.freeBlock(zones[types.IndirectZone]); err != nil {
				errs = append(errs, err)
			}
			zones[types.IndirectZone] = 0
		}
	}

	if zones[types.DoubleIndirectZone] != 0 {
		empty, err := ip.truncateDoubleIndirect(zones[types.DoubleIndirectZone], clampKeep(keep, types.NrDirectZones+types.ZonesPerIndirect))
		if err != nil {
			errs = append(errs, err)
		}
		if empty {
			if err := sb.freeBlock(zones[types.DoubleIndirectZone]); err != nil {
				errs = append(errs, err)
			}
			zones[types.DoubleIndirectZone] = 0
		}
	}

	ip.Touch()

	if err := errors.Join(errs...); err != nil {
		return sb.inodeError("truncate", ip.Ino, err)
	}
	return nil
}

// clampKeep converts the kept block count of a file into the kept count of
// a tier starting at logical block base.
func clampKeep(keep, base uint32) uint32 {
	if keep <= base {
		return 0
	}
	return keep - base
}

// truncateIndirect frees entries keep..511 of an indirect block and reports
// whether the block ended up with no entries at all.
func (ip *Inode) truncateIndirect(ind types.BlockNr, keep uint32) (bool, error) {
	if keep >= types.ZonesPerIndirect {
		return false, nil
	}

	sb := ip.sb
	bh, err := sb.cache.Bread(sb.Dev(), ind)
	if err != nil {
		sb.log.Printf("unable to read indirect block %d of inode %d on %s", ind, ip.Ino, sb.DeviceName())
		return false, err
	}
	defer sb.cache.Release(bh)

	data := bh.Map()
	defer bh.Unmap()

	var errs []error
	empty := true
	for i := uint32(0); i < types.ZonesPerIndirect; i++ {
		entry := data[2*i : 2*i+2]
		z := types.BlockNr(binary.LittleEndian.Uint16(entry))
		if z == 0 {
			continue
		}
		if i < keep {
			empty = false
			continue
		}
		if err := sb.freeBlock(z); err != nil {
			errs = append(errs, err)
		}
		binary.LittleEndian.PutUint16(entry, 0)
		bh.MarkDirty()
	}
	return empty, errors.Join(errs...)
}

// truncateDoubleIndirect trims a double-indirect block. The entries are
// copied out first so only one indirect buffer is held at a time.
func (ip *Inode) truncateDoubleIndirect(dind types.BlockNr, keep uint32) (bool, error) {
	sb := ip.sb
	entries, err := sb.readIndirect(dind)
	if err != nil {
		sb.log.Printf("unable to read double indirect block %d of inode %d on %s", dind, ip.Ino, sb.DeviceName())
		return false, err
	}

	var errs []error
	freed := map[int]bool{}
	empty := true
	for i, ind := range entries {
		if ind == 0 {
			continue
		}
		childEmpty, err := ip.truncateIndirect(ind, clampKeep(keep, uint32(i)*types.ZonesPerIndirect))
		if err != nil {
			errs = append(errs, err)
		}
		if !childEmpty {
			empty = false
			continue
		}
		if err := sb.freeBlock(ind); err != nil {
			errs = append(errs, err)
		}
		freed[i] = true
	}

	if len(freed) > 0 {
		bh, err := sb.cache.Bread(sb.Dev(), dind)
		if err != nil {
			return false, errors.Join(append(errs, err)...)
		}
		data := bh.Map()
		for i := range freed {
			binary.LittleEndian.PutUint16(data[2*i:2*i+2], 0)
		}
		bh.MarkDirty()
		bh.Unmap()
		sb.cache.Release(bh)
	}

	return empty, errors.Join(errs...)
}

// readIndirect copies the entries of an indirect block.
func (sb *Superblock) readIndirect(ind types.BlockNr) ([types.ZonesPerIndirect]types.BlockNr, error) {
	var entries [types.ZonesPerIndirect]types.BlockNr

	bh, err := sb.cache.Bread(sb.Dev(), ind)
	if err != nil {
		return entries, err
	}
	data := bh.Map()
	for i := range entries {
		entries[i] = types.BlockNr(binary.LittleEndian.Uint16(data[2*i : 2*i+2]))
	}
	bh.Unmap()
	sb.cache.Release(bh)

	return entries, nil
}

func (sb *Superblock) freeBlock(block types.BlockNr) error {
	alloc := sb.Allocator()
	if alloc == nil {
		return ErrNotMounted
	}
	return alloc.FreeBlock(block)
}
