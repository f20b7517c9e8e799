package minix

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/deploymenttheory/go-minixfs/internal/interfaces"
	"github.com/deploymenttheory/go-minixfs/internal/parsers/inodes"
	"github.com/deploymenttheory/go-minixfs/internal/types"
)

// InodeData is the type-dependent part of an inode: a *ZoneMap for files,
// directories, symlinks, fifos and sockets, or a DeviceNumber for
// character and block devices.
type InodeData interface {
	isInodeData()
}

// ZoneMap holds the seven direct zones, the single-indirect zone and the
// double-indirect zone of an inode.
type ZoneMap [types.NrZones]types.BlockNr

// DeviceNumber is the device a special file refers to. On disk it occupies
// zone[0].
type DeviceNumber types.DevT

func (*ZoneMap) isInodeData()     {}
func (DeviceNumber) isInodeData() {}

// Inode is the in-memory form of an on-disk inode record
type Inode struct {
	Ino    types.Ino
	Mode   uint16
	UID    uint16
	GID    uint8
	Nlinks uint8
	Size   uint32

	// Only Mtime is stored on disk; Atime and Ctime start out equal to it.
	Mtime uint32
	Atime uint32
	Ctime uint32

	Data InodeData
	Ops  *InodeOperations

	sb    *Superblock
	dirty bool
	count int
}

// FileType returns the decoded type of the inode
func (ip *Inode) FileType() types.FileType {
	return types.FileTypeOf(ip.Mode)
}

// Zones returns the zone map, or false for device inodes
func (ip *Inode) Zones() (*ZoneMap, bool) {
	zm, ok := ip.Data.(*ZoneMap)
	return zm, ok
}

// Rdev returns the device number, or false for inodes with a zone map
func (ip *Inode) Rdev() (types.DevT, bool) {
	d, ok := ip.Data.(DeviceNumber)
	return types.DevT(d), ok
}

// Superblock returns the volume the inode belongs to
func (ip *Inode) Superblock() *Superblock {
	return ip.sb
}

// Dirty reports whether the inode has changes not yet encoded
func (ip *Inode) Dirty() bool {
	return ip.dirty
}

// MarkDirty schedules the inode for write-back
func (ip *Inode) MarkDirty() {
	ip.dirty = true
}

// Touch sets the modification and change times and marks the inode dirty
func (ip *Inode) Touch() {
	now := ip.sb.timestamp()
	ip.Mtime = now
	ip.Ctime = now
	ip.dirty = true
}

func (sb *Superblock) inodeError(op string, ino types.Ino, err error) error {
	return &InodeError{Dev: sb.DeviceName(), Ino: ino, Op: op, Err: err}
}

func (sb *Superblock) checkIno(ino types.Ino) error {
	if ino == 0 || ino > types.Ino(sb.Geometry().Ninodes) {
		sb.log.Printf("bad inode number on dev %s: %d is out of range", sb.DeviceName(), ino)
		return ErrBadInodeNumber
	}
	return nil
}

// ReadInode decodes inode ino from the inode table
func (sb *Superblock) ReadInode(ino types.Ino) (*Inode, error) {
	dev := sb.Dev()
	if dev == types.NoDev {
		return nil, sb.inodeError("read", ino, ErrNotMounted)
	}
	if err := sb.checkIno(ino); err != nil {
		return nil, sb.inodeError("read", ino, err)
	}

	geo := sb.Geometry()
	bh, err := sb.cache.Bread(dev, geo.InodeBlock(ino))
	if err != nil {
		sb.log.Printf("unable to read inode %d from dev %s", ino, sb.DeviceName())
		return nil, sb.inodeError("read", ino, err)
	}
	defer sb.cache.Release(bh)

	data := bh.Map()
	defer bh.Unmap()

	slot, err := inodes.Slot(data, ino)
	if err != nil {
		return nil, sb.inodeError("read", ino, err)
	}
	raw, err := inodes.Parse(slot, binary.LittleEndian)
	if err != nil {
		return nil, sb.inodeError("read", ino, err)
	}

	ip := &Inode{
		Ino:    ino,
		Mode:   raw.Mode,
		UID:    raw.UID,
		GID:    raw.GID,
		Nlinks: raw.Nlinks,
		Size:   raw.Size,
		Mtime:  raw.Mtime,
		Atime:  raw.Mtime,
		Ctime:  raw.Mtime,
		sb:     sb,
	}

	if ip.FileType().IsDevice() {
		ip.Data = DeviceNumber(raw.Zone[0])
	} else {
		zm := &ZoneMap{}
		for i, z := range raw.Zone {
			zm[i] = types.BlockNr(z)
		}
		ip.Data = zm
	}
	ip.Ops = OperationsFor(ip.Mode)

	return ip, nil
}

// WriteInode encodes ip into its inode table block and marks the block
// dirty. The returned buffer is still held; the caller must release it.
func (sb *Superblock) WriteInode(ip *Inode) (interfaces.Buffer, error) {
	dev := sb.Dev()
	if dev == types.NoDev {
		return nil, sb.inodeError("write", ip.Ino, ErrNotMounted)
	}
	if err := sb.checkIno(ip.Ino); err != nil {
		ip.dirty = false
		return nil, sb.inodeError("write", ip.Ino, err)
	}

	geo := sb.Geometry()
	bh, err := sb.cache.Bread(dev, geo.InodeBlock(ip.Ino))
	if err != nil {
		sb.log.Printf("unable to read inode block for %d on %s", ip.Ino, sb.DeviceName())
		ip.dirty = false
		return nil, sb.inodeError("write", ip.Ino, err)
	}

	data := bh.Map()
	slot, err := inodes.Slot(data, ip.Ino)
	if err == nil {
		err = encodeInode(slot, ip)
	}
	if err != nil {
		bh.Unmap()
		sb.cache.Release(bh)
		return nil, sb.inodeError("write", ip.Ino, err)
	}
	bh.MarkDirty()
	bh.Unmap()
	ip.dirty = false

	return bh, nil
}

// encodeInode overwrites a record in place. Device inodes only replace
// zone[0]; the remaining zone slots keep their on-disk contents.
func encodeInode(slot []byte, ip *Inode) error {
	raw, err := inodes.Parse(slot, binary.LittleEndian)
	if err != nil {
		return err
	}

	raw.Mode = ip.Mode
	raw.UID = ip.UID
	raw.GID = ip.GID
	raw.Nlinks = ip.Nlinks
	raw.Size = ip.Size
	raw.Mtime = ip.Mtime

	switch d := ip.Data.(type) {
	case DeviceNumber:
		raw.Zone[0] = uint16(d)
	case *ZoneMap:
		for i, z := range d {
			raw.Zone[i] = uint16(z)
		}
	default:
		return fmt.Errorf("inode %d has no data variant", ip.Ino)
	}

	return inodes.Encode(slot, raw, binary.LittleEndian)
}

// SyncInode encodes ip and writes its block to the device immediately
func (sb *Superblock) SyncInode(ip *Inode) error {
	bh, err := sb.WriteInode(ip)
	if err != nil {
		return err
	}
	defer sb.cache.Release(bh)

	if bh.Dirty() {
		if err := sb.cache.WriteSync(bh); err != nil {
			sb.log.Printf("IO error syncing minix inode [%s:%08x]", sb.DeviceName(), ip.Ino)
			return sb.inodeError("sync", ip.Ino, err)
		}
	}
	return nil
}

// PutInode runs when the last reference to ip is dropped. An inode that
// still has links needs nothing further; an unlinked inode is truncated
// to zero length and its number freed.
func (sb *Superblock) PutInode(ip *Inode) error {
	if ip.Nlinks != 0 {
		return nil
	}
	if sb.ReadOnly() {
		return sb.inodeError("put", ip.Ino, ErrReadOnly)
	}

	var errs []error
	ip.Size = 0
	if _, ok := ip.Zones(); ok {
		if err := Truncate(ip); err != nil {
			errs = append(errs, err)
		}
	}

	if bh, err := sb.WriteInode(ip); err != nil {
		errs = append(errs, err)
	} else {
		sb.cache.Release(bh)
	}

	if err := sb.alloc.FreeInode(ip.Ino); err != nil {
		errs = append(errs, sb.inodeError("free", ip.Ino, err))
	}
	return errors.Join(errs...)
}
