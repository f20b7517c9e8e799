package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/deploymenttheory/go-minixfs/internal/cache"
	"github.com/deploymenttheory/go-minixfs/internal/config"
	"github.com/deploymenttheory/go-minixfs/internal/device"
	"github.com/deploymenttheory/go-minixfs/internal/logging"
	"github.com/deploymenttheory/go-minixfs/internal/minix"
	"github.com/deploymenttheory/go-minixfs/internal/mkfs"
	"github.com/deploymenttheory/go-minixfs/internal/types"
	"github.com/sirupsen/logrus"
)

// ErrInodeNotInUse is returned when writing to an inode with no links
var ErrInodeNotInUse = errors.New("inode not in use")

// AccessMode selects how an image is mounted
type AccessMode int

const (
	// AccessDefault follows the read_only config setting
	AccessDefault AccessMode = iota
	AccessReadOnly
	AccessReadWrite
)

// Options configures Open
type Options struct {
	// Config is used as is when set; otherwise it is loaded from ConfigPath
	Config     *config.Config
	ConfigPath string

	Access AccessMode

	// Log receives driver diagnostics, os.Stderr when nil
	Log io.Writer
	// Debug receives debug diagnostics, discarded when nil
	Debug io.Writer
}

// filesystemService implements the FilesystemService interface
type filesystemService struct {
	image *device.FileDevice
	cache *cache.LRUCache
	dev   types.DevT
	sb    *minix.Superblock
}

// Open mounts the image at path
func Open(ctx context.Context, path string, opts Options) (FilesystemService, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cfg := opts.Config
	if cfg == nil {
		var err error
		if cfg, err = config.LoadConfig(opts.ConfigPath); err != nil {
			return nil, err
		}
	}

	readOnly := cfg.ReadOnly
	switch opts.Access {
	case AccessReadOnly:
		readOnly = true
	case AccessReadWrite:
		readOnly = false
	}

	offset := cfg.ImageOffset
	if offset == 0 && cfg.AutoDetect {
		// Fall back to the start of the image; Mount reports what is there
		if found, err := device.DetectOffset(path); err == nil {
			offset = found
		}
	}

	image, err := device.OpenImage(path, offset, readOnly)
	if err != nil {
		return nil, err
	}

	c := cache.NewLRUCache(cfg.CacheSlots)
	dev := types.MkDev(cfg.DeviceMajor, cfg.DeviceMinor)
	if err := c.Attach(dev, image); err != nil {
		image.Close()
		return nil, err
	}

	logOut := opts.Log
	if logOut == nil {
		logOut = os.Stderr
	}
	debugOut := opts.Debug
	if debugOut == nil {
		debugOut = io.Discard
	}
	warn := logging.Warn(logging.New(logOut, logrus.InfoLevel), cfg.LogPrefix)
	debug := logging.Debug(logging.New(debugOut, logrus.DebugLevel), cfg.LogPrefix)
	warn.Entry = warn.Entry.WithField("image", path)
	debug.Entry = debug.Entry.WithField("image", path)

	sb := minix.NewSuperblock(c, dev, minix.WithLogger(warn), minix.WithDebugLogger(debug))
	if err := sb.Mount(minix.MountOptions{ReadOnly: readOnly, Silent: cfg.Silent}); err != nil {
		return nil, errors.Join(fmt.Errorf("failed to mount %s: %w", path, err), c.Detach(dev), image.Close())
	}

	return &filesystemService{image: image, cache: c, dev: dev, sb: sb}, nil
}

// Format creates an image file at path holding an empty filesystem
func Format(path string, opts mkfs.Options) (*types.SuperblockT, error) {
	if opts.Blocks == 0 {
		return nil, fmt.Errorf("volume size in blocks is required")
	}
	if _, err := mkfs.Layout(opts.Blocks, opts.Inodes); err != nil {
		return nil, err
	}

	image, err := device.CreateImage(path, opts.Blocks)
	if err != nil {
		return nil, err
	}

	raw, err := mkfs.Format(image, opts)
	if cerr := image.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, fmt.Errorf("failed to format %s: %w", path, err)
	}
	return raw, nil
}

// Info reports the superblock, mount state and usage of the volume
func (fs *filesystemService) Info(ctx context.Context) (*VolumeInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	usage, err := fs.sb.Statfs()
	if err != nil {
		return nil, err
	}
	raw := fs.sb.Geometry()

	return &VolumeInfo{
		Device:        fs.sb.DeviceName(),
		MountID:       fs.sb.ID().String(),
		ReadOnly:      fs.sb.ReadOnly(),
		DiskState:     StateString(raw.State),
		MountState:    StateString(fs.sb.MountState()),
		Inodes:        raw.Ninodes,
		Zones:         raw.Nzones,
		ImapBlocks:    raw.ImapBlocks,
		ZmapBlocks:    raw.ZmapBlocks,
		FirstDataZone: raw.FirstDataZone,
		MaxSize:       raw.MaxSize,
		Usage:         *usage,
	}, nil
}

// Stat decodes one inode. The record is read directly so that inodes
// without links can be inspected without being released.
func (fs *filesystemService) Stat(ctx context.Context, ino uint16) (*InodeInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ip, err := fs.sb.ReadInode(types.Ino(ino))
	if err != nil {
		return nil, err
	}

	info := &InodeInfo{
		Ino:      ino,
		Type:     ip.FileType().String(),
		Mode:     fmt.Sprintf("%07o", ip.Mode),
		UID:      ip.UID,
		GID:      ip.GID,
		Links:    ip.Nlinks,
		Size:     ip.Size,
		Modified: time.Unix(int64(ip.Mtime), 0).UTC(),
	}
	if zones, ok := ip.Zones(); ok {
		info.Zones = make([]uint16, len(zones))
		for i, z := range zones {
			info.Zones[i] = uint16(z)
		}
	}
	if rdev, ok := ip.Rdev(); ok {
		info.Rdev = fmt.Sprintf("%d,%d", rdev.Major(), rdev.Minor())
	}
	return info, nil
}

// Bmap resolves a logical block of an inode without allocating
func (fs *filesystemService) Bmap(ctx context.Context, ino uint16, block uint32) (*BlockMapping, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ip, err := fs.sb.ReadInode(types.Ino(ino))
	if err != nil {
		return nil, err
	}
	phys, err := minix.Bmap(ip, types.LogicalBlock(block), false)
	if err != nil {
		return nil, err
	}

	return &BlockMapping{Ino: ino, Block: block, Physical: uint16(phys), Hole: phys == 0}, nil
}

// ReadFile copies the data of an inode to w
func (fs *filesystemService) ReadFile(ctx context.Context, ino uint16, w io.Writer) (int64, error) {
	ip, err := fs.sb.ReadInode(types.Ino(ino))
	if err != nil {
		return 0, err
	}
	if _, ok := ip.Zones(); !ok {
		return 0, fmt.Errorf("inode %d: %w", ino, minix.ErrNotMapped)
	}

	r := minix.NewFileReader(ip)
	buf := make([]byte, 8*types.BlockSize)
	var total int64
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		n, rerr := r.Read(buf)
		if n > 0 {
			written, werr := w.Write(buf[:n])
			total += int64(written)
			if werr != nil {
				return total, werr
			}
		}
		if rerr == io.EOF {
			return total, nil
		}
		if rerr != nil {
			return total, rerr
		}
	}
}

// WriteFile copies r into an inode starting at off. The inode is written
// back before returning, also after a partial write.
func (fs *filesystemService) WriteFile(ctx context.Context, ino uint16, r io.Reader, off int64) (written int64, err error) {
	probe, err := fs.sb.ReadInode(types.Ino(ino))
	if err != nil {
		return 0, err
	}
	if probe.Nlinks == 0 {
		return 0, fmt.Errorf("inode %d: %w", ino, ErrInodeNotInUse)
	}

	ip, err := fs.sb.Iget(types.Ino(ino))
	if err != nil {
		return 0, err
	}
	defer func() {
		err = errors.Join(err, fs.sb.Iput(ip))
	}()

	buf := make([]byte, 8*types.BlockSize)
	for {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		n, rerr := io.ReadFull(r, buf)
		if n > 0 {
			m, werr := minix.WriteAt(ip, buf[:n], off+written)
			written += int64(m)
			if werr != nil {
				return written, werr
			}
		}
		if rerr == io.EOF || rerr == io.ErrUnexpectedEOF {
			return written, nil
		}
		if rerr != nil {
			return written, rerr
		}
	}
}

// SetState records the state written back at unmount. A valid state is
// committed at once by remounting read-only; a read-only remount skips the
// write for any other state, so those reach the disk on Close.
func (fs *filesystemService) SetState(ctx context.Context, state uint16) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := fs.sb.SetMountState(state); err != nil {
		return err
	}
	if state&types.StateValid == 0 {
		return nil
	}
	return fs.sb.Remount(true)
}

// Close unmounts the volume and closes the image
func (fs *filesystemService) Close() error {
	if fs.sb == nil {
		return nil
	}
	err := errors.Join(fs.sb.Unmount(), fs.cache.Detach(fs.dev), fs.image.Close())
	fs.sb = nil
	return err
}

// StateString renders superblock state bits
func StateString(state uint16) string {
	var parts []string
	if state&types.StateValid != 0 {
		parts = append(parts, "valid")
	}
	if state&types.StateError != 0 {
		parts = append(parts, "errors")
	}
	if len(parts) == 0 {
		return "not clean"
	}
	return strings.Join(parts, ",")
}
