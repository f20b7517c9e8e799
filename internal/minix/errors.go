package minix

import (
	"errors"
	"fmt"

	"github.com/deploymenttheory/go-minixfs/internal/bitmap"
	"github.com/deploymenttheory/go-minixfs/internal/parsers/superblock"
	"github.com/deploymenttheory/go-minixfs/internal/types"
)

var (
	// ErrBadMagic is returned when block 1 does not hold a V1 superblock
	ErrBadMagic = superblock.ErrBadMagic

	// ErrBadSuperblock is returned for a superblock with impossible geometry
	ErrBadSuperblock = errors.New("bad superblock")

	// ErrBitmapTooLarge is returned when the bitmaps exceed the supported slot count
	ErrBitmapTooLarge = bitmap.ErrBitmapTooLarge

	// ErrBadInodeNumber is returned for inode numbers outside 1..ninodes
	ErrBadInodeNumber = errors.New("inode number out of range")

	// ErrNoSpace is returned when the volume has no free zone or inode
	ErrNoSpace = bitmap.ErrNoSpace

	// ErrFileTooBig is returned for logical blocks beyond the triple-tier capacity
	ErrFileTooBig = errors.New("file too large")

	// ErrNotMapped is returned for inodes without a zone map, such as devices
	ErrNotMapped = errors.New("inode has no block map")

	// ErrNotMounted is returned for operations on an unbound superblock
	ErrNotMounted = errors.New("filesystem not mounted")

	// ErrMounted is returned when mounting an already mounted superblock
	ErrMounted = errors.New("filesystem already mounted")

	// ErrReadOnly is returned for modifications on a read-only mount
	ErrReadOnly = errors.New("read-only filesystem")
)

// InodeError records a failed operation on one inode
type InodeError struct {
	Dev string
	Ino types.Ino
	Op  string
	Err error
}

func (e *InodeError) Error() string {
	return fmt.Sprintf("%s inode %d on %s: %v", e.Op, e.Ino, e.Dev, e.Err)
}

func (e *InodeError) Unwrap() error {
	return e.Err
}
