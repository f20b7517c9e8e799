// Package types implements the on-disk data structures of the MINIX V1
// filesystem: the superblock, the 32-byte inode record and the scalar types
// used to address blocks, inodes and devices.
package types

import "fmt"

// BlockNr is a physical block (zone) number. The V1 format addresses blocks
// with 16 bits; zero means "no block" everywhere a pointer is stored.
type BlockNr uint16

// LogicalBlock is a block index within a file. Its range exceeds 16 bits
// because the double-indirect tier reaches 7 + 512 + 512*512 blocks.
type LogicalBlock uint32

// Ino is an inode number. Inode 0 is never valid; the root is inode 1.
type Ino uint16

// DevT is a packed device number, major in the high byte and minor in the
// low byte. Device inodes store it verbatim in zone[0].
type DevT uint16

// NoDev marks a superblock or buffer that is not bound to any device.
const NoDev DevT = 0

// MkDev packs a major and minor number into a DevT.
func MkDev(major, minor uint8) DevT {
	return DevT(major)<<8 | DevT(minor)
}

// Major returns the major number of the device.
func (d DevT) Major() uint8 {
	return uint8(d >> 8)
}

// Minor returns the minor number of the device.
func (d DevT) Minor() uint8 {
	return uint8(d & 0xff)
}

// String formats the device the way diagnostics name unregistered devices.
func (d DevT) String() string {
	return fmt.Sprintf("%02x%02x", d.Major(), d.Minor())
}
