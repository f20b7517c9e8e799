// File: internal/interfaces/allocator.go
package interfaces

import "github.com/deploymenttheory/go-minixfs/internal/types"

// BitAllocator picks free zones and inode numbers and flips their bitmap bits
type BitAllocator interface {
	// NewBlock allocates a zone and returns it zero-filled in the cache
	NewBlock() (types.BlockNr, error)

	// FreeBlock returns a zone to the free pool
	FreeBlock(block types.BlockNr) error

	// NewInode allocates an inode number
	NewInode() (types.Ino, error)

	// FreeInode returns an inode number to the free pool
	FreeInode(ino types.Ino) error

	// CountFreeBlocks counts unallocated zones
	CountFreeBlocks() uint32

	// CountFreeInodes counts unallocated inode numbers
	CountFreeInodes() uint32
}
