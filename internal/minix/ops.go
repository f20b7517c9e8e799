package minix

import "github.com/deploymenttheory/go-minixfs/internal/types"

// InodeOperations is the capability set of an inode. Device tables carry
// no block operations; their data lives on another device.
type InodeOperations struct {
	Name     string
	Bmap     func(ip *Inode, block types.LogicalBlock, create bool) (types.BlockNr, error)
	Truncate func(ip *Inode) error
}

var (
	// FileOperations serves regular files.
	FileOperations = &InodeOperations{
		Name:     "file",
		Bmap:     Bmap,
		Truncate: Truncate,
	}

	// DirOperations serves directories.
	DirOperations = &InodeOperations{
		Name:     "dir",
		Bmap:     Bmap,
		Truncate: Truncate,
	}

	// SymlinkOperations serves symbolic links.
	SymlinkOperations = &InodeOperations{
		Name:     "symlink",
		Bmap:     Bmap,
		Truncate: Truncate,
	}

	// ChrdevOperations marks character devices.
	ChrdevOperations = &InodeOperations{Name: "chrdev"}

	// BlkdevOperations marks block devices.
	BlkdevOperations = &InodeOperations{Name: "blkdev"}
)

// OperationsFor selects the capability set for a mode. Fifos, sockets and
// unknown types get none.
func OperationsFor(mode uint16) *InodeOperations {
	switch types.FileTypeOf(mode) {
	case types.FileTypeRegular:
		return FileOperations
	case types.FileTypeDir:
		return DirOperations
	case types.FileTypeSymlink:
		return SymlinkOperations
	case types.FileTypeCharDev:
		return ChrdevOperations
	case types.FileTypeBlockDev:
		return BlkdevOperations
	default:
		return nil
	}
}
