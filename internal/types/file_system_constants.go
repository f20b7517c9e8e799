package types

// Geometry constants of the V1 format. Block size is fixed; there is no
// per-volume block size field in the superblock.
const (
	// BlockSize is the size of every block on a V1 volume.
	BlockSize = 1024

	// BootBlock is reserved for the boot loader.
	BootBlock BlockNr = 0

	// SuperblockBlock holds the superblock record.
	SuperblockBlock BlockNr = 1

	// FirstBitmapBlock is where the inode map starts; the zone map follows it.
	FirstBitmapBlock BlockNr = 2

	// SuperMagic identifies a V1 filesystem with 14-character names.
	SuperMagic uint16 = 0x137F

	// InodeRecordSize is the fixed stride of an inode record on disk.
	InodeRecordSize = 32

	// InodesPerBlock is how many inode records fit in one block.
	InodesPerBlock = BlockSize / InodeRecordSize

	// RootIno is the inode number of the root directory.
	RootIno Ino = 1

	// BitsPerBlock is the number of allocation bits in one bitmap block.
	BitsPerBlock = BlockSize * 8

	// MaxImapSlots bounds the inode map; 16-bit inode numbers never need more.
	MaxImapSlots = 8

	// MaxZmapSlots bounds the zone map; 16-bit zone numbers never need more.
	MaxZmapSlots = 8

	// NameLen is the maximum directory entry name length.
	NameLen = 14

	// DirEntrySize is the size of a directory entry (inode number + name).
	DirEntrySize = 16
)

// Zone pointer layout inside an inode.
const (
	// NrZones is the number of zone pointers in an inode record.
	NrZones = 9

	// NrDirectZones is the number of direct zone pointers.
	NrDirectZones = 7

	// IndirectZone is the slot holding the single-indirect block.
	IndirectZone = 7

	// DoubleIndirectZone is the slot holding the double-indirect block.
	DoubleIndirectZone = 8

	// ZonesPerIndirect is the number of 16-bit pointers in an indirect block.
	ZonesPerIndirect = BlockSize / 2

	// IndirectShift and IndirectMask split a double-indirect offset.
	IndirectShift = 9
	IndirectMask  = ZonesPerIndirect - 1

	// MaxFileBlocks is the three-tier capacity of an inode in blocks.
	MaxFileBlocks = NrDirectZones + ZonesPerIndirect + ZonesPerIndirect*ZonesPerIndirect
)

// Superblock state bits.
const (
	// StateValid is set when the volume was cleanly unmounted.
	StateValid uint16 = 0x0001

	// StateError is set when errors were recorded on the volume.
	StateError uint16 = 0x0002
)

// Mode bits. Only the type nibble matters to the driver.
const (
	ModeTypeMask uint16 = 0170000
	ModeSocket   uint16 = 0140000
	ModeSymlink  uint16 = 0120000
	ModeRegular  uint16 = 0100000
	ModeBlockDev uint16 = 0060000
	ModeDir      uint16 = 0040000
	ModeCharDev  uint16 = 0020000
	ModeFifo     uint16 = 0010000
	ModePermMask uint16 = 0007777
)

// FileType is the decoded type nibble of an inode mode.
type FileType uint8

const (
	FileTypeUnknown FileType = iota
	FileTypeRegular
	FileTypeDir
	FileTypeSymlink
	FileTypeCharDev
	FileTypeBlockDev
	FileTypeFifo
	FileTypeSocket
)

// FileTypeOf extracts the file type from a mode.
func FileTypeOf(mode uint16) FileType {
	switch mode & ModeTypeMask {
	case ModeRegular:
		return FileTypeRegular
	case ModeDir:
		return FileTypeDir
	case ModeSymlink:
		return FileTypeSymlink
	case ModeCharDev:
		return FileTypeCharDev
	case ModeBlockDev:
		return FileTypeBlockDev
	case ModeFifo:
		return FileTypeFifo
	case ModeSocket:
		return FileTypeSocket
	default:
		return FileTypeUnknown
	}
}

// IsDevice reports whether zone[0] carries a device number for this type.
func (t FileType) IsDevice() bool {
	return t == FileTypeCharDev || t == FileTypeBlockDev
}

func (t FileType) String() string {
	switch t {
	case FileTypeRegular:
		return "regular"
	case FileTypeDir:
		return "directory"
	case FileTypeSymlink:
		return "symlink"
	case FileTypeCharDev:
		return "chardev"
	case FileTypeBlockDev:
		return "blockdev"
	case FileTypeFifo:
		return "fifo"
	case FileTypeSocket:
		return "socket"
	default:
		return "unknown"
	}
}
