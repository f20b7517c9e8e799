package types

// SuperblockT is the on-disk V1 superblock record stored in block 1.
type SuperblockT struct {
	// Number of usable inodes.
	Ninodes uint16
	// Total device size in zones, including bitmaps and the inode table.
	Nzones uint16
	// Number of blocks used by the inode map.
	ImapBlocks uint16
	// Number of blocks used by the zone map.
	ZmapBlocks uint16
	// First zone holding file data.
	FirstDataZone uint16
	// log2 of blocks per zone.
	LogZoneSize uint16
	// Maximum file size in bytes.
	MaxSize uint32
	// Format magic, SuperMagic for V1.
	Magic uint16
	// Mount state bits (StateValid, StateError).
	State uint16
}

// SuperblockSize is the number of meaningful bytes in the superblock record.
const SuperblockSize = 20

// InodeTableBlock returns the first block of the inode table.
func (sb *SuperblockT) InodeTableBlock() BlockNr {
	return FirstBitmapBlock + BlockNr(sb.ImapBlocks) + BlockNr(sb.ZmapBlocks)
}

// InodeBlock returns the block holding the record of the given inode.
func (sb *SuperblockT) InodeBlock(ino Ino) BlockNr {
	return sb.InodeTableBlock() + BlockNr((uint32(ino)-1)/InodesPerBlock)
}

// InodeOffset returns the byte offset of the inode's record in its block.
func InodeOffset(ino Ino) int {
	return int((uint32(ino)-1)%InodesPerBlock) * InodeRecordSize
}
