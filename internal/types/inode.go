package types

// InodeT is the 32-byte on-disk V1 inode record.
type InodeT struct {
	Mode   uint16
	UID    uint16
	Size   uint32
	Mtime  uint32
	GID    uint8
	Nlinks uint8
	// Zone holds 7 direct pointers, the single-indirect pointer and the
	// double-indirect pointer. For device inodes Zone[0] is a DevT.
	Zone [NrZones]uint16
}
