package services

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/deploymenttheory/go-minixfs/internal/minix"
)

// FilesystemService is the entry point for working with one mounted image
type FilesystemService interface {
	// Info reports the superblock, mount state and usage of the volume
	Info(ctx context.Context) (*VolumeInfo, error)

	// Stat decodes one inode
	Stat(ctx context.Context, ino uint16) (*InodeInfo, error)

	// Bmap resolves a logical block of an inode without allocating
	Bmap(ctx context.Context, ino uint16, block uint32) (*BlockMapping, error)

	// ReadFile copies the data of an inode to w
	ReadFile(ctx context.Context, ino uint16, w io.Writer) (int64, error)

	// WriteFile copies r into an inode starting at off, allocating blocks
	WriteFile(ctx context.Context, ino uint16, r io.Reader, off int64) (int64, error)

	// SetState records the state written back when the volume is closed
	SetState(ctx context.Context, state uint16) error

	// Close unmounts the volume and closes the image
	Close() error
}

// VolumeInfo describes a mounted volume
type VolumeInfo struct {
	Device        string       `json:"device" yaml:"device"`
	MountID       string       `json:"mount_id" yaml:"mount_id"`
	ReadOnly      bool         `json:"read_only" yaml:"read_only"`
	DiskState     string       `json:"disk_state" yaml:"disk_state"`
	MountState    string       `json:"mount_state" yaml:"mount_state"`
	Inodes        uint16       `json:"inodes" yaml:"inodes"`
	Zones         uint16       `json:"zones" yaml:"zones"`
	ImapBlocks    uint16       `json:"imap_blocks" yaml:"imap_blocks"`
	ZmapBlocks    uint16       `json:"zmap_blocks" yaml:"zmap_blocks"`
	FirstDataZone uint16       `json:"first_data_zone" yaml:"first_data_zone"`
	MaxSize       uint32       `json:"max_size" yaml:"max_size"`
	Usage         minix.Statfs `json:"usage" yaml:"usage"`
}

// Header implements app.Table
func (v *VolumeInfo) Header() []string { return []string{"FIELD", "VALUE"} }

// Rows implements app.Table
func (v *VolumeInfo) Rows() [][]string {
	return [][]string{
		{"Device", v.Device},
		{"Mount ID", v.MountID},
		{"Read-only", strconv.FormatBool(v.ReadOnly)},
		{"Disk state", v.DiskState},
		{"Mount state", v.MountState},
		{"Inodes", fmt.Sprintf("%d (%d free)", v.Inodes, v.Usage.FreeFiles)},
		{"Zones", fmt.Sprintf("%d (%d free)", v.Zones, v.Usage.FreeBlocks)},
		{"Inode map blocks", strconv.Itoa(int(v.ImapBlocks))},
		{"Zone map blocks", strconv.Itoa(int(v.ZmapBlocks))},
		{"First data zone", strconv.Itoa(int(v.FirstDataZone))},
		{"Max file size", strconv.FormatUint(uint64(v.MaxSize), 10)},
	}
}

// InodeInfo is the decoded form of one inode
type InodeInfo struct {
	Ino      uint16    `json:"ino" yaml:"ino"`
	Type     string    `json:"type" yaml:"type"`
	Mode     string    `json:"mode" yaml:"mode"`
	UID      uint16    `json:"uid" yaml:"uid"`
	GID      uint8     `json:"gid" yaml:"gid"`
	Links    uint8     `json:"links" yaml:"links"`
	Size     uint32    `json:"size" yaml:"size"`
	Modified time.Time `json:"modified" yaml:"modified"`
	Zones    []uint16  `json:"zones,omitempty" yaml:"zones,omitempty"`
	Rdev     string    `json:"rdev,omitempty" yaml:"rdev,omitempty"`
}

// Header implements app.Table
func (i *InodeInfo) Header() []string { return []string{"FIELD", "VALUE"} }

// Rows implements app.Table
func (i *InodeInfo) Rows() [][]string {
	rows := [][]string{
		{"Inode", strconv.Itoa(int(i.Ino))},
		{"Type", i.Type},
		{"Mode", i.Mode},
		{"UID", strconv.Itoa(int(i.UID))},
		{"GID", strconv.Itoa(int(i.GID))},
		{"Links", strconv.Itoa(int(i.Links))},
		{"Size", strconv.FormatUint(uint64(i.Size), 10)},
		{"Modified", i.Modified.UTC().Format(time.RFC3339)},
	}
	if i.Rdev != "" {
		rows = append(rows, []string{"Device", i.Rdev})
	}
	for n, z := range i.Zones {
		rows = append(rows, []string{fmt.Sprintf("Zone[%d]", n), strconv.Itoa(int(z))})
	}
	return rows
}

// BlockMapping is the result of resolving one logical block
type BlockMapping struct {
	Ino      uint16 `json:"ino" yaml:"ino"`
	Block    uint32 `json:"block" yaml:"block"`
	Physical uint16 `json:"physical" yaml:"physical"`
	Hole     bool   `json:"hole" yaml:"hole"`
}

// Header implements app.Table
func (m *BlockMapping) Header() []string { return []string{"INODE", "BLOCK", "PHYSICAL"} }

// Rows implements app.Table
func (m *BlockMapping) Rows() [][]string {
	physical := strconv.Itoa(int(m.Physical))
	if m.Hole {
		physical = "hole"
	}
	return [][]string{{strconv.Itoa(int(m.Ino)), strconv.FormatUint(uint64(m.Block), 10), physical}}
}
