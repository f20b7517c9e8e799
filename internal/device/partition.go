package device

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/deploymenttheory/go-minixfs/internal/parsers/superblock"
	"github.com/deploymenttheory/go-minixfs/internal/types"
)

// ErrNoFilesystem is returned when no V1 superblock is found in an image
var ErrNoFilesystem = errors.New("no minix filesystem found")

// MBR layout
const (
	sectorSize       = 512
	partitionTable   = 446
	partitionEntries = 4
	partitionEntry   = 16
	mbrSignature     = 0xAA55

	// Partition types used for MINIX filesystems
	partTypeMinixOld = 0x80
	partTypeMinix    = 0x81
)

// Partition is one primary entry of a master boot record
type Partition struct {
	Index   int
	Type    byte
	Start   int64 // byte offset
	Length  int64 // bytes
	IsMinix bool
}

// ReadPartitions decodes the primary partition table of a disk image. An
// image without the boot signature has no partitions.
func ReadPartitions(r io.ReaderAt) ([]Partition, error) {
	mbr := make([]byte, sectorSize)
	if _, err := r.ReadAt(mbr, 0); err != nil {
		return nil, fmt.Errorf("failed to read boot sector: %w", err)
	}
	if binary.LittleEndian.Uint16(mbr[510:]) != mbrSignature {
		return nil, nil
	}

	var parts []Partition
	for i := 0; i < partitionEntries; i++ {
		entry := mbr[partitionTable+i*partitionEntry:][:partitionEntry]
		kind := entry[4]
		lba := binary.LittleEndian.Uint32(entry[8:])
		sectors := binary.LittleEndian.Uint32(entry[12:])
		if kind == 0 || sectors == 0 {
			continue
		}
		parts = append(parts, Partition{
			Index:   i + 1,
			Type:    kind,
			Start:   int64(lba) * sectorSize,
			Length:  int64(sectors) * sectorSize,
			IsMinix: kind == partTypeMinixOld || kind == partTypeMinix,
		})
	}
	return parts, nil
}

// DetectOffset finds the byte offset of a V1 filesystem inside an image.
// A filesystem at the start of the image wins; otherwise MINIX partitions
// are tried before any other partition type.
func DetectOffset(path string) (int64, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open image file: %w", err)
	}
	defer file.Close()

	if hasSuperblock(file, 0) {
		return 0, nil
	}

	parts, err := ReadPartitions(file)
	if err != nil {
		return 0, err
	}
	for _, pass := range []bool{true, false} {
		for _, p := range parts {
			if p.IsMinix == pass && hasSuperblock(file, p.Start) {
				return p.Start, nil
			}
		}
	}

	return 0, fmt.Errorf("%s: %w", path, ErrNoFilesystem)
}

// hasSuperblock checks for the V1 magic in the superblock at base
func hasSuperblock(r io.ReaderAt, base int64) bool {
	record := make([]byte, types.SuperblockSize)
	if _, err := r.ReadAt(record, base+int64(types.SuperblockBlock)*types.BlockSize); err != nil {
		return false
	}
	sb, err := superblock.Parse(record, binary.LittleEndian)
	if err != nil {
		return false
	}
	return superblock.Validate(sb) == nil
}
