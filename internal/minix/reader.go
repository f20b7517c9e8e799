package minix

import (
	"errors"
	"fmt"
	"io"

	"github.com/deploymenttheory/go-minixfs/internal/types"
)

// MaxFileSize is the largest byte size the zone layout can address
const MaxFileSize = int64(types.MaxFileBlocks) * types.BlockSize

// FileReader reads the data of an inode through the buffer cache. Holes
// read as zeros.
type FileReader struct {
	ip  *Inode
	off int64
}

var (
	_ io.Reader   = (*FileReader)(nil)
	_ io.ReaderAt = (*FileReader)(nil)
)

// NewFileReader creates a reader positioned at the start of ip
func NewFileReader(ip *Inode) *FileReader {
	return &FileReader{ip: ip}
}

// Size returns the file size in bytes
func (r *FileReader) Size() int64 {
	return int64(r.ip.Size)
}

// ReadAt implements io.ReaderAt
func (r *FileReader) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, errors.New("negative offset")
	}
	size := r.Size()
	if off >= size {
		return 0, io.EOF
	}

	n := 0
	for n < len(p) && off < size {
		within := int(off % types.BlockSize)
		chunk := min(types.BlockSize-within, len(p)-n, int(size-off))

		bh, err := Bread(r.ip, types.LogicalBlock(off/types.BlockSize), false)
		if err != nil {
			return n, err
		}
		if bh == nil {
			clear(p[n : n+chunk])
		} else {
			data := bh.Map()
			copy(p[n:n+chunk], data[within:within+chunk])
			bh.Unmap()
			r.ip.sb.cache.Release(bh)
		}

		n += chunk
		off += int64(chunk)
	}

	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// Read implements io.Reader
func (r *FileReader) Read(p []byte) (int, error) {
	n, err := r.ReadAt(p, r.off)
	r.off += int64(n)
	if n > 0 && err == io.EOF {
		err = nil
	}
	return n, err
}

// WriteAt writes p into ip at off, allocating blocks as needed and growing
// the file. The inode is marked dirty; it is written back by Iput or Sync.
func WriteAt(ip *Inode, p []byte, off int64) (int, error) {
	sb := ip.sb
	if off < 0 {
		return 0, errors.New("negative offset")
	}
	if sb.ReadOnly() {
		return 0, sb.inodeError("write", ip.Ino, ErrReadOnly)
	}
	if off+int64(len(p)) > MaxFileSize {
		return 0, sb.inodeError("write", ip.Ino, fmt.Errorf("%w: %d bytes at offset %d", ErrFileTooBig, len(p), off))
	}

	n := 0
	var werr error
	for n < len(p) {
		within := int(off % types.BlockSize)
		chunk := min(types.BlockSize-within, len(p)-n)
		block := types.LogicalBlock(off / types.BlockSize)

		// A whole-block overwrite does not need the old contents
		fetch := Bread
		if chunk == types.BlockSize {
			fetch = Getblk
		}
		bh, err := fetch(ip, block, true)
		if err != nil {
			werr = err
			break
		}
		if bh == nil {
			werr = sb.inodeError("write", ip.Ino, fmt.Errorf("block %d not mapped", block))
			break
		}

		data := bh.Map()
		copy(data[within:within+chunk], p[n:n+chunk])
		bh.MarkDirty()
		bh.Unmap()
		sb.cache.Release(bh)

		n += chunk
		off += int64(chunk)
	}

	if n > 0 {
		if off > int64(ip.Size) {
			ip.Size = uint32(off)
		}
		ip.Touch()
	}
	return n, werr
}
