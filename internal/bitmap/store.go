package bitmap

import (
	"errors"
	"fmt"
	"math/bits"

	"github.com/deploymenttheory/go-minixfs/internal/interfaces"
	"github.com/deploymenttheory/go-minixfs/internal/types"
)

var (
	// ErrBitmapTooLarge is returned when a volume needs more bitmap blocks
	// than the supported slot count
	ErrBitmapTooLarge = errors.New("bitmap exceeds supported slot count")

	// ErrEmptyBitmap is returned when a volume declares no bitmap blocks
	ErrEmptyBitmap = errors.New("bitmap has no blocks")

	// ErrBitOutOfRange is returned for a bit beyond the loaded bitmap
	ErrBitOutOfRange = errors.New("bit out of range")
)

// Store holds the inode map and zone map buffers of a mounted volume. The
// buffers stay referenced from Load until ReleaseAll.
type Store struct {
	cache  interfaces.BufferCache
	inodes *Map
	zones  *Map
}

// Load reads imapBlocks inode-map blocks followed by zmapBlocks zone-map
// blocks starting at types.FirstBitmapBlock. If any block cannot be read,
// every buffer acquired so far is released and no Store is returned.
func Load(cache interfaces.BufferCache, dev types.DevT, imapBlocks, zmapBlocks uint16) (*Store, error) {
	if imapBlocks == 0 || zmapBlocks == 0 {
		return nil, fmt.Errorf("%w: %d inode map, %d zone map blocks", ErrEmptyBitmap, imapBlocks, zmapBlocks)
	}
	if imapBlocks > types.MaxImapSlots {
		return nil, fmt.Errorf("%w: %d inode map blocks, limit %d", ErrBitmapTooLarge, imapBlocks, types.MaxImapSlots)
	}
	if zmapBlocks > types.MaxZmapSlots {
		return nil, fmt.Errorf("%w: %d zone map blocks, limit %d", ErrBitmapTooLarge, zmapBlocks, types.MaxZmapSlots)
	}

	s := &Store{
		cache:  cache,
		inodes: &Map{buffers: make([]interfaces.Buffer, 0, imapBlocks)},
		zones:  &Map{buffers: make([]interfaces.Buffer, 0, zmapBlocks)},
	}

	block := types.FirstBitmapBlock
	for _, m := range []struct {
		target *Map
		count  uint16
		name   string
	}{
		{s.inodes, imapBlocks, "inode map"},
		{s.zones, zmapBlocks, "zone map"},
	} {
		for i := uint16(0); i < m.count; i++ {
			buf, err := cache.Bread(dev, block)
			if err != nil {
				s.ReleaseAll()
				return nil, fmt.Errorf("failed to read %s block %d: %w", m.name, block, err)
			}
			m.target.buffers = append(m.target.buffers, buf)
			block++
		}
	}

	return s, nil
}

// ReserveZero sets bit 0 of the first inode-map and zone-map block. Index 0
// is never an allocatable inode or zone.
func (s *Store) ReserveZero() {
	s.inodes.setRaw(0)
	s.zones.setRaw(0)
}

// Inodes returns the inode allocation map
func (s *Store) Inodes() *Map {
	return s.inodes
}

// Zones returns the zone allocation map
func (s *Store) Zones() *Map {
	return s.zones
}

// Held returns the number of buffers currently held by the store
func (s *Store) Held() int {
	return len(s.inodes.buffers) + len(s.zones.buffers)
}

// ReleaseAll releases every held buffer. The store is empty afterwards.
func (s *Store) ReleaseAll() {
	for _, m := range []*Map{s.inodes, s.zones} {
		for _, buf := range m.buffers {
			s.cache.Release(buf)
		}
		m.buffers = nil
	}
}

// Map is one allocation bitmap spread over consecutive blocks. Bits are
// numbered LSB first within each byte.
type Map struct {
	buffers []interfaces.Buffer
}

// Len returns the number of bits the map can hold
func (m *Map) Len() uint32 {
	return uint32(len(m.buffers)) * types.BitsPerBlock
}

// Blocks returns the number of blocks backing the map
func (m *Map) Blocks() int {
	return len(m.buffers)
}

func (m *Map) locate(bit uint32) (interfaces.Buffer, int, byte, error) {
	if bit >= m.Len() {
		return nil, 0, 0, fmt.Errorf("%w: bit %d, map holds %d", ErrBitOutOfRange, bit, m.Len())
	}
	buf := m.buffers[bit/types.BitsPerBlock]
	within := bit % types.BitsPerBlock
	return buf, int(within / 8), byte(1) << (within % 8), nil
}

// Test reports whether a bit is set
func (m *Map) Test(bit uint32) (bool, error) {
	buf, idx, mask, err := m.locate(bit)
	if err != nil {
		return false, err
	}
	data := buf.Map()
	defer buf.Unmap()
	return data[idx]&mask != 0, nil
}

// Set sets a bit and returns its previous value. The buffer is marked dirty
// when the bit changes.
func (m *Map) Set(bit uint32) (bool, error) {
	buf, idx, mask, err := m.locate(bit)
	if err != nil {
		return false, err
	}
	data := buf.Map()
	defer buf.Unmap()

	was := data[idx]&mask != 0
	if !was {
		data[idx] |= mask
		buf.MarkDirty()
	}
	return was, nil
}

// Clear clears a bit and returns its previous value. The buffer is marked
// dirty when the bit changes.
func (m *Map) Clear(bit uint32) (bool, error) {
	buf, idx, mask, err := m.locate(bit)
	if err != nil {
		return false, err
	}
	data := buf.Map()
	defer buf.Unmap()

	was := data[idx]&mask != 0
	if was {
		data[idx] &^= mask
		buf.MarkDirty()
	}
	return was, nil
}

// setRaw sets a bit without dirtying the buffer.
func (m *Map) setRaw(bit uint32) {
	buf, idx, mask, err := m.locate(bit)
	if err != nil {
		return
	}
	data := buf.Map()
	data[idx] |= mask
	buf.Unmap()
}

// FirstZero returns the lowest clear bit below limit.
func (m *Map) FirstZero(limit uint32) (uint32, bool) {
	if limit > m.Len() {
		limit = m.Len()
	}
	for i, buf := range m.buffers {
		base := uint32(i) * types.BitsPerBlock
		if base >= limit {
			break
		}
		data := buf.Map()
		for byt, v := range data {
			if v == 0xff {
				continue
			}
			bit := base + uint32(byt)*8 + uint32(bits.TrailingZeros8(^v))
			if bit >= limit {
				break
			}
			buf.Unmap()
			return bit, true
		}
		buf.Unmap()
	}
	return 0, false
}

// CountZero counts clear bits below limit.
func (m *Map) CountZero(limit uint32) uint32 {
	if limit > m.Len() {
		limit = m.Len()
	}
	var zero uint32
	for i, buf := range m.buffers {
		base := uint32(i) * types.BitsPerBlock
		if base >= limit {
			break
		}
		n := limit - base
		if n > types.BitsPerBlock {
			n = types.BitsPerBlock
		}
		data := buf.Map()
		full := n / 8
		for _, v := range data[:full] {
			zero += uint32(8 - bits.OnesCount8(v))
		}
		if rem := n % 8; rem != 0 {
			v := data[full] | ^byte((1<<rem)-1)
			zero += uint32(8 - bits.OnesCount8(v))
		}
		buf.Unmap()
	}
	return zero
}
