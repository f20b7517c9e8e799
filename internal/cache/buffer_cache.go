package cache

import (
	"container/list"
	"errors"
	"fmt"
	"sync"

	"github.com/deploymenttheory/go-minixfs/internal/interfaces"
	"github.com/deploymenttheory/go-minixfs/internal/types"
)

var (
	// ErrCacheFull is returned when every slot holds a referenced buffer
	ErrCacheFull = errors.New("buffer cache full: all buffers in use")

	// ErrNoDevice is returned for blocks of a device that is not attached
	ErrNoDevice = errors.New("no such device attached")

	// ErrDeviceBusy is returned when detaching a device with referenced buffers
	ErrDeviceBusy = errors.New("device busy")
)

// LRUCache is a fixed-size block cache shared by every attached device.
// Referenced buffers are pinned; unreferenced buffers stay cached and are
// reused least recently released first, with dirty contents written back
// before reuse.
type LRUCache struct {
	devices map[types.DevT]interfaces.BlockDevice
	buffers map[bufferKey]*buffer
	free    *list.List // unreferenced buffers, most recently released at front

	maxSlots int
	stats    Statistics

	// Thread safety
	mu sync.Mutex
}

var _ interfaces.BufferCache = (*LRUCache)(nil)

type bufferKey struct {
	dev   types.DevT
	block types.BlockNr
}

// Statistics holds cache counters
type Statistics struct {
	Hits        int64
	Misses      int64
	Acquires    int64
	Releases    int64
	Reads       int64
	Writes      int64
	Evictions   int64
	Outstanding int // references currently held
	Cached      int // buffers currently in the cache
}

// NewLRUCache creates a cache with the given number of buffer slots
func NewLRUCache(slots int) *LRUCache {
	if slots <= 0 {
		slots = 64
	}
	return &LRUCache{
		devices:  make(map[types.DevT]interfaces.BlockDevice),
		buffers:  make(map[bufferKey]*buffer),
		free:     list.New(),
		maxSlots: slots,
	}
}

// Attach binds a block device to a device number
func (c *LRUCache) Attach(dev types.DevT, bd interfaces.BlockDevice) error {
	if dev == types.NoDev {
		return fmt.Errorf("cannot attach device number %s", dev)
	}
	if bd == nil {
		return fmt.Errorf("cannot attach nil device")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.devices[dev]; exists {
		return fmt.Errorf("device %s: %w", dev, ErrDeviceBusy)
	}
	c.devices[dev] = bd
	return nil
}

// Detach flushes and forgets every buffer of dev and unbinds the device.
// It fails while any buffer of the device is still referenced.
func (c *LRUCache) Detach(dev types.DevT) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.devices[dev]; !exists {
		return fmt.Errorf("device %s: %w", dev, ErrNoDevice)
	}
	for key, b := range c.buffers {
		if key.dev == dev && b.count > 0 {
			return fmt.Errorf("device %s block %d still referenced: %w", dev, key.block, ErrDeviceBusy)
		}
	}
	if err := c.flushLocked(dev); err != nil {
		return err
	}
	c.dropLocked(dev)
	delete(c.devices, dev)
	return nil
}

// DeviceName implements interfaces.DeviceNamer
func (c *LRUCache) DeviceName(dev types.DevT) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	if bd, exists := c.devices[dev]; exists {
		return bd.Name()
	}
	return dev.String()
}

// Getblk implements interfaces.BufferCache
func (c *LRUCache) Getblk(dev types.DevT, block types.BlockNr) (interfaces.Buffer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.devices[dev]; !exists {
		return nil, fmt.Errorf("device %s: %w", dev, ErrNoDevice)
	}

	key := bufferKey{dev: dev, block: block}
	if b, exists := c.buffers[key]; exists {
		if b.count == 0 {
			c.free.Remove(b.element)
			b.element = nil
		}
		b.count++
		c.stats.Hits++
		c.stats.Acquires++
		return b, nil
	}

	if len(c.buffers) >= c.maxSlots {
		if err := c.evictLocked(); err != nil {
			return nil, err
		}
	}

	b := &buffer{
		cache: c,
		dev:   dev,
		block: block,
		data:  make([]byte, types.BlockSize),
		count: 1,
	}
	c.buffers[key] = b
	c.stats.Misses++
	c.stats.Acquires++
	return b, nil
}

// evictLocked reuses the least recently released buffer.
// Must be called with mu locked
func (c *LRUCache) evictLocked() error {
	back := c.free.Back()
	if back == nil {
		return ErrCacheFull
	}

	victim := back.Value.(*buffer)
	if victim.dirty {
		if err := c.writeLocked(victim); err != nil {
			return fmt.Errorf("failed to write back block %d before eviction: %w", victim.block, err)
		}
	}

	c.free.Remove(back)
	victim.element = nil
	delete(c.buffers, bufferKey{dev: victim.dev, block: victim.block})
	c.stats.Evictions++
	return nil
}

// Readbuf implements interfaces.BufferCache
func (c *LRUCache) Readbuf(buf interfaces.Buffer) error {
	b, err := c.own(buf)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if b.uptodate {
		return nil
	}
	bd, exists := c.devices[b.dev]
	if !exists {
		return fmt.Errorf("device %s: %w", b.dev, ErrNoDevice)
	}
	if err := bd.ReadBlock(b.block, b.data); err != nil {
		return err
	}
	b.uptodate = true
	c.stats.Reads++
	return nil
}

// Bread implements interfaces.BufferCache
func (c *LRUCache) Bread(dev types.DevT, block types.BlockNr) (interfaces.Buffer, error) {
	buf, err := c.Getblk(dev, block)
	if err != nil {
		return nil, err
	}
	if err := c.Readbuf(buf); err != nil {
		c.Release(buf)
		return nil, err
	}
	return buf, nil
}

// Release implements interfaces.BufferCache. Releasing drops any mapping
// the holder left in place.
func (c *LRUCache) Release(buf interfaces.Buffer) {
	if buf == nil {
		return
	}
	b, err := c.own(buf)
	if err != nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if b.count == 0 {
		return
	}
	b.count--
	c.stats.Releases++
	if b.count == 0 {
		b.mapped = 0
		b.element = c.free.PushFront(b)
	}
}

// WriteSync implements interfaces.BufferCache
func (c *LRUCache) WriteSync(buf interfaces.Buffer) error {
	b, err := c.own(buf)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !b.dirty {
		return nil
	}
	return c.writeLocked(b)
}

// Flush implements interfaces.BufferCache
func (c *LRUCache) Flush(dev types.DevT) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.flushLocked(dev)
}

// Invalidate forgets unreferenced buffers of dev without writing them
func (c *LRUCache) Invalidate(dev types.DevT) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dropLocked(dev)
}

// Statistics returns a snapshot of the cache counters
func (c *LRUCache) Statistics() Statistics {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := c.stats
	stats.Cached = len(c.buffers)
	for _, b := range c.buffers {
		stats.Outstanding += b.count
	}
	return stats
}

// Must be called with mu locked
func (c *LRUCache) flushLocked(dev types.DevT) error {
	var errs []error
	for key, b := range c.buffers {
		if key.dev != dev || !b.dirty {
			continue
		}
		if err := c.writeLocked(b); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Must be called with mu locked
func (c *LRUCache) dropLocked(dev types.DevT) {
	for key, b := range c.buffers {
		if key.dev != dev || b.count > 0 {
			continue
		}
		if b.element != nil {
			c.free.Remove(b.element)
			b.element = nil
		}
		delete(c.buffers, key)
	}
}

// Must be called with mu locked
func (c *LRUCache) writeLocked(b *buffer) error {
	bd, exists := c.devices[b.dev]
	if !exists {
		return fmt.Errorf("device %s: %w", b.dev, ErrNoDevice)
	}
	if err := bd.WriteBlock(b.block, b.data); err != nil {
		return err
	}
	b.dirty = false
	c.stats.Writes++
	return nil
}

func (c *LRUCache) own(buf interfaces.Buffer) (*buffer, error) {
	b, ok := buf.(*buffer)
	if !ok || b.cache != c {
		return nil, fmt.Errorf("buffer for block %d does not belong to this cache", buf.Block())
	}
	return b, nil
}
