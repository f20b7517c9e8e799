package minix

import (
	"sync"

	"github.com/deploymenttheory/go-minixfs/internal/types"
)

// inodeTable shares one Inode per inode number among its users and counts
// their references.
type inodeTable struct {
	mu     sync.Mutex
	inodes map[types.Ino]*Inode
}

func newInodeTable() *inodeTable {
	return &inodeTable{inodes: make(map[types.Ino]*Inode)}
}

// Iget returns the inode with number ino, reading it on first reference
func (sb *Superblock) Iget(ino types.Ino) (*Inode, error) {
	t := sb.itable
	if t == nil {
		return nil, sb.inodeError("iget", ino, ErrNotMounted)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if ip, ok := t.inodes[ino]; ok {
		ip.count++
		return ip, nil
	}

	ip, err := sb.ReadInode(ino)
	if err != nil {
		return nil, err
	}
	ip.count = 1
	t.inodes[ino] = ip
	return ip, nil
}

// Iput drops a reference taken by Iget. On the last reference a dirty
// inode is written back, and an unlinked one is released through PutInode.
func (sb *Superblock) Iput(ip *Inode) error {
	t := sb.itable
	if t == nil || ip == nil {
		return nil
	}

	t.mu.Lock()
	if ip.count > 1 {
		ip.count--
		t.mu.Unlock()
		return nil
	}
	ip.count = 0
	delete(t.inodes, ip.Ino)
	t.mu.Unlock()

	if ip.Nlinks == 0 {
		return sb.PutInode(ip)
	}
	return sb.writeBack(ip)
}

func (sb *Superblock) writeBack(ip *Inode) error {
	if !ip.dirty || sb.ReadOnly() {
		return nil
	}
	bh, err := sb.WriteInode(ip)
	if err != nil {
		return err
	}
	sb.cache.Release(bh)
	return nil
}

// sync writes back every dirty inode in the table.
func (t *inodeTable) sync(sb *Superblock) []error {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	var errs []error
	for _, ip := range t.inodes {
		if err := sb.writeBack(ip); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// drain writes back every inode and forgets them all.
func (t *inodeTable) drain(sb *Superblock) []error {
	errs := t.sync(sb)
	if t != nil {
		t.mu.Lock()
		clear(t.inodes)
		t.mu.Unlock()
	}
	return errs
}
