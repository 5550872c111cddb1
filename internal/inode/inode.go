// Package inode implements the fixed-size on-disk inode record (§3, §4.4)
// and the store that reads/writes inodes packed 16 to a block. Grounded on
// the teacher's drivers/unixv6/dirents.go RawInode (a byte-exact on-disk
// inode layout paired with a disko.FileStat projection) and
// file_systems/unixv1/format.go's encoding/binary-based (de)serialization
// idiom.
package inode

import (
	"encoding/binary"
	"fmt"

	"github.com/tinytfs/tfs/internal/layout"
)

// Type distinguishes regular files from directories.
type Type uint8

const (
	TypeFile Type = 0
	TypeDir  Type = 1
)

// VStat is the cached attribute view returned to the host on getattr, per §3.
type VStat struct {
	Mode      uint32
	Size      int64
	BlockSize int32
	Blocks    int32
	Ino       uint32
	ModTime   int64 // Unix seconds; set by utimens, read back by getattr
}

// Inode is the fixed-size, 256-byte on-disk inode record. DirectPtr entries
// are dense: the first layout.NoBlock entry terminates the list (invariant 4).
type Inode struct {
	Ino       uint32
	Valid     bool
	Type      Type
	Size      int64
	Link      uint32
	DirectPtr [layout.DirectPointersPerInode]int32
	VStat     VStat
}

// NumBlocksUsed returns the number of non-sentinel entries in DirectPtr.
// Counts every slot rather than stopping at the first sentinel, so a stray
// gap in an otherwise-dense DirectPtr doesn't undercount vstat.Blocks.
func (ino *Inode) NumBlocksUsed() int {
	n := 0
	for _, p := range ino.DirectPtr {
		if p != layout.NoBlock {
			n++
		}
	}
	return n
}

// Marshal encodes the inode into a layout.InodeRecordSize-byte buffer.
func (ino *Inode) Marshal() []byte {
	buf := make([]byte, layout.InodeRecordSize)
	le := binary.LittleEndian

	le.PutUint32(buf[0:4], ino.Ino)
	if ino.Valid {
		buf[4] = 1
	}
	buf[5] = byte(ino.Type)
	le.PutUint64(buf[8:16], uint64(ino.Size))
	le.PutUint32(buf[16:20], ino.Link)

	off := 24
	for _, p := range ino.DirectPtr {
		le.PutUint32(buf[off:off+4], uint32(p))
		off += 4
	}

	le.PutUint32(buf[off:off+4], ino.VStat.Mode)
	off += 4
	le.PutUint64(buf[off:off+8], uint64(ino.VStat.Size))
	off += 8
	le.PutUint32(buf[off:off+4], uint32(ino.VStat.BlockSize))
	off += 4
	le.PutUint32(buf[off:off+4], uint32(ino.VStat.Blocks))
	off += 4
	le.PutUint32(buf[off:off+4], ino.VStat.Ino)
	off += 4
	le.PutUint64(buf[off:off+8], uint64(ino.VStat.ModTime))

	return buf
}

// Unmarshal decodes an Inode from a layout.InodeRecordSize-byte buffer
// previously produced by Marshal.
func Unmarshal(buf []byte) (Inode, error) {
	if len(buf) != layout.InodeRecordSize {
		return Inode{}, fmt.Errorf("inode record must be %d bytes, got %d", layout.InodeRecordSize, len(buf))
	}
	le := binary.LittleEndian

	var ino Inode
	ino.Ino = le.Uint32(buf[0:4])
	ino.Valid = buf[4] != 0
	ino.Type = Type(buf[5])
	ino.Size = int64(le.Uint64(buf[8:16]))
	ino.Link = le.Uint32(buf[16:20])

	off := 24
	for i := range ino.DirectPtr {
		ino.DirectPtr[i] = int32(le.Uint32(buf[off : off+4]))
		off += 4
	}

	ino.VStat.Mode = le.Uint32(buf[off : off+4])
	off += 4
	ino.VStat.Size = int64(le.Uint64(buf[off : off+8]))
	off += 8
	ino.VStat.BlockSize = int32(le.Uint32(buf[off : off+4]))
	off += 4
	ino.VStat.Blocks = int32(le.Uint32(buf[off : off+4]))
	off += 4
	ino.VStat.Ino = le.Uint32(buf[off : off+4])
	off += 4
	ino.VStat.ModTime = int64(le.Uint64(buf[off : off+8]))

	return ino, nil
}

// NewFreeDirectPtr returns a DirectPtr array with every slot set to the
// "no block allocated" sentinel, per invariant 4.
func NewFreeDirectPtr() [layout.DirectPointersPerInode]int32 {
	var ptrs [layout.DirectPointersPerInode]int32
	for i := range ptrs {
		ptrs[i] = layout.NoBlock
	}
	return ptrs
}
