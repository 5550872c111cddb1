// Package allocator combines the inode and data-block bitmaps into the
// allocation primitives described in §4.3: AllocateInode/FreeInode and
// AllocateDataBlock/FreeDataBlock. Grounded on the teacher's
// drivers/common/blockmanager.go, which wraps a single bitmap.Bitmap with
// domain-specific allocate/free methods; TFS needs two independent
// instances of that pattern, one per region.
package allocator

import (
	"encoding/binary"

	"github.com/tinytfs/tfs/internal/bitmap"
	"github.com/tinytfs/tfs/internal/block"
	"github.com/tinytfs/tfs/internal/layout"
	"github.com/tinytfs/tfs/internal/tfserr"
)

// Allocator owns the inode and data bitmaps for one mounted image.
type Allocator struct {
	inodeBitmap *bitmap.Bitmap
	dataBitmap  *bitmap.Bitmap
}

// capacity reads the MaxInodeCount/MaxDataCount fields straight out of block
// 0, at the same offsets superblock.Superblock.marshal writes them. This
// package can't import superblock to call Read: superblock.Format depends on
// allocator (it places the root directory block through AbsoluteBlock), so
// going the other way would cycle.
func capacity(dev *block.Device) (maxInodes, maxDataBlocks uint32, err error) {
	buf := make([]byte, layout.BlockSize)
	if err := dev.ReadBlock(0, buf); err != nil {
		return 0, 0, err
	}
	le := binary.LittleEndian
	return le.Uint32(buf[4:8]), le.Uint32(buf[8:12]), nil
}

// Load reads the persisted superblock to learn the image's actual
// MaxInodeCount/MaxDataCount, then loads both bitmaps sized to match. A
// profile-sized image (internal/profiles) has a data region smaller than
// layout.MaxDataBlockCount, and scanning past its real capacity would hand
// out block numbers block.Device rejects as out of range instead of the
// clean tfserr.ErrNoSpace callers expect.
func Load(dev *block.Device) (*Allocator, error) {
	maxInodes, maxDataBlocks, err := capacity(dev)
	if err != nil {
		return nil, err
	}

	inodeBmp, err := bitmap.Load(dev, layout.InodeBitmapBlock, uint(maxInodes))
	if err != nil {
		return nil, err
	}

	dataBmp, err := bitmap.Load(dev, layout.DataBitmapBlock, uint(maxDataBlocks))
	if err != nil {
		return nil, err
	}

	return &Allocator{inodeBitmap: inodeBmp, dataBitmap: dataBmp}, nil
}

// AllocateInode finds and marks the first free inode number, returning
// tfserr.ErrNoSpace if the table is full. The bitmap bit is persisted before
// this returns.
func (a *Allocator) AllocateInode() (uint32, error) {
	slot, ok := a.inodeBitmap.FirstClear()
	if !ok {
		return 0, tfserr.ErrNoSpace
	}

	a.inodeBitmap.Set(slot)
	if err := a.inodeBitmap.Flush(); err != nil {
		a.inodeBitmap.Unset(slot)
		return 0, err
	}
	return uint32(slot), nil
}

// FreeInode clears the bit for ino and persists the bitmap.
func (a *Allocator) FreeInode(ino uint32) error {
	a.inodeBitmap.Unset(uint(ino))
	return a.inodeBitmap.Flush()
}

// AllocateDataBlock finds and marks the first free data-region slot,
// returning its relative index (add layout.DataStartBlock for the absolute
// block number). Returns tfserr.ErrNoSpace if the data region is full.
func (a *Allocator) AllocateDataBlock() (uint32, error) {
	slot, ok := a.dataBitmap.FirstClear()
	if !ok {
		return 0, tfserr.ErrNoSpace
	}

	a.dataBitmap.Set(slot)
	if err := a.dataBitmap.Flush(); err != nil {
		a.dataBitmap.Unset(slot)
		return 0, err
	}
	return uint32(slot), nil
}

// FreeDataBlock clears the bit for relative data-block index idx and
// persists the bitmap.
func (a *Allocator) FreeDataBlock(idx uint32) error {
	a.dataBitmap.Unset(uint(idx))
	return a.dataBitmap.Flush()
}

// AbsoluteBlock converts a relative data-region index into an absolute block
// number suitable for block.Device.
func AbsoluteBlock(relativeIdx uint32) uint32 {
	return layout.DataStartBlock + relativeIdx
}

// RelativeBlock is the inverse of AbsoluteBlock.
func RelativeBlock(absoluteBlockNo uint32) uint32 {
	return absoluteBlockNo - layout.DataStartBlock
}

// InodeBitmap exposes the raw inode bitmap, so callers can inspect which
// inodes are allocated.
func (a *Allocator) InodeBitmap() *bitmap.Bitmap { return a.inodeBitmap }

// DataBitmap exposes the raw data bitmap, so callers can inspect which data
// blocks are allocated.
func (a *Allocator) DataBitmap() *bitmap.Bitmap { return a.dataBitmap }
