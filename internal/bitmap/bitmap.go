// Package bitmap implements the persisted allocation bitmaps used for both
// the inode table and the data region (§4.2), backed by
// github.com/boljen/go-bitmap the same way the teacher's
// drivers/common/allocatormap.go and blockmanager.go use it, but simplified
// down to TFS's single-block-per-bitmap design.
package bitmap

import (
	"fmt"

	bmp "github.com/boljen/go-bitmap"

	"github.com/tinytfs/tfs/internal/block"
	"github.com/tinytfs/tfs/internal/layout"
)

// Bitmap is a single block's worth of allocation bits, loaded from and
// flushed back to a fixed block on a Device.
type Bitmap struct {
	bits     bmp.Bitmap
	dev      *block.Device
	blockNo  uint32
	numSlots uint
}

// Load reads the bitmap block at blockNo from dev and returns a Bitmap
// covering [0, numSlots).
func Load(dev *block.Device, blockNo uint32, numSlots uint) (*Bitmap, error) {
	buf := make([]byte, layout.BlockSize)
	if err := dev.ReadBlock(blockNo, buf); err != nil {
		return nil, fmt.Errorf("loading bitmap block %d: %w", blockNo, err)
	}

	return &Bitmap{
		bits:     bmp.Bitmap(buf),
		dev:      dev,
		blockNo:  blockNo,
		numSlots: numSlots,
	}, nil
}

// NewEmpty creates an all-clear Bitmap of numSlots bits, without reading the
// backing block. Used by format, which writes the zeroed bitmap itself.
func NewEmpty(dev *block.Device, blockNo uint32, numSlots uint) *Bitmap {
	return &Bitmap{
		bits:     bmp.New(layout.BlockSize * 8),
		dev:      dev,
		blockNo:  blockNo,
		numSlots: numSlots,
	}
}

// Get reports whether slot i is allocated.
func (b *Bitmap) Get(i uint) bool {
	return b.bits.Get(int(i))
}

// Set marks slot i as allocated.
func (b *Bitmap) Set(i uint) {
	b.bits.Set(int(i), true)
}

// Unset marks slot i as free.
func (b *Bitmap) Unset(i uint) {
	b.bits.Set(int(i), false)
}

// FirstClear performs a linear scan for the first unallocated slot in
// [0, numSlots). It does not mark the slot allocated; call Set separately
// (the allocator does this and flushes once).
func (b *Bitmap) FirstClear() (uint, bool) {
	for i := uint(0); i < b.numSlots; i++ {
		if !b.bits.Get(int(i)) {
			return i, true
		}
	}
	return 0, false
}

// Flush persists the whole bitmap block back to disk.
func (b *Bitmap) Flush() error {
	return b.dev.WriteBlock(b.blockNo, []byte(b.bits))
}
