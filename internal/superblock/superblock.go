// Package superblock implements the TFS superblock (block 0, §3) and the
// format operation that lays out a fresh image: superblock, zeroed
// bitmaps, root inode, and root directory block (§4.9 mkfs). Grounded on
// original_source/tfs.c's tfs_mkfs and the teacher's per-filesystem
// Format methods (file_systems/unixv1/format.go).
package superblock

import (
	"encoding/binary"
	"fmt"

	"github.com/tinytfs/tfs/internal/allocator"
	"github.com/tinytfs/tfs/internal/bitmap"
	"github.com/tinytfs/tfs/internal/block"
	"github.com/tinytfs/tfs/internal/inode"
	"github.com/tinytfs/tfs/internal/layout"
	"github.com/tinytfs/tfs/internal/tfserr"
)

// Superblock is the fixed layout record persisted at block 0 (§3).
type Superblock struct {
	Magic          uint32
	MaxInodeCount  uint32
	MaxDataCount   uint32
	InodeBitmapBlk uint32
	DataBitmapBlk  uint32
	InodeStartBlk  uint32
	DataStartBlk   uint32
}

// Default returns the superblock for a freshly formatted image, using the
// bit-exact constants from §6.
func Default() Superblock {
	return Superblock{
		Magic:          layout.MagicNumber,
		MaxInodeCount:  layout.MaxInodeCount,
		MaxDataCount:   layout.MaxDataBlockCount,
		InodeBitmapBlk: layout.InodeBitmapBlock,
		DataBitmapBlk:  layout.DataBitmapBlock,
		InodeStartBlk:  layout.InodeTableStartBlock,
		DataStartBlk:   layout.DataStartBlock,
	}
}

func (sb Superblock) marshal() []byte {
	buf := make([]byte, layout.BlockSize)
	le := binary.LittleEndian
	le.PutUint32(buf[0:4], sb.Magic)
	le.PutUint32(buf[4:8], sb.MaxInodeCount)
	le.PutUint32(buf[8:12], sb.MaxDataCount)
	le.PutUint32(buf[12:16], sb.InodeBitmapBlk)
	le.PutUint32(buf[16:20], sb.DataBitmapBlk)
	le.PutUint32(buf[20:24], sb.InodeStartBlk)
	le.PutUint32(buf[24:28], sb.DataStartBlk)
	return buf
}

func unmarshal(buf []byte) Superblock {
	le := binary.LittleEndian
	return Superblock{
		Magic:          le.Uint32(buf[0:4]),
		MaxInodeCount:  le.Uint32(buf[4:8]),
		MaxDataCount:   le.Uint32(buf[8:12]),
		InodeBitmapBlk: le.Uint32(buf[12:16]),
		DataBitmapBlk:  le.Uint32(buf[16:20]),
		InodeStartBlk:  le.Uint32(buf[20:24]),
		DataStartBlk:   le.Uint32(buf[24:28]),
	}
}

// Read loads the superblock from block 0 of dev.
func Read(dev *block.Device) (Superblock, error) {
	buf := make([]byte, layout.BlockSize)
	if err := dev.ReadBlock(0, buf); err != nil {
		return Superblock{}, err
	}
	return unmarshal(buf), nil
}

// Write persists sb to block 0 of dev.
func Write(dev *block.Device, sb Superblock) error {
	return dev.WriteBlock(0, sb.marshal())
}

// Valid reports whether sb's magic number identifies a TFS image
// (invariant 1).
func (sb Superblock) Valid() bool {
	return sb.Magic == layout.MagicNumber
}

// Format lays out a brand-new image on dev: writes the superblock, zeroes
// both bitmaps, allocates inode 0 and data block 0, and initializes the
// root inode and its (empty) directory block, per §4.9 and invariant 5.
//
// MaxDataCount is taken from dev's actual size, not layout.MaxDataBlockCount:
// internal/profiles lets format create smaller images (e.g. the "tiny"
// preset's 256 data blocks), and the persisted superblock must describe the
// real capacity so allocator.Load sizes its bitmap to match rather than
// scanning past the end of the physical file.
func Format(dev *block.Device) error {
	dataBlocks := dev.TotalBlocks() - layout.DataStartBlock

	sb := Default()
	sb.MaxDataCount = dataBlocks
	if err := Write(dev, sb); err != nil {
		return fmt.Errorf("formatting superblock: %w", err)
	}

	inodeBmp := bitmap.NewEmpty(dev, layout.InodeBitmapBlock, layout.MaxInodeCount)
	dataBmp := bitmap.NewEmpty(dev, layout.DataBitmapBlock, uint(dataBlocks))

	inodeBmp.Set(layout.RootInode)
	if err := inodeBmp.Flush(); err != nil {
		return fmt.Errorf("formatting inode bitmap: %w", err)
	}

	dataBmp.Set(0)
	if err := dataBmp.Flush(); err != nil {
		return fmt.Errorf("formatting data bitmap: %w", err)
	}

	rootDirBlockNo := allocator.AbsoluteBlock(0)
	emptyBlock := make([]byte, layout.BlockSize)
	if err := dev.WriteBlock(rootDirBlockNo, emptyBlock); err != nil {
		return fmt.Errorf("formatting root directory block: %w", err)
	}

	direct := inode.NewFreeDirectPtr()
	direct[0] = int32(rootDirBlockNo)

	root := inode.Inode{
		Ino:       layout.RootInode,
		Valid:     true,
		Type:      inode.TypeDir,
		Size:      layout.BlockSize,
		Link:      2,
		DirectPtr: direct,
		VStat: inode.VStat{
			Mode:      uint32(0o040755), // S_IFDIR | 0755
			Size:      layout.BlockSize,
			BlockSize: layout.BlockSize,
			Blocks:    1,
			Ino:       layout.RootInode,
		},
	}

	store := inode.NewStore(dev)
	if err := store.Write(&root); err != nil {
		return fmt.Errorf("formatting root inode: %w", err)
	}

	return nil
}

// EnsureMounted opens path, formatting it if it doesn't exist or its magic
// doesn't match, per §4.9 mount init / §7 CORRUPT_IMAGE recovery.
func EnsureMounted(path string) (*block.Device, error) {
	dev, err := block.Open(path)
	if err != nil {
		dev, err = block.Init(path, uint32(layout.ImageSizeBlocks(layout.MaxDataBlockCount)))
		if err != nil {
			return nil, err
		}
		if err := Format(dev); err != nil {
			dev.Close()
			return nil, err
		}
		return dev, nil
	}

	sb, err := Read(dev)
	if err != nil {
		dev.Close()
		return nil, err
	}

	if !sb.Valid() {
		if err := Format(dev); err != nil {
			dev.Close()
			return nil, err
		}
	}

	return dev, nil
}

// ErrCorrupt re-exports tfserr.ErrCorruptImage. Neither Read nor
// EnsureMounted returns it: Read leaves the magic check to Valid, and
// EnsureMounted reformats on a mismatch.
var ErrCorrupt = tfserr.ErrCorruptImage
