package inode

import (
	"fmt"

	"github.com/tinytfs/tfs/internal/block"
	"github.com/tinytfs/tfs/internal/layout"
)

// Store reads and writes inodes packed layout.InodesPerBlock to a block,
// per §4.4: block = i_start_blk + ino/16, offset = (ino%16) * sizeof(inode).
type Store struct {
	dev *block.Device
}

// NewStore wraps a block device for inode table access.
func NewStore(dev *block.Device) *Store {
	return &Store{dev: dev}
}

func inodeAddress(ino uint32) (blockNo uint32, offset int) {
	blockNo = layout.InodeTableStartBlock + ino/layout.InodesPerBlock
	offset = int(ino%layout.InodesPerBlock) * layout.InodeRecordSize
	return
}

// Read loads the inode table block containing ino and decodes the record.
func (s *Store) Read(ino uint32) (Inode, error) {
	if ino >= layout.MaxInodeCount {
		return Inode{}, fmt.Errorf("inode number %d out of range [0, %d)", ino, layout.MaxInodeCount)
	}

	blockNo, offset := inodeAddress(ino)
	buf := make([]byte, layout.BlockSize)
	if err := s.dev.ReadBlock(blockNo, buf); err != nil {
		return Inode{}, fmt.Errorf("read_inode %d: %w", ino, err)
	}

	return Unmarshal(buf[offset : offset+layout.InodeRecordSize])
}

// Write performs the mandatory read-modify-write of the inode table block
// containing ino, since layout.InodesPerBlock inodes share that block.
func (s *Store) Write(in *Inode) error {
	if in.Ino >= layout.MaxInodeCount {
		return fmt.Errorf("inode number %d out of range [0, %d)", in.Ino, layout.MaxInodeCount)
	}

	blockNo, offset := inodeAddress(in.Ino)
	buf := make([]byte, layout.BlockSize)
	if err := s.dev.ReadBlock(blockNo, buf); err != nil {
		return fmt.Errorf("write_inode %d: %w", in.Ino, err)
	}

	copy(buf[offset:offset+layout.InodeRecordSize], in.Marshal())

	if err := s.dev.WriteBlock(blockNo, buf); err != nil {
		return fmt.Errorf("write_inode %d: %w", in.Ino, err)
	}
	return nil
}
