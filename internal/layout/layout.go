// Package layout defines the fixed, on-disk geometry of a TFS image: block
// size, region boundaries, and the per-block record counts that every other
// package computes addresses from.
package layout

// MagicNumber identifies a block 0 as belonging to a valid TFS image.
const MagicNumber uint32 = 0x5346_5401 // "SFT\x01" read big-endian; stored little-endian, block 0 starts 0x01 'T' 'F' 'S'

// BlockSize is the fixed size of a single block, in bytes. All persistent
// structures are block-aligned.
const BlockSize = 4096

// MaxInodeCount is the maximum number of inodes the inode table can hold.
const MaxInodeCount = 1024

// MaxDataBlockCount is the maximum number of blocks in the data region.
const MaxDataBlockCount = 16384

// InodeBitmapBlock is the absolute block index of the inode allocation bitmap.
const InodeBitmapBlock = 1

// DataBitmapBlock is the absolute block index of the data-block allocation bitmap.
const DataBitmapBlock = 2

// InodeTableStartBlock is the absolute block index where the inode table begins.
const InodeTableStartBlock = 3

// InodeRecordSize is the on-disk size of one inode record, in bytes.
// BlockSize must be an exact multiple of this so that InodesPerBlock inodes
// pack into a block with no slack.
const InodeRecordSize = 256

// InodesPerBlock is the number of inode records packed into a single block.
const InodesPerBlock = BlockSize / InodeRecordSize

// inodeTableBlocks is the number of blocks occupied by the inode table.
const inodeTableBlocks = MaxInodeCount / InodesPerBlock

// DataStartBlock is the absolute block index where the data region begins,
// immediately after the inode table.
const DataStartBlock = InodeTableStartBlock + inodeTableBlocks

// DirentRecordSize is the on-disk size of one directory entry record, in bytes.
const DirentRecordSize = 256

// DirentsPerBlock is the number of directory entries packed into one block.
const DirentsPerBlock = BlockSize / DirentRecordSize

// DirectPointersPerInode is the number of direct block pointers stored in
// each inode. There are no indirect blocks, so this also bounds the maximum
// number of blocks (and therefore bytes) a single file or directory can hold.
const DirectPointersPerInode = 16

// MaxFileSize is the largest byte offset + size a write() may target.
const MaxFileSize = DirectPointersPerInode * BlockSize

// MaxNameLength is the longest a single path component may be, in bytes.
// Bounded by the dirent record layout: a 2-byte inode number (§3's dirents
// need only address MaxInodeCount-1, which fits in a uint16) plus a 1-byte
// valid flag and 1 byte of padding leaves DirentRecordSize-4 bytes for the
// name.
const MaxNameLength = DirentRecordSize - 4

// MaxPathLength is the longest an absolute path may be, in bytes.
const MaxPathLength = 252

// NoBlock is the sentinel value stored in an inode's DirectPtr slots to mean
// "no block allocated here". All live entries in DirectPtr precede the first
// NoBlock entry.
const NoBlock int32 = -1

// RootInode is the inode number of the filesystem root. It is allocated at
// format time and is always a directory.
const RootInode uint32 = 0

// ImageSizeBlocks returns the total number of blocks a TFS image occupies
// given the data region holds dataBlocks blocks.
func ImageSizeBlocks(dataBlocks uint32) uint64 {
	return uint64(DataStartBlock) + uint64(dataBlocks)
}

// ImageSizeBytes returns the total byte length of a TFS image with the given
// number of data blocks, per §6: d_start_blk * B + MAX_DNUM * B.
func ImageSizeBytes(dataBlocks uint32) int64 {
	return int64(ImageSizeBlocks(dataBlocks)) * BlockSize
}
