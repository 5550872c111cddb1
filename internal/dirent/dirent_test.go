package dirent_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/bytesextra"

	"github.com/tinytfs/tfs/internal/allocator"
	"github.com/tinytfs/tfs/internal/block"
	"github.com/tinytfs/tfs/internal/dirent"
	"github.com/tinytfs/tfs/internal/inode"
	"github.com/tinytfs/tfs/internal/layout"
	"github.com/tinytfs/tfs/internal/superblock"
	"github.com/tinytfs/tfs/internal/tfserr"
)

// newTestFixture builds a tiny formatted image (small data region, enough
// for directory-growth tests) with a single empty directory inode whose
// first block is already allocated.
func newTestFixture(t *testing.T) (*block.Device, *allocator.Allocator, *inode.Store, *inode.Inode) {
	t.Helper()

	dataBlocks := uint32(64)
	totalBlocks := layout.ImageSizeBlocks(dataBlocks)
	backing := make([]byte, totalBlocks*layout.BlockSize)
	dev := block.New(bytesextra.NewReadWriteSeeker(backing), uint32(totalBlocks))
	require.NoError(t, superblock.Format(dev))

	alloc, err := allocator.Load(dev)
	require.NoError(t, err)

	store := inode.NewStore(dev)

	relBlock, err := alloc.AllocateDataBlock()
	require.NoError(t, err)
	blockNo := allocator.AbsoluteBlock(relBlock)
	require.NoError(t, dev.WriteBlock(blockNo, make([]byte, layout.BlockSize)))

	dirIno, err := alloc.AllocateInode()
	require.NoError(t, err)

	direct := inode.NewFreeDirectPtr()
	direct[0] = int32(blockNo)
	dirInode := inode.Inode{
		Ino: dirIno, Valid: true, Type: inode.TypeDir,
		Size: layout.BlockSize, Link: 2, DirectPtr: direct,
		VStat: inode.VStat{Mode: 0o040755, Size: layout.BlockSize, BlockSize: layout.BlockSize, Blocks: 1, Ino: dirIno},
	}
	require.NoError(t, store.Write(&dirInode))

	return dev, alloc, store, &dirInode
}

func TestAdd_Lookup_RoundTrip(t *testing.T) {
	dev, alloc, store, dirInode := newTestFixture(t)

	require.NoError(t, dirent.Add(dev, alloc, store, dirInode, 42, "hello.txt"))

	got, err := dirent.Lookup(dev, dirInode, "hello.txt")
	require.NoError(t, err)
	require.Equal(t, uint32(42), got.Ino)
	require.True(t, got.Valid)
}

func TestAdd_DuplicateName(t *testing.T) {
	dev, alloc, store, dirInode := newTestFixture(t)

	require.NoError(t, dirent.Add(dev, alloc, store, dirInode, 1, "a"))
	err := dirent.Add(dev, alloc, store, dirInode, 2, "a")
	require.ErrorIs(t, err, tfserr.ErrDuplicateEntry)
}

func TestLookup_NotFound(t *testing.T) {
	dev, _, _, dirInode := newTestFixture(t)
	_, err := dirent.Lookup(dev, dirInode, "missing")
	require.ErrorIs(t, err, tfserr.ErrNotFound)
}

func TestRemove_TombstoneIsSkippableNotTerminating(t *testing.T) {
	dev, alloc, store, dirInode := newTestFixture(t)

	require.NoError(t, dirent.Add(dev, alloc, store, dirInode, 1, "first"))
	require.NoError(t, dirent.Add(dev, alloc, store, dirInode, 2, "second"))

	require.NoError(t, dirent.Remove(dev, dirInode, "first"))

	// "first" is now a tombstone, not an unset slot, so lookup must still
	// find "second" past it.
	got, err := dirent.Lookup(dev, dirInode, "second")
	require.NoError(t, err)
	require.Equal(t, uint32(2), got.Ino)

	_, err = dirent.Lookup(dev, dirInode, "first")
	require.ErrorIs(t, err, tfserr.ErrNotFound)
}

func TestAdd_ReusesTombstoneSlot(t *testing.T) {
	dev, alloc, store, dirInode := newTestFixture(t)

	require.NoError(t, dirent.Add(dev, alloc, store, dirInode, 1, "a"))
	require.NoError(t, dirent.Remove(dev, dirInode, "a"))
	require.NoError(t, dirent.Add(dev, alloc, store, dirInode, 2, "b"))

	got, err := dirent.Lookup(dev, dirInode, "b")
	require.NoError(t, err)
	require.Equal(t, uint32(2), got.Ino)
}

func TestAdd_GrowsDirectoryWhenBlockFull(t *testing.T) {
	dev, alloc, store, dirInode := newTestFixture(t)

	for i := 0; i < layout.DirentsPerBlock; i++ {
		require.NoError(t, dirent.Add(dev, alloc, store, dirInode, uint32(i+1), string(rune('a'+i))))
	}

	firstBlock := dirInode.DirectPtr[0]
	require.NoError(t, dirent.Add(dev, alloc, store, dirInode, 99, "overflow"))
	require.Equal(t, firstBlock, dirInode.DirectPtr[0])
	require.NotEqual(t, layout.NoBlock, dirInode.DirectPtr[1])
	require.NotEqual(t, firstBlock, dirInode.DirectPtr[1])

	got, err := dirent.Lookup(dev, dirInode, "overflow")
	require.NoError(t, err)
	require.Equal(t, uint32(99), got.Ino)
}

func TestIsEmpty(t *testing.T) {
	dev, alloc, store, dirInode := newTestFixture(t)

	empty, err := dirent.IsEmpty(dev, dirInode)
	require.NoError(t, err)
	require.True(t, empty)

	require.NoError(t, dirent.Add(dev, alloc, store, dirInode, 1, "child"))
	empty, err = dirent.IsEmpty(dev, dirInode)
	require.NoError(t, err)
	require.False(t, empty)
}
