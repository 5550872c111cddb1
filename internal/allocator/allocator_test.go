package allocator_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/bytesextra"

	"github.com/tinytfs/tfs/internal/allocator"
	"github.com/tinytfs/tfs/internal/block"
	"github.com/tinytfs/tfs/internal/layout"
	"github.com/tinytfs/tfs/internal/superblock"
	"github.com/tinytfs/tfs/internal/tfserr"
)

func newLoadedAllocator(t *testing.T) *allocator.Allocator {
	t.Helper()
	dataBlocks := uint32(64)
	totalBlocks := layout.ImageSizeBlocks(dataBlocks)
	backing := make([]byte, totalBlocks*layout.BlockSize)
	dev := block.New(bytesextra.NewReadWriteSeeker(backing), uint32(totalBlocks))
	require.NoError(t, superblock.Format(dev))

	alloc, err := allocator.Load(dev)
	require.NoError(t, err)
	return alloc
}

func TestAllocateInode_SkipsRoot(t *testing.T) {
	alloc := newLoadedAllocator(t)
	ino, err := alloc.AllocateInode()
	require.NoError(t, err)
	require.Equal(t, uint32(1), ino)
}

func TestFreeInode_AllowsReuse(t *testing.T) {
	alloc := newLoadedAllocator(t)
	ino, err := alloc.AllocateInode()
	require.NoError(t, err)

	require.NoError(t, alloc.FreeInode(ino))

	again, err := alloc.AllocateInode()
	require.NoError(t, err)
	require.Equal(t, ino, again)
}

func TestAllocateDataBlock_SkipsRootDirectoryBlock(t *testing.T) {
	alloc := newLoadedAllocator(t)
	rel, err := alloc.AllocateDataBlock()
	require.NoError(t, err)
	require.Equal(t, uint32(1), rel)
}

func TestAbsoluteRelativeBlock_AreInverses(t *testing.T) {
	abs := allocator.AbsoluteBlock(42)
	require.Equal(t, uint32(42), allocator.RelativeBlock(abs))
}

func TestAllocateInode_NoSpaceWhenExhausted(t *testing.T) {
	alloc := newLoadedAllocator(t)
	for i := 0; i < layout.MaxInodeCount-1; i++ {
		_, err := alloc.AllocateInode()
		require.NoError(t, err)
	}

	_, err := alloc.AllocateInode()
	require.ErrorIs(t, err, tfserr.ErrNoSpace)
}
