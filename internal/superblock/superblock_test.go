package superblock_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/bytesextra"

	"github.com/tinytfs/tfs/internal/allocator"
	"github.com/tinytfs/tfs/internal/block"
	"github.com/tinytfs/tfs/internal/inode"
	"github.com/tinytfs/tfs/internal/layout"
	"github.com/tinytfs/tfs/internal/superblock"
)

func newRawDevice(t *testing.T, dataBlocks uint32) *block.Device {
	t.Helper()
	totalBlocks := layout.ImageSizeBlocks(dataBlocks)
	backing := make([]byte, totalBlocks*layout.BlockSize)
	return block.New(bytesextra.NewReadWriteSeeker(backing), uint32(totalBlocks))
}

func TestFormat_WritesValidSuperblock(t *testing.T) {
	dev := newRawDevice(t, 64)
	require.NoError(t, superblock.Format(dev))

	sb, err := superblock.Read(dev)
	require.NoError(t, err)
	require.True(t, sb.Valid())

	want := superblock.Default()
	want.MaxDataCount = 64 // the image's actual data region size, not layout.MaxDataBlockCount
	require.Equal(t, want, sb)
}

func TestFormat_SeedsRootDirectory(t *testing.T) {
	dev := newRawDevice(t, 64)
	require.NoError(t, superblock.Format(dev))

	store := inode.NewStore(dev)
	root, err := store.Read(layout.RootInode)
	require.NoError(t, err)

	require.True(t, root.Valid)
	require.Equal(t, inode.TypeDir, root.Type)
	require.Equal(t, uint32(2), root.Link)
	require.NotEqual(t, layout.NoBlock, root.DirectPtr[0])
	require.Equal(t, layout.NoBlock, root.DirectPtr[1])
}

func TestFormat_SeedsAllocationBitmaps(t *testing.T) {
	dev := newRawDevice(t, 64)
	require.NoError(t, superblock.Format(dev))

	alloc, err := allocator.Load(dev)
	require.NoError(t, err)
	require.True(t, alloc.InodeBitmap().Get(uint(layout.RootInode)))
	require.True(t, alloc.DataBitmap().Get(0))
	require.False(t, alloc.DataBitmap().Get(1))
}

func TestValid_RejectsZeroedBlock(t *testing.T) {
	dev := newRawDevice(t, 64)
	sb, err := superblock.Read(dev)
	require.NoError(t, err)
	require.False(t, sb.Valid())
}

func TestEnsureMounted_FormatsOnFirstUse(t *testing.T) {
	path := t.TempDir() + "/fresh.tfs"

	dev, err := superblock.EnsureMounted(path)
	require.NoError(t, err)
	defer dev.Close()

	sb, err := superblock.Read(dev)
	require.NoError(t, err)
	require.True(t, sb.Valid())
}

func TestEnsureMounted_IsIdempotent(t *testing.T) {
	path := t.TempDir() + "/reopen.tfs"

	dev1, err := superblock.EnsureMounted(path)
	require.NoError(t, err)

	store := inode.NewStore(dev1)
	root, err := store.Read(layout.RootInode)
	require.NoError(t, err)
	require.NoError(t, dev1.Close())

	dev2, err := superblock.EnsureMounted(path)
	require.NoError(t, err)
	defer dev2.Close()

	sb, err := superblock.Read(dev2)
	require.NoError(t, err)
	require.True(t, sb.Valid())

	store2 := inode.NewStore(dev2)
	reopened, err := store2.Read(layout.RootInode)
	require.NoError(t, err)
	require.Equal(t, root, reopened)
}
