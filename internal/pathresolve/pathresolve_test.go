package pathresolve_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/bytesextra"

	"github.com/tinytfs/tfs/internal/allocator"
	"github.com/tinytfs/tfs/internal/block"
	"github.com/tinytfs/tfs/internal/dirent"
	"github.com/tinytfs/tfs/internal/inode"
	"github.com/tinytfs/tfs/internal/layout"
	"github.com/tinytfs/tfs/internal/pathresolve"
	"github.com/tinytfs/tfs/internal/superblock"
	"github.com/tinytfs/tfs/internal/tfserr"
)

func newFormattedDevice(t *testing.T) (*block.Device, *allocator.Allocator, *inode.Store) {
	t.Helper()
	dataBlocks := uint32(64)
	totalBlocks := layout.ImageSizeBlocks(dataBlocks)
	backing := make([]byte, totalBlocks*layout.BlockSize)
	dev := block.New(bytesextra.NewReadWriteSeeker(backing), uint32(totalBlocks))
	require.NoError(t, superblock.Format(dev))

	alloc, err := allocator.Load(dev)
	require.NoError(t, err)
	return dev, alloc, inode.NewStore(dev)
}

// mkdirAt creates a bare directory inode as a child of parentIno named name,
// returning its inode number, bypassing fsops so pathresolve can be tested
// in isolation.
func mkdirAt(t *testing.T, dev *block.Device, alloc *allocator.Allocator, store *inode.Store, parentIno uint32, name string) uint32 {
	t.Helper()

	parent, err := store.Read(parentIno)
	require.NoError(t, err)

	childIno, err := alloc.AllocateInode()
	require.NoError(t, err)
	relBlock, err := alloc.AllocateDataBlock()
	require.NoError(t, err)
	blockNo := allocator.AbsoluteBlock(relBlock)
	require.NoError(t, dev.WriteBlock(blockNo, make([]byte, layout.BlockSize)))

	direct := inode.NewFreeDirectPtr()
	direct[0] = int32(blockNo)
	child := inode.Inode{
		Ino: childIno, Valid: true, Type: inode.TypeDir,
		Size: layout.BlockSize, Link: 2, DirectPtr: direct,
		VStat: inode.VStat{Mode: 0o040755, BlockSize: layout.BlockSize, Blocks: 1, Ino: childIno},
	}
	require.NoError(t, store.Write(&child))
	require.NoError(t, dirent.Add(dev, alloc, store, &parent, childIno, name))
	return childIno
}

func TestResolve_RootPath(t *testing.T) {
	dev, _, store := newFormattedDevice(t)
	ino, err := pathresolve.Resolve(dev, store, "/", layout.RootInode)
	require.NoError(t, err)
	require.Equal(t, layout.RootInode, ino)
}

func TestResolve_NestedPath(t *testing.T) {
	dev, alloc, store := newFormattedDevice(t)
	aIno := mkdirAt(t, dev, alloc, store, layout.RootInode, "a")
	bIno := mkdirAt(t, dev, alloc, store, aIno, "b")

	ino, err := pathresolve.Resolve(dev, store, "/a/b", layout.RootInode)
	require.NoError(t, err)
	require.Equal(t, bIno, ino)
}

func TestResolve_MissingComponent(t *testing.T) {
	dev, _, store := newFormattedDevice(t)
	_, err := pathresolve.Resolve(dev, store, "/nope", layout.RootInode)
	require.ErrorIs(t, err, tfserr.ErrNotFound)
}

func TestResolve_ThroughAFileIsNotADirectory(t *testing.T) {
	dev, alloc, store := newFormattedDevice(t)

	root, err := store.Read(layout.RootInode)
	require.NoError(t, err)

	fileIno, err := alloc.AllocateInode()
	require.NoError(t, err)
	fileInode := inode.Inode{Ino: fileIno, Valid: true, Type: inode.TypeFile, DirectPtr: inode.NewFreeDirectPtr()}
	require.NoError(t, store.Write(&fileInode))
	require.NoError(t, dirent.Add(dev, alloc, store, &root, fileIno, "afile"))

	_, err = pathresolve.Resolve(dev, store, "/afile/child", layout.RootInode)
	require.ErrorIs(t, err, tfserr.ErrNotADirectory)
}

func TestResolve_PathTooLong(t *testing.T) {
	dev, _, store := newFormattedDevice(t)
	longPath := "/" + strings.Repeat("a", layout.MaxPathLength+1)
	_, err := pathresolve.Resolve(dev, store, longPath, layout.RootInode)
	require.ErrorIs(t, err, tfserr.ErrNameTooLong)
}

func TestSplit_RootLevelChild(t *testing.T) {
	parent, name, err := pathresolve.Split("/foo")
	require.NoError(t, err)
	require.Equal(t, "/", parent)
	require.Equal(t, "foo", name)
}

func TestSplit_NestedChild(t *testing.T) {
	parent, name, err := pathresolve.Split("/a/b/c")
	require.NoError(t, err)
	require.Equal(t, "/a/b", parent)
	require.Equal(t, "c", name)
}

func TestSplit_RejectsRelativePath(t *testing.T) {
	_, _, err := pathresolve.Split("relative/path")
	require.Error(t, err)
}

func TestSplit_NameTooLong(t *testing.T) {
	_, _, err := pathresolve.Split("/" + strings.Repeat("x", layout.MaxNameLength+1))
	require.ErrorIs(t, err, tfserr.ErrNameTooLong)
}
