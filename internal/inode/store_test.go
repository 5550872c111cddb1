package inode_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/bytesextra"

	"github.com/tinytfs/tfs/internal/block"
	"github.com/tinytfs/tfs/internal/inode"
	"github.com/tinytfs/tfs/internal/layout"
)

func newScratchDevice(t *testing.T) *block.Device {
	t.Helper()
	totalBlocks := uint32(layout.InodeTableStartBlock + 4)
	backing := make([]byte, int64(totalBlocks)*layout.BlockSize)
	return block.New(bytesextra.NewReadWriteSeeker(backing), totalBlocks)
}

func TestStore_WriteThenRead_RoundTrip(t *testing.T) {
	dev := newScratchDevice(t)
	store := inode.NewStore(dev)

	in := inode.Inode{
		Ino:       3,
		Valid:     true,
		Type:      inode.TypeFile,
		Size:      4096,
		Link:      1,
		DirectPtr: inode.NewFreeDirectPtr(),
		VStat:     inode.VStat{Mode: 0o100644, Ino: 3, BlockSize: layout.BlockSize},
	}
	require.NoError(t, store.Write(&in))

	got, err := store.Read(3)
	require.NoError(t, err)
	require.Equal(t, in, got)
}

func TestStore_SharedBlockPreservesSiblings(t *testing.T) {
	dev := newScratchDevice(t)
	store := inode.NewStore(dev)

	first := inode.Inode{Ino: 0, Valid: true, Type: inode.TypeDir, DirectPtr: inode.NewFreeDirectPtr()}
	second := inode.Inode{Ino: 1, Valid: true, Type: inode.TypeFile, DirectPtr: inode.NewFreeDirectPtr()}

	require.NoError(t, store.Write(&first))
	require.NoError(t, store.Write(&second))

	gotFirst, err := store.Read(0)
	require.NoError(t, err)
	require.Equal(t, first, gotFirst)

	gotSecond, err := store.Read(1)
	require.NoError(t, err)
	require.Equal(t, second, gotSecond)
}

func TestStore_Read_OutOfRange(t *testing.T) {
	dev := newScratchDevice(t)
	store := inode.NewStore(dev)
	_, err := store.Read(layout.MaxInodeCount)
	require.Error(t, err)
}
