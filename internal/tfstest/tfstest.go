// Package tfstest provides fixtures shared by the internal test suites: a
// scratch, freshly formatted in-memory image of whatever size a test needs.
// Grounded on the teacher's testing/images.go, adapted from a generic
// block-cache backing store to a full TFS image.
package tfstest

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/bytesextra"

	"github.com/tinytfs/tfs/internal/block"
	"github.com/tinytfs/tfs/internal/layout"
	"github.com/tinytfs/tfs/internal/superblock"
)

// NewScratchDevice returns a freshly formatted, in-memory TFS image backed
// by a byte slice rather than a file, using the full default data-region
// size from §6.
func NewScratchDevice(t *testing.T) *block.Device {
	t.Helper()
	return NewScratchDeviceSized(t, layout.MaxDataBlockCount)
}

// NewScratchDeviceSized is like NewScratchDevice but formats an image with
// only dataBlocks data blocks, useful for exercising NO_SPACE without
// allocating the full 16384-block region in every test.
func NewScratchDeviceSized(t *testing.T, dataBlocks uint32) *block.Device {
	t.Helper()

	totalBlocks := layout.ImageSizeBlocks(dataBlocks)
	backing := make([]byte, totalBlocks*layout.BlockSize)
	stream := bytesextra.NewReadWriteSeeker(backing)

	dev := block.New(stream, uint32(totalBlocks))
	require.NoError(t, superblock.Format(dev))
	return dev
}
