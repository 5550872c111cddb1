package compression_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	c "github.com/tinytfs/tfs/internal/compression"
)

func TestCompressDecompressImage_RoundTrip(t *testing.T) {
	original := make([]byte, 64*1024)
	for i := 4096; i < 4200; i++ {
		original[i] = byte(i)
	}

	var compressed bytes.Buffer
	n, err := c.CompressImage(bytes.NewReader(original), &compressed)
	require.NoError(t, err)
	require.Equal(t, int64(compressed.Len()), n)
	require.Less(t, compressed.Len(), len(original))

	got, err := c.DecompressImageToBytes(&compressed)
	require.NoError(t, err)
	require.Equal(t, original, got)
}
