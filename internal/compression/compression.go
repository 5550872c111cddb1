package compression

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
)

// CompressImage compresses a disk image using RLE8 followed by gzip. The
// returned int64 is the number of bytes written, valid only if err is nil.
func CompressImage(input io.Reader, output io.Writer) (int64, error) {
	writer := countingWriter{Writer: output}

	gzWriter, err := gzip.NewWriterLevel(&writer, gzip.BestCompression)
	if err != nil {
		return 0, fmt.Errorf("creating gzip writer: %w", err)
	}

	_, err = CompressRLE8(input, gzWriter)
	closeErr := gzWriter.Close()
	if err != nil {
		err = fmt.Errorf("RLE8 compression: %w", err)
	} else if closeErr != nil {
		err = fmt.Errorf("gzip compression: %w", closeErr)
	}
	return writer.BytesWritten, err
}

// DecompressImage reverses CompressImage.
func DecompressImage(input io.Reader, output io.Writer) (int64, error) {
	gzReader, err := gzip.NewReader(input)
	if err != nil {
		return 0, fmt.Errorf("creating gzip reader: %w", err)
	}
	defer gzReader.Close()
	return DecompressRLE8(gzReader, output)
}

// DecompressImageToBytes decompresses a gzipped, RLE8-encoded image fixture
// into a fresh byte slice.
func DecompressImageToBytes(input io.Reader) ([]byte, error) {
	var buffer bytes.Buffer
	writer := bufio.NewWriter(&buffer)
	if _, err := DecompressImage(input, writer); err != nil {
		return nil, err
	}
	writer.Flush()

	out := make([]byte, buffer.Len())
	copy(out, buffer.Bytes())
	return out, nil
}

type countingWriter struct {
	Writer       io.Writer
	BytesWritten int64
}

func (w *countingWriter) Write(b []byte) (int, error) {
	n, err := w.Writer.Write(b)
	if err == nil {
		w.BytesWritten += int64(n)
	}
	return n, err
}
