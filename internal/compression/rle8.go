package compression

import (
	"bufio"
	"errors"
	"fmt"
	"io"
)

// CompressRLE8 reads bytes from input and writes RLE8-compressed data to
// output until input is exhausted. The returned int64 is the number of bytes
// written, valid only if err is nil.
func CompressRLE8(input io.Reader, output io.Writer) (int64, error) {
	grouper := NewRLEGrouper(input)

	var totalWritten int64
	for {
		run, runErr := grouper.GetNextRun()
		if runErr != nil && !errors.Is(runErr, io.EOF) {
			return totalWritten, runErr
		}

		for run.RunLength >= 2 {
			var repeatCount int
			if run.RunLength > 257 {
				repeatCount = 255
			} else {
				repeatCount = run.RunLength - 2
			}

			n, err := output.Write([]byte{run.Byte, run.Byte, byte(repeatCount)})
			if err != nil {
				return totalWritten, err
			}
			totalWritten += int64(n)
			run.RunLength -= repeatCount + 2
		}

		if run.RunLength == 1 {
			n, err := output.Write([]byte{run.Byte})
			if err != nil {
				return totalWritten, err
			}
			totalWritten += int64(n)
		}

		if runErr != nil {
			return totalWritten, nil
		}
	}
}

// DecompressRLE8 is the inverse of CompressRLE8.
func DecompressRLE8(input io.Reader, output io.Writer) (int64, error) {
	source := bufio.NewReader(input)
	lastByteRead := -1
	var totalWritten int64

	for {
		currentByte, err := source.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return totalWritten, nil
			}
			return totalWritten, fmt.Errorf("reading input: %w", err)
		}

		var chunk []byte
		if int(currentByte) == lastByteRead {
			repeatCountByte, err := source.ReadByte()
			if err != nil {
				if errors.Is(err, io.EOF) {
					return totalWritten, fmt.Errorf(
						"missing repeat count after two %02x bytes", currentByte)
				}
				return totalWritten, fmt.Errorf("reading repeat count: %w", err)
			}
			chunk = make([]byte, int(repeatCountByte)+1)
			for i := range chunk {
				chunk[i] = currentByte
			}
			lastByteRead = -1
		} else {
			chunk = []byte{currentByte}
			lastByteRead = int(currentByte)
		}

		n, err := output.Write(chunk)
		totalWritten += int64(n)
		if err != nil {
			return totalWritten, err
		}
	}
}
